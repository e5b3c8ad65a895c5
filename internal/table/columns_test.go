package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyticsSchema() Schema {
	return Schema{
		{Name: "date", Kind: KindDate},
		{Name: "totalUsers", Kind: KindInt},
		{Name: "sessions", Kind: KindInt},
		{Name: "channel", Kind: KindString},
	}
}

func TestSuggestColumns_TypoRanksFirst(t *testing.T) {
	got := SuggestColumns(analyticsSchema(), "totalUser")
	require.NotEmpty(t, got)
	assert.Equal(t, "totalUsers", got[0])
}

func TestSuggestColumns_CaseInsensitiveExactWins(t *testing.T) {
	got := SuggestColumns(analyticsSchema(), "TOTALUSERS")
	require.NotEmpty(t, got)
	assert.Equal(t, "totalUsers", got[0])
}

func TestSuggestColumns_SubstringMatch(t *testing.T) {
	got := SuggestColumns(analyticsSchema(), "sess")
	require.NotEmpty(t, got)
	assert.Equal(t, "sessions", got[0])
}

func TestSuggestColumns_NoMatchForDistantName(t *testing.T) {
	got := SuggestColumns(analyticsSchema(), "zzzzzzzzzz")
	assert.Empty(t, got)
}

func TestSuggestColumns_CapsAtThree(t *testing.T) {
	schema := Schema{
		{Name: "val1", Kind: KindInt},
		{Name: "val2", Kind: KindInt},
		{Name: "val3", Kind: KindInt},
		{Name: "val4", Kind: KindInt},
	}
	got := SuggestColumns(schema, "val")
	assert.Len(t, got, 3)
}

func TestRequireColumn(t *testing.T) {
	schema := analyticsSchema()

	assert.Nil(t, RequireColumn(schema, "sessions"))

	err := RequireColumn(schema, "totalUser")
	require.NotNil(t, err)
	assert.Equal(t, "totalUser", err.Requested)
	assert.Contains(t, err.Error(), "totalUsers")
}

func TestRequireColumns_CollectsAllMissing(t *testing.T) {
	errs := RequireColumns(analyticsSchema(), []string{"date", "nope1", "nope2"})
	assert.Len(t, errs, 2)
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"totalUser", "totalUsers", 1},
		{"same", "same", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}
