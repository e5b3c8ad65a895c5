package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartforge/internal/spec"
	"chartforge/internal/table"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sessions by Week", "sessions-by-week"},
		{"Q1 2024 -- Revenue!", "q1-2024-revenue"},
		{"  trimmed  ", "trimmed"},
		{"***", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), "%q", tt.in)
	}
}

func TestOutputName(t *testing.T) {
	job := Job{Index: 0, Chart: &spec.ChartConfig{Type: spec.ChartBar, Title: "Top Channels"}}
	assert.Equal(t, "top-channels-bar.png", OutputName(job, "png"))

	untitled := Job{Index: 2, Chart: &spec.ChartConfig{Type: spec.ChartLine}}
	assert.Equal(t, "chart-3-line.svg", OutputName(untitled, "svg"))
}

func TestDatasetWriter_WritesCSV(t *testing.T) {
	tbl, err := table.New(
		table.Column{Name: "g", Kind: table.KindString, Values: []table.Scalar{
			table.StringValue("A"), table.StringValue("B"),
		}},
		table.Column{Name: "v", Kind: table.KindInt, Values: []table.Scalar{
			table.IntValue(30), table.Null(),
		}},
	)
	require.NoError(t, err)

	dir := t.TempDir()
	w := &DatasetWriter{Dir: filepath.Join(dir, "out")}
	job := Job{Index: 0, Chart: &spec.ChartConfig{Type: spec.ChartBar, Title: "Totals"}, Data: tbl}

	dest, err := w.Render(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "totals-bar.csv"), dest)

	content, err := os.ReadFile(dest) //nolint:gosec
	require.NoError(t, err)
	assert.Equal(t, "g,v\nA,30\nB,\n", string(content))

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, strings.HasPrefix(entries[0].Name(), ".dataset-"))
}

func TestDatasetWriter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &DatasetWriter{Dir: t.TempDir()}
	_, err := w.Render(ctx, Job{Chart: &spec.ChartConfig{Type: spec.ChartBar}})
	assert.Error(t, err)
}
