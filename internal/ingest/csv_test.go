package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartforge/internal/table"
)

func TestReadCSV_InfersKinds(t *testing.T) {
	src := strings.TrimSpace(`
date,sessions,bounce_rate,active,channel
2024-01-01,120,0.42,true,organic
2024-01-02,98,0.51,false,direct
`)
	tbl, err := ReadCSV(strings.NewReader(src))
	require.NoError(t, err)

	schema := tbl.Schema()
	want := map[string]table.Kind{
		"date":        table.KindDate,
		"sessions":    table.KindInt,
		"bounce_rate": table.KindFloat,
		"active":      table.KindBool,
		"channel":     table.KindString,
	}
	for name, kind := range want {
		got, ok := schema.Kind(name)
		require.True(t, ok, name)
		assert.Equal(t, kind, got, name)
	}

	v, _ := tbl.Value(0, "sessions")
	assert.Equal(t, int64(120), v.Int)
	v, _ = tbl.Value(1, "active")
	assert.False(t, v.Bool)
}

func TestReadCSV_EmptyCellsBecomeNull(t *testing.T) {
	src := "v,label\n1,a\n,b\n3,\n"
	tbl, err := ReadCSV(strings.NewReader(src))
	require.NoError(t, err)

	kind, _ := tbl.Schema().Kind("v")
	assert.Equal(t, table.KindInt, kind, "empty cells do not demote the column kind")

	v, _ := tbl.Value(1, "v")
	assert.True(t, v.IsNull())
	v, _ = tbl.Value(2, "label")
	assert.True(t, v.IsNull())
}

func TestReadCSV_MixedColumnStaysString(t *testing.T) {
	src := "v\n1\ntwo\n"
	tbl, err := ReadCSV(strings.NewReader(src))
	require.NoError(t, err)

	kind, _ := tbl.Schema().Kind("v")
	assert.Equal(t, table.KindString, kind)
}

func TestReadCSV_IntColumnWithDecimalBecomesFloat(t *testing.T) {
	src := "v\n1\n2.5\n"
	tbl, err := ReadCSV(strings.NewReader(src))
	require.NoError(t, err)

	kind, _ := tbl.Schema().Kind("v")
	assert.Equal(t, table.KindFloat, kind)
}

func TestReadCSV_MicrosTimestampColumn(t *testing.T) {
	ts := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	src := "event_timestamp,v\n1710498600000000,7\n"
	tbl, err := ReadCSV(strings.NewReader(src))
	require.NoError(t, err)

	kind, _ := tbl.Schema().Kind("event_timestamp")
	require.Equal(t, table.KindDate, kind)
	v, _ := tbl.Value(0, "event_timestamp")
	assert.Equal(t, ts, v.Date)
}

func TestReadCSV_TimestampColumnWithISODatesParsesAsDates(t *testing.T) {
	src := "event_timestamp\n2024-01-05\n"
	tbl, err := ReadCSV(strings.NewReader(src))
	require.NoError(t, err)

	kind, _ := tbl.Schema().Kind("event_timestamp")
	require.Equal(t, table.KindDate, kind)
	v, _ := tbl.Value(0, "event_timestamp")
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), v.Date)
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.Error(t, err, "missing header")

	_, err = ReadCSV(strings.NewReader("a,\n1,2\n"))
	assert.Error(t, err, "empty header cell")

	_, err = ReadCSV(strings.NewReader("a,b\n1\n"))
	assert.Error(t, err, "ragged record")
}

func TestLoadCSV_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "traffic.csv")
	require.NoError(t, os.WriteFile(path, []byte("v\n1\n2\n"), 0o600))

	tbl, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.NumRows())

	_, err = LoadCSV(filepath.Join(dir, "nope.csv"))
	assert.Error(t, err)
}
