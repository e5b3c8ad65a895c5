package render

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// DatasetWriter is a Renderer that persists the resolved dataset as a
// CSV file instead of drawing it, for piping into external plotting
// tools and for inspecting pipeline output.
type DatasetWriter struct {
	Dir string
}

// Render writes the job's Table to <Dir>/<slug>-<kind>.csv. The file
// appears atomically: content goes to a temp file first and is renamed
// into place only after a successful flush, so a failed job never
// leaves a partial artifact behind.
func (w *DatasetWriter) Render(ctx context.Context, job Job) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.Dir, 0o750); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	dest := filepath.Join(w.Dir, OutputName(job, "csv"))

	tmp, err := os.CreateTemp(w.Dir, ".dataset-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmp.Close()           //nolint:errcheck
		os.Remove(tmp.Name()) //nolint:errcheck // no-op after successful rename
	}()

	cw := csv.NewWriter(tmp)
	cols := job.Data.Columns()
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Name
	}
	if err := cw.Write(header); err != nil {
		return "", err
	}
	rec := make([]string, len(cols))
	for r := 0; r < job.Data.NumRows(); r++ {
		for i, c := range cols {
			if c.Values[r].IsNull() {
				rec[i] = ""
			} else {
				rec[i] = c.Values[r].String()
			}
		}
		if err := cw.Write(rec); err != nil {
			return "", err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("finalize %s: %w", dest, err)
	}
	return dest, nil
}
