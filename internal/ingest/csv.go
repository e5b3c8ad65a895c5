// Package ingest turns raw CSV files into typed Tables. The first
// record is the header; every column's kind is inferred from its cell
// values before any cell is committed.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"chartforge/internal/table"
)

// LoadCSV reads the file at path into a Table.
func LoadCSV(path string) (*table.Table, error) {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// ReadCSV parses CSV from r into a Table. Empty cells become Null; a
// column whose non-empty cells all parse as one of int, float, bool,
// or date gets that kind, otherwise it stays a string column.
func ReadCSV(r io.Reader) (*table.Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty input, expected a header record")
	}
	if err != nil {
		return nil, err
	}
	for i, name := range header {
		header[i] = strings.TrimSpace(name)
		if header[i] == "" {
			return nil, fmt.Errorf("column %d has an empty header", i+1)
		}
	}

	raw := make([][]string, len(header))
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for i := range header {
			raw[i] = append(raw[i], rec[i])
		}
	}

	cols := make([]table.Column, len(header))
	for i, name := range header {
		cols[i] = inferColumn(name, raw[i])
	}
	return table.New(cols...)
}

// Inference candidates, tried in order. A candidate survives only if
// every non-empty cell in the column accepts it.
const (
	candInt = 1 << iota
	candFloat
	candBool
	candDate
)

func inferColumn(name string, cells []string) table.Column {
	micros := microsEpochColumn(name)

	cand := candInt | candFloat | candBool | candDate
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if cand&candInt != 0 {
			if _, err := strconv.ParseInt(c, 10, 64); err != nil {
				cand &^= candInt
			}
		}
		if cand&candFloat != 0 {
			if _, err := strconv.ParseFloat(c, 64); err != nil {
				cand &^= candFloat
			}
		}
		if cand&candBool != 0 && !boolCell(c) {
			cand &^= candBool
		}
		if cand&candDate != 0 {
			if _, err := table.ParseDate(c); err != nil {
				cand &^= candDate
			}
		}
		if cand == 0 {
			break
		}
	}

	// The epoch conversion only applies to integer cells; a timestamp
	// column already holding ISO dates is parsed as dates.
	micros = micros && cand&candInt != 0

	kind := table.KindString
	switch {
	case micros:
		kind = table.KindDate
	case cand&candInt != 0:
		kind = table.KindInt
	case cand&candFloat != 0:
		kind = table.KindFloat
	case cand&candBool != 0:
		kind = table.KindBool
	case cand&candDate != 0:
		kind = table.KindDate
	}

	vals := make([]table.Scalar, len(cells))
	for i, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			vals[i] = table.Null()
			continue
		}
		vals[i] = parseCell(c, kind, micros)
	}
	return table.Column{Name: name, Kind: kind, Values: vals}
}

func parseCell(c string, kind table.Kind, micros bool) table.Scalar {
	switch kind {
	case table.KindInt:
		n, _ := strconv.ParseInt(c, 10, 64)
		return table.IntValue(n)
	case table.KindFloat:
		f, _ := strconv.ParseFloat(c, 64)
		return table.FloatValue(f)
	case table.KindBool:
		return table.BoolValue(strings.EqualFold(c, "true"))
	case table.KindDate:
		if micros {
			n, _ := strconv.ParseInt(c, 10, 64)
			return table.DateValue(time.UnixMicro(n).UTC())
		}
		t, _ := table.ParseDate(c)
		return table.DateValue(t)
	default:
		return table.StringValue(c)
	}
}

func boolCell(c string) bool {
	return strings.EqualFold(c, "true") || strings.EqualFold(c, "false")
}

// microsEpochColumn reports whether an integer column holds
// microsecond epoch timestamps, keyed off the analytics-export naming
// convention.
func microsEpochColumn(name string) bool {
	n := strings.ToLower(name)
	return strings.HasSuffix(n, "_micros") || n == "event_timestamp"
}
