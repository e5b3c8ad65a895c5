// Package render defines the boundary to the drawing backend. The
// engine hands over a resolved Table plus the chart's pass-through
// rendering fields and receives an output identity back; it never
// touches pixels itself.
package render

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"chartforge/internal/spec"
	"chartforge/internal/table"
)

// Job is one fully resolved chart ready for rendering.
type Job struct {
	Index  int    // position in the specification document
	Source string // resolved data source name or path
	Chart  *spec.ChartConfig
	Data   *table.Table
}

// Renderer turns a resolved chart job into a persisted artifact and
// returns its output identity (typically the written file path).
type Renderer interface {
	Render(ctx context.Context, job Job) (string, error)
}

// OutputName builds the artifact file name for a chart:
// <slug>-<kind>.<ext>, where the slug is derived from the title (or
// "chart-<index>" for untitled charts).
func OutputName(job Job, ext string) string {
	slug := Slugify(job.Chart.Title)
	if slug == "" {
		slug = fmt.Sprintf("chart-%d", job.Index+1)
	}
	return fmt.Sprintf("%s-%s.%s", slug, job.Chart.Type, ext)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases a title and collapses every non-alphanumeric run
// into a single hyphen.
func Slugify(title string) string {
	s := nonSlug.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(s, "-")
}
