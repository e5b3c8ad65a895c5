package spec

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadOptions configures document loading behavior.
type LoadOptions struct {
	AllowUnknownFields bool
}

// Load reads a chart specification document from a YAML or JSON file.
// JSON is parsed by the same decoder (it is a YAML subset).
func Load(path string) (*Document, error) {
	return LoadWithOptions(path, LoadOptions{})
}

// LoadWithOptions reads a specification document using caller-provided
// loading options.
func LoadWithOptions(path string, opts LoadOptions) (*Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // intentional: reading user-specified spec files
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := Parse(data, opts)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a specification document from bytes. Unknown fields are
// rejected unless opts allows them, so a typoed field name fails loudly
// instead of being silently ignored.
func Parse(data []byte, opts LoadOptions) (*Document, error) {
	var doc Document
	if opts.AllowUnknownFields {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		return &doc, nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
