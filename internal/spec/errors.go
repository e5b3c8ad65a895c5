package spec

// ConfigError reports a chart configuration that is structurally valid
// but semantically unusable at execution time, such as a non-positive
// row limit or an unresolvable data source.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }
