package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the read-only view of a fully processed configuration. It is
// created by the Processor after validation and never mutated afterward.
type Config struct {
	raw map[string]interface{}
}

// Raw returns a deep copy of the merged document, suitable for persisting
// as the job's config artifact.
func (c *Config) Raw() map[string]interface{} {
	return deepCopyMap(c.raw)
}

// SourceType returns DATA.SOURCE.type.
func (c *Config) SourceType() string {
	return stringAt(c.raw, "DATA", "SOURCE", "type")
}

// SourceConfig returns a copy of DATA.SOURCE.CONFIG.
func (c *Config) SourceConfig() map[string]interface{} {
	cfg, ok := mapAt(c.raw, "DATA", "SOURCE", "CONFIG")
	if !ok {
		return map[string]interface{}{}
	}
	return deepCopyMap(cfg)
}

// TransformFunction returns DATA.TRANSFORM.FUNCTION.
func (c *Config) TransformFunction() string {
	return stringAt(c.raw, "DATA", "TRANSFORM", "FUNCTION")
}

// TransformParams returns a copy of DATA.TRANSFORM.PARAMS.
func (c *Config) TransformParams() map[string]interface{} {
	params, ok := mapAt(c.raw, "DATA", "TRANSFORM", "PARAMS")
	if !ok {
		return map[string]interface{}{}
	}
	return deepCopyMap(params)
}

// Model returns MEASUREMENT.MODEL.
func (c *Config) Model() string {
	return stringAt(c.raw, "MEASUREMENT", "MODEL")
}

// ModelParams returns a copy of MEASUREMENT.PARAMS.
func (c *Config) ModelParams() map[string]interface{} {
	params, ok := mapAt(c.raw, "MEASUREMENT", "PARAMS")
	if !ok {
		return map[string]interface{}{}
	}
	return deepCopyMap(params)
}

// OutputPath returns OUTPUT.PATH.
func (c *Config) OutputPath() string {
	return stringAt(c.raw, "OUTPUT", "PATH")
}

// DateRange returns the validated retrieval window. Zero times are
// returned for file sources that carry no explicit window.
func (c *Config) DateRange() (time.Time, time.Time) {
	cfg, ok := mapAt(c.raw, "DATA", "SOURCE", "CONFIG")
	if !ok {
		return time.Time{}, time.Time{}
	}
	var start, end time.Time
	if s, ok := cfg["start_date"].(string); ok {
		start, _ = time.Parse(DateFormat, s)
	}
	if s, ok := cfg["end_date"].(string); ok {
		end, _ = time.Parse(DateFormat, s)
	}
	return start, end
}

// MarshalYAML makes the config serialize as its underlying document.
func (c *Config) MarshalYAML() (interface{}, error) {
	return c.raw, nil
}

// ToYAML serializes the merged document.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c.raw)
}
