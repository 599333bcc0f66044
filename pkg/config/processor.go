// Package config implements the configuration validation pipeline: an
// ordered sequence of fatal stages taking a raw YAML/JSON document to a
// fully merged, validated, derived-field-injected configuration.
//
// Stages, in order:
//
//  1. file existence and readability
//  2. syntax parse (YAML by extension, JSON fallback)
//  3. deep merge of the user document over the defaults document
//  4. structural validation (every missing key reported, not just the first)
//  5. parameter validation (date formats, start <= end)
//  6. derived-field injection (the only stage permitted to add keys)
//
// Each stage fails with a distinct error type so callers can branch on
// bad-file vs bad-syntax vs missing-structure vs bad-values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/errors"
	"github.com/eisenhauerIO/tools-impact-engine-measure/pkg/logger"
)

// DateFormat is the required layout for every date-valued parameter.
const DateFormat = "2006-01-02"

// Processor runs the configuration validation pipeline.
type Processor struct {
	defaults map[string]interface{}
	logger   *zap.Logger
}

// NewProcessor creates a processor using the built-in defaults document.
func NewProcessor() *Processor {
	return &Processor{
		defaults: Defaults(),
		logger:   logger.Get().With(zap.String("component", "config_processor")),
	}
}

// NewProcessorWithDefaults creates a processor with a caller-supplied
// defaults document (used by tests).
func NewProcessorWithDefaults(defaults map[string]interface{}) *Processor {
	return &Processor{
		defaults: deepCopyMap(defaults),
		logger:   logger.Get().With(zap.String("component", "config_processor")),
	}
}

// Process runs all six stages against a configuration file.
func (p *Processor) Process(path string) (*Config, error) {
	if err := p.validateFile(path); err != nil {
		return nil, err
	}

	raw, err := p.parseFile(path)
	if err != nil {
		return nil, err
	}

	return p.ProcessMap(raw)
}

// ProcessMap runs stages 3-6 against an already parsed document.
func (p *Processor) ProcessMap(raw map[string]interface{}) (*Config, error) {
	merged := p.Merge(raw)

	if err := p.validateStructure(merged); err != nil {
		return nil, err
	}
	if err := p.validateParameters(merged); err != nil {
		return nil, err
	}

	p.injectDerived(merged)

	p.logger.Debug("configuration processed",
		zap.String("source_type", stringAt(merged, "DATA", "SOURCE", "type")),
		zap.String("model", stringAt(merged, "MEASUREMENT", "MODEL")))

	return &Config{raw: merged}, nil
}

// Merge deep-merges the user document over the defaults document. User
// values win at every leaf. Neither input is mutated, and merging a merged
// result again is a no-op.
func (p *Processor) Merge(user map[string]interface{}) map[string]interface{} {
	return deepMerge(deepCopyMap(p.defaults), user)
}

// Stage 1: file existence and readability.
func (p *Processor) validateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Newf(errors.ErrorTypeConfigFile, "configuration file not found: %s", path)
		}
		return errors.Wrapf(err, errors.ErrorTypeConfigFile, "configuration file not readable: %s", path)
	}
	if info.IsDir() {
		return errors.Newf(errors.ErrorTypeConfigFile, "configuration path is a directory: %s", path)
	}
	return nil
}

// Stage 2: syntax parse. YAML or JSON by extension; unknown extensions try
// JSON first, then YAML. Environment references of the form ${VAR} are
// substituted before parsing.
func (p *Processor) parseFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is caller-controlled configuration
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeConfigFile, "failed to read configuration file: %s", path)
	}

	content := substituteEnvVars(string(data))
	raw := map[string]interface{}{}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal([]byte(content), &raw); err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeConfigSyntax, "invalid JSON in %s", path)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(content), &raw); err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeConfigSyntax, "invalid YAML in %s", path)
		}
	default:
		if jsonErr := json.Unmarshal([]byte(content), &raw); jsonErr != nil {
			if yamlErr := yaml.Unmarshal([]byte(content), &raw); yamlErr != nil {
				return nil, errors.Wrapf(yamlErr, errors.ErrorTypeConfigSyntax,
					"failed to parse %s as JSON or YAML", path)
			}
		}
	}
	return raw, nil
}

// Stage 4: structural validation. Collects every missing key before failing.
func (p *Processor) validateStructure(merged map[string]interface{}) error {
	var missing []string

	data, ok := mapAt(merged, "DATA")
	if !ok {
		missing = append(missing, "DATA")
	} else {
		source, ok := mapAt(data, "SOURCE")
		if !ok {
			missing = append(missing, "DATA.SOURCE")
		} else {
			sourceType, _ := source["type"].(string)
			if sourceType == "" {
				missing = append(missing, "DATA.SOURCE.type")
			}
			sourceConfig, ok := mapAt(source, "CONFIG")
			if !ok {
				missing = append(missing, "DATA.SOURCE.CONFIG")
			} else {
				for _, field := range requiredSourceFields(sourceType) {
					if v, present := sourceConfig[field]; !present || v == nil {
						missing = append(missing, "DATA.SOURCE.CONFIG."+field)
					}
				}
			}
		}
		if transform, ok := mapAt(data, "TRANSFORM"); ok {
			if fn, _ := transform["FUNCTION"].(string); fn == "" {
				missing = append(missing, "DATA.TRANSFORM.FUNCTION")
			}
		}
	}

	measurement, ok := mapAt(merged, "MEASUREMENT")
	if !ok {
		missing = append(missing, "MEASUREMENT")
	} else {
		if model, _ := measurement["MODEL"].(string); model == "" {
			missing = append(missing, "MEASUREMENT.MODEL")
		}
		if _, ok := mapAt(measurement, "PARAMS"); !ok {
			missing = append(missing, "MEASUREMENT.PARAMS")
		}
	}

	output, ok := mapAt(merged, "OUTPUT")
	if !ok {
		missing = append(missing, "OUTPUT")
	} else if path, _ := output["PATH"].(string); path == "" {
		missing = append(missing, "OUTPUT.PATH")
	}

	if len(missing) > 0 {
		return errors.Newf(errors.ErrorTypeConfigStructure,
			"configuration structure errors:\n  - %s", strings.Join(missing, "\n  - ")).
			WithDetail("missing", missing)
	}
	return nil
}

// requiredSourceFields returns the CONFIG fields a source type must carry.
// File sources read their range from the file; everything else needs an
// explicit window.
func requiredSourceFields(sourceType string) []string {
	if sourceType == "file" {
		return []string{"path"}
	}
	return []string{"start_date", "end_date"}
}

// Stage 5: parameter validation. Universal constraints only; model-specific
// parameters are validated by the model adapter before any data retrieval.
func (p *Processor) validateParameters(merged map[string]interface{}) error {
	var problems []string

	sourceConfig, _ := mapAt(merged, "DATA", "SOURCE", "CONFIG")

	var startDate, endDate time.Time
	if s, ok := sourceConfig["start_date"].(string); ok {
		parsed, err := time.Parse(DateFormat, s)
		if err != nil {
			problems = append(problems,
				fmt.Sprintf("invalid date for DATA.SOURCE.CONFIG.start_date: %q, expected YYYY-MM-DD", s))
		} else {
			startDate = parsed
		}
	}
	if s, ok := sourceConfig["end_date"].(string); ok {
		parsed, err := time.Parse(DateFormat, s)
		if err != nil {
			problems = append(problems,
				fmt.Sprintf("invalid date for DATA.SOURCE.CONFIG.end_date: %q, expected YYYY-MM-DD", s))
		} else {
			endDate = parsed
		}
	}
	if !startDate.IsZero() && !endDate.IsZero() && startDate.After(endDate) {
		problems = append(problems, fmt.Sprintf(
			"DATA.SOURCE.CONFIG.start_date (%s) must be before or equal to end_date (%s)",
			startDate.Format(DateFormat), endDate.Format(DateFormat)))
	}

	if enrichment, ok := mapAt(merged, "DATA", "ENRICHMENT"); ok {
		if params, ok := mapAt(enrichment, "PARAMS"); ok {
			if s, ok := params["enrichment_start"].(string); ok {
				if _, err := time.Parse(DateFormat, s); err != nil {
					problems = append(problems, fmt.Sprintf(
						"invalid date for DATA.ENRICHMENT.PARAMS.enrichment_start: %q, expected YYYY-MM-DD", s))
				}
			}
		}
	}

	if len(problems) > 0 {
		return errors.Newf(errors.ErrorTypeConfigParameter,
			"configuration parameter errors:\n  - %s", strings.Join(problems, "\n  - ")).
			WithDetail("problems", problems)
	}
	return nil
}

// Stage 6: derived-field injection. Propagates the enrichment start date
// into the transform parameters so downstream stages never re-derive it.
// This is the only stage that adds keys.
func (p *Processor) injectDerived(merged map[string]interface{}) {
	enrichment, ok := mapAt(merged, "DATA", "ENRICHMENT")
	if !ok {
		return
	}
	params, ok := mapAt(enrichment, "PARAMS")
	if !ok {
		return
	}
	start, ok := params["enrichment_start"]
	if !ok {
		return
	}

	data, _ := mapAt(merged, "DATA")
	transform, ok := mapAt(data, "TRANSFORM")
	if !ok {
		transform = map[string]interface{}{"FUNCTION": "passthrough"}
		data["TRANSFORM"] = transform
	}
	transformParams, ok := mapAt(transform, "PARAMS")
	if !ok {
		transformParams = map[string]interface{}{}
		transform["PARAMS"] = transformParams
	}
	transformParams["enrichment_start"] = start
}

// deepMerge merges override into base recursively, override winning at
// every leaf. base is mutated and returned; callers pass a copy.
func deepMerge(base, override map[string]interface{}) map[string]interface{} {
	for key, value := range override {
		if overrideMap, ok := value.(map[string]interface{}); ok {
			if baseMap, ok := base[key].(map[string]interface{}); ok {
				base[key] = deepMerge(baseMap, deepCopyMap(overrideMap))
				continue
			}
		}
		base[key] = deepCopyValue(value)
	}
	return base
}

func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}

// mapAt walks nested maps by key path.
func mapAt(m map[string]interface{}, path ...string) (map[string]interface{}, bool) {
	current := m
	for _, key := range path {
		next, ok := current[key].(map[string]interface{})
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func stringAt(m map[string]interface{}, path ...string) string {
	parent, ok := mapAt(m, path[:len(path)-1]...)
	if !ok {
		return ""
	}
	s, _ := parent[path[len(path)-1]].(string)
	return s
}
