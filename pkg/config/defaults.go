package config

import (
	"sync"

	"gopkg.in/yaml.v3"
)

// defaultsDocument is the baseline configuration. User configs are
// deep-merged over it, so a config file only states what differs.
const defaultsDocument = `
DATA:
  SOURCE:
    type: simulator
    CONFIG: {}
  TRANSFORM:
    FUNCTION: passthrough
    PARAMS: {}
MEASUREMENT:
  MODEL: interrupted_time_series
  PARAMS:
    dependent_variable: revenue
OUTPUT:
  PATH: ./data
`

var (
	defaultsOnce sync.Once
	defaultsMap  map[string]interface{}
)

// Defaults returns a deep copy of the baseline configuration document.
func Defaults() map[string]interface{} {
	defaultsOnce.Do(func() {
		defaultsMap = map[string]interface{}{}
		if err := yaml.Unmarshal([]byte(defaultsDocument), &defaultsMap); err != nil {
			panic(err)
		}
	})
	return deepCopyMap(defaultsMap)
}

func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(x)
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, item := range x {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return x
	}
}
