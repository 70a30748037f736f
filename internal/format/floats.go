package format

import (
	"encoding/json"
	"math"
	"strconv"

	yamlv3 "gopkg.in/yaml.v3"
)

// Encoders print float64(5) as "5", which reads back as an integer. These
// wrappers keep the decimal point so a written document keeps its kinds.

type yamlFloat float64

func (f yamlFloat) MarshalYAML() (any, error) {
	return &yamlv3.Node{
		Kind:  yamlv3.ScalarNode,
		Tag:   "!!float",
		Value: formatIntegralFloat(float64(f)),
	}, nil
}

func keepFloats(f Format, doc map[string]any) map[string]any {
	if f != YAML && f != JSON {
		return doc
	}
	out := make(map[string]any, len(doc))
	for key, value := range doc {
		switch typed := value.(type) {
		case map[string]any:
			out[key] = keepFloats(f, typed)
		case float64:
			if !isIntegral(typed) {
				out[key] = typed
				continue
			}
			if f == YAML {
				out[key] = yamlFloat(typed)
			} else {
				out[key] = json.Number(formatIntegralFloat(typed))
			}
		default:
			out[key] = value
		}
	}
	return out
}

func isIntegral(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f) && math.Abs(f) < 1e15
}

func formatIntegralFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}
