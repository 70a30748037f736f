package format

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/knadh/koanf/v2"
)

// numberJSON is a koanf parser that keeps JSON numbers as json.Number so
// integers and floats stay distinguishable after decoding.
type numberJSON struct{}

// NumberJSON returns the JSON parser used for .json documents.
func NumberJSON() koanf.Parser {
	return numberJSON{}
}

func (numberJSON) Unmarshal(data []byte) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var out map[string]any
	if err := decoder.Decode(&out); err != nil {
		return nil, fmt.Errorf("format: decode json: %w", err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("format: decode json: trailing data after document")
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func (numberJSON) Marshal(doc map[string]any) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}
