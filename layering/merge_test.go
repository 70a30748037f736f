package layering

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

type document map[string]any

type layeringFixture struct {
	Description string                `json:"description"`
	Cases       []layeringFixtureCase `json:"cases"`
}

type layeringFixtureCase struct {
	Name   string                 `json:"name"`
	Layers []layeringFixtureLayer `json:"layers"`
	Expect map[string]any         `json:"expect"`
}

type layeringFixtureLayer struct {
	Scope    string         `json:"scope"`
	Snapshot map[string]any `json:"snapshot"`
}

func TestMergeLayersFromFixture(t *testing.T) {
	fx := loadLayeringFixture(t, "layering_merge.json")

	for _, tc := range fx.Cases {
		t.Run(tc.Name, func(t *testing.T) {
			layers := make([]map[string]any, len(tc.Layers))
			for i := range tc.Layers {
				layers[i] = tc.Layers[i].Snapshot
			}
			before := Clone(layers[0])

			got := MergeLayers(layers...)
			if !reflect.DeepEqual(tc.Expect, got) {
				t.Errorf("merged snapshot mismatch:\nwant: %#v\n got: %#v", tc.Expect, got)
			}
			if !reflect.DeepEqual(before, layers[0]) {
				t.Errorf("MergeLayers modified its input")
			}
		})
	}
}

func TestMergeLayersZeroInput(t *testing.T) {
	if got := MergeLayers[document](); got != nil {
		t.Fatalf("expected MergeLayers() to return nil, got %+v", got)
	}
}

func TestMergeLayersResultIsDetached(t *testing.T) {
	weak := document{"loader": document{"verbose": true}}
	merged := MergeLayers(document{}, weak)
	merged["loader"].(document)["verbose"] = false
	if weak["loader"].(document)["verbose"] != true {
		t.Fatalf("merged result shares nested maps with its input")
	}
}

func TestOverlay(t *testing.T) {
	weak := document{
		"loader": document{"combo_min_pred": 5, "verbose": true},
		"keep":   1,
	}
	strong := document{"loader": document{"combo_min_pred": 9}}

	Overlay(weak, strong)

	want := document{
		"loader": document{"combo_min_pred": 9, "verbose": true},
		"keep":   1,
	}
	if !reflect.DeepEqual(want, weak) {
		t.Fatalf("Overlay = %#v", weak)
	}

	strong["loader"].(document)["combo_min_pred"] = 0
	if weak["loader"].(document)["combo_min_pred"] != 9 {
		t.Fatalf("Overlay must copy strong, not alias it")
	}
}

func loadLayeringFixture(t *testing.T, name string) layeringFixture {
	t.Helper()
	path := filepath.Join("testdata", name)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read layering fixture %q: %v", name, err)
	}
	var fx layeringFixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		t.Fatalf("failed to unmarshal layering fixture %q: %v", name, err)
	}
	return fx
}
