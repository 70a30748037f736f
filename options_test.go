package opts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"sort"
	"strings"
	"testing"
)

func testdataPath(t testing.TB, name string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("unable to resolve caller for fixture %q", name)
	}
	return filepath.Join(filepath.Dir(file), "testdata", name)
}

func mustNew(t testing.TB, options ...Option) *Options {
	t.Helper()
	store, err := New(options...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func mustGet(t testing.TB, store *Options, key string) Value {
	t.Helper()
	value, err := store.Get(key)
	if err != nil {
		t.Fatalf("Get(%q): %v", key, err)
	}
	return value
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestDefaultCompleteness(t *testing.T) {
	store := mustNew(t)
	flat, err := store.Flat("loader")
	if err != nil {
		t.Fatalf("Flat: %v", err)
	}
	want := map[string]Value{
		"load_combo":        BoolValue(false),
		"combo_debug":       BoolValue(false),
		"combo_min_pred":    IntValue(5),
		"combo_min_support": IntValue(2),
		"combo_min_conf":    FloatValue(0.0001),
	}
	for key, value := range want {
		if flat[key] != value {
			t.Fatalf("loader.%s = %#v, want %#v", key, flat[key], value)
		}
	}
	if flat["filter.b_min_conf"] != FloatValue(0) {
		t.Fatalf("nested keys must flatten with dotted suffixes, got %v", flat["filter.b_min_conf"])
	}
}

func TestPartialOverrideKeepsSiblings(t *testing.T) {
	cases := []struct {
		file string
		pred Value
	}{
		{file: "override.yaml", pred: IntValue(10)},
		{file: "override.json", pred: IntValue(10)},
		{file: "override.toml", pred: IntValue(10)},
	}
	for _, tc := range cases {
		t.Run(tc.file, func(t *testing.T) {
			store, err := Load(testdataPath(t, tc.file))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			flat, err := store.Flat("loader")
			if err != nil {
				t.Fatalf("Flat: %v", err)
			}
			if flat["combo_min_pred"] != tc.pred {
				t.Fatalf("combo_min_pred = %#v, want %#v", flat["combo_min_pred"], tc.pred)
			}
			if flat["combo_min_support"] != IntValue(2) {
				t.Fatalf("sibling combo_min_support lost: %#v", flat["combo_min_support"])
			}
			if flat["filter.u_min_support"] != IntValue(0) {
				t.Fatalf("nested sibling lost: %#v", flat["filter.u_min_support"])
			}
		})
	}
}

func TestOverrideFormatsKeepKinds(t *testing.T) {
	store, err := Load(testdataPath(t, "override.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := mustGet(t, store, "loader.combo_min_conf"); got != FloatValue(0.5) {
		t.Fatalf("json float = %#v", got)
	}
	if got := mustGet(t, store, "ranking.topk"); got != IntValue(25) {
		t.Fatalf("json int = %#v", got)
	}

	store, err = Load(testdataPath(t, "override.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := mustGet(t, store, "qa_handler.aggregation_function"); got != StringValue("noisy-or") {
		t.Fatalf("toml string = %#v", got)
	}
	if got := mustGet(t, store, "loader.combo_debug"); got != BoolValue(true) {
		t.Fatalf("toml bool = %#v", got)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	store := mustNew(t)
	cases := []struct {
		key   string
		value any
		want  Value
	}{
		{key: "loader.load_combo", value: true, want: BoolValue(true)},
		{key: "loader.combo_min_pred", value: 10, want: IntValue(10)},
		{key: "loader.combo_min_conf", value: 0.25, want: FloatValue(0.25)},
		{key: "loader.combo_min_conf", value: 5.0, want: FloatValue(5)},
		{key: "ranking.tie_handling", value: "random", want: StringValue("random")},
		{key: "brand_new.section.key", value: int64(-1), want: IntValue(-1)},
		{key: "qa_handler.topk", value: IntValue(3), want: IntValue(3)},
	}
	for _, tc := range cases {
		if err := store.Set(tc.key, tc.value); err != nil {
			t.Fatalf("Set(%q, %v): %v", tc.key, tc.value, err)
		}
		if got := mustGet(t, store, tc.key); got != tc.want {
			t.Fatalf("Get(%q) = %#v, want %#v", tc.key, got, tc.want)
		}
	}

	flat, err := store.Flat("loader")
	if err != nil {
		t.Fatalf("Flat: %v", err)
	}
	if flat["load_combo"] != BoolValue(true) {
		t.Fatalf("Set must be visible through Flat, got %v", flat["load_combo"])
	}
}

func TestSetErrors(t *testing.T) {
	store := mustNew(t)
	if err := store.Set("", 1); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
	if err := store.Set("loader", 1); !errors.Is(err, ErrPathConflict) {
		t.Fatalf("expected ErrPathConflict replacing a section, got %v", err)
	}
	if err := store.Set("loader.combo_min_pred.deeper", 1); !errors.Is(err, ErrPathConflict) {
		t.Fatalf("expected ErrPathConflict descending through a leaf, got %v", err)
	}
	if err := store.Set("loader.list", []int{1}); !errors.Is(err, ErrUnsupportedValue) {
		t.Fatalf("expected ErrUnsupportedValue, got %v", err)
	}
	if got := mustGet(t, store, "loader.combo_min_pred"); got != IntValue(5) {
		t.Fatalf("failed Set must leave the tree untouched, got %v", got)
	}
}

func TestGetErrors(t *testing.T) {
	store := mustNew(t)
	for _, key := range []string{"loader.nope", "nope.combo_min_pred", "loader..x", ""} {
		if _, err := store.Get(key); !errors.Is(err, ErrKeyNotFound) {
			t.Fatalf("Get(%q) expected ErrKeyNotFound, got %v", key, err)
		}
	}
	if _, err := store.Get("loader"); !errors.Is(err, ErrNotLeaf) {
		t.Fatalf("expected ErrNotLeaf, got %v", err)
	}
	if store.Has("loader.nope") || !store.Has("loader.combo_min_pred") {
		t.Fatalf("Has disagrees with Get")
	}
}

func TestFlatIsIdempotent(t *testing.T) {
	store := mustNew(t)
	first, err := store.Flat("loader")
	if err != nil {
		t.Fatalf("Flat: %v", err)
	}
	second, err := store.Flat("loader")
	if err != nil {
		t.Fatalf("Flat: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Flat results differ:\n%v\n%v", first, second)
	}

	first["combo_min_pred"] = IntValue(99)
	if got := mustGet(t, store, "loader.combo_min_pred"); got != IntValue(5) {
		t.Fatalf("mutating a Flat result leaked into the store")
	}
}

func TestMissingFileTolerance(t *testing.T) {
	missing, err := Load("/nonexistent/file.yaml")
	if err != nil {
		t.Fatalf("Load of a missing file must succeed: %v", err)
	}
	baseline := mustNew(t)
	if !reflect.DeepEqual(missing.Snapshot(), baseline.Snapshot()) {
		t.Fatalf("missing override changed the effective tree")
	}
	if len(missing.Layers()) != 1 {
		t.Fatalf("expected only the defaults layer, got %d", len(missing.Layers()))
	}
}

func TestUnknownSectionFailure(t *testing.T) {
	store := mustNew(t)
	for _, section := range []string{"nonexistent_section", "loader.combo_min_pred", "", "loader..filter"} {
		if _, err := store.Flat(section); !errors.Is(err, ErrSectionNotFound) {
			t.Fatalf("Flat(%q) expected ErrSectionNotFound, got %v", section, err)
		}
	}
	flat, err := store.Flat("loader.filter")
	if err != nil || len(flat) != 4 {
		t.Fatalf("nested section flatten = %v, %v", flat, err)
	}
}

func TestLoadErrors(t *testing.T) {
	for _, name := range []string{"malformed.yaml", "list_leaf.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := testdataPath(t, name)
			_, err := Load(path)
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("expected *LoadError, got %v", err)
			}
			if loadErr.Path != path || loadErr.Source != ScopeFile {
				t.Fatalf("unexpected LoadError fields %+v", loadErr)
			}
		})
	}

	dir := t.TempDir()
	if _, err := Load(dir); err == nil {
		t.Fatalf("a directory must not load as an override file")
	}
}

func TestDottedKeysInOverrideFile(t *testing.T) {
	cases := []struct {
		name string
		body string
		key  string
		want Value
	}{
		{"config.yaml", "loader.combo_min_pred: 10\n", "loader.combo_min_pred", IntValue(10)},
		{"config.json", `{"loader.filter.b_min_support": 3}`, "loader.filter.b_min_support", IntValue(3)},
		{"config.toml", "\"ranking.topk\" = 25\n", "ranking.topk", IntValue(25)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := Load(writeFile(t, tc.name, tc.body))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got := mustGet(t, store, tc.key); got != tc.want {
				t.Fatalf("%s = %#v, want %#v", tc.key, got, tc.want)
			}
			if got := mustGet(t, store, "loader.combo_min_support"); got != IntValue(2) {
				t.Fatalf("dotted override dropped a sibling, got %v", got)
			}
			for key := range store.Snapshot() {
				if strings.Contains(key, ".") {
					t.Fatalf("literal dotted key %q leaked into the tree", key)
				}
			}
		})
	}
}

func TestOverrideShapeConflictFailsLoad(t *testing.T) {
	cases := map[string]string{
		"leaf over section": "loader: 5\n",
		"section over leaf": "loader:\n  combo_min_pred:\n    floor: 1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", body))
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("expected *LoadError, got %v", err)
			}
			if !errors.Is(err, ErrPathConflict) {
				t.Fatalf("expected ErrPathConflict, got %v", err)
			}
		})
	}

	store, err := Load(writeFile(t, "config.yaml", "loader:\n  extra:\n    floor: 1\n"))
	if err != nil {
		t.Fatalf("new sections must still load: %v", err)
	}
	if got := mustGet(t, store, "loader.extra.floor"); got != IntValue(1) {
		t.Fatalf("loader.extra.floor = %v", got)
	}
}

func TestReloadRejectsShapeChangeUnderRuntimeEdit(t *testing.T) {
	path := writeFile(t, "config.yaml", "loader:\n  combo_min_pred: 7\n")
	store := mustNew(t, WithOverrideFile(path))
	if err := store.Set("tuning.window", 3); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if err := os.WriteFile(path, []byte("tuning: 4\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	err := store.Reload(context.Background())
	if !errors.Is(err, ErrPathConflict) {
		t.Fatalf("expected ErrPathConflict, got %v", err)
	}
	if got := mustGet(t, store, "tuning.window"); got != IntValue(3) {
		t.Fatalf("failed reload must keep the runtime edit, got %v", got)
	}
	if got := mustGet(t, store, "loader.combo_min_pred"); got != IntValue(7) {
		t.Fatalf("failed reload must keep the previous file layer, got %v", got)
	}
}

func TestEnvLayer(t *testing.T) {
	t.Setenv("OPTSTORE_TEST_LOADER__COMBO_MIN_PRED", "12")
	t.Setenv("OPTSTORE_TEST_LOADER__COMBO_MIN_CONF", "0.5")
	t.Setenv("OPTSTORE_TEST_RANKING__FILTER_W_DATA", "false")

	store := mustNew(t, WithOverrideFile(testdataPath(t, "override.yaml")), WithEnv("OPTSTORE_TEST_"))
	if got := mustGet(t, store, "loader.combo_min_pred"); got != IntValue(12) {
		t.Fatalf("env must win over the file, got %v", got)
	}
	if got := mustGet(t, store, "loader.combo_min_conf"); got != FloatValue(0.5) {
		t.Fatalf("env float = %#v", got)
	}
	if got := mustGet(t, store, "ranking.filter_w_data"); got != BoolValue(false) {
		t.Fatalf("env bool = %#v", got)
	}
	if got := mustGet(t, store, "loader.load_combo"); got != BoolValue(true) {
		t.Fatalf("file value lost under env layer, got %v", got)
	}

	var names []string
	for _, layer := range store.Layers() {
		names = append(names, layer.Scope.Name)
	}
	if !reflect.DeepEqual(names, []string{ScopeEnv, ScopeFile, ScopeDefaults}) {
		t.Fatalf("unexpected layer order %v", names)
	}
}

func TestReloadKeepsRuntimeEdits(t *testing.T) {
	path := writeFile(t, "config.yaml", "loader:\n  combo_min_pred: 7\n")
	store := mustNew(t, WithOverrideFile(path))
	if err := store.Set("ranking.topk", 3); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if err := os.WriteFile(path, []byte("loader:\n  combo_min_pred: 8\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := store.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := mustGet(t, store, "loader.combo_min_pred"); got != IntValue(8) {
		t.Fatalf("reload did not pick up the file, got %v", got)
	}
	if got := mustGet(t, store, "ranking.topk"); got != IntValue(3) {
		t.Fatalf("runtime edit lost on reload, got %v", got)
	}

	if err := os.WriteFile(path, []byte("loader: [broken\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := store.Reload(context.Background()); err == nil {
		t.Fatalf("expected reload of a malformed file to fail")
	}
	if got := mustGet(t, store, "loader.combo_min_pred"); got != IntValue(8) {
		t.Fatalf("failed reload must keep the previous state, got %v", got)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := store.Reload(context.Background()); err != nil {
		t.Fatalf("Reload after removal: %v", err)
	}
	if got := mustGet(t, store, "loader.combo_min_pred"); got != IntValue(5) {
		t.Fatalf("removed override should fall back to defaults, got %v", got)
	}
}

func TestSectionsLayersAndOverrides(t *testing.T) {
	store, err := Load(testdataPath(t, "override.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sections := store.Sections()
	if !sort.StringsAreSorted(sections) || !reflect.DeepEqual(sections, []string{"loader", "qa_handler", "ranking"}) {
		t.Fatalf("Sections = %v", sections)
	}

	if err := store.Set("ranking.topk", 3); err != nil {
		t.Fatalf("Set: %v", err)
	}
	layers := store.Layers()
	if len(layers) != 3 || layers[0].Scope.Name != ScopeRuntime {
		t.Fatalf("expected runtime layer first, got %+v", layers)
	}

	overrides := store.Overrides()
	want := Tree{
		"loader":  Tree{"load_combo": BoolValue(true), "combo_min_pred": IntValue(10)},
		"ranking": Tree{"topk": IntValue(3)},
	}
	if !reflect.DeepEqual(overrides, want) {
		t.Fatalf("Overrides = %v, want %v", overrides, want)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	store := mustNew(t)
	if err := store.Set("loader.combo_min_conf", 2.0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	for _, f := range []Format{FormatYAML, FormatJSON} {
		t.Run(string(f), func(t *testing.T) {
			out, err := store.Marshal(f)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			path := writeFile(t, "dump."+string(f), string(out))
			reloaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if !reflect.DeepEqual(reloaded.Snapshot(), store.Snapshot()) {
				t.Fatalf("round trip changed the tree:\n%s", out)
			}
		})
	}
}

func TestStoresAreIndependent(t *testing.T) {
	a := mustNew(t)
	b := mustNew(t)
	if err := a.Set("loader.load_combo", true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := mustGet(t, b, "loader.load_combo"); got != BoolValue(false) {
		t.Fatalf("stores share state")
	}
	snapshot := a.Snapshot()
	snapshot["loader"].(Tree)["load_combo"] = BoolValue(false)
	if got := mustGet(t, a, "loader.load_combo"); got != BoolValue(true) {
		t.Fatalf("Snapshot must be a copy")
	}
}

func TestWithDefaultsReplacesEmbeddedDocument(t *testing.T) {
	defaults := BytesSource(NewScope(ScopeDefaults, ScopePriorityDefaults), "inline.json", []byte(`{"app": {"port": 8080}}`), FormatJSON)
	store := mustNew(t, WithDefaults(defaults))
	if got := mustGet(t, store, "app.port"); got != IntValue(8080) {
		t.Fatalf("app.port = %v", got)
	}
	if store.Has("loader.combo_min_pred") {
		t.Fatalf("embedded defaults must not be loaded when replaced")
	}
}

func TestDuplicatePrioritiesFailConstruction(t *testing.T) {
	clash := TreeSource(NewScope("clash", ScopePriorityFile), Tree{"a": IntValue(1)})
	_, err := New(WithSources(clash), WithOverrideFile(testdataPath(t, "override.yaml")))
	if !errors.Is(err, ErrPriorityOrder) {
		t.Fatalf("expected ErrPriorityOrder, got %v", err)
	}
}

func TestDefaultDocumentIsCopied(t *testing.T) {
	doc := DefaultDocument()
	doc[0] = 'X'
	if DefaultDocument()[0] == 'X' {
		t.Fatalf("DefaultDocument must return a copy")
	}
}
