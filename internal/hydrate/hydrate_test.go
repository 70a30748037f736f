package hydrate

import (
	"errors"
	"strings"
	"testing"
)

type filterSettings struct {
	BMinSupport int     `json:"b_min_support"`
	BMinConf    float64 `json:"b_min_conf"`
}

type loaderSettings struct {
	LoadCombo       bool           `json:"load_combo"`
	ComboMinPred    int            `json:"combo_min_pred"`
	ComboMinSupport int            `json:"combo_min_support"`
	ComboMinConf    float64        `json:"combo_min_conf"`
	Filter          filterSettings `json:"filter"`
	Tag             string         `json:"tag"`
}

func loaderSection() map[string]any {
	return map[string]any{
		"load_combo":        true,
		"combo_min_pred":    int64(5),
		"combo_min_support": int64(2),
		"combo_min_conf":    0.0001,
		"filter": map[string]any{
			"b_min_support": int64(1),
			"b_min_conf":    0.5,
		},
	}
}

func TestDecodeNestedSection(t *testing.T) {
	got, err := NewDecoder[loaderSettings]().Decode(Context{Section: "loader"}, loaderSection())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := loaderSettings{
		LoadCombo:       true,
		ComboMinPred:    5,
		ComboMinSupport: 2,
		ComboMinConf:    0.0001,
		Filter:          filterSettings{BMinSupport: 1, BMinConf: 0.5},
	}
	if got != want {
		t.Fatalf("decoded mismatch:\nwant: %#v\n got: %#v", want, got)
	}
}

func TestDecodeNilSection(t *testing.T) {
	_, err := NewDecoder[loaderSettings]().Decode(Context{Section: "loader"}, nil)
	if err == nil || !strings.Contains(err.Error(), `section "loader" is nil`) {
		t.Fatalf("expected nil section error, got %v", err)
	}
}

func TestDecodeStrictRejectsUnknownKeys(t *testing.T) {
	section := loaderSection()
	section["num_threads"] = int64(-1)

	if _, err := NewDecoder[loaderSettings]().Decode(Context{Section: "loader"}, section); err != nil {
		t.Fatalf("lenient decode should ignore unknown keys: %v", err)
	}
	_, err := NewDecoder(WithStrict[loaderSettings]()).Decode(Context{Section: "loader"}, section)
	if err == nil || !strings.Contains(err.Error(), "num_threads") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestDecodeHooks(t *testing.T) {
	section := loaderSection()
	pre := func(ctx Context, payload map[string]any) (map[string]any, error) {
		payload["combo_min_pred"] = int64(9)
		return payload, nil
	}
	post := func(ctx Context, out *loaderSettings) error {
		out.Tag = ctx.Scope + ":" + ctx.Section
		return nil
	}

	got, err := NewDecoder(
		WithPreHook[loaderSettings](pre),
		WithPostHook[loaderSettings](post),
	).Decode(Context{Section: "loader", Scope: "file"}, section)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ComboMinPred != 9 || got.Tag != "file:loader" {
		t.Fatalf("hooks not applied: %#v", got)
	}
	if section["combo_min_pred"] != int64(5) {
		t.Fatalf("pre-hook must not mutate the caller's section")
	}
}

func TestDecodeHookErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewDecoder(WithPreHook[loaderSettings](func(Context, map[string]any) (map[string]any, error) {
		return nil, boom
	})).Decode(Context{Section: "loader"}, loaderSection())
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "pre-hook") {
		t.Fatalf("expected wrapped pre-hook error, got %v", err)
	}

	_, err = NewDecoder(WithPostHook[loaderSettings](func(Context, *loaderSettings) error {
		return boom
	})).Decode(Context{Section: "loader"}, loaderSection())
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "post-hook") {
		t.Fatalf("expected wrapped post-hook error, got %v", err)
	}
}

func TestDecodeTypeMismatch(t *testing.T) {
	section := loaderSection()
	section["combo_min_pred"] = "many"
	_, err := NewDecoder[loaderSettings]().Decode(Context{Section: "loader"}, section)
	if err == nil || !strings.Contains(err.Error(), `decode section "loader"`) {
		t.Fatalf("expected decode error, got %v", err)
	}
}
