// Package hydrate decodes one configuration section into a typed struct. The
// section is round-tripped through JSON, so struct fields use json tags and
// the section's dotted keys map onto nested structs.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Context identifies the section being decoded.
type Context struct {
	Section string
	Scope   string
}

// PreHook may rewrite the raw section before decoding.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook may adjust or validate the decoded struct.
type PostHook[T any] func(Context, *T) error

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts a plain configuration section into T.
type Decoder[T any] struct {
	preHooks  []PreHook
	postHooks []PostHook[T]
	strict    bool
}

// WithPreHook applies hook prior to decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.preHooks = append(d.preHooks, hook)
		}
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.postHooks = append(d.postHooks, hook)
		}
	}
}

// WithStrict rejects section keys that have no matching struct field.
func WithStrict[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.strict = true
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts section into T. The caller's map is never modified.
func (d *Decoder[T]) Decode(ctx Context, section map[string]any) (T, error) {
	var zero T
	if section == nil {
		return zero, fmt.Errorf("hydrate: section %q is nil", ctx.Section)
	}

	current := cloneSection(section)
	for _, hook := range d.preHooks {
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook for section %q failed: %w", ctx.Section, err)
		}
		if next != nil {
			current = next
		}
	}

	buffer, err := json.Marshal(current)
	if err != nil {
		return zero, fmt.Errorf("hydrate: marshal section %q: %w", ctx.Section, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(buffer))
	if d.strict {
		decoder.DisallowUnknownFields()
	}
	var result T
	if err := decoder.Decode(&result); err != nil {
		return zero, fmt.Errorf("hydrate: decode section %q: %w", ctx.Section, err)
	}

	for _, hook := range d.postHooks {
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook for section %q failed: %w", ctx.Section, err)
		}
	}
	return result, nil
}

func cloneSection(section map[string]any) map[string]any {
	out := make(map[string]any, len(section))
	for key, value := range section {
		if nested, ok := value.(map[string]any); ok {
			out[key] = cloneSection(nested)
			continue
		}
		out[key] = value
	}
	return out
}
