package activity

import (
	"strings"
	"time"
)

// LayerContext describes the configuration layer an event concerns.
type LayerContext struct {
	Name       string
	Label      string
	Priority   int
	Metadata   map[string]any
	SnapshotID string
}

// ConfigEventInput carries the fields shared by store events.
type ConfigEventInput struct {
	ActorID    string
	Domain     string
	Channel    string
	Key        string
	OldValue   any
	NewValue   any
	Layer      LayerContext
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildValueSetEvent describes a runtime Set of one key.
func BuildValueSetEvent(input ConfigEventInput) Event {
	return buildEvent(VerbValueSet, "options.value", input)
}

// BuildLayerAppliedEvent describes a layer merged into the effective tree.
func BuildLayerAppliedEvent(input ConfigEventInput) Event {
	return buildEvent(VerbLayerApplied, "options.layer", input)
}

// BuildReloadedEvent describes a completed reload of every source.
func BuildReloadedEvent(input ConfigEventInput) Event {
	return buildEvent(VerbReloaded, "options", input)
}

func buildEvent(verb, objectType string, input ConfigEventInput) Event {
	metadata := cloneMap(input.Metadata)
	set := func(key string, value any) {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[key] = value
	}
	if input.Key != "" {
		set("key", input.Key)
	}
	if input.OldValue != nil {
		set("old_value", input.OldValue)
	}
	if input.NewValue != nil {
		set("new_value", input.NewValue)
	}
	if input.Layer.Name != "" {
		set("layer", input.Layer.Name)
		set("layer_priority", input.Layer.Priority)
		if input.Layer.Label != "" {
			set("layer_label", input.Layer.Label)
		}
		if len(input.Layer.Metadata) > 0 {
			set("layer_metadata", cloneMap(input.Layer.Metadata))
		}
	}
	if input.Layer.SnapshotID != "" {
		set("snapshot_id", input.Layer.SnapshotID)
	}

	domain := strings.TrimSpace(input.Domain)
	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		Domain:     domain,
		ObjectType: objectType,
		ObjectID:   objectID(domain, objectType, input),
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

// objectID is domain-qualified so one sink can serve several stores:
// "options/loader.combo_min_pred", "options/file".
func objectID(domain, objectType string, input ConfigEventInput) string {
	var local string
	switch {
	case strings.TrimSpace(input.Key) != "":
		local = strings.TrimSpace(input.Key)
	case input.Layer.Name != "":
		local = input.Layer.Name
	}
	switch {
	case domain != "" && local != "":
		return domain + "/" + local
	case domain != "":
		return domain
	case local != "":
		return local
	default:
		return objectType
	}
}
