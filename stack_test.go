package opts

import (
	"errors"
	"testing"
)

func TestNewScopeCopiesMetadata(t *testing.T) {
	meta := map[string]any{"owner": "system"}
	scope := NewScope("system", 50,
		WithScopeLabel("System Defaults"),
		WithScopeMetadata(meta),
	)

	meta["owner"] = "mutated"

	if got := scope.Metadata["owner"]; got != "system" {
		t.Fatalf("expected metadata copy to remain 'system', got %q", got)
	}
	if scope.Label != "System Defaults" {
		t.Fatalf("label not set, got %q", scope.Label)
	}
}

func TestNewLayerClonesSnapshot(t *testing.T) {
	snapshot := Tree{"loader": Tree{"verbose": BoolValue(true)}}
	layer := NewLayer(NewScope("user", 300), snapshot, WithSnapshotID("abc-123"))

	snapshot["loader"].(Tree)["verbose"] = BoolValue(false)
	if value, _ := layer.Snapshot.Value(Path{"loader", "verbose"}); value != BoolValue(true) {
		t.Fatalf("expected layer snapshot to remain immutable")
	}
	if layer.SnapshotID != "abc-123" {
		t.Fatalf("snapshot id not set, got %q", layer.SnapshotID)
	}
	if empty := NewLayer(NewScope("empty", 1), nil); empty.Snapshot == nil {
		t.Fatalf("nil snapshots should become empty trees")
	}
}

func TestNewStackOrdersAndValidates(t *testing.T) {
	user := NewLayer(NewScope("user", 300), Tree{"name": StringValue("user")})
	group := NewLayer(NewScope("group", 200), Tree{"name": StringValue("group")})
	defaults := NewLayer(NewScope("defaults", 100), Tree{"name": StringValue("defaults")})

	stack, err := NewStack(defaults, user, group)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	layers := stack.Layers()
	wantOrder := []string{"user", "group", "defaults"}
	for i, want := range wantOrder {
		if layers[i].Scope.Name != want {
			t.Fatalf("expected layer %d to be %q, got %q", i, want, layers[i].Scope.Name)
		}
	}
	if value, _ := stack.Tree().Value(Path{"name"}); value != StringValue("user") {
		t.Fatalf("strongest layer should win, got %v", value)
	}

	if _, err := NewStack(user, NewLayer(NewScope("user", 50), Tree{})); !errors.Is(err, ErrDuplicateScopeName) {
		t.Fatalf("expected duplicate scope name error, got %v", err)
	}
	if _, err := NewStack(
		NewLayer(NewScope("alpha", 100), Tree{}),
		NewLayer(NewScope("beta", 100), Tree{}),
	); !errors.Is(err, ErrPriorityOrder) {
		t.Fatalf("expected priority order error, got %v", err)
	}
	if _, err := NewStack(NewLayer(NewScope("", 1), Tree{})); !errors.Is(err, ErrScopeNameRequired) {
		t.Fatalf("expected scope name error, got %v", err)
	}
}

func TestStackLayersAreImmutable(t *testing.T) {
	stack, err := NewStack(NewLayer(NewScope("defaults", 100), Tree{"a": IntValue(1)}))
	if err != nil {
		t.Fatalf("stack: %v", err)
	}
	layers := stack.Layers()
	layers[0].Snapshot["a"] = IntValue(2)
	if value, _ := stack.Layers()[0].Snapshot.Value(Path{"a"}); value != IntValue(1) {
		t.Fatalf("mutating returned layers changed the stack")
	}
}

func TestStackLenAndEmpty(t *testing.T) {
	var nilStack *Stack
	if nilStack.Len() != 0 || nilStack.Layers() != nil || len(nilStack.Tree()) != 0 {
		t.Fatalf("nil stack should behave as empty")
	}
	stack, err := NewStack()
	if err != nil || stack.Len() != 0 {
		t.Fatalf("empty stack = %v, %v", stack, err)
	}
}

func TestNewStackRejectsShapeConflicts(t *testing.T) {
	defaults := NewLayer(NewScope("defaults", 100), Tree{
		"loader": Tree{"combo_min_pred": IntValue(5)},
	})
	cases := map[string]Tree{
		"leaf over section": {"loader": IntValue(5)},
		"section over leaf": {"loader": Tree{"combo_min_pred": Tree{"floor": IntValue(1)}}},
	}
	for name, snapshot := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewStack(defaults, NewLayer(NewScope("file", 200), snapshot))
			if !errors.Is(err, ErrPathConflict) {
				t.Fatalf("expected ErrPathConflict, got %v", err)
			}
		})
	}

	middle := NewLayer(NewScope("file", 200), Tree{"loader": Tree{"extra": Tree{"floor": IntValue(1)}}})
	top := NewLayer(NewScope("env", 300), Tree{"loader": Tree{"extra": IntValue(2)}})
	if _, err := NewStack(defaults, middle, top); !errors.Is(err, ErrPathConflict) {
		t.Fatalf("a conflict against a section added by a middle layer must be caught, got %v", err)
	}

	compatible := NewLayer(NewScope("file", 200), Tree{"loader": Tree{"combo_min_pred": IntValue(9), "extra": IntValue(1)}})
	stack, err := NewStack(defaults, compatible)
	if err != nil {
		t.Fatalf("compatible layers: %v", err)
	}
	if value, _ := stack.Tree().Value(Path{"loader", "combo_min_pred"}); value != IntValue(9) {
		t.Fatalf("strongest layer should win, got %v", value)
	}
}
