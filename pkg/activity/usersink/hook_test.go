package usersink_test

import (
	"context"
	"errors"
	"testing"
	"time"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"

	opts "github.com/goliatone/go-optstore"
	"github.com/goliatone/go-optstore/pkg/activity"
	"github.com/goliatone/go-optstore/pkg/activity/usersink"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookNotifyMapsEvent(t *testing.T) {
	sink := &recordingSink{}
	tenant := uuid.New()
	hook := usersink.Hook{Sink: sink, TenantID: tenant}

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	actor := uuid.New()
	event := activity.BuildValueSetEvent(activity.ConfigEventInput{
		ActorID:    actor.String(),
		Domain:     "options",
		Channel:    "config",
		Key:        "loader.load_combo",
		NewValue:   true,
		OccurredAt: now,
	})

	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actor || record.UserID != actor {
		t.Fatalf("expected actor %s, got actor=%s user=%s", actor, record.ActorID, record.UserID)
	}
	if record.TenantID != tenant {
		t.Fatalf("expected tenant %s got %s", tenant, record.TenantID)
	}
	if record.Verb != activity.VerbValueSet || record.ObjectType != "options.value" || record.ObjectID != "options/loader.load_combo" {
		t.Fatalf("unexpected record payload: %+v", record)
	}
	if record.Channel != "config" || !record.OccurredAt.Equal(now) {
		t.Fatalf("unexpected channel/time: %+v", record)
	}
	if record.Data["domain"] != "options" || record.Data["new_value"] != true {
		t.Fatalf("unexpected data: %v", record.Data)
	}
}

func TestHookNotifyNonUUIDActor(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}
	_ = hook.Notify(context.Background(), activity.Event{
		Verb: activity.VerbReloaded, ActorID: "cli", ObjectType: "options", ObjectID: "options",
	})
	if len(sink.records) != 1 || sink.records[0].ActorID != uuid.Nil {
		t.Fatalf("expected nil actor, got %+v", sink.records)
	}
	if sink.records[0].OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be defaulted")
	}
}

func TestHookNotifySkipsIncompleteEvents(t *testing.T) {
	sink := &recordingSink{}
	_ = usersink.Hook{Sink: sink}.Notify(context.Background(), activity.Event{})
	if len(sink.records) != 0 {
		t.Fatalf("expected no records for empty event, got %d", len(sink.records))
	}
	if err := (usersink.Hook{}).Notify(context.Background(), activity.Event{Verb: "x"}); err != nil {
		t.Fatalf("nil sink should be a no-op, got %v", err)
	}
}

func TestHookWiredIntoStore(t *testing.T) {
	sink := &recordingSink{err: errors.New("sink down")}
	store, err := opts.New(opts.WithActivityHooks(activity.Hooks{usersink.Hook{Sink: sink}}))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Set("loader.combo_min_pred", 7); err != nil {
		t.Fatalf("sink failures must not fail Set: %v", err)
	}

	var sawSet bool
	for _, record := range sink.records {
		if record.Verb == activity.VerbValueSet && record.ObjectID == "options/loader.combo_min_pred" {
			sawSet = true
		}
	}
	if !sawSet {
		t.Fatalf("expected value set record, got %+v", sink.records)
	}
}
