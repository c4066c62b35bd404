package audit

import (
	"os"
	"testing"
	"time"
)

func TestAppendAssignsTimestampAndActor(t *testing.T) {
	log := New(t.TempDir())

	if err := log.Append(Event{Type: EventGatewayStart}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, err := log.ReadRecent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(got.Events))
	}
	ev := got.Events[0]
	if ev.TS.IsZero() {
		t.Error("timestamp not assigned")
	}
	if ev.Actor != ActorUnknown {
		t.Errorf("actor = %q, want %q", ev.Actor, ActorUnknown)
	}
}

func TestReadRecentPreservesWriteOrder(t *testing.T) {
	log := New(t.TempDir())

	types := []EventType{EventGatewayStart, EventTelegramConnect, EventPermissionsSet}
	for _, typ := range types {
		if err := log.Append(Event{Type: typ, Actor: ActorDesktopUI}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := log.ReadRecent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Events) != len(types) {
		t.Fatalf("got %d events, want %d", len(got.Events), len(types))
	}
	for i, typ := range types {
		if got.Events[i].Type != typ {
			t.Errorf("events[%d].Type = %q, want %q", i, got.Events[i].Type, typ)
		}
	}
	if got.Truncated {
		t.Error("truncated = true, want false")
	}
}

func TestReadRecentLimitAndTruncation(t *testing.T) {
	log := New(t.TempDir())

	for i := 0; i < 5; i++ {
		if err := log.Append(Event{Type: EventPermissionsSet, Actor: ActorDesktopUI,
			Details: map[string]any{"n": i}}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := log.ReadRecent(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(got.Events))
	}
	if !got.Truncated {
		t.Error("truncated = false, want true")
	}
	// The two newest entries, still in write order.
	if got.Events[0].Details["n"].(float64) != 3 || got.Events[1].Details["n"].(float64) != 4 {
		t.Errorf("unexpected tail entries: %v", got.Events)
	}
}

func TestReadRecentSkipsMalformedLines(t *testing.T) {
	log := New(t.TempDir())
	if err := log.Append(Event{Type: EventGatewayStop, Actor: ActorDesktopUI}); err != nil {
		t.Fatal(err)
	}

	// Simulate a partially written trailing line after a crash.
	f, err := os.OpenFile(log.Path(), os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString(`{"ts":"2026-01-01T00:00:00Z","type":"gatew`)
	f.Close()

	got, err := log.ReadRecent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Events) != 1 || got.Events[0].Type != EventGatewayStop {
		t.Errorf("events = %v, want only the well-formed entry", got.Events)
	}
}

func TestReadRecentZeroOrNegativeLimit(t *testing.T) {
	log := New(t.TempDir())
	if err := log.Append(Event{Type: EventGatewayStart, Actor: ActorCLI}); err != nil {
		t.Fatal(err)
	}

	for _, limit := range []int{0, -5} {
		got, err := log.ReadRecent(limit)
		if err != nil {
			t.Fatalf("ReadRecent(%d) error = %v", limit, err)
		}
		if len(got.Events) != 0 || got.Truncated {
			t.Errorf("ReadRecent(%d) = %+v, want empty", limit, got)
		}
	}
}

func TestReadRecentMissingFile(t *testing.T) {
	log := New(t.TempDir())

	got, err := log.ReadRecent(10)
	if err != nil {
		t.Fatalf("ReadRecent() error = %v, want nil for missing journal", err)
	}
	if len(got.Events) != 0 {
		t.Errorf("events = %v, want empty", got.Events)
	}
}

func TestAppendKeepsProvidedTimestamp(t *testing.T) {
	log := New(t.TempDir())
	ts := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	if err := log.Append(Event{TS: ts, Type: EventDiagnosticsRun, Actor: ActorCLI}); err != nil {
		t.Fatal(err)
	}
	got, err := log.ReadRecent(1)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Events[0].TS.Equal(ts) {
		t.Errorf("ts = %v, want %v", got.Events[0].TS, ts)
	}
}
