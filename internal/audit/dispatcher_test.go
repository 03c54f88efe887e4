package audit

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink, nil)

	for _, name := range []string{"login_success", "refresh_success", "logout"} {
		d.Emit(context.Background(), Event{EventType: name, Success: true})
	}
	d.Close()

	want := []string{"login_success", "refresh_success", "logout"}
	for _, name := range want {
		select {
		case ev := <-sink.Events():
			if ev.EventType != name {
				t.Fatalf("expected %s, got %s", name, ev.EventType)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", name)
		}
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{}, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher should report zero drops")
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Emit(context.Context, Event) { <-s.release }

func TestDropIfFullCountsDrops(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink, zap.New(core))

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "login_failure"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a blocked sink and a one-slot buffer")
	}
	if logs.FilterMessage("audit queue full, dropping events").Len() != 1 {
		t.Fatalf("expected one drop warning, got %d", logs.Len())
	}
	close(sink.release)
	d.Close()
}

func TestBlockingEmitHonoursContext(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink, nil)

	// One event is held by the sink, one fills the queue.
	d.Emit(context.Background(), Event{EventType: "a"})
	d.Emit(context.Background(), Event{EventType: "b"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		d.Emit(ctx, Event{EventType: "c"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit ignored its context")
	}

	close(sink.release)
	d.Close()
	d.Close()
	d.Emit(context.Background(), Event{EventType: "after close"})
}

func TestZapSinkLevels(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewZapSink(zap.New(core))

	sink.Emit(context.Background(), Event{EventType: "login_success", UserID: "u1", Success: true})
	sink.Emit(context.Background(), Event{EventType: "login_failed", Error: "invalid credentials"})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Level != zap.InfoLevel || entries[1].Level != zap.WarnLevel {
		t.Fatalf("unexpected levels: %v %v", entries[0].Level, entries[1].Level)
	}
	if entries[1].ContextMap()["error"] != "invalid credentials" {
		t.Fatalf("missing error field: %v", entries[1].ContextMap())
	}
}
