package goPasskey

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type captureSink struct {
	events chan AuditEvent
}

func newCaptureSink(buffer int) *captureSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &captureSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *captureSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *captureSink) waitFor(t *testing.T, eventType string) AuditEvent {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-s.events:
			if event.EventType == eventType {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for audit event %q", eventType)
		}
	}
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	ctx := context.Background()
	cfg := passkeyTestConfig()
	cfg.Audit.Enabled = false

	sink := &countingSink{}
	engine, done := buildTestEngine(t, cfg, newMemoryProvider(), sink)
	defer done()

	_, _ = engine.BeginLogin(ctx, "nobody")
	time.Sleep(30 * time.Millisecond)

	if sink.Count() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.Count())
	}
}

func TestAuditLoginFailureEvent(t *testing.T) {
	ctx := WithClientIP(context.Background(), "203.0.113.1")
	cfg := passkeyTestConfig()
	cfg.Audit.Enabled = true

	sink := newCaptureSink(16)
	engine, done := buildTestEngine(t, cfg, newMemoryProvider(), sink)
	defer done()

	if _, err := engine.BeginLogin(ctx, "nobody"); !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("expected ErrIdentityNotFound, got %v", err)
	}

	event := sink.waitFor(t, "login_failure")
	if event.Success {
		t.Fatal("expected failure event")
	}
	if event.Username != "nobody" {
		t.Fatalf("unexpected username: %q", event.Username)
	}
	if event.IP != "203.0.113.1" {
		t.Fatalf("unexpected IP: %q", event.IP)
	}
	if event.Error != "identity_not_found" {
		t.Fatalf("unexpected error code: %q", event.Error)
	}
}

func TestAuditDropIfFullCountsDrops(t *testing.T) {
	ctx := context.Background()

	sink := newGateSink()
	d := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink)

	// First event occupies the worker, second fills the buffer, the rest drop.
	for i := 0; i < 5; i++ {
		d.Emit(ctx, AuditEvent{EventType: "login_failure"})
	}
	time.Sleep(20 * time.Millisecond)

	if d.Dropped() == 0 {
		t.Fatal("expected dropped events with a full buffer")
	}

	close(sink.gate)
	d.Close()
}

func TestAuditCloseDrainsBuffer(t *testing.T) {
	ctx := context.Background()

	sink := &countingSink{}
	d := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 64,
		DropIfFull: false,
	}, sink)

	const emitted = 20
	for i := 0; i < emitted; i++ {
		d.Emit(ctx, AuditEvent{EventType: "refresh_success"})
	}
	d.Close()

	if got := sink.Count(); got != emitted {
		t.Fatalf("expected %d events after Close, got %d", emitted, got)
	}

	// Emit after Close must be a no-op.
	d.Emit(ctx, AuditEvent{EventType: "refresh_success"})
	if got := sink.Count(); got != emitted {
		t.Fatalf("expected no events after Close, got %d", got)
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: "login_success",
		UserID:    "u1",
		Success:   true,
	})

	line := buf.Bytes()
	if len(line) == 0 || line[len(line)-1] != '\n' {
		t.Fatal("expected a newline-terminated record")
	}

	var event AuditEvent
	if err := json.Unmarshal(line, &event); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if event.EventType != "login_success" || event.UserID != "u1" || !event.Success {
		t.Fatalf("unexpected event: %+v", event)
	}
}
