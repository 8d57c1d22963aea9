package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/foosbot/goalkeeper/internal/fault"
	"github.com/foosbot/goalkeeper/internal/message"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func (l *testLogger) contains(prefix string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func TestDispatcher_Handler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register(message.PowerOn, func(_ context.Context, e Event) error {
		got = e
		return nil
	})

	now := time.Now()
	if err := d.Dispatch(context.Background(), Event{Control: message.PowerOn, Timestamp: now}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got.Control != message.PowerOn || !got.Timestamp.Equal(now) {
		t.Errorf("handler got %+v", got)
	}
}

func TestDispatcher_UnknownControl(t *testing.T) {
	d, _ := newTestDispatcher(t)

	if err := d.Dispatch(context.Background(), Event{Control: message.Stop}); err == nil {
		t.Error("expected error for unknown control")
	}
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)
	d.Register(message.Stop, func(context.Context, Event) error { return nil })

	if !d.HasHandler(message.Stop) {
		t.Error("expected handler for stop")
	}
	if d.HasHandler(message.Start) {
		t.Error("unexpected handler for start")
	}
}

func TestDispatcher_GuardedRejectsWhenNotAllowed(t *testing.T) {
	d, logger := newTestDispatcher(t)

	allowed := false
	calls := 0
	d.Register(message.Start, func(context.Context, Event) error {
		calls++
		return nil
	}, Guarded(func() bool { return allowed }), Logged())

	err := d.Dispatch(context.Background(), Event{Control: message.Start})
	var gv *fault.GuardViolation
	if !errors.As(err, &gv) {
		t.Fatalf("expected GuardViolation, got %v", err)
	}
	if gv.Command != "start" {
		t.Errorf("expected command start, got %q", gv.Command)
	}
	if err.Error() != "Robot is at Stop state" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if calls != 0 {
		t.Errorf("handler ran %d times while guarded", calls)
	}
	if !logger.contains("INFO: control rejected") {
		t.Error("expected rejection to be logged")
	}

	allowed = true
	if err := d.Dispatch(context.Background(), Event{Control: message.Start}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(message.HomeAxis1, func(context.Context, Event) error { return nil }, Logged())
	if err := d.Dispatch(context.Background(), Event{Control: message.HomeAxis1, Timestamp: time.Now()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !logger.contains("DEBUG: handling control") {
		t.Error("expected 'handling control' log message")
	}
	if !logger.contains("DEBUG: control complete") {
		t.Error("expected 'control complete' log message")
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(message.PowerOn, func(context.Context, Event) error {
		return errors.New("motor driver missing")
	}, Logged())

	if err := d.Dispatch(context.Background(), Event{Control: message.PowerOn}); err == nil {
		t.Fatal("expected error")
	}
	if !logger.contains("ERROR: control failed") {
		t.Error("expected error log message")
	}
}
