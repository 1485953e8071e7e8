package metrics

import (
	"testing"
	"time"
)

func TestAsyncObserverDeliversBeforeClose(t *testing.T) {
	mem := NewMemoryObserver()
	async := NewAsyncObserver(mem, 8)
	for i := 0; i < 3; i++ {
		async.RecordEvent(MetricsEvent{Name: EventSessionState, Time: time.Now()})
	}
	async.Close()
	if got := mem.Count(EventSessionState); got != 3 {
		t.Fatalf("expected 3 events, got %d", got)
	}
	async.RecordEvent(MetricsEvent{Name: EventSessionState})
	if got := mem.Count(EventSessionState); got != 3 {
		t.Fatalf("expected closed observer to ignore events, got %d", got)
	}
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopObserver); !ok {
		t.Fatalf("expected noop observer for nil")
	}
	mem := NewMemoryObserver()
	if OrNoop(mem) != Observer(mem) {
		t.Fatalf("expected observer passthrough")
	}
}
