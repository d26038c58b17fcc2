package analyzer

import (
	"testing"

	"github.com/Minthug/chzzk-chat-analyzer/internal/platform/logger"
)

func recorded(id StreamID, sec float64, count int, tags ...string) CountEvent {
	return CountEvent{StreamID: id, Mode: ModeRecorded, MediaSeconds: &sec, Count: count, Tags: tags}
}

func live(id StreamID, ms int64, count int, tags ...string) CountEvent {
	return CountEvent{StreamID: id, Mode: ModeLive, WallTimeMs: &ms, Count: count, Tags: tags}
}

func newTestService(t *testing.T, cfg Config) *Service {
	t.Helper()
	svc, err := NewService(NewRegistry(), cfg, logger.Discard())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

// feedRecorded sends one event per 30s window with the given counts,
// starting at window 0.
func feedRecorded(t *testing.T, svc *Service, id StreamID, counts []int) []Event {
	t.Helper()
	var all []Event
	for i, c := range counts {
		events, err := svc.RecordCount(recorded(id, float64(i*30), c))
		if err != nil {
			t.Fatalf("RecordCount window %d: %v", i, err)
		}
		all = append(all, events...)
	}
	return all
}

func eventsOfType(events []Event, typ EventType) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
