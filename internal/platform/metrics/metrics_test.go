package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Minthug/chzzk-chat-analyzer/internal/platform/logger"
)

func scrape(t *testing.T, m *Metrics, update func()) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler(update).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func assertContains(t *testing.T, body string, lines ...string) {
	t.Helper()
	for _, l := range lines {
		if !strings.Contains(body, l) {
			t.Errorf("scrape missing %q", l)
		}
	}
}

func TestRequestMiddleware(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))

	for _, path := range []string{"/streams/v1/counts", "/bad", "/metrics"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assertContains(t, scrape(t, m, nil),
		"chat_analyzer_requests_total 2",
		"chat_analyzer_errors_total 1")
}

func TestCounters(t *testing.T) {
	m := New()
	m.AddCountsIngested(5)
	m.AddCountsIngested(-3)
	m.IncWindowsClosed()
	m.IncEventsDropped()
	m.IncListenerFailures()
	m.IncSpikes(KindPrimary)
	m.IncSpikes(KindKeyword)
	m.IncSpikes(KindKeyword)

	assertContains(t, scrape(t, m, nil),
		"chat_analyzer_counts_ingested_total 5",
		"chat_analyzer_windows_closed_total 1",
		"chat_analyzer_events_dropped_total 1",
		"chat_analyzer_listener_failures_total 1",
		`chat_analyzer_spikes_detected_total{kind="primary"} 1`,
		`chat_analyzer_spikes_detected_total{kind="keyword"} 2`)
}

func TestHandler_updates_gauges(t *testing.T) {
	m := New()
	assertContains(t, scrape(t, m, func() { m.SetActiveStreams(3) }), "chat_analyzer_active_streams 3")
}

func TestMiddleware_chain_keeps_hijacker(t *testing.T) {
	m := New()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := w.(http.Hijacker); !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	h := logger.RequestLogger(logger.Discard())(RequestMiddleware(m)(inner))

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ws")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, wrapped writer lost http.Hijacker", resp.StatusCode)
	}
	assertContains(t, scrape(t, m, nil), "chat_analyzer_requests_total 1", "chat_analyzer_errors_total 0")
}
