package analyzer

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Minthug/chzzk-chat-analyzer/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

// Handler exposes analyzer HTTP endpoints using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Logger, and optional Metrics.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// Routes mounts every analyzer endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/config", h.GetConfig)
	r.Put("/config", h.PutConfig)
	r.Get("/streams", h.ListSummaries)
	r.Route("/streams/{stream_id}", func(r chi.Router) {
		r.Get("/", h.GetSummary)
		r.Delete("/", h.ClearStream)
		r.Post("/open", h.OpenStream)
		r.Post("/counts", h.RecordCount)
		r.Post("/flush", h.Flush)
		r.Post("/end", h.EndStream)
		r.Post("/restore", h.Restore)
		r.Put("/spikes/{window_index}/note", h.AnnotateSpike)
	})
}

type openRequest struct {
	Mode Mode `json:"mode"`
}

type ingestResponse struct {
	Dropped bool   `json:"dropped"`
	Error   string `json:"error,omitempty"`
	Closed  int    `json:"closed"`
	Spikes  int    `json:"spikes"`
}

type noteRequest struct {
	Keyword string `json:"keyword"`
	Note    string `json:"note"`
}

// spikeView is a spike rounded for display with a human-readable anchor.
type spikeView struct {
	SpikeRecord
	Label string `json:"label"`
}

type summaryView struct {
	Summary
	Spikes        []spikeView `json:"spikes"`
	KeywordSpikes []spikeView `json:"keyword_spikes"`
}

func newSummaryView(s Summary) summaryView {
	return summaryView{
		Summary:       s,
		Spikes:        spikeViews(s.Mode, s.Spikes),
		KeywordSpikes: spikeViews(s.Mode, s.KeywordSpikes),
	}
}

func spikeViews(mode Mode, spikes []SpikeRecord) []spikeView {
	out := make([]spikeView, 0, len(spikes))
	for _, sp := range spikes {
		out = append(out, spikeView{SpikeRecord: RoundSpike(sp), Label: FormatOffset(mode, sp.AnchorTime)})
	}
	return out
}

// OpenStream handles POST /streams/{stream_id}/open.
func (h *Handler) OpenStream(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))

	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Mode.Valid() {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := h.svc.OpenStream(streamID, req.Mode); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.log.Info("stream opened",
		slog.String("stream_id", string(streamID)),
		slog.String("mode", string(req.Mode)))
	w.WriteHeader(http.StatusNoContent)
}

// RecordCount handles POST /streams/{stream_id}/counts.
// Body: { "mode": "recorded", "media_seconds": 61.5, "count": 3, "tags": ["ㅋㅋ"] }.
// Malformed events are acknowledged with dropped=true and change nothing.
func (h *Handler) RecordCount(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))
	if streamID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var ev CountEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		h.log.Debug("invalid count body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	ev.StreamID = streamID

	events, err := h.svc.RecordCount(ev)
	if err != nil {
		if errors.Is(err, ErrEmptyStreamID) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if h.metrics != nil {
			h.metrics.IncEventsDropped()
		}
		writeJSON(w, http.StatusAccepted, ingestResponse{Dropped: true, Error: err.Error()})
		return
	}

	if h.metrics != nil {
		h.metrics.AddCountsIngested(ev.Count)
	}
	writeJSON(w, http.StatusAccepted, countEvents(events))
}

func countEvents(events []Event) ingestResponse {
	var resp ingestResponse
	for _, ev := range events {
		switch ev.Type {
		case EventWindowClosed:
			resp.Closed++
		case EventSpikeDetected, EventKeywordSpikeDetected:
			resp.Spikes++
		}
	}
	return resp
}

// Flush handles POST /streams/{stream_id}/flush.
func (h *Handler) Flush(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))
	events := h.svc.CloseCurrentWindow(streamID)
	writeJSON(w, http.StatusOK, countEvents(events))
}

// EndStream handles POST /streams/{stream_id}/end.
func (h *Handler) EndStream(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))
	events := h.svc.EndStream(streamID)
	writeJSON(w, http.StatusOK, countEvents(events))
}

// ClearStream handles DELETE /streams/{stream_id}.
func (h *Handler) ClearStream(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))
	h.svc.ClearStream(streamID)
	h.log.Info("stream cleared", slog.String("stream_id", string(streamID)))
	w.WriteHeader(http.StatusNoContent)
}

// Restore handles POST /streams/{stream_id}/restore.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))

	var snap Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := h.svc.RestoreHistorySummary(streamID, snap); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	sum, _ := h.svc.GetStreamSummary(streamID)
	writeJSON(w, http.StatusOK, newSummaryView(sum))
}

// AnnotateSpike handles PUT /streams/{stream_id}/spikes/{window_index}/note.
func (h *Handler) AnnotateSpike(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))
	idx, err := strconv.Atoi(chi.URLParam(r, "window_index"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	sp, err := h.svc.AnnotateSpike(streamID, idx, req.Keyword, req.Note)
	if err != nil {
		if errors.Is(err, ErrSpikeNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.log.Error("annotate spike failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, RoundSpike(sp))
}

// GetSummary handles GET /streams/{stream_id}. Unknown streams return an
// empty summary rather than 404.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))
	sum, _ := h.svc.GetStreamSummary(streamID)
	writeJSON(w, http.StatusOK, newSummaryView(sum))
}

// ListSummaries handles GET /streams.
func (h *Handler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	all := h.svc.GetAllSummaries()
	out := make(map[StreamID]summaryView, len(all))
	for id, sum := range all {
		out[id] = newSummaryView(sum)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetConfig handles GET /config.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Config())
}

// PutConfig handles PUT /config. Omitted fields keep their current value.
func (h *Handler) PutConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.svc.Config()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := h.svc.SetConfig(cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Config())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
