package analyzer

import (
	"fmt"
	"log/slog"
	"sync"
)

// Service is the engine's public surface. It serializes every operation on
// the registry, commits state, then publishes the resulting events in order.
type Service struct {
	mu       sync.Mutex
	reg      *Registry
	cfg      Config
	emitter  *Emitter
	log      *slog.Logger
	dispatch sync.Mutex
}

// NewService returns a Service over reg using cfg. Zero-valued numeric
// fields of cfg fall back to DefaultConfig.
func NewService(reg *Registry, cfg Config, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}
	cfg = withDefaults(cfg).normalized()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new service: %w", err)
	}
	return &Service{
		reg:     reg,
		cfg:     cfg,
		emitter: NewEmitter(log),
		log:     log,
	}, nil
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.WindowLengthSeconds == 0 {
		cfg.WindowLengthSeconds = def.WindowLengthSeconds
	}
	if cfg.ZThreshold == 0 {
		cfg.ZThreshold = def.ZThreshold
	}
	if cfg.LagSize == 0 {
		cfg.LagSize = def.LagSize
	}
	if cfg.WindowRetention == 0 {
		cfg.WindowRetention = def.WindowRetention
	}
	if cfg.KeywordWindowRetention == 0 {
		cfg.KeywordWindowRetention = 2 * cfg.LagSize
	}
	return cfg
}

// Subscribe registers a listener for emitted events.
func (s *Service) Subscribe(l Listener) (unsubscribe func()) {
	return s.emitter.Subscribe(l)
}

// OnListenerFailure sets a hook called whenever a listener panics.
func (s *Service) OnListenerFailure(fn func()) {
	s.emitter.OnFailure(fn)
}

// Config returns a copy of the current configuration.
func (s *Service) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.cfg
	cfg.Keywords = append([]string(nil), s.cfg.Keywords...)
	return cfg
}

// SetConfig replaces the configuration. An invalid config is rejected and
// the previous one retained. Already-closed windows are not re-evaluated.
func (s *Service) SetConfig(cfg Config) error {
	cfg = cfg.normalized()
	if err := cfg.Validate(); err != nil {
		s.log.Warn("config rejected", slog.String("error", err.Error()))
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.log.Info("config updated",
		slog.Int("window_length_seconds", cfg.WindowLengthSeconds),
		slog.Float64("z_threshold", cfg.ZThreshold),
		slog.Int("keywords", len(cfg.Keywords)))
	return nil
}

// OpenStream creates the stream if needed and adopts mode.
func (s *Service) OpenStream(id StreamID, mode Mode) error {
	if id == "" {
		return ErrEmptyStreamID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.reg.resolve(id, s.cfg)
	st.adoptMode(mode)
	return nil
}

// RecordCount ingests one event. A malformed event returns an error wrapping
// ErrMalformedEvent or ErrModeUnknown and leaves window state untouched.
func (s *Service) RecordCount(ev CountEvent) ([]Event, error) {
	if ev.StreamID == "" {
		return nil, ErrEmptyStreamID
	}
	s.mu.Lock()
	_, existed := s.reg.lookup(ev.StreamID)
	st := s.reg.resolve(ev.StreamID, s.cfg)
	events, err := st.ingest(ev, s.cfg)
	if err != nil {
		if !existed {
			s.reg.remove(ev.StreamID)
		}
		s.mu.Unlock()
		s.log.Debug("count event dropped",
			slog.String("stream_id", string(ev.StreamID)),
			slog.String("error", err.Error()))
		return nil, err
	}
	s.publishLocked(events)
	return events, nil
}

// CloseCurrentWindow force-closes the open window of id. Unknown streams and
// streams without an open window produce no events.
func (s *Service) CloseCurrentWindow(id StreamID) []Event {
	s.mu.Lock()
	st, ok := s.reg.lookup(id)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	events := st.flush(s.cfg)
	s.publishLocked(events)
	return events
}

// EndStream flushes id and then discards its state.
func (s *Service) EndStream(id StreamID) []Event {
	s.mu.Lock()
	st, ok := s.reg.lookup(id)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	events := st.flush(s.cfg)
	s.reg.remove(id)
	events = append(events, Event{Type: EventStreamEnded, StreamID: id, Mode: st.Mode})
	s.publishLocked(events)
	s.log.Info("stream ended", slog.String("stream_id", string(id)), slog.Int64("total_count", st.TotalCount))
	return events
}

// ClearStream discards all state for id. Later events for id start fresh.
func (s *Service) ClearStream(id StreamID) {
	s.mu.Lock()
	if !s.reg.remove(id) {
		s.mu.Unlock()
		return
	}
	s.publishLocked([]Event{{Type: EventStreamCleared, StreamID: id}})
}

// RestoreHistorySummary replaces the spike history, total count and start
// time of id from snap. Window tracking restarts from index zero. Emits
// EventStreamRestored.
func (s *Service) RestoreHistorySummary(id StreamID, snap Snapshot) error {
	if id == "" {
		return ErrEmptyStreamID
	}
	s.mu.Lock()
	st := s.reg.resolve(id, s.cfg)
	st.restore(snap)
	s.publishLocked([]Event{{Type: EventStreamRestored, StreamID: id, Mode: st.Mode}})
	return nil
}

// AnnotateSpike sets the caller-owned note on a spike. keyword is empty for
// primary spikes.
func (s *Service) AnnotateSpike(id StreamID, windowIndex int, keyword, note string) (SpikeRecord, error) {
	s.mu.Lock()
	st, ok := s.reg.lookup(id)
	if !ok {
		s.mu.Unlock()
		return SpikeRecord{}, ErrSpikeNotFound
	}
	sp, err := st.annotate(windowIndex, keyword, note)
	if err != nil {
		s.mu.Unlock()
		return SpikeRecord{}, err
	}
	s.publishLocked([]Event{{Type: EventSpikeAnnotated, StreamID: id, Mode: st.Mode, Keyword: keyword, Window: sp.ClosedWindow, Spike: &sp}})
	return sp, nil
}

// GetStreamSummary returns the summary of id. An unknown stream is not an
// error: ok is false and the summary is empty.
func (s *Service) GetStreamSummary(id StreamID) (Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.reg.lookup(id)
	if !ok {
		return emptySummary(id), false
	}
	return st.summary(s.cfg.SummaryTail), true
}

// GetAllSummaries returns a summary for every registered stream.
func (s *Service) GetAllSummaries() map[StreamID]Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[StreamID]Summary, s.reg.Len())
	for _, id := range s.reg.ids() {
		if st, ok := s.reg.lookup(id); ok {
			out[id] = st.summary(s.cfg.SummaryTail)
		}
	}
	return out
}

// Snapshot captures the restorable state of id.
func (s *Service) Snapshot(id StreamID) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.reg.lookup(id)
	if !ok {
		return Snapshot{}, false
	}
	return st.snapshot(s.cfg.WindowRetention), true
}

// ActiveStreamCount returns the number of registered streams.
func (s *Service) ActiveStreamCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Len()
}

// publishLocked releases s.mu and delivers events. The dispatch lock is
// taken before s.mu is released so that events reach listeners in commit order.
func (s *Service) publishLocked(events []Event) {
	s.dispatch.Lock()
	s.mu.Unlock()
	defer s.dispatch.Unlock()

	for _, ev := range events {
		if ev.Spike != nil && ev.Type != EventSpikeAnnotated {
			s.log.Info("spike detected",
				slog.String("stream_id", string(ev.StreamID)),
				slog.String("keyword", ev.Keyword),
				slog.Int("window_index", ev.Spike.WindowIndex),
				slog.Int("count", ev.Spike.Count),
				slog.Float64("z_score", ev.Spike.ZScore))
		}
	}
	s.emitter.Publish(events...)
}

func emptySummary(id StreamID) Summary {
	return Summary{
		StreamID:      id,
		Mode:          ModeUnknown,
		ClosedWindows: []ClosedWindow{},
		Spikes:        []SpikeRecord{},
		KeywordSpikes: []SpikeRecord{},
	}
}
