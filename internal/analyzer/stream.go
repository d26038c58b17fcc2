package analyzer

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// maxWindowIndex bounds recorded window indices so they stay exact in both
// int and float64.
const maxWindowIndex = 1 << 40

func newStreamState(id StreamID, cfg Config, now time.Time) *StreamState {
	return &StreamState{
		ID:                  id,
		Mode:                ModeUnknown,
		WindowLengthSeconds: cfg.WindowLengthSeconds,
		StartedAt:           now,
		primary:             newWindowState("", cfg.WindowRetention),
		keywords:            make(map[string]*windowState),
		keywordRetention:    cfg.KeywordWindowRetention,
	}
}

func (s *StreamState) clock() clock {
	return clock{mode: s.Mode, windowSeconds: s.WindowLengthSeconds}
}

// adoptMode upgrades an unknown stream to m. A stream whose mode is already
// set keeps it.
func (s *StreamState) adoptMode(m Mode) {
	if s.Mode == ModeUnknown && (m == ModeLive || m == ModeRecorded) {
		s.Mode = m
	}
}

// position extracts the time position ev carries for the stream's mode.
func (s *StreamState) position(ev CountEvent) (float64, error) {
	switch s.Mode {
	case ModeLive:
		if ev.WallTimeMs == nil {
			return 0, fmt.Errorf("%w: live event without wall time", ErrMalformedEvent)
		}
		return float64(*ev.WallTimeMs), nil
	case ModeRecorded:
		if ev.MediaSeconds == nil {
			return 0, fmt.Errorf("%w: recorded event without media position", ErrMalformedEvent)
		}
		pos := *ev.MediaSeconds
		if math.IsNaN(pos) || math.IsInf(pos, 0) || pos < 0 {
			return 0, fmt.Errorf("%w: media position %v", ErrMalformedEvent, pos)
		}
		if pos/float64(s.WindowLengthSeconds) > maxWindowIndex {
			return 0, fmt.Errorf("%w: media position %v out of range", ErrMalformedEvent, pos)
		}
		return pos, nil
	}
	return 0, ErrModeUnknown
}

// ingest applies one event. State is untouched when an error is returned.
func (s *StreamState) ingest(ev CountEvent, cfg Config) ([]Event, error) {
	if ev.Count < 0 {
		return nil, fmt.Errorf("%w: negative count %d", ErrMalformedEvent, ev.Count)
	}
	prev := s.Mode
	s.adoptMode(ev.Mode)
	pos, err := s.position(ev)
	if err != nil {
		s.Mode = prev
		return nil, err
	}

	d := cfg.detection()
	events := s.toEvents(s.primary.advance(s.clock(), d, pos, ev.Count))
	events = append(events, s.toEvents(s.advanceKeywords(cfg.Keywords, ev.Tags, d, pos))...)
	s.TotalCount += int64(ev.Count)
	return events, nil
}

// flush force-closes the open primary and keyword windows.
func (s *StreamState) flush(cfg Config) []Event {
	d := cfg.detection()
	var results []closeResult
	if res, ok := s.primary.flush(s.clock(), d); ok {
		results = append(results, res)
	}
	for _, kw := range s.keywordNames() {
		if res, ok := s.keywords[kw].flush(s.clock(), d); ok {
			results = append(results, res)
		}
	}
	return s.toEvents(results)
}

// toEvents converts close results into outbound notifications. Keyword
// windows only surface when they spike.
func (s *StreamState) toEvents(results []closeResult) []Event {
	var events []Event
	for _, r := range results {
		if r.keyword == "" {
			events = append(events, Event{Type: EventWindowClosed, StreamID: s.ID, Mode: s.Mode, Window: r.window})
		}
		if r.spike == nil {
			continue
		}
		sp := *r.spike
		typ := EventSpikeDetected
		if r.keyword != "" {
			typ = EventKeywordSpikeDetected
		}
		events = append(events, Event{Type: typ, StreamID: s.ID, Mode: s.Mode, Keyword: r.keyword, Window: r.window, Spike: &sp})
	}
	return events
}

func (s *StreamState) keywordNames() []string {
	names := make([]string, 0, len(s.keywords))
	for kw := range s.keywords {
		names = append(names, kw)
	}
	sort.Strings(names)
	return names
}

// keywordSpikes merges every keyword's spikes ordered by anchor time.
func (s *StreamState) keywordSpikes() []SpikeRecord {
	out := []SpikeRecord{}
	for _, kw := range s.keywordNames() {
		out = append(out, s.keywords[kw].spikes...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AnchorTime < out[j].AnchorTime })
	return out
}

func (s *StreamState) summary(tail int) Summary {
	return Summary{
		StreamID:      s.ID,
		Mode:          s.Mode,
		StartedAt:     s.StartedAt,
		WindowSeconds: s.WindowLengthSeconds,
		CurrentIndex:  s.primary.currentIndex,
		CurrentCount:  s.primary.currentCount,
		ClosedWindows: s.primary.tail(tail),
		Spikes:        append([]SpikeRecord{}, s.primary.spikes...),
		KeywordSpikes: s.keywordSpikes(),
		TotalCount:    s.TotalCount,
	}
}

func (s *StreamState) snapshot(tail int) Snapshot {
	return Snapshot{
		StreamID:      s.ID,
		Mode:          s.Mode,
		StartedAt:     s.StartedAt,
		TotalCount:    s.TotalCount,
		Windows:       s.primary.tail(tail),
		Spikes:        append([]SpikeRecord{}, s.primary.spikes...),
		KeywordSpikes: s.keywordSpikes(),
	}
}

// restore replaces spike history and counters from snap and resets every
// window-tracking field. Window history in snap is ignored: the open window
// has no correspondence to time that passed while the stream was dormant.
func (s *StreamState) restore(snap Snapshot) {
	s.adoptMode(snap.Mode)
	s.TotalCount = snap.TotalCount
	if !snap.StartedAt.IsZero() {
		s.StartedAt = snap.StartedAt
	}

	s.primary.reset()
	s.primary.spikes = primaryOnly(snap.Spikes)

	s.keywords = make(map[string]*windowState)
	for _, sp := range snap.KeywordSpikes {
		if sp.Keyword == "" {
			continue
		}
		ws := s.keywordState(sp.Keyword)
		ws.spikes = append(ws.spikes, sp)
	}
}

func primaryOnly(spikes []SpikeRecord) []SpikeRecord {
	out := make([]SpikeRecord, 0, len(spikes))
	for _, sp := range spikes {
		sp.Keyword = ""
		out = append(out, sp)
	}
	return out
}

// annotate sets the note on the most recent spike at windowIndex for the
// given keyword ("" for the primary stream).
func (s *StreamState) annotate(windowIndex int, keyword, note string) (SpikeRecord, error) {
	ws := s.primary
	if keyword != "" {
		var ok bool
		if ws, ok = s.keywords[keyword]; !ok {
			return SpikeRecord{}, ErrSpikeNotFound
		}
	}
	for i := len(ws.spikes) - 1; i >= 0; i-- {
		if ws.spikes[i].WindowIndex == windowIndex {
			ws.spikes[i].Note = note
			return ws.spikes[i], nil
		}
	}
	return SpikeRecord{}, ErrSpikeNotFound
}
