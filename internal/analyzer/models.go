package analyzer

import "time"

// StreamID uniquely identifies a piece of content being watched (a live
// broadcast or a recorded video).
type StreamID string

// Mode selects the clock that drives windowing for a stream.
type Mode string

const (
	// ModeUnknown is the initial mode; it may be upgraded once.
	ModeUnknown Mode = "unknown"
	// ModeLive windows on wall-clock milliseconds.
	ModeLive Mode = "live"
	// ModeRecorded windows on the media timeline in seconds.
	ModeRecorded Mode = "recorded"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeUnknown, ModeLive, ModeRecorded:
		return true
	}
	return false
}

// CountEvent is one observed batch of counted items.
// WallTimeMs is required in live mode, MediaSeconds in recorded mode.
type CountEvent struct {
	StreamID     StreamID `json:"stream_id"`
	Mode         Mode     `json:"mode"`
	WallTimeMs   *int64   `json:"wall_time_ms,omitempty"`
	MediaSeconds *float64 `json:"media_seconds,omitempty"`
	Count        int      `json:"count"`
	Tags         []string `json:"tags,omitempty"`
}

// ClosedWindow is an immutable record of a finalized window. AnchorTime is
// wall-clock milliseconds for live streams and timeline seconds for recorded
// streams.
type ClosedWindow struct {
	WindowIndex int     `json:"window_index"`
	AnchorTime  float64 `json:"anchor_time"`
	Count       int     `json:"count"`
}

// SpikeRecord is a closed window flagged as anomalous. Keyword is empty for
// primary spikes. Note is owned by the caller and never read by the engine.
type SpikeRecord struct {
	ClosedWindow
	Keyword      string   `json:"keyword,omitempty"`
	ZScore       float64  `json:"z_score"`
	BaselineMean float64  `json:"baseline_mean"`
	BaselineStd  float64  `json:"baseline_std"`
	Ratio        *float64 `json:"ratio"`
	Note         string   `json:"note,omitempty"`
}

// windowState is the per-pipeline accumulator shared by the primary stream
// and every keyword sub-stream.
type windowState struct {
	keyword      string
	currentIndex int
	currentCount int
	anchor       float64
	anchored     bool
	closed       []ClosedWindow
	spikes       []SpikeRecord
	retention    int
}

// StreamState is the top-level in-memory representation of one stream.
type StreamState struct {
	ID                  StreamID
	Mode                Mode
	WindowLengthSeconds int
	StartedAt           time.Time
	TotalCount          int64

	primary          *windowState
	keywords         map[string]*windowState
	keywordRetention int
}

// Summary is the query view of a stream.
type Summary struct {
	StreamID      StreamID       `json:"stream_id"`
	Mode          Mode           `json:"mode"`
	StartedAt     time.Time      `json:"started_at"`
	WindowSeconds int            `json:"window_length_seconds"`
	CurrentIndex  int            `json:"current_window_index"`
	CurrentCount  int            `json:"current_window_count"`
	ClosedWindows []ClosedWindow `json:"closed_windows"`
	Spikes        []SpikeRecord  `json:"spikes"`
	KeywordSpikes []SpikeRecord  `json:"keyword_spikes"`
	TotalCount    int64          `json:"total_count"`
}

// Snapshot is the restorable shape of a stream. Windows are carried for
// display only; restore ignores them.
type Snapshot struct {
	StreamID      StreamID       `json:"stream_id"`
	Mode          Mode           `json:"mode"`
	StartedAt     time.Time      `json:"started_at"`
	TotalCount    int64          `json:"total_count"`
	Windows       []ClosedWindow `json:"windows,omitempty"`
	Spikes        []SpikeRecord  `json:"spikes"`
	KeywordSpikes []SpikeRecord  `json:"keyword_spikes"`
}
