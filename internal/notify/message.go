package notify

import (
	"time"

	"github.com/Minthug/chzzk-chat-analyzer/internal/analyzer"

	"github.com/google/uuid"
)

// Message is the envelope for every pushed notification.
type Message struct {
	ID        string             `json:"id"`
	Type      analyzer.EventType `json:"type"`
	StreamID  analyzer.StreamID  `json:"stream_id"`
	Timestamp time.Time          `json:"timestamp"`
	Data      any                `json:"data,omitempty"`
}

// WindowData is the payload for window.closed messages.
type WindowData struct {
	Window analyzer.ClosedWindow `json:"window"`
}

// SpikeData is the payload for spike messages. The spike is rounded for
// display and Label is its human-readable anchor.
type SpikeData struct {
	Keyword string               `json:"keyword,omitempty"`
	Spike   analyzer.SpikeRecord `json:"spike"`
	Label   string               `json:"label"`
}

// newMessage converts an engine event into a push envelope.
func newMessage(ev analyzer.Event, now time.Time) Message {
	msg := Message{
		ID:        uuid.NewString(),
		Type:      ev.Type,
		StreamID:  ev.StreamID,
		Timestamp: now,
	}
	switch {
	case ev.Spike != nil:
		msg.Data = SpikeData{
			Keyword: ev.Keyword,
			Spike:   analyzer.RoundSpike(*ev.Spike),
			Label:   analyzer.FormatOffset(ev.Mode, ev.Spike.AnchorTime),
		}
	case ev.Type == analyzer.EventWindowClosed:
		msg.Data = WindowData{Window: ev.Window}
	}
	return msg
}
