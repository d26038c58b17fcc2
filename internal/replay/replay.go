// Package replay drives a Service from a newline-delimited JSON event log.
package replay

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Minthug/chzzk-chat-analyzer/internal/analyzer"
)

// Operations a log line may carry. An empty op is a count event.
const (
	OpCount = "count"
	OpOpen  = "open"
	OpFlush = "flush"
	OpEnd   = "end"
	OpClear = "clear"
)

// Line is one entry of the event log.
type Line struct {
	Op string `json:"op,omitempty"`
	analyzer.CountEvent
}

// Stats summarizes a replay.
type Stats struct {
	Lines         int
	Dropped       int
	WindowsClosed int
	Spikes        int
	KeywordSpikes int
}

// Options controls what Run prints.
type Options struct {
	// Windows prints every closed window, not only spikes.
	Windows bool
}

// Run feeds every line of r through svc in order and writes one JSON object
// per reported event to w. Malformed events are counted as dropped; a line
// that is not valid JSON stops the replay with an error.
func Run(r io.Reader, svc *analyzer.Service, w io.Writer, opts Options) (Stats, error) {
	var st Stats
	enc := json.NewEncoder(w)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		st.Lines++

		var ln Line
		if err := json.Unmarshal([]byte(text), &ln); err != nil {
			return st, fmt.Errorf("line %d: %w", st.Lines, err)
		}

		events, err := apply(svc, ln)
		if err != nil {
			if errors.Is(err, analyzer.ErrMalformedEvent) || errors.Is(err, analyzer.ErrModeUnknown) || errors.Is(err, analyzer.ErrEmptyStreamID) {
				st.Dropped++
				continue
			}
			return st, fmt.Errorf("line %d: %w", st.Lines, err)
		}

		for _, ev := range events {
			switch ev.Type {
			case analyzer.EventWindowClosed:
				st.WindowsClosed++
				if !opts.Windows {
					continue
				}
			case analyzer.EventSpikeDetected:
				st.Spikes++
			case analyzer.EventKeywordSpikeDetected:
				st.KeywordSpikes++
			default:
				continue
			}
			if err := enc.Encode(report(ev)); err != nil {
				return st, fmt.Errorf("write report: %w", err)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return st, fmt.Errorf("read log: %w", err)
	}
	return st, nil
}

func apply(svc *analyzer.Service, ln Line) ([]analyzer.Event, error) {
	switch ln.Op {
	case "", OpCount:
		return svc.RecordCount(ln.CountEvent)
	case OpOpen:
		return nil, svc.OpenStream(ln.StreamID, ln.Mode)
	case OpFlush:
		return svc.CloseCurrentWindow(ln.StreamID), nil
	case OpEnd:
		return svc.EndStream(ln.StreamID), nil
	case OpClear:
		svc.ClearStream(ln.StreamID)
		return nil, nil
	}
	return nil, fmt.Errorf("unknown op %q", ln.Op)
}

type reportLine struct {
	Type     analyzer.EventType    `json:"type"`
	StreamID analyzer.StreamID     `json:"stream_id"`
	Keyword  string                `json:"keyword,omitempty"`
	Label    string                `json:"label"`
	Window   analyzer.ClosedWindow `json:"window"`
	ZScore   *float64              `json:"z_score,omitempty"`
	Mean     *float64              `json:"baseline_mean,omitempty"`
	Ratio    *float64              `json:"ratio,omitempty"`
}

func report(ev analyzer.Event) reportLine {
	rl := reportLine{
		Type:     ev.Type,
		StreamID: ev.StreamID,
		Keyword:  ev.Keyword,
		Label:    analyzer.FormatOffset(ev.Mode, ev.Window.AnchorTime),
		Window:   ev.Window,
	}
	if ev.Spike != nil {
		sp := analyzer.RoundSpike(*ev.Spike)
		rl.ZScore = &sp.ZScore
		rl.Mean = &sp.BaselineMean
		rl.Ratio = sp.Ratio
	}
	return rl
}
