package analyzer

import "math"

// clock holds the timing parameters a stream latched at creation.
type clock struct {
	mode          Mode
	windowSeconds int
}

// span returns the window length in the stream's own time unit.
func (c clock) span() float64 {
	if c.mode == ModeLive {
		return float64(c.windowSeconds) * 1000
	}
	return float64(c.windowSeconds)
}

// detection holds the per-ingest classification parameters.
type detection struct {
	threshold  float64
	lagSize    int
	spikeLimit int
}

// closeResult is one finalized window plus its spike, if it was one.
type closeResult struct {
	keyword string
	window  ClosedWindow
	spike   *SpikeRecord
}

func newWindowState(keyword string, retention int) *windowState {
	return &windowState{keyword: keyword, retention: retention}
}

// advance moves the window forward to pos, closing every window the
// position has left behind, then adds count to the open window.
//
// Recorded streams close one window per skipped index so that a forward seek
// materializes zero-count windows. A seek longer than the retention cap
// reports retention+1 closes and fast-forwards over the rest. Live streams
// close at most one window per call and re-anchor on pos; a backward
// position just keeps accumulating.
func (w *windowState) advance(c clock, d detection, pos float64, count int) []closeResult {
	var out []closeResult

	switch c.mode {
	case ModeRecorded:
		expected := int(math.Floor(pos / float64(c.windowSeconds)))
		if !w.anchored {
			w.anchored = true
			if expected > w.currentIndex {
				w.currentIndex = expected
			}
			w.anchor = float64(w.currentIndex * c.windowSeconds)
		}
		for w.currentIndex < expected {
			if w.retention > 0 && len(out) > w.retention {
				w.fastForward(expected, c.windowSeconds)
				break
			}
			out = append(out, w.closeWindow(d))
			w.anchor = float64(w.currentIndex * c.windowSeconds)
		}
	case ModeLive:
		if !w.anchored {
			w.anchored = true
			w.anchor = pos
		}
		if pos-w.anchor >= c.span() {
			out = append(out, w.closeWindow(d))
			w.anchor = pos
		}
	}

	w.currentCount += count
	return out
}

// fastForward jumps to expected once every retained window is a zero-count
// close. The windows it skips would all be zero-count non-spikes, so only
// their indices and anchors are materialized and no results are reported.
func (w *windowState) fastForward(expected, windowSeconds int) {
	start := expected - len(w.closed)
	for i := range w.closed {
		idx := start + i
		w.closed[i] = ClosedWindow{WindowIndex: idx, AnchorTime: float64(idx * windowSeconds)}
	}
	w.currentIndex = expected
	w.currentCount = 0
	w.anchor = float64(expected * windowSeconds)
}

// flush closes the open window regardless of elapsed time. A stream that
// has not seen an event yet has nothing open and yields no result.
func (w *windowState) flush(c clock, d detection) (closeResult, bool) {
	if !w.anchored {
		return closeResult{}, false
	}
	res := w.closeWindow(d)
	if c.mode == ModeRecorded {
		w.anchor = float64(w.currentIndex * c.windowSeconds)
	} else {
		// Live streams re-anchor on the next event.
		w.anchored = false
	}
	return res, true
}

// closeWindow appends the open window to history, evaluates it against the
// trailing baseline and opens the next index.
func (w *windowState) closeWindow(d detection) closeResult {
	rec := ClosedWindow{
		WindowIndex: w.currentIndex,
		AnchorTime:  w.anchor,
		Count:       w.currentCount,
	}
	w.closed = append(w.closed, rec)
	if w.retention > 0 && len(w.closed) > w.retention {
		w.closed = w.closed[len(w.closed)-w.retention:]
	}

	res := closeResult{keyword: w.keyword, window: rec}
	base := Estimate(w.closed, d.lagSize)
	cls := Classify(rec.Count, base, d.threshold)
	if cls.IsSpike {
		sp := SpikeRecord{
			ClosedWindow: rec,
			Keyword:      w.keyword,
			ZScore:       cls.ZScore,
			BaselineMean: base.Mean,
			BaselineStd:  base.Std,
			Ratio:        cls.Ratio,
		}
		w.appendSpike(sp, d.spikeLimit)
		res.spike = &sp
	}

	w.currentIndex++
	w.currentCount = 0
	return res
}

func (w *windowState) appendSpike(sp SpikeRecord, limit int) {
	w.spikes = append(w.spikes, sp)
	if limit > 0 && len(w.spikes) > limit {
		w.spikes = w.spikes[len(w.spikes)-limit:]
	}
}

// reset returns the window-tracking fields to their initial values while
// keeping spike history.
func (w *windowState) reset() {
	w.currentIndex = 0
	w.currentCount = 0
	w.anchor = 0
	w.anchored = false
	w.closed = nil
}

// tail returns a copy of the last n closed windows (all when n <= 0).
func (w *windowState) tail(n int) []ClosedWindow {
	src := w.closed
	if n > 0 && len(src) > n {
		src = src[len(src)-n:]
	}
	out := make([]ClosedWindow, len(src))
	copy(out, src)
	return out
}
