package analyzer

import (
	"fmt"
	"math"
	"time"
)

// RoundSpike returns sp with its statistics rounded for display and
// storage: z-score and ratio to two decimals, mean and std to one. Once a
// rounded spike has been persisted it is the canonical value; nothing
// re-derives it from raw counts.
func RoundSpike(sp SpikeRecord) SpikeRecord {
	sp.ZScore = roundTo(sp.ZScore, 2)
	sp.BaselineMean = roundTo(sp.BaselineMean, 1)
	sp.BaselineStd = roundTo(sp.BaselineStd, 1)
	if sp.Ratio != nil {
		r := roundTo(*sp.Ratio, 2)
		sp.Ratio = &r
	}
	return sp
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// FormatOffset renders a window anchor for people: HH:MM:SS into the video
// for recorded streams, a UTC clock time for live streams.
func FormatOffset(mode Mode, anchor float64) string {
	switch mode {
	case ModeRecorded:
		if anchor < 0 {
			return "--:--:--"
		}
		s := int(anchor)
		return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
	case ModeLive:
		return time.UnixMilli(int64(anchor)).UTC().Format(time.TimeOnly)
	}
	return "--:--:--"
}
