package analyzer

import "github.com/Minthug/chzzk-chat-analyzer/internal/platform/metrics"

// MetricsListener returns a Listener that counts closed windows and spikes.
func MetricsListener(m *metrics.Metrics) Listener {
	return func(ev Event) {
		switch ev.Type {
		case EventWindowClosed:
			m.IncWindowsClosed()
		case EventSpikeDetected:
			m.IncSpikes(metrics.KindPrimary)
		case EventKeywordSpikeDetected:
			m.IncSpikes(metrics.KindKeyword)
		}
	}
}
