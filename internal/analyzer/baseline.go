package analyzer

import "github.com/montanaflynn/stats"

// DefaultLagSize is the number of trailing closed windows in a baseline.
const DefaultLagSize = 10

// Baseline is the population mean and standard deviation of the windows
// preceding the one under test. Samples is zero when there was not enough
// history.
type Baseline struct {
	Mean    float64
	Std     float64
	Samples int
}

// Estimate computes the baseline for the newest entry of history from the
// min(lagSize, len(history)-1) entries before it. Fewer than two closed
// windows yields the zero Baseline.
func Estimate(history []ClosedWindow, lagSize int) Baseline {
	if len(history) < 2 || lagSize <= 0 {
		return Baseline{}
	}
	lag := min(lagSize, len(history)-1)
	sample := history[len(history)-1-lag : len(history)-1]

	data := make(stats.Float64Data, len(sample))
	for i, w := range sample {
		data[i] = float64(w.Count)
	}

	mean, err := stats.Mean(data)
	if err != nil {
		return Baseline{}
	}
	std, err := stats.StandardDeviationPopulation(data)
	if err != nil {
		return Baseline{}
	}
	return Baseline{Mean: mean, Std: std, Samples: lag}
}
