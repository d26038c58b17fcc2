package analyzer

// DefaultZThreshold is the z-score at or above which a window is a spike.
const DefaultZThreshold = 3.0

// Classification is the spike decision for one closed window.
// Ratio is nil when the baseline mean is zero.
type Classification struct {
	IsSpike bool
	ZScore  float64
	Ratio   *float64
}

// Classify scores current against the baseline. A flat baseline (std == 0)
// scores zero and is never a spike, however large current is.
func Classify(current int, b Baseline, threshold float64) Classification {
	var c Classification
	if b.Std > 0 {
		c.ZScore = (float64(current) - b.Mean) / b.Std
	}
	c.IsSpike = c.ZScore >= threshold
	if b.Mean > 0 {
		r := float64(current) / b.Mean
		c.Ratio = &r
	}
	return c
}
