package analyzer

import (
	"math"
	"testing"
)

func TestClassify_spike(t *testing.T) {
	history := windowsOf(10, 12, 9, 11, 10, 13, 10, 11, 9, 10, 17)
	c := Classify(17, Estimate(history, DefaultLagSize), DefaultZThreshold)

	if !c.IsSpike {
		t.Fatal("IsSpike = false, want true")
	}
	wantZ := 6.5 / math.Sqrt(1.45)
	if math.Abs(c.ZScore-wantZ) > 1e-9 {
		t.Errorf("ZScore = %v, want %v", c.ZScore, wantZ)
	}
	if c.Ratio == nil || math.Abs(*c.Ratio-17/10.5) > 1e-9 {
		t.Errorf("Ratio = %v, want %v", c.Ratio, 17/10.5)
	}
}

func TestClassify_flat_baseline_never_spikes(t *testing.T) {
	counts := []int{5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 1005}
	c := Classify(1005, Estimate(windowsOf(counts...), DefaultLagSize), DefaultZThreshold)
	if c.IsSpike {
		t.Error("IsSpike = true, want false for a flat baseline")
	}
	if c.ZScore != 0 {
		t.Errorf("ZScore = %v, want 0", c.ZScore)
	}
	if c.Ratio == nil || *c.Ratio != 201 {
		t.Errorf("Ratio = %v, want 201", c.Ratio)
	}
}

func TestClassify_threshold_is_inclusive(t *testing.T) {
	b := Baseline{Mean: 100, Std: 10, Samples: 10}
	tests := []struct {
		name    string
		current int
		want    bool
	}{
		{"below", 129, false},
		{"equal", 130, true},
		{"above", 150, true},
		{"drop", 50, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.current, b, 3.0).IsSpike; got != tt.want {
				t.Errorf("IsSpike = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify_zero_mean_has_no_ratio(t *testing.T) {
	c := Classify(3, Baseline{Mean: 0, Std: 0, Samples: 4}, DefaultZThreshold)
	if c.Ratio != nil {
		t.Errorf("Ratio = %v, want nil", *c.Ratio)
	}
	if c.IsSpike {
		t.Error("IsSpike = true, want false")
	}
}
