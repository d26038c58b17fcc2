package analyzer

import (
	"math"
	"testing"
)

func windowsOf(counts ...int) []ClosedWindow {
	out := make([]ClosedWindow, len(counts))
	for i, c := range counts {
		out[i] = ClosedWindow{WindowIndex: i, AnchorTime: float64(i * 30), Count: c}
	}
	return out
}

func TestEstimate_insufficient_data(t *testing.T) {
	tests := []struct {
		name    string
		history []ClosedWindow
	}{
		{"empty", nil},
		{"single window", windowsOf(42)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Estimate(tt.history, DefaultLagSize)
			if b != (Baseline{}) {
				t.Errorf("Estimate() = %+v, want zero baseline", b)
			}
		})
	}
}

func TestEstimate_excludes_window_under_test(t *testing.T) {
	b := Estimate(windowsOf(4, 6, 1000), DefaultLagSize)
	if b.Samples != 2 {
		t.Fatalf("Samples = %d, want 2", b.Samples)
	}
	if b.Mean != 5 {
		t.Errorf("Mean = %v, want 5", b.Mean)
	}
	if b.Std != 1 {
		t.Errorf("Std = %v, want 1 (population)", b.Std)
	}
}

func TestEstimate_trailing_lag(t *testing.T) {
	// Only the 3 windows before the newest count.
	b := Estimate(windowsOf(100, 100, 2, 4, 6, 50), 3)
	if b.Samples != 3 {
		t.Fatalf("Samples = %d, want 3", b.Samples)
	}
	if b.Mean != 4 {
		t.Errorf("Mean = %v, want 4", b.Mean)
	}
	want := math.Sqrt(8.0 / 3.0)
	if math.Abs(b.Std-want) > 1e-9 {
		t.Errorf("Std = %v, want %v", b.Std, want)
	}
}

func TestEstimate_population_statistics(t *testing.T) {
	history := windowsOf(10, 12, 9, 11, 10, 13, 10, 11, 9, 10, 17)
	b := Estimate(history, DefaultLagSize)
	if b.Samples != 10 {
		t.Fatalf("Samples = %d, want 10", b.Samples)
	}
	if math.Abs(b.Mean-10.5) > 1e-9 {
		t.Errorf("Mean = %v, want 10.5", b.Mean)
	}
	// Sum of squared deviations is 14.5 over 10 samples.
	if math.Abs(b.Std-math.Sqrt(1.45)) > 1e-9 {
		t.Errorf("Std = %v, want %v", b.Std, math.Sqrt(1.45))
	}
}
