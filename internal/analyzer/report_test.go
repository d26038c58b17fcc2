package analyzer

import "testing"

func TestRoundSpike(t *testing.T) {
	ratio := 17.0 / 10.5
	sp := SpikeRecord{
		ClosedWindow: ClosedWindow{WindowIndex: 10, AnchorTime: 300, Count: 17},
		ZScore:       5.398,
		BaselineMean: 10.5,
		BaselineStd:  1.2041,
		Ratio:        &ratio,
	}
	got := RoundSpike(sp)
	if got.ZScore != 5.4 || got.BaselineMean != 10.5 || got.BaselineStd != 1.2 {
		t.Errorf("RoundSpike = %+v", got)
	}
	if got.Ratio == nil || *got.Ratio != 1.62 {
		t.Errorf("Ratio = %v, want 1.62", got.Ratio)
	}
	if *sp.Ratio != ratio {
		t.Error("RoundSpike modified its argument")
	}
	if got.ClosedWindow != sp.ClosedWindow {
		t.Errorf("window changed: %+v", got.ClosedWindow)
	}

	if RoundSpike(SpikeRecord{ZScore: 3.005}).Ratio != nil {
		t.Error("nil ratio should stay nil")
	}
}

func TestFormatOffset(t *testing.T) {
	tests := []struct {
		mode   Mode
		anchor float64
		want   string
	}{
		{ModeRecorded, 0, "00:00:00"},
		{ModeRecorded, 300, "00:05:00"},
		{ModeRecorded, 3725.9, "01:02:05"},
		{ModeRecorded, -1, "--:--:--"},
		{ModeLive, 1_700_000_000_000, "22:13:20"},
		{ModeUnknown, 30, "--:--:--"},
	}
	for _, tt := range tests {
		if got := FormatOffset(tt.mode, tt.anchor); got != tt.want {
			t.Errorf("FormatOffset(%s, %v) = %q, want %q", tt.mode, tt.anchor, got, tt.want)
		}
	}
}
