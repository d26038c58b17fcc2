package analyzer

import (
	"strings"
	"testing"
)

func TestMatchCount(t *testing.T) {
	tests := []struct {
		name    string
		tags    []string
		keyword string
		want    int
	}{
		{"no tags", nil, "ㅋㅋ", 0},
		{"substring", []string{"ㅋㅋㅋㅋ", "wow", "ㅋㅋ"}, "ㅋㅋ", 2},
		{"once per tag", []string{"lol lol lol"}, "lol", 1},
		{"case sensitive", []string{"LOL", "Lol"}, "lol", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchCount(tt.tags, tt.keyword); got != tt.want {
				t.Errorf("matchCount(%q, %q) = %d, want %d", tt.tags, tt.keyword, got, tt.want)
			}
		})
	}
}

func keywordTags(n int) []string {
	return strings.Split(strings.Repeat("ㅋㅋㅋ,", n)+"hello", ",")
}

// feedTagged sends one recorded event per window with a constant primary
// count and n matching tags.
func feedTagged(t *testing.T, svc *Service, id StreamID, primary []int, matches []int) {
	t.Helper()
	for i := range matches {
		ev := recorded(id, float64(i*30), primary[i], keywordTags(matches[i])...)
		if _, err := svc.RecordCount(ev); err != nil {
			t.Fatalf("RecordCount window %d: %v", i, err)
		}
	}
}

func repeat(v, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestKeyword_spike_without_primary_spike(t *testing.T) {
	svc := newTestService(t, Config{Keywords: []string{"ㅋㅋ"}})
	matches := []int{1, 2, 1, 2, 1, 2, 1, 2, 1, 2, 9}
	feedTagged(t, svc, "v1", repeat(10, len(matches)), matches)

	events := svc.CloseCurrentWindow("v1")
	if n := len(eventsOfType(events, EventSpikeDetected)); n != 0 {
		t.Errorf("primary spikes = %d, want 0", n)
	}
	kw := eventsOfType(events, EventKeywordSpikeDetected)
	if len(kw) != 1 {
		t.Fatalf("keyword spikes = %d, want 1 (%+v)", len(kw), events)
	}
	if kw[0].Keyword != "ㅋㅋ" || kw[0].Spike.Count != 9 || kw[0].Spike.WindowIndex != 10 {
		t.Errorf("keyword spike = %+v", kw[0].Spike)
	}
	if kw[0].Spike.BaselineMean != 1.5 || kw[0].Spike.BaselineStd != 0.5 {
		t.Errorf("baseline = %v/%v, want 1.5/0.5", kw[0].Spike.BaselineMean, kw[0].Spike.BaselineStd)
	}

	sum, _ := svc.GetStreamSummary("v1")
	if len(sum.Spikes) != 0 || len(sum.KeywordSpikes) != 1 {
		t.Errorf("summary spikes=%d keyword=%d", len(sum.Spikes), len(sum.KeywordSpikes))
	}
	if len(eventsOfType(events, EventWindowClosed)) != 1 {
		t.Error("keyword windows must not emit window.closed")
	}
}

func TestKeyword_primary_spike_without_keyword_spike(t *testing.T) {
	svc := newTestService(t, Config{Keywords: []string{"ㅋㅋ"}})
	feedTagged(t, svc, "v1", exampleCounts, repeat(2, len(exampleCounts)))

	events := svc.CloseCurrentWindow("v1")
	if n := len(eventsOfType(events, EventSpikeDetected)); n != 1 {
		t.Errorf("primary spikes = %d, want 1", n)
	}
	if n := len(eventsOfType(events, EventKeywordSpikeDetected)); n != 0 {
		t.Errorf("keyword spikes = %d, want 0", n)
	}
}

func TestKeyword_no_work_without_tags(t *testing.T) {
	svc := newTestService(t, Config{Keywords: []string{"ㅋㅋ"}})
	feedRecorded(t, svc, "v1", []int{3, 4, 5})

	st, _ := svc.reg.lookup("v1")
	if len(st.keywords) != 0 {
		t.Errorf("keyword sub-states created without tags: %v", st.keywordNames())
	}
}

func TestKeyword_sub_state_created_lazily(t *testing.T) {
	svc := newTestService(t, Config{Keywords: []string{"ㅋㅋ", "gg"}})
	feedRecorded(t, svc, "v1", []int{3, 4, 5})
	if _, err := svc.RecordCount(recorded("v1", 95, 1, "gg ez")); err != nil {
		t.Fatal(err)
	}

	st, _ := svc.reg.lookup("v1")
	ws, ok := st.keywords["gg"]
	if !ok {
		t.Fatal("gg sub-state missing")
	}
	if ws.currentIndex != 3 || ws.currentCount != 1 {
		t.Errorf("gg index=%d count=%d, want 3/1", ws.currentIndex, ws.currentCount)
	}
	if st.keywords["ㅋㅋ"].currentCount != 0 {
		t.Errorf("ㅋㅋ count = %d, want 0", st.keywords["ㅋㅋ"].currentCount)
	}
	if ws.retention != 2*DefaultLagSize {
		t.Errorf("retention = %d, want %d", ws.retention, 2*DefaultLagSize)
	}
}

func TestKeyword_annotate(t *testing.T) {
	svc := newTestService(t, Config{Keywords: []string{"ㅋㅋ"}})
	matches := []int{1, 2, 1, 2, 1, 2, 1, 2, 1, 2, 9}
	feedTagged(t, svc, "v1", repeat(10, len(matches)), matches)
	svc.CloseCurrentWindow("v1")

	sp, err := svc.AnnotateSpike("v1", 10, "ㅋㅋ", "funny moment")
	if err != nil {
		t.Fatal(err)
	}
	if sp.Keyword != "ㅋㅋ" || sp.Note != "funny moment" {
		t.Errorf("annotated = %+v", sp)
	}
	if _, err := svc.AnnotateSpike("v1", 10, "", "x"); err == nil {
		t.Error("primary stream has no spike at window 10")
	}
}

func TestKeyword_restore_keeps_keyword_spikes(t *testing.T) {
	svc := newTestService(t, Config{Keywords: []string{"ㅋㅋ"}})
	matches := []int{1, 2, 1, 2, 1, 2, 1, 2, 1, 2, 9}
	feedTagged(t, svc, "v1", repeat(10, len(matches)), matches)
	svc.CloseCurrentWindow("v1")
	snap, _ := svc.Snapshot("v1")

	if err := svc.RestoreHistorySummary("v1", snap); err != nil {
		t.Fatal(err)
	}
	sum, _ := svc.GetStreamSummary("v1")
	if len(sum.KeywordSpikes) != 1 || sum.KeywordSpikes[0].Keyword != "ㅋㅋ" {
		t.Errorf("KeywordSpikes = %+v", sum.KeywordSpikes)
	}
	st, _ := svc.reg.lookup("v1")
	if ws := st.keywords["ㅋㅋ"]; ws.currentIndex != 0 || len(ws.closed) != 0 {
		t.Errorf("keyword window tracking not reset: index=%d closed=%d", ws.currentIndex, len(ws.closed))
	}
}
