package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/Minthug/chzzk-chat-analyzer/internal/analyzer"
	"github.com/Minthug/chzzk-chat-analyzer/internal/platform/logger"
)

func newService(t *testing.T, cfg analyzer.Config) *analyzer.Service {
	t.Helper()
	svc, err := analyzer.NewService(analyzer.NewRegistry(), cfg, logger.Discard())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func exampleLog() string {
	var b strings.Builder
	b.WriteString("# recorded replay\n\n")
	for i, c := range []int{10, 12, 9, 11, 10, 13, 10, 11, 9, 10, 17} {
		fmt.Fprintf(&b, `{"stream_id":"v1","mode":"recorded","media_seconds":%d,"count":%d}`+"\n", i*30, c)
	}
	b.WriteString(`{"stream_id":"v1","mode":"recorded","count":4}` + "\n")
	b.WriteString(`{"op":"flush","stream_id":"v1"}` + "\n")
	return b.String()
}

func TestRun_reports_spikes(t *testing.T) {
	svc := newService(t, analyzer.Config{})
	var out bytes.Buffer

	st, err := Run(strings.NewReader(exampleLog()), svc, &out, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Lines != 13 || st.Dropped != 1 || st.WindowsClosed != 11 || st.Spikes != 1 {
		t.Errorf("stats = %+v", st)
	}

	sc := bufio.NewScanner(&out)
	var lines []map[string]any
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatal(err)
		}
		lines = append(lines, m)
	}
	if len(lines) != 1 {
		t.Fatalf("report lines = %d, want 1", len(lines))
	}
	if lines[0]["type"] != string(analyzer.EventSpikeDetected) || lines[0]["label"] != "00:05:00" || lines[0]["z_score"] != 5.4 {
		t.Errorf("report = %v", lines[0])
	}
}

func TestRun_windows_option(t *testing.T) {
	svc := newService(t, analyzer.Config{})
	var out bytes.Buffer

	if _, err := Run(strings.NewReader(exampleLog()), svc, &out, Options{Windows: true}); err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(out.String(), "\n"); n != 12 {
		t.Errorf("report lines = %d, want 12", n)
	}
}

func TestRun_ops(t *testing.T) {
	svc := newService(t, analyzer.Config{})
	log := strings.Join([]string{
		`{"op":"open","stream_id":"a","mode":"live"}`,
		`{"stream_id":"a","wall_time_ms":1000,"count":2}`,
		`{"stream_id":"b","mode":"recorded","media_seconds":5,"count":1}`,
		`{"op":"end","stream_id":"a"}`,
		`{"op":"clear","stream_id":"b"}`,
	}, "\n")

	st, err := Run(strings.NewReader(log), svc, &bytes.Buffer{}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if st.Dropped != 0 || st.WindowsClosed != 1 {
		t.Errorf("stats = %+v", st)
	}
	if svc.ActiveStreamCount() != 0 {
		t.Errorf("ActiveStreamCount = %d, want 0", svc.ActiveStreamCount())
	}
}

func TestRun_errors(t *testing.T) {
	tests := []struct {
		name string
		log  string
	}{
		{"invalid json", "{not json}\n"},
		{"unknown op", `{"op":"rewind","stream_id":"a"}` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t, analyzer.Config{})
			if _, err := Run(strings.NewReader(tt.log), svc, &bytes.Buffer{}, Options{}); err == nil {
				t.Error("expected error")
			}
		})
	}
}
