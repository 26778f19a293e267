package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"github.com/nevian427/yasmdr/internal/model"
)

func TestMetricsCDR(t *testing.T) {
	ch := make(chan model.CallRecord, 3)
	ch <- model.CallRecord{Source: "m1", CallType: "O", CircuitID: "01", CallDuration: "00:05:23"}
	ch <- model.CallRecord{Source: "m1", CallType: "I", CircuitID: "01", CallDuration: "01:10", InternalExt: "105"}
	ch <- model.CallRecord{Source: "m1", CallType: "O", CircuitID: "02", CallDuration: "bad"}
	close(ch)

	if err := MetricsCDR(ch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name string
		want uint64
	}{
		{`yasmdr_cdr_count{source="m1", type="O"}`, 2},
		{`yasmdr_cdr_count{source="m1", type="I"}`, 1},
		{`yasmdr_cdr_continued_count{source="m1"}`, 1},
		{`yasmdr_cdr_trunk_count{source="m1", circuit="01"}`, 2},
		{`yasmdr_cdr_trunk_duration{source="m1", circuit="01"}`, 323 + 70},
		{`yasmdr_cdr_trunk_count{source="m1", circuit="02"}`, 1},
		{`yasmdr_cdr_trunk_duration{source="m1", circuit="02"}`, 0},
	}
	for _, tt := range tests {
		if got := metrics.GetOrCreateCounter(tt.name).Get(); got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestHandler(t *testing.T) {
	metrics.GetOrCreateCounter(`yasmdr_cdr_count{source="h1", type="O"}`).Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `yasmdr_cdr_count{source="h1",type="O"} 1`) &&
		!strings.Contains(string(body), `yasmdr_cdr_count{source="h1", type="O"} 1`) {
		t.Errorf("counter missing from output:\n%s", body)
	}
}

func TestMetricsCDRGarbledLabels(t *testing.T) {
	ch := make(chan model.CallRecord, 2)
	ch <- model.CallRecord{Source: "g1", CallType: "O", CircuitID: "0\"1", CallDuration: "00:00:10"}
	ch <- model.CallRecord{Source: "g1\\x\n", CallType: "\"", CircuitID: "02"}
	close(ch)

	// кривая строка со станции не должна ронять сборщик
	if err := MetricsCDR(ch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := metrics.GetOrCreateCounter(`yasmdr_cdr_trunk_count{source="g1", circuit="0\"1"}`).Get(); got != 1 {
		t.Errorf("escaped circuit counter = %d, want 1", got)
	}
	if got := metrics.GetOrCreateCounter(`yasmdr_cdr_trunk_duration{source="g1", circuit="0\"1"}`).Get(); got != 10 {
		t.Errorf("escaped circuit duration = %d, want 10", got)
	}
	if got := metrics.GetOrCreateCounter(`yasmdr_cdr_count{source="g1\\x\n", type="\""}`).Get(); got != 1 {
		t.Errorf("escaped source counter = %d, want 1", got)
	}
}

func TestCounter(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   string
	}{
		{"yasmdr_c1", nil, "yasmdr_c1"},
		{"yasmdr_c2", []string{"source", "10.0.0.1"}, `yasmdr_c2{source="10.0.0.1"}`},
		{"yasmdr_c3", []string{"source", `a"b`, "kind", `c\d`}, `yasmdr_c3{source="a\"b", kind="c\\d"}`},
	}
	for _, tt := range tests {
		Counter(tt.name, tt.labels...).Inc()
		if got := metrics.GetOrCreateCounter(tt.want).Get(); got != 1 {
			t.Errorf("%s: counter %s = %d, want 1", tt.name, tt.want, got)
		}
	}
}
