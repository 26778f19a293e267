package ucase

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/nevian427/yasmdr/internal/model"
	"github.com/nevian427/yasmdr/internal/smdr"
)

type memJournal struct {
	lines []string
}

func (m *memJournal) Write(line string) error {
	m.lines = append(m.lines, line)
	return nil
}

func row(ext, co, dur, start, date, rest string) string {
	return fmt.Sprintf("%-5s%-5s%-9s%-6s%-8s%s", ext, co, dur, start, date, rest)
}

func marked(line, tail string) string {
	return fmt.Sprintf("%-78s**%s", line, tail)
}

func feed(lines ...model.Line) <-chan model.Line {
	ch := make(chan model.Line, len(lines))
	for _, l := range lines {
		ch <- l
	}
	close(ch)
	return ch
}

func drain(ch <-chan model.CallRecord) []model.CallRecord {
	var out []model.CallRecord
	for rec := range ch {
		out = append(out, rec)
	}
	return out
}

func TestWorkerPerSourceOrdering(t *testing.T) {
	now := time.Date(2024, 1, 2, 9, 20, 0, 0, time.UTC)
	inbound := marked(row("102", "03", "00:01:10", "09:20", "01/02", "I5551112222"), " 105")
	outbound := row("101", "01", "00:05:23", "09:14", "01/02", "O5551234567")

	db := make(chan model.CallRecord, 10)
	mc := make(chan model.CallRecord, 10)
	journal := &memJournal{}
	w := NewWorker(Options{Grammar: smdr.VodaviXTS, Journal: journal},
		Sink{Name: "DB", Ch: db}, Sink{Name: "metrics", Ch: mc})

	err := w.WorkerCDR(feed(
		model.Line{Source: "10.0.0.1", Text: inbound, Received: now},
		model.Line{Source: "10.0.0.2", Text: outbound, Received: now},
		model.Line{Source: "10.0.0.1", Text: "5559876543", Received: now},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recs := drain(db)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Source != "10.0.0.2" || recs[0].CallType != "O" {
		t.Errorf("unexpected first record %+v", recs[0])
	}
	if recs[1].Source != "10.0.0.1" || recs[1].InboundNumber != "5559876543" {
		t.Errorf("unexpected second record %+v", recs[1])
	}
	if !recs[1].Received.Equal(now) {
		t.Errorf("received time not set: %v", recs[1].Received)
	}
	if got := drain(mc); len(got) != 2 {
		t.Errorf("metrics channel got %d records, want 2", len(got))
	}
	if len(journal.lines) != 2 || journal.lines[1] != recs[1].Line {
		t.Errorf("unexpected journal %q", journal.lines)
	}
}

func TestWorkerRejectsAndFlushes(t *testing.T) {
	db := make(chan model.CallRecord, 10)
	fails := &memJournal{}
	w := NewWorker(Options{Grammar: smdr.VodaviXTS, Fails: fails}, Sink{Name: "DB", Ch: db})

	before := metrics.GetOrCreateCounter(`yasmdr_cdr_err_count{source="pbx", kind="malformed"}`).Get()

	err := w.WorkerCDR(feed(
		model.Line{Source: "pbx", Text: smdr.VodaviXTS.Banner},
		model.Line{Source: "pbx", Text: "101 01"},
		model.Line{Source: "pbx", Text: row("101", "01", "00:05:23", "09:14", "01/02", "O5551234567")},
		// висит до конца потока
		model.Line{Source: "pbx", Text: marked(row("102", "03", "00:01:10", "09:20", "01/02", "I5551112222"), " 105")},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recs := drain(db); len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if len(fails.lines) != 2 {
		t.Fatalf("expected 2 failed lines, got %q", fails.lines)
	}
	if fails.lines[0] != "pbx|101 01" {
		t.Errorf("unexpected malformed entry %q", fails.lines[0])
	}
	if !strings.HasPrefix(fails.lines[1], "pbx|102 03 00:01:10") {
		t.Errorf("unexpected orphan entry %q", fails.lines[1])
	}
	after := metrics.GetOrCreateCounter(`yasmdr_cdr_err_count{source="pbx", kind="malformed"}`).Get()
	if after-before != 1 {
		t.Errorf("malformed counter grew by %d, want 1", after-before)
	}
}

func TestWorkerTooManyMalformed(t *testing.T) {
	db := make(chan model.CallRecord, 10)
	w := NewWorker(Options{Grammar: smdr.VodaviXTS, MaxMalformed: 3}, Sink{Name: "DB", Ch: db})

	err := w.WorkerCDR(feed(
		model.Line{Source: "pbx", Text: "garbage"},
		model.Line{Source: "pbx", Text: "more garbage"},
		model.Line{Source: "pbx", Text: row("101", "01", "00:05:23", "09:14", "01/02", "O5551234567")},
		model.Line{Source: "pbx", Text: "1"},
		model.Line{Source: "pbx", Text: "2"},
		model.Line{Source: "pbx", Text: "3"},
	))
	if !errors.Is(err, ErrTooManyMalformed) {
		t.Fatalf("expected ErrTooManyMalformed, got %v", err)
	}
	// канал получателя закрыт, запись между мусором дошла
	if recs := drain(db); len(recs) != 1 {
		t.Errorf("expected 1 record, got %d", len(recs))
	}
}

func TestWorkerCountsNoise(t *testing.T) {
	db := make(chan model.CallRecord, 10)
	w := NewWorker(Options{Grammar: smdr.VodaviXTS}, Sink{Name: "DB", Ch: db})

	err := w.WorkerCDR(feed(
		model.Line{Source: "noisy", Text: smdr.VodaviXTS.Banner},
		model.Line{Source: "noisy", Text: ""},
		model.Line{Source: "noisy", Text: row("101", "01", "00:05:23", "09:14", "01/02", "O5551234567")},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recs := drain(db); len(recs) != 1 {
		t.Errorf("expected 1 record, got %d", len(recs))
	}
	if n := metrics.GetOrCreateCounter(`yasmdr_cdr_noise_count{source="noisy"}`).Get(); n != 1 {
		t.Errorf("noise counter = %d, want 1", n)
	}
}

func TestWorkerFlushesAtEndOfStream(t *testing.T) {
	inbound := marked(row("102", "03", "00:01:10", "09:20", "01/02", "I5551112222"), " 105")
	outbound := row("101", "01", "00:05:23", "09:14", "01/02", "O5559998888")

	db := make(chan model.CallRecord, 10)
	fails := &memJournal{}
	w := NewWorker(Options{Grammar: smdr.VodaviXTS, Fails: fails}, Sink{Name: "DB", Ch: db})

	err := w.WorkerCDR(feed(
		model.Line{Source: "10.0.0.5", Text: inbound},
		// соседний источник со своим ожиданием не трогаем
		model.Line{Source: "10.0.0.6", Text: inbound},
		model.Line{Source: "10.0.0.5", EOF: true},
		// новое соединение с того же адреса начинает с чистого листа
		model.Line{Source: "10.0.0.5", Text: outbound},
		model.Line{Source: "10.0.0.6", Text: "5559876543"},
		// конец потока без ожидания - ничего не делаем
		model.Line{Source: "10.0.0.7", EOF: true},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recs := drain(db)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(recs), recs)
	}
	if recs[0].Source != "10.0.0.5" || recs[0].CallType != "O" || recs[0].Continued() {
		t.Errorf("unexpected first record %+v", recs[0])
	}
	if recs[1].Source != "10.0.0.6" || recs[1].InboundNumber != "5559876543" {
		t.Errorf("unexpected second record %+v", recs[1])
	}
	want := "10.0.0.5|102 03 00:01:10 09:20 01/02 I5551112222 ** 105"
	if len(fails.lines) != 1 || fails.lines[0] != want {
		t.Errorf("fails = %q, want [%q]", fails.lines, want)
	}
}
