package server

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/nevian427/yasmdr/internal/model"
)

func TestReadLines(t *testing.T) {
	long := strings.Repeat("x", 5000)
	input := "  101  01  00:05:23 09:14 01/02   O 555\r\n\r\n" + long + "\nno newline"
	out := make(chan model.Line, 10)

	err := ReadLines(context.Background(), strings.NewReader(input), "10.0.0.1", out)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	close(out)

	var got []string
	var eof []bool
	for l := range out {
		if l.Source != "10.0.0.1" {
			t.Errorf("unexpected source %q", l.Source)
		}
		if l.Received.IsZero() {
			t.Error("received time not set")
		}
		got = append(got, l.Text)
		eof = append(eof, l.EOF)
	}
	want := []string{"  101  01  00:05:23 09:14 01/02   O 555", "", long, "no newline", ""}
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
		// конец потока помечен только у последней
		if eof[i] != (i == len(want)-1) {
			t.Errorf("line %d EOF = %v", i, eof[i])
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestReadLinesErrorEndsStream(t *testing.T) {
	out := make(chan model.Line, 2)
	if err := ReadLines(context.Background(), failingReader{}, "pbx", out); err == nil {
		t.Fatal("expected read error")
	}
	close(out)
	var n int
	for l := range out {
		n++
		if !l.EOF || l.Source != "pbx" {
			t.Errorf("expected EOF line from pbx, got %+v", l)
		}
	}
	if n != 1 {
		t.Errorf("expected exactly one EOF line, got %d", n)
	}
}

func TestReadLinesCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// никто не читает out - выходим по контексту
	err := ReadLines(ctx, strings.NewReader("a\nb\n"), "x", make(chan model.Line))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type fakeSource struct {
	name  string
	lines []string
	err   error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Serve(ctx context.Context, out chan<- model.Line) error {
	for _, l := range f.lines {
		select {
		case out <- model.Line{Source: f.name, Text: l}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunSourcesStopsAllAndClosesOut(t *testing.T) {
	boom := errors.New("port gone")
	out := make(chan model.Line, 10)
	done := make(chan error, 1)

	go func() {
		done <- RunSources(context.Background(), out,
			&fakeSource{name: "a", lines: []string{"1", "2"}},
			&fakeSource{name: "b", lines: []string{"3"}, err: boom},
		)
	}()

	select {
	case err := <-done:
		if !errors.Is(err, boom) && !errors.Is(err, context.Canceled) {
			t.Fatalf("unexpected error %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunSources did not stop")
	}

	n := 0
	for range out {
		n++
	}
	if n == 0 {
		t.Error("expected lines before shutdown")
	}
}

func TestRunSourcesCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan model.Line, 10)
	done := make(chan error, 1)
	go func() {
		done <- RunSources(ctx, out, &fakeSource{name: "a"})
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RunSources did not stop on cancel")
	}
	if _, ok := <-out; ok {
		t.Error("out must be closed")
	}
}
