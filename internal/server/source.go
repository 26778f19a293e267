package server

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/nevian427/yasmdr/internal/model"
	"github.com/oklog/run"
	jww "github.com/spf13/jwalterweatherman"
)

// Source - откуда приходят строки станции: tcp, COM-порт, каталог.
type Source interface {
	Name() string
	// Serve пишет строки в out до отмены ctx или фатальной ошибки.
	Serve(ctx context.Context, out chan<- model.Line) error
}

// RunSources запускает все источники. Первый упавший тушит остальные,
// после остановки всех закрывается out - это сигнал воркеру на выход.
func RunSources(ctx context.Context, out chan<- model.Line, sources ...Source) error {
	defer close(out)

	var g run.Group
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, s := range sources {
		s := s
		g.Add(func() error {
			jww.INFO.Printf("Starting %s source", s.Name())
			err := s.Serve(ctx, out)
			jww.INFO.Printf("Stopped %s source: %v", s.Name(), err)
			return err
		}, func(error) {
			cancel()
		})
	}
	return g.Run()
}

// ReadLines построчно читает r и отдаёт строки как есть, без CR/LF.
// Пробелы не трогаем - формат станции позиционный. Когда r кончился,
// последней уходит строка с EOF.
func ReadLines(ctx context.Context, r io.Reader, source string, out chan<- model.Line) error {
	br := bufio.NewReader(r)
	var buf []byte

	// цикл приёма данных
	for {
		part, isPrefix, err := br.ReadLine()
		if err != nil {
			// хвост без перевода строки тоже строка
			if err == io.EOF && len(buf) > 0 {
				if serr := send(ctx, out, source, buf); serr != nil {
					return serr
				}
			}
			// при остановке воркер сбросит всё сам
			if ctx.Err() == nil {
				if serr := sendEOF(ctx, out, source); serr != nil {
					return serr
				}
			}
			return err
		}
		buf = append(buf, part...)
		if isPrefix {
			continue
		}
		if err := send(ctx, out, source, buf); err != nil {
			return err
		}
		buf = buf[:0]
	}
}

func send(ctx context.Context, out chan<- model.Line, source string, text []byte) error {
	return put(ctx, out, model.Line{Source: source, Text: string(text), Received: time.Now()})
}

func sendEOF(ctx context.Context, out chan<- model.Line, source string) error {
	return put(ctx, out, model.Line{Source: source, Received: time.Now(), EOF: true})
}

func put(ctx context.Context, out chan<- model.Line, line model.Line) error {
	select {
	case out <- line:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
