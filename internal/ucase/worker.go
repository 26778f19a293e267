package ucase

import (
	"errors"
	"fmt"
	"time"

	"github.com/nevian427/yasmdr/internal/model"
	srvmetrics "github.com/nevian427/yasmdr/internal/server/metrics"
	"github.com/nevian427/yasmdr/internal/smdr"
	jww "github.com/spf13/jwalterweatherman"
)

var ErrTooManyMalformed = errors.New("too many consecutive malformed lines")

// Journal - построчная запись в файл (отладочный журнал, файл отказов).
type Journal interface {
	Write(line string) error
}

// Sink - именованный канал получателя готовых записей.
type Sink struct {
	Name string
	Ch   chan<- model.CallRecord
}

type Options struct {
	Grammar smdr.Grammar
	// сюда пишем нормализованную строку каждой записи
	Journal Journal
	// сюда пишем отброшенные строки
	Fails Journal
	// 0 - не ограничиваем
	MaxMalformed int
}

// Worker разбирает строки от всех источников. Сборщик у каждого источника
// свой, а сам воркер один - порядок строк важен.
type Worker struct {
	opt       Options
	sinks     []Sink
	asm       map[string]*smdr.Assembler
	malformed int
}

func NewWorker(opt Options, sinks ...Sink) *Worker {
	return &Worker{
		opt:   opt,
		sinks: sinks,
		asm:   make(map[string]*smdr.Assembler),
	}
}

// WorkerCDR - рабочая лошадка. Выходит, когда закрыт входной канал,
// перед выходом сбрасывает висящие строки и закрывает каналы получателей.
func (w *Worker) WorkerCDR(inputCh <-chan model.Line) error {
	defer func() {
		w.flush()
		for _, s := range w.sinks {
			close(s.Ch)
		}
	}()

	for {
		line, ok := <-inputCh
		// канал закрыт - на выход
		if !ok {
			return nil
		}
		if err := w.handle(line); err != nil {
			return err
		}
	}
}

func (w *Worker) assembler(source string) *smdr.Assembler {
	a, ok := w.asm[source]
	if !ok {
		a = smdr.NewAssembler(w.opt.Grammar)
		w.asm[source] = a
	}
	return a
}

func (w *Worker) handle(line model.Line) error {
	if line.EOF {
		w.endOfStream(line.Source)
		return nil
	}
	// баннеры и заголовки станции просто считаем
	if w.opt.Grammar.Classify(smdr.Normalize(line.Text)) == smdr.Noise {
		srvmetrics.Counter("yasmdr_cdr_noise_count", "source", line.Source).Inc()
	}
	rec, ok, err := w.assembler(line.Source).Feed(line.Text)
	if err != nil {
		w.reject(line.Source, line.Text, err)
		if !errors.Is(err, smdr.ErrMalformedLine) {
			return nil
		}
		w.malformed++
		if w.opt.MaxMalformed > 0 && w.malformed >= w.opt.MaxMalformed {
			return fmt.Errorf("%w: %d from %s", ErrTooManyMalformed, w.malformed, line.Source)
		}
		return nil
	}
	w.malformed = 0
	if !ok {
		return nil
	}

	// выставляем источник сообщения
	rec.Source = line.Source
	rec.Received = line.Received

	if w.opt.Journal != nil {
		if err := w.opt.Journal.Write(rec.Line); err != nil {
			jww.WARN.Printf("Can't write journal: %s", err)
		}
	}

	// fan-out получателям, ругаемся если кто-то не успевает
	for _, s := range w.sinks {
		lastWarn := time.Now()
		s.Ch <- rec
		if time.Since(lastWarn) > time.Second {
			jww.WARN.Printf("overflowing %s channel", s.Name)
		}
	}
	return nil
}

func (w *Worker) reject(source, raw string, err error) {
	kind := smdr.Kind(err)
	// выводим плохую строчку в лог
	jww.WARN.Printf("Error %s while parsing cdr from %s\n\"%s\"", err, source, raw)
	// увеличиваем счётчик ошибок для конкретного источника
	srvmetrics.Counter("yasmdr_cdr_err_count", "source", source, "kind", kind).Inc()

	if w.opt.Fails == nil {
		return
	}
	// для осиротевшей строки сохраняем её саму, а не то, что её прервало
	text := raw
	var le *smdr.LineError
	if kind == "orphan" && errors.As(err, &le) {
		text = le.Line
	}
	if text == "" {
		return
	}
	if err := w.opt.Fails.Write(source + "|" + text); err != nil {
		jww.WARN.Printf("Can't write failed CDR: %s", err)
	}
}

// поток источника кончился - вторая половина уже не придёт
func (w *Worker) endOfStream(source string) {
	a, ok := w.asm[source]
	if !ok {
		return
	}
	if err := a.Flush(); err != nil {
		w.reject(source, "", err)
	}
}

// висящие строки при остановке не теряем молча
func (w *Worker) flush() {
	for source, a := range w.asm {
		if err := a.Flush(); err != nil {
			w.reject(source, "", err)
		}
	}
}
