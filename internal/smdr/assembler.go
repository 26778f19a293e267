package smdr

import (
	"github.com/nevian427/yasmdr/internal/model"
	jww "github.com/spf13/jwalterweatherman"
)

type State int

const (
	Idle State = iota
	AwaitingPartner
)

func (s State) String() string {
	if s == AwaitingPartner {
		return "awaiting"
	}
	return "idle"
}

// Assembler собирает записи из строк одного источника.
// Держит не больше одной строки в ожидании второй половины,
// поэтому строки должны идти строго по порядку и из одной горутины.
type Assembler struct {
	g       Grammar
	state   State
	pending string
	// legacy: пустую строку-разделитель уже пропустили
	blank bool
}

func NewAssembler(g Grammar) *Assembler {
	return &Assembler{g: g}
}

func (a *Assembler) State() State {
	return a.state
}

// Pending - сырая строка, ждущая продолжения.
func (a *Assembler) Pending() string {
	return a.pending
}

func (a *Assembler) Reset() {
	a.state = Idle
	a.pending = ""
	a.blank = false
}

// Feed обрабатывает очередную сырую строку. Возвращает запись и true,
// если запись готова. Ошибка означает, что строка (или ждущая строка)
// отброшена, но работать можно дальше.
func (a *Assembler) Feed(raw string) (model.CallRecord, bool, error) {
	line := Normalize(raw)

	switch a.g.Classify(line) {
	case Empty:
		// старая версия печатала продолжение через пустую строку
		if a.state == AwaitingPartner && a.g.Strategy == StrategyLegacy && !a.blank {
			a.blank = true
			return model.CallRecord{}, false, nil
		}
		return model.CallRecord{}, false, a.orphan()
	case Noise:
		// шапку к вызову не клеим, ждущую строку выкидываем
		return model.CallRecord{}, false, a.orphan()
	}

	if a.state == AwaitingPartner {
		joined := Normalize(a.pending + " " + raw)
		a.Reset()
		rec, err := Extract(joined, a.g.Marker)
		if err != nil {
			return model.CallRecord{}, false, err
		}
		return rec, true, nil
	}

	rec, err := Extract(line, a.g.Marker)
	if err != nil {
		return model.CallRecord{}, false, err
	}
	if c, ok := a.g.CallTypeAt(raw); ok && c != ' ' && string(c) != rec.CallType {
		jww.DEBUG.Printf("call type mismatch: column %d has %q, field has %q in %q", a.g.CallTypeOffset, c, rec.CallType, line)
	}

	switch {
	case a.g.selfContained(rec.CallType):
		return rec, true, nil
	case a.g.continuable(rec.CallType):
		if a.g.Eligible(raw) {
			a.state = AwaitingPartner
			a.pending = raw
			return model.CallRecord{}, false, nil
		}
		return rec, true, nil
	default:
		return model.CallRecord{}, false, &LineError{Err: ErrUnknownCallType, Field: "callType", Line: line}
	}
}

// Flush вызывается в конце потока: висящая строка отбрасывается с ошибкой.
func (a *Assembler) Flush() error {
	return a.orphan()
}

func (a *Assembler) orphan() error {
	if a.state == Idle {
		return nil
	}
	err := &LineError{Err: ErrOrphanedContinuation, Line: Normalize(a.pending)}
	a.Reset()
	return err
}
