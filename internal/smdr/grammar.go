package smdr

import (
	"errors"
	"fmt"
	"strings"
)

// Strategy - способ решить, что у строки будет вторая половина.
type Strategy string

const (
	// StrategyMarker - маркер строго на фиксированной колонке сырой строки.
	StrategyMarker Strategy = "marker"
	// StrategyLegacy - маркер где угодно в строке, продолжение может идти
	// через одну пустую строку. Так работала первая версия логгера.
	StrategyLegacy Strategy = "legacy"
)

var ErrGrammar = errors.New("invalid SMDR grammar:")

// Grammar - таблица констант формата конкретной станции.
// Смещения отсчитываются от начала сырой строки, как её печатает станция.
type Grammar struct {
	Name           string
	Banner         string
	NoiseTokens    []string
	CallTypeOffset int
	MarkerOffset   int
	Marker         string
	// типы вызовов, которые всегда в одну строку
	SelfContained string
	// типы вызовов, которые могут продолжаться на следующей строке
	Continuable string
	Strategy    Strategy
}

// VodaviXTS - формат SMDR станции Vodavi XTS.
var VodaviXTS = Grammar{
	Name:           "vodavi-xts",
	Banner:         "STA  CO   TOTAL   START   DATE   DIALED                    ACCOUNT CODE  COST",
	NoiseTokens:    []string{"STA", "CO", "TOTAL", "START", "DATE", "DIALED", "ACCOUNT", "CODE", "COST"},
	CallTypeOffset: 33,
	MarkerOffset:   78,
	Marker:         "**",
	SelfContained:  "O",
	Continuable:    "IUT",
	Strategy:       StrategyMarker,
}

func (g Grammar) Validate() error {
	if g.CallTypeOffset < 0 {
		return fmt.Errorf("%w call type offset %d", ErrGrammar, g.CallTypeOffset)
	}
	if g.MarkerOffset < 0 {
		return fmt.Errorf("%w marker offset %d", ErrGrammar, g.MarkerOffset)
	}
	if g.Marker == "" || strings.ContainsAny(g.Marker, " \t") {
		return fmt.Errorf("%w marker %q", ErrGrammar, g.Marker)
	}
	if g.SelfContained == "" && g.Continuable == "" {
		return fmt.Errorf("%w no call types", ErrGrammar)
	}
	for _, set := range []string{g.SelfContained, g.Continuable} {
		for _, c := range set {
			if c < 'A' || c > 'Z' {
				return fmt.Errorf("%w call type %q", ErrGrammar, c)
			}
		}
	}
	if strings.ContainsAny(g.SelfContained, g.Continuable) {
		return fmt.Errorf("%w call types %q and %q overlap", ErrGrammar, g.SelfContained, g.Continuable)
	}
	switch g.Strategy {
	case StrategyMarker, StrategyLegacy:
	default:
		return fmt.Errorf("%w strategy %q", ErrGrammar, g.Strategy)
	}
	return nil
}

// CallTypeAt достаёт код вызова из фиксированной колонки сырой строки.
func (g Grammar) CallTypeAt(raw string) (byte, bool) {
	if g.CallTypeOffset >= len(raw) {
		return 0, false
	}
	return raw[g.CallTypeOffset], true
}

// MarkerAt проверяет маркер продолжения на фиксированной колонке.
// Строка короче колонки - просто нет продолжения.
func (g Grammar) MarkerAt(raw string) bool {
	end := g.MarkerOffset + len(g.Marker)
	if end > len(raw) {
		return false
	}
	return raw[g.MarkerOffset:end] == g.Marker
}

// Eligible - ждать ли для строки вторую половину.
func (g Grammar) Eligible(raw string) bool {
	if g.Strategy == StrategyLegacy {
		return strings.Contains(raw, g.Marker)
	}
	return g.MarkerAt(raw)
}

func (g Grammar) selfContained(ct string) bool {
	return ct != "" && strings.Contains(g.SelfContained, ct)
}

func (g Grammar) continuable(ct string) bool {
	return ct != "" && strings.Contains(g.Continuable, ct)
}
