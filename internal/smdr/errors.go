package smdr

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedLine        = errors.New("malformed SMDR line")
	ErrOrphanedContinuation = errors.New("orphaned continuation")
	ErrUnknownCallType      = errors.New("unknown call type")
)

// LineError - ошибка разбора конкретной строки. Все они восстановимые,
// приём продолжается со следующей строки.
type LineError struct {
	Err error
	// поле, на котором споткнулись
	Field string
	Line  string
}

func (e *LineError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s at %s: %q", e.Err, e.Field, e.Line)
	}
	return fmt.Sprintf("%s: %q", e.Err, e.Line)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Kind - короткое имя ошибки для меток метрик.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrMalformedLine):
		return "malformed"
	case errors.Is(err, ErrOrphanedContinuation):
		return "orphan"
	case errors.Is(err, ErrUnknownCallType):
		return "calltype"
	default:
		return "other"
	}
}
