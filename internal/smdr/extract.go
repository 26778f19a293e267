package smdr

import (
	"strings"
	"unicode/utf8"

	"github.com/nevian427/yasmdr/internal/model"
)

// Extract раскладывает собранную строку по полям записи.
// Первые поля идут строго через пробел, тип вызова - один символ,
// дальше набранный номер. Если в остатке есть маркер - разбираем хвост:
// квалификатор, внутренний номер и всё остальное как входящий номер.
func Extract(line, marker string) (model.CallRecord, error) {
	line = Normalize(line)
	rec := model.CallRecord{Line: line}
	fail := func(field string) error {
		return &LineError{Err: ErrMalformedLine, Field: field, Line: line}
	}

	rest := line
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"extension", &rec.Extension},
		{"circuitId", &rec.CircuitID},
		{"callDuration", &rec.CallDuration},
		{"callStartTime", &rec.CallStartTime},
		{"callDate", &rec.CallDate},
	} {
		tok, tail, ok := strings.Cut(rest, " ")
		if !ok || tok == "" {
			return model.CallRecord{}, fail(f.name)
		}
		*f.dst = tok
		rest = tail
	}

	// тип вызова идёт без пробела, вплотную к номеру
	if rest == "" {
		return model.CallRecord{}, fail("callType")
	}
	_, size := utf8.DecodeRuneInString(rest)
	rec.CallType = rest[:size]
	rest = strings.TrimPrefix(rest[size:], " ")
	if rest == "" {
		return model.CallRecord{}, fail("numberDialed")
	}

	// пустая колонка номера - маркер сразу за типом
	if marker == "" || !strings.HasPrefix(rest, marker) {
		rec.NumberDialed, rest, _ = strings.Cut(rest, " ")
	}

	if marker != "" && strings.Contains(rest, marker) {
		rec.Qualifier, rest, _ = strings.Cut(rest, " ")
		rec.InternalExt, rest, _ = strings.Cut(rest, " ")
		// caller-ID может содержать пробелы, хвост берём целиком
		rec.InboundNumber = rest
	}

	return rec, nil
}
