package smdr

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalize схлопывает любые пробельные последовательности (включая CR/LF
// и NUL-набивку порта) в один пробел и обрезает края.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == 0 || (r != utf8.RuneError && unicode.IsSpace(r)) {
			space = true
			i += size
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		// битые байты переносим как есть
		b.WriteString(s[i : i+size])
		i += size
	}
	return b.String()
}
