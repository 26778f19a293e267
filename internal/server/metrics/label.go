package metrics

import (
	"strings"

	"github.com/VictoriaMetrics/metrics"
)

// значения меток приходят со станции как есть, кавычка в них
// ломает имя метрики и metrics паникует
var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// Counter - счётчик name{k1="v1", k2="v2"} с экранированными значениями.
// labels идут парами ключ-значение, ключи задаём только мы сами.
func Counter(name string, labels ...string) *metrics.Counter {
	if len(labels) == 0 {
		return metrics.GetOrCreateCounter(name)
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i := 0; i+1 < len(labels); i += 2 {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(labels[i])
		b.WriteString(`="`)
		b.WriteString(labelEscaper.Replace(labels[i+1]))
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return metrics.GetOrCreateCounter(b.String())
}
