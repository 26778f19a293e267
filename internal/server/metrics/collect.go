package metrics

import (
	"github.com/nevian427/yasmdr/internal/model"
)

// собираем метрики во время работы
func MetricsCDR(metricsCh <-chan model.CallRecord) error {
	for {
		cdr, ok := <-metricsCh
		// канал закрыт делать больше нечего
		if !ok {
			return nil
		}
		Counter("yasmdr_cdr_count", "source", cdr.Source, "type", cdr.CallType).Inc()
		if cdr.Continued() {
			Counter("yasmdr_cdr_continued_count", "source", cdr.Source).Inc()
		}
		if cdr.CircuitID != "" {
			Counter("yasmdr_cdr_trunk_count", "source", cdr.Source, "circuit", cdr.CircuitID).Inc()
			// длительность бывает пустой или кривой - тогда не суммируем
			if d, ok := cdr.DurationSeconds(); ok {
				Counter("yasmdr_cdr_trunk_duration", "source", cdr.Source, "circuit", cdr.CircuitID).Add(d)
			}
		}
	}
}
