package publisher

import (
	"context"
	"strings"

	"github.com/nevian427/yasmdr/internal/model"
	srvmetrics "github.com/nevian427/yasmdr/internal/server/metrics"
	jww "github.com/spf13/jwalterweatherman"
)

var topicReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_", " ", "_")

// Topic - <prefix>/cdr/<source>/<calltype>. Символы-шаблоны MQTT
// в источнике заменяем, у serial там путь к устройству.
func Topic(prefix string, rec model.CallRecord) string {
	source := topicReplacer.Replace(rec.Source)
	if source == "" {
		source = "unknown"
	}
	return prefix + "/cdr/" + source + "/" + rec.CallType
}

// WatchCDR публикует каждую запись из канала в JSON. Ошибки брокера
// не останавливают приём, запись просто теряется для этого получателя.
func WatchCDR(ctx context.Context, pubCh <-chan model.CallRecord, pub Publisher, prefix string) error {
	defer func() {
		jww.INFO.Println("Shutdown MQTT publisher")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-pubCh:
			if !ok {
				return nil
			}
			if err := PublishCDR(ctx, pub, prefix, rec); err != nil {
				jww.WARN.Printf("CDR not published: %s", err)
				srvmetrics.Counter("yasmdr_mqtt_err_count", "source", rec.Source).Inc()
			}
		}
	}
}
