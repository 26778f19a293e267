package publisher

import (
	"context"
	"encoding/json"

	"github.com/nevian427/yasmdr/internal/model"
)

// Publisher - брокер, куда уходят готовые записи помимо БД.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// PublishCDR кладёт запись в её топик в виде JSON.
func PublishCDR(ctx context.Context, pub Publisher, prefix string, rec model.CallRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return pub.Publish(ctx, Topic(prefix, rec), payload)
}
