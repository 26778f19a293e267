package contracts

import (
	"context"
	"errors"
	"reflect"

	"github.com/nevian427/yasmdr/internal/model"
	srvmetrics "github.com/nevian427/yasmdr/internal/server/metrics"
	jww "github.com/spf13/jwalterweatherman"
)

type IStore interface {
	CreateTable(ctx context.Context, table string) error
	WatchCDR(ctx context.Context, dbCh <-chan model.CallRecord) error
	Close()
}

var (
	ErrDBConnFail    = errors.New("DB connection failed:")
	ErrDBCreateTable = errors.New("Creation CDR table failed:")
	ErrDBInsert      = errors.New("CDR not inserted:")
)

// Columns - колонки таблицы по тегам db у model.CallRecord, в порядке полей.
// Values отдаёт значения в том же порядке.
var Columns, fieldIdx = dbFields()

func dbFields() ([]string, []int) {
	var (
		cols []string
		idx  []int
	)
	t := reflect.TypeOf(model.CallRecord{})
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		cols = append(cols, tag)
		idx = append(idx, i)
	}
	return cols, idx
}

func Values(cdr model.CallRecord) []interface{} {
	v := reflect.ValueOf(cdr)
	vals := make([]interface{}, len(fieldIdx))
	for n, i := range fieldIdx {
		vals[n] = v.Field(i).Interface()
	}
	return vals
}

// Watch вычитывает канал и пишет каждую запись через insert.
// Ошибка вставки не останавливает приём - логируем и едем дальше.
func Watch(ctx context.Context, dbCh <-chan model.CallRecord, insert func(context.Context, model.CallRecord) error) error {
	defer func() {
		// заглушка, реальное закрытие в майне
		jww.INFO.Println("Shutdown insertDB worker")
	}()

	for {
		select {
		// сигнал на выход
		case <-ctx.Done():
			return ctx.Err()
		case cdr, ok := <-dbCh:
			// канал закрыт делать больше нечего
			if !ok {
				return nil
			}
			if err := insert(ctx, cdr); err != nil {
				jww.ERROR.Println(err)
				srvmetrics.Counter("yasmdr_db_err_count", "source", cdr.Source).Inc()
			}
		}
	}
}
