package pg

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/nevian427/yasmdr/internal/config"
	"github.com/nevian427/yasmdr/internal/model"
	"github.com/nevian427/yasmdr/internal/storage/contracts"
	jww "github.com/spf13/jwalterweatherman"
)

type pgStore struct {
	*pgxpool.Pool
	table string
}

// Создаём новое соединение с БД
func Connect(ctx context.Context, cfg *config.Config) (contracts.IStore, error) {
	pool, err := pgxpool.Connect(ctx, fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable", cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBUser, cfg.DBPassword))
	if err != nil {
		// без БД делать нам нечего - аварийно выходим
		return nil, fmt.Errorf("%w err: %s", contracts.ErrDBConnFail, err)
	}
	jww.INFO.Println("Started DB pool")
	return &pgStore{Pool: pool, table: cfg.DBTable}, nil
}

func (p *pgStore) CreateTable(ctx context.Context, table string) error {
	// Пытаемся создать таблицу для сохранения информации
	_, err := p.Pool.Exec(ctx, createTableQuery(table))
	if err != nil {
		return fmt.Errorf("%w err: %s", contracts.ErrDBCreateTable, err)
	}
	p.table = table

	return nil
}

// поля храним как пришли со станции, длину не ограничиваем
func createTableQuery(table string) string {
	return `CREATE TABLE IF NOT EXISTS ` + table +
		`(
      id serial primary key,
      host text not null,
      received timestamptz,
      extension text,
      circuit_id text,
      call_duration text,
      call_start_time text,
      call_date text,
      call_type text,
      number_dialed text,
      qualifier text,
      internal_ext text,
      inbound_number text
    );
    CREATE INDEX IF NOT EXISTS ` + table + `_extension_idx ON ` + table + ` USING btree (extension);
    CREATE INDEX IF NOT EXISTS ` + table + `_number_dialed_idx ON ` + table + ` USING btree (number_dialed);
    CREATE INDEX IF NOT EXISTS ` + table + `_inbound_number_idx ON ` + table + ` USING btree (inbound_number);
    CREATE INDEX IF NOT EXISTS ` + table + `_received_idx ON ` + table + ` USING brin (received)`
}

func insertQuery(table string) string {
	ph := make([]string, len(contracts.Columns))
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	return "insert into " + table + " (" + strings.Join(contracts.Columns, ", ") + ") values (" + strings.Join(ph, ", ") + ")"
}

func (p *pgStore) insert(ctx context.Context, cdr model.CallRecord) error {
	// Exec сам возвращает соединение в пул
	commandTag, err := p.Pool.Exec(ctx, insertQuery(p.table), contracts.Values(cdr)...)
	if err != nil {
		return fmt.Errorf("%w %s", contracts.ErrDBInsert, err)
	} else if commandTag.RowsAffected() != 1 {
		return fmt.Errorf("%w unknown reason", contracts.ErrDBInsert)
	}
	return nil
}

// Вставка разобраной строки из структуры в БД
func (p *pgStore) WatchCDR(ctx context.Context, dbCh <-chan model.CallRecord) error {
	return contracts.Watch(ctx, dbCh, p.insert)
}

func (p *pgStore) Close() {
	p.Pool.Close()
}
