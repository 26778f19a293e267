package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/nevian427/yasmdr/internal/config"
	"github.com/nevian427/yasmdr/internal/model"
	"github.com/nevian427/yasmdr/internal/storage/contracts"
	jww "github.com/spf13/jwalterweatherman"
	_ "modernc.org/sqlite"
)

// store - хранилище поверх database/sql: sqlite и mysql.
// У обоих плейсхолдеры "?", отличаются только DDL.
type store struct {
	db     *sql.DB
	driver string
	table  string
}

// Open открывает БД драйвером driver ("sqlite" или "mysql").
func Open(ctx context.Context, driver, dsn string) (contracts.IStore, error) {
	if _, ok := schemas[driver]; !ok {
		return nil, fmt.Errorf("%w unsupported driver %s", contracts.ErrDBConnFail, driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w err: %s", contracts.ErrDBConnFail, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w err: %s", contracts.ErrDBConnFail, err)
	}
	jww.INFO.Printf("Opened %s DB", driver)
	return &store{db: db, driver: driver}, nil
}

// MySQLDSN собирает строку подключения из конфига.
func MySQLDSN(cfg *config.Config) string {
	mc := mysql.NewConfig()
	mc.User = cfg.DBUser
	mc.Passwd = cfg.DBPassword
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.DBHost, cfg.DBPort)
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	return mc.FormatDSN()
}

var schemas = map[string]func(table string) []string{
	"sqlite": func(table string) []string {
		return []string{
			`CREATE TABLE IF NOT EXISTS ` + table + ` (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            host TEXT NOT NULL,
            received TIMESTAMP,
            extension TEXT,
            circuit_id TEXT,
            call_duration TEXT,
            call_start_time TEXT,
            call_date TEXT,
            call_type TEXT,
            number_dialed TEXT,
            qualifier TEXT,
            internal_ext TEXT,
            inbound_number TEXT
        );`,
			`CREATE INDEX IF NOT EXISTS ` + table + `_number_dialed_idx ON ` + table + `(number_dialed);`,
			`CREATE INDEX IF NOT EXISTS ` + table + `_received_idx ON ` + table + `(received);`,
		}
	},
	"mysql": func(table string) []string {
		return []string{
			`CREATE TABLE IF NOT EXISTS ` + table + ` (
            id BIGINT AUTO_INCREMENT PRIMARY KEY,
            host VARCHAR(255) NOT NULL,
            received DATETIME(3),
            extension TEXT,
            circuit_id TEXT,
            call_duration TEXT,
            call_start_time TEXT,
            call_date TEXT,
            call_type TEXT,
            number_dialed TEXT,
            qualifier TEXT,
            internal_ext TEXT,
            inbound_number TEXT,
            INDEX ` + table + `_number_dialed_idx (number_dialed(32)),
            INDEX ` + table + `_received_idx (received)
        )`,
		}
	},
}

func (s *store) CreateTable(ctx context.Context, table string) error {
	// mysql не любит несколько запросов в одном Exec
	for _, stmt := range schemas[s.driver](table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w err: %s", contracts.ErrDBCreateTable, err)
		}
	}
	s.table = table
	return nil
}

func (s *store) insert(ctx context.Context, cdr model.CallRecord) error {
	query := "INSERT INTO " + s.table + " (" + strings.Join(contracts.Columns, ", ") +
		") VALUES (" + strings.TrimSuffix(strings.Repeat("?, ", len(contracts.Columns)), ", ") + ")"
	res, err := s.db.ExecContext(ctx, query, contracts.Values(cdr)...)
	if err != nil {
		return fmt.Errorf("%w %s", contracts.ErrDBInsert, err)
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		return fmt.Errorf("%w unknown reason", contracts.ErrDBInsert)
	}
	return nil
}

func (s *store) WatchCDR(ctx context.Context, dbCh <-chan model.CallRecord) error {
	return contracts.Watch(ctx, dbCh, s.insert)
}

func (s *store) Close() {
	if err := s.db.Close(); err != nil {
		jww.ERROR.Println(err)
	}
}
