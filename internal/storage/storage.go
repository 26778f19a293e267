package storage

import (
	"context"
	"fmt"

	"github.com/nevian427/yasmdr/internal/config"
	"github.com/nevian427/yasmdr/internal/storage/contracts"
	"github.com/nevian427/yasmdr/internal/storage/pg"
	"github.com/nevian427/yasmdr/internal/storage/sqldb"
)

func New(ctx context.Context, cfg *config.Config) (contracts.IStore, error) {
	switch cfg.DBDriver {
	case "mysql":
		return sqldb.Open(ctx, "mysql", sqldb.MySQLDSN(cfg))
	case "sqlite", "sqlite3":
		return sqldb.Open(ctx, "sqlite", cfg.DBPath)
	case "pg", "pgsql", "postgresql":
		return pg.Connect(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: Invalid DB driver %s", contracts.ErrDBConnFail, cfg.DBDriver)
	}
}
