package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GoSim-25-26J-441/studio-collab-backend/internal/storage/postgres"
)

type DBOptions struct {
	DSN       string
	ConnectTO time.Duration
	PingTO    time.Duration
	Migrate   bool
}

// Durable is the Postgres connection shared by the stores and the health check.
type Durable struct {
	Pool *pgxpool.Pool
	SQL  *sql.DB
}

func (d *Durable) Close() {
	if d == nil {
		return
	}
	_ = d.SQL.Close()
	d.Pool.Close()
}

// OpenDB returns nil without error when no DSN is configured; the service
// then only serves local device stores.
func OpenDB(ctx context.Context, opt DBOptions) (*Durable, error) {
	if opt.DSN == "" {
		return nil, nil
	}
	if opt.ConnectTO == 0 {
		opt.ConnectTO = 5 * time.Second
	}

	cctx, cancel := context.WithTimeout(ctx, opt.ConnectTO)
	defer cancel()

	pool, err := postgres.OpenPool(cctx, postgres.PoolOptions{DSN: opt.DSN, PingTO: opt.PingTO})
	if err != nil {
		return nil, err
	}

	d := &Durable{Pool: pool, SQL: postgres.SQLDB(pool)}
	if opt.Migrate {
		if err := postgres.Migrate(ctx, d.SQL); err != nil {
			d.Close()
			return nil, fmt.Errorf("db migrate: %w", err)
		}
	}
	return d, nil
}
