package fleetsource

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kilianp07/ambudispatch/core/fleet"
)

// DefaultTable holds the fleet roster.
const DefaultTable = "units"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PostgresConfig locates the roster table.
type PostgresConfig struct {
	DSN   string `json:"dsn"`
	Table string `json:"table"`
}

// querier is satisfied by *pgxpool.Pool and *pgx.Conn.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres reads the fleet from a table with columns
// id, level, latitude, longitude, status.
type Postgres struct {
	db    querier
	table string
}

// NewPostgres wraps an existing pool or connection.
func NewPostgres(db querier, table string) (*Postgres, error) {
	if table == "" {
		table = DefaultTable
	}
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("fleet postgres: invalid table name %q", table)
	}
	return &Postgres{db: db, table: table}, nil
}

// OpenPostgres connects with cfg.DSN and verifies connectivity.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, *pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres parse dsn: %w", err)
	}
	pcfg.ConnConfig.ConnectTimeout = 5 * time.Second
	pcfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres ping: %w", err)
	}
	src, err := NewPostgres(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return src, pool, nil
}

func (p *Postgres) Load(ctx context.Context) ([]fleet.Row, error) {
	rows, err := p.db.Query(ctx, `SELECT id, level, latitude, longitude, status FROM `+p.table+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", p.table, err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (fleet.Row, error) {
		var row fleet.Row
		err := r.Scan(&row.ID, &row.Level, &row.Latitude, &row.Longitude, &row.Status)
		return row, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", p.table, err)
	}
	return out, nil
}
