package internal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

// verdictJobArgs wraps a security record as a River job payload. The kind is
// configurable so multiple receivers can share one jobs table.
type verdictJobArgs struct {
	Record SecurityRecord `json:"record"`

	kind string
}

func (a verdictJobArgs) Kind() string { return a.kind }

// riverForwarder inserts one River job per security record using an
// insert-only client.
type riverForwarder struct {
	pool   *pgxpool.Pool
	client *river.Client[pgx.Tx]
	cfg    RiverQueueConfig
}

func newRiverForwarder(cfg RiverQueueConfig) (*riverForwarder, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("riverqueue dsn is required")
	}
	pool, err := pgxpool.New(context.Background(), cfg.DSN)
	if err != nil {
		return nil, err
	}
	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{})
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &riverForwarder{pool: pool, client: client, cfg: cfg}, nil
}

func (f *riverForwarder) Forward(ctx context.Context, record SecurityRecord) error {
	args := verdictJobArgs{Record: record, kind: f.cfg.Kind}
	_, err := f.client.Insert(ctx, args, &river.InsertOpts{
		Queue:       f.cfg.Queue,
		MaxAttempts: f.cfg.MaxAttempts,
	})
	return err
}

func (f *riverForwarder) Close() error {
	f.pool.Close()
	return nil
}
