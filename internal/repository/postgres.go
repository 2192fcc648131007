package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPostgresRepositories wires every pgx-backed repository onto pool.
// InTx opens a pgx transaction and rebinds the repositories to it.
func NewPostgresRepositories(pool *pgxpool.Pool) Repositories {
	repos := postgresRepositories(pool)
	repos.tx = func(ctx context.Context, _ Repositories, fn TxFunc) error {
		return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			return fn(ctx, postgresRepositories(tx))
		})
	}
	return repos
}

func postgresRepositories(db DBTX) Repositories {
	return Repositories{
		Tickets:    NewTicketRepository(db),
		History:    NewTicketHistoryRepository(db),
		Sites:      NewSiteRepository(db),
		Crews:      NewCrewRepository(db),
		Evidence:   NewEvidenceRepository(db),
		Dispatches: NewDispatchRepository(db),
	}
}
