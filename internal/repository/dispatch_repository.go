package repository

import (
	"context"

	"github.com/spec-kit/field-dispatch/internal/domain"
)

// DispatchRepository records crew assignments.
type DispatchRepository interface {
	Create(ctx context.Context, dispatch *domain.Dispatch) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Dispatch, error)
}

type dispatchRepository struct {
	db DBTX
}

// NewDispatchRepository instantiates the repository.
func NewDispatchRepository(db DBTX) DispatchRepository {
	return &dispatchRepository{db: db}
}

func (r *dispatchRepository) Create(ctx context.Context, dispatch *domain.Dispatch) error {
	const query = `
        INSERT INTO dispatches (id, ticket_id, crew_id, source, score, reasoning, assigned_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (id) DO NOTHING`
	_, err := r.db.Exec(ctx, query,
		dispatch.ID,
		dispatch.TicketID,
		dispatch.CrewID,
		dispatch.Source,
		dispatch.Score,
		dispatch.Reasoning,
		dispatch.AssignedAt,
	)
	return err
}

func (r *dispatchRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Dispatch, error) {
	const query = `
        SELECT id, ticket_id, crew_id, source, score, reasoning, assigned_at
        FROM dispatches WHERE ticket_id=$1 ORDER BY assigned_at ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Dispatch
	for rows.Next() {
		var d domain.Dispatch
		if err := rows.Scan(&d.ID, &d.TicketID, &d.CrewID, &d.Source, &d.Score, &d.Reasoning, &d.AssignedAt); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}
