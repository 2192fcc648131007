package repository

import (
	"context"

	"github.com/spec-kit/field-dispatch/internal/domain"
)

// TicketHistoryRepository stores audit entries keyed by event id.
type TicketHistoryRepository interface {
	// Append stores entry unless an entry with the same event id exists.
	Append(ctx context.Context, entry *domain.TicketHistory) (bool, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	db DBTX
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(db DBTX) TicketHistoryRepository {
	return &ticketHistoryRepository{db: db}
}

func (r *ticketHistoryRepository) Append(ctx context.Context, entry *domain.TicketHistory) (bool, error) {
	const query = `
        INSERT INTO ticket_history (event_id, ticket_id, action, old_status, new_status, actor_id, milestone_at, details, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (event_id) DO NOTHING`
	cmd, err := r.db.Exec(ctx, query,
		entry.EventID,
		entry.TicketID,
		entry.Action,
		entry.OldStatus,
		entry.NewStatus,
		entry.ActorID,
		entry.MilestoneAt,
		entry.Details,
		entry.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	const query = `
        SELECT event_id, ticket_id, action, old_status, new_status, actor_id, milestone_at, details, created_at
        FROM ticket_history WHERE ticket_id=$1 ORDER BY created_at ASC, event_id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketHistory
	for rows.Next() {
		var history domain.TicketHistory
		if err := rows.Scan(
			&history.EventID,
			&history.TicketID,
			&history.Action,
			&history.OldStatus,
			&history.NewStatus,
			&history.ActorID,
			&history.MilestoneAt,
			&history.Details,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
