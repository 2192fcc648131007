package repository

import (
	"context"
	"time"

	"github.com/spec-kit/field-dispatch/internal/domain"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Update stores ticket if the stored version equals expectedVersion.
	Update(ctx context.Context, ticket *domain.Ticket, expectedVersion int) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, priority, status, site_id, crew_id, intervention_type, exclusion_cause,
            opened_at, sla_deadline_at, neutralized_at, closed_at, version, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW())
        RETURNING updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.ID,
		ticket.Priority,
		ticket.Status,
		ticket.SiteID,
		ticket.CrewID,
		ticket.InterventionType,
		ticket.ExclusionCause,
		ticket.OpenedAt,
		ticket.SLADeadlineAt,
		ticket.NeutralizedAt,
		ticket.ClosedAt,
		ticket.Version,
	).Scan(&ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket, expectedVersion int) error {
	const query = `
        UPDATE tickets SET status=$1, crew_id=$2, exclusion_cause=$3, neutralized_at=$4, closed_at=$5,
            version=$6, updated_at=$7
        WHERE id=$8 AND version=$9`
	updatedAt := ticket.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	cmd, err := r.db.Exec(ctx, query,
		ticket.Status,
		ticket.CrewID,
		ticket.ExclusionCause,
		ticket.NeutralizedAt,
		ticket.ClosedAt,
		ticket.Version,
		updatedAt,
		ticket.ID,
		expectedVersion,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, ticket.ID); err != nil {
			return err
		}
		return ErrVersionConflict
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `
        SELECT id, priority, status, site_id, crew_id, intervention_type, exclusion_cause,
               opened_at, sla_deadline_at, neutralized_at, closed_at, version, updated_at
        FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.Priority,
		&ticket.Status,
		&ticket.SiteID,
		&ticket.CrewID,
		&ticket.InterventionType,
		&ticket.ExclusionCause,
		&ticket.OpenedAt,
		&ticket.SLADeadlineAt,
		&ticket.NeutralizedAt,
		&ticket.ClosedAt,
		&ticket.Version,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, mapNoRows(err)
	}
	return &ticket, nil
}
