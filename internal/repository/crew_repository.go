package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/field-dispatch/internal/domain"
)

// CrewFilter narrows crew listings.
type CrewFilter struct {
	Statuses []domain.CrewStatus
	Types    []domain.CrewType
	Limit    int
}

// CrewRepository handles crew records and their open workload.
type CrewRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Crew, error)
	List(ctx context.Context, filter CrewFilter) ([]domain.Crew, error)
	AddAssignment(ctx context.Context, crewID, ticketID string) error
	RemoveAssignment(ctx context.Context, crewID, ticketID string) error
	UpdateLocation(ctx context.Context, crewID string, loc domain.Coordinate, at time.Time) error
}

type crewRepository struct {
	db DBTX
}

// NewCrewRepository instantiates the repository.
func NewCrewRepository(db DBTX) CrewRepository {
	return &crewRepository{db: db}
}

const crewColumns = `c.id, c.name, c.status, c.crew_type, c.zone, c.coverage_departments, c.interzonal,
               c.skills, c.inventory, c.lat, c.lng, c.location_updated_at,
               COALESCE((SELECT array_agg(a.ticket_id ORDER BY a.ticket_id) FROM crew_assignments a WHERE a.crew_id = c.id), '{}')`

func (r *crewRepository) GetByID(ctx context.Context, id string) (*domain.Crew, error) {
	query := `SELECT ` + crewColumns + ` FROM crews c WHERE c.id=$1`
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	crews, err := scanCrews(rows)
	if err != nil {
		return nil, err
	}
	if len(crews) == 0 {
		return nil, ErrNotFound
	}
	return &crews[0], nil
}

func (r *crewRepository) List(ctx context.Context, filter CrewFilter) ([]domain.Crew, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("c.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			args = append(args, t)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("c.crew_type IN (%s)", strings.Join(placeholders, ",")))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	query := fmt.Sprintf(`SELECT %s FROM crews c WHERE %s ORDER BY c.id LIMIT %d`,
		crewColumns, strings.Join(clauses, " AND "), limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCrews(rows)
}

func (r *crewRepository) AddAssignment(ctx context.Context, crewID, ticketID string) error {
	const query = `
        INSERT INTO crew_assignments (crew_id, ticket_id, assigned_at) VALUES ($1,$2,NOW())
        ON CONFLICT (crew_id, ticket_id) DO NOTHING`
	_, err := r.db.Exec(ctx, query, crewID, ticketID)
	return err
}

func (r *crewRepository) RemoveAssignment(ctx context.Context, crewID, ticketID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM crew_assignments WHERE crew_id=$1 AND ticket_id=$2`, crewID, ticketID)
	return err
}

func (r *crewRepository) UpdateLocation(ctx context.Context, crewID string, loc domain.Coordinate, at time.Time) error {
	const query = `
        UPDATE crews SET lat=$1, lng=$2, location_updated_at=$3
        WHERE id=$4 AND (location_updated_at IS NULL OR location_updated_at <= $3)`
	cmd, err := r.db.Exec(ctx, query, loc.Lat, loc.Lng, at, crewID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, crewID); err != nil {
			return err
		}
	}
	return nil
}

func scanCrews(rows pgx.Rows) ([]domain.Crew, error) {
	var result []domain.Crew
	for rows.Next() {
		var (
			crew     domain.Crew
			lat, lng *float64
		)
		if err := rows.Scan(
			&crew.ID,
			&crew.Name,
			&crew.Status,
			&crew.Type,
			&crew.Zone,
			&crew.CoverageDepartments,
			&crew.Interzonal,
			&crew.Skills,
			&crew.Inventory,
			&lat,
			&lng,
			&crew.LocationUpdatedAt,
			&crew.AssignedTicketIDs,
		); err != nil {
			return nil, err
		}
		if lat != nil && lng != nil {
			crew.CurrentLocation = &domain.Coordinate{Lat: *lat, Lng: *lng}
		}
		result = append(result, crew)
	}
	return result, rows.Err()
}
