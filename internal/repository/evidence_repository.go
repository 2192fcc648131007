package repository

import (
	"context"

	"github.com/spec-kit/field-dispatch/internal/domain"
)

// EvidenceRepository stores one evidence bundle per ticket.
type EvidenceRepository interface {
	Get(ctx context.Context, ticketID string) (*domain.EvidenceBundle, error)
	Save(ctx context.Context, bundle *domain.EvidenceBundle) error
}

type evidenceRepository struct {
	db DBTX
}

// NewEvidenceRepository instantiates the repository.
func NewEvidenceRepository(db DBTX) EvidenceRepository {
	return &evidenceRepository{db: db}
}

func (r *evidenceRepository) Get(ctx context.Context, ticketID string) (*domain.EvidenceBundle, error) {
	const query = `
        SELECT ticket_id, before_photo_url, after_photo_url, checklist_completed, capture_lat, capture_lng,
               safety_verified, equipment_verified, valid, validated_by, validated_at, rejection_reason, updated_at
        FROM evidence_bundles WHERE ticket_id=$1`
	var (
		bundle   domain.EvidenceBundle
		lat, lng *float64
	)
	if err := r.db.QueryRow(ctx, query, ticketID).Scan(
		&bundle.TicketID,
		&bundle.BeforePhotoURL,
		&bundle.AfterPhotoURL,
		&bundle.ChecklistCompleted,
		&lat,
		&lng,
		&bundle.Requirements.SafetyVerified,
		&bundle.Requirements.EquipmentVerified,
		&bundle.Valid,
		&bundle.ValidatedBy,
		&bundle.ValidatedAt,
		&bundle.RejectionReason,
		&bundle.UpdatedAt,
	); err != nil {
		return nil, mapNoRows(err)
	}
	if lat != nil && lng != nil {
		bundle.CaptureLocation = &domain.Coordinate{Lat: *lat, Lng: *lng}
	}
	return &bundle, nil
}

func (r *evidenceRepository) Save(ctx context.Context, bundle *domain.EvidenceBundle) error {
	const query = `
        INSERT INTO evidence_bundles (ticket_id, before_photo_url, after_photo_url, checklist_completed,
            capture_lat, capture_lng, safety_verified, equipment_verified, valid, validated_by, validated_at,
            rejection_reason, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        ON CONFLICT (ticket_id) DO UPDATE SET
            before_photo_url=EXCLUDED.before_photo_url,
            after_photo_url=EXCLUDED.after_photo_url,
            checklist_completed=EXCLUDED.checklist_completed,
            capture_lat=EXCLUDED.capture_lat,
            capture_lng=EXCLUDED.capture_lng,
            safety_verified=EXCLUDED.safety_verified,
            equipment_verified=EXCLUDED.equipment_verified,
            valid=EXCLUDED.valid,
            validated_by=EXCLUDED.validated_by,
            validated_at=EXCLUDED.validated_at,
            rejection_reason=EXCLUDED.rejection_reason,
            updated_at=EXCLUDED.updated_at`
	var lat, lng *float64
	if bundle.CaptureLocation != nil {
		lat, lng = &bundle.CaptureLocation.Lat, &bundle.CaptureLocation.Lng
	}
	_, err := r.db.Exec(ctx, query,
		bundle.TicketID,
		bundle.BeforePhotoURL,
		bundle.AfterPhotoURL,
		bundle.ChecklistCompleted,
		lat,
		lng,
		bundle.Requirements.SafetyVerified,
		bundle.Requirements.EquipmentVerified,
		bundle.Valid,
		bundle.ValidatedBy,
		bundle.ValidatedAt,
		bundle.RejectionReason,
		bundle.UpdatedAt,
	)
	return err
}
