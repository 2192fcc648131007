package dto

import (
	"time"

	"github.com/spec-kit/field-dispatch/internal/domain"
	"github.com/spec-kit/field-dispatch/internal/geofence"
	"github.com/spec-kit/field-dispatch/internal/lifecycle"
)

// ArrivalRequest payload. Without a location the crew's last report is used.
type ArrivalRequest struct {
	Location *domain.Coordinate `json:"location"`
}

// RequirementsRequest payload.
type RequirementsRequest struct {
	SafetyVerified    *bool `json:"safety_verified"`
	EquipmentVerified *bool `json:"equipment_verified"`
}

// EvidenceRequest payload. Absent fields are left unchanged.
type EvidenceRequest struct {
	BeforePhotoURL     *string            `json:"before_photo_url"`
	AfterPhotoURL      *string            `json:"after_photo_url"`
	ChecklistCompleted *bool              `json:"checklist_completed"`
	CaptureLocation    *domain.Coordinate `json:"capture_location"`
}

// RejectRequest payload.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// EvidenceResponse payload.
type EvidenceResponse struct {
	BeforePhotoURL     string                  `json:"before_photo_url"`
	AfterPhotoURL      string                  `json:"after_photo_url"`
	ChecklistCompleted bool                    `json:"checklist_completed"`
	CaptureLocation    *domain.Coordinate      `json:"capture_location"`
	Requirements       domain.RequirementFlags `json:"requirements"`
	Missing            []string                `json:"missing"`
	Valid              bool                    `json:"valid"`
	ValidatedBy        *string                 `json:"validated_by"`
	ValidatedAt        *time.Time              `json:"validated_at"`
	RejectionReason    *string                 `json:"rejection_reason"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

// TransitionResponse reports an applied transition.
type TransitionResponse struct {
	Ticket TicketResponse        `json:"ticket"`
	Change lifecycle.StateChange `json:"change"`
	Check  *geofence.Check       `json:"geofence,omitempty"`
}

// NewEvidenceResponse maps an evidence bundle.
func NewEvidenceResponse(b *domain.EvidenceBundle) EvidenceResponse {
	return EvidenceResponse{
		BeforePhotoURL:     b.BeforePhotoURL,
		AfterPhotoURL:      b.AfterPhotoURL,
		ChecklistCompleted: b.ChecklistCompleted,
		CaptureLocation:    b.CaptureLocation,
		Requirements:       b.Requirements,
		Missing:            b.MissingItems(),
		Valid:              b.Valid,
		ValidatedBy:        b.ValidatedBy,
		ValidatedAt:        b.ValidatedAt,
		RejectionReason:    b.RejectionReason,
		UpdatedAt:          b.UpdatedAt,
	}
}

// NewTransitionResponse maps a lifecycle result.
func NewTransitionResponse(res *lifecycle.Result) TransitionResponse {
	return TransitionResponse{
		Ticket: NewTicketResponse(&res.Ticket),
		Change: res.Change,
		Check:  res.Check,
	}
}
