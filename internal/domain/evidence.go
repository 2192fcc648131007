package domain

import "time"

// RequirementFlags holds the two independent checks gating neutralization.
type RequirementFlags struct {
	SafetyVerified    bool `json:"safety_verified"`
	EquipmentVerified bool `json:"equipment_verified"`
}

// Satisfied reports whether both checks are set.
func (f RequirementFlags) Satisfied() bool {
	return f.SafetyVerified && f.EquipmentVerified
}

// EvidenceBundle groups the artifacts proving remediation for a ticket.
type EvidenceBundle struct {
	TicketID           string
	BeforePhotoURL     string
	AfterPhotoURL      string
	ChecklistCompleted bool
	CaptureLocation    *Coordinate
	Requirements       RequirementFlags
	Valid              bool
	ValidatedBy        *string
	ValidatedAt        *time.Time
	RejectionReason    *string
	UpdatedAt          time.Time
}

// MissingItems lists the evidence items not yet captured.
func (b *EvidenceBundle) MissingItems() []string {
	missing := []string{}
	if b == nil {
		return []string{"before_photo", "after_photo", "checklist"}
	}
	if b.BeforePhotoURL == "" {
		missing = append(missing, "before_photo")
	}
	if b.AfterPhotoURL == "" {
		missing = append(missing, "after_photo")
	}
	if !b.ChecklistCompleted {
		missing = append(missing, "checklist")
	}
	return missing
}
