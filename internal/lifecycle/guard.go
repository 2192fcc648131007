package lifecycle

import (
	"fmt"

	"github.com/spec-kit/field-dispatch/internal/domain"
)

// GuardReason is a machine-readable cause for a refused transition.
type GuardReason string

const (
	ReasonCrewNotSelected        GuardReason = "crew_not_selected"
	ReasonCrewLocationUnknown    GuardReason = "crew_location_unknown"
	ReasonOutOfRange             GuardReason = "out_of_range"
	ReasonRequirementsIncomplete GuardReason = "requirements_incomplete"
	ReasonEvidenceIncomplete     GuardReason = "evidence_incomplete"
	ReasonEvidenceOutOfRange     GuardReason = "evidence_out_of_range"
	ReasonEvidenceNotValidated   GuardReason = "evidence_not_validated"
)

// GuardError reports a refused transition. The ticket keeps its status and
// the attempt must be re-triggered by a new user action.
type GuardError struct {
	Action  Action
	Status  domain.TicketStatus
	Reason  GuardReason
	Message string
	Details map[string]any
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("%s refused in %s: %s", e.Action, e.Status, e.Message)
}

func guardFailure(action Action, status domain.TicketStatus, reason GuardReason, message string, details map[string]any) *GuardError {
	if details == nil {
		details = map[string]any{}
	}
	return &GuardError{Action: action, Status: status, Reason: reason, Message: message, Details: details}
}
