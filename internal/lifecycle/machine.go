// Package lifecycle is the ticket state machine. It is a pure function from
// (ticket snapshot, command, time) to the next snapshot plus the state-change
// event; callers serialize Apply per ticket and persist the result.
package lifecycle

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/field-dispatch/internal/domain"
	"github.com/spec-kit/field-dispatch/internal/geofence"
)

// eventNamespace seeds the deterministic ids of events and dispatches so a
// replayed transition produces the same id.
var eventNamespace = uuid.MustParse("6f1c2a5e-93b4-4d0e-8a57-2f0b8c9d4e11")

// Command is one of the transition requests below.
type Command interface {
	Action() Action
}

// Assign selects a crew for a ticket in recepcion.
type Assign struct {
	CrewID    string
	Source    domain.DispatchSource
	Score     *float64
	Reasoning string
}

// ConfirmArrival moves a ticket on-site when the crew is inside the geofence.
type ConfirmArrival struct {
	CrewLocation *domain.Coordinate
	SiteLocation domain.Coordinate
}

// Neutralize opens remediation once both requirement flags are set.
type Neutralize struct {
	Requirements domain.RequirementFlags
}

// SubmitEvidence sends a complete evidence bundle to supervision.
type SubmitEvidence struct {
	Evidence     *domain.EvidenceBundle
	SiteLocation domain.Coordinate
}

// Approve closes a ticket whose evidence a supervisor marked valid.
type Approve struct {
	Evidence   *domain.EvidenceBundle
	Supervisor string
}

// Reject returns a ticket to neutralizar for new evidence.
type Reject struct {
	Reason     string
	Supervisor string
}

func (Assign) Action() Action         { return ActionAssign }
func (ConfirmArrival) Action() Action { return ActionConfirmArrival }
func (Neutralize) Action() Action     { return ActionNeutralize }
func (SubmitEvidence) Action() Action { return ActionSubmitEvidence }
func (Approve) Action() Action        { return ActionApprove }
func (Reject) Action() Action         { return ActionReject }

// StateChange is emitted for every applied transition.
type StateChange struct {
	EventID     string              `json:"event_id"`
	TicketID    string              `json:"ticket_id"`
	Action      Action              `json:"action"`
	OldStatus   domain.TicketStatus `json:"old_status"`
	NewStatus   domain.TicketStatus `json:"new_status"`
	MilestoneAt *time.Time          `json:"milestone_at,omitempty"`
	Version     int                 `json:"version"`
	At          time.Time           `json:"at"`
}

// Result is the outcome of an accepted transition.
type Result struct {
	Ticket   domain.Ticket
	Change   StateChange
	Dispatch *domain.Dispatch
	Check    *geofence.Check
}

// Machine applies commands. RadiusMeters gates arrival and evidence capture.
type Machine struct {
	RadiusMeters float64
}

// NewMachine builds a machine; a non-positive radius uses the site default.
func NewMachine(radiusMeters float64) *Machine {
	if radiusMeters <= 0 {
		radiusMeters = geofence.SiteRadiusMeters
	}
	return &Machine{RadiusMeters: radiusMeters}
}

// Apply validates cmd against the ticket's current status and guards. On
// success the returned ticket carries the new status and milestones; the
// input is never modified. A failed guard yields *GuardError.
func (m *Machine) Apply(ticket domain.Ticket, cmd Command, now time.Time) (Result, error) {
	if cmd == nil {
		return Result{}, fmt.Errorf("%w: nil command", ErrIllegalTransition)
	}
	action := cmd.Action()
	to, err := Next(ticket.Status, action)
	if err != nil {
		return Result{}, err
	}

	next := ticket
	res := Result{}
	var milestone *time.Time

	switch c := cmd.(type) {
	case Assign:
		crewID := strings.TrimSpace(c.CrewID)
		if crewID == "" {
			return Result{}, guardFailure(action, ticket.Status, ReasonCrewNotSelected, "a crew must be selected", nil)
		}
		next.CrewID = &crewID
		res.Dispatch = &domain.Dispatch{
			ID:         deterministicID("dispatch", ticket.ID, crewID, strconv.Itoa(ticket.Version)),
			TicketID:   ticket.ID,
			CrewID:     crewID,
			Source:     c.Source,
			Score:      c.Score,
			Reasoning:  c.Reasoning,
			AssignedAt: now,
		}
	case ConfirmArrival:
		if c.CrewLocation == nil {
			return Result{}, guardFailure(action, ticket.Status, ReasonCrewLocationUnknown, "crew location unknown", nil)
		}
		if err := validateBoth(*c.CrewLocation, c.SiteLocation); err != nil {
			return Result{}, err
		}
		check := geofence.Evaluate(*c.CrewLocation, c.SiteLocation, m.RadiusMeters)
		if !check.Inside {
			return Result{}, guardFailure(action, ticket.Status, ReasonOutOfRange,
				fmt.Sprintf("out of range, distance = %.0fm", check.DistanceMeters),
				map[string]any{"distance_meters": check.DistanceMeters, "radius_meters": check.RadiusMeters})
		}
		res.Check = &check
	case Neutralize:
		if !c.Requirements.Satisfied() {
			return Result{}, guardFailure(action, ticket.Status, ReasonRequirementsIncomplete,
				"safety and equipment verification are both required",
				map[string]any{
					"safety_verified":    c.Requirements.SafetyVerified,
					"equipment_verified": c.Requirements.EquipmentVerified,
				})
		}
		if next.NeutralizedAt == nil {
			at := now
			next.NeutralizedAt = &at
		}
		milestone = next.NeutralizedAt
	case SubmitEvidence:
		missing := c.Evidence.MissingItems()
		if c.Evidence != nil && c.Evidence.CaptureLocation == nil {
			missing = append(missing, "capture_location")
		}
		if len(missing) > 0 {
			return Result{}, guardFailure(action, ticket.Status, ReasonEvidenceIncomplete,
				"evidence bundle incomplete: "+strings.Join(missing, ", "),
				map[string]any{"missing": missing})
		}
		if err := validateBoth(*c.Evidence.CaptureLocation, c.SiteLocation); err != nil {
			return Result{}, err
		}
		check := geofence.Evaluate(*c.Evidence.CaptureLocation, c.SiteLocation, m.RadiusMeters)
		if !check.Inside {
			return Result{}, guardFailure(action, ticket.Status, ReasonEvidenceOutOfRange,
				fmt.Sprintf("evidence captured out of range, distance = %.0fm", check.DistanceMeters),
				map[string]any{"distance_meters": check.DistanceMeters, "radius_meters": check.RadiusMeters})
		}
		res.Check = &check
	case Approve:
		if c.Evidence == nil || !c.Evidence.Valid {
			return Result{}, guardFailure(action, ticket.Status, ReasonEvidenceNotValidated,
				"evidence has not been approved by a supervisor", nil)
		}
		at := now
		next.ClosedAt = &at
		milestone = next.ClosedAt
	case Reject:
	default:
		return Result{}, fmt.Errorf("%w: unsupported command %T", ErrIllegalTransition, cmd)
	}

	next.Status = to
	next.Version = ticket.Version + 1
	next.UpdatedAt = now

	res.Ticket = next
	res.Change = StateChange{
		EventID:     deterministicID("transition", ticket.ID, strconv.Itoa(ticket.Version), string(action)),
		TicketID:    ticket.ID,
		Action:      action,
		OldStatus:   ticket.Status,
		NewStatus:   to,
		MilestoneAt: milestone,
		Version:     next.Version,
		At:          now,
	}
	return res, nil
}

func validateBoth(a, b domain.Coordinate) error {
	if err := geofence.Validate(a); err != nil {
		return err
	}
	return geofence.Validate(b)
}

func deterministicID(parts ...string) string {
	return uuid.NewSHA1(eventNamespace, []byte(strings.Join(parts, "|"))).String()
}
