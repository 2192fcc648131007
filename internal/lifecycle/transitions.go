package lifecycle

import (
	"errors"
	"fmt"

	"github.com/spec-kit/field-dispatch/internal/domain"
)

// Action names a field or supervisor event that moves a ticket.
type Action string

const (
	ActionAssign         Action = "assign"
	ActionConfirmArrival Action = "confirm_arrival"
	ActionNeutralize     Action = "neutralize"
	ActionSubmitEvidence Action = "submit_evidence"
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
)

var (
	ErrUnknownStatus     = errors.New("unknown ticket status")
	ErrTerminal          = errors.New("ticket is closed")
	ErrIllegalTransition = errors.New("illegal transition")
)

// transitions is the complete table. validar -> neutralizar is the only
// backward edge and cierre has none.
var transitions = map[domain.TicketStatus]map[Action]domain.TicketStatus{
	domain.TicketStatusRecepcion: {
		ActionAssign: domain.TicketStatusAsignar,
	},
	domain.TicketStatusAsignar: {
		ActionConfirmArrival: domain.TicketStatusArribo,
	},
	domain.TicketStatusArribo: {
		ActionNeutralize: domain.TicketStatusNeutralizar,
	},
	domain.TicketStatusNeutralizar: {
		ActionSubmitEvidence: domain.TicketStatusValidar,
	},
	domain.TicketStatusValidar: {
		ActionApprove: domain.TicketStatusCierre,
		ActionReject:  domain.TicketStatusNeutralizar,
	},
	domain.TicketStatusCierre: {},
}

// Next returns the status reached from `from` through action.
func Next(from domain.TicketStatus, action Action) (domain.TicketStatus, error) {
	edges, ok := transitions[from]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, from)
	}
	if len(edges) == 0 {
		return "", ErrTerminal
	}
	to, ok := edges[action]
	if !ok {
		return "", fmt.Errorf("%w: %s from %s", ErrIllegalTransition, action, from)
	}
	return to, nil
}

// Reachable lists the statuses directly reachable from `from`.
func Reachable(from domain.TicketStatus) []domain.TicketStatus {
	edges := transitions[from]
	out := make([]domain.TicketStatus, 0, len(edges))
	for _, candidate := range domain.TicketStatuses {
		for _, to := range edges {
			if to == candidate {
				out = append(out, to)
				break
			}
		}
	}
	return out
}

// AllowedActions lists the actions accepted in `from`, in a stable order.
func AllowedActions(from domain.TicketStatus) []Action {
	order := []Action{ActionAssign, ActionConfirmArrival, ActionNeutralize, ActionSubmitEvidence, ActionApprove, ActionReject}
	edges := transitions[from]
	out := make([]Action, 0, len(edges))
	for _, a := range order {
		if _, ok := edges[a]; ok {
			out = append(out, a)
		}
	}
	return out
}
