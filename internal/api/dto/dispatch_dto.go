package dto

import (
	"time"

	"github.com/spec-kit/field-dispatch/internal/domain"
	"github.com/spec-kit/field-dispatch/internal/ranking"
	"github.com/spec-kit/field-dispatch/internal/service"
)

// RankRequest payload.
type RankRequest struct {
	Escalated     bool     `json:"escalated"`
	RequiredParts []string `json:"required_parts"`
}

// DispatchRequest payload. CrewID set means manual override.
type DispatchRequest struct {
	CrewID        string   `json:"crew_id"`
	RequiredParts []string `json:"required_parts"`
}

// RankResponse payload.
type RankResponse struct {
	TicketID      string                    `json:"ticket_id"`
	BudgetMinutes float64                   `json:"budget_minutes"`
	Escalated     bool                      `json:"escalated"`
	Scores        []ranking.AssignmentScore `json:"scores"`
}

// DispatchResponse is a stored assignment.
type DispatchResponse struct {
	ID         string                `json:"id"`
	CrewID     string                `json:"crew_id"`
	Source     domain.DispatchSource `json:"source"`
	Score      *float64              `json:"score"`
	Reasoning  string                `json:"reasoning"`
	AssignedAt time.Time             `json:"assigned_at"`
}

// DispatchResultResponse reports the selection and the assignment.
type DispatchResultResponse struct {
	Outcome   string             `json:"outcome"`
	Selection *ranking.Selection `json:"selection,omitempty"`
	Ticket    *TicketResponse    `json:"ticket,omitempty"`
	Dispatch  *DispatchResponse  `json:"dispatch,omitempty"`
}

// NewRankResponse maps a ranking.
func NewRankResponse(r *service.RankResult) RankResponse {
	scores := r.Scores
	if scores == nil {
		scores = []ranking.AssignmentScore{}
	}
	return RankResponse{
		TicketID:      r.TicketID,
		BudgetMinutes: r.BudgetMinutes,
		Escalated:     r.Escalated,
		Scores:        scores,
	}
}

// NewDispatchResponse maps a dispatch record.
func NewDispatchResponse(d *domain.Dispatch) DispatchResponse {
	return DispatchResponse{
		ID:         d.ID,
		CrewID:     d.CrewID,
		Source:     d.Source,
		Score:      d.Score,
		Reasoning:  d.Reasoning,
		AssignedAt: d.AssignedAt,
	}
}

// NewDispatchResultResponse maps a dispatch outcome.
func NewDispatchResultResponse(r *service.DispatchResult) DispatchResultResponse {
	resp := DispatchResultResponse{Outcome: r.Outcome, Selection: r.Selection}
	if r.Ticket != nil {
		ticket := NewTicketResponse(r.Ticket)
		resp.Ticket = &ticket
	}
	if r.Dispatch != nil {
		dispatch := NewDispatchResponse(r.Dispatch)
		resp.Dispatch = &dispatch
	}
	return resp
}
