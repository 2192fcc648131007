// Package sla maps ticket priority and site zone to a resolution deadline.
package sla

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/spec-kit/field-dispatch/internal/domain"
)

var (
	ErrUnknownPriority = errors.New("unknown priority")
	ErrUnknownZone     = errors.New("unknown zone")
)

// ZoneClass separates the Lima metropolitan area from departmental zones.
type ZoneClass string

const (
	ZoneMetro        ZoneClass = "metro"
	ZoneDepartmental ZoneClass = "departmental"
)

var priorityAliases = map[string]domain.TicketPriority{
	"P0":       domain.TicketPriorityP0,
	"CRITICAL": domain.TicketPriorityP0,
	"P1":       domain.TicketPriorityP1,
	"HIGH":     domain.TicketPriorityP1,
	"P2":       domain.TicketPriorityP2,
	"MEDIUM":   domain.TicketPriorityP2,
	"P3":       domain.TicketPriorityP3,
	"LOW":      domain.TicketPriorityP3,
}

var metroZones = map[string]struct{}{
	"CENTRO": {},
	"NORTE":  {},
	"SUR":    {},
	"LIMA":   {},
	"CALLAO": {},
}

var departmentalZones = map[string]struct{}{
	"AMAZONAS": {}, "ANCASH": {}, "APURIMAC": {}, "AREQUIPA": {}, "AYACUCHO": {},
	"CAJAMARCA": {}, "CUSCO": {}, "HUANCAVELICA": {}, "HUANUCO": {}, "ICA": {},
	"JUNIN": {}, "LA LIBERTAD": {}, "LAMBAYEQUE": {}, "LORETO": {}, "MADRE DE DIOS": {},
	"MOQUEGUA": {}, "PASCO": {}, "PIURA": {}, "PUNO": {}, "SAN MARTIN": {},
	"TACNA": {}, "TUMBES": {}, "UCAYALI": {},
}

// hours until breach, indexed by zone class.
var policy = map[domain.TicketPriority]map[ZoneClass]float64{
	domain.TicketPriorityP0: {ZoneMetro: 2, ZoneDepartmental: 4},
	domain.TicketPriorityP1: {ZoneMetro: 8, ZoneDepartmental: 8},
	domain.TicketPriorityP2: {ZoneMetro: 24, ZoneDepartmental: 24},
	domain.TicketPriorityP3: {ZoneMetro: 72, ZoneDepartmental: 72},
}

// ParsePriority accepts P0..P3 or the CRITICAL/HIGH/MEDIUM/LOW aliases.
func ParsePriority(raw string) (domain.TicketPriority, error) {
	p, ok := priorityAliases[NormalizeLabel(raw)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPriority, raw)
	}
	return p, nil
}

// ClassifyZone returns whether a zone label is metropolitan or departmental.
func ClassifyZone(zone string) (ZoneClass, error) {
	label := NormalizeLabel(zone)
	if _, ok := metroZones[label]; ok {
		return ZoneMetro, nil
	}
	if _, ok := departmentalZones[label]; ok {
		return ZoneDepartmental, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownZone, zone)
}

// Hours returns the SLA budget in hours for the priority and zone.
func Hours(priority domain.TicketPriority, zone string) (float64, error) {
	byZone, ok := policy[priority]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPriority, priority)
	}
	class, err := ClassifyZone(zone)
	if err != nil {
		return 0, err
	}
	return byZone[class], nil
}

// ComputeDeadline returns openedAt plus the SLA budget.
func ComputeDeadline(openedAt time.Time, priority domain.TicketPriority, zone string) (time.Time, error) {
	hours, err := Hours(priority, zone)
	if err != nil {
		return time.Time{}, err
	}
	return openedAt.Add(time.Duration(hours * float64(time.Hour))), nil
}

// Remaining is the time left before a deadline.
type Remaining struct {
	RemainingMinutes int64 `json:"remaining_minutes"`
	IsOverdue        bool  `json:"is_overdue"`
}

// RemainingAt evaluates the deadline at now. The deadline is never re-based,
// so rework after a rejection consumes the same budget.
func RemainingAt(deadline, now time.Time) Remaining {
	left := deadline.Sub(now)
	minutes := int64(math.Floor(left.Minutes()))
	if minutes < 0 {
		minutes = 0
	}
	return Remaining{
		RemainingMinutes: minutes,
		IsOverdue:        now.After(deadline),
	}
}

// RemainingFor evaluates a ticket's SLA deadline at now.
func RemainingFor(ticket *domain.Ticket, now time.Time) Remaining {
	return RemainingAt(ticket.SLADeadlineAt, now)
}
