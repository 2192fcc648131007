package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/field-dispatch/internal/domain"
)

// MemoryStore keeps every record in process memory. It backs the service when
// no database is configured and is used throughout the tests.
type MemoryStore struct {
	mu         sync.RWMutex
	tickets    map[string]domain.Ticket
	history    map[string][]domain.TicketHistory
	eventIDs   map[string]struct{}
	sites      map[string]domain.Site
	crews      map[string]domain.Crew
	evidence   map[string]domain.EvidenceBundle
	dispatches map[string][]domain.Dispatch
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets:    map[string]domain.Ticket{},
		history:    map[string][]domain.TicketHistory{},
		eventIDs:   map[string]struct{}{},
		sites:      map[string]domain.Site{},
		crews:      map[string]domain.Crew{},
		evidence:   map[string]domain.EvidenceBundle{},
		dispatches: map[string][]domain.Dispatch{},
	}
}

// Repositories exposes the store through the repository interfaces.
func (m *MemoryStore) Repositories() Repositories {
	return Repositories{
		Tickets:    memoryTickets{m},
		History:    memoryHistory{m},
		Sites:      memorySites{m},
		Crews:      memoryCrews{m},
		Evidence:   memoryEvidence{m},
		Dispatches: memoryDispatches{m},
		tx:         m.inTx,
	}
}

type journalKey struct{}

// memoryJournal collects undo steps for the writes made under one InTx call.
type memoryJournal struct {
	undo []func()
}

// inTx hands fn a context carrying a fresh journal and replays the journal
// backwards when fn fails. Writes made by other callers are not journaled, so
// a rollback only reverts this transaction.
func (m *MemoryStore) inTx(ctx context.Context, repos Repositories, fn TxFunc) error {
	journal := &memoryJournal{}
	err := fn(context.WithValue(ctx, journalKey{}, journal), repos)
	if err != nil {
		m.mu.Lock()
		for i := len(journal.undo) - 1; i >= 0; i-- {
			journal.undo[i]()
		}
		m.mu.Unlock()
	}
	return err
}

// record registers an undo step. Callers hold m.mu; undo runs under m.mu too.
func (m *MemoryStore) record(ctx context.Context, undo func()) {
	if journal, ok := ctx.Value(journalKey{}).(*memoryJournal); ok {
		journal.undo = append(journal.undo, undo)
	}
}

// PutSite registers a site.
func (m *MemoryStore) PutSite(site domain.Site) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sites[site.ID] = site
}

// PutCrew registers or replaces a crew.
func (m *MemoryStore) PutCrew(crew domain.Crew) {
	m.mu.Lock()
	defer m.mu.Unlock()
	crew.AssignedTicketIDs = slices.Clone(crew.AssignedTicketIDs)
	m.crews[crew.ID] = crew
}

type memoryTickets struct{ m *MemoryStore }

func (r memoryTickets) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, exists := r.m.tickets[ticket.ID]; exists {
		return ErrVersionConflict
	}
	if ticket.UpdatedAt.IsZero() {
		ticket.UpdatedAt = time.Now()
	}
	r.m.tickets[ticket.ID] = *ticket
	id := ticket.ID
	r.m.record(ctx, func() { delete(r.m.tickets, id) })
	return nil
}

func (r memoryTickets) Update(ctx context.Context, ticket *domain.Ticket, expectedVersion int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	current, ok := r.m.tickets[ticket.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != expectedVersion {
		return ErrVersionConflict
	}
	r.m.tickets[ticket.ID] = *ticket
	r.m.record(ctx, func() { r.m.tickets[current.ID] = current })
	return nil
}

func (r memoryTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	ticket, ok := r.m.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &ticket, nil
}

type memoryHistory struct{ m *MemoryStore }

func (r memoryHistory) Append(ctx context.Context, entry *domain.TicketHistory) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, seen := r.m.eventIDs[entry.EventID]; seen {
		return false, nil
	}
	r.m.eventIDs[entry.EventID] = struct{}{}
	r.m.history[entry.TicketID] = append(r.m.history[entry.TicketID], *entry)
	eventID, ticketID := entry.EventID, entry.TicketID
	r.m.record(ctx, func() {
		delete(r.m.eventIDs, eventID)
		r.m.history[ticketID] = slices.DeleteFunc(r.m.history[ticketID], func(h domain.TicketHistory) bool {
			return h.EventID == eventID
		})
	})
	return true, nil
}

func (r memoryHistory) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return slices.Clone(r.m.history[ticketID]), nil
}

type memorySites struct{ m *MemoryStore }

func (r memorySites) GetByID(_ context.Context, id string) (*domain.Site, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	site, ok := r.m.sites[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &site, nil
}

type memoryCrews struct{ m *MemoryStore }

func (r memoryCrews) GetByID(_ context.Context, id string) (*domain.Crew, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	crew, ok := r.m.crews[id]
	if !ok {
		return nil, ErrNotFound
	}
	crew.AssignedTicketIDs = slices.Clone(crew.AssignedTicketIDs)
	return &crew, nil
}

func (r memoryCrews) List(_ context.Context, filter CrewFilter) ([]domain.Crew, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	result := make([]domain.Crew, 0, len(r.m.crews))
	for _, crew := range r.m.crews {
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, crew.Status) {
			continue
		}
		if len(filter.Types) > 0 && !slices.Contains(filter.Types, crew.Type) {
			continue
		}
		crew.AssignedTicketIDs = slices.Clone(crew.AssignedTicketIDs)
		result = append(result, crew)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r memoryCrews) AddAssignment(ctx context.Context, crewID, ticketID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	crew, ok := r.m.crews[crewID]
	if !ok {
		return ErrNotFound
	}
	if slices.Contains(crew.AssignedTicketIDs, ticketID) {
		return nil
	}
	r.m.setAssignment(crewID, ticketID, true)
	r.m.record(ctx, func() { r.m.setAssignment(crewID, ticketID, false) })
	return nil
}

func (r memoryCrews) RemoveAssignment(ctx context.Context, crewID, ticketID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	crew, ok := r.m.crews[crewID]
	if !ok {
		return ErrNotFound
	}
	held := slices.Contains(crew.AssignedTicketIDs, ticketID)
	r.m.setAssignment(crewID, ticketID, false)
	if held {
		r.m.record(ctx, func() { r.m.setAssignment(crewID, ticketID, true) })
	}
	return nil
}

// setAssignment adds or removes ticketID from the crew's workload, touching
// nothing else on the crew. Callers hold m.mu.
func (m *MemoryStore) setAssignment(crewID, ticketID string, assigned bool) bool {
	crew, ok := m.crews[crewID]
	if !ok {
		return false
	}
	ids := slices.DeleteFunc(slices.Clone(crew.AssignedTicketIDs), func(id string) bool {
		return id == ticketID
	})
	if assigned {
		ids = append(ids, ticketID)
		sort.Strings(ids)
	}
	crew.AssignedTicketIDs = ids
	m.crews[crewID] = crew
	return true
}

func (r memoryCrews) UpdateLocation(_ context.Context, crewID string, loc domain.Coordinate, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	crew, ok := r.m.crews[crewID]
	if !ok {
		return ErrNotFound
	}
	if crew.LocationUpdatedAt != nil && crew.LocationUpdatedAt.After(at) {
		return nil
	}
	crew.CurrentLocation = &loc
	crew.LocationUpdatedAt = &at
	r.m.crews[crewID] = crew
	return nil
}

type memoryEvidence struct{ m *MemoryStore }

func (r memoryEvidence) Get(_ context.Context, ticketID string) (*domain.EvidenceBundle, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	bundle, ok := r.m.evidence[ticketID]
	if !ok {
		return nil, ErrNotFound
	}
	return &bundle, nil
}

func (r memoryEvidence) Save(ctx context.Context, bundle *domain.EvidenceBundle) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	previous, existed := r.m.evidence[bundle.TicketID]
	r.m.evidence[bundle.TicketID] = *bundle
	ticketID := bundle.TicketID
	r.m.record(ctx, func() {
		if existed {
			r.m.evidence[ticketID] = previous
			return
		}
		delete(r.m.evidence, ticketID)
	})
	return nil
}

type memoryDispatches struct{ m *MemoryStore }

func (r memoryDispatches) Create(ctx context.Context, dispatch *domain.Dispatch) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.dispatches[dispatch.TicketID] {
		if existing.ID == dispatch.ID {
			return nil
		}
	}
	r.m.dispatches[dispatch.TicketID] = append(r.m.dispatches[dispatch.TicketID], *dispatch)
	id, ticketID := dispatch.ID, dispatch.TicketID
	r.m.record(ctx, func() {
		r.m.dispatches[ticketID] = slices.DeleteFunc(r.m.dispatches[ticketID], func(d domain.Dispatch) bool {
			return d.ID == id
		})
	})
	return nil
}

func (r memoryDispatches) ListByTicket(_ context.Context, ticketID string) ([]domain.Dispatch, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return slices.Clone(r.m.dispatches[ticketID]), nil
}
