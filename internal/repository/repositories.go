package repository

import "context"

// TxFunc runs against repositories bound to one transaction. Every write must
// go through repos and ctx so a returned error discards all of them.
type TxFunc func(ctx context.Context, repos Repositories) error

type txRunner func(ctx context.Context, repos Repositories, fn TxFunc) error

// Repositories bundles every store the services depend on.
type Repositories struct {
	Tickets    TicketRepository
	History    TicketHistoryRepository
	Sites      SiteRepository
	Crews      CrewRepository
	Evidence   EvidenceRepository
	Dispatches DispatchRepository

	tx txRunner
}

// InTx runs fn atomically: either every write fn makes is kept or none is.
// Repositories built without a backing store run fn directly.
func (r Repositories) InTx(ctx context.Context, fn TxFunc) error {
	if r.tx == nil {
		return fn(ctx, r)
	}
	return r.tx(ctx, r, fn)
}
