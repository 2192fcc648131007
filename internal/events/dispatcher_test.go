package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherFansOutAndJoinsErrors(t *testing.T) {
	d := NewInMemoryDispatcher()
	var seen []string
	d.Subscribe(EventTicketAssigned, func(_ context.Context, e Event) error {
		seen = append(seen, "first:"+e.TicketID)
		return errors.New("sink down")
	})
	d.Subscribe(EventTicketAssigned, func(_ context.Context, e Event) error {
		seen = append(seen, "second:"+e.TicketID)
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketAssigned, TicketID: "T-1"})
	assert.EqualError(t, err, "ticket_assigned for ticket T-1: sink down")
	assert.Equal(t, []string{"first:T-1", "second:T-1"}, seen)

	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketOpened, TicketID: "T-2"}))
}

func TestDispatcherRecoversHandlerPanic(t *testing.T) {
	d := NewInMemoryDispatcher()
	delivered := false
	d.Subscribe(EventTicketStatusChanged, func(context.Context, Event) error {
		panic("nil crew")
	})
	d.Subscribe(EventTicketStatusChanged, func(context.Context, Event) error {
		delivered = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketStatusChanged, TicketID: "T-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler panic: nil crew")
	assert.True(t, delivered)
}

func TestSubscribeAllDefaultsToTicketEvents(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got []EventType
	d.SubscribeAll(func(_ context.Context, e Event) error {
		got = append(got, e.Type)
		return nil
	})

	ctx := context.Background()
	for _, eventType := range AllTicketEvents {
		require.NoError(t, d.Publish(ctx, Event{Type: eventType}))
	}
	require.NoError(t, d.Publish(ctx, Event{Type: EventCrewLocationReported}))
	assert.Equal(t, AllTicketEvents, got)
}
