package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryDispatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to subscribers of the type only", func(t *testing.T) {
		d := NewInMemoryDispatcher(nil)
		var created, assigned int
		d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
			created++
			return nil
		})
		d.Subscribe(EventTicketAssigned, func(context.Context, Event) error {
			assigned++
			return nil
		})

		require.NoError(t, d.Publish(ctx, Event{Type: EventTicketCreated}))
		assert.Equal(t, 1, created)
		assert.Equal(t, 0, assigned)
	})

	t.Run("handler failure never aborts the rest", func(t *testing.T) {
		d := NewInMemoryDispatcher(nil)
		var reached bool
		d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
			return errors.New("boom")
		})
		d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
			reached = true
			return nil
		})

		require.NoError(t, d.Publish(ctx, Event{Type: EventTicketCreated}))
		assert.True(t, reached)
	})

	t.Run("publish without subscribers is fine", func(t *testing.T) {
		d := NewInMemoryDispatcher(nil)
		assert.NoError(t, d.Publish(ctx, Event{Type: EventTicketEscalated}))
	})
}
