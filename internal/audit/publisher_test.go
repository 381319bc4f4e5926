package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherSync(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	publisher := NewPublisher([]Store{store})
	defer publisher.Close()

	t.Run("fills id and timestamp", func(t *testing.T) {
		err := publisher.Emit(ctx, Event{Subject: "c1", Action: ActionAccessGranted})
		require.NoError(t, err)

		events, err := store.ListBySubject(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.NotEmpty(t, events[0].ID)
		assert.False(t, events[0].Timestamp.IsZero())
	})

	t.Run("preserves explicit timestamps", func(t *testing.T) {
		ts := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
		err := publisher.Emit(ctx, Event{Subject: "c2", Action: ActionAccessRevoked, Timestamp: ts})
		require.NoError(t, err)

		events, err := store.ListBySubject(ctx, "c2")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, ts, events[0].Timestamp)
	})

	t.Run("fans out to every store", func(t *testing.T) {
		second := NewInMemoryStore()
		p := NewPublisher([]Store{store, second})
		defer p.Close()

		require.NoError(t, p.Emit(ctx, Event{Subject: "c3", Action: ActionContentRegistered}))

		first, err := store.ListBySubject(ctx, "c3")
		require.NoError(t, err)
		assert.Len(t, first, 1)

		other, err := second.ListBySubject(ctx, "c3")
		require.NoError(t, err)
		assert.Len(t, other, 1)
	})
}

func TestPublisherAsync(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	publisher := NewPublisher([]Store{store}, WithAsyncBuffer(16))

	for i := 0; i < 10; i++ {
		require.NoError(t, publisher.Emit(ctx, Event{Subject: "c1", Action: ActionAccessGranted}))
	}

	// Close drains the buffer before returning.
	publisher.Close()

	events, err := store.ListBySubject(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, events, 10)
}

func TestPublisherCloseTwice(t *testing.T) {
	publisher := NewPublisher([]Store{NewInMemoryStore()}, WithAsyncBuffer(4))
	publisher.Close()
	publisher.Close()
}
