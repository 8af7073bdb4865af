package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dietdesk/planner-core/internal/core/domain"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

func (r *eventRecorder) handle(e domain.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *eventRecorder) first() domain.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[0]
}

func TestChangeBus_PublishSubscribe(t *testing.T) {
	_, client := setupTestRedis(t)
	bus := NewChangeBus(client, nil)
	defer bus.Close()

	ctx := context.Background()
	var plan1, plan2 eventRecorder

	sub, err := bus.Subscribe(ctx, "plan-1", plan1.handle)
	require.NoError(t, err)
	assert.Equal(t, "plan-1", sub.ResourceID())
	_, err = bus.Subscribe(ctx, "plan-2", plan2.handle)
	require.NoError(t, err)

	event := domain.ChangeEvent{Kind: domain.ChangeSnapshotAdded, DocumentID: "plan-1", Origin: "session-a", SnapshotID: "snap-1"}

	// The subscription becomes active asynchronously; publish until delivered
	require.Eventually(t, func() bool {
		if err := bus.Publish(ctx, event); err != nil {
			return false
		}
		return plan1.count() > 0
	}, 2*time.Second, 20*time.Millisecond)

	got := plan1.first()
	assert.Equal(t, domain.ChangeSnapshotAdded, got.Kind)
	assert.Equal(t, "session-a", got.Origin)
	assert.Equal(t, "snap-1", got.SnapshotID)
	assert.Equal(t, 0, plan2.count())
}

func TestChangeBus_Unsubscribe(t *testing.T) {
	_, client := setupTestRedis(t)
	bus := NewChangeBus(client, nil)
	defer bus.Close()

	ctx := context.Background()
	var first, second eventRecorder
	subA, err := bus.Subscribe(ctx, "plan-1", first.handle)
	require.NoError(t, err)
	subB, err := bus.Subscribe(ctx, "plan-1", second.handle)
	require.NoError(t, err)

	require.NoError(t, bus.Unsubscribe(subA))

	event := domain.ChangeEvent{Kind: domain.ChangeHeadMoved, DocumentID: "plan-1"}
	require.Eventually(t, func() bool {
		if err := bus.Publish(ctx, event); err != nil {
			return false
		}
		return second.count() > 0
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, 0, first.count())

	require.NoError(t, bus.Unsubscribe(subB))
	require.NoError(t, bus.Unsubscribe(subB))
}

func TestChangeBus_SubscribeValidation(t *testing.T) {
	_, client := setupTestRedis(t)
	bus := NewChangeBus(client, nil)
	defer bus.Close()

	_, err := bus.Subscribe(context.Background(), "", func(domain.ChangeEvent) {})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = bus.Subscribe(context.Background(), "plan-1", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestChangeChannel(t *testing.T) {
	assert.Equal(t, "planner:changes:plan-1", ChangeChannel("plan-1"))
}
