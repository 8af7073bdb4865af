package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dietdesk/planner-core/internal/core/domain"
	"github.com/dietdesk/planner-core/internal/core/ports/driven/mocks"
)

func TestOperationQueue_RunsInSubmissionOrder(t *testing.T) {
	q := NewOperationQueue(OperationQueueConfig{Name: "doc-1"})
	defer q.Close()

	var mu sync.Mutex
	var order []uint64

	// Hold the drainer so every ticket below is queued before anything runs
	release := make(chan struct{})
	q.Enqueue(func(ctx context.Context) error {
		<-release
		return nil
	})

	const n = 50
	tickets := make([]*Ticket, n)
	var submit sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			submit.Lock()
			defer submit.Unlock()
			var ticket *Ticket
			ticket = q.Enqueue(func(ctx context.Context) error {
				mu.Lock()
				order = append(order, ticket.Seq())
				mu.Unlock()
				return nil
			})
			tickets[i] = ticket
		}(i)
	}
	wg.Wait()
	close(release)

	for _, ticket := range tickets {
		require.NoError(t, ticket.Wait(context.Background()))
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, n)
	for i := 1; i < len(order); i++ {
		assert.Less(t, order[i-1], order[i], "operations ran out of submission order")
	}
}

func TestOperationQueue_FailureDoesNotBlockLaterOps(t *testing.T) {
	q := NewOperationQueue(OperationQueueConfig{Name: "doc-1"})
	defer q.Close()

	errBoom := errors.New("boom")
	var ran []int
	var mu sync.Mutex

	var tickets []*Ticket
	for i := 0; i < 5; i++ {
		i := i
		tickets = append(tickets, q.Enqueue(func(ctx context.Context) error {
			mu.Lock()
			ran = append(ran, i)
			mu.Unlock()
			if i == 2 {
				return errBoom
			}
			return nil
		}))
	}

	for i, ticket := range tickets {
		err := ticket.Wait(context.Background())
		if i == 2 {
			assert.ErrorIs(t, err, errBoom)
		} else {
			assert.NoError(t, err)
		}
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, ran)
}

func TestOperationQueue_RecoversPanic(t *testing.T) {
	q := NewOperationQueue(OperationQueueConfig{Name: "doc-1"})
	defer q.Close()

	err := q.Do(context.Background(), func(ctx context.Context) error {
		panic("bad op")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	assert.NoError(t, q.Do(context.Background(), func(ctx context.Context) error { return nil }))
}

func TestOperationQueue_Close(t *testing.T) {
	q := NewOperationQueue(OperationQueueConfig{Name: "doc-1"})

	ran := false
	ticket := q.Enqueue(func(ctx context.Context) error {
		time.Sleep(10 * time.Millisecond)
		ran = true
		return nil
	})
	q.Close()

	assert.True(t, ran, "queued work runs before Close returns")
	assert.NoError(t, ticket.Err())

	late := q.Enqueue(func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, late.Wait(context.Background()), domain.ErrQueueClosed)

	// Closing twice is safe
	q.Close()
}

func TestOperationQueue_WaitHonoursContext(t *testing.T) {
	q := NewOperationQueue(OperationQueueConfig{Name: "doc-1"})
	defer q.Close()

	release := make(chan struct{})
	ticket := q.Enqueue(func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, ticket.Wait(ctx), context.DeadlineExceeded)

	close(release)
	assert.NoError(t, ticket.Wait(context.Background()))
}

func TestOperationQueue_DistributedLock(t *testing.T) {
	lock := mocks.NewMockDistributedLock()
	q := NewOperationQueue(OperationQueueConfig{Name: "doc-1", Lock: lock})
	defer q.Close()

	held := false
	err := q.Do(context.Background(), func(ctx context.Context) error {
		held = lock.IsHeld("planner:doc:doc-1")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, held)
	assert.False(t, lock.IsHeld("planner:doc:doc-1"))
	assert.Equal(t, 1, lock.Acquisitions("planner:doc:doc-1"))
}

func TestOperationQueue_LockHeldElsewhere(t *testing.T) {
	lock := mocks.NewMockDistributedLock()
	lock.Hold("planner:doc:doc-1", time.Minute)

	q := NewOperationQueue(OperationQueueConfig{
		Name:     "doc-1",
		Lock:     lock,
		LockWait: 20 * time.Millisecond,
	})
	defer q.Close()

	ran := false
	err := q.Do(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.False(t, ran)
}
