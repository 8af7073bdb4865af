package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/dietdesk/planner-core/internal/core/domain"
	"github.com/dietdesk/planner-core/internal/core/ports/driven"
)

var (
	_ driven.ChangeNotifier  = (*MockChangeBus)(nil)
	_ driven.ChangePublisher = (*MockChangeBus)(nil)
)

// MockChangeBus is an in-process ChangeNotifier and ChangePublisher.
// Publish delivers synchronously to every handler of the document.
type MockChangeBus struct {
	mu        sync.Mutex
	nextID    int
	handlers  map[int]*mockSubscription
	published []domain.ChangeEvent

	PublishFn func(event domain.ChangeEvent) error
}

type mockSubscription struct {
	id         int
	resourceID string
	handler    driven.ChangeHandler
}

func (s *mockSubscription) ResourceID() string {
	return s.resourceID
}

// NewMockChangeBus creates an empty bus
func NewMockChangeBus() *MockChangeBus {
	return &MockChangeBus{
		handlers: make(map[int]*mockSubscription),
	}
}

func (m *MockChangeBus) Subscribe(ctx context.Context, resourceID string, handler driven.ChangeHandler) (driven.Subscription, error) {
	if handler == nil {
		return nil, domain.ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	sub := &mockSubscription{id: m.nextID, resourceID: resourceID, handler: handler}
	m.handlers[sub.id] = sub
	return sub, nil
}

func (m *MockChangeBus) Unsubscribe(sub driven.Subscription) error {
	s, ok := sub.(*mockSubscription)
	if !ok {
		return errors.New("unknown subscription")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, s.id)
	return nil
}

func (m *MockChangeBus) Publish(ctx context.Context, event domain.ChangeEvent) error {
	if m.PublishFn != nil {
		if err := m.PublishFn(event); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.published = append(m.published, event)
	var targets []driven.ChangeHandler
	for _, sub := range m.handlers {
		if sub.resourceID == event.DocumentID {
			targets = append(targets, sub.handler)
		}
	}
	m.mu.Unlock()

	for _, handler := range targets {
		handler(event)
	}
	return nil
}

// Deliver sends an event to subscribers without recording it as published
func (m *MockChangeBus) Deliver(event domain.ChangeEvent) {
	m.mu.Lock()
	var targets []driven.ChangeHandler
	for _, sub := range m.handlers {
		if sub.resourceID == event.DocumentID {
			targets = append(targets, sub.handler)
		}
	}
	m.mu.Unlock()

	for _, handler := range targets {
		handler(event)
	}
}

// Published returns every event passed to Publish
func (m *MockChangeBus) Published() []domain.ChangeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ChangeEvent(nil), m.published...)
}

// Subscribers returns the number of live subscriptions
func (m *MockChangeBus) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers)
}
