package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/dietdesk/planner-core/internal/core/domain"
	"github.com/dietdesk/planner-core/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.ChangeNotifier  = (*ChangeBus)(nil)
	_ driven.ChangePublisher = (*ChangeBus)(nil)
)

const changeChannelPrefix = "planner:changes:"

// ChangeChannel returns the pub/sub channel for one document
func ChangeChannel(documentID string) string {
	return changeChannelPrefix + documentID
}

// ChangeBus publishes and delivers change events over Redis pub/sub.
// One channel per document; a single connection carries all subscriptions.
type ChangeBus struct {
	client redis.UniversalClient
	pubsub *redis.PubSub
	logger *slog.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]driven.ChangeHandler

	doneCh chan struct{}
}

type busSubscription struct {
	id         uint64
	resourceID string
}

func (s *busSubscription) ResourceID() string {
	return s.resourceID
}

// NewChangeBus starts the delivery goroutine
func NewChangeBus(client redis.UniversalClient, logger *slog.Logger) *ChangeBus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &ChangeBus{
		client: client,
		pubsub: client.Subscribe(context.Background()),
		logger: logger,
		subs:   make(map[string]map[uint64]driven.ChangeHandler),
		doneCh: make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *ChangeBus) run() {
	defer close(b.doneCh)
	for msg := range b.pubsub.Channel() {
		documentID := strings.TrimPrefix(msg.Channel, changeChannelPrefix)

		var event domain.ChangeEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			b.logger.Warn("dropping malformed change event", "channel", msg.Channel, "error", err)
			continue
		}
		if event.DocumentID == "" {
			event.DocumentID = documentID
		}

		b.mu.RLock()
		handlers := make([]driven.ChangeHandler, 0, len(b.subs[documentID]))
		for _, h := range b.subs[documentID] {
			handlers = append(handlers, h)
		}
		b.mu.RUnlock()

		for _, h := range handlers {
			h(event)
		}
	}
}

// Publish sends event on the document's channel
func (b *ChangeBus) Publish(ctx context.Context, event domain.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	if err := b.client.Publish(ctx, ChangeChannel(event.DocumentID), payload).Err(); err != nil {
		return fmt.Errorf("%w: publish change: %v", domain.ErrPersistence, err)
	}
	return nil
}

// Subscribe registers handler and subscribes the channel on first use
func (b *ChangeBus) Subscribe(ctx context.Context, resourceID string, handler driven.ChangeHandler) (driven.Subscription, error) {
	if resourceID == "" || handler == nil {
		return nil, domain.ErrInvalidInput
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.subs[resourceID]) == 0 {
		if err := b.pubsub.Subscribe(ctx, ChangeChannel(resourceID)); err != nil {
			return nil, fmt.Errorf("subscribe %s: %w", resourceID, err)
		}
		b.subs[resourceID] = make(map[uint64]driven.ChangeHandler)
	}
	b.nextID++
	b.subs[resourceID][b.nextID] = handler
	return &busSubscription{id: b.nextID, resourceID: resourceID}, nil
}

// Unsubscribe removes handler and drops the channel when it was the last one
func (b *ChangeBus) Unsubscribe(sub driven.Subscription) error {
	s, ok := sub.(*busSubscription)
	if !ok {
		return fmt.Errorf("%w: foreign subscription", domain.ErrInvalidInput)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	handlers, ok := b.subs[s.resourceID]
	if !ok {
		return nil
	}
	delete(handlers, s.id)
	if len(handlers) > 0 {
		return nil
	}
	delete(b.subs, s.resourceID)
	if err := b.pubsub.Unsubscribe(context.Background(), ChangeChannel(s.resourceID)); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", s.resourceID, err)
	}
	return nil
}

// Close ends the subscription connection
func (b *ChangeBus) Close() error {
	err := b.pubsub.Close()
	<-b.doneCh
	return err
}
