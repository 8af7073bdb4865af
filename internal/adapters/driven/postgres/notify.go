package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/dietdesk/planner-core/internal/core/domain"
	"github.com/dietdesk/planner-core/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.ChangePublisher = (*ChangePublisher)(nil)
	_ driven.ChangeNotifier  = (*ChangeListener)(nil)
)

// DefaultNotifyChannel is the LISTEN/NOTIFY channel for plan changes
const DefaultNotifyChannel = "planner_changes"

// ChangePublisher sends change events with pg_notify
type ChangePublisher struct {
	db      *DB
	channel string
}

// NewChangePublisher creates a publisher on channel (default planner_changes)
func NewChangePublisher(db *DB, channel string) *ChangePublisher {
	if channel == "" {
		channel = DefaultNotifyChannel
	}
	return &ChangePublisher{db: db, channel: channel}
}

// Publish notifies every listener on the channel
func (p *ChangePublisher) Publish(ctx context.Context, event domain.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, p.channel, string(payload))
	return storeError("publish change", err)
}

// ListenerConfig holds configuration for a ChangeListener
type ListenerConfig struct {
	URL     string
	Channel string

	MinReconnect time.Duration // default 10s
	MaxReconnect time.Duration // default 1m

	Logger *slog.Logger
}

// ChangeListener implements ChangeNotifier on a dedicated LISTEN connection.
// Events are dispatched to the handlers registered for their document.
type ChangeListener struct {
	listener *pq.Listener
	channel  string
	logger   *slog.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]driven.ChangeHandler

	stopCh chan struct{}
	doneCh chan struct{}
}

type listenerSubscription struct {
	id         uint64
	resourceID string
}

func (s *listenerSubscription) ResourceID() string {
	return s.resourceID
}

// NewChangeListener opens the LISTEN connection and starts dispatching
func NewChangeListener(cfg ListenerConfig) (*ChangeListener, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	channel := cfg.Channel
	if channel == "" {
		channel = DefaultNotifyChannel
	}
	minReconnect := cfg.MinReconnect
	if minReconnect <= 0 {
		minReconnect = 10 * time.Second
	}
	maxReconnect := cfg.MaxReconnect
	if maxReconnect <= 0 {
		maxReconnect = time.Minute
	}

	l := &ChangeListener{
		channel: channel,
		logger:  logger.With("channel", channel),
		subs:    make(map[string]map[uint64]driven.ChangeHandler),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	l.listener = pq.NewListener(cfg.URL, minReconnect, maxReconnect, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			l.logger.Warn("change listener connection problem", "event", ev, "error", err)
		case pq.ListenerEventReconnected:
			l.logger.Info("change listener reconnected")
		}
	})
	if err := l.listener.Listen(channel); err != nil {
		l.listener.Close()
		return nil, fmt.Errorf("listen on %s: %w", channel, err)
	}

	go l.run()
	return l, nil
}

func (l *ChangeListener) run() {
	defer close(l.doneCh)

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case n, ok := <-l.listener.Notify:
			if !ok {
				return
			}
			// nil after a reconnect; notifications may have been missed
			if n == nil {
				continue
			}
			l.dispatch(n.Extra)
		case <-ping.C:
			go func() {
				if err := l.listener.Ping(); err != nil {
					l.logger.Warn("change listener ping failed", "error", err)
				}
			}()
		}
	}
}

func (l *ChangeListener) dispatch(payload string) {
	event, err := decodeChangeEvent(payload)
	if err != nil {
		l.logger.Warn("dropping malformed change event", "error", err)
		return
	}

	l.mu.RLock()
	handlers := make([]driven.ChangeHandler, 0, len(l.subs[event.DocumentID]))
	for _, h := range l.subs[event.DocumentID] {
		handlers = append(handlers, h)
	}
	l.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

func decodeChangeEvent(payload string) (domain.ChangeEvent, error) {
	var event domain.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return event, err
	}
	if event.DocumentID == "" {
		return event, fmt.Errorf("%w: change event without document id", domain.ErrInvalidInput)
	}
	return event, nil
}

// Subscribe registers handler for changes to resourceID
func (l *ChangeListener) Subscribe(ctx context.Context, resourceID string, handler driven.ChangeHandler) (driven.Subscription, error) {
	if resourceID == "" || handler == nil {
		return nil, domain.ErrInvalidInput
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	if l.subs[resourceID] == nil {
		l.subs[resourceID] = make(map[uint64]driven.ChangeHandler)
	}
	l.subs[resourceID][l.nextID] = handler
	return &listenerSubscription{id: l.nextID, resourceID: resourceID}, nil
}

// Unsubscribe removes a handler. Unknown subscriptions are ignored.
func (l *ChangeListener) Unsubscribe(sub driven.Subscription) error {
	s, ok := sub.(*listenerSubscription)
	if !ok {
		return fmt.Errorf("%w: foreign subscription", domain.ErrInvalidInput)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.subs[s.resourceID], s.id)
	if len(l.subs[s.resourceID]) == 0 {
		delete(l.subs, s.resourceID)
	}
	return nil
}

// Close stops dispatching and closes the LISTEN connection
func (l *ChangeListener) Close() error {
	close(l.stopCh)
	<-l.doneCh
	return l.listener.Close()
}
