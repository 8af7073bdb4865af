package driven

import (
	"context"

	"github.com/dietdesk/planner-core/internal/core/domain"
)

// ChangeHandler receives change events. It is called from the notifier's
// delivery goroutine and must not block for long.
type ChangeHandler func(event domain.ChangeEvent)

// Subscription identifies a registered handler
type Subscription interface {
	// ResourceID is the document the subscription listens to
	ResourceID() string
}

// ChangeNotifier delivers asynchronous, out-of-band change notifications
// (Redis pub/sub or PostgreSQL LISTEN/NOTIFY)
type ChangeNotifier interface {
	// Subscribe registers handler for changes to resourceID
	Subscribe(ctx context.Context, resourceID string, handler ChangeHandler) (Subscription, error)

	// Unsubscribe removes a subscription. Safe to call twice.
	Unsubscribe(sub Subscription) error
}

// ChangePublisher announces local writes to other sessions
type ChangePublisher interface {
	Publish(ctx context.Context, event domain.ChangeEvent) error
}
