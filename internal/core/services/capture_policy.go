package services

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dietdesk/planner-core/internal/core/domain"
)

// CaptureDecision is the outcome of a CapturePolicy check
type CaptureDecision int

const (
	CaptureProceed CaptureDecision = iota
	// CaptureCoalesced folds the capture into the head snapshot, which is
	// overwritten with the newer content
	CaptureCoalesced
	CaptureDuplicate
)

// DefaultCaptureWindow is the coalescing window for low-significance triggers
const DefaultCaptureWindow = 3 * time.Second

// CapturePolicy decides whether a capture becomes a new snapshot.
// Significant triggers always proceed. Calculator and notes edits open one
// snapshot per trigger kind and window; later captures of the same kind in
// that window overwrite it, so the head holds the latest state. A
// non-manual capture identical to the head is a noop.
type CapturePolicy struct {
	window time.Duration

	mu       sync.Mutex
	limiters map[domain.TriggerKind]*rate.Sometimes
}

// NewCapturePolicy creates a policy. A non-positive window uses the default;
// pass a tiny window to effectively disable coalescing.
func NewCapturePolicy(window time.Duration) *CapturePolicy {
	if window <= 0 {
		window = DefaultCaptureWindow
	}
	return &CapturePolicy{
		window:   window,
		limiters: make(map[domain.TriggerKind]*rate.Sometimes),
	}
}

// Window returns the coalescing window
func (p *CapturePolicy) Window() time.Duration {
	return p.window
}

// Decide checks a pending capture against the head snapshot. branching
// reports that the head has redo entries after it.
func (p *CapturePolicy) Decide(trigger domain.TriggerKind, payloadHash string, head *domain.Snapshot, branching bool, opts domain.CaptureOptions) CaptureDecision {
	if opts.SkipThrottle {
		return CaptureProceed
	}

	if trigger != domain.TriggerManual && head != nil && payloadHash == head.PayloadHash {
		return CaptureDuplicate
	}

	if !trigger.LowSignificance() {
		return CaptureProceed
	}

	opened := false
	p.limiter(trigger).Do(func() { opened = true })
	if opened {
		return CaptureProceed
	}

	// Only the window's own head is overwritten; named versions and
	// snapshots with a redo branch stay as they are
	if head == nil || head.Trigger != trigger || head.VersionName != nil || branching {
		return CaptureProceed
	}
	return CaptureCoalesced
}

// Reset forgets coalescing state, e.g. after a restore moved the head
func (p *CapturePolicy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limiters = make(map[domain.TriggerKind]*rate.Sometimes)
}

func (p *CapturePolicy) limiter(trigger domain.TriggerKind) *rate.Sometimes {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.limiters[trigger]
	if !ok {
		s = &rate.Sometimes{Interval: p.window}
		p.limiters[trigger] = s
	}
	return s
}
