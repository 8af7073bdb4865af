package services

import (
	"fmt"
	"sync/atomic"

	"github.com/dietdesk/planner-core/internal/core/domain"
)

// RestoreGuard is the shared coordination flag for one document.
// It is non-idle only for the duration of a single restore; while non-idle,
// notification-driven refresh and new writes are suppressed.
type RestoreGuard struct {
	state atomic.Int32
}

// NewRestoreGuard returns an idle guard
func NewRestoreGuard() *RestoreGuard {
	return &RestoreGuard{}
}

// Begin moves Idle -> Restoring. It fails if a restore is already running.
func (g *RestoreGuard) Begin() error {
	if !g.state.CompareAndSwap(int32(domain.RestoreIdle), int32(domain.RestoreRestoring)) {
		return fmt.Errorf("%w: restore begin while %s", domain.ErrConcurrencyConflict, g.State())
	}
	return nil
}

// Flush moves Restoring -> Flushing once the restored document is written
func (g *RestoreGuard) Flush() error {
	if !g.state.CompareAndSwap(int32(domain.RestoreRestoring), int32(domain.RestoreFlushing)) {
		return fmt.Errorf("%w: restore flush while %s", domain.ErrConcurrencyConflict, g.State())
	}
	return nil
}

// End returns the guard to Idle from either non-idle state
func (g *RestoreGuard) End() {
	g.state.Store(int32(domain.RestoreIdle))
}

// State returns the current state
func (g *RestoreGuard) State() domain.RestoreState {
	return domain.RestoreState(g.state.Load())
}

// IsIdle reports whether no restore is running
func (g *RestoreGuard) IsIdle() bool {
	return g.State() == domain.RestoreIdle
}
