package services

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dietdesk/planner-core/internal/core/domain"
)

func TestRestoreGuard_Lifecycle(t *testing.T) {
	g := NewRestoreGuard()
	assert.True(t, g.IsIdle())
	assert.Equal(t, domain.RestoreIdle, g.State())

	require.NoError(t, g.Begin())
	assert.Equal(t, domain.RestoreRestoring, g.State())
	assert.False(t, g.IsIdle())

	require.NoError(t, g.Flush())
	assert.Equal(t, domain.RestoreFlushing, g.State())
	assert.False(t, g.IsIdle())

	g.End()
	assert.True(t, g.IsIdle())
}

func TestRestoreGuard_BeginTwiceFails(t *testing.T) {
	g := NewRestoreGuard()
	require.NoError(t, g.Begin())

	err := g.Begin()
	assert.True(t, errors.Is(err, domain.ErrConcurrencyConflict))
	assert.Equal(t, domain.RestoreRestoring, g.State())

	require.NoError(t, g.Flush())
	err = g.Begin()
	assert.True(t, errors.Is(err, domain.ErrConcurrencyConflict))
}

func TestRestoreGuard_FlushRequiresRestoring(t *testing.T) {
	g := NewRestoreGuard()
	err := g.Flush()
	assert.True(t, errors.Is(err, domain.ErrConcurrencyConflict))
	assert.True(t, g.IsIdle())
}

func TestRestoreGuard_ConcurrentBeginOnlyOneWins(t *testing.T) {
	g := NewRestoreGuard()
	var wins atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Begin() == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestRestoreState_String(t *testing.T) {
	assert.Equal(t, "idle", domain.RestoreIdle.String())
	assert.Equal(t, "restoring", domain.RestoreRestoring.String())
	assert.Equal(t, "flushing", domain.RestoreFlushing.String())
	assert.Equal(t, "unknown", domain.RestoreState(9).String())
}
