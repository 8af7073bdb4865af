package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dietdesk/planner-core/internal/core/domain"
)

func headSnapshot(trigger domain.TriggerKind, hash string) *domain.Snapshot {
	return &domain.Snapshot{ID: "head", Trigger: trigger, PayloadHash: hash}
}

func TestCapturePolicy_SignificantTriggersNeverCoalesce(t *testing.T) {
	p := NewCapturePolicy(time.Hour)

	for _, trigger := range []domain.TriggerKind{
		domain.TriggerManual,
		domain.TriggerMealAdded,
		domain.TriggerClientCreated,
		domain.TriggerTemplateApplied,
	} {
		for i := 0; i < 3; i++ {
			assert.Equal(t, CaptureProceed, p.Decide(trigger, "h1", headSnapshot(trigger, "h0"), false, domain.CaptureOptions{}), trigger)
		}
	}
}

func TestCapturePolicy_CoalescesIntoOwnHead(t *testing.T) {
	p := NewCapturePolicy(time.Hour)

	// The first capture in a window always makes a snapshot
	assert.Equal(t, CaptureProceed, p.Decide(domain.TriggerCalculator, "a", nil, false, domain.CaptureOptions{}))
	assert.Equal(t, CaptureCoalesced, p.Decide(domain.TriggerCalculator, "b", headSnapshot(domain.TriggerCalculator, "a"), false, domain.CaptureOptions{}))
	assert.Equal(t, CaptureCoalesced, p.Decide(domain.TriggerCalculator, "c", headSnapshot(domain.TriggerCalculator, "b"), false, domain.CaptureOptions{}))

	// A different kind has its own window
	assert.Equal(t, CaptureProceed, p.Decide(domain.TriggerNotesEdit, "d", headSnapshot(domain.TriggerCalculator, "c"), false, domain.CaptureOptions{}))

	p.Reset()
	assert.Equal(t, CaptureProceed, p.Decide(domain.TriggerCalculator, "e", headSnapshot(domain.TriggerCalculator, "d"), false, domain.CaptureOptions{}))
}

func TestCapturePolicy_KeepsForeignHeads(t *testing.T) {
	named := "Week 1"
	namedHead := headSnapshot(domain.TriggerCalculator, "a")
	namedHead.VersionName = &named

	tests := []struct {
		name      string
		head      *domain.Snapshot
		branching bool
	}{
		{"no head", nil, false},
		{"other trigger", headSnapshot(domain.TriggerManual, "a"), false},
		{"named version", namedHead, false},
		{"redo branch", headSnapshot(domain.TriggerCalculator, "a"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewCapturePolicy(time.Hour)
			p.Decide(domain.TriggerCalculator, "x", nil, false, domain.CaptureOptions{})

			assert.Equal(t, CaptureProceed, p.Decide(domain.TriggerCalculator, "b", tt.head, tt.branching, domain.CaptureOptions{}))
		})
	}
}

func TestCapturePolicy_WindowElapses(t *testing.T) {
	p := NewCapturePolicy(5 * time.Millisecond)

	assert.Equal(t, CaptureProceed, p.Decide(domain.TriggerCalculator, "a", nil, false, domain.CaptureOptions{}))
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, CaptureProceed, p.Decide(domain.TriggerCalculator, "b", headSnapshot(domain.TriggerCalculator, "a"), false, domain.CaptureOptions{}))
}

func TestCapturePolicy_DuplicatePayload(t *testing.T) {
	p := NewCapturePolicy(time.Hour)

	assert.Equal(t, CaptureDuplicate, p.Decide(domain.TriggerMealAdded, "same", headSnapshot(domain.TriggerManual, "same"), false, domain.CaptureOptions{}))
	assert.Equal(t, CaptureProceed, p.Decide(domain.TriggerManual, "same", headSnapshot(domain.TriggerManual, "same"), false, domain.CaptureOptions{}))

	// Duplicates do not open the coalescing window
	assert.Equal(t, CaptureDuplicate, p.Decide(domain.TriggerCalculator, "same", headSnapshot(domain.TriggerManual, "same"), false, domain.CaptureOptions{}))
	assert.Equal(t, CaptureProceed, p.Decide(domain.TriggerCalculator, "new", headSnapshot(domain.TriggerManual, "same"), false, domain.CaptureOptions{}))
}

func TestCapturePolicy_SkipThrottle(t *testing.T) {
	p := NewCapturePolicy(time.Hour)
	opts := domain.CaptureOptions{SkipThrottle: true}
	head := headSnapshot(domain.TriggerCalculator, "a")

	assert.Equal(t, CaptureProceed, p.Decide(domain.TriggerCalculator, "a", nil, false, opts))
	assert.Equal(t, CaptureProceed, p.Decide(domain.TriggerCalculator, "a", head, false, opts))
	assert.Equal(t, CaptureProceed, p.Decide(domain.TriggerCalculator, "a", head, false, opts))
}

func TestCapturePolicy_DefaultWindow(t *testing.T) {
	assert.Equal(t, DefaultCaptureWindow, NewCapturePolicy(0).Window())
}
