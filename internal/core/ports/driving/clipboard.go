package driving

import "github.com/dietdesk/planner-core/internal/core/domain"

// MealClipboard copies and pastes single meals
type MealClipboard interface {
	Copy(meal *domain.MealNode, parentDayID string, orderIndex int) error
	// Paste returns a fresh clone, or nil when nothing is copied
	Paste(targetDayID string) *domain.MealNode
	Clear()
	IsActive() bool
}

// DayClipboard copies and pastes whole days
type DayClipboard interface {
	Copy(day *domain.DayNode) error
	// Paste returns a fresh clone, or nil when nothing is copied
	Paste() *domain.DayNode
	Clear()
	IsActive() bool
}
