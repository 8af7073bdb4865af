package services

import (
	"log/slog"
	"sync"

	"github.com/dietdesk/planner-core/internal/core/domain"
	"github.com/dietdesk/planner-core/internal/core/ports/driving"
	"github.com/dietdesk/planner-core/internal/metrics"
)

// Ensure clipboards implement the interfaces
var (
	_ driving.MealClipboard = (*MealClipboard)(nil)
	_ driving.DayClipboard  = (*DayClipboard)(nil)
)

// CopyNameSuffix marks the name of a pasted meal
const CopyNameSuffix = " (copy)"

// MealClipboard holds one copied meal. Every paste returns an independent
// clone with fresh identities for the meal and its ingredients.
type MealClipboard struct {
	idGen  domain.IDGenerator
	logger *slog.Logger

	mu   sync.Mutex
	slot domain.MealClip
}

// NewMealClipboard creates an empty meal clipboard
func NewMealClipboard(idGen domain.IDGenerator, logger *slog.Logger) *MealClipboard {
	if idGen == nil {
		idGen = domain.UUIDv7()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MealClipboard{idGen: idGen, logger: logger}
}

// Copy stores a deep copy of meal, replacing any previous copy
func (c *MealClipboard) Copy(meal *domain.MealNode, parentDayID string, orderIndex int) error {
	if meal == nil {
		return domain.ErrInvalidInput
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot = domain.MealClip{
		Source:           domain.CloneMeal(meal, domain.KeepKeys),
		SourceParentID:   parentDayID,
		SourceOrderIndex: orderIndex,
		Active:           true,
	}
	c.logger.Debug("meal copied", "meal_id", meal.ID, "day_id", parentDayID, "order_index", orderIndex)
	return nil
}

// Paste returns a fresh clone of the copied meal, or nil when empty.
// The clone keeps the source order index; placement is up to the caller.
func (c *MealClipboard) Paste(targetDayID string) *domain.MealNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.slot.Active || c.slot.Source == nil {
		metrics.RecordPaste("meal", true)
		return nil
	}
	meal := domain.CloneMeal(c.slot.Source, domain.FreshKeys(c.idGen))
	meal.Name += CopyNameSuffix
	meal.OrderIndex = c.slot.SourceOrderIndex
	metrics.RecordPaste("meal", false)
	c.logger.Debug("meal pasted", "meal_id", meal.ID, "day_id", targetDayID)
	return meal
}

// Slot returns a copy of the clipboard state
func (c *MealClipboard) Slot() domain.MealClip {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot := c.slot
	slot.Source = domain.CloneMeal(c.slot.Source, domain.KeepKeys)
	return slot
}

func (c *MealClipboard) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot = domain.MealClip{}
}

func (c *MealClipboard) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slot.Active
}

// DayClipboard holds one copied day. Every paste returns an independent
// clone with fresh identities at every level; names are unchanged.
type DayClipboard struct {
	idGen  domain.IDGenerator
	logger *slog.Logger

	mu   sync.Mutex
	slot domain.DayClip
}

// NewDayClipboard creates an empty day clipboard
func NewDayClipboard(idGen domain.IDGenerator, logger *slog.Logger) *DayClipboard {
	if idGen == nil {
		idGen = domain.UUIDv7()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DayClipboard{idGen: idGen, logger: logger}
}

// Copy stores a deep copy of day, replacing any previous copy
func (c *DayClipboard) Copy(day *domain.DayNode) error {
	if day == nil {
		return domain.ErrInvalidInput
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot = domain.DayClip{
		Source:      domain.CloneDay(day, domain.KeepKeys),
		SourceDayID: day.ID,
		Active:      true,
	}
	c.logger.Debug("day copied", "day_id", day.ID, "meals", len(day.Meals))
	return nil
}

// Paste returns a fresh clone of the copied day, or nil when empty
func (c *DayClipboard) Paste() *domain.DayNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.slot.Active || c.slot.Source == nil {
		metrics.RecordPaste("day", true)
		return nil
	}
	day := domain.CloneDay(c.slot.Source, domain.FreshKeys(c.idGen))
	metrics.RecordPaste("day", false)
	return day
}

// Slot returns a copy of the clipboard state
func (c *DayClipboard) Slot() domain.DayClip {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot := c.slot
	slot.Source = domain.CloneDay(c.slot.Source, domain.KeepKeys)
	return slot
}

func (c *DayClipboard) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot = domain.DayClip{}
}

func (c *DayClipboard) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slot.Active
}
