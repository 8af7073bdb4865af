package domain

// MealClip holds a copied meal pending paste
type MealClip struct {
	Source           *MealNode `json:"source"` // Deep copy taken at copy time
	SourceParentID   string    `json:"source_parent_id"`
	SourceOrderIndex int       `json:"source_order_index"`
	Active           bool      `json:"active"`
}

// DayClip holds a copied day pending paste
type DayClip struct {
	Source      *DayNode `json:"source"`
	SourceDayID string   `json:"source_day_id"`
	Active      bool     `json:"active"`
}

// DayPasteMode selects where a pasted day goes
type DayPasteMode string

const (
	// DayPasteNew inserts the clone as a new sibling day
	DayPasteNew DayPasteMode = "new"
	// DayPasteMerge merges the clone into an existing day
	DayPasteMerge DayPasteMode = "merge"
)

// MealMergeMode selects how meals are combined when merging into a day
type MealMergeMode string

const (
	// MealMergeReplace discards the target's meals and uses the cloned ones
	MealMergeReplace MealMergeMode = "replace"
	// MealMergeAppend keeps the target's meals and adds the cloned ones after
	MealMergeAppend MealMergeMode = "append"
)

// TargetsMode selects whose calorie/macro targets the merged day keeps
type TargetsMode string

const (
	// TargetsReplace adopts the source day's targets
	TargetsReplace TargetsMode = "replace"
	// TargetsKeep retains the target day's own targets
	TargetsKeep TargetsMode = "keep"
)

// DayPasteOptions are the caller-selected insertion choices for a pasted day
type DayPasteOptions struct {
	Mode        DayPasteMode  `json:"mode"`
	MealMode    MealMergeMode `json:"meal_mode,omitempty"`
	Targets     TargetsMode   `json:"targets,omitempty"`
	TargetDayID string        `json:"target_day_id,omitempty"` // Required for merge
	Position    int           `json:"position"`                // Insert position for new; -1 appends
}

// Validate checks that the option combination is complete
func (o DayPasteOptions) Validate() error {
	switch o.Mode {
	case DayPasteNew:
		return nil
	case DayPasteMerge:
		if o.TargetDayID == "" {
			return ErrInvalidInput
		}
		if o.MealMode != MealMergeReplace && o.MealMode != MealMergeAppend {
			return ErrInvalidInput
		}
		if o.Targets != TargetsReplace && o.Targets != TargetsKeep {
			return ErrInvalidInput
		}
		return nil
	default:
		return ErrInvalidInput
	}
}
