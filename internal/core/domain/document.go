package domain

import (
	"fmt"
	"sort"
	"time"
)

// Macros holds nutritional values for a meal or ingredient
type Macros struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
	Fiber    float64 `json:"fiber"`
}

// Add returns the element-wise sum of two macro sets
func (m Macros) Add(o Macros) Macros {
	return Macros{
		Calories: m.Calories + o.Calories,
		Protein:  m.Protein + o.Protein,
		Fat:      m.Fat + o.Fat,
		Carbs:    m.Carbs + o.Carbs,
		Fiber:    m.Fiber + o.Fiber,
	}
}

// Scale multiplies every value by factor
func (m Macros) Scale(factor float64) Macros {
	return Macros{
		Calories: m.Calories * factor,
		Protein:  m.Protein * factor,
		Fat:      m.Fat * factor,
		Carbs:    m.Carbs * factor,
		Fiber:    m.Fiber * factor,
	}
}

// DayTargets are the calorie and macro goals configured for one day
type DayTargets struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
	Fiber    float64 `json:"fiber"`
}

// IngredientLeaf is a single ingredient line inside a meal
type IngredientLeaf struct {
	ID          string  `json:"id"`
	ReferenceID string  `json:"reference_id"` // Catalog ingredient this line points at
	Name        string  `json:"name"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	UnitWeight  float64 `json:"unit_weight"` // Grams per unit
	Macros      Macros  `json:"macros"`
}

// MealNode is one meal within a day
type MealNode struct {
	ID                     string            `json:"id"`
	Name                   string            `json:"name"`
	DishLabel              string            `json:"dish_label"`
	Instructions           []string          `json:"instructions"`
	Ingredients            []*IngredientLeaf `json:"ingredients"`
	Macros                 Macros            `json:"macros"`
	CountsTowardDailyTotal bool              `json:"counts_toward_daily_total"`
	OrderIndex             int               `json:"order_index"`
	Time                   *string           `json:"time,omitempty"` // e.g. "08:30"
}

// DayNode is one day of a meal plan
type DayNode struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Targets DayTargets  `json:"targets"`
	Meals   []*MealNode `json:"meals"`
}

// Document is the full nested meal plan for one client
type Document struct {
	ID        string     `json:"id"`
	ClientID  string     `json:"client_id"`
	Notes     string     `json:"notes"`
	Days      []*DayNode `json:"days"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// EmptyDocument returns a document with no days.
// It is the pre-history baseline a history pointer of -1 restores to.
func EmptyDocument(id string) *Document {
	return &Document{ID: id, Days: []*DayNode{}}
}

// Day finds a day by ID and returns it with its position
func (d *Document) Day(id string) (*DayNode, int) {
	for i, day := range d.Days {
		if day.ID == id {
			return day, i
		}
	}
	return nil, -1
}

// Validate checks the structure of the document tree. Every day, meal and
// ingredient must be present and carry an ID that is unique per kind.
func (d *Document) Validate() error {
	days := make(map[string]struct{}, len(d.Days))
	meals := make(map[string]struct{})
	ingredients := make(map[string]struct{})

	for i, day := range d.Days {
		if day == nil {
			return fmt.Errorf("%w: day %d is null", ErrInvalidInput, i)
		}
		if err := checkID(days, NodeDay, day.ID); err != nil {
			return err
		}
		for j, meal := range day.Meals {
			if meal == nil {
				return fmt.Errorf("%w: day %s meal %d is null", ErrInvalidInput, day.ID, j)
			}
			if err := checkID(meals, NodeMeal, meal.ID); err != nil {
				return err
			}
			for k, ing := range meal.Ingredients {
				if ing == nil {
					return fmt.Errorf("%w: meal %s ingredient %d is null", ErrInvalidInput, meal.ID, k)
				}
				if err := checkID(ingredients, NodeIngredient, ing.ID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func checkID(seen map[string]struct{}, kind NodeKind, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s without id", ErrInvalidInput, kind)
	}
	if _, dup := seen[id]; dup {
		return fmt.Errorf("%w: duplicate %s id %q", ErrInvalidInput, kind, id)
	}
	seen[id] = struct{}{}
	return nil
}

// InsertDay inserts a day at position, clamped to the valid range
func (d *Document) InsertDay(day *DayNode, position int) {
	if position < 0 || position > len(d.Days) {
		position = len(d.Days)
	}
	d.Days = append(d.Days, nil)
	copy(d.Days[position+1:], d.Days[position:])
	d.Days[position] = day
}

// Meal finds a meal by ID and returns it with its position
func (day *DayNode) Meal(id string) (*MealNode, int) {
	for i, meal := range day.Meals {
		if meal.ID == id {
			return meal, i
		}
	}
	return nil, -1
}

// Totals sums the macros of meals that count toward the daily total
func (day *DayNode) Totals() Macros {
	var total Macros
	for _, meal := range day.Meals {
		if meal.CountsTowardDailyTotal {
			total = total.Add(meal.Macros)
		}
	}
	return total
}

// InsertMeal inserts meal at its OrderIndex, shifting later siblings.
// An index past the end appends. Sibling indices are renumbered afterwards.
func (day *DayNode) InsertMeal(meal *MealNode) {
	RenumberMeals(day.Meals)
	position := meal.OrderIndex
	if position < 0 {
		position = 0
	}
	if position > len(day.Meals) {
		position = len(day.Meals)
	}
	day.Meals = append(day.Meals, nil)
	copy(day.Meals[position+1:], day.Meals[position:])
	day.Meals[position] = meal
	for i, m := range day.Meals {
		m.OrderIndex = i
	}
}

// RemoveMeal deletes a meal by ID and renumbers the remaining siblings
func (day *DayNode) RemoveMeal(id string) bool {
	_, idx := day.Meal(id)
	if idx < 0 {
		return false
	}
	day.Meals = append(day.Meals[:idx], day.Meals[idx+1:]...)
	RenumberMeals(day.Meals)
	return true
}

// RenumberMeals sorts meals by their current OrderIndex (stable) and
// rewrites the indices to be contiguous from zero.
func RenumberMeals(meals []*MealNode) {
	sort.SliceStable(meals, func(i, j int) bool {
		return meals[i].OrderIndex < meals[j].OrderIndex
	})
	for i, m := range meals {
		m.OrderIndex = i
	}
}

// RecomputeMacros sets the meal macros to the sum of its ingredients
func (m *MealNode) RecomputeMacros() {
	var total Macros
	for _, ing := range m.Ingredients {
		total = total.Add(ing.Macros)
	}
	m.Macros = total
}
