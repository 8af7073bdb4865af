package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dietdesk/planner-core/internal/core/domain"
)

func sampleMeal() *domain.MealNode {
	at := "08:30"
	return &domain.MealNode{
		ID:           "meal-1",
		Name:         "Breakfast",
		DishLabel:    "Porridge",
		Instructions: []string{"Boil milk", "Add oats"},
		Ingredients: []*domain.IngredientLeaf{
			{ID: "ing-1", ReferenceID: "oats", Name: "Oats", Quantity: 60, Unit: "g", UnitWeight: 1, Macros: domain.Macros{Calories: 230, Carbs: 40}},
			{ID: "ing-2", ReferenceID: "milk", Name: "Milk", Quantity: 200, Unit: "ml", UnitWeight: 1.03, Macros: domain.Macros{Calories: 100, Protein: 7}},
		},
		Macros:                 domain.Macros{Calories: 330, Carbs: 40, Protein: 7},
		CountsTowardDailyTotal: true,
		OrderIndex:             2,
		Time:                   &at,
	}
}

func sampleDay(meals int) *domain.DayNode {
	day := &domain.DayNode{
		ID:      "day-1",
		Name:    "Monday",
		Targets: domain.DayTargets{Calories: 2000, Protein: 120},
		Meals:   []*domain.MealNode{},
	}
	for i := 0; i < meals; i++ {
		day.Meals = append(day.Meals, &domain.MealNode{
			ID:         fmt.Sprintf("meal-%d", i),
			Name:       fmt.Sprintf("Meal %d", i),
			OrderIndex: i,
			Ingredients: []*domain.IngredientLeaf{
				{ID: fmt.Sprintf("ing-%d", i), Name: "Rice", Quantity: 100, Unit: "g"},
			},
		})
	}
	return day
}

func sequentialIDs(prefix string) domain.IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func TestMealClipboard_PasteTwiceYieldsIndependentClones(t *testing.T) {
	cb := NewMealClipboard(sequentialIDs("new"), nil)
	source := sampleMeal()

	require.NoError(t, cb.Copy(source, "day-1", 2))
	assert.True(t, cb.IsActive())

	first := cb.Paste("day-2")
	second := cb.Paste("day-2")
	require.NotNil(t, first)
	require.NotNil(t, second)

	// Structurally equal
	assert.Equal(t, first.Name, second.Name)
	assert.Equal(t, first.Instructions, second.Instructions)
	assert.Equal(t, first.Macros, second.Macros)
	assert.Equal(t, first.OrderIndex, second.OrderIndex)
	require.Len(t, second.Ingredients, len(first.Ingredients))

	// Identity distinct at every level
	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, source.ID, first.ID)
	for i := range first.Ingredients {
		assert.NotEqual(t, first.Ingredients[i].ID, second.Ingredients[i].ID)
		assert.Equal(t, first.Ingredients[i].ReferenceID, second.Ingredients[i].ReferenceID)
	}

	// Mutating the second paste leaves the first and the clipboard alone
	second.Ingredients[0].Quantity = 999
	second.Instructions[0] = "changed"
	*second.Time = "12:00"
	assert.Equal(t, 60.0, first.Ingredients[0].Quantity)
	assert.Equal(t, "Boil milk", first.Instructions[0])
	assert.Equal(t, "08:30", *first.Time)
	assert.Equal(t, 60.0, cb.Slot().Source.Ingredients[0].Quantity)
	assert.Equal(t, 60.0, source.Ingredients[0].Quantity)
}

func TestMealClipboard_CopyIsDeep(t *testing.T) {
	cb := NewMealClipboard(sequentialIDs("new"), nil)
	source := sampleMeal()
	require.NoError(t, cb.Copy(source, "day-1", 2))

	source.Ingredients[0].Quantity = 1
	source.Name = "Renamed"

	pasted := cb.Paste("day-1")
	assert.Equal(t, 60.0, pasted.Ingredients[0].Quantity)
	assert.Equal(t, "Breakfast"+CopyNameSuffix, pasted.Name)
}

func TestMealClipboard_KeepsOrderIndexVerbatim(t *testing.T) {
	cb := NewMealClipboard(sequentialIDs("new"), nil)
	require.NoError(t, cb.Copy(sampleMeal(), "day-1", 7))

	pasted := cb.Paste("day-9")
	assert.Equal(t, 7, pasted.OrderIndex)

	slot := cb.Slot()
	assert.Equal(t, "day-1", slot.SourceParentID)
	assert.Equal(t, 7, slot.SourceOrderIndex)
}

func TestMealClipboard_EmptyPaste(t *testing.T) {
	cb := NewMealClipboard(nil, nil)
	assert.Nil(t, cb.Paste("day-1"))
	assert.False(t, cb.IsActive())

	require.NoError(t, cb.Copy(sampleMeal(), "day-1", 0))
	cb.Clear()
	assert.Nil(t, cb.Paste("day-1"))
	assert.False(t, cb.IsActive())
}

func TestMealClipboard_CopyNil(t *testing.T) {
	cb := NewMealClipboard(nil, nil)
	assert.ErrorIs(t, cb.Copy(nil, "day-1", 0), domain.ErrInvalidInput)
	assert.False(t, cb.IsActive())
}

func TestDayClipboard_EmptyDay(t *testing.T) {
	cb := NewDayClipboard(sequentialIDs("new"), nil)
	source := sampleDay(0)
	require.NoError(t, cb.Copy(source))

	pasted := cb.Paste()
	require.NotNil(t, pasted)
	assert.NotEqual(t, source.ID, pasted.ID)
	assert.Equal(t, source.Name, pasted.Name)
	assert.Empty(t, pasted.Meals)
	assert.NotNil(t, pasted.Meals)
}

func TestDayClipboard_FifteenMeals(t *testing.T) {
	cb := NewDayClipboard(sequentialIDs("new"), nil)
	source := sampleDay(15)
	require.NoError(t, cb.Copy(source))

	pasted := cb.Paste()
	require.NotNil(t, pasted)
	require.Len(t, pasted.Meals, 15)

	seen := map[string]bool{source.ID: true}
	for _, meal := range source.Meals {
		seen[meal.ID] = true
		for _, ing := range meal.Ingredients {
			seen[ing.ID] = true
		}
	}

	assert.False(t, seen[pasted.ID])
	seen[pasted.ID] = true
	for i, meal := range pasted.Meals {
		assert.Equal(t, source.Meals[i].Name, meal.Name)
		assert.Equal(t, source.Meals[i].OrderIndex, meal.OrderIndex)
		assert.False(t, seen[meal.ID], "meal id %s reused", meal.ID)
		seen[meal.ID] = true
		for _, ing := range meal.Ingredients {
			assert.False(t, seen[ing.ID], "ingredient id %s reused", ing.ID)
			seen[ing.ID] = true
		}
	}
}

func TestDayClipboard_PastesAreIndependent(t *testing.T) {
	cb := NewDayClipboard(nil, nil)
	require.NoError(t, cb.Copy(sampleDay(2)))

	first := cb.Paste()
	second := cb.Paste()
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Targets, second.Targets)

	second.Meals[0].Ingredients[0].Quantity = 5
	assert.Equal(t, 100.0, first.Meals[0].Ingredients[0].Quantity)
	assert.Equal(t, 100.0, cb.Slot().Source.Meals[0].Ingredients[0].Quantity)
}

func TestDayClipboard_EmptyPaste(t *testing.T) {
	cb := NewDayClipboard(nil, nil)
	assert.Nil(t, cb.Paste())

	assert.ErrorIs(t, cb.Copy(nil), domain.ErrInvalidInput)

	require.NoError(t, cb.Copy(sampleDay(1)))
	assert.True(t, cb.IsActive())
	cb.Clear()
	assert.Nil(t, cb.Paste())
	assert.False(t, cb.IsActive())
}
