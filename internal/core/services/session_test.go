package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dietdesk/planner-core/internal/core/domain"
	"github.com/dietdesk/planner-core/internal/core/ports/driven/mocks"
)

func openTestSession(t *testing.T, store *mocks.MockPlanStore, bus *mocks.MockChangeBus) *session {
	t.Helper()
	s, err := OpenSession(context.Background(), SessionConfig{
		DocumentID: testDocID,
		UserID:     "user-1",
		Store:      store,
		History:    store,
		Notifier:   bus,
		Publisher:  bus,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s.(*session)
}

func TestOpenSession_Validation(t *testing.T) {
	_, err := OpenSession(context.Background(), SessionConfig{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = OpenSession(context.Background(), SessionConfig{DocumentID: testDocID})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestOpenSession_LoadsDocumentAndHistory(t *testing.T) {
	store := mocks.NewMockPlanStore()
	bus := mocks.NewMockChangeBus()
	store.Seed(planWithDays("Mon"))

	first := openTestSession(t, store, bus)
	_, err := first.Capture(context.Background(), domain.TriggerManual, "initial", domain.CaptureOptions{})
	require.NoError(t, err)

	second := openTestSession(t, store, bus)
	assert.Equal(t, testDocID, second.DocumentID())
	assert.Equal(t, []string{"Mon"}, dayNames(second.Editor().Document()))
	assert.Equal(t, 1, second.History().Len())
	assert.True(t, second.CanUndo())
	assert.False(t, second.CanRedo())
	assert.False(t, second.IsLoading())
	assert.Equal(t, 2, bus.Subscribers())
}

func TestOpenSession_LoadFailure(t *testing.T) {
	store := mocks.NewMockPlanStore()
	store.ReadFn = func(string) (*domain.Document, error) {
		return nil, errors.New("db down")
	}

	_, err := OpenSession(context.Background(), SessionConfig{DocumentID: testDocID, Store: store, History: store})
	assert.Error(t, err)
}

func TestSession_ClipboardRoundTrip(t *testing.T) {
	store := mocks.NewMockPlanStore()
	doc := planWithDays("Mon", "Tue")
	doc.Days[0].Meals = sampleDay(2).Meals
	store.Seed(doc)
	s := openTestSession(t, store, mocks.NewMockChangeBus())

	assert.False(t, s.IsActive())
	require.NoError(t, s.CopyMeal(doc.Days[0].Meals[1], "day-0", 1))
	require.NoError(t, s.CopyDay(doc.Days[0]))
	assert.True(t, s.IsActive())

	meal, err := s.PasteMeal(context.Background(), "day-1")
	require.NoError(t, err)
	assert.Equal(t, "Meal 1 (copy)", meal.Name)
	assert.Equal(t, 0, meal.OrderIndex)

	day, err := s.PasteDay(context.Background(), domain.DayPasteOptions{Mode: domain.DayPasteNew, Position: -1})
	require.NoError(t, err)
	assert.Len(t, day.Meals, 2)
	assert.Equal(t, []string{"Mon", "Tue", "Mon"}, dayNames(s.Editor().Document()))

	s.ClearClipboard()
	assert.False(t, s.IsActive())
	meal, err = s.PasteMeal(context.Background(), "day-1")
	assert.NoError(t, err)
	assert.Nil(t, meal)
	day, err = s.PasteDay(context.Background(), domain.DayPasteOptions{Mode: domain.DayPasteNew})
	assert.NoError(t, err)
	assert.Nil(t, day)
}

func TestSession_UndoRedo(t *testing.T) {
	store := mocks.NewMockPlanStore()
	store.Seed(planWithDays("Mon"))
	s := openTestSession(t, store, mocks.NewMockChangeBus())

	_, err := s.Editor().Apply(context.Background(), domain.TriggerManual, "rename", func(doc *domain.Document) error {
		doc.Days[0].Name = "Monday"
		return nil
	})
	require.NoError(t, err)
	_, err = s.Editor().Apply(context.Background(), domain.TriggerManual, "rename again", func(doc *domain.Document) error {
		doc.Days[0].Name = "Mon."
		return nil
	})
	require.NoError(t, err)

	doc, err := s.Undo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Monday"}, dayNames(doc))
	assert.Equal(t, []string{"Monday"}, dayNames(s.Editor().Document()))
	assert.True(t, s.CanRedo())

	doc, err = s.Redo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Mon."}, dayNames(doc))
}

func TestSession_RemoteChangeReloads(t *testing.T) {
	store := mocks.NewMockPlanStore()
	bus := mocks.NewMockChangeBus()
	store.Seed(planWithDays("Mon"))

	a := openTestSession(t, store, bus)
	b := openTestSession(t, store, bus)

	_, err := a.Editor().Apply(context.Background(), domain.TriggerManual, "add day", func(doc *domain.Document) error {
		doc.Days = append(doc.Days, &domain.DayNode{ID: "day-new", Name: "Tue", Meals: []*domain.MealNode{}})
		return nil
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(b.Editor().Document().Days) == 2 && b.History().Len() == 1
	}, time.Second, 5*time.Millisecond)

	// The writer ignores its own echoes
	assert.Equal(t, []string{"Mon", "Tue"}, dayNames(a.Editor().Document()))
}

func TestSession_Close(t *testing.T) {
	store := mocks.NewMockPlanStore()
	bus := mocks.NewMockChangeBus()
	s := openTestSession(t, store, bus)

	require.NoError(t, s.Close())
	assert.Equal(t, 0, bus.Subscribers())
	require.NoError(t, s.Close())

	_, err := s.Capture(context.Background(), domain.TriggerManual, "late", domain.CaptureOptions{})
	assert.ErrorIs(t, err, domain.ErrQueueClosed)
}
