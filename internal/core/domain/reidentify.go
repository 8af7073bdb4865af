package domain

// NodeKind identifies the level of a plan node during traversal
type NodeKind string

const (
	NodeDocument   NodeKind = "document"
	NodeDay        NodeKind = "day"
	NodeMeal       NodeKind = "meal"
	NodeIngredient NodeKind = "ingredient"
)

// KeyFunc decides the identity of a cloned node from its kind and previous ID
type KeyFunc func(kind NodeKind, prev string) string

// KeepKeys preserves every identity. Cloning with it is a plain deep copy.
func KeepKeys(_ NodeKind, prev string) string {
	return prev
}

// FreshKeys assigns a new identity to every node
func FreshKeys(gen IDGenerator) KeyFunc {
	return func(NodeKind, string) string {
		return gen()
	}
}

// FillMissingKeys keeps existing identities and generates one where it is empty
func FillMissingKeys(gen IDGenerator) KeyFunc {
	return func(_ NodeKind, prev string) string {
		if prev != "" {
			return prev
		}
		return gen()
	}
}

// CloneDocument deep-copies a document, re-keying every nested node
func CloneDocument(doc *Document, key KeyFunc) *Document {
	if doc == nil {
		return nil
	}
	out := &Document{
		ID:        key(NodeDocument, doc.ID),
		ClientID:  doc.ClientID,
		Notes:     doc.Notes,
		Days:      make([]*DayNode, 0, len(doc.Days)),
		UpdatedAt: doc.UpdatedAt,
	}
	for _, day := range doc.Days {
		out.Days = append(out.Days, CloneDay(day, key))
	}
	return out
}

// CloneDay deep-copies a day with all of its meals and ingredients
func CloneDay(day *DayNode, key KeyFunc) *DayNode {
	if day == nil {
		return nil
	}
	out := &DayNode{
		ID:      key(NodeDay, day.ID),
		Name:    day.Name,
		Targets: day.Targets,
		Meals:   make([]*MealNode, 0, len(day.Meals)),
	}
	for _, meal := range day.Meals {
		out.Meals = append(out.Meals, CloneMeal(meal, key))
	}
	return out
}

// CloneMeal deep-copies a meal and its ingredients. OrderIndex is copied verbatim.
func CloneMeal(meal *MealNode, key KeyFunc) *MealNode {
	if meal == nil {
		return nil
	}
	out := &MealNode{
		ID:                     key(NodeMeal, meal.ID),
		Name:                   meal.Name,
		DishLabel:              meal.DishLabel,
		Instructions:           append([]string(nil), meal.Instructions...),
		Ingredients:            make([]*IngredientLeaf, 0, len(meal.Ingredients)),
		Macros:                 meal.Macros,
		CountsTowardDailyTotal: meal.CountsTowardDailyTotal,
		OrderIndex:             meal.OrderIndex,
	}
	if meal.Time != nil {
		t := *meal.Time
		out.Time = &t
	}
	for _, ing := range meal.Ingredients {
		out.Ingredients = append(out.Ingredients, CloneIngredient(ing, key))
	}
	return out
}

// CloneIngredient copies an ingredient leaf
func CloneIngredient(ing *IngredientLeaf, key KeyFunc) *IngredientLeaf {
	if ing == nil {
		return nil
	}
	out := *ing
	out.ID = key(NodeIngredient, ing.ID)
	return &out
}
