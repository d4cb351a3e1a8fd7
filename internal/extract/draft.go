package extract

import (
	"errors"

	"github.com/shubhsaxena/tour-concierge/internal/models"
)

// DraftResult is every search slot recognized in one message. Budget keeps
// the grammar form so callers can tell a bare amount from an explicit one.
// Invalid lists slots that were mentioned with an out-of-range value.
type DraftResult struct {
	Draft   models.SearchDraft
	Budget  *BudgetMatch
	Invalid []models.Slot
}

// HasSignal reports whether the message carried any search slot, valid or not.
func (r DraftResult) HasSignal() bool {
	return !r.Draft.IsEmpty() || len(r.Invalid) > 0
}

// Draft runs every slot extractor over one message.
func Draft(text string, defaultYear int) DraftResult {
	s := Normalize(text)
	var res DraftResult

	if c, ok := countryIn(s); ok {
		res.Draft.SetCountry(c)
	}

	switch n, err := nightsIn(s); {
	case err == nil:
		res.Draft.Nights = &n
	case errors.Is(err, ErrOutOfRange):
		res.Invalid = append(res.Invalid, models.SlotNights)
	}

	switch m, err := budgetIn(s, false); {
	case err == nil:
		b := m.Budget
		res.Draft.Budget = &b
		res.Budget = &m
	case errors.Is(err, ErrOutOfRange):
		res.Invalid = append(res.Invalid, models.SlotBudget)
	}

	if meal, ok := mealIn(s); ok {
		res.Draft.Meal = meal
	}
	if p, ok := periodIn(s, defaultYear); ok {
		res.Draft.Period = &p
	}
	if stars, ok := Stars(s); ok {
		res.Draft.Rating = float64(stars)
	}
	if party, ok := ParseParty(s); ok {
		res.Draft.Adults = party.Adults
		res.Draft.Children = party.Children
	}
	if order, ok := Sort(s); ok {
		res.Draft.Sort = order
	}
	return res
}
