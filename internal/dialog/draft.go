// Package dialog holds the slot-filling rules for a search draft and the
// refinement rules for an already executed search. Everything here is pure:
// conversation state is owned by the caller.
package dialog

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shubhsaxena/tour-concierge/internal/extract"
	"github.com/shubhsaxena/tour-concierge/internal/models"
)

var (
	// ErrUnparsed means a reply to a targeted prompt carried nothing usable.
	ErrUnparsed = errors.New("reply does not answer the pending prompt")
	// ErrIncomplete means a draft still misses a required slot.
	ErrIncomplete = errors.New("draft misses required slots")
)

// Step is the outcome of merging new slot values into a draft.
type Step struct {
	Draft    *models.SearchDraft
	Missing  []models.Slot
	Awaiting models.Slot
	Complete bool
}

// Missing returns the required slots absent from d in prompt order.
func Missing(d *models.SearchDraft) []models.Slot {
	var out []models.Slot
	for _, slot := range models.RequiredSlots {
		if !hasSlot(d, slot) {
			out = append(out, slot)
		}
	}
	return out
}

func hasSlot(d *models.SearchDraft, slot models.Slot) bool {
	if d == nil {
		return false
	}
	switch slot {
	case models.SlotCountry:
		return d.HasCountry()
	case models.SlotNights:
		return d.Nights != nil
	case models.SlotBudget:
		return d.Budget != nil
	}
	return false
}

// Merge copies every slot set in patch into d. Unset patch fields never
// erase a value d already holds.
func Merge(d *models.SearchDraft, patch models.SearchDraft) {
	if patch.HasCountry() {
		d.CountryID = patch.CountryID
		d.CountryName = patch.CountryName
	}
	if patch.Nights != nil {
		n := *patch.Nights
		d.Nights = &n
	}
	if patch.Budget != nil {
		b := *patch.Budget
		d.Budget = &b
	}
	if patch.Meal != "" {
		d.Meal = patch.Meal
	}
	if patch.Period != nil {
		p := *patch.Period
		d.Period = &p
	}
	if patch.Rating > 0 {
		d.Rating = patch.Rating
	}
	if patch.Adults > 0 {
		d.Adults = patch.Adults
	}
	if patch.Children > 0 {
		d.Children = patch.Children
	}
	if patch.Sort != "" {
		d.Sort = patch.Sort
	}
}

// Advance merges patch into a copy of d and recomputes what is still missing.
// The input draft is not modified.
func Advance(d *models.SearchDraft, patch models.SearchDraft) Step {
	next := d.Clone()
	if next == nil {
		next = &models.SearchDraft{}
	}
	Merge(next, patch)

	missing := Missing(next)
	step := Step{Draft: next, Missing: missing, Complete: len(missing) == 0}
	if len(missing) > 0 {
		step.Awaiting = missing[0]
	}
	return step
}

var anyAnswerRe = regexp.MustCompile(`^(?:не важно|неважно|любой|любая|любое|все равно|без разницы|any|whatever|doesn'?t matter)$`)

// Answer reads a reply to the targeted prompt for awaiting. Besides the
// targeted slot the reply may carry other slots; all of them are returned.
// A lone number is read as the targeted slot ("10" nights, "150" thousand
// rubles). A reply with nothing usable yields ErrUnparsed; a targeted value
// outside its valid range yields extract.ErrOutOfRange.
func Answer(text string, awaiting models.Slot, defaultYear int) (extract.DraftResult, error) {
	res := extract.Draft(text, defaultYear)

	switch awaiting {
	case models.SlotNights:
		if res.Draft.Nights == nil && !invalid(res, models.SlotNights) {
			switch n, err := extract.BareNights(text); {
			case err == nil:
				res.Draft.Nights = &n
			case errors.Is(err, extract.ErrOutOfRange):
				res.Invalid = append(res.Invalid, models.SlotNights)
			}
		}
	case models.SlotBudget:
		if res.Draft.Budget == nil && !invalid(res, models.SlotBudget) {
			switch m, err := extract.BudgetAnswer(text); {
			case err == nil:
				b := m.Budget
				res.Draft.Budget = &b
				res.Budget = &m
			case errors.Is(err, extract.ErrOutOfRange):
				res.Invalid = append(res.Invalid, models.SlotBudget)
			default:
				if anyAnswerRe.MatchString(strings.Trim(extract.Normalize(text), " .,!?")) {
					b := models.NewAnyBudget()
					res.Draft.Budget = &b
					res.Budget = &extract.BudgetMatch{Budget: b, Form: extract.BudgetFormAny}
				}
			}
		}
	}

	if invalid(res, awaiting) {
		return res, extract.ErrOutOfRange
	}
	if !res.HasSignal() {
		return res, ErrUnparsed
	}
	return res, nil
}

func invalid(res extract.DraftResult, slot models.Slot) bool {
	for _, s := range res.Invalid {
		if s == slot {
			return true
		}
	}
	return false
}
