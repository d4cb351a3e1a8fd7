package dialog

import (
	"regexp"
	"strings"
	"time"

	"github.com/shubhsaxena/tour-concierge/internal/extract"
	"github.com/shubhsaxena/tour-concierge/internal/models"
)

// Refinement is the part of a follow-up message that patches an executed
// search. Patch holds only the fields the message states. PendingAmount is
// set instead of Patch.Budget when a bare amount could be either a ceiling
// or a rough target and the user must be asked.
type Refinement struct {
	Patch         models.SearchDraft
	CountrySwitch bool
	PendingAmount int
	Invalid       []models.Slot
}

// Ambiguous reports a budget waiting for a ceiling-or-target answer.
func (r *Refinement) Ambiguous() bool {
	return r.PendingAmount > 0
}

// Resolve decides whether text refines prior. It returns nil when the message
// changes nothing about the prior search; the caller then starts a new draft.
func Resolve(text string, prior models.SearchSpec, defaultYear int) *Refinement {
	res := extract.Draft(text, defaultYear)
	ref := &Refinement{Invalid: res.Invalid}
	p := &ref.Patch

	if c, ok := res.Draft.ResolveCountry(); ok && c.ID != prior.Country.ID {
		p.SetCountry(c)
		ref.CountrySwitch = true
	}
	p.Nights = res.Draft.Nights
	p.Period = res.Draft.Period
	p.Meal = res.Draft.Meal
	p.Rating = res.Draft.Rating
	p.Adults = res.Draft.Adults
	p.Children = res.Draft.Children
	p.Sort = res.Draft.Sort

	if m := res.Budget; m != nil {
		if m.Form == extract.BudgetFormBare && (m.ForCue || extract.HasQuestionCue(text)) {
			ref.PendingAmount = m.Amount
		} else {
			b := m.Budget
			p.Budget = &b
		}
	}

	if p.IsEmpty() && !ref.Ambiguous() && len(ref.Invalid) == 0 {
		return nil
	}
	return ref
}

// FromDraft reads a draft produced outside the rule extractors as a
// refinement of prior. A country equal to the prior one is not a switch.
// It returns nil when the draft changes nothing.
func FromDraft(d models.SearchDraft, prior models.SearchSpec) *Refinement {
	ref := &Refinement{Patch: d}
	p := &ref.Patch
	p.CountryID, p.CountryName = 0, ""
	if c, ok := d.ResolveCountry(); ok && c.ID != prior.Country.ID {
		p.SetCountry(c)
		ref.CountrySwitch = true
	}
	if p.IsEmpty() {
		return nil
	}
	return ref
}

// Apply produces a new search spec from prior and the patch. Fields the
// patch does not mention are kept; pagination restarts.
func Apply(prior models.SearchSpec, patch models.SearchDraft, now time.Time) models.SearchSpec {
	next := prior
	if c, ok := patch.ResolveCountry(); ok {
		next.Country = c
	}
	if patch.Nights != nil {
		next.Nights = *patch.Nights
	}
	if patch.Budget != nil {
		next.Budget = *patch.Budget
	}
	if patch.Meal != "" {
		next.Meal = patch.Meal
	}
	if patch.Rating > 0 {
		next.Rating = patch.Rating
	}
	if patch.Adults > 0 {
		next.Adults = patch.Adults
	}
	if patch.Children > 0 {
		next.Children = patch.Children
	}
	if patch.Sort != "" {
		next.Sort = patch.Sort
	}
	if patch.Period != nil {
		next.Period = *patch.Period
		from, to := next.Period.Window(now)
		next.DateFrom = from.Format(models.DateLayout)
		next.DateTo = to.Format(models.DateLayout)
	}
	next.Offset = 0
	return next
}

var (
	ceilingAnswerRe = regexp.MustCompile(`(?:потолок|максимум|макс|жестк|предел|не больше|не дороже|ceiling|hard limit|max|maximum|at most)`)
	targetAnswerRe  = regexp.MustCompile(`(?:ориентир|примерно|около|приблизительно|в районе|плюс-минус|target|rough|about|around|approx)`)
)

// Button tokens answering the ceiling-or-target question.
const (
	BudgetAnswerMax    = "max"
	BudgetAnswerTarget = "target"
	BudgetAnswerAny    = "any"
)

// ResolveBudgetAnswer reads the reply to "is X a hard ceiling or a rough
// target?". A ceiling keeps X as the maximum; a target raises the maximum to
// round(X*1.2); "no limit" drops the budget limit. A reply stating a new
// explicit budget wins over the pending amount. ok is false when the reply
// answers none of these.
func ResolveBudgetAnswer(text string, value int) (models.Budget, bool) {
	switch strings.TrimSpace(text) {
	case BudgetAnswerMax:
		return models.NewMaxBudget(value), true
	case BudgetAnswerTarget:
		return models.NewTargetCeilingBudget(value), true
	case BudgetAnswerAny:
		return models.NewAnyBudget(), true
	}

	if extract.NoBudgetLimit(text) {
		return models.NewAnyBudget(), true
	}
	if m, err := extract.Budget(text); err == nil {
		switch m.Form {
		case extract.BudgetFormMax, extract.BudgetFormRange, extract.BudgetFormAny:
			return m.Budget, true
		case extract.BudgetFormApprox:
			return models.NewTargetCeilingBudget(m.Amount), true
		}
	}

	s := extract.Normalize(text)
	if yes, ok := extract.YesNo(s); ok {
		if yes {
			return models.NewMaxBudget(value), true
		}
		return models.NewTargetCeilingBudget(value), true
	}
	switch {
	case ceilingAnswerRe.MatchString(s):
		return models.NewMaxBudget(value), true
	case targetAnswerRe.MatchString(s):
		return models.NewTargetCeilingBudget(value), true
	}
	return models.Budget{}, false
}
