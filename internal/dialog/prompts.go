package dialog

import (
	"fmt"
	"strings"

	"github.com/shubhsaxena/tour-concierge/internal/models"
)

// Prompt is the targeted question for one required slot.
func Prompt(slot models.Slot) string {
	switch slot {
	case models.SlotCountry:
		return "Куда летим? Сейчас ищу туры в: " + CountryList() + "."
	case models.SlotNights:
		return "На сколько ночей? Например: 7 ночей, неделя, 10-12."
	case models.SlotBudget:
		return "Какой бюджет на поездку? Например: до 150 000 ₽, 100-130к, около 120к или «не важно»."
	}
	return ""
}

// Correction is the re-prompt after a value outside the valid range.
func Correction(slot models.Slot) string {
	switch slot {
	case models.SlotNights:
		return fmt.Sprintf("Могу искать туры от %d до %d ночей. На сколько ночей?", models.MinNights, models.MaxNights)
	case models.SlotBudget:
		return "Бюджет должен быть положительной суммой в рублях, например 120 000 ₽. Какой бюджет?"
	}
	return Prompt(slot)
}

// BudgetQuestion asks whether an ambiguous amount is a ceiling or a target.
func BudgetQuestion(value int) string {
	return fmt.Sprintf("%s ₽ это жёсткий потолок или ориентир? Ответьте «да, потолок», «нет, ориентир» или «без ограничений».", FormatRub(value))
}

// CountryList renders the supported destinations for guided replies.
func CountryList() string {
	var names []string
	for _, c := range models.SupportedCountries() {
		names = append(names, c.Label())
	}
	return strings.Join(names, ", ")
}

// FormatRub groups thousands with a space: 120000 -> "120 000".
func FormatRub(v int) string {
	s := fmt.Sprintf("%d", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// Summary is a one-line description of a search spec.
func Summary(spec models.SearchSpec) string {
	parts := []string{
		spec.Country.Label(),
		spec.Nights.String() + " ноч.",
		budgetLabel(spec.Budget),
	}
	if spec.Meal != "" && spec.Meal != models.MealAny {
		parts = append(parts, spec.Meal.Label())
	}
	if spec.Rating > 0 {
		parts = append(parts, fmt.Sprintf("от %.0f*", spec.Rating))
	}
	if spec.DateFrom != "" {
		parts = append(parts, "вылет "+spec.DateFrom+" - "+spec.DateTo)
	}
	parts = append(parts, fmt.Sprintf("%d взр.", spec.Adults))
	if spec.Children > 0 {
		parts = append(parts, fmt.Sprintf("%d дет.", spec.Children))
	}
	return strings.Join(parts, ", ")
}

func budgetLabel(b models.Budget) string {
	switch b.Kind {
	case models.BudgetAny:
		return "без ограничения бюджета"
	case models.BudgetMax:
		return "до " + FormatRub(b.Max) + " ₽"
	case models.BudgetApprox:
		return "около " + FormatRub(b.Target) + " ₽ (" + FormatRub(b.Min) + "-" + FormatRub(b.Max) + ")"
	default:
		return FormatRub(b.Min) + "-" + FormatRub(b.Max) + " ₽"
	}
}
