package intent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shubhsaxena/tour-concierge/internal/models"
)

var ErrInvalidModelOutput = errors.New("invalid classifier output")

// modelIntent is the JSON contract the external classifier must answer with.
type modelIntent struct {
	Intent              string       `json:"intent"`
	Country             string       `json:"country,omitempty"`
	NightsMin           int          `json:"nights_min,omitempty"`
	NightsMax           int          `json:"nights_max,omitempty"`
	Budget              *modelBudget `json:"budget,omitempty"`
	Meal                string       `json:"meal,omitempty"`
	Month               string       `json:"month,omitempty"`
	Period              string       `json:"period,omitempty"`
	Rating              float64      `json:"rating,omitempty"`
	Adults              int          `json:"adults,omitempty"`
	Children            int          `json:"children,omitempty"`
	Label               string       `json:"label,omitempty"`
	Command             string       `json:"command,omitempty"`
	Reason              string       `json:"reason,omitempty"`
	ClarifyingQuestions []string     `json:"clarifying_questions,omitempty"`
}

type modelBudget struct {
	Type   string `json:"type"`
	Min    int    `json:"min,omitempty"`
	Max    int    `json:"max,omitempty"`
	Target int    `json:"target,omitempty"`
}

var knownCommands = map[models.Command]bool{
	models.CommandShowMore:       true,
	models.CommandEditFilters:    true,
	models.CommandNewSearch:      true,
	models.CommandCancel:         true,
	models.CommandStartSearch:    true,
	models.CommandFavorites:      true,
	models.CommandClearFavorites: true,
	models.CommandHelp:           true,
}

// ParseModelOutput validates a classifier answer against the intent contract.
// A search whose country is not a supported destination is downgraded to
// unsupported_country.
func ParseModelOutput(raw string, defaultYear int) (models.Intent, error) {
	body, ok := extractJSONObject(raw)
	if !ok {
		return models.Intent{}, fmt.Errorf("%w: no JSON object", ErrInvalidModelOutput)
	}

	var out modelIntent
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return models.Intent{}, fmt.Errorf("%w: %v", ErrInvalidModelOutput, err)
	}

	kind, ok := models.ParseIntentKind(strings.TrimSpace(out.Intent))
	if !ok {
		return models.Intent{}, fmt.Errorf("%w: unknown intent %q", ErrInvalidModelOutput, out.Intent)
	}

	switch kind {
	case models.IntentSearchTours:
		return searchIntent(out, defaultYear)
	case models.IntentUnsupportedCountry:
		label := strings.TrimSpace(out.Label)
		if label == "" {
			label = strings.TrimSpace(out.Country)
		}
		if label == "" {
			return models.Intent{}, fmt.Errorf("%w: unsupported_country without label", ErrInvalidModelOutput)
		}
		if c, ok := models.CountryByName(label); ok {
			d := &models.SearchDraft{}
			d.SetCountry(c)
			return models.Intent{Kind: models.IntentSearchTours, Draft: d}, nil
		}
		return models.Intent{Kind: kind, Label: label}, nil
	case models.IntentCommand:
		cmd := models.Command(strings.TrimSpace(out.Command))
		if !knownCommands[cmd] {
			return models.Intent{}, fmt.Errorf("%w: unknown command %q", ErrInvalidModelOutput, out.Command)
		}
		return models.Intent{Kind: kind, Command: cmd}, nil
	case models.IntentUnknown:
		qs := make([]string, 0, len(out.ClarifyingQuestions))
		for _, q := range out.ClarifyingQuestions {
			if q = strings.TrimSpace(q); q != "" && len(qs) < models.MaxClarifyingQuestions {
				qs = append(qs, q)
			}
		}
		reason := strings.TrimSpace(out.Reason)
		if reason == "" {
			reason = ReasonNotUnderstood
		}
		return models.Intent{Kind: kind, Reason: reason, ClarifyingQuestions: qs}, nil
	default:
		return models.Intent{Kind: kind}, nil
	}
}

func searchIntent(out modelIntent, defaultYear int) (models.Intent, error) {
	d := &models.SearchDraft{}

	if name := strings.TrimSpace(out.Country); name != "" {
		c, ok := models.CountryByName(name)
		if !ok {
			return models.Intent{Kind: models.IntentUnsupportedCountry, Label: name}, nil
		}
		d.SetCountry(c)
	}

	if out.NightsMin != 0 || out.NightsMax != 0 {
		n := models.NightRange{Min: out.NightsMin, Max: out.NightsMax}
		if n.Max == 0 {
			n.Max = n.Min
		}
		if n.Min == 0 {
			n.Min = n.Max
		}
		if !n.Valid() {
			return models.Intent{}, fmt.Errorf("%w: nights %d-%d", ErrInvalidModelOutput, out.NightsMin, out.NightsMax)
		}
		d.Nights = &n
	}

	if out.Budget != nil {
		b, err := out.Budget.toBudget()
		if err != nil {
			return models.Intent{}, err
		}
		d.Budget = &b
	}

	if out.Meal != "" {
		m := models.Meal(strings.ToUpper(strings.TrimSpace(out.Meal)))
		if strings.EqualFold(out.Meal, string(models.MealAny)) {
			m = models.MealAny
		}
		if !m.Valid() {
			return models.Intent{}, fmt.Errorf("%w: meal %q", ErrInvalidModelOutput, out.Meal)
		}
		d.Meal = m
	}

	switch {
	case out.Month != "":
		t, err := time.Parse("2006-01", strings.TrimSpace(out.Month))
		if err != nil {
			return models.Intent{}, fmt.Errorf("%w: month %q", ErrInvalidModelOutput, out.Month)
		}
		p := models.MonthPeriod(t.Year(), t.Month(), true)
		d.Period = &p
	case out.Period != "":
		p, ok := models.SymbolicPeriod(strings.TrimSpace(out.Period), defaultYear)
		if !ok {
			return models.Intent{}, fmt.Errorf("%w: period %q", ErrInvalidModelOutput, out.Period)
		}
		d.Period = &p
	}

	if out.Rating < 0 || out.Rating > 5 {
		return models.Intent{}, fmt.Errorf("%w: rating %v", ErrInvalidModelOutput, out.Rating)
	}
	d.Rating = out.Rating
	if out.Adults < 0 || out.Adults > 9 || out.Children < 0 || out.Children > 6 {
		return models.Intent{}, fmt.Errorf("%w: party %d+%d", ErrInvalidModelOutput, out.Adults, out.Children)
	}
	d.Adults, d.Children = out.Adults, out.Children

	if d.IsEmpty() {
		return models.Intent{}, fmt.Errorf("%w: search_tours without parameters", ErrInvalidModelOutput)
	}
	return models.Intent{Kind: models.IntentSearchTours, Draft: d}, nil
}

func (b modelBudget) toBudget() (models.Budget, error) {
	var out models.Budget
	switch models.BudgetKind(strings.ToLower(strings.TrimSpace(b.Type))) {
	case models.BudgetMax:
		out = models.NewMaxBudget(b.Max)
	case models.BudgetRange:
		if b.Min <= 0 {
			return models.Budget{}, fmt.Errorf("%w: range budget without min", ErrInvalidModelOutput)
		}
		out = models.NewRangeBudget(b.Min, b.Max)
	case models.BudgetApprox:
		out = models.NewApproxBudget(b.Target)
	case models.BudgetAny:
		out = models.NewAnyBudget()
	default:
		return models.Budget{}, fmt.Errorf("%w: budget type %q", ErrInvalidModelOutput, b.Type)
	}
	if err := out.Validate(); err != nil {
		return models.Budget{}, fmt.Errorf("%w: %v", ErrInvalidModelOutput, err)
	}
	return out, nil
}

// extractJSONObject trims prose or code fences around the first JSON object.
func extractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func systemPrompt(now time.Time, hasPriorSearch bool) string {
	var names []string
	for _, c := range models.SupportedCountries() {
		names = append(names, c.Name+" ("+c.NameEn+")")
	}
	var b strings.Builder
	b.WriteString("You classify messages sent to a package-tour search assistant. ")
	b.WriteString("Answer with one JSON object and nothing else.\n")
	b.WriteString(`Fields: "intent" (search_tours | meta | smalltalk | unsupported_country | command | unknown), `)
	b.WriteString(`"country", "nights_min", "nights_max" (1-30), "budget" {"type": max|range|approx|any, "min", "max", "target"} in RUB, `)
	b.WriteString(`"meal" (RO|BB|HB|FB|AI|UAI|any), "month" (YYYY-MM) or "period" (this_month|next_month|in_1_2_months|summer|autumn|winter|spring), `)
	b.WriteString(`"rating" (0-5), "adults", "children", "label" (for unsupported_country), `)
	b.WriteString(`"command" (show_more|edit_filters|new_search|cancel|start_search|favorites|clear_favorites|help), `)
	b.WriteString(`"reason" and up to 3 "clarifying_questions" (for unknown, in Russian).` + "\n")
	b.WriteString("Supported destinations: " + strings.Join(names, ", ") + ". ")
	b.WriteString("Any other destination is unsupported_country.\n")
	b.WriteString("Today is " + now.Format(models.DateLayout) + ".")
	if hasPriorSearch {
		b.WriteString(" The user already received search results; a message changing one parameter is search_tours with only that field.")
	}
	return b.String()
}
