package dialog

import (
	"fmt"
	"time"

	"github.com/shubhsaxena/tour-concierge/internal/config"
	"github.com/shubhsaxena/tour-concierge/internal/models"
)

// Defaults fill optional slots the user never mentioned.
type Defaults struct {
	Adults     int
	WindowDays int
	PageSize   int
}

func DefaultsFrom(dialog config.DialogConfig, search config.SearchConfig) Defaults {
	return Defaults{
		Adults:     dialog.DefaultAdults,
		WindowDays: dialog.WindowDays,
		PageSize:   search.PageSize,
	}
}

func (d Defaults) withFallbacks() Defaults {
	if d.Adults <= 0 {
		d.Adults = 2
	}
	if d.WindowDays <= 0 {
		d.WindowDays = 30
	}
	if d.PageSize <= 0 {
		d.PageSize = 5
	}
	return d
}

// BuildSpec resolves a complete draft into an executable search spec.
func BuildSpec(d *models.SearchDraft, def Defaults, now time.Time) (models.SearchSpec, error) {
	if missing := Missing(d); len(missing) > 0 {
		return models.SearchSpec{}, fmt.Errorf("%w: %v", ErrIncomplete, missing)
	}
	country, ok := d.ResolveCountry()
	if !ok {
		return models.SearchSpec{}, fmt.Errorf("%w: unknown country %q", ErrIncomplete, d.CountryName)
	}
	def = def.withFallbacks()

	spec := models.SearchSpec{
		Country:  country,
		Nights:   *d.Nights,
		Budget:   *d.Budget,
		Meal:     d.Meal,
		Rating:   d.Rating,
		Adults:   d.Adults,
		Children: d.Children,
		Sort:     d.Sort,
		Limit:    def.PageSize,
	}
	if spec.Meal == "" {
		spec.Meal = models.MealAny
	}
	if spec.Adults <= 0 {
		spec.Adults = def.Adults
	}
	if spec.Sort == "" {
		spec.Sort = models.SortPriceAsc
	}
	if d.Period != nil {
		spec.Period = *d.Period
	}
	setDates(&spec, def, now)
	return spec, nil
}

// setDates derives the departure window from the period, or uses the default
// window starting tomorrow.
func setDates(spec *models.SearchSpec, def Defaults, now time.Time) {
	var from, to time.Time
	if spec.Period.IsZero() {
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		from = today.AddDate(0, 0, 1)
		to = from.AddDate(0, 0, def.WindowDays)
	} else {
		from, to = spec.Period.Window(now)
	}
	spec.DateFrom = from.Format(models.DateLayout)
	spec.DateTo = to.Format(models.DateLayout)
}

// Draft turns an executed search spec back into a draft, for editing.
func Draft(spec models.SearchSpec) *models.SearchDraft {
	n, b := spec.Nights, spec.Budget
	d := &models.SearchDraft{
		Nights:   &n,
		Budget:   &b,
		Meal:     spec.Meal,
		Rating:   spec.Rating,
		Adults:   spec.Adults,
		Children: spec.Children,
		Sort:     spec.Sort,
	}
	d.SetCountry(spec.Country)
	if !spec.Period.IsZero() {
		p := spec.Period
		d.Period = &p
	}
	return d
}
