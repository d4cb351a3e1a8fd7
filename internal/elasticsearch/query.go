package elasticsearch

import (
	"github.com/shubhsaxena/tour-concierge/internal/models"
)

// BuildTourQuery translates a resolved search into a catalog query. All
// constraints are filters; ordering is by price only.
func BuildTourQuery(spec models.SearchSpec) map[string]any {
	filters := []map[string]any{
		{"term": map[string]any{"country_id": spec.Country.ID}},
	}

	if spec.Nights.Min > 0 {
		nights := map[string]any{"gte": spec.Nights.Min}
		if spec.Nights.Max > 0 {
			nights["lte"] = spec.Nights.Max
		}
		filters = append(filters, map[string]any{"range": map[string]any{"nights": nights}})
	}

	if min, max := spec.Budget.Bounds(); min > 0 || max > 0 {
		price := map[string]any{}
		if min > 0 {
			price["gte"] = min
		}
		if max > 0 {
			price["lte"] = max
		}
		filters = append(filters, map[string]any{"range": map[string]any{"price": price}})
	}

	if spec.Meal != "" && spec.Meal != models.MealAny {
		filters = append(filters, map[string]any{"term": map[string]any{"meal": string(spec.Meal)}})
	}

	if spec.DateFrom != "" || spec.DateTo != "" {
		dates := map[string]any{"format": "yyyy-MM-dd"}
		if spec.DateFrom != "" {
			dates["gte"] = spec.DateFrom
		}
		if spec.DateTo != "" {
			dates["lte"] = spec.DateTo
		}
		filters = append(filters, map[string]any{"range": map[string]any{"date_from": dates}})
	}

	if spec.Rating > 0 {
		filters = append(filters, map[string]any{"range": map[string]any{"stars": map[string]any{"gte": spec.Rating}}})
	}

	order := "asc"
	if spec.Sort == models.SortPriceDesc {
		order = "desc"
	}

	size := spec.Limit
	if size <= 0 {
		size = 5
	}

	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{"filter": filters},
		},
		"sort": []map[string]any{
			{"price": map[string]any{"order": order}},
			{"hotel_id": map[string]any{"order": "asc"}},
		},
		"from": spec.Offset,
		"size": size,
	}
}
