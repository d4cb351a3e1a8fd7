package cache

import (
	"strings"
	"testing"

	"github.com/shubhsaxena/tour-concierge/internal/models"
)

func TestHashString(t *testing.T) {
	h1 := hashString("test")
	h2 := hashString("test")
	if h1 != h2 {
		t.Errorf("hashString not deterministic: %q != %q", h1, h2)
	}
	if h1 == hashString("other") {
		t.Error("different inputs should produce different hashes")
	}
	if len(h1) != 16 {
		t.Errorf("hash length = %d, want 16", len(h1))
	}
}

func testSpec() models.SearchSpec {
	tr, _ := models.CountryByID(4)
	return models.SearchSpec{
		Country:  tr,
		Nights:   models.ExactNights(7),
		Budget:   models.NewMaxBudget(150000),
		Meal:     models.MealAny,
		DateFrom: "2025-06-11",
		DateTo:   "2025-07-11",
		Adults:   2,
		Sort:     models.SortPriceAsc,
		Limit:    5,
	}
}

func TestSearchKeys(t *testing.T) {
	spec := testSpec()
	next := spec
	next.Offset = 5
	other := spec
	other.Budget = models.NewMaxBudget(160000)

	tests := []struct {
		name  string
		a, b  models.SearchSpec
		equal bool
	}{
		{"same spec", spec, spec, true},
		{"next page", spec, next, false},
		{"different budget", spec, other, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := searchKey(tt.a) == searchKey(tt.b); got != tt.equal {
				t.Errorf("keys equal = %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestSearchPatternMatchesFreshKeysOnly(t *testing.T) {
	spec := testSpec()
	prefix := strings.TrimSuffix(SearchPattern(spec.Country.ID), "*")

	if !strings.HasPrefix(searchKey(spec), prefix) {
		t.Errorf("fresh key %q not covered by %q", searchKey(spec), prefix)
	}
	if strings.HasPrefix(staleKey(spec), prefix) {
		t.Errorf("stale key %q must survive invalidation", staleKey(spec))
	}
	if strings.HasPrefix(searchKey(spec), strings.TrimSuffix(SearchPattern(1), "*")) {
		t.Error("pattern of another country matches")
	}
}

func TestConversationKey(t *testing.T) {
	if conversationKey("42") != "conv:42" {
		t.Errorf("key = %q", conversationKey("42"))
	}
}
