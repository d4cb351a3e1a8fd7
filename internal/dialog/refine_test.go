package dialog

import (
	"testing"

	"github.com/shubhsaxena/tour-concierge/internal/models"
)

func priorTurkey(t *testing.T) models.SearchSpec {
	t.Helper()
	nights := models.ExactNights(7)
	budget := models.NewMaxBudget(120000)
	d := countryDraft(4)
	d.Nights = &nights
	d.Budget = &budget
	spec, err := BuildSpec(d, Defaults{}, testNow)
	if err != nil {
		t.Fatal(err)
	}
	spec.Offset = 10
	return spec
}

func TestResolve_MonthOnlyKeepsEverythingElse(t *testing.T) {
	prior := priorTurkey(t)

	ref := Resolve("а в августе?", prior, 2025)
	if ref == nil {
		t.Fatal("expected refinement")
	}
	if ref.CountrySwitch || ref.Ambiguous() || ref.Patch.HasCountry() || ref.Patch.Budget != nil || ref.Patch.Nights != nil {
		t.Errorf("patch carries more than the month: %+v", ref)
	}

	next := Apply(prior, ref.Patch, testNow)
	if next.Country.ID != 4 || next.Nights != prior.Nights || next.Budget != prior.Budget {
		t.Errorf("fields lost: %+v", next)
	}
	if next.DateFrom != "2025-08-01" || next.DateTo != "2025-08-31" {
		t.Errorf("window = %s..%s", next.DateFrom, next.DateTo)
	}
	if next.Offset != 0 {
		t.Errorf("offset = %d", next.Offset)
	}
	if prior.Offset != 10 || prior.DateFrom != "2025-06-11" {
		t.Error("prior search spec was modified")
	}
}

func TestResolve_CountrySwitch(t *testing.T) {
	prior := priorTurkey(t)

	ref := Resolve("а в Египет?", prior, 2025)
	if ref == nil || !ref.CountrySwitch {
		t.Fatalf("expected country switch, got %+v", ref)
	}
	next := Apply(prior, ref.Patch, testNow)
	if next.Country.ID != 1 {
		t.Errorf("country = %d, want Egypt", next.Country.ID)
	}
	if next.Budget != prior.Budget || next.Nights != prior.Nights {
		t.Errorf("fields lost on switch: %+v", next)
	}

	same := Resolve("Турция на 10 ночей", prior, 2025)
	if same == nil || same.CountrySwitch {
		t.Fatalf("same country must not be a switch: %+v", same)
	}
	if same.Patch.Nights == nil || same.Patch.Nights.Min != 10 {
		t.Errorf("nights patch = %v", same.Patch.Nights)
	}
}

func TestResolve_Signals(t *testing.T) {
	prior := priorTurkey(t)

	tests := []struct {
		name  string
		text  string
		check func(*Refinement) bool
	}{
		{"cheaper is a sort", "а подешевле?", func(r *Refinement) bool {
			return r.Patch.Sort == models.SortPriceAsc && r.Patch.Budget == nil
		}},
		{"pricier is a sort", "покажи дороже", func(r *Refinement) bool {
			return r.Patch.Sort == models.SortPriceDesc
		}},
		{"meal", "а с завтраками", func(r *Refinement) bool { return r.Patch.Meal == models.MealBB }},
		{"explicit max", "до 150 000", func(r *Refinement) bool {
			return !r.Ambiguous() && *r.Patch.Budget == models.NewMaxBudget(150000)
		}},
		{"explicit approx", "около 150к", func(r *Refinement) bool {
			return !r.Ambiguous() && r.Patch.Budget.Kind == models.BudgetApprox
		}},
		{"bare amount without cue", "150000", func(r *Refinement) bool {
			return !r.Ambiguous() && r.Patch.Budget.Kind == models.BudgetApprox
		}},
		{"bare amount with for", "за 150к", func(r *Refinement) bool {
			return r.PendingAmount == 150000 && r.Patch.Budget == nil
		}},
		{"bare amount with question", "а если 150000?", func(r *Refinement) bool {
			return r.PendingAmount == 150000 && r.Patch.Budget == nil
		}},
		{"ambiguous amount keeps other fields", "а за 150к на 10 ночей?", func(r *Refinement) bool {
			return r.PendingAmount == 150000 && r.Patch.Nights != nil && r.Patch.Nights.Min == 10
		}},
		{"out of range nights", "на 45 ночей", func(r *Refinement) bool {
			return len(r.Invalid) == 1 && r.Invalid[0] == models.SlotNights
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := Resolve(tt.text, prior, 2025)
			if ref == nil {
				t.Fatal("expected refinement")
			}
			if !tt.check(ref) {
				t.Errorf("unexpected refinement %+v", ref)
			}
		})
	}
}

func TestResolve_NotARefinement(t *testing.T) {
	prior := priorTurkey(t)
	for _, text := range []string{"спасибо", "Турция", "что ещё посоветуешь", ""} {
		if ref := Resolve(text, prior, 2025); ref != nil {
			t.Errorf("%q: expected nil, got %+v", text, ref)
		}
	}
}

func TestResolveBudgetAnswer(t *testing.T) {
	const value = 150000
	tests := []struct {
		text   string
		want   models.Budget
		wantOK bool
	}{
		{BudgetAnswerMax, models.NewMaxBudget(value), true},
		{BudgetAnswerTarget, models.NewTargetCeilingBudget(value), true},
		{BudgetAnswerAny, models.NewAnyBudget(), true},
		{"да, потолок", models.NewMaxBudget(value), true},
		{"нет, ориентир", models.NewTargetCeilingBudget(value), true},
		{"потолок", models.NewMaxBudget(value), true},
		{"это ориентир", models.NewTargetCeilingBudget(value), true},
		{"без ограничений", models.NewAnyBudget(), true},
		{"до 200к", models.NewMaxBudget(200000), true},
		{"около 100000", models.NewTargetCeilingBudget(100000), true},
		{"что?", models.Budget{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ResolveBudgetAnswer(tt.text, value)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("got %+v %v, want %+v %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestTargetCeilingIsAsymmetric(t *testing.T) {
	b, _ := ResolveBudgetAnswer(BudgetAnswerTarget, 125000)
	if b.Max != 150000 {
		t.Errorf("max = %d, want 150000", b.Max)
	}
	approx := models.NewApproxBudget(125000)
	if approx.Max != 137500 {
		t.Errorf("approx max = %d, want 137500", approx.Max)
	}
}
