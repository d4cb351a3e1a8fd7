package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

const (
	MinNights = 1
	MaxNights = 30
)

// Budget band factors. The approx band is symmetric and rounded to 100; the
// target ceiling is used only when a user clarifies that an amount was a
// rough target, and is rounded to the unit.
const (
	ApproxLowFactor     = 0.9
	ApproxHighFactor    = 1.1
	TargetCeilingFactor = 1.2
)

type BudgetKind string

const (
	BudgetMax    BudgetKind = "max"
	BudgetRange  BudgetKind = "range"
	BudgetApprox BudgetKind = "approx"
	BudgetAny    BudgetKind = "any"
)

// Budget is a tagged union: {max} | {min,max} | {target, derived min/max} | any.
type Budget struct {
	Kind   BudgetKind `json:"kind"`
	Min    int        `json:"min,omitempty"`
	Max    int        `json:"max,omitempty"`
	Target int        `json:"target,omitempty"`
}

func NewMaxBudget(max int) Budget {
	return Budget{Kind: BudgetMax, Max: max}
}

func NewRangeBudget(a, b int) Budget {
	if a > b {
		a, b = b, a
	}
	return Budget{Kind: BudgetRange, Min: a, Max: b}
}

func NewApproxBudget(target int) Budget {
	return Budget{
		Kind:   BudgetApprox,
		Target: target,
		Min:    Round100(float64(target) * ApproxLowFactor),
		Max:    Round100(float64(target) * ApproxHighFactor),
	}
}

// NewTargetCeilingBudget turns a clarified "rough target" into a ceiling.
func NewTargetCeilingBudget(target int) Budget {
	return Budget{
		Kind:   BudgetMax,
		Target: target,
		Max:    int(math.Round(float64(target) * TargetCeilingFactor)),
	}
}

func NewAnyBudget() Budget {
	return Budget{Kind: BudgetAny}
}

func Round100(v float64) int {
	return int(math.Round(v/100) * 100)
}

// Bounds returns the price window. max == 0 means no ceiling.
func (b Budget) Bounds() (min, max int) {
	switch b.Kind {
	case BudgetAny:
		return 0, 0
	case BudgetMax:
		return 0, b.Max
	default:
		return b.Min, b.Max
	}
}

var ErrInvalidBudget = errors.New("budget must be a positive amount")

func (b Budget) Validate() error {
	switch b.Kind {
	case BudgetAny:
		return nil
	case BudgetMax:
		if b.Max <= 0 {
			return ErrInvalidBudget
		}
	case BudgetRange, BudgetApprox:
		if b.Max <= 0 || b.Min < 0 || b.Min > b.Max {
			return ErrInvalidBudget
		}
		if b.Kind == BudgetApprox && b.Target <= 0 {
			return ErrInvalidBudget
		}
	default:
		return fmt.Errorf("unknown budget kind %q", b.Kind)
	}
	return nil
}

func (b Budget) String() string {
	switch b.Kind {
	case BudgetAny:
		return "any"
	case BudgetMax:
		return fmt.Sprintf("max:%d", b.Max)
	case BudgetApprox:
		return fmt.Sprintf("approx:%d(%d-%d)", b.Target, b.Min, b.Max)
	default:
		return fmt.Sprintf("range:%d-%d", b.Min, b.Max)
	}
}

type NightRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func ExactNights(n int) NightRange {
	return NightRange{Min: n, Max: n}
}

func (n NightRange) Valid() bool {
	return n.Min >= MinNights && n.Max <= MaxNights && n.Min <= n.Max
}

func (n NightRange) String() string {
	if n.Min == n.Max {
		return fmt.Sprintf("%d", n.Min)
	}
	return fmt.Sprintf("%d-%d", n.Min, n.Max)
}

type Meal string

const (
	MealAny Meal = "any"
	MealRO  Meal = "RO"
	MealBB  Meal = "BB"
	MealHB  Meal = "HB"
	MealFB  Meal = "FB"
	MealAI  Meal = "AI"
	MealUAI Meal = "UAI"
)

var mealLabels = map[Meal]string{
	MealAny: "любое питание",
	MealRO:  "без питания",
	MealBB:  "завтраки",
	MealHB:  "полупансион",
	MealFB:  "полный пансион",
	MealAI:  "всё включено",
	MealUAI: "ультра всё включено",
}

func (m Meal) Valid() bool {
	_, ok := mealLabels[m]
	return ok
}

func (m Meal) Label() string {
	if l, ok := mealLabels[m]; ok {
		return l
	}
	return string(m)
}

type SortOrder string

const (
	SortPriceAsc  SortOrder = "price_asc"
	SortPriceDesc SortOrder = "price_desc"
)

type PeriodKind string

const (
	PeriodMonth    PeriodKind = "month"
	PeriodRelative PeriodKind = "relative"
	PeriodSeason   PeriodKind = "season"
)

// Symbolic period tags.
const (
	PeriodThisMonth     = "this_month"
	PeriodNextMonth     = "next_month"
	PeriodInOneTwoMonth = "in_1_2_months"
	PeriodSummer        = "summer"
	PeriodAutumn        = "autumn"
	PeriodWinter        = "winter"
	PeriodSpring        = "spring"
)

var relativeWindows = map[string][2]int{
	PeriodThisMonth:     {1, 30},
	PeriodNextMonth:     {28, 60},
	PeriodInOneTwoMonth: {30, 60},
}

// seasonStart is the first month of each canonical seasonal window; every
// window spans three calendar months.
var seasonStart = map[string]time.Month{
	PeriodSpring: time.March,
	PeriodSummer: time.June,
	PeriodAutumn: time.September,
	PeriodWinter: time.December,
}

// Period is either a concrete calendar month or a symbolic tag.
type Period struct {
	Kind         PeriodKind `json:"kind"`
	Tag          string     `json:"tag,omitempty"`
	Year         int        `json:"year,omitempty"`
	Month        time.Month `json:"month,omitempty"`
	YearExplicit bool       `json:"year_explicit,omitempty"`
	DateFrom     string     `json:"date_from,omitempty"`
	DateTo       string     `json:"date_to,omitempty"`
}

func MonthPeriod(year int, month time.Month, explicit bool) Period {
	from, to := monthBounds(year, month)
	return Period{
		Kind:         PeriodMonth,
		Year:         year,
		Month:        month,
		YearExplicit: explicit,
		DateFrom:     from.Format(DateLayout),
		DateTo:       to.Format(DateLayout),
	}
}

// SymbolicPeriod builds a season or relative period from its tag.
func SymbolicPeriod(tag string, year int) (Period, bool) {
	if _, ok := seasonStart[tag]; ok {
		return Period{Kind: PeriodSeason, Tag: tag, Year: year}, true
	}
	if _, ok := relativeWindows[tag]; ok {
		return Period{Kind: PeriodRelative, Tag: tag}, true
	}
	return Period{}, false
}

func monthBounds(year int, month time.Month) (time.Time, time.Time) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	return from, to
}

func (p Period) IsZero() bool {
	return p.Kind == ""
}

// Window resolves the period to concrete dates relative to now. Windows that
// already ended roll forward a year unless the year was stated; windows that
// already started are clipped to tomorrow.
func (p Period) Window(now time.Time) (time.Time, time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	tomorrow := today.AddDate(0, 0, 1)

	var from, to time.Time
	switch p.Kind {
	case PeriodMonth:
		from, to = monthBounds(p.Year, p.Month)
		if !p.YearExplicit && to.Before(today) {
			from, to = monthBounds(p.Year+1, p.Month)
		}
	case PeriodSeason:
		year := p.Year
		if year == 0 {
			year = today.Year()
		}
		start := seasonStart[p.Tag]
		from = time.Date(year, start, 1, 0, 0, 0, 0, time.UTC)
		to = time.Date(year, start+3, 0, 0, 0, 0, 0, time.UTC)
		if to.Before(today) {
			from = from.AddDate(1, 0, 0)
			to = time.Date(year+1, start+3, 0, 0, 0, 0, 0, time.UTC)
		}
	default:
		w, ok := relativeWindows[p.Tag]
		if !ok {
			w = [2]int{1, 30}
		}
		from = today.AddDate(0, 0, w[0])
		to = today.AddDate(0, 0, w[1])
	}
	if from.Before(tomorrow) {
		from = tomorrow
	}
	if to.Before(from) {
		to = from
	}
	return from, to
}

func (p Period) String() string {
	if p.Kind == PeriodMonth {
		return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
	}
	return p.Tag
}

// SearchDraft is a partially specified search. Zero values mean "unset".
type SearchDraft struct {
	CountryID   int         `json:"country_id,omitempty"`
	CountryName string      `json:"country_name,omitempty"`
	Nights      *NightRange `json:"nights,omitempty"`
	Budget      *Budget     `json:"budget,omitempty"`
	Meal        Meal        `json:"meal,omitempty"`
	Period      *Period     `json:"period,omitempty"`
	Rating      float64     `json:"rating,omitempty"`
	Adults      int         `json:"adults,omitempty"`
	Children    int         `json:"children,omitempty"`
	Sort        SortOrder   `json:"sort,omitempty"`
}

// HasCountry treats a country identified either by id or by name as present.
func (d *SearchDraft) HasCountry() bool {
	return d != nil && (d.CountryID > 0 || strings.TrimSpace(d.CountryName) != "")
}

func (d *SearchDraft) ResolveCountry() (Country, bool) {
	if d == nil {
		return Country{}, false
	}
	if d.CountryID > 0 {
		if c, ok := CountryByID(d.CountryID); ok {
			return c, true
		}
	}
	return CountryByName(d.CountryName)
}

func (d *SearchDraft) SetCountry(c Country) {
	d.CountryID = c.ID
	d.CountryName = c.Name
}

func (d *SearchDraft) IsEmpty() bool {
	if d == nil {
		return true
	}
	return !d.HasCountry() && d.Nights == nil && d.Budget == nil && d.Meal == "" &&
		d.Period == nil && d.Rating == 0 && d.Adults == 0 && d.Children == 0 && d.Sort == ""
}

func (d *SearchDraft) Clone() *SearchDraft {
	if d == nil {
		return nil
	}
	out := *d
	if d.Nights != nil {
		n := *d.Nights
		out.Nights = &n
	}
	if d.Budget != nil {
		b := *d.Budget
		out.Budget = &b
	}
	if d.Period != nil {
		p := *d.Period
		out.Period = &p
	}
	return &out
}

// SearchSpec is a fully resolved search. It is a value type: refinements
// produce a new SearchSpec and never mutate a submitted one.
type SearchSpec struct {
	Country  Country    `json:"country"`
	Nights   NightRange `json:"nights"`
	Budget   Budget     `json:"budget"`
	Meal     Meal       `json:"meal"`
	Period   Period     `json:"period"`
	DateFrom string     `json:"date_from"`
	DateTo   string     `json:"date_to"`
	Rating   float64    `json:"rating,omitempty"`
	Adults   int        `json:"adults"`
	Children int        `json:"children"`
	Sort     SortOrder  `json:"sort"`
	Offset   int        `json:"offset"`
	Limit    int        `json:"limit"`
}

// FilterKey identifies the result set independent of pagination.
func (s SearchSpec) FilterKey() string {
	min, max := s.Budget.Bounds()
	return fmt.Sprintf("c=%d|n=%s|b=%d-%d|m=%s|d=%s..%s|r=%.1f|a=%d|ch=%d|s=%s",
		s.Country.ID, s.Nights, min, max, s.Meal, s.DateFrom, s.DateTo,
		s.Rating, s.Adults, s.Children, s.Sort)
}

// CacheKey identifies one page of a result set.
func (s SearchSpec) CacheKey() string {
	return fmt.Sprintf("%s|o=%d|l=%d", s.FilterKey(), s.Offset, s.Limit)
}

// TourResult is one normalized inventory item.
type TourResult struct {
	TourID    string  `json:"tour_id,omitempty"`
	HotelID   int     `json:"hotel_id"`
	HotelName string  `json:"hotel_name,omitempty"`
	Stars     int     `json:"stars,omitempty"`
	Rating    float64 `json:"rating,omitempty"`
	Region    string  `json:"region,omitempty"`
	Price     int     `json:"price"`
	Currency  string  `json:"currency"`
	DateFrom  string  `json:"date_from,omitempty"`
	DateTo    string  `json:"date_to,omitempty"`
	Nights    int     `json:"nights,omitempty"`
	Operator  string  `json:"operator,omitempty"`
	Meal      string  `json:"meal,omitempty"`
	Room      string  `json:"room,omitempty"`
	ImageURL  string  `json:"image_url,omitempty"`
}

// SearchOutcome is what the execution adapter returns for one search spec.
type SearchOutcome struct {
	RequestID string       `json:"request_id"`
	Results   []TourResult `json:"results"`
	TimedOut  bool         `json:"timed_out"`
	PollCount int          `json:"poll_count"`
	Source    string       `json:"source"`
	Backend   string       `json:"backend"`
	TookMs    int64        `json:"took_ms"`
}

func foldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
