// Package synthetic is a deterministic stand-in for the live inventory
// provider. Results depend only on the search filters and the configured
// seed, so identical searches return identical ordered results and images.
package synthetic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shubhsaxena/tour-concierge/internal/config"
	"github.com/shubhsaxena/tour-concierge/internal/models"
	"github.com/shubhsaxena/tour-concierge/internal/search"
)

var ErrUnknownRequest = errors.New("unknown synthetic request")

const (
	defaultMinPrice = 40000
	defaultMaxPrice = 400000
)

var regions = map[int][]string{
	4:  {"Анталья", "Кемер", "Белек", "Сиде", "Аланья", "Бодрум"},
	1:  {"Хургада", "Шарм-эль-Шейх", "Макади", "Сома Бей"},
	9:  {"Дубай", "Абу-Даби", "Шарджа", "Рас-эль-Хайма"},
	2:  {"Пхукет", "Паттайя", "Самуи", "Краби"},
	8:  {"Северный Мале", "Южный Мале", "Ари", "Баа"},
	16: {"Нячанг", "Фукуок", "Фантьет", "Дананг"},
}

var (
	namePrefixes = []string{"Royal", "Grand", "Blue", "Golden", "Sunset", "Palm", "Crystal", "Coral", "Orange", "Silk"}
	nameSuffixes = []string{"Resort", "Beach Hotel", "Palace", "Club", "Garden Resort", "Bay", "Suites", "Lagoon"}
	operators    = []string{"Anex", "Pegas", "Coral Travel", "TUI", "FunSun", "Biblio Globus"}
	rooms        = []string{"Standard", "Superior", "Deluxe", "Family Room", "Junior Suite"}
	meals        = []models.Meal{models.MealRO, models.MealBB, models.MealHB, models.MealFB, models.MealAI, models.MealUAI}
)

// Generator implements search.Backend. Each request reports pending for the
// configured number of polls before completing.
type Generator struct {
	cfg    config.SyntheticConfig
	logger *zap.Logger

	mu       sync.Mutex
	requests map[string]*pending
}

type pending struct {
	payload []byte
	polls   int
}

var _ search.Backend = (*Generator)(nil)

func New(cfg config.SyntheticConfig, logger *zap.Logger) *Generator {
	if cfg.ResultCount <= 0 {
		cfg.ResultCount = 20
	}
	cfg.ResultCount = min(cfg.ResultCount, 500)
	if cfg.ImageCount <= 0 {
		cfg.ImageCount = 1
	}
	return &Generator{
		cfg:      cfg,
		logger:   logger,
		requests: make(map[string]*pending),
	}
}

func (g *Generator) Name() string {
	return config.BackendSynthetic
}

func (g *Generator) Submit(ctx context.Context, spec models.SearchSpec) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	payload, err := json.Marshal(map[string]any{"tours": g.Generate(spec)})
	if err != nil {
		return "", fmt.Errorf("encoding synthetic payload: %w", err)
	}

	id := uuid.NewString()
	g.mu.Lock()
	g.requests[id] = &pending{payload: payload}
	g.mu.Unlock()

	g.logger.Debug("synthetic search submitted",
		zap.String("request_id", id),
		zap.String("filter", spec.FilterKey()),
	)
	return id, nil
}

func (g *Generator) Poll(ctx context.Context, requestID string) (search.PollResult, error) {
	if err := ctx.Err(); err != nil {
		return search.PollResult{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.requests[requestID]
	if !ok {
		return search.PollResult{}, fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
	}
	p.polls++
	if p.polls <= g.cfg.PendingPolls {
		return search.PollResult{Done: false}, nil
	}
	delete(g.requests, requestID)
	return search.PollResult{Done: true, Payload: p.payload}, nil
}

// Generate builds the page of spec's result set as provider-shaped items.
// The whole set is derived from the filters alone; Offset and Limit only
// select a window of it.
func (g *Generator) Generate(spec models.SearchSpec) []map[string]any {
	rng := rand.New(rand.NewPCG(g.seed(spec), 0x9e3779b97f4a7c15))

	minPrice, maxPrice := spec.Budget.Bounds()
	if maxPrice <= 0 {
		maxPrice = defaultMaxPrice
	}
	if minPrice <= 0 {
		minPrice = min(defaultMinPrice, maxPrice/2)
	}
	start, end := window(spec)
	regionList := regions[spec.Country.ID]
	if len(regionList) == 0 {
		regionList = []string{spec.Country.Name}
	}

	type item struct {
		price int
		data  map[string]any
	}
	items := make([]item, 0, g.cfg.ResultCount)
	seen := make(map[int]bool)
	for len(items) < g.cfg.ResultCount {
		hotelID := spec.Country.ID*10000 + 1 + rng.IntN(9999)
		if seen[hotelID] {
			continue
		}
		seen[hotelID] = true

		nights := spec.Nights.Min
		if spec.Nights.Max > spec.Nights.Min {
			nights += rng.IntN(spec.Nights.Max - spec.Nights.Min + 1)
		}
		if nights <= 0 {
			nights = 7
		}
		departure := start
		if span := int(end.Sub(start).Hours() / 24); span > 0 {
			departure = start.AddDate(0, 0, rng.IntN(span+1))
		}

		minStars := min(max(int(spec.Rating+0.999), 3), 5)
		stars := minStars + rng.IntN(6-minStars)

		meal := spec.Meal
		if meal == "" || meal == models.MealAny {
			meal = meals[rng.IntN(len(meals))]
		}

		price := models.Round100(float64(minPrice + rng.IntN(maxPrice-minPrice+1)))
		price = min(max(price, minPrice), maxPrice)

		items = append(items, item{price: price, data: map[string]any{
			"tour_id":   fmt.Sprintf("syn-%d-%d", hotelID, len(items)),
			"hotelId":   hotelID,
			"hotelName": namePrefixes[rng.IntN(len(namePrefixes))] + " " + nameSuffixes[rng.IntN(len(nameSuffixes))],
			"stars":     stars,
			"rating":    float64(35+rng.IntN(16)) / 10,
			"region":    regionList[rng.IntN(len(regionList))],
			"price":     price,
			"currency":  "RUB",
			"flydate":   departure.Format("02.01.2006"),
			"date_to":   departure.AddDate(0, 0, nights).Format(models.DateLayout),
			"nights":    nights,
			"operator":  operators[rng.IntN(len(operators))],
			"meal":      string(meal),
			"room":      rooms[rng.IntN(len(rooms))],
			"image":     fmt.Sprintf("%s/%d.jpg", g.cfg.ImageBaseURL, 1+rng.IntN(g.cfg.ImageCount)),
		}})
	}

	slices.SortStableFunc(items, func(a, b item) int {
		if spec.Sort == models.SortPriceDesc {
			return b.price - a.price
		}
		return a.price - b.price
	})

	from := min(max(spec.Offset, 0), len(items))
	to := len(items)
	if spec.Limit > 0 {
		to = min(from+spec.Limit, len(items))
	}
	out := make([]map[string]any, 0, to-from)
	for _, it := range items[from:to] {
		out = append(out, it.data)
	}
	return out
}

func (g *Generator) seed(spec models.SearchSpec) uint64 {
	if g.cfg.Seed != 0 {
		h := fnv.New64a()
		fmt.Fprintf(h, "%d|%s", g.cfg.Seed, spec.FilterKey())
		return h.Sum64()
	}
	h := fnv.New64a()
	h.Write([]byte(spec.FilterKey()))
	return h.Sum64()
}

func window(spec models.SearchSpec) (time.Time, time.Time) {
	start, err := time.Parse(models.DateLayout, spec.DateFrom)
	if err != nil {
		start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	end, err := time.Parse(models.DateLayout, spec.DateTo)
	if err != nil || end.Before(start) {
		end = start
	}
	return start, end
}
