package firestore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"

	"github.com/shubhsaxena/tour-concierge/internal/models"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls [][]string
	docs  map[string]map[string]any
	err   error
}

func (f *fakeFetcher) fetch(_ context.Context, ids []string) (map[string]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ids)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]map[string]any)
	for _, id := range ids {
		if d, ok := f.docs[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

func newTestClient(f *fakeFetcher) *Client {
	return &Client{logger: zap.NewNop(), fetch: f.fetch, hotels: make(map[int]Hotel)}
}

func TestHydrate(t *testing.T) {
	f := &fakeFetcher{docs: map[string]map[string]any{
		"10": {"name": "Palm Resort", "stars": int64(5), "rating": 4.7, "image_url": "https://img/10.jpg", "region": "Кемер"},
	}}
	c := newTestClient(f)
	in := []models.TourResult{
		{HotelID: 10, Price: 1000},
		{HotelID: 11, HotelName: "Keep Me", Price: 2000},
		{HotelID: 10, HotelName: "Own Name", Price: 1500},
	}

	out, err := c.Hydrate(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if out[0].HotelName != "Palm Resort" || out[0].Stars != 5 || out[0].ImageURL == "" || out[0].Region != "Кемер" {
		t.Errorf("first = %+v", out[0])
	}
	if out[1].HotelName != "Keep Me" {
		t.Errorf("unknown hotel changed: %+v", out[1])
	}
	if out[2].HotelName != "Own Name" || out[2].Stars != 5 {
		t.Errorf("present values must win: %+v", out[2])
	}
	if in[0].HotelName != "" {
		t.Error("input slice mutated")
	}
	if len(f.calls) != 1 || len(f.calls[0]) != 2 {
		t.Errorf("fetch calls = %v, want one call for 2 distinct ids", f.calls)
	}

	if _, err := c.Hydrate(context.Background(), in[:1]); err != nil {
		t.Fatal(err)
	}
	if len(f.calls) != 1 {
		t.Error("cached hotel fetched again")
	}
}

func TestHydrate_FetchErrorReturnsInput(t *testing.T) {
	c := newTestClient(&fakeFetcher{err: errors.New("unavailable")})
	in := []models.TourResult{{HotelID: 1, Price: 1}}
	out, err := c.Hydrate(context.Background(), in)
	if err != nil || len(out) != 1 || out[0].HotelName != "" {
		t.Errorf("out = %+v, err = %v", out, err)
	}
}

func TestApplyChange(t *testing.T) {
	c := newTestClient(&fakeFetcher{})
	c.applyChange(firestore.DocumentAdded, "7", map[string]any{"name": "A"})
	c.applyChange(firestore.DocumentModified, "7", map[string]any{"name": "B"})
	if c.hotels[7].Name != "B" {
		t.Errorf("hotel = %+v", c.hotels[7])
	}
	c.applyChange(firestore.DocumentAdded, "not-a-number", map[string]any{"name": "X"})
	if len(c.hotels) != 1 {
		t.Errorf("hotels = %v", c.hotels)
	}
	c.applyChange(firestore.DocumentRemoved, "7", nil)
	if len(c.hotels) != 0 {
		t.Error("removed hotel still cached")
	}
}
