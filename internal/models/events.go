package models

import "time"

// InventoryEvent is a change to the indexed tour catalog published on the
// inventory topic.
type InventoryEvent struct {
	Type      string         `json:"type"` // UPSERT, DELETE
	TourID    string         `json:"tour_id"`
	CountryID int            `json:"country_id"`
	Tour      *CatalogTour   `json:"tour,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Version   int64          `json:"version"`
}

// CatalogTour is the indexed document shape of one tour offer.
type CatalogTour struct {
	TourID    string    `json:"tour_id"`
	CountryID int       `json:"country_id"`
	HotelID   int       `json:"hotel_id"`
	HotelName string    `json:"hotel_name"`
	Stars     int       `json:"stars,omitempty"`
	Rating    float64   `json:"rating,omitempty"`
	Region    string    `json:"region,omitempty"`
	Price     int       `json:"price"`
	Currency  string    `json:"currency"`
	DateFrom  string    `json:"date_from"`
	Nights    int       `json:"nights"`
	Meal      string    `json:"meal"`
	Room      string    `json:"room,omitempty"`
	Operator  string    `json:"operator,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type IndexAction struct {
	Action    string       `json:"action"` // index, delete
	Index     string       `json:"index"`
	ID        string       `json:"id"`
	Routing   string       `json:"routing,omitempty"`
	Body      *CatalogTour `json:"body,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// SearchEvent is one executed search as recorded in the analytics store.
type SearchEvent struct {
	EventType  string    `json:"event_type"`
	ChatID     string    `json:"chat_id"`
	RequestID  string    `json:"request_id"`
	SpecHash   string    `json:"spec_hash"`
	CountryID  int       `json:"country_id"`
	Nights     int       `json:"nights"`
	BudgetMax  int       `json:"budget_max"`
	Meal       string    `json:"meal"`
	Backend    string    `json:"backend"`
	Source     string    `json:"source"`
	DurationMs float64   `json:"duration_ms"`
	Results    int       `json:"results"`
	PollCount  int       `json:"poll_count"`
	TimedOut   bool      `json:"timed_out"`
	Failed     bool      `json:"failed"`
	Timestamp  time.Time `json:"timestamp"`
	TraceID    string    `json:"trace_id"`
}

type DestinationStat struct {
	CountryID int     `json:"country_id"`
	Country   string  `json:"country"`
	Searches  uint64  `json:"searches"`
	AvgBudget float64 `json:"avg_budget"`
}
