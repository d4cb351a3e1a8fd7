package models

import (
	"time"

	"github.com/google/uuid"
)

type Mode string

const (
	ModeIdle                  Mode = "idle"
	ModeCollecting            Mode = "collecting"
	ModeResults               Mode = "results"
	ModeAwaitingClarification Mode = "awaiting_clarification"
	ModeAwaitingPhone         Mode = "awaiting_phone"
)

type Slot string

const (
	SlotNone    Slot = ""
	SlotCountry Slot = "country"
	SlotNights  Slot = "nights"
	SlotBudget  Slot = "budget"
)

// RequiredSlots is the fixed prompt precedence.
var RequiredSlots = []Slot{SlotCountry, SlotNights, SlotBudget}

// PendingBudget records an ambiguous amount waiting for a "ceiling or target"
// answer, together with the rest of the refinement it arrived with.
type PendingBudget struct {
	Value  int        `json:"value"`
	Origin Mode       `json:"origin"`
	Base   SearchSpec `json:"base"`
}

// Selection pins the result a user asked to book so that a phone answer can
// be correlated back to it.
type Selection struct {
	RequestID string     `json:"request_id"`
	HotelID   int        `json:"hotel_id"`
	Tour      TourResult `json:"tour"`
	Spec      SearchSpec `json:"spec"`
	DedupeKey string     `json:"dedupe_key"`
}

type Collection struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	Spec      SearchSpec   `json:"spec"`
	Tours     []TourResult `json:"tours"`
}

// Favorites belongs to the conversation, not to a search: resets keep it.
type Favorites struct {
	Tours       []TourResult `json:"tours"`
	Collections []Collection `json:"collections"`
}

// AddTour appends t unless a tour for the same hotel is already saved.
func (f *Favorites) AddTour(t TourResult) bool {
	for _, existing := range f.Tours {
		if existing.HotelID == t.HotelID {
			return false
		}
	}
	f.Tours = append(f.Tours, t)
	return true
}

func (f *Favorites) AddCollection(spec SearchSpec, tours []TourResult, maxTours int, now time.Time) Collection {
	if maxTours > 0 && len(tours) > maxTours {
		tours = tours[:maxTours]
	}
	c := Collection{
		ID:        uuid.NewString(),
		CreatedAt: now.UTC(),
		Spec:      spec,
		Tours:     append([]TourResult(nil), tours...),
	}
	f.Collections = append(f.Collections, c)
	return c
}

func (f *Favorites) RemoveCollection(id string) bool {
	for i, c := range f.Collections {
		if c.ID == id {
			f.Collections = append(f.Collections[:i], f.Collections[i+1:]...)
			return true
		}
	}
	return false
}

func (f *Favorites) Clear() {
	f.Tours = nil
	f.Collections = nil
}

func (f *Favorites) IsEmpty() bool {
	return len(f.Tours) == 0 && len(f.Collections) == 0
}

// ConversationState is the per-chat record owned by the session store.
type ConversationState struct {
	ChatID        string         `json:"chat_id"`
	Mode          Mode           `json:"mode"`
	Awaiting      Slot           `json:"awaiting,omitempty"`
	Draft         *SearchDraft   `json:"draft,omitempty"`
	LastSpec      *SearchSpec    `json:"last_spec,omitempty"`
	LastRequestID string         `json:"last_request_id,omitempty"`
	Results       []TourResult   `json:"results,omitempty"`
	Shown         int            `json:"shown"`
	Exhausted     bool           `json:"exhausted,omitempty"`
	Seq           uint64         `json:"seq"`
	Pending       *PendingBudget `json:"pending,omitempty"`
	Selection     *Selection     `json:"selection,omitempty"`
	RetrySpec     *SearchSpec    `json:"retry_spec,omitempty"`
	Favorites     Favorites      `json:"favorites"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func NewConversationState(chatID string, now time.Time) *ConversationState {
	return &ConversationState{
		ChatID:    chatID,
		Mode:      ModeIdle,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

// Reset drops all search state and bumps the sequence number so that any
// in-flight search is discarded when it lands. Favorites survive.
func (s *ConversationState) Reset() {
	s.Mode = ModeIdle
	s.Awaiting = SlotNone
	s.Draft = nil
	s.LastSpec = nil
	s.LastRequestID = ""
	s.Results = nil
	s.Shown = 0
	s.Exhausted = false
	s.Pending = nil
	s.Selection = nil
	s.RetrySpec = nil
	s.Seq++
}

// Clone returns a deep copy so callers can mutate without aliasing the store.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	out := *s
	out.Draft = s.Draft.Clone()
	if s.LastSpec != nil {
		spec := *s.LastSpec
		out.LastSpec = &spec
	}
	if s.RetrySpec != nil {
		spec := *s.RetrySpec
		out.RetrySpec = &spec
	}
	if s.Pending != nil {
		p := *s.Pending
		out.Pending = &p
	}
	if s.Selection != nil {
		sel := *s.Selection
		out.Selection = &sel
	}
	out.Results = append([]TourResult(nil), s.Results...)
	out.Favorites.Tours = append([]TourResult(nil), s.Favorites.Tours...)
	out.Favorites.Collections = make([]Collection, len(s.Favorites.Collections))
	for i, c := range s.Favorites.Collections {
		c.Tours = append([]TourResult(nil), c.Tours...)
		out.Favorites.Collections[i] = c
	}
	return &out
}

// FindResult looks up a tour in the cached result list of the given request.
func (s *ConversationState) FindResult(requestID string, hotelID int) (TourResult, bool) {
	if s.LastRequestID != requestID {
		return TourResult{}, false
	}
	for _, r := range s.Results {
		if r.HotelID == hotelID {
			return r, true
		}
	}
	return TourResult{}, false
}
