package models

import (
	"testing"
	"time"
)

func TestFavorites_AddTourDedupesByHotel(t *testing.T) {
	var f Favorites
	if !f.AddTour(TourResult{HotelID: 1, Price: 100}) {
		t.Fatal("first add must succeed")
	}
	if f.AddTour(TourResult{HotelID: 1, Price: 200}) {
		t.Error("second add for the same hotel must be rejected")
	}
	f.AddTour(TourResult{HotelID: 2, Price: 300})

	if len(f.Tours) != 2 || f.Tours[0].HotelID != 1 || f.Tours[1].HotelID != 2 {
		t.Errorf("unexpected tours %+v", f.Tours)
	}
	if f.Tours[0].Price != 100 {
		t.Error("existing entry must not be replaced")
	}
}

func TestFavorites_Collections(t *testing.T) {
	var f Favorites
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tours := make([]TourResult, 15)
	for i := range tours {
		tours[i] = TourResult{HotelID: i + 1, Price: 1000}
	}

	c := f.AddCollection(SearchSpec{Limit: 5}, tours, 10, now)
	if c.ID == "" {
		t.Error("expected generated id")
	}
	if len(c.Tours) != 10 {
		t.Errorf("expected 10 tours, got %d", len(c.Tours))
	}
	if !c.CreatedAt.Equal(now) {
		t.Errorf("created at = %v", c.CreatedAt)
	}

	other := f.AddCollection(SearchSpec{}, tours[:2], 10, now)
	if other.ID == c.ID {
		t.Error("collection ids must be unique")
	}

	if !f.RemoveCollection(c.ID) {
		t.Error("expected removal to succeed")
	}
	if f.RemoveCollection(c.ID) {
		t.Error("second removal must report false")
	}
	if len(f.Collections) != 1 || f.Collections[0].ID != other.ID {
		t.Errorf("unexpected collections %+v", f.Collections)
	}

	f.Clear()
	if !f.IsEmpty() {
		t.Error("expected empty favorites after Clear")
	}
}

func TestConversationState_ResetPreservesFavorites(t *testing.T) {
	s := NewConversationState("42", time.Now())
	s.Mode = ModeResults
	s.Draft = &SearchDraft{CountryID: 4}
	s.LastSpec = &SearchSpec{Offset: 10}
	s.Results = []TourResult{{HotelID: 1}}
	s.Selection = &Selection{HotelID: 1}
	s.Favorites.AddTour(TourResult{HotelID: 9})
	seq := s.Seq

	s.Reset()

	if s.Mode != ModeIdle || s.Draft != nil || s.LastSpec != nil || s.Selection != nil || s.Results != nil {
		t.Errorf("search state not cleared: %+v", s)
	}
	if len(s.Favorites.Tours) != 1 {
		t.Error("favorites must survive a reset")
	}
	if s.Seq != seq+1 {
		t.Errorf("seq = %d, want %d", s.Seq, seq+1)
	}
}

func TestConversationState_CloneIsIndependent(t *testing.T) {
	s := NewConversationState("1", time.Now())
	s.Draft = &SearchDraft{CountryID: 4}
	s.LastSpec = &SearchSpec{Offset: 0}
	s.Results = []TourResult{{HotelID: 1}}
	s.Favorites.AddTour(TourResult{HotelID: 5})

	c := s.Clone()
	c.Draft.CountryID = 1
	c.LastSpec.Offset = 5
	c.Results[0].HotelID = 2
	c.Favorites.Tours[0].HotelID = 6

	if s.Draft.CountryID != 4 || s.LastSpec.Offset != 0 || s.Results[0].HotelID != 1 || s.Favorites.Tours[0].HotelID != 5 {
		t.Error("clone shares memory with the original")
	}
}

func TestConversationState_FindResult(t *testing.T) {
	s := NewConversationState("1", time.Now())
	s.LastRequestID = "r1"
	s.Results = []TourResult{{HotelID: 10, Price: 5}, {HotelID: 11, Price: 6}}

	if r, ok := s.FindResult("r1", 11); !ok || r.Price != 6 {
		t.Errorf("FindResult = %+v, %v", r, ok)
	}
	if _, ok := s.FindResult("r0", 11); ok {
		t.Error("results of another request must not match")
	}
}

func TestCommandIsReset(t *testing.T) {
	if !CommandNewSearch.IsReset() || !CommandCancel.IsReset() {
		t.Error("new search and cancel are resets")
	}
	if CommandShowMore.IsReset() {
		t.Error("show more is not a reset")
	}
}
