package search

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shubhsaxena/tour-concierge/internal/models"
)

// Accepted spellings per logical field, tried in order. A dotted name looks
// into a nested object.
var (
	listKeys      = []string{"results", "tours", "items", "offers", "hotels", "data", "result"}
	priceKeys     = []string{"price", "total_price", "totalPrice", "price_rub", "priceRub", "min_price", "minPrice", "amount", "cost", "price.value", "price.amount"}
	currencyKeys  = []string{"currency", "currency_code", "currencyCode", "cur", "price.currency"}
	hotelIDKeys   = []string{"hotel_id", "hotelId", "hotelID", "hotel.id", "hotelcode", "hotel_code", "id_hotel"}
	hotelNameKeys = []string{"hotel_name", "hotelName", "hotel.name", "hotel", "name"}
	starsKeys     = []string{"stars", "hotel_stars", "hotelStars", "hotel.stars", "category", "star"}
	ratingKeys    = []string{"rating", "hotel_rating", "hotelRating", "hotel.rating", "review_score", "score"}
	regionKeys    = []string{"region", "resort", "city", "location", "hotel.region", "hotel.city"}
	dateFromKeys  = []string{"date_from", "dateFrom", "flydate", "fly_date", "departure", "departure_date", "check_in", "checkin", "start_date"}
	dateToKeys    = []string{"date_to", "dateTo", "return_date", "check_out", "checkout", "end_date"}
	nightsKeys    = []string{"nights", "nights_count", "nightsCount", "duration", "night"}
	operatorKeys  = []string{"operator", "operator_name", "operatorName", "tour_operator", "touroperator", "operator.name"}
	mealKeys      = []string{"meal", "meal_code", "mealCode", "board", "food", "meal.code"}
	roomKeys      = []string{"room", "room_type", "roomType", "room.name"}
	imageKeys     = []string{"image_url", "imageUrl", "image", "picture", "photo", "hotel.image", "hotel.picture"}
	tourIDKeys    = []string{"tour_id", "tourId", "offer_id", "offerId", "id"}
)

// Normalize turns a backend payload into results. The payload may be a bare
// list or an object wrapping the list under one of listKeys. Items without a
// positive price or a positive hotel id are dropped.
func Normalize(payload []byte, defaultCurrency string) ([]models.TourResult, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("decoding backend payload: %w", err)
	}

	items, ok := findList(root)
	if !ok {
		return nil, fmt.Errorf("backend payload has no result list")
	}

	out := make([]models.TourResult, 0, len(items))
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		if r, ok := normalizeItem(obj, defaultCurrency); ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func findList(root any) ([]any, bool) {
	switch v := root.(type) {
	case []any:
		return v, true
	case map[string]any:
		for _, k := range listKeys {
			inner, ok := v[k]
			if !ok {
				continue
			}
			if list, ok := findList(inner); ok {
				return list, true
			}
		}
	}
	return nil, false
}

func normalizeItem(obj map[string]any, defaultCurrency string) (models.TourResult, bool) {
	price, ok := lookupNumber(obj, priceKeys)
	if !ok || price <= 0 {
		return models.TourResult{}, false
	}
	hotelID, ok := lookupNumber(obj, hotelIDKeys)
	if !ok || hotelID <= 0 || hotelID != math.Trunc(hotelID) {
		return models.TourResult{}, false
	}

	r := models.TourResult{
		HotelID:   int(hotelID),
		Price:     int(math.Round(price)),
		Currency:  lookupString(obj, currencyKeys),
		HotelName: lookupString(obj, hotelNameKeys),
		Region:    lookupString(obj, regionKeys),
		DateFrom:  normalizeDate(lookupString(obj, dateFromKeys)),
		DateTo:    normalizeDate(lookupString(obj, dateToKeys)),
		Operator:  lookupString(obj, operatorKeys),
		Meal:      lookupString(obj, mealKeys),
		Room:      lookupString(obj, roomKeys),
		ImageURL:  lookupString(obj, imageKeys),
		TourID:    lookupString(obj, tourIDKeys),
	}
	if r.Currency == "" {
		r.Currency = defaultCurrency
	}
	if v, ok := lookupNumber(obj, starsKeys); ok && v >= 0 && v <= 5 {
		r.Stars = int(v)
	}
	if v, ok := lookupNumber(obj, ratingKeys); ok && v >= 0 {
		r.Rating = v
	}
	if v, ok := lookupNumber(obj, nightsKeys); ok && v > 0 {
		r.Nights = int(v)
	}
	return r, true
}

func lookup(obj map[string]any, key string) (any, bool) {
	cur := any(obj)
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

func lookupNumber(obj map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		v, ok := lookup(obj, k)
		if !ok {
			continue
		}
		if f, ok := toFloat(v); ok {
			return f, true
		}
	}
	return 0, false
}

func lookupString(obj map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := lookup(obj, k)
		if !ok {
			continue
		}
		switch s := v.(type) {
		case string:
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		case json.Number:
			return s.String()
		}
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case string:
		s := strings.NewReplacer(" ", "", "\u00a0", "", ",", ".").Replace(strings.TrimSpace(n))
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

var dateLayouts = []string{models.DateLayout, "02.01.2006", "2006-01-02T15:04:05Z07:00", "2006-01-02T15:04:05"}

// normalizeDate rewrites known date spellings to YYYY-MM-DD and leaves
// anything else untouched.
func normalizeDate(s string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(models.DateLayout)
		}
	}
	return s
}
