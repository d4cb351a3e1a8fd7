package models

import "time"

// Lead is the append-only booking request handed to lead sinks.
type Lead struct {
	ID        string     `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	ChatID    string     `json:"chat_id"`
	UserID    string     `json:"user_id,omitempty"`
	Username  string     `json:"username,omitempty"`
	Name      string     `json:"name,omitempty"`
	Phone     string     `json:"phone"`
	RequestID string     `json:"request_id"`
	HotelID   int        `json:"hotel_id"`
	HotelName string     `json:"hotel_name,omitempty"`
	Price     int        `json:"price"`
	Currency  string     `json:"currency,omitempty"`
	Spec      SearchSpec `json:"spec"`
}
