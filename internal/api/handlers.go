package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shubhsaxena/tour-concierge/internal/models"
	"github.com/shubhsaxena/tour-concierge/internal/orchestrator"
)

const maxRequestBodySize = 1 << 20 // 1 MB

const (
	maxMessageLen     = 4096
	maxInventoryBatch = 1000
	defaultStatsDays  = 7
	maxStatsDays      = 90
	defaultStatsLimit = 10
	maxStatsLimit     = 50
)

// Conversation is the chat engine behind the webhook.
type Conversation interface {
	HandleText(ctx context.Context, in orchestrator.Inbound) error
	HandleButton(ctx context.Context, in orchestrator.Inbound) error
	Favorites(ctx context.Context, chatID string) (models.Favorites, error)
}

type DestinationStats interface {
	TopDestinations(ctx context.Context, since time.Time, limit int) ([]models.DestinationStat, error)
}

type InventoryPublisher interface {
	PublishInventory(ctx context.Context, events []*models.InventoryEvent) error
}

type Handler struct {
	conv      Conversation
	outbox    *Outbox
	stats     DestinationStats
	inventory InventoryPublisher
	now       func() time.Time
	logger    *zap.Logger
}

type HandlerOption func(*Handler)

func WithStats(s DestinationStats) HandlerOption {
	return func(h *Handler) { h.stats = s }
}

func WithInventory(p InventoryPublisher) HandlerOption {
	return func(h *Handler) { h.inventory = p }
}

func NewHandler(conv Conversation, outbox *Outbox, logger *zap.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		conv:   conv,
		outbox: outbox,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type eventResponse struct {
	ChatID  string   `json:"chat_id"`
	Effects []Effect `json:"effects"`
	Ack     *string  `json:"ack,omitempty"`
}

// Message accepts one free-text chat message and answers with every message
// the bot produced for it, search results included.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeInbound(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(in.Text) == "" {
		h.writeError(w, http.StatusBadRequest, "missing_text", "Field 'text' is required")
		return
	}
	if len(in.Text) > maxMessageLen {
		h.writeError(w, http.StatusBadRequest, "text_too_long", "Message text is too long")
		return
	}
	in.CallbackID, in.Token = "", ""

	if err := h.conv.HandleText(r.Context(), in); err != nil {
		h.writeConversationError(w, r, in, err)
		return
	}
	h.writeJSON(w, http.StatusOK, eventResponse{ChatID: in.ChatID, Effects: h.outbox.Drain(in.ChatID)})
}

// Button accepts one button press identified by its token.
func (h *Handler) Button(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeInbound(w, r)
	if !ok {
		return
	}
	if in.Token == "" {
		h.writeError(w, http.StatusBadRequest, "missing_token", "Field 'token' is required")
		return
	}
	if in.CallbackID == "" {
		in.CallbackID = RequestIDFromContext(r.Context())
	}

	if err := h.conv.HandleButton(r.Context(), in); err != nil {
		h.writeConversationError(w, r, in, err)
		return
	}
	resp := eventResponse{ChatID: in.ChatID, Effects: h.outbox.Drain(in.ChatID)}
	if ack, ok := h.outbox.TakeAck(in.CallbackID); ok {
		resp.Ack = &ack
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Outbox drains messages that were produced after the originating request
// had already been answered.
func (h *Handler) Outbox(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	annotateChat(r.Context(), chatID)
	h.writeJSON(w, http.StatusOK, eventResponse{ChatID: chatID, Effects: h.outbox.Drain(chatID)})
}

func (h *Handler) Favorites(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	annotateChat(r.Context(), chatID)
	fav, err := h.conv.Favorites(r.Context(), chatID)
	if err != nil {
		h.logger.Error("loading favorites failed", zap.String("chat_id", chatID), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "favorites_error", "Favorites temporarily unavailable")
		return
	}
	if fav.Tours == nil {
		fav.Tours = []models.TourResult{}
	}
	if fav.Collections == nil {
		fav.Collections = []models.Collection{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"chat_id":   chatID,
		"favorites": fav,
	})
}

// Destinations reports the most searched destinations over the last days.
func (h *Handler) Destinations(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		h.writeError(w, http.StatusServiceUnavailable, "stats_unavailable", "Search analytics are not configured")
		return
	}
	days := boundedInt(r.URL.Query().Get("days"), defaultStatsDays, maxStatsDays)
	limit := boundedInt(r.URL.Query().Get("limit"), defaultStatsLimit, maxStatsLimit)

	since := h.now().Add(-time.Duration(days) * 24 * time.Hour)
	stats, err := h.stats.TopDestinations(r.Context(), since, limit)
	if err != nil {
		h.logger.Error("destination stats failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "stats_error", "Search analytics temporarily unavailable")
		return
	}
	if stats == nil {
		stats = []models.DestinationStat{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"days":         days,
		"destinations": stats,
	})
}

// Inventory accepts a batch of catalog change events.
func (h *Handler) Inventory(w http.ResponseWriter, r *http.Request) {
	if h.inventory == nil {
		h.writeError(w, http.StatusServiceUnavailable, "inventory_unavailable", "Catalog indexing is not configured")
		return
	}
	var events []*models.InventoryEvent
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize)).Decode(&events); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(events) == 0 || len(events) > maxInventoryBatch {
		h.writeError(w, http.StatusBadRequest, "invalid_batch", "Batch must hold between 1 and 1000 events")
		return
	}
	for i, e := range events {
		if e == nil || e.TourID == "" || (e.CountryID <= 0 && (e.Tour == nil || e.Tour.CountryID <= 0)) {
			h.writeError(w, http.StatusBadRequest, "invalid_event",
				"Event "+strconv.Itoa(i)+" needs tour_id and country_id")
			return
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = h.now()
		}
	}

	if err := h.inventory.PublishInventory(r.Context(), events); err != nil {
		h.logger.Error("publishing inventory failed", zap.Int("count", len(events)), zap.Error(err))
		h.writeError(w, http.StatusBadGateway, "inventory_error", "Inventory events could not be accepted")
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]int{"accepted": len(events)})
}

func (h *Handler) decodeInbound(w http.ResponseWriter, r *http.Request) (orchestrator.Inbound, bool) {
	var in orchestrator.Inbound
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize)).Decode(&in); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return in, false
	}
	if in.ChatID == "" {
		h.writeError(w, http.StatusBadRequest, "missing_chat", "Field 'chat_id' is required")
		return in, false
	}
	annotateChat(r.Context(), in.ChatID)
	return in, true
}

func (h *Handler) writeConversationError(w http.ResponseWriter, r *http.Request, in orchestrator.Inbound, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrRateLimited):
		h.writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many messages, slow down")
	case errors.Is(err, orchestrator.ErrNoChat):
		h.writeError(w, http.StatusBadRequest, "missing_chat", "Field 'chat_id' is required")
	default:
		h.logger.Error("conversation handling failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("chat_id", in.ChatID),
			zap.Error(err),
		)
		h.writeError(w, http.StatusInternalServerError, "conversation_error", "Message could not be processed")
	}
}

func boundedInt(raw string, def, max int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("writing json response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}
