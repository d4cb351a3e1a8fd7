package api

import (
	"context"
	"sync"

	"github.com/shubhsaxena/tour-concierge/internal/orchestrator"
)

// Effect is one outbound message collected for a chat.
type Effect struct {
	Kind     string                `json:"kind"` // text, image
	Text     string                `json:"text"`
	ImageURL string                `json:"image_url,omitempty"`
	Buttons  []orchestrator.Button `json:"buttons,omitempty"`
}

const (
	EffectText  = "text"
	EffectImage = "image"
)

// maxPendingEffects bounds the undrained messages kept per chat; the oldest
// are dropped first.
const maxPendingEffects = 200

// Outbox is the Messenger of the HTTP channel. Messages are queued per chat
// until a client drains them, either in the response of the request that
// produced them or through the outbox endpoint.
type Outbox struct {
	mu    sync.Mutex
	chats map[string][]Effect
	acks  map[string]string
}

var _ orchestrator.Messenger = (*Outbox)(nil)

func NewOutbox() *Outbox {
	return &Outbox{
		chats: make(map[string][]Effect),
		acks:  make(map[string]string),
	}
}

func (o *Outbox) SendText(_ context.Context, chatID, text string, buttons []orchestrator.Button) error {
	o.push(chatID, Effect{Kind: EffectText, Text: text, Buttons: buttons})
	return nil
}

func (o *Outbox) SendImage(_ context.Context, chatID, imageURL, caption string, buttons []orchestrator.Button) error {
	o.push(chatID, Effect{Kind: EffectImage, Text: caption, ImageURL: imageURL, Buttons: buttons})
	return nil
}

func (o *Outbox) AckButton(_ context.Context, callbackID, text string) error {
	o.mu.Lock()
	o.acks[callbackID] = text
	o.mu.Unlock()
	return nil
}

func (o *Outbox) push(chatID string, e Effect) {
	o.mu.Lock()
	defer o.mu.Unlock()
	q := append(o.chats[chatID], e)
	if len(q) > maxPendingEffects {
		q = q[len(q)-maxPendingEffects:]
	}
	o.chats[chatID] = q
}

// Drain returns and forgets the queued messages of chatID.
func (o *Outbox) Drain(chatID string) []Effect {
	o.mu.Lock()
	defer o.mu.Unlock()
	q := o.chats[chatID]
	delete(o.chats, chatID)
	if q == nil {
		return []Effect{}
	}
	return q
}

// TakeAck returns and forgets the acknowledgement of a button press.
func (o *Outbox) TakeAck(callbackID string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	text, ok := o.acks[callbackID]
	delete(o.acks, callbackID)
	return text, ok
}
