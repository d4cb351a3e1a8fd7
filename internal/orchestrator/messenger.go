package orchestrator

import (
	"context"
	"strconv"
	"strings"
)

// Button is an inline action attached to an outbound message. Token comes
// back verbatim in Inbound.Token when the button is pressed.
type Button struct {
	Text  string `json:"text"`
	Token string `json:"token"`
}

// Messenger is the outbound side of the chat channel.
type Messenger interface {
	SendText(ctx context.Context, chatID, text string, buttons []Button) error
	SendImage(ctx context.Context, chatID, imageURL, caption string, buttons []Button) error
	AckButton(ctx context.Context, callbackID, text string) error
}

// Inbound is one user event. Token and CallbackID are set for button presses
// only.
type Inbound struct {
	ChatID     string `json:"chat_id"`
	UserID     string `json:"user_id,omitempty"`
	Username   string `json:"username,omitempty"`
	Name       string `json:"name,omitempty"`
	Text       string `json:"text,omitempty"`
	CallbackID string `json:"callback_id,omitempty"`
	Token      string `json:"token,omitempty"`
}

func (in Inbound) actor() string {
	if in.UserID != "" {
		return in.UserID
	}
	return in.ChatID
}

// Button tokens.
const (
	TokenSelect         = "sel"
	TokenFavorite       = "fav"
	TokenMore           = "more"
	TokenEdit           = "edit"
	TokenNew            = "new"
	TokenRetry          = "retry"
	TokenSaveCollection = "savecol"
	TokenDelCollection  = "delcol"
	TokenFavorites      = "favs"
	TokenFavClear       = "favclear"
	TokenBudget         = "budget"
)

// ResultToken addresses one result of one result set: "sel:<req>:<hotel>".
func ResultToken(kind, requestID string, hotelID int) string {
	return kind + ":" + requestID + ":" + strconv.Itoa(hotelID)
}

func parseResultRef(arg string) (string, int, bool) {
	i := strings.LastIndexByte(arg, ':')
	if i <= 0 {
		return "", 0, false
	}
	hotelID, err := strconv.Atoi(arg[i+1:])
	if err != nil || hotelID <= 0 {
		return "", 0, false
	}
	return arg[:i], hotelID, true
}

// reply is one buffered outbound message. Messages are buffered while the
// conversation lock is held and delivered after it is released.
type reply struct {
	text    string
	image   string
	buttons []Button
}

type outbox []reply

func (o *outbox) say(text string, buttons ...Button) {
	if text == "" {
		return
	}
	*o = append(*o, reply{text: text, buttons: buttons})
}

func (o *outbox) card(imageURL, caption string, buttons ...Button) {
	*o = append(*o, reply{text: caption, image: imageURL, buttons: buttons})
}
