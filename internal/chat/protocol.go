package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// Inbound event kinds.
const (
	TypeJoin    = "join"
	TypeMessage = "message"
	TypeTyping  = "typing"
)

// Outbound notice kinds. TypeMessage and TypeTyping are shared with inbound.
const (
	TypeWelcome    = "welcome"
	TypeError      = "error"
	TypeUserJoined = "user_joined"
	TypeUserLeft   = "user_left"
)

// MaxMessageLength is the longest chat message, in characters, that is relayed.
const MaxMessageLength = 500

// TimestampLayout is the ISO-8601 layout used for every server-side timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Event is one decoded inbound frame.
type Event struct {
	Type     string
	Username string
	Message  string
}

// DecodeEvent parses a raw text frame. Frames that are not valid UTF-8 or not
// a JSON object yield ErrMalformedFrame; objects whose known fields are not strings yield
// ErrMalformedPayload. A missing or unknown type is not an error here; the
// caller decides what to do with it.
func DecodeEvent(raw []byte) (Event, error) {
	// invalid sequences would all encode to U+FFFD and alias distinct names
	if !utf8.Valid(raw) {
		return Event{}, fmt.Errorf("%w: invalid UTF-8", ErrMalformedFrame)
	}
	if !gjson.ValidBytes(raw) {
		return Event{}, fmt.Errorf("%w: invalid JSON", ErrMalformedFrame)
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return Event{}, fmt.Errorf("%w: envelope is not an object", ErrMalformedFrame)
	}

	typ := root.Get("type")
	if typ.Type != gjson.String {
		return Event{Type: typ.Raw}, nil
	}

	ev := Event{Type: typ.String()}
	var err error
	switch ev.Type {
	case TypeJoin:
		ev.Username, err = optionalString(root, "username")
	case TypeMessage:
		ev.Message, err = optionalString(root, "message")
	}
	return ev, err
}

func optionalString(root gjson.Result, field string) (string, error) {
	v := root.Get(field)
	if !v.Exists() {
		return "", nil
	}
	if v.Type != gjson.String {
		return "", fmt.Errorf("%w: field %q must be a string, got %s", ErrMalformedPayload, field, v.Type)
	}
	return v.String(), nil
}

// Notice is one outbound frame. Empty fields are left out of the encoding so
// each kind carries only the fields it defines.
type Notice struct {
	Type      string `json:"type"`
	Username  string `json:"username,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Encode serializes the notice without escaping HTML or non-ASCII text.
func (n Notice) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(n); err != nil {
		return nil, fmt.Errorf("encode %s notice: %w", n.Type, err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func stamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// WelcomeNotice confirms a successful join to the joiner.
func WelcomeNotice(username string, at time.Time) Notice {
	return Notice{Type: TypeWelcome, Username: username, Timestamp: stamp(at)}
}

// ErrorNotice reports a rejected request to its sender.
func ErrorNotice(message string) Notice {
	return Notice{Type: TypeError, Message: message}
}

// MessageNotice carries one chat line.
func MessageNotice(username, text string, at time.Time) Notice {
	return Notice{Type: TypeMessage, Username: username, Message: text, Timestamp: stamp(at)}
}

// UserJoinedNotice announces a new participant.
func UserJoinedNotice(username string, at time.Time) Notice {
	return Notice{Type: TypeUserJoined, Username: username, Timestamp: stamp(at)}
}

// UserLeftNotice announces a departed participant.
func UserLeftNotice(username string, at time.Time) Notice {
	return Notice{Type: TypeUserLeft, Username: username, Timestamp: stamp(at)}
}

// TypingNotice tells peers that username is typing.
func TypingNotice(username string) Notice {
	return Notice{Type: TypeTyping, Username: username}
}
