// Package chat holds the client's view of a remote chat: messages,
// participants, reactions, and the stores that reconcile them.
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Message errors.
var (
	ErrEmptyMessage   = errors.New("message text is empty")
	ErrInvalidMessage = errors.New("invalid message")
)

var validate = validator.New()

// Attachment kinds the remote API is known to send.
const (
	AttachmentImage = "image"
	AttachmentFile  = "file"
)

// Attachment is a file or image attached to a message.
type Attachment struct {
	UUID     string `json:"uuid"`
	Type     string `json:"type"`
	ImageURL string `json:"imageUrl,omitempty"`
	URL      string `json:"url,omitempty"`
}

// IsImage reports whether the attachment renders as an image.
func (a Attachment) IsImage() bool {
	return a.Type == AttachmentImage || a.ImageURL != ""
}

// Ref returns the best reference for opening the attachment.
func (a Attachment) Ref() string {
	if a.ImageURL != "" {
		return a.ImageURL
	}
	return a.URL
}

// Message is one chat message as held by the client.
type Message struct {
	UUID           string `validate:"required"`
	Text           string
	AuthorUUID     string `validate:"required"`
	SentAt         time.Time
	UpdatedAt      time.Time // zero when the server never reported an edit
	ImageURL       string
	ReplyToMessage string
	Reactions      Reactions
	Attachments    []Attachment
}

// Validate checks the fields every stored message must carry.
func (m Message) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if m.SentAt.IsZero() {
		return fmt.Errorf("%w: missing sentAt", ErrInvalidMessage)
	}
	return nil
}

// LastUpdate returns UpdatedAt, or SentAt for an unedited message.
func (m Message) LastUpdate() time.Time {
	if m.UpdatedAt.IsZero() {
		return m.SentAt
	}
	return m.UpdatedAt
}

// Edited reports whether the message was changed after it was sent.
func (m Message) Edited() bool {
	return !m.UpdatedAt.IsZero() && !m.UpdatedAt.Equal(m.SentAt)
}

// Images returns every image reference of the message in display order:
// image attachments first, then the legacy single image field.
func (m Message) Images() []string {
	var out []string
	for _, att := range m.Attachments {
		if !att.IsImage() {
			continue
		}
		if ref := att.Ref(); ref != "" {
			out = append(out, ref)
		}
	}
	if m.ImageURL != "" {
		out = append(out, m.ImageURL)
	}
	return out
}

func (m Message) clone() Message {
	out := m
	if len(m.Attachments) > 0 {
		out.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	out.Reactions = m.Reactions.clone()
	return out
}

type wireMessage struct {
	UUID           string       `json:"uuid"`
	Text           string       `json:"text"`
	AuthorUUID     string       `json:"authorUuid"`
	SentAt         int64        `json:"sentAt"`
	UpdatedAt      *int64       `json:"updatedAt,omitempty"`
	ImageURL       string       `json:"imageUrl,omitempty"`
	ReplyToMessage string       `json:"replyToMessage,omitempty"`
	Reactions      *Reactions   `json:"reactions,omitempty"`
	Attachments    []Attachment `json:"attachments,omitempty"`
}

// MarshalJSON encodes the message in the remote API's wire format
// (epoch-millisecond timestamps).
func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{
		UUID:           m.UUID,
		Text:           m.Text,
		AuthorUUID:     m.AuthorUUID,
		SentAt:         toMillis(m.SentAt),
		ImageURL:       m.ImageURL,
		ReplyToMessage: m.ReplyToMessage,
		Attachments:    m.Attachments,
	}
	if !m.UpdatedAt.IsZero() {
		ms := toMillis(m.UpdatedAt)
		w.UpdatedAt = &ms
	}
	if !m.Reactions.Empty() {
		r := m.Reactions
		w.Reactions = &r
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the remote API's wire format.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = Message{
		UUID:           strings.TrimSpace(w.UUID),
		Text:           w.Text,
		AuthorUUID:     strings.TrimSpace(w.AuthorUUID),
		SentAt:         fromMillis(w.SentAt),
		ImageURL:       w.ImageURL,
		ReplyToMessage: strings.TrimSpace(w.ReplyToMessage),
		Attachments:    w.Attachments,
	}
	if w.UpdatedAt != nil {
		m.UpdatedAt = fromMillis(*w.UpdatedAt)
	}
	if w.Reactions != nil {
		m.Reactions = *w.Reactions
	}
	return nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// Less reports whether a sorts before b in canonical order: newest first,
// ties broken by descending UUID.
func Less(a, b Message) bool {
	if !a.SentAt.Equal(b.SentAt) {
		return a.SentAt.After(b.SentAt)
	}
	return a.UUID > b.UUID
}

// SortCanonical sorts messages into canonical order in place.
func SortCanonical(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return Less(messages[i], messages[j])
	})
}

// IsCanonical reports whether messages are strictly in canonical order with
// unique identifiers.
func IsCanonical(messages []Message) bool {
	seen := make(map[string]struct{}, len(messages))
	for i := range messages {
		if _, ok := seen[messages[i].UUID]; ok {
			return false
		}
		seen[messages[i].UUID] = struct{}{}
		if i > 0 && !Less(messages[i-1], messages[i]) {
			return false
		}
	}
	return true
}
