package chat

import (
	"strings"

	"github.com/samber/lo"
)

// Participant is a member of the chat roster.
type Participant struct {
	UUID      string `json:"uuid"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	JobTitle  string `json:"jobTitle,omitempty"`
	Bio       string `json:"bio,omitempty"`
	Email     string `json:"email,omitempty"`
}

// DisplayName returns the participant's name, falling back to the UUID.
func (p Participant) DisplayName() string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return p.UUID
}

// Lookup resolves participants by identifier.
type Lookup interface {
	Lookup(uuid string) (Participant, bool)
}

// Roster is an immutable, map-backed Lookup.
type Roster map[string]Participant

// NewRoster indexes participants by UUID. Later duplicates win.
func NewRoster(participants []Participant) Roster {
	valid := lo.Filter(participants, func(p Participant, _ int) bool {
		return strings.TrimSpace(p.UUID) != ""
	})
	return lo.KeyBy(valid, func(p Participant) string { return p.UUID })
}

func (r Roster) Lookup(uuid string) (Participant, bool) {
	p, ok := r[uuid]
	return p, ok
}

// DisplayName resolves an author id to a name, falling back to the id itself.
func DisplayName(dir Lookup, authorUUID string) string {
	if dir != nil {
		if p, ok := dir.Lookup(authorUUID); ok {
			return p.DisplayName()
		}
	}
	return authorUUID
}
