package chat

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tOgg1/tribe/internal/logging"
)

// ReactionsKind tags which wire shape a message's reactions arrived in.
type ReactionsKind int

const (
	ReactionsNone ReactionsKind = iota
	// ReactionsByCount is the legacy symbol -> count mapping.
	ReactionsByCount
	// ReactionsByRecord is a list of per-participant reaction records.
	ReactionsByRecord
)

// ReactionRecord is one reaction in the record shape.
type ReactionRecord struct {
	UUID            string `json:"uuid,omitempty"`
	Value           string `json:"value"`
	Count           int    `json:"count,omitempty"`
	ParticipantUUID string `json:"participantUuid,omitempty"`
}

// Reactions is the tagged union of both reaction shapes. Exactly one of
// Counts or Records is meaningful, selected by Kind.
type Reactions struct {
	Kind    ReactionsKind
	Counts  map[string]int
	Records []ReactionRecord
}

// ByCount builds count-shaped reactions.
func ByCount(counts map[string]int) Reactions {
	if len(counts) == 0 {
		return Reactions{}
	}
	return Reactions{Kind: ReactionsByCount, Counts: counts}
}

// ByRecord builds record-shaped reactions.
func ByRecord(records ...ReactionRecord) Reactions {
	if len(records) == 0 {
		return Reactions{}
	}
	return Reactions{Kind: ReactionsByRecord, Records: records}
}

// Empty reports whether there is nothing to render.
func (r Reactions) Empty() bool {
	switch r.Kind {
	case ReactionsByCount:
		return len(r.Counts) == 0
	case ReactionsByRecord:
		return len(r.Records) == 0
	default:
		return true
	}
}

func (r Reactions) clone() Reactions {
	out := Reactions{Kind: r.Kind}
	if r.Counts != nil {
		out.Counts = make(map[string]int, len(r.Counts))
		for k, v := range r.Counts {
			out.Counts[k] = v
		}
	}
	if r.Records != nil {
		out.Records = append([]ReactionRecord(nil), r.Records...)
	}
	return out
}

// MarshalJSON writes the shape the reactions arrived in.
func (r Reactions) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case ReactionsByCount:
		return json.Marshal(r.Counts)
	case ReactionsByRecord:
		return json.Marshal(r.Records)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts either an object of counts or an array of records.
// It never fails. Counts are read leniently and any other shape decodes to
// no reactions.
func (r *Reactions) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	*r = Reactions{}
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	switch trimmed[0] {
	case '{':
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			reactionsLogger().Warn().Err(err).Msg("unreadable reaction counts; dropping")
			return nil
		}
		counts := make(map[string]int, len(raw))
		for symbol, value := range raw {
			count, ok := lenientCount(value)
			if !ok || count <= 0 {
				count = 1
			}
			counts[symbol] = count
		}
		*r = ByCount(counts)
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			reactionsLogger().Warn().Err(err).Msg("unreadable reaction records; dropping")
			return nil
		}
		records := make([]ReactionRecord, 0, len(raw))
		for _, item := range raw {
			rec, ok := decodeRecord(item)
			if !ok {
				reactionsLogger().Warn().Str("record", string(item)).Msg("skipping unreadable reaction record")
				continue
			}
			records = append(records, rec)
		}
		*r = ByRecord(records...)
	default:
		reactionsLogger().Warn().Str("reactions", string(trimmed)).Msg("unexpected reactions shape; dropping")
	}
	return nil
}

type wireRecord struct {
	UUID            string          `json:"uuid"`
	Value           string          `json:"value"`
	Count           json.RawMessage `json:"count"`
	ParticipantUUID string          `json:"participantUuid"`
}

func decodeRecord(data []byte) (ReactionRecord, bool) {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil || w.Value == "" {
		return ReactionRecord{}, false
	}
	rec := ReactionRecord{UUID: w.UUID, Value: w.Value, ParticipantUUID: w.ParticipantUUID}
	if count, ok := lenientCount(w.Count); ok && count > 0 {
		rec.Count = count
	}
	return rec, true
}

// lenientCount reads a JSON number (or a numeric string), rounded to the
// nearest integer.
func lenientCount(data json.RawMessage) (int, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return 0, false
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return 0, false
		}
		trimmed = []byte(strings.TrimSpace(s))
	}
	f, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(math.Round(f)), true
}

func reactionsLogger() *zerolog.Logger {
	l := logging.Component("reactions")
	return &l
}

// ParticipantRef is the slice of a participant a reaction row needs.
type ParticipantRef struct {
	UUID      string
	Name      string
	AvatarURL string
}

// ResolvedReaction is a display-ready reaction.
type ResolvedReaction struct {
	Symbol      string
	Count       int
	Participant *ParticipantRef
}

// ResolveReactions normalizes a message's reactions into one display list.
// Count-shaped reactions are ordered by count (desc) then symbol; record-shaped
// reactions keep their order and gain participant attribution when the
// contributor is in dir. Records without a count count once.
func ResolveReactions(msg Message, dir Lookup) []ResolvedReaction {
	r := msg.Reactions
	switch r.Kind {
	case ReactionsByCount:
		out := make([]ResolvedReaction, 0, len(r.Counts))
		for symbol, count := range r.Counts {
			out = append(out, ResolvedReaction{Symbol: symbol, Count: count})
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Count != out[j].Count {
				return out[i].Count > out[j].Count
			}
			return out[i].Symbol < out[j].Symbol
		})
		return out
	case ReactionsByRecord:
		out := make([]ResolvedReaction, 0, len(r.Records))
		for _, rec := range r.Records {
			count := rec.Count
			if count <= 0 {
				count = 1
			}
			resolved := ResolvedReaction{Symbol: rec.Value, Count: count}
			if id := strings.TrimSpace(rec.ParticipantUUID); id != "" && dir != nil {
				if p, ok := dir.Lookup(id); ok {
					resolved.Participant = &ParticipantRef{UUID: p.UUID, Name: p.DisplayName(), AvatarURL: p.AvatarURL}
				}
			}
			out = append(out, resolved)
		}
		return out
	default:
		return nil
	}
}

// Summarize folds resolved reactions into per-symbol totals in first-seen
// order, which is what a compact reaction row shows.
func Summarize(resolved []ResolvedReaction) []ResolvedReaction {
	index := make(map[string]int, len(resolved))
	out := make([]ResolvedReaction, 0, len(resolved))
	for _, r := range resolved {
		if i, ok := index[r.Symbol]; ok {
			out[i].Count += r.Count
			continue
		}
		index[r.Symbol] = len(out)
		out = append(out, ResolvedReaction{Symbol: r.Symbol, Count: r.Count})
	}
	return out
}
