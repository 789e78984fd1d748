// Package timeline derives the renderable view of a chat: date markers and
// runs of consecutive same-author messages.
package timeline

import (
	"time"

	"github.com/tOgg1/tribe/internal/chat"
)

// EntryKind distinguishes date markers from message runs.
type EntryKind int

const (
	EntryDate EntryKind = iota
	EntryRun
)

func (k EntryKind) String() string {
	switch k {
	case EntryDate:
		return "date"
	case EntryRun:
		return "run"
	default:
		return "unknown"
	}
}

// Entry is one row of the timeline. Date markers use Label and Day; runs use
// AuthorID, Participant and Messages.
type Entry struct {
	Kind EntryKind
	Key  string

	Label string
	Day   time.Time

	AuthorID    string
	Participant *chat.Participant // nil when the author is not in the directory
	Messages    []chat.Message    // newest first
}

// DisplayName returns the run's author name, or the author id when the
// participant is unknown.
func (e Entry) DisplayName() string {
	if e.Participant != nil {
		return e.Participant.DisplayName()
	}
	return e.AuthorID
}

// Newest returns the most recent message of a run.
func (e Entry) Newest() (chat.Message, bool) {
	if len(e.Messages) == 0 {
		return chat.Message{}, false
	}
	return e.Messages[0], true
}

// Options controls day boundaries and relative labels.
type Options struct {
	Now      time.Time
	Location *time.Location
}

func (o Options) normalized() Options {
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	o.Now = o.Now.In(o.Location)
	return o
}

// Build groups msgs, given in canonical newest-first order, into a
// newest-first list of entries. A date marker follows (in display order) the
// messages of its day, and a new day always starts a new run.
func Build(msgs []chat.Message, dir chat.Lookup, opts Options) []Entry {
	if len(msgs) == 0 {
		return nil
	}
	opts = opts.normalized()

	entries := make([]Entry, 0, len(msgs)/2+2)
	var (
		lastDay    time.Time
		lastAuthor string
		open       = -1
	)
	for i := len(msgs) - 1; i >= 0; i-- {
		msg := msgs[i]
		day := Midnight(msg.SentAt, opts.Location)
		if len(entries) == 0 || !day.Equal(lastDay) {
			entries = append(entries, Entry{
				Kind:  EntryDate,
				Key:   DayKey(day),
				Label: DayLabel(day, opts.Now),
				Day:   day,
			})
			lastDay = day
			lastAuthor = ""
			open = -1
		}
		if open >= 0 && msg.AuthorUUID == lastAuthor {
			entries[open].Messages = append(entries[open].Messages, msg)
			continue
		}
		run := Entry{
			Kind:     EntryRun,
			Key:      msg.UUID,
			AuthorID: msg.AuthorUUID,
			Messages: []chat.Message{msg},
		}
		if dir != nil {
			if p, ok := dir.Lookup(msg.AuthorUUID); ok {
				run.Participant = &p
			}
		}
		entries = append(entries, run)
		open = len(entries) - 1
		lastAuthor = msg.AuthorUUID
	}

	reverse(entries)
	for i := range entries {
		reverse(entries[i].Messages)
	}
	return entries
}

// Runs returns only the run entries of a timeline.
func Runs(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Kind == EntryRun {
			out = append(out, e)
		}
	}
	return out
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
