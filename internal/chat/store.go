package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tOgg1/tribe/internal/kv"
	"github.com/tOgg1/tribe/internal/logging"
)

const (
	// PageSize is the number of messages a full page carries.
	PageSize = 25

	// SnapshotVersion is the persisted schema version.
	SnapshotVersion = 1

	messagesKeyName = "messages"
)

// Snapshot is the persisted state of a Store.
type Snapshot struct {
	Version      int       `json:"version"`
	Messages     []Message `json:"messages"`
	HasMore      bool      `json:"hasMore"`
	LastFullSync time.Time `json:"lastFullSync"`
	LastPoll     time.Time `json:"lastPoll"`
}

// Store is the single source of truth for the client's timeline. It keeps
// messages deduplicated by UUID and in canonical order after every mutation,
// and writes a snapshot to storage after each one.
type Store struct {
	storage kv.Storage
	key     string
	logger  zerolog.Logger

	mu            sync.RWMutex
	messages      []Message
	hasMore       bool
	lastFullSync  time.Time
	lastPoll      time.Time
	generation    uint64
	revision      uint64
	needsFullSync bool
	listeners     map[int]func([]Message)
	nextListener  int

	persistMu    sync.Mutex
	persistedRev uint64
}

// NewStore creates an empty store persisting under namespace. A nil storage
// keeps the store in memory only.
func NewStore(storage kv.Storage, namespace string) *Store {
	return &Store{
		storage:       storage,
		key:           kv.Key(namespace, messagesKeyName),
		logger:        logging.Component("store"),
		hasMore:       true,
		needsFullSync: true,
		listeners:     make(map[int]func([]Message)),
	}
}

// Load rehydrates the store from storage. Missing or malformed data never
// fails: the store starts empty and NeedsFullSync reports true.
func (s *Store) Load(ctx context.Context) {
	snap, ok := s.loadSnapshot(ctx)

	s.mu.Lock()
	if ok {
		s.messages = normalizeMessages(snap.Messages, s.logger)
		s.hasMore = snap.HasMore
		s.lastFullSync = snap.LastFullSync
		s.lastPoll = snap.LastPoll
	} else {
		s.messages = nil
		s.hasMore = true
		s.lastFullSync = time.Time{}
		s.lastPoll = time.Time{}
	}
	s.needsFullSync = !ok || len(s.messages) == 0
	s.revision++
	rev := s.revision
	out := cloneMessages(s.messages)
	s.mu.Unlock()

	s.persistMu.Lock()
	if rev > s.persistedRev {
		s.persistedRev = rev
	}
	s.persistMu.Unlock()

	s.logger.Debug().Int("messages", len(out)).Bool("rehydrated", ok).Msg("store loaded")
	s.notify(out)
}

func (s *Store) loadSnapshot(ctx context.Context) (Snapshot, bool) {
	if s.storage == nil {
		return Snapshot{}, false
	}
	payload, err := s.storage.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.logger.Warn().Err(err).Str("key", s.key).Msg("failed to read persisted messages; starting empty")
		}
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("persisted messages are malformed; starting empty")
		return Snapshot{}, false
	}
	if snap.Version <= 0 || snap.Version > SnapshotVersion {
		s.logger.Warn().Int("version", snap.Version).Msg("unsupported message snapshot version; starting empty")
		return Snapshot{}, false
	}
	return snap, true
}

// ReplaceAll overwrites the collection with msgs (deduplicated, later input
// entries winning) in canonical order.
func (s *Store) ReplaceAll(ctx context.Context, msgs []Message) {
	s.mutate(ctx, func() bool {
		s.messages = normalizeMessages(msgs, s.logger)
		s.generation++
		s.needsFullSync = false
		return true
	})
}

// Prepend records a freshly sent message. An existing entry with the same
// UUID is overwritten in place of being duplicated.
func (s *Store) Prepend(ctx context.Context, msg Message) {
	s.Merge(ctx, []Message{msg})
}

// Merge upserts msgs: new UUIDs are inserted, known UUIDs take the incoming
// fields. It returns how many messages were new. This is the reconciliation
// path shared by sends and polls.
func (s *Store) Merge(ctx context.Context, msgs []Message) int {
	added, _ := s.merge(ctx, 0, false, msgs)
	return added
}

// MergeIfCurrent merges msgs only while the collection is still at
// generation. It reports false, changing nothing, when a ReplaceAll
// happened in between.
func (s *Store) MergeIfCurrent(ctx context.Context, generation uint64, msgs []Message) (int, bool) {
	return s.merge(ctx, generation, true, msgs)
}

func (s *Store) merge(ctx context.Context, generation uint64, checkGen bool, msgs []Message) (int, bool) {
	added := 0
	applied := s.mutate(ctx, func() bool {
		if checkGen && s.generation != generation {
			return false
		}
		byID := indexMessages(s.messages)
		for _, msg := range normalizeMessages(msgs, s.logger) {
			if _, ok := byID[msg.UUID]; !ok {
				added++
			}
			byID[msg.UUID] = msg
		}
		s.messages = sortedValues(byID)
		return true
	})
	return added, applied
}

// AppendOlderPage adds a backward-pagination page. Messages already held are
// kept as they are and page duplicates dropped. A page that is not strictly
// older than the current oldest message is still merged without duplicates.
func (s *Store) AppendOlderPage(ctx context.Context, page []Message) int {
	added, _ := s.appendOlder(ctx, 0, false, page)
	return added
}

// AppendOlderPageIfCurrent is AppendOlderPage guarded by a generation like
// MergeIfCurrent.
func (s *Store) AppendOlderPageIfCurrent(ctx context.Context, generation uint64, page []Message) (int, bool) {
	return s.appendOlder(ctx, generation, true, page)
}

func (s *Store) appendOlder(ctx context.Context, generation uint64, checkGen bool, page []Message) (int, bool) {
	added := 0
	applied := s.mutate(ctx, func() bool {
		if checkGen && s.generation != generation {
			return false
		}
		incoming := normalizeMessages(page, s.logger)
		if len(s.messages) > 0 && len(incoming) > 0 {
			oldest := s.messages[len(s.messages)-1]
			if !Less(oldest, incoming[0]) {
				s.logger.Warn().
					Str("oldest", oldest.UUID).
					Str("page_newest", incoming[0].UUID).
					Msg("older page overlaps the retained timeline")
			}
		}
		byID := indexMessages(s.messages)
		for _, msg := range incoming {
			if _, ok := byID[msg.UUID]; ok {
				continue
			}
			byID[msg.UUID] = msg
			added++
		}
		s.messages = sortedValues(byID)
		return true
	})
	return added, applied
}

// UpdateHasMore records the size of the page just fetched: anything short of
// a full page marks the end of history.
func (s *Store) UpdateHasMore(ctx context.Context, pageLen int) {
	s.SetHasMore(ctx, pageLen >= PageSize)
}

// SetHasMore sets the end-of-history flag directly.
func (s *Store) SetHasMore(ctx context.Context, hasMore bool) {
	s.mutate(ctx, func() bool {
		s.hasMore = hasMore
		return true
	})
}

// RecordFullSync stores the time of the last latest/all fetch.
func (s *Store) RecordFullSync(ctx context.Context, at time.Time) {
	s.mutate(ctx, func() bool {
		s.lastFullSync = at.UTC()
		return true
	})
}

// RecordPoll stores the time of the last successful poll.
func (s *Store) RecordPoll(ctx context.Context, at time.Time) {
	s.mutate(ctx, func() bool {
		s.lastPoll = at.UTC()
		return true
	})
}

// Clear empties the store and removes its persisted snapshot.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.messages = nil
	s.hasMore = true
	s.lastFullSync = time.Time{}
	s.lastPoll = time.Time{}
	s.generation++
	s.revision++
	s.needsFullSync = true
	rev := s.revision
	s.mu.Unlock()

	s.persistMu.Lock()
	s.persistedRev = rev
	var err error
	if s.storage != nil {
		err = s.storage.Remove(ctx, s.key)
	}
	s.persistMu.Unlock()

	s.notify(nil)
	return err
}

// Messages returns a copy of the collection in canonical order.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessages(s.messages)
}

// Len returns the number of held messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Get returns the message with the given UUID.
func (s *Store) Get(uuid string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.messages {
		if s.messages[i].UUID == uuid {
			return s.messages[i].clone(), true
		}
	}
	return Message{}, false
}

// Oldest returns the last message in canonical order.
func (s *Store) Oldest() (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1].clone(), true
}

// OlderCursor is a consistent read of what backward pagination needs.
type OlderCursor struct {
	Generation uint64
	Oldest     Message
	HasMore    bool
}

// OlderCursor reads the generation, oldest message and hasMore together.
// ok is false on an empty timeline.
func (s *Store) OlderCursor() (OlderCursor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return OlderCursor{Generation: s.generation, HasMore: s.hasMore}, false
	}
	return OlderCursor{
		Generation: s.generation,
		Oldest:     s.messages[len(s.messages)-1].clone(),
		HasMore:    s.hasMore,
	}, true
}

// HasMore reports whether older history may still exist.
func (s *Store) HasMore() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasMore
}

// NeedsFullSync reports whether the store has no trustworthy rehydrated data.
func (s *Store) NeedsFullSync() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.needsFullSync
}

// Generation changes every time the collection is replaced wholesale. A poll
// started under one generation must not merge into another.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// LatestUpdate is the newest LastUpdate across held messages, zero when empty.
func (s *Store) LatestUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest time.Time
	for i := range s.messages {
		if ts := s.messages[i].LastUpdate(); ts.After(latest) {
			latest = ts
		}
	}
	return latest
}

// Snapshot returns the state that would be persisted.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// OnChange registers fn to receive the collection after every mutation.
// The returned func unregisters it.
func (s *Store) OnChange(fn func([]Message)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Version:      SnapshotVersion,
		Messages:     cloneMessages(s.messages),
		HasMore:      s.hasMore,
		LastFullSync: s.lastFullSync,
		LastPoll:     s.lastPoll,
	}
}

// mutate applies fn under the write lock, then persists and notifies outside
// it. Snapshots older than one already written are skipped. A fn returning
// false leaves the store untouched.
func (s *Store) mutate(ctx context.Context, fn func() bool) bool {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return false
	}
	s.revision++
	rev := s.revision
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, rev, snap)
	s.notify(snap.Messages)
	return true
}

func (s *Store) persist(ctx context.Context, rev uint64, snap Snapshot) {
	if s.storage == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if rev <= s.persistedRev {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode message snapshot")
		return
	}
	if err := s.storage.Set(ctx, s.key, payload); err != nil {
		s.logger.Warn().Err(err).Str("key", s.key).Msg("failed to persist messages")
		return
	}
	s.persistedRev = rev
}

func (s *Store) notify(messages []Message) {
	s.mu.RLock()
	fns := make([]func([]Message), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(cloneMessages(messages))
	}
}

// normalizeMessages drops invalid entries, deduplicates by UUID (later
// entries win) and sorts canonically.
func normalizeMessages(msgs []Message, logger zerolog.Logger) []Message {
	if len(msgs) == 0 {
		return nil
	}
	byID := make(map[string]Message, len(msgs))
	for _, msg := range msgs {
		if err := msg.Validate(); err != nil {
			logger.Warn().Err(err).Str("message_id", msg.UUID).Msg("dropping invalid message")
			continue
		}
		byID[msg.UUID] = msg.clone()
	}
	return sortedValues(byID)
}

func indexMessages(msgs []Message) map[string]Message {
	out := make(map[string]Message, len(msgs)+PageSize)
	for _, msg := range msgs {
		out[msg.UUID] = msg
	}
	return out
}

func sortedValues(byID map[string]Message) []Message {
	if len(byID) == 0 {
		return nil
	}
	out := make([]Message, 0, len(byID))
	for _, msg := range byID {
		out = append(out, msg)
	}
	SortCanonical(out)
	return out
}

func cloneMessages(msgs []Message) []Message {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]Message, len(msgs))
	for i := range msgs {
		out[i] = msgs[i].clone()
	}
	return out
}
