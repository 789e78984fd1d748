package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tOgg1/tribe/internal/kv"
	"github.com/tOgg1/tribe/internal/logging"
)

const participantsKeyName = "participants"

type directorySnapshot struct {
	Version      int           `json:"version"`
	Participants []Participant `json:"participants"`
}

// Directory is the persisted participant roster.
type Directory struct {
	storage kv.Storage
	key     string
	logger  zerolog.Logger

	mu        sync.RWMutex
	roster    Roster
	listeners []func()
}

func NewDirectory(storage kv.Storage, namespace string) *Directory {
	return &Directory{
		storage: storage,
		key:     kv.Key(namespace, participantsKeyName),
		logger:  logging.Component("directory"),
		roster:  Roster{},
	}
}

// Load rehydrates the roster. Missing or malformed data leaves it empty.
func (d *Directory) Load(ctx context.Context) {
	participants := d.loadParticipants(ctx)
	d.mu.Lock()
	d.roster = NewRoster(participants)
	d.mu.Unlock()
	d.notify()
}

func (d *Directory) loadParticipants(ctx context.Context) []Participant {
	if d.storage == nil {
		return nil
	}
	payload, err := d.storage.Get(ctx, d.key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			d.logger.Warn().Err(err).Msg("failed to read persisted participants; starting empty")
		}
		return nil
	}
	var snap directorySnapshot
	if err := json.Unmarshal(payload, &snap); err != nil || snap.Version != SnapshotVersion {
		d.logger.Warn().Err(err).Int("version", snap.Version).Msg("persisted participants are unusable; starting empty")
		return nil
	}
	return snap.Participants
}

// Replace swaps in a freshly fetched roster and persists it.
func (d *Directory) Replace(ctx context.Context, participants []Participant) {
	roster := NewRoster(participants)
	d.mu.Lock()
	d.roster = roster
	d.mu.Unlock()

	d.persist(ctx, roster)
	d.notify()
}

func (d *Directory) persist(ctx context.Context, roster Roster) {
	if d.storage == nil {
		return
	}
	payload, err := json.Marshal(directorySnapshot{Version: SnapshotVersion, Participants: sortParticipants(roster)})
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to encode participants")
		return
	}
	if err := d.storage.Set(ctx, d.key, payload); err != nil {
		d.logger.Warn().Err(err).Msg("failed to persist participants")
	}
}

// Clear empties the roster and removes its persisted copy.
func (d *Directory) Clear(ctx context.Context) error {
	d.mu.Lock()
	d.roster = Roster{}
	d.mu.Unlock()

	var err error
	if d.storage != nil {
		err = d.storage.Remove(ctx, d.key)
	}
	d.notify()
	return err
}

// Lookup implements Lookup.
func (d *Directory) Lookup(uuid string) (Participant, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.roster[uuid]
	return p, ok
}

// Roster returns an immutable copy of the current roster.
func (d *Directory) Roster() Roster {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(Roster, len(d.roster))
	for k, v := range d.roster {
		out[k] = v
	}
	return out
}

// All returns every participant sorted by display name.
func (d *Directory) All() []Participant {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sortParticipants(d.roster)
}

// Len returns the roster size.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.roster)
}

// OnChange registers fn to run after every roster change.
func (d *Directory) OnChange(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

func (d *Directory) notify() {
	d.mu.RLock()
	fns := append([]func(){}, d.listeners...)
	d.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

func sortParticipants(roster Roster) []Participant {
	out := make([]Participant, 0, len(roster))
	for _, p := range roster {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].DisplayName()), strings.ToLower(out[j].DisplayName())
		if a != b {
			return a < b
		}
		return out[i].UUID < out[j].UUID
	})
	return out
}
