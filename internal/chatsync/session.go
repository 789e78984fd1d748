// Package chatsync drives the message store from the remote service:
// refreshes, backward pagination, sends, and polling.
package chatsync

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tOgg1/tribe/internal/chat"
	"github.com/tOgg1/tribe/internal/logging"
	"github.com/tOgg1/tribe/internal/metrics"
)

// Operation names used for metrics and logs.
const (
	OpRefresh      = "refresh"
	OpAll          = "all"
	OpOlder        = "older"
	OpPoll         = "poll"
	OpSend         = "send"
	OpParticipants = "participants"
)

// Source is the remote message service.
type Source interface {
	FetchLatest(ctx context.Context) ([]chat.Message, error)
	FetchAll(ctx context.Context) ([]chat.Message, error)
	FetchOlderThan(ctx context.Context, messageID string) ([]chat.Message, error)
	FetchUpdates(ctx context.Context, since time.Time) ([]chat.Message, error)
	Send(ctx context.Context, text string) (chat.Message, error)
	FetchParticipants(ctx context.Context) ([]chat.Participant, error)
}

// Recorder receives sync outcomes. *metrics.Metrics implements it.
type Recorder interface {
	SyncOp(op, result string)
	Merged(op string, n int)
}

type nopRecorder struct{}

func (nopRecorder) SyncOp(string, string) {}
func (nopRecorder) Merged(string, int)    {}

// Options configures a Session.
type Options struct {
	// PageSize is the size of a full page; shorter pages end history.
	// Default: chat.PageSize
	PageSize int
	Recorder Recorder
	Now      func() time.Time
}

// Session coordinates one client's store, directory and source.
type Session struct {
	store    *chat.Store
	dir      *chat.Directory
	source   Source
	recorder Recorder
	pageSize int
	now      func() time.Time
	logger   zerolog.Logger

	loadingOlder atomic.Bool
}

func NewSession(store *chat.Store, dir *chat.Directory, source Source, opts Options) *Session {
	if opts.PageSize <= 0 {
		opts.PageSize = chat.PageSize
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		store:    store,
		dir:      dir,
		source:   source,
		recorder: opts.Recorder,
		pageSize: opts.PageSize,
		now:      opts.Now,
		logger:   logging.Component("sync"),
	}
}

func (s *Session) Store() *chat.Store         { return s.store }
func (s *Session) Directory() *chat.Directory { return s.dir }

// Load rehydrates the store and directory from storage without fetching.
// Anything that mutates the store must run after Load, or it would persist
// over the saved timeline.
func (s *Session) Load(ctx context.Context) {
	s.store.Load(ctx)
	s.dir.Load(ctx)
}

// Start rehydrates local state, then fetches participants and either a fresh
// latest page (no usable local data) or the updates since the last run.
func (s *Session) Start(ctx context.Context) error {
	s.Load(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.RefreshParticipants(gctx)
	})
	g.Go(func() error {
		if s.store.NeedsFullSync() {
			return s.Refresh(gctx)
		}
		_, err := s.Poll(gctx)
		return err
	})
	return g.Wait()
}

// Refresh replaces the timeline with the latest page.
func (s *Session) Refresh(ctx context.Context) error {
	msgs, err := s.source.FetchLatest(ctx)
	if err != nil {
		s.recorder.SyncOp(OpRefresh, metrics.ResultError)
		return fmt.Errorf("refresh: %w", err)
	}
	s.store.ReplaceAll(ctx, msgs)
	s.store.SetHasMore(ctx, len(msgs) >= s.pageSize)
	s.store.RecordFullSync(ctx, s.now())
	s.recorder.SyncOp(OpRefresh, metrics.ResultOK)
	s.logger.Debug().Int("messages", len(msgs)).Msg("timeline refreshed")
	return nil
}

// LoadAll replaces the timeline with the complete history.
func (s *Session) LoadAll(ctx context.Context) error {
	msgs, err := s.source.FetchAll(ctx)
	if err != nil {
		s.recorder.SyncOp(OpAll, metrics.ResultError)
		return fmt.Errorf("load all: %w", err)
	}
	s.store.ReplaceAll(ctx, msgs)
	s.store.SetHasMore(ctx, false)
	s.store.RecordFullSync(ctx, s.now())
	s.recorder.SyncOp(OpAll, metrics.ResultOK)
	return nil
}

// LoadOlder fetches the page before the oldest held message. Only one call
// runs at a time; a call made while another is in flight, after history is
// exhausted, or on an empty timeline returns 0 without fetching.
func (s *Session) LoadOlder(ctx context.Context) (int, error) {
	if !s.loadingOlder.CompareAndSwap(false, true) {
		s.recorder.SyncOp(OpOlder, metrics.ResultDropped)
		return 0, nil
	}
	defer s.loadingOlder.Store(false)

	cursor, ok := s.store.OlderCursor()
	if !ok || !cursor.HasMore {
		s.recorder.SyncOp(OpOlder, metrics.ResultSkipped)
		return 0, nil
	}
	gen, oldest := cursor.Generation, cursor.Oldest
	page, err := s.source.FetchOlderThan(ctx, oldest.UUID)
	if err != nil {
		s.recorder.SyncOp(OpOlder, metrics.ResultError)
		return 0, fmt.Errorf("load older: %w", err)
	}
	added, applied := s.store.AppendOlderPageIfCurrent(ctx, gen, page)
	if !applied {
		s.recorder.SyncOp(OpOlder, metrics.ResultStale)
		s.logger.Debug().Str("before", oldest.UUID).Msg("discarding older page fetched before a refresh")
		return 0, nil
	}
	s.store.SetHasMore(ctx, len(page) >= s.pageSize)
	s.recorder.SyncOp(OpOlder, metrics.ResultOK)
	s.recorder.Merged(OpOlder, added)
	return added, nil
}

// LoadingMore reports whether a LoadOlder call is in flight.
func (s *Session) LoadingMore() bool {
	return s.loadingOlder.Load()
}

// Send submits text and records the server's copy. On failure the store is
// left as it was.
func (s *Session) Send(ctx context.Context, text string) (chat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chat.Message{}, chat.ErrEmptyMessage
	}
	msg, err := s.source.Send(ctx, text)
	if err != nil {
		s.recorder.SyncOp(OpSend, metrics.ResultError)
		return chat.Message{}, fmt.Errorf("send: %w", err)
	}
	if err := msg.Validate(); err != nil {
		s.recorder.SyncOp(OpSend, metrics.ResultError)
		return chat.Message{}, fmt.Errorf("send: server reply: %w", err)
	}
	s.store.Prepend(ctx, msg)
	s.recorder.SyncOp(OpSend, metrics.ResultOK)
	s.recorder.Merged(OpSend, 1)
	return msg, nil
}

// Poll merges messages created or edited since the newest update held. It
// does nothing on an empty timeline, and discards its result when the
// timeline was replaced while the request was in flight.
func (s *Session) Poll(ctx context.Context) (int, error) {
	if s.store.Len() == 0 {
		s.recorder.SyncOp(OpPoll, metrics.ResultSkipped)
		return 0, nil
	}
	since := s.store.LatestUpdate()
	gen := s.store.Generation()

	msgs, err := s.source.FetchUpdates(ctx, since)
	if err != nil {
		s.recorder.SyncOp(OpPoll, metrics.ResultError)
		return 0, fmt.Errorf("poll: %w", err)
	}
	added, applied := s.store.MergeIfCurrent(ctx, gen, msgs)
	if !applied {
		s.recorder.SyncOp(OpPoll, metrics.ResultStale)
		s.logger.Debug().Time("since", since).Msg("discarding stale poll result")
		return 0, nil
	}
	s.store.RecordPoll(ctx, s.now())
	s.recorder.SyncOp(OpPoll, metrics.ResultOK)
	s.recorder.Merged(OpPoll, added)
	if added > 0 {
		s.logger.Debug().Int("added", added).Int("updated", len(msgs)-added).Msg("poll merged messages")
	}
	return added, nil
}

// RefreshParticipants replaces the directory with the remote roster.
func (s *Session) RefreshParticipants(ctx context.Context) error {
	ps, err := s.source.FetchParticipants(ctx)
	if err != nil {
		s.recorder.SyncOp(OpParticipants, metrics.ResultError)
		return fmt.Errorf("refresh participants: %w", err)
	}
	s.dir.Replace(ctx, ps)
	s.recorder.SyncOp(OpParticipants, metrics.ResultOK)
	return nil
}
