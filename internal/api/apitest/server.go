// Package apitest provides an in-process fake of the chat service for tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/tOgg1/tribe/internal/chat"
	"github.com/tOgg1/tribe/internal/testutil"
)

// Server is a fake chat service. Messages are kept in canonical order and
// served in pages of chat.PageSize.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	messages     []chat.Message
	participants []chat.Participant
	failures     map[string][]int
	calls        map[string]int
	hook         func(op string)
	now          func() time.Time
	self         string
}

// NewServer starts a fake service that is closed with the test.
func NewServer(t testing.TB) *Server {
	t.Helper()
	testutil.SkipIfNoNetwork(t)
	s := &Server{
		failures: make(map[string][]int),
		calls:    make(map[string]int),
		now:      func() time.Time { return time.Now().UTC() },
		self:     "self",
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/messages/latest", s.handleLatest).Methods(http.MethodGet)
	r.HandleFunc("/api/messages/all", s.handleAll).Methods(http.MethodGet)
	r.HandleFunc("/api/messages/older/{id}", s.handleOlder).Methods(http.MethodGet)
	r.HandleFunc("/api/messages/updates/{since:[0-9]+}", s.handleUpdates).Methods(http.MethodGet)
	r.HandleFunc("/api/messages/new", s.handleNew).Methods(http.MethodPost)
	r.HandleFunc("/api/participants/all", s.handleParticipants).Methods(http.MethodGet)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root to hand to api.New.
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

// SetSelf sets the author id assigned to posted messages.
func (s *Server) SetSelf(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.self = id
}

// SetClock overrides the time assigned to posted messages.
func (s *Server) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Seed adds messages to the server's history.
func (s *Server) Seed(msgs ...chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := make(map[string]chat.Message, len(s.messages)+len(msgs))
	for _, m := range s.messages {
		byID[m.UUID] = m
	}
	for _, m := range msgs {
		byID[m.UUID] = m
	}
	s.messages = s.messages[:0]
	for _, m := range byID {
		s.messages = append(s.messages, m)
	}
	chat.SortCanonical(s.messages)
}

// Post adds a message from author at the given time and returns it.
func (s *Server) Post(author, text string, at time.Time) chat.Message {
	msg := chat.Message{UUID: uuid.NewString(), AuthorUUID: author, Text: text, SentAt: at.UTC(), UpdatedAt: at.UTC()}
	s.Seed(msg)
	return msg
}

// Edit changes a message's text and bumps its update time.
func (s *Server) Edit(id, text string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].UUID == id {
			s.messages[i].Text = text
			s.messages[i].UpdatedAt = at.UTC()
			return true
		}
	}
	return false
}

// SetParticipants replaces the roster.
func (s *Server) SetParticipants(ps ...chat.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants = append([]chat.Participant(nil), ps...)
}

// FailNext makes the next requests for op answer with the given statuses.
func (s *Server) FailNext(op string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], statuses...)
}

// OnRequest installs a hook run before each request is served. It runs
// without the server lock, so it may block.
func (s *Server) OnRequest(fn func(op string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = fn
}

// Calls returns how many requests for op were received.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Messages returns the server's history in canonical order.
func (s *Server) Messages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Message(nil), s.messages...)
}

func (s *Server) begin(w http.ResponseWriter, op string) bool {
	s.mu.Lock()
	s.calls[op]++
	hook := s.hook
	s.mu.Unlock()

	if hook != nil {
		hook(op)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if queued := s.failures[op]; len(queued) > 0 {
		s.failures[op] = queued[1:]
		http.Error(w, http.StatusText(queued[0]), queued[0])
		return false
	}
	return true
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, "latest") {
		return
	}
	s.mu.Lock()
	out := firstN(s.messages, chat.PageSize)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAll(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, "all") {
		return
	}
	s.mu.Lock()
	out := append([]chat.Message(nil), s.messages...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOlder(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, "older") {
		return
	}
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].UUID == id {
			writeJSON(w, http.StatusOK, firstN(s.messages[i+1:], chat.PageSize))
			return
		}
	}
	http.Error(w, "unknown message", http.StatusNotFound)
}

func (s *Server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, "updates") {
		return
	}
	ms, err := strconv.ParseInt(mux.Vars(r)["since"], 10, 64)
	if err != nil {
		http.Error(w, "bad timestamp", http.StatusBadRequest)
		return
	}
	since := time.UnixMilli(ms)
	s.mu.Lock()
	out := make([]chat.Message, 0)
	for _, m := range s.messages {
		if m.LastUpdate().After(since) {
			out = append(out, m)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleNew(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, "send") {
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	author, now := s.self, s.now()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.Post(author, body.Text, now))
}

func (s *Server) handleParticipants(w http.ResponseWriter, r *http.Request) {
	if !s.begin(w, "participants") {
		return
	}
	s.mu.Lock()
	out := append([]chat.Participant{}, s.participants...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func firstN(msgs []chat.Message, n int) []chat.Message {
	if len(msgs) > n {
		msgs = msgs[:n]
	}
	return append([]chat.Message{}, msgs...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
