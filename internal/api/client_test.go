package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/tribe/internal/api/apitest"
	"github.com/tOgg1/tribe/internal/chat"
)

var base = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func seedHistory(srv *apitest.Server, n int) []chat.Message {
	msgs := make([]chat.Message, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, srv.Post("p1", "hello", base.Add(-time.Duration(i)*time.Minute)))
	}
	return msgs
}

func newClient(t *testing.T, srv *apitest.Server, opts Options) *Client {
	t.Helper()
	opts.BaseURL = srv.BaseURL()
	client, err := New(opts)
	require.NoError(t, err)
	return client
}

func TestClientFetchLatestAndOlder(t *testing.T) {
	srv := apitest.NewServer(t)
	seedHistory(srv, 30)
	client := newClient(t, srv, Options{})
	ctx := context.Background()

	latest, err := client.FetchLatest(ctx)
	require.NoError(t, err)
	require.Len(t, latest, chat.PageSize)
	require.True(t, chat.IsCanonical(latest))

	older, err := client.FetchOlderThan(ctx, latest[len(latest)-1].UUID)
	require.NoError(t, err)
	require.Len(t, older, 5)
	require.True(t, older[0].SentAt.Before(latest[len(latest)-1].SentAt))

	all, err := client.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 30)
}

func TestClientFetchUpdatesSince(t *testing.T) {
	srv := apitest.NewServer(t)
	msgs := seedHistory(srv, 3)
	require.True(t, srv.Edit(msgs[2].UUID, "edited", base.Add(time.Hour)))
	client := newClient(t, srv, Options{})

	updates, err := client.FetchUpdates(context.Background(), base)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	require.Equal(t, msgs[2].UUID, updates[0].UUID)
	require.Equal(t, "edited", updates[0].Text)
	require.True(t, updates[0].Edited())
}

func TestClientSend(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.SetSelf("me")
	srv.SetClock(func() time.Time { return base })
	client := newClient(t, srv, Options{})

	msg, err := client.Send(context.Background(), "hi there")
	require.NoError(t, err)
	require.NotEmpty(t, msg.UUID)
	require.Equal(t, "me", msg.AuthorUUID)
	require.Equal(t, "hi there", msg.Text)
	require.Equal(t, base, msg.SentAt)
	require.Len(t, srv.Messages(), 1)
}

func TestClientFetchParticipants(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.SetParticipants(chat.Participant{UUID: "p1", Name: "Ada", AvatarURL: "https://img.example.com/ada.png"})
	client := newClient(t, srv, Options{})

	ps, err := client.FetchParticipants(context.Background())
	require.NoError(t, err)
	require.Equal(t, []chat.Participant{{UUID: "p1", Name: "Ada", AvatarURL: "https://img.example.com/ada.png"}}, ps)
}

func TestClientStatusError(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.FailNext("latest", http.StatusServiceUnavailable)
	client := newClient(t, srv, Options{})

	_, err := client.FetchLatest(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTransport)
	require.True(t, IsStatus(err, http.StatusServiceUnavailable))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, OpLatest, se.Op)
	require.Contains(t, se.Body, "Service Unavailable")

	_, err = client.FetchLatest(context.Background())
	require.NoError(t, err)
}

func TestClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client, err := New(Options{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)
	_, err = client.FetchAll(context.Background())
	require.ErrorIs(t, err, ErrTransport)
	var re *RequestError
	require.True(t, errors.As(err, &re))
	require.Equal(t, OpAll, re.Op)
}

func TestClientDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"not":"a list"}`)
	}))
	defer srv.Close()

	client, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = client.FetchLatest(context.Background())
	require.ErrorIs(t, err, ErrTransport)
	require.Contains(t, err.Error(), "decode response")
}

func TestClientEscapesMessageID(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	client, err := New(Options{BaseURL: srv.URL + "/api/"})
	require.NoError(t, err)
	_, err = client.FetchOlderThan(context.Background(), "a b")
	require.NoError(t, err)
	require.Equal(t, "/api/messages/older/a%20b", gotPath)

	_, err = client.FetchOlderThan(context.Background(), " ")
	require.Error(t, err)
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"ftp://example.com", "http://", "::"} {
		_, err := New(Options{BaseURL: raw})
		require.Error(t, err, raw)
	}
	client, err := New(Options{})
	require.NoError(t, err)
	require.Equal(t, DefaultBaseURL, client.BaseURL())
}

type recordingObserver struct {
	mu   sync.Mutex
	ops  []string
	errs []error
}

func (o *recordingObserver) ObserveRequest(op string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops = append(o.ops, op)
	o.errs = append(o.errs, err)
}

func TestClientReportsToObserver(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.FailNext("participants", http.StatusInternalServerError)
	obs := &recordingObserver{}
	client := newClient(t, srv, Options{Observer: obs, RateLimit: 100})

	_, _ = client.FetchLatest(context.Background())
	_, _ = client.FetchParticipants(context.Background())

	require.Equal(t, []string{OpLatest, OpParticipants}, obs.ops)
	require.NoError(t, obs.errs[0])
	require.ErrorIs(t, obs.errs[1], ErrTransport)
}
