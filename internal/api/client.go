// Package api is the HTTP client for the remote chat service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tOgg1/tribe/internal/chat"
	"github.com/tOgg1/tribe/internal/logging"
)

const (
	DefaultBaseURL = "https://dummy-chat-server.tribechat.com/api"
	DefaultTimeout = 10 * time.Second

	maxErrorBody = 512
)

// Operation names, used in errors and metrics.
const (
	OpLatest       = "latest"
	OpAll          = "all"
	OpOlder        = "older"
	OpUpdates      = "updates"
	OpSend         = "send"
	OpParticipants = "participants"
)

// Observer receives the outcome of every request.
type Observer interface {
	ObserveRequest(op string, elapsed time.Duration, err error)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	// RateLimit caps requests per second. Zero disables limiting.
	RateLimit float64
	Observer  Observer
}

// Client talks to the chat service's REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	observer   Observer
	logger     zerolog.Logger
}

func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", logging.RedactURL(raw))
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url %q: missing host", logging.RedactURL(raw))
	}
	base.Path = strings.TrimRight(base.Path, "/")

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		limiter:    limiter,
		observer:   opts.Observer,
		logger:     logging.Component("api"),
	}, nil
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// FetchLatest returns the newest page of messages.
func (c *Client) FetchLatest(ctx context.Context) ([]chat.Message, error) {
	var out []chat.Message
	err := c.do(ctx, OpLatest, http.MethodGet, []string{"messages", "latest"}, nil, &out)
	return out, err
}

// FetchAll returns the complete history.
func (c *Client) FetchAll(ctx context.Context) ([]chat.Message, error) {
	var out []chat.Message
	err := c.do(ctx, OpAll, http.MethodGet, []string{"messages", "all"}, nil, &out)
	return out, err
}

// FetchOlderThan returns the page of messages sent before the given message.
func (c *Client) FetchOlderThan(ctx context.Context, messageID string) ([]chat.Message, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return nil, errors.New("older than: message id is required")
	}
	var out []chat.Message
	err := c.do(ctx, OpOlder, http.MethodGet, []string{"messages", "older", messageID}, nil, &out)
	return out, err
}

// FetchUpdates returns messages created or edited after since.
func (c *Client) FetchUpdates(ctx context.Context, since time.Time) ([]chat.Message, error) {
	var out []chat.Message
	ms := strconv.FormatInt(since.UnixMilli(), 10)
	err := c.do(ctx, OpUpdates, http.MethodGet, []string{"messages", "updates", ms}, nil, &out)
	return out, err
}

// Send posts a new message and returns it as stored by the server.
func (c *Client) Send(ctx context.Context, text string) (chat.Message, error) {
	var out chat.Message
	body := struct {
		Text string `json:"text"`
	}{Text: text}
	if err := c.do(ctx, OpSend, http.MethodPost, []string{"messages", "new"}, body, &out); err != nil {
		return chat.Message{}, err
	}
	return out, nil
}

// FetchParticipants returns the full roster.
func (c *Client) FetchParticipants(ctx context.Context) ([]chat.Participant, error) {
	var out []chat.Participant
	err := c.do(ctx, OpParticipants, http.MethodGet, []string{"participants", "all"}, nil, &out)
	return out, err
}

func (c *Client) endpoint(segments ...string) string {
	return c.baseURL.JoinPath(segments...).String()
}

func (c *Client) do(ctx context.Context, op, method string, path []string, in, out any) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveRequest(op, time.Since(start), err)
		}
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &RequestError{Op: op, Err: err}
		}
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return &RequestError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(payload)
	}

	target := c.endpoint(path...)
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &RequestError{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("op", op).Str("url", logging.RedactURL(target)).Msg("request failed")
		return &RequestError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("op", op).
		Str("url", logging.RedactURL(target)).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request complete")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       logging.Redact(strings.TrimSpace(string(snippet))),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
