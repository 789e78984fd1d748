package chatsync

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/tOgg1/tribe/internal/chat"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) FetchLatest(ctx context.Context) ([]chat.Message, error) {
	args := m.Called(ctx)
	return messagesArg(args, 0), args.Error(1)
}

func (m *mockSource) FetchAll(ctx context.Context) ([]chat.Message, error) {
	args := m.Called(ctx)
	return messagesArg(args, 0), args.Error(1)
}

func (m *mockSource) FetchOlderThan(ctx context.Context, messageID string) ([]chat.Message, error) {
	args := m.Called(ctx, messageID)
	return messagesArg(args, 0), args.Error(1)
}

func (m *mockSource) FetchUpdates(ctx context.Context, since time.Time) ([]chat.Message, error) {
	args := m.Called(ctx, since)
	return messagesArg(args, 0), args.Error(1)
}

func (m *mockSource) Send(ctx context.Context, text string) (chat.Message, error) {
	args := m.Called(ctx, text)
	msg, _ := args.Get(0).(chat.Message)
	return msg, args.Error(1)
}

func (m *mockSource) FetchParticipants(ctx context.Context) ([]chat.Participant, error) {
	args := m.Called(ctx)
	ps, _ := args.Get(0).([]chat.Participant)
	return ps, args.Error(1)
}

func messagesArg(args mock.Arguments, i int) []chat.Message {
	msgs, _ := args.Get(i).([]chat.Message)
	return msgs
}
