package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveReactionsByCount(t *testing.T) {
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"uuid":"m1","authorUuid":"p1","sentAt":1,"reactions":{"👍":3,"🎉":1}}`), &msg))

	resolved := ResolveReactions(msg, NewRoster(nil))
	require.Len(t, resolved, 2)
	require.Equal(t, ResolvedReaction{Symbol: "👍", Count: 3}, resolved[0])
	require.Equal(t, ResolvedReaction{Symbol: "🎉", Count: 1}, resolved[1])
	for _, r := range resolved {
		require.Nil(t, r.Participant)
	}
}

func TestResolveReactionsByRecordAttributesParticipant(t *testing.T) {
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"uuid":"m1","authorUuid":"p2","sentAt":1,"reactions":[{"value":"👍","count":2,"participantUuid":"p1"}]}`), &msg))
	dir := NewRoster([]Participant{{UUID: "p1", Name: "Ada", AvatarURL: "https://img.example.com/ada.png"}})

	resolved := ResolveReactions(msg, dir)
	require.Len(t, resolved, 1)
	require.Equal(t, "👍", resolved[0].Symbol)
	require.Equal(t, 2, resolved[0].Count)
	require.NotNil(t, resolved[0].Participant)
	require.Equal(t, "Ada", resolved[0].Participant.Name)
	require.Equal(t, "https://img.example.com/ada.png", resolved[0].Participant.AvatarURL)
}

func TestResolveReactionsUnknownContributorStillRenders(t *testing.T) {
	msg := Message{Reactions: ByRecord(
		ReactionRecord{Value: "🔥", ParticipantUUID: "ghost"},
		ReactionRecord{Value: "👍", Count: 4},
	)}
	resolved := ResolveReactions(msg, NewRoster(nil))
	require.Len(t, resolved, 2)
	require.Equal(t, ResolvedReaction{Symbol: "🔥", Count: 1}, resolved[0])
	require.Equal(t, ResolvedReaction{Symbol: "👍", Count: 4}, resolved[1])
}

func TestResolveReactionsEmpty(t *testing.T) {
	require.Empty(t, ResolveReactions(Message{}, nil))
	require.Empty(t, ResolveReactions(Message{Reactions: ByCount(map[string]int{})}, nil))

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"uuid":"m1","authorUuid":"p1","sentAt":1,"reactions":[]}`), &msg))
	require.True(t, msg.Reactions.Empty())
	require.Empty(t, ResolveReactions(msg, nil))
}

func TestReactionsRoundTripKeepsShape(t *testing.T) {
	for _, raw := range []string{`{"👍":3}`, `[{"value":"👍","count":2,"participantUuid":"p1"}]`} {
		var r Reactions
		require.NoError(t, json.Unmarshal([]byte(raw), &r))
		out, err := json.Marshal(r)
		require.NoError(t, err)
		require.JSONEq(t, raw, string(out))
	}
}

func TestReactionsScalarDecodesToNone(t *testing.T) {
	for _, raw := range []string{`"👍"`, `3`, `true`} {
		r := ByCount(map[string]int{"x": 1})
		require.NoError(t, json.Unmarshal([]byte(raw), &r), raw)
		require.Equal(t, ReactionsNone, r.Kind, raw)
		require.True(t, r.Empty(), raw)
	}
}

func TestReactionsLenientCounts(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]int
	}{
		{name: "float", raw: `{"👍":2.0}`, want: map[string]int{"👍": 2}},
		{name: "rounded", raw: `{"👍":2.6}`, want: map[string]int{"👍": 3}},
		{name: "numeric string", raw: `{"👍":"4"}`, want: map[string]int{"👍": 4}},
		{name: "zero counts once", raw: `{"👍":0}`, want: map[string]int{"👍": 1}},
		{name: "garbage counts once", raw: `{"👍":{"n":2},"🎉":null}`, want: map[string]int{"👍": 1, "🎉": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Reactions
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &r))
			require.Equal(t, ReactionsByCount, r.Kind)
			require.Equal(t, tt.want, r.Counts)
		})
	}
}

func TestReactionsSkipsUnreadableRecords(t *testing.T) {
	var r Reactions
	require.NoError(t, json.Unmarshal([]byte(`[{"value":"👍","count":1.0},7,{"value":3},{"value":"🎉","count":"x"}]`), &r))
	require.Equal(t, []ReactionRecord{{Value: "👍", Count: 1}, {Value: "🎉"}}, r.Records)
}

func TestPageWithBadReactionsKeepsEveryMessage(t *testing.T) {
	page := `[
		{"uuid":"a","authorUuid":"p1","sentAt":2,"reactions":{"👍":1}},
		{"uuid":"b","authorUuid":"p1","sentAt":1,"reactions":{"👍":2.0,"🔥":"lots"}},
		{"uuid":"c","authorUuid":"p2","sentAt":0,"reactions":"broken"}
	]`
	var msgs []Message
	require.NoError(t, json.Unmarshal([]byte(page), &msgs))
	require.Len(t, msgs, 3)
	require.Equal(t, map[string]int{"👍": 2, "🔥": 1}, msgs[1].Reactions.Counts)
	require.True(t, msgs[2].Reactions.Empty())
}

func TestSummarizeFoldsSymbols(t *testing.T) {
	got := Summarize([]ResolvedReaction{
		{Symbol: "👍", Count: 1, Participant: &ParticipantRef{Name: "Ada"}},
		{Symbol: "🎉", Count: 1},
		{Symbol: "👍", Count: 2},
	})
	require.Equal(t, []ResolvedReaction{{Symbol: "👍", Count: 3}, {Symbol: "🎉", Count: 1}}, got)
}
