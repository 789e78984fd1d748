package chat

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/tribe/internal/kv"
)

const testNamespace = "tribe/test"

var baseTime = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func msgAt(id, author string, offset time.Duration) Message {
	return Message{UUID: id, AuthorUUID: author, Text: "text " + id, SentAt: baseTime.Add(offset)}
}

func page(start, n int) []Message {
	out := make([]Message, 0, n)
	for i := 0; i < n; i++ {
		idx := start + i
		out = append(out, msgAt(fmt.Sprintf("m%03d", idx), "p1", -time.Duration(idx)*time.Minute))
	}
	return out
}

func TestStoreReplaceAllDedupsAndOrders(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, testNamespace)

	first := msgAt("a", "p1", 0)
	later := first
	later.Text = "edited"
	store.ReplaceAll(ctx, []Message{
		msgAt("b", "p1", -time.Minute),
		first,
		msgAt("c", "p2", time.Minute),
		later,
	})

	msgs := store.Messages()
	require.Equal(t, []string{"c", "a", "b"}, ids(msgs))
	require.Equal(t, "edited", msgs[1].Text)
	require.False(t, store.NeedsFullSync())
}

func TestStoreReplaceAllEmptyClearsCollection(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, testNamespace)
	store.ReplaceAll(ctx, page(0, 3))
	store.ReplaceAll(ctx, nil)
	require.Zero(t, store.Len())
}

func TestStoreDropsInvalidMessages(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, testNamespace)
	store.ReplaceAll(ctx, []Message{msgAt("a", "p1", 0), {UUID: "", AuthorUUID: "p1", SentAt: baseTime}})
	require.Equal(t, []string{"a"}, ids(store.Messages()))
}

func TestStorePrependThenPollDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, testNamespace)
	store.ReplaceAll(ctx, page(0, 3))

	sent := msgAt("new", "me", time.Minute)
	store.Prepend(ctx, sent)

	fromPoll := sent
	fromPoll.Reactions = ByCount(map[string]int{"👍": 1})
	added := store.Merge(ctx, []Message{fromPoll})
	require.Zero(t, added)

	msgs := store.Messages()
	require.Len(t, msgs, 4)
	require.Equal(t, "new", msgs[0].UUID)
	require.Equal(t, ReactionsByCount, msgs[0].Reactions.Kind)
}

func TestStoreMergeReplacesEditedMessages(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, testNamespace)
	store.ReplaceAll(ctx, page(0, 2))

	edited := page(1, 1)[0]
	edited.Text = "changed"
	edited.UpdatedAt = baseTime.Add(time.Hour)
	added := store.Merge(ctx, []Message{edited, msgAt("fresh", "p2", time.Hour)})
	require.Equal(t, 1, added)

	got, ok := store.Get(edited.UUID)
	require.True(t, ok)
	require.Equal(t, "changed", got.Text)
	require.Equal(t, baseTime.Add(time.Hour), store.LatestUpdate())
}

func TestStoreAppendOlderPage(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, testNamespace)
	store.ReplaceAll(ctx, page(0, PageSize))
	store.UpdateHasMore(ctx, PageSize)
	require.True(t, store.HasMore())

	added := store.AppendOlderPage(ctx, page(PageSize, 10))
	require.Equal(t, 10, added)
	store.UpdateHasMore(ctx, 10)
	require.False(t, store.HasMore())

	msgs := store.Messages()
	require.Len(t, msgs, PageSize+10)
	require.True(t, IsCanonical(msgs))
	oldest, ok := store.Oldest()
	require.True(t, ok)
	require.Equal(t, fmt.Sprintf("m%03d", PageSize+9), oldest.UUID)
}

func TestStoreAppendOlderPageOverlapKeepsExisting(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, testNamespace)
	store.ReplaceAll(ctx, page(0, 5))

	overlap := page(3, 5)
	overlap[0].Text = "stale copy"
	added := store.AppendOlderPage(ctx, overlap)
	require.Equal(t, 3, added)

	msgs := store.Messages()
	require.Len(t, msgs, 8)
	require.True(t, IsCanonical(msgs))
	got, _ := store.Get("m003")
	require.Equal(t, "text m003", got.Text)
}

func TestStoreEmptyPageEndsHistory(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, testNamespace)
	store.ReplaceAll(ctx, page(0, 3))
	require.Zero(t, store.AppendOlderPage(ctx, nil))
	store.UpdateHasMore(ctx, 0)
	require.False(t, store.HasMore())
	require.Len(t, store.Messages(), 3)
}

func TestStoreInvariantsUnderRandomOperations(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, testNamespace)
	rng := rand.New(rand.NewSource(7))

	randomBatch := func() []Message {
		n := rng.Intn(6)
		out := make([]Message, 0, n)
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("r%02d", rng.Intn(40))
			// Several identifiers share a timestamp to exercise the tie-break.
			out = append(out, msgAt(id, "p1", time.Duration(rng.Intn(10))*time.Minute))
		}
		return out
	}

	for i := 0; i < 500; i++ {
		switch rng.Intn(4) {
		case 0:
			store.ReplaceAll(ctx, randomBatch())
		case 1:
			for _, msg := range randomBatch() {
				store.Prepend(ctx, msg)
			}
		case 2:
			store.Merge(ctx, randomBatch())
		case 3:
			store.AppendOlderPage(ctx, randomBatch())
		}
		require.True(t, IsCanonical(store.Messages()), "iteration %d", i)
	}
}

func TestStorePersistsAndRehydrates(t *testing.T) {
	ctx := context.Background()
	storage, err := kv.NewFileStore(t.TempDir())
	require.NoError(t, err)

	store := NewStore(storage, testNamespace)
	store.Load(ctx)
	require.True(t, store.NeedsFullSync())

	msgs := page(0, PageSize)
	msgs[0].Reactions = ByRecord(ReactionRecord{Value: "👍", ParticipantUUID: "p2"})
	store.ReplaceAll(ctx, msgs)
	store.UpdateHasMore(ctx, PageSize)
	store.RecordFullSync(ctx, baseTime)

	restored := NewStore(storage, testNamespace)
	restored.Load(ctx)
	require.False(t, restored.NeedsFullSync())
	require.True(t, restored.HasMore())
	require.Equal(t, store.Messages(), restored.Messages())
	require.Equal(t, baseTime, restored.Snapshot().LastFullSync)
	require.Equal(t, ReactionsByRecord, restored.Messages()[0].Reactions.Kind)
}

func TestStoreLoadMalformedStartsEmpty(t *testing.T) {
	ctx := context.Background()
	storage := kv.NewMemory()

	for name, payload := range map[string]string{
		"not json":       "{broken",
		"future version": `{"version":99,"messages":[]}`,
		"wrong type":     `{"version":1,"messages":"nope"}`,
	} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, storage.Set(ctx, kv.Key(testNamespace, messagesKeyName), []byte(payload)))
			store := NewStore(storage, testNamespace)
			store.Load(ctx)
			require.Zero(t, store.Len())
			require.True(t, store.NeedsFullSync())
			require.True(t, store.HasMore())
		})
	}
}

func TestStoreClearRemovesSnapshot(t *testing.T) {
	ctx := context.Background()
	storage := kv.NewMemory()
	store := NewStore(storage, testNamespace)
	store.ReplaceAll(ctx, page(0, 2))
	gen := store.Generation()

	require.NoError(t, store.Clear(ctx))
	require.Zero(t, store.Len())
	require.Greater(t, store.Generation(), gen)

	_, err := storage.Get(ctx, kv.Key(testNamespace, messagesKeyName))
	require.ErrorIs(t, err, kv.ErrNotFound)
}

func TestStoreGenerationOnlyMovesOnReplace(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, testNamespace)
	store.ReplaceAll(ctx, page(0, 2))
	gen := store.Generation()

	store.Merge(ctx, page(5, 1))
	store.AppendOlderPage(ctx, page(10, 1))
	require.Equal(t, gen, store.Generation())

	store.ReplaceAll(ctx, page(0, 1))
	require.Equal(t, gen+1, store.Generation())
}

func TestStoreOlderCursorReadsTogether(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, testNamespace)
	_, ok := store.OlderCursor()
	require.False(t, ok)

	store.ReplaceAll(ctx, page(0, 3))
	cursor, ok := store.OlderCursor()
	require.True(t, ok)
	require.Equal(t, store.Generation(), cursor.Generation)
	require.Equal(t, "m002", cursor.Oldest.UUID)
	require.True(t, cursor.HasMore)

	store.ReplaceAll(ctx, page(10, 2))
	store.SetHasMore(ctx, false)
	next, ok := store.OlderCursor()
	require.True(t, ok)
	require.Equal(t, cursor.Generation+1, next.Generation)
	require.Equal(t, "m011", next.Oldest.UUID)
	require.False(t, next.HasMore)
}

func TestStoreOnChangeNotifiesAndUnsubscribes(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, testNamespace)

	var mu sync.Mutex
	var seen []int
	stop := store.OnChange(func(msgs []Message) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, len(msgs))
	})

	store.ReplaceAll(ctx, page(0, 2))
	store.Prepend(ctx, msgAt("x", "p1", time.Hour))
	stop()
	store.Prepend(ctx, msgAt("y", "p1", 2*time.Hour))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{2, 3}, seen)
}

func TestStoreConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	storage := kv.NewMemory()
	store := NewStore(storage, testNamespace)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				store.Merge(ctx, []Message{msgAt(fmt.Sprintf("w%d-%d", w, i), "p1", time.Duration(i)*time.Second)})
			}
		}(w)
	}
	wg.Wait()

	require.Equal(t, 160, store.Len())
	require.True(t, IsCanonical(store.Messages()))

	restored := NewStore(storage, testNamespace)
	restored.Load(ctx)
	require.Equal(t, 160, restored.Len())
}

func TestStoreMergeIfCurrentRejectsStaleGeneration(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, testNamespace)
	store.ReplaceAll(ctx, page(0, 2))
	gen := store.Generation()

	added, ok := store.MergeIfCurrent(ctx, gen, []Message{msgAt("live", "p1", time.Hour)})
	require.True(t, ok)
	require.Equal(t, 1, added)

	store.ReplaceAll(ctx, page(0, 2))
	added, ok = store.MergeIfCurrent(ctx, gen, []Message{msgAt("late", "p1", 2*time.Hour)})
	require.False(t, ok)
	require.Zero(t, added)
	_, found := store.Get("late")
	require.False(t, found)

	_, ok = store.AppendOlderPageIfCurrent(ctx, gen, page(10, 1))
	require.False(t, ok)
	_, ok = store.AppendOlderPageIfCurrent(ctx, store.Generation(), page(10, 1))
	require.True(t, ok)
}
