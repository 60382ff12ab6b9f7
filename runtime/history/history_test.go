package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/types"
)

func turn(i int) []types.ChatMessage {
	return []types.ChatMessage{
		types.NewUserMessage(fmt.Sprintf("q%d", i)),
		types.NewAssistantMessage(fmt.Sprintf("a%d", i)),
	}
}

func TestWindow_TruncatesToMostRecent(t *testing.T) {
	w := NewWindow(0)
	require.Equal(t, DefaultLimit, w.Limit())

	for i := 0; i < 15; i++ {
		w.Append(turn(i)...)
		w.Truncate()
		assert.LessOrEqual(t, w.Len(), DefaultLimit)
	}

	msgs := w.Messages()
	require.Len(t, msgs, DefaultLimit)
	assert.Equal(t, "q5", msgs[0].Content)
	assert.Equal(t, "a14", msgs[len(msgs)-1].Content)
	for i := 0; i < len(msgs); i += 2 {
		assert.Equal(t, types.RoleUser, msgs[i].Role)
		assert.Equal(t, types.RoleAssistant, msgs[i+1].Role)
	}
}

func TestWindow_MessagesIsACopy(t *testing.T) {
	w := NewWindow(4)
	w.Append(types.NewUserMessage("hi"))

	msgs := w.Messages()
	msgs[0].Content = "changed"
	assert.Equal(t, "hi", w.Messages()[0].Content)
}

func TestWindow_ReplaceAndClear(t *testing.T) {
	w := NewWindow(2)
	w.Replace(append(turn(0), turn(1)...))
	msgs := w.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "q1", msgs[0].Content)

	w.Clear()
	assert.Zero(t, w.Len())
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Load(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Save(ctx, "", nil), ErrInvalidID)

	msgs := turn(1)
	require.NoError(t, s.Save(ctx, "c1", msgs))
	msgs[0].Content = "mutated"

	got, err := s.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "q1", got[0].Content)

	require.NoError(t, s.Delete(ctx, "c1"))
	require.NoError(t, s.Delete(ctx, "c1"))
	_, err = s.Load(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func setupRedisStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, opts...), mr
}

func TestRedisStore_SaveLoadDelete(t *testing.T) {
	store, mr := setupRedisStore(t, WithPrefix("test"))
	ctx := context.Background()

	_, err := store.Load(ctx, "conv-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "conv-1", turn(3)))
	assert.True(t, mr.Exists("test:history:conv-1"))

	got, err := store.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, turn(3), got)

	require.NoError(t, store.Delete(ctx, "conv-1"))
	assert.False(t, mr.Exists("test:history:conv-1"))
}

func TestRedisStore_TTL(t *testing.T) {
	store, mr := setupRedisStore(t, WithTTL(time.Hour))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "conv-2", turn(1)))
	assert.Equal(t, time.Hour, mr.TTL("regis:history:conv-2"))

	mr.FastForward(2 * time.Hour)
	_, err := store.Load(ctx, "conv-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_InvalidIDAndCorruptData(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	_, err := store.Load(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.ErrorIs(t, store.Delete(ctx, ""), ErrInvalidID)

	require.NoError(t, mr.Set("regis:history:bad", "{not json"))
	_, err = store.Load(ctx, "bad")
	assert.ErrorContains(t, err, "unmarshal")
}

func TestRedisStore_ConnectionFailure(t *testing.T) {
	store, mr := setupRedisStore(t)
	mr.Close()

	err := store.Save(context.Background(), "conv", turn(1))
	assert.ErrorContains(t, err, "redis set failed")
}
