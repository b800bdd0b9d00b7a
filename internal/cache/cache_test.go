package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

type payload struct {
	Count int `json:"count"`
}

func TestAside_FetchesOnceThenServesFromCache(t *testing.T) {
	setupMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *payload) func() error {
		return func() error {
			calls++
			dest.Count = 7
			return nil
		}
	}

	var first payload
	require.NoError(t, Aside(ctx, "k", &first, time.Minute, fetch(&first)))
	var second payload
	require.NoError(t, Aside(ctx, "k", &second, time.Minute, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 7, second.Count)
}

func TestAside_PropagatesFetchError(t *testing.T) {
	setupMiniredis(t)
	boom := errors.New("boom")

	var dest payload
	err := Aside(context.Background(), "k", &dest, time.Minute, func() error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestAside_WithoutClientAlwaysFetches(t *testing.T) {
	SetClient(nil)
	calls := 0
	var dest payload
	for i := 0; i < 2; i++ {
		require.NoError(t, Aside(context.Background(), "k", &dest, time.Minute, func() error {
			calls++
			return nil
		}))
	}
	assert.Equal(t, 2, calls)
}

func TestInvalidateUnread(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, SetJSON(ctx, UnreadCountKey(1), 3, time.Minute))
	require.NoError(t, SetJSON(ctx, UnreadCountKey(2), 4, time.Minute))

	InvalidateUnread(ctx, 1, 2)

	assert.False(t, mr.Exists(UnreadCountKey(1)))
	assert.False(t, mr.Exists(UnreadCountKey(2)))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "post:5", PostKey(5))
	assert.Equal(t, "inbox:unread:9", UnreadCountKey(9))
	assert.Equal(t, "comments:pending:3", PendingCountKey(3))
	assert.Equal(t, "ws_ticket:abc", WSTicketKey("abc"))
}
