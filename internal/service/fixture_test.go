package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"jnestagram/internal/cache"
	"jnestagram/internal/counters"
	"jnestagram/internal/notifications"
	"jnestagram/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sentEvent struct {
	UserID uint
	Type   string
	Data   map[string]any
}

// fixture wires services against sqlite and miniredis and records every
// notification published.
type fixture struct {
	db       *gorm.DB
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	engine   *counters.Engine
	notifier *notifications.Notifier

	mu     sync.Mutex
	events []sentEvent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:     testutil.NewDB(t),
		mr:     miniredis.RunT(t),
		engine: counters.New(),
	}
	f.rdb = redis.NewClient(&redis.Options{Addr: f.mr.Addr()})
	cache.SetClient(f.rdb)
	f.notifier = notifications.NewNotifier(f.rdb)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.notifier.StartSubscriber(ctx, func(userID uint, payload string) {
		var ev notifications.Event
		if json.Unmarshal([]byte(payload), &ev) != nil {
			return
		}
		data, _ := ev.Data.(map[string]any)
		f.mu.Lock()
		f.events = append(f.events, sentEvent{UserID: userID, Type: ev.Type, Data: data})
		f.mu.Unlock()
	}))
	t.Cleanup(func() {
		cancel()
		cache.SetClient(nil)
		_ = f.rdb.Close()
	})
	return f
}

// eventsFor waits briefly for pub/sub delivery and returns the events sent to userID.
func (f *fixture) eventsFor(t *testing.T, userID uint, want int) []sentEvent {
	t.Helper()
	var got []sentEvent
	require.Eventually(t, func() bool {
		got = f.snapshot(userID)
		return len(got) >= want
	}, time.Second, 10*time.Millisecond)
	return got
}

func (f *fixture) snapshot(userID uint) []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentEvent
	for _, ev := range f.events {
		if ev.UserID == userID {
			out = append(out, ev)
		}
	}
	return out
}
