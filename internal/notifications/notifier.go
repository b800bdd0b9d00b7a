// Package notifications delivers per-user realtime events over Redis pub/sub.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"jnestagram/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Event types pushed to users.
const (
	EventMessageNew  = "message.new"
	EventLikeCreated = "like.created"
	EventCommentNew  = "comment.pending"
)

// Event is the envelope written to a user channel.
type Event struct {
	Type string    `json:"type"`
	Data any       `json:"data"`
	At   time.Time `json:"at"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Publish sends an event to a user's channel. A nil client makes it a no-op.
func (n *Notifier) Publish(ctx context.Context, userID uint, eventType string, data any) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(Event{Type: eventType, Data: data, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishBestEffort publishes and logs failures instead of returning them.
// Used after a transaction has committed, where the write must not be undone.
func (n *Notifier) PublishBestEffort(ctx context.Context, userID uint, eventType string, data any) {
	if err := n.Publish(ctx, userID, eventType, data); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "notification publish failed",
			slog.String("event", eventType),
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()),
		)
	}
}

// StartSubscriber subscribes to every user channel and calls onMessage with
// the user id and raw payload until ctx is cancelled.
func (n *Notifier) StartSubscriber(ctx context.Context, onMessage func(userID uint, payload string)) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe notifications: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				userID, err := strconv.ParseUint(strings.TrimPrefix(msg.Channel, userChannelPrefix), 10, 64)
				if err != nil {
					observability.GlobalLogger.Warn("invalid notification channel", slog.String("channel", msg.Channel))
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.GlobalLogger.Error("panic in notification subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage(uint(userID), msg.Payload)
				}()
			}
		}
	}()

	return nil
}

const userChannelPrefix = "notifications:user:"

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}
