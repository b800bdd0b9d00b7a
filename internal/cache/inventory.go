package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	PostKeyPrefix         = "post:%d"
	TagsKey               = "tags:all"
	UnreadCountKeyPrefix  = "inbox:unread:%d"
	PendingCountKeyPrefix = "comments:pending:%d"
	WSTicketKeyPrefix     = "ws_ticket:%s"
	LandingKeyPrefix      = "landing:%s"
	FeaturesKey           = "features:all"
)

const (
	PostTTL         = 30 * time.Minute
	TagsTTL         = time.Hour
	UnreadCountTTL  = time.Minute
	PendingCountTTL = time.Minute
	WSTicketTTL     = 30 * time.Second
	LandingTTL      = 15 * time.Second
	FeaturesTTL     = time.Minute
)

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func UnreadCountKey(userID uint) string {
	return fmt.Sprintf(UnreadCountKeyPrefix, userID)
}

func PendingCountKey(ownerID uint) string {
	return fmt.Sprintf(PendingCountKeyPrefix, ownerID)
}

func WSTicketKey(ticket string) string {
	return fmt.Sprintf(WSTicketKeyPrefix, ticket)
}

func LandingKey(name string) string {
	return fmt.Sprintf(LandingKeyPrefix, name)
}

// Invalidate deletes keys. Failures only cost a stale read until the TTL expires.
func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
}

func InvalidateUnread(ctx context.Context, userIDs ...uint) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, UnreadCountKey(id))
	}
	Invalidate(ctx, keys...)
}

func InvalidatePending(ctx context.Context, ownerID uint) {
	Invalidate(ctx, PendingCountKey(ownerID))
}
