package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"jnestagram/internal/cache"
	"jnestagram/internal/counters"
	"jnestagram/internal/models"
	"jnestagram/internal/notifications"
	"jnestagram/internal/observability"
	"jnestagram/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// LikeResult is the state of a target after a toggle.
type LikeResult struct {
	Target     models.LikeTarget `json:"target"`
	Liked      bool              `json:"liked"`
	LikesCount int               `json:"likes_count"`
}

// LikeService owns the like ledger.
type LikeService struct {
	db       *gorm.DB
	counters *counters.Engine
	notifier *notifications.Notifier
	likes    func(*gorm.DB) repository.LikeRepository
}

// NewLikeService returns a LikeService. notifier may be nil.
func NewLikeService(db *gorm.DB, engine *counters.Engine, notifier *notifications.Notifier) *LikeService {
	return &LikeService{
		db:       db,
		counters: engine,
		notifier: notifier,
		likes:    repository.NewLikeRepository,
	}
}

// resolveLikeTarget loads and locks the entity a like points at.
func resolveLikeTarget(ctx context.Context, likes repository.LikeRepository, target models.LikeTarget) (models.HasLikeCounter, error) {
	entity, err := likes.LockTarget(ctx, target)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError(string(target.Kind), target.ID)
	}
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// ToggleLike likes the target when the user has not liked it yet and unlikes
// it otherwise. The target row is locked first and the returned count is
// recounted inside the same transaction.
// An insert that loses a race against a concurrent like of the same pair is
// treated as "already liked" and turns into an unlike.
func (s *LikeService) ToggleLike(ctx context.Context, userID uint, rawKind string, targetID uint) (res *LikeResult, err error) {
	ctx, span := observability.StartSpan(ctx, "likes", "toggle",
		attribute.String("like.kind", rawKind),
		attribute.Int64("like.target_id", int64(targetID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if userID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	kind, err := models.ParseLikeKind(rawKind)
	if err != nil {
		return nil, err
	}
	target := models.LikeTarget{Kind: kind, ID: targetID}

	var owner uint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		likes := s.likes(tx)
		entity, err := resolveLikeTarget(ctx, likes, target)
		if err != nil {
			return err
		}
		owner = entity.OwnerID()

		exists, err := likes.Exists(ctx, userID, target)
		if err != nil {
			return err
		}

		liked := false
		if !exists {
			inserted, err := likes.Insert(ctx, userID, target)
			if err != nil {
				return err
			}
			if inserted {
				liked = true
			} else {
				observability.LikeInsertConflicts.WithLabelValues(string(kind)).Inc()
			}
		}

		var count int
		if liked {
			count, err = s.counters.LikeAdded(ctx, tx, target)
		} else {
			if _, err = likes.Delete(ctx, userID, target); err != nil {
				return err
			}
			count, err = s.counters.LikeRemoved(ctx, tx, target)
		}
		if err != nil {
			return err
		}

		res = &LikeResult{Target: target, Liked: liked, LikesCount: count}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.LikeToggles.WithLabelValues(string(kind), strconv.FormatBool(res.Liked)).Inc()
	if kind == models.LikeKindPost {
		cache.InvalidatePost(ctx, targetID)
	}
	if res.Liked && owner != userID {
		s.notifier.PublishBestEffort(ctx, owner, notifications.EventLikeCreated, map[string]any{
			"target":      target,
			"user_id":     userID,
			"likes_count": res.LikesCount,
		})
	}
	observability.GlobalLogger.DebugContext(ctx, "like toggled",
		slog.String("target", target.String()),
		slog.Bool("liked", res.Liked),
		slog.Int("likes_count", res.LikesCount),
	)
	return res, nil
}

// LikedIDs returns which of ids userID has liked.
func (s *LikeService) LikedIDs(ctx context.Context, userID uint, kind models.LikeKind, ids []uint) ([]uint, error) {
	return s.likes(s.db).LikedIDs(ctx, userID, kind, ids)
}
