package repository

import (
	"context"

	"jnestagram/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository stores likes on posts, comments and replies.
type LikeRepository interface {
	Exists(ctx context.Context, userID uint, target models.LikeTarget) (bool, error)
	// Insert adds a like. It reports false, without error, when the like
	// already exists (including one inserted concurrently).
	Insert(ctx context.Context, userID uint, target models.LikeTarget) (bool, error)
	Delete(ctx context.Context, userID uint, target models.LikeTarget) (int64, error)
	// DeleteForTargets removes every like on the given targets of one kind.
	DeleteForTargets(ctx context.Context, kind models.LikeKind, ids []uint) error
	Count(ctx context.Context, target models.LikeTarget) (int64, error)
	// LikedIDs returns which of ids the user has liked.
	LikedIDs(ctx context.Context, userID uint, kind models.LikeKind, ids []uint) ([]uint, error)
	// LockTarget loads the liked entity FOR UPDATE. Posts must be active.
	// Concurrent toggles on one target queue on the row lock, so each recount
	// runs after the previous toggle has committed.
	LockTarget(ctx context.Context, target models.LikeTarget) (models.HasLikeCounter, error)
}

type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new LikeRepository
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

func (r *likeRepository) Exists(ctx context.Context, userID uint, target models.LikeTarget) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND target_kind = ? AND target_id = ?", userID, target.Kind, target.ID).
		Count(&count).Error
	return count > 0, err
}

func (r *likeRepository) Insert(ctx context.Context, userID uint, target models.LikeTarget) (bool, error) {
	like := models.Like{UserID: userID, TargetKind: target.Kind, TargetID: target.ID}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&like)
	if res.Error != nil {
		if IsUniqueViolation(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *likeRepository) Delete(ctx context.Context, userID uint, target models.LikeTarget) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND target_kind = ? AND target_id = ?", userID, target.Kind, target.ID).
		Delete(&models.Like{})
	return res.RowsAffected, res.Error
}

func (r *likeRepository) DeleteForTargets(ctx context.Context, kind models.LikeKind, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("target_kind = ? AND target_id IN ?", kind, ids).
		Delete(&models.Like{}).Error
}

func (r *likeRepository) Count(ctx context.Context, target models.LikeTarget) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("target_kind = ? AND target_id = ?", target.Kind, target.ID).
		Count(&count).Error
	return count, err
}

func (r *likeRepository) LikedIDs(ctx context.Context, userID uint, kind models.LikeKind, ids []uint) ([]uint, error) {
	if len(ids) == 0 || userID == 0 {
		return nil, nil
	}
	var liked []uint
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND target_kind = ? AND target_id IN ?", userID, kind, ids).
		Pluck("target_id", &liked).Error
	return liked, err
}

func (r *likeRepository) LockTarget(ctx context.Context, target models.LikeTarget) (models.HasLikeCounter, error) {
	q := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
	switch target.Kind {
	case models.LikeKindPost:
		var p models.Post
		if err := q.Where("id = ? AND is_active = ?", target.ID, true).First(&p).Error; err != nil {
			return nil, err
		}
		return &p, nil
	case models.LikeKindComment:
		var c models.Comment
		if err := q.Where("id = ?", target.ID).First(&c).Error; err != nil {
			return nil, err
		}
		return &c, nil
	case models.LikeKindReply:
		var rp models.Reply
		if err := q.Where("id = ?", target.ID).First(&rp).Error; err != nil {
			return nil, err
		}
		return &rp, nil
	}
	return nil, models.NewNotFoundError("like target kind", string(target.Kind))
}
