package repository

import (
	"context"
	"fmt"

	"jnestagram/internal/models"

	"gorm.io/gorm"
)

// CounterRepository writes the denormalized counters. Every method touches
// only its counter column, and an owner row that no longer exists makes the
// write a no-op.
type CounterRepository interface {
	// RecountLikes sets likes_count to the number of likes on target and returns it.
	RecountLikes(ctx context.Context, target models.LikeTarget) (int, error)
	IncrementComments(ctx context.Context, postID uint) error
	RecountApprovedComments(ctx context.Context, postID uint) (int, error)
	IncrementReplies(ctx context.Context, commentID uint) error
	DecrementReplies(ctx context.Context, commentID uint) error
	RecountReplies(ctx context.Context, commentID uint) (int, error)
	RepliesCount(ctx context.Context, commentID uint) (int, error)

	// Sweeps return the number of rows whose stored value was wrong.
	SweepLikes(ctx context.Context, kind models.LikeKind) (int64, error)
	SweepApprovedComments(ctx context.Context) (int64, error)
	SweepReplies(ctx context.Context) (int64, error)
}

type counterRepository struct {
	db *gorm.DB
}

// NewCounterRepository creates a new CounterRepository
func NewCounterRepository(db *gorm.DB) CounterRepository {
	return &counterRepository{db: db}
}

const (
	likesSubquery    = "(SELECT COUNT(*) FROM likes WHERE likes.target_kind = ? AND likes.target_id = %s.id)"
	approvedSubquery = "(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.is_approved = ?)"
	repliesSubquery  = "(SELECT COUNT(*) FROM replies WHERE replies.comment_id = comments.id)"
)

func (r *counterRepository) RecountLikes(ctx context.Context, target models.LikeTarget) (int, error) {
	table := target.Kind.Table()
	if table == "" {
		return 0, fmt.Errorf("recount likes: unknown kind %q", target.Kind)
	}
	sub := fmt.Sprintf(likesSubquery, table)
	err := r.db.WithContext(ctx).
		Exec(fmt.Sprintf("UPDATE %s SET likes_count = %s WHERE id = ?", table, sub), target.Kind, target.ID).Error
	if err != nil {
		return 0, fmt.Errorf("recount likes on %s: %w", target, err)
	}
	return r.read(ctx, table, "likes_count", target.ID)
}

func (r *counterRepository) IncrementComments(ctx context.Context, postID uint) error {
	return r.db.WithContext(ctx).
		Exec("UPDATE posts SET comments_count = comments_count + 1 WHERE id = ?", postID).Error
}

func (r *counterRepository) RecountApprovedComments(ctx context.Context, postID uint) (int, error) {
	err := r.db.WithContext(ctx).
		Exec("UPDATE posts SET comments_count = "+approvedSubquery+" WHERE id = ?", true, postID).Error
	if err != nil {
		return 0, fmt.Errorf("recount comments on post %d: %w", postID, err)
	}
	return r.read(ctx, "posts", "comments_count", postID)
}

func (r *counterRepository) IncrementReplies(ctx context.Context, commentID uint) error {
	return r.db.WithContext(ctx).
		Exec("UPDATE comments SET replays_count = replays_count + 1 WHERE id = ?", commentID).Error
}

func (r *counterRepository) DecrementReplies(ctx context.Context, commentID uint) error {
	return r.db.WithContext(ctx).
		Exec("UPDATE comments SET replays_count = CASE WHEN replays_count > 0 THEN replays_count - 1 ELSE 0 END WHERE id = ?", commentID).Error
}

func (r *counterRepository) RecountReplies(ctx context.Context, commentID uint) (int, error) {
	err := r.db.WithContext(ctx).
		Exec("UPDATE comments SET replays_count = "+repliesSubquery+" WHERE id = ?", commentID).Error
	if err != nil {
		return 0, fmt.Errorf("recount replies on comment %d: %w", commentID, err)
	}
	return r.read(ctx, "comments", "replays_count", commentID)
}

func (r *counterRepository) RepliesCount(ctx context.Context, commentID uint) (int, error) {
	return r.read(ctx, "comments", "replays_count", commentID)
}

func (r *counterRepository) SweepLikes(ctx context.Context, kind models.LikeKind) (int64, error) {
	table := kind.Table()
	if table == "" {
		return 0, fmt.Errorf("sweep likes: unknown kind %q", kind)
	}
	sub := fmt.Sprintf(likesSubquery, table)
	res := r.db.WithContext(ctx).Exec(
		fmt.Sprintf("UPDATE %s SET likes_count = %s WHERE likes_count <> %s", table, sub, sub),
		kind, kind,
	)
	return res.RowsAffected, res.Error
}

func (r *counterRepository) SweepApprovedComments(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		"UPDATE posts SET comments_count = "+approvedSubquery+" WHERE comments_count <> "+approvedSubquery,
		true, true,
	)
	return res.RowsAffected, res.Error
}

func (r *counterRepository) SweepReplies(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		"UPDATE comments SET replays_count = " + repliesSubquery + " WHERE replays_count <> " + repliesSubquery,
	)
	return res.RowsAffected, res.Error
}

// read returns a counter value, or 0 when the row is gone.
func (r *counterRepository) read(ctx context.Context, table, column string, id uint) (int, error) {
	var values []int
	if err := r.db.WithContext(ctx).Table(table).Where("id = ?", id).Limit(1).Pluck(column, &values).Error; err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, nil
	}
	return values[0], nil
}
