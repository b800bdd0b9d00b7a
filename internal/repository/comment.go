package repository

import (
	"context"

	"jnestagram/internal/models"
	"jnestagram/internal/observability"

	"gorm.io/gorm"
)

// TopCommentsLimit is the number of comments returned by the "top" listing.
const TopCommentsLimit = 4

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	// GetByID loads the comment with its post.
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	// ListApproved returns approved comments with their replies, oldest
	// first, or the most liked ones when top is set.
	ListApproved(ctx context.Context, postID, viewerID uint, top bool) ([]*models.Comment, error)
	ListPendingForOwner(ctx context.Context, ownerID uint, limit, offset int) ([]*models.Comment, error)
	CountPendingForOwner(ctx context.Context, ownerID uint) (int64, error)
	SetApproved(ctx context.Context, id uint, approved bool) error
	// UpdateText replaces the text and returns the comment to moderation.
	UpdateText(ctx context.Context, id uint, text string) error
	Delete(ctx context.Context, id uint) error
}

type commentRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db, log: observability.NewRepoLogger("comments")}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Omit("User", "Post", "Replies").Create(comment).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return err
	}
	r.log.LogCreate(ctx, map[string]any{"comment_id": comment.ID, "post_id": comment.PostID, "approved": comment.IsApproved})
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("User").Preload("Post").First(&comment, id).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) ListApproved(ctx context.Context, postID, viewerID uint, top bool) ([]*models.Comment, error) {
	defer observability.TrackQuery("list_approved", "comments")()
	q := likedSelect(r.db.WithContext(ctx).Model(&models.Comment{}), "comments", models.LikeKindComment, viewerID).
		Preload("User").
		Preload("Replies", func(db *gorm.DB) *gorm.DB {
			return likedSelect(db, "replies", models.LikeKindReply, viewerID).
				Preload("User").
				Order("replies.created_at ASC, replies.id ASC")
		}).
		Where("comments.post_id = ? AND comments.is_approved = ?", postID, true)

	if top {
		q = q.Where("comments.likes_count > 0").
			Order("comments.likes_count DESC, comments.id DESC").
			Limit(TopCommentsLimit)
	} else {
		q = q.Order("comments.created_at ASC, comments.id ASC")
	}

	var comments []*models.Comment
	err := q.Find(&comments).Error
	return comments, err
}

func (r *commentRepository) pendingForOwner(ctx context.Context, ownerID uint) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Comment{}).
		Joins("JOIN posts ON posts.id = comments.post_id").
		Where("posts.user_id = ? AND posts.is_active = ? AND comments.is_approved = ?", ownerID, true, false)
}

func (r *commentRepository) ListPendingForOwner(ctx context.Context, ownerID uint, limit, offset int) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.pendingForOwner(ctx, ownerID).
		Select("comments.*").
		Preload("User").
		Preload("Post").
		Order("comments.created_at DESC, comments.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) CountPendingForOwner(ctx context.Context, ownerID uint) (int64, error) {
	var count int64
	err := r.pendingForOwner(ctx, ownerID).Count(&count).Error
	return count, err
}

func (r *commentRepository) SetApproved(ctx context.Context, id uint, approved bool) error {
	res := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).Update("is_approved", approved)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	r.log.LogUpdate(ctx, map[string]any{"comment_id": id, "approved": approved})
	return nil
}

func (r *commentRepository) UpdateText(ctx context.Context, id uint, text string) error {
	res := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).
		Updates(map[string]any{"text": text, "is_approved": false})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Comment{}, id)
	if res.Error != nil {
		return res.Error
	}
	r.log.LogDelete(ctx, map[string]any{"comment_id": id})
	return nil
}
