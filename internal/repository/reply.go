package repository

import (
	"context"

	"jnestagram/internal/models"

	"gorm.io/gorm"
)

// ReplyRepository defines interface for reply operations
type ReplyRepository interface {
	Create(ctx context.Context, reply *models.Reply) error
	// GetByID loads the reply with its comment and the comment's post.
	GetByID(ctx context.Context, id uint) (*models.Reply, error)
	ListByComment(ctx context.Context, commentID, viewerID uint) ([]*models.Reply, error)
	IDsByComment(ctx context.Context, commentID uint) ([]uint, error)
	Delete(ctx context.Context, id uint) error
	DeleteByComment(ctx context.Context, commentID uint) error
}

type replyRepository struct {
	db *gorm.DB
}

// NewReplyRepository creates a new ReplyRepository
func NewReplyRepository(db *gorm.DB) ReplyRepository {
	return &replyRepository{db: db}
}

func (r *replyRepository) Create(ctx context.Context, reply *models.Reply) error {
	return r.db.WithContext(ctx).Omit("User", "Comment").Create(reply).Error
}

func (r *replyRepository) GetByID(ctx context.Context, id uint) (*models.Reply, error) {
	var reply models.Reply
	if err := r.db.WithContext(ctx).Preload("User").Preload("Comment.Post").First(&reply, id).Error; err != nil {
		return nil, err
	}
	return &reply, nil
}

func (r *replyRepository) ListByComment(ctx context.Context, commentID, viewerID uint) ([]*models.Reply, error) {
	var replies []*models.Reply
	err := likedSelect(r.db.WithContext(ctx).Model(&models.Reply{}), "replies", models.LikeKindReply, viewerID).
		Preload("User").
		Where("replies.comment_id = ?", commentID).
		Order("replies.created_at ASC, replies.id ASC").
		Find(&replies).Error
	return replies, err
}

func (r *replyRepository) IDsByComment(ctx context.Context, commentID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Reply{}).Where("comment_id = ?", commentID).Pluck("id", &ids).Error
	return ids, err
}

func (r *replyRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Reply{}, id).Error
}

func (r *replyRepository) DeleteByComment(ctx context.Context, commentID uint) error {
	return r.db.WithContext(ctx).Where("comment_id = ?", commentID).Delete(&models.Reply{}).Error
}
