package service

import (
	"context"
	"errors"

	"jnestagram/internal/cache"
	"jnestagram/internal/counters"
	"jnestagram/internal/models"
	"jnestagram/internal/notifications"
	"jnestagram/internal/observability"
	"jnestagram/internal/repository"
	"jnestagram/internal/validation"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const maxCommentLen = 2000

// CommentService implements comment moderation: comments from strangers wait
// for the post owner's approval and only approved ones count.
type CommentService struct {
	db       *gorm.DB
	counters *counters.Engine
	notifier *notifications.Notifier
}

type CreateCommentInput struct {
	UserID uint
	PostID uint
	Text   string
}

type UpdateCommentInput struct {
	UserID    uint
	CommentID uint
	Text      string
}

func NewCommentService(db *gorm.DB, engine *counters.Engine, notifier *notifications.Notifier) *CommentService {
	return &CommentService{db: db, counters: engine, notifier: notifier}
}

// loadActor returns the acting user or Unauthorized.
func loadActor(ctx context.Context, db *gorm.DB, userID uint) (*models.User, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	user, err := repository.NewUserRepository(db).GetByID(ctx, userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError("Unknown user")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, models.NewUnauthorizedError("Account disabled")
	}
	return user, nil
}

func notFoundAs(err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return err
}

// loadComment returns the comment with its post. Comments on deactivated
// posts are treated as missing.
func loadComment(ctx context.Context, db *gorm.DB, id uint) (*models.Comment, error) {
	comment, err := repository.NewCommentRepository(db).GetByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, "Comment", id)
	}
	if comment.Post == nil || !comment.Post.IsActive {
		return nil, models.NewNotFoundError("Comment", id)
	}
	return comment, nil
}

// CreateComment adds a comment. Comments by staff, superusers or the post
// owner are approved immediately; others wait for moderation.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (comment *models.Comment, err error) {
	ctx, span := observability.StartSpan(ctx, "comments", "create", attribute.Int64("post.id", int64(in.PostID)))
	defer func() { observability.EndSpan(span, err) }()

	text, err := validation.ValidateText("Comment", in.Text, maxCommentLen)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	var ownerID uint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		author, err := loadActor(ctx, tx, in.UserID)
		if err != nil {
			return err
		}
		post, err := repository.NewPostRepository(tx).GetByID(ctx, in.PostID, 0)
		if err != nil {
			return notFoundAs(err, "Post", in.PostID)
		}
		if !post.IsPublic && post.UserID != author.ID {
			return models.NewNotFoundError("Post", in.PostID)
		}
		ownerID = post.UserID

		comment = &models.Comment{
			PostID:     post.ID,
			UserID:     author.ID,
			Text:       text,
			IsApproved: author.CanModerate() || post.UserID == author.ID,
		}
		if err := repository.NewCommentRepository(tx).Create(ctx, comment); err != nil {
			return err
		}
		comment.User = *author
		return s.counters.CommentCreated(ctx, tx, comment)
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidatePost(ctx, comment.PostID)
	if !comment.IsApproved {
		cache.InvalidatePending(ctx, ownerID)
		s.notifier.PublishBestEffort(ctx, ownerID, notifications.EventCommentNew, map[string]any{
			"comment_id": comment.ID,
			"post_id":    comment.PostID,
		})
	}
	return comment, nil
}

// ApproveComment approves a pending comment. Only the post owner or staff
// may approve; approving an approved comment changes nothing.
func (s *CommentService) ApproveComment(ctx context.Context, actorID, commentID uint) (comment *models.Comment, err error) {
	ctx, span := observability.StartSpan(ctx, "comments", "approve", attribute.Int64("comment.id", int64(commentID)))
	defer func() { observability.EndSpan(span, err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		actor, err := loadActor(ctx, tx, actorID)
		if err != nil {
			return err
		}
		comment, err = loadComment(ctx, tx, commentID)
		if err != nil {
			return err
		}
		if !actor.CanModerate() && comment.Post.UserID != actor.ID {
			return models.NewForbiddenError("Only the post owner can approve comments")
		}
		if comment.IsApproved {
			return nil
		}
		if err := repository.NewCommentRepository(tx).SetApproved(ctx, comment.ID, true); err != nil {
			return err
		}
		comment.IsApproved = true
		_, err = s.counters.CommentApprovalChanged(ctx, tx, comment.PostID)
		return err
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidatePost(ctx, comment.PostID)
	cache.InvalidatePending(ctx, comment.Post.UserID)
	return comment, nil
}

// UpdateComment changes the text. The comment author or the post owner may
// edit, and any edit sends the comment back to moderation.
func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (comment *models.Comment, err error) {
	ctx, span := observability.StartSpan(ctx, "comments", "update", attribute.Int64("comment.id", int64(in.CommentID)))
	defer func() { observability.EndSpan(span, err) }()

	text, err := validation.ValidateText("Comment", in.Text, maxCommentLen)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		actor, err := loadActor(ctx, tx, in.UserID)
		if err != nil {
			return err
		}
		comment, err = loadComment(ctx, tx, in.CommentID)
		if err != nil {
			return err
		}
		if comment.UserID != actor.ID && comment.Post.UserID != actor.ID {
			return models.NewForbiddenError("You can only edit your own comments")
		}
		if err := repository.NewCommentRepository(tx).UpdateText(ctx, comment.ID, text); err != nil {
			return err
		}
		comment.Text = text
		comment.IsApproved = false
		_, err = s.counters.CommentApprovalChanged(ctx, tx, comment.PostID)
		return err
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidatePost(ctx, comment.PostID)
	cache.InvalidatePending(ctx, comment.Post.UserID)
	return comment, nil
}

// DeleteComment removes a comment with its replies and every like on them.
// The comment author, the post owner and staff may delete.
func (s *CommentService) DeleteComment(ctx context.Context, actorID, commentID uint) (err error) {
	ctx, span := observability.StartSpan(ctx, "comments", "delete", attribute.Int64("comment.id", int64(commentID)))
	defer func() { observability.EndSpan(span, err) }()

	var comment *models.Comment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		actor, err := loadActor(ctx, tx, actorID)
		if err != nil {
			return err
		}
		comment, err = loadComment(ctx, tx, commentID)
		if err != nil {
			return err
		}
		if comment.UserID != actor.ID && comment.Post.UserID != actor.ID && !actor.CanModerate() {
			return models.NewForbiddenError("You cannot delete this comment")
		}

		replies := repository.NewReplyRepository(tx)
		likes := repository.NewLikeRepository(tx)
		replyIDs, err := replies.IDsByComment(ctx, comment.ID)
		if err != nil {
			return err
		}
		if err := likes.DeleteForTargets(ctx, models.LikeKindReply, replyIDs); err != nil {
			return err
		}
		if err := likes.DeleteForTargets(ctx, models.LikeKindComment, []uint{comment.ID}); err != nil {
			return err
		}
		if err := replies.DeleteByComment(ctx, comment.ID); err != nil {
			return err
		}
		if err := repository.NewCommentRepository(tx).Delete(ctx, comment.ID); err != nil {
			return err
		}
		return s.counters.CommentDeleted(ctx, tx, comment.PostID, comment.IsApproved)
	})
	if err != nil {
		return err
	}

	cache.InvalidatePost(ctx, comment.PostID)
	if !comment.IsApproved {
		cache.InvalidatePending(ctx, comment.Post.UserID)
	}
	return nil
}

// ListComments returns approved comments with replies. With top set only
// liked comments are returned, most liked first.
func (s *CommentService) ListComments(ctx context.Context, postID, viewerID uint, top bool) ([]*models.Comment, error) {
	post, err := repository.NewPostRepository(s.db).GetByID(ctx, postID, 0)
	if err != nil {
		return nil, notFoundAs(err, "Post", postID)
	}
	if !post.IsPublic && post.UserID != viewerID {
		return nil, models.NewNotFoundError("Post", postID)
	}
	return repository.NewCommentRepository(s.db).ListApproved(ctx, postID, viewerID, top)
}

// PendingComments lists comments awaiting the owner's approval, newest first.
func (s *CommentService) PendingComments(ctx context.Context, ownerID uint, limit, offset int) ([]*models.Comment, error) {
	return repository.NewCommentRepository(s.db).ListPendingForOwner(ctx, ownerID, limit, offset)
}

// PendingCount is the moderation badge for ownerID.
func (s *CommentService) PendingCount(ctx context.Context, ownerID uint) (int64, error) {
	var count int64
	err := cache.Aside(ctx, cache.PendingCountKey(ownerID), &count, cache.PendingCountTTL, func() error {
		var err error
		count, err = repository.NewCommentRepository(s.db).CountPendingForOwner(ctx, ownerID)
		return err
	})
	return count, err
}
