package service

import (
	"context"

	"jnestagram/internal/cache"
	"jnestagram/internal/counters"
	"jnestagram/internal/models"
	"jnestagram/internal/observability"
	"jnestagram/internal/repository"
	"jnestagram/internal/validation"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const maxReplyLen = 1000

// ReplyService manages replies to comments.
type ReplyService struct {
	db       *gorm.DB
	counters *counters.Engine
}

func NewReplyService(db *gorm.DB, engine *counters.Engine) *ReplyService {
	return &ReplyService{db: db, counters: engine}
}

// CreateReply answers a comment and returns the reply with the comment's new
// replays_count.
func (s *ReplyService) CreateReply(ctx context.Context, userID, commentID uint, text string) (reply *models.Reply, replays int, err error) {
	ctx, span := observability.StartSpan(ctx, "replies", "create", attribute.Int64("comment.id", int64(commentID)))
	defer func() { observability.EndSpan(span, err) }()

	text, err = validation.ValidateText("Reply", text, maxReplyLen)
	if err != nil {
		return nil, 0, models.NewValidationError(err.Error())
	}

	var postID uint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		author, err := loadActor(ctx, tx, userID)
		if err != nil {
			return err
		}
		comment, err := loadComment(ctx, tx, commentID)
		if err != nil {
			return err
		}
		postID = comment.PostID

		reply = &models.Reply{CommentID: comment.ID, UserID: author.ID, Text: text}
		if err := repository.NewReplyRepository(tx).Create(ctx, reply); err != nil {
			return err
		}
		reply.User = *author
		replays, err = s.counters.ReplyCreated(ctx, tx, reply)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	cache.InvalidatePost(ctx, postID)
	return reply, replays, nil
}

// DeleteReply removes a reply and its likes. Only the reply author or the
// owner of the post may delete.
func (s *ReplyService) DeleteReply(ctx context.Context, actorID, replyID uint) (err error) {
	ctx, span := observability.StartSpan(ctx, "replies", "delete", attribute.Int64("reply.id", int64(replyID)))
	defer func() { observability.EndSpan(span, err) }()

	var postID uint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		actor, err := loadActor(ctx, tx, actorID)
		if err != nil {
			return err
		}
		replies := repository.NewReplyRepository(tx)
		reply, err := replies.GetByID(ctx, replyID)
		if err != nil {
			return notFoundAs(err, "Reply", replyID)
		}
		if reply.Comment == nil || reply.Comment.Post == nil {
			return models.NewNotFoundError("Reply", replyID)
		}
		postID = reply.Comment.PostID
		if reply.UserID != actor.ID && reply.Comment.Post.UserID != actor.ID {
			return models.NewForbiddenError("You cannot delete this reply")
		}

		if err := repository.NewLikeRepository(tx).DeleteForTargets(ctx, models.LikeKindReply, []uint{reply.ID}); err != nil {
			return err
		}
		if err := replies.Delete(ctx, reply.ID); err != nil {
			return err
		}
		return s.counters.ReplyDeleted(ctx, tx, reply)
	})
	if err != nil {
		return err
	}
	cache.InvalidatePost(ctx, postID)
	return nil
}

// ListReplies returns a comment's replies, oldest first.
func (s *ReplyService) ListReplies(ctx context.Context, commentID, viewerID uint) ([]*models.Reply, error) {
	if _, err := loadComment(ctx, s.db.WithContext(ctx), commentID); err != nil {
		return nil, err
	}
	return repository.NewReplyRepository(s.db).ListByComment(ctx, commentID, viewerID)
}
