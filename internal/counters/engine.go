// Package counters keeps the denormalized likes_count, comments_count and
// replays_count columns in step with the rows they summarize.
//
// Services call the engine explicitly, passing the transaction that made the
// change, so counters commit or roll back together with it.
package counters

import (
	"context"
	"fmt"
	"log/slog"

	"jnestagram/internal/models"
	"jnestagram/internal/observability"
	"jnestagram/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// Counter names used in metrics and sweep reports.
const (
	PostLikes     = "posts.likes_count"
	CommentLikes  = "comments.likes_count"
	ReplyLikes    = "replies.likes_count"
	PostComments  = "posts.comments_count"
	CommentReplies = "comments.replays_count"
)

const (
	strategyRecount   = "recount"
	strategyIncrement = "increment"
	strategyDecrement = "decrement"
)

// Engine applies counter updates for lifecycle events.
type Engine struct {
	repos func(*gorm.DB) repository.CounterRepository
}

// New returns an Engine backed by the SQL counter repository.
func New() *Engine {
	return &Engine{repos: repository.NewCounterRepository}
}

// NewWithRepository returns an Engine that uses repos for every transaction.
func NewWithRepository(repos func(*gorm.DB) repository.CounterRepository) *Engine {
	return &Engine{repos: repos}
}

func likesCounter(kind models.LikeKind) string {
	switch kind {
	case models.LikeKindPost:
		return PostLikes
	case models.LikeKindComment:
		return CommentLikes
	}
	return ReplyLikes
}

func record(counter, strategy string) {
	observability.CounterUpdates.WithLabelValues(counter, strategy).Inc()
}

// LikeAdded recounts the target's likes and returns the stored value.
func (e *Engine) LikeAdded(ctx context.Context, tx *gorm.DB, target models.LikeTarget) (int, error) {
	return e.recountLikes(ctx, tx, target)
}

// LikeRemoved recounts the target's likes and returns the stored value.
func (e *Engine) LikeRemoved(ctx context.Context, tx *gorm.DB, target models.LikeTarget) (int, error) {
	return e.recountLikes(ctx, tx, target)
}

func (e *Engine) recountLikes(ctx context.Context, tx *gorm.DB, target models.LikeTarget) (int, error) {
	n, err := e.repos(tx).RecountLikes(ctx, target)
	if err != nil {
		return 0, err
	}
	record(likesCounter(target.Kind), strategyRecount)
	return n, nil
}

// CommentCreated counts a new comment on its post when it starts approved.
func (e *Engine) CommentCreated(ctx context.Context, tx *gorm.DB, c *models.Comment) error {
	if !c.IsApproved {
		return nil
	}
	if err := e.repos(tx).IncrementComments(ctx, c.PostID); err != nil {
		return fmt.Errorf("increment comments on post %d: %w", c.PostID, err)
	}
	record(PostComments, strategyIncrement)
	return nil
}

// CommentApprovalChanged recounts approved comments on the post. It is also
// the right call after an edit, since edits send comments back to moderation.
func (e *Engine) CommentApprovalChanged(ctx context.Context, tx *gorm.DB, postID uint) (int, error) {
	n, err := e.repos(tx).RecountApprovedComments(ctx, postID)
	if err != nil {
		return 0, err
	}
	record(PostComments, strategyRecount)
	return n, nil
}

// CommentDeleted recounts the post when the deleted comment was approved.
// wasApproved must be read before the delete.
func (e *Engine) CommentDeleted(ctx context.Context, tx *gorm.DB, postID uint, wasApproved bool) error {
	if !wasApproved {
		return nil
	}
	_, err := e.CommentApprovalChanged(ctx, tx, postID)
	return err
}

// ReplyCreated bumps the parent comment and returns its new replays_count.
func (e *Engine) ReplyCreated(ctx context.Context, tx *gorm.DB, r *models.Reply) (int, error) {
	repo := e.repos(tx)
	if err := repo.IncrementReplies(ctx, r.CommentID); err != nil {
		return 0, fmt.Errorf("increment replies on comment %d: %w", r.CommentID, err)
	}
	record(CommentReplies, strategyIncrement)
	return repo.RepliesCount(ctx, r.CommentID)
}

// ReplyDeleted decrements the parent comment, never below zero.
func (e *Engine) ReplyDeleted(ctx context.Context, tx *gorm.DB, r *models.Reply) error {
	if err := e.repos(tx).DecrementReplies(ctx, r.CommentID); err != nil {
		return fmt.Errorf("decrement replies on comment %d: %w", r.CommentID, err)
	}
	record(CommentReplies, strategyDecrement)
	return nil
}

// Report maps counter names to the number of rows a sweep corrected.
type Report map[string]int64

// Total is the number of corrected rows across all counters.
func (r Report) Total() int64 {
	var total int64
	for _, n := range r {
		total += n
	}
	return total
}

// RecountAll fixes drift in every counter column. Each counter is swept in
// its own statement, so a failure leaves earlier corrections in place.
func (e *Engine) RecountAll(ctx context.Context, db *gorm.DB) (report Report, err error) {
	ctx, span := observability.StartSpan(ctx, "counters", "recount_all")
	defer func() { observability.EndSpan(span, err) }()

	repo := e.repos(db)
	report = Report{}

	sweeps := []struct {
		counter string
		run     func(context.Context) (int64, error)
	}{
		{PostLikes, func(ctx context.Context) (int64, error) { return repo.SweepLikes(ctx, models.LikeKindPost) }},
		{CommentLikes, func(ctx context.Context) (int64, error) { return repo.SweepLikes(ctx, models.LikeKindComment) }},
		{ReplyLikes, func(ctx context.Context) (int64, error) { return repo.SweepLikes(ctx, models.LikeKindReply) }},
		{PostComments, repo.SweepApprovedComments},
		{CommentReplies, repo.SweepReplies},
	}

	for _, sw := range sweeps {
		n, err := sw.run(ctx)
		if err != nil {
			return report, fmt.Errorf("sweep %s: %w", sw.counter, err)
		}
		report[sw.counter] = n
		if n > 0 {
			observability.CounterDriftCorrections.WithLabelValues(sw.counter).Add(float64(n))
			observability.GlobalLogger.WarnContext(ctx, "counter drift corrected",
				slog.String("counter", sw.counter),
				slog.Int64("rows", n),
			)
		}
		record(sw.counter, strategyRecount)
	}

	span.SetAttributes(attribute.Int64("corrections", report.Total()))
	return report, nil
}
