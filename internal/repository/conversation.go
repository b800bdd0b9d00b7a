package repository

import (
	"context"
	"slices"
	"time"

	"jnestagram/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationRepository defines the interface for inbox data operations
type ConversationRepository interface {
	FindByPair(ctx context.Context, a, b uint) (*models.Conversation, error)
	// Create inserts the conversation and its participant rows. A concurrent
	// create for the same pair fails with a unique violation on pair_key.
	Create(ctx context.Context, conv *models.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	// ListForUser returns the user's conversations, most recent first.
	ListForUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Conversation, error)
	AddMessage(ctx context.Context, msg *models.Message) error
	// Touch records a new message from sender: unseen, stamped at.
	Touch(ctx context.Context, id uuid.UUID, senderID uint, at time.Time) error
	// MarkSeen flips is_seen when the latest message came from someone other
	// than viewer. It reports whether a row changed.
	MarkSeen(ctx context.Context, id uuid.UUID, viewerID uint) (bool, error)
	// ListMessages returns the newest limit messages, oldest first. offset
	// skips that many of the newest messages, paging back in time.
	ListMessages(ctx context.Context, id uuid.UUID, limit, offset int) ([]models.Message, error)
	LastMessages(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Message, error)
	CountUnread(ctx context.Context, viewerID uint) (int64, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) FindByPair(ctx context.Context, a, b uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).Preload("Participants").
		Where("pair_key = ?", models.PairKey(a, b)).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	// Participants are existing users; only the join rows are written.
	return r.db.WithContext(ctx).Omit("Participants.*", "Messages").Create(conv).Error
}

func (r *conversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.WithContext(ctx).Preload("Participants.Profile").First(&conv, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Conversation, error) {
	var convs []*models.Conversation
	err := r.db.WithContext(ctx).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ?", userID).
		Preload("Participants.Profile").
		Order("conversations.lastmessage_created DESC").
		Limit(limit).
		Offset(offset).
		Find(&convs).Error
	return convs, err
}

func (r *conversationRepository) AddMessage(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Omit("Sender").Create(msg).Error
}

func (r *conversationRepository) Touch(ctx context.Context, id uuid.UUID, senderID uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", id).
		Updates(map[string]any{
			"lastmessage_created": at,
			"is_seen":             false,
			"last_sender_id":      senderID,
		}).Error
}

func (r *conversationRepository) MarkSeen(ctx context.Context, id uuid.UUID, viewerID uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ? AND is_seen = ? AND last_sender_id IS NOT NULL AND last_sender_id <> ?", id, false, viewerID).
		Update("is_seen", true)
	return res.RowsAffected > 0, res.Error
}

func (r *conversationRepository) ListMessages(ctx context.Context, id uuid.UUID, limit, offset int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", id).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}

func (r *conversationRepository) LastMessages(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Message, error) {
	out := make(map[uuid.UUID]models.Message, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Where("id IN (?)", r.db.Model(&models.Message{}).
			Select("MAX(id)").
			Where("conversation_id IN ?", ids).
			Group("conversation_id")).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		out[m.ConversationID] = m
	}
	return out, nil
}

func (r *conversationRepository) CountUnread(ctx context.Context, viewerID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ?", viewerID).
		Where("conversations.is_seen = ? AND conversations.last_sender_id IS NOT NULL AND conversations.last_sender_id <> ?", false, viewerID).
		Count(&count).Error
	return count, err
}
