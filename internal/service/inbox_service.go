package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"jnestagram/internal/cache"
	"jnestagram/internal/crypto"
	"jnestagram/internal/models"
	"jnestagram/internal/notifications"
	"jnestagram/internal/observability"
	"jnestagram/internal/repository"
	"jnestagram/internal/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const (
	maxMessageLen       = 5000
	conversationsLimit  = 100
	defaultMessageLimit = 500
	userSearchLimit     = 20
)

// InboxService handles private two-party conversations and the unread badge.
type InboxService struct {
	db       *gorm.DB
	cipher   crypto.Cipher
	notifier *notifications.Notifier
	now      func() time.Time
	// messageLimit caps how many of the newest messages an opened
	// conversation returns.
	messageLimit int
}

// SendMessageInput addresses a message either to a user or to an existing
// conversation. ConversationID wins when both are set.
type SendMessageInput struct {
	SenderID       uint
	RecipientID    uint
	ConversationID uuid.UUID
	Text           string
}

// ConversationSummary is one row of the inbox list.
type ConversationSummary struct {
	ID                 uuid.UUID       `json:"id"`
	Other              *models.User    `json:"other"`
	LastMessage        *models.Message `json:"last_message,omitempty"`
	LastMessageCreated time.Time       `json:"lastmessage_created"`
	IsSeen             bool            `json:"is_seen"`
	// Unread is true when the latest message was sent by the other participant
	// and has not been seen yet.
	Unread bool `json:"unread"`
}

// ConversationView is an opened conversation.
type ConversationView struct {
	Conversation *models.Conversation `json:"conversation"`
	Other        *models.User         `json:"other"`
	Messages     []models.Message     `json:"messages"`
}

// NewInboxService returns an InboxService. A nil cipher stores plain text.
func NewInboxService(db *gorm.DB, cipher crypto.Cipher, notifier *notifications.Notifier) *InboxService {
	if cipher == nil {
		cipher = crypto.Plaintext{}
	}
	return &InboxService{
		db:           db,
		cipher:       cipher,
		notifier:     notifier,
		now:          time.Now,
		messageLimit: defaultMessageLimit,
	}
}

func isUnread(c *models.Conversation, viewerID uint) bool {
	return !c.IsSeen && c.LastSenderID != nil && *c.LastSenderID != viewerID
}

// participantConversation loads a conversation the viewer takes part in.
// Conversations of other users are reported as missing.
func participantConversation(ctx context.Context, db *gorm.DB, id uuid.UUID, viewerID uint) (*models.Conversation, error) {
	conv, err := repository.NewConversationRepository(db).GetByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, "Conversation", id)
	}
	if !conv.HasParticipant(viewerID) {
		return nil, models.NewNotFoundError("Conversation", id)
	}
	return conv, nil
}

// pairConversation returns the conversation between sender and recipient,
// creating it when missing. A concurrent creation of the same pair loses on
// the pair_key unique index and the winner's row is read back.
func pairConversation(ctx context.Context, tx *gorm.DB, sender, recipient *models.User) (*models.Conversation, error) {
	convs := repository.NewConversationRepository(tx)
	conv, err := convs.FindByPair(ctx, sender.ID, recipient.ID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conv = &models.Conversation{
		PairKey:      models.PairKey(sender.ID, recipient.ID),
		Participants: []models.User{*sender, *recipient},
		IsSeen:       true,
	}
	// The savepoint keeps the outer transaction usable after a duplicate key.
	err = tx.Transaction(func(sp *gorm.DB) error {
		return repository.NewConversationRepository(sp).Create(ctx, conv)
	})
	if err == nil {
		return conv, nil
	}
	if !repository.IsUniqueViolation(err) {
		return nil, err
	}
	return convs.FindByPair(ctx, sender.ID, recipient.ID)
}

// SendMessage appends a message and marks the conversation unseen for the
// recipient. The returned message carries the plain text.
func (s *InboxService) SendMessage(ctx context.Context, in SendMessageInput) (msg *models.Message, conv *models.Conversation, err error) {
	ctx, span := observability.StartSpan(ctx, "inbox", "send_message")
	defer func() { observability.EndSpan(span, err) }()

	text, err := validation.ValidateText("Message", in.Text, maxMessageLen)
	if err != nil {
		return nil, nil, models.NewValidationError(err.Error())
	}
	payload, err := s.cipher.Seal(text)
	if err != nil {
		return nil, nil, fmt.Errorf("seal message: %w", err)
	}

	var recipientID uint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sender, err := loadActor(ctx, tx, in.SenderID)
		if err != nil {
			return err
		}

		if in.ConversationID != uuid.Nil {
			conv, err = participantConversation(ctx, tx, in.ConversationID, sender.ID)
			if err != nil {
				return err
			}
			other := conv.OtherParticipant(sender.ID)
			if other == nil {
				return models.NewNotFoundError("Conversation", in.ConversationID)
			}
			recipientID = other.ID
		} else {
			if in.RecipientID == 0 || in.RecipientID == sender.ID {
				return models.NewValidationError("Choose another user to message")
			}
			recipient, err := repository.NewUserRepository(tx).GetByID(ctx, in.RecipientID)
			if err != nil {
				return err
			}
			if !recipient.IsActive {
				return models.NewNotFoundError("User", in.RecipientID)
			}
			conv, err = pairConversation(ctx, tx, sender, recipient)
			if err != nil {
				return err
			}
			recipientID = recipient.ID
		}

		convs := repository.NewConversationRepository(tx)
		msg = &models.Message{ConversationID: conv.ID, SenderID: sender.ID, Text: payload, CreatedAt: s.now()}
		if err := convs.AddMessage(ctx, msg); err != nil {
			return err
		}
		if err := convs.Touch(ctx, conv.ID, sender.ID, msg.CreatedAt); err != nil {
			return err
		}
		conv.LastMessageCreated = msg.CreatedAt
		conv.IsSeen = false
		conv.LastSenderID = &sender.ID
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	msg.Text = text
	observability.MessagesSent.Inc()
	cache.InvalidateUnread(ctx, in.SenderID, recipientID)
	s.notifier.PublishBestEffort(ctx, recipientID, notifications.EventMessageNew, map[string]any{
		"conversation_id": conv.ID,
		"message_id":      msg.ID,
		"sender_id":       in.SenderID,
	})
	span.SetAttributes(attribute.String("conversation.id", conv.ID.String()))
	return msg, conv, nil
}

// MarkSeen marks the conversation seen when the latest message came from
// the other participant. It reports whether anything changed.
func (s *InboxService) MarkSeen(ctx context.Context, conversationID uuid.UUID, viewerID uint) (bool, error) {
	if _, err := participantConversation(ctx, s.db, conversationID, viewerID); err != nil {
		return false, err
	}
	changed, err := repository.NewConversationRepository(s.db).MarkSeen(ctx, conversationID, viewerID)
	if err != nil {
		return false, err
	}
	if changed {
		cache.InvalidateUnread(ctx, viewerID)
	}
	return changed, nil
}

// OpenConversation returns the conversation with its newest messages, oldest
// first, and marks it seen for the viewer.
func (s *InboxService) OpenConversation(ctx context.Context, conversationID uuid.UUID, viewerID uint) (*ConversationView, error) {
	conv, err := participantConversation(ctx, s.db, conversationID, viewerID)
	if err != nil {
		return nil, err
	}
	msgs, err := repository.NewConversationRepository(s.db).ListMessages(ctx, conv.ID, s.messageLimit, 0)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		if msgs[i].Text, err = s.open(ctx, msgs[i]); err != nil {
			return nil, err
		}
	}

	if _, err := s.MarkSeen(ctx, conv.ID, viewerID); err != nil {
		return nil, err
	}
	if isUnread(conv, viewerID) {
		conv.IsSeen = true
	}
	return &ConversationView{Conversation: conv, Other: conv.OtherParticipant(viewerID), Messages: msgs}, nil
}

func (s *InboxService) open(ctx context.Context, m models.Message) (string, error) {
	text, err := s.cipher.Open(m.Text)
	if err != nil {
		observability.GlobalLogger.ErrorContext(ctx, "message decrypt failed",
			slog.Uint64("message_id", uint64(m.ID)),
			slog.String("error", err.Error()),
		)
		return "", models.NewInternalError(err)
	}
	return text, nil
}

// UnreadCount is the inbox badge: conversations whose latest message came
// from someone else and is not seen yet.
func (s *InboxService) UnreadCount(ctx context.Context, viewerID uint) (int64, error) {
	var count int64
	err := cache.Aside(ctx, cache.UnreadCountKey(viewerID), &count, cache.UnreadCountTTL, func() error {
		var err error
		count, err = repository.NewConversationRepository(s.db).CountUnread(ctx, viewerID)
		return err
	})
	return count, err
}

// ListConversations returns the viewer's conversations, most recent first.
func (s *InboxService) ListConversations(ctx context.Context, viewerID uint) ([]ConversationSummary, error) {
	convs := repository.NewConversationRepository(s.db)
	list, err := convs.ListForUser(ctx, viewerID, conversationsLimit, 0)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(list))
	for i, c := range list {
		ids[i] = c.ID
	}
	last, err := convs.LastMessages(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]ConversationSummary, 0, len(list))
	for _, c := range list {
		summary := ConversationSummary{
			ID:                 c.ID,
			Other:              c.OtherParticipant(viewerID),
			LastMessageCreated: c.LastMessageCreated,
			IsSeen:             c.IsSeen,
			Unread:             isUnread(c, viewerID),
		}
		if m, ok := last[c.ID]; ok {
			if m.Text, err = s.open(ctx, m); err != nil {
				return nil, err
			}
			summary.LastMessage = &m
		}
		out = append(out, summary)
	}
	return out, nil
}

// SearchUsers finds people to message by username or real name.
func (s *InboxService) SearchUsers(ctx context.Context, query string, viewerID uint) ([]models.User, error) {
	if strings.TrimSpace(query) == "" {
		return []models.User{}, nil
	}
	return repository.NewUserRepository(s.db).Search(ctx, query, viewerID, userSearchLimit)
}
