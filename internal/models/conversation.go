package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a private two-party thread.
type Conversation struct {
	ID uuid.UUID `gorm:"primaryKey" json:"id"`
	// PairKey is "<lower user id>:<higher user id>" and keeps one conversation per pair.
	PairKey            string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	Participants       []User    `gorm:"many2many:conversation_participants" json:"participants"`
	LastMessageCreated time.Time `gorm:"column:lastmessage_created;index" json:"lastmessage_created"`
	IsSeen             bool      `gorm:"not null" json:"is_seen"`
	LastSenderID       *uint     `json:"last_sender_id,omitempty"`
	Messages           []Message `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// BeforeCreate assigns a random id.
func (c *Conversation) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// PairKey builds the canonical key for the conversation between a and b.
func PairKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// HasParticipant reports whether userID takes part in the conversation.
func (c *Conversation) HasParticipant(userID uint) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID uint) *User {
	for i := range c.Participants {
		if c.Participants[i].ID != userID {
			return &c.Participants[i]
		}
	}
	return nil
}

// Message is stored as an opaque payload; see crypto.Cipher.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"not null;index" json:"conversation_id"`
	SenderID       uint      `gorm:"not null;index" json:"sender_id"`
	Sender         *User     `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Text           string    `gorm:"type:text;not null" json:"text"`
	CreatedAt      time.Time `gorm:"index" json:"created"`
}
