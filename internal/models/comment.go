package models

import (
	"time"
)

// Comment is attached to a post. Only approved comments are visible and
// counted in Post.CommentsCount.
type Comment struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	PostID     uint   `gorm:"not null;index" json:"post_id"`
	Post       *Post  `gorm:"foreignKey:PostID" json:"post,omitempty"`
	UserID     uint   `gorm:"not null;index" json:"user_id"`
	User       User   `gorm:"foreignKey:UserID" json:"user"`
	Text       string `gorm:"type:text;not null" json:"text"`
	IsApproved bool   `gorm:"not null;index" json:"is_approved"`
	LikesCount int    `gorm:"not null;default:0" json:"likes_count"`
	// ReplaysCount keeps the column name used by existing clients.
	ReplaysCount int       `gorm:"not null;default:0" json:"replays_count"`
	Replies      []Reply   `gorm:"foreignKey:CommentID" json:"replies,omitempty"`
	IsLiked      bool      `gorm:"->;-:migration" json:"is_liked"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LikeTarget implements HasLikeCounter.
func (c *Comment) LikeTarget() LikeTarget { return LikeTarget{Kind: LikeKindComment, ID: c.ID} }

// CurrentLikes implements HasLikeCounter.
func (c *Comment) CurrentLikes() int { return c.LikesCount }

// OwnerID implements HasLikeCounter.
func (c *Comment) OwnerID() uint { return c.UserID }

// Reply answers a comment.
type Reply struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CommentID  uint      `gorm:"not null;index" json:"comment_id"`
	Comment    *Comment  `gorm:"foreignKey:CommentID" json:"comment,omitempty"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	User       User      `gorm:"foreignKey:UserID" json:"user"`
	Text       string    `gorm:"type:text;not null" json:"text"`
	LikesCount int       `gorm:"not null;default:0" json:"likes_count"`
	IsLiked    bool      `gorm:"->;-:migration" json:"is_liked"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LikeTarget implements HasLikeCounter.
func (r *Reply) LikeTarget() LikeTarget { return LikeTarget{Kind: LikeKindReply, ID: r.ID} }

// CurrentLikes implements HasLikeCounter.
func (r *Reply) CurrentLikes() int { return r.LikesCount }

// OwnerID implements HasLikeCounter.
func (r *Reply) OwnerID() uint { return r.UserID }
