package models

import (
	"time"
)

// Post is a user publication. Posts are never hard-deleted by the API;
// deactivation hides them everywhere.
type Post struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	User          User      `gorm:"foreignKey:UserID" json:"user"`
	Title         string    `gorm:"size:100;not null" json:"title"`
	Body          string    `gorm:"type:text;not null" json:"body"`
	Image         string    `json:"image,omitempty"`
	Tags          []Tag     `gorm:"many2many:post_tags" json:"tags"`
	IsActive      bool      `gorm:"not null;index" json:"is_active"`
	IsPublic      bool      `gorm:"not null" json:"is_public"`
	LikesCount    int       `gorm:"not null;default:0" json:"likes_count"`
	CommentsCount int       `gorm:"not null;default:0" json:"comments_count"`
	// IsLiked is computed per viewer at query time
	IsLiked   bool      `gorm:"->;-:migration" json:"is_liked"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LikeTarget implements HasLikeCounter.
func (p *Post) LikeTarget() LikeTarget { return LikeTarget{Kind: LikeKindPost, ID: p.ID} }

// CurrentLikes implements HasLikeCounter.
func (p *Post) CurrentLikes() int { return p.LikesCount }

// OwnerID implements HasLikeCounter.
func (p *Post) OwnerID() uint { return p.UserID }

// Tag labels posts. Ordering drives the sidebar order.
type Tag struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"size:20;not null" json:"name"`
	Slug     string `gorm:"size:50;uniqueIndex;not null" json:"slug"`
	Ordering *int   `json:"order,omitempty"`
}
