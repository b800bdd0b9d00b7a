package models

import (
	"fmt"
	"strings"
	"time"
)

// LikeKind names the entity type a like points at.
type LikeKind string

const (
	LikeKindPost    LikeKind = "post"
	LikeKindComment LikeKind = "comment"
	LikeKindReply   LikeKind = "reply"
)

// ParseLikeKind normalizes a kind coming from a URL. "replay" is accepted
// for older clients.
func ParseLikeKind(raw string) (LikeKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "post":
		return LikeKindPost, nil
	case "comment":
		return LikeKindComment, nil
	case "reply", "replay":
		return LikeKindReply, nil
	}
	return "", NewNotFoundError("like target kind", raw)
}

// Table returns the table holding entities of this kind.
func (k LikeKind) Table() string {
	switch k {
	case LikeKindPost:
		return "posts"
	case LikeKindComment:
		return "comments"
	case LikeKindReply:
		return "replies"
	}
	return ""
}

// LikeTarget identifies one likeable entity.
type LikeTarget struct {
	Kind LikeKind `json:"kind"`
	ID   uint     `json:"id"`
}

func (t LikeTarget) String() string {
	return fmt.Sprintf("%s:%d", t.Kind, t.ID)
}

// HasLikeCounter is implemented by every entity that carries a likes_count.
type HasLikeCounter interface {
	LikeTarget() LikeTarget
	CurrentLikes() int
	OwnerID() uint
}

// Like is one user's like on one target. (UserID, TargetKind, TargetID) is unique.
type Like struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_likes_user_target,priority:1" json:"user_id"`
	TargetKind LikeKind  `gorm:"size:16;not null;uniqueIndex:idx_likes_user_target,priority:2;index:idx_likes_target,priority:1" json:"target_kind"`
	TargetID   uint      `gorm:"not null;uniqueIndex:idx_likes_user_target,priority:3;index:idx_likes_target,priority:2" json:"target_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Target returns the like's target.
func (l *Like) Target() LikeTarget {
	return LikeTarget{Kind: l.TargetKind, ID: l.TargetID}
}
