// Package repository provides data access layer implementations for the application.
package repository

import (
	"errors"
	"fmt"

	"jnestagram/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation,
// whether or not the dialector translated it.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// likedSelect returns a select list adding the viewer's is_liked flag for
// rows of table, which hold targets of kind. Anonymous viewers get no flag.
func likedSelect(db *gorm.DB, table string, kind models.LikeKind, viewerID uint) *gorm.DB {
	if viewerID == 0 {
		return db.Select(table + ".*")
	}
	return db.Select(
		fmt.Sprintf("%[1]s.*, EXISTS(SELECT 1 FROM likes WHERE likes.target_kind = ? AND likes.target_id = %[1]s.id AND likes.user_id = ?) AS is_liked", table),
		kind, viewerID,
	)
}
