// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"
)

// User represents an account. Staff and superusers can moderate any comment.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"uniqueIndex;size:150;not null" json:"username"`
	Email       string    `gorm:"uniqueIndex;not null" json:"email,omitempty"`
	Password    string    `gorm:"not null" json:"-"`
	FirstName   string    `gorm:"size:150" json:"first_name"`
	LastName    string    `gorm:"size:150" json:"last_name"`
	IsStaff     bool      `gorm:"not null;default:false" json:"is_staff"`
	IsSuperuser bool      `gorm:"not null;default:false" json:"-"`
	IsActive    bool      `gorm:"not null" json:"-"`
	Profile     *Profile  `gorm:"foreignKey:UserID" json:"profile,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CanModerate reports whether the user may moderate content they do not own.
func (u *User) CanModerate() bool {
	return u.IsStaff || u.IsSuperuser
}

// RealName joins first and last name, falling back to the username.
func (u *User) RealName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Profile holds the public details attached to a user.
type Profile struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	PhoneNumber *int64    `gorm:"uniqueIndex" json:"phone_number,omitempty"`
	CountryID   *uint     `gorm:"index" json:"country_id,omitempty"`
	Country     *Country  `gorm:"foreignKey:CountryID" json:"country,omitempty"`
	Avatar      string    `json:"avatar"`
	Bio         string    `gorm:"size:500" json:"bio"`
	Verified    bool      `gorm:"not null;default:false" json:"verified"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Country is a selectable profile country.
type Country struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"size:100;not null" json:"name"`
	Abbr     string `gorm:"size:10" json:"abbr"`
	IsActive bool   `gorm:"not null" json:"is_active"`
}
