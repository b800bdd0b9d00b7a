package repository

import (
	"context"
	"errors"
	"strings"

	"jnestagram/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines persistence operations for users and their profiles.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateEmail(ctx context.Context, id uint, email string) error
	SetStaff(ctx context.Context, username string, staff bool) error
	// Search matches username, first or last name, excluding one user.
	Search(ctx context.Context, query string, excludeID uint, limit int) ([]models.User, error)

	// GetOrCreateProfile returns the user's profile, creating an empty one.
	GetOrCreateProfile(ctx context.Context, userID uint) (*models.Profile, error)
	UpdateProfile(ctx context.Context, profile *models.Profile) error
	ListCountries(ctx context.Context) ([]models.Country, error)
	GetCountry(ctx context.Context, id uint) (*models.Country, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Profile.Country").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Preload("Profile.Country").
		Where("username = ? AND is_active = ?", username, true).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", username)
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", email)
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Omit("Profile").Create(user).Error
}

func (r *userRepository) UpdateEmail(ctx context.Context, id uint, email string) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("email", email).Error
}

func (r *userRepository) SetStaff(ctx context.Context, username string, staff bool) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Update("is_staff", staff)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", username)
	}
	return nil
}

func (r *userRepository) Search(ctx context.Context, query string, excludeID uint, limit int) ([]models.User, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	var users []models.User
	err := r.db.WithContext(ctx).
		Preload("Profile").
		Where("is_active = ? AND id <> ?", true, excludeID).
		Where(`LOWER(username) LIKE ? ESCAPE '\' OR LOWER(first_name) LIKE ? ESCAPE '\' OR LOWER(last_name) LIKE ? ESCAPE '\'`, pattern, pattern, pattern).
		Order("username").
		Limit(limit).
		Find(&users).Error
	return users, err
}

func (r *userRepository) GetOrCreateProfile(ctx context.Context, userID uint) (*models.Profile, error) {
	profile := models.Profile{UserID: userID}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Omit("Country").Create(&profile).Error
	if err != nil && !IsUniqueViolation(err) {
		return nil, err
	}
	var stored models.Profile
	if err := r.db.WithContext(ctx).Preload("Country").Where("user_id = ?", userID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Model(profile).
		Select("phone_number", "country_id", "avatar", "bio").
		Updates(profile).Error
}

func (r *userRepository) ListCountries(ctx context.Context) ([]models.Country, error) {
	var countries []models.Country
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("name").Find(&countries).Error
	return countries, err
}

func (r *userRepository) GetCountry(ctx context.Context, id uint) (*models.Country, error) {
	var country models.Country
	if err := r.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&country).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Country", id)
		}
		return nil, err
	}
	return &country, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes wildcard characters in s match literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
