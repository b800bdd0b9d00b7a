package service

import (
	"context"
	"log/slog"
	"strings"

	"jnestagram/internal/media"
	"jnestagram/internal/models"
	"jnestagram/internal/observability"
	"jnestagram/internal/repository"
	"jnestagram/internal/validation"

	"gorm.io/gorm"
)

const (
	DefaultAvatarSize    = 600
	DefaultAvatarQuality = 85

	maxBioLen       = 500
	profilePostsMax = 50
	pendingListMax  = 50
)

// ProfileService manages user profiles and avatars.
type ProfileService struct {
	db            *gorm.DB
	store         *media.Store
	avatarSize    int
	avatarQuality int
}

// UpdateProfileInput carries the editable profile fields. Nil pointers
// clear the optional fields.
type UpdateProfileInput struct {
	UserID      uint
	Email       string
	PhoneNumber *int64
	CountryID   *uint
	Bio         string
}

// OwnProfile is what a signed-in user sees on their profile page.
type OwnProfile struct {
	User            *models.User      `json:"user"`
	Profile         *models.Profile   `json:"profile"`
	Posts           []*models.Post    `json:"posts"`
	PendingComments []*models.Comment `json:"pending_comments"`
}

// PublicProfile is another user's profile page.
type PublicProfile struct {
	User  *models.User   `json:"user"`
	Posts []*models.Post `json:"posts"`
}

// NewProfileService returns a ProfileService. Zero avatar settings use the
// 600px, quality 85 defaults.
func NewProfileService(db *gorm.DB, store *media.Store, avatarSize, avatarQuality int) *ProfileService {
	if avatarSize <= 0 {
		avatarSize = DefaultAvatarSize
	}
	if avatarQuality <= 0 || avatarQuality > 100 {
		avatarQuality = DefaultAvatarQuality
	}
	return &ProfileService{db: db, store: store, avatarSize: avatarSize, avatarQuality: avatarQuality}
}

// OwnProfile returns the user's profile, creating it on first access, with
// their posts and the comments waiting for their approval.
func (s *ProfileService) OwnProfile(ctx context.Context, userID uint) (*OwnProfile, error) {
	user, err := loadActor(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	profile, err := repository.NewUserRepository(s.db).GetOrCreateProfile(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	posts, err := repository.NewPostRepository(s.db).ListByUser(ctx, user.ID, user.ID, true, profilePostsMax, 0)
	if err != nil {
		return nil, err
	}
	pending, err := repository.NewCommentRepository(s.db).ListPendingForOwner(ctx, user.ID, pendingListMax, 0)
	if err != nil {
		return nil, err
	}
	user.Profile = profile
	return &OwnProfile{User: user, Profile: profile, Posts: posts, PendingComments: pending}, nil
}

// PublicProfile returns an active user's public page.
func (s *ProfileService) PublicProfile(ctx context.Context, username string, viewerID uint) (*PublicProfile, error) {
	user, err := repository.NewUserRepository(s.db).GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	posts, err := repository.NewPostRepository(s.db).ListByUser(ctx, user.ID, viewerID, user.ID == viewerID, profilePostsMax, 0)
	if err != nil {
		return nil, err
	}
	user.Email = ""
	return &PublicProfile{User: user, Posts: posts}, nil
}

func (s *ProfileService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.Profile, error) {
	email := strings.TrimSpace(in.Email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	bio := strings.TrimSpace(in.Bio)
	if len([]rune(bio)) > maxBioLen {
		return nil, models.NewValidationError("Bio too long (max 500 characters)")
	}
	if in.PhoneNumber != nil && *in.PhoneNumber <= 0 {
		return nil, models.NewValidationError("Invalid phone number")
	}

	var profile *models.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := repository.NewUserRepository(tx)
		user, err := loadActor(ctx, tx, in.UserID)
		if err != nil {
			return err
		}
		if !strings.EqualFold(user.Email, email) {
			existing, err := users.GetByEmail(ctx, email)
			if err == nil && existing.ID != user.ID {
				return models.NewValidationError("Email is already in use")
			}
			if err != nil && !models.IsCode(err, models.CodeNotFound) {
				return err
			}
		}
		if in.CountryID != nil {
			if _, err := users.GetCountry(ctx, *in.CountryID); err != nil {
				if models.IsCode(err, models.CodeNotFound) {
					return models.NewValidationError("Unknown country")
				}
				return err
			}
		}

		if err := users.UpdateEmail(ctx, user.ID, email); err != nil {
			return uniqueAsValidation(err, "Email is already in use")
		}
		profile, err = users.GetOrCreateProfile(ctx, user.ID)
		if err != nil {
			return err
		}
		profile.PhoneNumber = in.PhoneNumber
		profile.CountryID = in.CountryID
		profile.Country = nil
		profile.Bio = bio
		// The savepoint keeps the transaction usable if the phone is taken.
		return tx.Transaction(func(sp *gorm.DB) error {
			return uniqueAsValidation(repository.NewUserRepository(sp).UpdateProfile(ctx, profile), "Phone number is already in use")
		})
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func uniqueAsValidation(err error, message string) error {
	if repository.IsUniqueViolation(err) {
		return models.NewValidationError(message)
	}
	return err
}

// UploadAvatar resizes the image to fit the avatar box, stores it as WebP
// and replaces the previous avatar file.
func (s *ProfileService) UploadAvatar(ctx context.Context, userID uint, content []byte) (*models.Profile, error) {
	if s.store == nil {
		return nil, models.NewValidationError("Image uploads are disabled")
	}
	if _, err := loadActor(ctx, s.db, userID); err != nil {
		return nil, err
	}
	rel, err := s.store.Save("avatars", content, s.avatarSize, s.avatarQuality)
	if err != nil {
		return nil, err
	}

	users := repository.NewUserRepository(s.db)
	profile, err := users.GetOrCreateProfile(ctx, userID)
	if err == nil {
		old := profile.Avatar
		profile.Avatar = rel
		if err = users.UpdateProfile(ctx, profile); err == nil {
			s.remove(ctx, old)
			return profile, nil
		}
	}
	s.remove(ctx, rel)
	return nil, err
}

func (s *ProfileService) remove(ctx context.Context, rel string) {
	if err := s.store.Remove(rel); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "failed to remove avatar",
			slog.String("path", rel),
			slog.String("error", err.Error()),
		)
	}
}

// Countries lists the selectable countries.
func (s *ProfileService) Countries(ctx context.Context) ([]models.Country, error) {
	return repository.NewUserRepository(s.db).ListCountries(ctx)
}
