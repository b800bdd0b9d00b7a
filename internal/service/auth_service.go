package service

import (
	"context"
	"strings"
	"time"

	"jnestagram/internal/middleware"
	"jnestagram/internal/models"
	"jnestagram/internal/repository"
	"jnestagram/internal/validation"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const DefaultTokenTTL = 7 * 24 * time.Hour

// AuthService registers users and issues API tokens.
type AuthService struct {
	db       *gorm.DB
	secret   string
	tokenTTL time.Duration
	cost     int
}

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Session is returned by Register and Login.
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func NewAuthService(db *gorm.DB, secret string) *AuthService {
	return &AuthService{db: db, secret: secret, tokenTTL: DefaultTokenTTL, cost: bcrypt.DefaultCost}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password, username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	users := repository.NewUserRepository(s.db)
	if _, err := users.GetByEmail(ctx, email); err == nil {
		return nil, models.NewValidationError("Email is already in use")
	} else if !models.IsCode(err, models.CodeNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := &models.User{
		Username:  username,
		Email:     email,
		Password:  string(hash),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		IsActive:  true,
	}
	if err := users.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, models.NewValidationError("Username or email is already in use")
		}
		return nil, err
	}
	return s.session(user)
}

// Login accepts a username or an email address.
func (s *AuthService) Login(ctx context.Context, login, password string) (*Session, error) {
	login = strings.TrimSpace(login)
	users := repository.NewUserRepository(s.db)

	var (
		user *models.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = users.GetByEmail(ctx, login)
	} else {
		user, err = users.GetByUsername(ctx, login)
	}
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError("Invalid credentials")
		}
		return nil, err
	}
	if !user.IsActive || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return s.session(user)
}

func (s *AuthService) session(user *models.User) (*Session, error) {
	token, err := middleware.IssueToken(s.secret, user.ID, s.tokenTTL)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &Session{Token: token, User: user}, nil
}

// CurrentUser returns the active user behind a token subject.
func (s *AuthService) CurrentUser(ctx context.Context, userID uint) (*models.User, error) {
	return loadActor(ctx, s.db, userID)
}

// SetStaff grants or revokes staff rights, which include comment moderation
// on every post.
func (s *AuthService) SetStaff(ctx context.Context, username string, staff bool) error {
	return repository.NewUserRepository(s.db).SetStaff(ctx, username, staff)
}
