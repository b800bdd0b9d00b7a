// Package bootstrap prepares the database and cache before the API starts.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"jnestagram/internal/cache"
	"jnestagram/internal/config"
	"jnestagram/internal/database"
	"jnestagram/internal/models"
	"jnestagram/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// ApplyCatalogue loads the tag, country and landing page catalogue.
	ApplyCatalogue bool
}

// InitRuntime connects to the database and Redis, then applies the
// development bootstrap steps. The Redis client is nil when unreachable.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if opts.ApplyCatalogue {
		catalogue, err := seed.LoadCatalogue()
		if err != nil {
			return nil, nil, err
		}
		if err := catalogue.Apply(context.Background(), db); err != nil {
			return nil, nil, fmt.Errorf("failed to apply catalogue: %w", err)
		}
	}

	if err := EnsureDevRoot(cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development superuser: %w", err)
	}
	return db, r, nil
}

// EnsureDevRoot creates or promotes the development superuser named by
// DEV_ROOT_USERNAME. It does nothing outside development or when unset.
func EnsureDevRoot(cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	username := strings.TrimSpace(cfg.DevRootUsername)
	if !strings.EqualFold(cfg.Env, "development") || username == "" {
		return nil
	}
	if cfg.DevRootPassword == "" {
		return errors.New("DEV_ROOT_PASSWORD must be set when DEV_ROOT_USERNAME is")
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = username + "@jnestagram.local"
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var root models.User
		findErr := tx.Where("username = ?", username).First(&root).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			hash, err := bcrypt.GenerateFromPassword([]byte(cfg.DevRootPassword), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash root password: %w", err)
			}
			root = models.User{
				Username:    username,
				Email:       email,
				Password:    string(hash),
				IsStaff:     true,
				IsSuperuser: true,
				IsActive:    true,
			}
			if err := tx.Omit("Profile").Create(&root).Error; err != nil {
				return err
			}
			return tx.Create(&models.Profile{UserID: root.ID}).Error
		case findErr != nil:
			return findErr
		default:
			return tx.Model(&root).Updates(map[string]any{
				"is_staff":     true,
				"is_superuser": true,
				"is_active":    true,
			}).Error
		}
	})
	if err != nil {
		return err
	}

	log.Printf("development superuser ensured (%s)", username)
	return nil
}
