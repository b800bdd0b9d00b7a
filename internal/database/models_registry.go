package database

import "jnestagram/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Country{},
		&models.Profile{},
		&models.Tag{},
		&models.Post{},
		&models.Comment{},
		&models.Reply{},
		&models.Like{},
		&models.Conversation{},
		&models.Message{},
		&models.Feature{},
		&models.LandingPage{},
	}
}
