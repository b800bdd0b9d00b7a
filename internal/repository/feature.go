package repository

import (
	"context"
	"errors"

	"jnestagram/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FeatureRepository stores feature toggles and landing pages.
type FeatureRepository interface {
	ListFeatures(ctx context.Context) ([]models.Feature, error)
	GetFeature(ctx context.Context, name string) (*models.Feature, error)
	SaveFeature(ctx context.Context, feature *models.Feature) error
	ListLandingPages(ctx context.Context) ([]models.LandingPage, error)
	// LandingPageActive reports false for unknown pages.
	LandingPageActive(ctx context.Context, name string) (bool, error)
	SetLandingPage(ctx context.Context, name string, active bool) error
}

type featureRepository struct {
	db *gorm.DB
}

// NewFeatureRepository creates a new FeatureRepository
func NewFeatureRepository(db *gorm.DB) FeatureRepository {
	return &featureRepository{db: db}
}

func (r *featureRepository) ListFeatures(ctx context.Context) ([]models.Feature, error) {
	var features []models.Feature
	err := r.db.WithContext(ctx).Order("name").Find(&features).Error
	return features, err
}

func (r *featureRepository) GetFeature(ctx context.Context, name string) (*models.Feature, error) {
	var feature models.Feature
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&feature).Error; err != nil {
		return nil, err
	}
	return &feature, nil
}

func (r *featureRepository) SaveFeature(ctx context.Context, feature *models.Feature) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"developer", "staging_enabled", "production_enabled", "updated_at"}),
	}).Create(feature).Error
}

func (r *featureRepository) ListLandingPages(ctx context.Context) ([]models.LandingPage, error) {
	var pages []models.LandingPage
	err := r.db.WithContext(ctx).Order("name").Find(&pages).Error
	return pages, err
}

func (r *featureRepository) LandingPageActive(ctx context.Context, name string) (bool, error) {
	var page models.LandingPage
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&page).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return page.IsActive, nil
}

func (r *featureRepository) SetLandingPage(ctx context.Context, name string, active bool) error {
	page := models.LandingPage{Name: name, IsActive: active}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_active", "updated_at"}),
	}).Create(&page).Error
}
