package featureflags

import (
	"context"
	"strings"

	"jnestagram/internal/cache"
	"jnestagram/internal/models"
	"jnestagram/internal/repository"
)

// Gate combines the environment flags with the features and landing pages
// stored in the database. Environment values win.
type Gate struct {
	repo    repository.FeatureRepository
	env     *Manager
	staging bool
}

// NewGate returns a Gate evaluating database features for the staging or
// production stage.
func NewGate(repo repository.FeatureRepository, env *Manager, staging bool) *Gate {
	return &Gate{repo: repo, env: env, staging: staging}
}

func (g *Gate) features(ctx context.Context) ([]models.Feature, error) {
	var features []models.Feature
	err := cache.Aside(ctx, cache.FeaturesKey, &features, cache.FeaturesTTL, func() error {
		var err error
		features, err = g.repo.ListFeatures(ctx)
		return err
	})
	return features, err
}

// Enabled reports whether feature name is on for userID. Unknown features are off.
func (g *Gate) Enabled(ctx context.Context, name string, userID uint) (bool, error) {
	if enabled, defined := g.env.Lookup(name, userID); defined {
		return enabled, nil
	}
	features, err := g.features(ctx)
	if err != nil {
		return false, err
	}
	for i := range features {
		if strings.EqualFold(features[i].Name, name) {
			return features[i].EnabledFor(g.staging), nil
		}
	}
	return false, nil
}

// Snapshot evaluates every known feature for userID.
func (g *Gate) Snapshot(ctx context.Context, userID uint) (map[string]bool, error) {
	features, err := g.features(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(features))
	for i := range features {
		out[normalize(features[i].Name)] = features[i].EnabledFor(g.staging)
	}
	for name := range g.env.flags {
		out[name] = g.env.Enabled(name, userID)
	}
	return out, nil
}

// SaveFeature creates or updates a feature by name.
func (g *Gate) SaveFeature(ctx context.Context, f *models.Feature) error {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return models.NewValidationError("Feature name is required")
	}
	if err := g.repo.SaveFeature(ctx, f); err != nil {
		return err
	}
	cache.Invalidate(ctx, cache.FeaturesKey)
	return nil
}

// ListFeatures returns the stored features.
func (g *Gate) ListFeatures(ctx context.Context) ([]models.Feature, error) {
	return g.repo.ListFeatures(ctx)
}

// LandingPageActive reports whether the named landing page is switched on.
func (g *Gate) LandingPageActive(ctx context.Context, name string) (bool, error) {
	var active bool
	err := cache.Aside(ctx, cache.LandingKey(name), &active, cache.LandingTTL, func() error {
		var err error
		active, err = g.repo.LandingPageActive(ctx, name)
		return err
	})
	return active, err
}

// MaintenanceActive reports whether the maintenance landing page is on.
func (g *Gate) MaintenanceActive(ctx context.Context) (bool, error) {
	return g.LandingPageActive(ctx, models.MaintenancePage)
}

// SetLandingPage switches a landing page, creating it when missing.
func (g *Gate) SetLandingPage(ctx context.Context, name string, active bool) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.NewValidationError("Landing page name is required")
	}
	if err := g.repo.SetLandingPage(ctx, name, active); err != nil {
		return err
	}
	cache.Invalidate(ctx, cache.LandingKey(name))
	return nil
}

// ListLandingPages returns all landing pages.
func (g *Gate) ListLandingPages(ctx context.Context) ([]models.LandingPage, error) {
	return g.repo.ListLandingPages(ctx)
}
