package featureflags

import (
	"context"
	"testing"

	"jnestagram/internal/cache"
	"jnestagram/internal/models"
	"jnestagram/internal/repository"
	"jnestagram/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGate(t *testing.T, env string, staging bool) *Gate {
	t.Helper()
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	db := testutil.NewDB(t)
	return NewGate(repository.NewFeatureRepository(db), NewManager(env), staging)
}

func TestGate_StageSelectsColumn(t *testing.T) {
	ctx := context.Background()
	for _, staging := range []bool{true, false} {
		g := newGate(t, "", staging)
		require.NoError(t, g.SaveFeature(ctx, &models.Feature{Name: "stories", StagingEnabled: true}))

		enabled, err := g.Enabled(ctx, "stories", 1)
		require.NoError(t, err)
		assert.Equal(t, staging, enabled)

		enabled, err = g.Enabled(ctx, "unknown", 1)
		require.NoError(t, err)
		assert.False(t, enabled)
	}
}

func TestGate_EnvironmentOverridesDatabase(t *testing.T) {
	ctx := context.Background()
	g := newGate(t, "stories=off,reels=on", false)
	require.NoError(t, g.SaveFeature(ctx, &models.Feature{Name: "stories", ProductionEnabled: true}))

	enabled, err := g.Enabled(ctx, "stories", 1)
	require.NoError(t, err)
	assert.False(t, enabled)

	snap, err := g.Snapshot(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"stories": false, "reels": true}, snap)
}

func TestGate_SaveFeatureInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	g := newGate(t, "", false)
	require.NoError(t, g.SaveFeature(ctx, &models.Feature{Name: "stories"}))

	enabled, err := g.Enabled(ctx, "stories", 1)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, g.SaveFeature(ctx, &models.Feature{Name: "stories", ProductionEnabled: true}))
	enabled, err = g.Enabled(ctx, "stories", 1)
	require.NoError(t, err)
	assert.True(t, enabled)

	features, err := g.ListFeatures(ctx)
	require.NoError(t, err)
	assert.Len(t, features, 1)

	assert.True(t, models.IsCode(g.SaveFeature(ctx, &models.Feature{Name: "  "}), models.CodeValidation))
}

func TestGate_MaintenanceLandingPage(t *testing.T) {
	ctx := context.Background()
	g := newGate(t, "", false)

	active, err := g.MaintenanceActive(ctx)
	require.NoError(t, err)
	assert.False(t, active, "missing page means off")

	require.NoError(t, g.SetLandingPage(ctx, models.MaintenancePage, true))
	active, err = g.MaintenanceActive(ctx)
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, g.SetLandingPage(ctx, models.MaintenancePage, false))
	active, err = g.MaintenanceActive(ctx)
	require.NoError(t, err)
	assert.False(t, active)

	pages, err := g.ListLandingPages(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, models.MaintenancePage, pages[0].Name)
}
