package main

import (
	"bytes"
	"context"
	"testing"

	"jnestagram/internal/config"
	"jnestagram/internal/models"
	"jnestagram/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type harness struct {
	db  *gorm.DB
	cfg *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{db: testutil.NewDB(t), cfg: &config.Config{Env: "test"}}
}

func (h *harness) exec(t *testing.T, args ...string) (string, error) {
	t.Helper()
	e := &env{open: func(context.Context) (*gorm.DB, *config.Config, func(), error) {
		return h.db, h.cfg, func() {}, nil
	}}
	root := newRootCmd(e)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestStaffCommand(t *testing.T) {
	h := newHarness(t)
	user := testutil.CreateUser(t, h.db, "alice", false)

	out, err := h.exec(t, "staff", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "alice staff=true")

	var got models.User
	require.NoError(t, h.db.First(&got, user.ID).Error)
	assert.True(t, got.IsStaff)

	_, err = h.exec(t, "staff", "alice", "--revoke")
	require.NoError(t, err)
	require.NoError(t, h.db.First(&got, user.ID).Error)
	assert.False(t, got.IsStaff)

	_, err = h.exec(t, "staff", "nobody")
	require.Error(t, err)
}

func TestLandingCommands(t *testing.T) {
	h := newHarness(t)

	_, err := h.exec(t, "landing", "on")
	require.NoError(t, err)

	out, err := h.exec(t, "landing")
	require.NoError(t, err)
	assert.Contains(t, out, models.MaintenancePage)
	assert.Contains(t, out, "true")

	_, err = h.exec(t, "landing", "off", models.MaintenancePage)
	require.NoError(t, err)

	var page models.LandingPage
	require.NoError(t, h.db.Where("name = ?", models.MaintenancePage).First(&page).Error)
	assert.False(t, page.IsActive)
}

func TestFeatureCommands(t *testing.T) {
	h := newHarness(t)

	_, err := h.exec(t, "feature", "set", "new-feed", "true", "false", "--developer", "bob")
	require.NoError(t, err)

	out, err := h.exec(t, "feature")
	require.NoError(t, err)
	assert.Contains(t, out, "new-feed")
	assert.Contains(t, out, "staging=true production=false developer=bob")

	_, err = h.exec(t, "feature", "set", "new-feed", "maybe", "false")
	require.Error(t, err)
}

func TestRecountCommand(t *testing.T) {
	h := newHarness(t)
	owner := testutil.CreateUser(t, h.db, "owner", false)
	post := testutil.CreatePost(t, h.db, owner, "drifted")
	require.NoError(t, h.db.Model(post).Update("likes_count", 5).Error)

	out, err := h.exec(t, "recount")
	require.NoError(t, err)
	assert.Contains(t, out, "posts.likes_count")
	assert.Regexp(t, `total\s+1`, out)
}

func TestSeedCommand(t *testing.T) {
	h := newHarness(t)

	out, err := h.exec(t, "seed", "--users", "3", "--posts", "1", "--comments", "1",
		"--conversations", "1", "--messages", "2", "--seed", "9", "--fast-hash")
	require.NoError(t, err)
	assert.Contains(t, out, "users=3 posts=3")

	var users int64
	require.NoError(t, h.db.Model(&models.User{}).Count(&users).Error)
	assert.Equal(t, int64(3), users)
}

func TestSeedCommand_CatalogueOnly(t *testing.T) {
	h := newHarness(t)

	out, err := h.exec(t, "seed", "--catalogue-only")
	require.NoError(t, err)
	assert.Contains(t, out, "catalogue applied")

	var users int64
	require.NoError(t, h.db.Model(&models.User{}).Count(&users).Error)
	assert.Zero(t, users)
}

func TestSeedCommand_RefusesProductionClean(t *testing.T) {
	h := newHarness(t)
	h.cfg.Env = "production"

	_, err := h.exec(t, "seed", "--clean")
	require.Error(t, err)
}

func TestMigrateCommands(t *testing.T) {
	h := newHarness(t)

	out, err := h.exec(t, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date")

	out, err = h.exec(t, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "pending")

	_, err = h.exec(t, "migrate", "down", "x")
	require.Error(t, err)
	_, err = h.exec(t, "migrate", "down", "1")
	require.Error(t, err, "nothing applied on sqlite")
}
