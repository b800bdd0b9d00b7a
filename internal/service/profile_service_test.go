package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"jnestagram/internal/media"
	"jnestagram/internal/models"
	"jnestagram/internal/testutil"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileService_OwnProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, f.db, "owner", false)
	stranger := testutil.CreateUser(t, f.db, "stranger", false)
	post := testutil.CreatePost(t, f.db, owner, "p")
	require.NoError(t, f.db.Omit("User", "Tags").Create(&models.Post{UserID: owner.ID, Title: "private", Body: "b", IsActive: true}).Error)
	_, err := NewCommentService(f.db, f.engine, nil).
		CreateComment(ctx, CreateCommentInput{UserID: stranger.ID, PostID: post.ID, Text: "hm"})
	require.NoError(t, err)
	svc := NewProfileService(f.db, nil, 0, 0)

	own, err := svc.OwnProfile(ctx, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, own.Profile)
	assert.Equal(t, owner.ID, own.Profile.UserID)
	assert.Len(t, own.Posts, 2)
	require.Len(t, own.PendingComments, 1)
	assert.Equal(t, "hm", own.PendingComments[0].Text)

	again, err := svc.OwnProfile(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, own.Profile.ID, again.Profile.ID)

	public, err := svc.PublicProfile(ctx, "owner", stranger.ID)
	require.NoError(t, err)
	assert.Len(t, public.Posts, 1)
	assert.Empty(t, public.User.Email)

	_, err = svc.PublicProfile(ctx, "ghost", 0)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestProfileService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alice", false)
	bob := testutil.CreateUser(t, f.db, "bob", false)
	country := models.Country{Name: "Portugal", Abbr: "PT", IsActive: true}
	require.NoError(t, f.db.Create(&country).Error)
	svc := NewProfileService(f.db, nil, 0, 0)

	phone := int64(351900000001)
	profile, err := svc.UpdateProfile(ctx, UpdateProfileInput{
		UserID: alice.ID, Email: "new@example.com", PhoneNumber: &phone, CountryID: &country.ID, Bio: " hi ",
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", profile.Bio)

	var stored models.User
	require.NoError(t, f.db.Preload("Profile").First(&stored, alice.ID).Error)
	assert.Equal(t, "new@example.com", stored.Email)
	require.NotNil(t, stored.Profile.PhoneNumber)
	assert.Equal(t, phone, *stored.Profile.PhoneNumber)

	tests := []struct {
		name string
		in   UpdateProfileInput
	}{
		{"taken phone", UpdateProfileInput{UserID: bob.ID, Email: "bob@example.com", PhoneNumber: &phone}},
		{"taken email", UpdateProfileInput{UserID: bob.ID, Email: "NEW@example.com"}},
		{"bad email", UpdateProfileInput{UserID: bob.ID, Email: "bob"}},
		{"unknown country", UpdateProfileInput{UserID: bob.ID, Email: "bob@example.com", CountryID: new(uint)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateProfile(ctx, tt.in)
			assert.True(t, models.IsCode(err, models.CodeValidation), "got %v", err)
		})
	}
}

func TestProfileService_UploadAvatarReplacesFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alice", false)
	store := media.NewStore(t.TempDir())
	svc := NewProfileService(f.db, store, 0, 0)

	first, err := svc.UploadAvatar(ctx, alice.ID, testutil.TinyPNG(t, 1200, 800))
	require.NoError(t, err)
	firstPath := filepath.Join(store.Root(), first.Avatar)

	raw, err := os.ReadFile(firstPath)
	require.NoError(t, err)
	cfg, err := webp.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, DefaultAvatarSize, cfg.Width)
	assert.Equal(t, 400, cfg.Height)

	second, err := svc.UploadAvatar(ctx, alice.ID, testutil.TinyPNG(t, 50, 50))
	require.NoError(t, err)
	assert.NotEqual(t, first.Avatar, second.Avatar)
	_, err = os.Stat(firstPath)
	assert.True(t, os.IsNotExist(err))

	_, err = svc.UploadAvatar(ctx, alice.ID, []byte("not an image"))
	assert.True(t, models.IsCode(err, models.CodeValidation))
}
