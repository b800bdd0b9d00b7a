package repository

import (
	"context"
	"testing"

	"jnestagram/internal/models"
	"jnestagram/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedTags(t *testing.T, db *gorm.DB) []models.Tag {
	t.Helper()
	one, two := 1, 2
	tags := []models.Tag{
		{Name: "Travel", Slug: "travel", Ordering: &two},
		{Name: "Food", Slug: "food", Ordering: &one},
	}
	require.NoError(t, NewTagRepository(db).Upsert(context.Background(), tags))
	stored, err := NewTagRepository(db).List(context.Background())
	require.NoError(t, err)
	return stored
}

func TestPostRepository_CreateWithTags(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice", false)
	tags := seedTags(t, db)
	repo := NewPostRepository(db)

	post := &models.Post{UserID: alice.ID, Title: "Trip", Body: "Lisbon", IsActive: true, IsPublic: true, Tags: tags}
	require.NoError(t, repo.Create(ctx, post))

	got, err := repo.GetByID(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.User.Username)
	require.Len(t, got.Tags, 2)
	assert.Equal(t, "food", got.Tags[0].Slug, "tags are ordered by ordering")
	assert.False(t, got.IsLiked)

	var tagCount int64
	require.NoError(t, db.Model(&models.Tag{}).Count(&tagCount).Error)
	assert.EqualValues(t, 2, tagCount, "create must not duplicate tags")
}

func TestPostRepository_FeedFiltersAndOrder(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice", false)
	tags := seedTags(t, db)
	repo := NewPostRepository(db)

	older := testutil.CreatePost(t, db, alice, "older")
	newer := testutil.CreatePost(t, db, alice, "newer")
	private := testutil.CreatePost(t, db, alice, "private")
	require.NoError(t, db.Model(private).UpdateColumn("is_public", false).Error)
	gone := testutil.CreatePost(t, db, alice, "gone")
	require.NoError(t, repo.Deactivate(ctx, gone.ID))
	require.NoError(t, repo.ReplaceTags(ctx, older, tags[:1]))

	posts, err := repo.List(ctx, ListPostsFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, newer.ID, posts[0].ID)
	assert.Equal(t, older.ID, posts[1].ID)

	count, err := repo.Count(ctx, ListPostsFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	posts, err = repo.List(ctx, ListPostsFilter{TagSlug: tags[0].Slug, Limit: 10})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, older.ID, posts[0].ID)

	_, err = repo.GetByID(ctx, gone.ID, 0)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.ErrorIs(t, repo.Deactivate(ctx, gone.ID), gorm.ErrRecordNotFound)

	mine, err := repo.ListByUser(ctx, alice.ID, alice.ID, true, 10, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 3)
}

func TestPostRepository_TopAndIsLiked(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice", false)
	bob := testutil.CreateUser(t, db, "bob", false)
	repo := NewPostRepository(db)
	likes := NewLikeRepository(db)
	counters := NewCounterRepository(db)

	a := testutil.CreatePost(t, db, alice, "a")
	b := testutil.CreatePost(t, db, alice, "b")
	testutil.CreatePost(t, db, alice, "unliked")

	for _, uid := range []uint{alice.ID, bob.ID} {
		_, err := likes.Insert(ctx, uid, b.LikeTarget())
		require.NoError(t, err)
	}
	_, err := likes.Insert(ctx, bob.ID, a.LikeTarget())
	require.NoError(t, err)
	_, err = counters.RecountLikes(ctx, a.LikeTarget())
	require.NoError(t, err)
	_, err = counters.RecountLikes(ctx, b.LikeTarget())
	require.NoError(t, err)

	top, err := repo.Top(ctx, 4, alice.ID)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, b.ID, top[0].ID)
	assert.True(t, top[0].IsLiked)
	assert.False(t, top[1].IsLiked)
	assert.Equal(t, 2, top[0].LikesCount)
}

func TestPostRepository_Update(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice", false)
	repo := NewPostRepository(db)
	post := testutil.CreatePost(t, db, alice, "draft")

	require.NoError(t, db.Model(post).UpdateColumn("likes_count", 5).Error)
	post.Title = "final"
	post.IsPublic = false
	post.LikesCount = 0
	require.NoError(t, repo.Update(ctx, post))

	got, err := repo.GetByID(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Title)
	assert.False(t, got.IsPublic)
	assert.Equal(t, 5, got.LikesCount, "update must not touch counters")
}
