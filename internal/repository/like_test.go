package repository

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"

	"jnestagram/internal/models"
	"jnestagram/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestLikeRepository_InsertIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice", false)
	post := testutil.CreatePost(t, db, alice, "hello")
	repo := NewLikeRepository(db)
	target := post.LikeTarget()

	inserted, err := repo.Insert(ctx, alice.ID, target)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.Insert(ctx, alice.ID, target)
	require.NoError(t, err)
	assert.False(t, inserted, "second insert must report the existing like")

	count, err := repo.Count(ctx, target)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	exists, err := repo.Exists(ctx, alice.ID, target)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLikeRepository_KindsAreIndependent(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice", false)
	repo := NewLikeRepository(db)

	_, err := repo.Insert(ctx, alice.ID, models.LikeTarget{Kind: models.LikeKindPost, ID: 1})
	require.NoError(t, err)
	inserted, err := repo.Insert(ctx, alice.ID, models.LikeTarget{Kind: models.LikeKindComment, ID: 1})
	require.NoError(t, err)
	assert.True(t, inserted)

	liked, err := repo.LikedIDs(ctx, alice.ID, models.LikeKindComment, []uint{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, liked)
}

func TestLikeRepository_DeleteAndDeleteForTargets(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice", false)
	bob := testutil.CreateUser(t, db, "bob", false)
	repo := NewLikeRepository(db)

	for _, id := range []uint{1, 2, 3} {
		_, err := repo.Insert(ctx, alice.ID, models.LikeTarget{Kind: models.LikeKindReply, ID: id})
		require.NoError(t, err)
		_, err = repo.Insert(ctx, bob.ID, models.LikeTarget{Kind: models.LikeKindReply, ID: id})
		require.NoError(t, err)
	}

	n, err := repo.Delete(ctx, alice.ID, models.LikeTarget{Kind: models.LikeKindReply, ID: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = repo.Delete(ctx, alice.ID, models.LikeTarget{Kind: models.LikeKindReply, ID: 1})
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, repo.DeleteForTargets(ctx, models.LikeKindReply, []uint{1, 2}))
	require.NoError(t, repo.DeleteForTargets(ctx, models.LikeKindReply, nil))

	var remaining int64
	require.NoError(t, db.Model(&models.Like{}).Count(&remaining).Error)
	assert.EqualValues(t, 2, remaining)
}

func TestCounterRepository_SqliteRecountAndSweep(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice", false)
	bob := testutil.CreateUser(t, db, "bob", false)
	post := testutil.CreatePost(t, db, alice, "hello")
	likes := NewLikeRepository(db)
	counters := NewCounterRepository(db)

	_, err := likes.Insert(ctx, alice.ID, post.LikeTarget())
	require.NoError(t, err)
	_, err = likes.Insert(ctx, bob.ID, post.LikeTarget())
	require.NoError(t, err)

	count, err := counters.RecountLikes(ctx, post.LikeTarget())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Drift introduced behind the ledger's back is found by the sweep.
	require.NoError(t, db.Exec("UPDATE posts SET likes_count = 9 WHERE id = ?", post.ID).Error)
	fixed, err := counters.SweepLikes(ctx, models.LikeKindPost)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fixed)

	fixed, err = counters.SweepLikes(ctx, models.LikeKindPost)
	require.NoError(t, err)
	assert.Zero(t, fixed)

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, 2, stored.LikesCount)
}

func TestCounterRepository_DecrementFloorsAtZero(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice", false)
	post := testutil.CreatePost(t, db, alice, "hello")
	comment := &models.Comment{PostID: post.ID, UserID: alice.ID, Text: "hi", IsApproved: true}
	require.NoError(t, NewCommentRepository(db).Create(ctx, comment))

	counters := NewCounterRepository(db)
	require.NoError(t, counters.DecrementReplies(ctx, comment.ID))
	require.NoError(t, counters.DecrementReplies(ctx, 4242))

	var stored models.Comment
	require.NoError(t, db.First(&stored, comment.ID).Error)
	assert.Zero(t, stored.ReplaysCount)
}

func TestLikeRepository_LockTargetSelectsForUpdate(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		target models.LikeTarget
		query  string
		args   []driver.Value
	}{
		{
			name:   "post",
			target: models.LikeTarget{Kind: models.LikeKindPost, ID: 7},
			query:  `SELECT * FROM "posts" WHERE id = $1 AND is_active = $2 ORDER BY "posts"."id" LIMIT $3 FOR UPDATE`,
			args:   []driver.Value{7, true, 1},
		},
		{
			name:   "comment",
			target: models.LikeTarget{Kind: models.LikeKindComment, ID: 7},
			query:  `SELECT * FROM "comments" WHERE id = $1 ORDER BY "comments"."id" LIMIT $2 FOR UPDATE`,
			args:   []driver.Value{7, 1},
		},
		{
			name:   "reply",
			target: models.LikeTarget{Kind: models.LikeKindReply, ID: 7},
			query:  `SELECT * FROM "replies" WHERE id = $1 ORDER BY "replies"."id" LIMIT $2 FOR UPDATE`,
			args:   []driver.Value{7, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := NewLikeRepository(db)

			mock.ExpectQuery(regexp.QuoteMeta(tt.query)).
				WithArgs(tt.args...).
				WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "likes_count"}).AddRow(7, 3, 2))

			entity, err := repo.LockTarget(ctx, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.target, entity.LikeTarget())
			assert.Equal(t, uint(3), entity.OwnerID())
			assert.Equal(t, 2, entity.CurrentLikes())
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLikeRepository_LockTargetMissingRow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLikeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.LockTarget(context.Background(), models.LikeTarget{Kind: models.LikeKindComment, ID: 9})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLikeRepository_LockTargetOnSQLite(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice", false)
	post := testutil.CreatePost(t, db, alice, "hello")
	repo := NewLikeRepository(db)

	entity, err := repo.LockTarget(ctx, post.LikeTarget())
	require.NoError(t, err)
	assert.Equal(t, alice.ID, entity.OwnerID())

	require.NoError(t, db.Model(post).Update("is_active", false).Error)
	_, err = repo.LockTarget(ctx, post.LikeTarget())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
