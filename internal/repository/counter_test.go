package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"jnestagram/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

func TestCounterRepository_RecountLikes(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		target models.LikeTarget
		update string
		read   string
	}{
		{
			name:   "post",
			target: models.LikeTarget{Kind: models.LikeKindPost, ID: 7},
			update: `UPDATE posts SET likes_count = (SELECT COUNT(*) FROM likes WHERE likes.target_kind = $1 AND likes.target_id = posts.id) WHERE id = $2`,
			read:   `SELECT "likes_count" FROM "posts" WHERE id = $1 LIMIT $2`,
		},
		{
			name:   "comment",
			target: models.LikeTarget{Kind: models.LikeKindComment, ID: 7},
			update: `UPDATE comments SET likes_count = (SELECT COUNT(*) FROM likes WHERE likes.target_kind = $1 AND likes.target_id = comments.id) WHERE id = $2`,
			read:   `SELECT "likes_count" FROM "comments" WHERE id = $1 LIMIT $2`,
		},
		{
			name:   "reply",
			target: models.LikeTarget{Kind: models.LikeKindReply, ID: 7},
			update: `UPDATE replies SET likes_count = (SELECT COUNT(*) FROM likes WHERE likes.target_kind = $1 AND likes.target_id = replies.id) WHERE id = $2`,
			read:   `SELECT "likes_count" FROM "replies" WHERE id = $1 LIMIT $2`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := NewCounterRepository(db)

			mock.ExpectExec(regexp.QuoteMeta(tt.update)).
				WithArgs(string(tt.target.Kind), 7).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectQuery(regexp.QuoteMeta(tt.read)).
				WithArgs(7, 1).
				WillReturnRows(sqlmock.NewRows([]string{"likes_count"}).AddRow(3))

			count, err := repo.RecountLikes(ctx, tt.target)
			require.NoError(t, err)
			assert.Equal(t, 3, count)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCounterRepository_RecountLikes_MissingRowIsNoop(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCounterRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE posts SET likes_count`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "likes_count" FROM "posts"`)).
		WillReturnRows(sqlmock.NewRows([]string{"likes_count"}))

	count, err := repo.RecountLikes(context.Background(), models.LikeTarget{Kind: models.LikeKindPost, ID: 99})
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCounterRepository_RecountLikes_UnknownKind(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCounterRepository(db)

	_, err := repo.RecountLikes(context.Background(), models.LikeTarget{Kind: "story", ID: 1})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCounterRepository_RecountLikes_WrapsError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCounterRepository(db)
	boom := errors.New("connection reset")

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE comments SET likes_count`)).WillReturnError(boom)

	_, err := repo.RecountLikes(context.Background(), models.LikeTarget{Kind: models.LikeKindComment, ID: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "comment:1")
}

func TestCounterRepository_WritesOnlyCounterColumns(t *testing.T) {
	ctx := context.Background()
	db, mock := setupMockDB(t)
	repo := NewCounterRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE posts SET comments_count = comments_count + 1 WHERE id = $1`)).
		WithArgs(4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE comments SET replays_count = replays_count + 1 WHERE id = $1`)).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE comments SET replays_count = CASE WHEN replays_count > 0 THEN replays_count - 1 ELSE 0 END WHERE id = $1`)).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE posts SET comments_count = (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.is_approved = $1) WHERE id = $2`)).
		WithArgs(true, 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "comments_count" FROM "posts" WHERE id = $1 LIMIT $2`)).
		WithArgs(4, 1).
		WillReturnRows(sqlmock.NewRows([]string{"comments_count"}).AddRow(2))

	require.NoError(t, repo.IncrementComments(ctx, 4))
	require.NoError(t, repo.IncrementReplies(ctx, 5))
	require.NoError(t, repo.DecrementReplies(ctx, 5))
	count, err := repo.RecountApprovedComments(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCounterRepository_SweepsReportCorrections(t *testing.T) {
	ctx := context.Background()
	db, mock := setupMockDB(t)
	repo := NewCounterRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE posts SET likes_count = (SELECT COUNT(*) FROM likes WHERE likes.target_kind = $1 AND likes.target_id = posts.id) WHERE likes_count <> (SELECT COUNT(*) FROM likes WHERE likes.target_kind = $2 AND likes.target_id = posts.id)`)).
		WithArgs("post", "post").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE posts SET comments_count = (SELECT COUNT(*) FROM comments`)).
		WithArgs(true, true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE comments SET replays_count = (SELECT COUNT(*) FROM replies WHERE replies.comment_id = comments.id) WHERE replays_count <>`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.SweepLikes(ctx, models.LikeKindPost)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = repo.SweepApprovedComments(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = repo.SweepReplies(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
