package repository

import (
	"context"

	"jnestagram/internal/models"
	"jnestagram/internal/observability"

	"gorm.io/gorm"
)

// ListPostsFilter selects posts for the home feed.
type ListPostsFilter struct {
	TagSlug  string
	ViewerID uint
	Limit    int
	Offset   int
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	// GetByID returns an active post. Private posts are returned too; callers
	// decide visibility.
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	// List returns active public posts, newest first.
	List(ctx context.Context, filter ListPostsFilter) ([]*models.Post, error)
	Count(ctx context.Context, filter ListPostsFilter) (int64, error)
	// Top returns active public posts that have likes, most liked first.
	Top(ctx context.Context, limit int, viewerID uint) ([]*models.Post, error)
	ListByUser(ctx context.Context, ownerID, viewerID uint, includePrivate bool, limit, offset int) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	ReplaceTags(ctx context.Context, post *models.Post, tags []models.Tag) error
	Deactivate(ctx context.Context, id uint) error
}

type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository creates a new PostRepository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", "posts")()
	// Tags reference existing rows; only the join rows are written.
	if err := r.db.WithContext(ctx).Omit("User", "Tags.*").Create(post).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return err
	}
	r.log.LogCreate(ctx, map[string]any{"post_id": post.ID, "user_id": post.UserID})
	return nil
}

func (r *postRepository) base(ctx context.Context, viewerID uint) *gorm.DB {
	return likedSelect(r.db.WithContext(ctx).Model(&models.Post{}), "posts", models.LikeKindPost, viewerID).
		Preload("User").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.ordering, tags.name") }).
		Where("posts.is_active = ?", true)
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	defer observability.TrackQuery("get", "posts")()
	var post models.Post
	if err := r.base(ctx, viewerID).Where("posts.id = ?", id).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) feed(db *gorm.DB, filter ListPostsFilter) *gorm.DB {
	db = db.Where("posts.is_public = ?", true)
	if filter.TagSlug != "" {
		db = db.Where("posts.id IN (?)",
			r.db.Table("post_tags").
				Select("post_tags.post_id").
				Joins("JOIN tags ON tags.id = post_tags.tag_id").
				Where("tags.slug = ?", filter.TagSlug),
		)
	}
	return db
}

func (r *postRepository) List(ctx context.Context, filter ListPostsFilter) ([]*models.Post, error) {
	defer observability.TrackQuery("list", "posts")()
	var posts []*models.Post
	err := r.feed(r.base(ctx, filter.ViewerID), filter).
		Order("posts.created_at DESC, posts.id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) Count(ctx context.Context, filter ListPostsFilter) (int64, error) {
	var count int64
	err := r.feed(r.db.WithContext(ctx).Model(&models.Post{}).Where("posts.is_active = ?", true), filter).
		Count(&count).Error
	return count, err
}

func (r *postRepository) Top(ctx context.Context, limit int, viewerID uint) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.base(ctx, viewerID).
		Where("posts.is_public = ? AND posts.likes_count > 0", true).
		Order("posts.likes_count DESC, posts.comments_count DESC, posts.id DESC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) ListByUser(ctx context.Context, ownerID, viewerID uint, includePrivate bool, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	q := r.base(ctx, viewerID).Where("posts.user_id = ?", ownerID)
	if !includePrivate {
		q = q.Where("posts.is_public = ?", true)
	}
	err := q.Order("posts.created_at DESC, posts.id DESC").Limit(limit).Offset(offset).Find(&posts).Error
	return posts, err
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Model(post).
		Select("title", "body", "image", "is_public").
		Updates(post).Error
	if err == nil {
		r.log.LogUpdate(ctx, map[string]any{"post_id": post.ID})
	}
	return err
}

func (r *postRepository) ReplaceTags(ctx context.Context, post *models.Post, tags []models.Tag) error {
	return r.db.WithContext(ctx).Model(post).Omit("Tags.*").Association("Tags").Replace(tags)
}

func (r *postRepository) Deactivate(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND is_active = ?", id, true).
		UpdateColumn("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	r.log.LogDelete(ctx, map[string]any{"post_id": id, "soft": true})
	return nil
}
