package service

import (
	"context"
	"log/slog"

	"jnestagram/internal/cache"
	"jnestagram/internal/media"
	"jnestagram/internal/models"
	"jnestagram/internal/observability"
	"jnestagram/internal/repository"
	"jnestagram/internal/validation"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

const (
	PostsPageSize = 10
	TopPostsLimit = 4

	maxTitleLen = 100
	maxBodyLen  = 20000
)

type PostService struct {
	db    *gorm.DB
	store *media.Store
}

type CreatePostInput struct {
	UserID   uint
	Title    string
	Body     string
	TagIDs   []uint
	IsPublic bool
	// Image is the raw upload, if any.
	Image []byte
}

// UpdatePostInput replaces the editable fields. TagIDs replaces the tag set;
// an empty list clears it. A nil Image keeps the current one.
type UpdatePostInput struct {
	UserID   uint
	PostID   uint
	Title    string
	Body     string
	TagIDs   []uint
	IsPublic bool
	Image    []byte
}

type ListPostsInput struct {
	TagSlug  string
	Page     int
	ViewerID uint
}

// PostPage is one page of the home feed.
type PostPage struct {
	Posts    []*models.Post `json:"posts"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	HasNext  bool           `json:"has_next"`
}

func NewPostService(db *gorm.DB, store *media.Store) *PostService {
	return &PostService{db: db, store: store}
}

func validatePostText(title, body string) (string, string, error) {
	title, err := validation.ValidateText("Title", title, maxTitleLen)
	if err != nil {
		return "", "", models.NewValidationError(err.Error())
	}
	body, err = validation.ValidateText("Body", body, maxBodyLen)
	if err != nil {
		return "", "", models.NewValidationError(err.Error())
	}
	return title, body, nil
}

func (s *PostService) saveImage(image []byte) (string, error) {
	if image == nil {
		return "", nil
	}
	if s.store == nil {
		return "", models.NewValidationError("Image uploads are disabled")
	}
	return s.store.Save("posts", image, media.PostImageMaxSize, media.PostImageQuality)
}

func (s *PostService) removeImage(ctx context.Context, rel string) {
	if s.store == nil || rel == "" {
		return
	}
	if err := s.store.Remove(rel); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "failed to remove post image",
			slog.String("path", rel),
			slog.String("error", err.Error()),
		)
	}
}

// loadTags resolves ids and rejects unknown ones.
func loadTags(ctx context.Context, tx *gorm.DB, ids []uint) ([]models.Tag, error) {
	ids = uniqueIDs(ids)
	tags, err := repository.NewTagRepository(tx).FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(tags) != len(ids) {
		return nil, models.NewValidationError("Unknown tag")
	}
	return tags, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (post *models.Post, err error) {
	ctx, span := observability.StartSpan(ctx, "posts", "create")
	defer func() { observability.EndSpan(span, err) }()

	title, body, err := validatePostText(in.Title, in.Body)
	if err != nil {
		return nil, err
	}
	image, err := s.saveImage(in.Image)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		author, err := loadActor(ctx, tx, in.UserID)
		if err != nil {
			return err
		}
		tags, err := loadTags(ctx, tx, in.TagIDs)
		if err != nil {
			return err
		}
		post = &models.Post{
			UserID:   author.ID,
			Title:    title,
			Body:     body,
			Image:    image,
			Tags:     tags,
			IsActive: true,
			IsPublic: in.IsPublic,
		}
		if err := repository.NewPostRepository(tx).Create(ctx, post); err != nil {
			return err
		}
		post.User = *author
		return nil
	})
	if err != nil {
		s.removeImage(ctx, image)
		return nil, err
	}
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (post *models.Post, err error) {
	ctx, span := observability.StartSpan(ctx, "posts", "update", attribute.Int64("post.id", int64(in.PostID)))
	defer func() { observability.EndSpan(span, err) }()

	title, body, err := validatePostText(in.Title, in.Body)
	if err != nil {
		return nil, err
	}
	image, err := s.saveImage(in.Image)
	if err != nil {
		return nil, err
	}

	var oldImage string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		posts := repository.NewPostRepository(tx)
		post, err = posts.GetByID(ctx, in.PostID, 0)
		if err != nil {
			return notFoundAs(err, "Post", in.PostID)
		}
		if post.UserID != in.UserID {
			return models.NewForbiddenError("You can only update your own posts")
		}
		tags, err := loadTags(ctx, tx, in.TagIDs)
		if err != nil {
			return err
		}

		post.Title = title
		post.Body = body
		post.IsPublic = in.IsPublic
		if image != "" {
			oldImage = post.Image
			post.Image = image
		}
		if err := posts.Update(ctx, post); err != nil {
			return err
		}
		if err := posts.ReplaceTags(ctx, post, tags); err != nil {
			return err
		}
		post.Tags = tags
		return nil
	})
	if err != nil {
		s.removeImage(ctx, image)
		return nil, err
	}

	s.removeImage(ctx, oldImage)
	cache.InvalidatePost(ctx, post.ID)
	return post, nil
}

// DeletePost deactivates a post. Rows are kept so likes and comments stay
// consistent.
func (s *PostService) DeletePost(ctx context.Context, userID, postID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		posts := repository.NewPostRepository(tx)
		post, err := posts.GetByID(ctx, postID, 0)
		if err != nil {
			return notFoundAs(err, "Post", postID)
		}
		if post.UserID != userID {
			return models.NewForbiddenError("You can only delete your own posts")
		}
		return posts.Deactivate(ctx, postID)
	})
	if err != nil {
		return notFoundAs(err, "Post", postID)
	}
	cache.InvalidatePost(ctx, postID)
	return nil
}

// GetPost returns an active post. Private posts are visible to their owner
// only. The cached copy is shared by all viewers; is_liked is filled per call.
func (s *PostService) GetPost(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		p, err := repository.NewPostRepository(s.db).GetByID(ctx, id, 0)
		if err != nil {
			return notFoundAs(err, "Post", id)
		}
		post = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !post.IsPublic && post.UserID != viewerID {
		return nil, models.NewNotFoundError("Post", id)
	}

	post.IsLiked = false
	if viewerID != 0 {
		liked, err := repository.NewLikeRepository(s.db).Exists(ctx, viewerID, post.LikeTarget())
		if err != nil {
			return nil, err
		}
		post.IsLiked = liked
	}
	return &post, nil
}

// ListPosts returns a page of the home feed, newest first.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) (*PostPage, error) {
	if in.Page < 1 {
		in.Page = 1
	}
	if in.TagSlug != "" {
		if _, err := repository.NewTagRepository(s.db).GetBySlug(ctx, in.TagSlug); err != nil {
			return nil, notFoundAs(err, "Tag", in.TagSlug)
		}
	}

	posts := repository.NewPostRepository(s.db)
	filter := repository.ListPostsFilter{
		TagSlug:  in.TagSlug,
		ViewerID: in.ViewerID,
		Limit:    PostsPageSize,
		Offset:   (in.Page - 1) * PostsPageSize,
	}
	total, err := posts.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	list, err := posts.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &PostPage{
		Posts:    list,
		Total:    total,
		Page:     in.Page,
		PageSize: PostsPageSize,
		HasNext:  int64(in.Page*PostsPageSize) < total,
	}, nil
}

// TopPosts returns the most liked public posts.
func (s *PostService) TopPosts(ctx context.Context, viewerID uint) ([]*models.Post, error) {
	return repository.NewPostRepository(s.db).Top(ctx, TopPostsLimit, viewerID)
}

// UserPosts lists a user's active posts. Private ones are included only
// when the viewer is the owner.
func (s *PostService) UserPosts(ctx context.Context, ownerID, viewerID uint, limit, offset int) ([]*models.Post, error) {
	return repository.NewPostRepository(s.db).ListByUser(ctx, ownerID, viewerID, ownerID == viewerID, limit, offset)
}

// ListTags returns the sidebar tags.
func (s *PostService) ListTags(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	err := cache.Aside(ctx, cache.TagsKey, &tags, cache.TagsTTL, func() error {
		var err error
		tags, err = repository.NewTagRepository(s.db).List(ctx)
		return err
	})
	return tags, err
}
