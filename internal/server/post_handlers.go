package server

import (
	"io"
	"strconv"
	"strings"

	"jnestagram/internal/models"
	"jnestagram/internal/service"

	"github.com/gofiber/fiber/v2"
)

const maxUploadBytes = 10 * 1024 * 1024

// postForm is the body of a create or update request. It arrives as JSON or,
// when an image is attached, as multipart form data.
type postForm struct {
	Title    string `json:"title" form:"title"`
	Body     string `json:"body" form:"body"`
	TagIDs   []uint `json:"tags" form:"-"`
	IsPublic *bool  `json:"is_public" form:"-"`
	image    []byte
}

func parsePostForm(c *fiber.Ctx) (*postForm, error) {
	var form postForm
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if err := c.BodyParser(&form); err != nil {
			return nil, models.NewValidationError("Invalid request body")
		}
		return &form, nil
	}

	mf, err := c.MultipartForm()
	if err != nil {
		return nil, models.NewValidationError("Invalid form data")
	}
	form.Title = firstValue(mf.Value["title"])
	form.Body = firstValue(mf.Value["body"])
	if v := firstValue(mf.Value["is_public"]); v != "" {
		public := v == "on" || v == "true" || v == "1"
		form.IsPublic = &public
	}
	for _, raw := range mf.Value["tags"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseUint(part, 10, 32)
			if err != nil || id == 0 {
				return nil, models.NewValidationError("Invalid tag id")
			}
			form.TagIDs = append(form.TagIDs, uint(id))
		}
	}
	form.image, err = readUpload(c, "image")
	if err != nil {
		return nil, err
	}
	return &form, nil
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// readUpload returns the bytes of an uploaded file, or nil when the field is
// absent.
func readUpload(c *fiber.Ctx, field string) ([]byte, error) {
	mf, err := c.MultipartForm()
	if err != nil {
		return nil, models.NewValidationError("Invalid form data")
	}
	files := mf.File[field]
	if len(files) == 0 {
		return nil, nil
	}
	file := files[0]
	if file.Size > maxUploadBytes {
		return nil, models.NewValidationError("Uploaded file is too large")
	}

	src, err := file.Open()
	if err != nil {
		return nil, models.NewValidationError("Unable to read uploaded file")
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return nil, models.NewValidationError("Unable to read uploaded file")
	}
	return content, nil
}

// GetPosts handles GET /api/posts
// @Summary Home feed
// @Description Public posts, newest first, ten per page, optionally filtered by tag slug
// @Tags posts
// @Produce json
// @Param tag query string false "Tag slug"
// @Param page query int false "Page number" default(1)
// @Success 200 {object} service.PostPage
// @Failure 404 {object} models.ErrorResponse
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		TagSlug:  c.Query("tag"),
		Page:     c.QueryInt("page", 1),
		ViewerID: viewerID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetTopPosts handles GET /api/posts/top
// @Summary Most liked posts
// @Tags posts
// @Produce json
// @Success 200 {array} models.Post
// @Router /posts/top [get]
func (s *Server) GetTopPosts(c *fiber.Ctx) error {
	posts, err := s.postService.TopPosts(c.UserContext(), viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.GetPost(c.UserContext(), id, viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// GetTags handles GET /api/tags
// @Summary List tags
// @Tags posts
// @Produce json
// @Success 200 {array} models.Tag
// @Router /tags [get]
func (s *Server) GetTags(c *fiber.Ctx) error {
	tags, err := s.postService.ListTags(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tags)
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Description Accepts JSON or multipart form data with an optional image
// @Tags posts
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	form, err := parsePostForm(c)
	if err != nil {
		return respondError(c, err)
	}
	public := true
	if form.IsPublic != nil {
		public = *form.IsPublic
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID:   viewerID(c),
		Title:    form.Title,
		Body:     form.Body,
		TagIDs:   form.TagIDs,
		IsPublic: public,
		Image:    form.image,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Update a post
// @Description Owner only. The tag list is replaced; an omitted image keeps the current one.
// @Tags posts
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	form, err := parsePostForm(c)
	if err != nil {
		return respondError(c, err)
	}
	public := true
	if form.IsPublic != nil {
		public = *form.IsPublic
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		UserID:   viewerID(c),
		PostID:   id,
		Title:    form.Title,
		Body:     form.Body,
		TagIDs:   form.TagIDs,
		IsPublic: public,
		Image:    form.image,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Description Owner only. The post is deactivated, not removed.
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), viewerID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
