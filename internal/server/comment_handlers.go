package server

import (
	"jnestagram/internal/service"

	"github.com/gofiber/fiber/v2"
)

type textRequest struct {
	Text string `json:"text" form:"text"`
}

// GetComments handles GET /api/posts/:id/comments
// @Summary Approved comments of a post
// @Description Newest first, or most liked first with ?top=true
// @Tags comments
// @Produce json
// @Param id path int true "Post ID"
// @Param top query bool false "Order by likes"
// @Success 200 {array} models.Comment
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	comments, err := s.commentService.ListComments(c.UserContext(), postID, viewerID(c), c.QueryBool("top", false))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comments)
}

// CreateComment handles POST /api/posts/:id/comments
// @Summary Comment on a post
// @Description Comments by the post owner or staff are approved at once; others wait for approval.
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body object{text=string} true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req textRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}

	comment, err := s.commentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		UserID: viewerID(c),
		PostID: postID,
		Text:   req.Text,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// UpdateComment handles PUT /api/comments/:id
// @Summary Edit a comment
// @Description An edited comment goes back to pending.
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Param request body object{text=string} true "Comment"
// @Success 200 {object} models.Comment
// @Failure 403 {object} models.ErrorResponse
// @Router /comments/{id} [put]
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req textRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}

	comment, err := s.commentService.UpdateComment(c.UserContext(), service.UpdateCommentInput{
		UserID:    viewerID(c),
		CommentID: id,
		Text:      req.Text,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comment)
}

// DeleteComment handles DELETE /api/comments/:id
// @Summary Delete a comment
// @Description Its replies and every like on them are removed too.
// @Tags comments
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Router /comments/{id} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.commentService.DeleteComment(c.UserContext(), viewerID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ApproveComment handles POST /api/comments/:id/approve
// @Summary Approve a pending comment
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Success 200 {object} models.Comment
// @Failure 403 {object} models.ErrorResponse
// @Router /comments/{id}/approve [post]
func (s *Server) ApproveComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	comment, err := s.commentService.ApproveComment(c.UserContext(), viewerID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comment)
}

// GetPendingComments handles GET /api/comments/pending
// @Summary Comments waiting for my approval
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset"
// @Success 200 {array} models.Comment
// @Router /comments/pending [get]
func (s *Server) GetPendingComments(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	comments, err := s.commentService.PendingComments(c.UserContext(), viewerID(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comments)
}

// GetPendingCount handles GET /api/comments/pending/count
// @Summary Pending comment badge
// @Tags comments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{count=int}
// @Router /comments/pending/count [get]
func (s *Server) GetPendingCount(c *fiber.Ctx) error {
	count, err := s.commentService.PendingCount(c.UserContext(), viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"count": count})
}

// GetReplies handles GET /api/comments/:id/replies
// @Summary Replies to a comment
// @Tags comments
// @Produce json
// @Param id path int true "Comment ID"
// @Success 200 {array} models.Reply
// @Router /comments/{id}/replies [get]
func (s *Server) GetReplies(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	replies, err := s.replyService.ListReplies(c.UserContext(), id, viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(replies)
}

// CreateReply handles POST /api/comments/:id/replies
// @Summary Reply to a comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Param request body object{text=string} true "Reply"
// @Success 201 {object} object{reply=models.Reply,replays_count=int}
// @Failure 400 {object} models.ErrorResponse
// @Router /comments/{id}/replies [post]
func (s *Server) CreateReply(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req textRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}

	reply, count, err := s.replyService.CreateReply(c.UserContext(), viewerID(c), id, req.Text)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"reply":         reply,
		"replays_count": count,
	})
}

// DeleteReply handles DELETE /api/replies/:id
// @Summary Delete a reply
// @Tags comments
// @Security BearerAuth
// @Param id path int true "Reply ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Router /replies/{id} [delete]
func (s *Server) DeleteReply(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.replyService.DeleteReply(c.UserContext(), viewerID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
