package server

import (
	"github.com/gofiber/fiber/v2"
)

// ToggleLike handles POST /api/likes/:kind/:id
// @Summary Like or unlike
// @Description Toggles the caller's like on a post, comment or reply and returns the recounted total.
// @Tags likes
// @Produce json
// @Security BearerAuth
// @Param kind path string true "post, comment or reply"
// @Param id path int true "Target ID"
// @Success 200 {object} service.LikeResult
// @Failure 404 {object} models.ErrorResponse
// @Router /likes/{kind}/{id} [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := s.likeService.ToggleLike(c.UserContext(), viewerID(c), c.Params("kind"), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}
