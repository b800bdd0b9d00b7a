package server

import (
	"jnestagram/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetConversations handles GET /api/inbox
// @Summary Inbox
// @Description The caller's conversations, most recent first, with the last message of each
// @Tags inbox
// @Produce json
// @Security BearerAuth
// @Success 200 {array} service.ConversationSummary
// @Router /inbox [get]
func (s *Server) GetConversations(c *fiber.Ctx) error {
	list, err := s.inboxService.ListConversations(c.UserContext(), viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

// GetUnreadCount handles GET /api/inbox/unread
// @Summary Unread badge
// @Tags inbox
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{count=int}
// @Router /inbox/unread [get]
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	count, err := s.inboxService.UnreadCount(c.UserContext(), viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"count": count})
}

// SearchUsers handles GET /api/inbox/search?q=
// @Summary Find someone to message
// @Tags inbox
// @Produce json
// @Security BearerAuth
// @Param q query string true "Username or name, at least two characters"
// @Success 200 {array} models.User
// @Router /inbox/search [get]
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	users, err := s.inboxService.SearchUsers(c.UserContext(), c.Query("q"), viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(users)
}

// GetConversation handles GET /api/inbox/:id
// @Summary Open a conversation
// @Description Returns the messages oldest first and marks the conversation seen.
// @Tags inbox
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation UUID"
// @Success 200 {object} service.ConversationView
// @Failure 404 {object} models.ErrorResponse
// @Router /inbox/{id} [get]
func (s *Server) GetConversation(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	view, err := s.inboxService.OpenConversation(c.UserContext(), id, viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// MarkSeen handles POST /api/inbox/:id/seen
// @Summary Mark a conversation seen
// @Tags inbox
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation UUID"
// @Success 200 {object} object{changed=bool}
// @Router /inbox/{id}/seen [post]
func (s *Server) MarkSeen(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	changed, err := s.inboxService.MarkSeen(c.UserContext(), id, viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"changed": changed})
}

// SendMessage handles POST /api/inbox/:id/messages
// @Summary Reply in a conversation
// @Tags inbox
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation UUID"
// @Param request body object{text=string} true "Message"
// @Success 201 {object} object{conversation_id=string,message=models.Message}
// @Failure 404 {object} models.ErrorResponse
// @Router /inbox/{id}/messages [post]
func (s *Server) SendMessage(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return nil
	}
	return s.sendMessage(c, service.SendMessageInput{ConversationID: id})
}

// SendMessageToUser handles POST /api/inbox/users/:userId/messages
// @Summary Message a user
// @Description Opens the conversation with the user on first contact.
// @Tags inbox
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path int true "Recipient ID"
// @Param request body object{text=string} true "Message"
// @Success 201 {object} object{conversation_id=string,message=models.Message}
// @Failure 400 {object} models.ErrorResponse
// @Router /inbox/users/{userId}/messages [post]
func (s *Server) SendMessageToUser(c *fiber.Ctx) error {
	recipient, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	return s.sendMessage(c, service.SendMessageInput{RecipientID: recipient})
}

func (s *Server) sendMessage(c *fiber.Ctx, in service.SendMessageInput) error {
	var req textRequest
	if err := c.BodyParser(&req); err != nil {
		return bodyError(c)
	}
	in.SenderID = viewerID(c)
	in.Text = req.Text

	msg, conv, err := s.inboxService.SendMessage(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"conversation_id": conv.ID,
		"message":         msg,
	})
}
