package server

import (
	"kollektiv/internal/models"
	"kollektiv/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePrivateChat opens (or returns the existing) direct chat between the
// authenticated user and another user.
func (s *Server) CreatePrivateChat(c *fiber.Ctx) error {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	chatID, err := s.chats.CreatePrivateChat(c.UserContext(), currentUserID(c), req.UserID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"chatId": chatID})
}

// CreateGroupChat creates a group with the authenticated user as creator and
// sole admin.
func (s *Server) CreateGroupChat(c *fiber.Ctx) error {
	var req struct {
		Name         string   `json:"name"`
		Participants []string `json:"participants"`
		PhotoURL     string   `json:"photoURL"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	chatID, err := s.chats.CreateGroupChat(c.UserContext(), currentUserID(c), req.Name, req.Participants, req.PhotoURL)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"chatId": chatID})
}

// UserChats lists the authenticated user's chats, most recently active first.
func (s *Server) UserChats(c *fiber.Ctx) error {
	chats, err := s.chats.UserChats(c.UserContext(), currentUserID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"chats": chats})
}

// ChatInfo returns a chat document. Participants only.
func (s *Server) ChatInfo(c *fiber.Ctx) error {
	chat, err := s.chats.ChatInfo(c.UserContext(), c.Params("id"))
	if err != nil {
		return serviceError(c, err)
	}
	if !chat.HasParticipant(currentUserID(c)) {
		return serviceError(c, models.NewPermissionDeniedError("Not a participant of this chat"))
	}
	return c.JSON(chat)
}

// ChatMessages returns a chat's messages, oldest first. Participants only.
func (s *Server) ChatMessages(c *fiber.Ctx) error {
	messages, err := s.chats.ChatMessages(c.UserContext(), c.Params("id"), currentUserID(c), parseLimit(c, 50, 200))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"messages": messages})
}

// SendMessage appends a message to a chat and fans it out to connected
// participants.
func (s *Server) SendMessage(c *fiber.Ctx) error {
	var req struct {
		Text     string `json:"text"`
		FileURL  string `json:"fileUrl"`
		FileType string `json:"fileType"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	actor, err := s.currentActor(c)
	if err != nil {
		return serviceError(c, err)
	}

	chatID := c.Params("id")
	msg, err := s.chats.SendMessage(c.UserContext(), service.SendMessageInput{
		ChatID:   chatID,
		Sender:   actor,
		Text:     req.Text,
		FileURL:  req.FileURL,
		FileType: req.FileType,
	})
	if err != nil {
		return serviceError(c, err)
	}

	_ = s.notifier.PublishChatMessage(c.UserContext(), chatID, *msg)
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// EditMessage lets the sender change a message's text.
func (s *Server) EditMessage(c *fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if err := s.chats.EditMessage(c.UserContext(), c.Params("id"), currentUserID(c), req.Text); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"edited": true})
}

// AddChatParticipant adds a user to a group chat. Chat admins only.
func (s *Server) AddChatParticipant(c *fiber.Ctx) error {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	err := s.chats.AddUserToGroupChat(c.UserContext(), c.Params("id"), req.UserID, currentUserID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"added": true})
}

// RemoveChatParticipant removes another user from a group chat. Chat admins
// only; self-removal goes through LeaveChat.
func (s *Server) RemoveChatParticipant(c *fiber.Ctx) error {
	err := s.chats.RemoveUserFromGroupChat(c.UserContext(), c.Params("id"), c.Params("userId"),
		currentUserID(c), false)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"removed": true})
}

// LeaveChat removes the authenticated user from a group chat.
func (s *Server) LeaveChat(c *fiber.Ctx) error {
	userID := currentUserID(c)
	err := s.chats.RemoveUserFromGroupChat(c.UserContext(), c.Params("id"), userID, userID, true)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"left": true})
}

// MakeChatAdmin promotes a participant to chat admin. Chat admins only.
func (s *Server) MakeChatAdmin(c *fiber.Ctx) error {
	err := s.chats.MakeUserAdmin(c.UserContext(), c.Params("id"), c.Params("userId"), currentUserID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"admin": true})
}

// UpdateGroupChat changes a group chat's name and/or photo. Responds with
// whether anything actually changed.
func (s *Server) UpdateGroupChat(c *fiber.Ctx) error {
	var req struct {
		Name     string  `json:"name"`
		PhotoURL *string `json:"photoURL"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	changed, err := s.chats.UpdateGroupChat(c.UserContext(), c.Params("id"), currentUserID(c),
		service.GroupChatUpdate{Name: req.Name, PhotoURL: req.PhotoURL})
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"updated": changed})
}
