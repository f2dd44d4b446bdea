package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/groupbuy-api/internal/dto"
	"github.com/noah-isme/groupbuy-api/internal/middleware"
	"github.com/noah-isme/groupbuy-api/internal/service"
	"github.com/noah-isme/groupbuy-api/internal/utils"
)

const (
	socketContextLocal     = "socket_ctx"
	socketUserLocal        = "socket_user"
	socketCorrelationLocal = "socket_correlation"
)

// ChatHandler wires chat endpoints including the websocket upgrade.
type ChatHandler struct {
	service   service.ChatService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewChatHandler creates a chat handler instance.
func NewChatHandler(chat service.ChatService, validate *validator.Validate, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service:   chat,
		validator: validate,
		logger:    logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register binds chat routes under the provided router group.
func (h *ChatHandler) Register(router fiber.Router) {
	chat := router.Group("/chat")

	chat.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		c.Locals(socketContextLocal, requestContext(c))
		c.Locals(socketUserLocal, middleware.UserID(c))
		c.Locals(socketCorrelationLocal, middleware.GetCorrelationID(c))
		return c.Next()
	})
	chat.Get("/ws", websocket.New(h.handleConnection))

	chat.Post("/rooms", h.createRoom)
	chat.Get("/rooms", middleware.RequireIdentity(), h.listRooms)
	chat.Get("/rooms/post/:postId", h.roomForPost)
	chat.Get("/rooms/:id", h.getRoom)
	chat.Get("/rooms/:id/messages", h.listMessages)
	chat.Patch("/rooms/:id/read-all", middleware.RequireIdentity(), h.markAllRead)
	chat.Get("/rooms/:id/unread-count", middleware.RequireIdentity(), h.unreadCount)

	chat.Post("/messages", h.sendMessage)
	chat.Patch("/messages/:id/read", middleware.RequireIdentity(), h.markRead)
	chat.Delete("/messages/:id", h.deleteMessage)
}

func (h *ChatHandler) handleConnection(conn *websocket.Conn) {
	userID, _ := conn.Locals(socketUserLocal).(string)
	correlation, _ := conn.Locals(socketCorrelationLocal).(string)
	baseCtx, _ := conn.Locals(socketContextLocal).(context.Context)

	opts := service.ChatConnectionOptions{
		UserID:        userID,
		CorrelationID: correlation,
		Context:       baseCtx,
	}

	h.logger.Info().Str("user_id", userID).Str("correlation_id", correlation).Msg("chat websocket connected")
	h.service.ServeConnection(conn, websocket.PingMessage, opts)
	h.logger.Info().Str("user_id", userID).Str("correlation_id", correlation).Msg("chat websocket disconnected")
}

func (h *ChatHandler) createRoom(c *fiber.Ctx) error {
	var payload dto.ChatRoomCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return respondError(c, h.logger, err)
	}

	room, err := h.service.GetOrCreateRoom(requestContext(c), payload.PostID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "chat room ready", room)
}

func (h *ChatHandler) roomForPost(c *fiber.Ctx) error {
	room, err := h.service.GetOrCreateRoom(requestContext(c), c.Params("postId"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "chat room ready", room)
}

func (h *ChatHandler) getRoom(c *fiber.Ctx) error {
	room, err := h.service.GetRoom(requestContext(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "chat room fetched", room)
}

func (h *ChatHandler) listRooms(c *fiber.Ctx) error {
	limit, offset, err := parsePage(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	rooms, err := h.service.ListRoomsForUser(requestContext(c), middleware.UserID(c), limit, offset)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "chat rooms fetched", rooms)
}

func (h *ChatHandler) sendMessage(c *fiber.Ctx) error {
	var payload dto.ChatSendRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	sender, err := resolveActor(c, payload.SenderID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	payload.SenderID = sender

	message, err := h.service.SendMessage(requestContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendCreated(c, "message sent", message)
}

func (h *ChatHandler) listMessages(c *fiber.Ctx) error {
	limit, offset, err := parsePage(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	messages, err := h.service.ListMessages(requestContext(c), c.Params("id"), limit, offset)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "messages fetched", messages)
}

func (h *ChatHandler) markRead(c *fiber.Ctx) error {
	message, err := h.service.MarkRead(requestContext(c), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "message marked as read", message)
}

func (h *ChatHandler) markAllRead(c *fiber.Ctx) error {
	updated, err := h.service.MarkAllRead(requestContext(c), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "messages marked as read", dto.UpdatedCountResponse{UpdatedCount: updated})
}

func (h *ChatHandler) unreadCount(c *fiber.Ctx) error {
	count, err := h.service.UnreadCount(requestContext(c), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "unread count fetched", dto.UnreadCountResponse{UnreadCount: count})
}

func (h *ChatHandler) deleteMessage(c *fiber.Ctx) error {
	if err := h.service.DeleteMessage(requestContext(c), c.Params("id")); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "message deleted", nil)
}
