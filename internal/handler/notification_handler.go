package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/groupbuy-api/internal/dto"
	"github.com/noah-isme/groupbuy-api/internal/middleware"
	"github.com/noah-isme/groupbuy-api/internal/service"
	"github.com/noah-isme/groupbuy-api/internal/utils"
)

// NotificationHandler manages SSE notification streams and inbox operations.
type NotificationHandler struct {
	service   service.NotificationService
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewNotificationHandler constructs a handler instance.
func NewNotificationHandler(notifications service.NotificationService, logger zerolog.Logger, keepAlive time.Duration) *NotificationHandler {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &NotificationHandler{
		service:   notifications,
		logger:    logger.With().Str("component", "notification_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register binds the notification routes. Every route acts on the caller's own inbox.
func (h *NotificationHandler) Register(router fiber.Router) {
	notifications := router.Group("/notifications", middleware.RequireIdentity())
	notifications.Get("/", h.list)
	notifications.Get("/unread-count", h.unreadCount)
	notifications.Get("/stream", h.stream)
	notifications.Patch("/read-all", h.markAllRead)
	notifications.Patch("/:id/read", h.markRead)
	notifications.Delete("/:id", h.delete)
}

func (h *NotificationHandler) list(c *fiber.Ctx) error {
	limit, offset, err := parsePage(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	unreadOnly := false
	if raw := c.Query("unreadOnly"); raw != "" {
		unreadOnly, err = strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "invalid unreadOnly")
		}
	}

	query := dto.NotificationQuery{Limit: limit, Offset: offset, UnreadOnly: unreadOnly}
	result, err := h.service.List(requestContext(c), middleware.UserID(c), query)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "notifications fetched", result)
}

func (h *NotificationHandler) unreadCount(c *fiber.Ctx) error {
	count, err := h.service.UnreadCount(requestContext(c), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "unread count fetched", dto.UnreadCountResponse{UnreadCount: count})
}

func (h *NotificationHandler) stream(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(requestContext(c))
	stream, cleanup := h.service.Subscribe(userID)
	logger := requestLogger(h.logger, c).With().Str("user_id", userID).Logger()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cleanup()
			cancel()
		}()

		ticker := time.NewTicker(h.keepAlive)
		defer ticker.Stop()

		for {
			select {
			case notification, ok := <-stream:
				if !ok {
					return
				}
				if err := writeNotificationEvent(w, notification); err != nil {
					logger.Debug().Err(err).Msg("notification stream closed")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					logger.Debug().Err(err).Msg("notification stream closed")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

func (h *NotificationHandler) markRead(c *fiber.Ctx) error {
	notification, err := h.service.MarkRead(requestContext(c), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "notification updated", notification)
}

func (h *NotificationHandler) markAllRead(c *fiber.Ctx) error {
	updated, err := h.service.MarkAllRead(requestContext(c), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "notifications updated", dto.UpdatedCountResponse{UpdatedCount: updated})
}

func (h *NotificationHandler) delete(c *fiber.Ctx) error {
	if err := h.service.Delete(requestContext(c), c.Params("id"), middleware.UserID(c)); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "notification deleted", nil)
}

func writeNotificationEvent(w *bufio.Writer, notification dto.NotificationResponse) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: notification\ndata: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
