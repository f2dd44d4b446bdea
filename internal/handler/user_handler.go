package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/groupbuy-api/internal/dto"
	"github.com/noah-isme/groupbuy-api/internal/service"
	"github.com/noah-isme/groupbuy-api/internal/utils"
)

// UserHandler exposes the user directory.
type UserHandler struct {
	service service.UserService
	logger  zerolog.Logger
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(users service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{service: users, logger: logger.With().Str("component", "user_handler").Logger()}
}

// Register wires the user routes.
func (h *UserHandler) Register(router fiber.Router) {
	router.Post("/users", h.Create)
	router.Get("/users/:id", h.Get)
}

// Create handles POST /users.
func (h *UserHandler) Create(c *fiber.Ctx) error {
	var payload dto.UserCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	user, err := h.service.Register(requestContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendCreated(c, "user registered", user)
}

// Get handles GET /users/:id.
func (h *UserHandler) Get(c *fiber.Ctx) error {
	user, err := h.service.Get(requestContext(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "user fetched", user)
}
