package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/groupbuy-api/internal/dto"
	"github.com/noah-isme/groupbuy-api/internal/middleware"
	"github.com/noah-isme/groupbuy-api/internal/service"
	"github.com/noah-isme/groupbuy-api/internal/utils"
)

// FavoriteHandler exposes listing bookmarks.
type FavoriteHandler struct {
	service service.FavoriteService
	logger  zerolog.Logger
}

// NewFavoriteHandler constructs a FavoriteHandler.
func NewFavoriteHandler(favorites service.FavoriteService, logger zerolog.Logger) *FavoriteHandler {
	return &FavoriteHandler{
		service: favorites,
		logger:  logger.With().Str("component", "favorite_handler").Logger(),
	}
}

// Register wires the favorite routes.
func (h *FavoriteHandler) Register(router fiber.Router) {
	router.Post("/listings/:id/favorite", h.Add)
	router.Delete("/listings/:id/favorite", h.Remove)
	router.Get("/favorites", middleware.RequireIdentity(), h.List)
}

// Add handles POST /listings/:id/favorite.
func (h *FavoriteHandler) Add(c *fiber.Ctx) error {
	user, err := h.actor(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	status, err := h.service.Add(requestContext(c), c.Params("id"), user)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "listing favorited", status)
}

// Remove handles DELETE /listings/:id/favorite.
func (h *FavoriteHandler) Remove(c *fiber.Ctx) error {
	user, err := h.actor(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	status, err := h.service.Remove(requestContext(c), c.Params("id"), user)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "favorite removed", status)
}

// List handles GET /favorites.
func (h *FavoriteHandler) List(c *fiber.Ctx) error {
	limit, offset, err := parsePage(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.service.List(requestContext(c), middleware.UserID(c), dto.FavoriteQuery{Limit: limit, Offset: offset})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "favorites fetched", result)
}

func (h *FavoriteHandler) actor(c *fiber.Ctx) (string, error) {
	var payload dto.FavoriteRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return "", service.ErrValidation
		}
	}
	return resolveActor(c, payload.UserID)
}
