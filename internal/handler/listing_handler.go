package handler

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/groupbuy-api/internal/dto"
	"github.com/noah-isme/groupbuy-api/internal/middleware"
	"github.com/noah-isme/groupbuy-api/internal/models"
	"github.com/noah-isme/groupbuy-api/internal/service"
	"github.com/noah-isme/groupbuy-api/internal/utils"
)

// ListingHandler exposes the listing lifecycle and participation endpoints.
type ListingHandler struct {
	service   service.ListingService
	validator *validator.Validate
	logger    zerolog.Logger
	joinLimit int
	joinSpan  time.Duration
}

// NewListingHandler constructs a ListingHandler. joinLimit and joinWindow bound how often one
// caller may join listings.
func NewListingHandler(listings service.ListingService, validate *validator.Validate, logger zerolog.Logger, joinLimit int, joinWindow time.Duration) *ListingHandler {
	return &ListingHandler{
		service:   listings,
		validator: validate,
		logger:    logger.With().Str("component", "listing_handler").Logger(),
		joinLimit: joinLimit,
		joinSpan:  joinWindow,
	}
}

// Register wires the listing routes.
func (h *ListingHandler) Register(router fiber.Router) {
	listings := router.Group("/listings")
	listings.Get("/", h.List)
	listings.Post("/", h.Create)
	listings.Get("/author/:authorId", h.ListByAuthor)
	listings.Get("/user/:userId/participated", h.ListParticipated)
	listings.Get("/:id", h.Get)
	listings.Patch("/:id", middleware.RequireIdentity(), h.Update)
	listings.Delete("/:id", middleware.RequireIdentity(), h.Delete)
	listings.Patch("/:id/status", h.ChangeStatus)
	listings.Get("/:id/participants", h.ListParticipants)
	listings.Post("/:id/participate", middleware.RateLimit("listing_join", h.joinLimit, h.joinSpan), h.Join)
	listings.Get("/:id/participate/:userId", h.IsParticipant)
	listings.Delete("/:id/participate/:userId", h.Leave)
}

// Create handles POST /listings.
func (h *ListingHandler) Create(c *fiber.Ctx) error {
	var payload dto.ListingCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	author, err := resolveActor(c, payload.AuthorID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	payload.AuthorID = author

	listing, err := h.service.Create(requestContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendCreated(c, "listing created", listing)
}

// List handles GET /listings.
func (h *ListingHandler) List(c *fiber.Ctx) error {
	query, err := h.parseQuery(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.service.List(requestContext(c), query, middleware.UserID(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "listings fetched", result)
}

// ListByAuthor handles GET /listings/author/:authorId.
func (h *ListingHandler) ListByAuthor(c *fiber.Ctx) error {
	query, err := h.parseQuery(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.service.ListByAuthor(requestContext(c), c.Params("authorId"), query, middleware.UserID(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "listings fetched", result)
}

// Get handles GET /listings/:id.
func (h *ListingHandler) Get(c *fiber.Ctx) error {
	listing, err := h.service.Get(requestContext(c), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "listing fetched", listing)
}

// Update handles PATCH /listings/:id.
func (h *ListingHandler) Update(c *fiber.Ctx) error {
	var payload dto.ListingUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}

	listing, err := h.service.Update(requestContext(c), c.Params("id"), middleware.UserID(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "listing updated", listing)
}

// Delete handles DELETE /listings/:id. Only the listing author may delete it: callers without an
// identity get 401 and anyone else gets 403.
func (h *ListingHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(requestContext(c), c.Params("id"), middleware.UserID(c)); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "listing deleted", nil)
}

// ChangeStatus handles PATCH /listings/:id/status.
func (h *ListingHandler) ChangeStatus(c *fiber.Ctx) error {
	var payload dto.ListingStatusRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return respondError(c, h.logger, err)
	}

	requester, err := resolveActor(c, payload.AuthorID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	listing, err := h.service.ChangeStatus(requestContext(c), c.Params("id"), models.ListingStatus(payload.Status), requester)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "listing status updated", listing)
}

// Join handles POST /listings/:id/participate.
func (h *ListingHandler) Join(c *fiber.Ctx) error {
	var payload dto.JoinListingRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return badRequest(c, "invalid request body")
		}
	}

	user, err := resolveActor(c, payload.UserID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	payload.UserID = user
	if err := h.validator.Struct(payload); err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.service.Join(requestContext(c), c.Params("id"), payload.UserID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendCreated(c, "joined listing", result)
}

// Leave handles DELETE /listings/:id/participate/:userId.
func (h *ListingHandler) Leave(c *fiber.Ctx) error {
	user, err := resolveActor(c, c.Params("userId"))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	result, err := h.service.Leave(requestContext(c), c.Params("id"), user)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "left listing", result)
}

// IsParticipant handles GET /listings/:id/participate/:userId.
func (h *ListingHandler) IsParticipant(c *fiber.Ctx) error {
	joined, err := h.service.IsParticipant(requestContext(c), c.Params("id"), c.Params("userId"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "participation checked", dto.ParticipationCheckResponse{IsParticipant: joined})
}

// ListParticipants handles GET /listings/:id/participants.
func (h *ListingHandler) ListParticipants(c *fiber.Ctx) error {
	participants, err := h.service.ListParticipants(requestContext(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "participants fetched", participants)
}

// ListParticipated handles GET /listings/user/:userId/participated.
func (h *ListingHandler) ListParticipated(c *fiber.Ctx) error {
	listings, err := h.service.ListParticipated(requestContext(c), c.Params("userId"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "participated listings fetched", listings)
}

func (h *ListingHandler) parseQuery(c *fiber.Ctx) (dto.ListingQuery, error) {
	limit, offset, err := parsePage(c)
	if err != nil {
		return dto.ListingQuery{}, err
	}
	return dto.ListingQuery{Limit: limit, Offset: offset, Category: c.Query("category")}, nil
}
