package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/groupbuy-api/internal/middleware"
	"github.com/noah-isme/groupbuy-api/internal/service"
	"github.com/noah-isme/groupbuy-api/internal/utils"
)

var kindStatus = map[string]int{
	service.KindNotFound:            fiber.StatusNotFound,
	service.KindAlreadyParticipated: fiber.StatusConflict,
	service.KindAuthorCannotJoin:    fiber.StatusBadRequest,
	service.KindPostNotOpen:         fiber.StatusBadRequest,
	service.KindInvalidTransition:   fiber.StatusBadRequest,
	service.KindValidation:          fiber.StatusBadRequest,
	service.KindForbidden:           fiber.StatusForbidden,
	service.KindUnauthorized:        fiber.StatusUnauthorized,
	service.KindInternal:            fiber.StatusInternalServerError,
}

// respondError maps a service error to its status and error kind. Internal errors are logged and
// reported without detail.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	kind := service.ErrorKind(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = fiber.StatusInternalServerError
	}

	if status >= fiber.StatusInternalServerError {
		requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return utils.SendError(c, status, service.KindInternal, "internal server error")
	}
	return utils.SendError(c, status, kind, err.Error())
}

func badRequest(c *fiber.Ctx, message string) error {
	return utils.SendError(c, fiber.StatusBadRequest, service.KindValidation, message)
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

// resolveActor reconciles a user id claimed in the request with the caller identity. An empty
// claim falls back to the identity; a claim that contradicts it is forbidden.
func resolveActor(c *fiber.Ctx, claimed string) (string, error) {
	claimed = strings.TrimSpace(claimed)
	identity := middleware.UserID(c)

	switch {
	case claimed == "" && identity == "":
		return "", service.ErrUnauthorized
	case claimed == "":
		return identity, nil
	case identity != "" && identity != claimed:
		return "", fmt.Errorf("acting as another user: %w", service.ErrForbidden)
	default:
		return claimed, nil
	}
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, service.ErrValidation)
	}
	return parsed, nil
}

func parsePage(c *fiber.Ctx) (int, int, error) {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return 0, 0, err
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return 0, 0, err
	}
	if limit < 0 || offset < 0 {
		return 0, 0, errors.Join(service.ErrValidation, errors.New("limit and offset must not be negative"))
	}
	return limit, offset, nil
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

// ErrorHandler renders errors that escape the handlers, such as unknown routes, in the response
// envelope.
func ErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			kind := service.KindInternal
			switch fiberErr.Code {
			case fiber.StatusNotFound:
				kind = service.KindNotFound
			case fiber.StatusUnauthorized:
				kind = service.KindUnauthorized
			case fiber.StatusForbidden:
				kind = service.KindForbidden
			case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
				kind = service.KindValidation
			case fiber.StatusUpgradeRequired:
				kind = "UPGRADE_REQUIRED"
			case fiber.StatusMethodNotAllowed:
				kind = "METHOD_NOT_ALLOWED"
			case fiber.StatusTooManyRequests:
				kind = "RATE_LIMITED"
			}
			return utils.SendError(c, fiberErr.Code, kind, fiberErr.Message)
		}
		return respondError(c, logger, err)
	}
}
