package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/groupbuy-api/internal/models"
	"github.com/noah-isme/groupbuy-api/internal/repository"
)

var (
	// ErrNotFound indicates the listing, user, room, message or notification does not exist
	// (or is not visible to the caller).
	ErrNotFound = errors.New("resource not found")
	// ErrAlreadyParticipated indicates the user already holds a participation on the listing.
	ErrAlreadyParticipated = errors.New("user already participates in listing")
	// ErrAuthorCannotJoin indicates the listing author tried to join their own listing.
	ErrAuthorCannotJoin = errors.New("author cannot join own listing")
	// ErrPostNotOpen indicates the listing no longer accepts participants.
	ErrPostNotOpen = errors.New("listing is not open")
	// ErrForbidden indicates the requester is not allowed to act on the listing.
	ErrForbidden = errors.New("requester is not the listing author")
	// ErrInvalidTransition indicates the requested status is not reachable from the current one.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUnauthorized indicates no caller identity was supplied.
	ErrUnauthorized = errors.New("caller identity required")
	// ErrValidation indicates malformed input that is not covered by struct validation tags.
	ErrValidation = errors.New("validation failed")
	// ErrNotInRoom indicates a socket tried to act on a room it has not joined.
	ErrNotInRoom = errors.New("connection has not joined chat room")
)

// Error kinds reported to clients.
const (
	KindNotFound            = "NOT_FOUND"
	KindAlreadyParticipated = "ALREADY_PARTICIPATED"
	KindAuthorCannotJoin    = "AUTHOR_CANNOT_JOIN"
	KindPostNotOpen         = "POST_NOT_OPEN"
	KindInvalidTransition   = "INVALID_TRANSITION"
	KindValidation          = "VALIDATION_ERROR"
	KindForbidden           = "FORBIDDEN"
	KindUnauthorized        = "UNAUTHORIZED"
	KindInternal            = "INTERNAL_ERROR"
)

// TransitionError describes a rejected status change together with the statuses that were allowed.
type TransitionError struct {
	From    models.ListingStatus
	To      models.ListingStatus
	Allowed []models.ListingStatus
}

func (e *TransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("cannot change status from %s to %s: %s is terminal", e.From, e.To, e.From)
	}
	allowed := make([]string, 0, len(e.Allowed))
	for _, status := range e.Allowed {
		allowed = append(allowed, string(status))
	}
	return fmt.Sprintf("cannot change status from %s to %s: allowed %s", e.From, e.To, strings.Join(allowed, ", "))
}

// Is lets errors.Is match TransitionError against ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ErrorKind maps an error returned by the service layer to the client-facing kind.
func ErrorKind(err error) string {
	var validationErrs validator.ValidationErrors
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyParticipated):
		return KindAlreadyParticipated
	case errors.Is(err, ErrAuthorCannotJoin):
		return KindAuthorCannotJoin
	case errors.Is(err, ErrPostNotOpen):
		return KindPostNotOpen
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotInRoom):
		return KindForbidden
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrValidation), errors.As(err, &validationErrs):
		return KindValidation
	default:
		return KindInternal
	}
}

func notFound(what string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
