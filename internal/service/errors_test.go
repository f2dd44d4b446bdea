package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/groupbuy-api/internal/models"
	"github.com/noah-isme/groupbuy-api/internal/repository"
)

func TestErrorKind(t *testing.T) {
	validate := validator.New()
	type payload struct {
		Name string `validate:"required"`
	}
	validationErr := validate.Struct(payload{})
	require.Error(t, validationErr)

	cases := map[string]struct {
		err  error
		kind string
	}{
		"not found":          {fmt.Errorf("listing: %w", ErrNotFound), KindNotFound},
		"repository missing": {repository.ErrNotFound, KindNotFound},
		"duplicate join":     {ErrAlreadyParticipated, KindAlreadyParticipated},
		"author join":        {ErrAuthorCannotJoin, KindAuthorCannotJoin},
		"not open":           {ErrPostNotOpen, KindPostNotOpen},
		"transition":         {&TransitionError{From: models.ListingStatusCompleted, To: models.ListingStatusOpen}, KindInvalidTransition},
		"forbidden":          {ErrForbidden, KindForbidden},
		"unauthorized":       {ErrUnauthorized, KindUnauthorized},
		"validation":         {validationErr, KindValidation},
		"custom validation":  {fmt.Errorf("deadline: %w", ErrValidation), KindValidation},
		"internal":           {errors.New("boom"), KindInternal},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.kind, ErrorKind(tc.err))
		})
	}
}

func TestTransitionErrorNamesAllowedSet(t *testing.T) {
	err := &TransitionError{
		From:    models.ListingStatusOpen,
		To:      models.ListingStatusCompleted,
		Allowed: []models.ListingStatus{models.ListingStatusClosed, models.ListingStatusCancelled},
	}
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Contains(t, err.Error(), "closed, cancelled")

	terminal := &TransitionError{From: models.ListingStatusCancelled, To: models.ListingStatusOpen}
	require.Contains(t, terminal.Error(), "terminal")
}
