package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/groupbuy-api/internal/observability"
	"github.com/noah-isme/groupbuy-api/internal/repository"
)

// Trust score deltas applied on listing lifecycle events.
const (
	TrustDeltaCloseAuthor      = 10
	TrustDeltaCloseParticipant = 5
	TrustDeltaCancelAuthor     = -5
	TrustDeltaDeleteAuthor     = -5
	TrustDeltaLeave            = -3
)

// Reasons recorded alongside trust adjustments.
const (
	TrustReasonCloseAuthor      = "close_author"
	TrustReasonCloseParticipant = "close_participant"
	TrustReasonCancelAuthor     = "cancel_author"
	TrustReasonDeleteAuthor     = "delete_author"
	TrustReasonLeave            = "leave"
)

// TrustService owns the per-user trust score counter.
type TrustService interface {
	Adjust(ctx context.Context, userID string, delta int, reason string) error
}

type trustService struct {
	users  repository.UserRepository
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewTrustService constructs the trust score ledger.
func NewTrustService(users repository.UserRepository, logger zerolog.Logger) TrustService {
	return &trustService{
		users:  users,
		logger: logger.With().Str("component", "trust_service").Logger(),
		tracer: observability.Tracer("service/trust"),
	}
}

func (s *trustService) Adjust(ctx context.Context, userID string, delta int, reason string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrNotFound
	}

	spanCtx, span := s.tracer.Start(ctx, "trust.adjust", trace.WithAttributes(
		attribute.String("trust.user_id", userID),
		attribute.Int("trust.delta", delta),
		attribute.String("trust.reason", reason),
	))
	defer span.End()

	if err := s.users.AdjustTrustScore(spanCtx, userID, delta); err != nil {
		span.RecordError(err)
		return notFound("user", err)
	}

	observability.TrustAdjustments().WithLabelValues(reason).Inc()
	s.logger.Debug().Str("user_id", userID).Int("delta", delta).Str("reason", reason).Msg("trust score adjusted")
	return nil
}
