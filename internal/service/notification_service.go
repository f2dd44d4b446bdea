package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/groupbuy-api/internal/dto"
	"github.com/noah-isme/groupbuy-api/internal/models"
	"github.com/noah-isme/groupbuy-api/internal/observability"
	"github.com/noah-isme/groupbuy-api/internal/repository"
)

const notificationBufferSize = 16

// NotificationService is the per-user notification outbox with live fan-out to SSE subscribers.
type NotificationService interface {
	Create(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
	CreateMany(ctx context.Context, payloads []dto.NotificationCreateRequest) ([]dto.NotificationResponse, error)
	List(ctx context.Context, userID string, query dto.NotificationQuery) (dto.NotificationListResponse, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id, userID string) (dto.NotificationResponse, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id, userID string) error
	Subscribe(userID string) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

type notificationService struct {
	repo        repository.NotificationRepository
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	broker      *notificationBroker
	nodeID      string
}

type notificationEvent struct {
	Source       string                   `json:"source"`
	Notification dto.NotificationResponse `json:"notification"`
	SentAt       time.Time                `json:"sentAt"`
}

type notificationBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan dto.NotificationResponse]struct{}
}

// NewNotificationService constructs the outbox. Redis and NATS are optional; when present,
// created notifications are relayed to the other API instances.
func NewNotificationService(repo repository.NotificationRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) NotificationService {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":notifications"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".notifications"
	}

	return &notificationService{
		repo:        repo,
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		validator:   validate,
		logger:      logger.With().Str("component", "notification_service").Logger(),
		tracer:      observability.Tracer("service/notification"),
		sanitizer:   bluemonday.StrictPolicy(),
		broker: &notificationBroker{
			subscribers: make(map[string]map[chan dto.NotificationResponse]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *notificationService) Start(ctx context.Context) {
	switch {
	case s.nats != nil && s.natsSubject != "":
		go s.consumeNATS(ctx)
	case s.redis != nil && s.redisStream != "":
		go s.consumeRedis(ctx)
	}
}

func (s *notificationService) Create(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	responses, err := s.CreateMany(ctx, []dto.NotificationCreateRequest{payload})
	if err != nil {
		return dto.NotificationResponse{}, err
	}
	return responses[0], nil
}

// CreateMany stores one row per payload in a single insert, then relays each row.
func (s *notificationService) CreateMany(ctx context.Context, payloads []dto.NotificationCreateRequest) ([]dto.NotificationResponse, error) {
	if len(payloads) == 0 {
		return []dto.NotificationResponse{}, nil
	}

	items := make([]models.Notification, 0, len(payloads))
	for _, payload := range payloads {
		if err := s.validator.Struct(payload); err != nil {
			return nil, err
		}
		model, err := s.toModel(payload)
		if err != nil {
			return nil, err
		}
		items = append(items, model)
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.create", trace.WithAttributes(
		attribute.String("notification.type", payloads[0].Type),
		attribute.Int("notification.count", len(items)),
	))
	defer span.End()

	if err := s.repo.CreateBatch(spanCtx, items); err != nil {
		span.RecordError(err)
		return nil, err
	}

	responses := dto.NewNotificationResponseSlice(items)
	for _, response := range responses {
		s.broadcast(response)
		if err := s.publish(spanCtx, response); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish notification to broker")
		}
		observability.NotificationsCreated().WithLabelValues(response.Type).Inc()
	}

	return responses, nil
}

func (s *notificationService) toModel(payload dto.NotificationCreateRequest) (models.Notification, error) {
	title := sanitizeText(s.sanitizer, payload.Title)
	message := sanitizeText(s.sanitizer, payload.Message)
	if title == "" || message == "" {
		return models.Notification{}, errors.Join(ErrValidation, errors.New("notification text empty after sanitization"))
	}

	model := models.Notification{
		UserID:  strings.TrimSpace(payload.UserID),
		Type:    models.NotificationType(payload.Type),
		Title:   title,
		Message: message,
		PostID:  payload.PostID,
	}
	if len(payload.Metadata) > 0 {
		model.Metadata = datatypes.JSONMap(payload.Metadata)
	}
	return model, nil
}

func (s *notificationService) List(ctx context.Context, userID string, query dto.NotificationQuery) (dto.NotificationListResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return dto.NotificationListResponse{}, ErrUnauthorized
	}
	if err := s.validator.Struct(query); err != nil {
		return dto.NotificationListResponse{}, err
	}

	notifications, err := s.repo.ListByUser(ctx, userID, query.Limit, query.Offset, query.UnreadOnly)
	if err != nil {
		return dto.NotificationListResponse{}, err
	}
	total, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return dto.NotificationListResponse{}, err
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return dto.NotificationListResponse{}, err
	}

	return dto.NotificationListResponse{
		Notifications: dto.NewNotificationResponseSlice(notifications),
		UnreadCount:   unread,
		Total:         total,
	}, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, ErrUnauthorized
	}
	return s.repo.CountUnread(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID string) (dto.NotificationResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "notifications.mark_read", trace.WithAttributes(
		attribute.String("notification.user_id", userID),
	))
	defer span.End()

	notification, err := s.repo.MarkRead(spanCtx, id, userID)
	if err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, notFound("notification", err)
	}

	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, ErrUnauthorized
	}
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *notificationService) Delete(ctx context.Context, id, userID string) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return notFound("notification", err)
	}
	return nil
}

func (s *notificationService) Subscribe(userID string) (<-chan dto.NotificationResponse, func()) {
	channel := make(chan dto.NotificationResponse, notificationBufferSize)

	s.broker.subscribe(userID, channel)
	observability.SSEClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(userID, channel)
			observability.SSEClientsActive().Dec()
		})
	}

	return channel, cleanup
}

func (s *notificationService) broadcast(notification dto.NotificationResponse) {
	s.broker.broadcast(notification.UserID, notification)
}

func (s *notificationService) publish(ctx context.Context, notification dto.NotificationResponse) error {
	if (s.redis == nil || s.redisStream == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(notificationEvent{
		Source:       s.nodeID,
		Notification: notification,
		SentAt:       time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	// one relay only, otherwise peers would deliver every frame twice
	if s.nats != nil && s.natsSubject != "" {
		return s.nats.Publish(s.natsSubject, payload)
	}
	return s.redis.Publish(ctx, s.redisStream, payload).Err()
}

func (s *notificationService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("notification redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *notificationService) consumeNATS(ctx context.Context) {
	// Every instance needs every notification for its own SSE subscribers, so no queue group.
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats notifications subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain notification nats subscription")
		}
	}()
}

func (s *notificationService) handleEvent(payload []byte) {
	var event notificationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid notification event payload")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	s.broadcast(event.Notification)
}

func (b *notificationBroker) subscribe(userID string, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[userID]; !exists {
		b.subscribers[userID] = make(map[chan dto.NotificationResponse]struct{})
	}
	b.subscribers[userID][ch] = struct{}{}
}

func (b *notificationBroker) unsubscribe(userID string, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[userID]; ok {
		if _, exists := subscribers[ch]; exists {
			delete(subscribers, ch)
			close(ch)
		}
		if len(subscribers) == 0 {
			delete(b.subscribers, userID)
		}
	}
}

func (b *notificationBroker) broadcast(userID string, notification dto.NotificationResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[userID] {
		select {
		case ch <- notification:
		default:
		}
	}
}
