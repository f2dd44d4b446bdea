package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/groupbuy-api/internal/dto"
	"github.com/noah-isme/groupbuy-api/internal/models"
	"github.com/noah-isme/groupbuy-api/internal/observability"
	"github.com/noah-isme/groupbuy-api/internal/realtime"
	"github.com/noah-isme/groupbuy-api/internal/repository"
)

const (
	chatRedisTTL       = 30 * time.Minute
	chatSendBufferSize = 32
	chatPingInterval   = 30 * time.Second
)

// ChatConnectionOptions wraps metadata extracted during the HTTP upgrade.
type ChatConnectionOptions struct {
	UserID        string
	CorrelationID string
	Context       context.Context
}

// SocketConn is the subset of a websocket connection the chat service drives.
type SocketConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteJSON(v interface{}) error
	Close() error
}

// ChatService owns chat rooms, the message log and live delivery to room subscribers.
type ChatService interface {
	GetOrCreateRoom(ctx context.Context, postID string) (dto.ChatRoomResponse, error)
	GetRoom(ctx context.Context, roomID string) (dto.ChatRoomResponse, error)
	ListRoomsForUser(ctx context.Context, userID string, limit, offset int) (dto.ChatRoomListResponse, error)
	SendMessage(ctx context.Context, payload dto.ChatSendRequest) (dto.ChatMessageResponse, error)
	ListMessages(ctx context.Context, roomID string, limit, offset int) ([]dto.ChatMessageResponse, error)
	MarkRead(ctx context.Context, messageID, userID string) (dto.ChatMessageResponse, error)
	MarkAllRead(ctx context.Context, roomID, userID string) (int64, error)
	UnreadCount(ctx context.Context, roomID, userID string) (int64, error)
	DeleteMessage(ctx context.Context, messageID string) error
	ServeConnection(conn SocketConn, pingType int, opts ChatConnectionOptions)
	Start(ctx context.Context)
}

type chatService struct {
	repo        repository.ChatRepository
	listings    repository.ListingRepository
	users       repository.UserRepository
	hub         *realtime.Hub
	redis       *redis.Client
	redisStream string
	redisCache  string
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	nodeID      string
}

// chatEvent relays a room frame to the other API instances.
type chatEvent struct {
	Source   string            `json:"source"`
	RoomID   string            `json:"roomId"`
	Envelope realtime.Envelope `json:"envelope"`
	SentAt   time.Time         `json:"sentAt"`
}

// NewChatService creates the chat service. The hub is shared with whoever else needs to reach
// live connections; Redis and NATS are optional.
func NewChatService(
	repo repository.ChatRepository,
	listings repository.ListingRepository,
	users repository.UserRepository,
	hub *realtime.Hub,
	redisClient *redis.Client,
	channelBase string,
	natsConn *nats.Conn,
	validate *validator.Validate,
	logger zerolog.Logger,
) ChatService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	streamChannel := ""
	cachePrefix := ""
	natsSubject := ""
	if channelBase != "" {
		streamChannel = channelBase + ":chat"
		cachePrefix = channelBase + ":chat:last"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".chat"
	}

	return &chatService{
		repo:        repo,
		listings:    listings,
		users:       users,
		hub:         hub,
		redis:       redisClient,
		redisStream: streamChannel,
		redisCache:  cachePrefix,
		nats:        natsConn,
		natsSubject: natsSubject,
		validator:   validate,
		logger:      logger.With().Str("component", "chat_service").Logger(),
		tracer:      observability.Tracer("service/chat"),
		sanitizer:   sanitizer,
		nodeID:      uuid.NewString(),
	}
}

func (s *chatService) Start(ctx context.Context) {
	switch {
	case s.nats != nil && s.natsSubject != "":
		go s.consumeNATS(ctx)
	case s.redis != nil && s.redisStream != "":
		go s.consumeRedis(ctx)
	}
}

// GetOrCreateRoom is idempotent. Concurrent first callers race on the unique post index; the
// loser re-reads the winner's room.
func (s *chatService) GetOrCreateRoom(ctx context.Context, postID string) (dto.ChatRoomResponse, error) {
	if _, err := s.listings.FindByID(ctx, postID); err != nil {
		return dto.ChatRoomResponse{}, notFound("listing", err)
	}

	room, err := s.repo.FindRoomByPostID(ctx, postID)
	if err == nil {
		return dto.NewChatRoomResponse(room), nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return dto.ChatRoomResponse{}, err
	}

	room = models.ChatRoom{PostID: postID}
	if err := s.repo.CreateRoom(ctx, &room); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return dto.ChatRoomResponse{}, err
		}
		existing, findErr := s.repo.FindRoomByPostID(ctx, postID)
		if findErr != nil {
			return dto.ChatRoomResponse{}, notFound("chat room", findErr)
		}
		return dto.NewChatRoomResponse(existing), nil
	}

	s.logger.Info().Str("room_id", room.ID).Str("post_id", postID).Msg("chat room created")
	return dto.NewChatRoomResponse(room), nil
}

func (s *chatService) GetRoom(ctx context.Context, roomID string) (dto.ChatRoomResponse, error) {
	room, err := s.repo.FindRoomByID(ctx, roomID)
	if err != nil {
		return dto.ChatRoomResponse{}, notFound("chat room", err)
	}
	return dto.NewChatRoomResponse(room), nil
}

func (s *chatService) ListRoomsForUser(ctx context.Context, userID string, limit, offset int) (dto.ChatRoomListResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return dto.ChatRoomListResponse{}, ErrUnauthorized
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rooms, total, err := s.repo.ListRoomsForUser(ctx, userID, limit, offset)
	if err != nil {
		return dto.ChatRoomListResponse{}, err
	}

	postIDs := make([]string, 0, len(rooms))
	for _, room := range rooms {
		postIDs = append(postIDs, room.PostID)
	}
	listings, err := s.listings.FindByIDs(ctx, postIDs)
	if err != nil {
		return dto.ChatRoomListResponse{}, err
	}
	byID := make(map[string]models.Listing, len(listings))
	for _, listing := range listings {
		byID[listing.ID] = listing
	}

	summaries := make([]dto.ChatRoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summary := dto.ChatRoomSummary{ChatRoomResponse: dto.NewChatRoomResponse(room)}
		if listing, ok := byID[room.PostID]; ok {
			images := []string(listing.Images)
			if images == nil {
				images = []string{}
			}
			summary.Post = dto.ChatRoomPost{
				ID:       listing.ID,
				Title:    listing.Title,
				AuthorID: listing.AuthorID,
				Status:   string(listing.Status),
				Images:   images,
			}
		}

		summary.LastMessage, err = s.lastMessage(ctx, room.ID)
		if err != nil {
			return dto.ChatRoomListResponse{}, err
		}
		summary.UnreadCount, err = s.repo.CountUnread(ctx, room.ID, userID)
		if err != nil {
			return dto.ChatRoomListResponse{}, err
		}
		summaries = append(summaries, summary)
	}

	return dto.ChatRoomListResponse{ChatRooms: summaries, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *chatService) lastMessage(ctx context.Context, roomID string) (*dto.ChatMessagePreview, error) {
	if cached := s.fetchLastMessage(ctx, roomID); cached != nil {
		return cached, nil
	}

	message, err := s.repo.LatestMessage(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	preview := &dto.ChatMessagePreview{Content: message.Content, SenderID: message.SenderID, CreatedAt: message.CreatedAt}
	s.cacheLastMessage(ctx, roomID, *preview)
	return preview, nil
}

// SendMessage appends the message and echoes it to every room subscriber, sender included.
func (s *chatService) SendMessage(ctx context.Context, payload dto.ChatSendRequest) (dto.ChatMessageResponse, error) {
	payload.ChatRoomID = strings.TrimSpace(payload.ChatRoomID)
	payload.SenderID = strings.TrimSpace(payload.SenderID)
	if err := s.validator.Struct(payload); err != nil {
		return dto.ChatMessageResponse{}, err
	}

	messageType := models.MessageType(payload.MessageType)
	if messageType == "" {
		messageType = models.MessageTypeText
	}

	spanCtx, span := s.tracer.Start(ctx, "chat.send_message", trace.WithAttributes(
		attribute.String("chat.room_id", payload.ChatRoomID),
		attribute.String("chat.sender_id", payload.SenderID),
		attribute.String("chat.type", string(messageType)),
	))
	defer span.End()

	if _, err := s.repo.FindRoomByID(spanCtx, payload.ChatRoomID); err != nil {
		return dto.ChatMessageResponse{}, notFound("chat room", err)
	}
	exists, err := s.users.Exists(spanCtx, payload.SenderID)
	if err != nil {
		return dto.ChatMessageResponse{}, err
	}
	if !exists {
		return dto.ChatMessageResponse{}, fmt.Errorf("sender: %w", ErrNotFound)
	}

	clean := sanitizeText(s.sanitizer, payload.Content)
	if clean == "" {
		return dto.ChatMessageResponse{}, fmt.Errorf("message content empty after sanitization: %w", ErrValidation)
	}

	message := models.Message{
		ChatRoomID:  payload.ChatRoomID,
		SenderID:    payload.SenderID,
		Content:     clean,
		MessageType: messageType,
	}
	if err := s.repo.SaveMessage(spanCtx, &message); err != nil {
		span.RecordError(err)
		return dto.ChatMessageResponse{}, err
	}

	if stored, err := s.repo.FindMessage(spanCtx, message.ID); err == nil {
		message = stored
	}
	response := dto.NewChatMessageResponse(message)

	s.cacheLastMessage(spanCtx, message.ChatRoomID, dto.ChatMessagePreview{
		Content:   message.Content,
		SenderID:  message.SenderID,
		CreatedAt: message.CreatedAt,
	})
	if envelope, err := realtime.NewEnvelope(realtime.EventReceiveMessage, response); err == nil {
		s.fanout(spanCtx, message.ChatRoomID, envelope, "")
	}
	observability.ChatMessagesSent().WithLabelValues(string(messageType)).Inc()

	return response, nil
}

func (s *chatService) ListMessages(ctx context.Context, roomID string, limit, offset int) ([]dto.ChatMessageResponse, error) {
	if _, err := s.repo.FindRoomByID(ctx, roomID); err != nil {
		return nil, notFound("chat room", err)
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	messages, err := s.repo.ListMessages(ctx, roomID, limit, offset)
	if err != nil {
		return nil, err
	}
	return dto.NewChatMessageResponseSlice(messages), nil
}

// MarkRead is a no-op when the reader wrote the message.
func (s *chatService) MarkRead(ctx context.Context, messageID, userID string) (dto.ChatMessageResponse, error) {
	message, err := s.repo.FindMessage(ctx, messageID)
	if err != nil {
		return dto.ChatMessageResponse{}, notFound("message", err)
	}
	if message.SenderID == userID || message.IsRead {
		return dto.NewChatMessageResponse(message), nil
	}

	if err := s.repo.MarkMessageRead(ctx, messageID); err != nil {
		return dto.ChatMessageResponse{}, notFound("message", err)
	}
	message.IsRead = true
	return dto.NewChatMessageResponse(message), nil
}

func (s *chatService) MarkAllRead(ctx context.Context, roomID, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, ErrUnauthorized
	}
	if _, err := s.repo.FindRoomByID(ctx, roomID); err != nil {
		return 0, notFound("chat room", err)
	}
	return s.repo.MarkAllRead(ctx, roomID, userID)
}

func (s *chatService) UnreadCount(ctx context.Context, roomID, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, ErrUnauthorized
	}
	if _, err := s.repo.FindRoomByID(ctx, roomID); err != nil {
		return 0, notFound("chat room", err)
	}
	return s.repo.CountUnread(ctx, roomID, userID)
}

func (s *chatService) DeleteMessage(ctx context.Context, messageID string) error {
	message, err := s.repo.FindMessage(ctx, messageID)
	if err != nil {
		return notFound("message", err)
	}
	if err := s.repo.DeleteMessage(ctx, messageID); err != nil {
		return notFound("message", err)
	}
	s.forgetLastMessage(ctx, message.ChatRoomID)
	return nil
}

func (s *chatService) cacheKey(roomID string) string {
	return fmt.Sprintf("%s:%s", s.redisCache, roomID)
}

func (s *chatService) cacheLastMessage(ctx context.Context, roomID string, preview dto.ChatMessagePreview) {
	if s.redis == nil || s.redisCache == "" {
		return
	}

	payload, err := json.Marshal(preview)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal chat message for cache")
		return
	}
	if err := s.redis.Set(ctx, s.cacheKey(roomID), payload, chatRedisTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache chat message")
	}
}

func (s *chatService) fetchLastMessage(ctx context.Context, roomID string) *dto.ChatMessagePreview {
	if s.redis == nil || s.redisCache == "" {
		return nil
	}

	result, err := s.redis.Get(ctx, s.cacheKey(roomID)).Result()
	if err != nil {
		return nil
	}

	var preview dto.ChatMessagePreview
	if err := json.Unmarshal([]byte(result), &preview); err != nil {
		s.logger.Warn().Err(err).Msg("failed to unmarshal cached chat message")
		return nil
	}
	return &preview
}

func (s *chatService) forgetLastMessage(ctx context.Context, roomID string) {
	if s.redis == nil || s.redisCache == "" {
		return
	}
	if err := s.redis.Del(ctx, s.cacheKey(roomID)).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to drop cached chat message")
	}
}

// fanout delivers the frame to local room members and relays it to other instances.
func (s *chatService) fanout(ctx context.Context, roomID string, envelope realtime.Envelope, exceptConnID string) {
	if s.hub != nil {
		s.hub.Broadcast(roomID, envelope, exceptConnID)
	}
	if err := s.publish(ctx, roomID, envelope); err != nil {
		s.logger.Warn().Err(err).Str("room_id", roomID).Msg("failed to publish chat event")
	}
}

func (s *chatService) publish(ctx context.Context, roomID string, envelope realtime.Envelope) error {
	if (s.redis == nil || s.redisStream == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(chatEvent{
		Source:   s.nodeID,
		RoomID:   roomID,
		Envelope: envelope,
		SentAt:   time.Now().UTC(),
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

func (s *chatService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("chat redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *chatService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats chat subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain chat nats subscription")
		}
	}()
}

func (s *chatService) handleEvent(data []byte) {
	var event chatEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid chat event")
		return
	}
	if event.Source == s.nodeID || s.hub == nil {
		return
	}
	s.hub.Broadcast(event.RoomID, event.Envelope, "")
}
