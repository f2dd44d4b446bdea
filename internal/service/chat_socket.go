package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/noah-isme/groupbuy-api/internal/dto"
	"github.com/noah-isme/groupbuy-api/internal/middleware"
	"github.com/noah-isme/groupbuy-api/internal/realtime"
)

// ServeConnection drives one chat socket until the client goes away. Only the writer goroutine
// touches the socket for output; the reader queues replies through the hub.
func (s *chatService) ServeConnection(conn SocketConn, pingType int, opts ChatConnectionOptions) {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.CorrelationID == "" {
		opts.CorrelationID = middleware.CorrelationIDFromContext(ctx)
	}

	client := realtime.NewConnection(chatSendBufferSize)
	s.hub.Register(client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writeLoop(conn, pingType, client)
	}()

	s.readLoop(ctx, conn, client, opts)

	if session, joined := s.hub.Unregister(client.ID()); joined {
		s.announceMembership(ctx, realtime.EventUserLeft, session.RoomID, session.UserID, client.ID())
	}
	<-done
	_ = conn.Close()
}

func (s *chatService) readLoop(ctx context.Context, conn SocketConn, client *realtime.Connection, opts ChatConnectionOptions) {
	logger := s.logger.With().Str("connection_id", client.ID()).Str("correlation_id", opts.CorrelationID).Logger()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			logger.Debug().Err(err).Msg("chat read loop ended")
			return
		}

		envelope, err := realtime.DecodeInbound(raw)
		if err != nil {
			s.hub.Send(client.ID(), realtime.ErrorEnvelope("invalid event", err))
			continue
		}

		if err := s.processEvent(ctx, client.ID(), opts.UserID, envelope); err != nil {
			logger.Warn().Err(err).Str("event", envelope.Event).Msg("chat event rejected")
			s.hub.Send(client.ID(), realtime.ErrorEnvelope(failureMessage(envelope.Event), err))
		}
	}
}

func (s *chatService) writeLoop(conn SocketConn, pingType int, client *realtime.Connection) {
	ticker := time.NewTicker(chatPingInterval)
	defer ticker.Stop()

	for {
		select {
		case envelope := <-client.Outbox():
			if err := conn.WriteJSON(envelope); err != nil {
				s.logger.Debug().Err(err).Msg("chat write loop terminated")
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(pingType, []byte("keepalive")); err != nil {
				s.logger.Debug().Err(err).Msg("chat ping failed")
				_ = conn.Close()
				return
			}
		case <-client.Done():
			return
		}
	}
}

// processEvent applies one validated inbound frame for the given connection. identity is the
// user bound at upgrade time, empty when the socket is anonymous.
func (s *chatService) processEvent(ctx context.Context, connID, identity string, envelope realtime.Envelope) error {
	switch envelope.Event {
	case realtime.EventJoinChatRoom:
		var payload realtime.MembershipPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
		if identity != "" && payload.UserID != identity {
			return ErrForbidden
		}
		if _, err := s.GetRoom(ctx, payload.ChatRoomID); err != nil {
			return err
		}
		previous, moved := s.hub.Join(connID, payload.UserID, payload.ChatRoomID)
		if moved && previous.RoomID != payload.ChatRoomID {
			s.announceMembership(ctx, realtime.EventUserLeft, previous.RoomID, previous.UserID, connID)
		}
		s.announceMembership(ctx, realtime.EventUserJoined, payload.ChatRoomID, payload.UserID, connID)
		return nil

	case realtime.EventSendMessage:
		var payload dto.ChatSendRequest
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
		session, joined := s.hub.Session(connID)
		if !joined || session.RoomID != payload.ChatRoomID {
			return ErrNotInRoom
		}
		if identity != "" && payload.SenderID != identity {
			return ErrForbidden
		}
		_, err := s.SendMessage(ctx, payload)
		return err

	case realtime.EventMarkMessageRead:
		var payload realtime.ReadPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
		if identity != "" && payload.UserID != identity {
			return ErrForbidden
		}
		if _, err := s.MarkRead(ctx, payload.MessageID, payload.UserID); err != nil {
			return err
		}
		if session, joined := s.hub.Session(connID); joined {
			if frame, err := realtime.NewEnvelope(realtime.EventMessageRead, payload); err == nil {
				s.fanout(ctx, session.RoomID, frame, connID)
			}
		}
		return nil

	case realtime.EventLeaveChatRoom:
		var payload realtime.MembershipPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
		roomID, userID := payload.ChatRoomID, payload.UserID
		if session, joined := s.hub.Leave(connID); joined {
			roomID, userID = session.RoomID, session.UserID
		}
		s.announceMembership(ctx, realtime.EventUserLeft, roomID, userID, connID)
		return nil
	}

	return fmt.Errorf("unsupported event %q: %w", envelope.Event, ErrValidation)
}

func (s *chatService) announceMembership(ctx context.Context, event, roomID, userID, exceptConnID string) {
	message := "user joined the chat room"
	if event == realtime.EventUserLeft {
		message = "user left the chat room"
	}
	frame, err := realtime.NewEnvelope(event, realtime.MembershipPayload{ChatRoomID: roomID, UserID: userID, Message: message})
	if err != nil {
		return
	}
	s.fanout(ctx, roomID, frame, exceptConnID)
}

func failureMessage(event string) string {
	switch event {
	case realtime.EventJoinChatRoom:
		return "failed to join chat room"
	case realtime.EventSendMessage:
		return "failed to send message"
	case realtime.EventMarkMessageRead:
		return "failed to mark message read"
	case realtime.EventLeaveChatRoom:
		return "failed to leave chat room"
	default:
		return "event rejected"
	}
}
