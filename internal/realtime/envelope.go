package realtime

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Inbound socket events.
const (
	EventJoinChatRoom    = "join_chat_room"
	EventSendMessage     = "send_message"
	EventMarkMessageRead = "mark_message_read"
	EventLeaveChatRoom   = "leave_chat_room"
)

// Outbound socket events.
const (
	EventUserJoined     = "user_joined"
	EventReceiveMessage = "receive_message"
	EventMessageRead    = "message_read"
	EventUserLeft       = "user_left"
	EventError          = "error"
)

// Envelope is the frame exchanged on the chat socket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ErrorPayload is the data of an outbound error event.
type ErrorPayload struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// MembershipPayload is carried by join/leave events in both directions.
type MembershipPayload struct {
	ChatRoomID string `json:"chatRoomId"`
	UserID     string `json:"userId"`
	Message    string `json:"message,omitempty"`
}

// ReadPayload is carried by mark_message_read and message_read.
type ReadPayload struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
}

// NewEnvelope marshals data under the given event name.
func NewEnvelope(event string, data interface{}) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: raw}, nil
}

// ErrorEnvelope builds an outbound error frame.
func ErrorEnvelope(message string, err error) Envelope {
	payload := ErrorPayload{Message: message}
	if err != nil {
		payload.Error = err.Error()
	}
	envelope, _ := NewEnvelope(EventError, payload)
	return envelope
}

const socketEventSchemaURL = "mem://groupbuy/socket_event.schema.json"

//go:embed schema/socket_event.schema.json
var socketEventSchema []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func inboundSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(socketEventSchemaURL, bytes.NewReader(socketEventSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile(socketEventSchemaURL)
	})
	return compiledSchema, schemaErr
}

// DecodeInbound validates a raw client frame against the socket event schema and decodes it.
func DecodeInbound(raw []byte) (Envelope, error) {
	schema, err := inboundSchema()
	if err != nil {
		return Envelope{}, fmt.Errorf("socket schema unavailable: %w", err)
	}

	var document interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return Envelope{}, fmt.Errorf("malformed frame: %w", err)
	}
	if err := schema.Validate(document); err != nil {
		return Envelope{}, fmt.Errorf("invalid frame: %w", err)
	}

	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("malformed frame: %w", err)
	}
	return envelope, nil
}
