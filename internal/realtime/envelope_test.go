package realtime

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeInboundAcceptsKnownEvents(t *testing.T) {
	frames := []string{
		`{"event":"join_chat_room","data":{"chatRoomId":"r1","userId":"u1"}}`,
		`{"event":"send_message","data":{"chatRoomId":"r1","senderId":"u1","content":"hi","messageType":"text"}}`,
		`{"event":"mark_message_read","data":{"messageId":"m1","userId":"u2"}}`,
		`{"event":"leave_chat_room","data":{"chatRoomId":"r1","userId":"u1"}}`,
	}

	for _, frame := range frames {
		envelope, err := DecodeInbound([]byte(frame))
		require.NoError(t, err, frame)
		require.NotEmpty(t, envelope.Event)
		require.NotEmpty(t, envelope.Data)
	}
}

func TestDecodeInboundRejectsInvalidFrames(t *testing.T) {
	frames := map[string]string{
		"not json":        `{"event":`,
		"unknown event":   `{"event":"shout","data":{}}`,
		"missing content": `{"event":"send_message","data":{"chatRoomId":"r1","senderId":"u1"}}`,
		"empty content":   `{"event":"send_message","data":{"chatRoomId":"r1","senderId":"u1","content":""}}`,
		"bad type":        `{"event":"send_message","data":{"chatRoomId":"r1","senderId":"u1","content":"x","messageType":"video"}}`,
		"missing room":    `{"event":"join_chat_room","data":{"userId":"u1"}}`,
		"missing data":    `{"event":"leave_chat_room"}`,
	}

	for name, frame := range frames {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeInbound([]byte(frame))
			require.Error(t, err)
		})
	}
}

func TestErrorEnvelopeCarriesMessageAndCause(t *testing.T) {
	envelope := ErrorEnvelope("join failed", errors.New("room missing"))
	require.Equal(t, EventError, envelope.Event)

	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	require.Equal(t, "join failed", payload.Message)
	require.Equal(t, "room missing", payload.Error)
}
