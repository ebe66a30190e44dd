package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope_Valid(t *testing.T) {
	raw := []byte(`{"v":1,"type":"room.create","reqId":"r1","payload":{"title":"Lobby"}}`)

	env, err := DecodeEnvelope(raw)

	require.NoError(t, err)
	assert.Equal(t, 1, env.V)
	assert.Equal(t, "room.create", env.Type)
	assert.Equal(t, "r1", env.ReqID)
}

func TestDecodeEnvelope_Malformed(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`not json`))
	assert.Error(t, err)
}

func TestNewResponse_ShapesOkTrue(t *testing.T) {
	env := NewResponse("room.create", "r1", map[string]string{"roomId": "abc"})

	require.NotNil(t, env.Ok)
	assert.True(t, *env.Ok)
	assert.Equal(t, "room.create.resp", env.Type)
	assert.Equal(t, "r1", env.ReqID)
	assert.Nil(t, env.Error)
}

func TestNewErrorResponse_ShapesOkFalse(t *testing.T) {
	env := NewErrorResponse("room.join", "r2", RoomNotFound, "no such room")

	require.NotNil(t, env.Ok)
	assert.False(t, *env.Ok)
	require.NotNil(t, env.Error)
	assert.Equal(t, RoomNotFound, env.Error.Code)
	assert.Equal(t, "room.join.resp", env.Type)
}

func TestNewEvent_NoReqIDNoOk(t *testing.T) {
	env := NewEvent("room.snapshot", map[string]string{"roomId": "abc"})

	assert.Equal(t, "room.snapshot", env.Type)
	assert.Empty(t, env.ReqID)
	assert.Nil(t, env.Ok)
	assert.Nil(t, env.Error)
}

func TestEnvelopeOut_MarshalsExpectedShape(t *testing.T) {
	env := NewResponse("match.move", "r3", map[string]bool{"accepted": true})

	b, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "match.move.resp", decoded["type"])
	assert.Equal(t, "r3", decoded["reqId"])
	assert.Equal(t, true, decoded["ok"])
	assert.NotContains(t, decoded, "error")
}
