package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOutbound records every Send/Evict call without touching a real socket.
type fakeOutbound struct {
	mu      sync.Mutex
	frames  [][]byte
	evicted bool
}

func (f *fakeOutbound) Send(message []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, message)
}

func (f *fakeOutbound) Evict() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evicted = true
}

func (f *fakeOutbound) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeOutbound) wasEvicted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evicted
}

func TestHub_RegisterThenSendDelivers(t *testing.T) {
	h := NewHub()
	client := &fakeOutbound{}

	h.Register("alice", client)
	h.Send("alice", []byte("hello"))

	require.Equal(t, 1, client.frameCount())
}

func TestHub_SendToUnregisteredIsDropped(t *testing.T) {
	h := NewHub()
	assert.NotPanics(t, func() { h.Send("nobody", []byte("hi")) })
}

func TestHub_RegisterEvictsPriorConnection(t *testing.T) {
	h := NewHub()
	first := &fakeOutbound{}
	second := &fakeOutbound{}

	h.Register("alice", first)
	h.Register("alice", second)

	assert.True(t, first.wasEvicted())
	assert.False(t, second.wasEvicted())

	h.Send("alice", []byte("hi"))
	assert.Equal(t, 1, second.frameCount())
	assert.Equal(t, 0, first.frameCount())
}

func TestHub_Kick(t *testing.T) {
	h := NewHub()
	client := &fakeOutbound{}
	h.Register("alice", client)

	h.Kick("alice")

	assert.True(t, client.wasEvicted())
	h.Send("alice", []byte("after kick"))
	assert.Equal(t, 0, client.frameCount())
}

func TestHub_KickUnknownUserIsNoop(t *testing.T) {
	h := NewHub()
	assert.NotPanics(t, func() { h.Kick("ghost") })
}

func TestHub_UnregisterStaleSenderIsNoop(t *testing.T) {
	h := NewHub()
	first := &fakeOutbound{}
	second := &fakeOutbound{}

	h.Register("alice", first)
	h.Register("alice", second)

	// first is stale: unregistering it must not remove second.
	h.Unregister("alice", first)
	h.Send("alice", []byte("still there"))
	assert.Equal(t, 1, second.frameCount())
}

func TestHub_SendJSON(t *testing.T) {
	h := NewHub()
	client := &fakeOutbound{}
	h.Register("alice", client)

	h.SendJSON("alice", NewEvent("room.snapshot", map[string]string{"roomId": "r1"}))

	require.Equal(t, 1, client.frameCount())
}
