package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newHubClient(id string, buffer int) *Client {
	return &Client{id: id, send: make(chan []byte, buffer)}
}

func receiveFrom(t *testing.T, client *Client) []byte {
	t.Helper()
	select {
	case payload, ok := <-client.send:
		require.True(t, ok, "send channel closed")
		return payload
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
		return nil
	}
}

func assertClosed(t *testing.T, client *Client) {
	t.Helper()
	select {
	case _, ok := <-client.send:
		assert.False(t, ok, "expected closed send channel")
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
}

func TestHubDeliversToEveryConnectionOfUser(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Shutdown()

	aliceDesk := newHubClient("alice", 4)
	alicePhone := newHubClient("alice", 4)
	bob := newHubClient("bob", 4)

	hub.Register(aliceDesk)
	hub.Register(alicePhone)
	hub.Register(bob)

	hub.Send([]string{"alice"}, EventChatUpdated, []byte(`{"n":1}`))

	assert.Equal(t, []byte(`{"n":1}`), receiveFrom(t, aliceDesk))
	assert.Equal(t, []byte(`{"n":1}`), receiveFrom(t, alicePhone))

	select {
	case payload := <-bob.send:
		t.Fatalf("bob received unaddressed event %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubAddressesMultipleUsers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Shutdown()

	alice := newHubClient("alice", 4)
	bob := newHubClient("bob", 4)
	hub.Register(alice)
	hub.Register(bob)

	hub.Send([]string{"alice", "bob"}, EventConversationCreated, []byte(`{}`))

	receiveFrom(t, alice)
	receiveFrom(t, bob)
}

func TestHubDropsSlowConsumer(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Shutdown()

	slow := newHubClient("alice", 1)
	marker := newHubClient("bob", 1)
	hub.Register(slow)
	hub.Register(marker)

	// Pre-fill the buffer so the delivery deterministically finds it
	// full and the hub cuts the connection instead of stalling.
	slow.send <- []byte(`1`)
	hub.Send([]string{"alice"}, EventChatUpdated, []byte(`2`))

	// The run loop is serial: once bob sees the marker event, the
	// drop of alice's connection has been processed.
	hub.Send([]string{"bob"}, EventChatUpdated, []byte(`m`))
	receiveFrom(t, marker)

	assert.Equal(t, []byte(`1`), receiveFrom(t, slow))
	assertClosed(t, slow)
}

func TestErrorWriteAfterHubDrop(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Shutdown()

	slow := newHubClient("alice", 1)
	marker := newHubClient("bob", 1)
	hub.Register(slow)
	hub.Register(marker)

	slow.send <- []byte(`1`)
	hub.Send([]string{"alice"}, EventChatUpdated, []byte(`2`))

	hub.Send([]string{"bob"}, EventChatUpdated, []byte(`m`))
	receiveFrom(t, marker)

	assert.Equal(t, []byte(`1`), receiveFrom(t, slow))
	assertClosed(t, slow)

	// The read pump keeps running after the hub cut the connection and
	// may still report failures; these must be silent no-ops, never a
	// write to the closed channel.
	slow.writeClientError("could not parse frame")
	slow.writeServiceError(assert.AnError)
}

func TestErrorWriteAfterShutdown(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	alice := newHubClient("alice", 4)
	hub.Register(alice)
	hub.Shutdown()
	assertClosed(t, alice)

	alice.writeClientError("authenticate first")
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Shutdown()

	alice := newHubClient("alice", 4)
	hub.Register(alice)
	hub.Unregister(alice)

	assertClosed(t, alice)

	// A later delivery to the departed user must not panic or block.
	hub.Send([]string{"alice"}, EventChatUpdated, []byte(`{}`))
	hub.Send([]string{"alice"}, EventChatUpdated, []byte(`{}`))
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()

	alice := newHubClient("alice", 4)
	bob := newHubClient("bob", 4)
	hub.Register(alice)
	hub.Register(bob)

	hub.Shutdown()

	assertClosed(t, alice)
	assertClosed(t, bob)

	// Registration after shutdown returns instead of blocking forever.
	done := make(chan struct{})
	go func() {
		hub.Register(newHubClient("carol", 1))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Register blocked after shutdown")
	}
}
