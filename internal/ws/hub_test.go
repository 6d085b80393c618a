package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvEvent(t *testing.T, c *Conn) envelope {
	t.Helper()
	select {
	case raw := <-c.send:
		var env envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	default:
		t.Fatal("no event queued")
		return envelope{}
	}
}

func assertNoEvent(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected event queued: %s", raw)
	default:
	}
}

func drain(c *Conn) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func TestHubPresence(t *testing.T) {
	hub := NewHub()
	c1 := newConn(nil)
	c2 := newConn(nil)

	t.Run("FirstConnectionBringsUserOnline", func(t *testing.T) {
		assert.False(t, hub.IsOnline("alice"))
		assert.True(t, hub.Register(c1, "alice"))
		assert.True(t, hub.IsOnline("alice"))
	})

	t.Run("SecondConnectionIsNotFirst", func(t *testing.T) {
		assert.False(t, hub.Register(c2, "alice"))
		assert.True(t, hub.IsOnline("alice"))
	})

	t.Run("UnregisterOneOfTwoKeepsUserOnline", func(t *testing.T) {
		userID, last := hub.Unregister(c1)
		assert.Equal(t, "alice", userID)
		assert.False(t, last)
		assert.True(t, hub.IsOnline("alice"))
	})

	t.Run("UnregisterLastTakesUserOffline", func(t *testing.T) {
		userID, last := hub.Unregister(c2)
		assert.Equal(t, "alice", userID)
		assert.True(t, last)
		assert.False(t, hub.IsOnline("alice"))
	})

	t.Run("UnregisterUnknownConn", func(t *testing.T) {
		userID, last := hub.Unregister(newConn(nil))
		assert.Empty(t, userID)
		assert.False(t, last)
	})
}

func TestHubRoomBroadcast(t *testing.T) {
	hub := NewHub()
	alice := newConn(nil)
	bob := newConn(nil)
	carol := newConn(nil)
	hub.Register(alice, "alice")
	hub.Register(bob, "bob")
	hub.Register(carol, "carol")

	hub.JoinRoom("r1", alice)
	hub.JoinRoom("r1", bob)

	t.Run("OnlyJoinedConnsReceive", func(t *testing.T) {
		hub.Broadcast("r1", EventNewMessage, map[string]string{"content": "hi"}, nil)

		assert.Equal(t, EventNewMessage, recvEvent(t, alice).Event)
		assert.Equal(t, EventNewMessage, recvEvent(t, bob).Event)
		assertNoEvent(t, carol)
	})

	t.Run("ExcludeSkipsOriginator", func(t *testing.T) {
		hub.Broadcast("r1", EventUserTyping, map[string]string{"user_id": "alice"}, alice)

		assertNoEvent(t, alice)
		assert.Equal(t, EventUserTyping, recvEvent(t, bob).Event)
	})

	t.Run("LeaveRoomStopsDelivery", func(t *testing.T) {
		hub.LeaveRoom("r1", bob)
		hub.Broadcast("r1", EventNewMessage, map[string]string{"content": "again"}, nil)

		assert.Equal(t, EventNewMessage, recvEvent(t, alice).Event)
		assertNoEvent(t, bob)
	})

	t.Run("UnregisterLeavesAllRooms", func(t *testing.T) {
		hub.Unregister(alice)
		hub.Broadcast("r1", EventNewMessage, nil, nil)
		assertNoEvent(t, alice)
	})
}

func TestHubSendToUser(t *testing.T) {
	hub := NewHub()
	b1 := newConn(nil)
	b2 := newConn(nil)
	hub.Register(b1, "bob")
	hub.Register(b2, "bob")

	hub.SendToUser("bob", EventNotification, map[string]string{"room_id": "r1"})

	assert.Equal(t, EventNotification, recvEvent(t, b1).Event)
	assert.Equal(t, EventNotification, recvEvent(t, b2).Event)
}

func TestHubBroadcastAll(t *testing.T) {
	hub := NewHub()
	a := newConn(nil)
	b := newConn(nil)
	hub.Register(a, "alice")
	hub.Register(b, "bob")

	hub.BroadcastAll(EventUserStatus, userStatusPayload{UserID: "alice", Status: "online"})

	assert.Equal(t, EventUserStatus, recvEvent(t, a).Event)
	assert.Equal(t, EventUserStatus, recvEvent(t, b).Event)
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	c := newConn(nil)
	payload := []byte(`{}`)
	for i := 0; i < sendBuffer; i++ {
		assert.True(t, c.enqueue(payload))
	}
	assert.False(t, c.enqueue(payload), "full buffer drops instead of blocking")

	c.shutdown()
	assert.False(t, c.enqueue(payload), "closed conn rejects frames")
}
