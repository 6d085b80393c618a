package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/internal/domain"
	"chatrelay/internal/service"
	"chatrelay/internal/store"
	"chatrelay/internal/store/memory"
)

func seedUser(t *testing.T, stores *store.Stores, username string) *domain.User {
	t.Helper()
	u := &domain.User{Username: username, HashedPassword: "x"}
	require.NoError(t, stores.Users.Create(context.Background(), u))
	return u
}

func TestFriendRequests(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	svc := service.NewFriendService(stores.Friends, stores.Users)

	alice := seedUser(t, stores, "alice")
	bob := seedUser(t, stores, "bob")

	t.Run("SendToSelf", func(t *testing.T) {
		_, err := svc.SendRequest(ctx, alice.ID, alice.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("SendToUnknownUser", func(t *testing.T) {
		_, err := svc.SendRequest(ctx, alice.ID, "no-such-user")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("SendCreatesPending", func(t *testing.T) {
		fr, err := svc.SendRequest(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RequestPending, fr.Status)
		assert.Equal(t, alice.ID, fr.FromUserID)
		assert.Equal(t, bob.ID, fr.ToUserID)
	})

	t.Run("DuplicateBlocked", func(t *testing.T) {
		_, err := svc.SendRequest(ctx, alice.ID, bob.ID)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("ReverseDirectionBlocked", func(t *testing.T) {
		_, err := svc.SendRequest(ctx, bob.ID, alice.ID)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})
}

func TestAcceptRequest(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	svc := service.NewFriendService(stores.Friends, stores.Users)

	alice := seedUser(t, stores, "alice")
	bob := seedUser(t, stores, "bob")
	carol := seedUser(t, stores, "carol")

	fr, err := svc.SendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	t.Run("OnlyRecipientCanAccept", func(t *testing.T) {
		_, err := svc.AcceptRequest(ctx, alice.ID, fr.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
		_, err = svc.AcceptRequest(ctx, carol.ID, fr.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("AcceptCreatesSymmetricFriendship", func(t *testing.T) {
		f, err := svc.AcceptRequest(ctx, bob.ID, fr.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, f.ID)

		ok, err := svc.AreFriends(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = svc.AreFriends(ctx, bob.ID, alice.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("AcceptTwiceFails", func(t *testing.T) {
		_, err := svc.AcceptRequest(ctx, bob.ID, fr.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("NewRequestBetweenFriendsBlocked", func(t *testing.T) {
		_, err := svc.SendRequest(ctx, bob.ID, alice.ID)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})
}

func TestDeclineAndCancel(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	svc := service.NewFriendService(stores.Friends, stores.Users)

	alice := seedUser(t, stores, "alice")
	bob := seedUser(t, stores, "bob")

	t.Run("DeclineLeavesNoFriendship", func(t *testing.T) {
		fr, err := svc.SendRequest(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		require.NoError(t, svc.DeclineRequest(ctx, bob.ID, fr.ID))

		ok, err := svc.AreFriends(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("DeclinedRequestDoesNotBlockResend", func(t *testing.T) {
		_, err := svc.SendRequest(ctx, alice.ID, bob.ID)
		assert.NoError(t, err)
	})

	t.Run("OnlySenderCanCancel", func(t *testing.T) {
		incoming, err := svc.ListIncoming(ctx, bob.ID)
		require.NoError(t, err)
		require.Len(t, incoming, 1)
		reqID := incoming[0].Request.ID

		err = svc.CancelRequest(ctx, bob.ID, reqID)
		assert.ErrorIs(t, err, domain.ErrForbidden)

		require.NoError(t, svc.CancelRequest(ctx, alice.ID, reqID))
		incoming, err = svc.ListIncoming(ctx, bob.ID)
		require.NoError(t, err)
		assert.Empty(t, incoming)
	})
}

func TestSearchWithStatus(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	svc := service.NewFriendService(stores.Friends, stores.Users)

	me := seedUser(t, stores, "me")
	friend := seedUser(t, stores, "user-friend")
	sent := seedUser(t, stores, "user-sent")
	received := seedUser(t, stores, "user-received")
	seedUser(t, stores, "user-stranger")

	fr, err := svc.SendRequest(ctx, me.ID, friend.ID)
	require.NoError(t, err)
	_, err = svc.AcceptRequest(ctx, friend.ID, fr.ID)
	require.NoError(t, err)
	_, err = svc.SendRequest(ctx, me.ID, sent.ID)
	require.NoError(t, err)
	_, err = svc.SendRequest(ctx, received.ID, me.ID)
	require.NoError(t, err)

	t.Run("QueryTooShort", func(t *testing.T) {
		_, err := svc.SearchWithStatus(ctx, "u", me.ID, 10)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("AnnotatesRelationships", func(t *testing.T) {
		results, err := svc.SearchWithStatus(ctx, "user-", me.ID, 10)
		require.NoError(t, err)
		require.Len(t, results, 4)

		byName := make(map[string]string, len(results))
		for _, res := range results {
			byName[res.User.Username] = res.Relationship
		}
		assert.Equal(t, service.RelationFriend, byName["user-friend"])
		assert.Equal(t, service.RelationSent, byName["user-sent"])
		assert.Equal(t, service.RelationReceived, byName["user-received"])
		assert.Equal(t, service.RelationNone, byName["user-stranger"])
	})
}

func TestListFriendsAndRemove(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	svc := service.NewFriendService(stores.Friends, stores.Users)

	alice := seedUser(t, stores, "alice")
	bob := seedUser(t, stores, "bob")
	carol := seedUser(t, stores, "carol")

	for _, other := range []*domain.User{bob, carol} {
		fr, err := svc.SendRequest(ctx, alice.ID, other.ID)
		require.NoError(t, err)
		_, err = svc.AcceptRequest(ctx, other.ID, fr.ID)
		require.NoError(t, err)
	}

	friends, err := svc.ListFriends(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, friends, 2)
	names := []string{friends[0].User.Username, friends[1].User.Username}
	assert.ElementsMatch(t, []string{"bob", "carol"}, names)

	require.NoError(t, svc.RemoveFriend(ctx, bob.ID, alice.ID))
	ok, err := svc.AreFriends(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	err = svc.RemoveFriend(ctx, bob.ID, alice.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
