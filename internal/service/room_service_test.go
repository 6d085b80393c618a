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

func newRoomFixture(t *testing.T) (*store.Stores, *service.RoomService, *service.FriendService) {
	t.Helper()
	stores := memory.NewStores()
	friendSvc := service.NewFriendService(stores.Friends, stores.Users)
	roomSvc := service.NewRoomService(stores.Rooms, stores.Messages, stores.Users, friendSvc)
	return stores, roomSvc, friendSvc
}

func befriend(t *testing.T, svc *service.FriendService, a, b *domain.User) {
	t.Helper()
	fr, err := svc.SendRequest(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	_, err = svc.AcceptRequest(context.Background(), b.ID, fr.ID)
	require.NoError(t, err)
}

func strPtr(s string) *string { return &s }

func TestCreateRoom(t *testing.T) {
	ctx := context.Background()
	stores, roomSvc, friendSvc := newRoomFixture(t)

	alice := seedUser(t, stores, "alice")
	bob := seedUser(t, stores, "bob")
	carol := seedUser(t, stores, "carol")
	befriend(t, friendSvc, alice, bob)

	t.Run("PrivateRoomWithFriend", func(t *testing.T) {
		room, err := roomSvc.CreateRoom(ctx, service.RoomCreateInput{
			Kind:      domain.RoomPrivate,
			MemberIDs: []string{bob.ID},
		}, alice.ID)
		require.NoError(t, err)
		assert.Len(t, room.MemberIDs, 2)
		assert.Equal(t, alice.ID, room.CreatedBy)
	})

	t.Run("PrivateRoomDeduped", func(t *testing.T) {
		first, err := roomSvc.CreateRoom(ctx, service.RoomCreateInput{
			Kind:      domain.RoomPrivate,
			MemberIDs: []string{bob.ID},
		}, alice.ID)
		require.NoError(t, err)

		// Same pair from the other side returns the existing room.
		second, err := roomSvc.CreateRoom(ctx, service.RoomCreateInput{
			Kind:      domain.RoomPrivate,
			MemberIDs: []string{alice.ID},
		}, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("NonFriendRejectedByName", func(t *testing.T) {
		_, err := roomSvc.CreateRoom(ctx, service.RoomCreateInput{
			Kind:      domain.RoomPrivate,
			MemberIDs: []string{carol.ID},
		}, alice.ID)
		require.ErrorIs(t, err, domain.ErrForbidden)
		assert.Contains(t, err.Error(), "carol")
	})

	t.Run("GroupRequiresName", func(t *testing.T) {
		_, err := roomSvc.CreateRoom(ctx, service.RoomCreateInput{
			Kind:      domain.RoomGroup,
			MemberIDs: []string{bob.ID},
		}, alice.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("PrivateNeedsExactlyTwo", func(t *testing.T) {
		befriend(t, friendSvc, alice, carol)
		_, err := roomSvc.CreateRoom(ctx, service.RoomCreateInput{
			Kind:      domain.RoomPrivate,
			MemberIDs: []string{bob.ID, carol.ID},
		}, alice.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("UnknownKind", func(t *testing.T) {
		_, err := roomSvc.CreateRoom(ctx, service.RoomCreateInput{
			Kind:      "broadcast",
			MemberIDs: []string{bob.ID},
		}, alice.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("DuplicateMembersCollapsed", func(t *testing.T) {
		room, err := roomSvc.CreateRoom(ctx, service.RoomCreateInput{
			Name:      strPtr("team"),
			Kind:      domain.RoomGroup,
			MemberIDs: []string{bob.ID, bob.ID, alice.ID},
		}, alice.ID)
		require.NoError(t, err)
		assert.Len(t, room.MemberIDs, 2)
	})
}

func TestRoomMembership(t *testing.T) {
	ctx := context.Background()
	stores, roomSvc, friendSvc := newRoomFixture(t)

	alice := seedUser(t, stores, "alice")
	bob := seedUser(t, stores, "bob")
	carol := seedUser(t, stores, "carol")
	befriend(t, friendSvc, alice, bob)
	befriend(t, friendSvc, alice, carol)

	group, err := roomSvc.CreateRoom(ctx, service.RoomCreateInput{
		Name:      strPtr("team"),
		Kind:      domain.RoomGroup,
		MemberIDs: []string{bob.ID},
	}, alice.ID)
	require.NoError(t, err)

	t.Run("NonMemberCannotRead", func(t *testing.T) {
		_, err := roomSvc.GetRoom(ctx, group.ID, carol.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("AddFriendToGroup", func(t *testing.T) {
		require.NoError(t, roomSvc.AddMember(ctx, group.ID, alice.ID, carol.ID))
		room, err := roomSvc.GetRoom(ctx, group.ID, carol.ID)
		require.NoError(t, err)
		assert.Len(t, room.MemberIDs, 3)
	})

	t.Run("CannotAddToPrivate", func(t *testing.T) {
		private, err := roomSvc.CreateRoom(ctx, service.RoomCreateInput{
			Kind:      domain.RoomPrivate,
			MemberIDs: []string{bob.ID},
		}, alice.ID)
		require.NoError(t, err)
		err = roomSvc.AddMember(ctx, private.ID, alice.ID, carol.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("LeaveRevokesAccess", func(t *testing.T) {
		require.NoError(t, roomSvc.Leave(ctx, group.ID, carol.ID))
		_, err := roomSvc.GetRoom(ctx, group.ID, carol.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)

		// Room still exists for remaining members.
		_, err = roomSvc.GetRoom(ctx, group.ID, alice.ID)
		assert.NoError(t, err)
	})
}

func TestListRoomsOrderedByActivity(t *testing.T) {
	ctx := context.Background()
	stores, roomSvc, friendSvc := newRoomFixture(t)
	msgSvc := service.NewMessageService(stores.Messages, stores.Rooms, stores.Users, 100, 50)

	alice := seedUser(t, stores, "alice")
	bob := seedUser(t, stores, "bob")
	befriend(t, friendSvc, alice, bob)

	first, err := roomSvc.CreateRoom(ctx, service.RoomCreateInput{
		Name: strPtr("one"), Kind: domain.RoomGroup, MemberIDs: []string{bob.ID},
	}, alice.ID)
	require.NoError(t, err)
	second, err := roomSvc.CreateRoom(ctx, service.RoomCreateInput{
		Name: strPtr("two"), Kind: domain.RoomGroup, MemberIDs: []string{bob.ID},
	}, alice.ID)
	require.NoError(t, err)

	_, err = msgSvc.Send(ctx, service.SendInput{RoomID: first.ID, Content: "hi"}, alice.ID)
	require.NoError(t, err)

	rooms, err := roomSvc.ListForUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, first.ID, rooms[0].ID, "room with latest message sorts first")
	assert.Equal(t, second.ID, rooms[1].ID)

	// The unread count in the listing is the recipient's, not the sender's.
	bobRooms, err := roomSvc.ListForUser(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, bobRooms, 2)
	assert.Equal(t, 1, bobRooms[0].UnreadCount)
	assert.Equal(t, 0, rooms[0].UnreadCount)
}
