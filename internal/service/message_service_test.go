package service_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/internal/domain"
	"chatrelay/internal/service"
	"chatrelay/internal/store"
	"chatrelay/internal/store/memory"
)

type msgFixture struct {
	stores *store.Stores
	rooms  *service.RoomService
	msgs   *service.MessageService
	alice  *domain.User
	bob    *domain.User
	roomID string
}

func newMsgFixture(t *testing.T) *msgFixture {
	t.Helper()
	stores := memory.NewStores()
	friendSvc := service.NewFriendService(stores.Friends, stores.Users)
	roomSvc := service.NewRoomService(stores.Rooms, stores.Messages, stores.Users, friendSvc)
	msgSvc := service.NewMessageService(stores.Messages, stores.Rooms, stores.Users, 100, 50)

	alice := seedUser(t, stores, "alice")
	bob := seedUser(t, stores, "bob")
	befriend(t, friendSvc, alice, bob)

	room, err := roomSvc.CreateRoom(context.Background(), service.RoomCreateInput{
		Kind:      domain.RoomPrivate,
		MemberIDs: []string{bob.ID},
	}, alice.ID)
	require.NoError(t, err)

	return &msgFixture{stores: stores, rooms: roomSvc, msgs: msgSvc, alice: alice, bob: bob, roomID: room.ID}
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()
	f := newMsgFixture(t)

	t.Run("EmptyContentRejected", func(t *testing.T) {
		_, err := f.msgs.Send(ctx, service.SendInput{RoomID: f.roomID}, f.alice.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("UnknownKindRejected", func(t *testing.T) {
		_, err := f.msgs.Send(ctx, service.SendInput{RoomID: f.roomID, Content: "x", Kind: "sticker"}, f.alice.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("NonMemberRejected", func(t *testing.T) {
		carol := seedUser(t, f.stores, "carol")
		_, err := f.msgs.Send(ctx, service.SendInput{RoomID: f.roomID, Content: "x"}, carol.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("DefaultsToText", func(t *testing.T) {
		msg, err := f.msgs.Send(ctx, service.SendInput{RoomID: f.roomID, Content: "hello"}, f.alice.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.MessageText, msg.Kind)
		assert.NotEmpty(t, msg.ID)
	})

	t.Run("UpdatesRoomPreview", func(t *testing.T) {
		_, err := f.msgs.Send(ctx, service.SendInput{RoomID: f.roomID, Content: "latest words"}, f.bob.ID)
		require.NoError(t, err)

		room, err := f.stores.Rooms.GetByID(ctx, f.roomID)
		require.NoError(t, err)
		require.NotNil(t, room.LastMessage)
		assert.Equal(t, "latest words", room.LastMessage.Content)
		assert.Equal(t, "bob", room.LastMessage.SenderName)
	})

	t.Run("PreviewTruncated", func(t *testing.T) {
		long := strings.Repeat("a", 300)
		_, err := f.msgs.Send(ctx, service.SendInput{RoomID: f.roomID, Content: long}, f.alice.ID)
		require.NoError(t, err)

		room, err := f.stores.Rooms.GetByID(ctx, f.roomID)
		require.NoError(t, err)
		assert.Len(t, room.LastMessage.Content, 100)
	})
}

func TestPageMessages(t *testing.T) {
	ctx := context.Background()
	f := newMsgFixture(t)

	for i := 0; i < 120; i++ {
		_, err := f.msgs.Send(ctx, service.SendInput{RoomID: f.roomID, Content: fmt.Sprintf("msg-%03d", i)}, f.alice.ID)
		require.NoError(t, err)
	}

	t.Run("DefaultLimitChronological", func(t *testing.T) {
		page, err := f.msgs.Page(ctx, f.roomID, f.bob.ID, 0, 0)
		require.NoError(t, err)
		require.Len(t, page, 50)
		assert.Equal(t, "msg-070", page[0].Content)
		assert.Equal(t, "msg-119", page[49].Content)
	})

	t.Run("OffsetWalksBackward", func(t *testing.T) {
		page, err := f.msgs.Page(ctx, f.roomID, f.bob.ID, 50, 50)
		require.NoError(t, err)
		require.Len(t, page, 50)
		assert.Equal(t, "msg-020", page[0].Content)
		assert.Equal(t, "msg-069", page[49].Content)
	})

	t.Run("TailPageShort", func(t *testing.T) {
		page, err := f.msgs.Page(ctx, f.roomID, f.bob.ID, 50, 100)
		require.NoError(t, err)
		require.Len(t, page, 20)
		assert.Equal(t, "msg-000", page[0].Content)
		assert.Equal(t, "msg-019", page[19].Content)
	})

	t.Run("NonMemberRejected", func(t *testing.T) {
		carol := seedUser(t, f.stores, "carol")
		_, err := f.msgs.Page(ctx, f.roomID, carol.ID, 10, 0)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestReadReceipts(t *testing.T) {
	ctx := context.Background()
	f := newMsgFixture(t)

	for i := 0; i < 5; i++ {
		_, err := f.msgs.Send(ctx, service.SendInput{RoomID: f.roomID, Content: fmt.Sprintf("m%d", i)}, f.alice.ID)
		require.NoError(t, err)
	}

	t.Run("SenderOwnMessagesNotUnread", func(t *testing.T) {
		count, err := f.msgs.UnreadCount(ctx, f.roomID, f.alice.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("RecipientSeesAllUnread", func(t *testing.T) {
		count, err := f.msgs.UnreadCount(ctx, f.roomID, f.bob.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, count)
	})

	t.Run("MarkAllReadZeroes", func(t *testing.T) {
		require.NoError(t, f.msgs.MarkAllRead(ctx, f.roomID, f.bob.ID))
		count, err := f.msgs.UnreadCount(ctx, f.roomID, f.bob.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("MarkAllReadIdempotent", func(t *testing.T) {
		require.NoError(t, f.msgs.MarkAllRead(ctx, f.roomID, f.bob.ID))
		count, err := f.msgs.UnreadCount(ctx, f.roomID, f.bob.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("ReadByRecorded", func(t *testing.T) {
		page, err := f.msgs.Page(ctx, f.roomID, f.bob.ID, 10, 0)
		require.NoError(t, err)
		for _, m := range page {
			assert.Contains(t, m.ReadBy, f.bob.ID)
		}
	})

	t.Run("MarkSingleMessage", func(t *testing.T) {
		msg, err := f.msgs.Send(ctx, service.SendInput{RoomID: f.roomID, Content: "new"}, f.alice.ID)
		require.NoError(t, err)

		require.NoError(t, f.msgs.MarkRead(ctx, msg.ID, f.bob.ID))
		got, err := f.stores.Messages.GetByID(ctx, msg.ID)
		require.NoError(t, err)
		assert.Contains(t, got.ReadBy, f.bob.ID)
	})
}
