package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"task_chat_service/internal/chat/domain"
	errprocess "task_chat_service/pkg/err"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 測試 CreateMessage：寫入後其他人的 unread +1，自己不變
func TestCreateMessage_IncrementsOthers(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	view := f.room(t, "A", "B", "C")
	oid := f.roomID(t, view)

	const n = 5
	for i := 0; i < n; i++ {
		res, err := f.uc.CreateMessage(ctx, "A", domain.SendMessageRequest{RoomID: view.ID, Text: fmt.Sprintf("msg %d", i)})
		require.NoError(t, err)
		assert.False(t, res.Duplicate)
		assert.Equal(t, domain.MessageText, res.Message.Type)
		assert.Equal(t, domain.StatusSent, res.Message.Status)
		assert.Equal(t, []string{"A"}, res.Message.ReadBy)
		assert.Equal(t, []string{"A", "B", "C"}, res.ParticipantIDs)
		assert.Equal(t, "Fix the leaking kitc", res.RoomName)
	}

	assert.Equal(t, 0, f.rooms.unread(oid, "A"))
	assert.Equal(t, n, f.rooms.unread(oid, "B"))
	assert.Equal(t, n, f.rooms.unread(oid, "C"))

	require.NoError(t, f.uc.MarkAsRead(ctx, view.ID, "B"))
	assert.Equal(t, 0, f.rooms.unread(oid, "B"))
	assert.Equal(t, n, f.rooms.unread(oid, "C"))

	countB, err := f.uc.GetUnreadConversationCount(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, int64(0), countB)
	countC, err := f.uc.GetUnreadConversationCount(ctx, "C")
	require.NoError(t, err)
	assert.Equal(t, int64(1), countC)
}

func TestCreateMessage_ConcurrentSendersKeepExactCounters(t *testing.T) {
	f := newChatFixture(t)
	view := f.room(t, "A", "B")
	oid := f.roomID(t, view)

	const perSender = 20
	var wg sync.WaitGroup
	for _, sender := range []string{"A", "B"} {
		for i := 0; i < perSender; i++ {
			wg.Add(1)
			go func(sender string, i int) {
				defer wg.Done()
				_, err := f.uc.CreateMessage(context.Background(), sender, domain.SendMessageRequest{
					RoomID: view.ID,
					Text:   fmt.Sprintf("%s-%d", sender, i),
				})
				assert.NoError(t, err)
			}(sender, i)
		}
	}
	wg.Wait()

	assert.Equal(t, perSender, f.rooms.unread(oid, "A"))
	assert.Equal(t, perSender, f.rooms.unread(oid, "B"))
	assert.Equal(t, 2*perSender, f.msgs.count())
}

func TestCreateMessage_NonParticipant(t *testing.T) {
	f := newChatFixture(t)
	view := f.room(t, "A", "B")
	oid := f.roomID(t, view)

	_, err := f.uc.CreateMessage(context.Background(), "Z", domain.SendMessageRequest{RoomID: view.ID, Text: "let me in"})

	assert.True(t, errprocess.Is(err, errprocess.KindAuthorization))
	assert.Equal(t, 0, f.msgs.count())
	assert.Equal(t, 0, f.rooms.unread(oid, "A"))
	assert.Equal(t, 0, f.rooms.unread(oid, "B"))
}

func TestCreateMessage_Validation(t *testing.T) {
	f := newChatFixture(t)
	view := f.room(t, "A", "B")

	cases := []struct {
		name string
		req  domain.SendMessageRequest
	}{
		{name: "empty", req: domain.SendMessageRequest{RoomID: view.ID, Text: "   "}},
		{name: "bad room", req: domain.SendMessageRequest{RoomID: "room-1", Text: "hi"}},
		{name: "bad type", req: domain.SendMessageRequest{RoomID: view.ID, Type: "sticker", Text: "hi"}},
		{name: "bad reply id", req: domain.SendMessageRequest{RoomID: view.ID, Text: "hi", ReplyTo: "xyz"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.uc.CreateMessage(context.Background(), "A", tc.req)
			assert.True(t, errprocess.Is(err, errprocess.KindValidation), "got %v", err)
		})
	}
	assert.Equal(t, 0, f.msgs.count())
}

func TestCreateMessage_AttachmentOnly(t *testing.T) {
	f := newChatFixture(t)
	view := f.room(t, "A", "B")

	res, err := f.uc.CreateMessage(context.Background(), "A", domain.SendMessageRequest{
		RoomID:      view.ID,
		Type:        domain.MessageImage,
		Attachments: []domain.Attachment{{URL: "https://cdn.example.com/a.jpg", Kind: "image"}},
	})

	require.NoError(t, err)
	assert.Equal(t, domain.MessageImage, res.Message.Type)
	assert.Len(t, res.Message.Attachments, 1)
}

// reply_to 必須是同一間聊天室的訊息
func TestCreateMessage_ReplyAcrossRooms(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	r1 := f.room(t, "A", "B")
	r2 := f.room(t, "A", "C")

	other, err := f.uc.CreateMessage(ctx, "C", domain.SendMessageRequest{RoomID: r2.ID, Text: "in r2"})
	require.NoError(t, err)
	before := f.msgs.count()

	_, err = f.uc.CreateMessage(ctx, "A", domain.SendMessageRequest{RoomID: r1.ID, Text: "quoting", ReplyTo: other.Message.ID.Hex()})

	assert.True(t, errprocess.Is(err, errprocess.KindValidation))
	assert.Equal(t, before, f.msgs.count())
	assert.Equal(t, 0, f.rooms.unread(f.roomID(t, r1), "B"))
}

func TestCreateMessage_ReplyTargetMissing(t *testing.T) {
	f := newChatFixture(t)
	view := f.room(t, "A", "B")

	_, err := f.uc.CreateMessage(context.Background(), "A", domain.SendMessageRequest{
		RoomID:  view.ID,
		Text:    "quoting",
		ReplyTo: nextID().Hex(),
	})

	assert.True(t, errprocess.Is(err, errprocess.KindNotFound))
	assert.Equal(t, 0, f.msgs.count())
}

// 同一 client_id 重送只寫一次
func TestCreateMessage_ClientIDDeduplicates(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	view := f.room(t, "A", "B")
	oid := f.roomID(t, view)
	req := domain.SendMessageRequest{RoomID: view.ID, Text: "once", ClientID: "local-1"}

	first, err := f.uc.CreateMessage(ctx, "A", req)
	require.NoError(t, err)
	second, err := f.uc.CreateMessage(ctx, "A", req)
	require.NoError(t, err)

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Message.ID, second.Message.ID)
	assert.Equal(t, 1, f.msgs.count())
	assert.Equal(t, 1, f.rooms.unread(oid, "B"))

	// 不同 sender 同 client_id 不算重複
	_, err = f.uc.CreateMessage(ctx, "B", domain.SendMessageRequest{RoomID: view.ID, Text: "mine", ClientID: "local-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, f.msgs.count())
}

// 計數器更新失敗時刪掉剛寫入的訊息
func TestCreateMessage_CompensatesWhenCounterFails(t *testing.T) {
	f := newChatFixture(t)
	view := f.room(t, "A", "B")
	f.rooms.incrementErr = errors.New("write conflict")

	_, err := f.uc.CreateMessage(context.Background(), "A", domain.SendMessageRequest{RoomID: view.ID, Text: "lost"})

	require.Error(t, err)
	assert.Equal(t, 0, f.msgs.count())
}

// 分頁：before 游標往回翻，每頁舊到新，不重複不遺漏
func TestListMessages_PaginationRoundTrip(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	view := f.room(t, "A", "B")

	const total = 7
	for i := 0; i < total; i++ {
		_, err := f.uc.CreateMessage(ctx, "A", domain.SendMessageRequest{RoomID: view.ID, Text: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}

	var collected []string
	before := ""
	for pages := 0; pages < 10; pages++ {
		page, err := f.uc.ListMessages(ctx, "B", view.ID, 3, before)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		texts := make([]string, 0, len(page))
		for _, m := range page {
			texts = append(texts, m.Text)
		}
		collected = append(texts, collected...)
		before = page[0].ID
	}

	assert.Equal(t, []string{"m0", "m1", "m2", "m3", "m4", "m5", "m6"}, collected)
}

func TestListMessages_Access(t *testing.T) {
	f := newChatFixture(t)
	view := f.room(t, "A", "B")

	_, err := f.uc.ListMessages(context.Background(), "Z", view.ID, 0, "")
	assert.True(t, errprocess.Is(err, errprocess.KindAuthorization))

	_, err = f.uc.ListMessages(context.Background(), "A", view.ID, 0, "cursor")
	assert.True(t, errprocess.Is(err, errprocess.KindValidation))

	_, err = f.uc.ListMessages(context.Background(), "A", nextID().Hex(), 0, "")
	assert.True(t, errprocess.Is(err, errprocess.KindNotFound))
}

// A 開房說 hello，B 回覆引用 hello
func TestConversation_HelloAndReply(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	view := f.room(t, "A", "B")
	hello, err := f.uc.CreateMessage(ctx, "A", domain.SendMessageRequest{RoomID: view.ID, Text: "hello"})
	require.NoError(t, err)

	roomsB, err := f.uc.ListRooms(ctx, "B", 0, 0)
	require.NoError(t, err)
	require.Len(t, roomsB, 1)
	assert.Equal(t, 1, roomsB[0].UnreadCount)

	require.NoError(t, f.uc.MarkAsRead(ctx, view.ID, "B"))
	_, err = f.uc.CreateMessage(ctx, "B", domain.SendMessageRequest{
		RoomID:  view.ID,
		Text:    "hi back",
		ReplyTo: hello.Message.ID.Hex(),
	})
	require.NoError(t, err)

	msgs, err := f.uc.ListMessages(ctx, "A", view.ID, 0, "")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.Equal(t, "hi back", msgs[1].Text)
	require.NotNil(t, msgs[1].ReplyToMessage)
	assert.Equal(t, hello.Message.ID.Hex(), msgs[1].ReplyToMessage.ID)
	assert.Equal(t, "hello", msgs[1].ReplyToMessage.Text)
	require.NotNil(t, msgs[1].ReplyToMessage.Sender)
	assert.Equal(t, "Amy W.", msgs[1].ReplyToMessage.Sender.DisplayName)

	roomsA, err := f.uc.ListRooms(ctx, "A", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, roomsA[0].UnreadCount)
	roomsB, err = f.uc.ListRooms(ctx, "B", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, roomsB[0].UnreadCount)
}

func TestUpdateMessageStatus(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	view := f.room(t, "A", "B")
	res, err := f.uc.CreateMessage(ctx, "A", domain.SendMessageRequest{RoomID: view.ID, Text: "status"})
	require.NoError(t, err)
	id := res.Message.ID.Hex()

	msg, err := f.uc.UpdateMessageStatus(ctx, "B", id, domain.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, msg.Status)
	assert.Nil(t, msg.SeenAt)

	msg, err = f.uc.UpdateMessageStatus(ctx, "B", id, domain.StatusSeen)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSeen, msg.Status)
	require.NotNil(t, msg.SeenAt)
	assert.True(t, msg.UpdatedAt.After(res.Message.UpdatedAt))

	_, err = f.uc.UpdateMessageStatus(ctx, "B", id, domain.StatusSent)
	assert.True(t, errprocess.Is(err, errprocess.KindValidation))

	_, err = f.uc.UpdateMessageStatus(ctx, "Z", id, domain.StatusSeen)
	assert.True(t, errprocess.Is(err, errprocess.KindAuthorization))

	_, err = f.uc.UpdateMessageStatus(ctx, "B", nextID().Hex(), domain.StatusSeen)
	assert.True(t, errprocess.Is(err, errprocess.KindNotFound))
}
