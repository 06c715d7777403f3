package app

import (
	"context"
	"strconv"

	"task_chat_service/internal/chat/domain"
	errprocess "task_chat_service/pkg/err"
	"task_chat_service/pkg/logger"
	"task_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Fanout realtime side effects of REST writes
type Fanout interface {
	FanoutMessage(ctx context.Context, sender Identity, res *domain.SendResult, excludeConn string)
	FanoutStatus(ctx context.Context, userID string, msg *domain.ChatMessage)
	PushUnreadCount(ctx context.Context, userID string)
}

// ChatHandler REST mirror of the realtime operations + offline sync
type ChatHandler struct {
	Chat   ChatUseCase
	Sync   SyncUseCase
	Fanout Fanout
}

// NewChatHandler create ChatHandler
func NewChatHandler(chat ChatUseCase, sync SyncUseCase, fanout Fanout) *ChatHandler {
	return &ChatHandler{Chat: chat, Sync: sync, Fanout: fanout}
}

func identity(c *fiber.Ctx) Identity {
	first, _ := c.Locals(middlewares.TokenFirstName).(string)
	return Identity{
		UserID:      middlewares.MemberID(c),
		DisplayName: middlewares.DisplayName(c),
		FirstName:   first,
	}
}

func queryInt(c *fiber.Ctx, key string) (int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errprocess.Validation("invalid %s %q", key, raw)
	}
	return n, nil
}

// CreateRoom find or create room
// @Summary Find or create a chat room
// @Description One room per (context_id, participants); the caller is always a participant
// @Tags Chat
// @Accept json
// @Produce json
// @Param body body domain.CreateRoomRequest true "room"
// @Success 200 {object} domain.RoomView
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /rooms [post]
func (h *ChatHandler) CreateRoom(c *fiber.Ctx) error {
	var req domain.CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return errprocess.Respond(c, errprocess.Wrap(errprocess.KindValidation, err, "invalid body"))
	}

	userID := middlewares.MemberID(c)
	room, err := h.Chat.FindOrCreateRoom(c.UserContext(), userID, req)
	if err != nil {
		logger.Log.Error("FindOrCreateRoom Err", zap.String("user_id", userID), zap.Error(err))
		return errprocess.Respond(c, err)
	}
	return c.JSON(room)
}

// ListRooms rooms of caller
// @Summary List chat rooms
// @Tags Chat
// @Produce json
// @Param limit query int false "page size" default(20)
// @Param skip query int false "offset" default(0)
// @Success 200 {array} domain.RoomView
// @Router /rooms [get]
func (h *ChatHandler) ListRooms(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return errprocess.Respond(c, err)
	}
	skip, err := queryInt(c, "skip")
	if err != nil {
		return errprocess.Respond(c, err)
	}

	rooms, err := h.Chat.ListRooms(c.UserContext(), middlewares.MemberID(c), limit, skip)
	if err != nil {
		return errprocess.Respond(c, err)
	}
	return c.JSON(rooms)
}

// ListMessages messages of room, oldest first within the page
// @Summary List room messages
// @Tags Chat
// @Produce json
// @Param id path string true "room id"
// @Param limit query int false "page size" default(50)
// @Param before query string false "message id cursor (exclusive)"
// @Success 200 {array} domain.MessageView
// @Failure 403 {object} map[string]interface{}
// @Router /rooms/{id}/messages [get]
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return errprocess.Respond(c, err)
	}

	msgs, err := h.Chat.ListMessages(c.UserContext(), middlewares.MemberID(c), c.Params("id"), limit, c.Query("before"))
	if err != nil {
		return errprocess.Respond(c, err)
	}
	return c.JSON(msgs)
}

// SendMessage send message without a live connection
// @Summary Send a message
// @Tags Chat
// @Accept json
// @Produce json
// @Param body body domain.SendMessageRequest true "message"
// @Success 201 {object} domain.MessageView
// @Success 200 {object} domain.MessageView "client_id already stored"
// @Failure 403 {object} map[string]interface{}
// @Router /messages [post]
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req domain.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return errprocess.Respond(c, errprocess.Wrap(errprocess.KindValidation, err, "invalid body"))
	}

	sender := identity(c)
	res, err := h.Chat.CreateMessage(c.UserContext(), sender.UserID, req)
	if err != nil {
		logger.Log.Error("CreateMessage Err", zap.String("user_id", sender.UserID), zap.Error(err))
		return errprocess.Respond(c, err)
	}

	view := domain.NewMessageView(res.Message, nil)
	if res.Duplicate {
		return c.JSON(view)
	}
	h.Fanout.FanoutMessage(c.UserContext(), sender, res, "")
	return c.Status(fiber.StatusCreated).JSON(view)
}

// MarkRead mark every message of room read by caller
// @Summary Mark room read
// @Tags Chat
// @Produce json
// @Param id path string true "room id"
// @Success 200 {object} map[string]interface{}
// @Router /rooms/{id}/read [post]
func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	userID := middlewares.MemberID(c)
	if err := h.Chat.MarkAsRead(c.UserContext(), c.Params("id"), userID); err != nil {
		return errprocess.Respond(c, err)
	}
	// 其他裝置同步未讀數
	h.Fanout.PushUnreadCount(c.UserContext(), userID)
	return c.JSON(fiber.Map{"success": true})
}

// UpdateStatus delivered / seen
// @Summary Update message status
// @Tags Chat
// @Accept json
// @Produce json
// @Param id path string true "message id"
// @Param body body domain.UpdateStatusRequest true "status"
// @Success 200 {object} domain.MessageView
// @Router /messages/{id}/status [patch]
func (h *ChatHandler) UpdateStatus(c *fiber.Ctx) error {
	var req domain.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return errprocess.Respond(c, errprocess.Wrap(errprocess.KindValidation, err, "invalid body"))
	}

	userID := middlewares.MemberID(c)
	msg, err := h.Chat.UpdateMessageStatus(c.UserContext(), userID, c.Params("id"), req.Status)
	if err != nil {
		return errprocess.Respond(c, err)
	}
	h.Fanout.FanoutStatus(c.UserContext(), userID, msg)
	return c.JSON(domain.NewMessageView(msg, nil))
}

// UnreadCount rooms with unread messages
// @Summary Unread conversation count
// @Tags Chat
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /unread-count [get]
func (h *ChatHandler) UnreadCount(c *fiber.Ctx) error {
	count, err := h.Chat.GetUnreadConversationCount(c.UserContext(), middlewares.MemberID(c))
	if err != nil {
		return errprocess.Respond(c, err)
	}
	return c.JSON(fiber.Map{"count": count})
}

// PullChanges offline sync pull
// @Summary Pull changes since last sync
// @Tags Sync
// @Produce json
// @Param last_pulled_at query int false "unix ms of the previous pull"
// @Success 200 {object} domain.PullResponse
// @Router /sync [get]
func (h *ChatHandler) PullChanges(c *fiber.Ctx) error {
	var since int64
	if raw := c.Query("last_pulled_at"); raw != "" && raw != "null" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return errprocess.Respond(c, errprocess.Validation("invalid last_pulled_at %q", raw))
		}
		since = n
	}

	resp, err := h.Sync.GetChanges(c.UserContext(), middlewares.MemberID(c), domain.MillisToTime(since))
	if err != nil {
		return errprocess.Respond(c, err)
	}
	return c.JSON(resp)
}

// PushChanges offline sync push
// @Summary Push locally created messages
// @Tags Sync
// @Accept json
// @Produce json
// @Param body body domain.PushRequest true "changes"
// @Success 200 {object} domain.ApplyResult
// @Router /sync [post]
func (h *ChatHandler) PushChanges(c *fiber.Ctx) error {
	var req domain.PushRequest
	if err := c.BodyParser(&req); err != nil {
		return errprocess.Respond(c, errprocess.Wrap(errprocess.KindValidation, err, "invalid body"))
	}

	sender := identity(c)
	result, created := h.Sync.ApplyChanges(c.UserContext(), sender.UserID, req.Changes)
	for _, res := range created {
		h.Fanout.FanoutMessage(c.UserContext(), sender, res, "")
	}
	return c.JSON(result)
}
