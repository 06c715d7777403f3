package app

import (
	"context"
	"sync"
	"time"

	"task_chat_service/internal/chat/domain"
	"task_chat_service/internal/chat/repository"
	"task_chat_service/pkg/config"
	errprocess "task_chat_service/pkg/err"
	"task_chat_service/pkg/logger"
	"task_chat_service/pkg/metrics"
	"task_chat_service/pkg/middlewares"

	"github.com/goccy/go-json"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// Bus cross instance broadcast
type Bus interface {
	Publish(ctx context.Context, channel string, env domain.BusEnvelope) error
	Subscribe(ctx context.Context, channels []string, handler func(channel string, env domain.BusEnvelope)) error
}

// ChatWebsocketHandler realtime gateway of one instance
type ChatWebsocketHandler struct {
	instanceID string
	chat       ChatUseCase
	hub        *Hub
	bus        Bus
	presence   repository.PresenceRepository
	notifier   domain.Notifier
	cfg        config.WSConfig

	// push dispatch goroutines
	pending sync.WaitGroup
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(
	instanceID string,
	chat ChatUseCase,
	hub *Hub,
	bus Bus,
	presence repository.PresenceRepository,
	notifier domain.Notifier,
	cfg config.WSConfig,
) *ChatWebsocketHandler {
	return &ChatWebsocketHandler{
		instanceID: instanceID,
		chat:       chat,
		hub:        hub,
		bus:        bus,
		presence:   presence,
		notifier:   notifier,
		cfg:        cfg,
	}
}

// Start subscribe bus channels, relay envelopes of other instances to local clients
func (h *ChatWebsocketHandler) Start(ctx context.Context) error {
	return h.bus.Subscribe(ctx, domain.BusChannels, h.onBusEnvelope)
}

func (h *ChatWebsocketHandler) onBusEnvelope(channel string, env domain.BusEnvelope) {
	// 自己發的已經在本地送過了
	if env.Origin == h.instanceID {
		return
	}
	if env.Target == domain.BroadcastAll {
		h.hub.EmitAll(env.Event, env.Exclude)
		return
	}
	n := h.hub.Emit(env.Target, env.Event, env.Exclude)
	logger.Log.Debug("bus relay", zap.String("channel", channel), zap.String("target", env.Target), zap.Int("delivered", n))
}

// Wait block until every push dispatch goroutine finished
func (h *ChatWebsocketHandler) Wait() {
	h.pending.Wait()
}

// HandleConnection 是 WebSocket 連線的進入點，identity 由 JWTMiddleware 放在 locals
func (h *ChatWebsocketHandler) HandleConnection(conn *websocket.Conn) {
	id := Identity{}
	id.UserID, _ = conn.Locals(middlewares.TokenMemberID).(string)
	id.DisplayName, _ = conn.Locals(middlewares.TokenDisplayName).(string)
	id.FirstName, _ = conn.Locals(middlewares.TokenFirstName).(string)

	h.Serve(context.Background(), NewClient(conn, id, h.cfg))
}

// Serve run one connection until it closes
func (h *ChatWebsocketHandler) Serve(ctx context.Context, c *Client) {
	h.connect(ctx, c)
	go c.writePump(h.cfg.PingInterval, h.cfg.WriteWait)

	c.readLoop(h.cfg.MaxMessageSize, 2*h.cfg.PingInterval, func(data []byte) {
		h.handleFrame(ctx, c, data)
	})

	h.disconnect(c)
	c.closeSend()
	<-c.done
}

func (h *ChatWebsocketHandler) connect(ctx context.Context, c *Client) {
	h.hub.Register(c)
	h.hub.Join(domain.UserGroup(c.UserID), c)
	metrics.ConnectionsActive.Inc()
	logger.Log.Info("websocket connected", zap.String("user_id", c.UserID), zap.String("conn_id", c.ID))

	first, err := h.presence.AddOnline(ctx, c.UserID)
	if err != nil {
		logger.Log.Error("presence add", zap.String("user_id", c.UserID), zap.Error(err))
		return
	}
	c.online = true
	if first {
		h.broadcast(ctx, domain.ChannelPresence, domain.BroadcastAll,
			domain.NewEvent(domain.EventUserOnline, map[string]interface{}{"user_id": c.UserID}), "")
	}
}

// disconnect ctx of the connection may be gone, use a fresh one
func (h *ChatWebsocketHandler) disconnect(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rooms := h.hub.Unregister(c)
	metrics.ConnectionsActive.Dec()
	for _, roomID := range rooms {
		if err := h.presence.LeaveRoom(ctx, roomID, c.UserID, c.ID); err != nil {
			logger.Log.Warn("presence leave room", zap.String("room_id", roomID), zap.Error(err))
		}
	}

	if c.online {
		last, err := h.presence.RemoveOnline(ctx, c.UserID)
		if err != nil {
			logger.Log.Error("presence remove", zap.String("user_id", c.UserID), zap.Error(err))
		} else if last {
			h.broadcast(ctx, domain.ChannelPresence, domain.BroadcastAll,
				domain.NewEvent(domain.EventUserOffline, map[string]interface{}{"user_id": c.UserID}), "")
		}
	}
	logger.Log.Info("websocket close", zap.String("user_id", c.UserID), zap.String("conn_id", c.ID))
}

func (h *ChatWebsocketHandler) handleFrame(ctx context.Context, c *Client, data []byte) {
	var req domain.WSRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.reply(c, failure(domain.WSRequest{Action: string(domain.EventError)}, errprocess.Validation("invalid payload")))
		return
	}
	req.Normalize()

	if !c.Allow() {
		metrics.RateLimited.Inc()
		metrics.EventsTotal.WithLabelValues(actionLabel(req.Action), "rate_limited").Inc()
		h.reply(c, domain.WSResponse{
			Action:    req.Action,
			RequestID: req.RequestID,
			Error:     &domain.WSError{Kind: "rate_limited", Message: "too many events"},
		})
		return
	}

	resp := h.execAction(ctx, c, req)
	result := "ok"
	if !resp.Success && resp.Error != nil {
		result = resp.Error.Kind
		logger.Log.Warn("websocket action failed",
			zap.String("user_id", c.UserID),
			zap.String("action", req.Action),
			zap.String("kind", result),
			zap.String("error", resp.Error.Message),
		)
	}
	metrics.EventsTotal.WithLabelValues(actionLabel(req.Action), result).Inc()
	h.reply(c, resp)
}

func (h *ChatWebsocketHandler) execAction(ctx context.Context, c *Client, req domain.WSRequest) domain.WSResponse {
	switch domain.Action(req.Action) {
	//進入聊天室
	case domain.JoinRoom:
		return h.joinRoom(ctx, c, req)

	//離開聊天室
	case domain.LeaveRoom:
		h.hub.Leave(req.RoomID, c)
		if err := h.presence.LeaveRoom(ctx, req.RoomID, c.UserID, c.ID); err != nil {
			logger.Log.Warn("presence leave room", zap.String("room_id", req.RoomID), zap.Error(err))
		}
		return success(req, map[string]interface{}{"room_id": req.RoomID})

	//傳送訊息，寫入 db 後傳給聊天室內的人
	case domain.SendMessage:
		return h.sendMessage(ctx, c, req)

	case domain.Typing:
		if !h.hub.InGroup(req.RoomID, c) {
			return failure(req, errprocess.Authorization("join room %s first", req.RoomID))
		}
		h.broadcast(ctx, domain.ChannelTyping, req.RoomID, domain.NewEvent(domain.EventUserTyping, map[string]interface{}{
			"room_id":      req.RoomID,
			"user_id":      c.UserID,
			"first_name":   c.FirstName,
			"is_typing":    req.IsTyping,
			"is_recording": req.IsRecording,
		}), c.ID)
		return success(req, nil)

	case domain.MessageDelivered:
		return h.updateStatus(ctx, c, req, domain.StatusDelivered)

	case domain.MessageSeen:
		return h.updateStatus(ctx, c, req, domain.StatusSeen)

	case domain.GetOnlineUsers:
		users, err := h.presence.OnlineUsers(ctx)
		if err != nil {
			return failure(req, errprocess.Wrap(errprocess.KindInternal, err, "load online users"))
		}
		return success(req, map[string]interface{}{"users": users})

	//搜尋未讀聊天室數量
	case domain.GetUnreadCount:
		count, err := h.chat.GetUnreadConversationCount(ctx, c.UserID)
		if err != nil {
			return failure(req, err)
		}
		return success(req, map[string]interface{}{"count": count})

	default:
		return failure(req, errprocess.Validation("unknown action %q", req.Action))
	}
}

func (h *ChatWebsocketHandler) joinRoom(ctx context.Context, c *Client, req domain.WSRequest) domain.WSResponse {
	// MarkAsRead 同時檢查是否為成員
	if err := h.chat.MarkAsRead(ctx, req.RoomID, c.UserID); err != nil {
		return failure(req, err)
	}

	h.hub.Join(req.RoomID, c)
	if err := h.presence.JoinRoom(ctx, req.RoomID, c.UserID, c.ID); err != nil {
		logger.Log.Warn("presence join room", zap.String("room_id", req.RoomID), zap.Error(err))
	}
	h.PushUnreadCount(ctx, c.UserID)

	return success(req, map[string]interface{}{"room_id": req.RoomID})
}

func (h *ChatWebsocketHandler) sendMessage(ctx context.Context, c *Client, req domain.WSRequest) domain.WSResponse {
	res, err := h.chat.CreateMessage(ctx, c.UserID, domain.SendMessageRequest{
		RoomID:      req.RoomID,
		Type:        req.Type,
		Text:        req.Text,
		Attachments: req.Attachments,
		ReplyTo:     req.ReplyTo,
		ClientID:    req.TempID,
	})
	if err != nil {
		return failure(req, err)
	}

	// 重送的 temp_id 只回 ack，不再廣播
	if !res.Duplicate {
		h.FanoutMessage(ctx, c.Identity, res, c.ID)
	}

	return success(req, map[string]interface{}{
		"id":                res.Message.ID.Hex(),
		"temp_id":           req.TempID,
		"server_created_at": res.Message.CreatedAt,
		"duplicate":         res.Duplicate,
	})
}

func (h *ChatWebsocketHandler) updateStatus(ctx context.Context, c *Client, req domain.WSRequest, status domain.MessageStatus) domain.WSResponse {
	msg, err := h.chat.UpdateMessageStatus(ctx, c.UserID, req.MessageID, status)
	if err != nil {
		return failure(req, err)
	}

	h.FanoutStatus(ctx, c.UserID, msg)

	return success(req, map[string]interface{}{
		"id":                msg.ID.Hex(),
		"temp_id":           req.TempID,
		"status":            msg.Status,
		"server_updated_at": msg.UpdatedAt,
	})
}

// FanoutMessage relay a persisted message to the room, unread totals to the other participants,
// then push notification for participants not live in the room
func (h *ChatWebsocketHandler) FanoutMessage(ctx context.Context, sender Identity, res *domain.SendResult, excludeConn string) {
	roomID := res.Message.RoomID.Hex()
	h.broadcast(ctx, domain.ChannelMessages, roomID, domain.NewEvent(domain.EventMessage, map[string]interface{}{
		"message": domain.NewMessageView(res.Message, nil),
	}), excludeConn)

	for _, p := range res.ParticipantIDs {
		if p != sender.UserID {
			h.PushUnreadCount(ctx, p)
		}
	}

	if h.notifier == nil {
		return
	}
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		h.notifyOffline(sender, res)
	}()
}

// FanoutStatus relay delivered / seen to the room
func (h *ChatWebsocketHandler) FanoutStatus(ctx context.Context, userID string, msg *domain.ChatMessage) {
	roomID := msg.RoomID.Hex()
	h.broadcast(ctx, domain.ChannelStatus, roomID, domain.NewEvent(domain.EventMessageStatus, map[string]interface{}{
		"room_id":    roomID,
		"message_id": msg.ID.Hex(),
		"user_id":    userID,
		"status":     msg.Status,
		"timestamp":  msg.UpdatedAt,
	}), "")
}

// PushUnreadCount send unread conversation total to user_<id>
func (h *ChatWebsocketHandler) PushUnreadCount(ctx context.Context, userID string) {
	count, err := h.chat.GetUnreadConversationCount(ctx, userID)
	if err != nil {
		logger.Log.Warn("unread count", zap.String("user_id", userID), zap.Error(err))
		return
	}
	h.broadcast(ctx, domain.ChannelUser, domain.UserGroup(userID),
		domain.NewEvent(domain.EventUnreadCount, map[string]interface{}{"count": count}), "")
}

// notifyOffline 失敗只記 log，不影響已送出的訊息
func (h *ChatWebsocketHandler) notifyOffline(sender Identity, res *domain.SendResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	roomID := res.Message.RoomID.Hex()
	live, err := h.presence.RoomMembers(ctx, roomID)
	if err != nil {
		logger.Log.Warn("room members", zap.String("room_id", roomID), zap.Error(err))
		live = nil
	}
	inRoom := make(map[string]struct{}, len(live))
	for _, u := range live {
		inRoom[u] = struct{}{}
	}

	for _, p := range res.ParticipantIDs {
		if p == sender.UserID {
			continue
		}
		if _, ok := inRoom[p]; ok {
			continue
		}
		err := h.notifier.Notify(ctx, domain.PushNotification{
			UserID: p,
			Title:  res.RoomName,
			Body:   pushBody(sender, res.Message),
			Data: map[string]string{
				"type":       "chat_message",
				"room_id":    roomID,
				"message_id": res.Message.ID.Hex(),
			},
			CreatedAt: res.Message.CreatedAt,
		})
		if err != nil {
			logger.Log.Warn("push notification", zap.String("user_id", p), zap.Error(err))
		}
	}
}

func pushBody(sender Identity, msg *domain.ChatMessage) string {
	name := sender.DisplayName
	if name == "" {
		name = "New message"
	}
	switch msg.Type {
	case domain.MessageImage:
		return name + " sent a photo"
	case domain.MessageVoice:
		return name + " sent a voice message"
	case domain.MessageFile:
		return name + " sent a file"
	default:
		return name + ": " + msg.Text
	}
}

// broadcast emit locally then publish for the other instances
func (h *ChatWebsocketHandler) broadcast(ctx context.Context, channel, target string, event domain.WSResponse, exclude string) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Log.Error("encode event", zap.String("action", event.Action), zap.Error(err))
		return
	}

	if target == domain.BroadcastAll {
		h.hub.EmitAll(data, exclude)
	} else {
		h.hub.Emit(target, data, exclude)
	}

	err = h.bus.Publish(ctx, channel, domain.BusEnvelope{
		Origin:  h.instanceID,
		Target:  target,
		Exclude: exclude,
		Event:   data,
	})
	if err != nil {
		metrics.BusPublished.WithLabelValues(channel, "error").Inc()
		logger.Log.Error("bus publish", zap.String("channel", channel), zap.Error(err))
		return
	}
	metrics.BusPublished.WithLabelValues(channel, "ok").Inc()
}

// reply - 發送 JSON 給發出請求的連線
func (h *ChatWebsocketHandler) reply(c *Client, resp domain.WSResponse) {
	b, err := json.Marshal(resp)
	if err != nil {
		logger.Log.Error("encode response", zap.Error(err))
		return
	}
	c.Enqueue(b)
}

// actionLabel 未知 action 不進 metrics label
func actionLabel(action string) string {
	if domain.Action(action).Known() {
		return action
	}
	return "unknown"
}

func success(req domain.WSRequest, payload map[string]interface{}) domain.WSResponse {
	return domain.WSResponse{Action: req.Action, RequestID: req.RequestID, Success: true, Payload: payload}
}

func failure(req domain.WSRequest, err error) domain.WSResponse {
	return domain.WSResponse{
		Action:    req.Action,
		RequestID: req.RequestID,
		Error:     &domain.WSError{Kind: string(errprocess.KindOf(err)), Message: err.Error()},
	}
}
