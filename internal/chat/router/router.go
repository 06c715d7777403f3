package router

import (
	"task_chat_service/internal/chat/app"
	member_app "task_chat_service/internal/member/app"
	"task_chat_service/pkg/middlewares"
	t_token "task_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers every handler mounted by RegisterRoutes
type Handlers struct {
	Chat    *app.ChatHandler
	Gateway *app.ChatWebsocketHandler
	Member  *member_app.MemberHandler
}

// RegisterRoutes 注册聊天相關的路由
func RegisterRoutes(r *fiber.App, verifier *t_token.Verifier, h Handlers) {
	r.Use(middlewares.Metrics())

	// 不需要 token
	r.Get("/", ConnectCheck)
	r.Post("/debug", DebugLogFlag)
	r.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	r.Get("/swagger/*", swagger.HandlerDefault)

	// 握手時驗 token，identity 放在 locals 給 HandleConnection
	r.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	r.Get("/ws", middlewares.JWTMiddleware(verifier), websocket.New(h.Gateway.HandleConnection))

	auth := r.Group("", middlewares.JWTMiddleware(verifier))
	auth.Post("/rooms", h.Chat.CreateRoom)
	auth.Get("/rooms", h.Chat.ListRooms)
	auth.Get("/rooms/:id/messages", h.Chat.ListMessages)
	auth.Post("/rooms/:id/read", h.Chat.MarkRead)
	auth.Post("/messages", h.Chat.SendMessage)
	auth.Patch("/messages/:id/status", h.Chat.UpdateStatus)
	auth.Get("/unread-count", h.Chat.UnreadCount)
	auth.Get("/sync", h.Chat.PullChanges)
	auth.Post("/sync", h.Chat.PushChanges)

	if h.Member != nil {
		auth.Put("/devices", h.Member.RegisterDevice)
		auth.Delete("/devices/:device_id", h.Member.UnregisterDevice)
	}
}
