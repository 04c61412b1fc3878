package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"douniyaconnect/internal/domain"
	"douniyaconnect/internal/repository"
	"douniyaconnect/internal/service"
	"douniyaconnect/internal/ws"
	"douniyaconnect/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: restrict origins once the frontend domain is fixed
	},
}

const presenceRefreshPeriod = 30 * time.Second

type WebSocketHandler struct {
	hub         *ws.Hub
	authService service.AuthService
	chatService service.ChatService
	presence    repository.PresenceRepository
	log         logger.Logger
}

func NewWebSocketHandler(hub *ws.Hub, authService service.AuthService, chatService service.ChatService, presence repository.PresenceRepository, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		authService: authService,
		chatService: chatService,
		presence:    presence,
		log:         log,
	}
}

// Connect upgrades the request to a websocket. Browsers cannot set an
// Authorization header on the upgrade request, so the token rides in the
// query string.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token query parameter required"})
		return
	}

	user, err := h.authService.ValidateToken(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err, "username", user.Username)
		return
	}

	client := ws.NewClient(user.Username, conn)
	firstConnection := !h.hub.IsConnected(user.Username)
	h.hub.Register(client)

	ctx := context.Background()
	if err := h.presence.SetOnline(ctx, user.Username); err == nil && firstConnection {
		h.hub.BroadcastAll(domain.ChatNotification{
			Type:      domain.EventUserOnline,
			UserID:    user.ID,
			Username:  user.Username,
			Timestamp: time.Now(),
		})
	}

	h.log.Info("Websocket connected", "username", user.Username)

	done := make(chan struct{})
	go client.WritePump()
	go h.refreshPresence(user.Username, done)

	client.ReadPump(func(frame ws.ClientFrame) {
		h.handleFrame(client, frame)
	})

	close(done)
	h.hub.Unregister(client)

	if !h.hub.IsConnected(user.Username) {
		h.presence.SetOffline(ctx, user.Username)
		h.hub.BroadcastAll(domain.ChatNotification{
			Type:      domain.EventUserOffline,
			UserID:    user.ID,
			Username:  user.Username,
			Timestamp: time.Now(),
		})
	}

	h.log.Info("Websocket disconnected", "username", user.Username)
}

func (h *WebSocketHandler) handleFrame(client *ws.Client, frame ws.ClientFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch frame.Type {
	case ws.FrameSubscribe:
		if h.chatService.CanAccess(ctx, client.Username, frame.ConversationID) {
			h.hub.Subscribe(client, frame.ConversationID)
		}
	case ws.FrameUnsubscribe:
		h.hub.Unsubscribe(client, frame.ConversationID)
	case ws.FrameTyping:
		h.chatService.NotifyTyping(ctx, client.Username, frame.ConversationID, true)
	case ws.FrameStopTyping:
		h.chatService.NotifyTyping(ctx, client.Username, frame.ConversationID, false)
	default:
		h.log.Warn("Unknown websocket frame", "type", frame.Type, "username", client.Username)
	}
}

func (h *WebSocketHandler) refreshPresence(username string, done <-chan struct{}) {
	ticker := time.NewTicker(presenceRefreshPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			h.presence.Refresh(ctx, username)
			cancel()
		case <-done:
			return
		}
	}
}
