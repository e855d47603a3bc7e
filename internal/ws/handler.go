package ws

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chathive-service/internal/auth"
	"chathive-service/internal/models"
	"chathive-service/internal/observability"
	"chathive-service/internal/repositories"
)

// CloseUnauthorized is sent before an anonymous connection is dropped; it
// never reaches the active state.
const CloseUnauthorized = 4401

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler owns the websocket endpoint: handshake, principal resolution and
// the session lifecycle.
type Handler struct {
	hub      *Hub
	router   *Router
	threads  repositories.ThreadRepository
	messages repositories.MessageRepository
	verifier *auth.Verifier
}

// NewHandler constructs a Handler.
func NewHandler(hub *Hub, router *Router, threads repositories.ThreadRepository, messages repositories.MessageRepository, verifier *auth.Verifier) *Handler {
	return &Handler{hub: hub, router: router, threads: threads, messages: messages, verifier: verifier}
}

// Handle upgrades the connection, authenticates it and runs the read loop
// until the client disconnects. The handler blocks for the connection's
// lifetime so the request context stays valid for storage calls.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chathive-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	userID, err := h.verifier.ResolvePrincipal(token)
	if err != nil {
		observability.IncWSEvent("unauthorized")
		closeMsg := websocket.FormatCloseMessage(CloseUnauthorized, "unauthorized")
		_ = conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second))
		conn.Close()
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	client := newClient(conn, h.hub, h.router, h.threads, h.messages, userID, info)
	observability.IncWSActive()
	observability.IncWSEvent("connect")

	client.send(models.ServerFrame{Type: models.FrameReady, Payload: models.ReadyPayload{UserID: userID}})
	client.readLoop(ctx)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}
