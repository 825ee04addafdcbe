package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"classroom-session-service/internal/app"
	"classroom-session-service/internal/auth"
)

// RankingStreamHandler pushes ranking snapshots over a websocket so
// projector views do not have to poll. The engine still owns no timers: the
// connection re-reads session state on a fixed cadence on the client's
// behalf and only writes when the ranking changed.
type RankingStreamHandler struct {
	service    *app.SessionService
	jwtService *auth.JWTService
	logger     *zap.Logger
	upgrader   websocket.Upgrader
	interval   time.Duration
}

func NewRankingStreamHandler(service *app.SessionService, jwtService *auth.JWTService, logger *zap.Logger) *RankingStreamHandler {
	return &RankingStreamHandler{
		service:    service,
		jwtService: jwtService,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		interval: 2 * time.Second,
	}
}

type outboundMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ServeWS handles GET /ws/sessions?sessionId=...&token=... . The token rides
// in the query because browsers cannot set headers on websocket dials.
func (h *RankingStreamHandler) ServeWS(c *gin.Context) {
	sessionID := c.Query("sessionId")
	token := c.Query("token")
	if sessionID == "" || token == "" {
		respondBadRequest(c, "missing sessionId or token")
		return
	}
	claims, err := h.jwtService.Validate(token)
	if err != nil {
		respondUnauthorized(c, "invalid or expired token")
		return
	}
	principal := claims.Principal()

	// Authorize before upgrading so forbidden callers get a plain HTTP error.
	view, err := h.service.Ranking(c.Request.Context(), principal, sessionID)
	if err != nil {
		h.writeHTTPError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	last, _ := json.Marshal(view)
	if err := conn.WriteJSON(outboundMessage{Type: "ranking", Payload: view}); err != nil {
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			view, err := h.service.Ranking(c.Request.Context(), principal, sessionID)
			if err != nil {
				_ = conn.WriteJSON(outboundMessage{Type: "error", Payload: gin.H{"message": err.Error()}})
				return
			}
			current, err := json.Marshal(view)
			if err != nil || string(current) == string(last) {
				continue
			}
			last = current
			if err := conn.WriteJSON(outboundMessage{Type: "ranking", Payload: view}); err != nil {
				return
			}
		}
	}
}

func (h *RankingStreamHandler) writeHTTPError(c *gin.Context, err error) {
	handler := &SessionHandler{service: h.service, logger: h.logger}
	handler.writeError(c, err)
}
