package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"arena-ace/internal/model"
	"arena-ace/internal/service/notification"
	pkgAuth "arena-ace/pkg/auth"
	"arena-ace/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	pongWait   = 60 * time.Second
	pingEvery  = 25 * time.Second
	writeWait  = 5 * time.Second
	typeNotify = "notification"
)

type Handler struct {
	rdb      *redis.Client
	upgrader websocket.Upgrader
}

type OutgoingMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewHandler accepts any origin when allowedOrigins is empty or contains "*".
func NewHandler(rdb *redis.Client, allowedOrigins []string) *Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	_, wildcard := allowed["*"]

	return &Handler{
		rdb: rdb,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 || wildcard {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// HandleNotifications streams the caller's notifications and every broadcast.
func (h *Handler) HandleNotifications(c *gin.Context) {
	token, err := getTokenFromRequest(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": err.Error()})
		return
	}
	claims, err := pkgAuth.ParseUserToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
		return
	}
	if h.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "live notifications are unavailable"})
		return
	}
	userID := claims.SubjectID

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := h.rdb.Subscribe(ctx, notification.Channel(userID), notification.Channel(model.BroadcastTarget))

	logger.Log.Info("New WebSocket connection", zap.String("userID", userID))

	cl := &client{
		conn:   conn,
		userID: userID,
		sub:    sub,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	cl.run()
}

func getTokenFromRequest(c *gin.Context) (string, error) {
	token := strings.TrimSpace(c.Query("token"))
	if token != "" {
		return token, nil
	}
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = strings.TrimSpace(parts[1])
			if token != "" {
				return token, nil
			}
		}
	}
	return "", errors.New("missing token")
}

type client struct {
	conn   *websocket.Conn
	userID string
	sub    *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
}

func (c *client) run() {
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.writePump()
	c.readPump()
}

// readPump only drains control frames; clients never send data on this socket.
func (c *client) readPump() {
	defer func() {
		close(c.done)
		c.cancel()
		c.sub.Close()
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			logger.Log.Info("WS read error", zap.Error(err), zap.String("userID", c.userID))
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	inbound := c.sub.Channel()
	for {
		select {
		case msg, ok := <-inbound:
			if !ok {
				return
			}
			out := OutgoingMessage{Type: typeNotify, Data: json.RawMessage(msg.Payload)}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(out); err != nil {
				logger.Log.Info("WS write error", zap.Error(err), zap.String("userID", c.userID))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
