package notes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"viterbi-notes/cmd/server/ctxkeys"
	"viterbi-notes/cmd/server/handlers/httperr"
	"viterbi-notes/internal/logger"
	"viterbi-notes/internal/services/notes"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// WSClosePolicyViolation represents WebSocket close code for policy violation
	WSClosePolicyViolation = 1008
	// WSCloseInternalError is sent when the notes store cannot be watched
	WSCloseInternalError = 1011

	// SnapshotMessageType tags every message the stream writes
	SnapshotMessageType = "snapshot"

	// WebSocket timeout constants
	wsWriteTimeout     = 10 * time.Second // Timeout for writing messages to WebSocket
	wsPingInterval     = 25 * time.Second // Interval for sending ping messages
	wsPingWriteTimeout = 5 * time.Second  // Timeout for writing ping messages

	msgFailedToCloseWebSocketConnection = "failed to close WebSocket connection"
)

var (
	errMissingSubject = errors.New("missing sub")
	errInvalidToken   = errors.New("invalid token")
)

// Watcher opens live snapshot subscriptions
type Watcher interface {
	Watch(ctx context.Context, favorites bool) (*notes.Subscriber, func(), error)
}

// SnapshotMessage is the payload written for every published snapshot
type SnapshotMessage struct {
	Type  string       `json:"type"`
	Notes []notes.Note `json:"notes"`
}

// WebSocketHandlers contains WebSocket-related handlers
type WebSocketHandlers struct {
	watcher       Watcher
	jwtSecret     string
	maxSessionSec int
}

// NewWebSocketHandlers creates new WebSocket handlers. An empty jwtSecret
// accepts upgrades without a token.
func NewWebSocketHandlers(watcher Watcher, jwtSecret string, maxSessionSec int) *WebSocketHandlers {
	return &WebSocketHandlers{
		watcher:       watcher,
		jwtSecret:     jwtSecret,
		maxSessionSec: maxSessionSec,
	}
}

// WSUpgrade checks the upgrade request and its token before handing over
// to the stream
func (h *WebSocketHandlers) WSUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		logger.L().Warn("websocket upgrade required", "handler", "WSUpgrade", "path", c.Path())
		return httperr.Fail(httperr.ErrWebSocketUpgradeNeeded)
	}

	if h.jwtSecret != "" {
		token := c.Query("token")
		if token == "" {
			logger.L().Warn("missing token in websocket upgrade", "handler", "WSUpgrade", "path", c.Path())
			return httperr.Fail(httperr.E{
				Status:  401,
				Message: "Missing token",
			})
		}

		subject, err := h.validateJWT(token)
		if err != nil {
			logger.L().Warn("invalid token in websocket upgrade", "handler", "WSUpgrade", "path", c.Path(), "error", err)
			return httperr.Fail(httperr.E{
				Status:  401,
				Message: "Invalid token",
			})
		}
		c.Locals(ctxkeys.SubjectKey, subject)
	}

	c.Locals(ctxkeys.FavoritesKey, c.QueryBool("favorites", false))
	// Use Fiber's request-bound context so WSNotesStream gets a real context.Context.
	c.Locals(ctxkeys.ParentCtxKey, c.UserContext())

	return c.Next()
}

// wsConnection holds connection-specific data. Writes from the sender, the
// keep-alive and the session timer share writeMu.
type wsConnection struct {
	conn      *websocket.Conn
	subject   string
	favorites bool
	writeMu   sync.Mutex
}

func (w *wsConnection) write(timeout time.Duration, fn func() error) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return fn()
}

func (w *wsConnection) logFields(kv ...any) []any {
	return append(kv, "subject", w.subject, "favorites", w.favorites)
}

// WSNotesStream writes every snapshot of the watched collection to the client
func (h *WebSocketHandlers) WSNotesStream(c *websocket.Conn) {
	conn, parentCtx := h.initializeConnection(c)

	ctx, cancelCtx := context.WithCancel(parentCtx)
	defer cancelCtx()

	subscriber, cancel, err := h.watcher.Watch(ctx, conn.favorites)
	if err != nil {
		logger.L().Error("failed to watch notes", conn.logFields("error", err)...)
		h.sendCloseMessage(conn, WSCloseInternalError, "notes unavailable")
		h.closeConnection(c)
		return
	}
	defer cancel()

	logger.L().Info("WebSocket connection established", conn.logFields("sub_id", subscriber.ID.String())...)

	sessionTimer := h.startSessionTimer(c, conn, cancelCtx)
	defer h.stopSessionTimer(sessionTimer)

	ping := h.startKeepAlive(conn)
	defer ping.Stop()

	go h.handleOutgoingMessages(ctx, conn, subscriber)

	h.handleIncomingMessages(conn)

	logger.L().Info("WebSocket connection closed", conn.logFields("sub_id", subscriber.ID.String())...)
}

// initializeConnection collects what WSUpgrade stored in the locals
func (h *WebSocketHandlers) initializeConnection(c *websocket.Conn) (*wsConnection, context.Context) {
	conn := &wsConnection{conn: c}
	conn.subject, _ = c.Locals(ctxkeys.SubjectKey).(string)
	conn.favorites, _ = c.Locals(ctxkeys.FavoritesKey).(bool)

	parentCtx, ok := c.Locals(ctxkeys.ParentCtxKey).(context.Context)
	if !ok || parentCtx == nil {
		parentCtx = context.Background()
	}
	return conn, parentCtx
}

// closeConnection safely closes the WebSocket connection
func (h *WebSocketHandlers) closeConnection(c *websocket.Conn) {
	if err := c.Close(); err != nil {
		logger.L().Debug(msgFailedToCloseWebSocketConnection, "error", err)
	}
}

// startSessionTimer creates and starts the session timeout timer
func (h *WebSocketHandlers) startSessionTimer(c *websocket.Conn, conn *wsConnection, cancelCtx context.CancelFunc) *time.Timer {
	return time.AfterFunc(time.Duration(h.maxSessionSec)*time.Second, func() {
		logger.L().Info("WebSocket session timeout", conn.logFields()...)
		h.sendCloseMessage(conn, WSClosePolicyViolation, "session timeout")
		h.closeConnection(c)
		cancelCtx()
	})
}

// stopSessionTimer safely stops the session timer
func (h *WebSocketHandlers) stopSessionTimer(timer *time.Timer) {
	if timer != nil {
		timer.Stop()
	}
}

// sendCloseMessage sends a close frame to the client
func (h *WebSocketHandlers) sendCloseMessage(conn *wsConnection, code int, reason string) {
	err := conn.write(wsPingWriteTimeout, func() error {
		return conn.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	})
	if err != nil {
		logger.L().Debug("failed to send close message", conn.logFields("error", err)...)
	}
}

// startKeepAlive starts the keep-alive ping mechanism
func (h *WebSocketHandlers) startKeepAlive(conn *wsConnection) *time.Ticker {
	ping := time.NewTicker(wsPingInterval)
	go func() {
		for range ping.C {
			if h.sendPing(conn) != nil {
				return
			}
		}
	}()
	return ping
}

// sendPing sends a ping message to the client
func (h *WebSocketHandlers) sendPing(conn *wsConnection) error {
	err := conn.write(wsPingWriteTimeout, func() error {
		return conn.conn.WriteMessage(websocket.PingMessage, nil)
	})
	if err != nil {
		logger.L().Warn("failed to write ping message", conn.logFields("error", err)...)
	}
	return err
}

// handleOutgoingMessages forwards snapshots until the subscription or the
// connection ends
func (h *WebSocketHandlers) handleOutgoingMessages(ctx context.Context, conn *wsConnection, subscriber *notes.Subscriber) {
	defer func() {
		if r := recover(); r != nil {
			logger.L().Error("panic in WebSocket sender", conn.logFields("error", r)...)
		}
	}()

	for {
		select {
		case snapshot, ok := <-subscriber.Ch:
			if !ok {
				return
			}
			if h.sendSnapshot(conn, snapshot) != nil {
				return
			}
		case <-subscriber.Done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// sendSnapshot writes one snapshot message
func (h *WebSocketHandlers) sendSnapshot(conn *wsConnection, snapshot []notes.Note) error {
	if snapshot == nil {
		snapshot = []notes.Note{}
	}
	message := SnapshotMessage{Type: SnapshotMessageType, Notes: snapshot}

	err := conn.write(wsWriteTimeout, func() error {
		return conn.conn.WriteJSON(message)
	})
	if err != nil {
		logger.L().Warn("failed to write WebSocket message", conn.logFields("error", err)...)
	}
	return err
}

// handleIncomingMessages drains client frames until the connection closes.
// Pings are answered by the underlying connection's default handler.
func (h *WebSocketHandlers) handleIncomingMessages(conn *wsConnection) {
	for {
		if _, _, err := conn.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.L().Warn("WebSocket error", conn.logFields("error", err)...)
			}
			return
		}
	}
}

// validateJWT validates the token and returns its subject
func (h *WebSocketHandlers) validateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errInvalidToken
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", errMissingSubject
	}
	return subject, nil
}

// LogWSConnections logs every WebSocket upgrade attempt.
// It verifies the token with jwtSecret so the logged subject can't be spoofed.
func LogWSConnections(jwtSecret string) fiber.Handler {
	h := &WebSocketHandlers{jwtSecret: jwtSecret}
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			subject := ""
			if token := c.Query("token"); token != "" && jwtSecret != "" {
				subject, _ = h.validateJWT(token)
			}
			logger.L().Info("WebSocket upgrade attempt", "ip", c.IP(), "subject", subject)
		}
		return c.Next()
	}
}
