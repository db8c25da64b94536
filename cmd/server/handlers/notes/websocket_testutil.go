package notes

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"viterbi-notes/cmd/server/ctxkeys"
	"viterbi-notes/cmd/server/testutil"
	"viterbi-notes/internal/services/notes"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// MockWatcher implements Watcher over a hub the test publishes to
type MockWatcher struct {
	hub *notes.Hub
	err error

	mu        sync.Mutex
	favorites []bool
}

func NewMockWatcher() *MockWatcher {
	return &MockWatcher{hub: notes.NewHub(4)}
}

func (m *MockWatcher) Watch(ctx context.Context, favorites bool) (*notes.Subscriber, func(), error) {
	m.mu.Lock()
	m.favorites = append(m.favorites, favorites)
	m.mu.Unlock()

	if m.err != nil {
		return nil, nil, m.err
	}
	var filter func(notes.Note) bool
	if favorites {
		filter = notes.IsFavorite
	}
	sub, cancel := m.hub.SubscribeContext(ctx, []notes.Note{}, filter)
	return sub, cancel, nil
}

func (m *MockWatcher) GetSubscriberCount() int {
	return m.hub.GetSubscriberCount()
}

// WebSocketTestConfig holds configuration for WebSocket tests
type WebSocketTestConfig struct {
	Secret        string
	MaxSessionSec int
}

// DefaultWebSocketTestConfig returns a default test configuration
func DefaultWebSocketTestConfig() WebSocketTestConfig {
	return WebSocketTestConfig{
		Secret:        testutil.TestSecret,
		MaxSessionSec: 900,
	}
}

// SetupWebSocketHandlersApp creates a test app whose /ws route reports what
// WSUpgrade stored instead of upgrading
func SetupWebSocketHandlersApp(t *testing.T, config WebSocketTestConfig) (*fiber.App, *MockWatcher, *WebSocketHandlers) {
	t.Helper()

	app := testutil.CreateTestApp(t)
	watcher := NewMockWatcher()
	wsHandlers := NewWebSocketHandlers(watcher, config.Secret, config.MaxSessionSec)

	app.Get("/ws", wsHandlers.WSUpgrade, func(c *fiber.Ctx) error {
		subject, _ := c.Locals(ctxkeys.SubjectKey).(string)
		favorites, _ := c.Locals(ctxkeys.FavoritesKey).(bool)
		return c.JSON(fiber.Map{
			"subject":   subject,
			"favorites": favorites,
		})
	})

	return app, watcher, wsHandlers
}

// StartStreamServer serves WSNotesStream on a free local port and returns
// its ws:// base URL
func StartStreamServer(t *testing.T, wsHandlers *WebSocketHandlers) string {
	t.Helper()

	app := testutil.CreateTestApp(t)
	app.Get("/ws", wsHandlers.WSUpgrade, websocket.New(wsHandlers.WSNotesStream))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.ShutdownWithTimeout(time.Second) })

	return fmt.Sprintf("ws://%s/ws", ln.Addr().String())
}

// DialStream connects a gorilla client to url
func DialStream(t *testing.T, url string) *gorillaws.Conn {
	t.Helper()

	var conn *gorillaws.Conn
	require.Eventually(t, func() bool {
		c, _, err := gorillaws.DefaultDialer.Dial(url, nil)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 2*time.Second, 20*time.Millisecond, "could not establish WebSocket connection")
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// ReadSnapshot reads one snapshot message
func ReadSnapshot(t *testing.T, conn *gorillaws.Conn) SnapshotMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg SnapshotMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}
