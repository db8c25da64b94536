package notes

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"viterbi-notes/cmd/server/testutil"
	"viterbi-notes/internal/services/notes"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wsMaxIncomingBytes = 1 << 20 // 1 MiB

func TestWSUpgradeTableDriven(t *testing.T) {
	cfg := DefaultWebSocketTestConfig()

	validToken, err := testutil.CreateTestJWT("alice", []byte(cfg.Secret), time.Hour)
	require.NoError(t, err)
	expiredToken, err := testutil.CreateTestJWT("alice", []byte(cfg.Secret), -time.Hour)
	require.NoError(t, err)
	wrongSecretToken, err := testutil.CreateTestJWT("alice", []byte("wrong-secret-key-with-32-characters"), time.Hour)
	require.NoError(t, err)
	noSubjectToken, err := testutil.CreateTestJWT("", []byte(cfg.Secret), time.Hour)
	require.NoError(t, err)
	invalidToken := "invalid-token"

	testCases := []struct {
		name           string
		token          *string
		expectedStatus int
	}{
		{"ValidToken", &validToken, http.StatusOK},
		{"MissingToken", nil, http.StatusUnauthorized},
		{"InvalidToken", &invalidToken, http.StatusUnauthorized},
		{"ExpiredToken", &expiredToken, http.StatusUnauthorized},
		{"WrongSecret", &wrongSecretToken, http.StatusUnauthorized},
		{"MissingSubject", &noSubjectToken, http.StatusUnauthorized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			app, _, _ := SetupWebSocketHandlersApp(t, cfg)

			resp, err := app.Test(testutil.CreateWebSocketRequest("/ws", tc.token))
			require.NoError(t, err)
			assert.Equal(t, tc.expectedStatus, resp.StatusCode)
		})
	}
}

func TestWSUpgradeStoresSubjectAndFavorites(t *testing.T) {
	cfg := DefaultWebSocketTestConfig()
	app, _, _ := SetupWebSocketHandlersApp(t, cfg)

	token, err := testutil.CreateTestJWT("alice", []byte(cfg.Secret), time.Hour)
	require.NoError(t, err)
	resp, err := app.Test(testutil.CreateWebSocketRequest("/ws?token="+token+"&favorites=true", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Subject   string `json:"subject"`
		Favorites bool   `json:"favorites"`
	}
	testutil.DecodeJSON(t, resp, &body)
	assert.Equal(t, "alice", body.Subject)
	assert.True(t, body.Favorites)
}

func TestWSUpgradeWithoutAuth(t *testing.T) {
	app, _, _ := SetupWebSocketHandlersApp(t, WebSocketTestConfig{MaxSessionSec: 900})

	resp, err := app.Test(testutil.CreateWebSocketRequest("/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWSUpgradeNonWebSocketRequest(t *testing.T) {
	app, _, _ := SetupWebSocketHandlersApp(t, DefaultWebSocketTestConfig())

	resp, err := app.Test(testutil.CreateJSONRequest(fiber.MethodGet, "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWSStreamsSnapshots(t *testing.T) {
	watcher := NewMockWatcher()
	wsHandlers := NewWebSocketHandlers(watcher, "", 900)
	conn := DialStream(t, StartStreamServer(t, wsHandlers))
	conn.SetReadLimit(wsMaxIncomingBytes)

	initial := ReadSnapshot(t, conn)
	assert.Equal(t, SnapshotMessageType, initial.Type)
	assert.Empty(t, initial.Notes)

	note := notes.NewNote("Live", "from the hub")
	watcher.hub.Publish([]notes.Note{note})

	msg := ReadSnapshot(t, conn)
	assert.Equal(t, SnapshotMessageType, msg.Type)
	require.Len(t, msg.Notes, 1)
	assert.Equal(t, note.ID, msg.Notes[0].ID)
	assert.Equal(t, "Live", msg.Notes[0].Title)
}

func TestWSStreamFavoritesOnly(t *testing.T) {
	watcher := NewMockWatcher()
	wsHandlers := NewWebSocketHandlers(watcher, "", 900)
	conn := DialStream(t, StartStreamServer(t, wsHandlers)+"?favorites=true")

	ReadSnapshot(t, conn)

	fav := notes.NewNote("Fav", "")
	fav.IsFavorite = true
	watcher.hub.Publish([]notes.Note{fav, notes.NewNote("Plain", "")})

	msg := ReadSnapshot(t, conn)
	require.Len(t, msg.Notes, 1)
	assert.Equal(t, fav.ID, msg.Notes[0].ID)

	watcher.mu.Lock()
	defer watcher.mu.Unlock()
	assert.Equal(t, []bool{true}, watcher.favorites)
}

func TestWSEmptySnapshotIsAnArray(t *testing.T) {
	watcher := NewMockWatcher()
	wsHandlers := NewWebSocketHandlers(watcher, "", 900)
	conn := DialStream(t, StartStreamServer(t, wsHandlers))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var generic map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.JSONEq(t, `[]`, string(generic["notes"]))
}

func TestWSWatchFailureClosesConnection(t *testing.T) {
	watcher := NewMockWatcher()
	watcher.err = errors.New("store down")
	wsHandlers := NewWebSocketHandlers(watcher, "", 900)
	conn := DialStream(t, StartStreamServer(t, wsHandlers))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)

	var closeErr *gorillaws.CloseError
	if errors.As(err, &closeErr) {
		assert.Equal(t, WSCloseInternalError, closeErr.Code)
	}
}

func TestWSSessionTimeout(t *testing.T) {
	watcher := NewMockWatcher()
	wsHandlers := NewWebSocketHandlers(watcher, "", 2)
	conn := DialStream(t, StartStreamServer(t, wsHandlers))
	conn.SetReadLimit(wsMaxIncomingBytes)

	ReadSnapshot(t, conn)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	start := time.Now()
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	elapsed := time.Since(start)

	var closeErr *gorillaws.CloseError
	if errors.As(err, &closeErr) {
		assert.Equal(t, WSClosePolicyViolation, closeErr.Code, "Expected policy violation close code")
	}
	assert.Less(t, elapsed, 4*time.Second, "Connection should have been closed promptly")
}

func TestWSDisconnectReleasesSubscription(t *testing.T) {
	watcher := NewMockWatcher()
	wsHandlers := NewWebSocketHandlers(watcher, "", 900)
	conn := DialStream(t, StartStreamServer(t, wsHandlers))

	ReadSnapshot(t, conn)
	require.Equal(t, 1, watcher.GetSubscriberCount())

	require.NoError(t, conn.WriteMessage(gorillaws.CloseMessage,
		gorillaws.FormatCloseMessage(gorillaws.CloseNormalClosure, "bye")))
	_ = conn.Close()

	require.Eventually(t, func() bool {
		return watcher.GetSubscriberCount() == 0
	}, 2*time.Second, 10*time.Millisecond, "subscription should be released after the client leaves")
}

func TestValidateJWTTableDriven(t *testing.T) {
	secret := testutil.TestSecret
	wsHandlers := NewWebSocketHandlers(NewMockWatcher(), secret, 900)

	testCases := []struct {
		name        string
		setupToken  func() string
		expectError bool
		errorMsg    string
	}{
		{
			name: "Success",
			setupToken: func() string {
				token, _ := testutil.CreateTestJWT("alice", []byte(secret), time.Hour)
				return token
			},
		},
		{
			name:        "InvalidFormat",
			setupToken:  func() string { return "invalid.token.format" },
			expectError: true,
		},
		{
			name: "WrongAlgorithm",
			setupToken: func() string {
				token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "alice"})
				s, _ := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
				return s
			},
			expectError: true,
		},
		{
			name: "MissingSubject",
			setupToken: func() string {
				token, _ := testutil.CreateTestJWT("", []byte(secret), time.Hour)
				return token
			},
			expectError: true,
			errorMsg:    "missing sub",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			subject, err := wsHandlers.validateJWT(tc.setupToken())

			if tc.expectError {
				assert.Error(t, err)
				if tc.errorMsg != "" {
					assert.Contains(t, err.Error(), tc.errorMsg)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "alice", subject)
		})
	}
}
