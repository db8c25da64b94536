package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"viterbi-notes/cmd/server/testutil"
	"viterbi-notes/internal/backend"
	"viterbi-notes/internal/config"
	"viterbi-notes/internal/logger"
	notesServices "viterbi-notes/internal/services/notes"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// HTTPJSONStep is a single request of a scripted flow
type HTTPJSONStep struct {
	Name           string
	Method         string
	URL            string
	Body           any
	ExpectedStatus int
	Validator      func(*testing.T, map[string]any)
}

func executeSteps(t *testing.T, baseURL string, steps []HTTPJSONStep) {
	t.Helper()
	for _, step := range steps {
		t.Logf("step: %s", step.Name)

		var body bytes.Buffer
		if step.Body != nil {
			require.NoError(t, json.NewEncoder(&body).Encode(step.Body))
		}
		req, err := http.NewRequest(step.Method, baseURL+step.URL, &body)
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, step.ExpectedStatus, resp.StatusCode, step.Name)

		if step.Validator != nil {
			var data map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&data))
			step.Validator(t, data)
		}
		_ = resp.Body.Close()
	}
}

// startServer runs the full router over a sqlite file and returns its
// address. The server and the backend stop with the test.
func startServer(t *testing.T, dbPath string) string {
	t.Helper()
	testutil.CreateTestApp(t)

	cfg := testConfig()
	cfg.NotesBackend = config.BackendSQLite
	cfg.SQLitePath = dbPath
	require.NoError(t, cfg.Validate())

	repo, cleanup, err := backend.Open(context.Background(), cfg, logger.L())
	require.NoError(t, err)

	app := setupRouter(cfg, notesServices.NewService(repo, logger.L()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()

	t.Cleanup(func() {
		_ = app.ShutdownWithTimeout(time.Second)
		require.NoError(t, cleanup(context.Background()))
	})
	return ln.Addr().String()
}

func readSnapshot(t *testing.T, conn *gorillaws.Conn) []notesServices.Note {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg struct {
		Type  string               `json:"type"`
		Notes []notesServices.Note `json:"notes"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "snapshot", msg.Type)
	return msg.Notes
}

// readSnapshotUntil skips snapshots published by earlier writes
func readSnapshotUntil(t *testing.T, conn *gorillaws.Conn, done func([]notesServices.Note) bool) []notesServices.Note {
	t.Helper()
	for {
		list := readSnapshot(t, conn)
		if done(list) {
			return list
		}
	}
}

func hasLen(n int) func([]notesServices.Note) bool {
	return func(list []notesServices.Note) bool { return len(list) == n }
}

func TestServerStreamsWritesOverSQLite(t *testing.T) {
	addr := startServer(t, filepath.Join(t.TempDir(), "notes.db"))
	base := "http://" + addr

	conn, _, err := gorillaws.DefaultDialer.Dial(fmt.Sprintf("ws://%s/ws/notes/stream", addr), nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	favConn, _, err := gorillaws.DefaultDialer.Dial(fmt.Sprintf("ws://%s/ws/notes/stream?favorites=true", addr), nil)
	require.NoError(t, err)
	defer func() { _ = favConn.Close() }()

	assert.Len(t, readSnapshot(t, conn), 3)
	assert.Len(t, readSnapshot(t, favConn), 2)

	var createdID string
	executeSteps(t, base, []HTTPJSONStep{
		{
			Name:           "health",
			Method:         http.MethodGet,
			URL:            "/healthz",
			ExpectedStatus: http.StatusOK,
			Validator: func(t *testing.T, m map[string]any) {
				assert.Equal(t, "ok", m["status"])
				assert.EqualValues(t, 3, m["notes"])
			},
		},
		{
			Name:           "create",
			Method:         http.MethodPost,
			URL:            "/api/v1/notes",
			Body:           map[string]string{"title": "Streamed", "content": "over sqlite"},
			ExpectedStatus: http.StatusCreated,
			Validator: func(t *testing.T, m map[string]any) {
				note := m["note"].(map[string]any)
				createdID = note["id"].(string)
				assert.Equal(t, "Streamed", note["title"])
			},
		},
	})

	list := readSnapshotUntil(t, conn, hasLen(4))
	assert.Equal(t, createdID, list[0].ID, "newest note first")

	executeSteps(t, base, []HTTPJSONStep{
		{
			Name:           "favorite",
			Method:         http.MethodPost,
			URL:            "/api/v1/notes/" + createdID + "/favorite",
			ExpectedStatus: http.StatusOK,
		},
	})

	favs := readSnapshotUntil(t, favConn, hasLen(3))
	assert.Equal(t, createdID, favs[0].ID)

	executeSteps(t, base, []HTTPJSONStep{
		{Name: "delete", Method: http.MethodDelete, URL: "/api/v1/notes/" + createdID, ExpectedStatus: http.StatusNoContent},
		{Name: "gone", Method: http.MethodGet, URL: "/api/v1/notes/" + createdID, ExpectedStatus: http.StatusNotFound},
	})
}

func TestServerRestartKeepsNotes(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "notes.db")

	t.Run("first run writes", func(t *testing.T) {
		base := "http://" + startServer(t, dbPath)
		executeSteps(t, base, []HTTPJSONStep{
			{Name: "delete welcome", Method: http.MethodDelete, URL: "/api/v1/notes/1", ExpectedStatus: http.StatusNoContent},
			{Name: "create", Method: http.MethodPost, URL: "/api/v1/notes", Body: map[string]string{"title": "kept"}, ExpectedStatus: http.StatusCreated},
		})
	})

	t.Run("second run reads them back", func(t *testing.T) {
		base := "http://" + startServer(t, dbPath)
		executeSteps(t, base, []HTTPJSONStep{
			{
				Name:           "count",
				Method:         http.MethodGet,
				URL:            "/api/v1/notes/count",
				ExpectedStatus: http.StatusOK,
				Validator: func(t *testing.T, m map[string]any) {
					assert.EqualValues(t, 3, m["count"])
				},
			},
			{Name: "welcome stays deleted", Method: http.MethodGet, URL: "/api/v1/notes/1", ExpectedStatus: http.StatusNotFound},
			{
				Name:           "search",
				Method:         http.MethodGet,
				URL:            "/api/v1/notes?q=KEPT",
				ExpectedStatus: http.StatusOK,
				Validator: func(t *testing.T, m map[string]any) {
					assert.EqualValues(t, 1, m["count"])
				},
			},
		})
	})
}
