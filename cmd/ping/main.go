// cmd/ping/main.go
//
// Intended for Docker HEALTHCHECK:
//   HEALTHCHECK CMD ["/ping"]

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------
const (
	defaultPort          = 8080
	healthEndpoint       = "/healthz"
	expectedHealthStatus = "ok"
	requestTimeout       = 1 * time.Second

	// exit codes
	codeHealthy           = 0
	codeRequestFailed     = 2
	codeBadHTTPStatus     = 3
	codeDecodeError       = 4
	codeReportedUnhealthy = 5
)

// healthResp mirrors the /healthz body { "status": "ok", "notes": 3 }.
type healthResp struct {
	Status string `json:"status"`
	Notes  *int   `json:"notes"`
	Error  string `json:"error"`
}

// healthError carries the exit code for a failed health check.
type healthError struct {
	code int
	err  error
}

func (e *healthError) Error() string { return e.err.Error() }

func main() {
	port := detectPort()
	url := fmt.Sprintf("http://localhost:%d%s", port, healthEndpoint)

	h, err := checkHealth(&http.Client{Timeout: requestTimeout}, url)
	if err != nil {
		log.Print(err)
		var pe *healthError
		if errors.As(err, &pe) {
			os.Exit(pe.code)
		}
		os.Exit(codeRequestFailed)
	}

	if h.Notes != nil {
		log.Printf("service healthy on port %d (%d notes)", port, *h.Notes)
		return
	}
	log.Printf("service healthy on port %d", port)
}

// checkHealth fetches url and checks the reported status. A 503 from a store
// that is down still decodes, so its error text reaches the log.
func checkHealth(client *http.Client, url string) (healthResp, error) {
	var h healthResp

	resp, err := client.Get(url)
	if err != nil {
		return h, &healthError{codeRequestFailed, fmt.Errorf("request failed: %w", err)}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("failed to close response body: %v", err)
		}
	}()

	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil && !errors.Is(err, io.EOF) {
		return h, &healthError{codeDecodeError, fmt.Errorf("decode error: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return h, &healthError{codeBadHTTPStatus, fmt.Errorf("unexpected HTTP status %d: %s", resp.StatusCode, h.Error)}
	}
	if h.Status != "" && h.Status != expectedHealthStatus {
		return h, &healthError{codeReportedUnhealthy, fmt.Errorf("service reported unhealthy: %q", h.Status)}
	}
	return h, nil
}

// detectPort parses APP_PORT and falls back to defaultPort.
func detectPort() int {
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p <= 65535 {
			return p
		}
	}
	return defaultPort
}
