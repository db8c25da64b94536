package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/golang-jwt/jwt/v5"
)

const (
	notesPath      = "/api/v1/notes"
	requestTimeout = 10 * time.Second
	tokenTTL       = time.Hour
)

// ----------------------------------------------------------------------------
// Config ---------------------------------------------------------------------
var (
	baseURL = flag.String("url", env("API_BASE_URL", "http://localhost:8080"), "Server base URL")
	secret  = flag.String("secret", env("JWT_SECRET", ""), "Sign a bearer token with this secret (server runs with AUTH_ENABLED)")
	subject = flag.String("sub", env("SEED_SUBJECT", "initdata"), "Token subject")
	nNotes  = flag.Int("n", envInt("COUNT", 500), "How many notes to create")
	favRate = flag.Float64("fav", 0.1, "Share of created notes marked favorite")
)

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return def
}

// ----------------------------------------------------------------------------
// Main -----------------------------------------------------------------------
func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	token := ""
	if *secret != "" {
		t, err := mintToken(*secret, *subject, time.Now().UTC())
		if err != nil {
			fmt.Fprintln(os.Stderr, "FATAL:", err)
			os.Exit(1)
		}
		token = t
	}

	fmt.Printf("Seeding %d notes on %s (auth=%t)\n", *nNotes, *baseURL, token != "")

	s := &seeder{
		client:  &http.Client{Timeout: requestTimeout},
		baseURL: *baseURL,
		token:   token,
		faker:   gofakeit.New(time.Now().UnixNano()),
		favRate: *favRate,
		out:     os.Stdout,
	}
	if err := s.run(ctx, *nNotes); err != nil {
		fmt.Fprintln(os.Stderr, "FATAL:", err)
		os.Exit(1)
	}

	fmt.Println("✔ done")
}

// mintToken signs an HS256 token the server's bearer middleware accepts.
func mintToken(secret, subject string, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	})
	return token.SignedString([]byte(secret))
}

// ----------------------------------------------------------------------------
// Seeding --------------------------------------------------------------------
type seeder struct {
	client  *http.Client
	baseURL string
	token   string
	faker   *gofakeit.Faker
	favRate float64
	out     io.Writer
}

type noteResponse struct {
	Note struct {
		ID string `json:"id"`
	} `json:"note"`
}

func (s *seeder) run(ctx context.Context, total int) error {
	for i := 1; i <= total; i++ {
		note := map[string]string{
			"title":   s.faker.Sentence(3),
			"content": s.faker.Paragraph(1, 3, 40, " "),
		}

		var created noteResponse
		if err := s.post(ctx, notesPath, note, http.StatusCreated, &created); err != nil {
			return fmt.Errorf("create note %d: %w", i, err)
		}

		if s.faker.Float64() < s.favRate {
			if err := s.post(ctx, notesPath+"/"+created.Note.ID+"/favorite", nil, http.StatusOK, nil); err != nil {
				return fmt.Errorf("favorite note %d: %w", i, err)
			}
		}

		if i%50 == 0 || i == total {
			fmt.Fprintf(s.out, "  … %d/%d\n", i, total)
		}
	}
	return nil
}

func (s *seeder) post(ctx context.Context, path string, body any, want int, into any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != want {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	if into == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(into)
}
