package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sodiumlabs/osubot/config"
	"github.com/sodiumlabs/osubot/db"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.Migrate(context.Background(), database); err != nil {
		_ = database.Close()
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if err := database.Close(); err != nil {
			t.Errorf("failed to close db: %v", err)
		}
	})
	return database
}

func testConfig() *config.Config {
	return &config.Config{
		OsuClientID:     "client",
		OsuClientSecret: "secret",
		OsuRedirectURI:  "http://localhost:8080/auth/osu/callback",
		HTTPAddr:        ":0",
	}
}

func TestHealthz(t *testing.T) {
	database := newTestDB(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	NewMux(context.Background(), database, testConfig()).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("healthz = %d, body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Correlation-ID") == "" {
		t.Error("missing correlation id header")
	}
}

func TestReadyz(t *testing.T) {
	database := newTestDB(t)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	NewMux(context.Background(), database, testConfig()).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("readyz = %d, body=%s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "ready" {
		t.Fatalf("status = %q, want ready", resp["status"])
	}
}

func TestReadyzNotReadyWithoutOAuthConfig(t *testing.T) {
	database := newTestDB(t)
	cfg := testConfig()
	cfg.OsuClientSecret = ""

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()
	NewMux(context.Background(), database, cfg).ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d, want 503", rr.Code)
	}
	var resp map[string]string
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp["failed_check"] != "oauth_config" {
		t.Errorf("failed_check = %q", resp["failed_check"])
	}
}

func TestStatus(t *testing.T) {
	database := newTestDB(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()
	NewMux(context.Background(), database, testConfig()).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := resp["linked_accounts"]; !ok {
		t.Error("missing linked_accounts field")
	}
}

func TestOsuCallbackLanding(t *testing.T) {
	database := newTestDB(t)
	mux := NewMux(context.Background(), database, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/osu/callback?code=abc&state=xyz", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("callback = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "paste it back into chat") {
		t.Errorf("landing page missing instructions: %s", rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/auth/osu/callback", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("callback without code = %d, want 400", rr.Code)
	}
}
