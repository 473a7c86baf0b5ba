package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/sodiumlabs/osubot/config"
	"github.com/sodiumlabs/osubot/db"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db        *sql.DB
	ctx       context.Context
	cfg       *config.Config
	startTime time.Time
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(ctx context.Context, database *sql.DB, cfg *config.Config) *Handlers {
	return &Handlers{
		db:        database,
		ctx:       ctx,
		cfg:       cfg,
		startTime: time.Now(),
	}
}

// HandleHealthz responds to liveness probe requests by checking database connectivity.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests with detailed system checks.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"database", func() error { return h.db.PingContext(r.Context()) }},
		{"schema", func() error {
			var one int
			return h.db.QueryRowContext(r.Context(), `SELECT 1 FROM account_links LIMIT 1`).
				Scan(&one)
		}},
		{"oauth_config", func() error { return h.cfg.ValidateOAuthReady() }},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			if check.name == "schema" && err == sql.ErrNoRows {
				// Empty table still means the schema is there.
				continue
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus reports uptime and the number of linked accounts.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	links, err := db.CountLinks(r.Context(), h.db)
	if err != nil {
		http.Error(w, "status query failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"uptime_seconds":  int(time.Since(h.startTime).Seconds()),
		"linked_accounts": links,
		"channel":         h.cfg.TwitchChannel,
	})
}

// HandleOsuCallback is the landing page the user reaches after authorizing.
// The flow completes in chat: the user pastes this page's URL back to the bot.
func (h *Handlers) HandleOsuCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if q.Get("code") == "" {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `<html><body><h1>Authorization incomplete</h1>`+
			`<p>No code was returned. Close this page and restart linking in chat.</p></body></html>`)
		return
	}
	fmt.Fprintf(w, `<html><body><h1>Almost done</h1>`+
		`<p>Copy the full URL from your browser's address bar and paste it back into chat to finish linking.</p>`+
		`<p><code>%s</code></p></body></html>`, html.EscapeString(r.URL.String()))
}
