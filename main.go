// Command osubot is the main entrypoint for the osu! chat bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Starts the Twitch chat relay and the OAuth token refresher.
//   - Exposes an HTTP server with /healthz, /readyz, /status, /metrics,
//     the osu! OAuth callback landing page and rendered chart files.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sodiumlabs/osubot/auth"
	"github.com/sodiumlabs/osubot/bot"
	"github.com/sodiumlabs/osubot/chat"
	"github.com/sodiumlabs/osubot/config"
	"github.com/sodiumlabs/osubot/db"
	"github.com/sodiumlabs/osubot/osuapi"
	"github.com/sodiumlabs/osubot/server"
	"github.com/sodiumlabs/osubot/session"
	"github.com/sodiumlabs/osubot/telemetry"
	"github.com/sodiumlabs/osubot/trackapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("osubot", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// DB
	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Versioned migrations first, with embedded SQL as a fallback for
	// deployments created before the schema_migrations table existed.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting fallback to embedded SQL",
			slog.Any("err", err),
			slog.String("component", "db_migrate"))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
			os.Exit(1)
		}
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	encryptor, err := db.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		slog.Error("encryption initialization failed", slog.Any("err", err))
		os.Exit(1)
	}

	links := &db.LinkStore{DB: database}
	tokens := &db.TokenStore{DB: database, Enc: encryptor}
	sessions := session.NewDispatcher()

	oauthCfg := &osuapi.OAuthConfig{
		ClientID:     cfg.OsuClientID,
		ClientSecret: cfg.OsuClientSecret,
		RedirectURI:  cfg.OsuRedirectURI,
		Scopes:       auth.ParseScopes(cfg.OsuScopes),
		BaseURL:      cfg.OsuAPIBaseURL,
	}
	osuClient := &osuapi.Client{BaseURL: cfg.OsuAPIBaseURL}
	trackClient := &trackapi.Client{BaseURL: cfg.TrackAPIBaseURL}

	refresh := auth.RefreshFunc(func(rctx context.Context, refreshToken string) (string, string, time.Time, error) {
		grant, err := oauthCfg.Refresh(rctx, refreshToken)
		if err != nil {
			return "", "", time.Time{}, err
		}
		return grant.AccessToken, grant.RefreshToken, osuapi.ComputeExpiry(grant.ExpiresIn), nil
	})

	// Centralized token refresher keeps linked accounts usable without a
	// round trip through the gate's retry path.
	auth.StartRefresher(ctx, tokens, 5*time.Minute, 15*time.Minute, refresh)

	gate := &auth.Gate{Links: links, Tokens: tokens, Refresh: refresh}

	linker := &auth.Linker{
		Links:    links,
		Tokens:   tokens,
		Sessions: sessions,
		AuthorizeURL: func(state string) (string, error) {
			if err := cfg.ValidateOAuthReady(); err != nil {
				return "", err
			}
			return oauthCfg.AuthorizeURL(state)
		},
		Exchange: func(ectx context.Context, code string) (auth.Grant, error) {
			grant, err := oauthCfg.Exchange(ectx, code)
			if err != nil {
				return auth.Grant{}, err
			}
			// The osu! token response carries no scope list; the grant is
			// whatever the application requested.
			return auth.Grant{
				AccessToken:  grant.AccessToken,
				RefreshToken: grant.RefreshToken,
				ExpiresAt:    osuapi.ComputeExpiry(grant.ExpiresIn),
				Scopes:       auth.ParseScopes(cfg.OsuScopes),
			}, nil
		},
		Identity: func(ictx context.Context, accessToken string) (auth.Identity, error) {
			u, err := osuClient.OwnUser(ictx, accessToken, "")
			if err != nil {
				return auth.Identity{}, err
			}
			return auth.Identity{OsuUserID: strconv.Itoa(u.ID), Username: u.Username}, nil
		},
		Timeout:   cfg.SessionTimeout,
		Extension: cfg.SessionExtension,
	}

	router := &bot.Router{
		Sessions: sessions,
		Gate:     gate,
		Linker:   linker,
		Links:    links,
		Tokens:   tokens,
		Osu:      osuClient,
		Track:    trackClient,
		Cfg:      cfg,
	}

	// Chat relay. Missing Twitch credentials disable chat but leave the HTTP
	// surface up so the deployment can still be probed.
	relay, err := chat.New(cfg)
	if err != nil {
		slog.Warn("chat relay disabled", slog.Any("err", err))
	} else {
		router.Platform = relay
		linker.Send = relay.Send
		go func() {
			if err := relay.Run(ctx, router.Dispatch); err != nil {
				slog.Error("chat relay exited with error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (health/status/metrics/callback landing/charts)
	go func() {
		if err := server.Start(ctx, database, cfg); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
