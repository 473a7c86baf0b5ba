// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	CommandsHandled      prometheus.Counter
	CommandErrors        prometheus.Counter
	SessionsOpened       prometheus.Counter
	SessionsExpired      prometheus.Counter
	OAuthFlowsCompleted  prometheus.Counter
	OAuthFlowsFailed     prometheus.Counter
	TokenRefreshes       prometheus.Counter
	TokenRefreshFailures prometheus.Counter

	// Histograms (seconds)
	CommandDuration prometheus.Observer

	// Gauges
	OpenSessionsGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		CommandsHandled = promauto.NewCounter(prometheus.CounterOpts{Name: "osubot_commands_handled_total", Help: "Number of chat commands handled"})
		CommandErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "osubot_command_errors_total", Help: "Number of chat commands that ended in an error reply"})
		SessionsOpened = promauto.NewCounter(prometheus.CounterOpts{Name: "osubot_sessions_opened_total", Help: "Number of interactive sessions opened"})
		SessionsExpired = promauto.NewCounter(prometheus.CounterOpts{Name: "osubot_sessions_expired_total", Help: "Number of interactive sessions that timed out"})
		OAuthFlowsCompleted = promauto.NewCounter(prometheus.CounterOpts{Name: "osubot_oauth_flows_completed_total", Help: "Number of account link flows completed"})
		OAuthFlowsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "osubot_oauth_flows_failed_total", Help: "Number of account link flows that failed"})
		TokenRefreshes = promauto.NewCounter(prometheus.CounterOpts{Name: "osubot_token_refreshes_total", Help: "Number of access token refreshes"})
		TokenRefreshFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "osubot_token_refresh_failures_total", Help: "Number of failed access token refreshes"})
		CommandDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "osubot_command_duration_seconds", Help: "Command handling duration seconds", Buckets: prometheus.DefBuckets})
		OpenSessionsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "osubot_open_sessions", Help: "Current number of open interactive sessions"})
	})
}

// SetOpenSessions records the current number of interactive sessions.
func SetOpenSessions(n int) {
	if OpenSessionsGauge != nil {
		OpenSessionsGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
