package auth

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sodiumlabs/osubot/telemetry"
)

// RefreshFunc exchanges a refresh token for new credentials and returns the
// new access token, new refresh token (may be empty when the provider keeps
// the old one) and absolute expiry.
type RefreshFunc func(ctx context.Context, refreshToken string) (access, refresh string, expiresAt time.Time, err error)

// RefreshableStore is a token store that can also enumerate records nearing
// expiry.
type RefreshableStore interface {
	TokenStore
	TokenLister
}

// StartRefresher launches a goroutine that periodically sweeps the token
// store and refreshes records whose remaining lifetime falls within window.
// interval: how often to wake up and check.
// window: refresh when remaining lifetime <= window.
func StartRefresher(ctx context.Context, tokens RefreshableStore, interval, window time.Duration, fn RefreshFunc) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	// Randomize initial delay to spread load across instances.
	//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
	initialJitter := time.Duration(rand.Int63n(int64(interval / 2)))
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(initialJitter):
		}
		for {
			// Per-iteration jitter (±20% of interval) for scheduling diversity.
			jitterRange := int64(interval / 5)
			//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
			jitter := time.Duration(rand.Int63n(jitterRange*2) - jitterRange)
			nextSleep := interval + jitter
			if nextSleep < interval/2 {
				nextSleep = interval / 2
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(nextSleep):
			}
			sweepOnce(ctx, tokens, window, fn)
		}
	}()
}

func sweepOnce(ctx context.Context, tokens RefreshableStore, window time.Duration, fn RefreshFunc) {
	recs, err := tokens.ExpiringTokens(ctx, window)
	if err != nil {
		slog.Warn("expiring token sweep failed", slog.Any("err", err))
		return
	}
	for _, rec := range recs {
		if rec.RefreshToken == "" {
			// Nothing to refresh with; not a failure.
			continue
		}
		ctx2, cancel := context.WithTimeout(ctx, 15*time.Second)
		access, refresh, expiresAt, err := fn(ctx2, rec.RefreshToken)
		cancel()
		if err != nil {
			if telemetry.TokenRefreshFailures != nil {
				telemetry.TokenRefreshFailures.Inc()
			}
			slog.Warn("token refresh failed", slog.String("platform_id", rec.PlatformID), slog.Any("err", err))
			continue
		}
		if refresh == "" {
			refresh = rec.RefreshToken
		}
		rec.AccessToken = access
		rec.RefreshToken = refresh
		rec.ExpiresAt = expiresAt
		if err := tokens.Save(ctx, rec); err != nil {
			slog.Warn("token persist failed", slog.String("platform_id", rec.PlatformID), slog.Any("err", err))
			continue
		}
		if telemetry.TokenRefreshes != nil {
			telemetry.TokenRefreshes.Inc()
		}
		slog.Info("token refreshed", slog.String("platform_id", rec.PlatformID))
	}
}
