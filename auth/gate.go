package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/sodiumlabs/osubot/telemetry"
)

// Reason explains why the authentication gate rejected a request.
type Reason int

const (
	ReasonOK Reason = iota
	ReasonNotLinked
	ReasonTokenExpired
	ReasonInsufficientScope
)

func (r Reason) String() string {
	switch r {
	case ReasonOK:
		return "ok"
	case ReasonNotLinked:
		return "not_linked"
	case ReasonTokenExpired:
		return "token_expired"
	case ReasonInsufficientScope:
		return "insufficient_scope"
	default:
		return "unknown"
	}
}

// Decision is the gate verdict for one request.
type Decision struct {
	OK            bool
	Reason        Reason
	MissingScopes []string
	OsuUserID     string
	AccessToken   string
}

// Gate checks that a platform identity is linked and holds a live token with
// the required scopes before any authenticated upstream call is made. When a
// Refresh function is set, an expired token with a refresh token gets one
// transparent refresh attempt before the gate reports expiry.
type Gate struct {
	Links   LinkStore
	Tokens  TokenStore
	Refresh RefreshFunc
	Now     func() time.Time
}

func (g *Gate) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

// Check runs the gate for platformID. It touches no upstream service unless a
// token refresh is needed; a not-linked identity is rejected from the link
// store alone.
func (g *Gate) Check(ctx context.Context, platformID string, requiredScopes ...string) (Decision, error) {
	osuID, linked, err := g.Links.OsuID(ctx, platformID)
	if err != nil {
		return Decision{}, err
	}
	if !linked {
		return Decision{Reason: ReasonNotLinked}, nil
	}

	rec, found, err := g.Tokens.Get(ctx, platformID)
	if err != nil {
		return Decision{}, err
	}
	if !found || !rec.Valid(g.now()) {
		refreshed, ok := g.tryRefresh(ctx, rec, found)
		if !ok {
			return Decision{Reason: ReasonTokenExpired, OsuUserID: osuID}, nil
		}
		rec = refreshed
	}

	var missing []string
	for _, scope := range requiredScopes {
		if !rec.HasScope(scope) {
			missing = append(missing, scope)
		}
	}
	if len(missing) > 0 {
		return Decision{Reason: ReasonInsufficientScope, MissingScopes: missing, OsuUserID: osuID}, nil
	}

	return Decision{OK: true, Reason: ReasonOK, OsuUserID: osuID, AccessToken: rec.AccessToken}, nil
}

// tryRefresh attempts one silent refresh of an expired record. Retry-once:
// a failed refresh is reported as expiry, never retried within the same check.
func (g *Gate) tryRefresh(ctx context.Context, rec TokenRecord, found bool) (TokenRecord, bool) {
	if g.Refresh == nil || !found || rec.RefreshToken == "" {
		return TokenRecord{}, false
	}
	access, refresh, expiresAt, err := g.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		if telemetry.TokenRefreshFailures != nil {
			telemetry.TokenRefreshFailures.Inc()
		}
		slog.Warn("silent token refresh failed", slog.String("platform_id", rec.PlatformID), slog.Any("err", err))
		return TokenRecord{}, false
	}
	if refresh == "" {
		refresh = rec.RefreshToken
	}
	rec.AccessToken = access
	rec.RefreshToken = refresh
	rec.ExpiresAt = expiresAt
	if err := g.Tokens.Save(ctx, rec); err != nil {
		slog.Warn("refreshed token persist failed", slog.String("platform_id", rec.PlatformID), slog.Any("err", err))
		return TokenRecord{}, false
	}
	if telemetry.TokenRefreshes != nil {
		telemetry.TokenRefreshes.Inc()
	}
	return rec, true
}
