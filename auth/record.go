// Package auth owns the account-linking core: the durable mapping between a
// chat-platform identity and an osu! account, the per-platform-identity
// credential record, the authentication gate consulted before every
// authenticated command, and the interactive OAuth linking flow.
package auth

import (
	"context"
	"strings"
	"time"
)

// TokenRecord is the stored credential set for one platform identity.
// It is keyed by platform id, not osu! user id: a platform identity holds a
// token mid-authorization, before it is known to be linked.
type TokenRecord struct {
	PlatformID   string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scopes       []string
}

// Valid reports whether the record carries a usable access token at the given
// instant. Expiry is exclusive: a token expiring exactly now is not valid.
func (r TokenRecord) Valid(now time.Time) bool {
	if r.AccessToken == "" || r.ExpiresAt.IsZero() {
		return false
	}
	return r.ExpiresAt.After(now)
}

// HasScope reports whether the grant includes the named scope.
func (r TokenRecord) HasScope(scope string) bool {
	for _, s := range r.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ParseScopes splits a space-separated scope string as stored in the database.
func ParseScopes(s string) []string {
	return strings.Fields(s)
}

// JoinScopes is the inverse of ParseScopes.
func JoinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

// LinkStore is the durable 1:1 mapping between platform and osu! identities.
// Link reports false (without mutating) when either id is already bound to a
// different counterpart; implementations must make that check-and-insert
// atomic per key so exactly one of two racing links wins.
type LinkStore interface {
	Link(ctx context.Context, osuUserID, platformID string) (bool, error)
	Unlink(ctx context.Context, platformID string) (bool, error)
	OsuID(ctx context.Context, platformID string) (string, bool, error)
	PlatformID(ctx context.Context, osuUserID string) (string, bool, error)
}

// TokenStore persists TokenRecords. Save has overwrite semantics: a new
// authorization replaces the whole record, scopes included.
type TokenStore interface {
	Save(ctx context.Context, rec TokenRecord) error
	Get(ctx context.Context, platformID string) (TokenRecord, bool, error)
	Remove(ctx context.Context, platformID string) (bool, error)
}

// TokenLister enumerates records nearing expiry, for the background refresher.
type TokenLister interface {
	ExpiringTokens(ctx context.Context, within time.Duration) ([]TokenRecord, error)
}
