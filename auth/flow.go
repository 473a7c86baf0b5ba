package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/sodiumlabs/osubot/session"
	"github.com/sodiumlabs/osubot/telemetry"
)

// FlowState tracks one authorization attempt.
type FlowState int

const (
	StateInitiated FlowState = iota
	StateAwaitingCallback
	StateExchanging
	StateFetchingIdentity
	StateLinking
	StateCompleted
	StateFailed
)

func (s FlowState) String() string {
	switch s {
	case StateInitiated:
		return "initiated"
	case StateAwaitingCallback:
		return "awaiting_callback"
	case StateExchanging:
		return "exchanging"
	case StateFetchingIdentity:
		return "fetching_identity"
	case StateLinking:
		return "linking"
	case StateCompleted:
		return "completed"
	default:
		return "failed"
	}
}

// Grant is the result of a successful code exchange.
type Grant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scopes       []string
}

// Identity is the "who am I" answer for a freshly obtained token.
type Identity struct {
	OsuUserID string
	Username  string
}

// Linker runs the account-link flow: build an authorization URL bound to the
// platform identity, await the pasted callback URL over an interactive
// session, exchange the code, fetch the identity and record the link.
type Linker struct {
	Links    LinkStore
	Tokens   TokenStore
	Sessions *session.Dispatcher

	// AuthorizeURL builds the user consent URL for the given state nonce.
	// An error here means the OAuth application is not configured.
	AuthorizeURL func(state string) (string, error)
	Exchange     func(ctx context.Context, code string) (Grant, error)
	Identity     func(ctx context.Context, accessToken string) (Identity, error)
	// Send delivers a chat message to the sender mid-flow.
	Send func(ctx context.Context, senderID, text string) error

	// Timeout bounds the whole callback wait; Extension is granted after each
	// recoverable parse failure. Defaults: 300s and 60s.
	Timeout   time.Duration
	Extension time.Duration
}

func (l *Linker) timeout() time.Duration {
	if l.Timeout > 0 {
		return l.Timeout
	}
	return 300 * time.Second
}

func (l *Linker) extension() time.Duration {
	if l.Extension > 0 {
		return l.Extension
	}
	return 60 * time.Second
}

// newStateNonce binds the flow to the full platform identity so a callback
// started by one sender can never complete another sender's flow.
func newStateNonce(platformID string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is unrecoverable for a CSRF nonce.
		panic(fmt.Sprintf("state nonce entropy: %v", err))
	}
	return fmt.Sprintf("%s:%d:%s", platformID, time.Now().Unix(), hex.EncodeToString(buf))
}

// parseCallback extracts code and state from a pasted callback URL.
// hasMarker is false when the text does not even mention a code parameter.
func parseCallback(text string) (code, state string, hasMarker bool) {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, "code=") {
		return "", "", false
	}
	query := text
	if i := strings.Index(text, "?"); i >= 0 {
		query = text[i+1:]
	}
	if i := strings.Index(query, "#"); i >= 0 {
		query = query[:i]
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return "", "", true
	}
	return values.Get("code"), values.Get("state"), true
}

// Run drives one link flow for platformID. The returned Outcome is always
// renderable; Err is set only for unexpected faults.
func (l *Linker) Run(ctx context.Context, platformID string) Outcome {
	log := telemetry.LoggerWithCorr(ctx).With(slog.String("platform_id", platformID))

	// Already linked short-circuits before anything else, including config
	// validation: a linked user asking to link again gets an answer even on a
	// misconfigured instance.
	if _, linked, err := l.Links.OsuID(ctx, platformID); err != nil {
		return Outcome{Kind: OutcomeFailed, Err: err}
	} else if linked {
		return Outcome{Kind: OutcomeAlreadyLinked}
	}

	state := StateInitiated
	nonce := newStateNonce(platformID)
	authURL, err := l.AuthorizeURL(nonce)
	if err != nil {
		log.Warn("link flow not configured", slog.Any("err", err))
		return Outcome{Kind: OutcomeNotConfigured, Err: err}
	}

	if err := l.Send(ctx, platformID,
		"Open this URL, authorize the app, then paste the full URL you land on back here: "+authURL); err != nil {
		return Outcome{Kind: OutcomeFailed, Err: err}
	}

	state = StateAwaitingCallback
	var (
		code     string
		mismatch bool
	)
	err = l.Sessions.Await(ctx, platformID, l.timeout(), func(msg session.Message) session.Signal {
		c, s, hasMarker := parseCallback(msg.Text)
		if !hasMarker {
			l.prompt(ctx, platformID, "That doesn't look like a callback URL. Paste the full URL containing the code parameter.")
			return session.Keep(l.extension())
		}
		if c == "" {
			l.prompt(ctx, platformID, "The URL has no code value. Paste the complete callback URL.")
			return session.Keep(l.extension())
		}
		if s != nonce {
			mismatch = true
			return session.Stop()
		}
		code = c
		return session.Stop()
	})
	switch {
	case errors.Is(err, session.ErrTimeout):
		l.fail(log, state, "callback wait timed out", nil)
		return Outcome{Kind: OutcomeTimeout}
	case err != nil:
		l.fail(log, state, "callback session failed", err)
		return Outcome{Kind: OutcomeFailed, Err: err}
	case mismatch:
		l.fail(log, state, "state mismatch on callback", nil)
		return Outcome{Kind: OutcomeStateMismatch}
	}

	state = StateExchanging
	grant, err := l.Exchange(ctx, code)
	if err != nil {
		l.fail(log, state, "code exchange failed", err)
		return Outcome{Kind: OutcomeExchangeFailed, Err: err}
	}
	rec := TokenRecord{
		PlatformID:   platformID,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    grant.ExpiresAt,
		Scopes:       grant.Scopes,
	}
	if err := l.Tokens.Save(ctx, rec); err != nil {
		l.fail(log, state, "token persist failed", err)
		return Outcome{Kind: OutcomeFailed, Err: err}
	}

	state = StateFetchingIdentity
	ident, err := l.Identity(ctx, grant.AccessToken)
	if err != nil {
		// No orphaned credentials for an account that never got linked.
		l.cleanupToken(ctx, platformID)
		l.fail(log, state, "identity fetch failed", err)
		return Outcome{Kind: OutcomeIdentityFailed, Err: err}
	}

	state = StateLinking
	ok, err := l.Links.Link(ctx, ident.OsuUserID, platformID)
	if err != nil {
		l.cleanupToken(ctx, platformID)
		l.fail(log, state, "link persist failed", err)
		return Outcome{Kind: OutcomeFailed, Err: err}
	}
	if !ok {
		l.cleanupToken(ctx, platformID)
		l.fail(log, state, "link conflict", nil)
		return Outcome{Kind: OutcomeLinkConflict, OsuUserID: ident.OsuUserID, Username: ident.Username}
	}

	state = StateCompleted
	if telemetry.OAuthFlowsCompleted != nil {
		telemetry.OAuthFlowsCompleted.Inc()
	}
	log.Info("account linked", slog.String("osu_user_id", ident.OsuUserID), slog.String("state", state.String()))
	return Outcome{Kind: OutcomeLinked, OsuUserID: ident.OsuUserID, Username: ident.Username}
}

func (l *Linker) prompt(ctx context.Context, senderID, text string) {
	if err := l.Send(ctx, senderID, text); err != nil {
		slog.Warn("prompt delivery failed", slog.String("sender", senderID), slog.Any("err", err))
	}
}

func (l *Linker) cleanupToken(ctx context.Context, platformID string) {
	if _, err := l.Tokens.Remove(ctx, platformID); err != nil {
		slog.Warn("orphan token cleanup failed", slog.String("platform_id", platformID), slog.Any("err", err))
	}
}

func (l *Linker) fail(log *slog.Logger, state FlowState, msg string, err error) {
	if telemetry.OAuthFlowsFailed != nil {
		telemetry.OAuthFlowsFailed.Inc()
	}
	log.Warn(msg, slog.String("state", state.String()), slog.Any("err", err))
}
