package auth

// OutcomeKind tags the result of a link flow. Expected negative paths are
// values here rather than errors so callers can render them without
// unwrapping.
type OutcomeKind int

const (
	// OutcomeLinked means the flow completed and the accounts are linked.
	OutcomeLinked OutcomeKind = iota
	// OutcomeAlreadyLinked means the platform identity was linked before the
	// flow started; nothing was done.
	OutcomeAlreadyLinked
	// OutcomeNotConfigured means the OAuth application credentials are absent.
	OutcomeNotConfigured
	// OutcomeTimeout means the user never supplied a usable callback URL
	// within the session window.
	OutcomeTimeout
	// OutcomeStateMismatch means the callback carried a state value from a
	// different flow. Terminal; the user must restart linking.
	OutcomeStateMismatch
	// OutcomeExchangeFailed means the token endpoint rejected the code.
	OutcomeExchangeFailed
	// OutcomeIdentityFailed means the identity fetch after a successful
	// exchange failed; the obtained token has been deleted.
	OutcomeIdentityFailed
	// OutcomeLinkConflict means one of the identities is already linked to a
	// different counterpart; the obtained token has been deleted.
	OutcomeLinkConflict
	// OutcomeFailed covers unexpected faults (store errors, session errors).
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeLinked:
		return "linked"
	case OutcomeAlreadyLinked:
		return "already_linked"
	case OutcomeNotConfigured:
		return "not_configured"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeStateMismatch:
		return "state_mismatch"
	case OutcomeExchangeFailed:
		return "exchange_failed"
	case OutcomeIdentityFailed:
		return "identity_failed"
	case OutcomeLinkConflict:
		return "link_conflict"
	default:
		return "failed"
	}
}

// Outcome is the result of one link flow run.
type Outcome struct {
	Kind      OutcomeKind
	OsuUserID string
	Username  string
	Err       error
}
