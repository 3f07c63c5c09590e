package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// GenerationStore abstracts persistence of generation logs and the credit
// gate. CheckAndUseCredit and FinalizeGeneration are the two halves of a
// generation attempt's audit trail.
type GenerationStore interface {
	// CheckAndUseCredit reads the caller's remaining balance and, if it is
	// positive, atomically creates a pending GenerationLog, decrements the
	// balance, and appends a SPEND ledger entry. A zero balance returns
	// GateResult{Allowed: false} with no side effects.
	CheckAndUseCredit(ctx context.Context, userID string, genType GenerationType, promptData []byte) (GateResult, error)

	// FinalizeGeneration records the terminal outcome of a log. It is
	// idempotent: a log that already left the pending state is untouched
	// and ErrAlreadyFinalized is returned.
	FinalizeGeneration(ctx context.Context, logID string, success bool, responseData []byte, errMsg string) error

	// RefundCredit returns one credit spent on the given log and appends a
	// REFUND ledger entry. A log may be refunded at most once.
	RefundCredit(ctx context.Context, userID, logID string) error

	GetLog(ctx context.Context, logID string) (*GenerationLog, error)
	ListLogs(ctx context.Context, userID string, limit int) ([]GenerationLog, error)
}

// ProfileStore abstracts user profile persistence.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, p UserProfile) error
	GetProfile(ctx context.Context, userID string) (*UserProfile, error)

	// GrantCredits adds n credits to the user's balance and returns the new
	// balance. Used for signup grants and admin top-ups.
	GrantCredits(ctx context.Context, userID string, n int64, reason TransactionType) (int64, error)

	// Ledger returns the most recent ledger entries for a user.
	Ledger(ctx context.Context, userID string, limit int) ([]LedgerEntry, error)
}

// FunctionInvoker abstracts the remote generation functions. One attempt,
// no automatic retry; retries belong to the user re-triggering the action.
type FunctionInvoker interface {
	Invoke(ctx context.Context, functionName string, payload InvocationPayload) (GenerationResult, error)
}

// QueryCache is the key-based cache the orchestrator invalidates after a
// successful generation. The core does not own the cache; it only triggers
// invalidation by key pattern.
type QueryCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	// Invalidate removes every entry whose key matches the glob-style
	// pattern and returns how many were removed.
	Invalidate(pattern string) int
}

// Notifier is the fire-and-forget toast surface. The core never blocks on
// acknowledgment.
type Notifier interface {
	Notify(userID, level, message string)
}

// Analytics is the fire-and-forget event surface. Failures are non-fatal
// and silently swallowed by implementations.
type Analytics interface {
	Track(userID, event string, props map[string]string)
}
