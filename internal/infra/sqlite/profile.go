package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nutrigen/nutrigen/internal/domain"
	"github.com/nutrigen/nutrigen/internal/infra/observability"
)

// ─── Profile Operations ─────────────────────────────────────────────────────

// UpsertProfile inserts or updates a user profile. The credit balance is
// only written on first insert; existing balances are owned by the gate and
// grant paths.
func (db *DB) UpsertProfile(ctx context.Context, p domain.UserProfile) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO profiles (id, display_name, role, language, ai_generations_remaining, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, datetime('now'), datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			role         = excluded.role,
			language     = excluded.language,
			updated_at   = datetime('now')
	`, p.ID, p.DisplayName, string(p.Role), p.Language, p.AIGenerationsRemaining)
	return err
}

// GetProfile retrieves a user profile.
func (db *DB) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var p domain.UserProfile
	var role, createdStr, updatedStr string
	err := db.db.QueryRowContext(ctx, `
		SELECT id, display_name, role, language, ai_generations_remaining, created_at, updated_at
		FROM profiles WHERE id = ?
	`, userID).Scan(&p.ID, &p.DisplayName, &role, &p.Language, &p.AIGenerationsRemaining, &createdStr, &updatedStr)
	if err == sql.ErrNoRows {
		return nil, domain.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Role = domain.Role(role)
	p.CreatedAt = parseDBTime(createdStr)
	p.UpdatedAt = parseDBTime(updatedStr)
	return &p, nil
}

// GrantCredits adds n credits to the user's balance and mirrors the grant
// into the ledger. Returns the new balance.
func (db *DB) GrantCredits(ctx context.Context, userID string, n int64, reason domain.TransactionType) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("grant amount must be positive, got %d", n)
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE profiles
		SET ai_generations_remaining = ai_generations_remaining + ?,
		    updated_at = datetime('now')
		WHERE id = ?
	`, n, userID)
	if err != nil {
		return 0, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return 0, domain.ErrProfileNotFound
	}

	var balance int64
	if err := tx.QueryRowContext(ctx, `
		SELECT ai_generations_remaining FROM profiles WHERE id = ?
	`, userID).Scan(&balance); err != nil {
		return 0, err
	}

	if err := insertLedgerEntry(ctx, tx, domain.LedgerEntry{
		Type:      reason,
		EntryType: domain.EntryCredit,
		UserID:    userID,
		Amount:    n,
		Balance:   balance,
	}); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	observability.CreditsGranted.Add(float64(n))
	return balance, nil
}

// Ledger returns the most recent ledger entries for a user, newest first.
func (db *DB) Ledger(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, timestamp, tx_type, entry_type, user_id, amount, COALESCE(log_id, ''), description, balance
		FROM credit_ledger WHERE user_id = ?
		ORDER BY id DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var ts, txType, entryType string
		if err := rows.Scan(&e.ID, &ts, &txType, &entryType, &e.UserID, &e.Amount, &e.LogID, &e.Description, &e.Balance); err != nil {
			return nil, err
		}
		e.Timestamp = parseDBTime(ts)
		e.Type = domain.TransactionType(txType)
		e.EntryType = domain.EntryType(entryType)
		result = append(result, e)
	}
	return result, rows.Err()
}

// insertLedgerEntry appends a ledger row inside an open transaction.
func insertLedgerEntry(ctx context.Context, tx *sql.Tx, e domain.LedgerEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_ledger (timestamp, tx_type, entry_type, user_id, amount, log_id, description, balance)
		VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?)
	`, time.Now().UTC().Format(time.RFC3339), string(e.Type), string(e.EntryType),
		e.UserID, e.Amount, e.LogID, e.Description, e.Balance)
	return err
}

// parseDBTime parses either RFC3339 or SQLite's datetime('now') format.
func parseDBTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02 15:04:05", s)
	return t
}
