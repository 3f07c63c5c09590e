package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/nutrigen/nutrigen/internal/domain"
)

// ─── Credit Gate ────────────────────────────────────────────────────────────

// CheckAndUseCredit implements the credit gate. The balance read, the
// pending log insert, the decrement, and the ledger entry happen in one
// transaction, so a partial write (log without decrement or vice versa)
// cannot occur. A non-positive balance returns Allowed=false with no side
// effects.
func (db *DB) CheckAndUseCredit(ctx context.Context, userID string, genType domain.GenerationType, promptData []byte) (domain.GateResult, error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.GateResult{}, err
	}
	defer tx.Rollback()

	var remaining int64
	err = tx.QueryRowContext(ctx, `
		SELECT ai_generations_remaining FROM profiles WHERE id = ?
	`, userID).Scan(&remaining)
	if err == sql.ErrNoRows {
		return domain.GateResult{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.GateResult{}, err
	}

	if remaining <= 0 {
		return domain.GateResult{Allowed: false, Remaining: remaining}, nil
	}

	logID := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO generation_logs (id, user_id, generation_type, prompt_data, status, credits_used, created_at)
		VALUES (?, ?, ?, ?, 'pending', 1, ?)
	`, logID, userID, string(genType), nullIfEmpty(promptData), now); err != nil {
		return domain.GateResult{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE profiles
		SET ai_generations_remaining = ai_generations_remaining - 1,
		    updated_at = datetime('now')
		WHERE id = ?
	`, userID); err != nil {
		return domain.GateResult{}, err
	}

	if err := insertLedgerEntry(ctx, tx, domain.LedgerEntry{
		Type:        domain.TxSpend,
		EntryType:   domain.EntryDebit,
		UserID:      userID,
		Amount:      1,
		LogID:       logID,
		Description: string(genType),
		Balance:     remaining - 1,
	}); err != nil {
		return domain.GateResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.GateResult{}, err
	}
	return domain.GateResult{Allowed: true, LogID: logID, Remaining: remaining - 1}, nil
}

// ─── Generation Log Finalizer ───────────────────────────────────────────────

// FinalizeGeneration sets the terminal state of a log. The WHERE clause
// guards idempotency: only a log still in pending can transition, so a
// second call never overwrites the terminal status or response data.
func (db *DB) FinalizeGeneration(ctx context.Context, logID string, success bool, responseData []byte, errMsg string) error {
	status := domain.GenerationFailed
	if success {
		status = domain.GenerationCompleted
	}
	now := time.Now().UTC().Format(time.RFC3339)

	res, err := db.db.ExecContext(ctx, `
		UPDATE generation_logs
		SET status = ?, response_data = ?, error_message = NULLIF(?, ''), completed_at = ?
		WHERE id = ? AND status = 'pending'
	`, string(status), nullIfEmpty(responseData), errMsg, now, logID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	// Nothing updated — either the log does not exist or it already
	// reached a terminal state.
	var existing string
	err = db.db.QueryRowContext(ctx, `
		SELECT status FROM generation_logs WHERE id = ?
	`, logID).Scan(&existing)
	if err == sql.ErrNoRows {
		return domain.ErrLogNotFound
	}
	if err != nil {
		return err
	}
	return domain.ErrAlreadyFinalized
}

// ─── Refunds ────────────────────────────────────────────────────────────────

// RefundCredit returns the credit spent on a failed generation. Guarded by
// the refunded flag so a log can be refunded at most once, and only after
// it reached the failed state.
func (db *DB) RefundCredit(ctx context.Context, userID, logID string) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE generation_logs SET refunded = 1
		WHERE id = ? AND user_id = ? AND status = 'failed' AND refunded = 0
	`, logID, userID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		var status string
		err := tx.QueryRowContext(ctx, `
			SELECT status FROM generation_logs WHERE id = ? AND user_id = ?
		`, logID, userID).Scan(&status)
		if err == sql.ErrNoRows {
			return domain.ErrLogNotFound
		}
		if err != nil {
			return err
		}
		// Already refunded, or not in a refundable state.
		return domain.ErrAlreadyFinalized
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE profiles
		SET ai_generations_remaining = ai_generations_remaining + 1,
		    updated_at = datetime('now')
		WHERE id = ?
	`, userID); err != nil {
		return err
	}

	var balance int64
	if err := tx.QueryRowContext(ctx, `
		SELECT ai_generations_remaining FROM profiles WHERE id = ?
	`, userID).Scan(&balance); err != nil {
		return err
	}

	if err := insertLedgerEntry(ctx, tx, domain.LedgerEntry{
		Type:        domain.TxRefund,
		EntryType:   domain.EntryCredit,
		UserID:      userID,
		Amount:      1,
		LogID:       logID,
		Description: "refund after failed generation",
		Balance:     balance,
	}); err != nil {
		return err
	}

	return tx.Commit()
}

// ─── Log Queries ────────────────────────────────────────────────────────────

// GetLog retrieves a single generation log.
func (db *DB) GetLog(ctx context.Context, logID string) (*domain.GenerationLog, error) {
	row := db.db.QueryRowContext(ctx, `
		SELECT id, user_id, generation_type, COALESCE(prompt_data, ''), status,
		       COALESCE(response_data, ''), COALESCE(error_message, ''),
		       credits_used, created_at, COALESCE(completed_at, '')
		FROM generation_logs WHERE id = ?
	`, logID)

	l, err := scanLog(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrLogNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ListLogs returns the most recent logs for a user, newest first.
func (db *DB) ListLogs(ctx context.Context, userID string, limit int) ([]domain.GenerationLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, user_id, generation_type, COALESCE(prompt_data, ''), status,
		       COALESCE(response_data, ''), COALESCE(error_message, ''),
		       credits_used, created_at, COALESCE(completed_at, '')
		FROM generation_logs WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.GenerationLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *l)
	}
	return result, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLog(s rowScanner) (*domain.GenerationLog, error) {
	var l domain.GenerationLog
	var genType, status, prompt, response, createdStr, completedStr string
	if err := s.Scan(&l.ID, &l.UserID, &genType, &prompt, &status,
		&response, &l.ErrorMessage, &l.CreditsUsed, &createdStr, &completedStr); err != nil {
		return nil, err
	}
	l.Type = domain.GenerationType(genType)
	l.Status = domain.GenerationStatus(status)
	if prompt != "" {
		l.PromptData = []byte(prompt)
	}
	if response != "" {
		l.ResponseData = []byte(response)
	}
	l.CreatedAt = parseDBTime(createdStr)
	if completedStr != "" {
		t := parseDBTime(completedStr)
		l.CompletedAt = &t
	}
	return &l, nil
}

// nullIfEmpty maps an empty byte slice to NULL for TEXT columns.
func nullIfEmpty(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
