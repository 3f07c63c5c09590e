package sqlite

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nutrigen/nutrigen/internal/domain"
	"github.com/nutrigen/nutrigen/internal/infra/observability"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedProfile(t *testing.T, db *DB, id string, credits int64) {
	t.Helper()
	err := db.UpsertProfile(context.Background(), domain.UserProfile{
		ID:                     id,
		DisplayName:            "Test User",
		Role:                   domain.RoleTrainee,
		Language:               "en",
		AIGenerationsRemaining: credits,
	})
	if err != nil {
		t.Fatalf("seed profile: %v", err)
	}
}

// ─── Profiles ───────────────────────────────────────────────────────────────

func TestUpsertProfile_GetProfile(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedProfile(t, db, "user-1", 3)

	p, err := db.GetProfile(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetProfile() error: %v", err)
	}
	if p.AIGenerationsRemaining != 3 {
		t.Errorf("remaining = %d, want 3", p.AIGenerationsRemaining)
	}
	if p.Role != domain.RoleTrainee {
		t.Errorf("role = %q, want trainee", p.Role)
	}
}

func TestUpsertProfile_UpdateKeepsBalance(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedProfile(t, db, "user-1", 5)

	// Re-upserting must not reset the server-owned balance.
	err := db.UpsertProfile(ctx, domain.UserProfile{
		ID:          "user-1",
		DisplayName: "Renamed",
		Role:        domain.RoleCoach,
		Language:    "he",
	})
	if err != nil {
		t.Fatal(err)
	}

	p, _ := db.GetProfile(ctx, "user-1")
	if p.AIGenerationsRemaining != 5 {
		t.Errorf("remaining = %d, want 5 after upsert", p.AIGenerationsRemaining)
	}
	if p.DisplayName != "Renamed" {
		t.Errorf("display name = %q, want Renamed", p.DisplayName)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.GetProfile(context.Background(), "ghost"); err != domain.ErrProfileNotFound {
		t.Errorf("err = %v, want ErrProfileNotFound", err)
	}
}

func TestGrantCredits(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedProfile(t, db, "user-1", 0)

	grantedBefore := testutil.ToFloat64(observability.CreditsGranted)

	balance, err := db.GrantCredits(ctx, "user-1", 10, domain.TxGrant)
	if err != nil {
		t.Fatalf("GrantCredits() error: %v", err)
	}
	if balance != 10 {
		t.Errorf("balance = %d, want 10", balance)
	}

	entries, err := db.Ledger(ctx, "user-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(entries))
	}
	if entries[0].Type != domain.TxGrant || entries[0].EntryType != domain.EntryCredit {
		t.Errorf("entry = %s/%s, want GRANT/CREDIT", entries[0].Type, entries[0].EntryType)
	}
	if entries[0].Balance != 10 {
		t.Errorf("running balance = %d, want 10", entries[0].Balance)
	}

	if got := testutil.ToFloat64(observability.CreditsGranted) - grantedBefore; got != 10 {
		t.Errorf("credits_granted_total delta = %v, want 10", got)
	}
}

func TestGrantCredits_UnknownUser(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.GrantCredits(context.Background(), "ghost", 5, domain.TxGrant); err != domain.ErrProfileNotFound {
		t.Errorf("err = %v, want ErrProfileNotFound", err)
	}
}

// ─── Credit Gate ────────────────────────────────────────────────────────────

func TestCheckAndUseCredit_Allowed(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedProfile(t, db, "user-1", 2)

	gate, err := db.CheckAndUseCredit(ctx, "user-1", domain.GenMealPlan, []byte(`{"week":1}`))
	if err != nil {
		t.Fatalf("CheckAndUseCredit() error: %v", err)
	}
	if !gate.Allowed {
		t.Fatal("gate should allow with credits remaining")
	}
	if gate.Remaining != 1 {
		t.Errorf("remaining = %d, want 1", gate.Remaining)
	}
	if gate.LogID == "" {
		t.Fatal("gate should return a log id")
	}

	// Balance decreased by exactly 1.
	p, _ := db.GetProfile(ctx, "user-1")
	if p.AIGenerationsRemaining != 1 {
		t.Errorf("balance = %d, want 1", p.AIGenerationsRemaining)
	}

	// Pending log exists with credits_used fixed at creation.
	l, err := db.GetLog(ctx, gate.LogID)
	if err != nil {
		t.Fatal(err)
	}
	if l.Status != domain.GenerationPending {
		t.Errorf("status = %q, want pending", l.Status)
	}
	if l.CreditsUsed != 1 {
		t.Errorf("credits_used = %d, want 1", l.CreditsUsed)
	}
	if string(l.PromptData) != `{"week":1}` {
		t.Errorf("prompt_data = %s", l.PromptData)
	}

	// Ledger mirrors the spend.
	entries, _ := db.Ledger(ctx, "user-1", 10)
	if len(entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(entries))
	}
	if entries[0].Type != domain.TxSpend || entries[0].EntryType != domain.EntryDebit {
		t.Errorf("entry = %s/%s, want SPEND/DEBIT", entries[0].Type, entries[0].EntryType)
	}
	if entries[0].LogID != gate.LogID {
		t.Errorf("ledger log_id = %q, want %q", entries[0].LogID, gate.LogID)
	}
}

func TestCheckAndUseCredit_Exhausted(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedProfile(t, db, "user-1", 0)

	gate, err := db.CheckAndUseCredit(ctx, "user-1", domain.GenSnack, nil)
	if err != nil {
		t.Fatalf("CheckAndUseCredit() error: %v", err)
	}
	if gate.Allowed {
		t.Fatal("gate must deny at zero balance")
	}
	if gate.LogID != "" {
		t.Error("no log must be created on denial")
	}

	// No side effects: no logs, no ledger rows, balance untouched.
	logs, _ := db.ListLogs(ctx, "user-1", 10)
	if len(logs) != 0 {
		t.Errorf("logs = %d, want 0", len(logs))
	}
	entries, _ := db.Ledger(ctx, "user-1", 10)
	if len(entries) != 0 {
		t.Errorf("ledger entries = %d, want 0", len(entries))
	}
	p, _ := db.GetProfile(ctx, "user-1")
	if p.AIGenerationsRemaining != 0 {
		t.Errorf("balance = %d, want 0", p.AIGenerationsRemaining)
	}
}

func TestCheckAndUseCredit_NoProfile(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.CheckAndUseCredit(context.Background(), "ghost", domain.GenMealPlan, nil); err != domain.ErrProfileNotFound {
		t.Errorf("err = %v, want ErrProfileNotFound", err)
	}
}

// ─── Finalizer ──────────────────────────────────────────────────────────────

func TestFinalizeGeneration_Success(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedProfile(t, db, "user-1", 1)
	gate, _ := db.CheckAndUseCredit(ctx, "user-1", domain.GenMealPlan, nil)

	if err := db.FinalizeGeneration(ctx, gate.LogID, true, []byte(`{"days":7}`), ""); err != nil {
		t.Fatalf("FinalizeGeneration() error: %v", err)
	}

	l, _ := db.GetLog(ctx, gate.LogID)
	if l.Status != domain.GenerationCompleted {
		t.Errorf("status = %q, want completed", l.Status)
	}
	if string(l.ResponseData) != `{"days":7}` {
		t.Errorf("response_data = %s", l.ResponseData)
	}
	if l.CompletedAt == nil {
		t.Error("completed_at should be set")
	}
}

func TestFinalizeGeneration_Failure(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedProfile(t, db, "user-1", 1)
	gate, _ := db.CheckAndUseCredit(ctx, "user-1", domain.GenExerciseProgram, nil)

	if err := db.FinalizeGeneration(ctx, gate.LogID, false, nil, "model overloaded"); err != nil {
		t.Fatalf("FinalizeGeneration() error: %v", err)
	}

	l, _ := db.GetLog(ctx, gate.LogID)
	if l.Status != domain.GenerationFailed {
		t.Errorf("status = %q, want failed", l.Status)
	}
	if l.ErrorMessage != "model overloaded" {
		t.Errorf("error_message = %q", l.ErrorMessage)
	}
}

func TestFinalizeGeneration_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedProfile(t, db, "user-1", 1)
	gate, _ := db.CheckAndUseCredit(ctx, "user-1", domain.GenMealPlan, nil)

	if err := db.FinalizeGeneration(ctx, gate.LogID, true, []byte(`{"v":1}`), ""); err != nil {
		t.Fatal(err)
	}

	// Second finalize must not change the terminal state or response data.
	err := db.FinalizeGeneration(ctx, gate.LogID, false, nil, "late failure")
	if err != domain.ErrAlreadyFinalized {
		t.Errorf("err = %v, want ErrAlreadyFinalized", err)
	}

	l, _ := db.GetLog(ctx, gate.LogID)
	if l.Status != domain.GenerationCompleted {
		t.Errorf("status = %q, terminal state was overwritten", l.Status)
	}
	if string(l.ResponseData) != `{"v":1}` {
		t.Errorf("response_data = %s, was overwritten", l.ResponseData)
	}
}

func TestFinalizeGeneration_NotFound(t *testing.T) {
	db := newTestDB(t)
	if err := db.FinalizeGeneration(context.Background(), "missing", true, nil, ""); err != domain.ErrLogNotFound {
		t.Errorf("err = %v, want ErrLogNotFound", err)
	}
}

// ─── Refunds ────────────────────────────────────────────────────────────────

func TestRefundCredit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedProfile(t, db, "user-1", 1)
	gate, _ := db.CheckAndUseCredit(ctx, "user-1", domain.GenSnack, nil)
	db.FinalizeGeneration(ctx, gate.LogID, false, nil, "boom")

	if err := db.RefundCredit(ctx, "user-1", gate.LogID); err != nil {
		t.Fatalf("RefundCredit() error: %v", err)
	}

	p, _ := db.GetProfile(ctx, "user-1")
	if p.AIGenerationsRemaining != 1 {
		t.Errorf("balance = %d, want 1 after refund", p.AIGenerationsRemaining)
	}

	// A second refund of the same log must be rejected.
	if err := db.RefundCredit(ctx, "user-1", gate.LogID); err != domain.ErrAlreadyFinalized {
		t.Errorf("second refund err = %v, want ErrAlreadyFinalized", err)
	}
	p, _ = db.GetProfile(ctx, "user-1")
	if p.AIGenerationsRemaining != 1 {
		t.Errorf("balance = %d after double refund, want 1", p.AIGenerationsRemaining)
	}
}

func TestRefundCredit_PendingLogNotRefundable(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedProfile(t, db, "user-1", 1)
	gate, _ := db.CheckAndUseCredit(ctx, "user-1", domain.GenSnack, nil)

	if err := db.RefundCredit(ctx, "user-1", gate.LogID); err != domain.ErrAlreadyFinalized {
		t.Errorf("err = %v, want ErrAlreadyFinalized for pending log", err)
	}
}

// ─── Log Queries ────────────────────────────────────────────────────────────

func TestListLogs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedProfile(t, db, "user-1", 3)
	seedProfile(t, db, "user-2", 3)

	for i := 0; i < 3; i++ {
		if _, err := db.CheckAndUseCredit(ctx, "user-1", domain.GenMealPlan, nil); err != nil {
			t.Fatal(err)
		}
	}
	db.CheckAndUseCredit(ctx, "user-2", domain.GenSnack, nil)

	logs, err := db.ListLogs(ctx, "user-1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 3 {
		t.Fatalf("logs = %d, want 3", len(logs))
	}
	for _, l := range logs {
		if l.UserID != "user-1" {
			t.Errorf("log %s belongs to %s", l.ID, l.UserID)
		}
	}
}
