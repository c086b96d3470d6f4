package services

import (
	"errors"
	"testing"

	"reward-ledger-system/models"

	"gorm.io/gorm"
)

func TestWithdrawalEscrowAndApprove(t *testing.T) {
	db, settings, _ := newTestStack(t)
	withdrawals := NewWithdrawalService(db, settings)
	seedUser(t, db, "alice", 1500, 1500)

	// amount 100 × 10 pts-per-unit = 1000 points escrowed immediately.
	req, err := withdrawals.CreateRequest("alice", 100, "alice@upi")
	if err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}
	if req.Points != 1000 || req.Status != models.WithdrawalStatusPending {
		t.Fatalf("got escrow=%d status=%s, want 1000/pending", req.Points, req.Status)
	}
	if u := getUser(t, db, "alice"); u.Points != 500 {
		t.Fatalf("escrow not debited: points=%d, want 500", u.Points)
	}

	decided, err := withdrawals.Decide(req.ID, true)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decided.Status != models.WithdrawalStatusApproved || decided.ProcessedAt == nil {
		t.Fatalf("got status=%s processedAt=%v", decided.Status, decided.ProcessedAt)
	}

	user := getUser(t, db, "alice")
	if user.Points != 500 || user.TotalWithdrawn != 1000 || user.TotalEarned != 1500 {
		t.Fatalf("after approve: points=%d withdrawn=%d earned=%d",
			user.Points, user.TotalWithdrawn, user.TotalEarned)
	}
}

func TestWithdrawalRejectRefundsEscrow(t *testing.T) {
	db, settings, ledger := newTestStack(t)
	withdrawals := NewWithdrawalService(db, settings)
	seedUser(t, db, "bob", 1500, 1500)

	req, err := withdrawals.CreateRequest("bob", 100, "bob@upi")
	if err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}

	if _, err := withdrawals.Decide(req.ID, false); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	user := getUser(t, db, "bob")
	if user.Points != 1500 || user.TotalWithdrawn != 0 || user.TotalEarned != 1500 {
		t.Fatalf("after reject: points=%d withdrawn=%d earned=%d",
			user.Points, user.TotalWithdrawn, user.TotalEarned)
	}

	// The refund is audited as a bookkeeping entry, never as an earning.
	if n := countTransactions(t, db, "bob", models.TransactionTypeWithdrawalRefund); n != 1 {
		t.Fatalf("got %d refund transactions, want 1", n)
	}
	earned, err := ledger.EarnedSum("bob")
	if err != nil {
		t.Fatalf("EarnedSum failed: %v", err)
	}
	if earned != 0 {
		t.Fatalf("refund counted as earning: sum=%d", earned)
	}
}

func TestWithdrawalValidation(t *testing.T) {
	db, settings, _ := newTestStack(t)
	withdrawals := NewWithdrawalService(db, settings)
	seedUser(t, db, "carol", 5000, 5000)

	tests := []struct {
		name    string
		user    string
		amount  int64
		wantErr error
	}{
		{"below minimum", "carol", 50, ErrBelowMinimum},
		{"zero amount", "carol", 0, ErrInvalidAmount},
		{"negative amount", "carol", -100, ErrInvalidAmount},
		{"insufficient balance", "carol", 600, ErrInsufficientPoints}, // needs 6000 pts
		{"unknown user", "ghost", 100, ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := withdrawals.CreateRequest(tt.user, tt.amount, "x@upi"); !errors.Is(err, tt.wantErr) {
				t.Fatalf("got err=%v, want %v", err, tt.wantErr)
			}
		})
	}

	if u := getUser(t, db, "carol"); u.Points != 5000 {
		t.Fatalf("rejected requests moved points: %d", u.Points)
	}
}

func TestWithdrawalDecidedOnlyOnce(t *testing.T) {
	db, settings, _ := newTestStack(t)
	withdrawals := NewWithdrawalService(db, settings)
	seedUser(t, db, "dave", 2000, 2000)

	req, err := withdrawals.CreateRequest("dave", 100, "dave@upi")
	if err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}

	if _, err := withdrawals.Decide(req.ID, false); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	// Flipping a settled request (either direction) is refused.
	if _, err := withdrawals.Decide(req.ID, true); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("got err=%v, want ErrAlreadyProcessed", err)
	}
	if _, err := withdrawals.Decide(req.ID, false); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("got err=%v, want ErrAlreadyProcessed", err)
	}

	// The refund happened exactly once.
	if u := getUser(t, db, "dave"); u.Points != 2000 {
		t.Fatalf("double settle: points=%d, want 2000", u.Points)
	}

	if _, err := withdrawals.Decide("no-such-request", true); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("got err=%v, want gorm.ErrRecordNotFound", err)
	}
}

func TestWithdrawalQueues(t *testing.T) {
	db, settings, _ := newTestStack(t)
	withdrawals := NewWithdrawalService(db, settings)
	seedUser(t, db, "erin", 10000, 10000)

	first, err := withdrawals.CreateRequest("erin", 100, "erin@upi")
	if err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}
	if _, err := withdrawals.CreateRequest("erin", 200, "erin@upi"); err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}
	if _, err := withdrawals.Decide(first.ID, true); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	mine, err := withdrawals.GetUserRequests("erin")
	if err != nil || len(mine) != 2 {
		t.Fatalf("GetUserRequests: %d reqs, err=%v; want 2, nil", len(mine), err)
	}

	pending, err := withdrawals.GetByStatus(models.WithdrawalStatusPending, 0)
	if err != nil || len(pending) != 1 {
		t.Fatalf("GetByStatus(pending): %d reqs, err=%v; want 1, nil", len(pending), err)
	}
	if pending[0].Amount != 200 {
		t.Fatalf("wrong pending request: amount=%d", pending[0].Amount)
	}
}
