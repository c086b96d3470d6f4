package services

import (
	"errors"
	"testing"

	"reward-ledger-system/models"
)

func TestCreditUpdatesBalanceAndAppendsTransaction(t *testing.T) {
	db, _, ledger := newTestStack(t)
	seedUser(t, db, "alice", 0, 0)

	res, err := ledger.Credit("alice", 40, models.TransactionTypeTask, "Offer completed: Survey A")
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if res.NewPoints != 40 || res.NewTotalEarned != 40 {
		t.Fatalf("got points=%d earned=%d, want 40/40", res.NewPoints, res.NewTotalEarned)
	}

	if _, err := ledger.Credit("alice", 10, models.TransactionTypeCaptcha, ""); err != nil {
		t.Fatalf("second Credit failed: %v", err)
	}

	user := getUser(t, db, "alice")
	if user.Points != 50 || user.TotalEarned != 50 {
		t.Fatalf("got points=%d earned=%d, want 50/50", user.Points, user.TotalEarned)
	}
	if n := countTransactions(t, db, "alice", models.TransactionTypeTask); n != 1 {
		t.Fatalf("got %d task transactions, want 1", n)
	}
}

// The sum of credit-type ledger entries must always equal TotalEarned.
func TestLedgerConsistencyAfterMixedActivity(t *testing.T) {
	db, _, ledger := newTestStack(t)
	seedUser(t, db, "bob", 0, 0)

	credits := []struct {
		amount int64
		txType models.TransactionType
	}{
		{25, models.TransactionTypeTask},
		{5, models.TransactionTypeAd},
		{3, models.TransactionTypeQuiz},
		{2, models.TransactionTypeCaptcha},
		{15, models.TransactionTypeGameTask},
	}
	for _, cr := range credits {
		if _, err := ledger.Credit("bob", cr.amount, cr.txType, ""); err != nil {
			t.Fatalf("Credit(%s) failed: %v", cr.txType, err)
		}
	}

	// An admin adjustment moves the balance but must not disturb the
	// earning reconciliation.
	if _, err := ledger.AdjustPoints("bob", -10, "manual correction"); err != nil {
		t.Fatalf("AdjustPoints failed: %v", err)
	}

	user := getUser(t, db, "bob")
	sum, err := ledger.EarnedSum("bob")
	if err != nil {
		t.Fatalf("EarnedSum failed: %v", err)
	}
	if sum != user.TotalEarned {
		t.Fatalf("earning sum %d != TotalEarned %d", sum, user.TotalEarned)
	}
	if user.TotalEarned != 50 {
		t.Fatalf("got TotalEarned=%d, want 50", user.TotalEarned)
	}
	if user.Points != 40 {
		t.Fatalf("got points=%d, want 40 after -10 adjustment", user.Points)
	}
}

func TestCreditRejectsInvalidInput(t *testing.T) {
	db, _, ledger := newTestStack(t)
	seedUser(t, db, "carol", 100, 100)

	tests := []struct {
		name    string
		userID  string
		amount  int64
		wantErr error
	}{
		{"zero amount", "carol", 0, ErrInvalidAmount},
		{"negative amount", "carol", -5, ErrInvalidAmount},
		{"unknown user", "nobody", 10, ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ledger.Credit(tt.userID, tt.amount, models.TransactionTypeTask, "")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got err=%v, want %v", err, tt.wantErr)
			}
		})
	}

	// Hard failures must leave no partial mutation.
	user := getUser(t, db, "carol")
	if user.Points != 100 || user.TotalEarned != 100 {
		t.Fatalf("balance moved on rejected credit: points=%d earned=%d", user.Points, user.TotalEarned)
	}
	var total int64
	db.Model(&models.Transaction{}).Count(&total)
	if total != 0 {
		t.Fatalf("got %d ledger entries after rejected credits, want 0", total)
	}
}

func TestAdjustPointsGuardsBalanceFloor(t *testing.T) {
	db, _, ledger := newTestStack(t)
	seedUser(t, db, "dave", 30, 30)

	if _, err := ledger.AdjustPoints("dave", -50, "oops"); !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("got err=%v, want ErrInsufficientPoints", err)
	}
	user := getUser(t, db, "dave")
	if user.Points != 30 {
		t.Fatalf("balance moved on rejected adjustment: %d", user.Points)
	}

	if _, err := ledger.AdjustPoints("dave", 20, "goodwill"); err != nil {
		t.Fatalf("positive adjustment failed: %v", err)
	}
	user = getUser(t, db, "dave")
	if user.Points != 50 {
		t.Fatalf("got points=%d, want 50", user.Points)
	}
	if user.TotalEarned != 30 {
		t.Fatalf("admin adjustment must not move TotalEarned, got %d", user.TotalEarned)
	}
}

func TestPurgeUserCascades(t *testing.T) {
	db, settings, ledger := newTestStack(t)
	seedUser(t, db, "eve", 0, 0)

	if _, err := ledger.Credit("eve", 10, models.TransactionTypeTask, ""); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	offers := NewOfferService(db, ledger)
	if _, err := offers.TrackClick("eve", "offer-1", "Survey", ""); err != nil {
		t.Fatalf("TrackClick failed: %v", err)
	}
	seedUser(t, db, "eve-referrer", 0, 0)
	if err := NewReferralService(db, settings).BindReferral("eve", "eve-referrer", "CODE"); err != nil {
		t.Fatalf("BindReferral failed: %v", err)
	}

	if err := ledger.PurgeUser("eve"); err != nil {
		t.Fatalf("PurgeUser failed: %v", err)
	}

	if _, err := ledger.GetUser("eve"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("user still resolvable after purge: %v", err)
	}
	var txCount, clickCount, refCount int64
	db.Model(&models.Transaction{}).Where("user_id = ?", "eve").Count(&txCount)
	db.Model(&models.OfferClick{}).Where("user_id = ?", "eve").Count(&clickCount)
	db.Model(&models.Referral{}).Where("referred_id = ?", "eve").Count(&refCount)
	if txCount != 0 || clickCount != 0 || refCount != 0 {
		t.Fatalf("dangling records after purge: tx=%d clicks=%d refs=%d", txCount, clickCount, refCount)
	}
}
