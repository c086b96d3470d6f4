package services

import (
	"errors"
	"testing"
	"time"

	"reward-ledger-system/models"

	"github.com/google/uuid"
)

func TestClaimPaysOutOnce(t *testing.T) {
	db, _, ledger := newTestStack(t)
	offers := NewOfferService(db, ledger)
	seedUser(t, db, "alice", 0, 0)

	if _, err := offers.TrackClick("alice", "survey-9", "Survey 9", "https://wall.example/9"); err != nil {
		t.Fatalf("TrackClick failed: %v", err)
	}

	res, err := offers.Claim("alice", "survey-9", "Survey 9", 30)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if res.PointsAwarded != 30 || res.NewPoints != 30 {
		t.Fatalf("got awarded=%d points=%d, want 30/30", res.PointsAwarded, res.NewPoints)
	}

	// Second claim for the same offer instance: dedup guard, not a payout.
	if _, err := offers.Claim("alice", "survey-9", "Survey 9", 30); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("got err=%v, want ErrAlreadyClaimed", err)
	}

	user := getUser(t, db, "alice")
	if user.Points != 30 || user.TotalEarned != 30 {
		t.Fatalf("double pay: points=%d earned=%d", user.Points, user.TotalEarned)
	}
	if n := countTransactions(t, db, "alice", models.TransactionTypeTask); n != 1 {
		t.Fatalf("got %d task transactions, want 1", n)
	}

	claimed, err := offers.IsClaimed("alice", "survey-9")
	if err != nil || !claimed {
		t.Fatalf("IsClaimed = %v, %v; want true, nil", claimed, err)
	}
}

func TestClaimWithoutClickRejected(t *testing.T) {
	db, _, ledger := newTestStack(t)
	offers := NewOfferService(db, ledger)
	seedUser(t, db, "bob", 0, 0)

	if _, err := offers.Claim("bob", "install-2", "App Install", 50); !errors.Is(err, ErrNoClickFound) {
		t.Fatalf("got err=%v, want ErrNoClickFound", err)
	}
	if user := getUser(t, db, "bob"); user.Points != 0 {
		t.Fatalf("points moved on rejected claim: %d", user.Points)
	}
}

// Repeated clicks on the same offer still allow only one payout. The
// clicks land back-to-back (double-clicks share a millisecond) and every
// one must record — tracking is observational and never fails on repeats.
func TestRepeatedClicksSinglePayout(t *testing.T) {
	db, _, ledger := newTestStack(t)
	offers := NewOfferService(db, ledger)
	seedUser(t, db, "carol", 0, 0)

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		clickID, err := offers.TrackClick("carol", "video-7", "Video 7", "")
		if err != nil {
			t.Fatalf("TrackClick %d failed: %v", i, err)
		}
		if seen[clickID] {
			t.Fatalf("TrackClick %d reused id %s", i, clickID)
		}
		seen[clickID] = true
	}

	if _, err := offers.Claim("carol", "video-7", "Video 7", 10); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if _, err := offers.Claim("carol", "video-7", "Video 7", 10); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("got err=%v, want ErrAlreadyClaimed", err)
	}

	var claimedCount int64
	db.Model(&models.OfferClick{}).
		Where("user_id = ? AND offer_id = ? AND claimed = ?", "carol", "video-7", true).
		Count(&claimedCount)
	if claimedCount != 1 {
		t.Fatalf("got %d claimed clicks, want exactly 1", claimedCount)
	}

	user := getUser(t, db, "carol")
	if user.Points != 10 || user.TotalEarned != 10 {
		t.Fatalf("double pay across click rows: points=%d earned=%d", user.Points, user.TotalEarned)
	}
}

// A claim racing over a different click row for the same (user, offer)
// cannot land a second claimed = true: the store's partial unique index
// rejects it even when the flag flip bypasses the service-level checks.
func TestSecondClaimedRowRejectedByStore(t *testing.T) {
	db, _, ledger := newTestStack(t)
	offers := NewOfferService(db, ledger)
	seedUser(t, db, "frank", 0, 0)

	olderID, err := offers.TrackClick("frank", "survey-3", "Survey 3", "")
	if err != nil {
		t.Fatalf("TrackClick failed: %v", err)
	}
	if _, err := offers.TrackClick("frank", "survey-3", "Survey 3", ""); err != nil {
		t.Fatalf("TrackClick failed: %v", err)
	}

	// Claim settles on the newest row.
	if _, err := offers.Claim("frank", "survey-3", "Survey 3", 20); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	// The losing interleaving: flip the older, still-unclaimed row the way
	// the claim transaction would.
	res := db.Model(&models.OfferClick{}).
		Where("id = ? AND claimed = ?", olderID, false).
		Updates(map[string]interface{}{
			"claimed":        true,
			"status":         models.OfferClickStatusClaimed,
			"points_awarded": int64(20),
		})
	if res.Error == nil && res.RowsAffected > 0 {
		t.Fatal("second claimed row accepted for the same user and offer")
	}

	var claimedCount int64
	db.Model(&models.OfferClick{}).
		Where("user_id = ? AND offer_id = ? AND claimed = ?", "frank", "survey-3", true).
		Count(&claimedCount)
	if claimedCount != 1 {
		t.Fatalf("got %d claimed rows, want exactly 1", claimedCount)
	}
	if n := countTransactions(t, db, "frank", models.TransactionTypeTask); n != 1 {
		t.Fatalf("got %d task transactions, want 1", n)
	}
}

func TestExpireStaleClicks(t *testing.T) {
	db, _, ledger := newTestStack(t)
	offers := NewOfferService(db, ledger)
	seedUser(t, db, "dave", 0, 0)

	stale := models.OfferClick{
		ID:        "dave_old-offer_1",
		UserID:    "dave",
		OfferID:   "old-offer",
		OfferName: "Old Offer",
		Status:    models.OfferClickStatusClicked,
		ClickedAt: time.Now().Add(-72 * time.Hour),
	}
	if err := db.Create(&stale).Error; err != nil {
		t.Fatalf("failed to seed stale click: %v", err)
	}

	n, err := offers.ExpireStaleClicks(48 * time.Hour)
	if err != nil {
		t.Fatalf("ExpireStaleClicks failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("got %d expired, want 1", n)
	}

	// Expired clicks no longer back a claim.
	if _, err := offers.Claim("dave", "old-offer", "Old Offer", 10); !errors.Is(err, ErrNoClickFound) {
		t.Fatalf("got err=%v, want ErrNoClickFound after expiry", err)
	}
}

func TestResolveRewardPointsPrefersCatalog(t *testing.T) {
	db, _, ledger := newTestStack(t)
	offers := NewOfferService(db, ledger)

	mirror := models.OfferMirror{
		ID:           uuid.NewString(),
		Provider:     "offerwall",
		ExternalKey:  "survey-9",
		Name:         "Survey 9",
		RewardPoints: 42,
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := db.Create(&mirror).Error; err != nil {
		t.Fatalf("failed to seed offer mirror: %v", err)
	}

	if got := offers.ResolveRewardPoints("survey-9", 5); got != 42 {
		t.Fatalf("got %d, want catalog value 42", got)
	}
	if got := offers.ResolveRewardPoints("unknown-offer", 5); got != 5 {
		t.Fatalf("got %d, want fallback 5", got)
	}
}
