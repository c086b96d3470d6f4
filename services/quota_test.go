package services

import (
	"errors"
	"testing"
	"time"

	"reward-ledger-system/models"
)

func TestRecordWatchCreditsAndCounts(t *testing.T) {
	db, _, ledger := newTestStack(t)
	quota := NewQuotaService(db, ledger)
	seedUser(t, db, "alice", 0, 0)

	for i := 1; i <= 3; i++ {
		res, err := quota.RecordWatch("alice", 5, 3)
		if err != nil {
			t.Fatalf("watch %d failed: %v", i, err)
		}
		if res.NewWatchCount != i {
			t.Fatalf("got watch count %d, want %d", res.NewWatchCount, i)
		}
		if res.NewPoints != int64(i*5) {
			t.Fatalf("got points %d, want %d", res.NewPoints, i*5)
		}
	}

	if n := countTransactions(t, db, "alice", models.TransactionTypeAd); n != 3 {
		t.Fatalf("got %d ad transactions, want 3", n)
	}
	user := getUser(t, db, "alice")
	if user.LastWatchResetKey != DayKey(time.Now()) {
		t.Fatalf("day key not set: %q", user.LastWatchResetKey)
	}
}

func TestRecordWatchEnforcesDailyCap(t *testing.T) {
	db, _, ledger := newTestStack(t)
	quota := NewQuotaService(db, ledger)
	user := seedUser(t, db, "bob", 15, 15)

	today := DayKey(time.Now())
	if err := db.Model(user).Updates(map[string]interface{}{
		"watch_count":          3,
		"last_watch_reset_key": today,
	}).Error; err != nil {
		t.Fatalf("failed to seed quota state: %v", err)
	}

	_, err := quota.RecordWatch("bob", 5, 3)
	if !errors.Is(err, ErrDailyLimitReached) {
		t.Fatalf("got err=%v, want ErrDailyLimitReached", err)
	}

	after := getUser(t, db, "bob")
	if after.Points != 15 || after.WatchCount != 3 {
		t.Fatalf("state moved on capped watch: points=%d count=%d", after.Points, after.WatchCount)
	}
}

func TestRecordWatchLazilyResetsOnNewDay(t *testing.T) {
	db, _, ledger := newTestStack(t)
	quota := NewQuotaService(db, ledger)
	user := seedUser(t, db, "carol", 0, 0)

	yesterday := DayKey(time.Now().AddDate(0, 0, -1))
	if err := db.Model(user).Updates(map[string]interface{}{
		"watch_count":          3,
		"last_watch_reset_key": yesterday,
	}).Error; err != nil {
		t.Fatalf("failed to seed quota state: %v", err)
	}

	res, err := quota.RecordWatch("carol", 5, 3)
	if err != nil {
		t.Fatalf("watch after day rollover failed: %v", err)
	}
	if res.NewWatchCount != 1 {
		t.Fatalf("got watch count %d after rollover, want 1", res.NewWatchCount)
	}

	after := getUser(t, db, "carol")
	if after.LastWatchResetKey != DayKey(time.Now()) {
		t.Fatalf("day key not rolled forward: %q", after.LastWatchResetKey)
	}
}

func TestRecordWatchUnknownUser(t *testing.T) {
	db, _, ledger := newTestStack(t)
	quota := NewQuotaService(db, ledger)

	if _, err := quota.RecordWatch("ghost", 5, 3); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("got err=%v, want ErrUserNotFound", err)
	}
}

func TestResetAllWatchCounts(t *testing.T) {
	db, _, ledger := newTestStack(t)
	quota := NewQuotaService(db, ledger)

	for _, id := range []string{"u1", "u2"} {
		u := seedUser(t, db, id, 0, 0)
		if err := db.Model(u).Update("watch_count", 2).Error; err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
	seedUser(t, db, "u3", 0, 0) // already at zero

	n, err := quota.ResetAllWatchCounts()
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("got %d rows swept, want 2", n)
	}
	if u := getUser(t, db, "u1"); u.WatchCount != 0 {
		t.Fatalf("watch count not zeroed: %d", u.WatchCount)
	}
}
