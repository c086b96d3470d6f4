// workers/user_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"reward-ledger-system/models"
	"reward-ledger-system/services"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RemoteAccount matches the JSON response from the auth service's account
// sync endpoint. The auth subsystem owns identity; this worker only mirrors
// what the ledger needs and creates the local User row at first sign-in.
type RemoteAccount struct {
	ExternalID   string    `json:"external_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	ReferredByID *string   `json:"referred_by_id,omitempty"`
	ReferralCode string    `json:"referral_code"`
	CodeUsed     string    `json:"referral_code_used,omitempty"`
	IsBanned     bool      `json:"is_banned"`
	IsDisabled   bool      `json:"is_disabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GetAccountChangesResponse is the top-level structure of the sync response.
type GetAccountChangesResponse struct {
	Accounts []RemoteAccount `json:"accounts"`
}

type UserSyncWorker struct {
	db           *gorm.DB
	referrals    *services.ReferralService
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/public/accounts"
	serviceToken string
	httpClient   *http.Client
}

func NewUserSyncWorker(db *gorm.DB, referrals *services.ReferralService, authServiceBaseURL, endpointPath, serviceToken string) *UserSyncWorker {
	return &UserSyncWorker{
		db:           db,
		referrals:    referrals,
		interval:     1 * time.Minute,
		baseURL:      authServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *UserSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting User Sync Worker (auth-service → users)…")
	go w.run(ctx)
}

func (w *UserSyncWorker) run(ctx context.Context) {
	// Initial sync (backfill if needed) — from the beginning of time.
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial user sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lastSyncTime := w.getLastSyncTime()
			if err := w.syncBatch(ctx, lastSyncTime); err != nil {
				log.Printf("❌ User sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ User Sync Worker stopped")
			return
		}
	}
}

// getLastSyncTime finds the most recent UpdatedAt in our local users table.
func (w *UserSyncWorker) getLastSyncTime() time.Time {
	var lastTime time.Time
	err := w.db.Raw("SELECT MAX(updated_at) FROM users WHERE deleted_at IS NULL").Scan(&lastTime).Error
	if err != nil || lastTime.IsZero() {
		return time.Unix(0, 0)
	}
	return lastTime
}

// syncBatch fetches account changes from the auth service and applies them
// locally. Balance and quota fields are never written here — those belong
// to the ledger — only identity, moderation flags, and the one-time
// referral binding on first sight of a new account.
func (w *UserSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	sinceStr := since.UTC().Format(time.RFC3339)

	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid auth service URL '%s': %w", w.baseURL, err)
	}

	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", sinceStr)
	endpointURL.RawQuery = q.Encode()
	finalURL := endpointURL.String()

	req, err := http.NewRequestWithContext(ctx, "GET", finalURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request to auth service failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("auth service non-200 response: %d — %s", resp.StatusCode, string(body))
	}

	var response GetAccountChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode auth service response: %w", err)
	}

	if len(response.Accounts) == 0 {
		return nil
	}

	log.Printf("[SYNC] 📥 Processing %d account(s) from auth service…", len(response.Accounts))

	var created, updated, errorCount int
	for _, remote := range response.Accounts {
		var local models.User
		err := w.db.Where("external_user_id = ?", remote.ExternalID).First(&local).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// First sign-in: create the account with zero balances.
			local = models.User{
				ID:             uuid.NewString(),
				ExternalUserID: remote.ExternalID,
				Username:       remote.Username,
				Email:          remote.Email,
				ReferralCode:   remote.ReferralCode,
				IsBanned:       remote.IsBanned,
				IsDisabled:     remote.IsDisabled,
			}
			if err := w.db.Create(&local).Error; err != nil {
				errorCount++
				log.Printf("[SYNC] ⚠️ Failed to create user %q: %v", remote.ExternalID, err)
				continue
			}
			created++

			// Referral binding happens exactly once, at first sight.
			if remote.ReferredByID != nil && *remote.ReferredByID != "" {
				if err := w.referrals.BindReferral(remote.ExternalID, *remote.ReferredByID, remote.CodeUsed); err != nil {
					log.Printf("[SYNC] ⚠️ Referral binding failed for %q: %v", remote.ExternalID, err)
				}
			}

		case err != nil:
			errorCount++
			log.Printf("[SYNC] ⚠️ Lookup failed for %q: %v", remote.ExternalID, err)

		default:
			// Existing account: refresh identity and moderation columns
			// only. Never the balance, quota, or referral-bonus fields.
			if err := w.db.Model(&local).Updates(map[string]interface{}{
				"username":    remote.Username,
				"email":       remote.Email,
				"is_banned":   remote.IsBanned,
				"is_disabled": remote.IsDisabled,
			}).Error; err != nil {
				errorCount++
				log.Printf("[SYNC] ⚠️ Failed to update user %q: %v", remote.ExternalID, err)
				continue
			}
			updated++
		}
	}

	log.Printf("[SYNC] ✅ Synced %d account(s) (%d created, %d updated, %d errors)",
		len(response.Accounts), created, updated, errorCount)
	return nil
}
