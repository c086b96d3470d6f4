package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"reward-ledger-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OfferSyncClient mirrors the provider aggregator's offer catalog into the
// local offer_mirror table, so claim payouts use server-known reward
// amounts instead of anything the client sends.
type OfferSyncClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewOfferSyncClient(db *gorm.DB) *OfferSyncClient {
	baseURL := os.Getenv("OFFER_SYNC_URL")
	if baseURL == "" {
		log.Fatal("OFFER_SYNC_URL environment variable is required")
	}
	apiKey := os.Getenv("OFFER_SYNC_API_KEY")
	if apiKey == "" {
		log.Fatal("OFFER_SYNC_API_KEY environment variable is required for offer sync")
	}

	return &OfferSyncClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		DB:      db,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *OfferSyncClient) GetChangedOffers(ctx context.Context, since time.Time) ([]models.OfferMirror, error) {
	since = since.UTC()

	u, err := url.Parse(fmt.Sprintf("%s/api/v1/public/offers", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("since", since.Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Api-Key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call offer aggregator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("offer aggregator returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Offers []models.OfferMirror `json:"offers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode offer aggregator response: %w", err)
	}

	return response.Offers, nil
}

// PollOffers keeps the local catalog fresh.
func PollOffers(ctx context.Context, client *OfferSyncClient, pollInterval time.Duration) {
	log.Println("Starting offer catalog polling (DB-backed)...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Offer catalog polling stopped.")
			return
		case <-ticker.C:
			logTime := time.Now().UTC()

			offers, err := client.GetChangedOffers(ctx, lastSyncTime)
			if err != nil {
				log.Printf("❌ Error polling offers: %v", err)
				continue
			}

			count := len(offers)
			if count == 0 {
				continue
			}

			// The aggregator doesn't know our row ids.
			for i := range offers {
				if offers[i].ID == "" {
					offers[i].ID = uuid.NewString()
				}
			}

			if err := client.DB.Clauses(
				clause.OnConflict{
					Columns: []clause.Column{{Name: "external_key"}},
					DoUpdates: clause.AssignmentColumns([]string{
						"provider",
						"name",
						"url",
						"reward_points",
						"is_active",
						"created_at",
						"updated_at",
					}),
				},
			).Create(&offers).Error; err != nil {
				log.Printf("❌ Failed to upsert %d offer(s) into offer_mirror: %v", count, err)
				// Do NOT advance lastSyncTime on failure — retry same window next tick
				continue
			}

			lastSyncTime = logTime
			log.Printf("✅ Upserted %d offer(s) into offer_mirror table.", count)
		}
	}
}
