// services/withdrawals.go
package services

import (
	"errors"
	"log"
	"time"

	"reward-ledger-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WithdrawalService runs the pending → approved | rejected lifecycle.
// Points are escrowed (debited) the moment the request is created; approval
// makes the debit permanent, rejection refunds it. The refund restores
// previously-escrowed points, so it deliberately bypasses the crediting
// service: TotalEarned must not move and the referral trigger must not fire.
type WithdrawalService struct {
	DB       *gorm.DB
	Settings *SettingsService
}

func NewWithdrawalService(db *gorm.DB, settings *SettingsService) *WithdrawalService {
	return &WithdrawalService{DB: db, Settings: settings}
}

// CreateRequest validates the amount against the configured minimum,
// escrows amount × conversion-rate points and inserts a pending request.
// The escrow debit is conditional on the balance covering it, so a racing
// second request cannot drive the balance negative.
func (s *WithdrawalService) CreateRequest(externalUserID string, amount int64, upi string) (*models.WithdrawalRequest, error) {
	cfg := s.Settings.Get()
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if amount < cfg.MinWithdrawAmount {
		return nil, ErrBelowMinimum
	}
	escrow := amount * cfg.PointsPerCurrencyUnit

	var req models.WithdrawalRequest
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("external_user_id = ? AND points >= ?", externalUserID, escrow).
			Update("points", gorm.Expr("points - ?", escrow))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.User{}).
				Where("external_user_id = ?", externalUserID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrUserNotFound
			}
			return ErrInsufficientPoints
		}

		req = models.WithdrawalRequest{
			ID:     uuid.NewString(),
			UserID: externalUserID,
			Amount: amount,
			Points: escrow,
			UPI:    upi,
			Status: models.WithdrawalStatusPending,
		}
		return tx.Create(&req).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("💸 Withdrawal requested: user=%s amount=%d (escrowed %d pts)", externalUserID, amount, escrow)
	return &req, nil
}

// Decide settles a pending request. Approve adds the escrowed points to
// TotalWithdrawn (the balance was already debited at creation); reject
// credits them back and appends a withdrawal_refund ledger entry for audit
// — a bookkeeping type that never moves TotalEarned.
//
// The pending → terminal transition is a compare-and-swap on status, so a
// request can only ever be settled once.
func (s *WithdrawalService) Decide(requestID string, approve bool) (*models.WithdrawalRequest, error) {
	var req models.WithdrawalRequest
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", requestID).First(&req).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return gorm.ErrRecordNotFound
			}
			return err
		}

		newStatus := models.WithdrawalStatusRejected
		if approve {
			newStatus = models.WithdrawalStatusApproved
		}

		now := time.Now()
		res := tx.Model(&models.WithdrawalRequest{}).
			Where("id = ? AND status = ?", requestID, models.WithdrawalStatusPending).
			Updates(map[string]interface{}{
				"status":       newStatus,
				"processed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyProcessed
		}
		req.Status = newStatus
		req.ProcessedAt = &now

		if approve {
			return tx.Model(&models.User{}).
				Where("external_user_id = ?", req.UserID).
				Update("total_withdrawn", gorm.Expr("total_withdrawn + ?", req.Points)).Error
		}

		// Reject: refund the escrow straight onto the spendable balance.
		if err := tx.Model(&models.User{}).
			Where("external_user_id = ?", req.UserID).
			Update("points", gorm.Expr("points + ?", req.Points)).Error; err != nil {
			return err
		}
		entry := models.Transaction{
			ID:          uuid.NewString(),
			UserID:      req.UserID,
			Type:        models.TransactionTypeWithdrawalRefund,
			Points:      req.Points,
			Description: "Withdrawal rejected — escrowed points refunded",
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🏦 Withdrawal %s → %s (user=%s, %d pts)", requestID, req.Status, req.UserID, req.Points)
	return &req, nil
}

// GetUserRequests lists a user's withdrawal requests, newest first.
func (s *WithdrawalService) GetUserRequests(externalUserID string) ([]models.WithdrawalRequest, error) {
	var reqs []models.WithdrawalRequest
	err := s.DB.Where("user_id = ?", externalUserID).
		Order("created_at DESC").
		Find(&reqs).Error
	return reqs, err
}

// GetByStatus lists requests in one state for the admin queue.
func (s *WithdrawalService) GetByStatus(status models.WithdrawalStatus, limit int) ([]models.WithdrawalRequest, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var reqs []models.WithdrawalRequest
	err := s.DB.Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&reqs).Error
	return reqs, err
}
