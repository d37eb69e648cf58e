package data

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jiaming2012/backoffice/src/models"
)

func (s *DatabaseService) CreateIBUser(ctx context.Context, user *models.IBUser) error {
	return translate(s.conn(ctx).Create(user).Error, "ib user", user.UserID)
}

func (s *DatabaseService) GetIBUser(ctx context.Context, userID uint) (*models.IBUser, error) {
	var user models.IBUser
	if err := s.conn(ctx).Where("user_id = ?", userID).First(&user).Error; err != nil {
		return nil, translate(err, "ib user", userID)
	}

	return &user, nil
}

func (s *DatabaseService) GetIBUserByReferralCode(ctx context.Context, code string) (*models.IBUser, error) {
	var user models.IBUser
	if err := s.conn(ctx).Where("referral_code = ?", code).First(&user).Error; err != nil {
		return nil, translate(err, "referral code", code)
	}

	return &user, nil
}

// SaveIBUser writes every profile column except the main wallet balance, which only
// moves through WithdrawIBWallet.
func (s *DatabaseService) SaveIBUser(ctx context.Context, user *models.IBUser) error {
	res := s.conn(ctx).Model(&models.IBUser{}).Where("user_id = ?", user.UserID).Updates(map[string]interface{}{
		"first_name":    user.FirstName,
		"email":         user.Email,
		"is_ib":         user.IsIB,
		"ib_status":     user.IBStatus,
		"referral_code": user.ReferralCode,
		"referred_by":   user.ReferredBy,
		"parent_ib_id":  user.ParentIBID,
		"ib_level":      user.IBLevel,
		"ib_plan_id":    user.IBPlanID,
	})
	if res.Error != nil {
		return translate(res.Error, "ib user", user.UserID)
	}

	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "ib user", user.UserID)
	}

	return nil
}

func (s *DatabaseService) TransitionIBStatus(ctx context.Context, userID uint, from []models.IBStatus, to models.IBStatus, planID *uint) (*models.IBUser, error) {
	updates := map[string]interface{}{"ib_status": to}
	if to == models.IBStatusActive {
		updates["is_ib"] = true
	}

	if planID != nil {
		updates["ib_plan_id"] = *planID
	}

	var user models.IBUser
	tx := s.conn(ctx)

	res := tx.Model(&user).Clauses(clause.Returning{}).
		Where("user_id = ? AND ib_status IN ?", userID, from).
		Updates(updates)
	if res.Error != nil {
		return nil, translate(res.Error, "ib user", userID)
	}

	if res.RowsAffected == 0 {
		return nil, conditionFailed(tx, &models.IBUser{}, "user_id", userID, "ib user", models.ErrInvalidTransition)
	}

	return &user, nil
}

func (s *DatabaseService) ListDirectReferrals(ctx context.Context, parentUserID uint) ([]*models.IBUser, error) {
	users := make([]*models.IBUser, 0)
	err := s.conn(ctx).Where("parent_ib_id = ?", parentUserID).Order("id").Find(&users).Error

	return users, translate(err, "referrals of ib", parentUserID)
}

func (s *DatabaseService) CreateCommissionPlan(ctx context.Context, plan *models.CommissionPlan) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if plan.IsDefault {
			err := tx.Model(&models.CommissionPlan{}).Where("is_default = ?", true).Update("is_default", false).Error
			if err != nil {
				return translate(err, "commission plan", "default")
			}
		}

		if err := tx.Create(plan).Error; err != nil {
			return translate(err, "commission plan", plan.Name)
		}

		// zero values are skipped on insert, so the column defaults would win
		return translate(tx.Model(plan).Updates(map[string]interface{}{
			"is_active":  plan.IsActive,
			"max_levels": plan.MaxLevels,
		}).Error, "commission plan", plan.ID)
	})
}

func (s *DatabaseService) GetCommissionPlan(ctx context.Context, id uint) (*models.CommissionPlan, error) {
	var plan models.CommissionPlan
	if err := s.conn(ctx).First(&plan, id).Error; err != nil {
		return nil, translate(err, "commission plan", id)
	}

	return &plan, nil
}

func (s *DatabaseService) GetDefaultCommissionPlan(ctx context.Context) (*models.CommissionPlan, error) {
	var plan models.CommissionPlan
	err := s.conn(ctx).Where("is_default = ? AND is_active = ?", true, true).Order("id").First(&plan).Error
	if err != nil {
		return nil, translate(err, "commission plan", "default")
	}

	return &plan, nil
}

func (s *DatabaseService) CommissionRecordExists(ctx context.Context, tradeID, ibUserID uint, level int) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&models.CommissionRecord{}).
		Where("trade_id = ? AND ib_user_id = ? AND level = ?", tradeID, ibUserID, level).
		Count(&count).Error

	return count > 0, translate(err, "commission for trade", tradeID)
}

// moveWallet applies balance and earned deltas to the IB wallet, creating it on first use.
func moveWallet(tx *gorm.DB, ibUserID uint, balance, earned decimal.Decimal) error {
	wallet := models.IBWallet{IBUserID: ibUserID, Balance: balance, TotalEarned: earned}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ib_user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance":      gorm.Expr("ib_wallets.balance + ?", balance),
			"total_earned": gorm.Expr("ib_wallets.total_earned + ?", earned),
		}),
	}).Create(&wallet).Error

	return translate(err, "ib wallet", ibUserID)
}

func (s *DatabaseService) CreditCommission(ctx context.Context, record *models.CommissionRecord) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		key := fmt.Sprintf("%d/%d/%d", record.TradeID, record.IBUserID, record.Level)
		if err := insertIgnore(tx, record, "commission", key); err != nil {
			return err
		}

		return moveWallet(tx, record.IBUserID, record.CommissionAmount, record.CommissionAmount)
	})
}

func (s *DatabaseService) GetCommissionRecord(ctx context.Context, id uint) (*models.CommissionRecord, error) {
	var record models.CommissionRecord
	if err := s.conn(ctx).First(&record, id).Error; err != nil {
		return nil, translate(err, "commission", id)
	}

	return &record, nil
}

func (s *DatabaseService) ReverseCommission(ctx context.Context, id uint, reversal models.CommissionReversal) (*models.CommissionRecord, error) {
	var record models.CommissionRecord
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&record).Clauses(clause.Returning{}).
			Where("id = ? AND status = ?", id, models.CommissionStatusCredited).
			Updates(map[string]interface{}{
				"status":          models.CommissionStatusReversed,
				"reversed_at":     reversal.ReversedAt,
				"reversed_by":     reversal.ReversedBy,
				"reversal_reason": reversal.Reason,
			})
		if res.Error != nil {
			return translate(res.Error, "commission", id)
		}

		if res.RowsAffected == 0 {
			return conditionFailed(tx, &models.CommissionRecord{}, "id", id, "commission", models.ErrCommissionAlreadyReversed)
		}

		return moveWallet(tx, record.IBUserID, record.CommissionAmount.Neg(), decimal.Zero)
	})
	if err != nil {
		return nil, err
	}

	return &record, nil
}

func (s *DatabaseService) ListCommissionRecordsByIB(ctx context.Context, ibUserID uint) ([]*models.CommissionRecord, error) {
	records := make([]*models.CommissionRecord, 0)
	err := s.conn(ctx).Where("ib_user_id = ?", ibUserID).Order("id").Find(&records).Error

	return records, translate(err, "commissions of ib", ibUserID)
}

func (s *DatabaseService) GetIBWallet(ctx context.Context, ibUserID uint) (*models.IBWallet, error) {
	var wallet models.IBWallet
	if err := s.conn(ctx).Where("ib_user_id = ?", ibUserID).First(&wallet).Error; err != nil {
		return nil, translate(err, "ib wallet", ibUserID)
	}

	return &wallet, nil
}

func (s *DatabaseService) WithdrawIBWallet(ctx context.Context, ibUserID uint, amount decimal.Decimal) (*models.IBWithdrawal, error) {
	var out *models.IBWithdrawal
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ib_user_id = ?", ibUserID).First(&models.IBWallet{}).Error; err != nil {
			return translate(err, "ib wallet", ibUserID)
		}

		if err := tx.Where("user_id = ?", ibUserID).First(&models.IBUser{}).Error; err != nil {
			return translate(err, "ib user", ibUserID)
		}

		var wallet models.IBWallet
		res := tx.Model(&wallet).Clauses(clause.Returning{}).
			Where("ib_user_id = ? AND balance >= ?", ibUserID, amount).
			Updates(map[string]interface{}{
				"balance":         gorm.Expr("balance - ?", amount),
				"total_withdrawn": delta("total_withdrawn", amount),
			})
		if res.Error != nil {
			return translate(res.Error, "ib wallet", ibUserID)
		}

		if res.RowsAffected == 0 {
			return fmt.Errorf("DatabaseService: ib wallet %d: %w", ibUserID, models.ErrInsufficientFunds)
		}

		var user models.IBUser
		err := tx.Model(&user).Clauses(clause.Returning{}).
			Where("user_id = ?", ibUserID).
			Update("wallet_balance", delta("wallet_balance", amount)).Error
		if err != nil {
			return translate(err, "ib user", ibUserID)
		}

		out = &models.IBWithdrawal{
			Amount:               amount,
			NewIBWalletBalance:   wallet.Balance,
			NewMainWalletBalance: user.WalletBalance,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
