package data

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jiaming2012/backoffice/src/models"
)

func (s *DatabaseService) CreateMasterTrader(ctx context.Context, master *models.MasterTrader) error {
	return translate(s.conn(ctx).Create(master).Error, "master for account", master.TradingAccountID)
}

func (s *DatabaseService) GetMasterTrader(ctx context.Context, id uint) (*models.MasterTrader, error) {
	var master models.MasterTrader
	if err := s.conn(ctx).First(&master, id).Error; err != nil {
		return nil, translate(err, "master", id)
	}

	return &master, nil
}

func (s *DatabaseService) GetMasterTraderByAccount(ctx context.Context, accountID uint) (*models.MasterTrader, error) {
	var master models.MasterTrader
	if err := s.conn(ctx).Where("trading_account_id = ?", accountID).First(&master).Error; err != nil {
		return nil, translate(err, "master for account", accountID)
	}

	return &master, nil
}

func (s *DatabaseService) SetMasterTraderStatus(ctx context.Context, id uint, status models.MasterTraderStatus) error {
	res := s.conn(ctx).Model(&models.MasterTrader{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return translate(res.Error, "master", id)
	}

	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "master", id)
	}

	return nil
}

func (s *DatabaseService) AddMasterCopiedVolume(ctx context.Context, id uint, volume float64) error {
	res := s.conn(ctx).Model(&models.MasterTrader{}).Where("id = ?", id).Update("total_copied_volume", delta("total_copied_volume", volume))
	if res.Error != nil {
		return translate(res.Error, "master", id)
	}

	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "master", id)
	}

	return nil
}

func (s *DatabaseService) WithdrawMasterCommission(ctx context.Context, id uint, amount decimal.Decimal) (*models.MasterWithdrawal, error) {
	var out *models.MasterWithdrawal
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var master models.MasterTrader
		if err := tx.First(&master, id).Error; err != nil {
			return translate(err, "master", id)
		}

		if err := tx.First(&models.Account{}, master.TradingAccountID).Error; err != nil {
			return translate(err, "account", master.TradingAccountID)
		}

		res := tx.Model(&master).Clauses(clause.Returning{}).
			Where("id = ? AND pending_commission >= ?", id, amount).
			Updates(map[string]interface{}{
				"pending_commission":         gorm.Expr("pending_commission - ?", amount),
				"total_commission_withdrawn": delta("total_commission_withdrawn", amount),
			})
		if res.Error != nil {
			return translate(res.Error, "master", id)
		}

		if res.RowsAffected == 0 {
			return fmt.Errorf("DatabaseService: master %d pending commission: %w", id, models.ErrInsufficientFunds)
		}

		account, err := adjustBalance(tx, master.TradingAccountID, amount)
		if err != nil {
			return err
		}

		out = &models.MasterWithdrawal{
			Amount:               amount,
			NewPendingCommission: master.PendingCommission,
			NewAccountBalance:    account.Balance,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (s *DatabaseService) CreateCopyRelationship(ctx context.Context, relationship *models.CopyRelationship) error {
	return translate(s.conn(ctx).Create(relationship).Error, "copy relationship for master", relationship.MasterID)
}

func (s *DatabaseService) GetCopyRelationship(ctx context.Context, id uint) (*models.CopyRelationship, error) {
	var relationship models.CopyRelationship
	if err := s.conn(ctx).First(&relationship, id).Error; err != nil {
		return nil, translate(err, "copy relationship", id)
	}

	return &relationship, nil
}

func (s *DatabaseService) ListActiveFollowers(ctx context.Context, masterID uint) ([]*models.CopyRelationship, error) {
	followers := make([]*models.CopyRelationship, 0)
	err := s.conn(ctx).
		Where("master_id = ? AND status = ?", masterID, models.CopyRelationshipStatusActive).
		Order("id").
		Find(&followers).Error

	return followers, translate(err, "followers of master", masterID)
}

func (s *DatabaseService) TransitionCopyRelationship(ctx context.Context, id uint, from []models.CopyRelationshipStatus, to models.CopyRelationshipStatus, at time.Time) (*models.CopyRelationship, error) {
	updates := map[string]interface{}{"status": to}
	switch to {
	case models.CopyRelationshipStatusPaused:
		updates["paused_at"] = at
	case models.CopyRelationshipStatusActive:
		updates["paused_at"] = nil
	case models.CopyRelationshipStatusStopped:
		updates["stopped_at"] = at
	}

	var relationship models.CopyRelationship
	tx := s.conn(ctx)

	res := tx.Model(&relationship).Clauses(clause.Returning{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return nil, translate(res.Error, "copy relationship", id)
	}

	if res.RowsAffected == 0 {
		return nil, conditionFailed(tx, &models.CopyRelationship{}, "id", id, "copy relationship", models.ErrInvalidTransition)
	}

	return &relationship, nil
}

func (s *DatabaseService) ApplyFollowerStats(ctx context.Context, id uint, d models.FollowerStatsDelta) error {
	res := s.conn(ctx).Model(&models.CopyRelationship{}).Where("id = ?", id).Updates(map[string]interface{}{
		"total_copied_trades":   delta("total_copied_trades", d.TotalCopiedTrades),
		"active_copied_trades":  delta("active_copied_trades", d.ActiveCopiedTrades),
		"total_profit":          delta("total_profit", d.TotalProfit),
		"total_loss":            delta("total_loss", d.TotalLoss),
		"daily_profit":          delta("daily_profit", d.DailyProfit),
		"daily_loss":            delta("daily_loss", d.DailyLoss),
		"total_commission_paid": delta("total_commission_paid", d.TotalCommissionPaid),
	})
	if res.Error != nil {
		return translate(res.Error, "copy relationship", id)
	}

	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "copy relationship", id)
	}

	return nil
}

// ResetFollowerDailyStats zeroes daily profit and loss of every relationship not yet
// reset on the trading day of resetAt.
func (s *DatabaseService) ResetFollowerDailyStats(ctx context.Context, resetAt time.Time) (int64, error) {
	dayStart, err := time.Parse(models.TradingDayLayout, models.TradingDayOf(resetAt))
	if err != nil {
		return 0, fmt.Errorf("ResetFollowerDailyStats: %w", err)
	}
	dayEnd := dayStart.AddDate(0, 0, 1)

	res := s.conn(ctx).Model(&models.CopyRelationship{}).
		Where("last_daily_reset IS NULL OR last_daily_reset < ? OR last_daily_reset >= ?", dayStart, dayEnd).
		Updates(map[string]interface{}{
			"daily_profit":     0,
			"daily_loss":       0,
			"last_daily_reset": resetAt,
		})
	if res.Error != nil {
		return 0, translate(res.Error, "daily stats reset", models.TradingDayOf(resetAt))
	}

	return res.RowsAffected, nil
}

func (s *DatabaseService) CopyTradeExists(ctx context.Context, masterTradeID, masterID uint) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&models.CopyTradeRecord{}).
		Where("master_trade_id = ? AND master_id = ?", masterTradeID, masterID).
		Count(&count).Error

	return count > 0, translate(err, "copy trades of master trade", masterTradeID)
}

func (s *DatabaseService) GetCopyTradeRecord(ctx context.Context, masterTradeID, followerID uint) (*models.CopyTradeRecord, error) {
	var record models.CopyTradeRecord
	err := s.conn(ctx).
		Where("master_trade_id = ? AND follower_id = ?", masterTradeID, followerID).
		First(&record).Error
	if err != nil {
		return nil, translate(err, "copy trade for master trade", masterTradeID)
	}

	return &record, nil
}

func (s *DatabaseService) InsertCopyTradeRecord(ctx context.Context, record *models.CopyTradeRecord) error {
	return insertIgnore(s.conn(ctx), record, "copy trade", fmt.Sprintf("%d/%d", record.MasterTradeID, record.FollowerID))
}

func (s *DatabaseService) finishPendingCopyTrade(ctx context.Context, id uint, updates map[string]interface{}) error {
	tx := s.conn(ctx)

	res := tx.Model(&models.CopyTradeRecord{}).
		Where("id = ? AND status = ?", id, models.CopyTradeStatusPending).
		Updates(updates)
	if res.Error != nil {
		return translate(res.Error, "copy trade", id)
	}

	if res.RowsAffected == 0 {
		return conditionFailed(tx, &models.CopyTradeRecord{}, "id", id, "copy trade", models.ErrInvalidTransition)
	}

	return nil
}

func (s *DatabaseService) MarkCopyTradeOpen(ctx context.Context, id uint, followerTradeID uint, followerOpenPrice float64) error {
	return s.finishPendingCopyTrade(ctx, id, map[string]interface{}{
		"status":              models.CopyTradeStatusOpen,
		"follower_trade_id":   followerTradeID,
		"follower_open_price": followerOpenPrice,
	})
}

func (s *DatabaseService) MarkCopyTradeFailed(ctx context.Context, id uint, reason string) error {
	return s.finishPendingCopyTrade(ctx, id, map[string]interface{}{
		"status":         models.CopyTradeStatusFailed,
		"failure_reason": reason,
	})
}

func (s *DatabaseService) listCopyTrades(ctx context.Context, query string, args ...interface{}) ([]*models.CopyTradeRecord, error) {
	records := make([]*models.CopyTradeRecord, 0)
	err := s.conn(ctx).Where(query, args...).Order("id").Find(&records).Error

	return records, translate(err, "copy trades", query)
}

func (s *DatabaseService) ListOpenCopyTrades(ctx context.Context, masterTradeID uint) ([]*models.CopyTradeRecord, error) {
	return s.listCopyTrades(ctx, "master_trade_id = ? AND status = ?", masterTradeID, models.CopyTradeStatusOpen)
}

func (s *DatabaseService) ListOpenCopyTradesByMaster(ctx context.Context, masterID uint) ([]*models.CopyTradeRecord, error) {
	return s.listCopyTrades(ctx, "master_id = ? AND status = ?", masterID, models.CopyTradeStatusOpen)
}

func (s *DatabaseService) ListClosedCopyTradesByMaster(ctx context.Context, masterID uint) ([]*models.CopyTradeRecord, error) {
	return s.listCopyTrades(ctx, "master_id = ? AND status = ?", masterID, models.CopyTradeStatusClosed)
}

func (s *DatabaseService) ListUnsettledCopyTrades(ctx context.Context, tradingDay string) ([]*models.CopyTradeRecord, error) {
	return s.listCopyTrades(ctx, "status = ? AND commission_applied = ? AND trading_day = ?", models.CopyTradeStatusClosed, false, tradingDay)
}

func (s *DatabaseService) CloseCopyTrade(ctx context.Context, id uint, close models.CopyTradeClose) error {
	tx := s.conn(ctx)

	res := tx.Model(&models.CopyTradeRecord{}).
		Where("id = ? AND status = ?", id, models.CopyTradeStatusOpen).
		Updates(map[string]interface{}{
			"status":               models.CopyTradeStatusClosed,
			"master_close_price":   close.MasterClosePrice,
			"follower_close_price": close.FollowerClosePrice,
			"follower_pnl":         close.FollowerPnl,
			"closed_at":            close.ClosedAt,
			"trading_day":          models.TradingDayOf(close.ClosedAt),
		})
	if res.Error != nil {
		return translate(res.Error, "copy trade", id)
	}

	if res.RowsAffected == 0 {
		return conditionFailed(tx, &models.CopyTradeRecord{}, "id", id, "copy trade", models.ErrCopyTradeNotOpen)
	}

	return nil
}

func (s *DatabaseService) ClaimCopyTradesForSettlement(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}

	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CopyTradeRecord{}).
			Where("id IN ? AND status = ? AND commission_applied = ?", ids, models.CopyTradeStatusClosed, false).
			Update("commission_applied", true)
		if res.Error != nil {
			return translate(res.Error, "copy trades", ids)
		}

		if res.RowsAffected != int64(len(ids)) {
			return fmt.Errorf("DatabaseService: copy trades %v already claimed: %w", ids, models.ErrDuplicateRecord)
		}

		return nil
	})
}

func settings(tx *gorm.DB) (*models.CopySettings, error) {
	var out models.CopySettings
	err := tx.Order("id").
		Attrs(models.CopySettings{DefaultAdminSharePercentage: 30}).
		FirstOrCreate(&out).Error
	if err != nil {
		return nil, translate(err, "copy settings", "singleton")
	}

	return &out, nil
}

func (s *DatabaseService) GetCopySettings(ctx context.Context) (*models.CopySettings, error) {
	return settings(s.conn(ctx))
}

func (s *DatabaseService) SaveCopySettings(ctx context.Context, in *models.CopySettings) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := settings(tx)
		if err != nil {
			return err
		}

		err = tx.Model(current).Updates(map[string]interface{}{
			"admin_copy_pool":                in.AdminCopyPool,
			"min_payout_amount":              in.MinPayoutAmount,
			"default_admin_share_percentage": in.DefaultAdminSharePercentage,
		}).Error
		if err != nil {
			return translate(err, "copy settings", current.ID)
		}

		in.ID = current.ID
		return nil
	})
}

func (s *DatabaseService) SettleCopyCommission(ctx context.Context, record *models.CopyCommissionRecord) (*models.CopyCommissionRecord, error) {
	out := *record
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Account{}, record.FollowerAccountID).Error; err != nil {
			return translate(err, "account", record.FollowerAccountID)
		}

		if err := tx.First(&models.MasterTrader{}, record.MasterID).Error; err != nil {
			return translate(err, "master", record.MasterID)
		}

		if err := tx.First(&models.CopyRelationship{}, record.FollowerID).Error; err != nil {
			return translate(err, "copy relationship", record.FollowerID)
		}

		current, err := settings(tx)
		if err != nil {
			return err
		}

		res := tx.Model(&models.Account{}).
			Where("id = ? AND balance >= ?", record.FollowerAccountID, record.TotalCommission).
			Update("balance", gorm.Expr("balance - ?", record.TotalCommission))
		if res.Error != nil {
			return translate(res.Error, "account", record.FollowerAccountID)
		}

		if res.RowsAffected == 0 {
			out.Status = models.CopyCommissionStatusFailed
			out.DeductionError = "Insufficient balance"
			out.DeductedAt = nil
			return translate(tx.Create(&out).Error, "copy commission", record.TradingDay)
		}

		err = tx.Model(&models.MasterTrader{}).Where("id = ?", record.MasterID).Updates(map[string]interface{}{
			"pending_commission":      delta("pending_commission", record.MasterShare),
			"total_commission_earned": delta("total_commission_earned", record.MasterShare),
		}).Error
		if err != nil {
			return translate(err, "master", record.MasterID)
		}

		err = tx.Model(current).Update("admin_copy_pool", delta("admin_copy_pool", record.AdminShare)).Error
		if err != nil {
			return translate(err, "copy settings", current.ID)
		}

		err = tx.Model(&models.CopyRelationship{}).Where("id = ?", record.FollowerID).
			Update("total_commission_paid", delta("total_commission_paid", record.TotalCommission)).Error
		if err != nil {
			return translate(err, "copy relationship", record.FollowerID)
		}

		out.Status = models.CopyCommissionStatusDeducted
		return translate(tx.Create(&out).Error, "copy commission", record.TradingDay)
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (s *DatabaseService) ListCopyCommissionRecords(ctx context.Context, tradingDay string) ([]*models.CopyCommissionRecord, error) {
	records := make([]*models.CopyCommissionRecord, 0)
	err := s.conn(ctx).Where("trading_day = ?", tradingDay).Order("id").Find(&records).Error

	return records, translate(err, "copy commissions of day", tradingDay)
}
