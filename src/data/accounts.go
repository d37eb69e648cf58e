package data

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jiaming2012/backoffice/src/models"
)

func (s *DatabaseService) CreateAccount(ctx context.Context, account *models.Account) error {
	return translate(s.conn(ctx).Create(account).Error, "account", account.UserID)
}

func (s *DatabaseService) GetAccount(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	if err := s.conn(ctx).First(&account, id).Error; err != nil {
		return nil, translate(err, "account", id)
	}

	return &account, nil
}

func adjustBalance(tx *gorm.DB, id uint, amount decimal.Decimal) (*models.Account, error) {
	var account models.Account
	res := tx.Model(&account).Clauses(clause.Returning{}).Where("id = ?", id).Update("balance", delta("balance", amount))
	if res.Error != nil {
		return nil, translate(res.Error, "account", id)
	}

	if res.RowsAffected == 0 {
		return nil, translate(gorm.ErrRecordNotFound, "account", id)
	}

	return &account, nil
}

func (s *DatabaseService) AdjustAccountBalance(ctx context.Context, id uint, amount decimal.Decimal) (*models.Account, error) {
	return adjustBalance(s.conn(ctx), id, amount)
}

func (s *DatabaseService) CreateTrade(ctx context.Context, trade *models.Trade) error {
	return translate(s.conn(ctx).Create(trade).Error, "trade for account", trade.AccountID)
}

func (s *DatabaseService) GetTrade(ctx context.Context, id uint) (*models.Trade, error) {
	var trade models.Trade
	if err := s.conn(ctx).First(&trade, id).Error; err != nil {
		return nil, translate(err, "trade", id)
	}

	return &trade, nil
}

func (s *DatabaseService) ListOpenTrades(ctx context.Context, accountID uint, kind models.AccountKind) ([]*models.Trade, error) {
	trades := make([]*models.Trade, 0)
	err := s.conn(ctx).
		Where("account_id = ? AND account_kind = ? AND status = ?", accountID, kind, models.TradeStatusOpen).
		Order("id").
		Find(&trades).Error

	return trades, translate(err, "open trades of account", accountID)
}

func (s *DatabaseService) ListOpenTradesByKind(ctx context.Context, kind models.AccountKind) ([]*models.Trade, error) {
	trades := make([]*models.Trade, 0)
	err := s.conn(ctx).
		Where("account_kind = ? AND status = ?", kind, models.TradeStatusOpen).
		Order("id").
		Find(&trades).Error

	return trades, translate(err, "open trades of kind", kind)
}

func (s *DatabaseService) CloseTrade(ctx context.Context, id uint, close models.TradeClose) (*models.Trade, error) {
	var trade models.Trade
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&trade).Clauses(clause.Returning{}).
			Where("id = ? AND status = ?", id, models.TradeStatusOpen).
			Updates(map[string]interface{}{
				"status":       models.TradeStatusClosed,
				"close_price":  close.ClosePrice,
				"realized_pnl": close.RealizedPnl,
				"closed_by":    close.ClosedBy,
				"closed_at":    close.ClosedAt,
			})
		if res.Error != nil {
			return translate(res.Error, "trade", id)
		}

		if res.RowsAffected == 0 {
			return conditionFailed(tx, &models.Trade{}, "id", id, "trade", models.ErrTradeNotOpen)
		}

		if trade.AccountKind != models.AccountKindTrading {
			return nil
		}

		_, err := adjustBalance(tx, trade.AccountID, decimal.NewFromFloat(close.RealizedPnl))
		return err
	})
	if err != nil {
		return nil, err
	}

	return &trade, nil
}

func (s *DatabaseService) UpdateTradeStops(ctx context.Context, id uint, stopLoss, takeProfit *float64) (*models.Trade, error) {
	var trade models.Trade
	tx := s.conn(ctx)

	res := tx.Model(&trade).Clauses(clause.Returning{}).
		Where("id = ? AND status = ?", id, models.TradeStatusOpen).
		Updates(map[string]interface{}{
			"stop_loss":   stopLoss,
			"take_profit": takeProfit,
		})
	if res.Error != nil {
		return nil, translate(res.Error, "trade", id)
	}

	if res.RowsAffected == 0 {
		return nil, conditionFailed(tx, &models.Trade{}, "id", id, "trade", models.ErrTradeNotOpen)
	}

	return &trade, nil
}
