package copytrade

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jiaming2012/backoffice/src/models"
)

type settlementKey struct {
	masterID   uint
	followerID uint
}

// CalculateDailyCommission settles the profit share of one trading day. Closed copies
// are grouped per master and follower. A group is claimed as a whole before any money
// moves, so a concurrent run skips it.
func (s *Service) CalculateDailyCommission(ctx context.Context, tradingDay string) ([]SettlementResult, error) {
	ctx, span := otel.Tracer("copytrade").Start(ctx, "Service.CalculateDailyCommission")
	defer span.End()

	span.SetAttributes(attribute.String("trading_day", tradingDay))

	trades, err := s.db.ListUnsettledCopyTrades(ctx, tradingDay)
	if err != nil {
		return nil, fmt.Errorf("CalculateDailyCommission: failed to list copy trades: %w", err)
	}

	settings, err := s.db.GetCopySettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("CalculateDailyCommission: failed to get settings: %w", err)
	}

	groups := make(map[settlementKey][]*models.CopyTradeRecord)
	keys := make([]settlementKey, 0)
	for _, t := range trades {
		key := settlementKey{masterID: t.MasterID, followerID: t.FollowerID}
		if _, found := groups[key]; !found {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], t)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].masterID != keys[j].masterID {
			return keys[i].masterID < keys[j].masterID
		}
		return keys[i].followerID < keys[j].followerID
	})

	results := make([]SettlementResult, 0, len(keys))
	for _, key := range keys {
		result := s.settleGroup(ctx, tradingDay, groups[key], settings)
		s.count(ctx, s.settleCounter, result.Status)
		results = append(results, result)
	}

	log.WithContext(ctx).Infof("settled %d copy groups for %s", len(results), tradingDay)

	return results, nil
}

func (s *Service) settleGroup(ctx context.Context, tradingDay string, trades []*models.CopyTradeRecord, settings *models.CopySettings) SettlementResult {
	first := trades[0]
	result := SettlementResult{
		MasterID:       first.MasterID,
		FollowerID:     first.FollowerID,
		FollowerUserID: first.FollowerUserID,
		TradingDay:     tradingDay,
		TradeCount:     len(trades),
	}

	logger := log.WithContext(ctx).WithFields(log.Fields{
		"master_id":   first.MasterID,
		"follower_id": first.FollowerID,
		"trading_day": tradingDay,
	})

	ids := make([]uint, 0, len(trades))
	totalPnl := decimal.Zero
	for _, t := range trades {
		ids = append(ids, t.ID)
		totalPnl = totalPnl.Add(decimal.NewFromFloat(t.FollowerPnl))
	}

	result.DailyProfit = totalPnl

	if err := s.db.ClaimCopyTradesForSettlement(ctx, ids); err != nil {
		if errors.Is(err, models.ErrDuplicateRecord) {
			result.Status = ResultStatusSkipped
			result.Reason = "already being settled"
			return result
		}

		result.Status = ResultStatusFailed
		result.Reason = fmt.Sprintf("failed to claim trades: %v", err)
		logger.Error(result.Reason)
		return result
	}

	if !totalPnl.IsPositive() {
		result.Status = ResultStatusNoCommission
		result.Reason = "no profit for the day"
		logger.Infof("no commission, daily pnl %s", totalPnl)
		return result
	}

	master, err := s.db.GetMasterTrader(ctx, first.MasterID)
	if err != nil {
		result.Status = ResultStatusFailed
		result.Reason = fmt.Sprintf("master not found: %v", err)
		logger.Error(result.Reason)
		return result
	}

	if master.ApprovedCommissionPercentage <= 0 {
		result.Status = ResultStatusSkipped
		result.Reason = "master has no approved commission percentage"
		return result
	}

	adminPct := master.AdminShareOrDefault(settings.DefaultAdminSharePercentage)
	commission, adminShare, masterShare := models.SplitCommission(totalPnl, master.ApprovedCommissionPercentage, adminPct)

	result.Commission = commission
	result.AdminShare = adminShare
	result.MasterShare = masterShare

	now := s.now()
	record, err := s.db.SettleCopyCommission(ctx, &models.CopyCommissionRecord{
		MasterID:             first.MasterID,
		FollowerID:           first.FollowerID,
		FollowerUserID:       first.FollowerUserID,
		FollowerAccountID:    first.FollowerAccountID,
		TradingDay:           tradingDay,
		DailyProfit:          totalPnl,
		CommissionPercentage: master.ApprovedCommissionPercentage,
		AdminSharePercentage: adminPct,
		TotalCommission:      commission,
		AdminShare:           adminShare,
		MasterShare:          masterShare,
		Status:               models.CopyCommissionStatusDeducted,
		DeductedAt:           &now,
	})
	if err != nil {
		result.Status = ResultStatusFailed
		result.Reason = fmt.Sprintf("failed to settle: %v", err)
		logger.Error(result.Reason)
		return result
	}

	result.RecordID = record.ID

	if record.Status == models.CopyCommissionStatusFailed {
		result.Status = ResultStatusFailed
		result.Reason = record.DeductionError
		logger.Errorf("commission %s not deducted: %s", commission, record.DeductionError)
		return result
	}

	result.Status = ResultStatusDeducted
	logger.Infof("deducted commission %s (admin %s, master %s)", commission, adminShare, masterShare)
	return result
}

// ResetDailyStats zeroes follower daily profit and loss on the first call of a new UTC day.
func (s *Service) ResetDailyStats(ctx context.Context) (int64, error) {
	count, err := s.db.ResetFollowerDailyStats(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("ResetDailyStats: %w", err)
	}

	return count, nil
}
