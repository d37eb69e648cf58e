package copytrade

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jiaming2012/backoffice/src/models"
)

// CopyTradeToFollowers opens a copy of a master trade on every active follower.
// A master trade that already has copy records is treated as processed. Each
// follower is independent: a failure is reported in its result and never aborts
// the batch.
func (s *Service) CopyTradeToFollowers(ctx context.Context, masterTrade *models.Trade, masterID uint) ([]FollowerCopyResult, error) {
	ctx, span := otel.Tracer("copytrade").Start(ctx, "Service.CopyTradeToFollowers")
	defer span.End()

	span.SetAttributes(attribute.Int("master_trade_id", int(masterTrade.ID)), attribute.Int("master_id", int(masterID)))

	logger := log.WithContext(ctx).WithFields(log.Fields{
		"master_id":       masterID,
		"master_trade_id": masterTrade.ID,
	})

	master, err := s.db.GetMasterTrader(ctx, masterID)
	if err != nil {
		return nil, fmt.Errorf("CopyTradeToFollowers: failed to get master: %w", err)
	}

	if !master.IsActive() {
		return nil, fmt.Errorf("CopyTradeToFollowers: master %d is %s: %w", masterID, master.Status, models.ErrMasterNotActive)
	}

	if masterTrade.IsCopy() {
		logger.Debug("trade is itself a copy, not replicating")
		return []FollowerCopyResult{}, nil
	}

	exists, err := s.db.CopyTradeExists(ctx, masterTrade.ID, masterID)
	if err != nil {
		return nil, fmt.Errorf("CopyTradeToFollowers: failed to check existing copies: %w", err)
	}

	if exists {
		logger.Info("master trade already copied")
		return []FollowerCopyResult{}, nil
	}

	followers, err := s.db.ListActiveFollowers(ctx, masterID)
	if err != nil {
		return nil, fmt.Errorf("CopyTradeToFollowers: failed to list followers: %w", err)
	}

	results := make([]FollowerCopyResult, 0, len(followers))
	for _, follower := range followers {
		result := s.copyToFollower(ctx, masterTrade, master, follower)
		s.count(ctx, s.copyCounter, result.Status)

		if result.Status == ResultStatusFailed {
			logger.WithField("follower_id", follower.ID).Warnf("copy failed: %s", result.Reason)
		}

		results = append(results, result)
	}

	logger.Infof("copied master trade to %d followers", len(results))

	return results, nil
}

func (s *Service) copyToFollower(ctx context.Context, masterTrade *models.Trade, master *models.MasterTrader, follower *models.CopyRelationship) FollowerCopyResult {
	result := FollowerCopyResult{
		FollowerID:     follower.ID,
		FollowerUserID: follower.FollowerUserID,
	}

	if follower.FollowerAccountID == masterTrade.AccountID {
		result.Status = ResultStatusSkipped
		result.Reason = "follower account is the master account"
		return result
	}

	if _, err := s.db.GetCopyTradeRecord(ctx, masterTrade.ID, follower.ID); err == nil {
		result.Status = ResultStatusSkipped
		result.Reason = "already copied"
		return result
	} else if !errors.Is(err, models.ErrNotFound) {
		result.Status = ResultStatusFailed
		result.Reason = fmt.Sprintf("failed to check copy record: %v", err)
		return result
	}

	lotSize := follower.FollowerLotSize(masterTrade.Quantity)
	result.LotSize = lotSize

	now := s.now()
	record := &models.CopyTradeRecord{
		MasterTradeID:     masterTrade.ID,
		MasterID:          master.ID,
		FollowerID:        follower.ID,
		FollowerUserID:    follower.FollowerUserID,
		FollowerAccountID: follower.FollowerAccountID,
		Symbol:            masterTrade.Symbol,
		Side:              masterTrade.Side,
		MasterLotSize:     masterTrade.Quantity,
		FollowerLotSize:   lotSize,
		CopyMode:          follower.CopyMode,
		CopyValue:         follower.CopyValue,
		MasterOpenPrice:   masterTrade.OpenPrice,
		Status:            models.CopyTradeStatusPending,
		TradingDay:        models.TradingDayOf(now),
	}

	// The unique (master trade, follower) key decides a concurrent race.
	if err := s.db.InsertCopyTradeRecord(ctx, record); err != nil {
		if errors.Is(err, models.ErrDuplicateRecord) {
			result.Status = ResultStatusSkipped
			result.Reason = "already copied"
			return result
		}

		result.Status = ResultStatusFailed
		result.Reason = fmt.Sprintf("failed to claim copy: %v", err)
		return result
	}

	result.CopyTradeID = record.ID

	fail := func(reason string) FollowerCopyResult {
		if err := s.db.MarkCopyTradeFailed(ctx, record.ID, reason); err != nil {
			log.WithContext(ctx).Errorf("copyToFollower: failed to mark copy %d failed: %v", record.ID, err)
		}

		result.Status = ResultStatusFailed
		result.Reason = reason
		return result
	}

	if follower.DailyLossLimitReached() {
		return fail("daily loss limit reached")
	}

	if lotSize <= 0 {
		return fail("lot size rounds to zero")
	}

	account, err := s.db.GetAccount(ctx, follower.FollowerAccountID)
	if err != nil {
		return fail(fmt.Sprintf("follower account not found: %v", err))
	}

	if !account.IsActive() {
		return fail("follower account is not active")
	}

	contractSize := s.engine.GetContractSize(masterTrade.Symbol)
	marginRequired := s.engine.CalculateMargin(lotSize, masterTrade.OpenPrice, account.Leverage, contractSize)

	openTrades, err := s.db.ListOpenTrades(ctx, account.ID, models.AccountKindTrading)
	if err != nil {
		return fail(fmt.Sprintf("failed to list follower open trades: %v", err))
	}

	freeMargin, _ := account.FreeMargin(openTrades).Float64()
	if marginRequired > freeMargin {
		return fail(fmt.Sprintf("Insufficient margin. Required: %.2f, Available: %.2f", marginRequired, freeMargin))
	}

	masterTradeID := masterTrade.ID
	followerTrade, err := s.engine.OpenTrade(ctx, models.OpenTradeRequest{
		UserID:            follower.FollowerUserID,
		AccountID:         account.ID,
		AccountKind:       models.AccountKindTrading,
		Symbol:            masterTrade.Symbol,
		Segment:           masterTrade.Segment,
		Side:              masterTrade.Side,
		OrderType:         masterTrade.OrderType,
		Quantity:          lotSize,
		Bid:               masterTrade.OpenPrice,
		Ask:               masterTrade.OpenPrice,
		StopLoss:          masterTrade.StopLoss,
		TakeProfit:        masterTrade.TakeProfit,
		Leverage:          account.Leverage,
		CopiedFromTradeID: &masterTradeID,
	})
	if err != nil {
		return fail(fmt.Sprintf("failed to open follower trade: %v", err))
	}

	if err := s.db.MarkCopyTradeOpen(ctx, record.ID, followerTrade.ID, followerTrade.OpenPrice); err != nil {
		// Unwind the position so no follower trade exists without an OPEN record.
		if _, closeErr := s.engine.CloseTrade(ctx, followerTrade.ID, followerTrade.OpenPrice, followerTrade.OpenPrice, models.ClosedByRisk); closeErr != nil {
			log.WithContext(ctx).Errorf("copyToFollower: failed to unwind follower trade %d: %v", followerTrade.ID, closeErr)
		}

		return fail(fmt.Sprintf("failed to link follower trade: %v", err))
	}

	if err := s.db.ApplyFollowerStats(ctx, follower.ID, models.FollowerStatsDelta{TotalCopiedTrades: 1, ActiveCopiedTrades: 1}); err != nil {
		log.WithContext(ctx).Errorf("copyToFollower: failed to update follower %d stats: %v", follower.ID, err)
	}

	if err := s.db.AddMasterCopiedVolume(ctx, master.ID, lotSize); err != nil {
		log.WithContext(ctx).Errorf("copyToFollower: failed to update master %d volume: %v", master.ID, err)
	}

	followerTradeID := followerTrade.ID
	result.FollowerTradeID = &followerTradeID
	result.Status = ResultStatusSuccess
	return result
}

func (s *Service) count(ctx context.Context, counter metric.Int64Counter, status ResultStatus) {
	if counter == nil {
		return
	}

	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
}
