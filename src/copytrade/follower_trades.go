package copytrade

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/jiaming2012/backoffice/src/models"
)

// MirrorSlTpModification copies a master's new stops onto every open follower copy.
func (s *Service) MirrorSlTpModification(ctx context.Context, masterTradeID uint, stopLoss, takeProfit *float64) ([]CopyActionResult, error) {
	records, err := s.db.ListOpenCopyTrades(ctx, masterTradeID)
	if err != nil {
		return nil, fmt.Errorf("MirrorSlTpModification: failed to list copies: %w", err)
	}

	results := make([]CopyActionResult, 0, len(records))
	for _, rec := range records {
		result := CopyActionResult{CopyTradeID: rec.ID, FollowerID: rec.FollowerID}
		if rec.FollowerTradeID == nil {
			result.Status = ResultStatusSkipped
			result.Reason = "copy has no follower trade"
			results = append(results, result)
			continue
		}

		result.FollowerTradeID = *rec.FollowerTradeID
		if _, err := s.engine.ModifyTrade(ctx, *rec.FollowerTradeID, stopLoss, takeProfit); err != nil {
			log.WithContext(ctx).Warnf("MirrorSlTpModification: follower trade %d: %v", *rec.FollowerTradeID, err)
			result.Status = ResultStatusFailed
			result.Reason = err.Error()
		} else {
			result.Status = ResultStatusSuccess
		}

		results = append(results, result)
	}

	return results, nil
}

// CloseFollowerTrades closes every open copy of a master trade at the master's close price.
func (s *Service) CloseFollowerTrades(ctx context.Context, masterTradeID uint, masterClosePrice float64) ([]CopyActionResult, error) {
	ctx, span := otel.Tracer("copytrade").Start(ctx, "Service.CloseFollowerTrades")
	defer span.End()

	records, err := s.db.ListOpenCopyTrades(ctx, masterTradeID)
	if err != nil {
		return nil, fmt.Errorf("CloseFollowerTrades: failed to list copies: %w", err)
	}

	results := make([]CopyActionResult, 0, len(records))
	for _, rec := range records {
		closePrice := masterClosePrice
		results = append(results, s.closeCopy(ctx, rec, masterClosePrice, masterClosePrice, models.ClosedByMaster, &closePrice))
	}

	return results, nil
}

// CloseAllMasterFollowerTrades closes every open copy of a master at market, e.g. when
// the master is banned. Copies without a quote are skipped.
func (s *Service) CloseAllMasterFollowerTrades(ctx context.Context, masterID uint, prices models.PriceMap) ([]CopyActionResult, error) {
	ctx, span := otel.Tracer("copytrade").Start(ctx, "Service.CloseAllMasterFollowerTrades")
	defer span.End()

	records, err := s.db.ListOpenCopyTradesByMaster(ctx, masterID)
	if err != nil {
		return nil, fmt.Errorf("CloseAllMasterFollowerTrades: failed to list copies: %w", err)
	}

	results := make([]CopyActionResult, 0, len(records))
	for _, rec := range records {
		price, found := prices.Get(rec.Symbol)
		if !found {
			results = append(results, CopyActionResult{
				CopyTradeID: rec.ID,
				FollowerID:  rec.FollowerID,
				Status:      ResultStatusSkipped,
				Reason:      fmt.Sprintf("no price for %s", rec.Symbol),
			})
			continue
		}

		results = append(results, s.closeCopy(ctx, rec, price.Bid, price.Ask, models.ClosedByAdmin, nil))
	}

	return results, nil
}

// BanMaster bans a master and closes all of its followers' open copies.
func (s *Service) BanMaster(ctx context.Context, masterID uint, prices models.PriceMap) ([]CopyActionResult, error) {
	if err := s.db.SetMasterTraderStatus(ctx, masterID, models.MasterTraderStatusBanned); err != nil {
		return nil, fmt.Errorf("BanMaster: %w", err)
	}

	log.WithContext(ctx).WithField("master_id", masterID).Warn("master banned, closing follower copies")

	return s.CloseAllMasterFollowerTrades(ctx, masterID, prices)
}

// SyncFollowerClose books a follower copy that was closed outside the replicator
// (stop loss, manual close). It is a no-op for copies already booked.
func (s *Service) SyncFollowerClose(ctx context.Context, followerTrade *models.Trade) error {
	if !followerTrade.IsCopy() || followerTrade.IsOpen() {
		return nil
	}

	records, err := s.db.ListOpenCopyTrades(ctx, *followerTrade.CopiedFromTradeID)
	if err != nil {
		return fmt.Errorf("SyncFollowerClose: failed to list copies: %w", err)
	}

	var masterClosePrice *float64
	if masterTrade, err := s.db.GetTrade(ctx, *followerTrade.CopiedFromTradeID); err == nil && !masterTrade.IsOpen() {
		price := masterTrade.ClosePrice
		masterClosePrice = &price
	}

	for _, rec := range records {
		if rec.FollowerTradeID == nil || *rec.FollowerTradeID != followerTrade.ID {
			continue
		}

		if err := s.bookCopyClose(ctx, rec, masterClosePrice, followerTrade.ClosePrice, followerTrade.RealizedPnl, followerTrade.ClosedAt); err != nil && !errors.Is(err, models.ErrCopyTradeNotOpen) {
			return fmt.Errorf("SyncFollowerClose: %w", err)
		}
	}

	return nil
}

func (s *Service) closeCopy(ctx context.Context, rec *models.CopyTradeRecord, bid, ask float64, closedBy string, masterClosePrice *float64) CopyActionResult {
	result := CopyActionResult{CopyTradeID: rec.ID, FollowerID: rec.FollowerID}
	if rec.FollowerTradeID == nil {
		result.Status = ResultStatusSkipped
		result.Reason = "copy has no follower trade"
		return result
	}

	result.FollowerTradeID = *rec.FollowerTradeID

	var trade *models.Trade
	closed, err := s.engine.CloseTrade(ctx, *rec.FollowerTradeID, bid, ask, closedBy)
	switch {
	case err == nil:
		trade = closed.Trade
	case errors.Is(err, models.ErrTradeNotOpen):
		// Closed elsewhere; book the copy from the stored trade.
		trade, err = s.db.GetTrade(ctx, *rec.FollowerTradeID)
		if err != nil {
			result.Status = ResultStatusFailed
			result.Reason = err.Error()
			return result
		}
	default:
		log.WithContext(ctx).Warnf("closeCopy: follower trade %d: %v", *rec.FollowerTradeID, err)
		result.Status = ResultStatusFailed
		result.Reason = err.Error()
		return result
	}

	result.Pnl = trade.RealizedPnl

	if err := s.bookCopyClose(ctx, rec, masterClosePrice, trade.ClosePrice, trade.RealizedPnl, trade.ClosedAt); err != nil && !errors.Is(err, models.ErrCopyTradeNotOpen) {
		result.Status = ResultStatusFailed
		result.Reason = err.Error()
		return result
	}

	result.Status = ResultStatusSuccess
	return result
}

// bookCopyClose flips the record OPEN to CLOSED and, only for the caller that wins
// that update, applies the follower's running stats.
func (s *Service) bookCopyClose(ctx context.Context, rec *models.CopyTradeRecord, masterClosePrice *float64, followerClosePrice, pnl float64, closedAt *time.Time) error {
	at := s.now()
	if closedAt != nil {
		at = *closedAt
	}

	if err := s.db.CloseCopyTrade(ctx, rec.ID, models.CopyTradeClose{
		MasterClosePrice:   masterClosePrice,
		FollowerClosePrice: followerClosePrice,
		FollowerPnl:        pnl,
		ClosedAt:           at,
	}); err != nil {
		return fmt.Errorf("failed to close copy %d: %w", rec.ID, err)
	}

	if err := s.db.ApplyFollowerStats(ctx, rec.FollowerID, models.NewCloseStatsDelta(pnl)); err != nil {
		log.WithContext(ctx).Errorf("bookCopyClose: failed to update follower %d stats: %v", rec.FollowerID, err)
	}

	return nil
}
