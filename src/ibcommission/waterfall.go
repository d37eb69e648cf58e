package ibcommission

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jiaming2012/backoffice/src/models"
)

// GetIBChain walks the upline of a trader, level 1 being the direct parent. The walk
// stops at the first ancestor that is missing, not an IB, or not active.
func (s *Service) GetIBChain(ctx context.Context, traderUserID uint, maxLevels int) ([]models.IBChainNode, error) {
	chain := make([]models.IBChainNode, 0)

	trader, err := s.db.GetIBUser(ctx, traderUserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return chain, nil
		}
		return nil, fmt.Errorf("GetIBChain: failed to get trader %d: %w", traderUserID, err)
	}

	visited := map[uint]bool{trader.UserID: true}
	parentID := trader.ParentIBID

	for level := 1; parentID != nil && level <= maxLevels; level++ {
		if visited[*parentID] {
			log.WithContext(ctx).Warnf("GetIBChain: referral cycle at user %d", *parentID)
			break
		}

		parent, err := s.db.GetIBUser(ctx, *parentID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				break
			}
			return nil, fmt.Errorf("GetIBChain: failed to get ib %d: %w", *parentID, err)
		}

		if !parent.IsActiveIB() {
			break
		}

		chain = append(chain, models.IBChainNode{Level: level, IB: parent})
		visited[parent.UserID] = true
		parentID = parent.ParentIBID
	}

	return chain, nil
}

// ProcessTradeCommission pays each valid upline level of a closed trade. Levels are
// independent: a failure at one level is recorded and the walk continues.
func (s *Service) ProcessTradeCommission(ctx context.Context, trade *models.Trade) (*TradeCommissionResult, error) {
	ctx, span := otel.Tracer("ibcommission").Start(ctx, "Service.ProcessTradeCommission")
	defer span.End()

	span.SetAttributes(attribute.Int("trade_id", int(trade.ID)))

	result := &TradeCommissionResult{
		TradeID:         trade.ID,
		TraderUserID:    trade.UserID,
		TotalCommission: decimal.Zero,
		Levels:          make([]LevelCommissionResult, 0),
	}

	if trade.IsOpen() {
		result.Reason = "trade is still open"
		return result, nil
	}

	chain, err := s.GetIBChain(ctx, trade.UserID, s.maxDepth)
	if err != nil {
		return nil, fmt.Errorf("ProcessTradeCommission: %w", err)
	}

	if len(chain) == 0 {
		result.Reason = "No IB chain found for trader"
		return result, nil
	}

	result.Processed = true

	contractSize := trade.ContractSize
	if contractSize <= 0 && s.sizer != nil {
		contractSize = s.sizer.GetContractSize(trade.Symbol)
	}

	for _, node := range chain {
		levelResult := s.processLevel(ctx, trade, node, contractSize)
		s.count(ctx, levelResult.Status)

		if levelResult.Status == LevelStatusCredited {
			result.CommissionsGenerated++
			result.TotalCommission = result.TotalCommission.Add(levelResult.CommissionAmount)
		}

		result.Levels = append(result.Levels, levelResult)
	}

	log.WithContext(ctx).WithFields(log.Fields{
		"trade_id":   trade.ID,
		"trader_id":  trade.UserID,
		"levels":     len(chain),
		"credited":   result.CommissionsGenerated,
		"commission": result.TotalCommission.String(),
	}).Info("ib commission processed")

	return result, nil
}

func (s *Service) processLevel(ctx context.Context, trade *models.Trade, node models.IBChainNode, contractSize float64) LevelCommissionResult {
	ib := node.IB
	result := LevelCommissionResult{
		Level:            node.Level,
		IBUserID:         ib.UserID,
		IBName:           ib.FirstName,
		BaseAmount:       trade.Quantity,
		CommissionAmount: decimal.Zero,
	}

	logger := log.WithContext(ctx).WithFields(log.Fields{
		"trade_id": trade.ID,
		"ib":       ib.UserID,
		"level":    node.Level,
	})

	plan, err := s.resolvePlan(ctx, ib)
	if err != nil {
		logger.Errorf("failed to resolve plan: %v", err)
		result.Status = LevelStatusFailed
		result.Reason = err.Error()
		return result
	}

	if plan == nil {
		result.Status = LevelStatusSkipped
		result.Reason = "no commission plan"
		return result
	}

	result.PlanID = plan.ID

	if node.Level > plan.MaxLevels {
		result.Status = LevelStatusSkipped
		result.Reason = fmt.Sprintf("level %d exceeds plan max levels %d", node.Level, plan.MaxLevels)
		return result
	}

	amount := plan.CommissionAmount(node.Level, trade.Quantity, contractSize, trade.OpenPrice)
	if amount <= 0 {
		result.Status = LevelStatusSkipped
		result.Reason = "zero commission for level"
		return result
	}

	result.CommissionAmount = decimal.NewFromFloat(amount)

	exists, err := s.db.CommissionRecordExists(ctx, trade.ID, ib.UserID, node.Level)
	if err != nil {
		logger.Errorf("failed to check existing commission: %v", err)
		result.Status = LevelStatusFailed
		result.Reason = err.Error()
		return result
	}

	if exists {
		result.Status = LevelStatusDuplicate
		result.Reason = "commission already exists"
		return result
	}

	record := &models.CommissionRecord{
		TradeID:          trade.ID,
		IBUserID:         ib.UserID,
		Level:            node.Level,
		TraderUserID:     trade.UserID,
		BaseAmount:       trade.Quantity,
		CommissionAmount: result.CommissionAmount,
		Symbol:           trade.Symbol,
		TradeLotSize:     trade.Quantity,
		ContractSize:     contractSize,
		CommissionType:   plan.CommissionType,
		Status:           models.CommissionStatusCredited,
	}

	if err := s.db.CreditCommission(ctx, record); err != nil {
		if errors.Is(err, models.ErrDuplicateRecord) {
			result.Status = LevelStatusDuplicate
			result.Reason = "commission already exists"
			return result
		}

		logger.Errorf("failed to credit commission: %v", err)
		result.Status = LevelStatusFailed
		result.Reason = err.Error()
		return result
	}

	result.CommissionID = record.ID
	result.Status = LevelStatusCredited
	logger.Infof("credited %s", result.CommissionAmount)

	return result
}

// resolvePlan returns the IB's own plan, then the stored default, then the configured default.
func (s *Service) resolvePlan(ctx context.Context, ib *models.IBUser) (*models.CommissionPlan, error) {
	if ib.IBPlanID != nil {
		plan, err := s.db.GetCommissionPlan(ctx, *ib.IBPlanID)
		switch {
		case err == nil && plan.IsActive:
			return plan, nil
		case err != nil && !errors.Is(err, models.ErrNotFound):
			return nil, err
		}
	}

	plan, err := s.db.GetDefaultCommissionPlan(ctx)
	if err == nil {
		return plan, nil
	}

	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	return s.defaultPlan, nil
}

// ReverseCommission debits the IB wallet by the original amount. Only one of several
// concurrent reversals of the same record succeeds.
func (s *Service) ReverseCommission(ctx context.Context, commissionID uint, adminID uint, reason string) (*models.CommissionRecord, error) {
	record, err := s.db.ReverseCommission(ctx, commissionID, models.CommissionReversal{
		ReversedBy: adminID,
		Reason:     reason,
		ReversedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("ReverseCommission: %w", err)
	}

	logger := log.WithContext(ctx).WithFields(log.Fields{
		"commission_id": commissionID,
		"ib":            record.IBUserID,
		"admin_id":      adminID,
		"amount":        record.CommissionAmount.String(),
	})
	logger.Info("commission reversed")

	if wallet, err := s.db.GetIBWallet(ctx, record.IBUserID); err == nil && wallet.Balance.IsNegative() {
		logger.Warnf("ib wallet is negative after reversal: %s", wallet.Balance)
	}

	return record, nil
}

func (s *Service) count(ctx context.Context, status LevelStatus) {
	if s.commissionCounter == nil {
		return
	}

	s.commissionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(status))))
}
