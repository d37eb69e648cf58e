package copytrade

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/backoffice/src/models"
)

type FollowRequest struct {
	FollowerUserID    uint            `json:"follower_user_id" validate:"required"`
	FollowerAccountID uint            `json:"follower_account_id" validate:"required"`
	MasterID          uint            `json:"master_id" validate:"required"`
	CopyMode          models.CopyMode `json:"copy_mode" validate:"required,oneof=FIXED_LOT LOT_MULTIPLIER"`
	CopyValue         float64         `json:"copy_value" validate:"gt=0"`
	MaxLotSize        float64         `json:"max_lot_size" validate:"min=0"`
	MaxDailyLoss      *float64        `json:"max_daily_loss,omitempty" validate:"omitempty,gt=0"`
}

func (s *Service) Follow(ctx context.Context, req FollowRequest) (*models.CopyRelationship, error) {
	master, err := s.db.GetMasterTrader(ctx, req.MasterID)
	if err != nil {
		return nil, fmt.Errorf("Follow: failed to get master: %w", err)
	}

	if !master.IsActive() {
		return nil, fmt.Errorf("Follow: master %d: %w", master.ID, models.ErrMasterNotActive)
	}

	if master.TradingAccountID == req.FollowerAccountID {
		return nil, fmt.Errorf("Follow: cannot follow own master account: %w", models.ErrValidation)
	}

	account, err := s.db.GetAccount(ctx, req.FollowerAccountID)
	if err != nil {
		return nil, fmt.Errorf("Follow: failed to get follower account: %w", err)
	}

	if account.UserID != req.FollowerUserID {
		return nil, fmt.Errorf("Follow: account %d does not belong to user %d: %w", account.ID, req.FollowerUserID, models.ErrValidation)
	}

	if !account.IsActive() {
		return nil, fmt.Errorf("Follow: account %d: %w", account.ID, models.ErrAccountNotActive)
	}

	maxLot := req.MaxLotSize
	if maxLot <= 0 {
		maxLot = s.defaultMaxLot
	}

	now := s.now()
	relationship := &models.CopyRelationship{
		FollowerUserID:    req.FollowerUserID,
		MasterID:          req.MasterID,
		FollowerAccountID: req.FollowerAccountID,
		Status:            models.CopyRelationshipStatusActive,
		CopyMode:          req.CopyMode,
		CopyValue:         req.CopyValue,
		MaxLotSize:        maxLot,
		MaxDailyLoss:      req.MaxDailyLoss,
		LastDailyReset:    now,
		StartedAt:         now,
	}

	if err := s.db.CreateCopyRelationship(ctx, relationship); err != nil {
		return nil, fmt.Errorf("Follow: %w", err)
	}

	log.WithContext(ctx).WithFields(log.Fields{
		"follower_id": relationship.ID,
		"master_id":   req.MasterID,
		"copy_mode":   req.CopyMode,
	}).Info("follower started copying")

	return relationship, nil
}

func (s *Service) Pause(ctx context.Context, followerID uint) (*models.CopyRelationship, error) {
	return s.transition(ctx, followerID, []models.CopyRelationshipStatus{models.CopyRelationshipStatusActive}, models.CopyRelationshipStatusPaused)
}

func (s *Service) Resume(ctx context.Context, followerID uint) (*models.CopyRelationship, error) {
	return s.transition(ctx, followerID, []models.CopyRelationshipStatus{models.CopyRelationshipStatusPaused}, models.CopyRelationshipStatusActive)
}

// Stop is terminal. Open copies stay open and close with their master trade.
func (s *Service) Stop(ctx context.Context, followerID uint) (*models.CopyRelationship, error) {
	return s.transition(ctx, followerID, []models.CopyRelationshipStatus{models.CopyRelationshipStatusActive, models.CopyRelationshipStatusPaused}, models.CopyRelationshipStatusStopped)
}

func (s *Service) transition(ctx context.Context, followerID uint, from []models.CopyRelationshipStatus, to models.CopyRelationshipStatus) (*models.CopyRelationship, error) {
	relationship, err := s.db.TransitionCopyRelationship(ctx, followerID, from, to, s.now())
	if err != nil {
		return nil, fmt.Errorf("copy relationship %d to %s: %w", followerID, to, err)
	}

	log.WithContext(ctx).WithField("follower_id", followerID).Infof("copy relationship is now %s", to)

	return relationship, nil
}
