package ibcommission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/backoffice/src/models"
)

const referralCodeAttempts = 5

func newReferralCode() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "IB" + strings.ToUpper(id[:8])
}

// getOrCreateUser returns the referral node of a user, creating an empty one on first use.
func (s *Service) getOrCreateUser(ctx context.Context, userID uint) (*models.IBUser, error) {
	user, err := s.db.GetIBUser(ctx, userID)
	if err == nil {
		return user, nil
	}

	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	user = &models.IBUser{UserID: userID}
	if err := s.db.CreateIBUser(ctx, user); err != nil {
		if errors.Is(err, models.ErrDuplicateRecord) {
			return s.db.GetIBUser(ctx, userID)
		}
		return nil, err
	}

	return user, nil
}

// ApplyForIB turns a user into a PENDING IB with a fresh referral code. A user who was
// referred by an active IB sits one level below it.
func (s *Service) ApplyForIB(ctx context.Context, userID uint) (*models.IBUser, error) {
	user, err := s.getOrCreateUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ApplyForIB: failed to get user %d: %w", userID, err)
	}

	if user.IsIB {
		return nil, fmt.Errorf("ApplyForIB: user %d is already an IB: %w", userID, models.ErrValidation)
	}

	user.IsIB = true
	user.IBStatus = models.IBStatusPending
	user.IBLevel = 1

	if user.ReferredBy != nil {
		parent, err := s.db.GetIBUserByReferralCode(ctx, *user.ReferredBy)
		switch {
		case err == nil && parent.IsActiveIB():
			user.ParentIBID = &parent.UserID
			user.IBLevel = parent.IBLevel + 1
		case err != nil && !errors.Is(err, models.ErrNotFound):
			return nil, fmt.Errorf("ApplyForIB: failed to resolve referrer: %w", err)
		}
	}

	for attempt := 1; ; attempt++ {
		code := newReferralCode()
		user.ReferralCode = &code

		err = s.db.SaveIBUser(ctx, user)
		if err == nil {
			break
		}

		if !errors.Is(err, models.ErrDuplicateRecord) || attempt == referralCodeAttempts {
			return nil, fmt.Errorf("ApplyForIB: failed to save user %d: %w", userID, err)
		}
	}

	log.WithContext(ctx).WithFields(log.Fields{
		"user_id":       userID,
		"referral_code": *user.ReferralCode,
		"ib_level":      user.IBLevel,
	}).Info("ib application received")

	return user, nil
}

// ApproveIB activates an applicant on the given plan, or on the default plan when planID is nil.
func (s *Service) ApproveIB(ctx context.Context, userID uint, planID *uint) (*models.IBUser, error) {
	user, err := s.db.GetIBUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ApproveIB: %w", err)
	}

	if !user.IsIB {
		return nil, fmt.Errorf("ApproveIB: user %d is not an IB applicant: %w", userID, models.ErrValidation)
	}

	if planID != nil {
		if _, err := s.db.GetCommissionPlan(ctx, *planID); err != nil {
			return nil, fmt.Errorf("ApproveIB: %w", err)
		}
	} else if plan, err := s.db.GetDefaultCommissionPlan(ctx); err == nil {
		planID = &plan.ID
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("ApproveIB: failed to get default plan: %w", err)
	}

	user, err = s.db.TransitionIBStatus(ctx, userID, []models.IBStatus{models.IBStatusPending}, models.IBStatusActive, planID)
	if err != nil {
		return nil, fmt.Errorf("ApproveIB: %w", err)
	}

	log.WithContext(ctx).WithField("user_id", userID).Info("ib approved")

	return user, nil
}

func (s *Service) BlockIB(ctx context.Context, userID uint, reason string) (*models.IBUser, error) {
	user, err := s.db.TransitionIBStatus(ctx, userID, []models.IBStatus{models.IBStatusPending, models.IBStatusActive}, models.IBStatusBlocked, nil)
	if err != nil {
		return nil, fmt.Errorf("BlockIB: %w", err)
	}

	log.WithContext(ctx).WithFields(log.Fields{
		"user_id": userID,
		"reason":  reason,
	}).Warn("ib blocked")

	return user, nil
}

func (s *Service) UnblockIB(ctx context.Context, userID uint) (*models.IBUser, error) {
	user, err := s.db.TransitionIBStatus(ctx, userID, []models.IBStatus{models.IBStatusBlocked}, models.IBStatusActive, nil)
	if err != nil {
		return nil, fmt.Errorf("UnblockIB: %w", err)
	}

	log.WithContext(ctx).WithField("user_id", userID).Info("ib unblocked")

	return user, nil
}

func (s *Service) ChangePlan(ctx context.Context, userID uint, planID uint) (*models.IBUser, error) {
	plan, err := s.db.GetCommissionPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("ChangePlan: %w", err)
	}

	if !plan.IsActive {
		return nil, fmt.Errorf("ChangePlan: plan %d is not active: %w", planID, models.ErrValidation)
	}

	user, err := s.db.GetIBUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ChangePlan: %w", err)
	}

	if !user.IsIB {
		return nil, fmt.Errorf("ChangePlan: user %d is not an IB: %w", userID, models.ErrValidation)
	}

	user.IBPlanID = &plan.ID
	if err := s.db.SaveIBUser(ctx, user); err != nil {
		return nil, fmt.Errorf("ChangePlan: %w", err)
	}

	return user, nil
}

// RegisterWithReferral attaches a user below the active IB that owns the referral code.
func (s *Service) RegisterWithReferral(ctx context.Context, userID uint, referralCode string) (*models.IBUser, *models.IBUser, error) {
	referrer, err := s.db.GetIBUserByReferralCode(ctx, referralCode)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, fmt.Errorf("RegisterWithReferral: invalid referral code %q: %w", referralCode, models.ErrValidation)
		}
		return nil, nil, fmt.Errorf("RegisterWithReferral: %w", err)
	}

	if !referrer.IsActiveIB() {
		return nil, nil, fmt.Errorf("RegisterWithReferral: referral code %q is inactive: %w", referralCode, models.ErrValidation)
	}

	if referrer.UserID == userID {
		return nil, nil, fmt.Errorf("RegisterWithReferral: user %d cannot refer itself: %w", userID, models.ErrValidation)
	}

	upline, err := s.GetIBChain(ctx, referrer.UserID, s.maxDepth)
	if err != nil {
		return nil, nil, fmt.Errorf("RegisterWithReferral: %w", err)
	}

	for _, node := range upline {
		if node.IB.UserID == userID {
			return nil, nil, fmt.Errorf("RegisterWithReferral: user %d is in the upline of %d: %w", userID, referrer.UserID, models.ErrValidation)
		}
	}

	user, err := s.getOrCreateUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("RegisterWithReferral: failed to get user %d: %w", userID, err)
	}

	code := referralCode
	user.ReferredBy = &code
	user.ParentIBID = &referrer.UserID

	if err := s.db.SaveIBUser(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("RegisterWithReferral: %w", err)
	}

	log.WithContext(ctx).WithFields(log.Fields{
		"user_id":  userID,
		"referrer": referrer.UserID,
	}).Info("user registered with referral")

	return user, referrer, nil
}
