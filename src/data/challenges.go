package data

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/jiaming2012/backoffice/src/models"
)

func (s *DatabaseService) CreateChallenge(ctx context.Context, challenge *models.Challenge) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(challenge).Error; err != nil {
			return translate(err, "challenge", challenge.Name)
		}

		// a zero step challenge and a disabled challenge must not pick up the column defaults
		return translate(tx.Model(challenge).Updates(map[string]interface{}{
			"is_active":   challenge.IsActive,
			"steps_count": challenge.StepsCount,
		}).Error, "challenge", challenge.ID)
	})
}

func (s *DatabaseService) GetChallenge(ctx context.Context, id uint) (*models.Challenge, error) {
	var challenge models.Challenge
	if err := s.conn(ctx).First(&challenge, id).Error; err != nil {
		return nil, translate(err, "challenge", id)
	}

	return &challenge, nil
}

func createChallengeAccount(tx *gorm.DB, account *models.ChallengeAccount) error {
	if account.Version == 0 {
		account.Version = 1
	}

	return translate(tx.Create(account).Error, "challenge account", account.AccountNumber)
}

func (s *DatabaseService) CreateChallengeAccount(ctx context.Context, account *models.ChallengeAccount) error {
	return createChallengeAccount(s.conn(ctx), account)
}

func (s *DatabaseService) GetChallengeAccount(ctx context.Context, id uint) (*models.ChallengeAccount, error) {
	var account models.ChallengeAccount
	if err := s.conn(ctx).First(&account, id).Error; err != nil {
		return nil, translate(err, "challenge account", id)
	}

	return &account, nil
}

func (s *DatabaseService) ListChallengeAccounts(ctx context.Context, statuses ...models.ChallengeAccountStatus) ([]*models.ChallengeAccount, error) {
	accounts := make([]*models.ChallengeAccount, 0)

	query := s.conn(ctx).Order("id")
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	return accounts, translate(query.Find(&accounts).Error, "challenge accounts", statuses)
}

// saveChallengeAccount writes the whole row when the stored version still matches
// and bumps the version on success.
func saveChallengeAccount(tx *gorm.DB, account *models.ChallengeAccount) error {
	expected := account.Version
	account.Version++

	res := tx.Model(account).
		Where("version = ?", expected).
		Select("*").
		Omit("ID", "CreatedAt", "DeletedAt").
		Updates(account)
	if res.Error != nil {
		account.Version = expected
		return translate(res.Error, "challenge account", account.ID)
	}

	if res.RowsAffected == 0 {
		account.Version = expected
		return conditionFailed(tx, &models.ChallengeAccount{}, "id", account.ID, "challenge account",
			fmt.Errorf("version %d: %w", expected, models.ErrStaleChallengeAccount))
	}

	return nil
}

func (s *DatabaseService) SaveChallengeAccount(ctx context.Context, account *models.ChallengeAccount) error {
	return saveChallengeAccount(s.conn(ctx), account)
}

func (s *DatabaseService) FundChallengeAccount(ctx context.Context, passed *models.ChallengeAccount, funded *models.ChallengeAccount) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := createChallengeAccount(tx, funded); err != nil {
			return err
		}

		fundedID := funded.ID
		passed.FundedAccountID = &fundedID

		if err := saveChallengeAccount(tx, passed); err != nil {
			passed.FundedAccountID = nil
			return err
		}

		return nil
	})
}

func (s *DatabaseService) ClaimTradeEvent(ctx context.Context, tradeID uint, eventType models.TradeEventType) error {
	event := &models.ProcessedTradeEvent{TradeID: tradeID, EventType: eventType}
	return insertIgnore(s.conn(ctx), event, "trade event", fmt.Sprintf("%d:%s", tradeID, eventType))
}

// ReleaseTradeEvent hard deletes the claim so a retry can take it again.
func (s *DatabaseService) ReleaseTradeEvent(ctx context.Context, tradeID uint, eventType models.TradeEventType) error {
	err := s.conn(ctx).Unscoped().
		Where("trade_id = ? AND event_type = ?", tradeID, eventType).
		Delete(&models.ProcessedTradeEvent{}).Error

	return translate(err, "trade event", tradeID)
}
