package data

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jiaming2012/backoffice/src/dbutils"
	"github.com/jiaming2012/backoffice/src/models"
)

func newPostgresService(t *testing.T) *DatabaseService {
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("set RUN_INTEGRATION_TESTS=true to run against postgres")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:13",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "backoffice",
				"POSTGRES_PASSWORD": "backoffice",
				"POSTGRES_DB":       "backoffice",
			},
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort("5432/tcp").WithStartupTimeout(60*time.Second),
			),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	db, err := dbutils.InitPostgres(host, port.Port(), "backoffice", "backoffice", "backoffice", gormlogger.Warn)
	require.NoError(t, err)

	return NewDatabaseService(db)
}

func TestDatabaseService(t *testing.T) {
	s := newPostgresService(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	newAccount := func(t *testing.T, balance int64) *models.Account {
		account := &models.Account{UserID: 1, Balance: decimal.NewFromInt(balance), Leverage: 100, Status: models.AccountStatusActive}
		require.NoError(t, s.CreateAccount(ctx, account))
		return account
	}

	t.Run("closing a trade settles pnl once", func(t *testing.T) {
		account := newAccount(t, 1000)
		trade := &models.Trade{
			UserID: 1, AccountID: account.ID, AccountKind: models.AccountKindTrading, Symbol: "EURUSD",
			Side: models.TradeSideBuy, OrderType: "MARKET", Quantity: 1, OpenPrice: 1.1, ContractSize: 100000,
			Leverage: 100, MarginUsed: 1100, Status: models.TradeStatusOpen, OpenedAt: now,
		}
		require.NoError(t, s.CreateTrade(ctx, trade))

		closed, err := s.CloseTrade(ctx, trade.ID, models.TradeClose{ClosePrice: 1.101, RealizedPnl: 100, ClosedBy: "user", ClosedAt: now})
		require.NoError(t, err)
		assert.Equal(t, models.TradeStatusClosed, closed.Status)

		_, err = s.CloseTrade(ctx, trade.ID, models.TradeClose{ClosePrice: 1.101, RealizedPnl: 100, ClosedBy: "user", ClosedAt: now})
		assert.ErrorIs(t, err, models.ErrTradeNotOpen)

		stored, err := s.GetAccount(ctx, account.ID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(1100).Equal(stored.Balance))

		_, err = s.CloseTrade(ctx, 999999, models.TradeClose{ClosedAt: now})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("a master trade is copied to a follower at most once", func(t *testing.T) {
		record := &models.CopyTradeRecord{
			MasterTradeID: 10, MasterID: 1, FollowerID: 2, FollowerUserID: 3, FollowerAccountID: 4,
			Symbol: "EURUSD", Side: models.TradeSideBuy, MasterLotSize: 1, FollowerLotSize: 1,
			CopyMode: models.CopyModeLotMultiplier, CopyValue: 1, MasterOpenPrice: 1.1,
			Status: models.CopyTradeStatusPending, TradingDay: models.TradingDayOf(now),
		}
		require.NoError(t, s.InsertCopyTradeRecord(ctx, record))

		dup := *record
		dup.ID = 0
		assert.ErrorIs(t, s.InsertCopyTradeRecord(ctx, &dup), models.ErrDuplicateRecord)

		require.NoError(t, s.MarkCopyTradeOpen(ctx, record.ID, 55, 1.1001))
		assert.ErrorIs(t, s.MarkCopyTradeFailed(ctx, record.ID, "late"), models.ErrInvalidTransition)

		require.NoError(t, s.CloseCopyTrade(ctx, record.ID, models.CopyTradeClose{FollowerClosePrice: 1.102, FollowerPnl: 100, ClosedAt: now}))
		assert.ErrorIs(t, s.CloseCopyTrade(ctx, record.ID, models.CopyTradeClose{ClosedAt: now}), models.ErrCopyTradeNotOpen)

		unsettled, err := s.ListUnsettledCopyTrades(ctx, "2024-03-01")
		require.NoError(t, err)
		require.Len(t, unsettled, 1)

		require.NoError(t, s.ClaimCopyTradesForSettlement(ctx, []uint{record.ID}))
		assert.ErrorIs(t, s.ClaimCopyTradesForSettlement(ctx, []uint{record.ID}), models.ErrDuplicateRecord)
	})

	t.Run("copy commission debits the follower or records a failure", func(t *testing.T) {
		master := &models.MasterTrader{UserID: 7, TradingAccountID: newAccount(t, 0).ID, Status: models.MasterTraderStatusActive, ApprovedCommissionPercentage: 20}
		require.NoError(t, s.CreateMasterTrader(ctx, master))

		follower := newAccount(t, 100)
		relationship := &models.CopyRelationship{
			FollowerUserID: 8, MasterID: master.ID, FollowerAccountID: follower.ID, Status: models.CopyRelationshipStatusActive,
			CopyMode: models.CopyModeFixedLot, CopyValue: 1, MaxLotSize: 10, StartedAt: now,
		}
		require.NoError(t, s.CreateCopyRelationship(ctx, relationship))

		total, admin, masterShare := models.SplitCommission(decimal.NewFromInt(100), 20, 30)
		record := &models.CopyCommissionRecord{
			MasterID: master.ID, FollowerID: relationship.ID, FollowerUserID: 8, FollowerAccountID: follower.ID,
			TradingDay: "2024-03-01", DailyProfit: decimal.NewFromInt(100), CommissionPercentage: 20, AdminSharePercentage: 30,
			TotalCommission: total, AdminShare: admin, MasterShare: masterShare, DeductedAt: &now,
		}

		settled, err := s.SettleCopyCommission(ctx, record)
		require.NoError(t, err)
		assert.Equal(t, models.CopyCommissionStatusDeducted, settled.Status)

		storedMaster, err := s.GetMasterTrader(ctx, master.ID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(14).Equal(storedMaster.PendingCommission))

		big := *record
		big.TotalCommission = decimal.NewFromInt(500)
		failed, err := s.SettleCopyCommission(ctx, &big)
		require.NoError(t, err)
		assert.Equal(t, models.CopyCommissionStatusFailed, failed.Status)
		assert.Nil(t, failed.DeductedAt)

		stored, err := s.GetAccount(ctx, follower.ID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(80).Equal(stored.Balance))

		withdrawal, err := s.WithdrawMasterCommission(ctx, master.ID, decimal.NewFromInt(10))
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(4).Equal(withdrawal.NewPendingCommission))

		_, err = s.WithdrawMasterCommission(ctx, master.ID, decimal.NewFromInt(10))
		assert.ErrorIs(t, err, models.ErrInsufficientFunds)
	})

	t.Run("a commission credit is unique per trade, ib and level", func(t *testing.T) {
		require.NoError(t, s.CreateIBUser(ctx, &models.IBUser{UserID: 42, IsIB: true, IBStatus: models.IBStatusActive}))

		record := &models.CommissionRecord{
			TradeID: 1, IBUserID: 42, Level: 1, TraderUserID: 43, BaseAmount: 1, CommissionAmount: decimal.NewFromInt(5),
			Symbol: "EURUSD", TradeLotSize: 1, ContractSize: 100000, CommissionType: models.CommissionTypePerLot,
			Status: models.CommissionStatusCredited,
		}
		require.NoError(t, s.CreditCommission(ctx, record))

		dup := *record
		dup.ID = 0
		assert.ErrorIs(t, s.CreditCommission(ctx, &dup), models.ErrDuplicateRecord)

		wallet, err := s.GetIBWallet(ctx, 42)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(5).Equal(wallet.Balance))

		_, err = s.ReverseCommission(ctx, record.ID, models.CommissionReversal{ReversedBy: 1, Reason: "chargeback", ReversedAt: now})
		require.NoError(t, err)

		_, err = s.ReverseCommission(ctx, record.ID, models.CommissionReversal{ReversedBy: 1, ReversedAt: now})
		assert.ErrorIs(t, err, models.ErrCommissionAlreadyReversed)

		wallet, err = s.GetIBWallet(ctx, 42)
		require.NoError(t, err)
		assert.True(t, wallet.Balance.IsZero())
		assert.True(t, decimal.NewFromInt(5).Equal(wallet.TotalEarned))

		_, err = s.WithdrawIBWallet(ctx, 42, decimal.NewFromInt(1))
		assert.ErrorIs(t, err, models.ErrInsufficientFunds)
	})

	t.Run("column defaults do not override explicit zero values", func(t *testing.T) {
		challenge := &models.Challenge{Name: "instant", FundSize: 10000, StepsCount: 0, IsActive: false}
		require.NoError(t, s.CreateChallenge(ctx, challenge))

		stored, err := s.GetChallenge(ctx, challenge.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, stored.StepsCount)
		assert.False(t, stored.IsActive)
	})

	t.Run("a stale challenge account save is rejected", func(t *testing.T) {
		challenge := &models.Challenge{Name: "two step", FundSize: 10000, StepsCount: 2, IsActive: true}
		require.NoError(t, s.CreateChallenge(ctx, challenge))

		account := models.NewChallengeAccount(9, challenge, fmt.Sprintf("CH%010d", time.Now().UnixNano()%1e10), now)
		require.NoError(t, s.CreateChallengeAccount(ctx, account))
		assert.Equal(t, 1, account.Version)

		first, err := s.GetChallengeAccount(ctx, account.ID)
		require.NoError(t, err)
		second, err := s.GetChallengeAccount(ctx, account.ID)
		require.NoError(t, err)

		first.TradesToday = 1
		require.NoError(t, s.SaveChallengeAccount(ctx, first))
		assert.Equal(t, 2, first.Version)

		second.TradesToday = 5
		assert.ErrorIs(t, s.SaveChallengeAccount(ctx, second), models.ErrStaleChallengeAccount)
		assert.Equal(t, 1, second.Version)

		stored, err := s.GetChallengeAccount(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.TradesToday)
	})

	t.Run("a trade event is claimed once until released", func(t *testing.T) {
		require.NoError(t, s.ClaimTradeEvent(ctx, 77, models.TradeEventTypeClosed))
		assert.ErrorIs(t, s.ClaimTradeEvent(ctx, 77, models.TradeEventTypeClosed), models.ErrDuplicateRecord)

		require.NoError(t, s.ReleaseTradeEvent(ctx, 77, models.TradeEventTypeClosed))
		assert.NoError(t, s.ClaimTradeEvent(ctx, 77, models.TradeEventTypeClosed))
	})
}
