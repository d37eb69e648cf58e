package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/backoffice/src/challenge"
	"github.com/jiaming2012/backoffice/src/copytrade"
	"github.com/jiaming2012/backoffice/src/ibcommission"
	"github.com/jiaming2012/backoffice/src/models"
	"github.com/jiaming2012/backoffice/src/tradeengine"
)

type staticPrices models.PriceMap

func (p staticPrices) Snapshot() models.PriceMap {
	return models.PriceMap(p)
}

type routerFixture struct {
	ctx       context.Context
	db        *models.MockDatabase
	srv       *httptest.Server
	challenge *models.Challenge
	account   *models.Account
}

func newRouterFixture(t *testing.T) *routerFixture {
	f := &routerFixture{
		ctx: context.Background(),
		db:  models.NewMockDatabase(),
	}

	now := func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }

	engine := tradeengine.NewEngine(f.db, nil, nil)
	engine.SetClock(now)
	copier := copytrade.NewService(f.db, engine)
	copier.SetClock(now)
	ib := ibcommission.NewService(f.db, engine, ibcommission.Config{})
	ib.SetClock(now)
	challenges := challenge.NewService(f.db, engine)
	challenges.SetClock(now)

	prices := staticPrices{"EURUSD": {Bid: 1.1, Ask: 1.1002}}

	router := mux.NewRouter()
	SetupHandler(router.PathPrefix("/api").Subrouter(), NewHandler(copier, ib, challenges, engine, f.db, prices))

	f.srv = httptest.NewServer(router)
	t.Cleanup(f.srv.Close)

	f.challenge = &models.Challenge{
		Name:       "10K Challenge",
		FundSize:   10000,
		StepsCount: 2,
		IsActive:   true,
		Rules: models.ChallengeRules{
			MaxDailyDrawdownPercent:   5,
			MaxOverallDrawdownPercent: 10,
			ProfitTargetPhase1Percent: 8,
			ProfitTargetPhase2Percent: 5,
			AllowedSymbols:            []string{"EURUSD"},
			ChallengeExpiryDays:       30,
		},
	}
	require.NoError(t, f.db.CreateChallenge(f.ctx, f.challenge))

	f.account = &models.Account{
		UserID:   7,
		Balance:  decimal.NewFromInt(10000),
		Leverage: 100,
		Status:   models.AccountStatusActive,
	}
	require.NoError(t, f.db.CreateAccount(f.ctx, f.account))

	return f
}

func (f *routerFixture) do(t *testing.T, method, path string, body interface{}, out interface{}) int {
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}

	req, err := http.NewRequest(method, f.srv.URL+"/api"+path, &payload)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}

	return resp.StatusCode
}

func TestChallengeRoutes(t *testing.T) {
	t.Run("creates an account and serves its dashboard", func(t *testing.T) {
		f := newRouterFixture(t)

		var acc models.ChallengeAccount
		status := f.do(t, http.MethodPost, "/challenges/1/accounts", map[string]interface{}{"user_id": 42}, &acc)
		require.Equal(t, http.StatusCreated, status)
		assert.Equal(t, models.ChallengeAccountStatusActive, acc.Status)
		assert.Equal(t, 10000.0, acc.CurrentBalance)

		var dashboard challenge.Dashboard
		status = f.do(t, http.MethodGet, "/challenge-accounts/1/dashboard", nil, &dashboard)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "10K Challenge", dashboard.Challenge.Name)
		assert.Equal(t, 8.0, dashboard.Profit.TargetPercent)
	})

	t.Run("answers a rule rejection with 422 and the warning", func(t *testing.T) {
		f := newRouterFixture(t)
		require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/challenges/1/accounts", map[string]interface{}{"user_id": 42}, nil))

		var outcome challenge.TradeAttemptOutcome
		status := f.do(t, http.MethodPost, "/challenge-accounts/1/trades", map[string]interface{}{
			"user_id":  42,
			"symbol":   "GBPUSD",
			"side":     "BUY",
			"quantity": 0.1,
			"bid":      1.27,
			"ask":      1.2702,
		}, &outcome)

		require.Equal(t, http.StatusUnprocessableEntity, status)
		require.NotNil(t, outcome.ValidationResult)
		assert.Equal(t, models.RuleSymbolNotAllowed, outcome.Code)
		assert.Equal(t, 1, outcome.WarningCount)
		assert.Equal(t, 2, outcome.RemainingWarnings)
	})

	t.Run("opens a trade priced from the live book", func(t *testing.T) {
		f := newRouterFixture(t)
		require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/challenges/1/accounts", map[string]interface{}{"user_id": 42}, nil))

		var trade models.Trade
		status := f.do(t, http.MethodPost, "/challenge-accounts/1/trades", map[string]interface{}{
			"user_id":   42,
			"symbol":    "eurusd",
			"side":      "BUY",
			"quantity":  0.1,
			"stop_loss": 1.095,
		}, &trade)

		require.Equal(t, http.StatusCreated, status)
		assert.Equal(t, 1.1002, trade.OpenPrice)
		assert.Equal(t, models.AccountKindChallenge, trade.AccountKind)
	})

	t.Run("maps a missing account to 404", func(t *testing.T) {
		f := newRouterFixture(t)

		var resp errorResponse
		status := f.do(t, http.MethodGet, "/challenge-accounts/99", nil, &resp)
		assert.Equal(t, http.StatusNotFound, status)
		assert.NotEmpty(t, resp.Msg)
	})

	t.Run("rejects an extension without days", func(t *testing.T) {
		f := newRouterFixture(t)
		require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/challenges/1/accounts", map[string]interface{}{"user_id": 42}, nil))

		status := f.do(t, http.MethodPost, "/challenge-accounts/1/extend", map[string]interface{}{"admin_id": 1}, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestTradeRoutes(t *testing.T) {
	t.Run("opens and closes a trading account trade", func(t *testing.T) {
		f := newRouterFixture(t)

		var trade models.Trade
		status := f.do(t, http.MethodPost, "/trades", map[string]interface{}{
			"user_id":    7,
			"account_id": f.account.ID,
			"symbol":     "EURUSD",
			"side":       "SELL",
			"quantity":   0.1,
		}, &trade)
		require.Equal(t, http.StatusCreated, status)
		assert.Equal(t, 1.1, trade.OpenPrice)

		var result models.CloseTradeResult
		status = f.do(t, http.MethodPost, "/trades/1/close", map[string]interface{}{"bid": 1.0990, "ask": 1.0990}, &result)
		require.Equal(t, http.StatusOK, status)
		assert.InDelta(t, 10, result.RealizedPnl, 1e-6)
	})

	t.Run("refuses a symbol without a price", func(t *testing.T) {
		f := newRouterFixture(t)

		status := f.do(t, http.MethodPost, "/trades", map[string]interface{}{
			"user_id":    7,
			"account_id": f.account.ID,
			"symbol":     "XAUUSD",
			"side":       "BUY",
			"quantity":   0.1,
		}, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		f := newRouterFixture(t)

		req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/trades", bytes.NewBufferString("{"))
		require.NoError(t, err)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestIBRoutes(t *testing.T) {
	t.Run("applies and approves an ib", func(t *testing.T) {
		f := newRouterFixture(t)

		var user models.IBUser
		status := f.do(t, http.MethodPost, "/ib/apply", map[string]interface{}{"user_id": 5}, &user)
		require.Equal(t, http.StatusCreated, status)
		assert.Equal(t, models.IBStatusPending, user.IBStatus)
		require.NotNil(t, user.ReferralCode)

		status = f.do(t, http.MethodPost, "/ib/users/5/approve", map[string]interface{}{}, &user)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, models.IBStatusActive, user.IBStatus)
	})

	t.Run("reports an invalid transition as a conflict", func(t *testing.T) {
		f := newRouterFixture(t)
		require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/ib/apply", map[string]interface{}{"user_id": 5}, nil))

		status := f.do(t, http.MethodPost, "/ib/users/5/unblock", nil, nil)
		assert.Equal(t, http.StatusConflict, status)
	})

	t.Run("rejects an out of range chain depth", func(t *testing.T) {
		f := newRouterFixture(t)

		status := f.do(t, http.MethodGet, "/ib/chain/5?max_levels=50", nil, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestCopyTradingRoutes(t *testing.T) {
	t.Run("requires a trading day to list settlements", func(t *testing.T) {
		f := newRouterFixture(t)

		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/copy-trading/settlements", nil, nil))

		var resp map[string][]*models.CopyCommissionRecord
		status := f.do(t, http.MethodGet, "/copy-trading/settlements?trading_day=2024-03-01", nil, &resp)
		assert.Equal(t, http.StatusOK, status)
		assert.Empty(t, resp["records"])
	})

	t.Run("maps an unknown follower to 404", func(t *testing.T) {
		f := newRouterFixture(t)

		assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/copy-trading/followers/9/pause", nil, nil))
	})

	t.Run("does not route unknown follower actions", func(t *testing.T) {
		f := newRouterFixture(t)

		assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/copy-trading/followers/9/delete", nil, nil))
	})
}
