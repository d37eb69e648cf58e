package models

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MockDatabase is an in-memory IDatabaseService. It enforces the same unique keys
// and conditional updates as the postgres store so engine tests exercise the
// real idempotency paths.
type MockDatabase struct {
	mu                sync.Mutex
	nextID            uint
	failures          map[string]error
	accounts          map[uint]*Account
	trades            map[uint]*Trade
	masters           map[uint]*MasterTrader
	relationships     map[uint]*CopyRelationship
	copyTrades        map[uint]*CopyTradeRecord
	copyCommissions   map[uint]*CopyCommissionRecord
	copySettings      *CopySettings
	ibUsers           map[uint]*IBUser
	plans             map[uint]*CommissionPlan
	commissions       map[uint]*CommissionRecord
	wallets           map[uint]*IBWallet
	challenges        map[uint]*Challenge
	challengeAccounts map[uint]*ChallengeAccount
	processedEvents   map[string]struct{}
}

var _ IDatabaseService = (*MockDatabase)(nil)

func NewMockDatabase() *MockDatabase {
	return &MockDatabase{
		failures:          make(map[string]error),
		accounts:          make(map[uint]*Account),
		trades:            make(map[uint]*Trade),
		masters:           make(map[uint]*MasterTrader),
		relationships:     make(map[uint]*CopyRelationship),
		copyTrades:        make(map[uint]*CopyTradeRecord),
		copyCommissions:   make(map[uint]*CopyCommissionRecord),
		ibUsers:           make(map[uint]*IBUser),
		plans:             make(map[uint]*CommissionPlan),
		commissions:       make(map[uint]*CommissionRecord),
		wallets:           make(map[uint]*IBWallet),
		challenges:        make(map[uint]*Challenge),
		challengeAccounts: make(map[uint]*ChallengeAccount),
		processedEvents:   make(map[string]struct{}),
	}
}

// FailNext makes the next call of the named method return err.
func (m *MockDatabase) FailNext(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failures[method] = err
}

func (m *MockDatabase) takeFailure(method string) error {
	if err, found := m.failures[method]; found {
		delete(m.failures, method)
		return err
	}

	return nil
}

func (m *MockDatabase) newID() uint {
	m.nextID++
	return m.nextID
}

func stamp(created, updated *time.Time) {
	now := time.Now()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

func clone[T any](v *T) *T {
	c := *v
	return &c
}

func notFound(kind string, id interface{}) error {
	return fmt.Errorf("MockDatabase: %s %v: %w", kind, id, ErrNotFound)
}

// Accounts and trades

func (m *MockDatabase) CreateAccount(ctx context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account.ID = m.newID()
	stamp(&account.CreatedAt, &account.UpdatedAt)
	m.accounts[account.ID] = clone(account)
	return nil
}

func (m *MockDatabase) GetAccount(ctx context.Context, id uint) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, found := m.accounts[id]
	if !found {
		return nil, notFound("account", id)
	}

	return clone(acc), nil
}

func (m *MockDatabase) AdjustAccountBalance(ctx context.Context, id uint, delta decimal.Decimal) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, found := m.accounts[id]
	if !found {
		return nil, notFound("account", id)
	}

	acc.Balance = acc.Balance.Add(delta)
	return clone(acc), nil
}

func (m *MockDatabase) CreateTrade(ctx context.Context, trade *Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure("CreateTrade"); err != nil {
		return err
	}

	trade.ID = m.newID()
	stamp(&trade.CreatedAt, &trade.UpdatedAt)
	m.trades[trade.ID] = clone(trade)
	return nil
}

func (m *MockDatabase) GetTrade(ctx context.Context, id uint) (*Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	trade, found := m.trades[id]
	if !found {
		return nil, notFound("trade", id)
	}

	return clone(trade), nil
}

func (m *MockDatabase) ListOpenTrades(ctx context.Context, accountID uint, kind AccountKind) ([]*Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.filterTrades(func(t *Trade) bool {
		return t.AccountID == accountID && t.AccountKind == kind && t.IsOpen()
	}), nil
}

func (m *MockDatabase) ListOpenTradesByKind(ctx context.Context, kind AccountKind) ([]*Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.filterTrades(func(t *Trade) bool {
		return t.AccountKind == kind && t.IsOpen()
	}), nil
}

func (m *MockDatabase) filterTrades(keep func(t *Trade) bool) []*Trade {
	out := make([]*Trade, 0)
	for _, t := range m.trades {
		if keep(t) {
			out = append(out, clone(t))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MockDatabase) CloseTrade(ctx context.Context, id uint, close TradeClose) (*Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure("CloseTrade"); err != nil {
		return nil, err
	}

	trade, found := m.trades[id]
	if !found {
		return nil, notFound("trade", id)
	}

	if !trade.IsOpen() {
		return nil, fmt.Errorf("MockDatabase: trade %d: %w", id, ErrTradeNotOpen)
	}

	closedAt := close.ClosedAt
	trade.Status = TradeStatusClosed
	trade.ClosePrice = close.ClosePrice
	trade.RealizedPnl = close.RealizedPnl
	trade.ClosedBy = close.ClosedBy
	trade.ClosedAt = &closedAt

	if trade.AccountKind == AccountKindTrading {
		if acc, found := m.accounts[trade.AccountID]; found {
			acc.Balance = acc.Balance.Add(decimal.NewFromFloat(close.RealizedPnl))
		}
	}

	return clone(trade), nil
}

func (m *MockDatabase) UpdateTradeStops(ctx context.Context, id uint, stopLoss, takeProfit *float64) (*Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	trade, found := m.trades[id]
	if !found {
		return nil, notFound("trade", id)
	}

	if !trade.IsOpen() {
		return nil, fmt.Errorf("MockDatabase: trade %d: %w", id, ErrTradeNotOpen)
	}

	trade.StopLoss = stopLoss
	trade.TakeProfit = takeProfit
	return clone(trade), nil
}

// Masters and followers

func (m *MockDatabase) CreateMasterTrader(ctx context.Context, master *MasterTrader) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.masters {
		if existing.TradingAccountID == master.TradingAccountID {
			return fmt.Errorf("MockDatabase: master for account %d: %w", master.TradingAccountID, ErrDuplicateRecord)
		}
	}

	master.ID = m.newID()
	stamp(&master.CreatedAt, &master.UpdatedAt)
	m.masters[master.ID] = clone(master)
	return nil
}

func (m *MockDatabase) GetMasterTrader(ctx context.Context, id uint) (*MasterTrader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	master, found := m.masters[id]
	if !found {
		return nil, notFound("master", id)
	}

	return clone(master), nil
}

func (m *MockDatabase) GetMasterTraderByAccount(ctx context.Context, accountID uint) (*MasterTrader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, master := range m.masters {
		if master.TradingAccountID == accountID {
			return clone(master), nil
		}
	}

	return nil, notFound("master for account", accountID)
}

func (m *MockDatabase) SetMasterTraderStatus(ctx context.Context, id uint, status MasterTraderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	master, found := m.masters[id]
	if !found {
		return notFound("master", id)
	}

	master.Status = status
	return nil
}

func (m *MockDatabase) AddMasterCopiedVolume(ctx context.Context, id uint, volume float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	master, found := m.masters[id]
	if !found {
		return notFound("master", id)
	}

	master.TotalCopiedVolume += volume
	return nil
}

func (m *MockDatabase) WithdrawMasterCommission(ctx context.Context, id uint, amount decimal.Decimal) (*MasterWithdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	master, found := m.masters[id]
	if !found {
		return nil, notFound("master", id)
	}

	acc, found := m.accounts[master.TradingAccountID]
	if !found {
		return nil, notFound("account", master.TradingAccountID)
	}

	if master.PendingCommission.LessThan(amount) {
		return nil, fmt.Errorf("MockDatabase: master %d pending commission: %w", id, ErrInsufficientFunds)
	}

	master.PendingCommission = master.PendingCommission.Sub(amount)
	master.TotalCommissionWithdrawn = master.TotalCommissionWithdrawn.Add(amount)
	acc.Balance = acc.Balance.Add(amount)

	return &MasterWithdrawal{
		Amount:               amount,
		NewPendingCommission: master.PendingCommission,
		NewAccountBalance:    acc.Balance,
	}, nil
}

func (m *MockDatabase) CreateCopyRelationship(ctx context.Context, relationship *CopyRelationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.relationships {
		if r.FollowerUserID == relationship.FollowerUserID && r.MasterID == relationship.MasterID && r.FollowerAccountID == relationship.FollowerAccountID {
			return fmt.Errorf("MockDatabase: copy relationship: %w", ErrDuplicateRecord)
		}
	}

	relationship.ID = m.newID()
	stamp(&relationship.CreatedAt, &relationship.UpdatedAt)
	m.relationships[relationship.ID] = clone(relationship)
	return nil
}

func (m *MockDatabase) GetCopyRelationship(ctx context.Context, id uint) (*CopyRelationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, found := m.relationships[id]
	if !found {
		return nil, notFound("copy relationship", id)
	}

	return clone(r), nil
}

func (m *MockDatabase) ListActiveFollowers(ctx context.Context, masterID uint) ([]*CopyRelationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*CopyRelationship, 0)
	for _, r := range m.relationships {
		if r.MasterID == masterID && r.Status == CopyRelationshipStatusActive {
			out = append(out, clone(r))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockDatabase) TransitionCopyRelationship(ctx context.Context, id uint, from []CopyRelationshipStatus, to CopyRelationshipStatus, at time.Time) (*CopyRelationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, found := m.relationships[id]
	if !found {
		return nil, notFound("copy relationship", id)
	}

	allowed := false
	for _, status := range from {
		if r.Status == status {
			allowed = true
			break
		}
	}

	if !allowed {
		return nil, fmt.Errorf("MockDatabase: copy relationship %d is %s: %w", id, r.Status, ErrInvalidTransition)
	}

	r.Status = to
	switch to {
	case CopyRelationshipStatusPaused:
		r.PausedAt = &at
	case CopyRelationshipStatusActive:
		r.PausedAt = nil
	case CopyRelationshipStatusStopped:
		r.StoppedAt = &at
	}

	return clone(r), nil
}

func (m *MockDatabase) ApplyFollowerStats(ctx context.Context, id uint, delta FollowerStatsDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, found := m.relationships[id]
	if !found {
		return notFound("copy relationship", id)
	}

	r.TotalCopiedTrades += delta.TotalCopiedTrades
	r.ActiveCopiedTrades += delta.ActiveCopiedTrades
	r.TotalProfit += delta.TotalProfit
	r.TotalLoss += delta.TotalLoss
	r.DailyProfit += delta.DailyProfit
	r.DailyLoss += delta.DailyLoss
	r.TotalCommissionPaid = r.TotalCommissionPaid.Add(delta.TotalCommissionPaid)
	return nil
}

func (m *MockDatabase) ResetFollowerDailyStats(ctx context.Context, resetAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := TradingDayOf(resetAt)

	var count int64
	for _, r := range m.relationships {
		if TradingDayOf(r.LastDailyReset) == day {
			continue
		}

		r.DailyProfit = 0
		r.DailyLoss = 0
		r.LastDailyReset = resetAt
		count++
	}

	return count, nil
}

// Copy trade records

func (m *MockDatabase) CopyTradeExists(ctx context.Context, masterTradeID, masterID uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.copyTrades {
		if r.MasterTradeID == masterTradeID && r.MasterID == masterID {
			return true, nil
		}
	}

	return false, nil
}

func (m *MockDatabase) GetCopyTradeRecord(ctx context.Context, masterTradeID, followerID uint) (*CopyTradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.copyTrades {
		if r.MasterTradeID == masterTradeID && r.FollowerID == followerID {
			return clone(r), nil
		}
	}

	return nil, notFound("copy trade for master trade", masterTradeID)
}

func (m *MockDatabase) InsertCopyTradeRecord(ctx context.Context, record *CopyTradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.copyTrades {
		if r.MasterTradeID == record.MasterTradeID && r.FollowerID == record.FollowerID {
			return fmt.Errorf("MockDatabase: copy trade %d/%d: %w", record.MasterTradeID, record.FollowerID, ErrDuplicateRecord)
		}
	}

	record.ID = m.newID()
	stamp(&record.CreatedAt, &record.UpdatedAt)
	m.copyTrades[record.ID] = clone(record)
	return nil
}

func (m *MockDatabase) MarkCopyTradeOpen(ctx context.Context, id uint, followerTradeID uint, followerOpenPrice float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, found := m.copyTrades[id]
	if !found {
		return notFound("copy trade", id)
	}

	if r.Status != CopyTradeStatusPending {
		return fmt.Errorf("MockDatabase: copy trade %d is %s: %w", id, r.Status, ErrInvalidTransition)
	}

	r.Status = CopyTradeStatusOpen
	r.FollowerTradeID = &followerTradeID
	r.FollowerOpenPrice = followerOpenPrice
	return nil
}

func (m *MockDatabase) MarkCopyTradeFailed(ctx context.Context, id uint, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, found := m.copyTrades[id]
	if !found {
		return notFound("copy trade", id)
	}

	if r.Status != CopyTradeStatusPending {
		return fmt.Errorf("MockDatabase: copy trade %d is %s: %w", id, r.Status, ErrInvalidTransition)
	}

	r.Status = CopyTradeStatusFailed
	r.FailureReason = reason
	return nil
}

func (m *MockDatabase) filterCopyTrades(keep func(r *CopyTradeRecord) bool) []*CopyTradeRecord {
	out := make([]*CopyTradeRecord, 0)
	for _, r := range m.copyTrades {
		if keep(r) {
			out = append(out, clone(r))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MockDatabase) ListOpenCopyTrades(ctx context.Context, masterTradeID uint) ([]*CopyTradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.filterCopyTrades(func(r *CopyTradeRecord) bool {
		return r.MasterTradeID == masterTradeID && r.Status == CopyTradeStatusOpen
	}), nil
}

func (m *MockDatabase) ListOpenCopyTradesByMaster(ctx context.Context, masterID uint) ([]*CopyTradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.filterCopyTrades(func(r *CopyTradeRecord) bool {
		return r.MasterID == masterID && r.Status == CopyTradeStatusOpen
	}), nil
}

func (m *MockDatabase) CloseCopyTrade(ctx context.Context, id uint, close CopyTradeClose) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, found := m.copyTrades[id]
	if !found {
		return notFound("copy trade", id)
	}

	if r.Status != CopyTradeStatusOpen {
		return fmt.Errorf("MockDatabase: copy trade %d: %w", id, ErrCopyTradeNotOpen)
	}

	closedAt := close.ClosedAt
	followerClosePrice := close.FollowerClosePrice
	r.Status = CopyTradeStatusClosed
	r.MasterClosePrice = close.MasterClosePrice
	r.FollowerClosePrice = &followerClosePrice
	r.FollowerPnl = close.FollowerPnl
	r.ClosedAt = &closedAt
	r.TradingDay = TradingDayOf(closedAt)
	return nil
}

func (m *MockDatabase) ListClosedCopyTradesByMaster(ctx context.Context, masterID uint) ([]*CopyTradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.filterCopyTrades(func(r *CopyTradeRecord) bool {
		return r.MasterID == masterID && r.Status == CopyTradeStatusClosed
	}), nil
}

func (m *MockDatabase) ListUnsettledCopyTrades(ctx context.Context, tradingDay string) ([]*CopyTradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.filterCopyTrades(func(r *CopyTradeRecord) bool {
		return r.Status == CopyTradeStatusClosed && !r.CommissionApplied && r.TradingDay == tradingDay
	}), nil
}

func (m *MockDatabase) ClaimCopyTradesForSettlement(ctx context.Context, ids []uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		r, found := m.copyTrades[id]
		if !found || r.Status != CopyTradeStatusClosed || r.CommissionApplied {
			return fmt.Errorf("MockDatabase: copy trade %d already claimed: %w", id, ErrDuplicateRecord)
		}
	}

	for _, id := range ids {
		m.copyTrades[id].CommissionApplied = true
	}

	return nil
}

func (m *MockDatabase) settingsLocked() *CopySettings {
	if m.copySettings == nil {
		m.copySettings = &CopySettings{DefaultAdminSharePercentage: 30}
		m.copySettings.ID = m.newID()
	}

	return m.copySettings
}

func (m *MockDatabase) SettleCopyCommission(ctx context.Context, record *CopyCommissionRecord) (*CopyCommissionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure("SettleCopyCommission"); err != nil {
		return nil, err
	}

	acc, found := m.accounts[record.FollowerAccountID]
	if !found {
		return nil, notFound("account", record.FollowerAccountID)
	}

	master, found := m.masters[record.MasterID]
	if !found {
		return nil, notFound("master", record.MasterID)
	}

	rel, found := m.relationships[record.FollowerID]
	if !found {
		return nil, notFound("copy relationship", record.FollowerID)
	}

	out := clone(record)
	if acc.Balance.GreaterThanOrEqual(out.TotalCommission) {
		acc.Balance = acc.Balance.Sub(out.TotalCommission)
		master.PendingCommission = master.PendingCommission.Add(out.MasterShare)
		master.TotalCommissionEarned = master.TotalCommissionEarned.Add(out.MasterShare)
		settings := m.settingsLocked()
		settings.AdminCopyPool = settings.AdminCopyPool.Add(out.AdminShare)
		rel.TotalCommissionPaid = rel.TotalCommissionPaid.Add(out.TotalCommission)
		out.Status = CopyCommissionStatusDeducted
	} else {
		out.Status = CopyCommissionStatusFailed
		out.DeductionError = "Insufficient balance"
		out.DeductedAt = nil
	}

	out.ID = m.newID()
	stamp(&out.CreatedAt, &out.UpdatedAt)
	m.copyCommissions[out.ID] = clone(out)
	return out, nil
}

func (m *MockDatabase) ListCopyCommissionRecords(ctx context.Context, tradingDay string) ([]*CopyCommissionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*CopyCommissionRecord, 0)
	for _, r := range m.copyCommissions {
		if r.TradingDay == tradingDay {
			out = append(out, clone(r))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockDatabase) GetCopySettings(ctx context.Context) (*CopySettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return clone(m.settingsLocked()), nil
}

func (m *MockDatabase) SaveCopySettings(ctx context.Context, settings *CopySettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.settingsLocked()
	settings.ID = current.ID
	m.copySettings = clone(settings)
	return nil
}

// IB users, plans and commissions

func (m *MockDatabase) CreateIBUser(ctx context.Context, user *IBUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, found := m.ibUsers[user.UserID]; found {
		return fmt.Errorf("MockDatabase: ib user %d: %w", user.UserID, ErrDuplicateRecord)
	}

	if err := m.checkReferralCodeLocked(user); err != nil {
		return err
	}

	user.ID = m.newID()
	stamp(&user.CreatedAt, &user.UpdatedAt)
	m.ibUsers[user.UserID] = clone(user)
	return nil
}

func (m *MockDatabase) checkReferralCodeLocked(user *IBUser) error {
	if user.ReferralCode == nil {
		return nil
	}

	for _, u := range m.ibUsers {
		if u.UserID != user.UserID && u.ReferralCode != nil && *u.ReferralCode == *user.ReferralCode {
			return fmt.Errorf("MockDatabase: referral code %s: %w", *user.ReferralCode, ErrDuplicateRecord)
		}
	}

	return nil
}

func (m *MockDatabase) GetIBUser(ctx context.Context, userID uint) (*IBUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, found := m.ibUsers[userID]
	if !found {
		return nil, notFound("ib user", userID)
	}

	return clone(u), nil
}

func (m *MockDatabase) GetIBUserByReferralCode(ctx context.Context, code string) (*IBUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.ibUsers {
		if u.ReferralCode != nil && *u.ReferralCode == code {
			return clone(u), nil
		}
	}

	return nil, notFound("ib user with referral code", code)
}

func (m *MockDatabase) SaveIBUser(ctx context.Context, user *IBUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, found := m.ibUsers[user.UserID]
	if !found {
		return notFound("ib user", user.UserID)
	}

	if err := m.checkReferralCodeLocked(user); err != nil {
		return err
	}

	saved := clone(user)
	saved.ID = existing.ID
	saved.WalletBalance = existing.WalletBalance
	m.ibUsers[user.UserID] = saved
	return nil
}

func (m *MockDatabase) TransitionIBStatus(ctx context.Context, userID uint, from []IBStatus, to IBStatus, planID *uint) (*IBUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, found := m.ibUsers[userID]
	if !found {
		return nil, notFound("ib user", userID)
	}

	allowed := false
	for _, status := range from {
		if u.IBStatus == status {
			allowed = true
			break
		}
	}

	if !allowed {
		return nil, fmt.Errorf("MockDatabase: ib user %d is %q: %w", userID, u.IBStatus, ErrInvalidTransition)
	}

	u.IBStatus = to
	if to == IBStatusActive {
		u.IsIB = true
	}

	if planID != nil {
		id := *planID
		u.IBPlanID = &id
	}

	return clone(u), nil
}

func (m *MockDatabase) ListDirectReferrals(ctx context.Context, parentUserID uint) ([]*IBUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*IBUser, 0)
	for _, u := range m.ibUsers {
		if u.ParentIBID != nil && *u.ParentIBID == parentUserID {
			out = append(out, clone(u))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func clonePlan(p *CommissionPlan) *CommissionPlan {
	c := clone(p)
	c.Levels = append([]LevelRate(nil), p.Levels...)
	return c
}

func (m *MockDatabase) CreateCommissionPlan(ctx context.Context, plan *CommissionPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if plan.IsDefault {
		for _, p := range m.plans {
			p.IsDefault = false
		}
	}

	plan.ID = m.newID()
	stamp(&plan.CreatedAt, &plan.UpdatedAt)
	m.plans[plan.ID] = clonePlan(plan)
	return nil
}

func (m *MockDatabase) GetCommissionPlan(ctx context.Context, id uint) (*CommissionPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, found := m.plans[id]
	if !found {
		return nil, notFound("commission plan", id)
	}

	return clonePlan(p), nil
}

func (m *MockDatabase) GetDefaultCommissionPlan(ctx context.Context) (*CommissionPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.plans {
		if p.IsDefault && p.IsActive {
			return clonePlan(p), nil
		}
	}

	return nil, notFound("commission plan", "default")
}

func (m *MockDatabase) CommissionRecordExists(ctx context.Context, tradeID, ibUserID uint, level int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.commissions {
		if r.TradeID == tradeID && r.IBUserID == ibUserID && r.Level == level {
			return true, nil
		}
	}

	return false, nil
}

func (m *MockDatabase) CreditCommission(ctx context.Context, record *CommissionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure("CreditCommission"); err != nil {
		return err
	}

	for _, r := range m.commissions {
		if r.TradeID == record.TradeID && r.IBUserID == record.IBUserID && r.Level == record.Level {
			return fmt.Errorf("MockDatabase: commission %d/%d/%d: %w", record.TradeID, record.IBUserID, record.Level, ErrDuplicateRecord)
		}
	}

	record.ID = m.newID()
	stamp(&record.CreatedAt, &record.UpdatedAt)
	m.commissions[record.ID] = clone(record)

	wallet := m.walletLocked(record.IBUserID)
	wallet.Balance = wallet.Balance.Add(record.CommissionAmount)
	wallet.TotalEarned = wallet.TotalEarned.Add(record.CommissionAmount)
	return nil
}

func (m *MockDatabase) walletLocked(ibUserID uint) *IBWallet {
	wallet, found := m.wallets[ibUserID]
	if !found {
		wallet = &IBWallet{IBUserID: ibUserID}
		wallet.ID = m.newID()
		m.wallets[ibUserID] = wallet
	}

	return wallet
}

func (m *MockDatabase) GetCommissionRecord(ctx context.Context, id uint) (*CommissionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, found := m.commissions[id]
	if !found {
		return nil, notFound("commission", id)
	}

	return clone(r), nil
}

func (m *MockDatabase) ReverseCommission(ctx context.Context, id uint, reversal CommissionReversal) (*CommissionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, found := m.commissions[id]
	if !found {
		return nil, notFound("commission", id)
	}

	if r.Status != CommissionStatusCredited {
		return nil, fmt.Errorf("MockDatabase: commission %d: %w", id, ErrCommissionAlreadyReversed)
	}

	reversedAt := reversal.ReversedAt
	reversedBy := reversal.ReversedBy
	r.Status = CommissionStatusReversed
	r.ReversedAt = &reversedAt
	r.ReversedBy = &reversedBy
	r.ReversalReason = reversal.Reason

	wallet := m.walletLocked(r.IBUserID)
	wallet.Balance = wallet.Balance.Sub(r.CommissionAmount)

	return clone(r), nil
}

func (m *MockDatabase) ListCommissionRecordsByIB(ctx context.Context, ibUserID uint) ([]*CommissionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*CommissionRecord, 0)
	for _, r := range m.commissions {
		if r.IBUserID == ibUserID {
			out = append(out, clone(r))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockDatabase) GetIBWallet(ctx context.Context, ibUserID uint) (*IBWallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wallet, found := m.wallets[ibUserID]
	if !found {
		return nil, notFound("ib wallet", ibUserID)
	}

	return clone(wallet), nil
}

func (m *MockDatabase) WithdrawIBWallet(ctx context.Context, ibUserID uint, amount decimal.Decimal) (*IBWithdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wallet, found := m.wallets[ibUserID]
	if !found {
		return nil, notFound("ib wallet", ibUserID)
	}

	user, found := m.ibUsers[ibUserID]
	if !found {
		return nil, notFound("ib user", ibUserID)
	}

	if wallet.Balance.LessThan(amount) {
		return nil, fmt.Errorf("MockDatabase: ib wallet %d: %w", ibUserID, ErrInsufficientFunds)
	}

	wallet.Balance = wallet.Balance.Sub(amount)
	wallet.TotalWithdrawn = wallet.TotalWithdrawn.Add(amount)
	user.WalletBalance = user.WalletBalance.Add(amount)

	return &IBWithdrawal{
		Amount:               amount,
		NewIBWalletBalance:   wallet.Balance,
		NewMainWalletBalance: user.WalletBalance,
	}, nil
}

// Challenges

func cloneChallengeAccount(a *ChallengeAccount) *ChallengeAccount {
	c := clone(a)
	c.Violations = append([]Violation{}, a.Violations...)
	return c
}

func cloneChallenge(ch *Challenge) *Challenge {
	c := clone(ch)
	c.Rules.AllowedSymbols = append([]string(nil), ch.Rules.AllowedSymbols...)
	c.Rules.AllowedSegments = append([]string(nil), ch.Rules.AllowedSegments...)
	return c
}

func (m *MockDatabase) CreateChallenge(ctx context.Context, challenge *Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	challenge.ID = m.newID()
	stamp(&challenge.CreatedAt, &challenge.UpdatedAt)
	m.challenges[challenge.ID] = cloneChallenge(challenge)
	return nil
}

func (m *MockDatabase) GetChallenge(ctx context.Context, id uint) (*Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, found := m.challenges[id]
	if !found {
		return nil, notFound("challenge", id)
	}

	return cloneChallenge(ch), nil
}

func (m *MockDatabase) createChallengeAccountLocked(account *ChallengeAccount) error {
	for _, a := range m.challengeAccounts {
		if a.AccountNumber == account.AccountNumber {
			return fmt.Errorf("MockDatabase: challenge account %s: %w", account.AccountNumber, ErrDuplicateRecord)
		}
	}

	if account.Version == 0 {
		account.Version = 1
	}

	account.ID = m.newID()
	stamp(&account.CreatedAt, &account.UpdatedAt)
	m.challengeAccounts[account.ID] = cloneChallengeAccount(account)
	return nil
}

func (m *MockDatabase) CreateChallengeAccount(ctx context.Context, account *ChallengeAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.createChallengeAccountLocked(account)
}

func (m *MockDatabase) GetChallengeAccount(ctx context.Context, id uint) (*ChallengeAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, found := m.challengeAccounts[id]
	if !found {
		return nil, notFound("challenge account", id)
	}

	return cloneChallengeAccount(a), nil
}

func (m *MockDatabase) ListChallengeAccounts(ctx context.Context, statuses ...ChallengeAccountStatus) ([]*ChallengeAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*ChallengeAccount, 0)
	for _, a := range m.challengeAccounts {
		keep := len(statuses) == 0
		for _, s := range statuses {
			if a.Status == s {
				keep = true
				break
			}
		}

		if keep {
			out = append(out, cloneChallengeAccount(a))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockDatabase) saveChallengeAccountLocked(account *ChallengeAccount) error {
	stored, found := m.challengeAccounts[account.ID]
	if !found {
		return notFound("challenge account", account.ID)
	}

	if stored.Version != account.Version {
		return fmt.Errorf("MockDatabase: challenge account %d version %d: %w", account.ID, account.Version, ErrStaleChallengeAccount)
	}

	account.Version++
	account.UpdatedAt = time.Now()
	m.challengeAccounts[account.ID] = cloneChallengeAccount(account)
	return nil
}

func (m *MockDatabase) SaveChallengeAccount(ctx context.Context, account *ChallengeAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure("SaveChallengeAccount"); err != nil {
		return err
	}

	return m.saveChallengeAccountLocked(account)
}

func (m *MockDatabase) FundChallengeAccount(ctx context.Context, passed *ChallengeAccount, funded *ChallengeAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, found := m.challengeAccounts[passed.ID]
	if !found {
		return notFound("challenge account", passed.ID)
	}

	if stored.Version != passed.Version {
		return fmt.Errorf("MockDatabase: challenge account %d version %d: %w", passed.ID, passed.Version, ErrStaleChallengeAccount)
	}

	if err := m.createChallengeAccountLocked(funded); err != nil {
		return err
	}

	fundedID := funded.ID
	passed.FundedAccountID = &fundedID
	return m.saveChallengeAccountLocked(passed)
}

func processedEventKey(tradeID uint, eventType TradeEventType) string {
	return fmt.Sprintf("%d:%s", tradeID, eventType)
}

func (m *MockDatabase) ClaimTradeEvent(ctx context.Context, tradeID uint, eventType TradeEventType) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := processedEventKey(tradeID, eventType)
	if _, found := m.processedEvents[key]; found {
		return fmt.Errorf("MockDatabase: trade event %s: %w", key, ErrDuplicateRecord)
	}

	m.processedEvents[key] = struct{}{}
	return nil
}

func (m *MockDatabase) ReleaseTradeEvent(ctx context.Context, tradeID uint, eventType TradeEventType) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.processedEvents, processedEventKey(tradeID, eventType))
	return nil
}
