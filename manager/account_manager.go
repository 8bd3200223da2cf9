// Package manager owns the per-account runtime state and composes the risk
// components into one engine surface the API layer talks to.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"propguard/account"
	"propguard/alert"
	"propguard/cascade"
	"propguard/checkpoint"
	"propguard/config"
	"propguard/db"
	"propguard/emotion"
	"propguard/featureflag"
	"propguard/metrics"
	"propguard/notify"
	"propguard/phase"
	"propguard/recovery"
)

// tradeHistoryCap bounds the journal window fed into the emotion scorer.
const tradeHistoryCap = 10

// ErrAccountNotFound marks lookups for unregistered account IDs.
var ErrAccountNotFound = errors.New("account not found")

// EventRecorder receives fired alert events for history. The Postgres flag
// store implements it; the in-memory store does not.
type EventRecorder interface {
	RecordEvent(event alert.Event)
}

// EventHistory reads recorded alert events back, newest first.
type EventHistory interface {
	Events(ctx context.Context, accountID string, limit int) ([]db.StoredEvent, error)
}

// ErrNoEventHistory marks stores that cannot read back alert events.
var ErrNoEventHistory = errors.New("alert event history not available")

type managedAccount struct {
	mu sync.RWMutex

	acct           account.TradingAccount
	name           string
	payoutSplitPct float64
	challengeStart time.Time
	challengeDays  int

	// trades holds the most recent journal entries, newest first.
	trades  []emotion.TradeRecord
	checkIn *emotion.CheckIn
}

// Snapshot is a consistent read of one account's state.
type Snapshot struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Account  account.TradingAccount `json:"account"`
	Metrics  account.Metrics        `json:"metrics"`
	Trades   []emotion.TradeRecord  `json:"trades"`
	HasCheck bool                   `json:"has_check_in"`
}

// Decision is the outcome of a gated pre-trade check.
type Decision struct {
	Assessment checkpoint.Assessment `json:"assessment"`
	Allowed    bool                  `json:"allowed"`
	GateActive bool                  `json:"gate_active"`
}

// AccountManager tracks every configured account and routes operations to
// the risk components. All methods are safe for concurrent use.
type AccountManager struct {
	mu       sync.RWMutex
	accounts map[string]*managedAccount

	ladder  *alert.Ladder
	flags   *featureflag.RuntimeFlags
	events  EventRecorder
	history EventHistory
	cascade cascade.Policy
	phase   phase.Policy
}

// New wires an account manager. A nil store falls back to the in-memory
// flag store; nil flags to the defaults.
func New(store alert.FlagStore, sink notify.Sink, flags *featureflag.RuntimeFlags) *AccountManager {
	if flags == nil {
		flags = featureflag.NewRuntimeFlags(featureflag.DefaultState())
	}
	if store == nil {
		store = alert.NewMemStore(flags)
	}

	m := &AccountManager{
		accounts: make(map[string]*managedAccount),
		ladder:   alert.NewLadder(store, sink, flags),
		flags:    flags,
		cascade:  cascade.DefaultPolicy(),
		phase:    phase.DefaultPolicy(),
	}
	if recorder, ok := store.(EventRecorder); ok {
		m.events = recorder
	}
	if history, ok := store.(EventHistory); ok {
		m.history = history
	}
	return m
}

// NewFromConfig builds a manager with the configured accounts and policy
// knobs already applied.
func NewFromConfig(cfg *config.Config, store alert.FlagStore, sink notify.Sink, flags *featureflag.RuntimeFlags) (*AccountManager, error) {
	m := New(store, sink, flags)

	if cfg.Policy.CascadeHorizon > 0 {
		m.cascade.Horizon = cfg.Policy.CascadeHorizon
	}
	if cfg.Policy.CascadeDangerSteps > 0 {
		m.cascade.DangerSteps = cfg.Policy.CascadeDangerSteps
	}
	if cfg.Policy.CascadeWarningSteps > 0 {
		m.cascade.WarningSteps = cfg.Policy.CascadeWarningSteps
	}
	if cfg.Policy.PhaseSlackFactor > 0 {
		m.phase.SlackFactor = cfg.Policy.PhaseSlackFactor
	}

	for _, acctCfg := range cfg.Accounts {
		if err := m.AddAccount(acctCfg); err != nil {
			return nil, fmt.Errorf("add account %q: %w", acctCfg.ID, err)
		}
	}
	return m, nil
}

// AddAccount registers a new tracked account.
func (m *AccountManager) AddAccount(cfg config.AccountConfig) error {
	acct := account.TradingAccount{
		AccountSize:         cfg.AccountSize,
		CurrentBalance:      cfg.CurrentBalance,
		DayStartBalance:     cfg.DayStartBalance,
		MaxDailyDrawdownPct: cfg.MaxDailyDrawdownPct,
		MaxTotalDrawdownPct: cfg.MaxTotalDrawdownPct,
		ProfitTargetPct:     cfg.ProfitTargetPct,
	}
	if err := acct.Validate(); err != nil {
		return err
	}

	managed := &managedAccount{
		acct:           acct,
		name:           cfg.Name,
		payoutSplitPct: cfg.PayoutSplitPct,
		challengeDays:  cfg.ChallengeDays,
	}
	if start, ok := cfg.ChallengeStartTime(); ok {
		managed.challengeStart = start
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accounts[cfg.ID]; exists {
		return fmt.Errorf("account id %q already registered", cfg.ID)
	}
	m.accounts[cfg.ID] = managed
	log.Printf("✓ Account %q (%s) registered", cfg.ID, cfg.Name)
	return nil
}

func (m *AccountManager) get(id string) (*managedAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	managed, exists := m.accounts[id]
	if !exists {
		return nil, fmt.Errorf("account id %q: %w", id, ErrAccountNotFound)
	}
	return managed, nil
}

// AccountIDs lists the registered account identifiers.
func (m *AccountManager) AccountIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	return ids
}

// FeatureFlags exposes the runtime toggles for the admin API.
func (m *AccountManager) FeatureFlags() *featureflag.RuntimeFlags {
	return m.flags
}

// Snapshot returns the current account state with derived metrics.
func (m *AccountManager) Snapshot(id string) (Snapshot, error) {
	managed, err := m.get(id)
	if err != nil {
		return Snapshot{}, err
	}

	managed.mu.RLock()
	defer managed.mu.RUnlock()
	trades := make([]emotion.TradeRecord, len(managed.trades))
	copy(trades, managed.trades)
	return Snapshot{
		ID:       id,
		Name:     managed.name,
		Account:  managed.acct,
		Metrics:  account.ComputeMetrics(managed.acct),
		Trades:   trades,
		HasCheck: managed.checkIn != nil,
	}, nil
}

// RecordBalance applies a balance update and re-evaluates the alert ladder.
func (m *AccountManager) RecordBalance(ctx context.Context, id string, balance float64) (account.Metrics, alert.Result, error) {
	managed, err := m.get(id)
	if err != nil {
		return account.Metrics{}, alert.Result{}, err
	}
	if balance <= 0 {
		return account.Metrics{}, alert.Result{}, fmt.Errorf("balance must be positive, got %.2f", balance)
	}

	managed.mu.Lock()
	managed.acct.CurrentBalance = balance
	acct := managed.acct
	managed.mu.Unlock()

	return m.evaluate(ctx, id, acct)
}

// StartNewDay resets the daily anchor to the current balance, re-arming the
// daily rungs on the next evaluation.
func (m *AccountManager) StartNewDay(ctx context.Context, id string) (account.Metrics, alert.Result, error) {
	managed, err := m.get(id)
	if err != nil {
		return account.Metrics{}, alert.Result{}, err
	}

	managed.mu.Lock()
	managed.acct.DayStartBalance = managed.acct.CurrentBalance
	managed.checkIn = nil
	acct := managed.acct
	managed.mu.Unlock()

	return m.evaluate(ctx, id, acct)
}

// RecordTrade journals a closed trade, applies its profit or loss to the
// balance, and re-evaluates the ladder.
func (m *AccountManager) RecordTrade(ctx context.Context, id string, trade emotion.TradeRecord) (account.Metrics, alert.Result, error) {
	managed, err := m.get(id)
	if err != nil {
		return account.Metrics{}, alert.Result{}, err
	}
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = time.Now().UTC()
	}
	if trade.Result == "" {
		switch {
		case trade.ProfitLoss > 0:
			trade.Result = emotion.ResultWin
		case trade.ProfitLoss < 0:
			trade.Result = emotion.ResultLoss
		default:
			trade.Result = emotion.ResultOpen
		}
	}

	managed.mu.Lock()
	managed.acct.CurrentBalance += trade.ProfitLoss
	managed.trades = append([]emotion.TradeRecord{trade}, managed.trades...)
	if len(managed.trades) > tradeHistoryCap {
		managed.trades = managed.trades[:tradeHistoryCap]
	}
	acct := managed.acct
	managed.mu.Unlock()

	return m.evaluate(ctx, id, acct)
}

func (m *AccountManager) evaluate(ctx context.Context, id string, acct account.TradingAccount) (account.Metrics, alert.Result, error) {
	mtr := account.ComputeMetrics(acct)
	res := m.ladder.Evaluate(ctx, id, mtr)

	if m.events != nil && m.flags.PersistenceEnabled() {
		for _, event := range res.Fired {
			m.events.RecordEvent(event)
		}
	}
	return mtr, res, nil
}

// EvaluateLadder re-runs the alert ladder without mutating account state.
func (m *AccountManager) EvaluateLadder(ctx context.Context, id string) (account.Metrics, alert.Result, error) {
	managed, err := m.get(id)
	if err != nil {
		return account.Metrics{}, alert.Result{}, err
	}

	managed.mu.RLock()
	acct := managed.acct
	managed.mu.RUnlock()

	return m.evaluate(ctx, id, acct)
}

// SubmitCheckIn stores today's emotional self-assessment.
func (m *AccountManager) SubmitCheckIn(id string, checkIn emotion.CheckIn) error {
	managed, err := m.get(id)
	if err != nil {
		return err
	}
	if checkIn.Date.IsZero() {
		checkIn.Date = time.Now().UTC()
	}

	managed.mu.Lock()
	managed.checkIn = &checkIn
	managed.mu.Unlock()
	return nil
}

// EmotionScore evaluates the emotional risk state from the day's check-in
// and the recent trade journal.
func (m *AccountManager) EmotionScore(id string) (emotion.Score, error) {
	managed, err := m.get(id)
	if err != nil {
		return emotion.Score{}, err
	}

	managed.mu.RLock()
	checkIn := managed.checkIn
	trades := make([]emotion.TradeRecord, len(managed.trades))
	copy(trades, managed.trades)
	managed.mu.RUnlock()

	return emotion.Evaluate(checkIn, trades)
}

// CheckTrade runs the pre-trade checkpoint. When the hard gate flag is off
// the assessment is still produced but never blocks.
func (m *AccountManager) CheckTrade(id string, trade checkpoint.ProposedTrade, acknowledged bool) (Decision, error) {
	managed, err := m.get(id)
	if err != nil {
		return Decision{}, err
	}

	managed.mu.RLock()
	acct := managed.acct
	managed.mu.RUnlock()

	assessment, err := checkpoint.Evaluate(trade, acct, account.ComputeMetrics(acct))
	if err != nil {
		return Decision{}, err
	}

	gateActive := m.flags.HardGateEnabled()
	allowed := assessment.Permitted(acknowledged)
	if !gateActive {
		allowed = true
	}
	if !allowed {
		metrics.IncCheckpointRejections(id)
	}

	return Decision{Assessment: assessment, Allowed: allowed, GateActive: gateActive}, nil
}

// Cascade projects consecutive losses at the given risk settings.
func (m *AccountManager) Cascade(id string, riskPerTradePct, lotMultiplier float64) (cascade.Projection, error) {
	managed, err := m.get(id)
	if err != nil {
		return cascade.Projection{}, err
	}
	if lotMultiplier <= 0 {
		lotMultiplier = 1
	}

	managed.mu.RLock()
	acct := managed.acct
	managed.mu.RUnlock()

	return cascade.Simulate(cascade.Input{
		CurrentBalance:      acct.CurrentBalance,
		AccountSize:         acct.AccountSize,
		MaxDailyDrawdownPct: acct.MaxDailyDrawdownPct,
		MaxTotalDrawdownPct: acct.MaxTotalDrawdownPct,
		RiskPerTradePct:     riskPerTradePct,
		LotSizeMultiplier:   lotMultiplier,
	}, m.cascade)
}

// RecoveryPlan builds drawdown recovery strategies for the account.
func (m *AccountManager) RecoveryPlan(id string) (recovery.Plan, error) {
	managed, err := m.get(id)
	if err != nil {
		return recovery.Plan{}, err
	}

	managed.mu.RLock()
	acct := managed.acct
	managed.mu.RUnlock()

	return recovery.BuildPlan(acct)
}

// PhaseProgress reports challenge progress. Accounts without a configured
// challenge return an error.
func (m *AccountManager) PhaseProgress(id string, now time.Time) (phase.Progress, error) {
	managed, err := m.get(id)
	if err != nil {
		return phase.Progress{}, err
	}

	managed.mu.RLock()
	acct := managed.acct
	start := managed.challengeStart
	days := managed.challengeDays
	managed.mu.RUnlock()

	if start.IsZero() {
		return phase.Progress{}, fmt.Errorf("account %q has no challenge configured", id)
	}
	return phase.TrackProgress(acct, start, days, now, m.phase)
}

// AlertEvents reads the persisted alert history for an account. Stores
// without history support return ErrNoEventHistory.
func (m *AccountManager) AlertEvents(ctx context.Context, id string, limit int) ([]db.StoredEvent, error) {
	if _, err := m.get(id); err != nil {
		return nil, err
	}
	if m.history == nil {
		return nil, ErrNoEventHistory
	}
	return m.history.Events(ctx, id, limit)
}

// Payouts projects payout scenarios and the scaling ladder for the account.
func (m *AccountManager) Payouts(id string) (phase.Projection, error) {
	managed, err := m.get(id)
	if err != nil {
		return phase.Projection{}, err
	}

	managed.mu.RLock()
	size := managed.acct.AccountSize
	split := managed.payoutSplitPct
	managed.mu.RUnlock()

	return phase.ProjectPayouts(size, split)
}
