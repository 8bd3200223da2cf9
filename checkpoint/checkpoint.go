// Package checkpoint gates a single proposed trade against the account's
// remaining drawdown budgets and a set of risk-hygiene rules.
package checkpoint

import (
	"fmt"

	"propguard/account"
)

// Direction of a proposed trade.
type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

// ProposedTrade describes the order a trader is about to submit.
type ProposedTrade struct {
	Pair         string    `json:"pair"`
	Direction    Direction `json:"direction"`
	LotSize      float64   `json:"lot_size"`
	StopLossPips float64   `json:"stop_loss_pips"`
	PipValue     float64   `json:"pip_value"` // currency per pip per lot
}

// RiskLevel grades the assessment outcome.
type RiskLevel string

const (
	LevelLow      RiskLevel = "low"
	LevelMedium   RiskLevel = "medium"
	LevelHigh     RiskLevel = "high"
	LevelCritical RiskLevel = "critical"
)

// Check is one named rule outcome. Critical checks guard hard limits;
// non-critical ones are hygiene advisories.
type Check struct {
	Label    string `json:"label"`
	Passed   bool   `json:"passed"`
	Critical bool   `json:"critical"`
}

// Assessment is the full checkpoint result for one proposed trade.
type Assessment struct {
	PotentialLoss float64   `json:"potential_loss"`
	RiskLevel     RiskLevel `json:"risk_level"`
	Checks        []Check   `json:"checks"`
	Warnings      []string  `json:"warnings"`
}

const (
	labelDailyLimit     = "Daily drawdown limit"
	labelTotalLimit     = "Total drawdown limit"
	labelReasonableRisk = "Risk under 2% of balance"
	labelRecoveryRoom   = "Room to recover after a loss"
	labelDailyBudget    = "Under half of today's budget"
)

func (p ProposedTrade) validate() error {
	if p.LotSize <= 0 {
		return fmt.Errorf("lot size must be positive, got %.2f", p.LotSize)
	}
	if p.StopLossPips <= 0 {
		return fmt.Errorf("stop loss pips must be positive, got %.2f", p.StopLossPips)
	}
	if p.PipValue <= 0 {
		return fmt.Errorf("pip value must be positive, got %.2f", p.PipValue)
	}
	return nil
}

// Evaluate runs every rule against the proposed trade. The metrics must come
// from the same account snapshot. A non-positive remaining budget fails the
// corresponding limit check outright; no rule ever divides by it.
func Evaluate(trade ProposedTrade, acct account.TradingAccount, m account.Metrics) (Assessment, error) {
	if err := trade.validate(); err != nil {
		return Assessment{}, err
	}
	if err := acct.Validate(); err != nil {
		return Assessment{}, err
	}

	potentialLoss := trade.LotSize * trade.StopLossPips * trade.PipValue

	dailyOK := potentialLoss < m.DailyRemaining
	totalOK := potentialLoss < m.TotalRemaining

	// A wiped-out balance cannot absorb any risk; count the whole trade
	// against it instead of dividing by a non-positive balance.
	riskPct := 100.0
	if acct.CurrentBalance > 0 {
		riskPct = potentialLoss / acct.CurrentBalance * 100
	}
	reasonableOK := riskPct <= 2

	// A second loss of the same size must not itself breach the total limit.
	roomAfterLoss := (acct.CurrentBalance - potentialLoss) - acct.TotalBreachLevel()
	recoveryOK := roomAfterLoss > potentialLoss

	// Share of today's remaining budget, guarded against exhausted budgets.
	budgetPct := 100.0
	if m.DailyRemaining > 0 {
		budgetPct = potentialLoss / m.DailyRemaining * 100
	}
	budgetOK := budgetPct <= 50

	a := Assessment{
		PotentialLoss: potentialLoss,
		Checks: []Check{
			{Label: labelDailyLimit, Passed: dailyOK, Critical: true},
			{Label: labelTotalLimit, Passed: totalOK, Critical: true},
			{Label: labelReasonableRisk, Passed: reasonableOK, Critical: false},
			{Label: labelRecoveryRoom, Passed: recoveryOK, Critical: false},
			{Label: labelDailyBudget, Passed: budgetOK, Critical: false},
		},
	}

	switch {
	case !dailyOK || !totalOK:
		a.RiskLevel = LevelCritical
	case budgetPct > 50 || !reasonableOK:
		a.RiskLevel = LevelHigh
	case budgetPct > 25:
		a.RiskLevel = LevelMedium
	default:
		a.RiskLevel = LevelLow
	}

	if !dailyOK {
		a.Warnings = append(a.Warnings, fmt.Sprintf(
			"potential loss %.2f meets or exceeds today's remaining budget %.2f", potentialLoss, m.DailyRemaining))
	}
	if !totalOK {
		a.Warnings = append(a.Warnings, fmt.Sprintf(
			"potential loss %.2f meets or exceeds the remaining lifetime budget %.2f", potentialLoss, m.TotalRemaining))
	}
	if !reasonableOK {
		a.Warnings = append(a.Warnings, fmt.Sprintf(
			"risking %.2f%% of balance on a single trade", riskPct))
	}
	if !recoveryOK {
		a.Warnings = append(a.Warnings, "an equal follow-up loss would breach the total limit")
	}
	if !budgetOK {
		a.Warnings = append(a.Warnings, fmt.Sprintf(
			"trade consumes %.1f%% of today's remaining budget", budgetPct))
	}

	return a, nil
}

// Permitted applies the hard gate: a critical assessment goes through only
// with the trader's explicit acknowledgement. Callers must not submit a
// trade the gate rejects.
func (a Assessment) Permitted(acknowledged bool) bool {
	if a.RiskLevel == LevelCritical {
		return acknowledged
	}
	for _, c := range a.Checks {
		if c.Critical && !c.Passed {
			return false
		}
	}
	return true
}
