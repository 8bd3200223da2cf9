// Package phase tracks progress through a prop-firm challenge phase and
// projects funded-account payouts.
package phase

import (
	"fmt"
	"time"

	"propguard/account"
)

// Policy carries the heuristic tracking constants. SlackFactor is the
// tolerance applied to time progress before a trader counts as behind;
// it is product policy, not a derived value.
type Policy struct {
	SlackFactor float64
}

// DefaultPolicy matches the long-standing 20% slack tolerance.
func DefaultPolicy() Policy {
	return Policy{SlackFactor: 0.8}
}

// Progress reports where the account stands against the phase target.
type Progress struct {
	ProfitTarget      float64 `json:"profit_target"`
	CurrentProfit     float64 `json:"current_profit"`
	ProfitProgressPct float64 `json:"profit_progress_pct"` // 0–100
	DaysElapsed       int     `json:"days_elapsed"`
	DaysRemaining     int     `json:"days_remaining"`
	TimeProgressPct   float64 `json:"time_progress_pct"` // 0–100
	OnTrack           bool    `json:"on_track"`
	DailyTargetNeeded float64 `json:"daily_target_needed"`
}

// PayoutScenario projects one monthly-profit assumption for the funded stage.
type PayoutScenario struct {
	MonthlyProfitPct float64 `json:"monthly_profit_pct"`
	MonthlyProfit    float64 `json:"monthly_profit"`
	TraderCut        float64 `json:"trader_cut"`
	YearlyEstimate   float64 `json:"yearly_estimate"`
}

// ScalingStep projects the payout at a scaled account size, assuming the
// firm's standard 5% monthly profit on the scaled capital.
type ScalingStep struct {
	Multiplier      float64 `json:"multiplier"`
	NewAccountSize  float64 `json:"new_account_size"`
	PotentialPayout float64 `json:"potential_payout"`
}

// Projection bundles the payout scenarios and the scaling table.
type Projection struct {
	PayoutSplitPct float64          `json:"payout_split_pct"`
	Scenarios      []PayoutScenario `json:"scenarios"`
	Scaling        []ScalingStep    `json:"scaling"`
}

var (
	scenarioPcts       = []float64{2, 5, 10}
	scalingMultipliers = []float64{1, 1.25, 1.5, 2, 4}
)

// scaledMonthlyPct is the assumed monthly profit on scaled accounts.
const scaledMonthlyPct = 0.05

// TrackProgress measures profit progress against time spent in the phase.
// The trader is on track while profit progress keeps within the slack-scaled
// time progress.
func TrackProgress(acct account.TradingAccount, startDate time.Time, totalDays int, now time.Time, policy Policy) (Progress, error) {
	if err := acct.Validate(); err != nil {
		return Progress{}, err
	}
	if acct.ProfitTargetPct <= 0 {
		return Progress{}, fmt.Errorf("profit target pct must be positive, got %.2f", acct.ProfitTargetPct)
	}
	if totalDays <= 0 {
		return Progress{}, fmt.Errorf("total days must be positive, got %d", totalDays)
	}
	if policy.SlackFactor <= 0 {
		policy = DefaultPolicy()
	}

	profitTarget := acct.AccountSize * acct.ProfitTargetPct / 100
	currentProfit := acct.CurrentBalance - acct.AccountSize

	profitProgress := currentProfit / profitTarget * 100
	if profitProgress < 0 {
		profitProgress = 0
	}
	if profitProgress > 100 {
		profitProgress = 100
	}

	daysElapsed := int(now.Sub(startDate).Hours() / 24)
	if daysElapsed < 0 {
		daysElapsed = 0
	}
	timeProgress := float64(daysElapsed) / float64(totalDays) * 100
	if timeProgress > 100 {
		timeProgress = 100
	}
	daysRemaining := totalDays - daysElapsed
	if daysRemaining < 0 {
		daysRemaining = 0
	}

	remainingProfit := profitTarget - currentProfit
	if remainingProfit < 0 {
		remainingProfit = 0
	}
	divisorDays := daysRemaining
	if divisorDays < 1 {
		divisorDays = 1
	}

	return Progress{
		ProfitTarget:      profitTarget,
		CurrentProfit:     currentProfit,
		ProfitProgressPct: profitProgress,
		DaysElapsed:       daysElapsed,
		DaysRemaining:     daysRemaining,
		TimeProgressPct:   timeProgress,
		OnTrack:           profitProgress >= timeProgress*policy.SlackFactor,
		DailyTargetNeeded: remainingProfit / float64(divisorDays),
	}, nil
}

// ProjectPayouts builds the monthly-profit scenarios and the scaling table
// for a funded account with the given payout split.
func ProjectPayouts(accountSize, payoutSplitPct float64) (Projection, error) {
	if accountSize <= 0 {
		return Projection{}, fmt.Errorf("account size must be positive, got %.2f", accountSize)
	}
	if payoutSplitPct <= 0 || payoutSplitPct > 100 {
		return Projection{}, fmt.Errorf("payout split pct must be in (0,100], got %.2f", payoutSplitPct)
	}

	proj := Projection{PayoutSplitPct: payoutSplitPct}
	for _, pct := range scenarioPcts {
		monthly := accountSize * pct / 100
		cut := monthly * payoutSplitPct / 100
		proj.Scenarios = append(proj.Scenarios, PayoutScenario{
			MonthlyProfitPct: pct,
			MonthlyProfit:    monthly,
			TraderCut:        cut,
			YearlyEstimate:   cut * 12,
		})
	}
	for _, mult := range scalingMultipliers {
		size := accountSize * mult
		proj.Scaling = append(proj.Scaling, ScalingStep{
			Multiplier:      mult,
			NewAccountSize:  size,
			PotentialPayout: size * scaledMonthlyPct * payoutSplitPct / 100,
		})
	}
	return proj, nil
}
