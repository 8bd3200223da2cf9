// Package recovery plans the climb back to initial capital after a drawdown.
package recovery

import (
	"fmt"
	"math"

	"propguard/account"
)

// BufferStatus grades how much of the total drawdown buffer is left.
type BufferStatus string

const (
	BufferSafe    BufferStatus = "safe"
	BufferCaution BufferStatus = "caution"
	BufferDanger  BufferStatus = "danger"
)

// Strategy is one recovery profile with its derived schedule.
type Strategy struct {
	Name            string  `json:"name"`
	RiskPerTradePct float64 `json:"risk_per_trade_pct"`
	TradesPerDay    int     `json:"trades_per_day"`
	AvgRRNeeded     float64 `json:"avg_rr_needed"`
	RiskAmount      float64 `json:"risk_amount"`
	ProfitPerWin    float64 `json:"profit_per_win"`
	TradesNeeded    int     `json:"trades_needed"`
	DaysToRecover   int     `json:"days_to_recover"`
	WinRateNeeded   float64 `json:"win_rate_needed"`
}

// Milestone is one day of the linear recovery schedule.
type Milestone struct {
	Day              int     `json:"day"`
	TargetBalance    float64 `json:"target_balance"`
	PercentRecovered float64 `json:"percent_recovered"`
}

// Plan is the full planner output. When the account sits at or above its
// initial capital no strategies are computed and Healthy is set.
type Plan struct {
	Healthy         bool         `json:"healthy"`
	ProfitAmount    float64      `json:"profit_amount,omitempty"`
	ProfitPct       float64      `json:"profit_pct,omitempty"`
	DrawdownAmount  float64      `json:"drawdown_amount,omitempty"`
	DrawdownPct     float64      `json:"drawdown_pct,omitempty"`
	RemainingBuffer float64      `json:"remaining_buffer,omitempty"`
	BufferPct       float64      `json:"buffer_pct,omitempty"`
	RiskStatus      BufferStatus `json:"risk_status,omitempty"`
	Strategies      []Strategy   `json:"strategies,omitempty"`
	Milestones      []Milestone  `json:"milestones,omitempty"`
}

// milestoneCap bounds the displayed schedule length.
const milestoneCap = 14

// profiles are the three fixed recovery styles: risk percent, trades per
// day, target reward-to-risk.
var profiles = []struct {
	name    string
	riskPct float64
	perDay  int
	rr      float64
}{
	{"conservative", 0.25, 2, 1.5},
	{"moderate", 0.5, 3, 2.0},
	{"aggressive", 0.75, 4, 2.5},
}

// BuildPlan computes all recovery strategies and the daily milestone
// schedule for the account's current drawdown.
func BuildPlan(acct account.TradingAccount) (Plan, error) {
	if err := acct.Validate(); err != nil {
		return Plan{}, err
	}

	if acct.CurrentBalance >= acct.AccountSize {
		profit := acct.CurrentBalance - acct.AccountSize
		return Plan{
			Healthy:      true,
			ProfitAmount: profit,
			ProfitPct:    profit / acct.AccountSize * 100,
		}, nil
	}

	drawdown := acct.AccountSize - acct.CurrentBalance
	totalBudget := acct.TotalLimitAmount()
	remainingBuffer := totalBudget - drawdown
	bufferPct := remainingBuffer / totalBudget * 100

	plan := Plan{
		DrawdownAmount:  drawdown,
		DrawdownPct:     drawdown / acct.AccountSize * 100,
		RemainingBuffer: remainingBuffer,
		BufferPct:       bufferPct,
		RiskStatus:      bufferStatus(bufferPct),
	}

	for _, p := range profiles {
		riskAmount := acct.CurrentBalance * p.riskPct / 100
		profitPerWin := riskAmount * p.rr
		tradesNeeded := int(math.Ceil(drawdown / profitPerWin))
		plan.Strategies = append(plan.Strategies, Strategy{
			Name:            p.name,
			RiskPerTradePct: p.riskPct,
			TradesPerDay:    p.perDay,
			AvgRRNeeded:     p.rr,
			RiskAmount:      riskAmount,
			ProfitPerWin:    profitPerWin,
			TradesNeeded:    tradesNeeded,
			DaysToRecover:   int(math.Ceil(float64(tradesNeeded) / float64(p.perDay))),
			WinRateNeeded:   winRateNeeded(p.rr),
		})
	}

	plan.Milestones = milestones(acct.CurrentBalance, drawdown, plan.Strategies[0].DaysToRecover)
	return plan, nil
}

// winRateNeeded is the break-even win rate for the given reward-to-risk,
// in percent.
func winRateNeeded(rr float64) float64 {
	return 100 / (1 + rr)
}

func bufferStatus(bufferPct float64) BufferStatus {
	switch {
	case bufferPct > 50:
		return BufferSafe
	case bufferPct > 25:
		return BufferCaution
	default:
		return BufferDanger
	}
}

// milestones distributes the drawdown linearly across the conservative
// plan's recovery days, capped for display.
func milestones(balance, drawdown float64, days int) []Milestone {
	if days <= 0 {
		days = 1
	}
	shown := days
	if shown > milestoneCap {
		shown = milestoneCap
	}

	perDay := drawdown / float64(days)
	out := make([]Milestone, 0, shown)
	for day := 1; day <= shown; day++ {
		recovered := perDay * float64(day)
		out = append(out, Milestone{
			Day:              day,
			TargetBalance:    balance + recovered,
			PercentRecovered: recovered / drawdown * 100,
		})
	}
	return out
}

// Describe renders a one-line summary for logs.
func (p Plan) Describe() string {
	if p.Healthy {
		return fmt.Sprintf("healthy: +%.2f (%.2f%%)", p.ProfitAmount, p.ProfitPct)
	}
	return fmt.Sprintf("drawdown %.2f (%.2f%%), buffer %.1f%% (%s)",
		p.DrawdownAmount, p.DrawdownPct, p.BufferPct, p.RiskStatus)
}
