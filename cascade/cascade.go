// Package cascade projects the account balance through a run of consecutive
// losing trades and classifies how close each step lands to the firm's
// drawdown limits.
package cascade

import "fmt"

// Status classifies a single projected step.
type Status string

const (
	StatusSafe        Status = "safe"
	StatusWarning     Status = "warning"
	StatusDanger      Status = "danger"
	StatusDailyBreach Status = "daily_breach"
	StatusTotalBreach Status = "total_breach"
)

// Policy holds the heuristic step counts behind the danger and warning
// classifications. The defaults match long-standing product behavior; they
// are policy knobs, not derived values.
type Policy struct {
	// DangerSteps flags a step when this many further losses would cross
	// the daily breach level.
	DangerSteps int
	// WarningSteps is the wider early-warning window.
	WarningSteps int
	// Horizon is the number of consecutive losses to simulate.
	Horizon int
}

// DefaultPolicy mirrors the product defaults: danger one loss out, warning
// two losses out, ten simulated trades.
func DefaultPolicy() Policy {
	return Policy{DangerSteps: 1, WarningSteps: 2, Horizon: 10}
}

// Input bundles everything the simulation needs. LotSizeMultiplier scales
// the per-trade risk, modelling an oversized position.
type Input struct {
	CurrentBalance      float64 `json:"current_balance"`
	AccountSize         float64 `json:"account_size"`
	MaxDailyDrawdownPct float64 `json:"max_daily_drawdown_pct"`
	MaxTotalDrawdownPct float64 `json:"max_total_drawdown_pct"`
	RiskPerTradePct     float64 `json:"risk_per_trade_pct"`
	LotSizeMultiplier   float64 `json:"lot_size_multiplier"`
}

// Step is one projected losing trade.
type Step struct {
	Trade       int     `json:"trade"` // 1-indexed
	Balance     float64 `json:"balance"`
	DailyBreach bool    `json:"daily_breach"`
	TotalBreach bool    `json:"total_breach"`
	Status      Status  `json:"status"`
}

// Projection is the full simulation result. LossesToDailyBreach and
// LossesToTotalBreach are the 1-indexed positions of the first breaching
// trade; zero means no breach within the simulated horizon.
type Projection struct {
	RiskAmount          float64 `json:"risk_amount"`
	DailyBreachLevel    float64 `json:"daily_breach_level"`
	TotalBreachLevel    float64 `json:"total_breach_level"`
	Steps               []Step  `json:"steps"`
	LossesToDailyBreach int     `json:"losses_to_daily_breach"`
	LossesToTotalBreach int     `json:"losses_to_total_breach"`
}

func (in Input) validate() error {
	if in.AccountSize <= 0 {
		return fmt.Errorf("account size must be positive, got %.2f", in.AccountSize)
	}
	if in.MaxDailyDrawdownPct <= 0 || in.MaxTotalDrawdownPct <= 0 {
		return fmt.Errorf("drawdown limits must be positive, got daily=%.2f total=%.2f",
			in.MaxDailyDrawdownPct, in.MaxTotalDrawdownPct)
	}
	if in.RiskPerTradePct <= 0 {
		return fmt.Errorf("risk per trade must be positive, got %.2f", in.RiskPerTradePct)
	}
	if in.LotSizeMultiplier <= 0 {
		return fmt.Errorf("lot size multiplier must be positive, got %.2f", in.LotSizeMultiplier)
	}
	return nil
}

// Simulate folds the loss sequence into an immutable step list. Identical
// inputs always produce identical projections.
func Simulate(in Input, policy Policy) (Projection, error) {
	if err := in.validate(); err != nil {
		return Projection{}, err
	}
	if policy.Horizon <= 0 {
		policy = DefaultPolicy()
	}

	riskAmount := in.CurrentBalance * in.RiskPerTradePct / 100 * in.LotSizeMultiplier
	dailyBreachLevel := in.CurrentBalance - in.CurrentBalance*in.MaxDailyDrawdownPct/100
	totalBreachLevel := in.AccountSize - in.AccountSize*in.MaxTotalDrawdownPct/100

	proj := Projection{
		RiskAmount:       riskAmount,
		DailyBreachLevel: dailyBreachLevel,
		TotalBreachLevel: totalBreachLevel,
		Steps:            make([]Step, 0, policy.Horizon),
	}

	balance := in.CurrentBalance
	for i := 1; i <= policy.Horizon; i++ {
		balance -= riskAmount
		step := Step{
			Trade:       i,
			Balance:     balance,
			DailyBreach: balance <= dailyBreachLevel,
			TotalBreach: balance <= totalBreachLevel,
		}
		step.Status = classify(step, balance, riskAmount, dailyBreachLevel, policy)

		if step.DailyBreach && proj.LossesToDailyBreach == 0 {
			proj.LossesToDailyBreach = i
		}
		if step.TotalBreach && proj.LossesToTotalBreach == 0 {
			proj.LossesToTotalBreach = i
		}
		proj.Steps = append(proj.Steps, step)
	}
	return proj, nil
}

// classify applies the status precedence: total breach wins over daily
// breach, which wins over the proximity warnings.
func classify(step Step, balance, riskAmount, dailyBreachLevel float64, policy Policy) Status {
	switch {
	case step.TotalBreach:
		return StatusTotalBreach
	case step.DailyBreach:
		return StatusDailyBreach
	case balance-float64(policy.DangerSteps)*riskAmount <= dailyBreachLevel:
		return StatusDanger
	case balance-float64(policy.WarningSteps)*riskAmount <= dailyBreachLevel:
		return StatusWarning
	default:
		return StatusSafe
	}
}
