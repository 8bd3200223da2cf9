package account

import "fmt"

// TradingAccount is a snapshot of a prop-firm trading account. Balances are
// in the account currency, limits and targets in percent of their base.
type TradingAccount struct {
	AccountSize         float64 `json:"account_size"`
	CurrentBalance      float64 `json:"current_balance"`
	DayStartBalance     float64 `json:"day_start_balance"`
	MaxDailyDrawdownPct float64 `json:"max_daily_drawdown_pct"`
	MaxTotalDrawdownPct float64 `json:"max_total_drawdown_pct"`
	ProfitTargetPct     float64 `json:"profit_target_pct"`
}

// Validate rejects snapshots that would produce meaningless percentages.
// CurrentBalance may legitimately sit below, at or above AccountSize.
func (a TradingAccount) Validate() error {
	if a.AccountSize <= 0 {
		return fmt.Errorf("account size must be positive, got %.2f", a.AccountSize)
	}
	if a.DayStartBalance <= 0 {
		return fmt.Errorf("day start balance must be positive, got %.2f", a.DayStartBalance)
	}
	if a.MaxDailyDrawdownPct <= 0 {
		return fmt.Errorf("max daily drawdown pct must be positive, got %.2f", a.MaxDailyDrawdownPct)
	}
	if a.MaxTotalDrawdownPct <= 0 {
		return fmt.Errorf("max total drawdown pct must be positive, got %.2f", a.MaxTotalDrawdownPct)
	}
	return nil
}

// DailyLimitAmount is the currency amount the account may lose today.
func (a TradingAccount) DailyLimitAmount() float64 {
	return a.DayStartBalance * a.MaxDailyDrawdownPct / 100
}

// TotalLimitAmount is the currency amount the account may lose over its lifetime.
func (a TradingAccount) TotalLimitAmount() float64 {
	return a.AccountSize * a.MaxTotalDrawdownPct / 100
}

// TotalBreachLevel is the balance at which the total drawdown limit is hit.
func (a TradingAccount) TotalBreachLevel() float64 {
	return a.AccountSize - a.TotalLimitAmount()
}
