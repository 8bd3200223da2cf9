package account

// Metrics captures how much of each drawdown budget the account has consumed.
// Used percentages never go negative; remaining amounts go to zero or below
// once the corresponding limit is breached, and consumers must treat a
// non-positive remaining as "budget exhausted" rather than divide by it.
type Metrics struct {
	DailyUsedPct   float64 `json:"daily_used_pct"`
	TotalUsedPct   float64 `json:"total_used_pct"`
	DailyRemaining float64 `json:"daily_remaining"`
	TotalRemaining float64 `json:"total_remaining"`
	DailyLimit     float64 `json:"daily_limit"`
	TotalLimit     float64 `json:"total_limit"`
}

// ComputeMetrics derives drawdown usage from a validated account snapshot.
// Gains (balance above the reference) clamp usage at zero instead of going
// negative.
func ComputeMetrics(a TradingAccount) Metrics {
	dailyLimit := a.DailyLimitAmount()
	totalLimit := a.TotalLimitAmount()

	dailyLoss := a.DayStartBalance - a.CurrentBalance
	totalLoss := a.AccountSize - a.CurrentBalance

	return Metrics{
		DailyUsedPct:   usedPct(dailyLoss, dailyLimit),
		TotalUsedPct:   usedPct(totalLoss, totalLimit),
		DailyRemaining: dailyLimit - dailyLoss,
		TotalRemaining: totalLimit - totalLoss,
		DailyLimit:     dailyLimit,
		TotalLimit:     totalLimit,
	}
}

func usedPct(loss, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	pct := loss / limit * 100
	if pct < 0 {
		return 0
	}
	return pct
}
