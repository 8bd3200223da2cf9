package checkpoint

import (
	"testing"

	"propguard/account"
)

func testAccount() account.TradingAccount {
	return account.TradingAccount{
		AccountSize:         10000,
		CurrentBalance:      10000,
		DayStartBalance:     10000,
		MaxDailyDrawdownPct: 5,
		MaxTotalDrawdownPct: 10,
	}
}

func testTrade() ProposedTrade {
	return ProposedTrade{
		Pair:         "EURUSD",
		Direction:    Buy,
		LotSize:      1,
		StopLossPips: 50,
		PipValue:     10,
	}
}

func findCheck(t *testing.T, a Assessment, label string) Check {
	t.Helper()
	for _, c := range a.Checks {
		if c.Label == label {
			return c
		}
	}
	t.Fatalf("check %q not found", label)
	return Check{}
}

func TestEvaluateLossEqualToDailyBudgetIsCritical(t *testing.T) {
	acct := testAccount()
	m := account.ComputeMetrics(acct)

	// 1 lot * 50 pips * 10/pip = 500, exactly the daily budget.
	a, err := Evaluate(testTrade(), acct, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a.PotentialLoss != 500 {
		t.Fatalf("expected potential loss 500, got %.2f", a.PotentialLoss)
	}
	daily := findCheck(t, a, labelDailyLimit)
	if daily.Passed {
		t.Fatal("expected daily limit check to fail when loss equals remaining budget")
	}
	if !daily.Critical {
		t.Fatal("daily limit check must be critical")
	}
	if a.RiskLevel != LevelCritical {
		t.Fatalf("expected critical risk level, got %s", a.RiskLevel)
	}
	if a.Permitted(false) {
		t.Fatal("critical trade must be rejected without acknowledgement")
	}
	if !a.Permitted(true) {
		t.Fatal("explicit acknowledgement must open the gate at critical level")
	}
}

func TestEvaluateSmallTradeIsLowRisk(t *testing.T) {
	acct := testAccount()
	m := account.ComputeMetrics(acct)

	trade := testTrade()
	trade.LotSize = 0.1 // potential loss 50: 0.5% of balance, 10% of budget

	a, err := Evaluate(trade, acct, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.RiskLevel != LevelLow {
		t.Fatalf("expected low risk, got %s", a.RiskLevel)
	}
	for _, c := range a.Checks {
		if !c.Passed {
			t.Errorf("expected all checks to pass, %q failed", c.Label)
		}
	}
	if !a.Permitted(false) {
		t.Fatal("low risk trade must pass the gate without acknowledgement")
	}
	if len(a.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", a.Warnings)
	}
}

func TestEvaluateRiskLevelLadder(t *testing.T) {
	acct := testAccount()
	m := account.ComputeMetrics(acct)

	cases := []struct {
		lots float64
		want RiskLevel
	}{
		{0.1, LevelLow},     // 50: 10% of budget, 0.5% of balance
		{0.3, LevelMedium},  // 150: 30% of budget, 1.5% of balance
		{0.6, LevelHigh},    // 300: 60% of budget, 3% of balance
		{1.0, LevelCritical}, // 500: full budget
	}
	for _, tc := range cases {
		trade := testTrade()
		trade.LotSize = tc.lots
		a, err := Evaluate(trade, acct, m)
		if err != nil {
			t.Fatalf("lots=%v: unexpected error: %v", tc.lots, err)
		}
		if a.RiskLevel != tc.want {
			t.Errorf("lots=%v: expected %s, got %s", tc.lots, tc.want, a.RiskLevel)
		}
	}
}

func TestEvaluateExhaustedBudgetFailsWithoutDividing(t *testing.T) {
	acct := testAccount()
	acct.CurrentBalance = 9400 // daily budget already blown

	m := account.ComputeMetrics(acct)
	if m.DailyRemaining >= 0 {
		t.Fatalf("test setup: expected negative daily remaining, got %.2f", m.DailyRemaining)
	}

	trade := testTrade()
	trade.LotSize = 0.1
	a, err := Evaluate(trade, acct, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if findCheck(t, a, labelDailyLimit).Passed {
		t.Fatal("daily limit check must fail when the budget is exhausted")
	}
	if findCheck(t, a, labelDailyBudget).Passed {
		t.Fatal("daily budget check must fail when the budget is exhausted")
	}
	if a.RiskLevel != LevelCritical {
		t.Fatalf("expected critical level on exhausted budget, got %s", a.RiskLevel)
	}
}

func TestEvaluateRecoveryRoomCheck(t *testing.T) {
	acct := testAccount()
	acct.CurrentBalance = 9150
	acct.DayStartBalance = 9600

	// Total breach level is 9000. A 100 loss leaves 9050, only 50 above the
	// level: a second 100 loss would breach.
	trade := testTrade()
	trade.LotSize = 0.2

	m := account.ComputeMetrics(acct)
	a, err := Evaluate(trade, acct, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if findCheck(t, a, labelRecoveryRoom).Passed {
		t.Fatal("expected recovery room check to fail")
	}
	if findCheck(t, a, labelRecoveryRoom).Critical {
		t.Fatal("recovery room check must not be critical")
	}
}

func TestEvaluateNonPositiveBalanceFailsRiskCheck(t *testing.T) {
	// A balance at or below zero is reachable through recorded losses and
	// must never let the percentage-of-balance check pass.
	for _, balance := range []float64{0, -500} {
		acct := testAccount()
		acct.CurrentBalance = balance

		m := account.ComputeMetrics(acct)
		trade := testTrade()
		trade.LotSize = 0.1

		a, err := Evaluate(trade, acct, m)
		if err != nil {
			t.Fatalf("balance=%v: unexpected error: %v", balance, err)
		}
		if findCheck(t, a, labelReasonableRisk).Passed {
			t.Errorf("balance=%v: reasonable risk check must fail", balance)
		}
		if a.RiskLevel != LevelCritical {
			t.Errorf("balance=%v: expected critical level, got %s", balance, a.RiskLevel)
		}
		if a.Permitted(false) {
			t.Errorf("balance=%v: gate must reject without acknowledgement", balance)
		}
	}
}

func TestEvaluateRejectsMalformedTrade(t *testing.T) {
	acct := testAccount()
	m := account.ComputeMetrics(acct)

	cases := []struct {
		name   string
		mutate func(*ProposedTrade)
	}{
		{"zero lots", func(p *ProposedTrade) { p.LotSize = 0 }},
		{"negative stop", func(p *ProposedTrade) { p.StopLossPips = -10 }},
		{"zero pip value", func(p *ProposedTrade) { p.PipValue = 0 }},
	}
	for _, tc := range cases {
		trade := testTrade()
		tc.mutate(&trade)
		if _, err := Evaluate(trade, acct, m); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}
