package cascade

import (
	"math"
	"reflect"
	"testing"

	"propguard/account"
	"propguard/checkpoint"
)

func testInput() Input {
	return Input{
		CurrentBalance:      10000,
		AccountSize:         10000,
		MaxDailyDrawdownPct: 5,
		MaxTotalDrawdownPct: 10,
		RiskPerTradePct:     1,
		LotSizeMultiplier:   1,
	}
}

func TestSimulateBreachPositions(t *testing.T) {
	proj, err := Simulate(testInput(), DefaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 100 per trade against a 500 daily budget and 1000 total budget.
	if proj.RiskAmount != 100 {
		t.Fatalf("expected risk amount 100, got %.2f", proj.RiskAmount)
	}
	if proj.LossesToDailyBreach != 5 {
		t.Fatalf("expected daily breach on trade 5, got %d", proj.LossesToDailyBreach)
	}
	if proj.LossesToTotalBreach != 10 {
		t.Fatalf("expected total breach on trade 10, got %d", proj.LossesToTotalBreach)
	}
	if len(proj.Steps) != 10 {
		t.Fatalf("expected 10 steps, got %d", len(proj.Steps))
	}
}

func TestSimulateStatusPrecedence(t *testing.T) {
	proj, err := Simulate(testInput(), DefaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Status{
		StatusSafe,        // 9900
		StatusSafe,        // 9800
		StatusWarning,     // 9700, two losses from 9500
		StatusDanger,      // 9600, one loss from 9500
		StatusDailyBreach, // 9500
		StatusDailyBreach, // 9400
		StatusDailyBreach, // 9300
		StatusDailyBreach, // 9200
		StatusDailyBreach, // 9100
		StatusTotalBreach, // 9000, total wins over daily
	}
	for i, step := range proj.Steps {
		if step.Status != want[i] {
			t.Errorf("trade %d: expected status %s, got %s (balance %.2f)",
				step.Trade, want[i], step.Status, step.Balance)
		}
	}
}

func TestSimulateDeterministic(t *testing.T) {
	a, err := Simulate(testInput(), DefaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Simulate(testInput(), DefaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("identical inputs must produce identical projections")
	}
}

func TestSimulateDailyBreachesBeforeTotal(t *testing.T) {
	// With the daily limit no wider than the total limit on the same base
	// equity, the daily level must always be hit first (or simultaneously).
	in := testInput()
	for _, daily := range []float64{2, 5, 10} {
		in.MaxDailyDrawdownPct = daily
		in.MaxTotalDrawdownPct = 10
		proj, err := Simulate(in, Policy{DangerSteps: 1, WarningSteps: 2, Horizon: 25})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if proj.LossesToDailyBreach == 0 || proj.LossesToTotalBreach == 0 {
			t.Fatalf("daily=%v: expected both breaches within horizon", daily)
		}
		if proj.LossesToDailyBreach > proj.LossesToTotalBreach {
			t.Errorf("daily=%v: daily breach (%d) after total breach (%d)",
				daily, proj.LossesToDailyBreach, proj.LossesToTotalBreach)
		}
	}
}

func TestSimulateUnboundedWithinHorizon(t *testing.T) {
	in := testInput()
	in.RiskPerTradePct = 0.25 // 25 per trade, 250 over 10 trades, no breach

	proj, err := Simulate(in, DefaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proj.LossesToDailyBreach != 0 || proj.LossesToTotalBreach != 0 {
		t.Fatalf("expected no breach within horizon, got daily=%d total=%d",
			proj.LossesToDailyBreach, proj.LossesToTotalBreach)
	}
	for _, step := range proj.Steps {
		if step.Status == StatusDailyBreach || step.Status == StatusTotalBreach {
			t.Fatalf("trade %d: unexpected breach status %s", step.Trade, step.Status)
		}
	}
}

func TestSimulateLotMultiplierScalesRisk(t *testing.T) {
	in := testInput()
	in.LotSizeMultiplier = 2

	proj, err := Simulate(in, DefaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proj.RiskAmount != 200 {
		t.Fatalf("expected doubled risk amount 200, got %.2f", proj.RiskAmount)
	}
	if proj.LossesToDailyBreach != 3 {
		t.Fatalf("expected daily breach on trade 3 at doubled risk, got %d", proj.LossesToDailyBreach)
	}
}

func TestSimulateRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Input)
	}{
		{"zero account size", func(in *Input) { in.AccountSize = 0 }},
		{"zero risk", func(in *Input) { in.RiskPerTradePct = 0 }},
		{"negative multiplier", func(in *Input) { in.LotSizeMultiplier = -1 }},
		{"zero daily limit", func(in *Input) { in.MaxDailyDrawdownPct = 0 }},
	}
	for _, tc := range cases {
		in := testInput()
		tc.mutate(&in)
		if _, err := Simulate(in, DefaultPolicy()); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestSimulateAgreesWithCheckpointBudgets(t *testing.T) {
	// Metrics, checkpoint and simulator fed from one snapshot must agree on
	// the breach levels. On a fresh day the checkpoint's remaining daily
	// budget is exactly the distance from the balance to the simulator's
	// daily breach level; the total budget distance holds regardless.
	acct := account.TradingAccount{
		AccountSize:         10000,
		CurrentBalance:      9800,
		DayStartBalance:     9800,
		MaxDailyDrawdownPct: 5,
		MaxTotalDrawdownPct: 10,
	}
	m := account.ComputeMetrics(acct)

	trade := checkpoint.ProposedTrade{
		Pair:         "EURUSD",
		Direction:    checkpoint.Buy,
		LotSize:      0.8,
		StopLossPips: 50,
		PipValue:     10,
	}
	a, err := checkpoint.Evaluate(trade, acct, m)
	if err != nil {
		t.Fatalf("unexpected checkpoint error: %v", err)
	}

	proj, err := Simulate(Input{
		CurrentBalance:      acct.CurrentBalance,
		AccountSize:         acct.AccountSize,
		MaxDailyDrawdownPct: acct.MaxDailyDrawdownPct,
		MaxTotalDrawdownPct: acct.MaxTotalDrawdownPct,
		RiskPerTradePct:     1,
		LotSizeMultiplier:   1,
	}, DefaultPolicy())
	if err != nil {
		t.Fatalf("unexpected simulate error: %v", err)
	}

	const eps = 1e-9
	if got := acct.CurrentBalance - proj.DailyBreachLevel; math.Abs(got-m.DailyRemaining) > eps {
		t.Fatalf("daily budgets disagree: checkpoint remaining %.2f, simulator distance %.2f",
			m.DailyRemaining, got)
	}
	if got := acct.CurrentBalance - proj.TotalBreachLevel; math.Abs(got-m.TotalRemaining) > eps {
		t.Fatalf("total budgets disagree: checkpoint remaining %.2f, simulator distance %.2f",
			m.TotalRemaining, got)
	}

	// The 400 loss sits inside the 490 daily budget, so the checkpoint
	// passes it and the post-loss balance stays above the breach level.
	if a.PotentialLoss >= m.DailyRemaining {
		t.Fatalf("test setup: loss %.2f should be under budget %.2f", a.PotentialLoss, m.DailyRemaining)
	}
	for _, c := range a.Checks {
		if c.Critical && !c.Passed {
			t.Fatalf("check %q failed on an in-budget trade", c.Label)
		}
	}
	if after := acct.CurrentBalance - a.PotentialLoss; after <= proj.DailyBreachLevel {
		t.Fatalf("balance after loss %.2f must stay above daily breach level %.2f",
			after, proj.DailyBreachLevel)
	}
}

func TestSimulateCustomHorizon(t *testing.T) {
	proj, err := Simulate(testInput(), Policy{DangerSteps: 1, WarningSteps: 2, Horizon: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(proj.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(proj.Steps))
	}
	if proj.LossesToDailyBreach != 0 {
		t.Fatalf("daily breach lies outside the 3-step horizon, got %d", proj.LossesToDailyBreach)
	}
}
