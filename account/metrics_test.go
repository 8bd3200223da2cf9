package account

import (
	"math"
	"testing"
)

func testAccount() TradingAccount {
	return TradingAccount{
		AccountSize:         10000,
		CurrentBalance:      10000,
		DayStartBalance:     10000,
		MaxDailyDrawdownPct: 5,
		MaxTotalDrawdownPct: 10,
		ProfitTargetPct:     8,
	}
}

func TestComputeMetricsFreshAccount(t *testing.T) {
	m := ComputeMetrics(testAccount())

	if m.DailyUsedPct != 0 {
		t.Fatalf("expected 0%% daily used on fresh account, got %.2f", m.DailyUsedPct)
	}
	if m.TotalUsedPct != 0 {
		t.Fatalf("expected 0%% total used on fresh account, got %.2f", m.TotalUsedPct)
	}
	if m.DailyRemaining != 500 {
		t.Fatalf("expected 500 daily remaining, got %.2f", m.DailyRemaining)
	}
	if m.TotalRemaining != 1000 {
		t.Fatalf("expected 1000 total remaining, got %.2f", m.TotalRemaining)
	}
}

func TestComputeMetricsUsageNeverNegative(t *testing.T) {
	acct := testAccount()
	acct.CurrentBalance = 10500 // profitable day

	m := ComputeMetrics(acct)
	if m.DailyUsedPct < 0 || m.TotalUsedPct < 0 {
		t.Fatalf("usage must clamp at zero, got daily=%.2f total=%.2f", m.DailyUsedPct, m.TotalUsedPct)
	}
}

func TestComputeMetricsExactlyAtBreachLevel(t *testing.T) {
	acct := testAccount()
	acct.CurrentBalance = 9500 // daily breach level for 5% of 10000

	m := ComputeMetrics(acct)
	if math.Abs(m.DailyUsedPct-100) > 1e-9 {
		t.Fatalf("expected exactly 100%% daily used at breach level, got %.6f", m.DailyUsedPct)
	}
	if m.DailyRemaining != 0 {
		t.Fatalf("expected 0 daily remaining at breach level, got %.2f", m.DailyRemaining)
	}

	acct.CurrentBalance = 9000 // total breach level for 10% of 10000
	m = ComputeMetrics(acct)
	if math.Abs(m.TotalUsedPct-100) > 1e-9 {
		t.Fatalf("expected exactly 100%% total used at breach level, got %.6f", m.TotalUsedPct)
	}
}

func TestComputeMetricsBeyondBreach(t *testing.T) {
	acct := testAccount()
	acct.CurrentBalance = 9200

	m := ComputeMetrics(acct)
	if m.DailyUsedPct <= 100 {
		t.Fatalf("expected daily usage above 100%% past breach, got %.2f", m.DailyUsedPct)
	}
	if m.DailyRemaining >= 0 {
		t.Fatalf("expected negative daily remaining past breach, got %.2f", m.DailyRemaining)
	}
}

func TestValidateRejectsMalformedAccounts(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*TradingAccount)
	}{
		{"zero account size", func(a *TradingAccount) { a.AccountSize = 0 }},
		{"negative day start", func(a *TradingAccount) { a.DayStartBalance = -1 }},
		{"zero daily pct", func(a *TradingAccount) { a.MaxDailyDrawdownPct = 0 }},
		{"negative total pct", func(a *TradingAccount) { a.MaxTotalDrawdownPct = -5 }},
	}
	for _, tc := range cases {
		acct := testAccount()
		tc.mutate(&acct)
		if err := acct.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}

	if err := testAccount().Validate(); err != nil {
		t.Fatalf("valid account rejected: %v", err)
	}
}
