package phase

import (
	"math"
	"testing"
	"time"

	"propguard/account"
)

func challengeAccount() account.TradingAccount {
	return account.TradingAccount{
		AccountSize:         10000,
		CurrentBalance:      10400,
		DayStartBalance:     10400,
		MaxDailyDrawdownPct: 5,
		MaxTotalDrawdownPct: 10,
		ProfitTargetPct:     8,
	}
}

func TestTrackProgressMidChallenge(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	now := start.AddDate(0, 0, 10)

	p, err := TrackProgress(challengeAccount(), start, 30, now, DefaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.ProfitTarget != 800 {
		t.Fatalf("expected profit target 800, got %.2f", p.ProfitTarget)
	}
	if p.CurrentProfit != 400 {
		t.Fatalf("expected current profit 400, got %.2f", p.CurrentProfit)
	}
	if p.ProfitProgressPct != 50 {
		t.Fatalf("expected 50%% profit progress, got %.2f", p.ProfitProgressPct)
	}
	if p.DaysElapsed != 10 || p.DaysRemaining != 20 {
		t.Fatalf("expected 10 elapsed / 20 remaining, got %d / %d", p.DaysElapsed, p.DaysRemaining)
	}
	// 50% profit progress vs 33.3% time progress: comfortably on track.
	if !p.OnTrack {
		t.Fatal("expected on-track status")
	}
	if math.Abs(p.DailyTargetNeeded-20) > 1e-9 {
		t.Fatalf("expected daily target 400/20=20, got %.2f", p.DailyTargetNeeded)
	}
}

func TestTrackProgressSlackBoundary(t *testing.T) {
	acct := challengeAccount()
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	now := start.AddDate(0, 0, 15) // time progress 50%

	// Profit progress exactly at the 0.8-scaled time progress: still on track.
	acct.CurrentBalance = 10320 // 320/800 = 40% = 50% * 0.8
	p, err := TrackProgress(acct, start, 30, now, DefaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.OnTrack {
		t.Fatal("expected on-track at exactly the slack boundary")
	}

	acct.CurrentBalance = 10319
	p, err = TrackProgress(acct, start, 30, now, DefaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.OnTrack {
		t.Fatal("expected behind-schedule just under the slack boundary")
	}
}

func TestTrackProgressClampsAndFloors(t *testing.T) {
	acct := challengeAccount()
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	// Underwater account: profit progress clamps at zero.
	acct.CurrentBalance = 9500
	p, err := TrackProgress(acct, start, 30, start.AddDate(0, 0, 5), DefaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ProfitProgressPct != 0 {
		t.Fatalf("expected clamped 0%% profit progress, got %.2f", p.ProfitProgressPct)
	}

	// Past the deadline: time progress caps at 100, days remaining at 0,
	// and the daily target divides by one day, not zero.
	acct.CurrentBalance = 10100
	p, err = TrackProgress(acct, start, 30, start.AddDate(0, 0, 45), DefaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.TimeProgressPct != 100 {
		t.Fatalf("expected 100%% time progress past deadline, got %.2f", p.TimeProgressPct)
	}
	if p.DaysRemaining != 0 {
		t.Fatalf("expected 0 days remaining, got %d", p.DaysRemaining)
	}
	if p.DailyTargetNeeded != 700 {
		t.Fatalf("expected daily target 700 over a single day, got %.2f", p.DailyTargetNeeded)
	}

	// Target met: daily target needed goes to zero.
	acct.CurrentBalance = 10900
	p, err = TrackProgress(acct, start, 30, start.AddDate(0, 0, 20), DefaultPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ProfitProgressPct != 100 {
		t.Fatalf("expected capped 100%% profit progress, got %.2f", p.ProfitProgressPct)
	}
	if p.DailyTargetNeeded != 0 {
		t.Fatalf("expected zero daily target after hitting the goal, got %.2f", p.DailyTargetNeeded)
	}
}

func TestTrackProgressRejectsInvalidInput(t *testing.T) {
	start := time.Now()
	acct := challengeAccount()
	acct.ProfitTargetPct = 0
	if _, err := TrackProgress(acct, start, 30, start, DefaultPolicy()); err == nil {
		t.Fatal("expected error for zero profit target")
	}
	if _, err := TrackProgress(challengeAccount(), start, 0, start, DefaultPolicy()); err == nil {
		t.Fatal("expected error for zero total days")
	}
}

func TestProjectPayoutsScenarios(t *testing.T) {
	proj, err := ProjectPayouts(10000, 80)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(proj.Scenarios) != 3 {
		t.Fatalf("expected 3 scenarios, got %d", len(proj.Scenarios))
	}
	// 5% of 10000 = 500 monthly, 400 trader cut, 4800 yearly.
	mid := proj.Scenarios[1]
	if mid.MonthlyProfitPct != 5 {
		t.Fatalf("expected 5%% scenario second, got %.1f", mid.MonthlyProfitPct)
	}
	if mid.TraderCut != 400 {
		t.Fatalf("expected trader cut 400, got %.2f", mid.TraderCut)
	}
	if mid.YearlyEstimate != 4800 {
		t.Fatalf("expected yearly estimate 4800, got %.2f", mid.YearlyEstimate)
	}
}

func TestProjectPayoutsScalingTable(t *testing.T) {
	proj, err := ProjectPayouts(10000, 80)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(proj.Scaling) != 5 {
		t.Fatalf("expected 5 scaling steps, got %d", len(proj.Scaling))
	}
	last := proj.Scaling[4]
	if last.Multiplier != 4 || last.NewAccountSize != 40000 {
		t.Fatalf("expected 4x to 40000, got %.2fx to %.2f", last.Multiplier, last.NewAccountSize)
	}
	// 40000 * 5% * 80% = 1600.
	if last.PotentialPayout != 1600 {
		t.Fatalf("expected potential payout 1600, got %.2f", last.PotentialPayout)
	}
}

func TestProjectPayoutsRejectsInvalidInput(t *testing.T) {
	if _, err := ProjectPayouts(0, 80); err == nil {
		t.Fatal("expected error for zero account size")
	}
	if _, err := ProjectPayouts(10000, 0); err == nil {
		t.Fatal("expected error for zero payout split")
	}
	if _, err := ProjectPayouts(10000, 120); err == nil {
		t.Fatal("expected error for payout split above 100")
	}
}
