// Package emotion folds a trader's mental-state check-in and recent trade
// streak into a suggested risk multiplier.
package emotion

import (
	"errors"
	"fmt"
	"time"
)

// ErrInsufficientData is returned when there is neither a check-in nor any
// trade history to score. Callers should show no recommendation at all
// rather than a fabricated neutral score.
var ErrInsufficientData = errors.New("no check-in or trade history to score")

// Mood is the self-reported state from the daily check-in.
type Mood string

const (
	MoodExcited    Mood = "excited"
	MoodConfident  Mood = "confident"
	MoodFocused    Mood = "focused"
	MoodNeutral    Mood = "neutral"
	MoodAnxious    Mood = "anxious"
	MoodFrustrated Mood = "frustrated"
	MoodTired      Mood = "tired"
)

// CheckIn is the trader's self-assessment for the day. Scales run 1–10,
// sleep in hours.
type CheckIn struct {
	Mood       Mood      `json:"mood"`
	Confidence int       `json:"confidence"`
	Stress     int       `json:"stress"`
	FocusLevel int       `json:"focus_level"`
	SleepHours float64   `json:"sleep_hours"`
	Date       time.Time `json:"date"`
}

// TradeResult classifies a closed or open trade.
type TradeResult string

const (
	ResultWin  TradeResult = "win"
	ResultLoss TradeResult = "loss"
	ResultOpen TradeResult = "open"
)

// TradeRecord is a journal entry, most recent first when passed in a slice.
type TradeRecord struct {
	ProfitLoss float64     `json:"profit_loss"`
	Result     TradeResult `json:"result"`
	CreatedAt  time.Time   `json:"created_at"`
}

// AlertLevel colors the scored band.
type AlertLevel string

const (
	AlertGreen  AlertLevel = "green"
	AlertYellow AlertLevel = "yellow"
	AlertRed    AlertLevel = "red"
)

// Factor is one scored contribution, kept for display.
type Factor struct {
	Label    string `json:"label"`
	Weight   int    `json:"weight"`
	Positive bool   `json:"positive"`
}

// Score is the evaluated emotional risk state.
type Score struct {
	Score          float64    `json:"score"` // 0–100
	Multiplier     float64    `json:"suggested_risk_multiplier"`
	AlertLevel     AlertLevel `json:"alert_level"`
	Recommendation string     `json:"recommendation"`
	Factors        []Factor   `json:"factors"`
}

// SuggestedRiskPct scales the trader's configured risk by the multiplier.
func (s Score) SuggestedRiskPct(currentRiskPct float64) float64 {
	return currentRiskPct * s.Multiplier
}

func (c CheckIn) validate() error {
	scale := func(name string, v int) error {
		if v < 1 || v > 10 {
			return fmt.Errorf("%s must be between 1 and 10, got %d", name, v)
		}
		return nil
	}
	if err := scale("confidence", c.Confidence); err != nil {
		return err
	}
	if err := scale("stress", c.Stress); err != nil {
		return err
	}
	if err := scale("focus level", c.FocusLevel); err != nil {
		return err
	}
	if c.SleepHours < 0 || c.SleepHours > 24 {
		return fmt.Errorf("sleep hours must be between 0 and 24, got %.1f", c.SleepHours)
	}
	return nil
}

// rule is one declarative factor: an independent predicate plus its weight
// split. positiveWeight counts toward the positive tally, weight toward the
// total. New factors are added here, not in control flow.
type checkInRule struct {
	label          string
	weight         int
	positiveWeight int
	applies        func(CheckIn) bool
}

func positiveMood(m Mood) bool {
	return m == MoodExcited || m == MoodConfident || m == MoodFocused
}

func negativeMood(m Mood) bool {
	return m == MoodAnxious || m == MoodFrustrated || m == MoodTired
}

var checkInRules = []checkInRule{
	{"positive mood", 15, 15, func(c CheckIn) bool { return positiveMood(c.Mood) }},
	{"negative mood", 20, 0, func(c CheckIn) bool { return negativeMood(c.Mood) }},
	{"neutral mood", 10, 5, func(c CheckIn) bool { return !positiveMood(c.Mood) && !negativeMood(c.Mood) }},
	{"high confidence", 15, 15, func(c CheckIn) bool { return c.Confidence >= 7 }},
	{"low confidence", 15, 0, func(c CheckIn) bool { return c.Confidence <= 3 }},
	{"low stress", 15, 15, func(c CheckIn) bool { return c.Stress <= 3 }},
	{"high stress", 20, 0, func(c CheckIn) bool { return c.Stress >= 7 }},
	{"well rested", 15, 15, func(c CheckIn) bool { return c.SleepHours >= 7 }},
	{"sleep deprived", 20, 0, func(c CheckIn) bool { return c.SleepHours < 5 }},
	{"sharp focus", 15, 15, func(c CheckIn) bool { return c.FocusLevel >= 7 }},
	{"poor focus", 15, 0, func(c CheckIn) bool { return c.FocusLevel <= 3 }},
}

type streakRule struct {
	label          string
	weight         int
	positiveWeight int
	applies        func([]TradeRecord) bool
}

var streakRules = []streakRule{
	{"loss streak", 25, 0, func(trades []TradeRecord) bool {
		return lossesAmong(trades, 5) >= 3
	}},
	{"win streak", 10, 10, func(trades []TradeRecord) bool {
		return lossesAmong(trades, 5) == 0 && winsInRow(trades, 3)
	}},
}

func lossesAmong(trades []TradeRecord, n int) int {
	if len(trades) < n {
		n = len(trades)
	}
	losses := 0
	for _, tr := range trades[:n] {
		if tr.Result == ResultLoss {
			losses++
		}
	}
	return losses
}

func winsInRow(trades []TradeRecord, n int) bool {
	if len(trades) < n {
		return false
	}
	for _, tr := range trades[:n] {
		if tr.Result != ResultWin {
			return false
		}
	}
	return true
}

// Evaluate scores the check-in (optional) together with the most recent
// trades, newest first. It returns ErrInsufficientData when both are absent
// and a validation error for out-of-range check-in values.
func Evaluate(checkIn *CheckIn, trades []TradeRecord) (Score, error) {
	if checkIn == nil && len(trades) == 0 {
		return Score{}, ErrInsufficientData
	}

	var totalWeight, positiveWeight int
	var factors []Factor

	if checkIn != nil {
		if err := checkIn.validate(); err != nil {
			return Score{}, err
		}
		for _, r := range checkInRules {
			if !r.applies(*checkIn) {
				continue
			}
			totalWeight += r.weight
			positiveWeight += r.positiveWeight
			factors = append(factors, Factor{Label: r.label, Weight: r.weight, Positive: r.positiveWeight > 0})
		}
	}

	for _, r := range streakRules {
		if !r.applies(trades) {
			continue
		}
		totalWeight += r.weight
		positiveWeight += r.positiveWeight
		factors = append(factors, Factor{Label: r.label, Weight: r.weight, Positive: r.positiveWeight > 0})
	}

	score := 50.0
	if totalWeight > 0 {
		score = float64(positiveWeight) / float64(totalWeight) * 100
	}

	result := Score{Score: score, Factors: factors}
	result.Multiplier, result.AlertLevel, result.Recommendation = band(score)
	return result, nil
}

// band maps a score to its multiplier, color and fixed recommendation.
func band(score float64) (float64, AlertLevel, string) {
	switch {
	case score >= 70:
		return 1.0, AlertGreen, "You're in a good headspace. Trade your normal plan."
	case score >= 50:
		return 0.75, AlertYellow, "Slightly off balance. Reduce position sizes by a quarter."
	case score >= 30:
		return 0.50, AlertYellow, "Elevated risk state. Trade half size and fewer setups."
	default:
		return 0.25, AlertRed, "High-risk state. Trade minimum size or step away for today."
	}
}
