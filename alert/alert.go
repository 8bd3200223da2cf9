// Package alert implements the breach alert ladder: an idempotent,
// hysteresis-based threshold detector over the account's drawdown metrics.
package alert

import (
	"context"
	"fmt"
)

// MetricKind selects which drawdown budget a flag or event refers to.
type MetricKind string

const (
	MetricDaily MetricKind = "daily"
	MetricTotal MetricKind = "total"
)

// Severity escalates with the threshold crossed.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityDanger   Severity = "danger"
	SeverityCritical Severity = "critical"
)

// Threshold pairs a used-percent rung with its severity.
type Threshold struct {
	Percent  float64
	Severity Severity
}

// ladder is the fixed rung set, ascending. Each rung carries its own
// notification flag per account and metric.
var ladder = []Threshold{
	{50, SeverityWarning},
	{75, SeverityDanger},
	{90, SeverityCritical},
}

// Thresholds returns a copy of the rung set for display purposes.
func Thresholds() []Threshold {
	out := make([]Threshold, len(ladder))
	copy(out, ladder)
	return out
}

// FlagKey identifies one notification flag: has this account already been
// notified for the current crossing of this rung on this metric?
type FlagKey struct {
	AccountID string
	Metric    MetricKind
	Threshold int
}

func (k FlagKey) String() string {
	return fmt.Sprintf("%s:%s:%d", k.AccountID, k.Metric, k.Threshold)
}

// FlagStore is the persistence contract for notification flags. The
// compare-and-set form is what makes notifications at-most-once under
// concurrent observers: only the caller whose CAS succeeds may notify.
type FlagStore interface {
	Get(ctx context.Context, key FlagKey) (bool, error)
	// CompareAndSet stores next only if the flag currently equals expected,
	// reporting whether this call performed the transition.
	CompareAndSet(ctx context.Context, key FlagKey, expected, next bool) (bool, error)
}

// Event is one notification-worthy threshold crossing.
type Event struct {
	AccountID string     `json:"account_id"`
	Metric    MetricKind `json:"metric"`
	Threshold int        `json:"threshold"`
	Severity  Severity   `json:"severity"`
	UsedPct   float64    `json:"used_pct"`
	Remaining float64    `json:"remaining"`
}

// Tag builds the client-side deduplication tag for this crossing.
func (e Event) Tag() string {
	return fmt.Sprintf("breach-%s-%s-%d", e.AccountID, e.Metric, e.Threshold)
}

// Active describes a rung the account currently sits above, regardless of
// whether a notification fired this call. The ladder returns these even
// when the flag store is down, so the risk level always reaches the caller.
type Active struct {
	Metric    MetricKind `json:"metric"`
	Threshold int        `json:"threshold"`
	Severity  Severity   `json:"severity"`
	UsedPct   float64    `json:"used_pct"`
}

// Result is the outcome of one ladder evaluation.
type Result struct {
	Fired      []Event  `json:"fired"`
	Active     []Active `json:"active"`
	StoreError bool     `json:"store_error,omitempty"`
}

var severityRank = map[Severity]int{
	SeverityWarning:  1,
	SeverityDanger:   2,
	SeverityCritical: 3,
}

// HighestSeverity reports the most severe active rung across both metrics,
// or "" when the account sits below every threshold.
func (r Result) HighestSeverity() Severity {
	var out Severity
	for _, a := range r.Active {
		if severityRank[a.Severity] > severityRank[out] {
			out = a.Severity
		}
	}
	return out
}
