package alert

import (
	"context"
	"fmt"
	"log"
	"time"

	"propguard/account"
	"propguard/featureflag"
	"propguard/metrics"
	"propguard/notify"
)

// Ladder evaluates drawdown metrics against the threshold rungs and owns
// the notification flag lifecycle. It is safe for concurrent use; the flag
// store's compare-and-set keeps notifications at-most-once per crossing.
type Ladder struct {
	store FlagStore
	sink  notify.Sink
	flags *featureflag.RuntimeFlags
}

// NewLadder wires a ladder. A nil store falls back to the in-memory store,
// a nil sink to the log sink, nil flags to the defaults.
func NewLadder(store FlagStore, sink notify.Sink, flags *featureflag.RuntimeFlags) *Ladder {
	if store == nil {
		store = NewMemStore(nil)
	}
	if sink == nil {
		sink = notify.LogSink{}
	}
	if flags == nil {
		flags = featureflag.NewRuntimeFlags(featureflag.DefaultState())
	}
	return &Ladder{store: store, sink: sink, flags: flags}
}

// Evaluate walks both metrics through the rungs. Crossings whose flag is
// unset fire exactly one notification and set the flag; rungs the metric
// fell back below are re-armed. Store failures never fail the evaluation:
// the active rungs are still reported so callers can surface the risk
// level, only delivery is skipped.
func (l *Ladder) Evaluate(ctx context.Context, accountID string, m account.Metrics) Result {
	start := time.Now()

	var res Result
	l.walk(ctx, accountID, MetricDaily, m.DailyUsedPct, m.DailyRemaining, &res)
	l.walk(ctx, accountID, MetricTotal, m.TotalUsedPct, m.TotalRemaining, &res)

	metrics.ObserveDrawdownUsed(accountID, string(MetricDaily), m.DailyUsedPct)
	metrics.ObserveDrawdownUsed(accountID, string(MetricTotal), m.TotalUsedPct)
	metrics.ObserveLadderEvalLatency(accountID, time.Since(start))
	return res
}

func (l *Ladder) walk(ctx context.Context, accountID string, metric MetricKind, usedPct, remaining float64, res *Result) {
	for _, rung := range ladder {
		key := FlagKey{AccountID: accountID, Metric: metric, Threshold: int(rung.Percent)}

		if usedPct < rung.Percent {
			// Below the rung: re-arm so the next crossing notifies again.
			if _, err := l.store.CompareAndSet(ctx, key, true, false); err != nil {
				l.storeError(accountID, key, err, res)
			}
			continue
		}

		res.Active = append(res.Active, Active{
			Metric:    metric,
			Threshold: int(rung.Percent),
			Severity:  rung.Severity,
			UsedPct:   usedPct,
		})

		won, err := l.store.CompareAndSet(ctx, key, false, true)
		if err != nil {
			l.storeError(accountID, key, err, res)
			continue
		}
		if !won {
			metrics.IncFlagCASConflicts(accountID)
			continue
		}

		event := Event{
			AccountID: accountID,
			Metric:    metric,
			Threshold: int(rung.Percent),
			Severity:  rung.Severity,
			UsedPct:   usedPct,
			Remaining: remaining,
		}
		res.Fired = append(res.Fired, event)
		metrics.IncBreachNotifications(accountID, string(rung.Severity))

		if l.flags.NotificationsEnabled() {
			l.sink.Notify(notification(event))
		}
	}
}

func (l *Ladder) storeError(accountID string, key FlagKey, err error, res *Result) {
	res.StoreError = true
	metrics.IncFlagStoreErrors(accountID)
	log.Printf("flag store error for %s: %v", key, err)
}

func notification(e Event) notify.Notification {
	metricName := "daily"
	if e.Metric == MetricTotal {
		metricName = "total"
	}
	return notify.Notification{
		Title: fmt.Sprintf("%s drawdown %s", titleCase(metricName), e.Severity),
		Body: fmt.Sprintf("%.1f%% of your %s drawdown budget is used. %.2f remaining.",
			e.UsedPct, metricName, e.Remaining),
		Tag:                e.Tag(),
		RequireInteraction: e.Severity == SeverityCritical,
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
