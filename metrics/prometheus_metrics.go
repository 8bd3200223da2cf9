//go:build metrics

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	drawdownUsedGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "drawdown_used_pct",
		Help: "Share of the drawdown budget consumed, per metric",
	}, []string{"account_id", "metric"})

	breachNotificationsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "breach_notifications_total",
		Help: "Threshold-crossing notifications fired",
	}, []string{"account_id", "severity"})

	flagCASConflictsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "breach_flag_cas_conflicts_total",
		Help: "Compare-and-set attempts lost to another observer",
	}, []string{"account_id"})

	flagStoreErrorsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "breach_flag_store_errors_total",
		Help: "Flag store failures absorbed by the ladder",
	}, []string{"account_id"})

	ladderEvalLatencyGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "breach_ladder_eval_latency_ms",
		Help: "Duration of the latest ladder evaluation in milliseconds",
	}, []string{"account_id"})

	checkpointRejectionsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkpoint_rejections_total",
		Help: "Trades blocked by the pre-trade gate",
	}, []string{"account_id"})

	persistenceAttemptsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flag_persistence_attempts_total",
		Help: "Attempts to persist alert state",
	}, []string{"account_id"})

	persistenceFailuresCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flag_persistence_failures_total",
		Help: "Errors persisting alert state",
	}, []string{"account_id"})

	persistLatencyGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flag_persist_latency_ms",
		Help: "Time spent persisting alert state in milliseconds",
	}, []string{"account_id"})

	unguardedUpdatesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flag_unguarded_updates_total",
		Help: "Flag updates performed without mutex protection",
	}, []string{"account_id"})
)

func init() {
	prometheus.MustRegister(
		drawdownUsedGauge,
		breachNotificationsCounter,
		flagCASConflictsCounter,
		flagStoreErrorsCounter,
		ladderEvalLatencyGauge,
		checkpointRejectionsCounter,
		persistenceAttemptsCounter,
		persistenceFailuresCounter,
		persistLatencyGauge,
		unguardedUpdatesCounter,
	)
}

func ObserveDrawdownUsed(accountID, metric string, pct float64) {
	drawdownUsedGauge.WithLabelValues(accountID, metric).Set(pct)
}

func IncBreachNotifications(accountID, severity string) {
	breachNotificationsCounter.WithLabelValues(accountID, severity).Inc()
}

func IncFlagCASConflicts(accountID string) {
	flagCASConflictsCounter.WithLabelValues(accountID).Inc()
}

func IncFlagStoreErrors(accountID string) {
	flagStoreErrorsCounter.WithLabelValues(accountID).Inc()
}

func ObserveLadderEvalLatency(accountID string, duration time.Duration) {
	ladderEvalLatencyGauge.WithLabelValues(accountID).Set(duration.Seconds() * 1000)
}

func IncCheckpointRejections(accountID string) {
	checkpointRejectionsCounter.WithLabelValues(accountID).Inc()
}

func IncFlagPersistenceAttempts(accountID string) {
	persistenceAttemptsCounter.WithLabelValues(accountID).Inc()
}

func IncFlagPersistenceFailures(accountID string) {
	persistenceFailuresCounter.WithLabelValues(accountID).Inc()
}

func ObserveFlagPersistLatency(accountID string, duration time.Duration) {
	persistLatencyGauge.WithLabelValues(accountID).Set(duration.Seconds() * 1000)
}

func IncUnguardedFlagUpdates(accountID string) {
	unguardedUpdatesCounter.WithLabelValues(accountID).Inc()
}
