//go:build !metrics

package metrics

import "time"

func ObserveDrawdownUsed(string, string, float64)       {}
func IncBreachNotifications(string, string)             {}
func IncFlagCASConflicts(string)                        {}
func IncFlagStoreErrors(string)                         {}
func ObserveLadderEvalLatency(string, time.Duration)    {}
func IncCheckpointRejections(string)                    {}
func IncFlagPersistenceAttempts(string)                 {}
func IncFlagPersistenceFailures(string)                 {}
func ObserveFlagPersistLatency(string, time.Duration)   {}
func IncUnguardedFlagUpdates(string)                    {}
