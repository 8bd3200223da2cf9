// Package featureflag exposes runtime toggles that can be flipped without
// restarting the process. Atomic primitives guarantee visibility across
// goroutines without heavyweight locks.
package featureflag

import "sync/atomic"

// RuntimeFlags holds the mutable switches for the risk engine.
type RuntimeFlags struct {
	notifications   atomic.Bool
	mutexProtection atomic.Bool
	persistence     atomic.Bool
	hardGate        atomic.Bool
}

// State is a materialized snapshot of the current flag values.
type State struct {
	EnableNotifications   bool `json:"enable_notifications"`
	EnableMutexProtection bool `json:"enable_mutex_protection"`
	EnablePersistence     bool `json:"enable_persistence"`
	EnableHardGate        bool `json:"enable_hard_gate"`
}

// Update represents a partial mutation. Nil values mean "leave untouched"
// so callers can patch a subset of flags.
type Update struct {
	EnableNotifications   *bool `json:"enable_notifications"`
	EnableMutexProtection *bool `json:"enable_mutex_protection"`
	EnablePersistence     *bool `json:"enable_persistence"`
	EnableHardGate        *bool `json:"enable_hard_gate"`
}

// DefaultState enables every protection; flags exist to switch things off
// deliberately, never to leave them off by accident.
func DefaultState() State {
	return State{
		EnableNotifications:   true,
		EnableMutexProtection: true,
		EnablePersistence:     true,
		EnableHardGate:        true,
	}
}

// NewRuntimeFlags constructs a container initialized with the given defaults.
func NewRuntimeFlags(initial State) *RuntimeFlags {
	f := &RuntimeFlags{}
	f.SetNotifications(initial.EnableNotifications)
	f.SetMutexProtection(initial.EnableMutexProtection)
	f.SetPersistence(initial.EnablePersistence)
	f.SetHardGate(initial.EnableHardGate)
	return f
}

// NotificationsEnabled reports whether breach notifications may be delivered.
func (f *RuntimeFlags) NotificationsEnabled() bool {
	if f == nil {
		return false
	}
	return f.notifications.Load()
}

// SetNotifications toggles breach notification delivery.
func (f *RuntimeFlags) SetNotifications(enabled bool) {
	if f == nil {
		return
	}
	f.notifications.Store(enabled)
}

// MutexProtectionEnabled reports whether flag-state mutations should take
// the mutex guard.
func (f *RuntimeFlags) MutexProtectionEnabled() bool {
	if f == nil {
		return true
	}
	return f.mutexProtection.Load()
}

// SetMutexProtection toggles the flag-state mutex usage.
func (f *RuntimeFlags) SetMutexProtection(enabled bool) {
	if f == nil {
		return
	}
	f.mutexProtection.Store(enabled)
}

// PersistenceEnabled reports whether alert state should be persisted.
func (f *RuntimeFlags) PersistenceEnabled() bool {
	if f == nil {
		return false
	}
	return f.persistence.Load()
}

// SetPersistence toggles alert state persistence.
func (f *RuntimeFlags) SetPersistence(enabled bool) {
	if f == nil {
		return
	}
	f.persistence.Store(enabled)
}

// HardGateEnabled reports whether the pre-trade checkpoint may block
// submissions.
func (f *RuntimeFlags) HardGateEnabled() bool {
	if f == nil {
		return true
	}
	return f.hardGate.Load()
}

// SetHardGate toggles checkpoint gate enforcement.
func (f *RuntimeFlags) SetHardGate(enabled bool) {
	if f == nil {
		return
	}
	f.hardGate.Store(enabled)
}

// Snapshot takes a consistent snapshot of all flags.
func (f *RuntimeFlags) Snapshot() State {
	if f == nil {
		return State{}
	}
	return State{
		EnableNotifications:   f.NotificationsEnabled(),
		EnableMutexProtection: f.MutexProtectionEnabled(),
		EnablePersistence:     f.PersistenceEnabled(),
		EnableHardGate:        f.HardGateEnabled(),
	}
}

// Apply atomically updates the flags according to the supplied patch and
// returns the resulting snapshot.
func (f *RuntimeFlags) Apply(update Update) State {
	if f == nil {
		return State{}
	}
	if update.EnableNotifications != nil {
		f.SetNotifications(*update.EnableNotifications)
	}
	if update.EnableMutexProtection != nil {
		f.SetMutexProtection(*update.EnableMutexProtection)
	}
	if update.EnablePersistence != nil {
		f.SetPersistence(*update.EnablePersistence)
	}
	if update.EnableHardGate != nil {
		f.SetHardGate(*update.EnableHardGate)
	}
	return f.Snapshot()
}
