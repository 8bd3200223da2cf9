// Package config loads and validates the engine configuration from a JSON
// file. Missing knobs fall back to product defaults so a minimal file with
// just the account list is enough to start.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"propguard/featureflag"
)

// AccountConfig describes one funded or challenge account the engine tracks.
type AccountConfig struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	AccountSize         float64 `json:"account_size"`
	CurrentBalance      float64 `json:"current_balance"`
	DayStartBalance     float64 `json:"day_start_balance"`
	MaxDailyDrawdownPct float64 `json:"max_daily_drawdown_pct"`
	MaxTotalDrawdownPct float64 `json:"max_total_drawdown_pct"`
	ProfitTargetPct     float64 `json:"profit_target_pct"`

	// Challenge tracking. ChallengeStart uses the 2006-01-02 layout; an
	// empty value means the account is not in an evaluation phase.
	ChallengeStart string `json:"challenge_start,omitempty"`
	ChallengeDays  int    `json:"challenge_days,omitempty"`

	// PayoutSplitPct is the trader's share of simulated profits.
	PayoutSplitPct float64 `json:"payout_split_pct"`
}

// PolicyConfig exposes the heuristic knobs of the simulators. Zero values
// take the product defaults.
type PolicyConfig struct {
	CascadeDangerSteps  int     `json:"cascade_danger_steps"`
	CascadeWarningSteps int     `json:"cascade_warning_steps"`
	CascadeHorizon      int     `json:"cascade_horizon"`
	PhaseSlackFactor    float64 `json:"phase_slack_factor"`
}

// Config is the root configuration document.
type Config struct {
	Accounts      []AccountConfig `json:"accounts"`
	APIServerPort int             `json:"api_server_port"`
	DatabaseURL   string          `json:"database_url,omitempty"`
	Policy        PolicyConfig    `json:"policy"`

	// Flags holds the startup values for the runtime toggles. Omitted
	// fields default to enabled.
	Flags featureflag.Update `json:"flags"`
}

const (
	defaultAPIPort       = 8090
	defaultDailyDrawdown = 4.0
	defaultTotalDrawdown = 8.0
	defaultProfitTarget  = 8.0
	defaultPayoutSplit   = 80.0
	defaultChallengeDays = 30
	challengeStartLayout = "2006-01-02"
)

// Load reads, parses, and validates a configuration file.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides lets deployment environments override file settings
// without editing the config on disk.
func (c *Config) applyEnvOverrides() {
	if url := strings.TrimSpace(os.Getenv("DATABASE_URL")); url != "" {
		c.DatabaseURL = url
	}
	overrideFlag("ENABLE_NOTIFICATIONS", &c.Flags.EnableNotifications)
	overrideFlag("ENABLE_MUTEX_PROTECTION", &c.Flags.EnableMutexProtection)
	overrideFlag("ENABLE_PERSISTENCE", &c.Flags.EnablePersistence)
	overrideFlag("ENABLE_HARD_GATE", &c.Flags.EnableHardGate)
}

func overrideFlag(envKey string, target **bool) {
	raw := strings.TrimSpace(os.Getenv(envKey))
	if raw == "" {
		return
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		return
	}
	*target = &enabled
}

// Validate checks the configuration and fills in defaults in place.
func (c *Config) Validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account must be configured")
	}

	seen := make(map[string]bool)
	for i := range c.Accounts {
		acct := &c.Accounts[i]
		if acct.ID == "" {
			return fmt.Errorf("account[%d]: id must not be empty", i)
		}
		if seen[acct.ID] {
			return fmt.Errorf("account[%d]: duplicate id %q", i, acct.ID)
		}
		seen[acct.ID] = true

		if acct.Name == "" {
			acct.Name = acct.ID
		}
		if acct.AccountSize <= 0 {
			return fmt.Errorf("account[%d]: account_size must be positive", i)
		}
		if acct.CurrentBalance <= 0 {
			acct.CurrentBalance = acct.AccountSize
		}
		if acct.DayStartBalance <= 0 {
			acct.DayStartBalance = acct.CurrentBalance
		}
		if acct.MaxDailyDrawdownPct <= 0 {
			acct.MaxDailyDrawdownPct = defaultDailyDrawdown
		}
		if acct.MaxTotalDrawdownPct <= 0 {
			acct.MaxTotalDrawdownPct = defaultTotalDrawdown
		}
		if acct.MaxDailyDrawdownPct >= 100 || acct.MaxTotalDrawdownPct >= 100 {
			return fmt.Errorf("account[%d]: drawdown limits must be below 100%%", i)
		}
		if acct.ProfitTargetPct <= 0 {
			acct.ProfitTargetPct = defaultProfitTarget
		}
		if acct.PayoutSplitPct <= 0 {
			acct.PayoutSplitPct = defaultPayoutSplit
		}
		if acct.PayoutSplitPct > 100 {
			return fmt.Errorf("account[%d]: payout_split_pct must not exceed 100", i)
		}

		if acct.ChallengeStart != "" {
			if _, err := time.Parse(challengeStartLayout, acct.ChallengeStart); err != nil {
				return fmt.Errorf("account[%d]: challenge_start must use YYYY-MM-DD: %w", i, err)
			}
			if acct.ChallengeDays <= 0 {
				acct.ChallengeDays = defaultChallengeDays
			}
		}
	}

	if c.APIServerPort <= 0 {
		c.APIServerPort = defaultAPIPort
	}

	if c.Policy.CascadeDangerSteps < 0 || c.Policy.CascadeWarningSteps < 0 || c.Policy.CascadeHorizon < 0 {
		return fmt.Errorf("policy: cascade step counts must not be negative")
	}
	if c.Policy.PhaseSlackFactor < 0 || c.Policy.PhaseSlackFactor > 1 {
		return fmt.Errorf("policy: phase_slack_factor must be in [0, 1]")
	}

	return nil
}

// ChallengeStartTime parses the configured challenge start date. The second
// return value is false when the account has no challenge configured.
func (a *AccountConfig) ChallengeStartTime() (time.Time, bool) {
	if a.ChallengeStart == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(challengeStartLayout, a.ChallengeStart)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// FlagState resolves the startup flag values: defaults with the configured
// overrides applied.
func (c *Config) FlagState() featureflag.State {
	flags := featureflag.NewRuntimeFlags(featureflag.DefaultState())
	return flags.Apply(c.Flags)
}
