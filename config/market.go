package config

import (
	"fmt"
	"time"
)

// MarketConfig describes the capacity offered to the market and the
// clearing cadence.
type MarketConfig struct {
	// Curve is the signed capacity per interval.
	Curve []int `json:"curve"`
	// ClearIntervalSeconds is the period between clearing rounds.
	ClearIntervalSeconds int `json:"clear_interval_seconds"`
	// RelaxationBound enables the LP upper bound report after each round.
	RelaxationBound bool `json:"relaxation_bound"`
}

// SetDefaults applies sane defaults.
func (c *MarketConfig) SetDefaults() {
	if c.ClearIntervalSeconds == 0 {
		c.ClearIntervalSeconds = 60
	}
}

// Validate checks the clearing cadence.
func (c MarketConfig) Validate() error {
	if c.ClearIntervalSeconds < 0 {
		return fmt.Errorf("clear_interval_seconds must be non-negative")
	}
	return nil
}

// ClearInterval returns the clearing period.
func (c MarketConfig) ClearInterval() time.Duration {
	return time.Duration(c.ClearIntervalSeconds) * time.Second
}
