package wdp

import (
	"fmt"
	"time"
)

// Config bounds the work of a clearing round.
type Config struct {
	// MaxBids caps the number of bids a single round accepts as input.
	// Zero disables the limit.
	MaxBids int `json:"max_bids"`
	// TimeoutSeconds is the deadline applied by callers to each round.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.MaxBids == 0 {
		c.MaxBids = 100000
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 10
	}
}

// Validate checks the limits are usable.
func (c Config) Validate() error {
	if c.MaxBids < 0 {
		return fmt.Errorf("max_bids must not be negative")
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative")
	}
	return nil
}

// Timeout returns the round deadline as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
