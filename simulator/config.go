// Package simulator generates synthetic capacity curves and bid streams for
// load tests and demos.
package simulator

import "fmt"

// Config holds parameters for bid generation.
type Config struct {
	// Bids is the number of bids to generate.
	Bids int `json:"bids"`
	// Intervals is the length of the capacity curve the bids target.
	Intervals   int `json:"intervals"`
	Aggregators int `json:"aggregators"`
	// MaxItems bounds the bundle size of multi-interval bids.
	MaxItems int `json:"max_items"`
	// SinglePct is the share of bids restricted to one interval.
	SinglePct float64 `json:"single_pct"`
	// MeanOffered is the Poisson mean of units offered per line item.
	MeanOffered float64 `json:"mean_offered"`
	// UnitPrice and PriceStdDev parameterise the normal per-unit valuation.
	UnitPrice   float64 `json:"unit_price"`
	PriceStdDev float64 `json:"price_std_dev"`
	Seed        uint64  `json:"seed"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Bids == 0 {
		c.Bids = 100
	}
	if c.Intervals == 0 {
		c.Intervals = 24
	}
	if c.Aggregators == 0 {
		c.Aggregators = 5
	}
	if c.MaxItems == 0 {
		c.MaxItems = 4
	}
	if c.MeanOffered == 0 {
		c.MeanOffered = 3
	}
	if c.UnitPrice == 0 {
		c.UnitPrice = 10
	}
	if c.PriceStdDev == 0 {
		c.PriceStdDev = 2
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.Bids < 0 {
		return fmt.Errorf("bids must be non-negative")
	}
	if c.Intervals <= 0 {
		return fmt.Errorf("intervals must be positive")
	}
	if c.Aggregators <= 0 {
		return fmt.Errorf("aggregators must be positive")
	}
	if c.MaxItems <= 0 {
		return fmt.Errorf("max_items must be positive")
	}
	if c.SinglePct < 0 || c.SinglePct > 1 {
		return fmt.Errorf("single_pct must be between 0 and 1")
	}
	if c.MeanOffered <= 0 || c.UnitPrice <= 0 || c.PriceStdDev < 0 {
		return fmt.Errorf("mean_offered and unit_price must be positive, price_std_dev non-negative")
	}
	return nil
}
