// Package journal persists an append-only history of clearing rounds.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/flexmarket/core/curve"
	"github.com/kilianp07/flexmarket/core/wdp"
	"github.com/kilianp07/flexmarket/pkg/export"
)

// ClearingRecord captures one clearing round and its inputs.
type ClearingRecord struct {
	Timestamp time.Time           `json:"timestamp"`
	RoundID   string              `json:"round_id"`
	Curve     []int               `json:"curve"`
	BidCount  int                 `json:"bid_count"`
	Result    export.ResultRecord `json:"result"`
	// UpperBound is the LP relaxation value, zero when it was not computed.
	UpperBound float64 `json:"upper_bound"`
}

// NewRecord builds the journal entry for res solved against c.
func NewRecord(c *curve.Curve, bidCount int, res wdp.Result, bound float64) ClearingRecord {
	rec := ClearingRecord{
		Timestamp:  res.Started.Add(res.Duration),
		RoundID:    res.RoundID,
		BidCount:   bidCount,
		Result:     export.NewResultRecord(res),
		UpperBound: bound,
	}
	if c != nil {
		rec.Curve = c.Values()
	}
	return rec
}

// Query defines filters for retrieving records. Zero fields match everything.
type Query struct {
	Start        time.Time
	End          time.Time
	AggregatorID string
	RoundID      string
}

// Matches reports whether r passes every filter of q.
func (q Query) Matches(r ClearingRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.RoundID != "" && r.RoundID != q.RoundID {
		return false
	}
	if q.AggregatorID != "" && !r.Result.Involves(q.AggregatorID) {
		return false
	}
	return true
}

// Store persists ClearingRecords and supports querying.
type Store interface {
	Append(ctx context.Context, rec ClearingRecord) error
	Query(ctx context.Context, q Query) ([]ClearingRecord, error)
	Close() error
}

// Config selects the journal backend. Driver is "jsonl" (default) or
// "sqlite". For jsonl, rotation is enabled when MaxSizeMB is positive.
type Config struct {
	Enabled    bool   `json:"enabled"`
	Driver     string `json:"driver"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "jsonl"
	}
	if c.Path == "" {
		if c.Driver == "sqlite" {
			c.Path = "data/clearing.db"
		} else {
			c.Path = "data/clearing.jsonl"
		}
	}
}

// Validate checks the driver and rotation settings.
func (c Config) Validate() error {
	switch c.Driver {
	case "", "jsonl", "sqlite":
	default:
		return fmt.Errorf("unknown journal driver %q", c.Driver)
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("journal rotation settings must be non-negative")
	}
	return nil
}

// NewStore opens the store described by cfg.
func NewStore(cfg Config) (Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("journal path is empty")
	}
	if cfg.Driver == "sqlite" {
		return NewSQLiteStore(cfg.Path)
	}
	if cfg.MaxSizeMB > 0 {
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	}
	return NewJSONLStore(cfg.Path)
}
