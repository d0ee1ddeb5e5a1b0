package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/flexmarket/core/metrics"
)

// PromSink records market events in Prometheus metrics.
type PromSink struct {
	bids      *prometheus.CounterVec
	rounds    prometheus.Counter
	outcomes  *prometheus.CounterVec
	duration  prometheus.Histogram
	allocated prometheus.Gauge
	valuation prometheus.Gauge
	remaining *prometheus.GaugeVec
}

// NewPromSink registers market metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.bids, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flexmarket_bids_total",
		Help: "Bid submissions by outcome",
	}, []string{"accepted", "reason"})); err != nil {
		return nil, err
	}
	if s.rounds, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flexmarket_clearing_rounds_total",
		Help: "Completed winner determination rounds",
	})); err != nil {
		return nil, err
	}
	if s.outcomes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flexmarket_cleared_bids_total",
		Help: "Bids evaluated by the solver by outcome",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flexmarket_clearing_duration_seconds",
		Help:    "Wall time of a winner determination round",
		Buckets: prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	if s.allocated, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flexmarket_allocated_units",
		Help: "Units allocated in the last round",
	})); err != nil {
		return nil, err
	}
	if s.valuation, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flexmarket_total_valuation",
		Help: "Sum of accepted valuations in the last round",
	})); err != nil {
		return nil, err
	}
	if s.remaining, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flexmarket_remaining_capacity",
		Help: "Capacity left per interval after the last round",
	}, []string{"interval"})); err != nil {
		return nil, err
	}
	return s, nil
}

// register reuses an already registered collector of the same description.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordBid increments the submission counter.
func (s *PromSink) RecordBid(ev coremetrics.BidEvent) error {
	s.bids.WithLabelValues(strconv.FormatBool(ev.Accepted), ev.Reason).Inc()
	return nil
}

// RecordClearing updates the round metrics.
func (s *PromSink) RecordClearing(ev coremetrics.ClearingEvent) error {
	s.rounds.Inc()
	s.outcomes.WithLabelValues("accepted").Add(float64(ev.Accepted))
	s.outcomes.WithLabelValues("rejected").Add(float64(ev.Rejected))
	s.duration.Observe(ev.Duration.Seconds())
	s.allocated.Set(float64(ev.Allocated))
	s.valuation.Set(ev.TotalValuation)
	for i, r := range ev.Remaining {
		s.remaining.WithLabelValues(strconv.Itoa(i)).Set(float64(r))
	}
	return nil
}
