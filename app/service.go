// Package app wires the market, the solver and their transports into a
// long-running service.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/flexmarket/api"
	"github.com/kilianp07/flexmarket/config"
	"github.com/kilianp07/flexmarket/core/curve"
	coremetrics "github.com/kilianp07/flexmarket/core/metrics"
	"github.com/kilianp07/flexmarket/core/market"
	"github.com/kilianp07/flexmarket/core/model"
	"github.com/kilianp07/flexmarket/core/monitoring"
	coremqtt "github.com/kilianp07/flexmarket/core/mqtt"
	"github.com/kilianp07/flexmarket/core/wdp"
	"github.com/kilianp07/flexmarket/infra/journal"
	"github.com/kilianp07/flexmarket/infra/logger"
	"github.com/kilianp07/flexmarket/infra/metrics"
	inframon "github.com/kilianp07/flexmarket/infra/monitoring"
	"github.com/kilianp07/flexmarket/infra/mqtt"
	"github.com/kilianp07/flexmarket/internal/eventbus"
)

// RoundEvent is published on the service bus after every successful round.
type RoundEvent struct {
	Result     wdp.Result
	Curve      *curve.Curve
	Bids       int
	UpperBound float64
}

// Option customises a Service. Collaborators supplied as options replace
// the ones New would build from the configuration.
type Option func(*Service)

// WithTransport sets the MQTT transport.
func WithTransport(t coremqtt.Client) Option {
	return func(s *Service) { s.transport = t }
}

// WithJournal sets the clearing journal.
func WithJournal(j journal.Store) Option {
	return func(s *Service) { s.journal = j }
}

// WithSink sets the metrics sink.
func WithSink(m coremetrics.Sink) Option {
	return func(s *Service) { s.sink = m }
}

// WithClock sets the time source of the market and the solver.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMonitor sets the error reporter.
func WithMonitor(m monitoring.Monitor) Option {
	return func(s *Service) { s.monitor = m }
}

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// Service runs market sessions. A session is one operator collecting bids;
// each clearing round closes the current session and opens a fresh one on
// the same curve.
type Service struct {
	cfg       *config.Config
	curve     *curve.Curve
	solver    *wdp.Solver
	sink      coremetrics.Sink
	transport coremqtt.Client
	journal   journal.Store
	monitor   monitoring.Monitor
	bus       *eventbus.Bus[RoundEvent]
	log       logger.Logger
	now       func() time.Time

	// mu is held shared by submissions and exclusively by the session swap,
	// so no bid lands in a session after its snapshot.
	mu      sync.RWMutex
	session *market.Operator
	rounds  int
}

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	c, err := curve.New(cfg.Market.Curve)
	if err != nil {
		return nil, fmt.Errorf("market curve: %w", err)
	}
	s := &Service{cfg: cfg, curve: c, bus: eventbus.New[RoundEvent](16)}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = logger.New("service")
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sink == nil {
		if s.sink, err = coremetrics.NewSink(cfg.Metrics.Sinks); err != nil {
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
	}
	if s.transport == nil && cfg.MQTT.Enabled() {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		s.transport = client
	}
	if s.monitor == nil {
		if s.monitor, err = inframon.NewSentryMonitor(cfg.Monitoring); err != nil {
			return nil, fmt.Errorf("monitoring: %w", err)
		}
	}
	if s.journal == nil && cfg.Journal.Enabled {
		if s.journal, err = journal.NewStore(cfg.Journal); err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
	}
	s.solver = wdp.NewSolverFromConfig(cfg.Solver,
		wdp.WithLogger(logger.New("wdp")),
		wdp.WithRecorder(s.sink),
		wdp.WithClock(s.now),
	)
	if s.session, err = s.newSession(); err != nil {
		return nil, err
	}
	// Bids may arrive as soon as the transport is connected.
	if s.transport != nil {
		s.transport.OnBid(s.SubmitBid)
	}
	return s, nil
}

func (s *Service) newSession() (*market.Operator, error) {
	return market.NewOperator(s.curve,
		market.WithLogger(logger.New("market")),
		market.WithRecorder(s.sink),
		market.WithClock(s.now),
	)
}

// SubmitBid hands b to the current session.
func (s *Service) SubmitBid(b model.Bid) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.ReceiveBid(b)
}

// Demand returns the per-interval demand of the current session.
func (s *Service) Demand() map[int]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.EvaluateBids()
}

// Pending returns the number of bids waiting for the next round.
func (s *Service) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Len()
}

// Rounds returns the number of rounds cleared successfully.
func (s *Service) Rounds() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rounds
}

// Events subscribes to round events. The channel is closed when Run returns.
func (s *Service) Events() <-chan RoundEvent {
	return s.bus.Subscribe()
}

// ClearRound closes the current session and solves it under the solver
// timeout. A failed round discards its session.
func (s *Service) ClearRound(ctx context.Context) (wdp.Result, error) {
	next, err := s.newSession()
	if err != nil {
		return wdp.Result{}, err
	}
	s.mu.Lock()
	op := s.session
	s.session = next
	s.mu.Unlock()

	if t := s.cfg.Solver.Timeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	bids := op.Bids()
	res, err := s.solver.Solve(ctx, op.Curve(), bids)
	if err != nil {
		s.log.Errorf("clearing round failed, %d bids discarded: %v", len(bids), err)
		s.monitor.CaptureException(err, map[string]string{"stage": "clear"})
		return wdp.Result{}, err
	}

	ev := RoundEvent{Result: res, Curve: op.Curve(), Bids: len(bids)}
	if s.cfg.Market.RelaxationBound && len(bids) > 0 {
		bound, err := wdp.RelaxationBound(op.Curve(), bids)
		if err != nil {
			s.log.Warnf("round %s: relaxation bound: %v", res.RoundID, err)
		} else {
			ev.UpperBound = bound
			got, _ := res.TotalValuation.Float64()
			s.log.Infof("round %s: valuation %s, relaxation bound %.3f, gap %.3f", res.RoundID, res.TotalValuation, bound, bound-got)
		}
	}
	s.mu.Lock()
	s.rounds++
	s.mu.Unlock()
	if n := s.bus.Publish(ev); n > 0 {
		s.log.Warnf("round %s: event dropped for %d slow subscribers (%d dropped in total)", res.RoundID, n, s.bus.Dropped())
	}
	return res, nil
}

// Run starts the service and blocks until the context is cancelled. Rounds
// are cleared every market.clear_interval_seconds; a zero interval disables
// the ticker and leaves clearing to ClearRound callers.
func (s *Service) Run(ctx context.Context) error {
	events := s.bus.Subscribe()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer s.monitor.Recover()
		for ev := range events {
			s.deliver(ctx, ev)
		}
	}()

	if s.cfg.Metrics.HasSink("prometheus") {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	if s.cfg.API.Enabled() {
		mux := api.NewMux(s, s.journal, s.cfg.API.Token)
		go func() {
			if err := api.Serve(ctx, s.cfg.API.Addr, mux); err != nil {
				s.log.Errorf("api server: %v", err)
				s.monitor.CaptureException(err, map[string]string{"stage": "api"})
			}
		}()
	}

	var tick <-chan time.Time
	if d := s.cfg.Market.ClearInterval(); d > 0 {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		tick = ticker.C
	}
	s.log.Infof("market open on %d intervals", s.curve.Len())
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-tick:
			if _, err := s.ClearRound(ctx); err != nil && ctx.Err() == nil {
				s.log.Warnf("round skipped: %v", err)
			}
		}
	}
	s.bus.Close()
	wg.Wait()
	return nil
}

// deliver fans a round out to the transport and the journal.
func (s *Service) deliver(ctx context.Context, ev RoundEvent) {
	if s.transport != nil {
		pubCtx := context.WithoutCancel(ctx)
		if err := s.transport.PublishResult(pubCtx, ev.Result); err != nil {
			s.log.Errorf("publish round %s: %v", ev.Result.RoundID, err)
			s.monitor.CaptureException(err, map[string]string{"stage": "publish", "round_id": ev.Result.RoundID})
		}
	}
	if s.journal != nil {
		rec := journal.NewRecord(ev.Curve, ev.Bids, ev.Result, ev.UpperBound)
		if err := s.journal.Append(context.WithoutCancel(ctx), rec); err != nil {
			s.log.Errorf("journal round %s: %v", ev.Result.RoundID, err)
			s.monitor.CaptureException(err, map[string]string{"stage": "journal", "round_id": ev.Result.RoundID})
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.monitor.Flush(2 * time.Second)
	if s.transport != nil {
		s.transport.Disconnect()
	}
	if s.journal != nil {
		return s.journal.Close()
	}
	return nil
}
