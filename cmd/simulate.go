package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/flexmarket/infra/logger"
	"github.com/kilianp07/flexmarket/infra/mqtt"
	"github.com/kilianp07/flexmarket/simulator"
)

type simulateOptions struct {
	sim       simulator.Config
	out       string
	publish   bool
	curveMean float64
	curveDev  float64
}

func newSimulateCmd(root *rootOptions) *cobra.Command {
	opts := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate a synthetic bid book",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulate(cmd, root, opts)
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.sim.Bids, "bids", 100, "number of bids")
	f.Uint64Var(&opts.sim.Seed, "seed", 1, "random seed")
	f.IntVar(&opts.sim.Intervals, "intervals", 24, "number of intervals")
	f.IntVar(&opts.sim.Aggregators, "aggregators", 5, "number of aggregators")
	f.IntVar(&opts.sim.MaxItems, "max-items", 4, "maximum bundle size")
	f.Float64Var(&opts.sim.SinglePct, "single-pct", 0.3, "share of single-interval bids")
	f.Float64Var(&opts.curveMean, "curve-mean", 0, "mean of the generated curve; zero skips the curve")
	f.Float64Var(&opts.curveDev, "curve-stddev", 5, "standard deviation of the generated curve")
	f.StringVarP(&opts.out, "out", "o", "", "output file, stdout when empty")
	f.BoolVar(&opts.publish, "publish", false, "publish the bids on the configured MQTT bid topic")
	return cmd
}

func runSimulate(cmd *cobra.Command, root *rootOptions, opts *simulateOptions) error {
	sim := opts.sim
	sim.SetDefaults()
	gen, err := simulator.NewGenerator(sim)
	if err != nil {
		return err
	}
	bids, err := gen.Bids()
	if err != nil {
		return err
	}

	book := bidFile{Bids: make([]bidEntry, len(bids))}
	if opts.curveMean != 0 {
		book.Curve = gen.Curve(sim.Intervals, opts.curveMean, opts.curveDev)
	}
	for i, b := range bids {
		book.Bids[i] = entryOf(b)
	}

	var w io.Writer = cmd.OutOrStdout()
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	if err := writeBidFile(w, book); err != nil {
		return err
	}
	if !opts.publish {
		return nil
	}

	cfg, err := root.loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.MQTT.Enabled() {
		return fmt.Errorf("--publish requires mqtt.broker")
	}
	cli, err := mqtt.NewPahoClient(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("mqtt client: %w", err)
	}
	defer cli.Disconnect()
	for _, b := range bids {
		if err := cli.PublishBid(cmd.Context(), b); err != nil {
			return err
		}
	}
	logger.New("simulate").Infof("published %d bids to %s", len(bids), cfg.MQTT.BidTopic)
	return nil
}
