package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/flexmarket/core/curve"
	"github.com/kilianp07/flexmarket/core/market"
	"github.com/kilianp07/flexmarket/core/wdp"
	"github.com/kilianp07/flexmarket/infra/logger"
	"github.com/kilianp07/flexmarket/pkg/export"
)

type clearOptions struct {
	bidsPath  string
	format    string
	curve     []int
	remaining bool
	bound     bool
}

func newClearCmd(root *rootOptions) *cobra.Command {
	opts := &clearOptions{}
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear a bid book file once and print the accepted bids",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClear(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.bidsPath, "bids", "", "bid book file (yaml or json)")
	cmd.Flags().StringVar(&opts.format, "format", "json", "output format: json or csv")
	cmd.Flags().IntSliceVar(&opts.curve, "curve", nil, "capacity curve, overrides the file and the configuration")
	cmd.Flags().BoolVar(&opts.remaining, "remaining", false, "append the remaining capacity per interval (csv)")
	cmd.Flags().BoolVar(&opts.bound, "bound", false, "log the LP relaxation upper bound")
	_ = cmd.MarkFlagRequired("bids")
	return cmd
}

func runClear(cmd *cobra.Command, root *rootOptions, opts *clearOptions) error {
	if opts.format != "json" && opts.format != "csv" {
		return fmt.Errorf("unknown format %q", opts.format)
	}
	cfg, err := root.loadConfig(cmd)
	if err != nil {
		return err
	}
	book, err := readBidFile(opts.bidsPath)
	if err != nil {
		return err
	}
	values := cfg.Market.Curve
	if len(book.Curve) > 0 {
		values = book.Curve
	}
	if len(opts.curve) > 0 {
		values = opts.curve
	}
	c, err := curve.New(values)
	if err != nil {
		return fmt.Errorf("capacity curve: %w", err)
	}

	log := logger.New("clear")
	op, err := market.NewOperator(c, market.WithLogger(log))
	if err != nil {
		return err
	}
	for i, e := range book.Bids {
		b, err := e.bid()
		if err == nil {
			err = op.ReceiveBid(b)
		}
		if err != nil {
			log.Warnf("bid #%d from %s refused: %v", i, e.AggregatorID, err)
		}
	}

	solver := wdp.NewSolverFromConfig(cfg.Solver, wdp.WithLogger(logger.New("wdp")))
	res, err := op.Clear(cmd.Context(), solver)
	if err != nil {
		return err
	}
	if opts.bound {
		bound, err := wdp.RelaxationBound(c, op.Bids())
		if err != nil {
			return fmt.Errorf("relaxation bound: %w", err)
		}
		log.Infof("greedy valuation %s, relaxation bound %.3f", res.TotalValuation, bound)
	}

	rec := export.NewResultRecord(res)
	out := cmd.OutOrStdout()
	if opts.format == "json" {
		return export.WriteJSON(out, rec)
	}
	if err := export.WriteCSV(out, rec); err != nil {
		return err
	}
	if opts.remaining {
		if _, err := fmt.Fprintln(out); err != nil {
			return err
		}
		return export.WriteRemainingCSV(out, res.Remaining)
	}
	return nil
}
