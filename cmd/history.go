package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/flexmarket/infra/journal"
)

type historyOptions struct {
	aggregator string
	round      string
	since      time.Duration
}

func newHistoryCmd(root *rootOptions) *cobra.Command {
	opts := &historyOptions{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past clearing rounds from the journal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.aggregator, "aggregator", "", "only rounds involving this aggregator")
	cmd.Flags().StringVar(&opts.round, "round", "", "only this round")
	cmd.Flags().DurationVar(&opts.since, "since", 0, "only rounds newer than this")
	return cmd
}

func runHistory(cmd *cobra.Command, root *rootOptions, opts *historyOptions) error {
	cfg, err := root.loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := journal.NewStore(cfg.Journal)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	q := journal.Query{AggregatorID: opts.aggregator, RoundID: opts.round}
	if opts.since > 0 {
		q.Start = time.Now().Add(-opts.since)
	}
	recs, err := store.Query(cmd.Context(), q)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tROUND\tBIDS\tACCEPTED\tVALUATION\tBOUND")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%.3f\n",
			r.Timestamp.Format(time.RFC3339), r.RoundID, r.BidCount,
			len(r.Result.Accepted), r.Result.TotalValuation, r.UpperBound)
	}
	return tw.Flush()
}
