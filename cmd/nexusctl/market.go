package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sakif/nexusmena/internal/filter"
	"github.com/sakif/nexusmena/internal/market"
)

// --- Market Command ---

func newMarketCmd(a *app) *cobra.Command {
	var (
		category string
		insight  bool
	)
	cmd := &cobra.Command{
		Use:   "market",
		Short: "Print the market board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := market.NewFixtureSource()
			if err != nil {
				return err
			}
			snap, err := market.NewBoard(src).Refresh(cmd.Context())
			if err != nil {
				return err
			}
			metrics := filter.Metrics(snap.Metrics, filter.Criteria{Category: category})

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tVALUE\tCHANGE\tTREND")
			for _, m := range metrics {
				fmt.Fprintf(w, "%s\t%s\t%.2f %s\t%+.2f%%\t%s\n", m.Name, m.Type, m.Value, m.Currency, m.Change, m.Trend)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if !insight {
				return nil
			}
			gw, err := a.gateway(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out)
			a.report(gw.AnalyzeMarket(cmd.Context(), market.Describe(metrics)))
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", filter.All, "asset class (Index, Crypto, Currency, Commodity)")
	cmd.Flags().BoolVar(&insight, "insight", false, "append an AI market insight")
	return cmd
}
