package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/sakif/nexusmena/internal/config"
	"github.com/sakif/nexusmena/internal/content"
	"github.com/sakif/nexusmena/internal/ingest"
)

// --- Ingest Command ---

func newIngestCmd(a *app) *cobra.Command {
	var (
		feeds []string
		kind  string
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch RSS/Atom feeds and report what would be added",
		Long: `Runs one ingest pass over the seeded catalogue and prints the report as JSON.
Without --feed, the feeds from ingest.feeds in the config are used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgs := a.cfg.Ingest.Feeds
			if len(feeds) > 0 {
				cfgs = make([]config.FeedConfig, 0, len(feeds))
				for _, u := range feeds {
					cfgs = append(cfgs, config.FeedConfig{URL: u, Kind: kind})
				}
			}
			if len(cfgs) == 0 {
				return errors.New("no feeds: pass --feed or set ingest.feeds")
			}

			store, err := content.Seeded()
			if err != nil {
				return err
			}
			ing := ingest.New(store, a.logger, ingest.WithTimeout(a.cfg.Ingest.Timeout))
			report, err := ing.Run(cmd.Context(), ingest.FromConfig(cfgs))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(a.out)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().StringArrayVar(&feeds, "feed", nil, "feed URL (repeatable)")
	cmd.Flags().StringVar(&kind, "kind", "news", "kind for --feed entries (news, startup)")
	return cmd
}
