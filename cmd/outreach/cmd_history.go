package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"insta-outreach/internal/core/domain"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently stored campaigns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		recs, err := store.RecentCampaigns(cmd.Context(), historyLimit)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}
		printHistory(cmd.OutOrStdout(), recs)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of campaigns to show")
}

func printHistory(w io.Writer, recs []domain.CampaignRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No campaigns yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tID\tPRODUCT\tSENT\tFAILED\tSTATUS")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d\t%s\n",
			r.StartedAt.Format("2006-01-02 15:04"), r.ID, r.Product.Title,
			r.Summary.SuccessCount, r.Summary.TotalUsers, r.Summary.FailCount, r.Summary.OverallStatus)
	}
	_ = tw.Flush()
}
