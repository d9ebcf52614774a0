package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"insta-outreach/internal/core/domain"
	"insta-outreach/internal/sites/instagram"
)

var pendingAmount int

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Show direct message threads waiting for a reply",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ig := instagram.NewClient(cfg.MCP.URL, cfg.MCP.Timeout, logger)
		threads, err := ig.PendingThreads(cmd.Context(), pendingAmount)
		if err != nil {
			return fmt.Errorf("list pending chats: %w", err)
		}
		printThreads(cmd.OutOrStdout(), threads)
		return nil
	},
}

func init() {
	pendingCmd.Flags().IntVarP(&pendingAmount, "amount", "n", 20, "number of threads to fetch")
}

func printThreads(w io.Writer, threads []domain.Thread) {
	if len(threads) == 0 {
		fmt.Fprintln(w, "No pending threads.")
		return
	}
	for _, t := range threads {
		fmt.Fprintf(w, "@%s [%s]: %s\n", t.Username, t.ID, t.LastMessage)
	}
}
