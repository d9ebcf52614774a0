package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"insta-outreach/internal/core/domain"
)

var (
	productFile string
	product     domain.ProductPayload
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one outreach campaign for a product",
	Example: `  outreach run --title "Eco Bottle" --category Home --price 24.99 --link https://shop.example.com/eco-bottle
  outreach run --product product.json`,
	Args: cobra.NoArgs,
	RunE: runCampaign,
}

func init() {
	runCmd.Flags().StringVar(&productFile, "product", "", "JSON file with title, category, price and link")
	runCmd.Flags().StringVar(&product.Title, "title", "", "product title")
	runCmd.Flags().StringVar(&product.Category, "category", "", "product category")
	runCmd.Flags().StringVar(&product.Price, "price", "", "product price, e.g. 24.99")
	runCmd.Flags().StringVar(&product.Link, "link", "", "product page URL")
}

// resolveProduct merges the optional product file with the flags; flags win.
func resolveProduct(path string, flags domain.ProductPayload) (domain.ProductPayload, error) {
	var p domain.ProductPayload
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return p, fmt.Errorf("read product file: %w", err)
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return p, fmt.Errorf("parse product file: %w", err)
		}
	}
	if flags.Title != "" {
		p.Title = flags.Title
	}
	if flags.Category != "" {
		p.Category = flags.Category
	}
	if flags.Price != "" {
		p.Price = flags.Price
	}
	if flags.Link != "" {
		p.Link = flags.Link
	}
	if p.Title == "" {
		return p, errors.New("product title is required")
	}
	return p, nil
}

func runCampaign(cmd *cobra.Command, args []string) error {
	p, err := resolveProduct(productFile, product)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	orch, err := buildOrchestrator(ctx, cfg, comps, logger)
	if err != nil {
		return err
	}

	state := orch.Run(ctx, p)
	if state.Err != nil {
		logger.Warn("campaign ended early", zap.Error(state.Err))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Campaign %s: %s\n\n", state.ID, p.Title)
	fmt.Fprintln(out, state.Summary.Render())
	return nil
}
