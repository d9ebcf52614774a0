package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"insta-outreach/internal/brain"
	"insta-outreach/internal/campaign"
	"insta-outreach/internal/config"
	"insta-outreach/internal/core/ports"
	"insta-outreach/internal/gateway"
	"insta-outreach/internal/sites/instagram"
	"insta-outreach/internal/sites/web"
	"insta-outreach/internal/storage"
	"insta-outreach/internal/ui/telegram"
)

// components holds everything built from the config plus the cleanup to run
// when the command ends.
type components struct {
	instagram *instagram.Client
	store     ports.CampaignStore
	cache     ports.DescriptionCache
	ui        *telegram.TelegramUI
	closers   []func()
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (ports.CampaignStore, func(), error) {
	if cfg.Storage.DatabaseURL != "" {
		pg, err := storage.NewPostgresStorage(ctx, cfg.Storage.DatabaseURL)
		if err == nil {
			log.Info("storage: postgres connected")
			return pg, pg.Close, nil
		}
		log.Warn("postgres unavailable, falling back to json storage", zap.Error(err))
	}
	js, err := storage.NewJSONStorage(cfg.Storage.JSONPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open json storage: %w", err)
	}
	log.Info("storage: json file", zap.String("path", cfg.Storage.JSONPath))
	return js, func() {}, nil
}

func buildComponents(ctx context.Context, cfg *config.Config, log *zap.Logger) (*components, error) {
	c := &components{
		instagram: instagram.NewClient(cfg.MCP.URL, cfg.MCP.Timeout, log),
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	c.store = store
	c.closers = append(c.closers, closeStore)

	if cfg.Redis.Addr != "" {
		rc := storage.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := rc.Ping(ctx); err != nil {
			log.Warn("redis unavailable, description cache disabled", zap.Error(err))
			_ = rc.Close()
		} else {
			c.cache = rc
			c.closers = append(c.closers, func() { _ = rc.Close() })
		}
	}

	if cfg.Telegram.Token != "" {
		ui, err := telegram.NewTelegramUI(cfg.Telegram.Token, cfg.Telegram.ChatID, log)
		if err != nil {
			log.Warn("telegram unavailable", zap.Error(err))
		} else {
			c.ui = ui
			c.closers = append(c.closers, ui.Close)
		}
	}
	if cfg.Pipeline.RequireApproval && c.ui == nil {
		c.Close()
		return nil, errors.New("pipeline.require_approval needs a working telegram bot")
	}
	return c, nil
}

func buildOrchestrator(ctx context.Context, cfg *config.Config, c *components, log *zap.Logger) (*campaign.Orchestrator, error) {
	gem, err := brain.NewGeminiBrain(ctx, cfg.Gemini, log)
	if err != nil {
		return nil, err
	}
	gw := gateway.Gateway{
		Instagram: c.instagram,
		Brain:     gem,
		Pages:     web.NewClient(cfg.MCP.Timeout, log),
	}

	opts := []campaign.Option{
		campaign.WithLogger(log),
		campaign.WithStore(c.store),
	}
	if c.cache != nil {
		opts = append(opts, campaign.WithDescriptionCache(c.cache))
	}
	if c.ui != nil {
		opts = append(opts, campaign.WithReporter(c.ui))
		if cfg.Pipeline.RequireApproval {
			opts = append(opts, campaign.WithApprover(c.ui))
		}
	}
	return campaign.New(gw, cfg, opts...)
}
