package campaign

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"insta-outreach/internal/config"
	"insta-outreach/internal/core/domain"
	"insta-outreach/internal/core/ports"
	"insta-outreach/internal/gateway"
)

const publishTimeout = 30 * time.Second

// Orchestrator runs whole campaigns: describe the product, discover users,
// fan out one pipeline per user and reduce the results.
type Orchestrator struct {
	gw        gateway.Gateway
	cfg       config.CampaignConfig
	discovery *Discovery
	pipeline  *Pipeline

	store    ports.CampaignStore
	cache    ports.DescriptionCache
	reporter ports.Reporter
	approver ports.Approver
	log      *zap.Logger
	now      func() time.Time
	newID    func() string
}

type Option func(*Orchestrator)

func WithStore(s ports.CampaignStore) Option {
	return func(o *Orchestrator) { o.store = s }
}

func WithDescriptionCache(c ports.DescriptionCache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

func WithReporter(r ports.Reporter) Option {
	return func(o *Orchestrator) { o.reporter = r }
}

// WithApprover routes every verified draft through a human before sending.
func WithApprover(a ports.Approver) Option {
	return func(o *Orchestrator) { o.approver = a }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(gw gateway.Gateway, cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	if err := gw.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &Orchestrator{
		gw:    gw,
		cfg:   cfg.Campaign,
		log:   zap.NewNop(),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.discovery = NewDiscovery(gw.Instagram, gw.Brain, cfg.Discovery, cfg.Retry, o.log)
	o.pipeline = NewPipeline(gw.Instagram, gw.Brain, o.approver, cfg.Pipeline, cfg.Retry, o.log)
	return o, nil
}

// Run executes one campaign. It always returns a state with a summary; errors
// that end the campaign early are recorded in state.Err.
func (o *Orchestrator) Run(ctx context.Context, product domain.ProductPayload) *domain.CampaignState {
	state := &domain.CampaignState{
		ID:        o.newID(),
		Product:   product,
		StartedAt: o.now(),
	}
	log := o.log.With(zap.String("campaign", state.ID), zap.String("product", product.Title))
	log.Info("campaign started")

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	state.ProductInfo = o.describeProduct(runCtx, log, product)

	found, err := o.discovery.Run(runCtx, state.ProductInfo)
	if err != nil {
		log.Error("discovery failed", zap.Error(err))
		state.Err = err
	} else {
		state.DiscoveredUsers = found.Users
	}
	log.Info("users discovered", zap.Strings("users", state.DiscoveredUsers))

	state.DMResults = o.fanOut(runCtx, log, state.DiscoveredUsers, state.ProductInfo)
	state.Summary = Summarize(state.DMResults, len(state.DiscoveredUsers))
	state.FinishedAt = o.now()

	log.Info("campaign finished",
		zap.Int("total", state.Summary.TotalUsers),
		zap.Int("success", state.Summary.SuccessCount),
		zap.Int("fail", state.Summary.FailCount),
		zap.String("status", string(state.Summary.OverallStatus)))

	o.publish(ctx, log, state)
	return state
}

// describeProduct never fails: every error path ends in the template fallback.
func (o *Orchestrator) describeProduct(ctx context.Context, log *zap.Logger, p domain.ProductPayload) string {
	if o.cache != nil && p.Link != "" {
		desc, ok, err := o.cache.GetDescription(ctx, p.Link)
		switch {
		case err != nil:
			log.Warn("description cache read failed", zap.Error(err))
		case ok && desc != "":
			log.Debug("description cache hit")
			return desc
		}
	}

	desc, err := o.generateDescription(ctx, p)
	if err != nil {
		log.Warn("product description fallback", zap.Error(err))
		return p.FallbackDescription()
	}

	if o.cache != nil && p.Link != "" {
		if err := o.cache.PutDescription(ctx, p.Link, desc, o.cfg.DescriptionTTL); err != nil {
			log.Warn("description cache write failed", zap.Error(err))
		}
	}
	return desc
}

func (o *Orchestrator) generateDescription(ctx context.Context, p domain.ProductPayload) (string, error) {
	page, err := o.gw.Pages.FetchPage(ctx, p.Link)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrScrapeUnavailable, err)
	}
	page = strings.TrimSpace(page)
	if page == "" {
		return "", fmt.Errorf("%w: empty page content", domain.ErrScrapeUnavailable)
	}

	desc, err := o.gw.Brain.DescribeProduct(ctx, p, Excerpt(page, o.cfg.ScrapeLimit))
	if err != nil {
		return "", err
	}
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return "", fmt.Errorf("%w: empty description", domain.ErrGeneration)
	}
	return desc, nil
}

// fanOut runs one pipeline per user through a bounded group and joins on all
// of them. Users still running at the deadline are recorded as timed out.
func (o *Orchestrator) fanOut(ctx context.Context, log *zap.Logger, users []string, productInfo string) []domain.ResultRecord {
	results := newResultSet(users)
	if len(users) == 0 {
		return results.seal(domain.ErrTimeout.Error())
	}

	var g errgroup.Group
	g.SetLimit(o.cfg.MaxConcurrency)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i, user := range users {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				res := o.pipeline.Run(ctx, user, productInfo)
				if !results.add(i, res.Record) {
					log.Debug("late result discarded", zap.String("user", user))
				}
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Warn("campaign deadline reached", zap.Error(ctx.Err()))
	}
	return results.seal(domain.ErrTimeout.Error())
}

func (o *Orchestrator) publish(parent context.Context, log *zap.Logger, state *domain.CampaignState) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), publishTimeout)
	defer cancel()

	if o.store != nil {
		if err := o.store.SaveCampaign(ctx, state.Record()); err != nil {
			log.Error("saving campaign failed", zap.Error(err))
		}
	}
	if o.reporter != nil {
		title := fmt.Sprintf("Campaign %s", state.Product.Title)
		if err := o.reporter.Report(ctx, title, state.Summary.Render()); err != nil {
			log.Warn("campaign report failed", zap.Error(err))
		}
	}
}
