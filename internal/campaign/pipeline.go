package campaign

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"insta-outreach/internal/config"
	"insta-outreach/internal/core/domain"
	"insta-outreach/internal/core/ports"
	"insta-outreach/internal/retry"
)

// RunResult is the terminal state of one pipeline run.
type RunResult struct {
	Record    domain.ResultRecord
	Drafts    int
	Revisions int
}

// Pipeline researches, drafts, verifies and sends one DM. A Pipeline holds no
// per-user state, so a single value can serve concurrent runs.
type Pipeline struct {
	ig       ports.Instagram
	brain    ports.Brain
	approver ports.Approver
	cfg      config.PipelineConfig
	policy   retry.Policy
	log      *zap.Logger
}

func NewPipeline(ig ports.Instagram, brain ports.Brain, approver ports.Approver, cfg config.PipelineConfig, policy retry.Policy, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{ig: ig, brain: brain, approver: approver, cfg: cfg, policy: policy, log: log.Named("pipeline")}
}

// Run never panics and always yields exactly one record.
func (p *Pipeline) Run(ctx context.Context, username, productInfo string) (res RunResult) {
	log := p.log.With(zap.String("user", username))
	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panic", zap.Any("panic", r))
			res.Record = domain.Failure(username, fmt.Sprintf("internal error: %v", r))
		}
	}()

	analysis, err := p.analyze(ctx, username, productInfo)
	if err != nil {
		res.Record = p.fail(ctx, log, username, "analyze", err)
		return res
	}

	req := ports.DraftRequest{Username: username, ProductInfo: productInfo, Analysis: analysis}
	var draft string
refine:
	for {
		draft, err = p.brain.DraftMessage(ctx, req)
		res.Drafts++
		if err != nil {
			res.Record = p.fail(ctx, log, username, "draft", err)
			return res
		}

		verdict, err := p.brain.VerifyMessage(ctx, req, draft)
		switch {
		case err != nil && ctx.Err() != nil:
			res.Record = p.fail(ctx, log, username, "verify", err)
			return res
		case err != nil:
			log.Warn("verification failed, accepting draft", zap.Error(err))
		case !verdict.Approved:
			if res.Revisions >= p.cfg.MaxRevisions {
				log.Info("revision limit reached, accepting last draft", zap.Int("revisions", res.Revisions))
				break
			}
			res.Revisions++
			req.PreviousDraft, req.Feedback = draft, verdict.Feedback
			continue refine
		}

		if p.approver == nil {
			break refine
		}
		action, err := p.approver.Confirm(ctx, "DM for @"+username, draft)
		if err != nil {
			res.Record = p.fail(ctx, log, username, "approval", fmt.Errorf("%w: %w", domain.ErrRejected, err))
			return res
		}
		switch action {
		case ports.ActionApprove:
			break refine
		case ports.ActionRegenerate:
			if res.Revisions >= p.cfg.MaxRevisions {
				res.Record = p.fail(ctx, log, username, "approval", fmt.Errorf("%w: revision limit reached", domain.ErrRejected))
				return res
			}
			res.Revisions++
			req.PreviousDraft, req.Feedback = draft, "The operator asked for a different message."
		default:
			res.Record = p.fail(ctx, log, username, "approval", domain.ErrRejected)
			return res
		}
	}

	if err := p.ig.SendMessage(ctx, username, draft); err != nil {
		res.Record = p.fail(ctx, log, username, "send", err)
		return res
	}
	log.Info("dm sent", zap.Int("drafts", res.Drafts), zap.Int("revisions", res.Revisions))
	res.Record = domain.Success(username, Excerpt(draft, p.cfg.ExcerptLength))
	return res
}

func (p *Pipeline) analyze(ctx context.Context, username, productInfo string) (domain.Analysis, error) {
	profile, err := retry.Do(ctx, p.policy, p.log, "user info", domain.IsTransient,
		func(ctx context.Context) (domain.Profile, error) {
			return p.ig.UserInfo(ctx, username)
		})
	if err != nil {
		return domain.Analysis{}, unavailable(err)
	}
	if profile.IsPrivate {
		return domain.Analysis{}, fmt.Errorf("%w: account is private", domain.ErrProfileUnavailable)
	}

	posts, err := retry.Do(ctx, p.policy, p.log, "user posts", domain.IsTransient,
		func(ctx context.Context) ([]domain.Post, error) {
			return p.ig.UserPosts(ctx, username, p.cfg.PostCount)
		})
	if err != nil {
		return domain.Analysis{}, unavailable(err)
	}

	return p.brain.AnalyzeProfile(ctx, profile, posts, productInfo)
}

func unavailable(err error) error {
	if errors.Is(err, domain.ErrProfileUnavailable) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrProfileUnavailable, err)
}

func (p *Pipeline) fail(ctx context.Context, log *zap.Logger, username, stage string, err error) domain.ResultRecord {
	reason := err.Error()
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrTimeout) {
		reason = domain.ErrTimeout.Error()
	}
	log.Warn("pipeline failed", zap.String("stage", stage), zap.Error(err))
	return domain.Failure(username, reason)
}

// Excerpt returns at most n characters of s.
func Excerpt(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}
