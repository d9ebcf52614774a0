package campaign

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"insta-outreach/internal/config"
	"insta-outreach/internal/core/domain"
	"insta-outreach/internal/core/ports"
	"insta-outreach/internal/retry"
)

type bandVerdict int

const (
	withinBand bandVerdict = iota
	tooNarrow
	tooBroad
)

func (v bandVerdict) String() string {
	switch v {
	case tooNarrow:
		return "too narrow"
	case tooBroad:
		return "too broad"
	default:
		return "within target"
	}
}

// DiscoveryResult is the outcome of the hashtag search.
type DiscoveryResult struct {
	Users   []string
	Queries []domain.HashtagQuery
}

// Discovery iteratively asks the brain for hashtags and widens or narrows the
// search until the user count lands in the configured band or the attempt
// ceiling is hit.
type Discovery struct {
	ig     ports.Instagram
	brain  ports.Brain
	cfg    config.DiscoveryConfig
	policy retry.Policy
	log    *zap.Logger
}

func NewDiscovery(ig ports.Instagram, brain ports.Brain, cfg config.DiscoveryConfig, policy retry.Policy, log *zap.Logger) *Discovery {
	if log == nil {
		log = zap.NewNop()
	}
	return &Discovery{ig: ig, brain: brain, cfg: cfg, policy: policy, log: log.Named("discovery")}
}

// Run returns an error only when nothing was found. A failure after an earlier
// attempt produced users ends the search and keeps those users.
func (d *Discovery) Run(ctx context.Context, productInfo string) (DiscoveryResult, error) {
	var (
		res      DiscoveryResult
		feedback []string
		selected map[string]struct{}
	)

	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		users, tags, err := d.attempt(ctx, productInfo, strings.Join(feedback, "\n"))
		if err != nil {
			err = fmt.Errorf("discovery attempt %d: %w", attempt, err)
			if len(selected) == 0 {
				return res, err
			}
			d.log.Warn("discovery stopped early, keeping earlier users",
				zap.Int("attempt", attempt),
				zap.Int("users", len(selected)),
				zap.Error(err))
			break
		}

		q := domain.HashtagQuery{Tags: tags, AttemptNumber: attempt, UserCount: len(users)}
		res.Queries = append(res.Queries, q)
		if len(users) > 0 {
			selected = users
		}

		verdict := d.assess(len(users))
		d.log.Info("discovery attempt",
			zap.Int("attempt", attempt),
			zap.Strings("tags", tags),
			zap.Int("users", len(users)),
			zap.Stringer("verdict", verdict))

		if verdict == withinBand {
			break
		}
		feedback = append(feedback, fmt.Sprintf("attempt %d: hashtags [%s] found %d users (%s; target %d-%d)",
			attempt, strings.Join(tags, ", "), len(users), verdict, d.cfg.MinUsers, d.cfg.MaxUsers))
	}

	res.Users = capUsers(selected, d.cfg.ResultCap)
	return res, nil
}

func (d *Discovery) attempt(ctx context.Context, productInfo, feedback string) (map[string]struct{}, []string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	proposed, err := d.brain.ProposeHashtags(ctx, productInfo, feedback)
	if err != nil {
		return nil, nil, fmt.Errorf("propose hashtags: %w", err)
	}
	tags := NormalizeTags(proposed)
	users, err := d.collect(ctx, tags)
	if err != nil {
		return nil, tags, fmt.Errorf("hashtag lookup: %w", err)
	}
	return users, tags, nil
}

func (d *Discovery) assess(count int) bandVerdict {
	switch {
	case count < d.cfg.MinUsers:
		return tooNarrow
	case count > d.cfg.MaxUsers:
		return tooBroad
	default:
		return withinBand
	}
}

// collect unions the authors of every tag. Single tag failures are tolerated;
// the attempt only fails when every lookup failed.
func (d *Discovery) collect(ctx context.Context, tags []string) (map[string]struct{}, error) {
	users := make(map[string]struct{})
	var errs []error
	for _, tag := range tags {
		found, err := retry.Do(ctx, d.policy, d.log, "hashtag "+tag, domain.IsTransient,
			func(ctx context.Context) (map[string]struct{}, error) {
				return d.ig.HashtagUsers(ctx, tag, d.cfg.PostsPerTag)
			})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			d.log.Warn("hashtag lookup failed", zap.String("tag", tag), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		for u := range found {
			if u = strings.TrimSpace(u); u != "" {
				users[u] = struct{}{}
			}
		}
	}
	if len(tags) > 0 && len(errs) == len(tags) {
		return nil, errors.Join(errs...)
	}
	return users, nil
}

// NormalizeTags strips '#', lower-cases, and de-duplicates hashtags while
// keeping their first-seen order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimLeft(strings.TrimSpace(t), "#"))
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func capUsers(set map[string]struct{}, limit int) []string {
	users := make([]string, 0, len(set))
	for u := range set {
		users = append(users, u)
	}
	sort.Strings(users)
	if len(users) > limit {
		users = users[:limit]
	}
	return users
}
