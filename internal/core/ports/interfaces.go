package ports

import (
	"context"
	"time"

	"insta-outreach/internal/core/domain"
)

// Instagram is the remote action surface. SendMessage is not idempotent:
// a retried call may deliver the same DM twice.
type Instagram interface {
	SendMessage(ctx context.Context, username, text string) error
	UserInfo(ctx context.Context, username string) (domain.Profile, error)
	UserPosts(ctx context.Context, username string, count int) ([]domain.Post, error)
	// HashtagUsers returns the distinct authors of recent posts tagged with tag.
	// An empty set is not an error.
	HashtagUsers(ctx context.Context, tag string, maxPosts int) (map[string]struct{}, error)
	PendingThreads(ctx context.Context, amount int) ([]domain.Thread, error)
}

// DraftRequest carries everything the writer needs for one message.
type DraftRequest struct {
	Username      string
	ProductInfo   string
	Analysis      domain.Analysis
	PreviousDraft string
	Feedback      string
}

type Brain interface {
	DescribeProduct(ctx context.Context, product domain.ProductPayload, pageText string) (string, error)
	// ProposeHashtags returns tags for the product. feedback holds the outcome of
	// earlier attempts and is empty on the first call.
	ProposeHashtags(ctx context.Context, productInfo, feedback string) ([]string, error)
	AnalyzeProfile(ctx context.Context, profile domain.Profile, posts []domain.Post, productInfo string) (domain.Analysis, error)
	DraftMessage(ctx context.Context, req DraftRequest) (string, error)
	VerifyMessage(ctx context.Context, req DraftRequest, draft string) (domain.Verdict, error)
}

type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (string, error)
}

type CampaignStore interface {
	SaveCampaign(ctx context.Context, rec domain.CampaignRecord) error
	RecentCampaigns(ctx context.Context, limit int) ([]domain.CampaignRecord, error)
}

type DescriptionCache interface {
	GetDescription(ctx context.Context, link string) (string, bool, error)
	PutDescription(ctx context.Context, link, description string, ttl time.Duration) error
}

type UserAction string

const (
	ActionApprove    UserAction = "approve"
	ActionRegenerate UserAction = "regenerate"
	ActionSkip       UserAction = "skip"
)

// Approver asks a human operator to approve a draft before it is sent.
type Approver interface {
	Confirm(ctx context.Context, title, body string) (UserAction, error)
}

type Reporter interface {
	Report(ctx context.Context, title, body string) error
}
