package campaign

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"insta-outreach/internal/config"
	"insta-outreach/internal/core/domain"
	"insta-outreach/internal/core/ports"
	"insta-outreach/internal/retry"
)

// Mocks
type MockInstagram struct {
	mock.Mock
}

func (m *MockInstagram) SendMessage(ctx context.Context, username, text string) error {
	args := m.Called(ctx, username, text)
	return args.Error(0)
}

func (m *MockInstagram) UserInfo(ctx context.Context, username string) (domain.Profile, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(domain.Profile), args.Error(1)
}

func (m *MockInstagram) UserPosts(ctx context.Context, username string, count int) ([]domain.Post, error) {
	args := m.Called(ctx, username, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Post), args.Error(1)
}

func (m *MockInstagram) HashtagUsers(ctx context.Context, tag string, maxPosts int) (map[string]struct{}, error) {
	args := m.Called(ctx, tag, maxPosts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

func (m *MockInstagram) PendingThreads(ctx context.Context, amount int) ([]domain.Thread, error) {
	args := m.Called(ctx, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Thread), args.Error(1)
}

type MockBrain struct {
	mock.Mock
}

func (m *MockBrain) DescribeProduct(ctx context.Context, product domain.ProductPayload, pageText string) (string, error) {
	args := m.Called(ctx, product, pageText)
	return args.String(0), args.Error(1)
}

func (m *MockBrain) ProposeHashtags(ctx context.Context, productInfo, feedback string) ([]string, error) {
	args := m.Called(ctx, productInfo, feedback)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockBrain) AnalyzeProfile(ctx context.Context, profile domain.Profile, posts []domain.Post, productInfo string) (domain.Analysis, error) {
	args := m.Called(ctx, profile, posts, productInfo)
	return args.Get(0).(domain.Analysis), args.Error(1)
}

func (m *MockBrain) DraftMessage(ctx context.Context, req ports.DraftRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockBrain) VerifyMessage(ctx context.Context, req ports.DraftRequest, draft string) (domain.Verdict, error) {
	args := m.Called(ctx, req, draft)
	return args.Get(0).(domain.Verdict), args.Error(1)
}

type MockPageFetcher struct {
	mock.Mock
}

func (m *MockPageFetcher) FetchPage(ctx context.Context, url string) (string, error) {
	args := m.Called(ctx, url)
	return args.String(0), args.Error(1)
}

type MockApprover struct {
	mock.Mock
}

func (m *MockApprover) Confirm(ctx context.Context, title, body string) (ports.UserAction, error) {
	args := m.Called(ctx, title, body)
	return args.Get(0).(ports.UserAction), args.Error(1)
}

// memoryStore and memoryCache are small fakes for the persistence ports.
type memoryStore struct {
	mu      sync.Mutex
	records []domain.CampaignRecord
}

func (s *memoryStore) SaveCampaign(_ context.Context, rec domain.CampaignRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *memoryStore) RecentCampaigns(_ context.Context, limit int) ([]domain.CampaignRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.records) {
		limit = len(s.records)
	}
	return append([]domain.CampaignRecord(nil), s.records[len(s.records)-limit:]...), nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func (c *memoryCache) GetDescription(_ context.Context, link string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[link]
	return v, ok, nil
}

func (c *memoryCache) PutDescription(_ context.Context, link, description string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]string)
	}
	c.entries[link] = description
	return nil
}

type recordingReporter struct {
	mu     sync.Mutex
	titles []string
	bodies []string
}

func (r *recordingReporter) Report(_ context.Context, title, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
	r.bodies = append(r.bodies, body)
	return nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Retry = retry.Policy{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	cfg.Campaign.Timeout = 5 * time.Second
	return cfg
}

func userSet(users ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(users))
	for _, u := range users {
		set[u] = struct{}{}
	}
	return set
}

var testProduct = domain.ProductPayload{
	Title:    "Eco Bottle",
	Category: "Home",
	Price:    "24.99",
	Link:     "https://shop.example.com/eco-bottle",
}
