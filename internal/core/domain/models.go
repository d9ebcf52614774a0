package domain

import (
	"fmt"
	"time"
)

// ProductPayload is the immutable input of one campaign.
type ProductPayload struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Price    string `json:"price"` // decimal as string, e.g. "24.99"
	Link     string `json:"link"`
}

// FallbackDescription is the deterministic description used whenever the
// product page cannot be scraped or formatted.
func (p ProductPayload) FallbackDescription() string {
	return fmt.Sprintf("%s: %s — Available for %s", p.Category, p.Title, p.Price)
}

// HashtagQuery is one discovery attempt. Tags never carry a leading '#'.
type HashtagQuery struct {
	Tags          []string
	AttemptNumber int
	UserCount     int
}

// Profile is the public account info of an Instagram user.
type Profile struct {
	Username    string `json:"username"`
	FullName    string `json:"full_name"`
	Biography   string `json:"biography"`
	Followers   int    `json:"follower_count"`
	Following   int    `json:"following_count"`
	IsPrivate   bool   `json:"is_private"`
	ExternalURL string `json:"external_url,omitempty"`
}

// Post represents a recent media item of a user.
type Post struct {
	ID       string    `json:"id"`
	Caption  string    `json:"caption"`
	Hashtags []string  `json:"hashtags,omitempty"`
	Likes    int       `json:"like_count"`
	Comments int       `json:"comment_count"`
	TakenAt  time.Time `json:"taken_at"`
}

// Analysis is the structured output of the profile analysis step.
type Analysis struct {
	Summary string   `json:"summary"`
	Hooks   []string `json:"hooks"` // personalization details worth mentioning
	Tone    string   `json:"tone"`
}

// Verdict is the structured output of the verification step.
type Verdict struct {
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback"`
	Score    int    `json:"score"`
}

// Thread represents a DM inbox thread.
type Thread struct {
	ID          string `json:"thread_id"`
	Username    string `json:"username"`
	LastMessage string `json:"last_message"`
	Pending     bool   `json:"pending"`
}

// CampaignState is owned by the orchestrator for the lifetime of one run.
type CampaignState struct {
	ID              string
	Product         ProductPayload
	ProductInfo     string
	DiscoveredUsers []string
	DMResults       []ResultRecord
	Summary         CampaignSummary
	StartedAt       time.Time
	FinishedAt      time.Time
	Err             error // campaign-fatal cause, kept for diagnostics only
}

// CampaignRecord is what gets persisted after a campaign finishes.
type CampaignRecord struct {
	ID          string          `json:"id"`
	Product     ProductPayload  `json:"product"`
	ProductInfo string          `json:"product_info"`
	Users       []string        `json:"users"`
	Results     []ResultRecord  `json:"results"`
	Summary     CampaignSummary `json:"summary"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
}

// Record converts the finished state into its persisted form.
func (s *CampaignState) Record() CampaignRecord {
	return CampaignRecord{
		ID:          s.ID,
		Product:     s.Product,
		ProductInfo: s.ProductInfo,
		Users:       s.DiscoveredUsers,
		Results:     s.DMResults,
		Summary:     s.Summary,
		StartedAt:   s.StartedAt,
		FinishedAt:  s.FinishedAt,
	}
}
