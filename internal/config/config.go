package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"insta-outreach/internal/retry"
)

type Config struct {
	Discovery DiscoveryConfig `yaml:"discovery"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Campaign  CampaignConfig  `yaml:"campaign"`
	Retry     retry.Policy    `yaml:"retry"`
	MCP       MCPConfig       `yaml:"mcp"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Log       LogConfig       `yaml:"log"`
}

// MaxDiscoveryAttempts is the hard ceiling on hashtag refinement rounds.
const MaxDiscoveryAttempts = 3

// DiscoveryConfig bounds the hashtag search. A query whose user count lies in
// [MinUsers, MaxUsers] is accepted.
type DiscoveryConfig struct {
	MinUsers    int `yaml:"min_users"`
	MaxUsers    int `yaml:"max_users"`
	MaxAttempts int `yaml:"max_attempts"`
	ResultCap   int `yaml:"result_cap"`
	PostsPerTag int `yaml:"posts_per_tag"`
}

type PipelineConfig struct {
	MaxRevisions    int  `yaml:"max_revisions"`
	ExcerptLength   int  `yaml:"excerpt_length"`
	PostCount       int  `yaml:"post_count"`
	RequireApproval bool `yaml:"require_approval"`
}

type CampaignConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	ScrapeLimit    int           `yaml:"scrape_limit"`
	DescriptionTTL time.Duration `yaml:"description_ttl"`
}

type MCPConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type GeminiConfig struct {
	APIKey string        `yaml:"api_key"`
	Models []ModelConfig `yaml:"models"`
}

// ModelConfig lists a model with its per-minute and per-day request quota.
type ModelConfig struct {
	Name string `yaml:"name"`
	RPM  int    `yaml:"rpm"`
	RPD  int    `yaml:"rpd"`
}

type StorageConfig struct {
	DatabaseURL string `yaml:"database_url"`
	JSONPath    string `yaml:"json_path"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID string `yaml:"chat_id"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func Default() *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			MinUsers:    3,
			MaxUsers:    100,
			MaxAttempts: 3,
			ResultCap:   5,
			PostsPerTag: 10,
		},
		Pipeline: PipelineConfig{
			MaxRevisions:  2,
			ExcerptLength: 100,
			PostCount:     5,
		},
		Campaign: CampaignConfig{
			Timeout:        10 * time.Minute,
			MaxConcurrency: 4,
			ScrapeLimit:    3000,
			DescriptionTTL: 24 * time.Hour,
		},
		Retry: retry.DefaultPolicy(),
		MCP: MCPConfig{
			URL:     "http://localhost:8000/mcp",
			Timeout: 60 * time.Second,
		},
		Gemini: GeminiConfig{
			Models: []ModelConfig{
				{Name: "gemini-2.5-flash", RPM: 10, RPD: 250},
				{Name: "gemini-2.5-flash-lite", RPM: 15, RPD: 1000},
			},
		},
		Storage: StorageConfig{JSONPath: "data/campaigns.json"},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads the optional YAML file at path over the defaults, then applies
// .env and environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&c.MCP.URL, "MCP_URL")
	setString(&c.Storage.DatabaseURL, "DATABASE_URL")
	setString(&c.Storage.JSONPath, "STORAGE_JSON_PATH")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	setString(&c.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setString(&c.Log.Level, "LOG_LEVEL")
	if v := os.Getenv("CAMPAIGN_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Campaign.MaxConcurrency = n
		}
	}
	if v := os.Getenv("CAMPAIGN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Campaign.Timeout = d
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) Validate() error {
	var errs []error
	d := c.Discovery
	if d.MinUsers < 0 || d.MaxUsers < d.MinUsers {
		errs = append(errs, fmt.Errorf("discovery: invalid target band [%d, %d]", d.MinUsers, d.MaxUsers))
	}
	if d.MaxAttempts < 1 || d.MaxAttempts > MaxDiscoveryAttempts {
		errs = append(errs, fmt.Errorf("discovery: max_attempts must be between 1 and %d", MaxDiscoveryAttempts))
	}
	if d.ResultCap < 1 {
		errs = append(errs, errors.New("discovery: result_cap must be at least 1"))
	}
	if c.Pipeline.MaxRevisions < 0 {
		errs = append(errs, errors.New("pipeline: max_revisions must not be negative"))
	}
	if c.Campaign.MaxConcurrency < 1 {
		errs = append(errs, errors.New("campaign: max_concurrency must be at least 1"))
	}
	if c.Campaign.Timeout <= 0 {
		errs = append(errs, errors.New("campaign: timeout must be positive"))
	}
	if c.Retry.MaxRetries < 0 {
		errs = append(errs, errors.New("retry: max_retries must not be negative"))
	}
	return errors.Join(errs...)
}
