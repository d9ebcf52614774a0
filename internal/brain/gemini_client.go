package brain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"insta-outreach/internal/config"
	"insta-outreach/internal/core/domain"
	"insta-outreach/internal/core/ports"
)

// contentGenerator is the part of *genai.Models the brain uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiBrain implements ports.Brain on top of Gemini structured output.
// Models are tried in order; one that hit its quota or is unavailable is
// skipped in favour of the next.
type GeminiBrain struct {
	gen    contentGenerator
	models []config.ModelConfig
	log    *zap.Logger
	now    func() time.Time

	mu           sync.Mutex
	dailyCount   map[string]int
	minuteCount  map[string]int
	lastResetDay time.Time
	lastResetMin time.Time
}

var _ ports.Brain = (*GeminiBrain)(nil)

func NewGeminiBrain(ctx context.Context, cfg config.GeminiConfig, log *zap.Logger) (*GeminiBrain, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGeminiBrain(client.Models, cfg.Models, log), nil
}

func newGeminiBrain(gen contentGenerator, models []config.ModelConfig, log *zap.Logger) *GeminiBrain {
	if log == nil {
		log = zap.NewNop()
	}
	now := time.Now()
	return &GeminiBrain{
		gen:          gen,
		models:       models,
		log:          log.Named("gemini"),
		now:          time.Now,
		dailyCount:   make(map[string]int),
		minuteCount:  make(map[string]int),
		lastResetDay: now,
		lastResetMin: now,
	}
}

func (b *GeminiBrain) DescribeProduct(ctx context.Context, product domain.ProductPayload, pageText string) (string, error) {
	var out struct {
		Description string `json:"description"`
	}
	if err := b.generateJSON(ctx, describePrompt(product, pageText), descriptionSchema, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Description), nil
}

func (b *GeminiBrain) ProposeHashtags(ctx context.Context, productInfo, feedback string) ([]string, error) {
	var out struct {
		Hashtags []string `json:"hashtags"`
	}
	if err := b.generateJSON(ctx, hashtagPrompt(productInfo, feedback), hashtagSchema, &out); err != nil {
		return nil, err
	}
	return out.Hashtags, nil
}

func (b *GeminiBrain) AnalyzeProfile(ctx context.Context, profile domain.Profile, posts []domain.Post, productInfo string) (domain.Analysis, error) {
	var out domain.Analysis
	if err := b.generateJSON(ctx, analyzePrompt(profile, posts, productInfo), analysisSchema, &out); err != nil {
		return domain.Analysis{}, err
	}
	return out, nil
}

func (b *GeminiBrain) DraftMessage(ctx context.Context, req ports.DraftRequest) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := b.generateJSON(ctx, draftPrompt(req), draftSchema, &out); err != nil {
		return "", err
	}
	msg := strings.TrimSpace(out.Message)
	if msg == "" {
		return "", fmt.Errorf("%w: empty draft", domain.ErrGeneration)
	}
	return msg, nil
}

func (b *GeminiBrain) VerifyMessage(ctx context.Context, req ports.DraftRequest, draft string) (domain.Verdict, error) {
	var out domain.Verdict
	if err := b.generateJSON(ctx, verifyPrompt(req, draft), verdictSchema, &out); err != nil {
		return domain.Verdict{}, err
	}
	return out, nil
}

func (b *GeminiBrain) generateJSON(ctx context.Context, prompt string, schema *genai.Schema, out any) error {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema,
	}
	raw, err := b.tryGenerateWithFallback(ctx, prompt, cfg)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(cleanJSON(raw)), out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrGeneration, err)
	}
	return nil
}

func (b *GeminiBrain) tryGenerateWithFallback(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	lastErr := errors.New("no model available")
	for _, m := range b.models {
		if !b.canUseModel(m) {
			continue
		}

		result, err := b.gen.GenerateContent(ctx, m.Name, genai.Text(prompt), cfg)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if isQuotaOrMissing(err) {
				b.log.Warn("model unavailable, falling back", zap.String("model", m.Name), zap.Error(err))
				lastErr = err
				continue
			}
			return "", fmt.Errorf("%w: %s: %w", domain.ErrGeneration, m.Name, err)
		}

		b.recordUsage(m)
		if text := responseText(result); text != "" {
			return text, nil
		}
		lastErr = fmt.Errorf("%s returned no content", m.Name)
	}
	return "", fmt.Errorf("%w: all models failed: %w", domain.ErrGeneration, lastErr)
}

func isQuotaOrMissing(err error) bool {
	s := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate limit", "exhausted", "404", "not found"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func responseText(r *genai.GenerateContentResponse) string {
	if r == nil || len(r.Candidates) == 0 || r.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		if p != nil && !p.Thought {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func (b *GeminiBrain) canUseModel(m config.ModelConfig) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	if now.YearDay() != b.lastResetDay.YearDay() || now.Year() != b.lastResetDay.Year() {
		b.dailyCount = make(map[string]int)
		b.lastResetDay = now
	}
	if now.Sub(b.lastResetMin) >= time.Minute {
		b.minuteCount = make(map[string]int)
		b.lastResetMin = now
	}
	if m.RPD > 0 && b.dailyCount[m.Name] >= m.RPD {
		return false
	}
	if m.RPM > 0 && b.minuteCount[m.Name] >= m.RPM {
		return false
	}
	return true
}

func (b *GeminiBrain) recordUsage(m config.ModelConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dailyCount[m.Name]++
	b.minuteCount[m.Name]++
}

// cleanJSON strips markdown fences some models wrap around JSON output.
func cleanJSON(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
