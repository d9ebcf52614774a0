package brain

import (
	"fmt"
	"strings"

	"google.golang.org/genai"

	"insta-outreach/internal/core/domain"
	"insta-outreach/internal/core/ports"
)

const SystemPrompt = `You are part of an outreach workflow that writes Instagram direct messages to
people who may genuinely care about a product. Users were found through hashtags
related to the product.

### Principles
- Every message is personal: it references something real from the user's profile or posts.
- Never sound like an advertisement. Write like a friend recommending something.
- Keep messages short (2-4 sentences) with a soft call to action.
- Be respectful. Never invent facts about the user or the product.
- Always answer in the JSON format requested.`

func describePrompt(p domain.ProductPayload, pageText string) string {
	return fmt.Sprintf(`Task: write a concise, engaging product description from the scraped page below.

Product title: %s
Category: %s
Price: %s

Scraped content:
%s

Rules:
1. One paragraph of at least three sentences with the most relevant details.
2. Put the title and the price above the description, all in one string.`,
		p.Title, p.Category, p.Price, pageText)
}

func hashtagPrompt(productInfo, feedback string) string {
	if feedback == "" {
		feedback = "No previous attempts. Start with medium-specificity hashtags."
	}
	return fmt.Sprintf(`Task: propose 5-10 Instagram hashtags whose recent posters would be interested in this product.

Product:
%s

Previous attempts:
%s

Rules:
1. If earlier hashtags were too broad (too many users), be more specific.
2. If earlier hashtags were too narrow (too few users), be broader.
3. Return hashtags without the '#' symbol.`, productInfo, feedback)
}

func analyzePrompt(profile domain.Profile, posts []domain.Post, productInfo string) string {
	var b strings.Builder
	for i, p := range posts {
		fmt.Fprintf(&b, "%d. %s", i+1, strings.TrimSpace(p.Caption))
		if len(p.Hashtags) > 0 {
			fmt.Fprintf(&b, " [#%s]", strings.Join(p.Hashtags, " #"))
		}
		b.WriteString("\n")
	}
	if len(posts) == 0 {
		b.WriteString("(no recent posts)\n")
	}
	return fmt.Sprintf(`Task: analyze this Instagram user for a personalized DM. Do not write the DM.

Username: @%s
Name: %s
Bio: %s
Followers: %d

Recent posts:
%s
Product:
%s

Find genuine connection points between the user and the product, their interests,
and their communication style.`,
		profile.Username, profile.FullName, profile.Biography, profile.Followers, b.String(), productInfo)
}

func draftPrompt(req ports.DraftRequest) string {
	var revision string
	if req.PreviousDraft != "" {
		revision = fmt.Sprintf(`
A previous draft was rejected.
Previous draft: %s
Reviewer feedback: %s
Address the feedback in the new draft.
`, req.PreviousDraft, req.Feedback)
	}
	return fmt.Sprintf(`Task: write a DM to @%s about the product below.

Profile analysis:
%s
Personal hooks: %s
Their tone: %s

Product:
%s
%s
Write only the message text.`,
		req.Username, req.Analysis.Summary, strings.Join(req.Analysis.Hooks, "; "), req.Analysis.Tone,
		req.ProductInfo, revision)
}

func verifyPrompt(req ports.DraftRequest, draft string) string {
	return fmt.Sprintf(`Task: review this DM to @%s before it is sent.

Draft:
%s

Profile analysis:
%s

Product:
%s

Criteria: personalization, relevance of the product to their interests, tone
(friendly, not salesy), length, appropriateness and clarity.
Approve only if the message would be well received. Otherwise give specific,
actionable feedback. Score from 1 to 10.`, req.Username, draft, req.Analysis.Summary, req.ProductInfo)
}

var (
	descriptionSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"description": {Type: genai.TypeString},
		},
		Required: []string{"description"},
	}

	hashtagSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"hashtags": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		},
		Required: []string{"hashtags"},
	}

	analysisSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary": {Type: genai.TypeString},
			"hooks":   {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"tone":    {Type: genai.TypeString},
		},
		Required: []string{"summary", "hooks"},
	}

	draftSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"message": {Type: genai.TypeString},
		},
		Required: []string{"message"},
	}

	verdictSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"approved": {Type: genai.TypeBoolean},
			"feedback": {Type: genai.TypeString},
			"score":    {Type: genai.TypeInteger},
		},
		Required: []string{"approved", "feedback"},
	}
)
