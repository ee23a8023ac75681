package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/newspulse/newspulse/internal/news"
)

const (
	// maxClassifyContent bounds the article body sent to the model.
	maxClassifyContent = 2000

	// secondaryThreshold is the minimum confidence for a non-primary
	// category to be kept as a secondary match.
	secondaryThreshold = 0.6
)

// ClassifyInput is one classification request.
type ClassifyInput struct {
	Title   string
	Content string
	// Hints are source-side category labels (e.g. RSS categories), passed
	// to the model as a soft signal only.
	Hints []string
}

// Classification is the structured result of one classifier call.
type Classification struct {
	Category   news.Category
	Confidence float64
	Reasoning  string
	Secondary  []news.SecondaryCategory
}

// Classifier assigns topical categories to articles via the LLM endpoint.
type Classifier struct {
	client *openai.Client
	model  string
}

// NewClassifier creates a Classifier using the given client and model name.
func NewClassifier(client *openai.Client, model string) *Classifier {
	return &Classifier{client: client, model: model}
}

const classifySystemPrompt = `You are an IT news classifier. Analyze the provided title and content, then rank the categories below. Always respond with a JSON object of the form {"categories":[{"category":"...","confidence":0.0,"reasoning":"..."}]}. Categories:

1. CYBERSECURITY - Security breaches, vulnerabilities, privacy, encryption, hacking, data protection
2. AI_EMERGING_TECH - Artificial Intelligence, Machine Learning, quantum computing, blockchain, AR/VR, emerging technologies
3. SOFTWARE_DEVELOPMENT - Programming languages, frameworks, DevOps, open source, software engineering, development tools
4. HARDWARE_DEVICES - CPUs, GPUs, smartphones, IoT devices, consumer electronics, computer hardware
5. TECH_INDUSTRY_BUSINESS - Company news, acquisitions, stock market, regulations, tech industry business
6. OTHER - General tech news that doesn't fit the above categories

Return the best-fitting category as the first entry along with optional secondary candidates.`

type structuredCategory struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

type structuredResponse struct {
	Categories []structuredCategory `json:"categories"`
}

// Classify sends the article to the model and parses the ranked categories.
// Returns RateLimitError on throttling and ContentBlockedError when the
// model refuses to answer; any other failure is a plain error.
func (c *Classifier) Classify(ctx context.Context, input ClassifyInput) (Classification, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildClassifyPrompt(input)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			if rl := asRateLimit(apiErr); rl != nil {
				return Classification{}, rl
			}
		}
		return Classification{}, fmt.Errorf("classification request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Classification{}, fmt.Errorf("empty classification response")
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return Classification{}, &ContentBlockedError{Err: fmt.Errorf("finish reason %q", choice.FinishReason)}
	}

	return parseClassification(choice.Message.Content)
}

func buildClassifyPrompt(input ClassifyInput) string {
	content := input.Content
	if len(content) > maxClassifyContent {
		content = content[:maxClassifyContent]
	}

	var hints []string
	for _, h := range input.Hints {
		if trimmed := strings.TrimSpace(h); trimmed != "" {
			hints = append(hints, trimmed)
		}
	}
	hintsLine := ""
	if len(hints) > 0 {
		hintsLine = "\n\nSource categories (from the feed): " + strings.Join(hints, ", ")
	}

	return fmt.Sprintf(`Classify the following IT news article:

Title: %s

Content: %s%s

Use the source categories only as a hint if they are helpful and consistent with the content. Provide your classification in JSON format.`,
		input.Title, content, hintsLine)
}

// parseClassification validates the structured payload and splits it into a
// primary category plus secondaries above the confidence threshold.
func parseClassification(raw string) (Classification, error) {
	var payload structuredResponse
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Classification{}, fmt.Errorf("parsing classification response: %w", err)
	}

	var ranked []structuredCategory
	for _, entry := range payload.Categories {
		if !news.Category(entry.Category).Valid() {
			continue
		}
		ranked = append(ranked, entry)
	}
	if len(ranked) == 0 {
		return Classification{}, fmt.Errorf("classification response contained no known categories")
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})

	primary := ranked[0]
	reasoning := primary.Reasoning
	if reasoning == "" {
		reasoning = "No reasoning provided"
	}

	result := Classification{
		Category:   news.Category(primary.Category),
		Confidence: primary.Confidence,
		Reasoning:  reasoning,
	}
	for _, entry := range ranked[1:] {
		if entry.Confidence < secondaryThreshold {
			continue
		}
		result.Secondary = append(result.Secondary, news.SecondaryCategory{
			Category:   news.Category(entry.Category),
			Confidence: entry.Confidence,
		})
	}

	return result, nil
}
