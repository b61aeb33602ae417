package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/yukikurage/favor-exchange-api/internal/constants"
	"github.com/yukikurage/favor-exchange-api/internal/models"
	"github.com/yukikurage/favor-exchange-api/internal/points"
	"go.uber.org/zap"
)

type AIService struct {
	client *openai.Client
	logger *zap.Logger
}

// RequestDraft is a suggested request for the owner to review before posting
type RequestDraft struct {
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Category        models.Category `json:"category"`
	Urgency         models.Urgency  `json:"urgency"`
	Requirements    []string        `json:"requirements"`
	SuggestedPoints int             `json:"suggested_points"`
}

// NewAIService creates an AIService. An empty key leaves it disabled.
func NewAIService(apiKey string, logger *zap.Logger) *AIService {
	if apiKey == "" {
		return NewAIServiceWithConfig(nil, logger)
	}
	cfg := openai.DefaultConfig(apiKey)
	return NewAIServiceWithConfig(&cfg, logger)
}

// NewAIServiceWithConfig creates an AIService against a custom endpoint
func NewAIServiceWithConfig(cfg *openai.ClientConfig, logger *zap.Logger) *AIService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AIService{logger: logger}
	if cfg != nil {
		s.client = openai.NewClientWithConfig(*cfg)
	}
	return s
}

// Enabled reports whether an API key was configured
func (s *AIService) Enabled() bool {
	return s != nil && s.client != nil
}

// DraftRequest turns a free-text description of a need into a request draft
func (s *AIService) DraftRequest(ctx context.Context, text string) (*RequestDraft, error) {
	if !s.Enabled() {
		return nil, ErrAIServiceNotConfigured
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrTitleRequired
	}
	if runes := []rune(text); len(runes) > constants.MaxAIDraftInputChars {
		text = string(runes[:constants.MaxAIDraftInputChars])
	}

	categories := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		categories[i] = string(c)
	}

	prompt := fmt.Sprintf(`You help neighbours ask each other for favours. Turn the message below into one request.

Message:
%s

Reply with a single JSON object:
{
  "title": "short title, at most 80 characters",
  "description": "what is needed, in one or two sentences",
  "category": "one of %s",
  "urgency": "one of LOW, NORMAL, HIGH, URGENT",
  "requirements": ["anything the helper must bring or know"]
}

Return JSON only.`, text, strings.Join(categories, ", "))

	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: openai.GPT4o,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Temperature: 0.3,
		},
	)
	if err != nil {
		s.logger.Warn("OpenAI API error", zap.Error(err))
		return nil, ErrAIDraftFailed
	}

	if len(resp.Choices) == 0 {
		s.logger.Warn("no response from OpenAI")
		return nil, ErrAIDraftFailed
	}

	content := resp.Choices[0].Message.Content

	var draft RequestDraft
	if err := json.Unmarshal([]byte(content), &draft); err != nil {
		s.logger.Warn("failed to parse AI response", zap.Error(err), zap.String("response", content))
		return nil, ErrAIDraftFailed
	}

	normalizeDraft(&draft)
	if draft.Title == "" {
		return nil, ErrAIDraftFailed
	}
	return &draft, nil
}

// normalizeDraft replaces values outside the enums with OTHER and NORMAL
func normalizeDraft(draft *RequestDraft) {
	draft.Title = strings.TrimSpace(draft.Title)
	if runes := []rune(draft.Title); len(runes) > constants.MaxTitleLength {
		draft.Title = string(runes[:constants.MaxTitleLength])
	}
	draft.Description = strings.TrimSpace(draft.Description)

	draft.Category = models.Category(strings.ToUpper(strings.TrimSpace(string(draft.Category))))
	if !draft.Category.Valid() {
		draft.Category = models.CategoryOther
	}
	draft.Urgency = models.Urgency(strings.ToUpper(strings.TrimSpace(string(draft.Urgency))))
	if !draft.Urgency.Valid() {
		draft.Urgency = models.UrgencyNormal
	}

	draft.Requirements = nonNil(draft.Requirements)
	if len(draft.Requirements) > constants.MaxRequirements {
		draft.Requirements = draft.Requirements[:constants.MaxRequirements]
	}
	draft.SuggestedPoints = points.MustCalculate(draft.Category, draft.Urgency)
}
