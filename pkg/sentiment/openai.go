package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultOpenAIModel is used when OpenAIConfig.Model is empty.
const DefaultOpenAIModel = "gpt-4o-mini"

// ErrEmptyCompletion is returned when the model answers with no choices.
var ErrEmptyCompletion = errors.New("completion returned no choices")

const systemPrompt = `You are a sentiment classifier for short social media posts.
Answer with a single JSON object and nothing else:
{"label": "positive" | "neutral" | "negative", "score": <confidence between 0 and 1>}`

// OpenAIConfig configures the remote classifier.
type OpenAIConfig struct {
	APIKey string

	// BaseURL overrides the API endpoint (OpenAI-compatible servers).
	BaseURL string

	Model string

	// MaxRetries is passed to the SDK. The SDK default applies when negative.
	MaxRetries int
}

// OpenAIClassifier classifies texts with a chat completion model.
type OpenAIClassifier struct {
	api    openai.Client
	model  string
	logger zerolog.Logger
}

// NewOpenAIClassifier creates a remote classifier.
func NewOpenAIClassifier(cfg OpenAIConfig) (*OpenAIClassifier, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAIClassifier{
		api:    openai.NewClient(opts...),
		model:  model,
		logger: log.With().Str("component", "sentiment").Str("classifier", "openai").Logger(),
	}, nil
}

// Classify asks the model for a label and confidence.
func (c *OpenAIClassifier) Classify(ctx context.Context, text string) (Prediction, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return Prediction{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Prediction{}, ErrEmptyCompletion
	}

	content := resp.Choices[0].Message.Content
	pred, structured := parseCompletion(content)
	if !structured {
		c.logger.Debug().
			Str("content", content).
			Str("label", string(pred.Label)).
			Msg("Model answered in free text")
	}
	return pred, nil
}

// parseCompletion reads the model's JSON answer. Free-text answers fall back
// to MapLabel with a zero score and report false.
func parseCompletion(content string) (Prediction, bool) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.Trim(content, "`\n ")

	var answer struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(content), &answer); err != nil {
		return Prediction{Label: MapLabel(content)}, false
	}

	return Prediction{
		Label: MapLabel(answer.Label),
		Score: min(max(answer.Score, 0), 1),
	}, true
}
