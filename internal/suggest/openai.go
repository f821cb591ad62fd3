package suggest

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/icewall905/tuneforge/internal/constants"
	"github.com/icewall905/tuneforge/internal/domain"
)

var _ Source = (*OpenAISource)(nil)

// ChatService is the chat completion call, split out so tests need no server.
type ChatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// OpenAISource asks any OpenAI-compatible chat completion endpoint.
type OpenAISource struct {
	chat  ChatService
	model string
}

func NewOpenAISource(cfg OpenAIConfig) *OpenAISource {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return newOpenAISource(client.Chat.Completions, cfg.Model)
}

func newOpenAISource(chat ChatService, model string) *OpenAISource {
	if model == "" {
		model = constants.DefaultOpenAIModel
	}
	return &OpenAISource{chat: chat, model: model}
}

func (o *OpenAISource) Name() string {
	return constants.ProviderOpenAI
}

func (o *OpenAISource) Suggest(ctx context.Context, req Request) ([]domain.Candidate, error) {
	model := o.model
	if req.Params.Model != "" && req.Params.Model != "auto" {
		model = req.Params.Model
	}

	params := openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You recommend music. You answer with JSON only."),
			openai.UserMessage(req.Prompt),
		}),
		Model: openai.F(openai.ChatModel(model)),
	}
	if req.Params.Temperature > 0 {
		params.Temperature = openai.F(req.Params.Temperature)
	}
	if req.Seed != 0 {
		params.Seed = openai.F(req.Seed)
	}

	resp, err := o.chat.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoCandidates
	}
	return ParseCandidates(resp.Choices[0].Message.Content)
}
