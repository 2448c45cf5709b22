// Package ai talks to the language-model service: a chat completer, a
// cached and rate-limited gateway in front of it, and the three analyses
// run on every earnings call.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/okian/earnsignal/pkg/logger"
)

// Providers.
const (
	ProviderAzure  = "azure"
	ProviderOpenAI = "openai"
)

// Request is one chat completion: a system instruction and user content.
// JSON asks the model for a JSON object.
type Request struct {
	System string
	User   string
	JSON   bool
}

// Completer returns the model's answer to a request. Implementations return
// an error wrapping ErrRateLimited when the service throttles.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientConfig selects the service and sampling parameters.
type ClientConfig struct {
	Provider string
	// Endpoint is the Azure resource endpoint, or a base URL override for OpenAI.
	Endpoint    string
	Key         string
	Model       string
	MaxTokens   int
	Temperature float32
	TopP        float32
	Timeout     time.Duration
}

// OpenAIClient is a Completer backed by go-openai.
type OpenAIClient struct {
	client *openai.Client
	cfg    ClientConfig
	logger logger.Logger
}

// NewOpenAIClient builds a client for cfg.Provider. For Azure, cfg.Model is
// used as the deployment name.
func NewOpenAIClient(cfg ClientConfig, l logger.Logger) (*OpenAIClient, error) {
	var oc openai.ClientConfig
	switch cfg.Provider {
	case ProviderAzure:
		if cfg.Endpoint == "" {
			return nil, errors.New("azure provider needs an endpoint")
		}
		oc = openai.DefaultAzureConfig(cfg.Key, cfg.Endpoint)
		deployment := cfg.Model
		oc.AzureModelMapperFunc = func(string) string { return deployment }
	case ProviderOpenAI, "":
		oc = openai.DefaultConfig(cfg.Key)
		if cfg.Endpoint != "" {
			oc.BaseURL = cfg.Endpoint
		}
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
	if cfg.Timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if l == nil {
		l = logger.Get().Named("ai")
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(oc), cfg: cfg, logger: l}, nil
}

// Complete sends req as a system and a user message.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	creq := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		TopP:        c.cfg.TopP,
	}
	if req.JSON {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := c.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		if statusCode(err) == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	c.logger.Debug(ctx, "completion received",
		logger.Int("prompt_tokens", resp.Usage.PromptTokens),
		logger.Int("completion_tokens", resp.Usage.CompletionTokens))
	return resp.Choices[0].Message.Content, nil
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
