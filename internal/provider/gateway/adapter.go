// Package gateway provides the remote adapter for vendor models exposed through an
// OpenAI-compatible gateway, using the official SDK. One Provider exists per vendor;
// vendors differ only in how bare model names are qualified.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/davidbz/starray/internal/domain"
	"github.com/davidbz/starray/internal/observability"
)

// Provider implements the domain.Provider interface for one gateway vendor.
type Provider struct {
	client openai.Client
	vendor string
}

// NewProvider creates a gateway provider for vendor.
// It fails with ProviderUnavailableError when no credential or endpoint is configured.
func NewProvider(vendor string, config Config) (*Provider, error) {
	if vendor == "" {
		return nil, errors.New("vendor cannot be empty")
	}

	apiKey := config.KeyFor(vendor)
	if apiKey == "" {
		return nil, &domain.ProviderUnavailableError{
			Provider: vendor,
			Reason:   errors.New("no API key configured"),
		}
	}

	if config.BaseURL == "" {
		return nil, &domain.ProviderUnavailableError{
			Provider: vendor,
			Reason:   errors.New("no gateway URL configured"),
		}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(config.BaseURL),
		option.WithMaxRetries(max(config.MaxRetries, 0)),
	}

	return &Provider{
		client: openai.NewClient(opts...),
		vendor: vendor,
	}, nil
}

// Chat sends a completion request and returns the response text.
func (p *Provider) Chat(ctx context.Context, req *domain.ChatRequest) (string, error) {
	if req == nil {
		return "", errors.New("request cannot be nil")
	}

	return p.complete(ctx, req, false)
}

// StructuredOutput requests a JSON object and keeps only the schema's declared properties.
func (p *Provider) StructuredOutput(ctx context.Context, req *domain.StructuredRequest) (map[string]any, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	content, err := p.complete(ctx, &req.ChatRequest, true)
	if err != nil {
		return nil, err
	}

	if !gjson.Valid(content) {
		return nil, &domain.RequestError{Provider: p.vendor, Err: errors.New("invalid JSON structured output")}
	}

	result := gjson.Parse(content)
	if !result.IsObject() {
		return nil, &domain.RequestError{Provider: p.vendor, Err: errors.New("non-object JSON structured output")}
	}

	return filterProperties(result, domain.SchemaProperties(req.Schema)), nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.vendor
}

// QualifiedModel returns the gateway model name for model.
func (p *Provider) QualifiedModel(model string) string {
	return QualifiedModel(p.vendor, model)
}

func (p *Provider) complete(ctx context.Context, req *domain.ChatRequest, jsonObject bool) (string, error) {
	model := p.QualifiedModel(req.Model)

	ctx = observability.WithProvider(ctx, p.vendor)
	ctx = observability.WithModel(ctx, model)
	logger := observability.FromContext(ctx)
	logger.Debug("calling gateway")

	params := p.toSDKParams(req, model)
	if jsonObject {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	var opts []option.RequestOption
	if req.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(req.Timeout))
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, params, opts...)
	if err != nil {
		logger.Debug("gateway call failed", zap.Error(err))
		return "", &domain.RequestError{Provider: p.vendor, Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &domain.RequestError{Provider: p.vendor, Err: errors.New("invalid response payload: no choices")}
	}

	logger.Debug("gateway call succeeded",
		zap.Duration("latency", time.Since(start)),
		zap.Int("prompt_tokens", int(resp.Usage.PromptTokens)),
		zap.Int("completion_tokens", int(resp.Usage.CompletionTokens)),
	)

	return resp.Choices[0].Message.Content, nil
}

// toSDKParams converts a domain request to SDK ChatCompletionNewParams.
func (p *Provider) toSDKParams(req *domain.ChatRequest, model string) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, len(req.Messages))
	for i, msg := range req.Messages {
		switch msg.Role {
		case domain.RoleUser:
			messages[i] = openai.UserMessage(msg.Content)
		case domain.RoleAssistant, domain.RoleAnalyst:
			messages[i] = openai.AssistantMessage(msg.Content)
		case domain.RoleSystem:
			messages[i] = openai.SystemMessage(msg.Content)
		default:
			// Unknown roles are sent as user input.
			messages[i] = openai.UserMessage(msg.Content)
		}
	}

	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
}

// filterProperties converts a JSON object into a map restricted to allowed keys.
// A nil allow list means the schema declared no properties object and keeps every key;
// an empty one keeps nothing.
func filterProperties(result gjson.Result, allowed []string) map[string]any {
	allow := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		allow[name] = struct{}{}
	}

	out := make(map[string]any)
	result.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if allowed != nil {
			if _, ok := allow[name]; !ok {
				return true
			}
		}
		out[name] = value.Value()
		return true
	})

	return out
}

// String describes the provider for diagnostics.
func (p *Provider) String() string {
	return fmt.Sprintf("gateway(%s)", p.vendor)
}
