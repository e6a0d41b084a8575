// Package local provides the offline provider that every routing chain ends with.
// It implements the domain.Provider interface without making external calls,
// so a user always receives some answer when remote backends are unreachable.
package local

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/davidbz/starray/internal/domain"
	"github.com/davidbz/starray/internal/observability"
)

const replyPrefix = "Analyst: received. Live provider call unavailable, using local fallback. Next step captured: "

// Provider implements the domain.Provider interface for offline use.
type Provider struct {
	name string
}

// NewProvider creates a new local provider.
// No configuration is required as this provider operates entirely in-memory.
func NewProvider() *Provider {
	return &Provider{
		name: domain.LocalProvider,
	}
}

// Chat acknowledges the most recent user message. Any model name is accepted.
func (p *Provider) Chat(ctx context.Context, req *domain.ChatRequest) (string, error) {
	if req == nil {
		return "", errors.New("request cannot be nil")
	}

	observability.FromContext(ctx).Debug("local provider answering",
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)))

	return replyPrefix + lastUserContent(req.Messages), nil
}

// StructuredOutput returns every declared schema property with a nil value.
func (p *Provider) StructuredOutput(_ context.Context, req *domain.StructuredRequest) (map[string]any, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	properties := domain.SchemaProperties(req.Schema)
	out := make(map[string]any, len(properties))
	for _, name := range properties {
		out[name] = nil
	}

	return out, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

func lastUserContent(messages []domain.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
