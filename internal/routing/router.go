package routing

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/davidbz/starray/internal/domain"
	"github.com/davidbz/starray/internal/observability"
)

// NoneProvider names the synthetic result returned when every candidate fails.
const NoneProvider = "none"

// ExhaustedMessage is the reply returned when no candidate answered.
const ExhaustedMessage = "Analyst: I could not reach any configured providers. " +
	"Run '/provider' to inspect routes and verify credentials."

// FallbackRouter tries provider/model candidates in order until one answers.
// Providers are the outer loop, so a provider is offered every model before it is abandoned.
type FallbackRouter struct {
	registry domain.ProviderRegistry
	config   domain.RoutingConfig
}

// NewRouter creates a new router.
func NewRouter(registry domain.ProviderRegistry, config *domain.RoutingConfig) *FallbackRouter {
	cfg := domain.RoutingConfig{}
	if config != nil {
		cfg = *config
	}

	return &FallbackRouter{
		registry: registry,
		config:   cfg,
	}
}

// ProviderOrder returns [primary] + fallbacks + ["local"], deduplicated.
func (r *FallbackRouter) ProviderOrder() []string {
	return ProviderOrder(&r.config)
}

// ModelOrder returns [role model] + role fallbacks + [default model], deduplicated.
func (r *FallbackRouter) ModelOrder(role string) []string {
	return ModelOrder(&r.config, role)
}

// Route tries every provider/model pair in candidate order and never fails.
func (r *FallbackRouter) Route(ctx context.Context, role string, messages []domain.Message) *domain.RoutedResponse {
	providers := r.ProviderOrder()
	models := r.ModelOrder(role)
	logger := observability.FromContext(ctx)

	var attempts []domain.Attempt

	for _, providerName := range providers {
		for _, model := range models {
			if err := ctx.Err(); err != nil {
				logger.Warn("routing cancelled", zap.Error(err))
				return exhausted(attempts)
			}

			content, err := r.attempt(ctx, providerName, model, messages)
			if err != nil {
				failure := domain.Attempt{Provider: providerName, Model: model, Err: err}
				attempts = append(attempts, failure)
				logger.Info("routing attempt failed", zap.String("attempt", failure.String()))
				continue
			}

			response := &domain.RoutedResponse{
				Content:      strings.TrimSpace(content),
				Provider:     providerName,
				Model:        model,
				FallbackUsed: providerName != r.config.Provider || model != models[0],
				Attempts:     attempts,
			}

			logger.Info("routing succeeded",
				zap.String("provider", providerName),
				zap.String("model", model),
				zap.Bool("fallback_used", response.FallbackUsed),
				zap.Int("failed_attempts", len(attempts)))

			return response
		}
	}

	logger.Warn("all routing candidates exhausted", zap.Int("failed_attempts", len(attempts)))
	return exhausted(attempts)
}

// attempt runs one provider/model pair under the per-request timeout.
func (r *FallbackRouter) attempt(
	ctx context.Context,
	providerName string,
	model string,
	messages []domain.Message,
) (string, error) {
	ctx = observability.WithModel(observability.WithProvider(ctx, providerName), model)

	provider, err := r.registry.Get(ctx, providerName)
	if err != nil {
		return "", err
	}

	attemptCtx := ctx
	if r.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.config.RequestTimeout)
		defer cancel()
	}

	return provider.Chat(attemptCtx, &domain.ChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: r.config.Temperature,
		Timeout:     r.config.RequestTimeout,
	})
}

func exhausted(attempts []domain.Attempt) *domain.RoutedResponse {
	return &domain.RoutedResponse{
		Content:      ExhaustedMessage,
		Provider:     NoneProvider,
		Model:        NoneProvider,
		FallbackUsed: true,
		Attempts:     attempts,
	}
}
