package domain

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// AnalystSystemPrompt frames every analyst request.
const AnalystSystemPrompt = "You are the Analyst agent in StarRay. Be concise, practical, and action-oriented. " +
	"When uncertain, ask a short clarifying question."

// AnalystService answers user text through the router.
type AnalystService struct {
	router Router
}

// NewAnalystService creates a new analyst service (DI constructor).
func NewAnalystService(router Router) *AnalystService {
	return &AnalystService{
		router: router,
	}
}

// Respond routes one user turn and always returns a response.
func (a *AnalystService) Respond(ctx context.Context, userText string) *RoutedResponse {
	messages := []Message{
		{Role: RoleSystem, Content: AnalystSystemPrompt},
		{Role: RoleUser, Content: userText},
	}

	return a.router.Route(ctx, RoleAnalyst, messages)
}

// RouteSummary describes the provider and model orders for the analyst role.
func (a *AnalystService) RouteSummary() string {
	providers := strings.Join(a.router.ProviderOrder(), " -> ")
	models := strings.Join(a.router.ModelOrder(RoleAnalyst), " -> ")

	return fmt.Sprintf("Provider route: %s\n%s model route: %s", providers, capitalize(RoleAnalyst), models)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
