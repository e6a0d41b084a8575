package domain

import "context"

// Provider represents any chat backend.
type Provider interface {
	// Chat sends a free-form completion request and returns the response text.
	Chat(ctx context.Context, req *ChatRequest) (string, error)

	// StructuredOutput sends a schema-constrained request and returns the
	// decoded object, restricted to the schema's declared property names.
	StructuredOutput(ctx context.Context, req *StructuredRequest) (map[string]any, error)

	// Name returns the provider identifier.
	Name() string
}

// ProviderRegistry manages available providers.
type ProviderRegistry interface {
	// Get returns the adapter for the provider name, constructing it on first use.
	Get(ctx context.Context, providerName string) (Provider, error)

	// List returns the names the registry can serve.
	List(ctx context.Context) ([]string, error)
}

// Router decides which provider and model answer a request.
type Router interface {
	// Route tries candidates in order and always returns a response.
	Route(ctx context.Context, role string, messages []Message) *RoutedResponse

	// ProviderOrder returns the deduplicated provider candidate order.
	ProviderOrder() []string

	// ModelOrder returns the deduplicated model candidate order for a role.
	ModelOrder(role string) []string
}

// SessionStore persists conversations.
type SessionStore interface {
	// Save writes the full session record and returns its location.
	Save(ctx context.Context, session *Session) (string, error)

	// Load reads the session record for id.
	Load(ctx context.Context, id string) (*Session, error)

	// List returns summaries of every stored session, newest first.
	List(ctx context.Context) ([]SessionSummary, error)
}

// EventPublisher publishes events for observability.
type EventPublisher interface {
	// Publish publishes an event with the given type and data.
	Publish(ctx context.Context, eventType string, data map[string]any)
}
