package domain

import (
	"fmt"
	"slices"
	"time"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleAnalyst   = "analyst"
)

// LocalProvider is the offline provider every candidate order ends with.
const LocalProvider = "local"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // system, user, assistant, analyst
	Content string `json:"content"`
}

// ChatRequest represents one attempt against a provider.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	Timeout     time.Duration
}

// StructuredRequest is a ChatRequest constrained by a JSON schema.
type StructuredRequest struct {
	ChatRequest

	Schema map[string]any
}

// RoutingConfig holds the provider and model preferences for routing.
type RoutingConfig struct {
	Provider           string
	Fallbacks          []string
	DefaultModel       string
	RoleModels         map[string]string
	RoleFallbackModels map[string][]string
	Temperature        float64
	RequestTimeout     time.Duration
}

// RoutedResponse is the outcome of one routing decision.
type RoutedResponse struct {
	Content      string    `json:"content"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	FallbackUsed bool      `json:"fallback_used"`
	Attempts     []Attempt `json:"-"`
}

// Attempt records a failed provider/model pair.
type Attempt struct {
	Provider string
	Model    string
	Err      error
}

func (a Attempt) String() string {
	return fmt.Sprintf("%s:%s: %v", a.Provider, a.Model, a.Err)
}

// SchemaProperties returns the sorted property names declared by a JSON schema.
// It returns nil when the schema has no properties object.
func SchemaProperties(schema map[string]any) []string {
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return nil
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}
