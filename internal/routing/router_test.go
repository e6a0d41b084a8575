package routing_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/starray/internal/domain"
	"github.com/davidbz/starray/internal/provider/registry"
	"github.com/davidbz/starray/internal/routing"
)

// callLog records provider/model pairs in the order they were invoked.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(provider, model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, provider+"/"+model)
}

// mockRegistry is a mock implementation of ProviderRegistry for testing.
type mockRegistry struct {
	providers   map[string]domain.Provider
	unavailable map[string]struct{}
	log         *callLog
}

func newMockRegistry(log *callLog) *mockRegistry {
	return &mockRegistry{
		providers:   make(map[string]domain.Provider),
		unavailable: make(map[string]struct{}),
		log:         log,
	}
}

func (m *mockRegistry) Get(_ context.Context, providerName string) (domain.Provider, error) {
	if _, down := m.unavailable[providerName]; down {
		m.log.add(providerName, "*")
		return nil, &domain.ProviderUnavailableError{Provider: providerName, Reason: errors.New("no API key configured")}
	}
	provider, exists := m.providers[providerName]
	if !exists {
		return nil, &domain.UnsupportedProviderError{Provider: providerName}
	}
	return provider, nil
}

func (m *mockRegistry) List(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	return names, nil
}

// mockProvider is a mock implementation of Provider for testing.
type mockProvider struct {
	name     string
	log      *callLog
	chatFunc func(ctx context.Context, req *domain.ChatRequest) (string, error)
}

func (m *mockProvider) Chat(ctx context.Context, req *domain.ChatRequest) (string, error) {
	m.log.add(m.name, req.Model)
	if m.chatFunc != nil {
		return m.chatFunc(ctx, req)
	}
	return fmt.Sprintf(" %s answered with %s ", m.name, req.Model), nil
}

func (m *mockProvider) StructuredOutput(_ context.Context, _ *domain.StructuredRequest) (map[string]any, error) {
	return map[string]any{}, nil
}

func (m *mockProvider) Name() string {
	return m.name
}

func failing(name string, log *callLog) *mockProvider {
	return &mockProvider{
		name: name,
		log:  log,
		chatFunc: func(_ context.Context, _ *domain.ChatRequest) (string, error) {
			return "", &domain.RequestError{Provider: name, Err: errors.New("upstream 503")}
		},
	}
}

func exampleConfig() *domain.RoutingConfig {
	return &domain.RoutingConfig{
		Provider:           "openai",
		Fallbacks:          []string{"anthropic", "gemini"},
		DefaultModel:       "gpt-4.1",
		RoleModels:         map[string]string{"analyst": "gpt-4.1"},
		RoleFallbackModels: map[string][]string{"analyst": {"gpt-4.1-mini"}},
		Temperature:        0.2,
		RequestTimeout:     30 * time.Second,
	}
}

func TestProviderOrder(t *testing.T) {
	tests := []struct {
		name     string
		cfg      domain.RoutingConfig
		expected []string
	}{
		{
			name:     "primary, fallbacks, then local",
			cfg:      domain.RoutingConfig{Provider: "openai", Fallbacks: []string{"anthropic", "gemini"}},
			expected: []string{"openai", "anthropic", "gemini", "local"},
		},
		{
			name:     "explicit local fallback is not repeated",
			cfg:      domain.RoutingConfig{Provider: "openai", Fallbacks: []string{"anthropic", "gemini", "local"}},
			expected: []string{"openai", "anthropic", "gemini", "local"},
		},
		{
			name:     "duplicates keep first occurrence",
			cfg:      domain.RoutingConfig{Provider: "openai", Fallbacks: []string{"gemini", "openai", "gemini"}},
			expected: []string{"openai", "gemini", "local"},
		},
		{
			name:     "local primary",
			cfg:      domain.RoutingConfig{Provider: "local"},
			expected: []string{"local"},
		},
		{
			name:     "empty names are skipped",
			cfg:      domain.RoutingConfig{Provider: "", Fallbacks: []string{"", "anthropic"}},
			expected: []string{"anthropic", "local"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := routing.ProviderOrder(&tt.cfg)

			require.Equal(t, tt.expected, order)
			require.NotEmpty(t, order)
			require.Equal(t, "local", order[len(order)-1])
		})
	}
}

func TestModelOrder(t *testing.T) {
	t.Run("should start from the role model", func(t *testing.T) {
		cfg := exampleConfig()

		require.Equal(t, []string{"gpt-4.1", "gpt-4.1-mini"}, routing.ModelOrder(cfg, "analyst"))
	})

	t.Run("should fall back to the default model for unknown roles", func(t *testing.T) {
		cfg := exampleConfig()

		require.Equal(t, []string{"gpt-4.1"}, routing.ModelOrder(cfg, "planner"))
	})

	t.Run("should end with the default model", func(t *testing.T) {
		cfg := &domain.RoutingConfig{
			DefaultModel:       "gpt-4.1",
			RoleModels:         map[string]string{"tester": "gpt-4.1-mini"},
			RoleFallbackModels: map[string][]string{"tester": {"o4-mini", "gpt-4.1-mini"}},
		}

		require.Equal(t, []string{"gpt-4.1-mini", "o4-mini", "gpt-4.1"}, routing.ModelOrder(cfg, "tester"))
	})

	t.Run("should treat an empty role model as unset", func(t *testing.T) {
		cfg := &domain.RoutingConfig{
			DefaultModel: "gpt-4.1",
			RoleModels:   map[string]string{"analyst": ""},
		}

		require.Equal(t, []string{"gpt-4.1"}, routing.ModelOrder(cfg, "analyst"))
	})
}

func TestRouter_Route(t *testing.T) {
	messages := []domain.Message{
		{Role: "system", Content: "prompt"},
		{Role: "user", Content: "draft a plan"},
	}

	t.Run("should use the first candidate without fallback", func(t *testing.T) {
		log := &callLog{}
		reg := newMockRegistry(log)
		reg.providers["openai"] = &mockProvider{name: "openai", log: log}
		router := routing.NewRouter(reg, exampleConfig())

		response := router.Route(context.Background(), "analyst", messages)

		require.Equal(t, "openai", response.Provider)
		require.Equal(t, "gpt-4.1", response.Model)
		require.False(t, response.FallbackUsed)
		require.Equal(t, "openai answered with gpt-4.1", response.Content)
		require.Empty(t, response.Attempts)
	})

	t.Run("should walk the example chain down to local", func(t *testing.T) {
		log := &callLog{}
		reg := newMockRegistry(log)
		reg.providers["openai"] = failing("openai", log)
		reg.providers["anthropic"] = failing("anthropic", log)
		reg.providers["gemini"] = failing("gemini", log)
		reg.providers["local"] = &mockProvider{name: "local", log: log}
		router := routing.NewRouter(reg, exampleConfig())

		response := router.Route(context.Background(), "analyst", messages)

		require.Equal(t, []string{
			"openai/gpt-4.1", "openai/gpt-4.1-mini",
			"anthropic/gpt-4.1", "anthropic/gpt-4.1-mini",
			"gemini/gpt-4.1", "gemini/gpt-4.1-mini",
			"local/gpt-4.1",
		}, log.calls)
		require.Equal(t, "local", response.Provider)
		require.Equal(t, "gpt-4.1", response.Model)
		require.True(t, response.FallbackUsed)
		require.Len(t, response.Attempts, 6)
		require.Equal(t, "openai:gpt-4.1: openai provider request failed: upstream 503", response.Attempts[0].String())
	})

	t.Run("should treat construction failures like request failures", func(t *testing.T) {
		log := &callLog{}
		reg := newMockRegistry(log)
		reg.unavailable["openai"] = struct{}{}
		reg.providers["anthropic"] = &mockProvider{name: "anthropic", log: log}
		router := routing.NewRouter(reg, exampleConfig())

		response := router.Route(context.Background(), "analyst", messages)

		require.Equal(t, "anthropic", response.Provider)
		require.Equal(t, "gpt-4.1", response.Model)
		require.True(t, response.FallbackUsed)
		require.Len(t, response.Attempts, 2)
		require.ErrorIs(t, response.Attempts[0].Err, domain.ErrProviderUnavailable)
	})

	t.Run("should flag fallback when only the model changes", func(t *testing.T) {
		log := &callLog{}
		reg := newMockRegistry(log)
		reg.providers["openai"] = &mockProvider{
			name: "openai",
			log:  log,
			chatFunc: func(_ context.Context, req *domain.ChatRequest) (string, error) {
				if req.Model == "gpt-4.1" {
					return "", errors.New("model overloaded")
				}
				return "mini answer", nil
			},
		}
		router := routing.NewRouter(reg, exampleConfig())

		response := router.Route(context.Background(), "analyst", messages)

		require.Equal(t, "openai", response.Provider)
		require.Equal(t, "gpt-4.1-mini", response.Model)
		require.True(t, response.FallbackUsed)
	})

	t.Run("should set fallback iff the answering pair is not first", func(t *testing.T) {
		cfg := exampleConfig()
		total := len(routing.ProviderOrder(cfg)) * len(routing.ModelOrder(cfg, "analyst"))

		for failures := range total {
			log := &callLog{}
			reg := newMockRegistry(log)
			calls := 0
			chat := func(_ context.Context, _ *domain.ChatRequest) (string, error) {
				calls++
				if calls <= failures {
					return "", errors.New("down")
				}
				return "answer", nil
			}
			for _, name := range routing.ProviderOrder(cfg) {
				reg.providers[name] = &mockProvider{name: name, log: log, chatFunc: chat}
			}

			response := routing.NewRouter(reg, cfg).Route(context.Background(), "analyst", messages)

			require.Equal(t, "answer", response.Content)
			require.Len(t, response.Attempts, failures)
			require.Equal(t, failures > 0, response.FallbackUsed, "failures=%d", failures)
		}
	})

	t.Run("should return the synthetic response when every candidate fails", func(t *testing.T) {
		log := &callLog{}
		reg := newMockRegistry(log)
		for _, name := range []string{"openai", "anthropic", "gemini", "local"} {
			reg.providers[name] = failing(name, log)
		}
		router := routing.NewRouter(reg, exampleConfig())

		response := router.Route(context.Background(), "analyst", messages)

		require.Equal(t, "none", response.Provider)
		require.Equal(t, "none", response.Model)
		require.True(t, response.FallbackUsed)
		require.NotEmpty(t, response.Content)
		require.Equal(t, routing.ExhaustedMessage, response.Content)
		require.Len(t, response.Attempts, 8)
	})

	t.Run("should pass temperature, timeout and messages to the provider", func(t *testing.T) {
		log := &callLog{}
		reg := newMockRegistry(log)
		var got *domain.ChatRequest
		var deadline time.Time
		reg.providers["openai"] = &mockProvider{
			name: "openai",
			log:  log,
			chatFunc: func(ctx context.Context, req *domain.ChatRequest) (string, error) {
				got = req
				deadline, _ = ctx.Deadline()
				return "ok", nil
			},
		}
		router := routing.NewRouter(reg, exampleConfig())

		router.Route(context.Background(), "analyst", messages)

		require.NotNil(t, got)
		require.InDelta(t, 0.2, got.Temperature, 0.0001)
		require.Equal(t, 30*time.Second, got.Timeout)
		require.Equal(t, messages, got.Messages)
		require.False(t, deadline.IsZero())
	})

	t.Run("should apply the timeout per attempt", func(t *testing.T) {
		log := &callLog{}
		reg := newMockRegistry(log)
		slow := func(ctx context.Context, _ *domain.ChatRequest) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}
		reg.providers["openai"] = &mockProvider{name: "openai", log: log, chatFunc: slow}
		reg.providers["local"] = &mockProvider{name: "local", log: log}
		cfg := exampleConfig()
		cfg.Fallbacks = nil
		cfg.RequestTimeout = 20 * time.Millisecond

		response := routing.NewRouter(reg, cfg).Route(context.Background(), "analyst", messages)

		require.Equal(t, "local", response.Provider)
		require.Len(t, response.Attempts, 2)
		require.ErrorIs(t, response.Attempts[0].Err, context.DeadlineExceeded)
	})

	t.Run("should stop early when the caller cancels", func(t *testing.T) {
		log := &callLog{}
		reg := newMockRegistry(log)
		reg.providers["local"] = &mockProvider{name: "local", log: log}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		response := routing.NewRouter(reg, exampleConfig()).Route(ctx, "analyst", messages)

		require.Equal(t, "none", response.Provider)
		require.Empty(t, log.calls)
	})

	t.Run("should reach local through the real registry", func(t *testing.T) {
		cfg := exampleConfig()
		cfg.Fallbacks = nil

		response := routing.NewRouter(registry.NewRegistry(), cfg).Route(context.Background(), "analyst", messages)

		require.Equal(t, "local", response.Provider)
		require.True(t, response.FallbackUsed)
		require.Contains(t, response.Content, "draft a plan")
		require.Len(t, response.Attempts, 2)
		require.ErrorIs(t, response.Attempts[0].Err, domain.ErrUnsupportedProvider)
	})
}

func TestRouter_Orders(t *testing.T) {
	router := routing.NewRouter(newMockRegistry(&callLog{}), exampleConfig())

	require.Equal(t, []string{"openai", "anthropic", "gemini", "local"}, router.ProviderOrder())
	require.Equal(t, []string{"gpt-4.1", "gpt-4.1-mini"}, router.ModelOrder("analyst"))
}
