package gateway

// Config contains gateway provider configuration.
// The gateway speaks the OpenAI chat-completions protocol for every vendor
// (e.g. a LiteLLM proxy) and routes on vendor-qualified model names.
//
// Fields map to SDK options:
//   - BaseURL: option.WithBaseURL()
//   - APIKey or the vendor key: option.WithAPIKey()
//   - MaxRetries: option.WithMaxRetries()
type Config struct {
	BaseURL    string `env:"STARRAY_GATEWAY_URL"         envDefault:"http://localhost:4000/v1"`
	APIKey     string `env:"STARRAY_GATEWAY_API_KEY"`
	MaxRetries int    `env:"STARRAY_GATEWAY_MAX_RETRIES" envDefault:"0"`

	OpenAIKey    string `env:"OPENAI_API_KEY"`
	AnthropicKey string `env:"ANTHROPIC_API_KEY"`
	GeminiKey    string `env:"GEMINI_API_KEY"`
}

// KeyFor returns the credential for a vendor, falling back to the gateway key.
func (c Config) KeyFor(vendor string) string {
	var key string
	switch vendor {
	case "openai":
		key = c.OpenAIKey
	case "anthropic":
		key = c.AnthropicKey
	case "gemini":
		key = c.GeminiKey
	}

	if key == "" {
		return c.APIKey
	}
	return key
}
