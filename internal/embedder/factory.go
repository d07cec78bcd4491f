package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted by the factory
const (
	EnvEmbeddingProvider = "SYMDEX_EMBEDDING_PROVIDER"
	EnvOpenAIAPIKey      = "OPENAI_API_KEY"
	EnvOllamaHost        = "OLLAMA_HOST"
	EnvOllamaModel       = "SYMDEX_OLLAMA_MODEL"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	APIKey    string
	Host      string // Ollama only
	CacheSize int
}

// NewFromEnv creates an embedder based on environment variables.
// Priority:
//  1. SYMDEX_EMBEDDING_PROVIDER (openai, ollama, local)
//  2. OPENAI_API_KEY present
//  3. OLLAMA_HOST present
//  4. Default to the local provider
func NewFromEnv() (Embedder, error) {
	provider := os.Getenv(EnvEmbeddingProvider)
	openaiKey := os.Getenv(EnvOpenAIAPIKey)
	ollamaHost := os.Getenv(EnvOllamaHost)

	cache := NewCache(10000) // Default cache size

	// Explicit provider selection
	if provider != "" {
		provider = strings.ToLower(provider)
		switch provider {
		case ProviderOpenAI:
			return NewOpenAIProvider(openaiKey, cache)
		case ProviderOllama:
			return NewOllamaProvider(ollamaHost, cache)
		case ProviderLocal:
			return NewLocalProvider(cache)
		default:
			return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, provider)
		}
	}

	// Auto-detect based on available configuration
	if openaiKey != "" {
		return NewOpenAIProvider(openaiKey, cache)
	}
	if ollamaHost != "" {
		return NewOllamaProvider(ollamaHost, cache)
	}

	return NewLocalProvider(cache)
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cache)
	case ProviderOllama:
		return NewOllamaProvider(cfg.Host, cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on the
// current environment
func DetectProvider() string {
	provider := os.Getenv(EnvEmbeddingProvider)
	if provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	if os.Getenv(EnvOllamaHost) != "" {
		return ProviderOllama
	}

	return ProviderLocal
}
