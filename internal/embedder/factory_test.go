package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvEmbeddingProvider, "")
	t.Setenv(EnvOpenAIAPIKey, "")
	t.Setenv(EnvOllamaHost, "")
}

func TestDetectProviderDefaultsToLocal(t *testing.T) {
	clearEnv(t)
	assert.Equal(t, ProviderLocal, DetectProvider())
}

func TestDetectProviderFromKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvOpenAIAPIKey, "sk-test")
	assert.Equal(t, ProviderOpenAI, DetectProvider())

	clearEnv(t)
	t.Setenv(EnvOllamaHost, "http://localhost:11434")
	assert.Equal(t, ProviderOllama, DetectProvider())
}

func TestDetectProviderExplicitOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvOpenAIAPIKey, "sk-test")
	t.Setenv(EnvEmbeddingProvider, "LOCAL")
	assert.Equal(t, ProviderLocal, DetectProvider())
}

func TestNewFromEnvLocal(t *testing.T) {
	clearEnv(t)
	emb, err := NewFromEnv()
	require.NoError(t, err)
	defer func() { _ = emb.Close() }()

	assert.Equal(t, ProviderLocal, emb.Provider())
	assert.Equal(t, LocalDimension, emb.Dimension())
}

func TestNewFromEnvUnknownProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvEmbeddingProvider, "cohere")
	_, err := NewFromEnv()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestNewExplicitConfig(t *testing.T) {
	emb, err := New(Config{Provider: "local", CacheSize: 100})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())

	_, err = New(Config{Provider: "nope"})
	assert.Error(t, err)
}

func TestNewOllamaProviderDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvOllamaModel, "")
	p, err := NewOllamaProvider("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultOllamaModel, p.Model())
	assert.Equal(t, ProviderOllama, p.Provider())
}
