package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("single provider", func(t *testing.T) {
		extractor, err := New(ctx, Config{
			Providers: []string{"openai"},
			OpenAI:    ProviderConfig{APIKey: "test-key"},
		})
		require.NoError(t, err)
		assert.Equal(t, "openai", extractor.Name())
	})

	t.Run("multiple providers build a chain", func(t *testing.T) {
		extractor, err := New(ctx, Config{
			Providers: []string{"openai", "anthropic"},
			OpenAI:    ProviderConfig{APIKey: "test-key"},
			Anthropic: ProviderConfig{APIKey: "test-key"},
		})
		require.NoError(t, err)
		assert.Equal(t, "fallback(openai,anthropic)", extractor.Name())
	})

	t.Run("unsupported provider", func(t *testing.T) {
		_, err := New(ctx, Config{Providers: []string{"palm"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported extraction provider")
	})

	t.Run("missing credentials surface from the provider", func(t *testing.T) {
		_, err := New(ctx, Config{Providers: []string{"anthropic"}})
		require.Error(t, err)
	})

	t.Run("bad rules path", func(t *testing.T) {
		_, err := New(ctx, Config{
			Providers: []string{"openai"},
			OpenAI:    ProviderConfig{APIKey: "test-key"},
			RulesPath: "/nonexistent/rules.yaml",
		})
		require.Error(t, err)
	})
}
