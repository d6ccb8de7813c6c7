package cli

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
)

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Very long key",
			input:    "sk-proj-1234567890abcdefghijklmnop",
			expected: "sk-p...mnop",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestReadLine(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader("  first  \nsecond"))

	assert.Equal(t, "first", readLine(reader))
	assert.Equal(t, "second", readLine(reader))
	assert.Equal(t, "", readLine(reader))
}

func TestConfigCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range configCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"show", "wizard", "vault", "embedding", "llm"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestConfigShowCmd_Defaults(t *testing.T) {
	setupTestServices(t)

	out, err := executeCmd(t, "config", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "Directory: (not set)")
	assert.Contains(t, out, "[Embedding]")
	assert.Contains(t, out, "Provider: Ollama (local)")
	assert.Contains(t, out, "Model: nomic-embed-text")
	assert.Contains(t, out, "Model: llama3.2")
	assert.Contains(t, out, "Max depth: 10")
	assert.Contains(t, out, "Top K: 10")
	assert.Contains(t, out, "Temperature: 0.7")
	assert.Contains(t, out, "Extensions: md, pdf")
	assert.Contains(t, out, "Streaming: true")
	assert.Contains(t, out, "Rate limit: none")
	assert.Contains(t, out, "Configuration is valid.")
}

func TestConfigShowCmd_MasksAPIKey(t *testing.T) {
	setupTestServices(t)
	require.NoError(t, settingsService.SetLLMProvider(domain.AIProviderOpenAI, "gpt-4o", "sk-1234567890abcdef"))

	out, err := executeCmd(t, "config")

	require.NoError(t, err)
	assert.Contains(t, out, "Provider: OpenAI-compatible")
	assert.Contains(t, out, "API Key: sk-1...cdef")
	assert.NotContains(t, out, "sk-1234567890abcdef")
}

func TestConfigVaultCmd(t *testing.T) {
	setupTestServices(t)
	dir := t.TempDir()

	out, err := executeCmd(t, "config", "vault", dir)

	require.NoError(t, err)
	assert.Contains(t, out, "Vault directory saved.")
	settings, err := settingsService.Get()
	require.NoError(t, err)
	assert.Equal(t, dir, settings.VaultDir)
}

func TestConfigVaultCmd_NotADirectory(t *testing.T) {
	setupTestServices(t)
	file := filepath.Join(t.TempDir(), "note.md")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := executeCmd(t, "config", "vault", file)

	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConfigVaultCmd_Missing(t *testing.T) {
	setupTestServices(t)

	_, err := executeCmd(t, "config", "vault", filepath.Join(t.TempDir(), "missing"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault directory")
}

func TestConfigLLMCmd_WithArgs(t *testing.T) {
	setupTestServices(t)

	out, err := executeCmd(t, "config", "llm", "openai", "gpt-4o", "--api-key", "sk-1234567890abcdef")

	require.NoError(t, err)
	assert.Contains(t, out, "Validating configuration... OK")
	assert.Contains(t, out, "LLM provider configured: OpenAI-compatible (gpt-4o)")

	settings, err := settingsService.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOpenAI, settings.LLM.Provider)
	assert.Equal(t, "gpt-4o", settings.LLM.Model)
	assert.Equal(t, "sk-1234567890abcdef", settings.LLM.APIKey)
}

func TestConfigLLMCmd_DefaultModel(t *testing.T) {
	setupTestServices(t)

	_, err := executeCmd(t, "config", "llm", "Ollama")

	require.NoError(t, err)
	settings, err := settingsService.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, settings.LLM.Provider)
	assert.Equal(t, "llama3.2", settings.LLM.Model)
}

func TestConfigLLMCmd_UnknownProvider(t *testing.T) {
	setupTestServices(t)

	_, err := executeCmd(t, "config", "llm", "anthropic")

	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConfigLLMCmd_MissingAPIKey(t *testing.T) {
	setupTestServices(t)

	_, err := executeCmd(t, "config", "llm", "openai")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key required")
}

func TestConfigLLMCmd_EnvAPIKey(t *testing.T) {
	setupTestServices(t)
	t.Setenv(services.EnvAPIKey, "sk-from-environment")

	_, err := executeCmd(t, "config", "llm", "openai")

	require.NoError(t, err)
	settings, err := settingsService.Get()
	require.NoError(t, err)
	assert.Equal(t, "sk-from-environment", settings.LLM.APIKey)
}

func TestConfigEmbeddingCmd_Interactive(t *testing.T) {
	setupTestServices(t)
	rootCmd.SetIn(strings.NewReader("2\n\nsk-abcdefgh12345678\n"))

	out, err := executeCmd(t, "config", "embedding")

	require.NoError(t, err)
	assert.Contains(t, out, "Select Embedding Provider")
	assert.Contains(t, out, "Embedding provider configured: OpenAI-compatible (text-embedding-3-small)")

	settings, err := settingsService.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
	assert.Equal(t, "sk-abcdefgh12345678", settings.Embedding.APIKey)
}

func TestConfigWizardCmd(t *testing.T) {
	setupTestServices(t)
	dir := t.TempDir()
	rootCmd.SetIn(strings.NewReader(dir + "\n1\nall-minilm\n1\n\n"))

	out, err := executeCmd(t, "config", "wizard")

	require.NoError(t, err)
	assert.Contains(t, out, "Step 1: Vault Directory")
	assert.Contains(t, out, "Configuration Complete!")
	assert.Contains(t, out, "All settings are valid and saved.")

	settings, err := settingsService.Get()
	require.NoError(t, err)
	assert.Equal(t, dir, settings.VaultDir)
	assert.Equal(t, domain.AIProviderOllama, settings.Embedding.Provider)
	assert.Equal(t, "all-minilm", settings.Embedding.Model)
	assert.Equal(t, "llama3.2", settings.LLM.Model)
}

func TestProviderArgs(t *testing.T) {
	provider, model, err := providerArgs([]string{"openai"}, domain.DefaultLLMModels())
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOpenAI, provider)
	assert.Equal(t, "gpt-4o-mini", model)

	provider, model, err = providerArgs([]string{"OLLAMA", "mistral"}, domain.DefaultLLMModels())
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, provider)
	assert.Equal(t, "mistral", model)

	_, _, err = providerArgs([]string{"nope"}, domain.DefaultLLMModels())
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}
