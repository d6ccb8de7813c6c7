package domain

const unknownDescription = "Unknown"

// Pipeline limits.
const (
	// DefaultMaxDepth is the forward-link depth bound of the graph collector.
	DefaultMaxDepth = 10

	// DefaultMaxChunkSize is the chunk size bound in characters.
	DefaultMaxChunkSize = 1000

	// DefaultMaxContextChars caps the formatted retrieval context.
	DefaultMaxContextChars = 10000

	// DefaultTopK is the number of chunks retrieved per query.
	DefaultTopK = 10

	// DefaultTemperature is the generation temperature.
	DefaultTemperature = 0.7
)

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is any OpenAI-compatible API (OpenAI, LM Studio, vLLM).
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI-compatible"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI-compatible providers).
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI-compatible providers).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RAGSettings bounds the retrieval pipeline.
type RAGSettings struct {
	// MaxDepth is the forward-link traversal depth bound.
	MaxDepth int

	// MaxChunkSize is the chunk size bound in characters.
	MaxChunkSize int

	// MaxContextChars caps the formatted context handed to the LLM.
	MaxContextChars int

	// TopK is the number of chunks retrieved per query.
	TopK int

	// Temperature is the generation temperature.
	Temperature float64

	// Extensions lists the file extensions the collector follows.
	Extensions []string
}

// TransportSettings configures how inference requests are sent.
type TransportSettings struct {
	// Streaming selects the chunked streaming transport as primary.
	// When false every request uses the buffered transport.
	Streaming bool

	// RequestsPerSecond limits outgoing provider requests (0 = unlimited).
	RequestsPerSecond float64
}

// Settings holds all application settings.
type Settings struct {
	// VaultDir is the root directory of the note vault.
	VaultDir string

	// CacheDir is where the persistent cache database lives.
	CacheDir string

	// LLM holds LLM provider settings.
	LLM LLMSettings

	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// RAG holds retrieval bounds.
	RAG RAGSettings

	// Transport holds inference transport settings.
	Transport TransportSettings
}

// DefaultSettings returns settings with sensible defaults.
// Both providers default to a local Ollama instance.
func DefaultSettings() Settings {
	return Settings{
		LLM: LLMSettings{
			Provider: AIProviderOllama,
			Model:    DefaultLLMModels()[AIProviderOllama],
		},
		Embedding: EmbeddingSettings{
			Provider: AIProviderOllama,
			Model:    DefaultEmbeddingModels()[AIProviderOllama],
		},
		RAG: RAGSettings{
			MaxDepth:        DefaultMaxDepth,
			MaxChunkSize:    DefaultMaxChunkSize,
			MaxContextChars: DefaultMaxContextChars,
			TopK:            DefaultTopK,
			Temperature:     DefaultTemperature,
			Extensions:      DefaultExtensions(),
		},
		Transport: TransportSettings{
			Streaming: true,
		},
	}
}

// DefaultExtensions returns the file extensions followed by default.
func DefaultExtensions() []string {
	return []string{"md", "pdf"}
}

// AllProviders returns all supported providers.
func AllProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "llama3.2",
		AIProviderOpenAI: "gpt-4o-mini",
	}
}

// PipelineConfig holds post-processor pipeline configuration.
// Uses generic map-based config so new processors can be added
// without modifying this struct.
type PipelineConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration as generic maps.
	// Key is processor name, value is processor-specific config.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// DefaultPipelineConfig returns the default pipeline configuration.
func DefaultPipelineConfig(maxChunkSize int) PipelineConfig {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	return PipelineConfig{
		Processors: []string{"chunker"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"max_size": maxChunkSize,
			},
		},
	}
}
