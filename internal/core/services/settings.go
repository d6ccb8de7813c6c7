package services

import (
	"fmt"
	"os"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// EnvAPIKey supplies the API key of OpenAI-compatible providers when the
// config file has none.
//
//nolint:gosec // G101: environment variable name, not a credential.
const EnvAPIKey = "SERCHA_RAG_API_KEY"

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyVaultDir          = "vault.dir"
	keyCacheDir          = "cache.dir"
	keyEmbedProvider     = "embedding.provider"
	keyEmbedModel        = "embedding.model"
	keyEmbedBaseURL      = "embedding.base_url"
	keyEmbedAPIKey       = "embedding.api_key"
	keyLLMProvider       = "llm.provider"
	keyLLMModel          = "llm.model"
	keyLLMBaseURL        = "llm.base_url"
	keyLLMAPIKey         = "llm.api_key"
	keyRAGMaxDepth       = "rag.max_depth"
	keyRAGMaxChunkSize   = "rag.max_chunk_size"
	keyRAGMaxContext     = "rag.max_context_chars"
	keyRAGTopK           = "rag.top_k"
	keyRAGTemperature    = "rag.temperature"
	keyRAGExtensions     = "rag.extensions"
	keyTransportStream   = "transport.streaming"
	keyTransportRPS      = "transport.requests_per_second"
	keyPipelineProcessor = "pipeline.processors"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.Settings, error) {
	defaults := domain.DefaultSettings()
	envKey := os.Getenv(EnvAPIKey)

	settings := &domain.Settings{
		VaultDir: s.configStore.GetString(keyVaultDir),
		CacheDir: s.configStore.GetString(keyCacheDir),
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:    s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL), // No default - each adapter has its own
			APIKey:   s.getString(keyEmbedAPIKey, envKey),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:    s.getString(keyLLMModel, defaults.LLM.Model),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL),
			APIKey:   s.getString(keyLLMAPIKey, envKey),
		},
		RAG: domain.RAGSettings{
			MaxDepth:        s.getInt(keyRAGMaxDepth, defaults.RAG.MaxDepth),
			MaxChunkSize:    s.getInt(keyRAGMaxChunkSize, defaults.RAG.MaxChunkSize),
			MaxContextChars: s.getInt(keyRAGMaxContext, defaults.RAG.MaxContextChars),
			TopK:            s.getInt(keyRAGTopK, defaults.RAG.TopK),
			Temperature:     s.getFloat(keyRAGTemperature, defaults.RAG.Temperature),
			Extensions:      s.getStringSlice(keyRAGExtensions, defaults.RAG.Extensions),
		},
		Transport: domain.TransportSettings{
			Streaming:         s.getBool(keyTransportStream, defaults.Transport.Streaming),
			RequestsPerSecond: s.configStore.GetFloat(keyTransportRPS),
		},
	}

	return settings, nil
}

// Save persists application settings. API keys taken from the environment
// are not written to the config file.
func (s *SettingsService) Save(settings *domain.Settings) error {
	envKey := os.Getenv(EnvAPIKey)

	values := []struct {
		key   string
		value any
	}{
		{keyVaultDir, settings.VaultDir},
		{keyCacheDir, settings.CacheDir},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyRAGMaxDepth, settings.RAG.MaxDepth},
		{keyRAGMaxChunkSize, settings.RAG.MaxChunkSize},
		{keyRAGMaxContext, settings.RAG.MaxContextChars},
		{keyRAGTopK, settings.RAG.TopK},
		{keyRAGTemperature, settings.RAG.Temperature},
		{keyRAGExtensions, settings.RAG.Extensions},
		{keyTransportStream, settings.Transport.Streaming},
		{keyTransportRPS, settings.Transport.RequestsPerSecond},
	}
	if key := settings.Embedding.APIKey; key != "" && key != envKey {
		values = append(values, struct {
			key   string
			value any
		}{keyEmbedAPIKey, key})
	}
	if key := settings.LLM.APIKey; key != "" && key != envKey {
		values = append(values, struct {
			key   string
			value any
		}{keyLLMAPIKey, key})
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	if apiKey == "" {
		apiKey = os.Getenv(EnvAPIKey)
	}
	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	if settings.Embedding.Provider != provider {
		settings.Embedding.BaseURL = ""
	}
	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}

	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	if apiKey == "" {
		apiKey = os.Getenv(EnvAPIKey)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	if settings.LLM.Provider != provider {
		settings.LLM.BaseURL = ""
	}
	settings.LLM.Provider = provider

	if model != "" {
		settings.LLM.Model = model
	} else {
		settings.LLM.Model = domain.DefaultLLMModels()[provider]
	}

	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks if current settings are usable. The LLM is required; the
// embedding provider is optional but must be complete when set.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.LLM.IsConfigured() {
		return fmt.Errorf("%w: provider %q is not fully configured", domain.ErrLLMUnavailable, settings.LLM.Provider)
	}
	if settings.Embedding.Provider != "" && !settings.Embedding.IsConfigured() {
		return fmt.Errorf("%w: provider %q is not fully configured", domain.ErrEmbeddingUnavailable, settings.Embedding.Provider)
	}

	rag := settings.RAG
	switch {
	case rag.MaxDepth < 0:
		return fmt.Errorf("%w: rag.max_depth must not be negative", domain.ErrInvalidInput)
	case rag.MaxChunkSize < 0, rag.MaxContextChars < 0, rag.TopK < 0:
		return fmt.Errorf("%w: rag limits must not be negative", domain.ErrInvalidInput)
	case rag.Temperature < 0:
		return fmt.Errorf("%w: rag.temperature must not be negative", domain.ErrInvalidInput)
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// GetPipelineConfig returns the post-processor pipeline configuration.
// The chunker size follows rag.max_chunk_size; pipeline.<name>.* keys
// override per-processor settings.
func (s *SettingsService) GetPipelineConfig() domain.PipelineConfig {
	cfg := domain.DefaultPipelineConfig(s.getInt(keyRAGMaxChunkSize, domain.DefaultMaxChunkSize))

	if processors := s.configStore.GetStringSlice(keyPipelineProcessor); len(processors) > 0 {
		cfg.Processors = processors
	}

	for _, name := range cfg.Processors {
		overrides := s.loadProcessorConfig("pipeline." + name + ".")
		if len(overrides) == 0 {
			continue
		}
		existing := cfg.ProcessorConfigs[name]
		if existing == nil {
			existing = make(map[string]any)
		}
		for k, v := range overrides {
			existing[k] = v
		}
		cfg.ProcessorConfigs[name] = existing
	}

	return cfg
}

// loadProcessorConfig loads known processor keys with a given prefix.
func (s *SettingsService) loadProcessorConfig(prefix string) map[string]any {
	cfg := make(map[string]any)

	knownKeys := []string{"max_size"}
	for _, key := range knownKeys {
		if val, exists := s.configStore.Get(prefix + key); exists {
			cfg[key] = val
		}
	}

	return cfg
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getStringSlice(key string, defaultVal []string) []string {
	val := s.configStore.GetStringSlice(key)
	if len(val) == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}
