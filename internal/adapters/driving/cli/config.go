package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
)

var configAPIKey string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage application settings",
	Long: `View and configure the vault, AI providers and retrieval bounds.

Use subcommands to configure specific settings or run the interactive wizard.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure the vault and both providers step by step.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigWizard,
}

var configVaultCmd = &cobra.Command{
	Use:   "vault <dir>",
	Short: "Set the vault directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigVault,
}

var configEmbeddingCmd = &cobra.Command{
	Use:   "embedding [provider] [model]",
	Short: "Configure embedding provider",
	Long: `Configure the embedding provider used for retrieval.
Without arguments the provider is chosen interactively.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfigEmbedding,
}

var configLLMCmd = &cobra.Command{
	Use:   "llm [provider] [model]",
	Short: "Configure LLM provider",
	Long: `Configure the LLM provider that answers questions.
Without arguments the provider is chosen interactively.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfigLLM,
}

func init() {
	for _, c := range []*cobra.Command{configEmbeddingCmd, configLLMCmd} {
		c.Flags().StringVar(&configAPIKey, "api-key", "",
			"API key for OpenAI-compatible providers (default $"+services.EnvAPIKey+")")
	}
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configWizardCmd)
	configCmd.AddCommand(configVaultCmd)
	configCmd.AddCommand(configEmbeddingCmd)
	configCmd.AddCommand(configLLMCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if err := ensureSettings(); err != nil {
		return err
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Vault]")
	cmd.Printf("  Directory: %s\n", valueOr(settings.VaultDir, "(not set)"))
	cmd.Printf("  Cache: %s\n", valueOr(settings.CacheDir, "(default)"))
	cmd.Println()

	cmd.Println("[Embedding]")
	printProvider(cmd, settings.Embedding.Provider, settings.Embedding.Model,
		settings.Embedding.BaseURL, settings.Embedding.APIKey, settings.Embedding.IsConfigured())
	cmd.Println()

	cmd.Println("[LLM]")
	printProvider(cmd, settings.LLM.Provider, settings.LLM.Model,
		settings.LLM.BaseURL, settings.LLM.APIKey, settings.LLM.IsConfigured())
	cmd.Println()

	cmd.Println("[Retrieval]")
	cmd.Printf("  Max depth: %d\n", settings.RAG.MaxDepth)
	cmd.Printf("  Max chunk size: %d\n", settings.RAG.MaxChunkSize)
	cmd.Printf("  Max context: %d chars\n", settings.RAG.MaxContextChars)
	cmd.Printf("  Top K: %d\n", settings.RAG.TopK)
	cmd.Printf("  Temperature: %s\n", strconv.FormatFloat(settings.RAG.Temperature, 'f', -1, 64))
	cmd.Printf("  Extensions: %s\n", strings.Join(settings.RAG.Extensions, ", "))
	cmd.Println()

	cmd.Println("[Transport]")
	cmd.Printf("  Streaming: %t\n", settings.Transport.Streaming)
	if settings.Transport.RequestsPerSecond > 0 {
		cmd.Printf("  Rate limit: %s req/s\n", strconv.FormatFloat(settings.Transport.RequestsPerSecond, 'f', -1, 64))
	} else {
		cmd.Println("  Rate limit: none")
	}
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'sercha-rag config wizard' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func printProvider(cmd *cobra.Command, provider domain.AIProvider, model, baseURL, apiKey string, configured bool) {
	cmd.Printf("  Provider: %s\n", provider.Description())
	cmd.Printf("  Model: %s\n", model)
	if baseURL != "" {
		cmd.Printf("  Base URL: %s\n", baseURL)
	}
	if provider.RequiresAPIKey() {
		if apiKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(apiKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	status := "configured"
	if !configured {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
}

func runConfigWizard(cmd *cobra.Command, _ []string) error {
	if err := ensureSettings(); err != nil {
		return err
	}

	cmd.Println("sercha-rag Settings Wizard")
	cmd.Println("==========================")
	cmd.Println()

	reader := bufio.NewReader(cmd.InOrStdin())

	cmd.Println("Step 1: Vault Directory")
	cmd.Println("-----------------------")
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	cmd.Printf("Enter vault directory [%s]: ", settings.VaultDir)
	if dir := readLine(reader); dir != "" {
		if err := setVaultDir(dir); err != nil {
			return err
		}
	}
	cmd.Println()

	cmd.Println("Step 2: Configure Embedding Provider")
	cmd.Println("------------------------------------")
	if err := configureEmbeddingProvider(cmd, reader); err != nil {
		return err
	}

	cmd.Println("Step 3: Configure LLM Provider")
	cmd.Println("------------------------------")
	if err := configureLLMProvider(cmd, reader); err != nil {
		return err
	}

	cmd.Println("Configuration Complete!")
	cmd.Println("=======================")
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("All settings are valid and saved.")
	}

	return nil
}

func runConfigVault(cmd *cobra.Command, args []string) error {
	if err := ensureSettings(); err != nil {
		return err
	}
	if err := setVaultDir(args[0]); err != nil {
		return err
	}
	cmd.Println("Vault directory saved.")
	return nil
}

func setVaultDir(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve vault directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("vault directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, abs)
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	settings.VaultDir = abs
	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func runConfigEmbedding(cmd *cobra.Command, args []string) error {
	if err := ensureSettings(); err != nil {
		return err
	}
	if len(args) == 0 {
		return configureEmbeddingProvider(cmd, bufio.NewReader(cmd.InOrStdin()))
	}

	provider, model, err := providerArgs(args, domain.DefaultEmbeddingModels())
	if err != nil {
		return err
	}
	return applyEmbeddingProvider(cmd, provider, model, configAPIKey)
}

func runConfigLLM(cmd *cobra.Command, args []string) error {
	if err := ensureSettings(); err != nil {
		return err
	}
	if len(args) == 0 {
		return configureLLMProvider(cmd, bufio.NewReader(cmd.InOrStdin()))
	}

	provider, model, err := providerArgs(args, domain.DefaultLLMModels())
	if err != nil {
		return err
	}
	return applyLLMProvider(cmd, provider, model, configAPIKey)
}

func providerArgs(args []string, defaults map[domain.AIProvider]string) (domain.AIProvider, string, error) {
	provider := domain.AIProvider(strings.ToLower(args[0]))
	if !provider.IsValid() {
		return "", "", fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, args[0])
	}
	model := defaults[provider]
	if len(args) > 1 {
		model = args[1]
	}
	return provider, model, nil
}

//nolint:dupl // Similar to configureLLMProvider but for embeddings - intentional for CLI flow clarity
func configureEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select Embedding Provider")
	provider := chooseProvider(cmd, reader)

	defaultModel := domain.DefaultEmbeddingModels()[provider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if provider.RequiresAPIKey() && os.Getenv(services.EnvAPIKey) == "" {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	return applyEmbeddingProvider(cmd, provider, model, apiKey)
}

//nolint:dupl // Similar to configureEmbeddingProvider but for LLM - intentional for CLI flow clarity
func configureLLMProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select LLM Provider")
	provider := chooseProvider(cmd, reader)

	defaultModel := domain.DefaultLLMModels()[provider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if provider.RequiresAPIKey() && os.Getenv(services.EnvAPIKey) == "" {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	return applyLLMProvider(cmd, provider, model, apiKey)
}

func chooseProvider(cmd *cobra.Command, reader *bufio.Reader) domain.AIProvider {
	providers := domain.AllProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	return providers[idx-1]
}

func applyEmbeddingProvider(cmd *cobra.Command, provider domain.AIProvider, model, apiKey string) error {
	if err := settingsService.SetEmbeddingProvider(provider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Embedding provider configured: %s (%s)\n\n", provider.Description(), model)
	return nil
}

func applyLLMProvider(cmd *cobra.Command, provider domain.AIProvider, model, apiKey string) error {
	if err := settingsService.SetLLMProvider(provider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateLLMConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("LLM provider configured: %s (%s)\n\n", provider.Description(), model)
	return nil
}

// Helper functions.

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

func readPassword(reader *bufio.Reader) string {
	// Try to read password without echo
	if term.IsTerminal(int(os.Stdin.Fd())) && reader.Buffered() == 0 {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
