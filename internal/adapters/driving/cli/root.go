// Package cli implements the sercha-rag command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/vault"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/logger"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/pdf"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

// Persistent flags.
var (
	verbose   bool
	configDir string
	vaultDir  string
)

// Services used by the commands. The ensure* helpers wire them on first
// use; tests inject them directly.
var (
	settingsService driving.SettingsService
	ragService      driving.RAGService
	llmService      driven.LLMService
	cacheStore      driven.Cache
	noteVault       *vault.Vault
	chunkPipeline   driven.PostProcessorPipeline
	cleanups        []func()
)

var rootCmd = &cobra.Command{
	Use:   "sercha-rag",
	Short: "Ask questions against the notes linked to a document",
	Long: `sercha-rag collects the notes linked to (and from) a document in a
markdown vault, retrieves the passages most relevant to a question and
streams an answer from a local or OpenAI-compatible model.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "write debug logs to stderr")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.sercha-rag)")
	rootCmd.PersistentFlags().StringVar(&vaultDir, "vault", "", "vault directory (overrides vault.dir)")
}

// Execute runs the root command. Interrupts cancel the running command.
func Execute() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	// Command output goes to stdout, cobra defaults it to stderr.
	rootCmd.SetOut(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	closeServices()
	if err != nil {
		os.Exit(1)
	}
}

// closeServices releases everything the ensure* helpers opened.
func closeServices() {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil
}

func ensureSettings() error {
	if settingsService != nil {
		return nil
	}

	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	settingsService = services.NewSettingsService(store, ai.NewConfigValidator(nil))
	return nil
}

func ensureCache() error {
	if cacheStore != nil {
		return nil
	}
	if err := ensureSettings(); err != nil {
		return err
	}
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	store, err := sqlite.NewStore(settings.CacheDir)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	logger.Debug("cache database: %s", store.Path())
	cacheStore = store.Cache()
	cleanups = append(cleanups, func() { _ = store.Close() })
	return nil
}

func ensurePipeline() error {
	if chunkPipeline != nil {
		return nil
	}
	if err := ensureSettings(); err != nil {
		return err
	}

	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry)
	pipeline, err := registry.BuildPipeline(settingsService.GetPipelineConfig())
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	logger.Debug("chunk pipeline: %s", strings.Join(pipeline.Stages(), " -> "))
	chunkPipeline = pipeline
	return nil
}

func ensureLLM(ctx context.Context) error {
	if llmService != nil {
		return nil
	}
	if err := ensureSettings(); err != nil {
		return err
	}
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	factory := ai.NewFactory(settings.Transport, nil)
	llm, err := factory.CreateAndValidateLLMService(ctx, &settings.LLM)
	if err != nil {
		return err
	}
	if llm == nil {
		return fmt.Errorf("%w: run 'sercha-rag config llm' first", domain.ErrLLMUnavailable)
	}
	llmService = llm
	cleanups = append(cleanups, func() { _ = llm.Close() })
	return nil
}

// ensureRAG wires the full pipeline over the vault. When needLLM is false
// an unusable LLM provider is tolerated, which is enough for commands that
// only collect or retrieve.
func ensureRAG(ctx context.Context, needLLM bool) error {
	if ragService != nil {
		return nil
	}
	if err := ensureSettings(); err != nil {
		return err
	}
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	dir := vaultDir
	if dir == "" {
		dir = settings.VaultDir
	}
	if dir == "" {
		return errors.New("no vault configured: pass --vault or run 'sercha-rag config vault <dir>'")
	}
	v, err := vault.Open(ctx, dir)
	if err != nil {
		return err
	}
	noteVault = v
	cleanups = append(cleanups, func() { _ = v.Close() })

	if err := ensureCache(); err != nil {
		return err
	}
	if err := ensurePipeline(); err != nil {
		return err
	}

	factory := ai.NewFactory(settings.Transport, memory.NewModelInfoStore())
	var embedder driven.EmbeddingService
	var llm driven.LLMService
	if needLLM {
		result, err := factory.Initialise(ctx, settings)
		if err != nil {
			return err
		}
		for _, warning := range result.Warnings {
			logger.Warn("%s", warning)
		}
		cleanups = append(cleanups, result.Close)
		embedder, llm = result.EmbeddingService, result.LLMService
	} else {
		embedder, err = factory.CreateAndValidateEmbeddingService(ctx, &settings.Embedding)
		if err != nil {
			logger.Warn("%v", err)
		}
		if embedder != nil {
			cleanups = append(cleanups, func() { _ = embedder.Close() })
		}
	}

	collector := services.NewCollector(v, v, pdf.New(), cacheStore,
		services.WithMaxDepth(settings.RAG.MaxDepth),
		services.WithExtensions(settings.RAG.Extensions),
	)

	var retriever *services.RetrievalEngine
	if embedder != nil {
		retriever = services.NewRetrievalEngine(embedder, cacheStore,
			func() driven.VectorIndex { return memory.NewVectorIndex() },
			services.WithTopK(settings.RAG.TopK),
			services.WithMaxContextChars(settings.RAG.MaxContextChars),
		)
	}

	promptDir := ""
	if configDir != "" {
		promptDir = filepath.Join(configDir, "prompts")
	}
	prompts, err := file.NewPromptStore(promptDir)
	if err != nil {
		return fmt.Errorf("open prompts: %w", err)
	}

	ragService = services.NewRAGService(collector, chunkPipeline, retriever, llm, prompts,
		services.WithTemperature(settings.RAG.Temperature))
	return nil
}

// notePath converts a command line path into a vault-relative one.
func notePath(arg string) (string, error) {
	if noteVault == nil {
		return filepath.ToSlash(arg), nil
	}
	return noteVault.Rel(arg)
}
