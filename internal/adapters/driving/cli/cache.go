package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the persistent cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [content|embeddings|all]",
	Short: "Clear cached PDF text and embeddings",
	Long: `Removes cached entries. "content" holds extracted PDF text,
"embeddings" holds chunk embeddings. Without an argument both are cleared.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"content", "embeddings", "all"},
	RunE:      runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	stores, err := parseCacheStores(args)
	if err != nil {
		return err
	}
	if err := ensureCache(); err != nil {
		return err
	}
	if cacheStore == nil {
		return errors.New("cache not configured")
	}

	for _, store := range stores {
		if err := cacheStore.Clear(cmd.Context(), store); err != nil {
			return fmt.Errorf("clear %s cache: %w", store, err)
		}
		cmd.Printf("Cleared %s cache.\n", store)
	}
	return nil
}

func parseCacheStores(args []string) ([]domain.CacheStore, error) {
	if len(args) == 0 || args[0] == "all" {
		return []domain.CacheStore{domain.CacheStoreContent, domain.CacheStoreEmbeddings}, nil
	}
	store := domain.CacheStore(args[0])
	if !store.IsValid() {
		return nil, fmt.Errorf("%w: unknown cache %q (want content, embeddings or all)", domain.ErrInvalidInput, args[0])
	}
	return []domain.CacheStore{store}, nil
}
