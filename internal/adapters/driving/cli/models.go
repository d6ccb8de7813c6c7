package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models offered by the LLM provider",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, _ []string) error {
	if err := ensureLLM(cmd.Context()); err != nil {
		return err
	}
	if llmService == nil {
		return errors.New("llm service not configured")
	}

	models, err := llmService.ListModels(cmd.Context())
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}

	if len(models) == 0 {
		cmd.Println("No models available.")
		return nil
	}

	current := llmService.ModelName()
	for _, m := range models {
		marker := "  "
		if m == current {
			marker = "* "
		}
		cmd.Printf("%s%s\n", marker, m)
	}
	return nil
}
