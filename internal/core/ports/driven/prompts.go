package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names used throughout the application.
const (
	// PromptAskSystem is the default action (system prompt) for questions
	// answered from the note graph. It has no format placeholders.
	PromptAskSystem = "ask_system"

	// PromptContext wraps retrieved context ahead of the user prompt.
	// The template expects a single %s placeholder for the context.
	PromptContext = "context"
)
