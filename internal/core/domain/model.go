package domain

// ModelInfo tracks the context window of a language model.
type ModelInfo struct {
	// ContextLength is the model's maximum context in tokens (0 = unknown).
	ContextLength int

	// LastContextLength is the context window last requested for the model.
	LastContextLength int
}

// ProcessRequest is one generation request to an inference provider.
type ProcessRequest struct {
	// Prompt is the user's text (selection or question).
	Prompt string

	// Action is the system instruction describing what to do with the prompt.
	Action string

	// Context is retrieved reference material, may be empty.
	Context string

	// Images are base64-encoded images for multimodal models.
	Images []string

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64
}
