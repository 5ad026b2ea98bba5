package domain

// GenerateOptions tune a single text-generation call.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float32
}
