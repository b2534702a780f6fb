// Package budget provides token budget estimation and context clamping for
// the answering agent. Because the agent supports multiple LLM backends with
// different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose and code). This
// deliberately under-estimates token counts to leave headroom for
// model-specific overhead.
package budget

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English and code; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default retrieval-context budget in
	// tokens. Conservative enough to fit within 8k-context models (Llama 3 8B,
	// GPT-3.5) while leaving room for the grounding instructions, the query,
	// and the output.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// Clamp truncates s so its estimated token count fits within maxTokens.
// maxTokens <= 0 applies DefaultMaxContextTokens. The cut lands on a byte
// boundary; a partially clipped trailing sentence is acceptable in retrieval
// context, where later content is the least relevant.
func Clamp(s string, maxTokens int) string {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	maxChars := maxTokens * charsPerToken
	if len(s) <= maxChars {
		return s
	}
	return s[:maxChars]
}
