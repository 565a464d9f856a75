package processing

// Request is the data the prompt template is rendered with.
type Request struct {
	// Question is the visitor's message, trimmed.
	Question string `json:"question"`

	// Context is the answer of the best FAQ match, or the configured
	// no-match text.
	Context string `json:"context"`
}

// Response represents the processed output from the LLM.
// It contains the formatted content after applying any configured
// transformations (e.g., JSON cleaning, whitespace trimming, length limits).
type Response struct {
	// Content is the processed response content
	Content string `json:"content"`

	// Truncated is set when MaxLength cut the content short
	Truncated bool `json:"truncated,omitempty"`
}
