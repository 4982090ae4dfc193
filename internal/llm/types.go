package llm

// ChatRequest represents a vision chat completion request
// Compatible with OpenAI API format
//
// Model: The model to use for completion
// Messages: Array of conversation messages
// MaxTokens: Maximum number of tokens to generate
type ChatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

// Message represents one request turn with multimodal content parts
//
// Role: "system" or "user"
// Content: Ordered content parts (text and image references)
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart is a single element of a multimodal message
//
// Type: "text" or "image_url"
// Text: Text payload when Type is "text"
// ImageURL: Image reference when Type is "image_url"
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageRef `json:"image_url,omitempty"`
}

// ImageRef carries the URL of an image the model should look at
type ImageRef struct {
	URL string `json:"url"`
}

// ChatResponse represents a chat completion response
// Compatible with OpenAI API format
//
// ID: Unique identifier for the response
// Object: Always "chat.completion"
// Created: Unix timestamp
// Model: Model used for the response
// Choices: Array of completion choices
// Usage: Token usage statistics
type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice represents a completion choice
//
// Index: Index of the choice
// Message: The assistant message content
// FinishReason: Reason for completion
type Choice struct {
	Index        int              `json:"index"`
	Message      AssistantMessage `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

// AssistantMessage is the model's reply; its content is plain text
type AssistantMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage represents token usage statistics
//
// PromptTokens: Number of tokens in the prompt
// CompletionTokens: Number of tokens in the completion
// TotalTokens: Total number of tokens used
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
