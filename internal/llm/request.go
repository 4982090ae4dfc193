package llm

import "fmt"

// maxCompletionTokens caps the generated description length on the model side.
// The normalizer enforces the final 120-character limit.
const maxCompletionTokens = 150

// NewAltTextRequest builds the chat completion payload asking the model to
// describe one image for alt text purposes, in the given language.
// Pure function; malformed URLs are rejected by the caller before this stage.
func NewAltTextRequest(model, imageURL, languageCode string) ChatRequest {
	prompt := fmt.Sprintf(
		"You are writing alt text in %s. Produce a single concise sentence (max 120 characters) "+
			"that accurately and accessibly describes the image for someone who cannot see it. "+
			"Do not prefix with \"Image of\" or similar.",
		languageCode,
	)

	return ChatRequest{
		Model: model,
		Messages: []Message{
			{
				Role: "system",
				Content: []ContentPart{
					{Type: "text", Text: prompt},
				},
			},
			{
				Role: "user",
				Content: []ContentPart{
					{Type: "text", Text: "Describe the contents of this image for alt text purposes."},
					{Type: "image_url", ImageURL: &ImageRef{URL: imageURL}},
				},
			},
		},
		MaxTokens: maxCompletionTokens,
	}
}
