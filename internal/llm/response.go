package llm

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ExtractDescription pulls the generated description out of a raw response
// body. Returns *EmptyBodyError for a blank body and *MalformedResponseError
// when the body is not parseable or missing choices[0].message.content.
func ExtractDescription(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", &EmptyBodyError{}
	}

	var response ChatResponse
	if err := json.Unmarshal(trimmed, &response); err != nil {
		return "", &MalformedResponseError{Reason: "body is not valid JSON"}
	}

	if len(response.Choices) == 0 {
		return "", &MalformedResponseError{Reason: "missing choices"}
	}
	content := response.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", &MalformedResponseError{Reason: "missing choices[0].message.content"}
	}
	return content, nil
}
