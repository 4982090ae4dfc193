package llm

import "fmt"

// TransportError reports that no HTTP response was obtained at all
// (connection refused, DNS failure, timeout). Never retried.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request failed before a response was received: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPStatusError reports a terminal non-2xx status: either a status that is
// never retried, or a retryable status after the attempt budget ran out.
//
// Code: Last observed HTTP status code
// Attempts: Number of attempts performed before giving up
type HTTPStatusError struct {
	Code     int
	Attempts int
}

func (e *HTTPStatusError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("API returned HTTP %d after %d attempts", e.Code, e.Attempts)
	}
	return fmt.Sprintf("API returned HTTP %d", e.Code)
}

// EmptyBodyError reports a successful status with no body to parse.
type EmptyBodyError struct{}

func (*EmptyBodyError) Error() string {
	return "empty response from API"
}

// MalformedResponseError reports a body that is not parseable or is missing
// the expected choices[0].message.content field.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return "unexpected response format from API: " + e.Reason
}
