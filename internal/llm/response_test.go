package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDescription(t *testing.T) {
	body := []byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"A dog in the park."},"finish_reason":"stop"}]}`)

	text, err := ExtractDescription(body)
	require.NoError(t, err)
	assert.Equal(t, "A dog in the park.", text)
}

func TestExtractDescriptionEmptyBody(t *testing.T) {
	for _, body := range [][]byte{nil, {}, []byte("   \n\t ")} {
		_, err := ExtractDescription(body)
		var emptyErr *EmptyBodyError
		assert.ErrorAs(t, err, &emptyErr)
	}
}

func TestExtractDescriptionMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "<html>502 Bad Gateway</html>"},
		{name: "no choices", body: `{"id":"x","choices":[]}`},
		{name: "blank content", body: `{"choices":[{"message":{"role":"assistant","content":"  "}}]}`},
		{name: "missing message", body: `{"choices":[{"index":0}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractDescription([]byte(tt.body))
			var malformedErr *MalformedResponseError
			assert.ErrorAs(t, err, &malformedErr)
		})
	}
}
