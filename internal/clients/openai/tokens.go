package openai

import (
	"github.com/pkoukk/tiktoken-go"
)

const fallbackEncoding = "cl100k_base"

// NumTokensFromMessages counts the prompt tokens a chat transcript consumes,
// including the per-message framing and reply priming overhead.
func NumTokensFromMessages(messages []Message, model string) (int, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return 0, err
		}
	}

	tokens := 0
	for _, m := range messages {
		tokens += 3
		tokens += len(enc.Encode(m.Role, nil, nil))
		tokens += len(enc.Encode(m.Content, nil, nil))
	}
	tokens += 3
	return tokens, nil
}
