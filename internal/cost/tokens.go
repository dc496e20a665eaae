package cost

import (
	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

// fallbackEncoding covers models tiktoken does not know about
const fallbackEncoding = "cl100k_base"

// CountTokens estimates the token count of text for a model. It prefers the
// model's own encoding, falls back to cl100k_base, and as a last resort
// approximates four characters per token so cost estimation never fails a
// dispatch.
func CountTokens(model, text string) int {
	if text == "" {
		return 0
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		log.Debug().
			Err(err).
			Str("model", model).
			Msg("Token encoding unavailable, approximating")
		return len(text) / 4
	}

	return len(enc.Encode(text, nil, nil))
}
