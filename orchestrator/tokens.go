package orchestrator

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodings   = make(map[string]*tiktoken.Tiktoken)
	encodingsMu sync.Mutex
)

// countTokens estimates the token count of text for the given model. The
// encoding lookup is cached; when no encoding is known for the model the
// cl100k_base encoding is used, and as a last resort a bytes/4 estimate.
func countTokens(model, text string) int {
	encodingsMu.Lock()
	enc, ok := encodings[model]
	if !ok {
		var err error
		enc, err = tiktoken.EncodingForModel(model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
		}
		if err != nil {
			enc = nil
		}
		encodings[model] = enc
	}
	encodingsMu.Unlock()

	if enc == nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
