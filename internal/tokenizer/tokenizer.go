// Package tokenizer counts tokens with the model's own BPE encoding,
// falling back to a default encoding for models without a registered one.
package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

const fallbackEncoding = "cl100k_base"

// Tokenizer caches one encoder per encoding name. Encoders are expensive to
// construct and safe for concurrent use.
type Tokenizer struct {
	log *zap.Logger

	mu       sync.Mutex
	encoders map[string]*tiktoken.Tiktoken
}

func New(log *zap.Logger) *Tokenizer {
	return &Tokenizer{
		log:      log,
		encoders: make(map[string]*tiktoken.Tiktoken),
	}
}

// Count returns the token count of text under the model's encoding. Unknown
// models use the fallback encoding; if even that cannot be loaded, Count
// returns 0 so callers leave usage unset rather than record a wrong number.
func (t *Tokenizer) Count(model, text string) int {
	if text == "" {
		return 0
	}
	enc := t.encoderFor(model)
	if enc == nil {
		return 0
	}
	return len(enc.Encode(text, nil, nil))
}

func (t *Tokenizer) encoderFor(model string) *tiktoken.Tiktoken {
	t.mu.Lock()
	defer t.mu.Unlock()

	if enc, ok := t.encoders[model]; ok {
		return enc
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		t.log.Debug("No encoding registered for model, using fallback",
			zap.String("model", model),
			zap.String("fallback", fallbackEncoding))
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			t.log.Warn("Failed to load fallback encoding", zap.Error(err))
			enc = nil
		}
	}
	t.encoders[model] = enc
	return enc
}
