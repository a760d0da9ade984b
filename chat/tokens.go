package chat

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates token counts for texts the upstream did not
// report usage for. Estimates feed the session's cumulative counter,
// which is an accumulator, not a billing invariant.
type TokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

// Estimate returns the approximate token count of text. When the
// cl100k_base encoding cannot be loaded it falls back to a bytes/4
// heuristic rather than failing.
func (c *TokenCounter) Estimate(text string) int {
	c.once.Do(func() {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			c.enc = enc
		}
	})
	if c.enc == nil {
		return (len(text) + 3) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}
