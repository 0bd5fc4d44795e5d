package testutil

import (
	"context"
	"sync"
)

// FakeCompleter returns canned completions and records prompts.
//
// Replies are consumed in order; once exhausted the last reply repeats.
// Thread-safety: all methods are safe for concurrent use.
type FakeCompleter struct {
	mu      sync.Mutex
	replies []string
	err     error
	prompts []string
}

// NewFakeCompleter creates a completer answering with replies.
func NewFakeCompleter(replies ...string) *FakeCompleter {
	return &FakeCompleter{replies: replies}
}

// FailWith makes every call return err.
func (c *FakeCompleter) FailWith(err error) *FakeCompleter {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
	return c
}

// Complete implements llm.Completer.
func (c *FakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return "", c.err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(c.replies) == 0 {
		return "", nil
	}
	reply := c.replies[0]
	if len(c.replies) > 1 {
		c.replies = c.replies[1:]
	}
	return reply, nil
}

// Prompts returns every prompt received.
func (c *FakeCompleter) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.prompts))
	copy(out, c.prompts)
	return out
}
