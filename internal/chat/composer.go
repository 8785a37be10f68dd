package chat

import "sync"

// Composer holds the unsent draft. A draft is only cleared after the server
// accepted it.
type Composer struct {
	mu   sync.Mutex
	text string
}

func (c *Composer) Set(text string) {
	c.mu.Lock()
	c.text = text
	c.mu.Unlock()
}

func (c *Composer) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// clearIf empties the draft unless it was edited after sent was taken.
func (c *Composer) clearIf(sent string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.text == sent {
		c.text = ""
	}
}
