package browser

import (
	"net/url"
	"strings"
	"sync"
)

// ScriptCapture records the script URLs a page requests, once each.
type ScriptCapture struct {
	mu      sync.Mutex
	seen    map[string]bool
	scripts []string
}

// NewScriptCapture creates an empty capture.
func NewScriptCapture() *ScriptCapture {
	return &ScriptCapture{
		seen:    make(map[string]bool),
		scripts: make([]string, 0),
	}
}

// Record records a requested script. Inline and non-HTTP sources are ignored.
func (c *ScriptCapture) Record(raw string) bool {
	if !isFetchableScript(raw) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seen[raw] {
		return false
	}
	c.seen[raw] = true
	c.scripts = append(c.scripts, raw)
	return true
}

// Scripts returns the recorded URLs in request order.
func (c *ScriptCapture) Scripts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := make([]string, len(c.scripts))
	copy(result, c.scripts)
	return result
}

// Len returns the number of recorded scripts.
func (c *ScriptCapture) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.scripts)
}

// ByHost groups the recorded scripts by host.
func (c *ScriptCapture) ByHost() map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	groups := make(map[string][]string)
	for _, s := range c.scripts {
		u, err := url.Parse(s)
		if err != nil {
			continue
		}
		groups[u.Host] = append(groups[u.Host], s)
	}
	return groups
}

func isFetchableScript(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.Host != ""
	}
	return false
}
