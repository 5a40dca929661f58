package authclient

import (
	"net/url"
	"sync"
)

// Navigator is the host application's router.
type Navigator interface {
	Navigate(path string, query url.Values)
	CurrentPath() string
}

// Visit is one entry recorded by History.
type Visit struct {
	Path  string
	Query url.Values
}

// History is an in-memory Navigator. It is the default when no Navigator is
// configured and is useful in tests and terminal hosts.
type History struct {
	mu      sync.Mutex
	entries []Visit
}

// NewHistory returns a History positioned at start.
func NewHistory(start string) *History {
	h := &History{}
	if start != "" {
		h.entries = append(h.entries, Visit{Path: start})
	}
	return h
}

func (h *History) Navigate(path string, query url.Values) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, Visit{Path: path, Query: query})
}

func (h *History) CurrentPath() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return "/"
	}
	return h.entries[len(h.entries)-1].Path
}

// Last returns the most recent visit.
func (h *History) Last() (Visit, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return Visit{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// Entries returns a copy of all visits in order.
func (h *History) Entries() []Visit {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Visit, len(h.entries))
	copy(out, h.entries)
	return out
}
