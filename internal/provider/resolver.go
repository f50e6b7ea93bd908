package provider

import (
	"fmt"
	"log/slog"
	"sync"
)

// Selection is the runtime-switchable current provider. Safe for concurrent use.
type Selection struct {
	mu      sync.RWMutex
	current Name
}

// NewSelection creates a Selection starting at initial.
func NewSelection(initial Name) *Selection {
	return &Selection{current: initial}
}

// Current returns the active provider.
func (s *Selection) Current() Name {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set switches the active provider and returns the previous one.
func (s *Selection) Set(n Name) Name {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.current
	s.current = n
	return prev
}

// Resolver maps provider tags to registered clients.
type Resolver struct {
	clients   map[Name]Client
	fallback  Name
	selection *Selection
}

// NewResolver registers clients by their Name. The fallback must be one of them.
func NewResolver(selection *Selection, fallback Name, clients ...Client) (*Resolver, error) {
	r := &Resolver{
		clients:   make(map[Name]Client, len(clients)),
		fallback:  fallback,
		selection: selection,
	}
	for _, c := range clients {
		r.clients[c.Name()] = c
	}
	if _, ok := r.clients[fallback]; !ok {
		return nil, fmt.Errorf("fallback provider %q is not registered", fallback)
	}
	return r, nil
}

// Resolve returns the client for tag. An empty tag means the current selection,
// read at call time. Unrecognized tags resolve to the fallback.
func (r *Resolver) Resolve(tag string) Client {
	if tag == "" {
		tag = string(r.selection.Current())
	}
	name, err := ParseName(tag)
	if err == nil {
		if c, ok := r.clients[name]; ok {
			return c
		}
	}
	slog.Warn("unknown provider, using fallback",
		"component", "provider",
		"requested", tag,
		"fallback", r.fallback,
	)
	return r.clients[r.fallback]
}

// Selection exposes the switchable current-provider cell.
func (r *Resolver) Selection() *Selection {
	return r.selection
}
