// File: mcp/acl.go
// Package mcp
// Author: momentics <momentics@gmail.com>
//
// Tool access control: a simple allow/deny map over tool names with a
// configurable default.

package mcp

import "sync"

// AccessList decides whether a tool may be called.
type AccessList struct {
	mu           sync.RWMutex
	defaultAllow bool
	rules        map[string]bool
}

// NewAccessList creates a list with the given default disposition.
func NewAccessList(defaultAllow bool) *AccessList {
	return &AccessList{
		defaultAllow: defaultAllow,
		rules:        make(map[string]bool),
	}
}

// Allow whitelists a tool name.
func (a *AccessList) Allow(name string) {
	a.mu.Lock()
	a.rules[name] = true
	a.mu.Unlock()
}

// Deny blacklists a tool name.
func (a *AccessList) Deny(name string) {
	a.mu.Lock()
	a.rules[name] = false
	a.mu.Unlock()
}

// Allowed reports the disposition for name.
func (a *AccessList) Allowed(name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if v, ok := a.rules[name]; ok {
		return v
	}
	return a.defaultAllow
}
