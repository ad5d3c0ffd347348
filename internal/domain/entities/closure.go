package entities

import (
	"path/filepath"
	"sort"
)

// ClosureSet is the deduplicated set of resolved dependency paths.
//
// Members are keyed by file identity. Two paths that name the same file
// through different directory aliases are one member, and the member keeps
// the first path under which it was added. Members are never removed.
type ClosureSet struct {
	members map[string]string
}

// NewClosureSet creates a closure set holding the given paths, keyed by their cleaned form
func NewClosureSet(paths ...string) *ClosureSet {
	c := &ClosureSet{members: make(map[string]string, len(paths))}
	for _, p := range paths {
		c.Add(p)
	}
	return c
}

// Add inserts a path keyed by its cleaned form and reports whether it was not already present
func (c *ClosureSet) Add(path string) bool {
	return c.AddAs(filepath.Clean(path), path)
}

// AddAs inserts path under identity and reports whether the identity was not already present.
// A path added under a known identity is dropped.
func (c *ClosureSet) AddAs(identity, path string) bool {
	if _, ok := c.members[identity]; ok {
		return false
	}
	c.members[identity] = filepath.Clean(path)
	return true
}

// Contains reports whether identity is a member
func (c *ClosureSet) Contains(identity string) bool {
	_, ok := c.members[identity]
	return ok
}

// Len returns the number of members
func (c *ClosureSet) Len() int {
	return len(c.members)
}

// Paths returns the recorded path of every member in lexical order
func (c *ClosureSet) Paths() []string {
	paths := make([]string, 0, len(c.members))
	for _, p := range c.members {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
