// Package registry holds the two tables a bus interprets effects against:
// command name to a single function, and event name to its subscribers.
//
// Both tables are split into shards selected by hashing the name, each
// guarded by its own lock, so unrelated names never contend.
package registry

import (
	"slices"
	"sync"
)

// Commands maps a command name to at most one function.
type Commands[F any] struct {
	shards []*commandShard[F]
}

type commandShard[F any] struct {
	mu  sync.RWMutex
	fns map[string]F
}

func NewCommands[F any](numShards int) *Commands[F] {
	numShards = normalizeShards(numShards)
	shards := make([]*commandShard[F], numShards)
	for i := range shards {
		shards[i] = &commandShard[F]{fns: make(map[string]F)}
	}
	return &Commands[F]{shards: shards}
}

func (c *Commands[F]) shardOf(name string) *commandShard[F] {
	return c.shards[indexByHash(name, len(c.shards))]
}

// Register inserts fn under name unless the name is taken. The check and the
// insert happen under one lock, so concurrent registrations of one name have
// exactly one winner.
func (c *Commands[F]) Register(name string, fn F) bool {
	s := c.shardOf(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.fns[name]; taken {
		return false
	}
	s.fns[name] = fn
	return true
}

// Replace installs fn under name whether or not it is taken.
func (c *Commands[F]) Replace(name string, fn F) {
	s := c.shardOf(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fns[name] = fn
}

func (c *Commands[F]) Lookup(name string) (F, bool) {
	s := c.shardOf(name)
	s.mu.RLock()
	defer s.mu.RUnlock()

	fn, ok := s.fns[name]
	return fn, ok
}

func (c *Commands[F]) Remove(name string) bool {
	s := c.shardOf(name)
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.fns[name]
	delete(s.fns, name)
	return ok
}

// Clear removes every command except those named in keep, which stay registered throughout.
func (c *Commands[F]) Clear(keep ...string) {
	for _, s := range c.shards {
		s.mu.Lock()
		for name := range s.fns {
			if !slices.Contains(keep, name) {
				delete(s.fns, name)
			}
		}
		s.mu.Unlock()
	}
}

// Names lists every registered command, sorted.
func (c *Commands[F]) Names() []string {
	var names []string
	for _, s := range c.shards {
		s.mu.RLock()
		for name := range s.fns {
			names = append(names, name)
		}
		s.mu.RUnlock()
	}
	slices.Sort(names)
	return names
}
