// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package metrics

import (
	"context"
	"sync"
)

// Scope is a collection of metric instances. Each shard of an epoch
// accounts into its own scope; scopes are merged once the epoch
// completes. The zero Scope is empty and ready to use. A Scope must
// not be copied after first use.
type Scope struct {
	mu sync.RWMutex
	// instances is indexed by metric ID.
	instances []interface{}
}

// Merge merges instances from Scope u into Scope s.
func (s *Scope) Merge(u *Scope) {
	for id, inst := range u.snapshot() {
		if inst == nil {
			continue
		}
		m := metricByID(id)
		m.merge(s.instance(m), inst)
	}
}

// Merged returns a new scope containing the merged instances of the
// provided scopes.
func Merged(scopes ...*Scope) *Scope {
	merged := new(Scope)
	for _, s := range scopes {
		merged.Merge(s)
	}
	return merged
}

// Reset resets the scope s to a copy of u, or to its empty state if
// u is nil.
func (s *Scope) Reset(u *Scope) {
	s.mu.Lock()
	s.instances = nil
	s.mu.Unlock()
	if u != nil {
		s.Merge(u)
	}
}

// instance returns the instance of metric m in scope s, creating it
// if none exists yet.
func (s *Scope) instance(m Metric) interface{} {
	id := m.metricID()
	s.mu.RLock()
	if id < len(s.instances) && s.instances[id] != nil {
		inst := s.instances[id]
		s.mu.RUnlock()
		return inst
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.instances) <= id {
		s.instances = append(s.instances, nil)
	}
	if s.instances[id] == nil {
		inst := m.newInstance()
		if inst == nil {
			panic("metrics: metric returned nil instance")
		}
		s.instances[id] = inst
	}
	return s.instances[id]
}

// snapshot returns the scope's current instances. The instances
// themselves are shared.
func (s *Scope) snapshot() []interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]interface{}(nil), s.instances...)
}

type contextKeyType struct{}

var contextKey contextKeyType

// ScopedContext returns a context with the provided scope attached.
// The scope may be retrieved by ContextScope.
func ScopedContext(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, contextKey, scope)
}

// ContextScope returns the scope attached to the provided context.
// ContextScope panics if the context does not have an attached scope.
func ContextScope(ctx context.Context) *Scope {
	s := ctx.Value(contextKey)
	if s == nil {
		panic("metrics: context does not provide metrics")
	}
	return s.(*Scope)
}
