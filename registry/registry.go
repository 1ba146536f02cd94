//
// Tencent is pleased to support the open source community by making trpc-operator-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-operator-go is licensed under the Apache License Version 2.0.
//
//

// Package registry provides the built-in operator registry.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"trpc.group/trpc-go/trpc-operator-go/operator"
)

// Registry errors.
var (
	// ErrNotFound is returned when no operator is registered under a URI.
	ErrNotFound = errors.New("operator does not exist")

	// ErrAlreadyRegistered is returned when a URI is registered twice.
	ErrAlreadyRegistered = errors.New("operator already registered")
)

// InMemory is a process-local operator registry safe for concurrent
// lookup. It implements operator.Registry.
type InMemory struct {
	mu        sync.RWMutex
	operators map[string]operator.Operator
}

// NewInMemory creates an empty registry.
func NewInMemory() *InMemory {
	return &InMemory{operators: make(map[string]operator.Operator)}
}

// Register adds an operator under its URI. URIs are globally unique
// within a registry; registering a duplicate fails.
func (r *InMemory) Register(op operator.Operator) error {
	if op == nil || op.URI() == "" {
		return errors.New("operator with a non-empty URI is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.operators[op.URI()]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, op.URI())
	}
	r.operators[op.URI()] = op
	return nil
}

// Deregister removes the operator registered under uri, if any.
func (r *InMemory) Deregister(uri string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.operators, uri)
}

// Exists implements operator.Registry.
func (r *InMemory) Exists(uri string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.operators[uri]
	return ok
}

// Get implements operator.Registry.
func (r *InMemory) Get(uri string) (operator.Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.operators[uri]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, uri)
	}
	return op, nil
}

// List implements operator.Registry.
func (r *InMemory) List() []operator.Operator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]operator.Operator, 0, len(r.operators))
	for _, op := range r.operators {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI() < out[j].URI() })
	return out
}
