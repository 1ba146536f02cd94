//
// Tencent is pleased to support the open source community by making trpc-operator-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-operator-go is licensed under the Apache License Version 2.0.
//
//

// Package delegate provides the delegated-operation queue that the
// execution coordinator hands operators off to when they resolve to
// out-of-process execution. The queue records operation state; running
// the queued work is the orchestrator's concern, not this package's.
package delegate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Queue errors.
var (
	// ErrNotFound is returned when an operation ID is unknown.
	ErrNotFound = errors.New("delegated operation not found")

	// ErrInvalidTransition is returned when a run-state change is not
	// allowed from the operation's current state.
	ErrInvalidTransition = errors.New("invalid run state transition")
)

// RunState is the lifecycle state of a delegated operation.
type RunState string

// Available run states.
const (
	StateQueued    RunState = "queued"
	StateRunning   RunState = "running"
	StateCompleted RunState = "completed"
	StateFailed    RunState = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Operation is a snapshot of one queued operator invocation.
type Operation struct {
	// ID uniquely identifies the queued operation.
	ID string `json:"id"`

	// OperatorURI names the operator to run.
	OperatorURI string `json:"operator"`

	// Context is the serialized execution context captured at queue
	// time, replayed by the orchestrator when the operation runs.
	Context map[string]any `json:"context"`

	// DelegationTarget selects which orchestrator should pick the
	// operation up.
	DelegationTarget string `json:"delegation_target,omitempty"`

	// RunState is the current lifecycle state.
	RunState RunState `json:"run_state"`

	QueuedAt    time.Time  `json:"queued_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Result holds the operation output once completed.
	Result any `json:"result,omitempty"`

	// Error holds the failure message once failed.
	Error string `json:"error,omitempty"`
}

// Snapshot returns the operation as a plain JSON-shaped map, with the
// embedded context re-serialized for transport. This is what execution
// results embed for delegated outcomes.
func (o *Operation) Snapshot() (map[string]any, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("serialize delegated operation %s: %w", o.ID, err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Service is the delegated-operation queue consumed by the execution
// coordinator. Implementations must be safe for concurrent use.
type Service interface {
	// Queue records a new operation in the queued state.
	Queue(ctx context.Context, operatorURI string, execContext map[string]any,
		delegationTarget string) (*Operation, error)

	// Get returns the operation with the given ID.
	Get(ctx context.Context, id string) (*Operation, error)

	// SetRunning transitions a queued operation to running.
	SetRunning(ctx context.Context, id string) (*Operation, error)

	// SetCompleted transitions a running operation to completed with
	// the given result.
	SetCompleted(ctx context.Context, id string, result any) (*Operation, error)

	// SetFailed transitions a queued or running operation to failed
	// with the given error message.
	SetFailed(ctx context.Context, id string, message string) (*Operation, error)

	// List returns operations in the given state, oldest first. The
	// empty state lists everything.
	List(ctx context.Context, state RunState) ([]*Operation, error)

	// Delete removes a terminal operation.
	Delete(ctx context.Context, id string) error
}

// InMemory is a process-local Service used for tests and embedded
// deployments. State lives only as long as the process.
type InMemory struct {
	mu    sync.RWMutex
	ops   map[string]*Operation
	order []string
}

// NewInMemory creates an empty in-memory queue.
func NewInMemory() *InMemory {
	return &InMemory{ops: make(map[string]*Operation)}
}

// Queue implements Service.
func (m *InMemory) Queue(_ context.Context, operatorURI string, execContext map[string]any,
	delegationTarget string) (*Operation, error) {
	if operatorURI == "" {
		return nil, errors.New("operator URI is required")
	}
	op := &Operation{
		ID:               uuid.New().String(),
		OperatorURI:      operatorURI,
		Context:          execContext,
		DelegationTarget: delegationTarget,
		RunState:         StateQueued,
		QueuedAt:         time.Now().UTC(),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops[op.ID] = op
	m.order = append(m.order, op.ID)
	return clone(op), nil
}

// Get implements Service.
func (m *InMemory) Get(_ context.Context, id string) (*Operation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	op, ok := m.ops[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return clone(op), nil
}

// SetRunning implements Service.
func (m *InMemory) SetRunning(_ context.Context, id string) (*Operation, error) {
	return m.transition(id, StateQueued, func(op *Operation) {
		now := time.Now().UTC()
		op.RunState = StateRunning
		op.StartedAt = &now
	})
}

// SetCompleted implements Service.
func (m *InMemory) SetCompleted(_ context.Context, id string, result any) (*Operation, error) {
	return m.transition(id, StateRunning, func(op *Operation) {
		now := time.Now().UTC()
		op.RunState = StateCompleted
		op.CompletedAt = &now
		op.Result = result
	})
}

// SetFailed implements Service. Failure is reachable from both the
// queued and running states.
func (m *InMemory) SetFailed(_ context.Context, id string, message string) (*Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if op.RunState.Terminal() {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, op.RunState, StateFailed)
	}
	now := time.Now().UTC()
	op.RunState = StateFailed
	op.CompletedAt = &now
	op.Error = message
	return clone(op), nil
}

// List implements Service.
func (m *InMemory) List(_ context.Context, state RunState) ([]*Operation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Operation
	for _, id := range m.order {
		op := m.ops[id]
		if op == nil {
			continue
		}
		if state == "" || op.RunState == state {
			out = append(out, clone(op))
		}
	}
	return out, nil
}

// Delete implements Service. Only terminal operations may be removed.
func (m *InMemory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !op.RunState.Terminal() {
		return fmt.Errorf("%w: cannot delete %s operation", ErrInvalidTransition, op.RunState)
	}
	delete(m.ops, id)
	return nil
}

func (m *InMemory) transition(id string, from RunState, apply func(*Operation)) (*Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if op.RunState != from {
		return nil, fmt.Errorf("%w: %s is not %s", ErrInvalidTransition, op.RunState, from)
	}
	apply(op)
	return clone(op), nil
}

func clone(op *Operation) *Operation {
	dup := *op
	return &dup
}
