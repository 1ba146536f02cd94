//
// Tencent is pleased to support the open source community by making trpc-operator-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-operator-go is licensed under the Apache License Version 2.0.
//
//

// Package operator implements the operator execution runtime: the
// per-invocation execution context, the trigger executor, the
// execute-or-delegate coordinator and the uniform result envelope.
package operator

import (
	"context"

	"trpc.group/trpc-go/trpc-operator-go/schema"
)

// Operator is a registered, named unit of executable logic with a
// declared input schema. Implementations may additionally satisfy the
// capability interfaces below.
type Operator interface {
	// URI returns the globally unique identifier of the operator
	// within its registry.
	URI() string

	// Config returns the operator's execution configuration. A nil
	// config means all defaults.
	Config() *Config

	// ResolveInput returns the schema the operator's parameters are
	// validated against. A nil schema disables validation entirely.
	ResolveInput(ctx context.Context, ectx *ExecutionContext) (*schema.Property, error)

	// Execute runs the operator. The returned value may be a
	// *StreamReader for lazily produced partial results; the ctx is
	// cancelled when the invocation times out.
	Execute(ctx context.Context, ectx *ExecutionContext) (any, error)
}

// Config carries per-operator execution settings.
type Config struct {
	// DisableSchemaValidation suppresses structural validation errors
	// for this operator; errors raised by the operator's own schema
	// declarations are still enforced.
	DisableSchemaValidation bool
}

// DelegationResolver is implemented by operators that may defer their
// execution to an external orchestrator.
type DelegationResolver interface {
	// ResolveDelegation reports whether this invocation should be
	// queued instead of run inline. It must be synchronous.
	ResolveDelegation(ectx *ExecutionContext) bool

	// DelegationTarget selects the orchestrator that should pick the
	// queued operation up.
	DelegationTarget() string
}

// TypeResolver is implemented by operators that expose schema trees
// beyond their inputs, e.g. an output schema for result rendering.
type TypeResolver interface {
	ResolveType(ctx context.Context, ectx *ExecutionContext, target string) (*schema.Property, error)
}

// PlacementResolver is implemented by operators that declare where the
// invoking application should surface them.
type PlacementResolver interface {
	ResolvePlacement(ctx context.Context, ectx *ExecutionContext) (*Placement, error)
}

// SecretKeyProvider is implemented by operators that depend on
// secrets. All declared keys are resolved before input resolution so
// that ExecutionContext.Secret is populated during execution.
type SecretKeyProvider interface {
	SecretKeys() []string
}

// Placement describes where an operator should be surfaced in the
// invoking application.
type Placement struct {
	Place string `json:"place"`
	Label string `json:"label,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

// Registry is the operator lookup collaborator consumed by the
// coordinator. See the registry package for the built-in
// implementation.
type Registry interface {
	// Exists reports whether an operator is registered under uri.
	Exists(uri string) bool

	// Get returns the operator registered under uri.
	Get(uri string) (Operator, error)

	// List returns all registered operators ordered by URI.
	List() []Operator
}
