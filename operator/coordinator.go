//
// Tencent is pleased to support the open source community by making trpc-operator-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-operator-go is licensed under the Apache License Version 2.0.
//
//

package operator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"

	"trpc.group/trpc-go/trpc-operator-go/dataset"
	"trpc.group/trpc-go/trpc-operator-go/delegate"
	"trpc.group/trpc-go/trpc-operator-go/log"
	"trpc.group/trpc-go/trpc-operator-go/schema"
	"trpc.group/trpc-go/trpc-operator-go/secrets"
	"trpc.group/trpc-go/trpc-operator-go/telemetry/trace"
	"trpc.group/trpc-go/trpc-operator-go/validation"
)

// DefaultTimeout bounds how long the running state of one invocation
// may take when no explicit timeout is configured.
const DefaultTimeout = 600 * time.Second

// defaultWorkerPoolSize bounds the goroutines reused to bridge
// operator bodies; it does not bound concurrent invocations.
const defaultWorkerPoolSize = 64

// resolve-type target selecting the operator's input schema.
const targetInputs = "inputs"

// Coordinator drives invocations through the execute-or-delegate state
// machine: resolve the operator, validate its inputs, decide between
// queueing and inline execution, run under a timeout and wrap the
// outcome into a result envelope. A Coordinator is safe for concurrent
// use; every invocation gets exclusive context, executor and
// validation state.
type Coordinator struct {
	registry        Registry
	secretResolver  secrets.Resolver
	datasetResolver dataset.Resolver
	delegation      delegate.Service
	timeout         time.Duration
	pool            *ants.Pool
}

// Option configures a Coordinator.
type Option func(*coordinatorOptions)

type coordinatorOptions struct {
	secretResolver  secrets.Resolver
	datasetResolver dataset.Resolver
	delegation      delegate.Service
	timeout         time.Duration
	poolSize        int
}

// WithTimeout bounds how long the running state of one invocation may
// take, measured from execution start, not from resolution.
func WithTimeout(d time.Duration) Option {
	return func(o *coordinatorOptions) { o.timeout = d }
}

// WithSecretResolver injects the secret-resolution collaborator passed
// to every execution context.
func WithSecretResolver(r secrets.Resolver) Option {
	return func(o *coordinatorOptions) { o.secretResolver = r }
}

// WithDatasetResolver injects the dataset/view collaborator passed to
// every execution context.
func WithDatasetResolver(r dataset.Resolver) Option {
	return func(o *coordinatorOptions) { o.datasetResolver = r }
}

// WithDelegationService injects the delegated-operation queue. If
// omitted, an in-memory queue is used.
func WithDelegationService(s delegate.Service) Option {
	return func(o *coordinatorOptions) { o.delegation = s }
}

// WithWorkerPoolSize sets the size of the pool that bridges operator
// bodies onto worker goroutines.
func WithWorkerPoolSize(n int) Option {
	return func(o *coordinatorOptions) { o.poolSize = n }
}

// New creates a Coordinator over the given operator registry.
func New(reg Registry, opts ...Option) (*Coordinator, error) {
	if reg == nil {
		return nil, errors.New("operator registry is required")
	}
	options := coordinatorOptions{
		timeout:  DefaultTimeout,
		poolSize: defaultWorkerPoolSize,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.delegation == nil {
		options.delegation = delegate.NewInMemory()
	}
	pool, err := ants.NewPool(options.poolSize)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Coordinator{
		registry:        reg,
		secretResolver:  options.secretResolver,
		datasetResolver: options.datasetResolver,
		delegation:      options.delegation,
		timeout:         options.timeout,
		pool:            pool,
	}, nil
}

// Close releases the coordinator's worker pool.
func (c *Coordinator) Close() {
	c.pool.Release()
}

// Execute is the top-level call surface: it assembles request
// parameters from the caller's context parameters, drives the
// coordinator to completion and returns the result envelope. When the
// outcome is a failure the captured error is returned alongside it.
func (c *Coordinator) Execute(ctx context.Context, uri string, ctxParams ContextParams,
	params map[string]any) (*ExecutionResult, error) {
	rp := &RequestParams{
		OperatorURI:    uri,
		DatasetName:    ctxParams.Dataset,
		View:           ctxParams.View,
		Selected:       ctxParams.Selected,
		SelectedLabels: ctxParams.SelectedLabels,
		Params:         params,
	}
	res := c.ExecuteOrDelegate(ctx, uri, rp)
	if err := res.ToError(); err != nil {
		return res, err
	}
	return res, nil
}

// ExecuteOrDelegate runs one invocation through the full state
// machine and always returns a result envelope; no failure escapes as
// a panic or unwrapped error.
func (c *Coordinator) ExecuteOrDelegate(ctx context.Context, uri string,
	rp *RequestParams) (res *ExecutionResult) {
	invocationID := "invocation-" + uuid.New().String()
	ctx, span := trace.Tracer.Start(ctx, "operator.execute_or_delegate")
	defer span.End()
	span.SetAttributes(
		attribute.String("operator.uri", uri),
		attribute.String("operator.invocation_id", invocationID),
	)

	defer func() {
		if rec := recover(); rec != nil {
			res = &ExecutionResult{Error: panicTrace(rec)}
		}
		if res.Error != "" {
			log.Errorf("operator %s (%s) failed: %s", uri, invocationID, res.Error)
		}
	}()

	op, ectx, failure := c.prepare(ctx, uri, rp)
	if failure != nil {
		return failure
	}
	executor := ectx.Executor()

	if dr, ok := op.(DelegationResolver); ok && dr.ResolveDelegation(ectx) {
		queued, err := c.delegation.Queue(ctx, uri, ectx.Serialize(), dr.DelegationTarget())
		if err != nil {
			return &ExecutionResult{Executor: executor, Error: errorTrace(err)}
		}
		snapshot, err := queued.Snapshot()
		if err != nil {
			return &ExecutionResult{Executor: executor, Error: errorTrace(err)}
		}
		log.Infof("operator %s (%s) delegated as %s", uri, invocationID, queued.ID)
		return &ExecutionResult{Result: snapshot, Executor: executor, Delegated: true}
	}

	value, err := c.run(ctx, op, ectx)
	if err != nil {
		return &ExecutionResult{Executor: executor, Error: errorTrace(err)}
	}
	return &ExecutionResult{Result: value, Executor: executor}
}

// prepare covers the resolving and validating states. A non-nil third
// return value is the failure envelope to surface.
func (c *Coordinator) prepare(ctx context.Context, uri string,
	rp *RequestParams) (Operator, *ExecutionContext, *ExecutionResult) {
	if !c.registry.Exists(uri) {
		return nil, nil, &ExecutionResult{Error: fmt.Sprintf("operator %q does not exist", uri)}
	}
	op, err := c.registry.Get(uri)
	if err != nil {
		return nil, nil, &ExecutionResult{Error: errorTrace(err)}
	}

	executor := NewExecutor()
	ectx := c.newContext(rp, WithExecutor(executor))

	var keys []string
	if sp, ok := op.(SecretKeyProvider); ok {
		keys = sp.SecretKeys()
	}
	if err := ectx.ResolveSecretValues(ctx, keys); err != nil {
		return nil, nil, &ExecutionResult{Executor: executor, Error: errorTrace(err)}
	}

	inputs, err := op.ResolveInput(ctx, ectx)
	if err != nil {
		return nil, nil, &ExecutionResult{Executor: executor, Error: errorTrace(err)}
	}
	cfg := op.Config()
	vctx := validation.Validate(inputs, ectx.Params(),
		validation.WithSchemaValidationDisabled(cfg != nil && cfg.DisableSchemaValidation))
	if vctx.Invalid() {
		return nil, nil, &ExecutionResult{Error: "Validation error", ValidationContext: vctx}
	}
	return op, ectx, nil
}

type runOutcome struct {
	value any
	err   error
}

// run covers the running state: the operator body is bridged onto a
// pooled worker and awaited against the configured timeout, which is
// measured from here, not from resolution. A timed-out body is
// abandoned; it observes cancellation through its context and is
// responsible for rolling back its own partial effects.
func (c *Coordinator) run(ctx context.Context, op Operator, ectx *ExecutionContext) (any, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	outcome := make(chan runOutcome, 1)
	err := c.pool.Submit(func() {
		defer func() {
			if rec := recover(); rec != nil {
				outcome <- runOutcome{err: errors.New(panicTrace(rec))}
			}
		}()
		value, err := op.Execute(runCtx, ectx)
		outcome <- runOutcome{value: value, err: err}
	})
	if err != nil {
		return nil, fmt.Errorf("submit operator execution: %w", err)
	}

	select {
	case out := <-outcome:
		return out.value, out.err
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("operator execution timed out after %s: %w", c.timeout, runCtx.Err())
		}
		return nil, runCtx.Err()
	}
}

// ResolveType resolves one of the operator's declared schema trees
// without executing it. The target is taken from the request
// parameters and defaults to the input schema. The context carries no
// executor, so trigger calls fail.
func (c *Coordinator) ResolveType(ctx context.Context, uri string,
	rp *RequestParams) (prop *schema.Property, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			prop, err = nil, errors.New(panicTrace(rec))
		}
	}()

	if !c.registry.Exists(uri) {
		return nil, fmt.Errorf("operator %q does not exist", uri)
	}
	op, err := c.registry.Get(uri)
	if err != nil {
		return nil, err
	}
	ectx := c.newContext(rp)
	target := targetInputs
	if rp != nil && rp.Target != "" {
		target = rp.Target
	}
	if tr, ok := op.(TypeResolver); ok {
		return tr.ResolveType(ctx, ectx, target)
	}
	if target == targetInputs {
		return op.ResolveInput(ctx, ectx)
	}
	return nil, fmt.Errorf("operator %q cannot resolve type target %q", uri, target)
}

// ResolvePlacement resolves the operator's UI placement without
// executing it. Operators without a placement resolve to nil.
func (c *Coordinator) ResolvePlacement(ctx context.Context, op Operator,
	rp *RequestParams) (placement *Placement, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			placement, err = nil, errors.New(panicTrace(rec))
		}
	}()

	pr, ok := op.(PlacementResolver)
	if !ok {
		return nil, nil
	}
	ectx := c.newContext(rp)
	return pr.ResolvePlacement(ctx, ectx)
}

func (c *Coordinator) newContext(rp *RequestParams, opts ...ContextOption) *ExecutionContext {
	opts = append(opts,
		WithContextSecretResolver(c.secretResolver),
		WithContextDatasetResolver(c.datasetResolver),
	)
	return NewContext(rp, opts...)
}

// errorTrace formats an error as the diagnostic string carried in the
// result envelope.
func errorTrace(err error) string {
	return err.Error()
}

// panicTrace formats a recovered panic with its stack as the
// diagnostic string carried in the result envelope.
func panicTrace(rec any) string {
	return fmt.Sprintf("panic: %v\n%s", rec, debug.Stack())
}
