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
	"sync"

	"trpc.group/trpc-go/trpc-operator-go/dataset"
	"trpc.group/trpc-go/trpc-operator-go/secrets"
)

// consoleLogURI is the built-in operator that Log messages are routed
// through.
const consoleLogURI = "console_log"

// Context construction errors.
var (
	// ErrNoExecutor is returned by Trigger and Log when the context was
	// built for type or placement resolution only.
	ErrNoExecutor = errors.New("no executor available")

	// ErrNoDatasetResolver is returned by the dataset/view accessors
	// when no resolver was injected.
	ErrNoDatasetResolver = errors.New("no dataset resolver available")
)

// RequestParams is the per-call state an invocation is built from:
// the dataset selection the caller had active plus the operator
// parameters themselves.
type RequestParams struct {
	OperatorURI    string           `json:"operator_uri,omitempty"`
	DatasetName    string           `json:"dataset_name,omitempty"`
	View           []map[string]any `json:"view,omitempty"`
	Extended       []map[string]any `json:"extended,omitempty"`
	Filters        map[string]any   `json:"filters,omitempty"`
	Selected       []string         `json:"selected,omitempty"`
	SelectedLabels []map[string]any `json:"selected_labels,omitempty"`
	Params         map[string]any   `json:"params,omitempty"`

	// Results and Delegated are only populated for calls made after an
	// operator ran, e.g. output resolution.
	Results   map[string]any `json:"results,omitempty"`
	Delegated bool           `json:"delegated,omitempty"`

	// Target selects which schema tree a resolve-type call asks for.
	// Empty means "inputs".
	Target string `json:"target,omitempty"`
}

// ContextParams is the caller-facing subset used by the top-level
// Execute surface; see Coordinator.Execute.
type ContextParams struct {
	// Dataset is the name of the dataset to operate on.
	Dataset string

	// View is the serialized view to operate on, if any.
	View []map[string]any

	// Selected is the list of selected sample IDs.
	Selected []string

	// SelectedLabels is the list of selected labels.
	SelectedLabels []map[string]any
}

// ExecutionContext bundles the per-invocation state an operator runs
// against: request parameters, resolved secrets and the trigger
// mechanism. A context is created fresh per invocation and never
// shared across invocations.
type ExecutionContext struct {
	requestParams   *RequestParams
	params          map[string]any
	executor        *Executor
	secretResolver  secrets.Resolver
	datasetResolver dataset.Resolver

	mu     sync.Mutex // guards secretValues during resolution
	values map[string]string
}

// ContextOption configures an ExecutionContext.
type ContextOption func(*ExecutionContext)

// WithExecutor attaches the executor that records trigger requests.
// Contexts built without one (type/placement resolution) reject
// Trigger and Log calls.
func WithExecutor(e *Executor) ContextOption {
	return func(c *ExecutionContext) { c.executor = e }
}

// WithSecretResolver injects the secret-resolution collaborator.
func WithContextSecretResolver(r secrets.Resolver) ContextOption {
	return func(c *ExecutionContext) { c.secretResolver = r }
}

// WithDatasetResolver injects the dataset/view collaborator.
func WithContextDatasetResolver(r dataset.Resolver) ContextOption {
	return func(c *ExecutionContext) { c.datasetResolver = r }
}

// NewContext creates an execution context over the given request
// parameters.
func NewContext(rp *RequestParams, opts ...ContextOption) *ExecutionContext {
	if rp == nil {
		rp = &RequestParams{}
	}
	c := &ExecutionContext{
		requestParams: rp,
		params:        rp.Params,
		values:        make(map[string]string),
	}
	if c.params == nil {
		c.params = map[string]any{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestParams returns the raw request parameters.
func (c *ExecutionContext) RequestParams() *RequestParams { return c.requestParams }

// Params returns the operator parameters.
func (c *ExecutionContext) Params() map[string]any { return c.params }

// Executor returns the attached executor, or nil for resolve-only
// contexts.
func (c *ExecutionContext) Executor() *Executor { return c.executor }

// DatasetName returns the name of the dataset to operate on.
func (c *ExecutionContext) DatasetName() string { return c.requestParams.DatasetName }

// Dataset resolves the dataset handle through the injected resolver.
func (c *ExecutionContext) Dataset(ctx context.Context) (*dataset.Dataset, error) {
	if c.datasetResolver == nil {
		return nil, ErrNoDatasetResolver
	}
	return c.datasetResolver.LoadDataset(ctx, c.requestParams.DatasetName)
}

// View reconstructs the view to operate on from the serialized stages
// in the request parameters. Reconstruction may be expensive and is
// performed on every call, never cached.
func (c *ExecutionContext) View(ctx context.Context) (*dataset.View, error) {
	if c.datasetResolver == nil {
		return nil, ErrNoDatasetResolver
	}
	rp := c.requestParams
	return c.datasetResolver.BuildView(ctx, rp.DatasetName, rp.View, rp.Extended, rp.Filters)
}

// Selected returns the selected sample IDs, or an empty list.
func (c *ExecutionContext) Selected() []string {
	if c.requestParams.Selected == nil {
		return []string{}
	}
	return c.requestParams.Selected
}

// SelectedLabels returns the selected labels, or an empty list.
func (c *ExecutionContext) SelectedLabels() []map[string]any {
	if c.requestParams.SelectedLabels == nil {
		return []map[string]any{}
	}
	return c.requestParams.SelectedLabels
}

// Results returns the results of the current operation. Only populated
// for calls made after an operator ran.
func (c *ExecutionContext) Results() map[string]any {
	if c.requestParams.Results == nil {
		return map[string]any{}
	}
	return c.requestParams.Results
}

// Delegated reports whether the operation's execution was delegated to
// an orchestrator.
func (c *ExecutionContext) Delegated() bool { return c.requestParams.Delegated }

// Trigger records a request to invoke the named operator and returns a
// success-tagged message wrapping it. It fails with ErrNoExecutor on
// contexts built for type or placement resolution.
func (c *ExecutionContext) Trigger(operatorURI string, params map[string]any) (*GeneratedMessage, error) {
	if c.executor == nil {
		return nil, ErrNoExecutor
	}
	return c.executor.Trigger(operatorURI, params), nil
}

// Log records a console log message for the invoking application by
// triggering the built-in console_log operator.
func (c *ExecutionContext) Log(message string) error {
	_, err := c.Trigger(consoleLogURI, map[string]any{"message": message})
	return err
}

// ResolveSecretValues resolves the given secret keys through the
// injected resolver, fanning out one lookup per key, and stores every
// non-empty result. It must run to completion before operator input
// resolution so that Secret lookups are populated.
func (c *ExecutionContext) ResolveSecretValues(ctx context.Context, keys []string) error {
	if c.secretResolver == nil || len(keys) == 0 {
		return nil
	}
	var (
		wg   sync.WaitGroup
		errs = make([]error, len(keys))
	)
	for i, key := range keys {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			secret, err := c.secretResolver.GetSecret(ctx, key)
			if err != nil {
				errs[i] = fmt.Errorf("resolve secret %q: %w", key, err)
				return
			}
			if secret == nil {
				return
			}
			c.mu.Lock()
			c.values[secret.Key] = secret.Value
			c.mu.Unlock()
		}(i, key)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Secret returns the resolved value for key. It never triggers
// resolution itself.
func (c *ExecutionContext) Secret(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.values[key]
	return value, ok
}

// Secrets returns a copy of all resolved secrets.
func (c *ExecutionContext) Secrets() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Serialize returns the JSON-shaped form of the context that delegated
// operations embed for later replay.
func (c *ExecutionContext) Serialize() map[string]any {
	return map[string]any{
		"request_params": c.requestParams,
		"params":         c.params,
	}
}
