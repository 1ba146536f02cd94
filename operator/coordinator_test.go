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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-operator-go/delegate"
	"trpc.group/trpc-go/trpc-operator-go/schema"
	"trpc.group/trpc-go/trpc-operator-go/secrets"
)

// testOperator is a configurable Operator for coordinator tests.
type testOperator struct {
	uri     string
	config  *Config
	inputs  *schema.Property
	execute func(ctx context.Context, ectx *ExecutionContext) (any, error)

	delegate         bool
	delegationTarget string
	secretKeys       []string
	placement        *Placement
	resolveType      func(ctx context.Context, ectx *ExecutionContext, target string) (*schema.Property, error)
}

func (o *testOperator) URI() string     { return o.uri }
func (o *testOperator) Config() *Config { return o.config }

func (o *testOperator) ResolveInput(context.Context, *ExecutionContext) (*schema.Property, error) {
	return o.inputs, nil
}

func (o *testOperator) Execute(ctx context.Context, ectx *ExecutionContext) (any, error) {
	if o.execute == nil {
		return nil, nil
	}
	return o.execute(ctx, ectx)
}

type delegatingOperator struct{ testOperator }

func (o *delegatingOperator) ResolveDelegation(*ExecutionContext) bool { return o.delegate }
func (o *delegatingOperator) DelegationTarget() string                 { return o.delegationTarget }

type secretOperator struct{ testOperator }

func (o *secretOperator) SecretKeys() []string { return o.secretKeys }

type placedOperator struct{ testOperator }

func (o *placedOperator) ResolvePlacement(context.Context, *ExecutionContext) (*Placement, error) {
	return o.placement, nil
}

type typedOperator struct{ testOperator }

func (o *typedOperator) ResolveType(ctx context.Context, ectx *ExecutionContext,
	target string) (*schema.Property, error) {
	return o.resolveType(ctx, ectx, target)
}

// testRegistry is a minimal Registry over a fixed operator set.
type testRegistry map[string]Operator

func (r testRegistry) Exists(uri string) bool { return r[uri] != nil }

func (r testRegistry) Get(uri string) (Operator, error) {
	op, ok := r[uri]
	if !ok {
		return nil, fmt.Errorf("operator %q does not exist", uri)
	}
	return op, nil
}

func (r testRegistry) List() []Operator {
	out := make([]Operator, 0, len(r))
	for _, op := range r {
		out = append(out, op)
	}
	return out
}

func newTestCoordinator(t *testing.T, reg Registry, opts ...Option) *Coordinator {
	t.Helper()
	c, err := New(reg, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func sayHello() *testOperator {
	return &testOperator{
		uri:    "ns/say_hello",
		inputs: schema.Object().Property("name", schema.String().Require()),
		execute: func(_ context.Context, ectx *ExecutionContext) (any, error) {
			name, _ := ectx.Params()["name"].(string)
			return map[string]any{"greeting": "Hello, " + name}, nil
		},
	}
}

func TestNew_RequiresRegistry(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestExecute_Success(t *testing.T) {
	op := sayHello()
	c := newTestCoordinator(t, testRegistry{op.uri: op})

	res, err := c.Execute(context.Background(), op.uri, ContextParams{},
		map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"greeting": "Hello, Ada"}, res.Result)
	assert.Empty(t, res.Error)
	assert.False(t, res.Delegated)
	require.NotNil(t, res.Executor)
	assert.Empty(t, res.Executor.Requests())
	assert.Empty(t, res.Executor.Logs())
}

func TestExecute_ValidationFailure(t *testing.T) {
	op := sayHello()
	c := newTestCoordinator(t, testRegistry{op.uri: op})

	res, err := c.Execute(context.Background(), op.uri, ContextParams{}, map[string]any{})
	require.Error(t, err)
	assert.Equal(t, "Validation error", res.Error)
	assert.Contains(t, err.Error(), "Validation error")
	assert.Contains(t, err.Error(), "Required property")
	assert.Contains(t, err.Error(), "name")

	require.NotNil(t, res.ValidationContext)
	require.Len(t, res.ValidationContext.Errors(), 1)
	assert.Equal(t, ".name", res.ValidationContext.Errors()[0].Path)
}

func TestExecute_OperatorNotFound(t *testing.T) {
	c := newTestCoordinator(t, testRegistry{})

	res, err := c.Execute(context.Background(), "ns/missing", ContextParams{}, nil)
	require.Error(t, err)
	assert.Equal(t, `operator "ns/missing" does not exist`, res.Error)
}

func TestExecuteOrDelegate_ExecutionError(t *testing.T) {
	op := &testOperator{
		uri: "ns/broken",
		execute: func(context.Context, *ExecutionContext) (any, error) {
			return nil, errors.New("downstream unavailable")
		},
	}
	c := newTestCoordinator(t, testRegistry{op.uri: op})

	res := c.ExecuteOrDelegate(context.Background(), op.uri, &RequestParams{})
	assert.Equal(t, "downstream unavailable", res.Error)
	assert.Nil(t, res.Result)
}

func TestExecuteOrDelegate_PanicCaptured(t *testing.T) {
	op := &testOperator{
		uri: "ns/panics",
		execute: func(context.Context, *ExecutionContext) (any, error) {
			panic("unexpected state")
		},
	}
	c := newTestCoordinator(t, testRegistry{op.uri: op})

	res := c.ExecuteOrDelegate(context.Background(), op.uri, &RequestParams{})
	assert.Contains(t, res.Error, "panic: unexpected state")
}

func TestExecuteOrDelegate_Timeout(t *testing.T) {
	op := &testOperator{
		uri: "ns/slow",
		execute: func(ctx context.Context, _ *ExecutionContext) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	c := newTestCoordinator(t, testRegistry{op.uri: op},
		WithTimeout(20*time.Millisecond))

	res := c.ExecuteOrDelegate(context.Background(), op.uri, &RequestParams{})
	assert.Contains(t, res.Error, "timed out")
}

func TestExecuteOrDelegate_Delegation(t *testing.T) {
	executed := false
	op := &delegatingOperator{testOperator{
		uri: "ns/batch",
		execute: func(context.Context, *ExecutionContext) (any, error) {
			executed = true
			return nil, nil
		},
	}}
	op.delegate = true
	op.delegationTarget = "orchestrator-1"

	queue := delegate.NewInMemory()
	c := newTestCoordinator(t, testRegistry{op.uri: op},
		WithDelegationService(queue))

	res := c.ExecuteOrDelegate(context.Background(), op.uri,
		&RequestParams{DatasetName: "demo", Params: map[string]any{"k": "v"}})

	assert.False(t, executed, "delegated invocations must not execute inline")
	assert.True(t, res.Delegated)
	assert.Empty(t, res.Error)
	assert.Nil(t, res.ToError())

	snapshot, ok := res.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ns/batch", snapshot["operator"])
	assert.Equal(t, string(delegate.StateQueued), snapshot["run_state"])
	assert.Equal(t, "orchestrator-1", snapshot["delegation_target"])

	queued, err := queue.List(context.Background(), delegate.StateQueued)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, "ns/batch", queued[0].OperatorURI)
}

func TestExecuteOrDelegate_DelegationDeclined(t *testing.T) {
	op := &delegatingOperator{testOperator{
		uri: "ns/batch",
		execute: func(context.Context, *ExecutionContext) (any, error) {
			return "inline", nil
		},
	}}
	op.delegate = false

	c := newTestCoordinator(t, testRegistry{op.uri: op})
	res := c.ExecuteOrDelegate(context.Background(), op.uri, &RequestParams{})
	assert.False(t, res.Delegated)
	assert.Equal(t, "inline", res.Result)
}

func TestExecuteOrDelegate_DisabledSchemaValidation(t *testing.T) {
	op := &testOperator{
		uri:    "ns/lenient",
		config: &Config{DisableSchemaValidation: true},
		inputs: schema.Object().Property("name", schema.String().Require()),
		execute: func(context.Context, *ExecutionContext) (any, error) {
			return "ran anyway", nil
		},
	}
	c := newTestCoordinator(t, testRegistry{op.uri: op})

	res := c.ExecuteOrDelegate(context.Background(), op.uri, &RequestParams{})
	assert.Empty(t, res.Error)
	assert.Equal(t, "ran anyway", res.Result)
}

func TestExecuteOrDelegate_SecretsResolvedBeforeExecution(t *testing.T) {
	op := &secretOperator{testOperator{
		uri: "ns/uses_secret",
		execute: func(_ context.Context, ectx *ExecutionContext) (any, error) {
			value, ok := ectx.Secret("API_KEY")
			if !ok {
				return nil, errors.New("secret not resolved")
			}
			return value, nil
		},
	}}
	op.secretKeys = []string{"API_KEY"}

	c := newTestCoordinator(t, testRegistry{op.uri: op},
		WithSecretResolver(secrets.Static{"API_KEY": "abc123"}))

	res := c.ExecuteOrDelegate(context.Background(), op.uri, &RequestParams{})
	assert.Empty(t, res.Error)
	assert.Equal(t, "abc123", res.Result)
}

func TestExecuteOrDelegate_StreamingResult(t *testing.T) {
	op := &testOperator{
		uri: "ns/streams",
		execute: func(context.Context, *ExecutionContext) (any, error) {
			s := NewStream(4)
			go func() {
				s.Writer.Send("a", nil)
				s.Writer.Send("b", nil)
				s.Writer.Close()
			}()
			return s.Reader, nil
		},
	}
	c := newTestCoordinator(t, testRegistry{op.uri: op})

	res := c.ExecuteOrDelegate(context.Background(), op.uri, &RequestParams{})
	require.True(t, res.IsStream())

	out, err := res.Result.(*StreamReader).Collect()
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, out)
}

func TestResolveType_Inputs(t *testing.T) {
	op := sayHello()
	c := newTestCoordinator(t, testRegistry{op.uri: op})

	prop, err := c.ResolveType(context.Background(), op.uri, &RequestParams{})
	require.NoError(t, err)
	require.NotNil(t, prop)
	assert.Equal(t, schema.KindObject, prop.Kind())
	assert.Equal(t, []string{"name"}, prop.Names())
}

func TestResolveType_CustomTarget(t *testing.T) {
	op := &typedOperator{testOperator{uri: "ns/typed"}}
	op.resolveType = func(_ context.Context, _ *ExecutionContext,
		target string) (*schema.Property, error) {
		if target != "outputs" {
			return nil, fmt.Errorf("unknown target %q", target)
		}
		return schema.Object().Property("count", schema.Number()), nil
	}
	c := newTestCoordinator(t, testRegistry{op.uri: op})

	prop, err := c.ResolveType(context.Background(), op.uri,
		&RequestParams{Target: "outputs"})
	require.NoError(t, err)
	assert.Equal(t, []string{"count"}, prop.Names())
}

func TestResolveType_UnknownTarget(t *testing.T) {
	op := sayHello()
	c := newTestCoordinator(t, testRegistry{op.uri: op})

	_, err := c.ResolveType(context.Background(), op.uri,
		&RequestParams{Target: "outputs"})
	assert.Error(t, err)
}

func TestResolveType_OperatorNotFound(t *testing.T) {
	c := newTestCoordinator(t, testRegistry{})
	_, err := c.ResolveType(context.Background(), "ns/missing", &RequestParams{})
	assert.Error(t, err)
}

func TestResolvePlacement(t *testing.T) {
	op := &placedOperator{testOperator{uri: "ns/placed"}}
	op.placement = &Placement{Place: "samples-grid-actions-row", Label: "Say hello"}

	c := newTestCoordinator(t, testRegistry{op.uri: op})
	placement, err := c.ResolvePlacement(context.Background(), op, &RequestParams{})
	require.NoError(t, err)
	require.NotNil(t, placement)
	assert.Equal(t, "Say hello", placement.Label)
}

func TestResolvePlacement_NotDeclared(t *testing.T) {
	op := sayHello()
	c := newTestCoordinator(t, testRegistry{op.uri: op})

	placement, err := c.ResolvePlacement(context.Background(), op, &RequestParams{})
	require.NoError(t, err)
	assert.Nil(t, placement)
}

func TestExecute_TriggersSurfaceInEnvelope(t *testing.T) {
	op := &testOperator{
		uri: "ns/triggers",
		execute: func(_ context.Context, ectx *ExecutionContext) (any, error) {
			if _, err := ectx.Trigger("ns/reload", map[string]any{"dataset": "demo"}); err != nil {
				return nil, err
			}
			if err := ectx.Log("reload requested"); err != nil {
				return nil, err
			}
			return nil, nil
		},
	}
	c := newTestCoordinator(t, testRegistry{op.uri: op})

	res, err := c.Execute(context.Background(), op.uri, ContextParams{}, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Executor)

	requests := res.Executor.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, "ns/reload", requests[0].OperatorURI)
	assert.Equal(t, "console_log", requests[1].OperatorURI)
	assert.Equal(t, map[string]any{"message": "reload requested"}, requests[1].Params)
}
