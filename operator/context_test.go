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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-operator-go/dataset"
	"trpc.group/trpc-go/trpc-operator-go/secrets"
)

func TestNewContext_Defaults(t *testing.T) {
	c := NewContext(nil)
	require.NotNil(t, c.RequestParams())
	assert.Equal(t, map[string]any{}, c.Params())
	assert.Nil(t, c.Executor())
	assert.Equal(t, []string{}, c.Selected())
	assert.Equal(t, []map[string]any{}, c.SelectedLabels())
	assert.Equal(t, map[string]any{}, c.Results())
	assert.False(t, c.Delegated())
}

func TestContext_Accessors(t *testing.T) {
	rp := &RequestParams{
		DatasetName:    "demo",
		Selected:       []string{"s1", "s2"},
		Params:         map[string]any{"k": "v"},
		Results:        map[string]any{"out": 1},
		Delegated:      true,
		SelectedLabels: []map[string]any{{"label": "cat"}},
	}
	c := NewContext(rp)

	assert.Equal(t, "demo", c.DatasetName())
	assert.Equal(t, []string{"s1", "s2"}, c.Selected())
	assert.Equal(t, map[string]any{"k": "v"}, c.Params())
	assert.Equal(t, map[string]any{"out": 1}, c.Results())
	assert.True(t, c.Delegated())
	require.Len(t, c.SelectedLabels(), 1)
}

func TestContext_TriggerWithoutExecutor(t *testing.T) {
	c := NewContext(&RequestParams{})

	_, err := c.Trigger("ns/other", nil)
	assert.ErrorIs(t, err, ErrNoExecutor)
	assert.ErrorIs(t, c.Log("message"), ErrNoExecutor)
}

func TestContext_TriggerRecordsRequest(t *testing.T) {
	executor := NewExecutor()
	c := NewContext(&RequestParams{}, WithExecutor(executor))

	msg, err := c.Trigger("ns/other", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, MessageSuccess, msg.Type)

	require.Len(t, executor.Requests(), 1)
	assert.Equal(t, "ns/other", executor.Requests()[0].OperatorURI)
}

func TestContext_LogRoutesThroughConsoleLog(t *testing.T) {
	executor := NewExecutor()
	c := NewContext(&RequestParams{}, WithExecutor(executor))

	require.NoError(t, c.Log("hello"))

	require.Len(t, executor.Requests(), 1)
	req := executor.Requests()[0]
	assert.Equal(t, "console_log", req.OperatorURI)
	assert.Equal(t, map[string]any{"message": "hello"}, req.Params)
}

func TestContext_ResolveSecretValues(t *testing.T) {
	resolver := secrets.Static{"API_KEY": "abc123"}
	c := NewContext(&RequestParams{}, WithContextSecretResolver(resolver))

	err := c.ResolveSecretValues(context.Background(), []string{"API_KEY", "MISSING"})
	require.NoError(t, err)

	value, ok := c.Secret("API_KEY")
	assert.True(t, ok)
	assert.Equal(t, "abc123", value)

	_, ok = c.Secret("MISSING")
	assert.False(t, ok)

	assert.Equal(t, map[string]string{"API_KEY": "abc123"}, c.Secrets())
}

type failingResolver struct{}

func (failingResolver) GetSecret(context.Context, string) (*secrets.Secret, error) {
	return nil, errors.New("store unreachable")
}

func TestContext_ResolveSecretValuesError(t *testing.T) {
	c := NewContext(&RequestParams{}, WithContextSecretResolver(failingResolver{}))

	err := c.ResolveSecretValues(context.Background(), []string{"API_KEY"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_KEY")
}

func TestContext_ResolveSecretValuesNoResolver(t *testing.T) {
	c := NewContext(&RequestParams{})
	assert.NoError(t, c.ResolveSecretValues(context.Background(), []string{"API_KEY"}))
}

func TestContext_DatasetAndView(t *testing.T) {
	ctx := context.Background()
	c := NewContext(&RequestParams{DatasetName: "demo"})

	_, err := c.Dataset(ctx)
	assert.ErrorIs(t, err, ErrNoDatasetResolver)
	_, err = c.View(ctx)
	assert.ErrorIs(t, err, ErrNoDatasetResolver)

	resolver := dataset.NewInMemory()
	resolver.Add("demo")
	stages := []map[string]any{{"_cls": "Limit", "kwargs": []any{"limit", 10}}}
	c = NewContext(&RequestParams{DatasetName: "demo", View: stages},
		WithContextDatasetResolver(resolver))

	d, err := c.Dataset(ctx)
	require.NoError(t, err)
	assert.Equal(t, "demo", d.Name())

	v, err := c.View(ctx)
	require.NoError(t, err)
	assert.Equal(t, "demo", v.DatasetName())
	assert.Equal(t, stages, v.Stages())
}

func TestContext_Serialize(t *testing.T) {
	rp := &RequestParams{DatasetName: "demo", Params: map[string]any{"k": "v"}}
	c := NewContext(rp)

	out := c.Serialize()
	assert.Equal(t, rp, out["request_params"])
	assert.Equal(t, map[string]any{"k": "v"}, out["params"])
}
