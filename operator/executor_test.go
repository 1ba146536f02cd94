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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_Trigger(t *testing.T) {
	e := NewExecutor()

	msg := e.Trigger("ns/reload", map[string]any{"dataset": "demo"})
	require.NotNil(t, msg)
	assert.Equal(t, MessageSuccess, msg.Type)
	require.NotNil(t, msg.Body)
	assert.Equal(t, "ns/reload", msg.Body.OperatorURI)
	assert.Equal(t, map[string]any{"dataset": "demo"}, msg.Body.Params)

	require.Len(t, e.Requests(), 1)
	assert.Same(t, msg.Body, e.Requests()[0])
}

func TestExecutor_TriggerNilParams(t *testing.T) {
	e := NewExecutor()
	msg := e.Trigger("ns/noop", nil)
	assert.Equal(t, map[string]any{}, msg.Body.Params)
}

func TestExecutor_TriggerOrder(t *testing.T) {
	e := NewExecutor()
	e.Trigger("ns/first", nil)
	e.Trigger("ns/second", nil)

	require.Len(t, e.Requests(), 2)
	assert.Equal(t, "ns/first", e.Requests()[0].OperatorURI)
	assert.Equal(t, "ns/second", e.Requests()[1].OperatorURI)
}

func TestExecutor_Log(t *testing.T) {
	e := NewExecutor()
	e.Log("first")
	e.Log("second")
	assert.Equal(t, []string{"first", "second"}, e.Logs())
}

func TestExecutor_MarshalEmpty(t *testing.T) {
	data, err := json.Marshal(NewExecutor())
	require.NoError(t, err)
	assert.JSONEq(t, `{"requests": [], "logs": []}`, string(data))
}

func TestExecutor_JSONRoundTrip(t *testing.T) {
	e := NewExecutor()
	e.Trigger("ns/reload", map[string]any{"dataset": "demo"})
	e.Log("reloading")

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var restored Executor
	require.NoError(t, json.Unmarshal(data, &restored))
	require.Len(t, restored.Requests(), 1)
	assert.Equal(t, "ns/reload", restored.Requests()[0].OperatorURI)
	assert.Equal(t, []string{"reloading"}, restored.Logs())
}
