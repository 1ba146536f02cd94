//
// Tencent is pleased to support the open source community by making trpc-operator-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-operator-go is licensed under the Apache License Version 2.0.
//
//

package operator

import "encoding/json"

// MessageType tags a GeneratedMessage outcome.
type MessageType string

// Message types.
const (
	MessageSuccess MessageType = "SUCCESS"
	MessageError   MessageType = "ERROR"
)

// GeneratedMessage wraps the outcome of a trigger call so that the
// invoking application can relay it.
type GeneratedMessage struct {
	Type MessageType        `json:"type"`
	Body *InvocationRequest `json:"body,omitempty"`
}

// InvocationRequest is an immutable request, raised by a running
// operator, to invoke another operator with the given parameters.
type InvocationRequest struct {
	OperatorURI string         `json:"operator_uri"`
	Params      map[string]any `json:"params"`
}

// Executor accumulates the invocation requests and log messages an
// operator produces during a single run. Both sequences are
// append-only and are serialized into the result envelope so the
// caller can replay triggered follow-ups.
//
// An Executor is owned exclusively by one ExecutionContext and is not
// safe for concurrent use.
type Executor struct {
	requests []*InvocationRequest
	logs     []string
}

// NewExecutor creates an empty executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Trigger appends a request to invoke the named operator and returns a
// success-tagged message wrapping it.
func (e *Executor) Trigger(operatorURI string, params map[string]any) *GeneratedMessage {
	if params == nil {
		params = map[string]any{}
	}
	req := &InvocationRequest{OperatorURI: operatorURI, Params: params}
	e.requests = append(e.requests, req)
	return &GeneratedMessage{Type: MessageSuccess, Body: req}
}

// Log appends a log message.
func (e *Executor) Log(message string) {
	e.logs = append(e.logs, message)
}

// Requests returns the accumulated invocation requests in order.
func (e *Executor) Requests() []*InvocationRequest { return e.requests }

// Logs returns the accumulated log messages in order.
func (e *Executor) Logs() []string { return e.logs }

type executorJSON struct {
	Requests []*InvocationRequest `json:"requests"`
	Logs     []string             `json:"logs"`
}

// MarshalJSON serializes the executor as {"requests": [...], "logs": [...]}.
func (e *Executor) MarshalJSON() ([]byte, error) {
	out := executorJSON{Requests: e.requests, Logs: e.logs}
	if out.Requests == nil {
		out.Requests = []*InvocationRequest{}
	}
	if out.Logs == nil {
		out.Logs = []string{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores an executor from its serialized form.
func (e *Executor) UnmarshalJSON(data []byte) error {
	var raw executorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.requests = raw.Requests
	e.logs = raw.Logs
	if len(e.requests) == 0 {
		e.requests = nil
	}
	if len(e.logs) == 0 {
		e.logs = nil
	}
	return nil
}
