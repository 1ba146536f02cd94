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
	"strings"

	"trpc.group/trpc-go/trpc-operator-go/validation"
)

// ExecutionResult is the uniform envelope every invocation resolves
// to. Exactly one of the success, delegated and failed shapes holds:
// a delegated result never carries an error, and an invalid validation
// context always accompanies a failure.
type ExecutionResult struct {
	// Result is the operator's return value on success, or the queued
	// operation snapshot when delegated. It may be a *StreamReader for
	// lazily produced results.
	Result any

	// Executor carries the trigger requests and logs accumulated
	// during the run.
	Executor *Executor

	// Error is the failure message; empty on success.
	Error string

	// ValidationContext carries the full validation outcome when the
	// failure was a validation error.
	ValidationContext *validation.Context

	// Delegated reports whether execution was handed off to the
	// delegated-operation queue.
	Delegated bool
}

// NewErrorResult wraps an error into a failed envelope.
func NewErrorResult(err error) *ExecutionResult {
	return &ExecutionResult{Error: err.Error()}
}

// IsStream reports whether the result is a lazy sequence of partial
// results rather than a single value.
func (r *ExecutionResult) IsStream() bool {
	_, ok := r.Result.(*StreamReader)
	return ok
}

// ToError converts a failed result into an ExecutionError, or nil for
// success and delegated outcomes. When a validation context is
// attached, the message appends the path and reason of the first
// validation error only; the remaining errors stay queryable from the
// context.
func (r *ExecutionResult) ToError() *ExecutionError {
	msg := r.Error
	if r.ValidationContext != nil && r.ValidationContext.Invalid() {
		first := r.ValidationContext.Errors()[0]
		path := strings.TrimLeft(first.Path, ".")
		msg += ". Path: " + path + ". Reason: " + first.Reason
	}
	if msg == "" {
		return nil
	}
	return &ExecutionError{message: msg}
}

// ExecutionError is the error type carried across the runtime
// boundary for failed executions.
type ExecutionError struct {
	message string
}

// NewExecutionError creates an ExecutionError with the given message.
func NewExecutionError(message string) *ExecutionError {
	return &ExecutionError{message: message}
}

// Error implements the error interface.
func (e *ExecutionError) Error() string { return e.message }

type resultJSON struct {
	Result        any                 `json:"result"`
	Executor      *Executor           `json:"executor"`
	Error         *string             `json:"error"`
	Delegated     bool                `json:"delegated"`
	ValidationCtx *validation.Context `json:"validation_ctx"`
}

// MarshalJSON serializes the envelope. Stream results are consumed
// in-process and serialize as null.
func (r *ExecutionResult) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Result:        r.Result,
		Executor:      r.Executor,
		Delegated:     r.Delegated,
		ValidationCtx: r.ValidationContext,
	}
	if r.IsStream() {
		out.Result = nil
	}
	if r.Error != "" {
		out.Error = &r.Error
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores an envelope. The error, delegated flag and
// the executor's request/log lists round-trip exactly.
func (r *ExecutionResult) UnmarshalJSON(data []byte) error {
	var raw resultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Result = raw.Result
	r.Executor = raw.Executor
	r.Delegated = raw.Delegated
	r.ValidationContext = raw.ValidationCtx
	r.Error = ""
	if raw.Error != nil {
		r.Error = *raw.Error
	}
	return nil
}
