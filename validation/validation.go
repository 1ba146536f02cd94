//
// Tencent is pleased to support the open source community by making trpc-operator-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-operator-go is licensed under the Apache License Version 2.0.
//
//

// Package validation checks operator input values against a declared
// schema tree and accumulates path-qualified errors.
package validation

import (
	"encoding/json"
	"fmt"
	"reflect"

	"trpc.group/trpc-go/trpc-operator-go/schema"
)

// Validation failure reasons.
const (
	ReasonRequired      = "Required property"
	ReasonInvalidEnum   = "Invalid enum value"
	ReasonInvalidType   = "Invalid value type"
	ReasonInvalidList   = "Invalid list"
	ReasonInvalidObject = "Invalid object"
)

// Error is a single validation failure at a path within the value
// tree. Paths use ".name" for object fields and "[i]" for list
// indices, concatenated from the root; the root path is "".
//
// Custom distinguishes errors raised by the schema author (an invalid
// declaration carrying its own message) from structural mismatches
// detected by the engine.
type Error struct {
	Reason       string `json:"reason"`
	ErrorMessage string `json:"error_message"`
	Path         string `json:"path"`
	Custom       bool   `json:"custom"`
}

func newError(reason string, p *schema.Property, path string) *Error {
	return &Error{Reason: reason, ErrorMessage: p.ErrorMessage(), Path: path}
}

// Option configures a validation run.
type Option func(*Context)

// WithSchemaValidationDisabled suppresses structural errors, keeping
// only errors whose Custom flag is set. Operators use this to opt out
// of automatic checking while still enforcing author-declared
// constraints.
func WithSchemaValidationDisabled(disabled bool) Option {
	return func(c *Context) { c.disabled = disabled }
}

// Context holds the accumulated outcome of one validation run. It is
// immutable once Validate returns.
type Context struct {
	errors   []*Error
	disabled bool
}

// Validate checks value against the schema rooted at root and returns
// the resulting context. A nil root means the operator declares no
// inputs and always validates.
//
// Each object child and list element is validated independently; all
// resulting errors are retained, not just the first.
func Validate(root *schema.Property, value any, opts ...Option) *Context {
	c := &Context{}
	for _, opt := range opts {
		opt(c)
	}
	if root == nil {
		return c
	}
	if err := c.validateProperty("", root, value); err != nil {
		c.add(err)
	}
	return c
}

// Invalid reports whether any error was retained.
func (c *Context) Invalid() bool { return len(c.errors) > 0 }

// Errors returns the retained errors in traversal order.
func (c *Context) Errors() []*Error { return c.errors }

// add appends an error, honoring the suppression rule: when schema
// validation is disabled only custom errors survive.
func (c *Context) add(err *Error) {
	if c.disabled && !err.Custom {
		return
	}
	c.errors = append(c.errors, err)
}

// validateProperty validates one node. Errors for the node itself are
// returned to the caller; errors for object children and list elements
// are accumulated directly so that sibling branches do not
// short-circuit each other.
func (c *Context) validateProperty(path string, p *schema.Property, value any) *Error {
	if p.Invalid() {
		return &Error{
			Reason:       p.ErrorMessage(),
			ErrorMessage: p.ErrorMessage(),
			Path:         path,
			Custom:       true,
		}
	}
	if p.Required() && value == nil {
		return newError(ReasonRequired, p, path)
	}
	if value == nil {
		return nil
	}
	switch p.Kind() {
	case schema.KindEnum:
		return c.validateEnum(path, p, value)
	case schema.KindObject:
		return c.validateObject(path, p, value)
	case schema.KindList:
		return c.validateList(path, p, value)
	default:
		return c.validatePrimitive(path, p, value)
	}
}

func (c *Context) validateEnum(path string, p *schema.Property, value any) *Error {
	for _, member := range p.Values() {
		if reflect.DeepEqual(member, value) {
			return nil
		}
	}
	return newError(ReasonInvalidEnum, p, path)
}

func (c *Context) validateObject(path string, p *schema.Property, value any) *Error {
	obj, ok := value.(map[string]any)
	if !ok {
		return newError(ReasonInvalidObject, p, path)
	}
	for _, name := range p.Names() {
		child := p.Child(name)
		if err := c.validateProperty(path+"."+name, child, obj[name]); err != nil {
			c.add(err)
		}
	}
	return nil
}

func (c *Context) validateList(path string, p *schema.Property, value any) *Error {
	seq, ok := value.([]any)
	if !ok {
		return newError(ReasonInvalidList, p, path)
	}
	element := p.Element()
	for i, item := range seq {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		if err := c.validateProperty(itemPath, element, item); err != nil {
			c.add(err)
		}
	}
	return nil
}

func (c *Context) validatePrimitive(path string, p *schema.Property, value any) *Error {
	switch p.Kind() {
	case schema.KindString:
		if _, ok := value.(string); ok {
			return nil
		}
	case schema.KindNumber:
		switch value.(type) {
		case int, int32, int64, float32, float64:
			return nil
		}
	case schema.KindBoolean:
		if _, ok := value.(bool); ok {
			return nil
		}
	}
	return newError(ReasonInvalidType, p, path)
}

type contextJSON struct {
	Invalid bool     `json:"invalid"`
	Errors  []*Error `json:"errors"`
}

// MarshalJSON serializes the context into its envelope form.
func (c *Context) MarshalJSON() ([]byte, error) {
	errs := c.errors
	if errs == nil {
		errs = []*Error{}
	}
	return json.Marshal(contextJSON{Invalid: c.Invalid(), Errors: errs})
}

// UnmarshalJSON restores a context from its envelope form. The
// suppression flag is a per-run setting and is not carried.
func (c *Context) UnmarshalJSON(data []byte) error {
	var raw contextJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.errors = raw.Errors
	if len(c.errors) == 0 {
		c.errors = nil
	}
	return nil
}
