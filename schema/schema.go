//
// Tencent is pleased to support the open source community by making trpc-operator-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-operator-go is licensed under the Apache License Version 2.0.
//
//

// Package schema defines the property tree that operators declare for
// their inputs. A property is a tagged variant over the primitive,
// enum, object and list kinds; the validation package walks this tree
// against concrete values.
package schema

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the variant of a property node.
type Kind int

// Property kinds. Number covers both integral and fractional values.
const (
	KindString Kind = iota
	KindNumber
	KindBoolean
	KindEnum
	KindObject
	KindList
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindEnum:
		return "enum"
	case KindObject:
		return "object"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Property is a single node of a declared input schema.
//
// Object children keep their declaration order so that validation
// reports errors deterministically. A property may be marked invalid
// when the declaration itself failed to build; validation then reports
// the carried message instead of descending into the value.
type Property struct {
	kind         Kind
	required     bool
	invalid      bool
	errorMessage string

	values   []any                // enum members
	names    []string             // object child order
	children map[string]*Property // object children by name
	element  *Property            // list element schema
}

// String declares a string-valued property.
func String() *Property { return &Property{kind: KindString} }

// Number declares a numeric property. Integral and fractional values
// are both accepted by validation.
func Number() *Property { return &Property{kind: KindNumber} }

// Boolean declares a boolean property.
func Boolean() *Property { return &Property{kind: KindBoolean} }

// Enum declares a property restricted to the given member values.
func Enum(values ...any) *Property {
	return &Property{kind: KindEnum, values: values}
}

// Object declares a keyed-structure property. Children are added with
// Property.Property and keep their declaration order.
func Object() *Property {
	return &Property{kind: KindObject, children: map[string]*Property{}}
}

// List declares a sequence property whose every element is validated
// against the given element schema.
func List(element *Property) *Property {
	return &Property{kind: KindList, element: element}
}

// Property adds a named child to an object property and returns the
// receiver for chaining. Child names must be unique within a node;
// re-declaring a name panics, as does calling this on a non-object.
func (p *Property) Property(name string, child *Property) *Property {
	if p.kind != KindObject {
		panic(fmt.Sprintf("schema: cannot add property %q to %s node", name, p.kind))
	}
	if _, ok := p.children[name]; ok {
		panic(fmt.Sprintf("schema: duplicate property %q", name))
	}
	p.names = append(p.names, name)
	p.children[name] = child
	return p
}

// Require marks the property as required and returns the receiver.
func (p *Property) Require() *Property {
	p.required = true
	return p
}

// MarkInvalid flags the property as a failed declaration carrying the
// given message. Validation reports this message as a custom error and
// does not descend further.
func (p *Property) MarkInvalid(message string) *Property {
	p.invalid = true
	p.errorMessage = message
	return p
}

// WithErrorMessage sets the author-provided message attached to
// validation errors for this property.
func (p *Property) WithErrorMessage(message string) *Property {
	p.errorMessage = message
	return p
}

// Kind returns the variant of the property.
func (p *Property) Kind() Kind { return p.kind }

// Required reports whether a value must be present.
func (p *Property) Required() bool { return p.required }

// Invalid reports whether the declaration itself failed to build.
func (p *Property) Invalid() bool { return p.invalid }

// ErrorMessage returns the author-provided error message, if any.
func (p *Property) ErrorMessage() string { return p.errorMessage }

// Values returns the declared enum members.
func (p *Property) Values() []any { return p.values }

// Names returns object child names in declaration order.
func (p *Property) Names() []string { return p.names }

// Child returns the named object child, or nil.
func (p *Property) Child(name string) *Property { return p.children[name] }

// Element returns the list element schema, or nil.
func (p *Property) Element() *Property { return p.element }

type propertyJSON struct {
	Type         string                   `json:"type"`
	Required     bool                     `json:"required,omitempty"`
	Invalid      bool                     `json:"invalid,omitempty"`
	ErrorMessage string                   `json:"error_message,omitempty"`
	Values       []any                    `json:"values,omitempty"`
	Properties   map[string]*propertyJSON `json:"properties,omitempty"`
	Order        []string                 `json:"property_order,omitempty"`
	Element      *propertyJSON            `json:"element,omitempty"`
}

func (p *Property) toJSON() *propertyJSON {
	out := &propertyJSON{
		Type:         p.kind.String(),
		Required:     p.required,
		Invalid:      p.invalid,
		ErrorMessage: p.errorMessage,
		Values:       p.values,
	}
	if p.kind == KindObject {
		out.Properties = make(map[string]*propertyJSON, len(p.children))
		for name, child := range p.children {
			out.Properties[name] = child.toJSON()
		}
		out.Order = p.names
	}
	if p.element != nil {
		out.Element = p.element.toJSON()
	}
	return out
}

// MarshalJSON serializes the property tree for transport, e.g. when a
// caller resolves an operator's input type over the wire.
func (p *Property) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.toJSON())
}
