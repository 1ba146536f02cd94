//
// Tencent is pleased to support the open source community by making trpc-operator-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-operator-go is licensed under the Apache License Version 2.0.
//
//

// Package secrets defines the secret-resolution collaborator consumed
// by execution contexts, plus small built-in resolvers.
package secrets

import (
	"context"
	"os"
)

// Secret is one resolved key/value pair.
type Secret struct {
	Key   string
	Value string
}

// Resolver fetches secrets by key. An absent secret is reported as
// (nil, nil); errors are reserved for failed round-trips.
type Resolver interface {
	GetSecret(ctx context.Context, key string) (*Secret, error)
}

// Static resolves secrets from a fixed in-memory map. Useful for tests
// and embedded deployments.
type Static map[string]string

// GetSecret implements Resolver.
func (s Static) GetSecret(_ context.Context, key string) (*Secret, error) {
	value, ok := s[key]
	if !ok {
		return nil, nil
	}
	return &Secret{Key: key, Value: value}, nil
}

// Env resolves secrets from process environment variables, optionally
// prefixed.
type Env struct {
	// Prefix is prepended to every key before the environment lookup.
	Prefix string
}

// GetSecret implements Resolver. Unset or empty variables are treated
// as absent.
func (e Env) GetSecret(_ context.Context, key string) (*Secret, error) {
	value := os.Getenv(e.Prefix + key)
	if value == "" {
		return nil, nil
	}
	return &Secret{Key: key, Value: value}, nil
}
