//
// Tencent is pleased to support the open source community by making trpc-operator-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-operator-go is licensed under the Apache License Version 2.0.
//
//

// Package dataset defines the dataset/view collaborator that execution
// contexts read through. The runtime never interprets dataset contents
// itself; it only resolves handles for operators to use.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when a dataset name cannot be resolved.
var ErrNotFound = errors.New("dataset not found")

// Dataset is a handle to a named dataset.
type Dataset struct {
	name string
}

// Name returns the dataset name.
func (d *Dataset) Name() string { return d.name }

// View is a read-only view over a dataset, reconstructed from
// serialized stages each time it is requested.
type View struct {
	datasetName string
	stages      []map[string]any
	extended    []map[string]any
	filters     map[string]any
}

// DatasetName returns the name of the underlying dataset.
func (v *View) DatasetName() string { return v.datasetName }

// Stages returns the serialized view stages.
func (v *View) Stages() []map[string]any { return v.stages }

// ExtendedStages returns the serialized extended stages.
func (v *View) ExtendedStages() []map[string]any { return v.extended }

// Filters returns the active filters.
func (v *View) Filters() map[string]any { return v.filters }

// Resolver loads datasets and reconstructs views from their serialized
// form. Implementations must be safe for concurrent use; view
// reconstruction may be expensive and is performed on every call.
type Resolver interface {
	// LoadDataset resolves a dataset handle by name.
	LoadDataset(ctx context.Context, name string) (*Dataset, error)

	// BuildView reconstructs a view over the named dataset from
	// serialized stages, extended stages and filters.
	BuildView(ctx context.Context, datasetName string, stages, extendedStages []map[string]any,
		filters map[string]any) (*View, error)
}

// InMemory is a Resolver backed by a process-local set of dataset
// names. It backs tests and embedded single-process deployments.
type InMemory struct {
	mu       sync.RWMutex
	datasets map[string]*Dataset
}

// NewInMemory creates an empty in-memory resolver.
func NewInMemory() *InMemory {
	return &InMemory{datasets: make(map[string]*Dataset)}
}

// Add registers a dataset by name and returns its handle. Adding an
// existing name returns the existing handle.
func (m *InMemory) Add(name string) *Dataset {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.datasets[name]; ok {
		return d
	}
	d := &Dataset{name: name}
	m.datasets[name] = d
	return d
}

// LoadDataset implements Resolver.
func (m *InMemory) LoadDataset(_ context.Context, name string) (*Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.datasets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return d, nil
}

// BuildView implements Resolver. The dataset must exist; the view is
// rebuilt from the serialized inputs on every call and never cached.
func (m *InMemory) BuildView(ctx context.Context, datasetName string, stages, extendedStages []map[string]any,
	filters map[string]any) (*View, error) {
	if _, err := m.LoadDataset(ctx, datasetName); err != nil {
		return nil, err
	}
	return &View{
		datasetName: datasetName,
		stages:      stages,
		extended:    extendedStages,
		filters:     filters,
	}, nil
}
