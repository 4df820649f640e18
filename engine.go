// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rqe wires the model, query, refresh, and merge packages into
// a single reactive query engine instance: one shared PathAllocator,
// a RefreshController driving intersection-tree refresh, and any
// number of named MergeIndexer targets.
package rqe

import (
	"sync"

	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/cdl-lang/rqe/merge"
	"github.com/cdl-lang/rqe/model"
	"github.com/cdl-lang/rqe/query"
	"github.com/cdl-lang/rqe/refresh"
)

// Engine is the top-level handle an embedding application holds: it
// owns the path allocator shared by every query tree and target store
// registered against it, plus the refresh controller that drives
// query evaluation.
type Engine struct {
	mu sync.Mutex

	cfg    Config
	log    *logrus.Entry
	tracer opentracing.Tracer

	paths   model.PathAllocator
	refresh *refresh.RefreshController

	roots   map[string]query.ChildNode
	targets map[string]*merge.MergeIndexer
}

// NewEngine constructs an Engine from cfg. tracer may be nil, in which
// case the global opentracing tracer is used (matching every other
// component in this module).
func NewEngine(cfg Config, tracer opentracing.Tracer) *Engine {
	if tracer == nil {
		tracer = opentracing.GlobalTracer()
	}
	log := cfg.Logger()
	return &Engine{
		cfg:     cfg,
		log:     log,
		tracer:  tracer,
		paths:   model.NewPathAllocator(),
		refresh: refresh.NewRefreshController(log, tracer),
		roots:   make(map[string]query.ChildNode),
		targets: make(map[string]*merge.MergeIndexer),
	}
}

// Paths returns the engine's shared path allocator, the external
// collaborator every query tree and merge target interns attribute
// paths through.
func (e *Engine) Paths() model.PathAllocator { return e.paths }

// RegisterRoot names root so RefreshAll can drive its refresh cycle
// alongside every other registered query tree.
func (e *Engine) RegisterRoot(name string, root query.ChildNode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.roots[name] = root
}

// RefreshQuery drives the three-phase refresh for the named root
// (spec §4.2, §6 "refreshQuery(rootNode)").
func (e *Engine) RefreshQuery(name string) {
	e.mu.Lock()
	root, ok := e.roots[name]
	e.mu.Unlock()
	if !ok {
		return
	}
	e.refresh.RefreshQuery(root)
}

// RefreshAll drives every registered root's refresh cycle.
func (e *Engine) RefreshAll() {
	e.mu.Lock()
	roots := make([]query.ChildNode, 0, len(e.roots))
	for _, r := range e.roots {
		roots = append(roots, r)
	}
	e.mu.Unlock()
	for _, r := range roots {
		e.refresh.RefreshQuery(r)
	}
}

// NewTarget creates and registers a MergeIndexer named name, the
// in-process store for merging one or more projection streams into a
// unified target tree (spec §4.3, §4.4).
func (e *Engine) NewTarget(name string) *merge.MergeIndexer {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := merge.NewMergeIndexer(e.paths, e.tracer, e.log.WithField("target", name))
	e.targets[name] = idx
	return idx
}

// Target returns the named target store, if registered.
func (e *Engine) Target(name string) (*merge.MergeIndexer, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, ok := e.targets[name]
	return idx, ok
}
