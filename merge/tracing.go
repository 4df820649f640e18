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

package merge

import (
	"sync"

	"github.com/opentracing/opentracing-go"

	"github.com/cdl-lang/rqe/model"
)

// pathTracer tracks which target paths are "active" per spec §4.4: a
// target path is active if either (a) a downstream consumer is
// registered (tracing) or (b) some target node there is within a
// monitored sub-tree. Registering a consumer opens an opentracing span
// for that path; releasing it finishes the span. This gives path
// activation the same start/stop shape the teacher uses opentracing
// for around query execution (enginetest/engine_test.go).
type pathTracer struct {
	mu       sync.Mutex
	tracer   opentracing.Tracer
	spans    map[model.PathID]opentracing.Span
	refCount map[model.PathID]int
	monitors map[model.PathID]int
}

func newPathTracer(tracer opentracing.Tracer) *pathTracer {
	if tracer == nil {
		tracer = opentracing.GlobalTracer()
	}
	return &pathTracer{
		tracer:   tracer,
		spans:    make(map[model.PathID]opentracing.Span),
		refCount: make(map[model.PathID]int),
		monitors: make(map[model.PathID]int),
	}
}

// Activate registers a downstream consumer at pathID, returning true
// the first time this makes pathID active (a back-fill is then due).
func (p *pathTracer) Activate(pathID model.PathID) (becameActive bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	wasActive := p.activeLocked(pathID)
	p.refCount[pathID]++
	if p.refCount[pathID] == 1 {
		p.spans[pathID] = p.tracer.StartSpan("target_path_trace")
		p.spans[pathID].SetTag("path_id", uint64(pathID))
	}
	return !wasActive && p.activeLocked(pathID)
}

// Deactivate releases one consumer registration at pathID, returning
// true if pathID became inactive as a result (a flush is then due,
// except for nodes in monitored sub-trees).
func (p *pathTracer) Deactivate(pathID model.PathID) (becameInactive bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refCount[pathID] == 0 {
		return false
	}
	p.refCount[pathID]--
	if p.refCount[pathID] == 0 {
		delete(p.refCount, pathID)
		if span, ok := p.spans[pathID]; ok {
			span.Finish()
			delete(p.spans, pathID)
		}
	}
	return !p.activeLocked(pathID)
}

// SetMonitored marks pathID as holding (on=true) or no longer holding
// (on=false) a node within a monitored sub-tree.
func (p *pathTracer) SetMonitored(pathID model.PathID, on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if on {
		p.monitors[pathID]++
	} else if p.monitors[pathID] > 0 {
		p.monitors[pathID]--
		if p.monitors[pathID] == 0 {
			delete(p.monitors, pathID)
		}
	}
}

// Active reports whether pathID is currently active.
func (p *pathTracer) Active(pathID model.PathID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeLocked(pathID)
}

// HasConsumer reports whether pathID currently has at least one
// registered downstream consumer, independent of sub-tree monitoring.
func (p *pathTracer) HasConsumer(pathID model.PathID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refCount[pathID] > 0
}

// HasMonitor reports whether pathID currently holds a node within a
// monitored sub-tree, independent of downstream consumer registration.
func (p *pathTracer) HasMonitor(pathID model.PathID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.monitors[pathID] > 0
}

func (p *pathTracer) activeLocked(pathID model.PathID) bool {
	return p.refCount[pathID] > 0 || p.monitors[pathID] > 0
}
