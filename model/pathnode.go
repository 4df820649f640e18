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

package model

import "sync"

// NodeEntry is what a PathNode records for each data element that
// lives at its path: the element's type tag, its store key, and
// whether it carries attribute children.
type NodeEntry struct {
	Type     string
	Key      interface{}
	HasAttrs bool
}

// PathNode holds, per path ID, the set of data elements living there
// plus the bookkeeping a store needs to garbage-collect and trace
// paths (spec §3 "PathNode", §4.4 "Path tracing").
type PathNode struct {
	mu sync.Mutex

	PathID PathID

	// nodes maps elementId -> {type, key, hasAttrs}.
	nodes map[ElementID]NodeEntry

	// children indexes child path-nodes by attribute, for attribute-
	// wise descent without re-allocating a path ID.
	children map[string]PathID

	traceActive    bool
	subTreeMonitor bool

	// explicitTarget counts groups (see package merge) that hold this
	// path as an explicit (non-extension) target, keeping the node
	// alive even with no nodes and no tracing (spec §3 "Lifecycle").
	explicitTargets int
}

// NewPathNode creates an empty path node for id.
func NewPathNode(id PathID) *PathNode {
	return &PathNode{
		PathID:   id,
		nodes:    make(map[ElementID]NodeEntry),
		children: make(map[string]PathID),
	}
}

// Set records or updates elementId's entry at this path node.
func (p *PathNode) Set(elementID ElementID, entry NodeEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes[elementID] = entry
}

// Get returns elementId's entry, if present.
func (p *PathNode) Get(elementID ElementID) (NodeEntry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.nodes[elementID]
	return e, ok
}

// Remove drops elementId's entry.
func (p *PathNode) Remove(elementID ElementID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.nodes, elementID)
}

// Len returns the number of data elements held at this path node.
func (p *PathNode) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.nodes)
}

// Elements returns a snapshot of the element IDs held at this path
// node.
func (p *PathNode) Elements() []ElementID {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ElementID, 0, len(p.nodes))
	for id := range p.nodes {
		out = append(out, id)
	}
	return out
}

// Child returns (allocating if needed) the attribute child's path ID,
// given an allocator to intern it with.
func (p *PathNode) Child(alloc PathAllocator, attr string) PathID {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.children[attr]; ok {
		return id
	}
	id := alloc.AllocatePathIdFromPath(p.PathID, []string{attr})
	p.children[attr] = id
	return id
}

// SetTraceActive sets or clears the trace-active flag (spec §4.4).
func (p *PathNode) SetTraceActive(active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.traceActive = active
}

// TraceActive reports the trace-active flag.
func (p *PathNode) TraceActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.traceActive
}

// SetSubTreeMonitored sets or clears the sub-tree-monitoring flag.
func (p *PathNode) SetSubTreeMonitored(monitored bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subTreeMonitor = monitored
}

// SubTreeMonitored reports the sub-tree-monitoring flag.
func (p *PathNode) SubTreeMonitored() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subTreeMonitor
}

// Active reports whether this path node is "active" per spec §4.4: it
// either has a registered consumer (trace active) or some target node
// there is within a monitored sub-tree.
func (p *PathNode) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.traceActive || p.subTreeMonitor
}

// RetainExplicitTarget / ReleaseExplicitTarget track how many groups
// hold this path node as an explicit mapping target, per spec §3
// lifecycle ("no group has it as an explicit target").
func (p *PathNode) RetainExplicitTarget() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.explicitTargets++
}

func (p *PathNode) ReleaseExplicitTarget() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.explicitTargets > 0 {
		p.explicitTargets--
	}
}

// Removable reports whether this path node may be garbage collected:
// untraced, unmonitored, holding no nodes, and no group has it as an
// explicit target (spec §3 "Lifecycle").
func (p *PathNode) Removable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.traceActive && !p.subTreeMonitor && len(p.nodes) == 0 && p.explicitTargets == 0
}

// PathNodeTable is a path-indexed table of PathNodes, created on
// demand, shared by a DataModel-backed store (source or target).
type PathNodeTable struct {
	mu    sync.Mutex
	nodes map[PathID]*PathNode
}

// NewPathNodeTable returns an empty path-node table.
func NewPathNodeTable() *PathNodeTable {
	return &PathNodeTable{nodes: make(map[PathID]*PathNode)}
}

// GetOrCreate returns the path node for id, creating it if absent.
func (t *PathNodeTable) GetOrCreate(id PathID) *PathNode {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok {
		n = NewPathNode(id)
		t.nodes[id] = n
	}
	return n
}

// Get returns the path node for id, if it already exists.
func (t *PathNodeTable) Get(id PathID) (*PathNode, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	return n, ok
}

// GC removes id's path node if it reports Removable().
func (t *PathNodeTable) GC(id PathID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n, ok := t.nodes[id]; ok && n.Removable() {
		delete(t.nodes, id)
	}
}

// PathIDs returns a snapshot of the path IDs currently tracked.
func (t *PathNodeTable) PathIDs() []PathID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PathID, 0, len(t.nodes))
	for id := range t.nodes {
		out = append(out, id)
	}
	return out
}
