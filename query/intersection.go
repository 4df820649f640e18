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

// Package query implements the intersection query-calculation node
// (spec §4.1): the algorithm that maintains the intersection of
// selections over a tree-structured data model with data-element
// raising, projection lowering, suspension, and match-point
// bookkeeping.
package query

import (
	"github.com/sirupsen/logrus"

	"github.com/cdl-lang/rqe/model"
)

// IntersectionNode maintains the set of data elements selected by the
// conjunction of its sub-nodes, per spec §4.1.
type IntersectionNode struct {
	id     NodeID
	pathID model.PathID
	source GenericIndexer
	paths  model.PathAllocator
	parent ParentNode
	log    *logrus.Entry

	subNodes    []ChildNode
	subNodeByID map[NodeID]ChildNode

	isProjection        bool
	maxCountIsFullMatch bool
	fullMatchCount      uint32
	subNodeCount        uint32

	matches         map[model.ElementID]uint32
	matchPoints     *model.MatchPointTable
	projMatchPoints *model.MatchPointTable
	raisedMatches   map[model.ElementID]map[model.PathID]*RaisedEntry
	projMatches     map[ResultID]map[model.ElementID]uint32

	fullMatches      map[model.ElementID]struct{}
	suspendedMatches map[model.ElementID]struct{}

	suspended bool
	mode      Mode

	initialBuild        bool
	pendingNewSubNodes  []ChildNode
	pendingTransitioned []ChildNode
}

// NewIntersectionNode creates a fresh, empty intersection node at
// pathID, reporting data element lookups through source. paths is the
// shared path allocator used to walk a sub-node's path up to pathID
// when registering match points (spec §3: a path-ID is a match point
// of this node iff it is a prefix of, or equal to, some sub-query's
// own path).
func NewIntersectionNode(id NodeID, pathID model.PathID, source GenericIndexer, paths model.PathAllocator) *IntersectionNode {
	n := &IntersectionNode{
		id:              id,
		pathID:          pathID,
		source:          source,
		paths:           paths,
		log:             logrus.WithField("component", "intersection").WithField("node", id),
		subNodeByID:     make(map[NodeID]ChildNode),
		matches:         make(map[model.ElementID]uint32),
		matchPoints:     model.NewMatchPointTable(),
		raisedMatches:   make(map[model.ElementID]map[model.PathID]*RaisedEntry),
		projMatches:     make(map[ResultID]map[model.ElementID]uint32),
		fullMatches:     make(map[model.ElementID]struct{}),
		maxCountIsFullMatch: true,
		initialBuild:    true,
	}
	n.selectMode()
	return n
}

// ID implements ChildNode.
func (n *IntersectionNode) ID() NodeID { return n.id }

// PathID implements ChildNode.
func (n *IntersectionNode) PathID() model.PathID { return n.pathID }

// IsProjection implements ChildNode.
func (n *IntersectionNode) IsProjection() bool { return n.isProjection }

// IsSelectionProjection reports whether this node is both a selection
// and a projection: it has selection sub-nodes that must still see
// their matches forwarded as well as projection sub-nodes (spec §6
// state query).
func (n *IntersectionNode) IsSelectionProjection() bool {
	return n.isProjection && !n.maxCountIsFullMatch
}

// IsGeneratingProjection reports whether this node itself originates
// projection matches (as opposed to merely forwarding a descendant's),
// i.e. it is a projection and lowering is active.
func (n *IntersectionNode) IsGeneratingProjection() bool {
	return n.isProjection && loweringRequired(n.isProjection, n.projMatchPoints)
}

// SubProjMustAddMatches reports whether this node's projecting
// sub-nodes must also add their matches as ordinary selection matches
// (true whenever this node is itself a selection-projection).
func (n *IntersectionNode) SubProjMustAddMatches() bool {
	return n.IsSelectionProjection()
}

// AddsProjMatchesToSubNodes reports whether this node lowers
// projection matches down into its sub-nodes.
func (n *IntersectionNode) AddsProjMatchesToSubNodes() bool {
	return loweringRequired(n.isProjection, n.projMatchPoints)
}

// SetParent implements ChildNode.
func (n *IntersectionNode) SetParent(p ParentNode) { n.parent = p }

// AddSubNode registers a new sub-node under this intersection. It does
// not itself perform the structural-refresh bookkeeping of spec §4.1
// phase 1 (that belongs to RefreshController); it wires the
// parent/child relationship, accounts subNodeCount and queues the
// sub-node (MarkNewSubNode) for the next refresh, the way the
// teacher's IndexRegistry.AddIndex wires a new resource into its
// lookup table before the caller marks it ready.
func (n *IntersectionNode) AddSubNode(c ChildNode) {
	c.SetParent(n)
	n.subNodes = append(n.subNodes, c)
	n.subNodeByID[c.ID()] = c
	n.subNodeCount++
	n.fullMatchCount = n.subNodeCount
	n.MarkNewSubNode(c)
}

// SubNodes returns the ordered list of sub-nodes.
func (n *IntersectionNode) SubNodes() []ChildNode { return n.subNodes }

// isFullMatch implements invariant I4: an element with the given
// count at pathID is a full match iff its count equals
// fullMatchCount, when maxCountIsFullMatch holds, or, for projection
// nodes, iff additionally pathID is a projection match point.
func (n *IntersectionNode) isFullMatch(count uint32, pathID model.PathID) bool {
	if count != n.fullMatchCount {
		return false
	}
	if n.maxCountIsFullMatch {
		return true
	}
	return n.isProjection && n.projMatchPoints != nil && n.projMatchPoints.Has(pathID)
}

// AddMatches implements the spec §4.1 core algorithm. source is the
// sub-node the matches arrived from.
func (n *IntersectionNode) AddMatches(elementIDs []model.ElementID, source ChildNode) {
	if n.suspended {
		// Suspended: accumulate counts only, no outward propagation
		// (spec §4.1 "State machine — Suspension").
		for _, id := range elementIDs {
			n.matches[id] = n.matches[id] + 1
		}
		return
	}
	for _, id := range elementIDs {
		n.addOneMatch(id, 1)
	}
}

func (n *IntersectionNode) addOneMatch(e model.ElementID, carryIn uint32) {
	cur := n.matches[e] + carryIn
	n.matches[e] = cur

	entry, ok := n.source.GetEntry(e)
	if !ok {
		return
	}

	mpCount := n.matchPoints.Count(entry.PathID)
	if cur != mpCount {
		// Not the first sub-query match on this path for e (or e's
		// path carries no match point at all, e.g. a stray id); no
		// propagation triggered by this add.
		return
	}

	if n.isFullMatch(cur, entry.PathID) {
		n.emitFullMatch(e)
		return
	}

	if !entry.HasParent() {
		return
	}
	parent := entry.ParentID

	pmap, ok := n.raisedMatches[parent]
	if !ok {
		pmap = make(map[model.PathID]*RaisedEntry)
		n.raisedMatches[parent] = pmap
	}

	if re, exists := pmap[entry.PathID]; exists {
		// This match point already raised a contribution to parent;
		// record the child but do not raise again (spec §4.1 step 3).
		if re.IsSet {
			re.Set[e] = struct{}{}
		} else {
			re.Count++
		}
		return
	}

	isProjPoint := n.isProjection && n.projMatchPoints != nil && n.projMatchPoints.Has(entry.PathID)
	re := &RaisedEntry{}
	if isProjPoint {
		re.IsSet = true
		re.Set = map[model.ElementID]struct{}{e: {}}
	} else {
		re.Count = 1
	}
	pmap[entry.PathID] = re

	n.addOneMatch(parent, mpCount)
}

func (n *IntersectionNode) emitFullMatch(e model.ElementID) {
	if _, already := n.fullMatches[e]; already {
		return
	}
	n.fullMatches[e] = struct{}{}
	if n.parent != nil {
		n.parent.AddMatches([]model.ElementID{e}, n)
	}
}

func (n *IntersectionNode) emitRemovedFullMatch(e model.ElementID) {
	if _, was := n.fullMatches[e]; !was {
		return
	}
	delete(n.fullMatches, e)
	if n.parent != nil {
		n.parent.RemoveMatches([]model.ElementID{e}, n)
	}
}

// RemoveMatches implements the exact inverse of AddMatches, tolerating
// the transient "count above match-point count" anomaly spec §4.1
// describes (an add-before-remove race on a replacement value).
func (n *IntersectionNode) RemoveMatches(elementIDs []model.ElementID, source ChildNode) {
	if n.suspended {
		for _, id := range elementIDs {
			if c, ok := n.matches[id]; ok {
				if c <= 1 {
					delete(n.matches, id)
				} else {
					n.matches[id] = c - 1
				}
			}
		}
		return
	}
	for _, id := range elementIDs {
		n.removeOneMatch(id, 1)
	}
}

func (n *IntersectionNode) removeOneMatch(e model.ElementID, carryOut uint32) {
	cur, ok := n.matches[e]
	if !ok {
		return
	}
	if carryOut > cur {
		// Transient anomaly (§4.1): tolerated silently.
		delete(n.matches, e)
		return
	}

	entry, found := n.source.GetEntry(e)
	mpCount := n.matchPoints.Count(pickPathID(found, entry))

	newCount := cur - carryOut
	if newCount == 0 {
		delete(n.matches, e)
	} else {
		n.matches[e] = newCount
	}

	if cur != mpCount {
		return
	}

	if !found {
		return
	}

	if n.isFullMatch(cur, entry.PathID) {
		n.emitRemovedFullMatch(e)
		return
	}

	if !entry.HasParent() {
		return
	}
	parent := entry.ParentID

	pmap, ok := n.raisedMatches[parent]
	if !ok {
		return
	}
	re, exists := pmap[entry.PathID]
	if !exists {
		return
	}

	if re.IsSet {
		delete(re.Set, e)
		if len(re.Set) > 0 {
			return
		}
	} else {
		if re.Count > 1 {
			re.Count--
			return
		}
	}

	delete(pmap, entry.PathID)
	if len(pmap) == 0 {
		delete(n.raisedMatches, parent)
	}
	n.removeOneMatch(parent, mpCount)
}

func pickPathID(found bool, entry model.DataElement) model.PathID {
	if !found {
		return 0
	}
	return entry.PathID
}

// AddToMatchPoints registers that source carries pathID, per spec §6.
// It recomputes the node's mode since raising/lowering requirements
// may have changed.
func (n *IntersectionNode) AddToMatchPoints(pathID model.PathID, source ChildNode) {
	_ = source
	n.matchPoints.Add(pathID)
	n.selectMode()
}

// RemoveFromMatchPoints is the inverse of AddToMatchPoints.
func (n *IntersectionNode) RemoveFromMatchPoints(pathID model.PathID, source ChildNode) {
	_ = source
	if err := n.matchPoints.Remove(pathID); err != nil {
		assertOrPanic(false, ErrMatchPointNotPresent.New(n.ID(), pathID))
	}
	n.selectMode()
}

// GetMatches returns the set of fully-matched element IDs (spec §6).
func (n *IntersectionNode) GetMatches() []model.ElementID {
	out := make([]model.ElementID, 0, len(n.fullMatches))
	for id := range n.fullMatches {
		out = append(out, id)
	}
	return out
}

// GetMatchesAsObj returns the same set, keyed for membership testing.
func (n *IntersectionNode) GetMatchesAsObj() map[model.ElementID]struct{} {
	out := make(map[model.ElementID]struct{}, len(n.fullMatches))
	for id := range n.fullMatches {
		out[id] = struct{}{}
	}
	return out
}

// GetFullyRaisedMatches returns the parent IDs that have received a
// raised contribution from every one of their tracked match points
// (i.e. entries in raisedMatches whose bookkeeping is complete) and
// are themselves full matches.
func (n *IntersectionNode) GetFullyRaisedMatches() []model.ElementID {
	out := make([]model.ElementID, 0, len(n.raisedMatches))
	for parent := range n.raisedMatches {
		if _, ok := n.fullMatches[parent]; ok {
			out = append(out, parent)
		}
	}
	return out
}

// GetProjMatches returns the projection matches held for resultID.
func (n *IntersectionNode) GetProjMatches(resultID ResultID) []model.ElementID {
	m := n.projMatches[resultID]
	out := make([]model.ElementID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}

// FilterMatches returns the subset of ids that are full matches.
func (n *IntersectionNode) FilterMatches(ids []model.ElementID) []model.ElementID {
	var out []model.ElementID
	for _, id := range ids {
		if _, ok := n.fullMatches[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// FilterProjMatches returns the subset of ids present in resultID's
// projection matches.
func (n *IntersectionNode) FilterProjMatches(ids []model.ElementID, resultID ResultID) []model.ElementID {
	m := n.projMatches[resultID]
	var out []model.ElementID
	for _, id := range ids {
		if _, ok := m[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Matches implements ChildNode: the node's current full matches.
func (n *IntersectionNode) Matches() []model.ElementID { return n.GetMatches() }

// MatchPoints implements ChildNode: the node's registered match
// points at the root path, signalling presence to a parent.
func (n *IntersectionNode) MatchPoints() []model.PathID {
	return []model.PathID{n.pathID}
}

// pathChain returns the sequence of path IDs from pid up to (and
// including) this node's own pathID, walking prefixes through paths.
// Spec §3's "Match point" definition: a path-ID is a match point of an
// internal query-calc node iff it carries data elements in the
// indexer and is a prefix of (or equal to) the path of some
// sub-query — so every path between a sub-node's own path and this
// node's path counts as a match point, not just the sub-node's path
// itself.
func (n *IntersectionNode) pathChain(pid model.PathID) []model.PathID {
	chain := []model.PathID{pid}
	for pid != n.pathID {
		prefix, ok := n.paths.GetPrefix(pid)
		if !ok {
			break
		}
		pid = prefix
		chain = append(chain, pid)
	}
	return chain
}

// Suspend / Unsuspend implement ChildNode and delegate to the
// unexported state-machine methods in suspend.go.
func (n *IntersectionNode) Suspend()   { n.suspend() }
func (n *IntersectionNode) Unsuspend() { n.unsuspend() }

// Suspended reports whether the node is currently suspended.
func (n *IntersectionNode) Suspended() bool { return n.suspended }

// Mode exposes the node's currently-selected dispatch mode, mostly for
// tests asserting spec invariant transitions.
func (n *IntersectionNode) Mode() Mode { return n.mode }
