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

package query

import "github.com/cdl-lang/rqe/model"

// NodeID identifies a query-calc node within a query tree (spec §9:
// "arena-allocated nodes referenced by integer IDs, with explicit
// parentId back-pointers"). Nodes are held directly via the ChildNode
// interface rather than indirected through a separate arena table —
// Go's garbage collector makes the original's cycle concerns moot, so
// the ID exists for identification/logging, not for indirection.
type NodeID uint64

// ResultID and ProjID identify a downstream projection consumer and
// its projection path within that consumer, matching the
// (resultId, projId) pairing used throughout spec §4/§6.
type ResultID uint64
type ProjID uint64

// GenericIndexer is the external "generic indexer base" collaborator
// (spec §1 Out of scope): it exposes data-element lookup, keyed by
// ElementID, sufficient for IntersectionNode to discover an element's
// path and dominating element during raising/lowering.
type GenericIndexer interface {
	GetEntry(id model.ElementID) (model.DataElement, bool)
}

// ParentNode is what a sub-node calls into on its parent. An
// IntersectionNode implements it; so does any terminal root consumer.
type ParentNode interface {
	AddMatches(elementIDs []model.ElementID, source ChildNode)
	RemoveMatches(elementIDs []model.ElementID, source ChildNode)
	AddToMatchPoints(pathID model.PathID, source ChildNode)
	RemoveFromMatchPoints(pathID model.PathID, source ChildNode)
}

// ProjParentNode is the projection half of ParentNode, implemented by
// anything that can receive addProjMatches/removeProjMatches from a
// sub-node (an IntersectionNode, or a terminal RootQueryResult).
type ProjParentNode interface {
	AddProjMatches(elementIDs []model.ElementID, resultID ResultID, projID ProjID)
	RemoveProjMatches(elementIDs []model.ElementID, resultID ResultID, projID ProjID)
}

// ChildNode is what an IntersectionNode's sub-node must expose to its
// parent during query refresh (spec §4.2, §1 Out of scope: "simple
// query terminal nodes", "negation nodes", "union nodes" — we
// implement the interface they all satisfy, not their own matching
// logic). An IntersectionNode is itself a ChildNode when nested inside
// another intersection.
type ChildNode interface {
	ID() NodeID
	PathID() model.PathID
	IsProjection() bool

	// SetParent wires the sub-node to the parent that will receive its
	// AddMatches/RemoveMatches/AddProjMatches/RemoveProjMatches calls.
	SetParent(p ParentNode)

	// RefreshStructure discovers new sub-nodes and selection<->
	// projection transitions for this sub-tree (spec §4.1 phase 1).
	// becameProjection reports a selection-to-projection transition
	// specifically, since that also requires match-point bookkeeping.
	RefreshStructure() (structureChanged bool, becameProjection bool)

	// RefreshMatchPoints refreshes this sub-node's own match points
	// (spec §4.1 phase 2). newSinceLastRefresh is true the first time
	// this sub-node is seen.
	RefreshMatchPoints(newSinceLastRefresh bool)

	// RefreshMatches refreshes this sub-node's own matches (spec §4.1
	// phase 3).
	RefreshMatches(newSinceLastRefresh bool)

	Suspend()
	Unsuspend()

	// MatchPoints returns this sub-node's currently-registered match
	// points, used by a newly-discovered parent to seed its own table
	// (spec §4.1 "add existing match-points of new sub-nodes").
	MatchPoints() []model.PathID

	// Matches returns this sub-node's current full matches, used when
	// this sub-node is newly added to an intersection (spec §4.1
	// "add their pre-existing matches").
	Matches() []model.ElementID
}

// SimpleQueryNode is a minimal terminal leaf implementing ChildNode,
// standing in for the spec's "simple query terminal nodes" external
// collaborator. It holds a fixed, externally-managed match set and
// simply forwards it to its parent; it is not a query compiler, only
// enough of a stub to exercise IntersectionNode end to end.
type SimpleQueryNode struct {
	id       NodeID
	pathID   model.PathID
	parent   ParentNode
	matches  map[model.ElementID]struct{}
	suspended bool
}

// NewSimpleQueryNode creates a terminal leaf at pathID.
func NewSimpleQueryNode(id NodeID, pathID model.PathID) *SimpleQueryNode {
	return &SimpleQueryNode{id: id, pathID: pathID, matches: make(map[model.ElementID]struct{})}
}

func (s *SimpleQueryNode) ID() NodeID             { return s.id }
func (s *SimpleQueryNode) PathID() model.PathID    { return s.pathID }
func (s *SimpleQueryNode) IsProjection() bool      { return false }
func (s *SimpleQueryNode) SetParent(p ParentNode)  { s.parent = p }
func (s *SimpleQueryNode) Suspend()                { s.suspended = true }
func (s *SimpleQueryNode) Unsuspend()              { s.suspended = false }

func (s *SimpleQueryNode) RefreshStructure() (bool, bool) { return false, false }
func (s *SimpleQueryNode) RefreshMatchPoints(bool)        {}
func (s *SimpleQueryNode) RefreshMatches(bool)            {}

func (s *SimpleQueryNode) MatchPoints() []model.PathID {
	return []model.PathID{s.pathID}
}

func (s *SimpleQueryNode) Matches() []model.ElementID {
	out := make([]model.ElementID, 0, len(s.matches))
	for id := range s.matches {
		out = append(out, id)
	}
	return out
}

// AddMatches is the public entry a test harness or data-change
// notification calls to report new matches on this leaf; it forwards
// to the parent, as spec §1 describes of simple query terminal nodes
// ("expose: addMatches/removeMatches to their parent").
func (s *SimpleQueryNode) AddMatches(elementIDs []model.ElementID) {
	for _, id := range elementIDs {
		s.matches[id] = struct{}{}
	}
	if s.parent != nil {
		s.parent.AddMatches(elementIDs, s)
	}
}

// RemoveMatches is the inverse of AddMatches.
func (s *SimpleQueryNode) RemoveMatches(elementIDs []model.ElementID) {
	for _, id := range elementIDs {
		delete(s.matches, id)
	}
	if s.parent != nil {
		s.parent.RemoveMatches(elementIDs, s)
	}
}

// NegationNode is a minimal stand-in for the spec's negation-node
// external collaborator: it reports the complement of an inner
// node's matches is out of scope to compute here (that logic belongs
// to the negation node itself, per spec §1), so this stub only
// satisfies ChildNode to let it sit as an IntersectionNode sub-node in
// tests.
type NegationNode struct {
	SimpleQueryNode
}

// NewNegationNode creates a negation stub at pathID.
func NewNegationNode(id NodeID, pathID model.PathID) *NegationNode {
	return &NegationNode{SimpleQueryNode: *NewSimpleQueryNode(id, pathID)}
}

// UnionNode is a minimal stand-in for the spec's union-node external
// collaborator, analogous to NegationNode.
type UnionNode struct {
	SimpleQueryNode
}

// NewUnionNode creates a union stub at pathID.
func NewUnionNode(id NodeID, pathID model.PathID) *UnionNode {
	return &UnionNode{SimpleQueryNode: *NewSimpleQueryNode(id, pathID)}
}
