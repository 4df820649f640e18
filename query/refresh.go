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

// This file implements spec §4.1 "Query refresh — three phases" on
// IntersectionNode itself; package refresh's RefreshController only
// orders these three calls globally across a whole query tree.

// MarkNewSubNode flags sub as discovered since the last refresh cycle,
// for RefreshStructure/RefreshMatchPoints/RefreshMatches to pick up.
// AddSubNode calls this automatically for newly-registered sub-nodes.
func (n *IntersectionNode) MarkNewSubNode(sub ChildNode) {
	n.pendingNewSubNodes = append(n.pendingNewSubNodes, sub)
}

// MarkTransitionedToProjection flags sub as having become a projection
// since the last refresh cycle (spec §4.1 "selection→projection
// transitions").
func (n *IntersectionNode) MarkTransitionedToProjection(sub ChildNode) {
	n.pendingTransitioned = append(n.pendingTransitioned, sub)
}

// RefreshStructure implements ChildNode and spec §4.1 phase 1: it
// reports whether new sub-nodes or selection->projection transitions
// were discovered, and suspends the node if so and this is not the
// node's initial build.
func (n *IntersectionNode) RefreshStructure() (structureChanged bool, becameProjection bool) {
	structureChanged = len(n.pendingNewSubNodes) > 0
	becameProjection = len(n.pendingTransitioned) > 0

	if (structureChanged || becameProjection) && !n.initialBuild {
		n.suspend()
	}
	return structureChanged, becameProjection
}

// RefreshMatchPoints implements ChildNode and spec §4.1 phase 2.
func (n *IntersectionNode) RefreshMatchPoints(newSinceLastRefresh bool) {
	_ = newSinceLastRefresh
	before := n.matchPoints.Snapshot()
	beforeMax := n.matchPoints.Max()

	saved := n.subNodeCount
	n.subNodeCount += 2 // spec §4.1: prevent spurious maximum-count propagation mid-refresh

	for _, sub := range n.pendingNewSubNodes {
		for _, pid := range sub.MatchPoints() {
			for _, p := range n.pathChain(pid) {
				n.matchPoints.Add(p)
			}
		}
	}

	for _, sub := range n.pendingTransitioned {
		mustAddMatches := false
		if sp, ok := sub.(interface{ IsSelectionProjection() bool }); ok {
			mustAddMatches = sp.IsSelectionProjection()
		}
		for _, pid := range sub.MatchPoints() {
			for _, p := range n.pathChain(pid) {
				n.AddProjMatchPoint(p)
				if !mustAddMatches {
					_ = n.matchPoints.Remove(p)
				}
			}
		}
	}

	n.subNodeCount = saved
	n.fullMatchCount = n.subNodeCount
	n.selectMode()

	after := n.matchPoints.Snapshot()
	afterMax := n.matchPoints.Max()
	n.diffMatchPointsToParent(before, beforeMax, after, afterMax)
}

// diffMatchPointsToParent propagates newly-full-count and
// no-longer-full-count match points to the parent, which is how an
// intersection node's own presence as a match point becomes visible
// one level up (spec §4.1 "diff the before/after full-count
// match-points against the parent").
func (n *IntersectionNode) diffMatchPointsToParent(before map[model.PathID]uint32, beforeMax uint32, after map[model.PathID]uint32, afterMax uint32) {
	if n.parent == nil {
		return
	}
	for pid, c := range after {
		wasFull := before[pid] == beforeMax && beforeMax > 0
		isFull := c == afterMax && afterMax > 0
		if isFull && !wasFull {
			n.parent.AddToMatchPoints(n.pathID, n)
		}
	}
	for pid, c := range before {
		if _, stillThere := after[pid]; stillThere {
			continue
		}
		wasFull := c == beforeMax && beforeMax > 0
		if wasFull {
			n.parent.RemoveFromMatchPoints(n.pathID, n)
		}
	}
}

// RefreshMatches implements ChildNode and spec §4.1 phase 3: delete
// removed sub-node matches first (handled by the orthogonal
// RemoveSubNode path), add new selection/newly-projecting sub-nodes'
// pre-existing matches, then unsuspend.
func (n *IntersectionNode) RefreshMatches(newSinceLastRefresh bool) {
	_ = newSinceLastRefresh

	for _, sub := range n.pendingNewSubNodes {
		if matches := sub.Matches(); len(matches) > 0 {
			n.AddMatches(matches, sub)
		}
	}
	for _, sub := range n.pendingTransitioned {
		mustAddMatches := false
		if sp, ok := sub.(interface{ IsSelectionProjection() bool }); ok {
			mustAddMatches = sp.IsSelectionProjection()
		}
		if mustAddMatches {
			if matches := sub.Matches(); len(matches) > 0 {
				n.AddMatches(matches, sub)
			}
		}
	}

	n.pendingNewSubNodes = nil
	n.pendingTransitioned = nil
	n.initialBuild = false

	n.unsuspend()
}

// SubNodes (declared in intersection.go) implements the optional
// subNodeLister interface package refresh uses to walk the tree.
