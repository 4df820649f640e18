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

// RemoveSubNode implements spec §4.1 "Sub-node removal":
// updateQueryAfterNodeRemoval(subNode), orthogonal to the normal
// refresh cycle. It suspends the node, removes the sub-node's
// match-points and matches using the sub-node's pre-removal state,
// and unsuspends. A selection<->projection status change caused by the
// removal is not reported to the parent; the parent only receives the
// full-match delta that unsuspend propagates.
func (n *IntersectionNode) RemoveSubNode(sub ChildNode) {
	n.suspend()

	wasProjection := sub.IsProjection()
	preRemovalMatchPoints := sub.MatchPoints()
	preRemovalMatches := sub.Matches()

	for _, pathID := range preRemovalMatchPoints {
		for _, p := range n.pathChain(pathID) {
			if err := n.matchPoints.Remove(p); err != nil {
				assertOrPanic(false, err)
			}
			if wasProjection && n.projMatchPoints != nil {
				_ = n.projMatchPoints.Remove(p)
			}
		}
	}

	n.removeOneMatchBatch(preRemovalMatches)

	delete(n.subNodeByID, sub.ID())
	for i, s := range n.subNodes {
		if s.ID() == sub.ID() {
			n.subNodes = append(n.subNodes[:i], n.subNodes[i+1:]...)
			break
		}
	}
	if n.subNodeCount > 0 {
		n.subNodeCount--
	}
	n.fullMatchCount = n.subNodeCount

	// Handle "projections-must-add-matches" going false: if no
	// sub-node is left that is both a selection and a projection, this
	// node no longer needs to fold projection matches into the plain
	// matches table as well.
	if !n.hasSelectionProjectionSubNode() {
		n.maxCountIsFullMatch = true
	}

	n.unsuspend()
}

func (n *IntersectionNode) removeOneMatchBatch(ids []model.ElementID) {
	for _, id := range ids {
		if _, ok := n.matches[id]; ok {
			n.removeOneMatch(id, 1)
		}
	}
}

func (n *IntersectionNode) hasSelectionProjectionSubNode() bool {
	for _, s := range n.subNodes {
		if ip, ok := s.(interface{ IsSelectionProjection() bool }); ok && s.IsProjection() && ip.IsSelectionProjection() {
			return true
		}
	}
	return false
}
