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

// EnableProjection turns this node into a projection node, per spec
// §4.1 ("projMatchPoints: only for projection nodes"). maxCountIsFullMatch
// controls invariant I4's branch (a)/(b): when false, a count equal to
// fullMatchCount is only a full match if its path is also a
// projection match point.
func (n *IntersectionNode) EnableProjection(maxCountIsFullMatch bool) {
	n.isProjection = true
	n.maxCountIsFullMatch = maxCountIsFullMatch
	if n.projMatchPoints == nil {
		n.projMatchPoints = model.NewMatchPointTable()
	}
	if n.projMatches == nil {
		n.projMatches = make(map[ResultID]map[model.ElementID]uint32)
	}
	n.selectMode()
}

// AddProjMatchPoint registers pathID as a match point inherited from a
// projection sub-query (spec §4.1 "projMatchPoints"). pureProjMatchPoints
// entries (present in projMatchPoints but absent from matchPoints) are
// derived on demand by PureProjMatchPoints rather than tracked
// separately, since matchPoints can change independently; recomputing
// is cheap at the table sizes this engine targets (one entry per
// distinct sub-query path).
func (n *IntersectionNode) AddProjMatchPoint(pathID model.PathID) {
	if n.projMatchPoints == nil {
		n.projMatchPoints = model.NewMatchPointTable()
	}
	n.projMatchPoints.Add(pathID)
	n.selectMode()
}

// RemoveProjMatchPoint is the inverse of AddProjMatchPoint.
func (n *IntersectionNode) RemoveProjMatchPoint(pathID model.PathID) {
	if n.projMatchPoints == nil {
		return
	}
	_ = n.projMatchPoints.Remove(pathID)
	n.selectMode()
}

// PureProjMatchPoints returns the projMatchPoints entries that are
// absent from matchPoints (spec §4.1 "pureProjMatchPoints").
func (n *IntersectionNode) PureProjMatchPoints() []model.PathID {
	if n.projMatchPoints == nil {
		return nil
	}
	var out []model.PathID
	for _, id := range n.projMatchPoints.PathIDs() {
		if !n.matchPoints.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// AddProjMatches implements spec §4.1's projection propagation and
// lowering. elementIDs are projection matches arriving either from a
// full match newly discovered on this node (the caller is n itself,
// via emitFullMatch-style bookkeeping done by the caller) or, for a
// projection-projection chain, forwarded from a child's own
// AddProjMatches call.
func (n *IntersectionNode) AddProjMatches(elementIDs []model.ElementID, resultID ResultID, projID ProjID) {
	if n.suspended || !n.isProjection {
		return
	}
	m, ok := n.projMatches[resultID]
	if !ok {
		m = make(map[model.ElementID]uint32)
		n.projMatches[resultID] = m
	}

	var newlyAdded []model.ElementID
	for _, id := range elementIDs {
		if m[id] == 0 {
			newlyAdded = append(newlyAdded, id)
		}
		m[id]++
	}

	if len(newlyAdded) == 0 {
		return
	}

	if n.parent != nil {
		if pp, ok := n.parent.(ProjParentNode); ok {
			pp.AddProjMatches(newlyAdded, resultID, projID)
		}
	}

	if n.AddsProjMatchesToSubNodes() {
		n.lower(newlyAdded, resultID, projID, true)
	}
}

// RemoveProjMatches is the inverse of AddProjMatches.
func (n *IntersectionNode) RemoveProjMatches(elementIDs []model.ElementID, resultID ResultID, projID ProjID) {
	if n.suspended || !n.isProjection {
		return
	}
	m, ok := n.projMatches[resultID]
	if !ok {
		return
	}

	var fullyRemoved []model.ElementID
	for _, id := range elementIDs {
		c, present := m[id]
		if !present {
			continue
		}
		if c <= 1 {
			delete(m, id)
			fullyRemoved = append(fullyRemoved, id)
		} else {
			m[id] = c - 1
		}
	}

	if len(fullyRemoved) == 0 {
		return
	}

	if n.parent != nil {
		if pp, ok := n.parent.(ProjParentNode); ok {
			pp.RemoveProjMatches(fullyRemoved, resultID, projID)
		}
	}

	if n.AddsProjMatchesToSubNodes() {
		n.lower(fullyRemoved, resultID, projID, false)
	}
}

// lower distributes a projection match on a dominating element down to
// the dominated selection matches it was raised from, per spec §4.1
// ("lowering: distributing a projection match on a dominating element
// down to its dominated selection matches") and the GLOSSARY entry for
// "Lowering". It walks the Set-tagged RaisedEntry recorded for each
// parent id when the match was originally raised through a projection
// match point, and forwards to the contributing children.
func (n *IntersectionNode) lower(parents []model.ElementID, resultID ResultID, projID ProjID, add bool) {
	bySub := make(map[NodeID][]model.ElementID)
	for _, parent := range parents {
		pmap, ok := n.raisedMatches[parent]
		if !ok {
			continue
		}
		for pathID, re := range pmap {
			if !re.IsSet {
				continue
			}
			_ = pathID
			for childID := range re.Set {
				sub := n.subNodeForElement(childID)
				if sub == nil {
					continue
				}
				bySub[sub.ID()] = append(bySub[sub.ID()], childID)
			}
		}
	}
	for id, ids := range bySub {
		sub := n.subNodeByID[id]
		if sub == nil {
			continue
		}
		if proj, ok := sub.(interface {
			AddProjMatches([]model.ElementID, ResultID, ProjID)
			RemoveProjMatches([]model.ElementID, ResultID, ProjID)
		}); ok {
			if add {
				proj.AddProjMatches(ids, resultID, projID)
			} else {
				proj.RemoveProjMatches(ids, resultID, projID)
			}
		}
	}
}

// subNodeForElement finds which registered sub-node owns childID's
// path, used by lower() to route a lowered match to the right child.
func (n *IntersectionNode) subNodeForElement(childID model.ElementID) ChildNode {
	entry, ok := n.source.GetEntry(childID)
	if !ok {
		return nil
	}
	for _, s := range n.subNodes {
		if s.PathID() == entry.PathID {
			return s
		}
	}
	return nil
}
