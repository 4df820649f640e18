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
	"sort"
	"sync"

	"github.com/cdl-lang/rqe/model"
)

// dominanceKey identifies one (targetPath, dominatingId) slot of the
// target store, the unit priority conflicts are resolved at (spec
// §4.4 "Priority conflict").
type dominanceKey struct {
	TargetPath   model.PathID
	DominatingID model.ElementID
}

// shelvedNode is a source node that lost a priority conflict, shelved
// under (dominatingId, priority, groupId, sourceIdentity) per spec
// §4.4.
type shelvedNode struct {
	Priority       int
	GroupID        model.GroupID
	SourceID       model.ElementID
	SourceIdentity interface{}
}

// mappedNode is a currently-mapped node at a dominanceKey.
type mappedNode struct {
	Priority       int
	GroupID        model.GroupID
	SourceID       model.ElementID
	TargetID       model.ElementID
	SourceIdentity interface{}
}

// PriorityTable implements spec §4.4/§4.3's priority-conflict
// resolution and §3 invariant I5: at any (targetPath, dominatingId),
// all mapped nodes share the maximum priority ever seen there; the
// rest sit in unmappedNodes.
type PriorityTable struct {
	mu sync.Mutex

	order DominanceOrder

	winningPriority map[dominanceKey]int
	mapped          map[dominanceKey]map[model.ElementID]mappedNode // by targetId
	unmapped        map[dominanceKey][]shelvedNode
}

// NewPriorityTable returns an empty priority table, breaking same-
// priority/same-target-id ties between distinct groups with
// FirstGroupOrder until SetOrder installs a different DominanceOrder.
func NewPriorityTable() *PriorityTable {
	return &PriorityTable{
		order:           FirstGroupOrder{},
		winningPriority: make(map[dominanceKey]int),
		mapped:          make(map[dominanceKey]map[model.ElementID]mappedNode),
		unmapped:        make(map[dominanceKey][]shelvedNode),
	}
}

// SetOrder installs the DominanceOrder used to break ties when two
// distinct groups resolve to the same target id at equal priority
// (spec §9 Open Question: multiple-group ordering combination).
func (t *PriorityTable) SetOrder(order DominanceOrder) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.order = order
}

// Resolve decides whether a candidate node should be mapped or
// shelved, per spec invariant I5. It returns the nodes that must be
// evicted to unmappedNodes (a strictly-higher candidate bumping the
// previous winners) alongside the mapping decision.
func (t *PriorityTable) Resolve(key dominanceKey, candidate mappedNode, identity interface{}) (mapHere bool, evicted []mappedNode) {
	t.mu.Lock()
	defer t.mu.Unlock()

	candidate.SourceIdentity = identity

	winning, hasWinner := t.winningPriority[key]
	switch {
	case !hasWinner || candidate.Priority > winning:
		// New top priority: evict current winners to unmapped, this
		// candidate becomes the sole winner so far.
		if hasWinner {
			for _, m := range t.mapped[key] {
				evicted = append(evicted, m)
				t.shelveLocked(key, shelvedNode{Priority: m.Priority, GroupID: m.GroupID, SourceID: m.SourceID, SourceIdentity: m.SourceIdentity})
			}
		}
		t.winningPriority[key] = candidate.Priority
		t.mapped[key] = map[model.ElementID]mappedNode{candidate.TargetID: candidate}
		return true, evicted

	case candidate.Priority == winning:
		if t.mapped[key] == nil {
			t.mapped[key] = make(map[model.ElementID]mappedNode)
		}
		if existing, ok := t.mapped[key][candidate.TargetID]; ok && existing.GroupID != candidate.GroupID &&
			t.order.Compare(candidate.GroupID, existing.GroupID) > 0 {
			// existing group precedes candidate's under the installed
			// order; the candidate loses the tie and is shelved, so the
			// winning group's node keeps the slot.
			t.shelveLocked(key, shelvedNode{Priority: candidate.Priority, GroupID: candidate.GroupID, SourceID: candidate.SourceID, SourceIdentity: candidate.SourceIdentity})
			return false, nil
		}
		t.mapped[key][candidate.TargetID] = candidate
		return true, nil

	default:
		t.shelveLocked(key, shelvedNode{Priority: candidate.Priority, GroupID: candidate.GroupID, SourceID: candidate.SourceID, SourceIdentity: candidate.SourceIdentity})
		return false, nil
	}
}

func (t *PriorityTable) shelveLocked(key dominanceKey, s shelvedNode) {
	t.unmapped[key] = append(t.unmapped[key], s)
}

// RemoveMapped removes a currently-mapped node. If it was the last
// node at its priority, the highest-priority shelved nodes (if any)
// are promoted and returned for the caller to actually merge.
func (t *PriorityTable) RemoveMapped(key dominanceKey, targetID model.ElementID) (promoted []shelvedNode) {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.mapped[key]
	if !ok {
		return nil
	}
	delete(m, targetID)
	if len(m) > 0 {
		return nil
	}

	delete(t.mapped, key)
	delete(t.winningPriority, key)

	shelved := t.unmapped[key]
	if len(shelved) == 0 {
		return nil
	}

	sort.Slice(shelved, func(i, j int) bool { return shelved[i].Priority > shelved[j].Priority })
	top := shelved[0].Priority
	var remaining []shelvedNode
	for _, s := range shelved {
		if s.Priority == top {
			promoted = append(promoted, s)
		} else {
			remaining = append(remaining, s)
		}
	}
	t.unmapped[key] = remaining
	t.winningPriority[key] = top
	return promoted
}

// RemoveShelved drops a shelved candidate (e.g. its source node was
// itself removed before ever being promoted).
func (t *PriorityTable) RemoveShelved(key dominanceKey, groupID model.GroupID, sourceID model.ElementID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	shelved := t.unmapped[key]
	out := shelved[:0]
	for _, s := range shelved {
		if s.GroupID == groupID && s.SourceID == sourceID {
			continue
		}
		out = append(out, s)
	}
	t.unmapped[key] = out
}

// UpdateShelvedIdentity rewrites the recorded identity of a shelved
// candidate in place, for use when the source's identity changes while
// it sits in unmappedNodes (spec §4.4 identity-update propagation).
func (t *PriorityTable) UpdateShelvedIdentity(key dominanceKey, groupID model.GroupID, sourceID model.ElementID, newIdentity interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	shelved := t.unmapped[key]
	for i, s := range shelved {
		if s.GroupID == groupID && s.SourceID == sourceID {
			shelved[i].SourceIdentity = newIdentity
		}
	}
}

// MappedAt returns the currently-mapped nodes at key.
func (t *PriorityTable) MappedAt(key dominanceKey) []mappedNode {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]mappedNode, 0, len(t.mapped[key]))
	for _, m := range t.mapped[key] {
		out = append(out, m)
	}
	return out
}

// UnmappedAt returns the currently-shelved candidates at key.
func (t *PriorityTable) UnmappedAt(key dominanceKey) []shelvedNode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]shelvedNode{}, t.unmapped[key]...)
}
