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
	"github.com/sirupsen/logrus"

	"github.com/cdl-lang/rqe/model"
	"github.com/cdl-lang/rqe/query"
)

// AddProjMatches implements spec §4.4's addition pipeline: a
// projection reported matches at a (resultId, projId) mapping.
// newSourceIds is the raw set of source element IDs the projection's
// query-calc node just matched; dominatingIds (same length, may
// contain zero entries for root-level matches) is the dominating
// target element each one attaches under, as resolved by the caller
// against the already-merged parent level.
func (idx *MergeIndexer) AddProjMatches(newSourceIDs, dominatingIDs []model.ElementID, resultID query.ResultID, projID query.ProjID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	chain, ok := idx.mappingChains[MappingKey{ResultID: resultID, ProjID: projID}]
	if !ok || len(chain) == 0 {
		idx.log.WithFields(logrus.Fields{"result": resultID, "proj": projID}).Warn("addProjMatches for unknown mapping")
		return
	}
	maximal := chain[len(chain)-1]
	mapping := maximal.mappings[MappingKey{ResultID: resultID, ProjID: projID}]
	if mapping == nil {
		return
	}

	perGroup := maximal.AddSourceElements(newSourceIDs)
	// perGroup[0] is maximal's own newly-referenced subset; walk the
	// chain minimal..maximal to mirror spec §4.4 step 4 ("traverse the
	// chain from minimal to maximal").
	for i := 0; i < len(perGroup); i++ {
		g := chain[i] // chain is minimal..maximal, perGroup is maximal..minimal
		newIDs := perGroup[len(perGroup)-1-i]
		if len(newIDs) == 0 {
			continue
		}
		doms := dominatingIDsFor(newIDs, newSourceIDs, dominatingIDs)
		idx.mergeGroupAdd(g, mapping, newIDs, doms)
	}
}

// dominatingIDsFor projects the dominatingIds slice down to the subset
// of ids that passed a group's newly-referenced filter, preserving
// positional correspondence.
func dominatingIDsFor(ids, allIDs, allDoms []model.ElementID) []model.ElementID {
	if len(allDoms) == 0 {
		return nil
	}
	index := make(map[model.ElementID]model.ElementID, len(allIDs))
	for i, id := range allIDs {
		if i < len(allDoms) {
			index[id] = allDoms[i]
		}
	}
	out := make([]model.ElementID, len(ids))
	for i, id := range ids {
		out[i] = index[id]
	}
	return out
}

// mergeGroupAdd runs the priority-conflict/identity-merge core for a
// single group's newly-referenced source IDs (spec §4.4 steps 2-3:
// "non-root minimal target path resolves the dominating node" and
// "operator/operand raising and merging").
func (idx *MergeIndexer) mergeGroupAdd(g *MergeGroup, m *Mapping, sourceIDs, dominatingIDs []model.ElementID) []model.ElementID {
	targetIDs := g.TranslateSourceIds(g.Key.TargetPathID, sourceIDs, dominatingIDs, true)
	node := idx.targetNodes.GetOrCreate(g.Key.TargetPathID)

	var mappedTargets []model.ElementID
	for i, sourceID := range sourceIDs {
		entry, ok := m.SourceIndexer.GetEntry(sourceID)
		if !ok {
			continue
		}

		var dominatingID model.ElementID
		if i < len(dominatingIDs) {
			dominatingID = dominatingIDs[i]
		}
		targetID := targetIDs[i]

		if entry.IsOperator() {
			idx.mergeOperator(g, entry, sourceID, targetID, node)
			mappedTargets = append(mappedTargets, targetID)
			idx.targetIDBySource[sourceID] = targetID
			idx.dominatingIDBySource[sourceID] = dominatingID
			continue
		}

		key := dominanceKey{TargetPath: g.Key.TargetPathID, DominatingID: dominatingID}
		identity := m.SourceIndexer.GetBaseIdentity(sourceID)
		idKey, err := identity.Key()
		if err != nil {
			idx.log.WithError(err).Warn("identity key computation failed, using source id")
			idKey = sourceID
		}
		candidate := mappedNode{Priority: g.Key.Priority, GroupID: g.ID, SourceID: sourceID, TargetID: targetID}

		mapHere, evicted := idx.priorities.Resolve(key, candidate, idKey)
		for _, ev := range evicted {
			idx.unmapTarget(g, m, key, ev, node)
		}
		if !mapHere {
			continue
		}

		node.Set(targetID, model.NodeEntry{Type: entry.Type, Key: entry.Key, HasAttrs: entry.HasAttrs})
		mappedTargets = append(mappedTargets, targetID)
		idx.targetIDBySource[sourceID] = targetID
		idx.dominatingIDBySource[sourceID] = dominatingID

		if idx.paths.Active(g.Key.TargetPathID) {
			idx.extendDominance(g, m, sourceID, targetID)
		}
	}
	return mappedTargets
}

// mergeOperator preserves an operator/operand node (spec §4.4
// "Operators", invariant I7): the operator keeps its source's type and
// shares its target path with its operand children, recorded in
// operatorTable so removal/identity-update can find it again.
func (idx *MergeIndexer) mergeOperator(g *MergeGroup, entry model.DataElement, sourceID, targetID model.ElementID, node *model.PathNode) {
	node.Set(targetID, model.NodeEntry{Type: entry.Type, Key: entry.Key, HasAttrs: entry.HasAttrs})
	byPath, ok := idx.operatorTable[g.Key.TargetPathID]
	if !ok {
		byPath = make(map[model.ElementID]model.ElementID)
		idx.operatorTable[g.Key.TargetPathID] = byPath
	}
	byPath[sourceID] = targetID
}

// unmapTarget removes a node evicted by a priority-table resolution
// from the target store.
func (idx *MergeIndexer) unmapTarget(g *MergeGroup, m *Mapping, key dominanceKey, ev mappedNode, node *model.PathNode) {
	node.Remove(ev.TargetID)
	idx.retractSubTree(g, m, ev.TargetID)
	delete(idx.targetIDBySource, ev.SourceID)
	delete(idx.dominatingIDBySource, ev.SourceID)
}

// extensionRef records one node pulled into the target store by
// dominance extension, so it can be retracted later without a reverse
// child index (spec §4.4 "Extension paths").
type extensionRef struct {
	path     model.PathID
	sourceID model.ElementID
	targetID model.ElementID
}

// extendDominance implements spec §4.4's extension-path mechanism: once
// a node is newly mapped at an active path, its direct children at
// paths not marked non-extension are pulled in from the source
// indexer and merged too, recursively.
func (idx *MergeIndexer) extendDominance(g *MergeGroup, m *Mapping, sourceID, targetID model.ElementID) {
	children := m.SourceIndexer.GetDirectChildDataElements(sourceID, 0)
	for _, childID := range children {
		child, ok := m.SourceIndexer.GetEntry(childID)
		if !ok {
			continue
		}
		if idx.nonExtension[child.PathID] {
			continue
		}
		childNode := idx.targetNodes.GetOrCreate(child.PathID)
		childTargets := g.TranslateSourceIds(child.PathID, []model.ElementID{childID}, []model.ElementID{targetID}, true)
		childNode.Set(childTargets[0], model.NodeEntry{Type: child.Type, Key: child.Key, HasAttrs: child.HasAttrs})
		idx.extensions[targetID] = append(idx.extensions[targetID], extensionRef{path: child.PathID, sourceID: childID, targetID: childTargets[0]})

		if g.RetainSubTreeMonitor(childID) {
			m.SourceIndexer.MonitorSubTree(childID, true)
		}
		idx.paths.SetMonitored(child.PathID, true)
		childNode.SetSubTreeMonitored(true)

		idx.extendDominance(g, m, childID, childTargets[0])
	}
}

// AddExtensionMatches performs the same dominance-extension walk
// AddProjMatches triggers automatically, but on demand: it is called
// when a target path transitions from inactive to active (spec §4.4
// "Extension paths"), backfilling already-mapped parents' children.
func (idx *MergeIndexer) AddExtensionMatches(resultID query.ResultID, projID query.ProjID, parentTargetIDs []model.ElementID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	chain, ok := idx.mappingChains[MappingKey{ResultID: resultID, ProjID: projID}]
	if !ok || len(chain) == 0 {
		return
	}
	maximal := chain[len(chain)-1]
	m := maximal.mappings[MappingKey{ResultID: resultID, ProjID: projID}]
	if m == nil {
		return
	}
	for _, targetID := range parentTargetIDs {
		for sourceID, tid := range sourceIDsForTarget(maximal, targetID) {
			idx.extendDominance(maximal, m, sourceID, tid)
		}
	}
}

// sourceIDsForTarget inverts a group's sourceDataElements table to find
// the source IDs that map to targetID; used only by the on-demand
// extension path, an infrequent operation for which a linear scan is
// acceptable.
func sourceIDsForTarget(g *MergeGroup, targetID model.ElementID) map[model.ElementID]model.ElementID {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[model.ElementID]model.ElementID)
	for k, v := range g.sourceDataElements {
		if v == targetID {
			out[k.SourceID] = v
		}
	}
	return out
}

// RemoveExtensionMatches is the inverse of AddExtensionMatches: when a
// target path transitions from active to inactive and is not within a
// monitored sub-tree, the nodes it pulled in by extension may be
// dropped.
func (idx *MergeIndexer) RemoveExtensionMatches(resultID query.ResultID, projID query.ProjID, parentTargetIDs []model.ElementID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	chain, ok := idx.mappingChains[MappingKey{ResultID: resultID, ProjID: projID}]
	if !ok || len(chain) == 0 {
		return
	}
	maximal := chain[len(chain)-1]
	m := maximal.mappings[MappingKey{ResultID: resultID, ProjID: projID}]
	if m == nil {
		return
	}
	for _, targetID := range parentTargetIDs {
		for _, tid := range sourceIDsForTarget(maximal, targetID) {
			idx.retractSubTree(maximal, m, tid)
		}
	}
}

// retractSubTree removes every node dominance extension pulled in
// under targetID, recursively, using the extensions log built up by
// extendDominance, and releases the sub-tree monitors that extension
// registered for them.
func (idx *MergeIndexer) retractSubTree(g *MergeGroup, m *Mapping, targetID model.ElementID) {
	refs := idx.extensions[targetID]
	delete(idx.extensions, targetID)
	for _, ref := range refs {
		node := idx.targetNodes.GetOrCreate(ref.path)
		node.Remove(ref.targetID)
		idx.targetNodes.GC(ref.path)

		if g.ReleaseSubTreeMonitor(ref.sourceID) {
			m.SourceIndexer.MonitorSubTree(ref.sourceID, false)
		}
		idx.paths.SetMonitored(ref.path, false)
		node.SetSubTreeMonitored(idx.paths.HasMonitor(ref.path))

		idx.retractSubTree(g, m, ref.targetID)
	}
}

// RemoveProjMatches is the inverse of AddProjMatches (spec §4.4).
func (idx *MergeIndexer) RemoveProjMatches(removedSourceIDs []model.ElementID, resultID query.ResultID, projID query.ProjID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	chain, ok := idx.mappingChains[MappingKey{ResultID: resultID, ProjID: projID}]
	if !ok || len(chain) == 0 {
		return
	}
	maximal := chain[len(chain)-1]
	mapping := maximal.mappings[MappingKey{ResultID: resultID, ProjID: projID}]
	if mapping == nil {
		return
	}

	perGroup := maximal.RemoveSourceElements(removedSourceIDs)
	for i := len(perGroup) - 1; i >= 0; i-- {
		g := chain[i]
		fullyReleased := perGroup[len(perGroup)-1-i]
		if len(fullyReleased) == 0 {
			continue
		}
		idx.removeGroupElements(g, mapping, fullyReleased)
	}
}

func (idx *MergeIndexer) removeGroupElements(g *MergeGroup, m *Mapping, sourceIDs []model.ElementID) {
	node := idx.targetNodes.GetOrCreate(g.Key.TargetPathID)
	for _, sourceID := range sourceIDs {
		entry, hadEntry := m.SourceIndexer.GetEntry(sourceID)
		targetID, ok := idx.targetIDBySource[sourceID]
		if !ok {
			continue
		}
		delete(idx.targetIDBySource, sourceID)
		dominatingID := idx.dominatingIDBySource[sourceID]
		delete(idx.dominatingIDBySource, sourceID)

		node.Remove(targetID)
		idx.retractSubTree(g, m, targetID)

		if byPath, ok := idx.operatorTable[g.Key.TargetPathID]; ok {
			delete(byPath, sourceID)
		}
		if hadEntry && entry.IsOperator() {
			// Operators are not priority-mapped; nothing to promote.
			idx.targetNodes.GC(g.Key.TargetPathID)
			continue
		}

		key := dominanceKey{TargetPath: g.Key.TargetPathID, DominatingID: dominatingID}
		promoted := idx.priorities.RemoveMapped(key, targetID)
		idx.targetNodes.GC(g.Key.TargetPathID)

		for _, p := range promoted {
			winner, ok := idx.groupsByID[p.GroupID]
			if !ok {
				continue
			}
			winnerEntry, ok := m.SourceIndexer.GetEntry(p.SourceID)
			if !ok {
				continue
			}
			winnerTargets := winner.TranslateSourceIds(g.Key.TargetPathID, []model.ElementID{p.SourceID}, []model.ElementID{dominatingID}, true)
			winnerTargetID := winnerTargets[0]
			node.Set(winnerTargetID, model.NodeEntry{Type: winnerEntry.Type, Key: winnerEntry.Key, HasAttrs: winnerEntry.HasAttrs})
			idx.targetIDBySource[p.SourceID] = winnerTargetID
			idx.dominatingIDBySource[p.SourceID] = dominatingID
			if idx.paths.Active(g.Key.TargetPathID) {
				idx.extendDominance(winner, m, p.SourceID, winnerTargetID)
			}
		}
	}
}
