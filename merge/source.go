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

import "github.com/cdl-lang/rqe/model"

// This file makes *MergeIndexer itself satisfy SourceIndexer, so a
// target store can be chained as the source of a further MergeIndexer
// (spec §6 "a mapping's source is typically a RootQueryResult or
// another MergeIndexer"). Target element ids are unique per target
// path but, unlike a primary source store, a MergeIndexer keeps no
// single global id->path index; these methods scan the bookkeeping
// AddProjMatches/extendDominance already maintain rather than keeping
// a second redundant index in sync.

// GetEntry implements query.GenericIndexer by scanning the target
// paths this indexer has ever created a node for.
func (idx *MergeIndexer) GetEntry(id model.ElementID) (model.DataElement, bool) {
	idx.mu.Lock()
	paths := idx.targetNodes.PathIDs()
	idx.mu.Unlock()

	for _, p := range paths {
		node, ok := idx.targetNodes.Get(p)
		if !ok {
			continue
		}
		if entry, ok := node.Get(id); ok {
			return model.DataElement{ID: id, PathID: p, Type: entry.Type, Key: entry.Key, HasAttrs: entry.HasAttrs}, true
		}
	}
	return model.DataElement{}, false
}

// GetBaseIdentity returns id's identity. A MergeIndexer does not keep
// a per-target-id identity table of its own (identity merging happens
// once, at the group that owns the identity, via MergeGroup.idNodeTable);
// a further chained merge that needs base identity falls back to the
// target id itself, matching model.DefaultIdentity's role as the
// no-richer-identity-available case.
func (idx *MergeIndexer) GetBaseIdentity(id model.ElementID) model.Identity {
	return model.DefaultIdentity(id)
}

// GetDirectChildDataElements returns targetId's direct children at
// childPathId (or at any path, if childPathId is zero): both the
// nodes dominance extension pulled in under it, and any node this
// indexer separately merged with targetId recorded as its dominating
// id.
func (idx *MergeIndexer) GetDirectChildDataElements(dominatingID model.ElementID, childPathID model.PathID) []model.ElementID {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	seen := make(map[model.ElementID]bool)
	var out []model.ElementID
	add := func(path model.PathID, id model.ElementID) {
		if childPathID != 0 && path != childPathID {
			return
		}
		if seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}

	for _, ref := range idx.extensions[dominatingID] {
		add(ref.path, ref.targetID)
	}
	for sourceID, parentID := range idx.dominatingIDBySource {
		if parentID != dominatingID {
			continue
		}
		targetID, ok := idx.targetIDBySource[sourceID]
		if !ok {
			continue
		}
		path := idx.pathOfTarget(targetID)
		if path == 0 {
			continue
		}
		add(path, targetID)
	}
	return out
}

// GetDominatedNodes returns the elements at sourcePathID (a target
// path of this indexer, from the chained consumer's point of view)
// dominated, directly or transitively, by any of dominatingIDs. It
// walks the dominatingIDBySource links this indexer already maintains
// rather than a stored parent pointer, since a MergeIndexer's target
// store has no richer notion of ancestry than "which dominating id
// each mapped element was merged under." anchorPathId names the
// common-ancestor path the caller anchors the walk at; it needs no
// separate handling here since dominatingIDBySource links are already
// scoped to this indexer's own mapping chains.
func (idx *MergeIndexer) GetDominatedNodes(sourcePathID model.PathID, dominatingIDs []model.ElementID, anchorPathID model.PathID) []model.ElementID {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	frontier := make(map[model.ElementID]bool, len(dominatingIDs))
	for _, id := range dominatingIDs {
		frontier[id] = true
	}

	node, hasPath := idx.targetNodes.Get(sourcePathID)
	seen := make(map[model.ElementID]bool)
	var out []model.ElementID

	for changed := true; changed; {
		changed = false
		for sourceID, parentID := range idx.dominatingIDBySource {
			if !frontier[parentID] {
				continue
			}
			targetID, ok := idx.targetIDBySource[sourceID]
			if !ok || seen[targetID] {
				continue
			}
			seen[targetID] = true
			frontier[targetID] = true
			changed = true
			if hasPath {
				if _, ok := node.Get(targetID); ok {
					out = append(out, targetID)
				}
			}
		}
	}
	return out
}

// MonitorSubTree is a no-op: a chained MergeIndexer always keeps every
// mapped node live for as long as its own mappings reference it, so it
// has nothing extra to retain on behalf of a downstream sub-tree
// monitor request.
func (idx *MergeIndexer) MonitorSubTree(id model.ElementID, on bool) {}

// pathOfTarget finds which target path currently holds targetID.
// Callers must already hold idx.mu.
func (idx *MergeIndexer) pathOfTarget(targetID model.ElementID) model.PathID {
	for _, p := range idx.targetNodes.PathIDs() {
		node, ok := idx.targetNodes.Get(p)
		if !ok {
			continue
		}
		if _, ok := node.Get(targetID); ok {
			return p
		}
	}
	return 0
}
