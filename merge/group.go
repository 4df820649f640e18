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

	"github.com/mitchellh/hashstructure"

	"github.com/cdl-lang/rqe/model"
	"github.com/cdl-lang/rqe/query"
)

// GroupKey is the equivalence-class key of spec §4.3: two mappings
// belong to the same group iff these fields are all equal.
type GroupKey struct {
	SourceIndexerID        string
	PrefixGroupID          model.GroupID
	IsMaxGroup             bool
	IsIdentityGroup        bool
	SourcePathID           model.PathID
	TargetPathID           model.PathID
	Priority               int
	SourceIdentificationID uint64
	TargetIdentificationID uint64
}

// hash renders the key to a single comparable value via
// mitchellh/hashstructure, used as the lookup key in MergeIndexer's
// groupByKey table.
func (k GroupKey) hash() (uint64, error) {
	return hashstructure.Hash(k, nil)
}

// MappingKey identifies a single registered mapping: the downstream
// result and the projection within it that produced the mapping (spec
// §4.3 "mappings: mapping (resultId, projId) -> mapping-record").
type MappingKey struct {
	ResultID query.ResultID
	ProjID   query.ProjID
}

// Mapping is one registered (resultId, projId) -> group association,
// plus the parameters AddMapping was called with for it.
type Mapping struct {
	Key                    MappingKey
	SourceIndexer          SourceIndexer
	SourcePathID           model.PathID
	TargetPathID           model.PathID
	Priority               int
	SourceIdentificationID uint64
	TargetIdentificationID uint64
	IsIdentity             bool
	IdentityOnly           bool
}

// sourceTargetKey keys MergeGroup.sourceDataElements: spec §4.3
// "sourceId x targetPath x dominatingId -> targetId".
type sourceTargetKey struct {
	SourceID    model.ElementID
	TargetPath  model.PathID
	DominatingID model.ElementID
}

// identityKey keys MergeGroup.idNodeTable: spec §4.3
// "(sourceIdentity, parentIdentity?) -> identityNodeId".
type identityKey struct {
	SourceIdentity interface{}
	ParentIdentity interface{}
	HasParent      bool
}

// MergeGroup is the equivalence class of mappings described by spec
// §4.3. Groups form a chain from the minimal group (shortest paths,
// merging at the root) to the maximal group (longest paths, the one
// that receives raw source additions).
type MergeGroup struct {
	mu sync.Mutex

	ID  model.GroupID
	Key GroupKey

	mappings map[MappingKey]*Mapping

	// sourceNodes holds, for non-maximal groups, per-source reference
	// counts contributed by downstream additions (spec §4.3).
	sourceNodes map[model.ElementID]int

	// sourceDataElements translates (sourceId, targetPath, dominatingId)
	// to a target id when source-id collisions force a new target id
	// (spec §4.3).
	sourceDataElements map[sourceTargetKey]model.ElementID

	// idNodeTable maps (sourceIdentity, parentIdentity?) to an
	// identity-node id, populated only for identity groups.
	idNodeTable map[identityKey]model.ElementID

	// subTreeMonitors counts sub-tree monitor registrations per source
	// node this group has asked the source indexer to watch.
	subTreeMonitors map[model.ElementID]int

	next *MergeGroup // towards the maximal group
	prev *MergeGroup // towards the minimal group

	nextTargetID model.ElementID
}

// NewMergeGroup creates an empty group for key, identified by id.
func NewMergeGroup(id model.GroupID, key GroupKey) *MergeGroup {
	return &MergeGroup{
		ID:                 id,
		Key:                key,
		mappings:           make(map[MappingKey]*Mapping),
		sourceNodes:        make(map[model.ElementID]int),
		sourceDataElements: make(map[sourceTargetKey]model.ElementID),
		idNodeTable:        make(map[identityKey]model.ElementID),
		subTreeMonitors:    make(map[model.ElementID]int),
	}
}

// IsMaximal reports whether this is the chain's maximal group.
func (g *MergeGroup) IsMaximal() bool { return g.next == nil }

// IsMinimal reports whether this is the chain's minimal group.
func (g *MergeGroup) IsMinimal() bool { return g.prev == nil }

// Retain registers m's mapping under this group, reference-counting
// group membership the way the teacher's IndexRegistry reference-
// counts index usage (sql/index_test.go TestDeleteIndex_InUse).
func (g *MergeGroup) Retain(m *Mapping) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mappings[m.Key] = m
}

// Release deregisters key's mapping. It returns true if this was the
// group's last mapping (the caller must then destroy the group, per
// spec §4.3 "registration/deregistration is reference-counted and
// destroys the group on last removal").
func (g *MergeGroup) Release(key MappingKey) (destroyed bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.mappings, key)
	return len(g.mappings) == 0
}

// MappingCount reports how many mappings currently reference this
// group.
func (g *MergeGroup) MappingCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.mappings)
}

// retainSourceNode bumps sourceNodes[id]'s ref count, returning true
// the first time id becomes referenced (a "newly referenced" source
// id per spec §4.3 addSourceElements).
func (g *MergeGroup) retainSourceNode(id model.ElementID) (newlyReferenced bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := g.sourceNodes[id]
	g.sourceNodes[id] = c + 1
	return c == 0
}

// releaseSourceNode drops sourceNodes[id]'s ref count, returning true
// once it reaches zero (the source id is no longer referenced at all).
func (g *MergeGroup) releaseSourceNode(id model.ElementID) (noLongerReferenced bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := g.sourceNodes[id]
	if c <= 1 {
		delete(g.sourceNodes, id)
		return true
	}
	g.sourceNodes[id] = c - 1
	return false
}

// AddSourceElements implements spec §4.3 addSourceElements: starting
// from the maximal group (g is expected to be called on the maximal
// group of a mapping chain), it walks maximal->minimal collecting, per
// group, the subset of sourceIDs newly referenced at that group's
// source path. The result holds one list per group, maximal first; it
// carries no trailing array of dominating source IDs. Dominating IDs
// reach the groups only through the dominatingIDs argument that the
// caller of MergeIndexer.AddProjMatches supplies.
func (g *MergeGroup) AddSourceElements(sourceIDs []model.ElementID) [][]model.ElementID {
	var perGroup [][]model.ElementID
	for cur := g; cur != nil; cur = cur.prev {
		var newlyReferenced []model.ElementID
		for _, id := range sourceIDs {
			if cur.retainSourceNode(id) {
				newlyReferenced = append(newlyReferenced, id)
			}
		}
		perGroup = append(perGroup, newlyReferenced)
	}
	return perGroup
}

// RemoveSourceElements is the inverse of AddSourceElements.
func (g *MergeGroup) RemoveSourceElements(sourceIDs []model.ElementID) [][]model.ElementID {
	var perGroup [][]model.ElementID
	for cur := g; cur != nil; cur = cur.prev {
		var fullyReleased []model.ElementID
		for _, id := range sourceIDs {
			if cur.releaseSourceNode(id) {
				fullyReleased = append(fullyReleased, id)
			}
		}
		perGroup = append(perGroup, fullyReleased)
	}
	return perGroup
}

// IdentityUpdate is the result of MergeGroup.UpdateIdentity.
type IdentityUpdate struct {
	Added   []IdentityNodeRef
	Removed []model.ElementID
}

// IdentityNodeRef names a newly-added identity node and the parent
// identity it was keyed under, if any.
type IdentityNodeRef struct {
	IdentityNodeID model.ElementID
	ParentIdentity interface{}
	HasParent      bool
}

// UpdateIdentity implements spec §4.3's identity-group-only operation:
// elementIds changed to newIdentities; an entry is added to idNodeTable
// for each new equivalence class. Existing entries are never removed,
// so the returned Removed list is always empty.
func (g *MergeGroup) UpdateIdentity(elementIDs []model.ElementID, newIdentities []model.Identity, parentIdentity func(model.ElementID) (interface{}, bool)) (IdentityUpdate, error) {
	if !g.Key.IsIdentityGroup {
		return IdentityUpdate{}, nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	var out IdentityUpdate
	for i, id := range elementIDs {
		parentID, hasParent := parentIdentity(id)
		newKey, err := identityMapKey(newIdentities[i], parentID, hasParent)
		if err != nil {
			return out, err
		}
		if existing, ok := g.idNodeTable[newKey]; ok {
			// Already an identity node for this class; nothing to add.
			_ = existing
			continue
		}
		g.nextTargetID++
		nodeID := g.nextTargetID
		g.idNodeTable[newKey] = nodeID
		out.Added = append(out.Added, IdentityNodeRef{IdentityNodeID: nodeID, ParentIdentity: parentID, HasParent: hasParent})
	}
	return out, nil
}

func identityMapKey(id model.Identity, parentIdentity interface{}, hasParent bool) (identityKey, error) {
	k, err := id.Key()
	if err != nil {
		return identityKey{}, err
	}
	return identityKey{SourceIdentity: k, ParentIdentity: parentIdentity, HasParent: hasParent}, nil
}

// TranslateSourceIds implements spec §4.3 translateSourceIds: it
// allocates target IDs such that the same source ID under different
// dominating IDs gets distinct target IDs, while preserving source-ID
// identity where it is not contended (reuseSourceIfFree).
func (g *MergeGroup) TranslateSourceIds(targetPath model.PathID, sourceIDs, dominatingIDs []model.ElementID, reuseSourceIfFree bool) []model.ElementID {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]model.ElementID, len(sourceIDs))
	for i, sourceID := range sourceIDs {
		var dominatingID model.ElementID
		if i < len(dominatingIDs) {
			dominatingID = dominatingIDs[i]
		}
		k := sourceTargetKey{SourceID: sourceID, TargetPath: targetPath, DominatingID: dominatingID}
		if existing, ok := g.sourceDataElements[k]; ok {
			out[i] = existing
			continue
		}

		if reuseSourceIfFree && !g.sourceIDContended(sourceID, targetPath) {
			g.sourceDataElements[k] = sourceID
			out[i] = sourceID
			continue
		}

		if sourceID > g.nextTargetID {
			g.nextTargetID = sourceID
		}
		g.nextTargetID++
		out[i] = g.nextTargetID
		g.sourceDataElements[k] = out[i]
	}
	return out
}

// sourceIDContended reports whether sourceId is already mapped to a
// different target under a different dominating id at targetPath,
// which would force allocation of a fresh target id (spec §4.3:
// "the same source ID under different dominating IDs gets distinct
// target IDs").
func (g *MergeGroup) sourceIDContended(sourceID model.ElementID, targetPath model.PathID) bool {
	for k := range g.sourceDataElements {
		if k.SourceID == sourceID && k.TargetPath == targetPath {
			return true
		}
	}
	return false
}

// RetainSubTreeMonitor / ReleaseSubTreeMonitor reference-count a
// sub-tree monitor on a source node (spec §4.4: "Sub-tree monitors on
// source nodes are reference-counted per (group, targetPath,
// sourceId)" — the targetPath is implicit here since a MergeGroup has
// exactly one target path).
func (g *MergeGroup) RetainSubTreeMonitor(sourceID model.ElementID) (firstRetain bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := g.subTreeMonitors[sourceID]
	g.subTreeMonitors[sourceID] = c + 1
	return c == 0
}

func (g *MergeGroup) ReleaseSubTreeMonitor(sourceID model.ElementID) (lastRelease bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := g.subTreeMonitors[sourceID]
	if c <= 1 {
		delete(g.subTreeMonitors, sourceID)
		return true
	}
	g.subTreeMonitors[sourceID] = c - 1
	return false
}
