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
	"fmt"
	"sync"

	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/cdl-lang/rqe/model"
	"github.com/cdl-lang/rqe/query"
)

// DominanceOrder breaks ties when more than one group maps under the
// same target path (spec §9 Open Question: "the re-architecture
// should preserve the single-group semantics exactly and leave the
// multi-group combination as a future extension point behind an
// interface"). FirstGroupOrder is the only implementation provided,
// reproducing the teacher-observed single-group behavior.
type DominanceOrder interface {
	Compare(a, b model.GroupID) int
}

// FirstGroupOrder orders by smallest group ID, matching the source's
// observed (if arbitrary, per spec's own TODO) behavior of picking the
// smallest group ID's ordering.
type FirstGroupOrder struct{}

func (FirstGroupOrder) Compare(a, b model.GroupID) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// PathPair names one step of a mapping chain: the source path and its
// corresponding target path, minimal group (shortest paths) first.
type PathPair struct {
	SourcePathID model.PathID
	TargetPathID model.PathID
}

// MergeIndexer is the target store that integrates one or more
// projection streams (spec §4.4). It resolves priority conflicts,
// maintains the unmapped-node table, and keeps operator bookkeeping
// needed for identity-based merge-under-dominance.
type MergeIndexer struct {
	mu sync.Mutex

	log    *logrus.Entry
	tracer opentracing.Tracer
	alloc  model.PathAllocator

	targetNodes *model.PathNodeTable
	priorities  *PriorityTable
	paths       *pathTracer
	order       DominanceOrder

	groupByHash   map[uint64]*MergeGroup
	groupsByID    map[model.GroupID]*MergeGroup
	mappingChains map[MappingKey][]*MergeGroup // minimal -> maximal
	operatorTable map[model.PathID]map[model.ElementID]model.ElementID // source operator id -> target id, per path
	nonExtension  map[model.PathID]bool

	// targetIDBySource / dominatingIDBySource remember, for the
	// currently-mapped-or-shelved source ids, which target id and
	// dominating id they were last resolved against, so RemoveProjMatches
	// can find its way back to the right dominanceKey and target node
	// without re-deriving them from the source indexer.
	targetIDBySource     map[model.ElementID]model.ElementID
	dominatingIDBySource map[model.ElementID]model.ElementID

	// extensions records, per dominance-extension parent target id, the
	// child nodes extendDominance pulled in beneath it, so they can be
	// retracted without a reverse child index (spec §4.4).
	extensions map[model.ElementID][]extensionRef

	nextGroupID model.GroupID
}

// NewMergeIndexer returns an empty target store rooted through alloc.
func NewMergeIndexer(alloc model.PathAllocator, tracer opentracing.Tracer, log *logrus.Entry) *MergeIndexer {
	if tracer == nil {
		tracer = opentracing.GlobalTracer()
	}
	if log == nil {
		log = logrus.WithField("component", "merge")
	}
	return &MergeIndexer{
		log:                  log,
		tracer:               tracer,
		alloc:                alloc,
		targetNodes:          model.NewPathNodeTable(),
		priorities:           NewPriorityTable(),
		paths:                newPathTracer(tracer),
		order:                FirstGroupOrder{},
		groupByHash:          make(map[uint64]*MergeGroup),
		groupsByID:           make(map[model.GroupID]*MergeGroup),
		mappingChains:        make(map[MappingKey][]*MergeGroup),
		operatorTable:        make(map[model.PathID]map[model.ElementID]model.ElementID),
		nonExtension:         make(map[model.PathID]bool),
		targetIDBySource:     make(map[model.ElementID]model.ElementID),
		dominatingIDBySource: make(map[model.ElementID]model.ElementID),
		extensions:           make(map[model.ElementID][]extensionRef),
	}
}

// SetDominanceOrder installs the tie-break order used when two
// distinct groups resolve to the same target id at equal priority
// (spec §9 Open Question: multiple-group ordering combination left as
// an injectable extension point). FirstGroupOrder is installed by
// default.
func (idx *MergeIndexer) SetDominanceOrder(order DominanceOrder) {
	idx.mu.Lock()
	idx.order = order
	idx.mu.Unlock()
	idx.priorities.SetOrder(order)
}

// RegisterConsumer marks pathID as read by a downstream consumer,
// activating path tracing there (spec §4.4 "a target path is active
// if a downstream consumer is registered"). Call it whenever another
// component starts reading pathID out of this indexer's target store,
// e.g. a chained MergeIndexer's AddMapping using this indexer as its
// SourceIndexer. It returns true the first time this makes pathID
// active, meaning already-mapped nodes there owe a dominance-extension
// backfill via AddExtensionMatches.
func (idx *MergeIndexer) RegisterConsumer(pathID model.PathID) (becameActive bool) {
	becameActive = idx.paths.Activate(pathID)
	idx.targetNodes.GetOrCreate(pathID).SetTraceActive(true)
	return becameActive
}

// ReleaseConsumer is the inverse of RegisterConsumer.
func (idx *MergeIndexer) ReleaseConsumer(pathID model.PathID) (becameInactive bool) {
	becameInactive = idx.paths.Deactivate(pathID)
	idx.targetNodes.GetOrCreate(pathID).SetTraceActive(idx.paths.HasConsumer(pathID))
	return becameInactive
}

// AddNonExtensionPathId marks attrs (interned under prefixId) as a
// non-extension path: a maximal group's dominance extension will not
// cross it (spec §4.4 "Extension paths"). Must be called before the
// path node exists, per spec §6.
func (idx *MergeIndexer) AddNonExtensionPathId(prefixID model.PathID, attrs []string) model.PathID {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	pid := idx.alloc.AllocatePathIdFromPath(prefixID, attrs)
	idx.nonExtension[pid] = true
	return pid
}

// getOrCreateGroup finds the existing group for key or creates one,
// linking it into the chain after prev (prev is nil for the minimal
// group of a fresh chain).
func (idx *MergeIndexer) getOrCreateGroup(key GroupKey, prev *MergeGroup) (*MergeGroup, error) {
	h, err := key.hash()
	if err != nil {
		return nil, err
	}
	if g, ok := idx.groupByHash[h]; ok {
		return g, nil
	}
	idx.nextGroupID++
	g := NewMergeGroup(idx.nextGroupID, key)
	idx.groupByHash[h] = g
	idx.groupsByID[g.ID] = g
	if prev != nil {
		g.prev = prev
		prev.next = g
	}
	return g, nil
}

// AddMapping registers a new mapping (spec §6). pairs must be ordered
// minimal (shortest paths) first through maximal (longest paths,
// mapping.SourcePathID/TargetPathID) last; AddMapping builds or
// reuses the MergeGroup chain these pairs describe.
func (idx *MergeIndexer) AddMapping(
	resultID query.ResultID,
	projID query.ProjID,
	sourceIndexer SourceIndexer,
	pairs []PathPair,
	priority int,
	sourceIdentificationID, targetIdentificationID uint64,
	isIdentity, identityOnly bool,
) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(pairs) == 0 {
		return nil
	}

	if idx.createsCycle(sourceIndexer) {
		return ErrCyclicMapping.New(pairs[0].SourcePathID, pairs[len(pairs)-1].TargetPathID)
	}

	mapKey := MappingKey{ResultID: resultID, ProjID: projID}
	m := &Mapping{
		Key:                    mapKey,
		SourceIndexer:          sourceIndexer,
		SourcePathID:           pairs[len(pairs)-1].SourcePathID,
		TargetPathID:           pairs[len(pairs)-1].TargetPathID,
		Priority:               priority,
		SourceIdentificationID: sourceIdentificationID,
		TargetIdentificationID: targetIdentificationID,
		IsIdentity:             isIdentity,
		IdentityOnly:           identityOnly,
	}

	var chain []*MergeGroup
	var prev *MergeGroup
	for i, p := range pairs {
		key := GroupKey{
			SourceIndexerID:        sourceIndexerID(sourceIndexer),
			IsMaxGroup:             i == len(pairs)-1,
			IsIdentityGroup:        isIdentity && i == len(pairs)-1,
			SourcePathID:           p.SourcePathID,
			TargetPathID:           p.TargetPathID,
			Priority:               priority,
			SourceIdentificationID: sourceIdentificationID,
			TargetIdentificationID: targetIdentificationID,
		}
		if prev != nil {
			key.PrefixGroupID = prev.ID
		}
		g, err := idx.getOrCreateGroup(key, prev)
		if err != nil {
			return err
		}
		g.Retain(m)
		chain = append(chain, g)
		prev = g

		node := idx.targetNodes.GetOrCreate(p.TargetPathID)
		node.RetainExplicitTarget()
	}

	idx.mappingChains[mapKey] = chain
	if upstream, ok := sourceIndexer.(*MergeIndexer); ok {
		upstream.RegisterConsumer(pairs[0].SourcePathID)
	}
	idx.log.WithFields(logrus.Fields{"result": resultID, "proj": projID, "priority": priority}).Debug("mapping added")
	return nil
}

// sourceIndexerID renders a stable identity for a SourceIndexer value
// for use in GroupKey; pointer identity is sufficient since indexers
// are long-lived singletons within an engine instance.
func sourceIndexerID(s SourceIndexer) string {
	return fmt.Sprintf("%p", s)
}

// createsCycle is a conservative check: it walks sourceIndexer's own
// chained mappings (if it is itself a MergeIndexer) looking for idx,
// per spec §7 "CyclicMapping".
func (idx *MergeIndexer) createsCycle(s SourceIndexer) bool {
	other, ok := s.(*MergeIndexer)
	if !ok {
		return false
	}
	if other == idx {
		return true
	}
	for _, chain := range other.mappingChains {
		for _, g := range chain {
			for _, m := range g.mappings {
				if nested, ok := m.SourceIndexer.(*MergeIndexer); ok {
					if idx.createsCycleFrom(nested) {
						return true
					}
				}
			}
		}
	}
	return false
}

func (idx *MergeIndexer) createsCycleFrom(s *MergeIndexer) bool {
	if s == idx {
		return true
	}
	for _, chain := range s.mappingChains {
		for _, g := range chain {
			for _, m := range g.mappings {
				if nested, ok := m.SourceIndexer.(*MergeIndexer); ok {
					if idx.createsCycleFrom(nested) {
						return true
					}
				}
			}
		}
	}
	return false
}

// RemoveMapping removes a mapping. An empty/zero projID removes every
// projection registered under funcResult, per spec §6.
func (idx *MergeIndexer) RemoveMapping(resultID query.ResultID, projID query.ProjID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if projID == 0 {
		for key := range idx.mappingChains {
			if key.ResultID == resultID {
				idx.removeMappingLocked(key)
			}
		}
		return
	}
	idx.removeMappingLocked(MappingKey{ResultID: resultID, ProjID: projID})
}

func (idx *MergeIndexer) removeMappingLocked(key MappingKey) {
	chain, ok := idx.mappingChains[key]
	if !ok {
		return
	}
	delete(idx.mappingChains, key)

	minimal := chain[0]
	if m, ok := minimal.mappings[key]; ok {
		if upstream, ok := m.SourceIndexer.(*MergeIndexer); ok {
			upstream.ReleaseConsumer(minimal.Key.SourcePathID)
		}
	}

	for _, g := range chain {
		if g.Release(key) {
			idx.destroyGroupLocked(g)
		}
	}
}

func (idx *MergeIndexer) destroyGroupLocked(g *MergeGroup) {
	if g.prev != nil {
		g.prev.next = g.next
	}
	if g.next != nil {
		g.next.prev = g.prev
	}
	if h, err := g.Key.hash(); err == nil {
		delete(idx.groupByHash, h)
	}
	delete(idx.groupsByID, g.ID)
	node := idx.targetNodes.GetOrCreate(g.Key.TargetPathID)
	node.ReleaseExplicitTarget()
	idx.targetNodes.GC(g.Key.TargetPathID)
}

// RemoveAllMappings tears down every registered mapping.
func (idx *MergeIndexer) RemoveAllMappings() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for key := range idx.mappingChains {
		idx.removeMappingLocked(key)
	}
}
