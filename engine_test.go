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

package rqe

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cdl-lang/rqe/merge"
	"github.com/cdl-lang/rqe/model"
	"github.com/cdl-lang/rqe/query"
)

type memStore struct {
	entries map[model.ElementID]model.DataElement
}

func newMemStore() *memStore { return &memStore{entries: make(map[model.ElementID]model.DataElement)} }

func (s *memStore) Put(e model.DataElement) { s.entries[e.ID] = e }

func (s *memStore) GetEntry(id model.ElementID) (model.DataElement, bool) {
	e, ok := s.entries[id]
	return e, ok
}

func (s *memStore) GetBaseIdentity(id model.ElementID) model.Identity {
	if e, ok := s.entries[id]; ok {
		return e.Identity
	}
	return model.DefaultIdentity(id)
}

func (s *memStore) GetDirectChildDataElements(dominatingID model.ElementID, childPathID model.PathID) []model.ElementID {
	var out []model.ElementID
	for id, e := range s.entries {
		if e.ParentID == dominatingID && (childPathID == 0 || e.PathID == childPathID) {
			out = append(out, id)
		}
	}
	return out
}

func (s *memStore) GetDominatedNodes(sourcePathID model.PathID, dominatingIDs []model.ElementID, anchorPathID model.PathID) []model.ElementID {
	frontier := make(map[model.ElementID]bool, len(dominatingIDs))
	for _, id := range dominatingIDs {
		frontier[id] = true
	}
	var out []model.ElementID
	for changed := true; changed; {
		changed = false
		for id, e := range s.entries {
			if frontier[id] || !frontier[e.ParentID] {
				continue
			}
			frontier[id] = true
			changed = true
			if e.PathID == sourcePathID {
				out = append(out, id)
			}
		}
	}
	return out
}

func (s *memStore) MonitorSubTree(id model.ElementID, on bool) {}

func TestEngine_RegisterRootAndRefreshQuery(t *testing.T) {
	engine := NewEngine(Config{}, nil)
	paths := engine.Paths()
	ordersPath := paths.AllocatePathIdFromPath(model.RootPathID, []string{"orders"})
	itemsPath := paths.AllocatePathIdFromPath(ordersPath, []string{"items"})

	source := newMemStore()
	order1 := model.ElementID(1)
	item1 := model.ElementID(11)
	source.Put(model.DataElement{ID: order1, PathID: ordersPath, Type: "order"})
	source.Put(model.DataElement{ID: item1, PathID: itemsPath, ParentID: order1, Type: "item"})

	root := query.NewIntersectionNode(1, ordersPath, source, paths)
	highValue := query.NewSimpleQueryNode(2, ordersPath)
	inStock := query.NewSimpleQueryNode(3, itemsPath)
	root.AddSubNode(highValue)
	root.AddSubNode(inStock)

	engine.RegisterRoot("orders", root)
	engine.RefreshQuery("orders")
	require.Equal(t, query.ModeSelectionRaising, root.Mode())

	highValue.AddMatches([]model.ElementID{order1})
	inStock.AddMatches([]model.ElementID{item1})
	require.ElementsMatch(t, []model.ElementID{order1}, root.GetMatches())
}

func TestEngine_RefreshQuery_UnknownNameIsNoop(t *testing.T) {
	engine := NewEngine(Config{}, nil)
	require.NotPanics(t, func() { engine.RefreshQuery("nonexistent") })
}

func TestEngine_RefreshAll_DrivesEveryRegisteredRoot(t *testing.T) {
	engine := NewEngine(Config{}, nil)
	paths := engine.Paths()
	ordersPath := paths.AllocatePathIdFromPath(model.RootPathID, []string{"orders"})
	customersPath := paths.AllocatePathIdFromPath(model.RootPathID, []string{"customers"})

	source := newMemStore()
	root1 := query.NewIntersectionNode(1, ordersPath, source, paths)
	root2 := query.NewIntersectionNode(2, customersPath, source, paths)
	root1.AddSubNode(query.NewSimpleQueryNode(3, ordersPath))
	root2.AddSubNode(query.NewSimpleQueryNode(4, customersPath))

	engine.RegisterRoot("orders", root1)
	engine.RegisterRoot("customers", root2)
	engine.RefreshAll()

	require.Equal(t, query.ModeSelectionDirect, root1.Mode())
	require.Equal(t, query.ModeSelectionDirect, root2.Mode())
}

func TestEngine_NewTargetAndTarget(t *testing.T) {
	engine := NewEngine(Config{}, nil)
	idx := engine.NewTarget("orders-view")
	require.NotNil(t, idx)

	got, ok := engine.Target("orders-view")
	require.True(t, ok)
	require.Same(t, idx, got)

	_, ok = engine.Target("missing")
	require.False(t, ok)
}

func TestEngine_EndToEnd_PriorityMergeIntoTarget(t *testing.T) {
	engine := NewEngine(Config{LogLevel: "error", ServiceName: "rqedemo-test"}, nil)
	paths := engine.Paths()
	ordersPath := paths.AllocatePathIdFromPath(model.RootPathID, []string{"orders"})

	source := newMemStore()
	order1 := model.ElementID(1)
	source.Put(model.DataElement{ID: order1, PathID: ordersPath, Type: "order"})

	target := engine.NewTarget("orders-view")
	require.NoError(t, target.AddMapping(
		query.ResultID(1), query.ProjID(1), source,
		[]merge.PathPair{{SourcePathID: ordersPath, TargetPathID: ordersPath}},
		10, 0, 0, false, false,
	))
	target.AddProjMatches([]model.ElementID{order1}, nil, query.ResultID(1), query.ProjID(1))

	require.NoError(t, target.AddMapping(
		query.ResultID(2), query.ProjID(1), source,
		[]merge.PathPair{{SourcePathID: ordersPath, TargetPathID: ordersPath}},
		20, 0, 0, false, false,
	))
	target.AddProjMatches([]model.ElementID{order1}, nil, query.ResultID(2), query.ProjID(1))

	entry, ok := target.GetEntry(order1)
	require.True(t, ok)
	require.Equal(t, "order", entry.Type)
}
