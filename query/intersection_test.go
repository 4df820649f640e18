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

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cdl-lang/rqe/model"
)

// fakeIndexer is a minimal GenericIndexer backed by a plain map, for
// exercising IntersectionNode's raising without the merge package's
// heavier store.
type fakeIndexer struct {
	entries map[model.ElementID]model.DataElement
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{entries: make(map[model.ElementID]model.DataElement)}
}

func (f *fakeIndexer) put(e model.DataElement) { f.entries[e.ID] = e }

func (f *fakeIndexer) GetEntry(id model.ElementID) (model.DataElement, bool) {
	e, ok := f.entries[id]
	return e, ok
}

var testPaths = model.NewPathAllocator()

var (
	ordersPath = testPaths.AllocatePathIdFromPath(model.RootPathID, []string{"orders"})
	itemsPath  = testPaths.AllocatePathIdFromPath(ordersPath, []string{"items"})
)

func TestTwoPathIntersection(t *testing.T) {
	source := newFakeIndexer()
	order1 := model.ElementID(1)
	order2 := model.ElementID(2)
	item1 := model.ElementID(11)
	item2 := model.ElementID(12)

	source.put(model.DataElement{ID: order1, PathID: ordersPath})
	source.put(model.DataElement{ID: order2, PathID: ordersPath})
	source.put(model.DataElement{ID: item1, PathID: itemsPath, ParentID: order1})
	source.put(model.DataElement{ID: item2, PathID: itemsPath, ParentID: order2})

	root := NewIntersectionNode(1, ordersPath, source, testPaths)
	highValue := NewSimpleQueryNode(2, ordersPath)
	inStock := NewSimpleQueryNode(3, itemsPath)
	root.AddSubNode(highValue)
	root.AddSubNode(inStock)

	root.RefreshMatchPoints(false)
	root.RefreshMatches(false)

	highValue.AddMatches([]model.ElementID{order1, order2})
	inStock.AddMatches([]model.ElementID{item1})

	require.ElementsMatch(t, []model.ElementID{order1}, root.GetMatches(), "only order1 has both a high-value self-match and an in-stock item")

	inStock.AddMatches([]model.ElementID{item2})
	require.ElementsMatch(t, []model.ElementID{order1, order2}, root.GetMatches())

	inStock.RemoveMatches([]model.ElementID{item1})
	require.ElementsMatch(t, []model.ElementID{order2}, root.GetMatches())
}

func TestSuspensionRoundTrip(t *testing.T) {
	source := newFakeIndexer()
	order1 := model.ElementID(1)
	source.put(model.DataElement{ID: order1, PathID: ordersPath})

	root := NewIntersectionNode(1, ordersPath, source, testPaths)
	leaf := NewSimpleQueryNode(2, ordersPath)
	root.AddSubNode(leaf)
	root.RefreshMatchPoints(false)
	root.RefreshMatches(false)

	leaf.AddMatches([]model.ElementID{order1})
	require.ElementsMatch(t, []model.ElementID{order1}, root.GetMatches())

	root.Suspend()
	require.True(t, root.Suspended())
	require.Equal(t, ModeSuspended, root.Mode())

	leaf.RemoveMatches([]model.ElementID{order1})
	// Suspended: the removal is only accumulated, not propagated, so
	// the previously-emitted full match is untouched until unsuspend.
	require.ElementsMatch(t, []model.ElementID{order1}, root.GetMatches())

	root.Unsuspend()
	require.False(t, root.Suspended())
}

func TestModeSelection_SingleSubNodeIsDirect(t *testing.T) {
	source := newFakeIndexer()
	root := NewIntersectionNode(1, ordersPath, source, testPaths)
	leaf := NewSimpleQueryNode(2, ordersPath)
	root.AddSubNode(leaf)
	root.RefreshMatchPoints(false)

	require.Equal(t, ModeSelectionDirect, root.Mode())
}

func TestModeSelection_RaisingRequiredForDeeperSubNode(t *testing.T) {
	source := newFakeIndexer()
	root := NewIntersectionNode(1, ordersPath, source, testPaths)
	top := NewSimpleQueryNode(2, ordersPath)
	deep := NewSimpleQueryNode(3, itemsPath)
	root.AddSubNode(top)
	root.AddSubNode(deep)
	root.RefreshMatchPoints(false)

	require.Equal(t, ModeSelectionRaising, root.Mode())
}
