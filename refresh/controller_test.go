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

package refresh

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cdl-lang/rqe/model"
	"github.com/cdl-lang/rqe/query"
)

type fakeSourceIndexer struct {
	entries map[model.ElementID]model.DataElement
}

func (f *fakeSourceIndexer) GetEntry(id model.ElementID) (model.DataElement, bool) {
	e, ok := f.entries[id]
	return e, ok
}

var testPaths = model.NewPathAllocator()

var (
	ordersPath = testPaths.AllocatePathIdFromPath(model.RootPathID, []string{"orders"})
	itemsPath  = testPaths.AllocatePathIdFromPath(ordersPath, []string{"items"})
)

// TestRefreshQuery_PhaseOrdering builds a two-level intersection tree
// and confirms RefreshQuery produces a fully consistent match set at
// the root, which can only happen if structure, then match-point, then
// match refresh ran in that order across the whole tree (spec §4.2).
func TestRefreshQuery_PhaseOrdering(t *testing.T) {
	source := &fakeSourceIndexer{entries: map[model.ElementID]model.DataElement{
		1: {ID: 1, PathID: ordersPath},
	}}

	root := query.NewIntersectionNode(1, ordersPath, source, testPaths)
	leaf := query.NewSimpleQueryNode(2, ordersPath)
	root.AddSubNode(leaf)

	rc := NewRefreshController(nil, nil)
	rc.RefreshQuery(root)

	require.Equal(t, query.ModeSelectionDirect, root.Mode(), "match-point refresh must run before match refresh for mode to settle")

	leaf.AddMatches([]model.ElementID{1})
	require.ElementsMatch(t, []model.ElementID{1}, root.GetMatches())
}

func TestRemoveNode(t *testing.T) {
	source := &fakeSourceIndexer{entries: map[model.ElementID]model.DataElement{}}
	root := query.NewIntersectionNode(1, ordersPath, source, testPaths)
	leaf := query.NewSimpleQueryNode(2, ordersPath)
	root.AddSubNode(leaf)
	rc := NewRefreshController(nil, nil)
	rc.RefreshQuery(root)
	require.Len(t, root.SubNodes(), 1)

	rc.RemoveNode(root, leaf)
	require.Len(t, root.SubNodes(), 0)
}
