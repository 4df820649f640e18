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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cdl-lang/rqe/model"
	"github.com/cdl-lang/rqe/query"
)

func TestPropagateSourceIdentity_UpdatesMappedNodeKey(t *testing.T) {
	idx := newTestIndexer()
	source := newFakeSource()
	order1 := model.ElementID(1)
	source.put(model.DataElement{ID: order1, PathID: ordersPath, Type: "order", Key: "old-key"})

	require.NoError(t, idx.AddMapping(query.ResultID(1), query.ProjID(1), source,
		[]PathPair{{SourcePathID: ordersPath, TargetPathID: ordersPath}}, 10, 0, 0, true, false))
	idx.AddProjMatches([]model.ElementID{order1}, nil, query.ResultID(1), query.ProjID(1))

	chain := idx.mappingChains[MappingKey{ResultID: 1, ProjID: 1}]
	g := chain[len(chain)-1]

	propagator := NewIdentityUpdatePropagator(idx)
	err := propagator.PropagateSourceIdentity(g, order1, 0,
		model.NewIdentity("old-key"), model.NewIdentity("new-key"))
	require.NoError(t, err)

	node := idx.targetNodes.GetOrCreate(ordersPath)
	entry, ok := node.Get(order1)
	require.True(t, ok)
	newKey, err := model.NewIdentity("new-key").Key()
	require.NoError(t, err)
	require.Equal(t, newKey, entry.Key)
}

func TestPropagateSourceIdentity_NoopWhenIdentityUnchanged(t *testing.T) {
	idx := newTestIndexer()
	source := newFakeSource()
	order1 := model.ElementID(1)
	source.put(model.DataElement{ID: order1, PathID: ordersPath, Type: "order", Key: "same"})

	require.NoError(t, idx.AddMapping(query.ResultID(1), query.ProjID(1), source,
		[]PathPair{{SourcePathID: ordersPath, TargetPathID: ordersPath}}, 10, 0, 0, true, false))
	idx.AddProjMatches([]model.ElementID{order1}, nil, query.ResultID(1), query.ProjID(1))

	chain := idx.mappingChains[MappingKey{ResultID: 1, ProjID: 1}]
	g := chain[len(chain)-1]

	propagator := NewIdentityUpdatePropagator(idx)
	err := propagator.PropagateSourceIdentity(g, order1, 0,
		model.NewIdentity("same"), model.NewIdentity("same"))
	require.NoError(t, err)

	node := idx.targetNodes.GetOrCreate(ordersPath)
	entry, ok := node.Get(order1)
	require.True(t, ok)
	require.Equal(t, "same", entry.Key, "unchanged identity must leave the stored key untouched")
}
