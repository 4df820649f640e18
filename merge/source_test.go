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

// TestChainedMerge exercises *MergeIndexer as another MergeIndexer's
// SourceIndexer (spec §6's "another MergeIndexer" case): upstream
// merges orders from a raw source, downstream re-merges upstream's
// own target store under a second priority.
func TestChainedMerge_UpstreamIndexerAsSource(t *testing.T) {
	upstream := newTestIndexer()
	rawSource := newFakeSource()
	order1 := model.ElementID(1)
	rawSource.put(model.DataElement{ID: order1, PathID: ordersPath, Type: "order"})

	require.NoError(t, upstream.AddMapping(query.ResultID(1), query.ProjID(1), rawSource,
		[]PathPair{{SourcePathID: ordersPath, TargetPathID: ordersPath}}, 10, 0, 0, false, false))
	upstream.AddProjMatches([]model.ElementID{order1}, nil, query.ResultID(1), query.ProjID(1))

	downstream := newTestIndexer()
	require.NoError(t, downstream.AddMapping(query.ResultID(2), query.ProjID(1), upstream,
		[]PathPair{{SourcePathID: ordersPath, TargetPathID: ordersPath}}, 5, 0, 0, false, false))

	require.True(t, upstream.paths.HasConsumer(ordersPath), "registering downstream's mapping must activate upstream's source path")

	downstream.AddProjMatches([]model.ElementID{order1}, nil, query.ResultID(2), query.ProjID(1))

	entry, ok := downstream.GetEntry(order1)
	require.True(t, ok)
	require.Equal(t, "order", entry.Type)

	downstream.RemoveMapping(query.ResultID(2), query.ProjID(1))
	require.False(t, upstream.paths.HasConsumer(ordersPath), "tearing down the downstream mapping must release upstream's consumer registration")
}

func TestChainedMerge_CycleAcrossTwoIndexersRejected(t *testing.T) {
	a := newTestIndexer()
	b := newTestIndexer()

	require.NoError(t, a.AddMapping(query.ResultID(1), query.ProjID(1), b,
		[]PathPair{{SourcePathID: ordersPath, TargetPathID: ordersPath}}, 10, 0, 0, false, false))

	err := b.AddMapping(query.ResultID(1), query.ProjID(1), a,
		[]PathPair{{SourcePathID: ordersPath, TargetPathID: ordersPath}}, 10, 0, 0, false, false)
	require.Error(t, err)
	require.True(t, ErrCyclicMapping.Is(err))
}
