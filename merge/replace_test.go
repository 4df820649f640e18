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

	"github.com/cdl-lang/rqe/query"
)

func TestReplaceFuncSource_AcceptsWhenChainIsExclusivelyOwned(t *testing.T) {
	idx := newTestIndexer()
	source := newFakeSource()
	require.NoError(t, idx.AddMapping(query.ResultID(1), query.ProjID(1), source,
		[]PathPair{{SourcePathID: ordersPath, TargetPathID: ordersPath}}, 10, 0, 0, false, false))

	other := newFakeSource()
	require.True(t, idx.ReplaceFuncSource(query.ResultID(1), query.ProjID(1), ordersPath, ordersPath, other, 7))

	chain := idx.mappingChains[MappingKey{ResultID: 1, ProjID: 1}]
	mapping := chain[0].mappings[MappingKey{ResultID: 1, ProjID: 1}]
	require.Same(t, other, mapping.SourceIndexer)
	require.Equal(t, uint64(7), mapping.SourceIdentificationID)
}

func TestReplaceFuncSource_RejectsWhenGroupIsShared(t *testing.T) {
	idx := newTestIndexer()
	source := newFakeSource()
	require.NoError(t, idx.AddMapping(query.ResultID(1), query.ProjID(1), source,
		[]PathPair{{SourcePathID: ordersPath, TargetPathID: ordersPath}}, 10, 0, 0, false, false))
	require.NoError(t, idx.AddMapping(query.ResultID(2), query.ProjID(1), source,
		[]PathPair{{SourcePathID: ordersPath, TargetPathID: ordersPath}}, 10, 0, 0, false, false))

	require.False(t, idx.ReplaceFuncSource(query.ResultID(1), query.ProjID(1), ordersPath, ordersPath, newFakeSource(), 0),
		"two mappings share the group key, so a rebase could fracture the other mapping's equivalence class")
}

func TestReplaceFuncSource_UnknownMappingRejected(t *testing.T) {
	idx := newTestIndexer()
	require.False(t, idx.ReplaceFuncSource(query.ResultID(99), query.ProjID(1), ordersPath, ordersPath, newFakeSource(), 0))
}

func TestReplaceFuncSource_RejectsWhenPrefixPathChanges(t *testing.T) {
	idx := newTestIndexer()
	source := newFakeSource()
	require.NoError(t, idx.AddMapping(query.ResultID(1), query.ProjID(1), source,
		[]PathPair{{SourcePathID: ordersPath, TargetPathID: ordersPath}}, 10, 0, 0, false, false))

	require.False(t, idx.ReplaceFuncSource(query.ResultID(1), query.ProjID(1), ordersPath, itemsPath, newFakeSource(), 0),
		"a changed prefix path is a structural change the chain's groups can't absorb in place")

	chain := idx.mappingChains[MappingKey{ResultID: 1, ProjID: 1}]
	require.Same(t, source, chain[0].mappings[MappingKey{ResultID: 1, ProjID: 1}].SourceIndexer,
		"a rejected rebase must leave the existing mapping untouched")
}
