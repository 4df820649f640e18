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
	"github.com/cdl-lang/rqe/model"
	"github.com/cdl-lang/rqe/query"
)

// ReplaceFuncSource rebases a mapping's source indexer in place when
// that is safe, per spec §6/§9: prevPrefixPathId/prefixPathId are the
// minimal group's source path before and after the source structure
// change the caller is reacting to. A genuine prefix change would
// require splitting or merging the chain's equivalence classes, which
// this method never attempts — it always returns false in that case,
// forcing the caller's RemoveMapping-then-AddMapping fallback instead
// (the conservative contract the spec's Open Question calls for).
// When the prefix is unchanged, the rebase is accepted (returns true)
// only when every group in the mapping's chain has exactly this one
// mapping registered, so swapping the source cannot affect any other
// mapping's equivalence class.
func (idx *MergeIndexer) ReplaceFuncSource(
	resultID query.ResultID,
	projID query.ProjID,
	prevPrefixPathID, prefixPathID model.PathID,
	newSource SourceIndexer,
	sourceIdentificationID uint64,
) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if prefixPathID != prevPrefixPathID {
		return false
	}

	key := MappingKey{ResultID: resultID, ProjID: projID}
	chain, ok := idx.mappingChains[key]
	if !ok {
		return false
	}
	for _, g := range chain {
		if g.MappingCount() != 1 {
			return false
		}
	}

	for _, g := range chain {
		if m, ok := g.mappings[key]; ok {
			m.SourceIndexer = newSource
			m.SourceIdentificationID = sourceIdentificationID
		}
	}
	return true
}
