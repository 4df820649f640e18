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

// Package merge implements the merge-indexer core (spec §4.3, §4.4):
// MergeGroup, MergeIndexer, and the identity-update propagator that
// merges multiple projection-result streams into a unified target
// store, with priority conflict resolution, identity-based merging,
// operator-operand preservation, path/sub-tree tracing, and identity
// updates.
package merge

import (
	"github.com/cdl-lang/rqe/model"
	"github.com/cdl-lang/rqe/query"
)

// SourceIndexer is the external collaborator spec §6 describes for a
// mapping's source: element lookup, dominance queries, base identity,
// and sub-tree monitor subscription. A SourceIndexer is typically a
// RootQueryResult or another MergeIndexer (chained merges).
type SourceIndexer interface {
	query.GenericIndexer

	// GetDominatedNodes returns the elements at sourcePathID dominated
	// (directly or transitively, via anchorPathID as the common
	// ancestor path) by any of dominatingIDs.
	GetDominatedNodes(sourcePathID model.PathID, dominatingIDs []model.ElementID, anchorPathID model.PathID) []model.ElementID

	// GetDirectChildDataElements returns the direct children of
	// dominatingID living at childPathID.
	GetDirectChildDataElements(dominatingID model.ElementID, childPathID model.PathID) []model.ElementID

	// GetBaseIdentity returns id's identity as seen by this indexer.
	GetBaseIdentity(id model.ElementID) model.Identity

	// MonitorSubTree registers (on=true) or releases (on=false) a
	// sub-tree monitor rooted at id.
	MonitorSubTree(id model.ElementID, on bool)
}

// PathAllocator is re-exported for callers constructing a MergeIndexer
// without importing package model directly for this one type.
type PathAllocator = model.PathAllocator
