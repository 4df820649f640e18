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

import "github.com/cdl-lang/rqe/model"

// RaisedEntry is the tagged sum spec §9 calls for ("Variable-arity map
// values"): raisedMatches[parent][mp] is either a plain count
// (selection match point) or a set of contributing child IDs
// (projection match point, needed later for lowering).
type RaisedEntry struct {
	IsSet bool
	Count uint32
	Set   map[model.ElementID]struct{}
}

// suspend snapshots the current full-match set, clears raisedMatches,
// and switches the node's mode to suspended, per spec §4.1 "State
// machine — Suspension".
func (n *IntersectionNode) suspend() {
	if n.suspended {
		return
	}
	n.suspended = true
	n.suspendedMatches = make(map[model.ElementID]struct{}, len(n.fullMatches))
	for id := range n.fullMatches {
		n.suspendedMatches[id] = struct{}{}
	}
	n.raisedMatches = make(map[model.ElementID]map[model.PathID]*RaisedEntry)
	n.selectMode()
}

// unsuspend recomputes raised matches from the current matches table,
// diffs against the suspendedMatches snapshot, and propagates the
// delta to the parent (spec §4.1).
func (n *IntersectionNode) unsuspend() {
	if !n.suspended {
		return
	}
	n.suspended = false

	newFull := n.calcNewFullMatchesAfterSuspension()

	var added, removed []model.ElementID
	for id := range newFull {
		if _, was := n.suspendedMatches[id]; !was {
			added = append(added, id)
		}
	}
	for id := range n.suspendedMatches {
		if _, is := newFull[id]; !is {
			removed = append(removed, id)
		}
	}

	n.fullMatches = newFull
	n.suspendedMatches = nil
	n.selectMode()

	if len(removed) > 0 && n.parent != nil {
		n.parent.RemoveMatches(removed, n)
	}
	if len(added) > 0 && n.parent != nil {
		n.parent.AddMatches(added, n)
	}
}

// calcNewFullMatchesAfterSuspension recomputes, from the current
// matches table and match points, which element IDs are full matches.
// It mirrors the full-match test used inline by addOneMatch (spec
// invariant I4) but runs it over every current entry instead of only
// ones just touched.
func (n *IntersectionNode) calcNewFullMatchesAfterSuspension() map[model.ElementID]struct{} {
	out := make(map[model.ElementID]struct{})
	for id, count := range n.matches {
		entry, ok := n.source.GetEntry(id)
		if !ok {
			continue
		}
		if n.isFullMatch(count, entry.PathID) {
			out[id] = struct{}{}
		}
	}
	return out
}
