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

// Mode selects which of the six add/remove-matches behaviors an
// IntersectionNode runs. Spec §9 ("Polymorphic dispatch via
// function-field swapping") calls for an explicit mode enum plus a
// single dispatching method rather than the original's six swapped
// function fields; Mode is that enum.
type Mode uint8

const (
	// ModeSelectionDirect: no raising, not a projection. Matches are
	// forwarded to the parent as soon as they reach fullMatchCount.
	ModeSelectionDirect Mode = iota
	// ModeSelectionRaising: no projection, but raising is required
	// because some match point is below the maximal count.
	ModeSelectionRaising
	// ModeProjectionDirect: projection, no raising or lowering needed.
	ModeProjectionDirect
	// ModeProjectionRaising: projection with raising but no lowering.
	ModeProjectionRaising
	// ModeProjectionLowering: projection with lowering (some
	// projMatchPoints count is not maximal) but no raising needed on
	// the selection side.
	ModeProjectionLowering
	// ModeProjectionRaisingLowering: projection needing both raising
	// and lowering.
	ModeProjectionRaisingLowering
	// ModeSuspended overrides any of the above while the node is
	// suspended: matches accumulate in the matches table only, proj
	// add/remove become no-ops, per spec §4.1 "State machine —
	// Suspension".
	ModeSuspended
)

func (m Mode) String() string {
	switch m {
	case ModeSelectionDirect:
		return "selection-direct"
	case ModeSelectionRaising:
		return "selection-raising"
	case ModeProjectionDirect:
		return "projection-direct"
	case ModeProjectionRaising:
		return "projection-raising"
	case ModeProjectionLowering:
		return "projection-lowering"
	case ModeProjectionRaisingLowering:
		return "projection-raising-lowering"
	case ModeSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// raisingRequired implements spec §4.1's decision rule: raising is
// required iff some match-point count is below the maximal, or (for
// projections) some maximal-count match point is not itself a
// projection match point.
func raisingRequired(mp *model.MatchPointTable, isProjection bool, projMP *model.MatchPointTable) bool {
	max := mp.Max()
	for _, id := range mp.PathIDs() {
		if mp.Count(id) < max {
			return true
		}
		if isProjection && mp.Count(id) == max && !projMP.Has(id) {
			return true
		}
	}
	return false
}

// loweringRequired implements spec §4.1's rule: lowering is required
// iff this is a projection and some projMatchPoints count is not
// maximal (relative to the projection match points' own maximum).
func loweringRequired(isProjection bool, projMP *model.MatchPointTable) bool {
	if !isProjection || projMP == nil {
		return false
	}
	max := projMP.Max()
	for _, id := range projMP.PathIDs() {
		if projMP.Count(id) != max {
			return true
		}
	}
	return false
}

// selectMode recomputes n.mode from the current match-point tables,
// per spec §4.1 "Mode selection" — called after any match-point table
// change that can affect raising/lowering.
func (n *IntersectionNode) selectMode() {
	if n.suspended {
		n.mode = ModeSuspended
		return
	}

	raise := raisingRequired(n.matchPoints, n.isProjection, n.projMatchPoints)
	lower := loweringRequired(n.isProjection, n.projMatchPoints)

	switch {
	case !n.isProjection && !raise:
		n.mode = ModeSelectionDirect
	case !n.isProjection && raise:
		n.mode = ModeSelectionRaising
	case n.isProjection && !raise && !lower:
		n.mode = ModeProjectionDirect
	case n.isProjection && raise && !lower:
		n.mode = ModeProjectionRaising
	case n.isProjection && !raise && lower:
		n.mode = ModeProjectionLowering
	default:
		n.mode = ModeProjectionRaisingLowering
	}
}
