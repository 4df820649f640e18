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

import errors "gopkg.in/src-d/go-errors.v1"

var (
	// ErrMatchCountOverflow is a programming violation (spec §7): a
	// match count would exceed the match-point count at its path by
	// more than the transient add-before-remove anomaly §4.1 tolerates.
	ErrMatchCountOverflow = errors.NewKind("match count overflow for element %v at path %v")

	// ErrMatchPointNotPresent mirrors model.ErrMatchPointNotPresent at
	// the intersection-node level, raised when removeFromMatchPoints
	// is asked to remove a path id this node never registered.
	ErrMatchPointNotPresent = errors.NewKind("intersection node %v has no match point for path %v")
)

// assertOrPanic aborts the engine instance on an internal invariant
// violation, matching spec §7's "abort with assertion" treatment for
// programming violations. Used only for conditions that indicate a
// bug in the engine itself, never for data-dependent failures (those
// return errors instead).
func assertOrPanic(cond bool, err error) {
	if !cond {
		panic(err)
	}
}
