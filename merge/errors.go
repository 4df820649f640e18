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

import errors "gopkg.in/src-d/go-errors.v1"

var (
	// ErrCyclicMapping is returned by AddMapping when the mapping's
	// source/target indexer relationship would create a dependency
	// cycle (spec §7).
	ErrCyclicMapping = errors.NewKind("mapping from %v to %v would create a cyclic dependency")

	// ErrUnknownMapping names the case where no mapping is registered
	// for a (funcResult, projId). No method returns it: RemoveMapping
	// ignores an unknown mapping and ReplaceFuncSource returns false.
	ErrUnknownMapping = errors.NewKind("no mapping registered for result %v, proj %v")

	// errGroupSplitRequired names the group split/merge case of source
	// replacement (spec §7 / §9 Open Question). ReplaceFuncSource
	// reports that case through its false result and does not
	// construct this error.
	errGroupSplitRequired = errors.NewKind("rebase requires a group split or merge")
)
