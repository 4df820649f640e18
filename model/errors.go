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

package model

import errors "gopkg.in/src-d/go-errors.v1"

var (
	// ErrUnknownPath is returned when a path ID is unknown to the
	// allocator (spec §7 "Path-ID absent").
	ErrUnknownPath = errors.NewKind("unknown path id: %v")

	// ErrMatchPointNotPresent is a programming violation: removing a
	// match point that was never added (spec §7 "Programming
	// violation").
	ErrMatchPointNotPresent = errors.NewKind("match point not present for path id: %v")

	// ErrRefCountNegative is a programming violation: a reference count
	// dropped below zero.
	ErrRefCountNegative = errors.NewKind("reference count went negative for element %v")
)
