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

import (
	"github.com/mitchellh/hashstructure"
	"github.com/spf13/cast"
)

// ElementID uniquely identifies a DataElement within a single store.
type ElementID uint64

// GroupID identifies the merge group (see package merge) that produced
// a target-side DataElement, when applicable.
type GroupID uint64

// Identity is the opaque equality key data elements are merged and
// compared by. It defaults to the element's own ID but may be any
// hashable value (a string business key, a composite struct, ...).
// Key() coerces it to a comparable map key the way MergeGroup's
// idNodeTable and the unmapped-node table require.
type Identity struct {
	Value interface{}
}

// NewIdentity wraps an arbitrary identity value.
func NewIdentity(v interface{}) Identity {
	return Identity{Value: v}
}

// DefaultIdentity returns the identity that defaults to an element's
// own ID, per spec §3 ("identity (opaque value, defaults to id)").
func DefaultIdentity(id ElementID) Identity {
	return Identity{Value: id}
}

// Key renders the identity to a value usable as a Go map key. The
// already-comparable scalar kinds pass through untouched. Everything
// else is first offered to cast.ToStringE, which normalizes loosely-
// typed scalars reaching the engine from an external source indexer
// (numeric strings, float64, []byte, time.Time, fmt.Stringer, ...) to
// a single comparable string form; only values cast can't coerce at
// all (structs, slices, maps of attrs) fall through to hashstructure
// so composite identities still collapse to a comparable key.
func (i Identity) Key() (interface{}, error) {
	switch v := i.Value.(type) {
	case ElementID, string, int, int64, uint64, bool:
		return v, nil
	default:
		if s, err := cast.ToStringE(v); err == nil {
			return s, nil
		}
		h, err := hashstructure.Hash(i.Value, nil)
		if err != nil {
			return nil, err
		}
		return h, nil
	}
}

// DataElement is a node in the hierarchical store, addressed by
// (PathID, ElementID). See spec §3.
type DataElement struct {
	ID       ElementID
	PathID   PathID
	ParentID ElementID // 0 if this element is a root (no dominating element)
	Identity Identity
	GroupID  GroupID // 0 if not produced by a merge group
	SourceID ElementID
	RefCount uint32

	// Type/Key/HasAttrs describe the element's shape as stored by a
	// PathNode's nodes table (spec §3 "PathNode").
	Type     string
	Key      interface{}
	HasAttrs bool
}

// HasParent reports whether the element is dominated by another
// element.
func (e DataElement) HasParent() bool {
	return e.ParentID != 0
}

// IsOperator reports whether this element's Type denotes an operator
// node, which shares its path with its directly-dominated operands
// (spec §3 invariant I7, §4.4 "Operators").
func (e DataElement) IsOperator() bool {
	return operatorTypes[e.Type]
}

// operatorTypes is the set of element Type tags the engine treats as
// operators. Populated by RegisterOperatorType; "not", "and", "or" are
// registered by default since spec §8 scenario 4 exercises "not".
var operatorTypes = map[string]bool{
	"not": true,
	"and": true,
	"or":  true,
}

// RegisterOperatorType marks an additional Type tag as an operator.
func RegisterOperatorType(t string) {
	operatorTypes[t] = true
}
