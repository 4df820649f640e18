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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIdentity_KeyIsElementID(t *testing.T) {
	id := DefaultIdentity(ElementID(42))
	k, err := id.Key()
	require.NoError(t, err)
	require.Equal(t, ElementID(42), k)
}

func TestIdentity_KeyHashesComposite(t *testing.T) {
	id1 := NewIdentity(struct{ A, B int }{1, 2})
	id2 := NewIdentity(struct{ A, B int }{1, 2})
	id3 := NewIdentity(struct{ A, B int }{1, 3})

	k1, err := id1.Key()
	require.NoError(t, err)
	k2, err := id2.Key()
	require.NoError(t, err)
	k3, err := id3.Key()
	require.NoError(t, err)

	require.Equal(t, k1, k2, "equal composite values must hash to the same key")
	require.NotEqual(t, k1, k3)
}

func TestDataElement_HasParent(t *testing.T) {
	root := DataElement{ID: 1}
	require.False(t, root.HasParent())

	child := DataElement{ID: 2, ParentID: 1}
	require.True(t, child.HasParent())
}

func TestIsOperator(t *testing.T) {
	require.True(t, DataElement{Type: "and"}.IsOperator())
	require.True(t, DataElement{Type: "not"}.IsOperator())
	require.False(t, DataElement{Type: "order"}.IsOperator())

	RegisterOperatorType("xor")
	require.True(t, DataElement{Type: "xor"}.IsOperator())
}
