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

func TestMatchPointTable_AddRemove(t *testing.T) {
	tbl := NewMatchPointTable()
	require.Equal(t, uint32(1), tbl.Add(1))
	require.Equal(t, uint32(2), tbl.Add(1))
	require.Equal(t, uint32(2), tbl.Count(1))
	require.True(t, tbl.Has(1))

	require.NoError(t, tbl.Remove(1))
	require.Equal(t, uint32(1), tbl.Count(1))

	require.NoError(t, tbl.Remove(1))
	require.False(t, tbl.Has(1))
}

func TestMatchPointTable_RemoveUnknown(t *testing.T) {
	tbl := NewMatchPointTable()
	err := tbl.Remove(99)
	require.Error(t, err)
	require.True(t, ErrMatchPointNotPresent.Is(err))
}

func TestMatchPointTable_Max(t *testing.T) {
	tbl := NewMatchPointTable()
	tbl.Add(1)
	tbl.Add(2)
	tbl.Add(2)
	require.Equal(t, uint32(2), tbl.Max())
}

func TestMatchPointTable_Snapshot(t *testing.T) {
	tbl := NewMatchPointTable()
	tbl.Add(1)
	tbl.Add(2)
	snap := tbl.Snapshot()
	require.Len(t, snap, 2)

	tbl.Add(1)
	require.Equal(t, uint32(1), snap[1], "snapshot must not reflect later mutation")
}
