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

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cdl-lang/rqe/model"
)

func TestRaisingRequired_BelowMaximal(t *testing.T) {
	mp := model.NewMatchPointTable()
	mp.Add(ordersPath)
	mp.Add(ordersPath)
	mp.Add(itemsPath)

	require.True(t, raisingRequired(mp, false, nil), "itemsPath is below the maximal count of 2")
}

func TestRaisingRequired_AllMaximalNoProjection(t *testing.T) {
	mp := model.NewMatchPointTable()
	mp.Add(ordersPath)
	mp.Add(itemsPath)

	require.False(t, raisingRequired(mp, false, nil))
}

func TestRaisingRequired_ProjectionExcludesMaximalPath(t *testing.T) {
	mp := model.NewMatchPointTable()
	mp.Add(ordersPath)
	mp.Add(itemsPath)

	projMP := model.NewMatchPointTable()
	projMP.Add(ordersPath)

	require.True(t, raisingRequired(mp, true, projMP), "itemsPath is maximal but not a projection match point")
}

func TestLoweringRequired(t *testing.T) {
	require.False(t, loweringRequired(false, nil), "non-projection never requires lowering")

	projMP := model.NewMatchPointTable()
	projMP.Add(ordersPath)
	projMP.Add(ordersPath)
	projMP.Add(itemsPath)
	require.True(t, loweringRequired(true, projMP))

	even := model.NewMatchPointTable()
	even.Add(ordersPath)
	even.Add(itemsPath)
	require.False(t, loweringRequired(true, even))
}

func TestModeString(t *testing.T) {
	require.Equal(t, "selection-direct", ModeSelectionDirect.String())
	require.Equal(t, "suspended", ModeSuspended.String())
	require.Equal(t, "unknown", Mode(99).String())
}
