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

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cdl-lang/rqe/model"
)

func TestMergeGroup_RetainReleaseDestroysOnLast(t *testing.T) {
	g := NewMergeGroup(1, GroupKey{Priority: 10})
	m1 := &Mapping{Key: MappingKey{ResultID: 1, ProjID: 1}}
	m2 := &Mapping{Key: MappingKey{ResultID: 2, ProjID: 1}}

	g.Retain(m1)
	g.Retain(m2)
	require.Equal(t, 2, g.MappingCount())

	require.False(t, g.Release(m1.Key))
	require.Equal(t, 1, g.MappingCount())

	require.True(t, g.Release(m2.Key), "releasing the last mapping must report destroyed")
}

func TestMergeGroup_IsMinimalMaximal(t *testing.T) {
	minimal := NewMergeGroup(1, GroupKey{})
	maximal := NewMergeGroup(2, GroupKey{})
	minimal.next = maximal
	maximal.prev = minimal

	require.True(t, minimal.IsMinimal())
	require.False(t, minimal.IsMaximal())
	require.True(t, maximal.IsMaximal())
	require.False(t, maximal.IsMinimal())
}

func TestMergeGroup_AddSourceElements_ChainOrderIsMaximalToMinimal(t *testing.T) {
	minimal := NewMergeGroup(1, GroupKey{})
	maximal := NewMergeGroup(2, GroupKey{})
	minimal.next = maximal
	maximal.prev = minimal

	perGroup := maximal.AddSourceElements([]model.ElementID{1, 2})
	require.Len(t, perGroup, 2, "one entry per group in the chain")
	require.ElementsMatch(t, []model.ElementID{1, 2}, perGroup[0], "maximal group sees both as newly referenced")
	require.ElementsMatch(t, []model.ElementID{1, 2}, perGroup[1], "minimal group also sees them newly referenced the first time")

	// A second addition of the same ids is not "newly referenced"
	// anywhere in the chain, since both groups already hold a ref.
	perGroup2 := maximal.AddSourceElements([]model.ElementID{1, 2})
	require.Empty(t, perGroup2[0])
	require.Empty(t, perGroup2[1])
}

func TestMergeGroup_RemoveSourceElements_OnlyFullyReleasedReported(t *testing.T) {
	g := NewMergeGroup(1, GroupKey{})
	g.retainSourceNode(1)
	g.retainSourceNode(1)
	g.retainSourceNode(2)

	perGroup := g.RemoveSourceElements([]model.ElementID{1, 2})
	require.ElementsMatch(t, []model.ElementID{2}, perGroup[0], "id 1 still has one outstanding reference; id 2 is fully released")

	perGroup = g.RemoveSourceElements([]model.ElementID{1})
	require.ElementsMatch(t, []model.ElementID{1}, perGroup[0])
}

func TestMergeGroup_TranslateSourceIds_ReuseWhenFree(t *testing.T) {
	g := NewMergeGroup(1, GroupKey{})
	out := g.TranslateSourceIds(100, []model.ElementID{5}, []model.ElementID{0}, true)
	require.Equal(t, model.ElementID(5), out[0], "uncontended source id is reused as the target id")

	// Repeating the call returns the same translation.
	out2 := g.TranslateSourceIds(100, []model.ElementID{5}, []model.ElementID{0}, true)
	require.Equal(t, out, out2)
}

func TestMergeGroup_TranslateSourceIds_ContentionAllocatesFreshID(t *testing.T) {
	g := NewMergeGroup(1, GroupKey{})
	// Same source id 5 under two different dominating ids at the same
	// target path: the second must not collide with the first.
	first := g.TranslateSourceIds(100, []model.ElementID{5}, []model.ElementID{1}, true)
	second := g.TranslateSourceIds(100, []model.ElementID{5}, []model.ElementID{2}, true)
	require.NotEqual(t, first[0], second[0])
}

func TestMergeGroup_UpdateIdentity_NonIdentityGroupNoop(t *testing.T) {
	g := NewMergeGroup(1, GroupKey{IsIdentityGroup: false})
	update, err := g.UpdateIdentity(
		[]model.ElementID{1},
		[]model.Identity{model.DefaultIdentity(1)},
		func(model.ElementID) (interface{}, bool) { return nil, false },
	)
	require.NoError(t, err)
	require.Empty(t, update.Added)
}

func TestMergeGroup_UpdateIdentity_AddsNewEquivalenceClass(t *testing.T) {
	g := NewMergeGroup(1, GroupKey{IsIdentityGroup: true})
	update, err := g.UpdateIdentity(
		[]model.ElementID{1},
		[]model.Identity{model.NewIdentity("widget-1")},
		func(model.ElementID) (interface{}, bool) { return nil, false },
	)
	require.NoError(t, err)
	require.Len(t, update.Added, 1)

	// Re-running with the same identity must not add a second node.
	update2, err := g.UpdateIdentity(
		[]model.ElementID{2},
		[]model.Identity{model.NewIdentity("widget-1")},
		func(model.ElementID) (interface{}, bool) { return nil, false },
	)
	require.NoError(t, err)
	require.Empty(t, update2.Added, "same identity class already has a node")
}

func TestMergeGroup_SubTreeMonitorRefCounting(t *testing.T) {
	g := NewMergeGroup(1, GroupKey{})
	require.True(t, g.RetainSubTreeMonitor(1))
	require.False(t, g.RetainSubTreeMonitor(1))

	require.False(t, g.ReleaseSubTreeMonitor(1))
	require.True(t, g.ReleaseSubTreeMonitor(1))
}
