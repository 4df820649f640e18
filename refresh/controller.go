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

// Package refresh implements the RefreshController (spec §4.2): it
// drives the three-phase refresh across an intersection tree. The
// structure and match-point phases visit a node before its sub-nodes;
// the match phase visits a node's sub-nodes before the node itself.
// It keeps a global ordering guarantee — every structure refresh
// across the whole tree completes before any match-point refresh
// begins, which in turn completes before any match refresh begins.
package refresh

import (
	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/cdl-lang/rqe/query"
)

// subNodeLister is implemented by query.IntersectionNode; leaf
// ChildNode stubs have no children to recurse into.
type subNodeLister interface {
	SubNodes() []query.ChildNode
}

// RefreshController orchestrates query refresh and node removal.
type RefreshController struct {
	log    *logrus.Entry
	tracer opentracing.Tracer
}

// NewRefreshController returns a controller logging through log (or a
// default logger if nil) and tracing through tracer (or the global
// tracer if nil).
func NewRefreshController(log *logrus.Entry, tracer opentracing.Tracer) *RefreshController {
	if log == nil {
		log = logrus.WithField("component", "refresh")
	}
	if tracer == nil {
		tracer = opentracing.GlobalTracer()
	}
	return &RefreshController{log: log, tracer: tracer}
}

// RefreshQuery drives the three-phase refresh of the tree rooted at
// root (spec §4.2, §6: "refreshQuery(rootNode)").
func (rc *RefreshController) RefreshQuery(root query.ChildNode) {
	span := rc.tracer.StartSpan("refresh_query")
	defer span.Finish()

	rc.log.Debug("structure refresh phase starting")
	structSpan := rc.tracer.StartSpan("structure_refresh", opentracing.ChildOf(span.Context()))
	walkTopDown(root, func(n query.ChildNode) { n.RefreshStructure() })
	structSpan.Finish()

	rc.log.Debug("match-point refresh phase starting")
	mpSpan := rc.tracer.StartSpan("matchpoint_refresh", opentracing.ChildOf(span.Context()))
	walkTopDown(root, func(n query.ChildNode) { n.RefreshMatchPoints(false) })
	mpSpan.Finish()

	rc.log.Debug("match refresh phase starting")
	matchSpan := rc.tracer.StartSpan("match_refresh", opentracing.ChildOf(span.Context()))
	walkBottomUp(root, func(n query.ChildNode) { n.RefreshMatches(false) })
	matchSpan.Finish()
}

// RemoveNode drives spec §4.1's orthogonal node-removal path: it asks
// parent (an *query.IntersectionNode, passed as the anonymous
// interface in the signature below) to remove sub, which suspends/unsuspends locally
// and is bounded by that call alone — it does not participate in the
// three global phases above.
func (rc *RefreshController) RemoveNode(parent interface {
	RemoveSubNode(query.ChildNode)
}, sub query.ChildNode) {
	span := rc.tracer.StartSpan("remove_node")
	defer span.Finish()
	rc.log.WithField("removed_node", sub.ID()).Debug("removing sub-node")
	parent.RemoveSubNode(sub)
}

// walkTopDown calls fn on n, then recurses into n's sub-nodes (if
// any), matching "within a phase, parents call their children".
func walkTopDown(n query.ChildNode, fn func(query.ChildNode)) {
	fn(n)
	if lister, ok := n.(subNodeLister); ok {
		for _, c := range lister.SubNodes() {
			walkTopDown(c, fn)
		}
	}
}

// walkBottomUp recurses into n's sub-nodes first, then calls fn on n.
// The match-refresh phase processes a node's sub-nodes' own matches
// before the node's own AddMatches/RemoveMatches calls can be
// meaningful, since a parent's full matches are computed from its
// children's matches.
func walkBottomUp(n query.ChildNode, fn func(query.ChildNode)) {
	if lister, ok := n.(subNodeLister); ok {
		for _, c := range lister.SubNodes() {
			walkBottomUp(c, fn)
		}
	}
	fn(n)
}
