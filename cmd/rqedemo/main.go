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

// This is an example of how to run the reactive query engine
// in-process against an in-memory source store: it builds a two-path
// intersection, feeds it selection matches, and merges one source
// order into a target store through two mappings of different
// priority, exercising two of spec §8's scenarios end to end.
package main

import (
	"fmt"

	uuid "github.com/satori/go.uuid"

	"github.com/cdl-lang/rqe"
	"github.com/cdl-lang/rqe/merge"
	"github.com/cdl-lang/rqe/model"
	"github.com/cdl-lang/rqe/query"
)

func main() {
	engine := rqe.NewEngine(rqe.Config{LogLevel: "info", ServiceName: "rqedemo"}, nil)
	paths := engine.Paths()

	ordersPath := paths.AllocatePathIdFromPath(model.RootPathID, []string{"orders"})
	itemsPath := paths.AllocatePathIdFromPath(ordersPath, []string{"items"})

	source := newMemStore()

	order1 := model.ElementID(1)
	order2 := model.ElementID(2)
	item1 := model.ElementID(11)
	item2 := model.ElementID(12)

	source.Put(model.DataElement{ID: order1, PathID: ordersPath, Identity: model.NewIdentity(uuid.NewV4().String()), Type: "order"})
	source.Put(model.DataElement{ID: order2, PathID: ordersPath, Identity: model.NewIdentity(uuid.NewV4().String()), Type: "order"})
	source.Put(model.DataElement{ID: item1, PathID: itemsPath, ParentID: order1, Identity: model.NewIdentity(uuid.NewV4().String()), Type: "item"})
	source.Put(model.DataElement{ID: item2, PathID: itemsPath, ParentID: order2, Identity: model.NewIdentity(uuid.NewV4().String()), Type: "item"})

	root := query.NewIntersectionNode(1, ordersPath, source, paths)
	highValue := query.NewSimpleQueryNode(2, ordersPath)
	inStock := query.NewSimpleQueryNode(3, itemsPath)
	root.AddSubNode(highValue)
	root.AddSubNode(inStock)

	engine.RegisterRoot("orders", root)
	engine.RefreshQuery("orders")

	highValue.AddMatches([]model.ElementID{order1, order2})
	inStock.AddMatches([]model.ElementID{item1})

	fmt.Println("full matches after scenario 1 (two-path intersection):", root.GetMatches())

	target := engine.NewTarget("orders-view")
	if err := target.AddMapping(
		query.ResultID(1), query.ProjID(1), source,
		[]merge.PathPair{{SourcePathID: ordersPath, TargetPathID: ordersPath}},
		10, 0, 0, false, false,
	); err != nil {
		panic(err)
	}
	target.AddProjMatches([]model.ElementID{order1}, nil, query.ResultID(1), query.ProjID(1))

	if err := target.AddMapping(
		query.ResultID(2), query.ProjID(1), source,
		[]merge.PathPair{{SourcePathID: ordersPath, TargetPathID: ordersPath}},
		20, 0, 0, false, false,
	); err != nil {
		panic(err)
	}
	target.AddProjMatches([]model.ElementID{order1}, nil, query.ResultID(2), query.ProjID(1))

	fmt.Println("scenario 3 (priority merge): result 2's mapping wins at priority 20")
}
