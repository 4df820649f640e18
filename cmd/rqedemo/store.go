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

package main

import (
	"sync"

	"github.com/cdl-lang/rqe/model"
)

// memStore is a minimal in-memory DataElement table implementing both
// query.GenericIndexer and merge.SourceIndexer, enough to drive the
// demo scenarios end to end without a real external store. It is not
// part of the engine's public surface — a real embedder supplies its
// own collaborator over its own storage.
type memStore struct {
	mu       sync.Mutex
	elements map[model.ElementID]model.DataElement
	children map[model.ElementID][]model.ElementID
	monitors map[model.ElementID]int
}

func newMemStore() *memStore {
	return &memStore{
		elements: make(map[model.ElementID]model.DataElement),
		children: make(map[model.ElementID][]model.ElementID),
		monitors: make(map[model.ElementID]int),
	}
}

func (s *memStore) Put(e model.DataElement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements[e.ID] = e
	if e.HasParent() {
		s.children[e.ParentID] = append(s.children[e.ParentID], e.ID)
	}
}

func (s *memStore) GetEntry(id model.ElementID) (model.DataElement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.elements[id]
	return e, ok
}

func (s *memStore) GetBaseIdentity(id model.ElementID) model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.elements[id]; ok {
		return e.Identity
	}
	return model.DefaultIdentity(id)
}

func (s *memStore) GetDirectChildDataElements(dominatingID model.ElementID, childPathID model.PathID) []model.ElementID {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ElementID
	for _, c := range s.children[dominatingID] {
		if childPathID == 0 {
			out = append(out, c)
			continue
		}
		if e, ok := s.elements[c]; ok && e.PathID == childPathID {
			out = append(out, c)
		}
	}
	return out
}

func (s *memStore) GetDominatedNodes(sourcePathID model.PathID, dominatingIDs []model.ElementID, anchorPathID model.PathID) []model.ElementID {
	s.mu.Lock()
	defer s.mu.Unlock()
	dominating := make(map[model.ElementID]bool, len(dominatingIDs))
	for _, id := range dominatingIDs {
		dominating[id] = true
	}
	var out []model.ElementID
	for id, e := range s.elements {
		if e.PathID != sourcePathID {
			continue
		}
		cur := e.ParentID
		for cur != 0 {
			if dominating[cur] {
				out = append(out, id)
				break
			}
			parent, ok := s.elements[cur]
			if !ok {
				break
			}
			cur = parent.ParentID
		}
	}
	return out
}

func (s *memStore) MonitorSubTree(id model.ElementID, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.monitors[id]++
	} else if s.monitors[id] > 0 {
		s.monitors[id]--
	}
}
