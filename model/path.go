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
	"strings"
	"sync"
)

// PathID identifies an interned path in a PathAllocator. The zero value
// is never a valid path ID; RootPathID is the path ID of the empty
// attribute sequence.
type PathID uint64

// RootPathID is the path ID of the empty path.
const RootPathID PathID = 1

// PathAllocator interns attribute sequences into PathIDs and tracks
// reference counts on them. It is the external collaborator described
// in spec §6; NewPathAllocator returns the reference in-memory
// implementation used to run the engine end to end.
type PathAllocator interface {
	// AllocatePathIdFromPath interns prefix+attrs (attrs may be nil,
	// meaning "just the prefix") and returns its path ID, retaining a
	// reference on it.
	AllocatePathIdFromPath(prefix PathID, attrs []string) PathID
	// GetPrefix returns the path ID of id with its last attribute
	// removed, or 0 if id is the root.
	GetPrefix(id PathID) (PathID, bool)
	// GetRootPathId returns the path ID of the empty path.
	GetRootPathId() PathID
	// AllocateConcatPathId interns the concatenation of prefix and
	// suffix's attribute sequence.
	AllocateConcatPathId(prefix, suffix PathID) PathID
	// GetPathSuffix returns the attribute sequence of id with prefix's
	// sequence stripped off the front.
	GetPathSuffix(id, prefix PathID) ([]string, bool)
	// DiffPathId returns the attribute sequence that must be appended
	// to shorter to reach longer.
	DiffPathId(longer, shorter PathID) ([]string, bool)
	// ReleasePathId drops a reference on id, potentially destroying it.
	ReleasePathId(id PathID)
	// Retain adds a reference on an already-allocated path ID.
	Retain(id PathID)
	// Attrs returns the full attribute sequence for id.
	Attrs(id PathID) ([]string, bool)
}

type pathEntry struct {
	attrs    []string
	prefix   PathID
	refCount int
}

// pathAllocator is the reference in-memory PathAllocator. Distinct
// attribute sequences are guaranteed distinct IDs by the interning
// map keyed on the joined attribute string, matching spec §3's
// contract.
type pathAllocator struct {
	mu      sync.Mutex
	byKey   map[string]PathID
	entries map[PathID]*pathEntry
	nextID  PathID
}

// NewPathAllocator returns a fresh, empty path allocator with the root
// path already interned.
func NewPathAllocator() PathAllocator {
	a := &pathAllocator{
		byKey:   make(map[string]PathID),
		entries: make(map[PathID]*pathEntry),
		nextID:  RootPathID,
	}
	root := &pathEntry{attrs: nil, prefix: 0, refCount: 1}
	a.entries[RootPathID] = root
	a.byKey[""] = RootPathID
	a.nextID = RootPathID + 1
	return a
}

func key(attrs []string) string {
	return strings.Join(attrs, "\x00")
}

func (a *pathAllocator) AllocatePathIdFromPath(prefix PathID, attrs []string) PathID {
	if len(attrs) > 1 {
		// Intern one attribute at a time, so that GetPrefix of the
		// result is the path with only its last attribute removed.
		mid := a.AllocatePathIdFromPath(prefix, attrs[:len(attrs)-1])
		id := a.AllocatePathIdFromPath(mid, attrs[len(attrs)-1:])
		a.ReleasePathId(mid)
		return id
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	prefixAttrs := a.entries[prefix].attrs
	full := append(append([]string{}, prefixAttrs...), attrs...)
	k := key(full)
	if id, ok := a.byKey[k]; ok {
		a.entries[id].refCount++
		return id
	}

	id := a.nextID
	a.nextID++
	a.entries[id] = &pathEntry{attrs: full, prefix: prefix, refCount: 1}
	a.byKey[k] = id
	a.entries[prefix].refCount++
	return id
}

func (a *pathAllocator) GetPrefix(id PathID) (PathID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[id]
	if !ok || id == RootPathID {
		return 0, false
	}
	return e.prefix, true
}

func (a *pathAllocator) GetRootPathId() PathID {
	return RootPathID
}

func (a *pathAllocator) AllocateConcatPathId(prefix, suffix PathID) PathID {
	a.mu.Lock()
	suffixAttrs := append([]string{}, a.entries[suffix].attrs...)
	a.mu.Unlock()
	return a.AllocatePathIdFromPath(prefix, suffixAttrs)
}

func (a *pathAllocator) GetPathSuffix(id, prefix PathID) ([]string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	full, ok := a.entries[id]
	pfx, ok2 := a.entries[prefix]
	if !ok || !ok2 || len(full.attrs) < len(pfx.attrs) {
		return nil, false
	}
	for i := range pfx.attrs {
		if full.attrs[i] != pfx.attrs[i] {
			return nil, false
		}
	}
	return append([]string{}, full.attrs[len(pfx.attrs):]...), true
}

func (a *pathAllocator) DiffPathId(longer, shorter PathID) ([]string, bool) {
	return a.GetPathSuffix(longer, shorter)
}

func (a *pathAllocator) ReleasePathId(id PathID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.releaseLocked(id)
}

func (a *pathAllocator) releaseLocked(id PathID) {
	e, ok := a.entries[id]
	if !ok {
		return
	}
	e.refCount--
	if e.refCount > 0 || id == RootPathID {
		return
	}
	delete(a.entries, id)
	delete(a.byKey, key(e.attrs))
	if e.prefix != 0 {
		a.releaseLocked(e.prefix)
	}
}

func (a *pathAllocator) Retain(id PathID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok := a.entries[id]; ok {
		e.refCount++
	}
}

func (a *pathAllocator) Attrs(id PathID) ([]string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[id]
	if !ok {
		return nil, false
	}
	return append([]string{}, e.attrs...), true
}

// IsPrefixOf reports whether prefix is prefix-of-or-equal-to id,
// walking GetPrefix.
func IsPrefixOf(a PathAllocator, prefix, id PathID) bool {
	for {
		if prefix == id {
			return true
		}
		p, ok := a.GetPrefix(id)
		if !ok {
			return false
		}
		id = p
	}
}
