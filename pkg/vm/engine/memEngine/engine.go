// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memEngine

import (
	"context"

	"github.com/google/btree"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/container/types"
	"github.com/matrixorigin/distsql/pkg/vm/engine"
)

func New() engine.Engine {
	return &memEngine{maps: make(map[string]*memMap)}
}

func (e *memEngine) CreateMap(_ context.Context, name string, replicated bool) (engine.Map, error) {
	e.Lock()
	defer e.Unlock()
	if m, ok := e.maps[name]; ok {
		return m, nil
	}
	m := &memMap{
		name:       name,
		replicated: replicated,
		parts:      make(map[uint32]*btree.BTree),
	}
	e.maps[name] = m
	return m, nil
}

func (e *memEngine) Map(ctx context.Context, name string) (engine.Map, error) {
	e.RLock()
	defer e.RUnlock()
	m, ok := e.maps[name]
	if !ok {
		return nil, moerr.NewNoSuchMap(ctx, name)
	}
	return m, nil
}

func (e *memEngine) Maps() []string {
	e.RLock()
	defer e.RUnlock()
	names := maps.Keys(e.maps)
	slices.Sort(names)
	return names
}

func (e *memEngine) Close() error {
	e.Lock()
	defer e.Unlock()
	e.maps = make(map[string]*memMap)
	return nil
}

func (m *memMap) Name() string {
	return m.name
}

func (m *memMap) Replicated() bool {
	return m.replicated
}

func (m *memMap) Put(_ context.Context, partition uint32, key, value any) error {
	if m.replicated {
		partition = 0
	}
	m.Lock()
	defer m.Unlock()
	t, ok := m.parts[partition]
	if !ok {
		t = btree.New(degree)
		m.parts[partition] = t
	}
	t.ReplaceOrInsert(&entry{key: key, value: value})
	return nil
}

func (m *memMap) NewIterator(_ context.Context, partition uint32) (engine.Iterator, error) {
	if m.replicated {
		partition = 0
	}
	m.RLock()
	defer m.RUnlock()
	itr := &iterator{pos: -1}
	t, ok := m.parts[partition]
	if !ok {
		return itr, nil
	}
	itr.entries = make([]*entry, 0, t.Len())
	t.Ascend(func(i btree.Item) bool {
		itr.entries = append(itr.entries, i.(*entry))
		return true
	})
	return itr, nil
}

func (m *memMap) Len() int {
	m.RLock()
	defer m.RUnlock()
	n := 0
	for _, t := range m.parts {
		n += t.Len()
	}
	return n
}

func (e *entry) Less(than btree.Item) bool {
	return types.Compare(e.key, than.(*entry).key) < 0
}

func (itr *iterator) Next() bool {
	if itr.pos >= len(itr.entries) {
		return false
	}
	itr.pos++
	return itr.pos < len(itr.entries)
}

func (itr *iterator) Key() any {
	return itr.entries[itr.pos].key
}

func (itr *iterator) Value() any {
	return itr.entries[itr.pos].value
}

func (itr *iterator) Err() error {
	return nil
}

func (itr *iterator) Close() error {
	itr.entries = nil
	return nil
}
