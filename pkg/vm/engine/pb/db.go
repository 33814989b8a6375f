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

package pb

import (
	"context"
	"encoding/binary"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/container/codec"
	"github.com/matrixorigin/distsql/pkg/vm/engine"
)

// New opens a pebble store in dir. An empty dir keeps the store in memory.
func New(dir string) (engine.Engine, error) {
	opts := &pebble.Options{}
	if dir == "" {
		opts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, err
	}
	e := &pbEngine{db: db, maps: make(map[string]*pbMap)}
	if err := e.loadMaps(); err != nil {
		db.Close()
		return nil, err
	}
	return e, nil
}

func (e *pbEngine) loadMaps() error {
	prefix := []byte{metaPrefix}
	itr := e.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	for itr.First(); itr.Valid(); itr.Next() {
		name := string(itr.Key()[1:])
		v := itr.Value()
		e.maps[name] = &pbMap{db: e.db, name: name, replicated: len(v) > 0 && v[0] == 1}
	}
	if err := itr.Error(); err != nil {
		itr.Close()
		return err
	}
	return itr.Close()
}

func (e *pbEngine) CreateMap(_ context.Context, name string, replicated bool) (engine.Map, error) {
	e.Lock()
	defer e.Unlock()
	if m, ok := e.maps[name]; ok {
		return m, nil
	}
	flag := []byte{0}
	if replicated {
		flag[0] = 1
	}
	if err := e.db.Set(metaKey(name), flag, pebble.Sync); err != nil {
		return nil, err
	}
	m := &pbMap{db: e.db, name: name, replicated: replicated}
	e.maps[name] = m
	return m, nil
}

func (e *pbEngine) Map(ctx context.Context, name string) (engine.Map, error) {
	e.Lock()
	defer e.Unlock()
	m, ok := e.maps[name]
	if !ok {
		return nil, moerr.NewNoSuchMap(ctx, name)
	}
	return m, nil
}

func (e *pbEngine) Maps() []string {
	e.Lock()
	defer e.Unlock()
	names := maps.Keys(e.maps)
	slices.Sort(names)
	return names
}

func (e *pbEngine) Close() error {
	return e.db.Close()
}

func (m *pbMap) Name() string {
	return m.name
}

func (m *pbMap) Replicated() bool {
	return m.replicated
}

func (m *pbMap) Put(_ context.Context, partition uint32, key, value any) error {
	if m.replicated {
		partition = 0
	}
	enc := codec.NewEncoder()
	if err := enc.WriteValue(key); err != nil {
		return err
	}
	k := append(partitionPrefix(m.name, partition), enc.Bytes()...)
	enc.Reset()
	if err := enc.WriteValue(value); err != nil {
		return err
	}
	return m.db.Set(k, enc.Bytes(), pebble.NoSync)
}

func (m *pbMap) NewIterator(_ context.Context, partition uint32) (engine.Iterator, error) {
	if m.replicated {
		partition = 0
	}
	prefix := partitionPrefix(m.name, partition)
	return &pbIterator{itr: m.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})}, nil
}

func (m *pbMap) Len() int {
	prefix := dataPrefixOf(m.name)
	itr := m.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	defer itr.Close()
	n := 0
	for itr.First(); itr.Valid(); itr.Next() {
		n++
	}
	return n
}

func (itr *pbIterator) Next() bool {
	if itr.err != nil {
		return false
	}
	if !itr.started {
		itr.started = true
		itr.itr.First()
	} else {
		itr.itr.Next()
	}
	if !itr.itr.Valid() {
		itr.err = itr.itr.Error()
		return false
	}
	if err := itr.decode(); err != nil {
		itr.err = err
		return false
	}
	return true
}

func (itr *pbIterator) decode() error {
	k := itr.itr.Key()
	// the encoded key follows name, separator and partition
	off := 0
	for k[off] != 0 {
		off++
	}
	key, err := codec.NewDecoder(k[off+5:]).ReadValue()
	if err != nil {
		return err
	}
	value, err := codec.NewDecoder(itr.itr.Value()).ReadValue()
	if err != nil {
		return err
	}
	itr.key, itr.value = key, value
	return nil
}

func (itr *pbIterator) Key() any {
	return itr.key
}

func (itr *pbIterator) Value() any {
	return itr.value
}

func (itr *pbIterator) Err() error {
	return itr.err
}

func (itr *pbIterator) Close() error {
	return itr.itr.Close()
}

func metaKey(name string) []byte {
	return append([]byte{metaPrefix}, name...)
}

func dataPrefixOf(name string) []byte {
	k := make([]byte, 0, len(name)+2)
	k = append(k, dataPrefix)
	k = append(k, name...)
	return append(k, 0)
}

func partitionPrefix(name string, partition uint32) []byte {
	k := dataPrefixOf(name)
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], partition)
	return append(k, buf[:]...)
}

func upperBound(k []byte) []byte {
	u := make([]byte, len(k))
	copy(u, k)
	for i := len(u) - 1; i >= 0; i-- {
		u[i] = u[i] + 1
		if u[i] != 0 {
			return u[:i+1]
		}
	}
	return nil
}
