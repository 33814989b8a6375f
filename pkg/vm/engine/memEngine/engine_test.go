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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
)

func collect(t *testing.T, it interface {
	Next() bool
	Key() any
	Value() any
	Close() error
}) ([]any, []any) {
	var keys, values []any
	for it.Next() {
		keys = append(keys, it.Key())
		values = append(values, it.Value())
	}
	require.NoError(t, it.Close())
	return keys, values
}

func TestPartitionedMap(t *testing.T) {
	ctx := context.Background()
	e := New()
	defer e.Close()

	m, err := e.CreateMap(ctx, "orders", false)
	require.NoError(t, err)
	require.False(t, m.Replicated())
	require.NoError(t, m.Put(ctx, 1, int64(3), "c"))
	require.NoError(t, m.Put(ctx, 1, int64(1), "a"))
	require.NoError(t, m.Put(ctx, 2, int64(2), "b"))
	// replaces
	require.NoError(t, m.Put(ctx, 1, int64(1), "A"))
	require.Equal(t, 3, m.Len())

	it, err := m.NewIterator(ctx, 1)
	require.NoError(t, err)
	keys, values := collect(t, it)
	require.Equal(t, []any{int64(1), int64(3)}, keys)
	require.Equal(t, []any{"A", "c"}, values)

	it, err = m.NewIterator(ctx, 7)
	require.NoError(t, err)
	keys, _ = collect(t, it)
	require.Empty(t, keys)

	same, err := e.CreateMap(ctx, "orders", false)
	require.NoError(t, err)
	require.Equal(t, 3, same.Len())
}

func TestReplicatedMap(t *testing.T) {
	ctx := context.Background()
	e := New()
	m, err := e.CreateMap(ctx, "rates", true)
	require.NoError(t, err)
	require.NoError(t, m.Put(ctx, 4, "usd", int64(1)))
	require.NoError(t, m.Put(ctx, 9, "eur", int64(2)))

	// every partition reads the whole map
	it, err := m.NewIterator(ctx, 3)
	require.NoError(t, err)
	keys, _ := collect(t, it)
	require.Equal(t, []any{"eur", "usd"}, keys)
}

func TestNoSuchMap(t *testing.T) {
	ctx := context.Background()
	e := New()
	_, err := e.Map(ctx, "missing")
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNoSuchMap))

	_, _ = e.CreateMap(ctx, "b", false)
	_, _ = e.CreateMap(ctx, "a", true)
	require.Equal(t, []string{"a", "b"}, e.Maps())
}

func TestIteratorSnapshot(t *testing.T) {
	ctx := context.Background()
	e := New()
	m, _ := e.CreateMap(ctx, "m", false)
	require.NoError(t, m.Put(ctx, 0, int64(1), nil))
	it, err := m.NewIterator(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, m.Put(ctx, 0, int64(2), nil))
	keys, _ := collect(t, it)
	require.Equal(t, []any{int64(1)}, keys)
}
