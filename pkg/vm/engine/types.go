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

package engine

import (
	"context"
)

// Engine is the map storage of one member. It holds the partitions the
// member owns and a full copy of every replicated map.
type Engine interface {
	// CreateMap returns the existing map if there is one.
	CreateMap(ctx context.Context, name string, replicated bool) (Map, error)
	// Map fails with ErrNoSuchMap for unknown names.
	Map(ctx context.Context, name string) (Map, error)
	Maps() []string
	Close() error
}

type Map interface {
	Name() string
	Replicated() bool
	// Put stores an entry in a partition. Replicated maps ignore the
	// partition.
	Put(ctx context.Context, partition uint32, key, value any) error
	// NewIterator reads one partition, or the whole map if it is
	// replicated. The order of entries is stable for one engine.
	NewIterator(ctx context.Context, partition uint32) (Iterator, error)
	// Len counts the entries this member holds.
	Len() int
}

// Iterator walks a consistent view of a partition.
type Iterator interface {
	Next() bool
	Key() any
	Value() any
	Err() error
	Close() error
}
