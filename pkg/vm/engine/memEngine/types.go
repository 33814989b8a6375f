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
	"sync"

	"github.com/google/btree"
)

const degree = 32

type memEngine struct {
	sync.RWMutex
	maps map[string]*memMap
}

type memMap struct {
	sync.RWMutex
	name       string
	replicated bool
	// replicated maps keep everything in partition 0
	parts map[uint32]*btree.BTree
}

type entry struct {
	key   any
	value any
}

type iterator struct {
	entries []*entry
	pos     int
}
