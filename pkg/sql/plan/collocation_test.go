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

package plan

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func distFields(cols ...int) []DistributionField {
	return PartitionedBy(cols...).Fields
}

func TestIsCollocatedPartitioned(t *testing.T) {
	cases := []struct {
		groupSet []int
		fields   []DistributionField
		want     bool
	}{
		{groupSet: nil, fields: nil, want: true},
		{groupSet: []int{0, 1}, fields: nil, want: true},
		{groupSet: []int{0, 1}, fields: distFields(0), want: true},
		{groupSet: []int{0, 1}, fields: distFields(0, 1), want: true},
		{groupSet: []int{0, 1}, fields: distFields(1), want: false},
		{groupSet: []int{0}, fields: distFields(0, 1), want: false},
		{groupSet: []int{2, 0}, fields: distFields(2), want: true},
		{groupSet: []int{0, 1}, fields: []DistributionField{{Index: 0, Nested: "id"}}, want: false},
	}
	for i, c := range cases {
		require.Equal(t, c.want, IsCollocatedPartitioned(c.groupSet, c.fields), "case %d", i)
	}
}

func TestIsCollocatedPartitionedPermutations(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for iter := 0; iter < 500; iter++ {
		width := rnd.Intn(6)
		g := rnd.Perm(8)[:width]
		n := 0
		if width > 0 {
			n = rnd.Intn(width + 1)
		}
		d := distFields(g[:n]...)
		require.True(t, IsCollocatedPartitioned(g, d), "g=%v n=%d", g, n)

		longer := distFields(append(append([]int(nil), g...), 9)...)
		require.False(t, IsCollocatedPartitioned(g, longer), "g=%v", g)

		if n == 0 {
			continue
		}
		broken := distFields(g[:n]...)
		broken[rnd.Intn(n)].Index = 100
		require.False(t, IsCollocatedPartitioned(g, broken), "g=%v", g)

		nested := distFields(g[:n]...)
		nested[rnd.Intn(n)].Nested = "inner"
		require.False(t, IsCollocatedPartitioned(g, nested), "g=%v", g)
	}
}
