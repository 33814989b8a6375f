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

// IsCollocatedPartitioned reports whether rows partitioned by fields can be
// grouped by groupSet without moving them: the distribution fields must be
// a prefix of the group key and none of them may be nested.
func IsCollocatedPartitioned(groupSet []int, fields []DistributionField) bool {
	if len(groupSet) < len(fields) {
		return false
	}
	for i, f := range fields {
		if f.Nested != "" || f.Index != groupSet[i] {
			return false
		}
	}
	return true
}
