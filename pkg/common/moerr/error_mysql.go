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

package moerr

// mysql error codes reported to clients. Only the ones referenced by
// errorMsgRefer are listed.
const (
	ER_UNKNOWN_ERROR             uint16 = 1105
	ER_WRONG_VALUE_COUNT         uint16 = 1136
	ER_NO_SUCH_TABLE             uint16 = 1146
	ER_NET_ERROR_ON_WRITE        uint16 = 1160
	ER_WRONG_ARGUMENTS           uint16 = 1210
	ER_WRONG_TYPE_FOR_VAR        uint16 = 1232
	ER_NOT_SUPPORTED_YET         uint16 = 1235
	ER_OPTION_PREVENTS_STATEMENT uint16 = 1290
	ER_TRUNCATED_WRONG_VALUE     uint16 = 1292
	ER_QUERY_INTERRUPTED         uint16 = 1317
	ER_DIVISION_BY_ZERO          uint16 = 1365
	ER_DATA_OUT_OF_RANGE         uint16 = 1690
)
