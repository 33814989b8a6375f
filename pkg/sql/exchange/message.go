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

package exchange

import (
	"fmt"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/container/batch"
)

type MessageType uint8

const (
	TypeBatch MessageType = iota + 1
	TypeFlowControl
	TypeExecute
	TypeStart
	TypeCancel
)

func (t MessageType) String() string {
	switch t {
	case TypeBatch:
		return "batch"
	case TypeFlowControl:
		return "flow-control"
	case TypeExecute:
		return "execute"
	case TypeStart:
		return "start"
	case TypeCancel:
		return "cancel"
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// Message is what members exchange during a query.
type Message interface {
	Type() MessageType
	QueryID() string
}

// BatchMessage carries rows of one sender stripe to one receiver stripe.
// Last marks the end of that sender stripe's stream.
type BatchMessage struct {
	QueryId      string
	Edge         int32
	Sender       string
	SenderStripe int
	TargetStripe int
	Batch        *batch.Batch
	Last         bool
}

// FlowControlMessage replaces the credit of the outbox feeding
// Receiver/ReceiverStripe from SenderStripe.
type FlowControlMessage struct {
	QueryId        string
	Edge           int32
	Receiver       string
	ReceiverStripe int
	SenderStripe   int
	Credit         int64
}

// ExecuteMessage asks a participant to build its fragments. Nothing runs
// before the StartMessage.
type ExecuteMessage struct {
	QueryId     string
	Coordinator string
	Plan        []byte
	Args        []any
}

type StartMessage struct {
	QueryId string
}

// CancelMessage reports a failure from Origin. Sent by participants to the
// coordinator, and by the coordinator to everyone else.
type CancelMessage struct {
	QueryId string
	Origin  string
	Err     *moerr.Error
}

func (m *BatchMessage) Type() MessageType {
	return TypeBatch
}

func (m *FlowControlMessage) Type() MessageType {
	return TypeFlowControl
}

func (m *ExecuteMessage) Type() MessageType {
	return TypeExecute
}

func (m *StartMessage) Type() MessageType {
	return TypeStart
}

func (m *CancelMessage) Type() MessageType {
	return TypeCancel
}

func (m *BatchMessage) QueryID() string {
	return m.QueryId
}

func (m *FlowControlMessage) QueryID() string {
	return m.QueryId
}

func (m *ExecuteMessage) QueryID() string {
	return m.QueryId
}

func (m *StartMessage) QueryID() string {
	return m.QueryId
}

func (m *CancelMessage) QueryID() string {
	return m.QueryId
}


// Code and Message describe the failure that caused the cancellation.
func (m *CancelMessage) Code() uint16 {
	return m.Err.ErrorCode()
}

func (m *CancelMessage) Message() string {
	return m.Err.Error()
}
