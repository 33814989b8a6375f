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
	"context"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/container/codec"
)

// EncodeMessage writes the message type followed by its fields.
func EncodeMessage(msg Message) ([]byte, error) {
	enc := codec.NewEncoder()
	enc.WriteUvarint(uint64(msg.Type()))
	enc.WriteString(msg.QueryID())
	switch m := msg.(type) {
	case *BatchMessage:
		enc.WriteInt(int64(m.Edge))
		enc.WriteString(m.Sender)
		enc.WriteInt(int64(m.SenderStripe))
		enc.WriteInt(int64(m.TargetStripe))
		enc.WriteBool(m.Last)
		if err := enc.WriteBatch(m.Batch); err != nil {
			return nil, err
		}
	case *FlowControlMessage:
		enc.WriteInt(int64(m.Edge))
		enc.WriteString(m.Receiver)
		enc.WriteInt(int64(m.ReceiverStripe))
		enc.WriteInt(int64(m.SenderStripe))
		enc.WriteInt(m.Credit)
	case *ExecuteMessage:
		enc.WriteString(m.Coordinator)
		enc.WriteBytes(m.Plan)
		enc.WriteUvarint(uint64(len(m.Args)))
		for _, arg := range m.Args {
			if err := enc.WriteValue(arg); err != nil {
				return nil, err
			}
		}
	case *StartMessage:
	case *CancelMessage:
		enc.WriteString(m.Origin)
		data, err := m.Err.MarshalBinary()
		if err != nil {
			return nil, err
		}
		enc.WriteBytes(data)
	default:
		return nil, moerr.NewNotSupported(context.Background(), "message type %s", msg.Type())
	}
	return enc.Bytes(), nil
}

func DecodeMessage(data []byte) (Message, error) {
	dec := codec.NewDecoder(data)
	typ, err := dec.ReadUvarint()
	if err != nil {
		return nil, err
	}
	queryId, err := dec.ReadString()
	if err != nil {
		return nil, err
	}
	switch MessageType(typ) {
	case TypeBatch:
		m := &BatchMessage{QueryId: queryId}
		if m.Edge, err = readInt32(dec); err != nil {
			return nil, err
		}
		if m.Sender, err = dec.ReadString(); err != nil {
			return nil, err
		}
		if m.SenderStripe, err = readInt(dec); err != nil {
			return nil, err
		}
		if m.TargetStripe, err = readInt(dec); err != nil {
			return nil, err
		}
		if m.Last, err = dec.ReadBool(); err != nil {
			return nil, err
		}
		if m.Batch, err = dec.ReadBatch(); err != nil {
			return nil, err
		}
		return m, nil
	case TypeFlowControl:
		m := &FlowControlMessage{QueryId: queryId}
		if m.Edge, err = readInt32(dec); err != nil {
			return nil, err
		}
		if m.Receiver, err = dec.ReadString(); err != nil {
			return nil, err
		}
		if m.ReceiverStripe, err = readInt(dec); err != nil {
			return nil, err
		}
		if m.SenderStripe, err = readInt(dec); err != nil {
			return nil, err
		}
		if m.Credit, err = dec.ReadInt(); err != nil {
			return nil, err
		}
		return m, nil
	case TypeExecute:
		m := &ExecuteMessage{QueryId: queryId}
		if m.Coordinator, err = dec.ReadString(); err != nil {
			return nil, err
		}
		if m.Plan, err = dec.ReadBytes(); err != nil {
			return nil, err
		}
		n, err := dec.ReadLen()
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			arg, err := dec.ReadValue()
			if err != nil {
				return nil, err
			}
			m.Args = append(m.Args, arg)
		}
		return m, nil
	case TypeStart:
		return &StartMessage{QueryId: queryId}, nil
	case TypeCancel:
		m := &CancelMessage{QueryId: queryId, Err: new(moerr.Error)}
		if m.Origin, err = dec.ReadString(); err != nil {
			return nil, err
		}
		data, err := dec.ReadBytes()
		if err != nil {
			return nil, err
		}
		if err := m.Err.UnmarshalBinary(data); err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, moerr.NewInvalidInput(context.Background(), "unknown message type %d", typ)
}

func readInt(dec *codec.Decoder) (int, error) {
	v, err := dec.ReadInt()
	return int(v), err
}

func readInt32(dec *codec.Decoder) (int32, error) {
	v, err := dec.ReadInt()
	return int32(v), err
}
