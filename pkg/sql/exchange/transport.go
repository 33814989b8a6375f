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
	"sync"

	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/config"
	"github.com/matrixorigin/distsql/pkg/container/codec"
	"github.com/matrixorigin/distsql/pkg/logutil"
)

// Handler processes messages addressed to one member. Handle may be called
// from any goroutine and must not block on query execution.
type Handler interface {
	Handle(ctx context.Context, from string, msg Message) error
}

// Transport delivers messages between members. A failed Send means the
// target is gone; the caller must not retry.
type Transport interface {
	Send(ctx context.Context, from, to string, msg Message) error
}

type Option func(*LocalTransport)

// WithLogger sets the logger of the transport.
func WithLogger(logger *zap.Logger) Option {
	return func(t *LocalTransport) {
		t.logger = logger
	}
}

// LocalTransport connects members living in one process. With a codec
// other than none every message goes through the wire encoding.
type LocalTransport struct {
	sync.RWMutex
	codec   string
	members map[string]Handler
	logger  *zap.Logger
}

var _ Transport = new(LocalTransport)

func NewLocalTransport(codec string, opts ...Option) *LocalTransport {
	t := &LocalTransport{
		codec:   codec,
		members: make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = logutil.GetGlobalLogger().Named("transport")
	}
	return t
}

func (t *LocalTransport) Register(member string, h Handler) {
	t.Lock()
	defer t.Unlock()
	t.members[member] = h
}

// Unregister makes member unreachable, as if it left the cluster.
func (t *LocalTransport) Unregister(member string) {
	t.Lock()
	defer t.Unlock()
	delete(t.members, member)
}

func (t *LocalTransport) Members() []string {
	t.RLock()
	defer t.RUnlock()
	members := maps.Keys(t.members)
	slices.Sort(members)
	return members
}

func (t *LocalTransport) Send(ctx context.Context, from, to string, msg Message) error {
	t.RLock()
	h, ok := t.members[to]
	t.RUnlock()
	if !ok {
		return moerr.NewMemberLeft(ctx, to)
	}
	if t.codec != config.CodecNone {
		var err error
		if msg, err = t.roundTrip(msg); err != nil {
			t.logger.Error("failed to encode message",
				zap.String("query-id", msg.QueryID()),
				zap.String("type", msg.Type().String()),
				zap.Error(err))
			return err
		}
	}
	return h.Handle(ctx, from, msg)
}

func (t *LocalTransport) roundTrip(msg Message) (Message, error) {
	data, err := EncodeMessage(msg)
	if err != nil {
		return msg, err
	}
	if t.codec == config.CodecLZ4 {
		if data, err = codec.Compress(data); err != nil {
			return msg, err
		}
		if data, err = codec.Decompress(data); err != nil {
			return msg, err
		}
	}
	decoded, err := DecodeMessage(data)
	if err != nil {
		return msg, err
	}
	return decoded, nil
}

// sendError reports a lost connection as the target leaving the cluster.
// Other failures pass through.
func sendError(ctx context.Context, target string, err error) error {
	if moerr.IsConnectionRelatedError(err) {
		return moerr.NewMemberLeft(ctx, target)
	}
	return moerr.ConvertGoError(ctx, err)
}
