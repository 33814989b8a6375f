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

package compile

import (
	"context"
	"path/filepath"

	"github.com/RoaringBitmap/roaring"
	"go.uber.org/zap"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/config"
	"github.com/matrixorigin/distsql/pkg/container/batch"
	"github.com/matrixorigin/distsql/pkg/frontend"
	"github.com/matrixorigin/distsql/pkg/logutil"
	"github.com/matrixorigin/distsql/pkg/sql/exchange"
	"github.com/matrixorigin/distsql/pkg/sql/plan"
	"github.com/matrixorigin/distsql/pkg/vm/engine"
	"github.com/matrixorigin/distsql/pkg/vm/engine/memEngine"
	"github.com/matrixorigin/distsql/pkg/vm/engine/pb"
)

// OpenEngine opens the storage of member as configured.
func OpenEngine(params *config.Parameters, member string) (engine.Engine, error) {
	switch params.Storage.Engine {
	case config.EngineMem:
		return memEngine.New(), nil
	case config.EnginePebble:
		return pb.New(filepath.Join(params.Storage.Dir, member))
	default:
		return nil, moerr.NewBadConfig(context.Background(), "unknown storage engine %q", params.Storage.Engine)
	}
}

// Cluster is a set of members in one process connected by a local
// transport. The first member coordinates the queries it runs.
type Cluster struct {
	params       *config.Parameters
	transport    *exchange.LocalTransport
	members      []string
	services     map[string]*Service
	partitionMap map[string]*roaring.Bitmap
	optimizer    plan.Optimizer
	logger       *zap.Logger
}

func NewCluster(
	ctx context.Context,
	params *config.Parameters,
	newEngine func(member string) (engine.Engine, error),
) (*Cluster, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	members := params.Cluster.Members
	if len(members) == 0 {
		return nil, moerr.NewBadConfig(ctx, "cluster has no members")
	}
	optimizer, err := plan.NewOptimizer(ctx, params.SQL.Optimizer, members[0])
	if err != nil {
		return nil, err
	}
	logger := logutil.GetGlobalLogger().Named("cluster")
	c := &Cluster{
		params:       params,
		transport:    exchange.NewLocalTransport(params.Exchange.Codec, exchange.WithLogger(logger)),
		members:      members,
		services:     make(map[string]*Service, len(members)),
		partitionMap: engine.AssignPartitions(members, params.Storage.PartitionCount),
		optimizer:    optimizer,
		logger:       logger,
	}
	for _, m := range members {
		if _, ok := c.services[m]; ok {
			c.Close()
			return nil, moerr.NewBadConfig(ctx, "duplicate member %s", m)
		}
		eng, err := newEngine(m)
		if err != nil {
			c.Close()
			return nil, err
		}
		svc, err := NewService(m, params, eng, c.transport)
		if err != nil {
			_ = eng.Close()
			c.Close()
			return nil, err
		}
		c.services[m] = svc
		c.transport.Register(m, svc)
	}
	logger.Info("cluster started",
		zap.Strings("members", members),
		zap.Int("partitions", params.Storage.PartitionCount))
	return c, nil
}

func (c *Cluster) Members() []string {
	return c.members
}

func (c *Cluster) Service(member string) *Service {
	return c.services[member]
}

func (c *Cluster) Coordinator() *Service {
	return c.services[c.members[0]]
}

// CreateMap creates the map on every member.
func (c *Cluster) CreateMap(ctx context.Context, name string, replicated bool) error {
	for _, m := range c.members {
		if _, err := c.services[m].engine.CreateMap(ctx, name, replicated); err != nil {
			return err
		}
	}
	return nil
}

// Put stores an entry on the member owning its partition, or on every
// member for replicated maps.
func (c *Cluster) Put(ctx context.Context, name string, key, value any) error {
	first, err := c.services[c.members[0]].engine.Map(ctx, name)
	if err != nil {
		return err
	}
	if first.Replicated() {
		for _, m := range c.members {
			mp, err := c.services[m].engine.Map(ctx, name)
			if err != nil {
				return err
			}
			if err = mp.Put(ctx, replicatedPartition, key, value); err != nil {
				return err
			}
		}
		return nil
	}
	part := engine.PartitionOf(key, c.params.Storage.PartitionCount)
	for _, m := range c.members {
		if !c.partitionMap[m].Contains(part) {
			continue
		}
		mp, err := c.services[m].engine.Map(ctx, name)
		if err != nil {
			return err
		}
		return mp.Put(ctx, part, key, value)
	}
	return moerr.NewInternalError(ctx, "partition %d has no owner", part)
}

// Prepare plans a statement for the current partition layout.
func (c *Cluster) Prepare(ctx context.Context, rel plan.Rel) (*plan.QueryPlan, error) {
	return plan.Prepare(ctx, c.optimizer, rel, c.partitionMap, c.params.Storage.PartitionCount,
		c.members[0], c.params.SQL.FragmentParallelism)
}

// Query plans and runs a statement on the coordinator and collects every
// row.
func (c *Cluster) Query(ctx context.Context, rel plan.Rel, args ...any) ([]batch.Row, error) {
	qp, err := c.Prepare(ctx, rel)
	if err != nil {
		return nil, err
	}
	consumer := frontend.NewPagedConsumer(c.params.Scan.BatchRows)
	if _, err = c.Coordinator().Execute(ctx, qp, args, consumer); err != nil {
		return nil, err
	}
	return consumer.ReadAll(ctx)
}

// Leave disconnects a member. Messages to it fail with ErrMemberLeft.
func (c *Cluster) Leave(member string) {
	c.transport.Unregister(member)
	c.logger.Info("member left", zap.String("target", member))
}

func (c *Cluster) Close() error {
	var err error
	for _, m := range c.members {
		svc, ok := c.services[m]
		if !ok {
			continue
		}
		c.transport.Unregister(m)
		svc.Close()
		if cerr := svc.engine.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
