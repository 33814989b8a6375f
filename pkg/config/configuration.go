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

package config

import (
	"context"
	"os"
	"runtime"

	"github.com/BurntSushi/toml"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
	"github.com/matrixorigin/distsql/pkg/logutil"
)

const (
	OptimizerDefault = "default"
	OptimizerNoop    = "noop"

	CodecNone   = "none"
	CodecBinary = "binary"
	CodecLZ4    = "lz4"

	EngineMem    = "mem"
	EnginePebble = "pebble"
)

const (
	defaultBatchSize           = 1024
	defaultInitialCredit       = 512 * 1024
	defaultRowWidth            = 100
	defaultScanBatchRows       = 1024
	defaultFragmentParallelism = 1
	defaultMaxIterationsPerRun = 64
	defaultPartitionCount      = 271
)

// SQLParameters controls planning and the worker pool.
type SQLParameters struct {
	// Optimizer is "default" or "noop". The noop optimizer rejects every statement.
	Optimizer string `toml:"optimizer"`

	// ThreadCount is the number of fragment workers. Default is the cpu count.
	ThreadCount int `toml:"threadCount"`

	// FragmentParallelism is the number of stripes of every data fragment.
	FragmentParallelism int `toml:"fragmentParallelism"`

	// MaxIterationsPerRun bounds how long a fragment holds its worker before yielding.
	MaxIterationsPerRun int `toml:"maxIterationsPerRun"`
}

// ExchangeParameters controls mailboxes.
type ExchangeParameters struct {
	//bytes. An outbox transmits when buffered rows reach this size. default: 1024
	BatchSize int64 `toml:"batchSize"`

	//bytes. Credit granted to every outbox before the first flow control message. default: 512KB
	InitialCredit int64 `toml:"initialCredit"`

	//bytes. Estimated width of one row. default: 100
	RowWidth int64 `toml:"rowWidth"`

	//none, binary or lz4. How the local transport encodes messages. default: none
	Codec string `toml:"codec"`
}

type ScanParameters struct {
	//rows per batch produced by map scans. default: 1024
	BatchRows int `toml:"batchRows"`
}

type StorageParameters struct {
	//mem or pebble. default: mem
	Engine string `toml:"engine"`

	//root directory of pebble stores, one sub directory per member
	Dir string `toml:"dir"`

	//number of data partitions. default: 271
	PartitionCount int `toml:"partitionCount"`
}

type ClusterParameters struct {
	//member ids of the in-process cluster. The first one coordinates.
	Members []string `toml:"members"`
}

// Parameters of a distsql member.
type Parameters struct {
	SQL      SQLParameters      `toml:"sql"`
	Exchange ExchangeParameters `toml:"exchange"`
	Scan     ScanParameters     `toml:"scan"`
	Storage  StorageParameters  `toml:"storage"`
	Cluster  ClusterParameters  `toml:"cluster"`
	Log      logutil.LogConfig  `toml:"log"`
}

// LoadParameters reads a toml file, fills defaults and validates the result.
func LoadParameters(file string) (*Parameters, error) {
	params := &Parameters{}
	if _, err := toml.DecodeFile(file, params); err != nil {
		if os.IsNotExist(err) {
			return nil, moerr.NewBadConfig(context.Background(), "config file %s does not exist", file)
		}
		return nil, moerr.NewBadConfig(context.Background(), "%v", err)
	}
	params.SetDefaultValues()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

// NewDefaultParameters returns parameters with every default applied.
func NewDefaultParameters() *Parameters {
	params := &Parameters{}
	params.SetDefaultValues()
	return params
}

// SetDefaultValues fills every unset field.
func (p *Parameters) SetDefaultValues() {
	if p.SQL.Optimizer == "" {
		p.SQL.Optimizer = OptimizerDefault
	}
	if p.SQL.ThreadCount == 0 {
		p.SQL.ThreadCount = runtime.NumCPU()
	}
	if p.SQL.FragmentParallelism == 0 {
		p.SQL.FragmentParallelism = defaultFragmentParallelism
	}
	if p.SQL.MaxIterationsPerRun == 0 {
		p.SQL.MaxIterationsPerRun = defaultMaxIterationsPerRun
	}

	if p.Exchange.BatchSize == 0 {
		p.Exchange.BatchSize = defaultBatchSize
	}
	if p.Exchange.InitialCredit == 0 {
		p.Exchange.InitialCredit = defaultInitialCredit
	}
	if p.Exchange.RowWidth == 0 {
		p.Exchange.RowWidth = defaultRowWidth
	}
	if p.Exchange.Codec == "" {
		p.Exchange.Codec = CodecNone
	}

	if p.Scan.BatchRows == 0 {
		p.Scan.BatchRows = defaultScanBatchRows
	}

	if p.Storage.Engine == "" {
		p.Storage.Engine = EngineMem
	}
	if p.Storage.PartitionCount == 0 {
		p.Storage.PartitionCount = defaultPartitionCount
	}

	if len(p.Cluster.Members) == 0 {
		p.Cluster.Members = []string{"member-0", "member-1", "member-2"}
	}

	if p.Log.Level == "" {
		p.Log.Level = "info"
	}
	if p.Log.Format == "" {
		p.Log.Format = "console"
	}
	if p.Log.MaxSize == 0 {
		p.Log.MaxSize = 512
	}
}

// Validate checks values SetDefaultValues cannot repair.
func (p *Parameters) Validate() error {
	ctx := context.Background()
	switch p.SQL.Optimizer {
	case OptimizerDefault, OptimizerNoop:
	default:
		return moerr.NewBadConfig(ctx, "sql.optimizer must be %q or %q, got %q", OptimizerDefault, OptimizerNoop, p.SQL.Optimizer)
	}
	if p.SQL.ThreadCount <= 0 {
		return moerr.NewBadConfig(ctx, "sql.threadCount must be positive: %d", p.SQL.ThreadCount)
	}
	if p.SQL.FragmentParallelism <= 0 {
		return moerr.NewBadConfig(ctx, "sql.fragmentParallelism must be positive: %d", p.SQL.FragmentParallelism)
	}
	if p.SQL.MaxIterationsPerRun <= 0 {
		return moerr.NewBadConfig(ctx, "sql.maxIterationsPerRun must be positive: %d", p.SQL.MaxIterationsPerRun)
	}
	if p.Exchange.BatchSize <= 0 {
		return moerr.NewBadConfig(ctx, "exchange.batchSize must be positive: %d", p.Exchange.BatchSize)
	}
	if p.Exchange.RowWidth <= 0 {
		return moerr.NewBadConfig(ctx, "exchange.rowWidth must be positive: %d", p.Exchange.RowWidth)
	}
	if p.Exchange.InitialCredit < p.Exchange.RowWidth {
		return moerr.NewBadConfig(ctx, "exchange.initialCredit %d cannot hold a single row of %d bytes",
			p.Exchange.InitialCredit, p.Exchange.RowWidth)
	}
	switch p.Exchange.Codec {
	case CodecNone, CodecBinary, CodecLZ4:
	default:
		return moerr.NewBadConfig(ctx, "unknown exchange.codec %q", p.Exchange.Codec)
	}
	if p.Scan.BatchRows <= 0 {
		return moerr.NewBadConfig(ctx, "scan.batchRows must be positive: %d", p.Scan.BatchRows)
	}
	switch p.Storage.Engine {
	case EngineMem:
	case EnginePebble:
		if p.Storage.Dir == "" {
			return moerr.NewBadConfig(ctx, "storage.dir is required by the pebble engine")
		}
	default:
		return moerr.NewBadConfig(ctx, "unknown storage.engine %q", p.Storage.Engine)
	}
	if p.Storage.PartitionCount <= 0 {
		return moerr.NewBadConfig(ctx, "storage.partitionCount must be positive: %d", p.Storage.PartitionCount)
	}
	seen := make(map[string]struct{}, len(p.Cluster.Members))
	for _, m := range p.Cluster.Members {
		if _, ok := seen[m]; ok {
			return moerr.NewBadConfig(ctx, "duplicate cluster member %q", m)
		}
		seen[m] = struct{}{}
	}
	return nil
}
