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

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/matrixorigin/distsql/pkg/logutil"
	v2 "github.com/matrixorigin/distsql/pkg/util/metric/v2"
)

var (
	cpuProfilePathFlag  = flag.String("cpu-profile", "", "write cpu profile to the specified file")
	heapProfilePathFlag = flag.String("heap-profile", "", "write heap profile to the specified file")
	httpListenAddr      = flag.String("debug-http", "", "http server listen address for pprof and metrics")
)

func startCPUProfile() func() {
	f, err := os.Create(*cpuProfilePathFlag)
	if err != nil {
		panic(err)
	}
	if err = pprof.StartCPUProfile(f); err != nil {
		panic(err)
	}
	logutil.Infof("CPU profiling enabled, writing to %s", *cpuProfilePathFlag)
	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}
}

func writeHeapProfile() {
	f, err := os.Create(*heapProfilePathFlag)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		panic(err)
	}
	logutil.Infof("Heap profile written to %s", *heapProfilePathFlag)
}

// startDebugServer serves pprof and the distsql metrics.
func startDebugServer(addr string) func() {
	http.Handle("/metrics", promhttp.HandlerFor(v2.GetPrometheusGatherer(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logutil.Error("debug http server failed", zap.Error(err))
		}
	}()
	logutil.Info("debug http server started", zap.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
