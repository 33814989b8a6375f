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
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"go.uber.org/zap"

	"github.com/matrixorigin/distsql/pkg/config"
	"github.com/matrixorigin/distsql/pkg/logutil"
)

var (
	configFile = flag.String("cfg", "./etc/distsql.toml", "toml configuration used to start mo-distsql")
	version    = flag.Bool("version", false, "print version information")
	orderCount = flag.Int("orders", 1000, "number of sample orders loaded before the queries run")
)

// set by -ldflags
var (
	CommitID  = ""
	BuildTime = ""
)

func main() {
	flag.Parse()
	maybePrintVersion()

	params, err := config.LoadParameters(*configFile)
	if err != nil {
		panic(fmt.Sprintf("failed to parse config from %s, error: %s", *configFile, err.Error()))
	}
	logutil.SetupMOLogger(&params.Log)

	if *cpuProfilePathFlag != "" {
		stop := startCPUProfile()
		defer stop()
	}
	if *httpListenAddr != "" {
		stop := startDebugServer(*httpListenAddr)
		defer stop()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()
	if err := runDemo(ctx, params, *orderCount, os.Stdout); err != nil {
		logutil.Error("demo failed", zap.Error(err))
		os.Exit(1)
	}
	if *heapProfilePathFlag != "" {
		writeHeapProfile()
	}
}

func maybePrintVersion() {
	if !*version {
		return
	}
	fmt.Println("mo-distsql")
	fmt.Printf("  Go version: %s\n", runtime.Version())
	fmt.Printf("  Commit ID: %s\n", CommitID)
	fmt.Printf("  Build time: %s\n", BuildTime)
	os.Exit(0)
}
