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

package logutil

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
)

func restoreConsoleLogger(t *testing.T) {
	t.Cleanup(func() {
		SetupMOLogger(&LogConfig{Level: "info", Format: "console", DisableStore: true})
	})
}

func TestLogToRotatedFile(t *testing.T) {
	restoreConsoleLogger(t)
	file := filepath.Join(t.TempDir(), "distsql.log")
	SetupMOLogger(&LogConfig{
		Level:    "debug",
		Format:   "json",
		Filename: file,
		MaxSize:  1,
	})
	require.Equal(t, file, getGlobalLogConfig().Filename)

	Info("query finished", zap.String("query-id", "q1"))
	Debugf("stripes %d", 4)
	require.NoError(t, GetGlobalLogger().Sync())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Regexp(t, `"msg":"query finished".*"query-id":"q1"`, string(data))
	require.Contains(t, string(data), `"msg":"stripes 4"`)
}

func TestDisableStoreKeepsConsole(t *testing.T) {
	cfg := &LogConfig{Level: "info", Format: "console", Filename: "ignored.log", DisableStore: true}
	require.Equal(t, getConsoleSyncer(), cfg.getSyncer())
	require.Len(t, cfg.getSinks(), 1)
}

func TestLevels(t *testing.T) {
	cfg := &LogConfig{Level: "warn"}
	require.Equal(t, zapcore.WarnLevel, cfg.getLevel().Level())

	for in, want := range map[string]zapcore.Level{
		"":      zapcore.FatalLevel,
		"error": zapcore.ErrorLevel,
		"panic": zapcore.PanicLevel,
		"bogus": zapcore.FatalLevel,
	} {
		cfg := &LogConfig{StacktraceLevel: in}
		require.Equal(t, want, cfg.getStacktraceLevel(), in)
	}
}

func recoverPanic(fn func()) (v any) {
	defer func() {
		v = recover()
	}()
	fn()
	return nil
}

func TestBadConfigPanics(t *testing.T) {
	restoreConsoleLogger(t)
	for _, c := range []struct {
		conf *LogConfig
		msg  string
	}{
		{&LogConfig{Level: "info", Format: "xml"}, "unsupported log format: xml"},
		{&LogConfig{Level: "loud", Format: "json"}, "unsupported log level: loud"},
	} {
		v := recoverPanic(func() { SetupMOLogger(c.conf) })
		err, ok := v.(error)
		require.True(t, ok, "%v", v)
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrInternal))
		require.Contains(t, err.Error(), c.msg)
	}
	require.PanicsWithValue(t, "log file can't be a directory", func() {
		SetupMOLogger(&LogConfig{Level: "info", Format: "json", Filename: t.TempDir()})
	})
}

func TestEncoders(t *testing.T) {
	entry := zapcore.Entry{Level: zapcore.WarnLevel, Message: "credit stall"}

	buf, err := getLoggerEncoder("console").EncodeEntry(entry, nil)
	require.NoError(t, err)
	// like: 0001/01/01 00:00:00.000000 +0000 WARN credit stall
	require.Regexp(t, regexp.MustCompile(`\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}\.\d{6} [+-]\d{4}\s+WARN\s+credit stall`), buf.String())

	buf, err = getLoggerEncoder("json").EncodeEntry(entry, []zap.Field{zap.Int32("edge", 3)})
	require.NoError(t, err)
	require.Regexp(t, `\{.*"level":"WARN".*"msg":"credit stall".*"edge":3\}`, buf.String())
}

func TestAdjust(t *testing.T) {
	l := zap.NewNop()
	require.Equal(t, l, Adjust(l, "exchange"))
	require.NotNil(t, Adjust(nil, "exchange"))
}
