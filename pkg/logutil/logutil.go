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
	"context"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/matrixorigin/distsql/pkg/common/moerr"
)

// LogConfig serializes log related config in toml/json.
type LogConfig struct {
	// Level log level. debug/info/warn/error/panic/fatal
	Level string `toml:"level"`
	// Format output format. console/json
	Format string `toml:"format"`
	// Filename of the log file. Empty means console only.
	Filename string `toml:"filename"`
	// MaxSize maximum size in MB of a log file before it is rotated.
	MaxSize int `toml:"max-size"`
	// MaxDays maximum number of days to retain old log files.
	MaxDays int `toml:"max-days"`
	// MaxBackups maximum number of old log files to retain.
	MaxBackups int `toml:"max-backups"`
	// DisableStore keeps logs on the console even if Filename is set.
	DisableStore bool `toml:"disable-store"`
	// StacktraceLevel minimum level that records a stacktrace. Default fatal.
	StacktraceLevel string `toml:"stacktrace-level"`
}

var gLogger atomic.Value
var gLogConfig atomic.Value

func init() {
	SetupMOLogger(&LogConfig{
		Level:        zapcore.InfoLevel.String(),
		Format:       "console",
		DisableStore: true,
	})
}

// SetupMOLogger builds the global logger from conf. It panics on a bad
// format or when Filename points to a directory.
func SetupMOLogger(conf *LogConfig) {
	logger, err := conf.build()
	if err != nil {
		panic(err)
	}
	replaceGlobalLogger(logger)
	gLogConfig.Store(*conf)
	Debugf("MO logger init, level=%s, log file=%s", conf.Level, conf.Filename)
}

func getGlobalLogConfig() LogConfig {
	return gLogConfig.Load().(LogConfig)
}

// GetGlobalLogger returns the current global zap logger.
func GetGlobalLogger() *zap.Logger {
	return gLogger.Load().(*zap.Logger)
}

// GetGlobalSugar returns a sugared view of the global logger.
func GetGlobalSugar() *zap.SugaredLogger {
	return GetGlobalLogger().Sugar()
}

// Adjust returns logger if not nil, otherwise a named global logger.
func Adjust(logger *zap.Logger, name string) *zap.Logger {
	if logger != nil {
		return logger
	}
	return GetGlobalLogger().Named(name)
}

func replaceGlobalLogger(logger *zap.Logger) {
	gLogger.Store(logger)
}

func (cfg *LogConfig) build() (*zap.Logger, error) {
	sinks := cfg.getSinks()
	cores := make([]zapcore.Core, 0, len(sinks))
	level := cfg.getLevel()
	for _, sink := range sinks {
		cores = append(cores, zapcore.NewCore(sink.enc, sink.out, level))
	}
	return zap.New(zapcore.NewTee(cores...), cfg.getOptions()...), nil
}

func (cfg *LogConfig) getLevel() zap.AtomicLevel {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		panic(moerr.NewInternalError(context.Background(), "unsupported log level: %s", cfg.Level))
	}
	return level
}

func (cfg *LogConfig) getStacktraceLevel() zapcore.Level {
	level := zapcore.FatalLevel
	if len(cfg.StacktraceLevel) == 0 {
		return level
	}
	if err := level.UnmarshalText([]byte(cfg.StacktraceLevel)); err != nil {
		return zapcore.FatalLevel
	}
	return level
}

func (cfg *LogConfig) getOptions() []zap.Option {
	return []zap.Option{zap.AddStacktrace(cfg.getStacktraceLevel()), zap.AddCaller()}
}

func (cfg *LogConfig) getSyncer() zapcore.WriteSyncer {
	if cfg.Filename == "" || cfg.DisableStore {
		return getConsoleSyncer()
	}
	if stat, err := os.Stat(cfg.Filename); err == nil {
		if stat.IsDir() {
			panic("log file can't be a directory")
		}
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSize,
		MaxAge:     cfg.MaxDays,
		MaxBackups: cfg.MaxBackups,
		LocalTime:  true,
		Compress:   false,
	})
}

func (cfg *LogConfig) getEncoder() zapcore.Encoder {
	return getLoggerEncoder(cfg.Format)
}

// ZapSink pairs an encoder with its output.
type ZapSink struct {
	enc zapcore.Encoder
	out zapcore.WriteSyncer
}

func (cfg *LogConfig) getSinks() []ZapSink {
	sinks := []ZapSink{{cfg.getEncoder(), cfg.getSyncer()}}
	return sinks
}

func getConsoleSyncer() zapcore.WriteSyncer {
	return zapcore.Lock(os.Stdout)
}

var _defaultEncoderConfig = zapcore.EncoderConfig{
	TimeKey:        "time",
	LevelKey:       "level",
	NameKey:        "name",
	CallerKey:      "caller",
	MessageKey:     "msg",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalLevelEncoder,
	EncodeTime:     zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05.000000 -0700"),
	EncodeDuration: zapcore.StringDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

func getLoggerEncoder(format string) zapcore.Encoder {
	switch format {
	case "json":
		return zapcore.NewJSONEncoder(_defaultEncoderConfig)
	case "console", "":
		return zapcore.NewConsoleEncoder(_defaultEncoderConfig)
	default:
		panic(moerr.NewInternalError(context.Background(), "unsupported log format: %s", format))
	}
}

// ElapsedField reports a duration measured from start.
func ElapsedField(start time.Time) zap.Field {
	return zap.Duration("elapsed", time.Since(start))
}
