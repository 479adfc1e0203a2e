// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
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
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogLevel int

const (
	// ErrLevel=1 - the minimum level of logging.
	ErrLevel LogLevel = iota + 1

	// WarnLevel=2 - the level for logging warnings, and errors
	WarnLevel

	// InfoLevel=3 - the level for logging high-level information, results
	InfoLevel

	// DebugLevel=4 - the level for debugging information. The tool will run properly on large applications with
	// that level of debug information.
	DebugLevel

	// TraceLevel=5 - the level for tracing. Every transfer of the intra-procedural analysis is logged, which is
	// only useful on small applications.
	TraceLevel
)

// zapLevel returns the zap level enabling all the messages of level l. Trace messages are logged at the debug level
// of zap.
func (l LogLevel) zapLevel() zapcore.Level {
	switch {
	case l <= ErrLevel:
		return zapcore.ErrorLevel
	case l == WarnLevel:
		return zapcore.WarnLevel
	case l == InfoLevel:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// LogGroup is the leveled logger of the analyses. Messages are written to the console writer (standard error by
// default) and, if the config sets a log file, in JSON format to a rotated log file.
type LogGroup struct {
	level   LogLevel
	name    string
	logFile string
	console zapcore.WriteSyncer
	logger  *zap.SugaredLogger
}

// NewLogGroup returns a log group that is configured to the logging settings stored inside the config
func NewLogGroup(config *Config) *LogGroup {
	l := &LogGroup{
		level:   LogLevel(config.LogLevel),
		logFile: config.LogFile,
		console: zapcore.Lock(os.Stderr),
	}
	l.build()
	return l
}

func (l *LogGroup) build() {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.CallerKey = ""
	encoderConfig.StacktraceKey = ""
	level := l.level.zapLevel()

	cores := []zapcore.Core{zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), l.console, level)}
	if l.logFile != "" {
		// File encoder is always JSON for structured logging.
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   l.logFile,
			MaxSize:    100,
			MaxBackups: 3,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), fileWriter,
			level))
	}
	logger := zap.New(zapcore.NewTee(cores...))
	if l.name != "" {
		logger = logger.Named(l.name)
	}
	l.logger = logger.Sugar()
}

// Named returns a log group with the same settings whose messages are prefixed by the name of a component
func (l *LogGroup) Named(name string) *LogGroup {
	n := &LogGroup{level: l.level, name: name, logFile: l.logFile, console: l.console}
	if l.name != "" {
		n.name = l.name + "." + name
	}
	n.build()
	return n
}

// SetAllOutput sets the console output writer to the writer provided
func (l *LogGroup) SetAllOutput(w io.Writer) {
	l.console = zapcore.AddSync(w)
	l.build()
}

// SetLevel changes the level of the log group
func (l *LogGroup) SetLevel(level LogLevel) {
	l.level = level
	l.build()
}

// Level returns the level of the log group
func (l *LogGroup) Level() LogLevel {
	return l.level
}

// LogsTrace returns true when trace messages are logged. Callers use it to avoid computing expensive messages.
func (l *LogGroup) LogsTrace() bool {
	return l.level >= TraceLevel
}

// Tracef prints to the trace logger. Arguments are handled in the manner of Printf
func (l *LogGroup) Tracef(format string, v ...any) {
	if l.level >= TraceLevel {
		l.logger.Debugf("[TRACE] "+format, v...)
	}
}

// Debugf prints to the debug logger. Arguments are handled in the manner of Printf
func (l *LogGroup) Debugf(format string, v ...any) {
	if l.level >= DebugLevel {
		l.logger.Debugf(format, v...)
	}
}

// Infof prints to the info logger. Arguments are handled in the manner of Printf
func (l *LogGroup) Infof(format string, v ...any) {
	if l.level >= InfoLevel {
		l.logger.Infof(format, v...)
	}
}

// Warnf prints to the warning logger. Arguments are handled in the manner of Printf
func (l *LogGroup) Warnf(format string, v ...any) {
	if l.level >= WarnLevel {
		l.logger.Warnf(format, v...)
	}
}

// Errorf prints to the error logger. Arguments are handled in the manner of Printf
func (l *LogGroup) Errorf(format string, v ...any) {
	if l.level >= ErrLevel {
		l.logger.Errorf(format, v...)
	}
}

// Sync flushes the buffered log entries
func (l *LogGroup) Sync() error {
	return l.logger.Sync()
}
