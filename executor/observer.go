/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/tomoncle/datamap/command"
	"github.com/tomoncle/datamap/database"
)

var silentMode bool

// EnableSilent turns every LogObserver off process-wide.
func EnableSilent(b bool) {
	silentMode = b
}

func operation(cmd *command.Command) string {
	if cmd.Kind == command.StoredProcedure {
		return "EXEC"
	}
	fields := strings.Fields(cmd.Text)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

var operationColors = map[string]color.Attribute{
	"SELECT": color.FgGreen,
	"INSERT": color.FgBlue,
	"UPDATE": color.FgYellow,
	"DELETE": color.FgMagenta,
}

func operationColor(op string, background bool) *color.Color {
	attr, ok := operationColors[op]
	if !ok {
		attr = color.FgRed
	}
	if background {
		attr += color.BgBlack - color.FgBlack
		return color.New(attr, color.FgHiWhite)
	}
	return color.New(attr)
}

// LogObserver prints executed commands, colored by operation. Failed
// commands are always printed when enabled; successful ones only in
// verbose mode. Commands slower than the threshold are also reported
// through the database logger.
type LogObserver struct {
	envName string
	enabled bool
	verbose bool
	slow    time.Duration
	writer  io.Writer
	logger  database.Logger
}

// LogOption configures a LogObserver.
type LogOption func(*LogObserver)

// WithEnabled enables or disables printing.
func WithEnabled(on bool) LogOption {
	return func(o *LogObserver) { o.enabled = on }
}

// WithVerbose prints successful commands too.
func WithVerbose(on bool) LogOption {
	return func(o *LogObserver) { o.verbose = on }
}

// WithWriter sets the output. Defaults to stderr.
func WithWriter(w io.Writer) LogOption {
	return func(o *LogObserver) { o.writer = w }
}

// WithSlowThreshold reports commands running longer than d.
func WithSlowThreshold(d time.Duration) LogOption {
	return func(o *LogObserver) { o.slow = d }
}

// FromEnv names the variable that overrides enabled and verbose: "0" or
// empty disables, "1" prints failures, "2" prints everything.
func FromEnv(name string) LogOption {
	return func(o *LogObserver) { o.envName = name }
}

// NewLogObserver returns an enabled observer reading DATAMAP_DEBUG.
func NewLogObserver(opts ...LogOption) *LogObserver {
	o := &LogObserver{
		envName: "DATAMAP_DEBUG",
		enabled: true,
		writer:  os.Stderr,
		logger:  database.GetLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

var _ Observer = (*LogObserver)(nil)

func (o *LogObserver) BeforeCommand(ctx context.Context, event *Event) context.Context {
	return ctx
}

func (o *LogObserver) AfterCommand(ctx context.Context, event *Event) {
	if silentMode {
		return
	}
	if o.slow > 0 && event.Err == nil && event.Duration > o.slow && o.logger != nil {
		o.logger.Warn("Slow command detected",
			"unit_of_work", event.UnitOfWork,
			"duration", event.Duration,
			"slow_threshold", o.slow,
			"command", event.Command.Text,
		)
	}

	enabled, verbose := o.enabled, o.verbose
	if env, ok := os.LookupEnv(o.envName); ok && o.envName != "" {
		enabled = env != "" && env != "0"
		verbose = env == "2"
	}
	if !enabled || (!verbose && event.Err == nil) {
		return
	}

	args := []interface{}{
		time.Now().Format("2006-01-02 15:04:05.000"),
		color.CyanString("%12s", "[DATAMAP]"),
		fmt.Sprintf("%17s", event.Duration.Round(time.Microsecond)),
		"  ", operationColor(event.Operation, event.Err != nil).Sprint(event.Command.Text),
	}
	if event.Err == nil {
		args = append(args, fmt.Sprintf(" rows=%d", event.Affected))
	} else {
		typ := reflect.TypeOf(event.Err).String()
		args = append(args,
			"\t",
			color.New(color.BgRed).Sprintf(" %s ", typ+": "+event.Err.Error()),
		)
	}
	_, _ = fmt.Fprintln(o.writer, args...)
}
