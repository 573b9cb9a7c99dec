// Copyright 2017 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package debug

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/metrics/exp"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sunyihoo/poa/internal/flags"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	verbosityFlag = &cli.IntFlag{
		Name:     "verbosity",
		Usage:    "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value:    3,
		Category: flags.LoggingCategory,
	}
	vmoduleFlag = &cli.StringFlag{
		Name:     "log.vmodule",
		Usage:    "Per-module verbosity: comma-separated list of <pattern>=<level> (e.g. consensus/clique=5,core=4)",
		Category: flags.LoggingCategory,
	}
	logFormatFlag = &cli.StringFlag{
		Name:     "log.format",
		Usage:    "Log format to use (terminal|logfmt|json)",
		Value:    "terminal",
		Category: flags.LoggingCategory,
	}
	logFileFlag = &cli.StringFlag{
		Name:     "log.file",
		Usage:    "Write logs to the given file as well",
		Category: flags.LoggingCategory,
	}
	logRotateFlag = &cli.BoolFlag{
		Name:     "log.rotate",
		Usage:    "Rotate and compress the file given by --log.file",
		Category: flags.LoggingCategory,
	}
	logMaxSizeFlag = &cli.IntFlag{
		Name:     "log.maxsize",
		Usage:    "Maximum size in MBs of a log file before it gets rotated",
		Value:    100,
		Category: flags.LoggingCategory,
	}
	logMaxBackupsFlag = &cli.IntFlag{
		Name:     "log.maxbackups",
		Usage:    "Maximum number of rotated log files to retain",
		Value:    10,
		Category: flags.LoggingCategory,
	}

	pprofFlag = &cli.BoolFlag{
		Name:     "pprof",
		Usage:    "Enable the pprof HTTP server",
		Category: flags.ProfilingCategory,
	}
	pprofAddrFlag = &cli.StringFlag{
		Name:     "pprof.addr",
		Usage:    "pprof HTTP server listening address",
		Value:    "127.0.0.1:6060",
		Category: flags.ProfilingCategory,
	}
	cpuprofileFlag = &cli.StringFlag{
		Name:     "pprof.cpuprofile",
		Usage:    "Write CPU profile to the given file",
		Category: flags.ProfilingCategory,
	}
	traceFlag = &cli.StringFlag{
		Name:     "go-execution-trace",
		Usage:    "Write Go execution trace to the given file",
		Category: flags.ProfilingCategory,
	}
)

var (
	// LoggingFlags configure the root logger.
	LoggingFlags = []cli.Flag{
		verbosityFlag,
		vmoduleFlag,
		logFormatFlag,
		logFileFlag,
		logRotateFlag,
		logMaxSizeFlag,
		logMaxBackupsFlag,
	}
	// ProfilingFlags start the pprof server, CPU profiling and execution tracing.
	ProfilingFlags = []cli.Flag{
		pprofFlag,
		pprofAddrFlag,
		cpuprofileFlag,
		traceFlag,
	}
	// Flags holds all command-line flags handled by Setup.
	// Flags 包含 Setup 处理的全部命令行标志。
	Flags = flags.Merge(LoggingFlags, ProfilingFlags)
)

var errRotateWithoutFile = errors.New("--log.rotate requires --log.file")

var (
	glogger       *log.GlogHandler
	logOutputFile io.WriteCloser
)

func init() {
	glogger = log.NewGlogHandler(log.NewTerminalHandler(os.Stderr, false))
}

// logConfig is the logger setup requested on the command line.
type logConfig struct {
	verbosity  int
	vmodule    string
	format     string
	file       string
	rotate     bool
	maxSize    int
	maxBackups int
}

func logConfigFromContext(ctx *cli.Context) logConfig {
	return logConfig{
		verbosity:  ctx.Int(verbosityFlag.Name),
		vmodule:    ctx.String(vmoduleFlag.Name),
		format:     ctx.String(logFormatFlag.Name),
		file:       ctx.String(logFileFlag.Name),
		rotate:     ctx.Bool(logRotateFlag.Name),
		maxSize:    ctx.Int(logMaxSizeFlag.Name),
		maxBackups: ctx.Int(logMaxBackupsFlag.Name),
	}
}

// openFile opens the log file, if any was requested. Rotated files are handed
// to lumberjack, which creates them lazily on the first write.
// openFile 打开请求的日志文件；需要轮转时交给 lumberjack，在首次写入时创建。
func (cfg logConfig) openFile() (io.WriteCloser, error) {
	if cfg.file == "" {
		if cfg.rotate {
			return nil, errRotateWithoutFile
		}
		return nil, nil
	}
	if err := validateLogLocation(filepath.Dir(cfg.file)); err != nil {
		return nil, fmt.Errorf("failed to initialize file logger: %v", err)
	}
	if cfg.rotate {
		return &lumberjack.Logger{
			Filename:   cfg.file,
			MaxSize:    cfg.maxSize,
			MaxBackups: cfg.maxBackups,
			Compress:   true,
		}, nil
	}
	return os.OpenFile(cfg.file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}

// newLogHandler creates the record handler of the given format on top of out.
func newLogHandler(format string, out io.Writer, color bool) (slog.Handler, error) {
	switch format {
	case "json":
		return log.JSONHandler(out), nil
	case "logfmt":
		return log.LogfmtHandler(out), nil
	case "", "terminal":
		return log.NewTerminalHandler(out, color), nil
	default:
		return nil, fmt.Errorf("unknown log format: %v", format)
	}
}

// Setup initializes logging and profiling based on the CLI flags.
// It should be called as early as possible in the program.
// Setup 根据 CLI 标志初始化日志和性能分析，应尽可能早地调用。
func Setup(ctx *cli.Context) error {
	cfg := logConfigFromContext(ctx)

	file, err := cfg.openFile()
	if err != nil {
		return err
	}
	var (
		out   = io.Writer(os.Stderr)
		color = false
	)
	if file != nil {
		out = io.MultiWriter(file, os.Stderr)
	} else if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		// Colour only when stderr is the sole, interactive output
		color = os.Getenv("TERM") != "dumb"
		if color {
			out = colorable.NewColorableStderr()
		}
	}
	handler, err := newLogHandler(cfg.format, out, color)
	if err != nil {
		if file != nil {
			file.Close()
		}
		return err
	}
	logOutputFile = file

	glogger = log.NewGlogHandler(handler)
	glogger.Verbosity(log.FromLegacyLevel(cfg.verbosity))
	if err := glogger.Vmodule(cfg.vmodule); err != nil {
		return fmt.Errorf("invalid vmodule pattern: %v", err)
	}
	log.SetDefault(log.NewLogger(glogger))

	if cfg.file != "" {
		log.Info("Logging configured", "file", cfg.file, "format", cfg.format, "rotate", cfg.rotate)
	}
	return setupProfiling(ctx)
}

func setupProfiling(ctx *cli.Context) error {
	if traceFile := ctx.String(traceFlag.Name); traceFile != "" {
		if err := Handler.StartGoTrace(traceFile); err != nil {
			return err
		}
	}
	if cpuFile := ctx.String(cpuprofileFlag.Name); cpuFile != "" {
		if err := Handler.StartCPUProfile(cpuFile); err != nil {
			return err
		}
	}
	if ctx.Bool(pprofFlag.Name) {
		// "metrics.addr" belongs to cmd/utils, a dedicated metrics listener
		// already serves /debug/metrics when it is set.
		StartPProf(ctx.String(pprofAddrFlag.Name), !ctx.IsSet("metrics.addr"))
	}
	return nil
}

// StartPProf starts the pprof HTTP server, optionally exposing the metrics
// registry under /debug/metrics as well.
// StartPProf 启动 pprof HTTP 服务器，可选地在 /debug/metrics 下暴露指标。
func StartPProf(address string, withMetrics bool) {
	if withMetrics {
		exp.Exp(metrics.DefaultRegistry)
	}
	log.Info("Starting pprof server", "addr", fmt.Sprintf("http://%s/debug/pprof", address))
	go func() {
		if err := http.ListenAndServe(address, nil); err != nil {
			log.Error("Failure in running pprof server", "err", err)
		}
	}()
}

// Exit stops all running profiles, flushing their output to the respective file.
func Exit() {
	Handler.StopCPUProfile()
	Handler.StopGoTrace()
	if logOutputFile != nil {
		logOutputFile.Close()
		logOutputFile = nil
	}
}

// validateLogLocation creates the log directory and checks it is writable.
func validateLogLocation(path string) error {
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return fmt.Errorf("error creating the directory: %w", err)
	}
	f, err := os.CreateTemp(path, ".clique-log-check")
	if err != nil {
		return err
	}
	f.Close()
	return os.Remove(f.Name())
}
