// Command fcheck checks an xv6 file system image for structural
// consistency. It is silent and exits 0 when the image is consistent;
// otherwise it prints one line to stderr and exits 1.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/AnishMulay/fscheck/internal/check_service"
	"github.com/AnishMulay/fscheck/internal/check_service/sequential"
	grpccomm "github.com/AnishMulay/fscheck/internal/communication/grpc"
	"github.com/AnishMulay/fscheck/internal/config"
	imageservice "github.com/AnishMulay/fscheck/internal/image_service/localdisc"
	"github.com/AnishMulay/fscheck/internal/log_service"
	locallog "github.com/AnishMulay/fscheck/internal/log_service/localdisc"
	"github.com/AnishMulay/fscheck/internal/log_service/zaplog"
	"github.com/AnishMulay/fscheck/internal/server/checkserver"
)

const usage = "Usage: fcheck <file_system_image>"

const remoteTimeout = 2 * time.Minute

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

type options struct {
	configPath string
	logDir     string
	logLevel   string
	verbose    bool
	remote     string
	image      string
}

func parseArgs(args []string) (*options, bool) {
	fs := flag.NewFlagSet("fcheck", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var o options
	fs.StringVar(&o.configPath, "config", "", "Path to YAML config file")
	fs.StringVar(&o.logDir, "log-dir", "", "Write logs to this directory")
	fs.StringVar(&o.logLevel, "log-level", "", "Minimum log level")
	fs.BoolVar(&o.verbose, "v", false, "Log to stderr")
	fs.StringVar(&o.remote, "remote", "", "Address of an fcheckd server to check with")

	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return nil, false
	}
	o.image = fs.Arg(0)
	return &o, true
}

// newLogService is silent unless logging was asked for, so a failing run
// still prints exactly one line.
func newLogService(o *options, cfg *config.Config) (log_service.LogService, func(), error) {
	level := cfg.Log.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	dir := cfg.Log.Dir
	if o.logDir != "" {
		dir = o.logDir
	}

	switch {
	case dir != "":
		ls, err := locallog.NewLocalDiscLogService(dir, cfg.NodeID, level)
		if err != nil {
			return nil, nil, err
		}
		return ls, func() { ls.Close() }, nil
	case o.verbose:
		if o.logLevel == "" {
			level = log_service.DebugLevel
		}
		ls := zaplog.NewConsoleLogService(cfg.NodeID, level)
		return ls, func() { _ = ls.Sync() }, nil
	default:
		return zaplog.NewNopLogService(), func() {}, nil
	}
}

func run(args []string, stderr io.Writer) int {
	o, ok := parseArgs(args)
	if !ok {
		fmt.Fprintln(stderr, usage)
		return 1
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "fcheck: %v\n", err)
		return 1
	}

	ls, closeLS, err := newLogService(o, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "fcheck: %v\n", err)
		return 1
	}
	defer closeLS()

	img, err := imageservice.NewLocalDiscImageLoader(ls, cfg.Loader.Mmap).Load(o.image)
	if err != nil {
		fmt.Fprintln(stderr, systemError(o.image, err))
		return 1
	}
	defer img.Close()

	if o.remote != "" {
		return checkRemote(o.remote, img.Data, cfg, ls, stderr)
	}

	_, err = sequential.NewSequentialCheckService(ls).Check(context.Background(), img.Data)
	if err == nil {
		return 0
	}
	if v, ok := check_service.AsViolation(err); ok {
		fmt.Fprintln(stderr, v.Error())
		return 1
	}
	fmt.Fprintf(stderr, "fcheck: %v\n", err)
	return 1
}

func checkRemote(addr string, image []byte, cfg *config.Config, ls log_service.LogService, stderr io.Writer) int {
	comm := grpccomm.NewGRPCCommunicator("", cfg.Server.MaxMessageBytes, ls)
	defer comm.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()

	resp, err := checkserver.NewClient(comm, cfg.NodeID).CheckImage(ctx, addr, image)
	if err != nil {
		fmt.Fprintf(stderr, "fcheck: %v\n", err)
		return 1
	}
	if !resp.OK {
		fmt.Fprintln(stderr, resp.Message)
		return 1
	}
	return 0
}

// systemError formats an open or read failure the way perror does:
// the path, then the operating system's message.
func systemError(path string, err error) string {
	var pe *os.PathError
	if errors.As(err, &pe) {
		return path + ": " + pe.Err.Error()
	}
	return path + ": " + err.Error()
}
