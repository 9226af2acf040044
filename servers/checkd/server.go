package checkd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"

	"github.com/AnishMulay/fscheck/internal/check_service/sequential"
	grpccomm "github.com/AnishMulay/fscheck/internal/communication/grpc"
	"github.com/AnishMulay/fscheck/internal/config"
	imageservice "github.com/AnishMulay/fscheck/internal/image_service/localdisc"
	"github.com/AnishMulay/fscheck/internal/log_service"
	locallog "github.com/AnishMulay/fscheck/internal/log_service/localdisc"
	"github.com/AnishMulay/fscheck/internal/log_service/zaplog"
	"github.com/AnishMulay/fscheck/internal/server/checkserver"
)

type Options struct {
	Config *config.Config
}

type runnable interface {
	Run() error
}

type checkDaemon struct {
	server  *checkserver.CheckServer
	closeLS func() error
}

func (d *checkDaemon) Run() error {
	if err := d.server.Start(); err != nil {
		return multierr.Append(err, d.closeLS())
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	return multierr.Append(d.server.Stop(), d.closeLS())
}

func Build(opts Options) (runnable, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// 1. Logging: to a file when a log directory is configured, else stderr
	var ls log_service.LogService
	closeLS := func() error { return nil }
	if cfg.Log.Dir != "" {
		dl, err := locallog.NewLocalDiscLogService(cfg.Log.Dir, cfg.NodeID, cfg.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("create log service: %w", err)
		}
		ls, closeLS = dl, dl.Close
	} else {
		zl := zaplog.NewConsoleLogService(cfg.NodeID, cfg.Log.Level)
		// syncing a terminal fails on some platforms; nothing is buffered anyway
		ls = zl
		closeLS = func() error { _ = zl.Sync(); return nil }
	}

	// 2. Communication
	comm := grpccomm.NewGRPCCommunicator(cfg.Server.ListenAddr, cfg.Server.MaxMessageBytes, ls)

	// 3. Core services
	cs := sequential.NewSequentialCheckService(ls)
	loader := imageservice.NewLocalDiscImageLoader(ls, cfg.Loader.Mmap)

	// 4. Server
	srv := checkserver.NewCheckServer(comm, cs, loader, ls)

	return &checkDaemon{server: srv, closeLS: closeLS}, nil
}
