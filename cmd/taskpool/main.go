// Command taskpool runs a priority task scheduler behind an HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	lg "github.com/Andrej220/go-utils/zlog"

	"github.com/azargarov/taskpool"
	"github.com/azargarov/taskpool/api"
	"github.com/azargarov/taskpool/config"
	"github.com/azargarov/taskpool/notify"
	"github.com/azargarov/taskpool/tracing"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, nil); err != nil {
		fmt.Fprintln(os.Stderr, "taskpool:", err)
		os.Exit(1)
	}
}

// run serves until ctx is done, then shuts down: HTTP server, scheduler
// loop, event notifier, tracing. Events are written to stdout. ready, if
// set, is called with the listening address once requests are accepted.
func run(ctx context.Context, args []string, stdout io.Writer, ready func(addr string)) error {
	fs := flag.NewFlagSet("taskpool", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "path to YAML config file")
	envFile := fs.String("env", ".env", "path to dotenv file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath, *envFile)
	if err != nil {
		return err
	}

	logger := lg.FromContext(ctx).With(lg.String("scheduler", cfg.Name))

	if cfg.Tracing.Enabled {
		if err := tracing.Init(cfg.Name, version, cfg.Tracing.File); err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
	}

	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = tracing.Shutdown(context.Background())
		return fmt.Errorf("listen %s: %w", cfg.HTTPAddr, err)
	}

	events := notify.NewAsync(ctx, notify.NewWriter(stdout), notify.Config{
		Buffer:   cfg.Notify.Buffer,
		Attempts: cfg.Notify.Attempts,
		Initial:  cfg.Notify.Initial,
		Max:      cfg.Notify.Max,
	})

	metrics := &taskpool.AtomicMetrics{}
	opts := cfg.SchedulerOptions()
	opts.Notify = events.Notify
	opts.Metrics = metrics
	opts.Ctx = ctx
	loop := taskpool.NewLoop(opts)

	loopErr := make(chan error, 1)
	go func() { loopErr <- loop.Run(context.WithoutCancel(ctx)) }()

	srv := &http.Server{Handler: api.NewServer(loop)}
	srvErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	var runErr error
	for i := 0; i < cfg.Workers && runErr == nil; i++ {
		if _, err := loop.AddWorker(ctx); err != nil {
			runErr = fmt.Errorf("add worker: %w", err)
		}
	}

	if runErr == nil {
		logger.Info("http server listening", lg.String("addr", ln.Addr().String()))
		if ready != nil {
			ready(ln.Addr().String())
		}

		select {
		case <-ctx.Done():
			logger.Info("shutdown requested")
		case err := <-srvErr:
			if err != nil {
				runErr = fmt.Errorf("http server: %w", err)
			}
		case err := <-loopErr:
			runErr = fmt.Errorf("scheduler loop exited: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", lg.Any("error", err))
	}
	loop.Stop()
	<-loop.Done()

	if err := events.Close(shutdownCtx); err != nil {
		logger.Warn("notifier close", lg.Any("error", err))
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", lg.Any("error", err))
	}

	logger.Info("taskpool stopped",
		lg.Any("created", metrics.Created()),
		lg.Any("completed", metrics.Completed()),
		lg.Any("preempted", metrics.Preempted()),
		lg.Any("notify_dropped", events.Dropped()),
	)
	return runErr
}
