package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path"
	"slices"
	"syscall"

	"github.com/encodeous/routesim/state"
	"github.com/encodeous/tint"
	slogmulti "github.com/samber/slog-multi"
)

// RunOptions controls a single simulation started from the command line.
type RunOptions struct {
	Variant      Variant
	Verbose      bool
	LogPath      string
	SnapshotPath string
	JSON         bool
	// Inspect dumps every router's forwarding table after the final probe round.
	Inspect bool
	// DebugAddr, if set, serves /debug/metrics and /debug/vars while the simulation runs.
	DebugAddr string
	Out       io.Writer
}

// ReadTopology loads and validates a topology document.
func ReadTopology(topologyPath string) (*state.TopologyCfg, error) {
	file, err := os.ReadFile(topologyPath)
	if err != nil {
		return nil, err
	}
	cfg, err := state.ParseTopology(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", topologyPath, err)
	}
	if err := state.TopologyValidator(cfg); err != nil {
		return nil, fmt.Errorf("invalid topology %s: %w", topologyPath, err)
	}
	return cfg, nil
}

// NewLogger builds the console logger, optionally mirrored to logPath.
func NewLogger(level slog.Level, prefix, logPath string) (*slog.Logger, func() error, error) {
	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        level,
			AddSource:    false,
			CustomPrefix: prefix,
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == "time" {
					return slog.Attr{}
				}
				return attr
			},
		}))

	closer := func() error { return nil }
	if logPath != "" {
		err := os.MkdirAll(path.Dir(logPath), 0700)
		if err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
		closer = f.Close
	}
	return slog.New(slogmulti.Fanout(handlers...)), closer, nil
}

// Bootstrap runs the simulation described by topologyPath and prints the route summary.
func Bootstrap(topologyPath string, opts RunOptions) error {
	cfg, err := ReadTopology(topologyPath)
	if err != nil {
		return err
	}
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger, closeLog, err := NewLogger(level, opts.Variant.String(), opts.LogPath)
	if err != nil {
		return err
	}
	defer closeLog()
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	sim, err := NewSimulator(*cfg, opts.Variant, logger)
	if err != nil {
		return err
	}
	if opts.DebugAddr != "" {
		_, stopDebug, err := ServeDebug(opts.DebugAddr, logger)
		if err != nil {
			sim.Stop()
			return err
		}
		defer stopDebug()
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)
	go func() {
		select {
		case <-c:
			cancel(errors.New("received shutdown signal"))
		case <-ctx.Done():
		}
	}()

	if err := sim.Start(ctx); err != nil {
		sim.Stop()
		return err
	}
	logger.Info("simulation is running. To exit early, send SIGINT or Ctrl+C.", "end", cfg.Scaled(cfg.EndTime))
	runErr := sim.WaitEnd(ctx)
	if runErr == nil {
		runErr = sim.FinalRoutes(ctx)
	}
	if runErr == nil && opts.Inspect {
		for _, id := range slices.Concat(cfg.Routers, cfg.ClientIds()) {
			dump, err := sim.Inspect(id)
			if err != nil {
				logger.Warn("failed to inspect node", "node", id, "error", err)
				continue
			}
			fmt.Fprintf(opts.Out, "%s:\n%s\n\n", id, dump)
		}
	}
	sim.Stop()

	fmt.Fprintln(opts.Out, sim.RouteString())
	if opts.SnapshotPath != "" {
		snap, err := sim.Snapshot(opts.JSON)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.SnapshotPath, snap, 0600); err != nil {
			return err
		}
		logger.Info("wrote snapshot", "path", opts.SnapshotPath)
	}
	return runErr
}

// ServeDebug exposes the perf counters and expvars on addr. It returns the bound address
// and a function that shuts the server down.
func ServeDebug(addr string, logger *slog.Logger) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("failed to start debug server: %w", err)
	}
	srv := &http.Server{Handler: http.DefaultServeMux}
	go func() {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("debug server stopped", "error", err)
		}
	}()
	logger.Info("serving debug metrics", "addr", ln.Addr().String())
	return ln.Addr().String(), func() {
		_ = srv.Close()
	}, nil
}
