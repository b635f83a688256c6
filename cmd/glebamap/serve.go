package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GrainArc/GlebaMap/routers"
	"github.com/GrainArc/GlebaMap/views"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	*rootOptions
	Addr string
}

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &serveOptions{rootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func runServe(ctx context.Context, opts *serveOptions) error {
	a, err := openApp(opts.rootOptions)
	if err != nil {
		return err
	}
	defer a.Close()
	if opts.Addr != "" {
		a.cfg.Addr = opts.Addr
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.cfg.RetentionDays > 0 {
		go a.retentionLoop(ctx, a.cfg.RetentionDays, 24*time.Hour)
	}

	ctrl := views.NewGlebaController(a.svc, a.cfg.Message, a.log)
	srv := &http.Server{Addr: a.cfg.Addr, Handler: routers.NewEngine(ctrl, a.log)}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	a.log.Info("server_started", "addr", a.cfg.Addr, "db", a.cfg.DBDriver)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.log.Info("server_stopping")
	return srv.Shutdown(shutdownCtx)
}

// retentionLoop 启动时清理一次，之后每个周期清理一次
func (a *app) retentionLoop(ctx context.Context, days int, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		if _, err := a.svc.Cleanup(ctx, days); err != nil && ctx.Err() == nil {
			a.log.Error("retention_cleanup_failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
