package cmds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-go-golems/svclaunch/pkg/events"
	"github.com/go-go-golems/svclaunch/pkg/launch"
	"github.com/go-go-golems/svclaunch/pkg/metrics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newUpCmd() *cobra.Command {
	var eventsPath string
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Launch the plan and keep it running until interrupted or an endpoint exits",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadPlan(opts)
			if err != nil {
				return err
			}
			bopts, err := buildOptions(cfg, cmd)
			if err != nil {
				return err
			}
			launcher, err := cfg.Build(bopts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			bus, err := events.NewInMemoryBus()
			if err != nil {
				return err
			}
			events.RegisterLogger(bus)
			if eventsPath != "" {
				w, closeFn, err := openEventsOutput(cmd, eventsPath)
				if err != nil {
					return err
				}
				defer closeFn()
				events.RegisterJSONLWriter(bus, w)
			}

			collector := metrics.NewCollector("")
			launcher.WithEvents(events.NewPublisher(bus.Publisher)).WithMetrics(collector)

			bgCtx, cancelBg := context.WithCancel(context.Background())
			defer cancelBg()
			eg, egCtx := errgroup.WithContext(bgCtx)
			eg.Go(func() error {
				return bus.Run(egCtx)
			})
			if metricsAddr != "" {
				serveMetrics(egCtx, eg, metricsAddr, collector.Handler(), opts.Timeout)
			}

			select {
			case <-bus.Running():
			case <-egCtx.Done():
				return eg.Wait()
			case <-time.After(opts.Timeout):
				cancelBg()
				_ = eg.Wait()
				return errors.New("event bus did not start")
			}

			endpoints, err := launcher.LaunchAll()
			if err != nil {
				cancelBg()
				_ = eg.Wait()
				return err
			}
			log.Info().Int("endpoints", len(endpoints)).Msg("up complete")
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")

			watchErr := watchEndpoints(ctx, egCtx, endpoints)
			launch.TerminateEndpoints(endpoints)
			cancelBg()
			if err := eg.Wait(); err != nil && watchErr == nil {
				return err
			}
			if watchErr != nil {
				return watchErr
			}
			log.Info().Msg("all endpoints stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&eventsPath, "events", "", "Write lifecycle events as JSON lines to this file ('-' for stdout)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9102)")
	return cmd
}

// watchEndpoints blocks until ctx is cancelled, the background group fails,
// or any endpoint process exits.
func watchEndpoints(ctx, bgCtx context.Context, endpoints []*launch.ServiceEndpoint) error {
	exited := make(chan *launch.ServiceEndpoint, len(endpoints))
	for _, ep := range endpoints {
		p := ep.Process()
		go func() {
			select {
			case <-p.Done():
				exited <- ep
			case <-ctx.Done():
			case <-bgCtx.Done():
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("interrupted; stopping endpoints")
		return nil
	case <-bgCtx.Done():
		return nil
	case ep := <-exited:
		p := ep.Process()
		log.Warn().Str("endpoint", ep.Name()).Int("pid", p.PID()).Int("exit_code", p.ExitCode()).Msg("endpoint exited; stopping all endpoints")
		return errors.Errorf("endpoint %s exited with code %d", ep.Name(), p.ExitCode())
	}
}

func serveMetrics(ctx context.Context, eg *errgroup.Group, addr string, h http.Handler, shutdownTimeout time.Duration) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 2 * time.Second}

	eg.Go(func() error {
		log.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "metrics server")
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func openEventsOutput(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "-" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open events file")
	}
	return f, func() { _ = f.Close() }, nil
}
