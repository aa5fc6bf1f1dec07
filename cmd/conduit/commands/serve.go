package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/tfkr-ae/conduit"
	"github.com/tfkr-ae/conduit/db"
	"github.com/tfkr-ae/conduit/internal/sample"
	"github.com/tfkr-ae/conduit/luaparams"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(opts *options) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the article demo application",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.ListenAddress = listen
			}
			logger, err := opts.logger(cmd)
			if err != nil {
				return err
			}

			srv, err := newServer(cfg, logger)
			if err != nil {
				return err
			}
			defer srv.Close()

			ln, err := net.Listen("tcp", cfg.ListenAddress)
			if err != nil {
				return fmt.Errorf("listening on %s : %w", cfg.ListenAddress, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.Serve(ctx, ln)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address, overrides listen_address")
	return cmd
}

// server is the demo HTTP server with the repository it owns.
type server struct {
	http   *http.Server
	repo   *db.Repository
	logger *slog.Logger
}

// newServer opens the database and wires the controller, the article routes and the metrics endpoint.
func newServer(cfg *conduit.Config, logger *slog.Logger) (*server, error) {
	conn, err := db.New(cfg.Path(cfg.Database))
	if err != nil {
		return nil, err
	}
	repo := db.NewRepository(conn)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	controllerOptions := []func(*conduit.Controller) error{
		conduit.WithConfig(cfg),
		conduit.WithLogger(logger),
		conduit.WithMetrics(reg),
	}
	if cfg.Journal {
		scope, err := conduit.ParseScope(cfg.JournalScope)
		if err != nil {
			repo.Close()
			return nil, err
		}
		controllerOptions = append(controllerOptions, conduit.WithJournal(repo), conduit.WithJournalScope(scope))
	}
	if cfg.LuaScript != "" {
		script, err := luaparams.Load(cfg.Path(cfg.LuaScript), luaparams.WithLogger(logger))
		if err != nil {
			repo.Close()
			return nil, err
		}
		logger.Info("loaded params script", "script", script.Name)
		controllerOptions = append(controllerOptions, conduit.WithParamsProcessor(script.Processor()))
	}

	app, err := sample.NewApp(sample.NewStore(repo), controllerOptions...)
	if err != nil {
		repo.Close()
		return nil, err
	}
	app.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	return &server{
		http: &http.Server{
			Addr:              cfg.ListenAddress,
			Handler:           app.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
		},
		repo:   repo,
		logger: logger,
	}, nil
}

// Serve accepts connections on ln until ctx is done, then shuts down gracefully.
func (srv *server) Serve(ctx context.Context, ln net.Listener) error {
	errs := make(chan error, 1)
	go func() {
		srv.logger.Info("serving", "address", ln.Addr().String())
		errs <- srv.http.Serve(ln)
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving : %w", err)
	case <-ctx.Done():
	}

	srv.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down : %w", err)
	}
	return nil
}

// Close releases the database.
func (srv *server) Close() error {
	return srv.repo.Close()
}
