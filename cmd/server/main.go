package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"identity-service/internal/config"
	"identity-service/internal/factory"
	"identity-service/internal/util"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	f, err := factory.NewFactory(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize: %v\n", err)
		os.Exit(1)
	}

	if err := run(ctx, f); err != nil {
		util.Error("Server stopped with error", util.ErrorField(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, f *factory.Factory) error {
	cfg := f.Config()
	router := f.Router()

	servers := buildServers(f, cfg, router)

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		s := s
		g.Go(func() error {
			util.Info("Starting server",
				util.String("address", s.srv.Addr),
				util.Bool("tls", s.tls),
				util.String("environment", cfg.Environment))
			var err error
			if s.tls {
				err = s.srv.ListenAndServeTLS("", "")
			} else {
				err = s.srv.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s: %w", s.srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		util.Info("Shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		for _, s := range servers {
			if err := s.srv.Shutdown(shutdownCtx); err != nil {
				util.Error("Failed to shutdown server gracefully",
					util.String("address", s.srv.Addr),
					util.ErrorField(err))
			}
		}
		f.Close(shutdownCtx)
		return nil
	})

	return g.Wait()
}

type server struct {
	srv *http.Server
	tls bool
}

// buildServers returns the API server and, with AutoCert in production, the
// port 80 ACME challenge server.
func buildServers(f *factory.Factory, cfg *config.Config, router http.Handler) []server {
	api := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if !cfg.Server.EnableTLS {
		util.Warn("TLS is disabled", util.Int("port", cfg.Server.Port))
		return []server{{srv: api}}
	}

	tlsManager := f.TLSManager()
	api.TLSConfig = tlsManager.GetTLSConfig()
	api.Addr = fmt.Sprintf(":%d", cfg.Server.TLSPort)

	servers := []server{{srv: api, tls: true}}

	if autoCert := tlsManager.GetAutocertManager(); autoCert != nil && cfg.IsProduction() {
		api.Addr = ":443"
		servers = append(servers, server{srv: &http.Server{
			Addr:              ":80",
			Handler:           autoCert.HTTPHandler(nil),
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
		}})
	}

	return servers
}
