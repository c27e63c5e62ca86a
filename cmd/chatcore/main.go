package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"listingchat/internal/app/bootstrap"
	"listingchat/internal/infra/config"
	ginserver "listingchat/internal/infra/http/gin"
	"listingchat/internal/infra/obs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// run owns every resource it opens; it returns instead of exiting so the
// deferred closers always run.
func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger("dev").Error("config load failed", "error", err)
		return err
	}
	logger := obs.NewLogger(cfg.Env)

	app, err := wire(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return err
	}
	defer app.close()

	if err := serve(ctx, cfg, app, logger); err != nil {
		logger.Error("listingchat stopped with error", "error", err)
		return err
	}
	logger.Info("listingchat stopped")
	return nil
}

func serve(ctx context.Context, cfg config.Config, app *application, logger *slog.Logger) error {
	buses := bootstrap.Build(app.deps)
	health := obs.HealthHandlers{Checks: app.checks}
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, health, ginserver.Handlers{
		Chat:   ginserver.ChatHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Roster: ginserver.RosterHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageDriver, "listing_gateway", cfg.ListingGateway)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.GRPCAddr != "" {
		grpcServer, _ := obs.NewGRPCServer(ctx, health, 5*time.Second, logger)
		g.Go(func() error {
			lis, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				return fmt.Errorf("grpc listen %s: %w", cfg.GRPCAddr, err)
			}
			logger.Info("gRPC health server starting", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			grpcServer.GracefulStop()
			return nil
		})
	}

	for _, run := range app.background {
		run := run
		g.Go(func() error {
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
