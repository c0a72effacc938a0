package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"sourcing/db"
	"sourcing/db/migrations"
	"sourcing/internal/config"
	"sourcing/internal/handlers"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	var store db.Store
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		dbConn, err := sqlx.Connect("postgres", cfg.PostgresConn)
		if err != nil {
			log.Fatalf("Cannot connect to DB: %v", err)
		}
		defer dbConn.Close()

		if err := migrations.Run(dbConn.DB); err != nil {
			log.Fatalf("Cannot apply migrations: %v", err)
		}
		store = db.NewStorage(dbConn)
	default:
		log.Println("Using in-memory storage, data is lost on restart")
		store = db.NewMemStorage()
	}

	h := handlers.NewHandler(store, cfg)
	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           handlers.NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Starting server on %s", cfg.ServerAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return h.Sweeper.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
