package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"toolsharer/app"
	"toolsharer/config"
	"toolsharer/routes"
)

func main() {
	config.LoadEnv()
	application := app.MustNew()
	defer application.Close()
	logger := application.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.SeedUsers(ctx, application.Config.SeedEmails, application.Repo, logger)
	routes.RegisterRoutes(application.Router, application)

	srv := &http.Server{
		Addr:              ":" + application.Config.Port,
		Handler:           application.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          log.New(logger, "", 0),
	}
	go func() {
		logger.PrintInfo("listening", map[string]string{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.PrintFatal(err, nil)
		}
	}()

	<-ctx.Done()
	logger.PrintInfo("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.PrintError(err, nil)
	}
}
