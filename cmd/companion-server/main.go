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

	"github.com/sirupsen/logrus"

	"companion-backend/internal/config"
	"companion-backend/internal/logger"
	"companion-backend/internal/server"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	for _, warning := range cfg.Warnings {
		log.Warn(warning)
	}

	s, err := server.NewServer(cfg, log)
	if err != nil {
		log.Fatal("failed to create server", logrus.Fields{"error": err.Error()})
	}
	defer s.Close()

	ctx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	s.StartReaper(ctx, cfg.ReaperInterval)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info(fmt.Sprintf("companion server listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("error running HTTP server", logrus.Fields{"error": err.Error()})
		}
	}()

	<-stop
	log.Info("shutting down server...")
	stopReaper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", logrus.Fields{"error": err.Error()})
	} else {
		log.Info("server stopped gracefully")
	}
}
