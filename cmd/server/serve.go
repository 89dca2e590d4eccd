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

	"github.com/gin-gonic/gin"
	"github.com/pagewright/internal/config"
	"github.com/pagewright/internal/db"
	"github.com/pagewright/internal/handler"
	"github.com/pagewright/internal/logging"
	"github.com/pagewright/internal/parts"
	"github.com/pagewright/internal/router"
	"github.com/pagewright/internal/service"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	v, err := config.NewViper(cfgFile)
	if err != nil {
		return err
	}
	cfg := config.Load(v)

	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	gin.SetMode(cfg.GinMode)

	registry, err := parts.LoadDefault(cfg.PartsDir)
	if err != nil {
		return fmt.Errorf("load part catalogue: %w", err)
	}

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DefaultWebsite != "" {
		if _, err := service.NewWebsiteService(db.DB).Ensure(ctx, cfg.DefaultWebsite, "", cfg.DefaultLocale); err != nil {
			return fmt.Errorf("ensure default website: %w", err)
		}
	}

	api := handler.NewAPI(db.DB, registry, handler.Options{
		DefaultWebsite: cfg.DefaultWebsite,
		DefaultLocale:  cfg.DefaultLocale,
		Log:            log,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.SetupRouter(api, cfg.SessionSecret, cfg.SessionSecure),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to run server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
