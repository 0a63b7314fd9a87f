package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cronrunner "github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/cron"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/handler"
	"github.com/Giorgos-Mitrakos/magnetMarketStrapiV2-sub001/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scheduled analysis jobs",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.logger

	if strings.EqualFold(a.cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(handler.RequireWriteAuth(a.cfg.Auth.JWTSecret))
	engine.Use(handler.WriteAuditMiddleware(logger.Component(log, "http")))
	if a.cfg.Auth.JWTSecret == "" {
		log.Warn("auth.jwt_secret is empty, write routes are unauthenticated")
	}

	(&handler.HealthHandler{DB: a.db.SQL, Gatherer: a.registry}).Register(engine)
	(&handler.RunHandler{
		Repo:     a.store,
		Batch:    a.batch,
		Defaults: a.batchDefaults,
		BaseCtx:  ctx,
		Logger:   logger.Component(log, "http"),
	}).Register(engine)
	(&handler.OpportunityHandler{Repo: a.store, Manager: a.manager}).Register(engine)
	(&handler.PatternHandler{Repo: a.store, Validator: a.validator}).Register(engine)
	(&handler.ClearanceHandler{Repo: a.store, Detector: a.clearance}).Register(engine)
	(&handler.SettingsHandler{Provider: a.settings}).Register(engine)

	if a.cfg.Cron.Enabled {
		runner := cronrunner.New(logger.Component(log, "cron"), ctx)
		jobs := &cronrunner.Jobs{
			Batch:   a.batch,
			Expirer: a.manager,
			Options: a.batchDefaults,
			Logger:  logger.Component(log, "cron"),
		}
		if err := jobs.Register(runner, a.cfg.Cron); err != nil {
			return err
		}
		runner.Start()
		defer runner.Stop()
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
