package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/yukikurage/project-tracker/internal/constants"
	"github.com/yukikurage/project-tracker/internal/handlers"
	"github.com/yukikurage/project-tracker/internal/services"
)

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := a.store.Recover(ctx); err != nil {
		return fmt.Errorf("recover store: %w", err)
	}

	authService := services.NewAuthService(a.store.Users, a.logger)
	projectService := services.NewProjectService(a.store, a.logger)
	taskService := services.NewTaskService(a.store, projectService, a.files, a.logger)

	if seedAdmin {
		created, err := authService.SeedAdmin(ctx)
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		if created {
			a.logger.Info("admin account created", "username", constants.AdminUsername)
		}
	}

	gin.SetMode(a.cfg.GinMode)
	r := gin.Default()

	store, err := a.sessionStore()
	if err != nil {
		return err
	}
	// Configure session options based on environment
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   a.cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(constants.SessionCookieName, store))

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	handlers.RegisterRoutes(r, handlers.Services{
		Auth:     authService,
		Projects: projectService,
		Tasks:    taskService,
		Metrics:  promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{Addr: a.cfg.ListenAddr, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "addr", a.cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (a *app) sessionStore() (sessions.Store, error) {
	secret := []byte(a.cfg.SessionSecret)
	if a.cfg.SessionBackend == "cookie" {
		return cookie.NewStore(secret), nil
	}
	store, err := redisStore.NewStoreWithPool(a.redisPool(), secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis session store: %w", err)
	}
	return store, nil
}
