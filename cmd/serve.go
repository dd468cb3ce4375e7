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
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	_ "github.com/franciscosanchezn/gin-device-auth/docs" // Import generated docs
	"github.com/franciscosanchezn/gin-device-auth/internal/auth"
	"github.com/franciscosanchezn/gin-device-auth/internal/config"
	"github.com/franciscosanchezn/gin-device-auth/internal/controllers"
	"github.com/franciscosanchezn/gin-device-auth/internal/database"
	"github.com/franciscosanchezn/gin-device-auth/internal/metrics"
	"github.com/franciscosanchezn/gin-device-auth/internal/services"
	"github.com/franciscosanchezn/gin-device-auth/internal/store"
)

const (
	serviceName     = "device-auth"
	shutdownTimeout = 10 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the authorization server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conf, err := config.LoadConfig()
	if err != nil {
		return err
	}

	db, err := setupDatabase(conf)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, conf)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.WithError(err).Warn("Failed to close state store")
		}
	}()

	applicationService := services.NewApplicationService(db)
	userService := services.NewUserService(db)
	m := metrics.New()

	server, err := auth.NewServer(auth.Options{
		Store:        st,
		Applications: applicationService,
		Users:        userService,
		Passwords:    services.BcryptVerifier{},
		Issuer:       conf.Issuer,
		ServerSecret: conf.AuthSecret,
		PublicURL:    conf.PublicURL,
		Metrics:      m,
	})
	if err != nil {
		return err
	}

	if conf.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	controllers.SetupRoutes(router, controllers.Routes{
		Auth:         controllers.NewAuthController(server, userService, conf.BcryptCost),
		Applications: controllers.NewApplicationController(applicationService),
		Health: controllers.NewHealthController(serviceName, map[string]controllers.Pinger{
			"store":    server,
			"database": controllers.PingFunc(database.Ping(db)),
		}),
		Validator:    server.Validator,
		AdminClients: conf.AdminClients,
		Metrics:      m.Handler(),
		Swagger:      conf.Swagger,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// setupDatabase connects to the configured database and migrates the schema
func setupDatabase(conf *config.Config) (*gorm.DB, error) {
	db, err := database.InitDatabase(conf.Database())
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// openStore returns the state store selected by STORE_DRIVER after checking it answers
func openStore(ctx context.Context, conf *config.Config) (store.Store, error) {
	var st store.Store
	switch conf.StoreDriver {
	case "memory":
		log.Warn("Using in-memory state store")
		st = store.NewMemoryStore()
	default:
		rs, err := store.NewRedisStore(ctx, conf.Redis())
		if err != nil {
			return nil, err
		}
		st = rs
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := st.Ping(pingCtx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("state store is not reachable: %w", err)
	}
	return st, nil
}
