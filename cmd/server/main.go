// Package main initializes and starts the Staffonic portal server,
// setting up configuration, logging, the session database, the remote
// store and identity clients, services, handlers and optional TLS.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/atinyakov/staffonic/internal/access"
	"github.com/atinyakov/staffonic/internal/config"
	"github.com/atinyakov/staffonic/internal/crypto"
	"github.com/atinyakov/staffonic/internal/db"
	"github.com/atinyakov/staffonic/internal/identity"
	"github.com/atinyakov/staffonic/internal/logger"
	"github.com/atinyakov/staffonic/internal/repository"
	"github.com/atinyakov/staffonic/internal/server/handler/http"
	"github.com/atinyakov/staffonic/internal/service"
	"github.com/atinyakov/staffonic/internal/session"
	"github.com/atinyakov/staffonic/internal/store"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	options := config.Default()

	cmd := &cobra.Command{
		Use:           "staffonic-server",
		Short:         "Staffonic HR and payroll portal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := options.Load(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, options)
		},
	}
	options.BindFlags(cmd.Flags())

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, options *config.Options) error {
	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	zapLogger := log.Log

	if options.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	sealer, err := crypto.NewSealer([]byte(options.SessionSecret))
	if err != nil {
		return err
	}

	table, err := access.Load(options.PermissionsFile)
	if err != nil {
		return err
	}

	// Initialize PostgreSQL connection.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("cannot init database: %w", err)
	}
	defer postgresDB.Close()

	db.StartExpiredSessionCleaner(ctx, postgresDB, time.Duration(options.CleanupInterval), zapLogger)

	// Remote store and identity provider clients.
	storeHTTP, err := store.NewHTTPClient(options.StoreCA, 15*time.Second)
	if err != nil {
		return err
	}
	storeClient := store.New(options.StoreURL, storeHTTP, zapLogger)

	identityHTTP, err := store.NewHTTPClient("", 15*time.Second)
	if err != nil {
		return err
	}
	var verifier identity.Verifier = identity.UnverifiedParser{}
	if options.VerifyTokens {
		verifier = identity.NewOIDCVerifier(ctx, options.FirebaseProjectID, identityHTTP)
	} else {
		zapLogger.Warn("identity token signatures are not verified")
	}
	provider := identity.NewFirebase(identity.FirebaseConfig{
		APIKey:      options.FirebaseAPIKey,
		IdentityURL: options.IdentityURL,
		TokenURL:    options.TokenURL,
	}, identityHTTP, verifier, zapLogger)

	// Sessions: repository, manager and its sweeper.
	sessionRepo := repository.NewPostgresSessionRepository(postgresDB)
	manager := session.NewManager(provider, storeClient, sessionRepo, sealer, session.ManagerConfig{
		TTL:      time.Duration(options.SessionTTL),
		Interval: time.Duration(options.RefreshInterval),
	}, zapLogger)
	defer manager.Shutdown()
	manager.StartSweeper(ctx, time.Minute)

	authService := service.NewAuthService(manager, storeClient)

	secure := options.TLSCert != "" && options.TLSKey != ""
	authHandler := &http.AuthHandler{AuthService: authService, Access: table, CookieSecure: secure, Log: zapLogger}
	viewHandler := &http.Handler{Store: storeClient, Access: table, Log: zapLogger}

	router := http.NewRouter(authHandler, viewHandler, manager, zapLogger)

	server := &nethttp.Server{
		Addr:              options.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if secure {
		server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLogger.Info("starting portal server", zap.String("addr", options.ListenAddr), zap.Bool("tls", secure))
		var err error
		if secure {
			err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		zapLogger.Info("shutting down portal server")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
