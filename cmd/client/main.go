// Package main is the Staffonic terminal client.
package main

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atinyakov/staffonic/internal/access"
	"github.com/atinyakov/staffonic/internal/client"
	"github.com/atinyakov/staffonic/internal/config"
	"github.com/atinyakov/staffonic/internal/identity"
	"github.com/atinyakov/staffonic/internal/logger"
	"github.com/atinyakov/staffonic/internal/session"
	"github.com/atinyakov/staffonic/internal/store"
)

var (
	version   string
	buildDate string
)

// newShell restores the remembered session and wires the shell to the
// store and identity provider.
func newShell(ctx context.Context, options *config.Options) (*client.Shell, error) {
	log := logger.New()
	if err := log.Init(options.LogLevel); err != nil {
		return nil, err
	}

	table, err := access.Load(options.PermissionsFile)
	if err != nil {
		return nil, err
	}

	storeHTTP, err := store.NewHTTPClient(options.StoreCA, 15*time.Second)
	if err != nil {
		return nil, err
	}
	st := store.New(options.StoreURL, storeHTTP, log.Log)

	identityHTTP, err := store.NewHTTPClient("", 15*time.Second)
	if err != nil {
		return nil, err
	}
	var verifier identity.Verifier = identity.UnverifiedParser{}
	if options.VerifyTokens {
		verifier = identity.NewOIDCVerifier(ctx, options.FirebaseProjectID, identityHTTP)
	}
	auth := identity.NewAuth(identity.NewFirebase(identity.FirebaseConfig{
		APIKey:      options.FirebaseAPIKey,
		IdentityURL: options.IdentityURL,
		TokenURL:    options.TokenURL,
	}, identityHTTP, verifier, log.Log))

	file, err := client.OpenSessionFile(options.SessionFile)
	if err != nil {
		return nil, err
	}
	if err := client.Restore(ctx, auth, file); err != nil {
		log.Log.Warn("could not restore session", zap.Error(err))
	}

	resolver := session.NewResolver(st,
		session.WithInterval(time.Duration(options.RefreshInterval)),
		session.WithLogger(log.Log),
	)
	return client.NewShell(client.Config{
		Auth:     auth,
		Resolver: resolver,
		Store:    st,
		Access:   table,
		File:     file,
		Prompt:   client.NewPrompter(os.Stdin, os.Stdout),
		Out:      os.Stdout,
		Log:      log.Log,
	}), nil
}

// oneShot runs a single shell command and exits.
func oneShot(options *config.Options, line string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		sh, err := newShell(cmd.Context(), options)
		if err != nil {
			return err
		}
		defer sh.Close()
		sh.Exec(cmd.Context(), line)
		return nil
	}
}

func main() {
	options := config.Default()

	root := &cobra.Command{
		Use:           "staffonic",
		Short:         "Staffonic terminal client",
		Version:       fmt.Sprintf("%s (built %s)", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A")),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return options.Load()
		},
	}
	options.BindFlags(root.PersistentFlags())

	shell := &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive shell",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sh, err := newShell(cmd.Context(), options)
			if err != nil {
				return err
			}
			defer sh.Close()
			return sh.Run(cmd.Context())
		},
	}
	root.RunE = shell.RunE

	root.AddCommand(
		shell,
		&cobra.Command{Use: "login", Short: "Sign in and remember the session", RunE: oneShot(options, "login")},
		&cobra.Command{Use: "register", Short: "Create an account", RunE: oneShot(options, "register")},
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
