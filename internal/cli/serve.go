package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultguard/vaultguard/internal/api"
	"github.com/vaultguard/vaultguard/internal/config"
	vgerrors "github.com/vaultguard/vaultguard/internal/errors"
	"github.com/vaultguard/vaultguard/internal/identity"
	"github.com/vaultguard/vaultguard/internal/logging"
	"github.com/vaultguard/vaultguard/internal/vault"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s", "server", "run"},
	Short:   "Start the VaultGuard server",
	Long: `Start the VaultGuard server in main mode.

This command starts the HTTP server that handles the credential vault,
accounts and sessions, and the password tooling endpoints.

Example:
  vaultguard serve --config config.yaml --db ./data/vaultguard.db

The server will start listening on the address configured in the config file.`,
	RunE: runServe,
}

var serveFlags struct {
	Host       string
	Port       int
	Timeout    time.Duration
	TLS        bool
	TLSCert    string
	TLSKey     string
	TLSVersion string
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.Host, "host", "", "Server host (overrides config)")
	serveCmd.Flags().IntVar(&serveFlags.Port, "port", 0, "Server port (overrides config)")
	serveCmd.Flags().DurationVar(&serveFlags.Timeout, "timeout", envDuration("SHUTDOWN_TIMEOUT", 30*time.Second), "Shutdown timeout")
	serveCmd.Flags().BoolVar(&serveFlags.TLS, "tls", false, "Enable TLS/HTTPS")
	serveCmd.Flags().StringVar(&serveFlags.TLSCert, "cert", "", "TLS certificate file path")
	serveCmd.Flags().StringVar(&serveFlags.TLSKey, "key", "", "TLS key file path")
	serveCmd.Flags().StringVar(&serveFlags.TLSVersion, "tls-version", "", "Minimum TLS version (1.2 or 1.3)")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if globalFlags.Verbose {
		log.Println("Starting VaultGuard server...")
		log.Printf("Config path: %s", globalFlags.Config)
	}

	logger := logging.NewLogger(logging.WithService("vaultguard"))

	// Load configuration; a missing file runs on documented defaults.
	loader := config.NewLoader(globalFlags.Config, logger)
	cfg, err := loader.Load()
	if err != nil {
		var notFound *vgerrors.ErrConfigNotFound
		if !stderrors.As(err, &notFound) {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		log.Printf("Config file %s not found, using defaults", globalFlags.Config)
		cfg = config.Default()
	}

	// Apply CLI flags to config
	if serveFlags.Host != "" {
		cfg.Server.Host = serveFlags.Host
	}
	if serveFlags.Port != 0 {
		cfg.Server.HTTPPort = serveFlags.Port
	}
	if serveFlags.TLS {
		cfg.Server.TLS.Enabled = true
	}
	if serveFlags.TLSCert != "" {
		cfg.Server.TLS.CertFile = serveFlags.TLSCert
	}
	if serveFlags.TLSKey != "" {
		cfg.Server.TLS.KeyFile = serveFlags.TLSKey
	}
	if serveFlags.TLSVersion != "" {
		cfg.Server.TLS.MinVersion = serveFlags.TLSVersion
	}
	if RootCmd.PersistentFlags().Changed("db") {
		cfg.Vault.DatabasePath = globalFlags.DBPath
	}

	if cfg.Server.LogLevel != "" {
		logger.SetLevel(logging.LogLevel(cfg.Server.LogLevel))
	}

	if cfg.Server.TLS.Enabled {
		if err := validateTLSConfig(cfg.Server.TLS); err != nil {
			return fmt.Errorf("TLS validation failed: %w", err)
		}
	}

	// Vault store per configured backend
	var store vault.Store
	var userStore identity.UserStore
	switch cfg.Vault.Backend {
	case "memory":
		store = vault.NewMemoryStore()
		userStore = identity.NewMemoryUserStore()
		log.Println("Vault backend: memory (records are lost on restart)")
	default:
		sqliteStore, err := vault.NewSQLiteStore(cfg.Vault.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open vault database: %w", err)
		}
		users, err := identity.NewSQLiteUserStore(sqliteStore.DB())
		if err != nil {
			_ = sqliteStore.Close()
			return fmt.Errorf("failed to prepare account storage: %w", err)
		}
		store = sqliteStore
		userStore = users
		log.Printf("Database: %s (WAL mode enabled)", cfg.Vault.DatabasePath)
	}

	// Audit trail
	audit := logging.AuditTrail(logging.NopAuditTrail{})
	if cfg.Audit.Enabled {
		auditFile, err := os.OpenFile(cfg.Audit.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		defer auditFile.Close()
		audit = logging.NewWriterAuditTrail(auditFile)
		log.Printf("Audit trail: %s", cfg.Audit.Path)
	}

	// Identity provider
	provider := identity.NewLocalProvider(
		userStore,
		identity.NewLogMailer(logger),
		logger,
		identity.WithSessionTTL(cfg.Identity.SessionTTL),
		identity.WithTokenTTL(cfg.Identity.TokenTTL),
		identity.WithSignInLimit(cfg.Identity.SignInLimit.MaxFailures, cfg.Identity.SignInLimit.Window),
		identity.WithAuditTrail(audit),
	)

	serverOpts := []api.Option{
		api.WithLogger(logger),
		api.WithAuditTrail(audit),
	}

	if cfg.Identity.OAuth.Enabled() {
		flow := identity.NewOAuthFlow(identity.OAuthConfig{
			ClientID:     cfg.Identity.OAuth.ClientID,
			ClientSecret: cfg.Identity.OAuth.ClientSecret,
			AuthURL:      cfg.Identity.OAuth.AuthURL,
			TokenURL:     cfg.Identity.OAuth.TokenURL,
			UserInfoURL:  cfg.Identity.OAuth.UserInfoURL,
			RedirectURL:  cfg.Identity.OAuth.RedirectURL,
			Scopes:       cfg.Identity.OAuth.Scopes,
		}, provider)
		serverOpts = append(serverOpts, api.WithOAuth(flow))
		log.Println("OAuth sign-in enabled")
	}

	gate := identity.NewGate(provider, logger)
	serverOpts = append(serverOpts, api.WithGate(gate))
	go drainGateEvents(gate)

	server := api.NewServer(cfg.Server, cfg.API, store, provider, serverOpts...)

	// Config hot reload adjusts the log level without a restart.
	loader.SetOnChange(func(next *config.Config) {
		if next.Server.LogLevel != "" {
			logger.SetLevel(logging.LogLevel(next.Server.LogLevel))
			log.Printf("Log level set to %s", next.Server.LogLevel)
		}
	})
	if err := loader.StartWatcher(); err != nil {
		log.Printf("Config watcher warning: %v", err)
	}
	defer loader.StopWatcher()

	setupGracefulShutdown(server, serveFlags.Timeout)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	if cfg.Server.TLS.Enabled {
		log.Printf("Starting VaultGuard HTTPS server on %s", addr)
	} else {
		log.Printf("Starting VaultGuard HTTP server on %s", addr)
	}

	if err := server.Run(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// drainGateEvents keeps the gate's event channel from backing up when no
// other consumer is attached, and surfaces transitions in the server log.
func drainGateEvents(gate *identity.Gate) {
	for event := range gate.Events() {
		if event.Session == nil {
			continue
		}
		if globalFlags.Verbose {
			log.Printf("Session state: %s", event.Session.State)
		}
	}
}

// validateTLSConfig validates TLS configuration
func validateTLSConfig(tls config.TLSConfig) error {
	if tls.CertFile == "" {
		return fmt.Errorf("TLS certificate file is required when TLS is enabled")
	}
	if tls.KeyFile == "" {
		return fmt.Errorf("TLS key file is required when TLS is enabled")
	}

	if _, err := os.Stat(tls.CertFile); os.IsNotExist(err) {
		return fmt.Errorf("TLS certificate file does not exist: %s", tls.CertFile)
	}
	if _, err := os.Stat(tls.KeyFile); os.IsNotExist(err) {
		return fmt.Errorf("TLS key file does not exist: %s", tls.KeyFile)
	}

	if tls.MinVersion != "" && tls.MinVersion != "1.2" && tls.MinVersion != "1.3" {
		return fmt.Errorf("TLS min_version must be either \"1.2\" or \"1.3\", got: %s", tls.MinVersion)
	}

	return nil
}

// setupGracefulShutdown stops the server on SIGINT/SIGTERM
func setupGracefulShutdown(server *api.Server, timeout time.Duration) {
	sigChan := api.SetupSignalHandler()

	go func() {
		sig := api.WaitForSignal(sigChan)
		log.Printf("Received signal: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		log.Println("Shutting down API server...")
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Error during server shutdown: %v", err)
		}

		log.Println("Graceful shutdown completed")
		os.Exit(0)
	}()
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
