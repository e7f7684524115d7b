package cli

import (
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// GlobalFlags contains global flags available for all commands
type GlobalFlags struct {
	Config  string
	DBPath  string
	Server  string
	Token   string
	Verbose bool
	JSON    bool
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "vaultguard",
	Short: "VaultGuard - Password Management and Credential Vault",
	Long: `VaultGuard is a credential vault server with a password generator,
a strength estimator, and a verified-email session gate.

It serves an HTTP API for credential records with live change streams,
and offers local commands for generating and scoring passwords.

Usage:
  vaultguard [command] [flags]

Available Commands:
  serve      Start the VaultGuard server (main mode)
  generate   Generate a random password
  strength   Score a candidate password
  vault      Manage credential records on a running server

Flags:
  --config string   Path to configuration file (default "config.yaml")
  --db string       Path to SQLite database (default "./data/vaultguard.db")
  --server string   Base URL of a running VaultGuard server
  --token string    Session token for server commands
  --verbose         Enable verbose output
  --json            Output in JSON format

Use "vaultguard [command] --help" for more information about a command.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
}

// InitRoot initializes the root command with global flags
func InitRoot() {
	configPath := os.Getenv("VAULTGUARD_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	dbPath := os.Getenv("VAULTGUARD_DB_PATH")
	if dbPath == "" {
		dbPath = "./data/vaultguard.db"
	}

	RootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", configPath, "Path to configuration file")
	RootCmd.PersistentFlags().StringVar(&globalFlags.DBPath, "db", dbPath, "Path to SQLite database")
	RootCmd.PersistentFlags().StringVar(&globalFlags.Server, "server", os.Getenv("VAULTGUARD_SERVER"), "Base URL of a running VaultGuard server")
	RootCmd.PersistentFlags().StringVar(&globalFlags.Token, "token", os.Getenv("VAULTGUARD_TOKEN"), "Session token for server commands")
	RootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable verbose output")
	RootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "Output in JSON format")

	RootCmd.AddCommand(versionCmd)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of VaultGuard",
	Long:  `All software has versions. This is VaultGuard's`,
	Run: func(cmd *cobra.Command, args []string) {
		printVersion()
	},
}

var globalFlags GlobalFlags

// GetGlobalFlags returns the global flags
func GetGlobalFlags() GlobalFlags {
	return globalFlags
}

// printVersion prints the version information
func printVersion() {
	info := GetVersionInfo()
	println("VaultGuard Version:", info.Version)
	println("Go Version:", info.GoVersion)
	println("OS/Arch:", info.OS+"/"+info.Arch)
	println("Build Date:", info.BuildDate)
}

// VersionInfo contains version information
type VersionInfo struct {
	Version   string
	GoVersion string
	OS        string
	Arch      string
	BuildDate string
}

// GetVersionInfo returns version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   "0.1.0",
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		BuildDate: "unknown",
	}
}
