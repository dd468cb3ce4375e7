package main

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/franciscosanchezn/gin-device-auth/internal/config"
)

// @title Device Authorization API
// @version 1.0
// @description OAuth2 device authorization grant with interactive login, consent and token refresh
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.
func main() {
	// Load environment variables
	loadDotenvFile()

	// Initialize logger
	setUpLogger()

	if err := newRootCmd().Execute(); err != nil {
		log.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "device-auth",
		Short:         "OAuth2 device authorization server",
		Long:          `device-auth lets input-constrained devices obtain tokens for a user who signs in from a second screen.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		// With no subcommand the server is started
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, args)
		},
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCreateAppCmd())

	return rootCmd
}

// loadDotenvFile loads environment variables from a .env file
// If the file is not found, it will log a warning and use system environment variables
func loadDotenvFile() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, using system environment variables")
	}
}

// setUpLogger initializes the logger with a JSON formatter and sets the log level based on the environment.
// LOG_LEVEL overrides the environment default.
func setUpLogger() {
	log.SetFormatter(&log.JSONFormatter{})
	environment := config.GetEnvWithDefault("APP_ENV", "development")
	switch environment {
	case "development":
		log.SetLevel(log.DebugLevel)
	case "production":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}

	if value := os.Getenv("LOG_LEVEL"); value != "" {
		level, err := log.ParseLevel(strings.ToLower(value))
		if err != nil {
			log.Warnf("Invalid LOG_LEVEL %q, keeping %s", value, log.GetLevel())
			return
		}
		log.SetLevel(level)
	}
}
