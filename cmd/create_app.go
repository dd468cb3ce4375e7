package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/franciscosanchezn/gin-device-auth/internal/config"
	"github.com/franciscosanchezn/gin-device-auth/internal/models"
	"github.com/franciscosanchezn/gin-device-auth/internal/services"
)

type createAppOptions struct {
	email    string
	password string
	name     string
	clientID string
	domain   string
	scopes   []string
}

func newCreateAppCmd() *cobra.Command {
	opts := &createAppOptions{}

	cmd := &cobra.Command{
		Use:   "create-app",
		Short: "Register an application and its owner for local development",
		Long: `create-app creates the owner account if it does not exist yet and registers an
application for it. The client ID and application secret are printed once.

Scopes are given as <category>_<type>, suffixed with ":required" when the user
has to grant them, e.g. --scope email_read:required --scope name_read.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCreateApp(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.email, "email", "dev@example.com", "Email of the application owner")
	cmd.Flags().StringVar(&opts.password, "password", "", "Password for the owner account when it is created")
	cmd.Flags().StringVar(&opts.name, "name", "Development App", "Display name of the application")
	cmd.Flags().StringVar(&opts.clientID, "client-id", "", "Client ID to register (generated when empty)")
	cmd.Flags().StringVar(&opts.domain, "domain", "", "Domain of the application")
	cmd.Flags().StringSliceVar(&opts.scopes, "scope", nil, "Scope to declare, repeatable")

	return cmd
}

func runCreateApp(ctx context.Context, opts *createAppOptions, cmd *cobra.Command) error {
	scopes, err := parseScopes(opts.scopes)
	if err != nil {
		return err
	}

	conf, err := config.LoadConfig()
	if err != nil {
		return err
	}
	db, err := setupDatabase(conf)
	if err != nil {
		return err
	}

	userService := services.NewUserService(db)
	owner, err := userService.GetUserByEmail(ctx, opts.email)
	if errors.Is(err, services.ErrNotFound) {
		if opts.password == "" {
			return fmt.Errorf("user %s does not exist; --password is required to create it", opts.email)
		}
		owner = &models.User{Email: opts.email}
		if err := owner.SetPassword(opts.password, conf.BcryptCost); err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		if err := userService.CreateUser(ctx, owner); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		log.WithField("email", owner.Email).Info("Created owner account")
	} else if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	app := &models.Application{
		ClientID:    opts.clientID,
		DisplayName: opts.name,
		OwnerID:     owner.UUID,
		Domain:      opts.domain,
		Active:      true,
		Scopes:      scopes,
	}
	if err := services.NewApplicationService(db).CreateApplication(ctx, app); err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Client ID:          %s\n", app.ClientID)
	fmt.Fprintf(out, "Application secret: %s\n", app.ApplicationSecret)
	fmt.Fprintf(out, "Owner:              %s (%s)\n", owner.Email, owner.UUID)
	return nil
}

func parseScopes(values []string) ([]models.ApplicationScope, error) {
	scopes := make([]models.ApplicationScope, 0, len(values))
	for _, value := range values {
		name, flag, _ := strings.Cut(value, ":")
		if flag != "" && flag != "required" {
			return nil, fmt.Errorf("invalid scope %q: only the \":required\" suffix is supported", value)
		}
		if !models.IsValidScope(name) {
			return nil, fmt.Errorf("invalid scope %q: expected <category>_<read|readwrite|notify>", name)
		}
		scopes = append(scopes, models.ApplicationScope{Scope: name, Required: flag == "required"})
	}
	return scopes, nil
}
