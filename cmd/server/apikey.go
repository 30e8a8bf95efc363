package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/rpggio/gridlayout/internal/config"
	"github.com/rpggio/gridlayout/internal/domain/permission"
	"github.com/rpggio/gridlayout/internal/sqlite"
)

// apiKeyRequest describes one bearer token to register.
type apiKeyRequest struct {
	Token       string
	Principal   permission.Principal
	Description string
}

func parseAPIKeyFlags(fs *flag.FlagSet, args []string, cfg config.Config) (apiKeyRequest, error) {
	var (
		req          apiKeyRequest
		roles, teams string
	)
	fs.StringVar(&req.Principal.TenantID, "tenant", cfg.Auth.DefaultTenant, "tenant the key acts in")
	fs.StringVar(&req.Principal.UserID, "user", "", "user the key acts as (required)")
	fs.StringVar(&roles, "roles", "", "comma-separated roles; the first picks the default layout template")
	fs.StringVar(&teams, "teams", "", "comma-separated teams")
	fs.StringVar(&req.Token, "token", "", "token to register (default: generated)")
	fs.StringVar(&req.Description, "description", "", "note stored with the key")
	if err := fs.Parse(args); err != nil {
		return apiKeyRequest{}, err
	}

	if strings.TrimSpace(req.Principal.UserID) == "" {
		return apiKeyRequest{}, errors.New("-user is required")
	}
	if strings.TrimSpace(req.Principal.TenantID) == "" {
		return apiKeyRequest{}, errors.New("-tenant is required")
	}
	req.Principal.Roles = splitCSV(roles)
	req.Principal.Teams = splitCSV(teams)
	if req.Token == "" {
		req.Token = uuid.NewString()
	}
	return req, nil
}

// runAPIKey registers a bearer token and prints it.
func runAPIKey(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	req, err := parseAPIKeyFlags(flag.NewFlagSet("apikey", flag.ContinueOnError), args, cfg)
	if err != nil {
		return err
	}

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		return err
	}
	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.RunMigrations(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	if err := sqlite.NewAPIKeyRepository(db).Add(ctx, req.Token, req.Principal, req.Description); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, req.Token)
	return err
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
