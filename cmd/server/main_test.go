package main

import (
	"bytes"
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/gridlayout/internal/config"
	"github.com/rpggio/gridlayout/internal/sqlite"
)

func TestParseAPIKeyFlags(t *testing.T) {
	cfg := config.Default()

	req, err := parseAPIKeyFlags(flag.NewFlagSet("apikey", flag.ContinueOnError),
		[]string{"-user", "alice", "-roles", "admin, viewer", "-teams", "ops"}, cfg)
	require.NoError(t, err)
	require.Equal(t, cfg.Auth.DefaultTenant, req.Principal.TenantID)
	require.Equal(t, "alice", req.Principal.UserID)
	require.Equal(t, []string{"admin", "viewer"}, req.Principal.Roles)
	require.Equal(t, []string{"ops"}, req.Principal.Teams)
	require.NotEmpty(t, req.Token)

	_, err = parseAPIKeyFlags(flag.NewFlagSet("apikey", flag.ContinueOnError), nil, cfg)
	require.Error(t, err)
}

func TestRunAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.DB.Path = filepath.Join(t.TempDir(), "data", "gridlayout.db")

	var out bytes.Buffer
	err := runAPIKey(context.Background(), cfg, []string{"-tenant", "acme", "-user", "bob", "-token", "secret"}, &out)
	require.NoError(t, err)
	require.Equal(t, "secret", strings.TrimSpace(out.String()))

	db, err := sqlite.New(cfg.DB.Path)
	require.NoError(t, err)
	defer db.Close()

	p, err := sqlite.NewAPIKeyRepository(db).ResolvePrincipal(context.Background(), "secret")
	require.NoError(t, err)
	require.Equal(t, "acme", p.TenantID)
	require.Equal(t, "bob", p.UserID)
}

func TestLogFileWriter_KeepsTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	w, err := openLogFile(path, 16, 8)
	require.NoError(t, err)

	_, err = io.WriteString(w, "0123456789")
	require.NoError(t, err)
	_, err = io.WriteString(w, "abcdefghij")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "cdefghij", string(data))
}

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, "DEBUG", parseLogLevel("debug").String())
	require.Equal(t, "INFO", parseLogLevel("verbose").String())
}
