// Package testserver assembles the full HTTP stack over an in-memory
// database for functional tests.
package testserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/gridlayout/internal/domain/activity"
	"github.com/rpggio/gridlayout/internal/domain/editor"
	"github.com/rpggio/gridlayout/internal/domain/layout"
	"github.com/rpggio/gridlayout/internal/domain/permission"
	"github.com/rpggio/gridlayout/internal/domain/version"
	"github.com/rpggio/gridlayout/internal/mcp"
	"github.com/rpggio/gridlayout/internal/sqlite"
	"github.com/rpggio/gridlayout/internal/transport"
)

type TestServer struct {
	Server   *httptest.Server
	DB       *sqlite.DB
	Hub      *transport.Hub
	Manager  *editor.Manager
	Token    string
	TenantID string
}

// New starts a server with collaboration enabled and registers token for
// user "owner" in tenantID.
func New(t *testing.T, token, tenantID string) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	// Shared-cache connections do not wait on each other's locks.
	db.SetMaxOpenConns(1)
	require.NoError(t, db.RunMigrations())

	activitySvc := activity.NewService(sqlite.NewActivityRepository(db), nil)
	layoutSvc := layout.NewService(sqlite.NewLayoutRepository(db), sqlite.NewRegionRepository(db), activitySvc, layout.DefaultCatalog(), nil)
	versionSvc := version.NewService(sqlite.NewVersionRepository(db), activitySvc, nil)
	resolver := permission.NewResolver(sqlite.NewACLRepository(db), nil, true)
	apiKeys := sqlite.NewAPIKeyRepository(db)

	hub := transport.NewHub(transport.HubOptions{}, nil)
	ctrl := editor.NewController(layoutSvc, versionSvc, resolver, activitySvc, hub, nil, editor.Options{
		UndoDebounce: -1,
		SaveDebounce: -1,
	})
	manager := editor.NewManager(ctrl)

	mcpServer := mcp.NewServer(mcp.Config{
		Services:      mcp.Services{Editor: manager, Layouts: layoutSvc, Activity: activitySvc},
		Resolver:      apiKeys,
		AuthEnabled:   true,
		TransportMode: "http",
	})
	mcpHandler := sdkmcp.NewStreamableHTTPHandler(
		func(r *http.Request) *sdkmcp.Server { return mcpServer },
		&sdkmcp.StreamableHTTPOptions{SessionTimeout: time.Minute},
	)

	server := httptest.NewServer(transport.NewServer(transport.Config{
		MCP:      mcpHandler,
		Hub:      hub,
		Exporter: manager,
		Auth:     transport.AuthMiddleware(apiKeys),
	}))

	ts := &TestServer{
		Server:   server,
		DB:       db,
		Hub:      hub,
		Manager:  manager,
		Token:    token,
		TenantID: tenantID,
	}
	require.NoError(t, ts.AddAPIKey(token, permission.Principal{TenantID: tenantID, UserID: "owner", Roles: []string{"admin"}}))

	t.Cleanup(func() {
		server.Close()
		_ = manager.CloseAll(context.Background())
		hub.Shutdown()
		_ = db.Close()
	})

	return ts
}

// AddAPIKey registers another bearer token.
func (ts *TestServer) AddAPIKey(token string, p permission.Principal) error {
	return sqlite.NewAPIKeyRepository(ts.DB).Add(context.Background(), token, p, "test")
}

// Connect opens an MCP client session authenticated with token.
func (ts *TestServer) Connect(t *testing.T, token string) *sdkmcp.ClientSession {
	t.Helper()

	transport := &sdkmcp.StreamableClientTransport{
		Endpoint:   ts.Server.URL + "/mcp",
		HTTPClient: &http.Client{Transport: bearerTransport{token: token, base: http.DefaultTransport}},
	}
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	session, err := client.Connect(ctx, transport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (b bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+b.token)
	return b.base.RoundTrip(req)
}
