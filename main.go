// go_nlm is a NotebookLM ingestion and YouTube comments MCP server.
//
// Exposes NotebookLM source management (URLs, text, PDFs, Drive sync),
// background YouTube comment crawls published as notebook sources, and a
// persistent URL queue with action history.
// Runs as HTTP MCP server or stdio transport.
package main

import (
	"log/slog"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_nlm/internal/app"
	"github.com/anatolykoptev/go_nlm/internal/engine"
	"github.com/anatolykoptev/go_nlm/internal/nlmserver"
)

var (
	version = "dev"
	mcpPort = env.Str("MCP_PORT", "8893")
)

func main() {
	app.InitEngine()
	a := app.New()
	defer a.Close()

	slog.Info("starting go_nlm",
		slog.String("port", mcpPort),
		slog.Int("authuser", engine.Cfg.AuthUser),
	)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_nlm",
		Version: version,
	}, nil)

	n := nlmserver.RegisterTools(server, a.Deps())
	slog.Info("tools registered", slog.Int("count", n))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_nlm",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 600 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}
