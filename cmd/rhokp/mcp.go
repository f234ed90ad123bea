package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	chiTransport "github.com/kailas-cloud/rhokp/internal/transport/chi"
	mcpTransport "github.com/kailas-cloud/rhokp/internal/transport/mcp"
)

// productLoadTimeout bounds the facet query made at startup.
const productLoadTimeout = 15 * time.Second

func mcpCmd(g *globalFlags) *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server exposing search_red_hat_docs and check_okp_health",
		Long: `Run a Model Context Protocol server.

stdio (default) talks over stdin/stdout for local agent hosts; logs go to
stderr. http serves stateless streamable HTTP on MCP_HOST:MCP_PORT at /mcp,
behind the same bearer auth as the API server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.load()
			if err != nil {
				return err
			}
			defer a.close()
			if cmd.Flags().Changed("transport") {
				a.cfg.MCP.Transport = transport
			}
			return a.runMCP(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&transport, "transport", "t", "", "stdio or http (default from config, MCP_TRANSPORT)")
	return cmd
}

func (a *app) runMCP(ctx context.Context) error {
	client, err := a.newClient(nil)
	if err != nil {
		return err
	}
	defer client.Close()

	server := mcpTransport.NewServer(client, a.logger)

	loadCtx, cancel := context.WithTimeout(ctx, productLoadTimeout)
	if err := server.LoadProducts(loadCtx); err != nil {
		a.logger.Warn("Product names unavailable; product filters pass through unchanged", zap.Error(err))
	}
	cancel()

	switch a.cfg.MCP.Transport {
	case "stdio":
		a.logger.Info("Starting MCP server", zap.String("transport", "stdio"))
		return server.RunStdio(ctx)
	case "http":
		r := chi.NewRouter()
		r.Use(chiTransport.JSONRecoverer(a.logger))
		r.Use(chiTransport.WideEventMiddleware(a.logger))
		r.Use(chiTransport.BearerAuthMiddleware(a.cfg.Auth.APIKeys))
		r.Handle("/mcp", server.HTTPHandler())
		srv := &http.Server{
			Addr:              net.JoinHostPort(a.cfg.MCP.Host, strconv.Itoa(a.cfg.MCP.Port)),
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		}
		return runHTTP(ctx, srv, time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second, a.logger)
	default:
		return usagef("--transport must be stdio or http, got %q", a.cfg.MCP.Transport)
	}
}
