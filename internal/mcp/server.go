// Package mcp exposes a running session to MCP clients over stdio.
package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"openhistoria/internal/turn"
)

type Server struct {
	session *turn.Coordinator
	mcp     *sdk.Server
}

func NewServer(session *turn.Coordinator, version string) *Server {
	s := &Server{
		session: session,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "historia",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
