// Package server hosts the tool catalog over MCP transports.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	log "github.com/charmbracelet/log"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"go.ordinalsmcp/internal/stdio"
	"go.ordinalsmcp/internal/tools"
)

const (
	// Name identifies this MCP server to clients.
	Name = "Ordinals MCP Server"
	// Version identifies the MCP server version.
	Version = "0.1.0"

	instructions = "Read-only Bitcoin address lookups backed by Ordiscan: Runes and BRC-20 balances and activity."
)

// ErrAlreadyConnected is returned when a transport is attached a second time.
var ErrAlreadyConnected = errors.New("server already connected")

// State is the lifecycle state of a Server.
type State int

// A Server moves from StateConstructed to StateConnected once, when its
// transport is attached, and stays there.
const (
	StateConstructed State = iota
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Server binds a tools.Registry to an MCP server.
type Server struct {
	registry *tools.Registry
	logger   *log.Logger
	mcp      *mcp.Server

	mu    sync.Mutex
	state State
}

// New constructs a server exposing every tool in reg.
func New(reg *tools.Registry, logger *log.Logger) *Server {
	s := &Server{
		registry: reg,
		logger:   logger,
		mcp: mcp.NewServer(&mcp.Implementation{Name: Name, Version: Version}, &mcp.ServerOptions{
			Instructions: instructions,
		}),
	}
	for _, d := range reg.Descriptors() {
		s.mcp.AddTool(&mcp.Tool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.Schema,
		}, s.toolHandler(d.Name))
	}
	return s
}

// State reports the current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Server) attach() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateConnected {
		return ErrAlreadyConnected
	}
	s.state = StateConnected
	return nil
}

// Connect attaches transport and starts serving requests on it.
func (s *Server) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	if err := s.attach(); err != nil {
		return nil, err
	}
	session, err := s.mcp.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect transport: %w", err)
	}
	s.logger.Info("Ordinals MCP server is running", "tools", s.registry.Names())
	return session, nil
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects or ctx
// ends. Stdout is filtered first so only JSON-object chunks reach it.
func (s *Server) ServeStdio(ctx context.Context) error {
	filter := stdio.NewFilter(os.Stdout)
	redirect, err := stdio.RedirectStdout(filter)
	if err != nil {
		return fmt.Errorf("filter stdout: %w", err)
	}
	defer redirect.Restore()

	session, err := s.Connect(ctx, &mcp.IOTransport{Reader: os.Stdin, Writer: filter})
	if err != nil {
		return err
	}
	return waitSession(ctx, session)
}

func waitSession(ctx context.Context, session *mcp.ServerSession) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Close()
		case <-done:
		}
	}()

	err := session.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Server) toolHandler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		res, err := s.registry.Dispatch(ctx, name, req.Params.Arguments)
		if err != nil {
			s.logger.Warn("tool invocation rejected", "tool", name, "error", err)
			return nil, err
		}
		s.logger.Info("tool invocation complete",
			"tool", name,
			"is_error", res.IsError,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: res.Text}},
			IsError: res.IsError,
		}, nil
	}
}
