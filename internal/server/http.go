package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"go.ordinalsmcp/internal/tools"
)

// MCPPath is where the streamable HTTP transport is mounted.
const MCPPath = "/mcp"

// Router returns the HTTP surface: health, the MCP streamable endpoint and a
// plain JSON bridge over the same registry.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	})
	r.Get("/tools/list", s.handleListTools)
	r.Post("/tools/call", s.handleCallTool)
	r.Handle(MCPPath, mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil))

	return r
}

// ServeHTTP attaches the HTTP transport on addr and serves until ctx ends.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	if err := s.attach(); err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http shutdown error", "error", err)
		}
	}()

	s.logger.Info("Ordinals MCP server is running",
		"addr", addr,
		"mcp_path", MCPPath,
		"tools", s.registry.Names(),
	)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

type toolDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
}

type toolCallRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	descriptors := s.registry.Descriptors()
	defs := make([]toolDefinition, 0, len(descriptors))
	for _, d := range descriptors {
		defs = append(defs, toolDefinition{Name: d.Name, Description: d.Description, InputSchema: d.Schema})
	}
	writeJSON(w, map[string]any{"tools": defs}, http.StatusOK)
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	var req toolCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	res, err := s.registry.Dispatch(r.Context(), req.Name, req.Arguments)
	switch {
	case errors.Is(err, tools.ErrUnknownTool):
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.logger.Info("tool invocation complete",
		"tool", req.Name,
		"is_error", res.IsError,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	writeJSON(w, map[string]any{
		"tool":   req.Name,
		"result": res,
	}, http.StatusOK)
}

func writeJSON(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": err.Error(),
			"code":    status,
		},
	}, status)
}

func loggingMiddleware(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"request_id", middleware.GetReqID(r.Context()),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
