// Package server runs the MCP JSON-RPC loop over stdio for a single tenant
// whose session was created at startup.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/golovatskygroup/jira-mcp-gateway/internal/apierr"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/session"
	"github.com/golovatskygroup/jira-mcp-gateway/internal/tools"
	"github.com/golovatskygroup/jira-mcp-gateway/pkg/mcp"
)

const (
	serverName         = "jira-mcp-gateway"
	defaultMaxInFlight = 8
)

// Server is the stdio MCP server.
type Server struct {
	transport   *mcp.Transport
	dispatcher  *tools.Dispatcher
	store       session.Store
	sessionID   string
	logger      *slog.Logger
	version     string
	maxInFlight int
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

func WithVersion(v string) Option { return func(s *Server) { s.version = v } }

// WithMaxInFlight bounds how many requests are processed concurrently.
// Non-positive values keep the default.
func WithMaxInFlight(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxInFlight = n
		}
	}
}

// New returns a server that resolves every tools/call through sessionID.
func New(transport *mcp.Transport, d *tools.Dispatcher, store session.Store, sessionID string, opts ...Option) *Server {
	s := &Server{
		transport:   transport,
		dispatcher:  d,
		store:       store,
		sessionID:   sessionID,
		logger:      slog.Default(),
		version:     "dev",
		maxInFlight: defaultMaxInFlight,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run reads requests until EOF or ctx is cancelled. Requests are handled
// concurrently; responses may be written out of order and are matched by id.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxInFlight)

	for {
		if err := ctx.Err(); err != nil {
			break
		}
		req, err := s.transport.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, mcp.ErrMalformedMessage) {
				s.logger.Warn("malformed message", "error", err)
				var id any
				code := mcp.ParseError
				if req != nil {
					id, code = req.ID, mcp.InvalidRequest
				}
				if req == nil || !req.IsNotification() {
					s.write(mcp.NewErrorResponse(id, code, err.Error()))
				}
				continue
			}
			_ = g.Wait()
			return fmt.Errorf("reading stdin: %w", err)
		}

		g.Go(func() error {
			resp := s.handleRequest(gctx, req)
			if resp != nil && !req.IsNotification() {
				s.write(resp)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Server) write(resp *mcp.Response) {
	if err := s.transport.WriteResponse(resp); err != nil {
		s.logger.Error("writing response", "error", err)
	}
}

func (s *Server) handleRequest(ctx context.Context, req *mcp.Request) *mcp.Response {
	switch req.Method {
	case mcp.MethodInitialize:
		return s.handleInitialize(req)
	case mcp.MethodInitialized, mcp.MethodCancelled:
		return nil
	case mcp.MethodToolsList:
		return s.handleListTools(req)
	case mcp.MethodToolsCall:
		return s.handleCallTool(ctx, req)
	case mcp.MethodPing:
		return s.handlePing(req)
	default:
		return mcp.NewErrorResponse(req.ID, mcp.MethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

func (s *Server) handleInitialize(req *mcp.Request) *mcp.Response {
	result := mcp.InitializeResult{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities: mcp.ServerCapabilities{
			Tools: &mcp.ToolsCapability{ListChanged: false},
		},
		ServerInfo:   mcp.ServerInfo{Name: serverName, Version: s.version},
		Instructions: s.buildInstructions(),
	}
	return respond(req.ID, result)
}

func (s *Server) handleListTools(req *mcp.Request) *mcp.Response {
	return respond(req.ID, mcp.ListToolsResult{Tools: s.dispatcher.Catalog().MCPTools()})
}

func (s *Server) handleCallTool(ctx context.Context, req *mcp.Request) *mcp.Response {
	var params mcp.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InvalidParams, "Invalid params: "+err.Error())
	}
	if strings.TrimSpace(params.Name) == "" {
		return mcp.NewErrorResponse(req.ID, mcp.InvalidParams, "Invalid params: name is required")
	}

	sess, err := s.store.TouchAndGet(ctx, s.sessionID)
	if err != nil {
		ae := apierr.Auth("session expired or revoked", err)
		return mcp.NewErrorResponse(req.ID, ae.RPCCode(), ae.Error())
	}

	out, err := s.dispatcher.Dispatch(ctx, sess, params.Name, params.Arguments)
	if err != nil {
		ae := apierr.As(err)
		if ae.Kind == apierr.KindToolExecution {
			// Tool failures are results the model can read, not protocol errors.
			return respond(req.ID, mcp.CallToolResult{
				Content: []mcp.ContentBlock{{Type: "text", Text: ae.Error()}},
				IsError: true,
			})
		}
		return mcp.NewErrorResponse(req.ID, ae.RPCCode(), ae.Error())
	}

	return respond(req.ID, mcp.CallToolResult{
		Content: []mcp.ContentBlock{{Type: "text", Text: indentJSON(out)}},
	})
}

func (s *Server) handlePing(req *mcp.Request) *mcp.Response {
	return respond(req.ID, map[string]any{})
}

func (s *Server) buildInstructions() string {
	var sb strings.Builder
	sb.WriteString("Jira tools bound to the configured Jira Cloud account.\n\n")
	sb.WriteString("Categories:\n")
	for _, cat := range s.dispatcher.Catalog().Categories() {
		fmt.Fprintf(&sb, "- %s: %s (%s)\n", cat.Name, cat.Description, strings.Join(cat.Tools, ", "))
	}
	sb.WriteString("\nUse get_issue_transitions to find a transitionId before calling transition_issue.\n")
	return sb.String()
}

func respond(id any, result any) *mcp.Response {
	resp, err := mcp.NewResponse(id, result)
	if err != nil {
		return mcp.NewErrorResponse(id, mcp.InternalError, err.Error())
	}
	return resp
}

func indentJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
