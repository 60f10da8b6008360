// Package mcp serves the bridge's tools over the Model Context Protocol on
// stdio, which is how MCP-speaking clients (IDE agents, chat frontends)
// consume it.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/apkbridge/apkbridge/internal/log"
	"github.com/apkbridge/apkbridge/internal/protocol"
	"github.com/apkbridge/apkbridge/internal/tool"
)

// Dispatcher executes tool calls on behalf of MCP clients.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *protocol.Request) *protocol.Response
}

// ToolCatalog lists the registered tool descriptors.
type ToolCatalog interface {
	All() []*tool.Descriptor
}

// Server bridges the tool registry onto an MCP stdio session.
type Server struct {
	name       string
	version    string
	dispatcher Dispatcher
	tools      ToolCatalog
	logger     *slog.Logger
}

// New creates an MCP server over the given dispatcher and catalog.
func New(name, version string, d Dispatcher, tools ToolCatalog) *Server {
	return &Server{
		name:       name,
		version:    version,
		dispatcher: d,
		tools:      tools,
		logger:     log.WithComponent("mcp"),
	}
}

// Run serves MCP over stdin/stdout until ctx is cancelled or the client
// disconnects. Logging must be on stderr; stdout belongs to the protocol.
func (s *Server) Run(ctx context.Context) error {
	srv := sdk.NewServer(&sdk.Implementation{Name: s.name, Version: s.version}, nil)

	for _, desc := range s.tools.All() {
		s.register(srv, desc)
	}

	s.logger.Info("MCP server starting on stdio", "tools", len(s.tools.All()))
	return srv.Run(ctx, &sdk.StdioTransport{})
}

// register installs one descriptor as an MCP tool. Dispatch failures become
// IsError results so the client sees the typed failure, not a protocol error.
func (s *Server) register(srv *sdk.Server, desc *tool.Descriptor) {
	name := desc.Name
	sdk.AddTool(srv, &sdk.Tool{
		Name:        name,
		Description: desc.Description,
		InputSchema: SchemaFor(desc),
	}, func(ctx context.Context, _ *sdk.CallToolRequest, args map[string]any) (*sdk.CallToolResult, any, error) {
		if args == nil {
			args = map[string]any{}
		}
		resp := s.dispatcher.Dispatch(ctx, &protocol.Request{Tool: name, Arguments: args})
		if !resp.IsOK() {
			return FailureResult(resp), nil, nil
		}
		return nil, resp.Result, nil
	})
}

// FailureResult renders a failed dispatch envelope as an MCP error result.
func FailureResult(resp *protocol.Response) *sdk.CallToolResult {
	text := fmt.Sprintf("%s: %s", resp.Kind, resp.Message)
	return &sdk.CallToolResult{
		IsError: true,
		Content: []sdk.Content{&sdk.TextContent{Text: text}},
	}
}

// SchemaFor translates a descriptor's argument specs into a JSON schema.
func SchemaFor(desc *tool.Descriptor) *jsonschema.Schema {
	properties := make(map[string]*jsonschema.Schema, len(desc.Args))
	var required []string

	for _, a := range desc.Args {
		prop := &jsonschema.Schema{Description: a.Description}
		switch a.Type {
		case tool.TypeBool:
			prop.Type = "boolean"
		case tool.TypeInt:
			prop.Type = "integer"
		case tool.TypeEnum:
			prop.Type = "string"
			for _, v := range a.Enum {
				prop.Enum = append(prop.Enum, v)
			}
		default:
			prop.Type = "string"
		}
		properties[a.Name] = prop
		if a.Required {
			required = append(required, a.Name)
		}
	}

	return &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}
