package api

import (
	"github.com/apkbridge/apkbridge/internal/history"
	"github.com/apkbridge/apkbridge/internal/workspace"
)

// ToolCallRequest is the JSON body for POST /tool/{name}.
type ToolCallRequest struct {
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	ToolCount     int    `json:"tool_count"`
	Workspaces    int    `json:"workspaces"`
}

// ToolSummary describes one registered tool for GET /tools.
type ToolSummary struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Args        []ArgSummary `json:"args,omitempty"`
}

// ArgSummary describes one tool argument.
type ArgSummary struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description,omitempty"`
}

// ToolListResponse is returned by GET /tools.
type ToolListResponse struct {
	Tools []ToolSummary `json:"tools"`
}

// WorkspaceListResponse is returned by GET /workspaces.
type WorkspaceListResponse struct {
	Workspaces []workspace.Info `json:"workspaces"`
}

// HistoryResponse is returned by GET /history.
type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
}
