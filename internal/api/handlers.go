package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/apkbridge/apkbridge/internal/protocol"
	"github.com/apkbridge/apkbridge/internal/workspace"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		ToolCount:     len(s.tools.All()),
		Workspaces:    len(s.workspaces.Snapshots()),
	})
}

// handleToolCall handles POST /tool/{name}. The body carries the tool
// arguments; the response is the dispatch envelope verbatim, with the HTTP
// status derived from the error kind.
func (s *Server) handleToolCall(w http.ResponseWriter, r *http.Request) {
	toolName := chi.URLParam(r, "name")

	var req ToolCallRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	if req.Arguments == nil {
		req.Arguments = map[string]any{}
	}

	resp := s.dispatcher.Dispatch(r.Context(), &protocol.Request{
		Tool:      toolName,
		Arguments: req.Arguments,
	})

	respondJSON(w, statusForResponse(resp), resp)
}

// handleListTools handles GET /tools.
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	descriptors := s.tools.All()
	resp := ToolListResponse{Tools: make([]ToolSummary, 0, len(descriptors))}

	for _, d := range descriptors {
		summary := ToolSummary{
			Name:        d.Name,
			Description: d.Description,
			Args:        make([]ArgSummary, 0, len(d.Args)),
		}
		for _, a := range d.Args {
			summary.Args = append(summary.Args, ArgSummary{
				Name:        a.Name,
				Type:        string(a.Type),
				Required:    a.Required,
				Description: a.Description,
			})
		}
		resp.Tools = append(resp.Tools, summary)
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleListWorkspaces handles GET /workspaces.
func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	snaps := s.workspaces.Snapshots()
	if snaps == nil {
		snaps = []workspace.Info{}
	}
	respondJSON(w, http.StatusOK, WorkspaceListResponse{Workspaces: snaps})
}

// handleHistory handles GET /history?limit=N.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "invocation history is not enabled")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to read invocation history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read invocation history")
		return
	}

	respondJSON(w, http.StatusOK, HistoryResponse{Entries: entries})
}

// statusForResponse maps the envelope's error kind to an HTTP status code.
func statusForResponse(resp *protocol.Response) int {
	if resp.IsOK() {
		return http.StatusOK
	}
	switch resp.Kind {
	case protocol.KindToolNotFound, protocol.KindPathNotFound:
		return http.StatusNotFound
	case protocol.KindInvalidArguments, protocol.KindPathTraversal:
		return http.StatusBadRequest
	case protocol.KindInvalidPrecond, protocol.KindConcurrentOp:
		return http.StatusConflict
	case protocol.KindTimeout:
		return http.StatusGatewayTimeout
	case protocol.KindToolUnavailable:
		return http.StatusServiceUnavailable
	case protocol.KindProcessFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
