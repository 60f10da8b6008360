package watch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/apkbridge/apkbridge/internal/history"
	"github.com/apkbridge/apkbridge/internal/workspace"
)

// --- Message types ---

type healthMsg struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	ToolCount     int    `json:"tool_count"`
	Workspaces    int    `json:"workspaces"`
}

type workspacesMsg struct {
	Workspaces []workspace.Info `json:"workspaces"`
}

type historyMsg struct {
	Entries []history.Entry `json:"entries"`
}

type tickMsg time.Time

type errMsg error

// --- Commands ---

func getJSON(apiURL, apiKey, path string, out any) error {
	client := &http.Client{Timeout: 2 * time.Second}
	req, err := http.NewRequest(http.MethodGet, apiURL+path, nil)
	if err != nil {
		return err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// fetchHealth queries the /healthz endpoint.
func fetchHealth(apiURL, apiKey string) tea.Msg {
	var h healthMsg
	if err := getJSON(apiURL, apiKey, "/healthz", &h); err != nil {
		return errMsg(err)
	}
	return h
}

// fetchWorkspaces queries the /workspaces endpoint.
func fetchWorkspaces(apiURL, apiKey string) tea.Msg {
	var w workspacesMsg
	if err := getJSON(apiURL, apiKey, "/workspaces", &w); err != nil {
		return errMsg(err)
	}
	return w
}

// fetchHistory queries the /history endpoint.
func fetchHistory(apiURL, apiKey string) tea.Msg {
	var h historyMsg
	if err := getJSON(apiURL, apiKey, "/history?limit=25", &h); err != nil {
		return errMsg(err)
	}
	return h
}
