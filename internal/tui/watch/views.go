package watch

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/apkbridge/apkbridge/internal/history"
	"github.com/apkbridge/apkbridge/internal/workspace"
)

func renderHeader(health HealthState, theme Theme, width int) string {
	innerWidth := width - 4

	statusText := theme.StateDone.Render("HEALTHY")
	statusIcon := "✅"
	if !health.Connected {
		statusText = theme.StateFailed.Render("CONNECTING")
		statusIcon = "🔌"
	} else if health.Status != "ok" && health.Status != "" {
		statusText = theme.StateFailed.Render("DEGRADED")
		statusIcon = "⚠️"
	}

	uptime := formatDuration(time.Duration(health.UptimeSeconds) * time.Second)

	clock := theme.Dim.Render(time.Now().Format("15:04:05"))
	titleText := " APKBRIDGE WATCH"
	pad := innerWidth - lipgloss.Width(titleText) - lipgloss.Width(clock) - 4
	if pad < 1 {
		pad = 1
	}
	titleLine := titleText + strings.Repeat(" ", pad) + clock + " "

	statsLine := fmt.Sprintf(" %s %s  ⏱ %s  Tools: %d  Workspaces: %d",
		statusIcon, statusText, uptime, health.ToolCount, health.Workspaces)

	content := lipgloss.JoinVertical(lipgloss.Left, titleLine, statsLine)
	return theme.Border.Width(innerWidth).Render(content)
}

// workspaceRows converts workspace snapshots into table rows, one per APK.
func workspaceRows(infos []workspace.Info) []table.Row {
	rows := make([]table.Row, 0, len(infos))
	for _, info := range infos {
		name := info.SourcePath
		if name == "" {
			name = info.DecodeDir
		}
		if name != "" {
			name = filepath.Base(name)
		}

		updated := ""
		if !info.UpdatedAt.IsZero() {
			updated = fmt.Sprintf("%s ago", time.Since(info.UpdatedAt).Round(time.Second))
		}

		rows = append(rows, table.Row{
			name,
			string(info.State),
			updated,
			truncate(info.LastError, 36),
		})
	}
	return rows
}

func renderWorkspaces(t *table.Model, theme Theme, width int) string {
	title := theme.Header.Render(" Workspaces")
	if len(t.Rows()) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title,
			theme.Dim.Render("  no APKs under management"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, t.View())
}

func renderHistory(entries []history.Entry, theme Theme, width int) string {
	title := theme.Header.Render(" Recent Calls")
	if len(entries) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title,
			theme.Dim.Render("  no calls recorded"))
	}

	shown := entries
	if len(shown) > 10 {
		shown = shown[:10]
	}

	lines := make([]string, 0, len(shown)+1)
	lines = append(lines, title)
	for _, e := range shown {
		at := e.CreatedAt.Local().Format("15:04:05")
		target := truncate(filepath.Base(e.Target), 28)

		var status string
		if e.Status == "ok" {
			status = theme.StateDone.Render("ok   ")
		} else {
			status = theme.StateFailed.Render(truncate(e.ErrorKind, 24))
		}

		lines = append(lines, fmt.Sprintf("  %s  %-16s %-28s %s",
			theme.Dim.Render(at), e.Tool, target, status))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
