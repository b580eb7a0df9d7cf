package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

var styles = struct {
	title, label, muted, accent, ok, warn, bad, box lipgloss.Style
}{
	title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#BD93F9")),
	label:  lipgloss.NewStyle().Foreground(lipgloss.Color("#8BE9FD")).Width(14),
	muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4")),
	accent: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6")),
	ok:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#50FA7B")),
	warn:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F1FA8C")),
	bad:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5555")),
	box:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#44475A")).Padding(0, 1),
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.title.Render("resto-top"))
	if m.loading {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("\n\n")

	switch {
	case m.stats == nil && m.lastErr != nil:
		b.WriteString(styles.bad.Render("api unavailable: " + m.lastErr.Error()))
		b.WriteString("\n")
	case m.stats == nil:
		b.WriteString(styles.muted.Render("waiting for /api/stats..."))
		b.WriteString("\n")
	default:
		b.WriteString(styles.box.Render(m.renderSummary()))
		b.WriteString("\n")
		b.WriteString(styles.box.Render(renderCaches(m.stats.Caches)))
		b.WriteString("\n")
		if m.lastErr != nil {
			b.WriteString(styles.warn.Render("last refresh failed: " + m.lastErr.Error()))
			b.WriteString("\n")
		}
	}

	if m.notice != "" {
		b.WriteString(styles.accent.Render(m.notice))
		b.WriteString("\n")
	}
	footer := "q quit · r refresh · o toggle online · s sync now"
	if !m.updated.IsZero() {
		footer += " · updated " + m.updated.Format(time.TimeOnly)
	}
	b.WriteString(styles.muted.Render(footer))
	return b.String()
}

func (m Model) renderSummary() string {
	st := m.stats
	row := func(label, value string) string {
		return styles.label.Render(label) + value + "\n"
	}

	var b strings.Builder
	b.WriteString(row("connection", renderConnection(st.Connection)))
	if st.Connection.Online && st.Connection.LastLatency > 0 {
		b.WriteString(row("latency", st.Connection.LastLatency.Round(time.Millisecond).String()))
	}
	if st.Connection.ReconnectAttempts > 0 {
		b.WriteString(row("reconnects", fmt.Sprintf("%d", st.Connection.ReconnectAttempts)))
	}
	pending := fmt.Sprintf("%d", st.PendingOps)
	if st.PendingOps > 0 {
		pending = styles.warn.Render(pending)
	}
	b.WriteString(row("pending sync", pending))
	b.WriteString(row("queue depth", fmt.Sprintf("%d", st.QueueDepth)))
	worker := st.WorkerState
	if worker == "" {
		worker = styles.muted.Render("disabled")
	}
	b.WriteString(row("worker", worker))
	return strings.TrimRight(b.String(), "\n")
}

func renderConnection(c domain.ConnectionState) string {
	if !c.Online {
		return styles.bad.Render("offline")
	}
	if c.Quality != "" {
		return styles.ok.Render("online") + styles.muted.Render(" ("+string(c.Quality)+")")
	}
	return styles.ok.Render("online")
}

// renderCaches — таблица кэшей в алфавитном порядке имён.
func renderCaches(caches map[string]domain.CacheStats) string {
	if len(caches) == 0 {
		return styles.muted.Render("no caches")
	}
	names := make([]string, 0, len(caches))
	for name := range caches {
		names = append(names, name)
	}
	sort.Strings(names)

	width := len("cache")
	for _, n := range names {
		width = max(width, lipgloss.Width(n))
	}

	var b strings.Builder
	b.WriteString(styles.muted.Render(fmt.Sprintf("%-*s %6s %8s %8s %7s", width, "cache", "size", "hits", "misses", "hit%")))
	for _, n := range names {
		cs := caches[n]
		fmt.Fprintf(&b, "\n%-*s %6d %8d %8d %6.1f%%", width, n, cs.Size, cs.Hits, cs.Misses, cs.HitRate*100)
	}
	return b.String()
}

func formatReport(r domain.SyncReport) string {
	if r.Attempted == 0 {
		return "sync: nothing to replay"
	}
	return fmt.Sprintf("sync: %d synced, %d failed, %d remaining", r.Synced, r.Failed, r.Remaining)
}
