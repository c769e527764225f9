package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
)

const logo = "skiff"

func (m *Model) layout() (listHeight, detailHeight, logHeight int) {
	content := m.height - 2
	if content < 6 {
		content = 6
	}
	listHeight = content * 2 / 5
	if listHeight < 3 {
		listHeight = 3
	}
	detailHeight = content - listHeight - 2
	if detailHeight < 1 {
		detailHeight = 1
	}
	logHeight = content - 2
	return listHeight, detailHeight, logHeight
}

func (m *Model) resizeViewports() {
	_, detailHeight, logHeight := m.layout()
	width := m.width - 2
	if width < 10 {
		width = 10
	}
	if m.detailViewport.Width == 0 {
		m.detailViewport = viewport.New(width, detailHeight)
		m.logViewport = viewport.New(width, logHeight)
		return
	}
	m.detailViewport.Width = width
	m.detailViewport.Height = detailHeight
	m.logViewport.Width = width
	m.logViewport.Height = logHeight
}

func (m *Model) updateViewports() {
	if m.detailViewport.Width == 0 {
		return
	}
	m.detailViewport.SetContent(m.renderDetail())

	atBottom := m.logViewport.AtBottom()
	m.logViewport.SetContent(strings.Join(m.snapshot.logs, "\n"))
	if atBottom {
		m.logViewport.GotoBottom()
	}
}

func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")

	styles := m.theme.Styles()
	width := m.width - 2
	if m.currentView == ViewLogs {
		b.WriteString(styles.FocusedPane.Width(width).Render(m.logViewport.View()))
		return b.String()
	}
	listHeight, _, _ := m.layout()
	b.WriteString(styles.FocusedPane.Width(width).Render(m.renderQueryList(listHeight - 2)))
	b.WriteString("\n")
	b.WriteString(styles.Pane.Width(width).Render(m.detailViewport.View()))
	return b.String()
}

func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	counts := map[string]int{}
	for _, q := range m.snapshot.queries {
		counts[queryStatus(q.State)]++
	}
	parts := []string{
		styles.Logo.Render(logo),
		styles.MutedText.Render("Queries:") + " " + styles.Text.Render(fmt.Sprint(len(m.snapshot.queries))),
	}
	for _, status := range []string{statusLoading, statusFetching, statusCached, statusError} {
		if counts[status] > 0 {
			parts = append(parts, styles.StatusStyle(status).Render(fmt.Sprintf("%s %d", status, counts[status])))
		}
	}
	parts = append(parts, styles.MutedText.Render("Mutations:")+" "+styles.Text.Render(fmt.Sprint(len(m.snapshot.mutations))))
	if len(m.snapshot.watches) > 0 {
		watches := styles.MutedText.Render("Watches:") + " " + styles.Text.Render(fmt.Sprint(len(m.snapshot.watches)))
		if offline := m.snapshot.offlineWatches(); offline > 0 {
			watches += " " + styles.DangerText.Render(fmt.Sprintf("(%d offline)", offline))
		}
		parts = append(parts, watches)
	}
	if m.flash != "" {
		flash := truncate(m.flash, 80)
		if m.flashErr {
			parts = append(parts, styles.DangerText.Render(flash))
		} else {
			parts = append(parts, styles.AccentText.Render(flash))
		}
	}
	return styles.Header.Width(m.width).Render(strings.Join(parts, "  "))
}

func (m Model) renderCommandBar() string {
	styles := m.theme.Styles()
	hints := []string{"j/k move", "r refresh", "i invalidate", "tab logs", "T theme", "? help", "e quit"}
	if m.currentView == ViewLogs {
		hints = []string{"j/k scroll", "tab queries", "T theme", "? help", "e quit"}
	}
	return styles.Footer.Width(m.width).Render(strings.Join(hints, "  •  "))
}

func (m Model) renderQueryList(rows int) string {
	styles := m.theme.Styles()
	if len(m.snapshot.queries) == 0 {
		return styles.FaintText.Render("No queries yet")
	}
	if rows < 1 {
		rows = 1
	}
	start := 0
	if m.selectedRow >= rows {
		start = m.selectedRow - rows + 1
	}
	end := start + rows
	if end > len(m.snapshot.queries) {
		end = len(m.snapshot.queries)
	}

	keyWidth := m.width - 40
	if keyWidth < 12 {
		keyWidth = 12
	}
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		q := m.snapshot.queries[i]
		status := queryStatus(q.State)
		badge := styles.StatusStyle(status).Render(fmt.Sprintf("%-8s", status))
		line := fmt.Sprintf("%s %s  %-*s  %s",
			badge,
			queryFlags(q.State),
			keyWidth, truncate(q.CacheKey, keyWidth),
			relativeTime(m.snapshot.taken, q.State.LastFetchTime))
		if i == m.selectedRow {
			line = styles.Selected.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderDetail() string {
	styles := m.theme.Styles()
	var b strings.Builder

	if entry, ok := m.selectedQuery(); ok {
		st := entry.State
		writeSection(&b, styles, "Query")
		writeField(&b, styles, "Key", entry.CacheKey)
		writeField(&b, styles, "Status", st.StatusMessage)
		writeField(&b, styles, "Flags", queryFlags(st)+"  (L loading, F fetching, N fresh, C cached, S success, E error)")
		writeField(&b, styles, "Last fetch", relativeTime(m.snapshot.taken, st.LastFetchTime))
		if w, ok := m.snapshot.watches[entry.CacheKey]; ok {
			watch := w.Name + ", last success " + relativeTime(m.snapshot.taken, w.LastSuccess)
			if w.ConsecutiveFailures > 0 {
				watch += fmt.Sprintf(", %d failed polls", w.ConsecutiveFailures)
			}
			writeField(&b, styles, "Watch", watch)
		}
		if st.Error != nil {
			b.WriteString(styles.DangerText.Render("Error: " + errorText(st.Error)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(prettyJSON(st.Data))
		b.WriteString("\n")
	}

	if len(m.snapshot.mutations) > 0 {
		b.WriteString("\n")
		writeSection(&b, styles, "Mutations")
		for _, mu := range m.snapshot.mutations {
			status := mutationStatus(mu.State)
			line := styles.StatusStyle(status).Render(fmt.Sprintf("%-8s", status)) + " " + mu.ID
			if mu.State.Error != nil {
				line += "  " + styles.DangerText.Render(errorText(mu.State.Error))
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	if len(m.snapshot.forms) > 0 {
		b.WriteString("\n")
		writeSection(&b, styles, "Forms")
		for _, f := range m.snapshot.forms {
			line := f.ID
			if f.State.IsSubmitting {
				line += "  " + styles.WarningText.Render("submitting")
			}
			if f.State.FormError != nil {
				line += "  " + styles.DangerText.Render(f.State.FormError.Error())
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeSection(b *strings.Builder, styles Styles, title string) {
	b.WriteString(styles.AccentText.Bold(true).Render(title))
	b.WriteString("\n")
}

func writeField(b *strings.Builder, styles Styles, label, value string) {
	b.WriteString(styles.MutedText.Render(fmt.Sprintf("%-11s", label)))
	b.WriteString(styles.Text.Render(value))
	b.WriteString("\n")
}

func (m Model) renderHelp() string {
	styles := m.theme.Styles()
	var b strings.Builder
	b.WriteString(styles.Logo.Render(logo + " keys"))
	b.WriteString("\n\n")
	for _, section := range m.keys.helpSections() {
		writeSection(&b, styles, section.Title)
		for _, binding := range section.Bindings {
			h := binding.Help()
			b.WriteString(fmt.Sprintf("  %s %s\n", styles.WarningText.Render(fmt.Sprintf("%-10s", h.Key)), styles.Text.Render(h.Desc)))
		}
		b.WriteString("\n")
	}
	b.WriteString(styles.FaintText.Render("Press any key to close"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, b.String())
}
