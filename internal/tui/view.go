package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Akashdeep-Patra/gitstate/internal/git"
	"github.com/Akashdeep-Patra/gitstate/internal/result"
	"github.com/charmbracelet/lipgloss"
)

// View renders the dashboard. It performs no I/O.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	tabs := m.renderTabs()
	status := m.renderStatusBar()
	helpView := m.help.View(m.keys)

	var body string
	switch {
	case m.mode != inputNone:
		body = m.renderInput()
	case !m.loaded:
		body = "  " + m.spinner.View() + m.styles.Muted.Render(" reading repository state…")
	default:
		body = m.renderPane()
	}

	contentH := m.height - lipgloss.Height(tabs) - lipgloss.Height(status) - lipgloss.Height(helpView)
	if contentH < 1 {
		contentH = 1
	}
	body = lipgloss.NewStyle().Width(m.width).Height(contentH).MaxHeight(contentH).Render(body)

	return lipgloss.JoinVertical(lipgloss.Left, tabs, body, helpView, status)
}

func (m Model) renderTabs() string {
	items := make([]string, len(paneNames))
	for i, name := range paneNames {
		label := name
		if m.paneActive(pane(i)) {
			label += " ●"
		}
		if pane(i) == m.active {
			items[i] = m.styles.TabActive.Render(label)
		} else {
			items[i] = m.styles.TabItem.Render(label)
		}
	}
	return m.styles.TabBar.Width(m.width).Render(lipgloss.JoinHorizontal(lipgloss.Bottom, items...))
}

// paneActive reports whether the pane's operation is in progress.
func (m Model) paneActive(p pane) bool {
	switch p {
	case paneBisect:
		return m.snap.bisect.IsSuccess() && m.snap.bisect.Unwrap().IsActive
	case paneRebase:
		return m.snap.rebase.IsSuccess() && m.snap.rebase.Unwrap().IsActive
	case paneMerge:
		return m.snap.merge.IsSuccess() && m.snap.merge.Unwrap().InProgress
	}
	return false
}

func (m Model) renderPane() string {
	var b strings.Builder
	title := m.styles.PanelTitle.Render("  " + paneNames[m.active])
	if m.busy {
		title += " " + m.spinner.View()
	}
	b.WriteString(title + "\n\n")

	switch m.active {
	case paneBisect:
		m.snap.bisect.When(
			func(st git.BisectState) { m.renderBisect(&b, st) },
			func(f *result.Failure) { m.renderFailure(&b, f) })
	case paneRebase:
		m.snap.rebase.When(
			func(st git.RebaseState) { m.renderRebase(&b, st) },
			func(f *result.Failure) { m.renderFailure(&b, f) })
	case paneMerge:
		m.snap.merge.When(
			func(st git.MergeState) { m.renderMerge(&b, st) },
			func(f *result.Failure) { m.renderFailure(&b, f) })
	}
	return b.String()
}

func (m Model) row(b *strings.Builder, label, value string) {
	b.WriteString("  " + m.styles.Label.Render(label) + value + "\n")
}

func (m Model) hint(b *strings.Builder, key, desc string) {
	b.WriteString("  " + renderKeyValue(m.styles, key, desc) + "\n")
}

func (m Model) renderFailure(b *strings.Builder, f *result.Failure) {
	b.WriteString("  " + m.styles.Error.Render(f.Kind.String()+": "+f.Message) + "\n")
	if f.Detail != "" && f.Detail != f.Message {
		b.WriteString("\n  " + m.styles.Muted.Render(strings.TrimSpace(f.Detail)) + "\n")
	}
	b.WriteString("\n")
	m.hint(b, "r", "retry")
}

func (m Model) renderBisect(b *strings.Builder, st git.BisectState) {
	s := m.styles
	if !st.IsActive {
		b.WriteString("  " + s.Body.Render("No bisect in progress.") + "\n\n")
		m.hint(b, "n", "start bisect")
		return
	}

	if st.IsCompleted {
		b.WriteString("  " + s.Badge.Background(s.Theme.Success).Render("FOUND") + " " +
			s.Body.Render("first "+st.Terms.Bad+" commit ") + s.CommitHash.Render(st.FoundCommit) + "\n\n")
	} else {
		b.WriteString("  " + s.Badge.Render("BISECTING") + "\n\n")
	}
	m.row(b, "started from", s.BranchName.Render(st.StartedFrom))
	m.row(b, "current", s.CommitHash.Render(shortHash(st.CurrentCommit)))
	m.row(b, st.Terms.Bad, hashList(s, st.BadCommits))
	m.row(b, st.Terms.Good, hashList(s, st.GoodCommits))
	if len(st.SkippedCommits) > 0 {
		m.row(b, "skipped", hashList(s, st.SkippedCommits))
	}
	if st.StepsRemaining != nil {
		m.row(b, "steps left", fmt.Sprintf("~%d", *st.StepsRemaining))
	}

	b.WriteString("\n")
	if !st.IsCompleted {
		m.hint(b, "g", "mark "+st.Terms.Good)
		m.hint(b, "B", "mark "+st.Terms.Bad)
		m.hint(b, "s", "skip")
	}
	m.hint(b, "R", "reset bisect")
}

func hashList(s Styles, hashes []git.CommitID) string {
	if len(hashes) == 0 {
		return s.Muted.Render("none")
	}
	parts := make([]string, len(hashes))
	for i, h := range hashes {
		parts[i] = s.CommitHash.Render(shortHash(h))
	}
	return strings.Join(parts, " ")
}

func (m Model) renderRebase(b *strings.Builder, st git.RebaseState) {
	s := m.styles
	if !st.IsActive {
		b.WriteString("  " + s.Body.Render("No rebase in progress.") + "\n\n")
		m.hint(b, "n", "rebase current branch")
		return
	}

	kind := "REBASING"
	if st.Interactive {
		kind = "REBASING (interactive)"
	}
	b.WriteString("  " + s.Badge.Render(kind) + "\n\n")
	m.row(b, "branch", s.BranchName.Render(st.Branch))
	m.row(b, "onto", s.BranchName.Render(st.OntoBranch))
	m.row(b, "commit", s.CommitHash.Render(shortHash(st.CurrentCommit)))
	if st.Progress != nil {
		m.row(b, "progress", st.ProgressText+"  "+progressBar(s, *st.Progress, 24))
	}
	if st.HasConflicts {
		b.WriteString("\n  " + s.Conflict.Render("Conflicts: resolve, stage, then continue.") + "\n")
		m.conflictList(b)
	}

	b.WriteString("\n")
	m.hint(b, "c", "continue")
	m.hint(b, "s", "skip commit")
	m.hint(b, "a", "abort")
}

func progressBar(s Styles, frac float64, width int) string {
	filled := int(frac * float64(width))
	filled = max(0, min(width, filled))
	return lipgloss.NewStyle().Foreground(s.Theme.Primary).Render(strings.Repeat("█", filled)) +
		s.Muted.Render(strings.Repeat("░", width-filled))
}

func (m Model) renderMerge(b *strings.Builder, st git.MergeState) {
	s := m.styles
	if !st.InProgress {
		b.WriteString("  " + s.Body.Render("No merge in progress.") + "\n\n")
		m.hint(b, "n", "merge a branch")
		return
	}

	b.WriteString("  " + s.Badge.Render("MERGING") + "\n\n")
	m.row(b, "merging", hashList(s, st.MergeHeads))
	conflicts := s.Body.Render("none")
	if st.ConflictCount > 0 {
		conflicts = s.Conflict.Render(fmt.Sprintf("%d file(s)", st.ConflictCount))
	}
	m.row(b, "conflicts", conflicts)
	if st.ConflictCount > 0 {
		m.conflictList(b)
	}

	b.WriteString("\n")
	if st.ConflictCount == 0 {
		m.hint(b, "c", "commit merge")
	}
	m.hint(b, "a", "abort")
}

// conflictList prints the unmerged paths, capped to keep the hints visible.
func (m Model) conflictList(b *strings.Builder) {
	const maxShown = 10
	for i, path := range m.snap.conflicts {
		if i == maxShown {
			b.WriteString("    " + m.styles.Muted.Render(fmt.Sprintf("… %d more", len(m.snap.conflicts)-maxShown)) + "\n")
			break
		}
		b.WriteString("    " + m.styles.Conflict.Render("✗ ") + m.styles.Body.Render(path) + "\n")
	}
}

func (m Model) renderInput() string {
	t := m.styles.Theme
	hint := m.styles.Muted.Render("  enter to confirm | esc to cancel")
	title := lipgloss.NewStyle().Foreground(t.Primary).Bold(true)
	switch m.mode {
	case inputBisect:
		return lipgloss.JoinVertical(lipgloss.Left,
			title.Render("  Start Bisect"), "",
			"  Bad commit:", "  "+m.inputs[0].View(), "",
			"  Good commit:", "  "+m.inputs[1].View(), "",
			m.styles.Muted.Render("  tab to switch field | enter to start | esc to cancel"))
	case inputRebase:
		return lipgloss.JoinVertical(lipgloss.Left,
			title.Render("  Rebase"), "", "  Rebase onto:", "  "+m.inputs[0].View(), "", hint)
	case inputMerge:
		return lipgloss.JoinVertical(lipgloss.Left,
			title.Render("  Merge"), "", "  Merge branch:", "  "+m.inputs[0].View(), "", hint)
	}
	return ""
}

// renderStatusBar draws branch, worktree state and the transient message.
//
//	main │ ✓ clean                                   repo
func (m Model) renderStatusBar() string {
	t := m.styles.Theme
	sep := lipgloss.NewStyle().Foreground(t.Border).Faint(true).Render(" │ ")

	branch := m.snap.branch.UnwrapOr("?")
	left := " " + lipgloss.NewStyle().Foreground(t.BranchHead).Bold(true).Render(branch)

	switch clean, err := m.snap.clean.Get(); {
	case !m.loaded:
	case err != nil:
		left += sep + lipgloss.NewStyle().Foreground(t.Error).Render("? status unavailable")
	case clean:
		left += sep + lipgloss.NewStyle().Foreground(t.Success).Render("✓ clean")
	default:
		left += sep + lipgloss.NewStyle().Foreground(t.Warning).Render("● modified")
	}

	var right string
	if m.statusMsg != "" && time.Now().Before(m.statusExp) {
		fg := t.Info
		if m.statusErr {
			fg = t.Error
		}
		right = lipgloss.NewStyle().Foreground(fg).Render(m.statusMsg) + " "
	} else if root := m.ops.RepoRoot(); m.width >= 60 && root != "" {
		right = lipgloss.NewStyle().Foreground(t.TextSubtle).Render(filepath.Base(root)) + " "
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
		right = ""
	}
	return m.styles.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}
