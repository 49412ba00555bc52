package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/Akashdeep-Patra/gitstate/internal/git"
	"github.com/Akashdeep-Patra/gitstate/internal/tui"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// stateReport is the machine-readable form of `gitstate state --yaml`.
type stateReport struct {
	Branch string       `yaml:"branch"`
	Clean  bool         `yaml:"clean"`
	Bisect bisectReport `yaml:"bisect"`
	Rebase rebaseReport `yaml:"rebase"`
	Merge  mergeReport  `yaml:"merge"`
}

type bisectReport struct {
	Active         bool     `yaml:"active"`
	Completed      bool     `yaml:"completed,omitempty"`
	Current        string   `yaml:"current,omitempty"`
	Good           []string `yaml:"good,omitempty"`
	Bad            []string `yaml:"bad,omitempty"`
	Skipped        []string `yaml:"skipped,omitempty"`
	Found          string   `yaml:"found,omitempty"`
	StepsRemaining *int     `yaml:"steps_remaining,omitempty"`
	StartedFrom    string   `yaml:"started_from,omitempty"`
	TermGood       string   `yaml:"term_good,omitempty"`
	TermBad        string   `yaml:"term_bad,omitempty"`
}

type rebaseReport struct {
	Active       bool     `yaml:"active"`
	Conflicts    bool     `yaml:"conflicts,omitempty"`
	Onto         string   `yaml:"onto,omitempty"`
	Branch       string   `yaml:"branch,omitempty"`
	Current      string   `yaml:"current,omitempty"`
	Progress     *float64 `yaml:"progress,omitempty"`
	ProgressText string   `yaml:"progress_text,omitempty"`
	Interactive  bool     `yaml:"interactive,omitempty"`
}

type mergeReport struct {
	Active    bool     `yaml:"active"`
	Conflicts int      `yaml:"conflicts"`
	Heads     []string `yaml:"heads,omitempty"`
}

func newStateReport(branch string, clean bool, b git.BisectState, r git.RebaseState, m git.MergeState) stateReport {
	rep := stateReport{
		Branch: branch,
		Clean:  clean,
		Bisect: bisectReport{
			Active:         b.IsActive,
			Completed:      b.IsCompleted,
			Current:        b.CurrentCommit,
			Good:           b.GoodCommits,
			Bad:            b.BadCommits,
			Skipped:        b.SkippedCommits,
			Found:          b.FoundCommit,
			StepsRemaining: b.StepsRemaining,
			StartedFrom:    b.StartedFrom,
		},
		Rebase: rebaseReport{
			Active:       r.IsActive,
			Conflicts:    r.HasConflicts,
			Onto:         r.OntoBranch,
			Branch:       r.Branch,
			Current:      r.CurrentCommit,
			Progress:     r.Progress,
			ProgressText: r.ProgressText,
			Interactive:  r.Interactive,
		},
		Merge: mergeReport{
			Active:    m.InProgress,
			Conflicts: m.ConflictCount,
			Heads:     m.MergeHeads,
		},
	}
	if b.IsActive {
		rep.Bisect.TermGood = b.Terms.Good
		rep.Bisect.TermBad = b.Terms.Bad
	}
	return rep
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// printer renders human output with the dashboard's styles.
type printer struct {
	w  io.Writer
	st tui.Styles
}

func newPrinter(w io.Writer) printer {
	return printer{w: w, st: tui.DefaultStyles()}
}

func (p printer) heading(s string) {
	fmt.Fprintln(p.w, p.st.PanelTitle.Render(s))
}

func (p printer) row(label, value string) {
	fmt.Fprintln(p.w, "  "+p.st.Label.Render(label)+value)
}

func (p printer) hashes(hs []git.CommitID) string {
	if len(hs) == 0 {
		return p.st.Muted.Render("none")
	}
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = p.st.CommitHash.Render(abbrev(h))
	}
	return strings.Join(out, " ")
}

func abbrev(h string) string {
	if len(h) > 10 {
		return h[:10]
	}
	return h
}

func (p printer) bisect(st git.BisectState) {
	p.heading("Bisect")
	if !st.IsActive {
		p.row("state", p.st.Muted.Render("idle"))
		return
	}
	switch {
	case st.IsCompleted:
		p.row("state", p.st.Badge.Render("FOUND")+" "+p.st.CommitHash.Render(st.FoundCommit))
	default:
		p.row("state", p.st.Badge.Render("BISECTING"))
	}
	p.row("started from", p.st.BranchName.Render(st.StartedFrom))
	p.row("current", p.st.CommitHash.Render(abbrev(st.CurrentCommit)))
	p.row(st.Terms.Bad, p.hashes(st.BadCommits))
	p.row(st.Terms.Good, p.hashes(st.GoodCommits))
	if len(st.SkippedCommits) > 0 {
		p.row("skipped", p.hashes(st.SkippedCommits))
	}
	if st.StepsRemaining != nil {
		p.row("steps left", fmt.Sprintf("~%d", *st.StepsRemaining))
	}
}

func (p printer) rebase(st git.RebaseState) {
	p.heading("Rebase")
	if !st.IsActive {
		p.row("state", p.st.Muted.Render("idle"))
		return
	}
	p.row("state", p.st.Badge.Render("REBASING"))
	p.row("branch", p.st.BranchName.Render(st.Branch))
	p.row("onto", p.st.BranchName.Render(st.OntoBranch))
	p.row("commit", p.st.CommitHash.Render(abbrev(st.CurrentCommit)))
	p.row("progress", st.ProgressText)
	if st.HasConflicts {
		p.row("conflicts", p.st.Conflict.Render("yes"))
	}
}

func (p printer) merge(st git.MergeState) {
	p.heading("Merge")
	if !st.InProgress {
		p.row("state", p.st.Muted.Render("idle"))
		return
	}
	p.row("state", p.st.Badge.Render("MERGING"))
	p.row("merging", p.hashes(st.MergeHeads))
	p.row("conflicts", fmt.Sprintf("%d", st.ConflictCount))
}

func (p printer) diff(files []git.FileDiff) {
	t := p.st.Theme
	added := lipgloss.NewStyle().Foreground(t.Success)
	removed := lipgloss.NewStyle().Foreground(t.Error)
	hunk := lipgloss.NewStyle().Foreground(t.Accent).Italic(true)

	for _, f := range files {
		name := f.NewPath
		switch {
		case name == "":
			name = f.OldPath + " (deleted)"
		case f.OldPath == "":
			name += " (new)"
		case f.OldPath != f.NewPath:
			name = f.OldPath + " -> " + f.NewPath
		}
		p.heading(name)
		if f.Binary {
			fmt.Fprintln(p.w, p.st.Muted.Render("  binary file"))
			continue
		}
		for _, h := range f.Hunks {
			fmt.Fprintln(p.w, hunk.Render(h.Header))
			for _, l := range h.Lines {
				switch l.Kind {
				case git.DiffAddition:
					fmt.Fprintln(p.w, added.Render("+"+l.Content))
				case git.DiffDeletion:
					fmt.Fprintln(p.w, removed.Render("-"+l.Content))
				default:
					fmt.Fprintln(p.w, " "+l.Content)
				}
			}
		}
	}
}
