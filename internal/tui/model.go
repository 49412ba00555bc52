// Package tui is the bubbletea operations dashboard: one pane each for
// bisect, rebase and merge, refreshed from the git directory watcher.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Akashdeep-Patra/gitstate/internal/git"
	"github.com/Akashdeep-Patra/gitstate/internal/result"
	"github.com/Akashdeep-Patra/gitstate/internal/watcher"
	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// Ops is the slice of git.Service the dashboard drives.
type Ops interface {
	RepoRoot() string
	GetCurrentBranch(ctx context.Context) result.Result[git.BranchID]
	IsWorkingTreeClean(ctx context.Context) result.Result[bool]
	GetStatus(ctx context.Context) result.Result[*git.StatusResult]

	GetBisectState(ctx context.Context) result.Result[git.BisectState]
	StartBisect(ctx context.Context, good, bad git.CommitID) result.Result[git.BisectState]
	MarkBisectGood(ctx context.Context) result.Result[git.BisectState]
	MarkBisectBad(ctx context.Context) result.Result[git.BisectState]
	MarkBisectSkip(ctx context.Context) result.Result[git.BisectState]
	ResetBisect(ctx context.Context) result.Result[git.BisectState]

	GetRebaseState(ctx context.Context) result.Result[git.RebaseState]
	RebaseBranch(ctx context.Context, onto string) result.Result[git.RebaseState]
	ContinueRebase(ctx context.Context) result.Result[git.RebaseState]
	SkipRebase(ctx context.Context) result.Result[git.RebaseState]
	AbortRebase(ctx context.Context) result.Result[git.RebaseState]

	GetMergeState(ctx context.Context) result.Result[git.MergeState]
	MergeBranch(ctx context.Context, branch string) result.Result[git.MergeState]
	AbortMerge(ctx context.Context) result.Result[git.MergeState]
	CommitMerge(ctx context.Context) result.Result[git.MergeState]
}

var _ Ops = git.Service(nil)

type pane int

const (
	paneBisect pane = iota
	paneRebase
	paneMerge
)

var paneNames = []string{"Bisect", "Rebase", "Merge"}

// Options configure the dashboard. The zero value is usable.
type Options struct {
	// Events triggers refreshes; nil disables watching.
	Events   <-chan watcher.Event
	CacheTTL time.Duration
	// Protected reports branches that must not be rebased from the dashboard.
	Protected func(branch string) bool
	Logger    *zap.Logger
}

// snapshot is one consistent read of every query the dashboard shows.
type snapshot struct {
	branch result.Result[git.BranchID]
	clean  result.Result[bool]
	bisect result.Result[git.BisectState]
	rebase result.Result[git.RebaseState]
	merge  result.Result[git.MergeState]
	// conflicts lists unmerged paths; only read while an operation has
	// stopped on conflicts.
	conflicts []string
}

type snapshotMsg struct{ snap snapshot }

type watchMsg struct{ ev watcher.Event }

// opDoneMsg reports a finished mutation. text is shown on success.
type opDoneMsg struct {
	text    string
	failure *result.Failure
}

// inputMode identifies what the text inputs are collecting.
type inputMode int

const (
	inputNone inputMode = iota
	inputBisect
	inputRebase
	inputMerge
)

// Model is the top-level bubbletea model.
type Model struct {
	ctx    context.Context
	ops    Ops
	opts   Options
	log    *zap.Logger
	cache  *stateCache
	styles Styles
	keys   KeyMap
	help   help.Model

	width, height int
	active        pane
	snap          snapshot
	loaded        bool
	busy          bool
	spinner       spinner.Model

	mode      inputMode
	inputStep int // bisect: 0=bad, 1=good
	inputs    [2]textinput.Model

	statusMsg string
	statusErr bool
	statusExp time.Time
}

// New creates the dashboard model. ctx bounds every git command it runs.
func New(ctx context.Context, ops Ops, opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Protected == nil {
		opts.Protected = func(string) bool { return false }
	}
	styles := DefaultStyles()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	var inputs [2]textinput.Model
	for i := range inputs {
		ti := textinput.New()
		ti.CharLimit = 200
		ti.Width = 50
		_ = ti.Cursor.SetMode(cursor.CursorStatic)
		inputs[i] = ti
	}

	return Model{
		ctx:     ctx,
		ops:     ops,
		opts:    opts,
		log:     opts.Logger,
		cache:   newStateCache(opts.CacheTTL),
		styles:  styles,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		spinner: sp,
		inputs:  inputs,
	}
}

// Init loads the first snapshot and starts listening for watcher events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.waitForEvent())
}

// load queries every state in the background. It never runs in View().
func (m Model) load() tea.Cmd {
	ctx, ops, c, log := m.ctx, m.ops, m.cache, m.log
	return func() tea.Msg {
		snap := snapshot{
			branch: cached(c, keyBranch, func() result.Result[git.BranchID] { return ops.GetCurrentBranch(ctx) }),
			clean:  cached(c, keyClean, func() result.Result[bool] { return ops.IsWorkingTreeClean(ctx) }),
			bisect: cached(c, keyBisect, func() result.Result[git.BisectState] { return ops.GetBisectState(ctx) }),
			rebase: cached(c, keyRebase, func() result.Result[git.RebaseState] { return ops.GetRebaseState(ctx) }),
			merge:  cached(c, keyMerge, func() result.Result[git.MergeState] { return ops.GetMergeState(ctx) }),
		}
		if snap.hasConflicts() {
			cached(c, keyStatus, func() result.Result[*git.StatusResult] { return ops.GetStatus(ctx) }).When(
				func(st *git.StatusResult) {
					for _, f := range st.Conflicts {
						snap.conflicts = append(snap.conflicts, f.Path)
					}
				},
				func(f *result.Failure) { log.Warn("listing conflicts failed", zap.String("message", f.Message)) })
		}
		return snapshotMsg{snap: snap}
	}
}

func (s snapshot) hasConflicts() bool {
	if r, err := s.rebase.Get(); err == nil && r.HasConflicts {
		return true
	}
	if mg, err := s.merge.Get(); err == nil && mg.ConflictCount > 0 {
		return true
	}
	return false
}

func (m Model) waitForEvent() tea.Cmd {
	ch := m.opts.Events
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return watchMsg{ev: ev}
	}
}

// Update processes messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case snapshotMsg:
		m.snap = msg.snap
		m.loaded = true
		m.logFailures()
		return m, nil

	case watchMsg:
		m.cache.invalidate(msg.ev)
		return m, tea.Batch(m.load(), m.waitForEvent())

	case opDoneMsg:
		m.busy = false
		if msg.failure != nil {
			if !msg.failure.IsCancelled() {
				m.setStatus(msg.failure.Message, true)
			}
		} else {
			m.setStatus(msg.text, false)
		}
		m.cache.flush()
		return m, m.load()

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.mode != inputNone {
			return m.updateInput(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) setStatus(text string, isErr bool) {
	m.statusMsg = text
	m.statusErr = isErr
	ttl := 3 * time.Second
	if isErr {
		ttl = 8 * time.Second
	}
	m.statusExp = time.Now().Add(ttl)
}

func (m Model) logFailures() {
	for name, f := range map[string]*result.Failure{
		keyBranch: m.snap.branch.Failure(),
		keyClean:  m.snap.clean.Failure(),
		keyBisect: m.snap.bisect.Failure(),
		keyRebase: m.snap.rebase.Failure(),
		keyMerge:  m.snap.merge.Failure(),
	} {
		if f != nil && !f.IsCancelled() {
			m.log.Warn("state query failed", zap.String("query", name), zap.Stringer("kind", f.Kind), zap.String("message", f.Message))
		}
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		m.cache.flush()
		return m, m.load()
	case key.Matches(msg, m.keys.NextTab):
		m.active = (m.active + 1) % pane(len(paneNames))
		return m, nil
	case key.Matches(msg, m.keys.PrevTab):
		m.active = (m.active + pane(len(paneNames)) - 1) % pane(len(paneNames))
		return m, nil
	}
	if m.busy {
		return m, nil
	}

	switch m.active {
	case paneBisect:
		return m.handleBisectKey(msg)
	case paneRebase:
		return m.handleRebaseKey(msg)
	case paneMerge:
		return m.handleMergeKey(msg)
	}
	return m, nil
}

func (m Model) handleBisectKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st, err := m.snap.bisect.Get()
	active := err == nil && st.IsActive
	switch {
	case key.Matches(msg, m.keys.Start) && !active:
		return m.openInput(inputBisect, "bad commit (empty = HEAD)", "good commit (e.g. v1.0.0)")
	case key.Matches(msg, m.keys.Good) && active:
		return m.run("marked "+st.Terms.Good, bisectText(m.ops.MarkBisectGood))
	case key.Matches(msg, m.keys.Bad) && active:
		return m.run("marked "+st.Terms.Bad, bisectText(m.ops.MarkBisectBad))
	case key.Matches(msg, m.keys.Skip) && active:
		return m.run("skipped", bisectText(m.ops.MarkBisectSkip))
	case key.Matches(msg, m.keys.Reset) && active:
		return m.run("bisect reset", bisectText(m.ops.ResetBisect))
	}
	return m, nil
}

func (m Model) handleRebaseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st, err := m.snap.rebase.Get()
	active := err == nil && st.IsActive
	switch {
	case key.Matches(msg, m.keys.Start) && !active:
		if branch, err := m.snap.branch.Get(); err == nil && m.opts.Protected(branch) {
			m.setStatus(fmt.Sprintf("%s is protected; rebase it from the CLI with --force", branch), true)
			return m, nil
		}
		return m.openInput(inputRebase, "upstream (e.g. main, origin/main)", "")
	case key.Matches(msg, m.keys.Continue) && active:
		return m.run("rebase continued", rebaseText(m.ops.ContinueRebase))
	case key.Matches(msg, m.keys.Skip) && active:
		return m.run("commit skipped", rebaseText(m.ops.SkipRebase))
	case key.Matches(msg, m.keys.Abort) && active:
		return m.run("rebase aborted", rebaseText(m.ops.AbortRebase))
	}
	return m, nil
}

func (m Model) handleMergeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st, err := m.snap.merge.Get()
	active := err == nil && st.InProgress
	switch {
	case key.Matches(msg, m.keys.Start) && !active:
		return m.openInput(inputMerge, "branch to merge into the current one", "")
	case key.Matches(msg, m.keys.Continue) && active:
		if st.ConflictCount > 0 {
			m.setStatus(fmt.Sprintf("resolve %d conflicted file(s) first", st.ConflictCount), true)
			return m, nil
		}
		return m.run("merge committed", mergeText(m.ops.CommitMerge))
	case key.Matches(msg, m.keys.Abort) && active:
		return m.run("merge aborted", mergeText(m.ops.AbortMerge))
	}
	return m, nil
}

func (m Model) openInput(mode inputMode, first, second string) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.inputStep = 0
	m.inputs[0].Reset()
	m.inputs[1].Reset()
	m.inputs[0].Placeholder = first
	m.inputs[1].Placeholder = second
	m.inputs[1].Blur()
	return m, m.inputs[0].Focus()
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = inputNone
		m.inputs[0].Blur()
		m.inputs[1].Blur()
		return m, nil
	case "tab":
		if m.mode == inputBisect {
			m.inputStep = 1 - m.inputStep
			m.inputs[1-m.inputStep].Blur()
			return m, m.inputs[m.inputStep].Focus()
		}
	case "enter":
		if m.mode == inputBisect && m.inputStep == 0 {
			m.inputStep = 1
			m.inputs[0].Blur()
			return m, m.inputs[1].Focus()
		}
		return m.submitInput()
	}
	var cmd tea.Cmd
	m.inputs[m.inputStep], cmd = m.inputs[m.inputStep].Update(msg)
	return m, cmd
}

func (m Model) submitInput() (tea.Model, tea.Cmd) {
	first := strings.TrimSpace(m.inputs[0].Value())
	second := strings.TrimSpace(m.inputs[1].Value())
	mode := m.mode
	m.mode = inputNone
	m.inputs[0].Blur()
	m.inputs[1].Blur()

	switch mode {
	case inputBisect:
		return m.run("bisect started", func(ctx context.Context) (string, *result.Failure) {
			return describeBisect(m.ops.StartBisect(ctx, second, first))
		})
	case inputRebase:
		if first == "" {
			return m, nil
		}
		return m.run("rebased onto "+first, rebaseText(func(ctx context.Context) result.Result[git.RebaseState] {
			return m.ops.RebaseBranch(ctx, first)
		}))
	case inputMerge:
		if first == "" {
			return m, nil
		}
		return m.run("merged "+first, mergeText(func(ctx context.Context) result.Result[git.MergeState] {
			return m.ops.MergeBranch(ctx, first)
		}))
	}
	return m, nil
}

// run executes op in the background; its text overrides fallback when set.
func (m Model) run(fallback string, op func(ctx context.Context) (string, *result.Failure)) (tea.Model, tea.Cmd) {
	m.busy = true
	ctx := m.ctx
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		text, f := op(ctx)
		if text == "" {
			text = fallback
		}
		return opDoneMsg{text: text, failure: f}
	})
}

func bisectText(op func(context.Context) result.Result[git.BisectState]) func(context.Context) (string, *result.Failure) {
	return func(ctx context.Context) (string, *result.Failure) { return describeBisect(op(ctx)) }
}

func rebaseText(op func(context.Context) result.Result[git.RebaseState]) func(context.Context) (string, *result.Failure) {
	return func(ctx context.Context) (string, *result.Failure) {
		r := op(ctx)
		if f := r.Failure(); f != nil {
			return "", f
		}
		if st := r.Unwrap(); st.IsActive && st.HasConflicts {
			return "stopped on conflicts at " + st.ProgressText, nil
		}
		return "", nil
	}
}

func mergeText(op func(context.Context) result.Result[git.MergeState]) func(context.Context) (string, *result.Failure) {
	return func(ctx context.Context) (string, *result.Failure) {
		r := op(ctx)
		if f := r.Failure(); f != nil {
			return "", f
		}
		if st := r.Unwrap(); st.ConflictCount > 0 {
			return fmt.Sprintf("merge stopped with %d conflicted file(s)", st.ConflictCount), nil
		}
		return "", nil
	}
}

func describeBisect(r result.Result[git.BisectState]) (string, *result.Failure) {
	if f := r.Failure(); f != nil {
		return "", f
	}
	st := r.Unwrap()
	switch {
	case st.IsCompleted:
		return "first " + st.Terms.Bad + " commit: " + shortHash(st.FoundCommit), nil
	case st.StepsRemaining != nil:
		return fmt.Sprintf("about %d step(s) left", *st.StepsRemaining), nil
	}
	return "", nil
}
