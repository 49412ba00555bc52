package git

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Akashdeep-Patra/gitstate/internal/result"
	"go.uber.org/zap"
)

// RebaseState is a snapshot of an in-progress rebase.
type RebaseState struct {
	IsActive     bool
	HasConflicts bool
	// OntoBranch is the branch the commits are replayed onto, or the onto
	// hash when no branch points there.
	OntoBranch BranchID
	// Branch is the branch being rebased; empty for a detached rebase.
	Branch        BranchID
	CurrentCommit CommitID
	// Progress is done/total in [0, 1]; nil when not active.
	Progress     *float64
	ProgressText string
	// Interactive is set for rebase-merge sessions started with -i.
	Interactive bool
}

// rebaseLayout names the marker files of one rebase backend.
type rebaseLayout struct {
	dir     string
	current string
	total   string
	commit  string
}

var (
	mergeBackend = rebaseLayout{dir: "rebase-merge", current: "msgnum", total: "end", commit: "stopped-sha"}
	applyBackend = rebaseLayout{dir: "rebase-apply", current: "next", total: "last", commit: "original-commit"}
)

// GetRebaseState inspects rebase-merge/ or rebase-apply/ and the status.
func (s *CLIService) GetRebaseState(ctx context.Context) result.Result[RebaseState] {
	merge, apply := s.markerDir(mergeBackend.dir), s.markerDir(applyBackend.dir)
	switch {
	case merge && apply:
		return result.Fail[RebaseState](stateFailure("rebase", "both rebase-merge and rebase-apply exist"))
	case !merge && !apply:
		return result.Success(RebaseState{})
	}
	layout := mergeBackend
	if apply {
		// rebase-apply/applying belongs to `git am`, not a rebase.
		if _, ok, _ := s.readMarker("rebase-apply/applying"); ok {
			return result.Success(RebaseState{})
		}
		layout = applyBackend
	}

	st, f := s.readRebaseMarkers(layout)
	if f != nil {
		return result.Fail[RebaseState](f)
	}
	return result.FlatMap(s.ontoBranch(ctx, st.OntoBranch), func(onto BranchID) result.Result[RebaseState] {
		st.OntoBranch = onto
		return result.Map(s.conflicts(ctx), func(n int) RebaseState {
			st.HasConflicts = n > 0
			return st
		})
	})
}

func (s *CLIService) readRebaseMarkers(l rebaseLayout) (RebaseState, *result.Failure) {
	read := func(name string) (string, bool, *result.Failure) {
		v, ok, err := s.readMarker(l.dir + "/" + name)
		if err != nil {
			return "", false, stateFailure("rebase", "reading %s/%s: %v", l.dir, name, err).WithCause(err)
		}
		return strings.TrimSpace(v), ok, nil
	}
	st := RebaseState{IsActive: true}

	cur, ok1, f := read(l.current)
	if f != nil {
		return st, f
	}
	total, ok2, f := read(l.total)
	if f != nil {
		return st, f
	}
	if !ok1 || !ok2 {
		return st, stateFailure("rebase", "%s is missing %s or %s", l.dir, l.current, l.total)
	}
	n, err1 := strconv.Atoi(cur)
	m, err2 := strconv.Atoi(total)
	if err1 != nil || err2 != nil || m <= 0 || n < 0 {
		return st, stateFailure("rebase", "invalid progress %q/%q", cur, total).WithDetail(cur + "/" + total)
	}
	p := min(float64(n)/float64(m), 1)
	st.Progress = &p
	st.ProgressText = fmt.Sprintf("%d/%d", n, m)

	onto, ok, f := read("onto")
	if f != nil {
		return st, f
	}
	if !ok || !isHash(onto) {
		return st, stateFailure("rebase", "invalid onto %q", onto).WithDetail(onto)
	}
	st.OntoBranch = onto

	headName, _, f := read("head-name")
	if f != nil {
		return st, f
	}
	if b, ok := strings.CutPrefix(headName, "refs/heads/"); ok {
		st.Branch = b
	}

	_, st.Interactive, _ = s.readMarker(l.dir + "/interactive")

	// REBASE_HEAD names the commit being replayed once git has stopped.
	commit, ok, err := s.readMarker("REBASE_HEAD")
	if err != nil {
		return st, stateFailure("rebase", "reading REBASE_HEAD: %v", err).WithCause(err)
	}
	if !ok {
		if commit, ok, f = read(l.commit); f != nil {
			return st, f
		}
	}
	if commit = strings.TrimSpace(commit); ok && commit != "" {
		if !isHash(commit) {
			return st, stateFailure("rebase", "invalid current commit %q", commit).WithDetail(commit)
		}
		st.CurrentCommit = commit
	}
	return st, nil
}

// ontoBranch resolves the onto hash to a branch name. Local branches sort
// before remote-tracking ones so they win.
func (s *CLIService) ontoBranch(ctx context.Context, onto CommitID) result.Result[BranchID] {
	return result.Map(s.read(ctx, "for-each-ref", "--points-at="+onto, "--format=%(refname:short)",
		"refs/heads", "refs/remotes"), func(out string) BranchID {
		if lines := splitLines(out); len(lines) > 0 {
			return strings.TrimSpace(lines[0])
		}
		return onto
	})
}

// RebaseBranch rebases the current branch onto onto. Stopping on a
// conflict is reported as a success carrying HasConflicts; any other git
// error is a failure.
func (s *CLIService) RebaseBranch(ctx context.Context, onto string) result.Result[RebaseState] {
	return s.rebaseStep(ctx, RebaseState{}, "rebase", onto)
}

// ContinueRebase resumes after conflicts were resolved. Git decides
// whether that is possible; its refusal is surfaced unchanged.
func (s *CLIService) ContinueRebase(ctx context.Context) result.Result[RebaseState] {
	return result.FlatMap(s.GetRebaseState(ctx), func(before RebaseState) result.Result[RebaseState] {
		return s.rebaseStep(ctx, before, "rebase", "--continue")
	})
}

// SkipRebase drops the commit being replayed and moves on.
func (s *CLIService) SkipRebase(ctx context.Context) result.Result[RebaseState] {
	return result.FlatMap(s.GetRebaseState(ctx), func(before RebaseState) result.Result[RebaseState] {
		return s.rebaseStep(ctx, before, "rebase", "--skip")
	})
}

// AbortRebase restores the pre-rebase HEAD.
func (s *CLIService) AbortRebase(ctx context.Context) result.Result[RebaseState] {
	return result.FlatMap(s.write(ctx, "rebase", "--abort"), func(string) result.Result[RebaseState] {
		return s.GetRebaseState(ctx)
	})
}

// rebaseStep runs a rebase command that may stop on the next conflict.
// core.editor=true keeps git from opening an editor for commit messages.
func (s *CLIService) rebaseStep(ctx context.Context, before RebaseState, args ...string) result.Result[RebaseState] {
	run := s.write(ctx, append([]string{"-c", "core.editor=true"}, args...)...)
	if run.IsSuccess() {
		return s.GetRebaseState(ctx)
	}
	f := run.Failure()
	if f.Kind != result.KindCommandFailure {
		return result.Fail[RebaseState](f)
	}
	after := s.GetRebaseState(ctx)
	st, err := after.Get()
	if err != nil || !st.IsActive || !st.HasConflicts || !advanced(before, st) {
		return result.Fail[RebaseState](f)
	}
	s.log.Info("rebase stopped on conflict", zap.String("commit", st.CurrentCommit), zap.String("progress", st.ProgressText))
	return result.Success(st)
}

// advanced reports whether the rebase moved to a different commit.
func advanced(before, after RebaseState) bool {
	return !before.IsActive || before.CurrentCommit != after.CurrentCommit || before.ProgressText != after.ProgressText
}
