package git

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Akashdeep-Patra/gitstate/internal/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bisectLog(lines ...string) string { return strings.Join(lines, "\n") + "\n" }

// mark renders the comment git appends to BISECT_LOG for every verdict.
func mark(term string, c byte) string { return "# " + term + ": [" + sha(c) + "] commit " + string(c) }

// startedLog is the log after `git bisect start HEAD <good> --` with HEAD
// at sha('8').
func startedLog(good byte) []string {
	return []string{
		"git bisect start 'HEAD' '" + sha(good) + "' '--'",
		"# status: waiting for both good and bad commits",
		mark("bad", '8'),
		"# status: waiting for good commit(s), bad commit known",
		mark("good", good),
	}
}

// ── Bisect ──────────────────────────────────────────────────────────────────

func TestBisectNotStarted(t *testing.T) {
	fr := newFakeRunner()
	svc := newTestService(t, fr)

	st := svc.GetBisectState(context.Background())
	require.True(t, st.IsSuccess())
	assert.False(t, st.Unwrap().IsActive)
	assert.False(t, fr.called("bisect log"), "no marker means no git call")
}

func TestBisectRefsWithoutStartAreInconsistent(t *testing.T) {
	fr := newFakeRunner()
	svc := newTestService(t, fr)
	writeMarker(t, svc, "refs/bisect/bad", sha('9')+"\n")

	f := svc.GetBisectState(context.Background()).Failure()
	require.NotNil(t, f)
	assert.Equal(t, result.KindStateInconsistent, f.Kind)
}

func TestBisectEmptyStartIsInconsistent(t *testing.T) {
	fr := newFakeRunner()
	svc := newTestService(t, fr)
	writeMarker(t, svc, "BISECT_START", "\n")

	f := svc.GetBisectState(context.Background()).Failure()
	require.NotNil(t, f)
	assert.Equal(t, result.KindStateInconsistent, f.Kind)
}

func TestBisectStepsDecreaseAfterMark(t *testing.T) {
	fr := newFakeRunner()
	svc := newTestService(t, fr)
	ctx := context.Background()

	fr.onDo("bisect start HEAD "+sha('0')+" --", "", func() {
		writeMarker(t, svc, "BISECT_START", "main\n")
	})
	fr.on("bisect log", bisectLog(startedLog('0')...))
	fr.on("bisect log", bisectLog(append(startedLog('0'),
		mark("good", '4'),
		"git bisect good "+sha('4'),
	)...))
	fr.on("rev-parse HEAD", sha('4')+"\n")
	fr.on("rev-parse HEAD", sha('6')+"\n")
	fr.on("rev-list --count "+sha('8')+" --not "+sha('0'), "8\n")
	fr.on("rev-list --count "+sha('8')+" --not "+sha('0')+" "+sha('4'), "4\n")
	fr.on("bisect good", "")

	started := svc.StartBisect(ctx, sha('0'), "")
	require.True(t, started.IsSuccess(), "%v", started.Failure())
	st := started.Unwrap()
	assert.True(t, st.IsActive)
	assert.False(t, st.IsCompleted)
	assert.Equal(t, "main", st.StartedFrom)
	assert.Equal(t, sha('4'), st.CurrentCommit)
	assert.Equal(t, []CommitID{sha('8')}, st.BadCommits)
	assert.Equal(t, []CommitID{sha('0')}, st.GoodCommits)
	require.NotNil(t, st.StepsRemaining)
	assert.Equal(t, 3, *st.StepsRemaining)

	marked := svc.MarkBisectGood(ctx)
	require.True(t, marked.IsSuccess(), "%v", marked.Failure())
	st = marked.Unwrap()
	require.NotNil(t, st.StepsRemaining)
	assert.Equal(t, 2, *st.StepsRemaining)
	assert.Equal(t, []CommitID{sha('0'), sha('4')}, st.GoodCommits)
	assert.Equal(t, sha('6'), st.CurrentCommit)
}

func TestBisectCompleted(t *testing.T) {
	fr := newFakeRunner()
	svc := newTestService(t, fr)
	writeMarker(t, svc, "BISECT_START", "main\n")
	fr.on("bisect log", bisectLog(append(startedLog('0'),
		mark("bad", '7'),
		"git bisect bad "+sha('7'),
		"# first bad commit: ["+sha('7')+"] culprit",
	)...))
	fr.on("rev-parse HEAD", sha('7')+"\n")

	st := svc.GetBisectState(context.Background()).Unwrap()
	assert.True(t, st.IsCompleted)
	assert.Equal(t, sha('7'), st.FoundCommit)
	require.NotNil(t, st.StepsRemaining)
	assert.Zero(t, *st.StepsRemaining)
}

func TestBisectCorruptLogIsInconsistent(t *testing.T) {
	fr := newFakeRunner()
	svc := newTestService(t, fr)
	writeMarker(t, svc, "BISECT_START", "main\n")
	fr.on("bisect log", mark("bad", '8')+"\n%%% corrupted\n")

	f := svc.GetBisectState(context.Background()).Failure()
	require.NotNil(t, f)
	assert.Equal(t, result.KindStateInconsistent, f.Kind)
	assert.Equal(t, "%%% corrupted", f.Detail)
}

func TestBisectCustomTerms(t *testing.T) {
	fr := newFakeRunner()
	svc := newTestService(t, fr)
	writeMarker(t, svc, "BISECT_START", "main\n")
	writeMarker(t, svc, "BISECT_TERMS", "broken\nfixed\n")
	fr.on("bisect log", bisectLog(
		mark("broken", '8'),
		mark("fixed", '0'),
		"git bisect start '--term-new=broken' '--term-old=fixed' 'HEAD' '"+sha('0')+"' '--'",
	))
	fr.on("rev-parse HEAD", sha('4')+"\n")
	fr.on("rev-list --count "+sha('8')+" --not "+sha('0'), "8\n")
	fr.on("bisect fixed", "")

	st := svc.MarkBisectGood(context.Background())
	require.True(t, st.IsSuccess(), "%v", st.Failure())
	assert.Equal(t, BisectTerms{Bad: "broken", Good: "fixed"}, st.Unwrap().Terms)
	assert.True(t, fr.called("bisect fixed"))
}

func TestBisectResetReturnsNotStarted(t *testing.T) {
	fr := newFakeRunner()
	svc := newTestService(t, fr)
	writeMarker(t, svc, "BISECT_START", "main\n")
	fr.onDo("bisect reset", "", func() {
		require.NoError(t, os.Remove(filepath.Join(svc.GitDir(), "BISECT_START")))
	})

	st := svc.ResetBisect(context.Background())
	require.True(t, st.IsSuccess())
	assert.False(t, st.Unwrap().IsActive)
}

// ── Rebase ──────────────────────────────────────────────────────────────────

func writeRebaseMerge(t *testing.T, svc *CLIService, msgnum, end string) {
	t.Helper()
	writeMarker(t, svc, "rebase-merge/msgnum", msgnum+"\n")
	writeMarker(t, svc, "rebase-merge/end", end+"\n")
	writeMarker(t, svc, "rebase-merge/onto", sha('0')+"\n")
	writeMarker(t, svc, "rebase-merge/head-name", "refs/heads/feature\n")
	writeMarker(t, svc, "REBASE_HEAD", sha('3')+"\n")
}

func ontoKey() string {
	return "for-each-ref --points-at=" + sha('0') + " --format=%(refname:short) refs/heads refs/remotes"
}

func TestRebaseNotStarted(t *testing.T) {
	fr := newFakeRunner()
	svc := newTestService(t, fr)
	st := svc.GetRebaseState(context.Background())
	require.True(t, st.IsSuccess())
	assert.Equal(t, RebaseState{}, st.Unwrap())
}

func TestRebaseStateWithConflicts(t *testing.T) {
	fr := newFakeRunner()
	svc := newTestService(t, fr)
	writeRebaseMerge(t, svc, "2", "5")
	fr.on(ontoKey(), "main\norigin/main\n")
	fr.on(statusKey, "UU a.txt\x00M  b.txt\x00")

	st := svc.GetRebaseState(context.Background())
	require.True(t, st.IsSuccess(), "%v", st.Failure())
	got := st.Unwrap()
	assert.True(t, got.IsActive)
	assert.True(t, got.HasConflicts)
	assert.Equal(t, "main", got.OntoBranch)
	assert.Equal(t, "feature", got.Branch)
	assert.Equal(t, sha('3'), got.CurrentCommit)
	require.NotNil(t, got.Progress)
	assert.InDelta(t, 0.4, *got.Progress, 1e-9)
	assert.Equal(t, "2/5", got.ProgressText)
}

func TestRebaseOntoFallsBackToHash(t *testing.T) {
	fr := newFakeRunner()
	svc := newTestService(t, fr)
	writeRebaseMerge(t, svc, "1", "1")
	fr.on(ontoKey(), "")
	fr.on(statusKey, "")

	got := svc.GetRebaseState(context.Background()).Unwrap()
	assert.Equal(t, sha('0'), got.OntoBranch)
	assert.False(t, got.HasConflicts)
}

func TestRebaseInconsistentMarkers(t *testing.T) {
	t.Run("both backends", func(t *testing.T) {
		fr := newFakeRunner()
		svc := newTestService(t, fr)
		writeRebaseMerge(t, svc, "1", "2")
		writeMarker(t, svc, "rebase-apply/next", "1\n")
		f := svc.GetRebaseState(context.Background()).Failure()
		require.NotNil(t, f)
		assert.Equal(t, result.KindStateInconsistent, f.Kind)
	})
	t.Run("zero total", func(t *testing.T) {
		fr := newFakeRunner()
		svc := newTestService(t, fr)
		writeRebaseMerge(t, svc, "1", "0")
		f := svc.GetRebaseState(context.Background()).Failure()
		require.NotNil(t, f)
		assert.Equal(t, result.KindStateInconsistent, f.Kind)
	})
	t.Run("garbage onto", func(t *testing.T) {
		fr := newFakeRunner()
		svc := newTestService(t, fr)
		writeRebaseMerge(t, svc, "1", "2")
		writeMarker(t, svc, "rebase-merge/onto", "not-a-hash\n")
		f := svc.GetRebaseState(context.Background()).Failure()
		require.NotNil(t, f)
		assert.Equal(t, "not-a-hash", f.Detail)
	})
}

func TestRebaseApplyBackend(t *testing.T) {
	fr := newFakeRunner()
	svc := newTestService(t, fr)
	writeMarker(t, svc, "rebase-apply/next", "3\n")
	writeMarker(t, svc, "rebase-apply/last", "4\n")
	writeMarker(t, svc, "rebase-apply/onto", sha('0')+"\n")
	writeMarker(t, svc, "rebase-apply/head-name", "detached HEAD\n")
	writeMarker(t, svc, "rebase-apply/original-commit", sha('5')+"\n")
	fr.on(ontoKey(), "main\n")
	fr.on(statusKey, "")

	got := svc.GetRebaseState(context.Background()).Unwrap()
	assert.Equal(t, "3/4", got.ProgressText)
	assert.Empty(t, got.Branch)
	assert.Equal(t, sha('5'), got.CurrentCommit)
}

func TestRebaseBranchStopsOnConflict(t *testing.T) {
	fr := newFakeRunner()
	svc := newTestService(t, fr)
	fr.onFailDo("-c core.editor=true rebase main", 1, "CONFLICT (content): Merge conflict in a.txt\n", func() {
		writeRebaseMerge(t, svc, "1", "3")
	})
	fr.on(ontoKey(), "main\n")
	fr.on(statusKey, "UU a.txt\x00")

	st := svc.RebaseBranch(context.Background(), "main")
	require.True(t, st.IsSuccess(), "%v", st.Failure())
	assert.True(t, st.Unwrap().HasConflicts)
}

func TestRebaseBranchOtherErrorsFail(t *testing.T) {
	fr := newFakeRunner()
	svc := newTestService(t, fr)
	fr.onFail("-c core.editor=true rebase nope", 128, "fatal: invalid upstream 'nope'\n")

	f := svc.RebaseBranch(context.Background(), "nope").Failure()
	require.NotNil(t, f)
	assert.Contains(t, f.Message, "invalid upstream")
}

func TestContinueRebaseSurfacesGitRefusal(t *testing.T) {
	fr := newFakeRunner()
	svc := newTestService(t, fr)
	writeRebaseMerge(t, svc, "2", "5")
	fr.on(ontoKey(), "main\n")
	fr.on(statusKey, "UU a.txt\x00")
	stderr := "error: you must edit all merge conflicts and then\nmark them as resolved using git add\n"
	fr.onFail("-c core.editor=true rebase --continue", 1, stderr)

	f := svc.ContinueRebase(context.Background()).Failure()
	require.NotNil(t, f, "continuing with unresolved conflicts is git's call and it said no")
	assert.Equal(t, result.KindCommandFailure, f.Kind)
	assert.Contains(t, f.Message, "you must edit all merge conflicts")
}

func TestContinueRebaseAdvancesToNextConflict(t *testing.T) {
	fr := newFakeRunner()
	svc := newTestService(t, fr)
	writeRebaseMerge(t, svc, "2", "5")
	fr.on(ontoKey(), "main\n")
	fr.on(statusKey, "")
	fr.on(statusKey, "UU b.txt\x00")
	fr.onFailDo("-c core.editor=true rebase --continue", 1, "CONFLICT (content): Merge conflict in b.txt\n", func() {
		writeRebaseMerge(t, svc, "3", "5")
		writeMarker(t, svc, "REBASE_HEAD", sha('4')+"\n")
	})

	st := svc.ContinueRebase(context.Background())
	require.True(t, st.IsSuccess(), "%v", st.Failure())
	assert.Equal(t, "3/5", st.Unwrap().ProgressText)
	assert.Equal(t, sha('4'), st.Unwrap().CurrentCommit)
}

func TestAbortRebase(t *testing.T) {
	fr := newFakeRunner()
	svc := newTestService(t, fr)
	writeRebaseMerge(t, svc, "2", "5")
	fr.onDo("rebase --abort", "", func() {
		require.NoError(t, os.RemoveAll(filepath.Join(svc.GitDir(), "rebase-merge")))
		require.NoError(t, os.Remove(filepath.Join(svc.GitDir(), "REBASE_HEAD")))
	})

	st := svc.AbortRebase(context.Background())
	require.True(t, st.IsSuccess())
	assert.False(t, st.Unwrap().IsActive)
}

// ── Merge ───────────────────────────────────────────────────────────────────

func TestMergeClean(t *testing.T) {
	fr := newFakeRunner()
	svc := newTestService(t, fr)
	st := svc.GetMergeState(context.Background())
	require.True(t, st.IsSuccess())
	assert.Equal(t, MergeState{}, st.Unwrap())
	assert.False(t, fr.called(statusKey), "conflicts are only counted during a merge")
}

func TestMergeConflictCountIsRecomputed(t *testing.T) {
	fr := newFakeRunner()
	svc := newTestService(t, fr)
	writeMarker(t, svc, "MERGE_HEAD", sha('a')+"\n")
	fr.on(statusKey, "UU a.txt\x00AA b.txt\x00")
	fr.on(statusKey, "M  a.txt\x00AA b.txt\x00")
	ctx := context.Background()

	first := svc.GetMergeState(ctx).Unwrap()
	assert.Equal(t, MergeState{InProgress: true, ConflictCount: 2, MergeHeads: []CommitID{sha('a')}}, first)
	second := svc.GetMergeState(ctx).Unwrap()
	assert.Equal(t, 1, second.ConflictCount)
}

func TestMergeCorruptHeadIsInconsistent(t *testing.T) {
	fr := newFakeRunner()
	svc := newTestService(t, fr)
	writeMarker(t, svc, "MERGE_HEAD", "garbage\n")

	f := svc.GetMergeState(context.Background()).Failure()
	require.NotNil(t, f)
	assert.Equal(t, result.KindStateInconsistent, f.Kind)
}

func TestMergeBranchConflictIsSuccess(t *testing.T) {
	fr := newFakeRunner()
	svc := newTestService(t, fr)
	fr.onFailDo("merge --no-edit dev", 1, "CONFLICT (content): Merge conflict in a.txt\n", func() {
		writeMarker(t, svc, "MERGE_HEAD", sha('d')+"\n")
	})
	fr.on(statusKey, "UU a.txt\x00")

	st := svc.MergeBranch(context.Background(), "dev")
	require.True(t, st.IsSuccess(), "%v", st.Failure())
	assert.Equal(t, 1, st.Unwrap().ConflictCount)
}

func TestMergeBranchFailureKeepsStderr(t *testing.T) {
	fr := newFakeRunner()
	svc := newTestService(t, fr)
	fr.onFail("merge --no-edit nope", 1, "merge: nope - not something we can merge\n")

	f := svc.MergeBranch(context.Background(), "nope").Failure()
	require.NotNil(t, f)
	assert.Equal(t, "merge: nope - not something we can merge", f.Message)
}

func TestMergeIntoRemoteBranch(t *testing.T) {
	t.Run("runs every step in order", func(t *testing.T) {
		fr := newFakeRunner()
		svc := newTestService(t, fr)
		fr.on("fetch --prune origin", "")
		fr.on("for-each-ref --format=%(refname) refs/heads/release", "refs/heads/release/old\n")
		fr.on("switch -c release --track origin/release", "")
		fr.on("merge --no-edit feature", "")
		fr.on("push origin release", "")

		st := svc.MergeIntoRemoteBranch(context.Background(), RemoteMergeRequest{
			Remote: "origin", Target: "release", Source: "feature", Push: true,
		})
		require.True(t, st.IsSuccess(), "%v", st.Failure())
		assert.Equal(t, []string{
			"rev-parse --show-toplevel --absolute-git-dir",
			"fetch --prune origin",
			"for-each-ref --format=%(refname) refs/heads/release",
			"switch -c release --track origin/release",
			"merge --no-edit feature",
			"push origin release",
		}, fr.history())
	})

	t.Run("failure stops the sequence", func(t *testing.T) {
		fr := newFakeRunner()
		svc := newTestService(t, fr)
		fr.onFail("fetch --prune origin", 128, "fatal: could not read from remote repository\n")

		f := svc.MergeIntoRemoteBranch(context.Background(), RemoteMergeRequest{
			Remote: "origin", Target: "release", Source: "feature", Push: true,
		}).Failure()
		require.NotNil(t, f)
		assert.Contains(t, f.Message, "could not read from remote")
		assert.Len(t, fr.history(), 2)
	})

	t.Run("conflicts skip the push", func(t *testing.T) {
		fr := newFakeRunner()
		svc := newTestService(t, fr)
		fr.on("fetch --prune origin", "")
		fr.on("for-each-ref --format=%(refname) refs/heads/release", "refs/heads/release\n")
		fr.on("switch release", "")
		fr.onFailDo("merge --no-edit feature", 1, "CONFLICT\n", func() {
			writeMarker(t, svc, "MERGE_HEAD", sha('f')+"\n")
		})
		fr.on(statusKey, "UU x\x00")

		st := svc.MergeIntoRemoteBranch(context.Background(), RemoteMergeRequest{
			Remote: "origin", Target: "release", Source: "feature", Push: true,
		})
		require.True(t, st.IsSuccess(), "%v", st.Failure())
		assert.True(t, st.Unwrap().InProgress)
		assert.False(t, fr.called("push origin release"))
	})
}

// ── Idempotence ─────────────────────────────────────────────────────────────

func TestStateQueriesAreIdempotent(t *testing.T) {
	fr := newFakeRunner()
	svc := newTestService(t, fr)
	ctx := context.Background()
	writeMarker(t, svc, "BISECT_START", "main\n")
	writeRebaseMerge(t, svc, "2", "5")
	writeMarker(t, svc, "MERGE_HEAD", sha('a')+"\n")
	fr.on("bisect log", bisectLog(startedLog('0')...))
	fr.on("rev-parse HEAD", sha('4')+"\n")
	fr.on("rev-list --count "+sha('8')+" --not "+sha('0'), "8\n")
	fr.on(ontoKey(), "main\n")
	fr.on(statusKey, "UU a.txt\x00")

	assert.Equal(t, svc.GetBisectState(ctx).Unwrap(), svc.GetBisectState(ctx).Unwrap())
	assert.Equal(t, svc.GetRebaseState(ctx).Unwrap(), svc.GetRebaseState(ctx).Unwrap())
	assert.Equal(t, svc.GetMergeState(ctx).Unwrap(), svc.GetMergeState(ctx).Unwrap())
}
