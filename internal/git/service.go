package git

import (
	"context"

	"github.com/Akashdeep-Patra/gitstate/internal/result"
)

// Unit is the success value of operations that produce no data.
type Unit = struct{}

// Service defines the contract for all Git operations.
// Every consumer depends on this interface, never on exec.Command directly.
// Each method returns a result.Result; empty listings are successes with
// empty slices, never failures.
type Service interface {
	// ── Repository info ──────────────────────────────────────────────
	RepoRoot() string
	GitDir() string
	GetCurrentBranch(ctx context.Context) result.Result[BranchID]
	IsWorkingTreeClean(ctx context.Context) result.Result[bool]
	GetStatus(ctx context.Context) result.Result[*StatusResult]

	// ── Listings ─────────────────────────────────────────────────────
	GetLocalBranches(ctx context.Context) result.Result[[]Branch]
	GetRemoteBranches(ctx context.Context) result.Result[[]Branch]
	GetTags(ctx context.Context) result.Result[[]Tag]
	GetReflog(ctx context.Context, ref string, limit int) result.Result[[]ReflogEntry]
	GetBlame(ctx context.Context, path string) result.Result[[]BlameLine]
	GetDiff(ctx context.Context, staged bool, path string) result.Result[[]FileDiff]
	GetCommitDiff(ctx context.Context, hash CommitID) result.Result[[]FileDiff]
	GetLog(ctx context.Context, limit int, revs ...string) result.Result[[]Commit]
	GetStashes(ctx context.Context) result.Result[[]StashEntry]
	GetRemotes(ctx context.Context) result.Result[[]Remote]

	// ── Staging & commits ────────────────────────────────────────────
	StageFile(ctx context.Context, path string) result.Result[Unit]
	UnstageFile(ctx context.Context, path string) result.Result[Unit]
	StageAll(ctx context.Context) result.Result[Unit]
	DiscardFile(ctx context.Context, path string) result.Result[Unit]
	Commit(ctx context.Context, message string) result.Result[Unit]
	CommitAmend(ctx context.Context, message string) result.Result[Unit]

	// ── Branches & tags ──────────────────────────────────────────────
	CreateBranch(ctx context.Context, name string) result.Result[Unit]
	SwitchBranch(ctx context.Context, name string) result.Result[Unit]
	DeleteBranch(ctx context.Context, name string, force bool) result.Result[Unit]
	RenameBranch(ctx context.Context, oldName, newName string) result.Result[Unit]
	CreateTag(ctx context.Context, name, target, message string) result.Result[Unit]
	DeleteTag(ctx context.Context, name string) result.Result[Unit]

	// ── Remotes & stash ──────────────────────────────────────────────
	Fetch(ctx context.Context, remote string, progress func(string)) result.Result[Unit]
	Pull(ctx context.Context, remote, branch string) result.Result[Unit]
	Push(ctx context.Context, remote, branch string, force bool) result.Result[Unit]
	StashSave(ctx context.Context, message string) result.Result[Unit]
	StashPop(ctx context.Context, index int) result.Result[Unit]
	StashDrop(ctx context.Context, index int) result.Result[Unit]

	// ── Bisect ───────────────────────────────────────────────────────
	StartBisect(ctx context.Context, good, bad CommitID) result.Result[BisectState]
	MarkBisectGood(ctx context.Context) result.Result[BisectState]
	MarkBisectBad(ctx context.Context) result.Result[BisectState]
	MarkBisectSkip(ctx context.Context) result.Result[BisectState]
	ResetBisect(ctx context.Context) result.Result[BisectState]
	GetBisectState(ctx context.Context) result.Result[BisectState]

	// ── Rebase ───────────────────────────────────────────────────────
	RebaseBranch(ctx context.Context, onto string) result.Result[RebaseState]
	ContinueRebase(ctx context.Context) result.Result[RebaseState]
	SkipRebase(ctx context.Context) result.Result[RebaseState]
	AbortRebase(ctx context.Context) result.Result[RebaseState]
	GetRebaseState(ctx context.Context) result.Result[RebaseState]

	// ── Merge ────────────────────────────────────────────────────────
	MergeBranch(ctx context.Context, branch string) result.Result[MergeState]
	AbortMerge(ctx context.Context) result.Result[MergeState]
	CommitMerge(ctx context.Context) result.Result[MergeState]
	MergeIntoRemoteBranch(ctx context.Context, req RemoteMergeRequest) result.Result[MergeState]
	GetMergeState(ctx context.Context) result.Result[MergeState]
}
