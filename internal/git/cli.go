package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Akashdeep-Patra/gitstate/internal/result"
	"github.com/Akashdeep-Patra/gitstate/internal/runner"
	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// DefaultTimeout is the maximum duration any single git command may run
// when Options.Timeout is unset. Prevents hangs on huge repos or network
// operations.
const DefaultTimeout = 30 * time.Second

// Options configure a CLIService. The zero value is usable.
type Options struct {
	// GitPath overrides PATH lookup of the git executable.
	GitPath string
	// Timeout bounds each git invocation.
	Timeout time.Duration
	// StrictParsing turns the first malformed output line into a
	// parse-failure instead of skipping it with a warning.
	StrictParsing bool
	Logger        *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.GitPath == "" {
		o.GitPath = "git"
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// CLIService implements Service by shelling out to the git CLI.
//   - GIT_OPTIONAL_LOCKS=0 on all read commands (no lock contention)
//   - LC_ALL=C so stderr and bisect markers are stable for parsing
//   - per-invocation timeouts prevent hangs
//
// It holds no mutable state: every query runs git afresh.
type CLIService struct {
	root   string // Absolute path to the repo root.
	gitDir string // Absolute path to the git directory.
	runner runner.Runner
	opts   Options
	log    *zap.Logger
}

// Compile-time check that CLIService implements Service.
var _ Service = (*CLIService)(nil)

// NewCLIService opens the Git repository containing path.
func NewCLIService(ctx context.Context, path string, r runner.Runner, opts Options) (*CLIService, error) {
	opts = opts.withDefaults()
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, cerr.Wrap(err, "resolving path")
	}
	out := r.Run(ctx, runner.Invocation{
		Executable: opts.GitPath,
		Args:       []string{"rev-parse", "--show-toplevel", "--absolute-git-dir"},
		Dir:        abs,
		Timeout:    opts.Timeout,
		Env:        baseEnv,
	})
	if f := out.Failure(); f != nil {
		if f.Kind == result.KindCommandFailure && strings.Contains(f.Detail, "not a git repository") {
			return nil, cerr.WithSecondaryError(cerr.Wrapf(ErrNotARepo, "%s", abs), f)
		}
		return nil, f
	}
	lines := splitLines(out.Unwrap().Stdout)
	if len(lines) != 2 {
		return nil, parseFailure(newParseError("rev-parse", 0, out.Unwrap().Stdout, "expected toplevel and git dir"))
	}
	return &CLIService{
		root:   strings.TrimSpace(lines[0]),
		gitDir: strings.TrimSpace(lines[1]),
		runner: r,
		opts:   opts,
		log:    opts.Logger.Named("git").With(zap.String("repo", strings.TrimSpace(lines[0]))),
	}, nil
}

// Clone clones url into dest and opens the result. Progress lines from
// git's stderr are streamed to progress when it is non-nil.
func Clone(ctx context.Context, r runner.Runner, opts Options, url, dest string, progress func(string)) result.Result[*CLIService] {
	opts = opts.withDefaults()
	abs, err := filepath.Abs(dest)
	if err != nil {
		return result.FromError[*CLIService](cerr.Wrap(err, "resolving clone destination"))
	}
	out := r.Run(ctx, runner.Invocation{
		Executable: opts.GitPath,
		Args:       []string{"clone", "--progress", "--", url, abs},
		Dir:        filepath.Dir(abs),
		Env:        baseEnv,
		OnStderr:   progress,
	})
	return result.FlatMap(out, func(runner.Outcome) result.Result[*CLIService] {
		svc, err := NewCLIService(ctx, abs, r, opts)
		if err != nil {
			return result.FromError[*CLIService](err)
		}
		return result.Success(svc)
	})
}

// RepoRoot returns the repository root path.
func (s *CLIService) RepoRoot() string { return s.root }

// GitDir returns the path to the git directory.
func (s *CLIService) GitDir() string { return s.gitDir }

// ── helpers ─────────────────────────────────────────────────────────────────

// baseEnv is set on every invocation.
var baseEnv = []string{"LC_ALL=C", "GIT_TERMINAL_PROMPT=0"}

// readEnv is the environment set on all read-only git commands.
// GIT_OPTIONAL_LOCKS=0 prevents git from acquiring optional locks,
// which is critical in large repos where lock contention stalls readers.
var readEnv = append([]string{"GIT_OPTIONAL_LOCKS=0"}, baseEnv...)

// invoke runs one git command at the repo root.
func (s *CLIService) invoke(ctx context.Context, env []string, onStderr func(string), args ...string) result.Result[runner.Outcome] {
	return s.runner.Run(ctx, runner.Invocation{
		Executable: s.opts.GitPath,
		Args:       args,
		Dir:        s.root,
		Timeout:    s.opts.Timeout,
		Env:        env,
		OnStderr:   onStderr,
	})
}

// read executes a read-only git command and returns its stdout.
func (s *CLIService) read(ctx context.Context, args ...string) result.Result[string] {
	return result.Map(s.invoke(ctx, readEnv, nil, args...), stdout)
}

// write executes a mutating git command and returns its stdout.
func (s *CLIService) write(ctx context.Context, args ...string) result.Result[string] {
	return result.Map(s.invoke(ctx, baseEnv, nil, args...), stdout)
}

// exec executes a mutating git command whose output is not needed.
func (s *CLIService) exec(ctx context.Context, args ...string) result.Result[Unit] {
	return result.Discard(s.write(ctx, args...))
}

func stdout(o runner.Outcome) string { return o.Stdout }

// tolerate applies the parse policy: malformed lines are logged and
// skipped, or the first one fails the call when StrictParsing is set.
func (s *CLIService) tolerate(errs []*ParseError) *result.Failure {
	if len(errs) == 0 {
		return nil
	}
	if s.opts.StrictParsing {
		return parseFailure(errs[0])
	}
	for _, e := range errs {
		s.log.Warn("skipping malformed git output",
			zap.String("parser", e.Parser),
			zap.Int("line", e.Line),
			zap.String("reason", e.Reason),
			zap.String("fragment", e.Fragment))
	}
	return nil
}

// collect wraps a list parser's output, normalising nil to empty.
func collect[T any](s *CLIService, items []T, errs []*ParseError) result.Result[[]T] {
	if f := s.tolerate(errs); f != nil {
		return result.Fail[[]T](f)
	}
	if items == nil {
		items = []T{}
	}
	return result.Success(items)
}

// readMarker reads a file under the git directory. A missing file is
// reported as ok=false, not as an error.
func (s *CLIService) readMarker(name string) (content string, ok bool, err error) {
	b, err := os.ReadFile(filepath.Join(s.gitDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(b), true, nil
}

func (s *CLIService) markerDir(name string) bool {
	info, err := os.Stat(filepath.Join(s.gitDir, name))
	return err == nil && info.IsDir()
}

// ── Repository info ─────────────────────────────────────────────────────────

// GetCurrentBranch returns the checked-out branch, or "HEAD" when detached.
func (s *CLIService) GetCurrentBranch(ctx context.Context) result.Result[BranchID] {
	return result.Map(s.read(ctx, "branch", "--show-current"), func(out string) BranchID {
		if name := strings.TrimSpace(out); name != "" {
			return name
		}
		return "HEAD"
	})
}

// IsWorkingTreeClean reports whether there are no tracked changes.
// Untracked files do not make the tree dirty.
func (s *CLIService) IsWorkingTreeClean(ctx context.Context) result.Result[bool] {
	return result.Map(s.read(ctx, "status", "--porcelain", "--untracked-files=no"), func(out string) bool {
		return strings.TrimSpace(out) == ""
	})
}

// GetStatus returns the current working tree status.
func (s *CLIService) GetStatus(ctx context.Context) result.Result[*StatusResult] {
	// --porcelain=v1 -z: machine-parseable, NUL-delimited.
	// -unormal only scans one level deep for untracked files in large repos.
	return result.FlatMap(s.read(ctx, "status", "--porcelain=v1", "-z", "--untracked-files=normal"),
		func(out string) result.Result[*StatusResult] {
			st, errs := ParseStatusOutput(out)
			if f := s.tolerate(errs); f != nil {
				return result.Fail[*StatusResult](f)
			}
			return result.Success(st)
		})
}

// ── Listings ────────────────────────────────────────────────────────────────

// GetLocalBranches returns local branches with tracking information.
func (s *CLIService) GetLocalBranches(ctx context.Context) result.Result[[]Branch] {
	return result.FlatMap(s.read(ctx, "branch", "-vv", "--no-color", "--no-abbrev"),
		func(out string) result.Result[[]Branch] {
			items, errs := ParseBranchVV(out)
			return collect(s, items, errs)
		})
}

// GetRemoteBranches returns remote-tracking branches.
func (s *CLIService) GetRemoteBranches(ctx context.Context) result.Result[[]Branch] {
	// --sort=-committerdate: most recently active branches first.
	return result.FlatMap(s.read(ctx, "branch", "-r", "--format="+branchFormat, "--sort=-committerdate"),
		func(out string) result.Result[[]Branch] {
			items, errs := ParseBranchOutput(out, true)
			return collect(s, items, errs)
		})
}

// GetTags returns all tags, newest first.
func (s *CLIService) GetTags(ctx context.Context) result.Result[[]Tag] {
	return result.FlatMap(s.read(ctx, "tag", "--list", "--sort=-creatordate", "--format="+tagFormat),
		func(out string) result.Result[[]Tag] {
			items, errs := ParseTagOutput(out)
			return collect(s, items, errs)
		})
}

// GetReflog returns up to limit reflog entries for ref ("" means HEAD).
func (s *CLIService) GetReflog(ctx context.Context, ref string, limit int) result.Result[[]ReflogEntry] {
	if ref == "" {
		ref = "HEAD"
	}
	args := []string{"reflog", "show", "--date=unix", reflogFormat}
	if limit > 0 {
		args = append(args, fmt.Sprintf("--max-count=%d", limit))
	}
	args = append(args, ref, "--")
	return result.FlatMap(s.read(ctx, args...), func(out string) result.Result[[]ReflogEntry] {
		items, errs := ParseReflogOutput(out)
		return collect(s, items, errs)
	})
}

// GetBlame returns per-line attribution for path at HEAD.
func (s *CLIService) GetBlame(ctx context.Context, path string) result.Result[[]BlameLine] {
	return result.FlatMap(s.read(ctx, "blame", "-l", "-t", "--", path), func(out string) result.Result[[]BlameLine] {
		items, errs := ParseBlameOutput(out)
		return collect(s, items, errs)
	})
}

// GetDiff returns the working tree (or staged) diff, optionally for one path.
func (s *CLIService) GetDiff(ctx context.Context, staged bool, path string) result.Result[[]FileDiff] {
	args := []string{"diff", "--no-color", "--no-ext-diff"}
	if staged {
		args = append(args, "--cached")
	}
	if path != "" {
		args = append(args, "--", path)
	}
	return result.FlatMap(s.read(ctx, args...), s.parseDiff)
}

// GetCommitDiff returns the patch a commit introduced relative to its
// first parent.
func (s *CLIService) GetCommitDiff(ctx context.Context, hash CommitID) result.Result[[]FileDiff] {
	return result.FlatMap(s.read(ctx, "show", "--format=", "--patch", "--no-color", "--no-ext-diff",
		"--diff-merges=first-parent", hash, "--"), s.parseDiff)
}

func (s *CLIService) parseDiff(out string) result.Result[[]FileDiff] {
	files, err := ParseDiff(out)
	if err != nil {
		return result.Fail[[]FileDiff](parseFailure(err))
	}
	return result.Success(files)
}

// GetLog returns up to limit commits reachable from revs (HEAD when empty).
func (s *CLIService) GetLog(ctx context.Context, limit int, revs ...string) result.Result[[]Commit] {
	args := []string{"log", LogFormatFlag()}
	if limit > 0 {
		args = append(args, fmt.Sprintf("--max-count=%d", limit))
	}
	args = append(args, revs...)
	args = append(args, "--")
	return result.FlatMap(s.read(ctx, args...), func(out string) result.Result[[]Commit] {
		items, errs := ParseLogOutput(out)
		return collect(s, items, errs)
	})
}

// GetStashes returns stash entries.
func (s *CLIService) GetStashes(ctx context.Context) result.Result[[]StashEntry] {
	return result.FlatMap(s.read(ctx, "stash", "list"), func(out string) result.Result[[]StashEntry] {
		items, errs := ParseStashList(out)
		return collect(s, items, errs)
	})
}

// GetRemotes returns all configured remotes.
func (s *CLIService) GetRemotes(ctx context.Context) result.Result[[]Remote] {
	return result.FlatMap(s.read(ctx, "remote", "-v"), func(out string) result.Result[[]Remote] {
		items, errs := ParseRemoteOutput(out)
		return collect(s, items, errs)
	})
}

// ── Staging & commits ───────────────────────────────────────────────────────

// StageFile stages path.
func (s *CLIService) StageFile(ctx context.Context, path string) result.Result[Unit] {
	return s.exec(ctx, "add", "--", path)
}

// UnstageFile removes path from the index, keeping working tree changes.
func (s *CLIService) UnstageFile(ctx context.Context, path string) result.Result[Unit] {
	return s.exec(ctx, "restore", "--staged", "--", path)
}

// StageAll stages all changes.
func (s *CLIService) StageAll(ctx context.Context) result.Result[Unit] {
	return s.exec(ctx, "add", "-A")
}

// DiscardFile discards working tree changes for path.
func (s *CLIService) DiscardFile(ctx context.Context, path string) result.Result[Unit] {
	return s.exec(ctx, "restore", "--worktree", "--", path)
}

// Commit creates a new commit with the given message.
func (s *CLIService) Commit(ctx context.Context, message string) result.Result[Unit] {
	return s.exec(ctx, "commit", "-m", message)
}

// CommitAmend amends the last commit with the given message.
func (s *CLIService) CommitAmend(ctx context.Context, message string) result.Result[Unit] {
	return s.exec(ctx, "commit", "--amend", "-m", message)
}

// ── Branches & tags ─────────────────────────────────────────────────────────

// CreateBranch creates a new branch at HEAD.
func (s *CLIService) CreateBranch(ctx context.Context, name string) result.Result[Unit] {
	return s.exec(ctx, "branch", name)
}

// SwitchBranch switches to the given branch.
func (s *CLIService) SwitchBranch(ctx context.Context, name string) result.Result[Unit] {
	return s.exec(ctx, "switch", name)
}

// DeleteBranch deletes the given branch.
func (s *CLIService) DeleteBranch(ctx context.Context, name string, force bool) result.Result[Unit] {
	flag := "-d"
	if force {
		flag = "-D"
	}
	return s.exec(ctx, "branch", flag, name)
}

// RenameBranch renames a branch.
func (s *CLIService) RenameBranch(ctx context.Context, oldName, newName string) result.Result[Unit] {
	return s.exec(ctx, "branch", "-m", oldName, newName)
}

// CreateTag creates a tag at target (HEAD when empty). A non-empty message
// makes it annotated.
func (s *CLIService) CreateTag(ctx context.Context, name, target, message string) result.Result[Unit] {
	args := []string{"tag"}
	if message != "" {
		args = append(args, "-a", "-m", message)
	}
	args = append(args, name)
	if target != "" {
		args = append(args, target)
	}
	return s.exec(ctx, args...)
}

// DeleteTag deletes a local tag.
func (s *CLIService) DeleteTag(ctx context.Context, name string) result.Result[Unit] {
	return s.exec(ctx, "tag", "-d", name)
}

// ── Remotes & stash ─────────────────────────────────────────────────────────

// Fetch fetches from remote, streaming git's progress lines to progress.
func (s *CLIService) Fetch(ctx context.Context, remote string, progress func(string)) result.Result[Unit] {
	args := []string{"fetch", "--prune"}
	if progress != nil {
		args = append(args, "--progress")
	}
	args = append(args, remote)
	return result.Discard(s.invoke(ctx, baseEnv, progress, args...))
}

// Pull pulls from the given remote and branch.
func (s *CLIService) Pull(ctx context.Context, remote, branch string) result.Result[Unit] {
	return s.exec(ctx, "pull", "--no-edit", remote, branch)
}

// Push pushes branch to remote.
func (s *CLIService) Push(ctx context.Context, remote, branch string, force bool) result.Result[Unit] {
	args := []string{"push", remote, branch}
	if force {
		args = append(args, "--force-with-lease")
	}
	return s.exec(ctx, args...)
}

// StashSave saves a new stash entry.
func (s *CLIService) StashSave(ctx context.Context, message string) result.Result[Unit] {
	args := []string{"stash", "push"}
	if message != "" {
		args = append(args, "-m", message)
	}
	return s.exec(ctx, args...)
}

// StashPop pops the stash at the given index.
func (s *CLIService) StashPop(ctx context.Context, index int) result.Result[Unit] {
	return s.exec(ctx, "stash", "pop", fmt.Sprintf("stash@{%d}", index))
}

// StashDrop drops the stash at the given index.
func (s *CLIService) StashDrop(ctx context.Context, index int) result.Result[Unit] {
	return s.exec(ctx, "stash", "drop", fmt.Sprintf("stash@{%d}", index))
}

// conflicts counts unmerged paths in the working tree.
func (s *CLIService) conflicts(ctx context.Context) result.Result[int] {
	return result.Map(s.GetStatus(ctx), func(st *StatusResult) int { return len(st.Conflicts) })
}
