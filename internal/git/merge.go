package git

import (
	"context"
	"strings"

	"github.com/Akashdeep-Patra/gitstate/internal/result"
	"go.uber.org/zap"
)

// MergeState is a snapshot of an in-progress merge. ConflictCount is only
// ever non-zero while InProgress is set.
type MergeState struct {
	InProgress    bool
	ConflictCount int
	// MergeHeads are the commits being merged in (several for octopus).
	MergeHeads []CommitID
}

// GetMergeState reads MERGE_HEAD and recounts unresolved paths.
func (s *CLIService) GetMergeState(ctx context.Context) result.Result[MergeState] {
	content, ok, err := s.readMarker("MERGE_HEAD")
	if err != nil {
		return result.Fail[MergeState](stateFailure("merge", "reading MERGE_HEAD: %v", err).WithCause(err))
	}
	if !ok {
		return result.Success(MergeState{})
	}
	var heads []CommitID
	for _, line := range splitLines(content) {
		h := strings.TrimSpace(line)
		if !isHash(h) {
			return result.Fail[MergeState](stateFailure("merge", "MERGE_HEAD holds %q", line).WithDetail(content))
		}
		heads = append(heads, h)
	}
	if len(heads) == 0 {
		return result.Fail[MergeState](stateFailure("merge", "MERGE_HEAD is empty"))
	}
	return result.Map(s.conflicts(ctx), func(n int) MergeState {
		return MergeState{InProgress: true, ConflictCount: n, MergeHeads: heads}
	})
}

// MergeBranch merges branch into the current branch. Stopping on
// conflicts is a success whose state carries the conflict count.
func (s *CLIService) MergeBranch(ctx context.Context, branch string) result.Result[MergeState] {
	run := s.write(ctx, "merge", "--no-edit", branch)
	if run.IsSuccess() {
		return s.GetMergeState(ctx)
	}
	f := run.Failure()
	if f.Kind != result.KindCommandFailure {
		return result.Fail[MergeState](f)
	}
	st, err := s.GetMergeState(ctx).Get()
	if err != nil || !st.InProgress || st.ConflictCount == 0 {
		return result.Fail[MergeState](f)
	}
	s.log.Info("merge stopped on conflicts", zap.String("branch", branch), zap.Int("conflicts", st.ConflictCount))
	return result.Success(st)
}

// AbortMerge abandons the merge and restores the pre-merge state.
func (s *CLIService) AbortMerge(ctx context.Context) result.Result[MergeState] {
	return result.FlatMap(s.write(ctx, "merge", "--abort"), func(string) result.Result[MergeState] {
		return s.GetMergeState(ctx)
	})
}

// CommitMerge concludes a merge whose conflicts have been resolved and
// staged, keeping git's prepared message.
func (s *CLIService) CommitMerge(ctx context.Context) result.Result[MergeState] {
	return result.FlatMap(s.write(ctx, "commit", "--no-edit"), func(string) result.Result[MergeState] {
		return s.GetMergeState(ctx)
	})
}

// RemoteMergeRequest describes merging Source into a branch that lives
// on Remote.
type RemoteMergeRequest struct {
	Remote string
	// Target is the remote branch name without the remote prefix.
	Target string
	Source string
	Push   bool
}

// MergeIntoRemoteBranch fetches, checks out a local tracking branch for
// Target, merges Source and optionally pushes. Steps run strictly in
// order and the first failure stops the sequence. A merge that stops on
// conflicts is returned without pushing.
func (s *CLIService) MergeIntoRemoteBranch(ctx context.Context, req RemoteMergeRequest) result.Result[MergeState] {
	log := s.log.With(zap.String("remote", req.Remote), zap.String("target", req.Target), zap.String("source", req.Source))

	fetched := s.Fetch(ctx, req.Remote, nil)
	switched := result.FlatMap(fetched, func(Unit) result.Result[Unit] {
		return result.FlatMap(s.hasLocalBranch(ctx, req.Target), func(exists bool) result.Result[Unit] {
			if exists {
				return s.SwitchBranch(ctx, req.Target)
			}
			log.Debug("creating tracking branch")
			return s.exec(ctx, "switch", "-c", req.Target, "--track", req.Remote+"/"+req.Target)
		})
	})
	merged := result.FlatMap(switched, func(Unit) result.Result[MergeState] {
		return s.MergeBranch(ctx, req.Source)
	})
	return result.FlatMap(merged, func(st MergeState) result.Result[MergeState] {
		if st.InProgress || !req.Push {
			return result.Success(st)
		}
		return result.Map(s.Push(ctx, req.Remote, req.Target, false), func(Unit) MergeState { return st })
	})
}

func (s *CLIService) hasLocalBranch(ctx context.Context, name string) result.Result[bool] {
	ref := "refs/heads/" + name
	// The pattern also matches refs below it (refs/heads/name/x).
	return result.Map(s.read(ctx, "for-each-ref", "--format=%(refname)", ref), func(out string) bool {
		for _, line := range splitLines(out) {
			if strings.TrimSpace(line) == ref {
				return true
			}
		}
		return false
	})
}
