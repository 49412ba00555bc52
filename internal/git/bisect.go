package git

import (
	"context"
	"math/bits"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Akashdeep-Patra/gitstate/internal/result"
)

// BisectState is a snapshot of a bisect session. It is rebuilt from the
// repository on every query.
type BisectState struct {
	IsActive    bool
	IsCompleted bool
	// CurrentCommit is the commit checked out for testing.
	CurrentCommit  CommitID
	GoodCommits    []CommitID
	BadCommits     []CommitID
	SkippedCommits []CommitID
	// FoundCommit is the first bad commit once the search has converged.
	FoundCommit CommitID
	// StepsRemaining estimates the remaining marks; nil until both a good
	// and a bad commit are known.
	StepsRemaining *int
	// StartedFrom is the branch or commit checked out before the session.
	StartedFrom string
	Terms       BisectTerms
}

// bisectSteps estimates the halvings needed to isolate one commit among n
// candidates: ceil(log2(n)), zero when at most one remains.
func bisectSteps(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// GetBisectState reads BISECT_START / BISECT_TERMS and `git bisect log`.
func (s *CLIService) GetBisectState(ctx context.Context) result.Result[BisectState] {
	start, active, err := s.readMarker("BISECT_START")
	if err != nil {
		return result.Fail[BisectState](stateFailure("bisect", "reading BISECT_START: %v", err).WithCause(err))
	}
	if !active {
		if s.hasBisectRefs() {
			return result.Fail[BisectState](stateFailure("bisect", "refs/bisect exists without BISECT_START"))
		}
		return result.Success(BisectState{Terms: DefaultBisectTerms})
	}
	startedFrom := strings.TrimSpace(start)
	if startedFrom == "" {
		return result.Fail[BisectState](stateFailure("bisect", "BISECT_START is empty"))
	}

	terms, f := s.bisectTerms()
	if f != nil {
		return result.Fail[BisectState](f)
	}

	return result.FlatMap(s.read(ctx, "bisect", "log"), func(out string) result.Result[BisectState] {
		log, pe := ParseBisectLog(out, terms)
		if pe != nil {
			return result.Fail[BisectState](stateFailure("bisect", "%s", pe.Error()).WithDetail(pe.Fragment).WithCause(pe))
		}
		st := BisectState{
			IsActive:       true,
			GoodCommits:    nonNil(log.Good),
			BadCommits:     nonNil(log.Bad),
			SkippedCommits: nonNil(log.Skipped),
			StartedFrom:    startedFrom,
			Terms:          terms,
		}
		return result.FlatMap(s.read(ctx, "rev-parse", "HEAD"), func(head string) result.Result[BisectState] {
			st.CurrentCommit = strings.TrimSpace(head)
			if log.FirstBad != "" {
				return result.Success(completed(st, log.FirstBad))
			}
			if len(log.Bad) == 0 || len(log.Good) == 0 {
				return result.Success(st)
			}
			return result.Map(s.bisectCandidates(ctx, log), func(n int) BisectState {
				if n == 1 {
					return completed(st, log.Bad[len(log.Bad)-1])
				}
				steps := bisectSteps(n)
				st.StepsRemaining = &steps
				return st
			})
		})
	})
}

func completed(st BisectState, found CommitID) BisectState {
	zero := 0
	st.IsCompleted = true
	st.FoundCommit = found
	st.StepsRemaining = &zero
	return st
}

// bisectCandidates counts commits that can still be the culprit: those
// reachable from the latest bad commit but from no good one. Skipped
// commits stay in the count since git may still have to step over them.
func (s *CLIService) bisectCandidates(ctx context.Context, log BisectLog) result.Result[int] {
	args := []string{"rev-list", "--count", log.Bad[len(log.Bad)-1], "--not"}
	args = append(args, log.Good...)
	return result.FlatMap(s.read(ctx, args...), func(out string) result.Result[int] {
		n, err := strconv.Atoi(strings.TrimSpace(out))
		if err != nil || n < 0 {
			return result.Fail[int](parseFailure(newParseError("rev-list --count", 0, out, "expected a commit count")))
		}
		return result.Success(n)
	})
}

func (s *CLIService) bisectTerms() (BisectTerms, *result.Failure) {
	content, ok, err := s.readMarker("BISECT_TERMS")
	if err != nil {
		return BisectTerms{}, stateFailure("bisect", "reading BISECT_TERMS: %v", err).WithCause(err)
	}
	if !ok {
		return DefaultBisectTerms, nil
	}
	terms, pe := ParseBisectTerms(content)
	if pe != nil {
		return BisectTerms{}, stateFailure("bisect", "%s", pe.Error()).WithDetail(pe.Fragment).WithCause(pe)
	}
	return terms, nil
}

func (s *CLIService) hasBisectRefs() bool {
	entries, err := os.ReadDir(filepath.Join(s.gitDir, "refs", "bisect"))
	return err == nil && len(entries) > 0
}

// StartBisect begins a session between good and bad. An empty bad means
// the current HEAD.
func (s *CLIService) StartBisect(ctx context.Context, good, bad CommitID) result.Result[BisectState] {
	if bad == "" {
		bad = "HEAD"
	}
	args := []string{"bisect", "start", bad}
	if good != "" {
		args = append(args, good)
	}
	args = append(args, "--")
	return result.FlatMap(s.write(ctx, args...), func(string) result.Result[BisectState] {
		return s.GetBisectState(ctx)
	})
}

// MarkBisectGood marks the current commit with the session's good term.
func (s *CLIService) MarkBisectGood(ctx context.Context) result.Result[BisectState] {
	return s.markBisect(ctx, func(t BisectTerms) string { return t.Good })
}

// MarkBisectBad marks the current commit with the session's bad term.
func (s *CLIService) MarkBisectBad(ctx context.Context) result.Result[BisectState] {
	return s.markBisect(ctx, func(t BisectTerms) string { return t.Bad })
}

// MarkBisectSkip skips the current commit.
func (s *CLIService) MarkBisectSkip(ctx context.Context) result.Result[BisectState] {
	return s.markBisect(ctx, func(BisectTerms) string { return "skip" })
}

func (s *CLIService) markBisect(ctx context.Context, verdict func(BisectTerms) string) result.Result[BisectState] {
	terms, f := s.bisectTerms()
	if f != nil {
		return result.Fail[BisectState](f)
	}
	return result.FlatMap(s.write(ctx, "bisect", verdict(terms)), func(string) result.Result[BisectState] {
		return s.GetBisectState(ctx)
	})
}

// ResetBisect ends the session and restores the original checkout.
func (s *CLIService) ResetBisect(ctx context.Context) result.Result[BisectState] {
	return result.FlatMap(s.write(ctx, "bisect", "reset"), func(string) result.Result[BisectState] {
		return s.GetBisectState(ctx)
	})
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
