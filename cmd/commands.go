package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/Akashdeep-Patra/gitstate/internal/git"
	"github.com/Akashdeep-Patra/gitstate/internal/result"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// withRepo opens the repository for the duration of fn.
func withRepo(flags *globalFlags, fn func(ctx context.Context, s *session, out io.Writer, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openRepo(ctx, flags, false)
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(ctx, s, cmd.OutOrStdout(), args)
	}
}

func buildStateCmd(flags *globalFlags) *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show bisect, rebase and merge state",
		Args:  cobra.NoArgs,
		RunE: withRepo(flags, func(ctx context.Context, s *session, out io.Writer, _ []string) error {
			branch, err := s.svc.GetCurrentBranch(ctx).Get()
			if err != nil {
				return err
			}
			clean, err := s.svc.IsWorkingTreeClean(ctx).Get()
			if err != nil {
				return err
			}
			bisect, err := s.svc.GetBisectState(ctx).Get()
			if err != nil {
				return err
			}
			rebase, err := s.svc.GetRebaseState(ctx).Get()
			if err != nil {
				return err
			}
			merge, err := s.svc.GetMergeState(ctx).Get()
			if err != nil {
				return err
			}

			if asYAML {
				return writeYAML(out, newStateReport(branch, clean, bisect, rebase, merge))
			}
			p := newPrinter(out)
			worktree := p.st.Muted.Render("clean")
			if !clean {
				worktree = p.st.Conflict.Render("modified")
			}
			fmt.Fprintln(out, p.st.BranchName.Render(branch)+"  "+worktree)
			fmt.Fprintln(out)
			p.bisect(bisect)
			p.rebase(rebase)
			p.merge(merge)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Output as YAML")
	return cmd
}

// ── Listings ──────────────────────────────────────────────────────────

func buildBranchesCmd(flags *globalFlags) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "branches",
		Short: "List branches with upstream tracking",
		Args:  cobra.NoArgs,
		RunE: withRepo(flags, func(ctx context.Context, s *session, out io.Writer, _ []string) error {
			list := s.svc.GetLocalBranches(ctx)
			if remote {
				list = s.svc.GetRemoteBranches(ctx)
			}
			branches, err := list.Get()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, b := range branches {
				marker := " "
				switch {
				case b.IsCurrent:
					marker = "*"
				case b.IsWorktree:
					marker = "+"
				}
				track := b.Upstream
				switch {
				case b.UpstreamGone:
					track += " (gone)"
				case b.Ahead > 0 || b.Behind > 0:
					track += fmt.Sprintf(" (+%d/-%d)", b.Ahead, b.Behind)
				}
				fmt.Fprintf(tw, "%s %s\t%s\t%s\t%s\n", marker, b.Name, abbrev(b.Hash), track, b.Subject)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().BoolVarP(&remote, "remote", "r", false, "List remote-tracking branches")
	return cmd
}

func buildTagsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List tags, newest first",
		Args:  cobra.NoArgs,
		RunE: withRepo(flags, func(ctx context.Context, s *session, out io.Writer, _ []string) error {
			tags, err := s.svc.GetTags(ctx).Get()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, t := range tags {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Name, abbrev(t.Hash), formatDate(t.Date), t.Subject)
			}
			return tw.Flush()
		}),
	}
}

func buildReflogCmd(flags *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "reflog [ref]",
		Short: "Show the reflog of a ref (default HEAD)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withRepo(flags, func(ctx context.Context, s *session, out io.Writer, args []string) error {
			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			entries, err := s.svc.GetReflog(ctx, ref, limit).Get()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", abbrev(e.Hash), e.Selector, formatDate(e.Date), e.Action, e.Message)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries (0 for all)")
	return cmd
}

func buildBlameCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "blame <path>",
		Short: "Show which commit last touched each block of a file",
		Args:  cobra.ExactArgs(1),
		RunE: withRepo(flags, func(ctx context.Context, s *session, out io.Writer, args []string) error {
			lines, err := s.svc.GetBlame(ctx, args[0]).Get()
			if err != nil {
				return err
			}
			p := newPrinter(out)
			for _, g := range git.GroupBlame(lines) {
				fmt.Fprintf(out, "%s %s %s\n", p.st.CommitHash.Render(abbrev(g.Hash)), g.Author, p.st.Muted.Render(formatDate(g.Date)))
				for _, l := range g.Lines {
					fmt.Fprintf(out, "%6d  %s\n", l.LineNo, l.Content)
				}
			}
			return nil
		}),
	}
}

func buildStatusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show staged, unstaged, untracked and conflicted paths",
		Args:  cobra.NoArgs,
		RunE: withRepo(flags, func(ctx context.Context, s *session, out io.Writer, _ []string) error {
			st, err := s.svc.GetStatus(ctx).Get()
			if err != nil {
				return err
			}
			p := newPrinter(out)
			for _, group := range []struct {
				title string
				files []git.FileStatus
			}{
				{"Conflicts", st.Conflicts},
				{"Staged", st.Staged},
				{"Unstaged", st.Unstaged},
				{"Untracked", st.Untracked},
			} {
				if len(group.files) == 0 {
					continue
				}
				p.heading(group.title)
				for _, f := range group.files {
					code := f.Worktree
					if f.IsStaged {
						code = f.Staging
					}
					path := f.Path
					if f.OrigPath != "" {
						path = f.OrigPath + " -> " + f.Path
					}
					p.row(code.Label(), path)
				}
			}
			if st.TotalCount() == 0 {
				fmt.Fprintln(out, p.st.Muted.Render("nothing to report, working tree clean"))
			}
			return nil
		}),
	}
}

func buildLogCmd(flags *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log [revision...]",
		Short: "Show commit history",
		RunE: withRepo(flags, func(ctx context.Context, s *session, out io.Writer, args []string) error {
			commits, err := s.svc.GetLog(ctx, limit, args...).Get()
			if err != nil {
				return err
			}
			p := newPrinter(out)
			for _, c := range commits {
				fmt.Fprintf(out, "%s %s %s %s\n", p.st.CommitHash.Render(c.ShortHash),
					p.st.Muted.Render(formatDate(c.Date)), c.Author, c.Subject)
			}
			return nil
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum commits (0 for all)")
	return cmd
}

func buildDiffCmd(flags *globalFlags) *cobra.Command {
	var staged bool
	var commitish string
	cmd := &cobra.Command{
		Use:   "diff [path]",
		Short: "Show working tree, staged or commit changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: withRepo(flags, func(ctx context.Context, s *session, out io.Writer, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			res := s.svc.GetDiff(ctx, staged, path)
			if commitish != "" {
				res = s.svc.GetCommitDiff(ctx, commitish)
			}
			files, err := res.Get()
			if err != nil {
				return err
			}
			newPrinter(out).diff(files)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&staged, "staged", false, "Diff the index against HEAD")
	cmd.Flags().StringVarP(&commitish, "commit", "c", "", "Show the changes introduced by a commit")
	return cmd
}

func buildStashCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stash",
		Short: "List stash entries",
		Args:  cobra.NoArgs,
		RunE: withRepo(flags, func(ctx context.Context, s *session, out io.Writer, _ []string) error {
			entries, err := s.svc.GetStashes(ctx).Get()
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(out, "stash@{%d}\t%s\t%s\n", e.Index, e.Branch, e.Message)
			}
			return nil
		}),
	}
}

func buildRemotesCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remotes",
		Short: "List configured remotes",
		Args:  cobra.NoArgs,
		RunE: withRepo(flags, func(ctx context.Context, s *session, out io.Writer, _ []string) error {
			remotes, err := s.svc.GetRemotes(ctx).Get()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, r := range remotes {
				fmt.Fprintf(tw, "%s\t%s\n", r.Name, r.FetchURL)
				if r.PushURL != "" && r.PushURL != r.FetchURL {
					fmt.Fprintf(tw, "\t%s (push)\n", r.PushURL)
				}
			}
			return tw.Flush()
		}),
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}

// ── Operations ────────────────────────────────────────────────────────

// stateCmd builds a subcommand that runs op and prints the resulting state.
func stateCmd[T any](flags *globalFlags, use, short string, args cobra.PositionalArgs,
	op func(ctx context.Context, s *session, args []string) result.Result[T],
	show func(printer, T),
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: withRepo(flags, func(ctx context.Context, s *session, out io.Writer, args []string) error {
			st, err := op(ctx, s, args).Get()
			if err != nil {
				return err
			}
			show(newPrinter(out), st)
			return nil
		}),
	}
}

func buildBisectCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bisect",
		Short: "Drive a bisect session",
	}
	show := printer.bisect
	cmd.AddCommand(
		stateCmd(flags, "start <good> [bad]", "Start bisecting; bad defaults to HEAD", cobra.RangeArgs(1, 2),
			func(ctx context.Context, s *session, args []string) result.Result[git.BisectState] {
				bad := ""
				if len(args) == 2 {
					bad = args[1]
				}
				return s.svc.StartBisect(ctx, args[0], bad)
			}, show),
		stateCmd(flags, "good", "Mark the current commit good", cobra.NoArgs,
			func(ctx context.Context, s *session, _ []string) result.Result[git.BisectState] {
				return s.svc.MarkBisectGood(ctx)
			}, show),
		stateCmd(flags, "bad", "Mark the current commit bad", cobra.NoArgs,
			func(ctx context.Context, s *session, _ []string) result.Result[git.BisectState] {
				return s.svc.MarkBisectBad(ctx)
			}, show),
		stateCmd(flags, "skip", "Skip the current commit", cobra.NoArgs,
			func(ctx context.Context, s *session, _ []string) result.Result[git.BisectState] {
				return s.svc.MarkBisectSkip(ctx)
			}, show),
		stateCmd(flags, "reset", "End the session and return to the original branch", cobra.NoArgs,
			func(ctx context.Context, s *session, _ []string) result.Result[git.BisectState] {
				return s.svc.ResetBisect(ctx)
			}, show),
	)
	return cmd
}

// errProtected is returned when an operation would rewrite a protected branch.
var errProtected = cerr.New("branch is protected; pass --force to proceed")

func buildRebaseCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebase",
		Short: "Drive a rebase",
	}
	var force bool
	show := printer.rebase
	start := stateCmd(flags, "start <upstream>", "Rebase the current branch onto upstream", cobra.ExactArgs(1),
		func(ctx context.Context, s *session, args []string) result.Result[git.RebaseState] {
			return result.FlatMap(s.svc.GetCurrentBranch(ctx), func(branch git.BranchID) result.Result[git.RebaseState] {
				if s.cfg.IsProtected(branch) && !force {
					return result.FromError[git.RebaseState](cerr.Wrapf(errProtected, "%s", branch))
				}
				return s.svc.RebaseBranch(ctx, args[0])
			})
		}, show)
	start.Flags().BoolVar(&force, "force", false, "Allow rebasing a protected branch")

	cmd.AddCommand(
		start,
		stateCmd(flags, "continue", "Continue after resolving conflicts", cobra.NoArgs,
			func(ctx context.Context, s *session, _ []string) result.Result[git.RebaseState] {
				return s.svc.ContinueRebase(ctx)
			}, show),
		stateCmd(flags, "skip", "Skip the commit that stopped the rebase", cobra.NoArgs,
			func(ctx context.Context, s *session, _ []string) result.Result[git.RebaseState] {
				return s.svc.SkipRebase(ctx)
			}, show),
		stateCmd(flags, "abort", "Abort and restore the original branch", cobra.NoArgs,
			func(ctx context.Context, s *session, _ []string) result.Result[git.RebaseState] {
				return s.svc.AbortRebase(ctx)
			}, show),
	)
	return cmd
}

func buildMergeCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Drive a merge",
	}
	show := printer.merge

	var push, force bool
	remote := stateCmd(flags, "remote <remote> <target> <source>",
		"Fetch, check out target tracking remote/target, merge source, optionally push", cobra.ExactArgs(3),
		func(ctx context.Context, s *session, args []string) result.Result[git.MergeState] {
			if push && s.cfg.IsProtected(args[1]) && !force {
				return result.FromError[git.MergeState](cerr.Wrapf(errProtected, "%s", args[1]))
			}
			return s.svc.MergeIntoRemoteBranch(ctx, git.RemoteMergeRequest{
				Remote: args[0],
				Target: args[1],
				Source: args[2],
				Push:   push,
			})
		}, show)
	remote.Flags().BoolVar(&push, "push", false, "Push target after a clean merge")
	remote.Flags().BoolVar(&force, "force", false, "Allow pushing a protected branch")

	cmd.AddCommand(
		stateCmd(flags, "start <branch>", "Merge branch into the current branch", cobra.ExactArgs(1),
			func(ctx context.Context, s *session, args []string) result.Result[git.MergeState] {
				return s.svc.MergeBranch(ctx, args[0])
			}, show),
		stateCmd(flags, "abort", "Abort the merge in progress", cobra.NoArgs,
			func(ctx context.Context, s *session, _ []string) result.Result[git.MergeState] {
				return s.svc.AbortMerge(ctx)
			}, show),
		stateCmd(flags, "commit", "Conclude a merge whose conflicts are resolved", cobra.NoArgs,
			func(ctx context.Context, s *session, _ []string) result.Result[git.MergeState] {
				return s.svc.CommitMerge(ctx)
			}, show),
		remote,
	)
	return cmd
}

func buildCloneCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clone <url> <dir>",
		Short: "Clone a repository, streaming progress",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			s, err := newSession(cfg, cfg.LogFile)
			if err != nil {
				return err
			}
			defer s.Close()

			errOut := cmd.ErrOrStderr()
			svc, err := git.Clone(cmd.Context(), s.runner, s.opts, args[0], args[1], func(line string) {
				fmt.Fprintln(errOut, line)
			}).Get()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), svc.RepoRoot())
			return nil
		},
	}
}
