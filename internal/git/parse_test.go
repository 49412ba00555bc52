package git

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseBranchVVLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Branch
	}{
		{
			name: "current with ahead and behind",
			line: "* main      1a2b3c4 [origin/main: ahead 2, behind 1] Fix parser",
			want: Branch{Name: "main", IsCurrent: true, Hash: "1a2b3c4", Upstream: "origin/main", Ahead: 2, Behind: 1, Subject: "Fix parser"},
		},
		{
			name: "behind only",
			line: "  feature/x 89abcde [origin/feature/x: behind 3] wip",
			want: Branch{Name: "feature/x", Hash: "89abcde", Upstream: "origin/feature/x", Behind: 3, Subject: "wip"},
		},
		{
			name: "gone upstream",
			line: "  old 0000aaa [origin/old: gone] stale",
			want: Branch{Name: "old", Hash: "0000aaa", Upstream: "origin/old", UpstreamGone: true, Subject: "stale"},
		},
		{
			name: "no upstream",
			line: "  local deadbee subject with [brackets] later",
			want: Branch{Name: "local", Hash: "deadbee", Subject: "subject with [brackets] later"},
		},
		{
			name: "checked out in another worktree",
			line: "+ hotfix  cafe123 (/tmp/wt) [origin/hotfix] patch",
			want: Branch{Name: "hotfix", IsWorktree: true, Hash: "cafe123", Upstream: "origin/hotfix", Subject: "patch"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBranchVVLine(tt.line)
			require.Nil(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBranchVVLineRejectsMalformed(t *testing.T) {
	for _, line := range []string{
		"",
		"x main 1a2b3c4 subject",
		"* main nothex subject",
		"*main 1a2b3c4",
		"* (HEAD detached at 1a2b3c4 1a2b3c4",
	} {
		_, err := ParseBranchVVLine(line)
		require.NotNil(t, err, "line %q", line)
		assert.Equal(t, line, err.Fragment)
	}
}

func TestParseBranchVVRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringMatching(`[a-z][a-z0-9._/-]{0,20}`).Draw(t, "name")
		hash := rapid.StringMatching(`[0-9a-f]{7,40}`).Draw(t, "hash")
		current := rapid.Bool().Draw(t, "current")
		upstream := rapid.StringMatching(`(|[a-z]{1,8}/[a-z][a-z0-9_-]{0,12})`).Draw(t, "upstream")
		ahead := rapid.IntRange(0, 500).Draw(t, "ahead")
		subject := rapid.StringMatching(`[A-Za-z0-9 ]{0,30}`).Draw(t, "subject")
		pad := strings.Repeat(" ", rapid.IntRange(1, 6).Draw(t, "pad"))

		marker := " "
		if current {
			marker = "*"
		}
		line := marker + " " + name + pad + hash + " "
		if upstream != "" {
			track := ""
			if ahead > 0 {
				track = fmt.Sprintf(": ahead %d", ahead)
			}
			line += "[" + upstream + track + "] "
		}
		line += subject

		b, err := ParseBranchVVLine(line)
		if err != nil {
			t.Fatalf("parse %q: %v", line, err)
		}
		if b.Name != name || b.IsCurrent != current || b.Upstream != upstream || b.Hash != hash {
			t.Fatalf("round trip of %q gave %+v", line, b)
		}
		if upstream != "" && b.Ahead != ahead {
			t.Fatalf("ahead: got %d want %d", b.Ahead, ahead)
		}
	})
}

func TestParseBranchVVIsolatesMalformedLine(t *testing.T) {
	out := strings.Join([]string{
		"* main    1111111 [origin/main] one",
		"  dev     2222222 two",
		"this line is garbage",
		"  feat    4444444 [origin/feat: ahead 1] four",
		"  fix     5555555 five",
	}, "\n") + "\n"

	branches, errs := ParseBranchVV(out)
	require.Len(t, errs, 1)
	assert.Equal(t, 3, errs[0].Line)
	assert.Equal(t, "this line is garbage", errs[0].Fragment)

	names := make([]string, 0, len(branches))
	for _, b := range branches {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"main", "dev", "feat", "fix"}, names)
	assert.Equal(t, 1, branches[2].Ahead)
}

func TestParseBranchVVDropsDetachedEntry(t *testing.T) {
	out := "* (HEAD detached at 1a2b3c4) 1a2b3c4 msg\n  main 2222222 two\n"
	branches, errs := ParseBranchVV(out)
	assert.Empty(t, errs)
	require.Len(t, branches, 1)
	assert.Equal(t, "main", branches[0].Name)
}

func TestParseBranchOutputSkipsSymrefs(t *testing.T) {
	out := " \x00origin/HEAD\x001111111\x00\x00\x00refs/remotes/origin/main\x00msg\n" +
		" \x00origin/main\x001111111\x00\x00\x00\x00msg\n"
	branches, errs := ParseBranchOutput(out, true)
	assert.Empty(t, errs)
	require.Len(t, branches, 1)
	assert.Equal(t, "origin/main", branches[0].Name)
	assert.True(t, branches[0].IsRemote)
}

func TestParseTagOutput(t *testing.T) {
	out := "v1.0.0\x00aaaaaaa\x00bbbbbbb\x001700000000\x00Release 1\n" +
		"light\x00ccccccc\x00\x00\x00\n" +
		"broken\x00zzz\x00\x00\x00\n"
	tags, errs := ParseTagOutput(out)
	require.Len(t, errs, 1)
	assert.Equal(t, 3, errs[0].Line)
	require.Len(t, tags, 2)
	assert.Equal(t, "bbbbbbb", tags[0].Hash, "annotated tags resolve to the tagged commit")
	assert.Equal(t, time.Unix(1700000000, 0), tags[0].Date)
	assert.True(t, tags[1].Date.IsZero())
}

func TestParseReflogOutput(t *testing.T) {
	out := sha('a') + "\x00HEAD@{1700000300}\x00checkout: moving from main to dev\n" +
		sha('b') + "\x00HEAD@{1700000200}\x00commit (amend): tweak\n" +
		"nothex\x00HEAD@{1}\x00commit: x\n" +
		sha('c') + "\x00HEAD@{1700000100}\x00reset: moving to HEAD~1\n"

	entries, errs := ParseReflogOutput(out)
	require.Len(t, errs, 1)
	assert.Equal(t, 3, errs[0].Line)
	require.Len(t, entries, 3)

	assert.Equal(t, "HEAD@{0}", entries[0].Selector)
	assert.Equal(t, "checkout", entries[0].Action)
	assert.Equal(t, "moving from main to dev", entries[0].Message)
	assert.Equal(t, "commit (amend)", entries[1].Action)
	assert.Equal(t, time.Unix(1700000200, 0), entries[1].Date)
}

func TestParseReflogEntryRejectsBadDate(t *testing.T) {
	_, err := ParseReflogEntry(sha('a') + "\x00HEAD@{yesterday}\x00commit: x")
	require.NotNil(t, err)
	assert.Contains(t, err.Reason, "invalid date")
}

func TestParseBlame(t *testing.T) {
	out := strings.Join([]string{
		sha('a') + " (Ada Lovelace   1700000000 +0100  1) package main",
		sha('a') + " (Ada Lovelace   1700000000 +0100  2) ",
		"^" + sha('b')[:39] + " (Grace Hopper 1600000000 -0500  3) func main() {}",
		"not a blame line",
	}, "\n")

	lines, errs := ParseBlameOutput(out)
	require.Len(t, errs, 1)
	assert.Equal(t, 4, errs[0].Line)
	require.Len(t, lines, 3)

	assert.Equal(t, "Ada Lovelace", lines[0].Author)
	assert.Equal(t, 1, lines[0].LineNo)
	assert.Equal(t, "package main", lines[0].Content)
	assert.Equal(t, "", lines[1].Content)
	assert.True(t, lines[2].Boundary)
	_, offset := lines[2].Date.Zone()
	assert.Equal(t, -5*3600, offset)
	assert.Equal(t, int64(1600000000), lines[2].Date.Unix())
}

func TestParseBlameRenamedPathWithSpaces(t *testing.T) {
	out := strings.Join([]string{
		sha('a') + " old dir/my file.go (Ada Lovelace 1700000000 +0100 1) x := f(y)",
		sha('c') + " notes.txt          (Grace Hopper 1600000000 -0500 2) see (a) and (b)",
	}, "\n")

	lines, errs := ParseBlameOutput(out)
	require.Empty(t, errs)
	require.Len(t, lines, 2)
	assert.Equal(t, "Ada Lovelace", lines[0].Author)
	assert.Equal(t, "x := f(y)", lines[0].Content)
	assert.Equal(t, "Grace Hopper", lines[1].Author)
	assert.Equal(t, 2, lines[1].LineNo)
	assert.Equal(t, "see (a) and (b)", lines[1].Content)
}

func TestGroupBlameUsesHashOnly(t *testing.T) {
	lines := []BlameLine{
		{Hash: "a", Author: "x", LineNo: 1},
		{Hash: "a", Author: "different author", LineNo: 2},
		{Hash: "b", Author: "x", LineNo: 3},
		{Hash: "a", Author: "x", LineNo: 4},
	}
	groups := GroupBlame(lines)
	require.Len(t, groups, 3)
	assert.Len(t, groups[0].Lines, 2)
	assert.Equal(t, 1, groups[0].StartLine)
	assert.Equal(t, 3, groups[1].StartLine)
	assert.Equal(t, "a", groups[2].Hash, "non-adjacent lines are not merged")
}

const sampleDiff = `diff --git a/main.go b/main.go
index 1111111..2222222 100644
--- a/main.go
+++ b/main.go
@@ -1,3 +1,5 @@ package main
 package main
-import "fmt"
+import (
+	"fmt"
+)
 func main() {}
\ No newline at end of file
diff --git a/logo.png b/logo.png
new file mode 100644
index 0000000..3333333
Binary files /dev/null and b/logo.png differ
`

func TestParseDiff(t *testing.T) {
	files, err := ParseDiff(sampleDiff)
	require.NoError(t, err)
	require.Len(t, files, 2)

	f := files[0]
	assert.Equal(t, "main.go", f.OldPath)
	assert.Equal(t, "main.go", f.NewPath)
	require.Len(t, f.Hunks, 1)
	h := f.Hunks[0]
	assert.Equal(t, 1, h.OldStart)
	assert.Equal(t, 3, h.OldCount)
	assert.Equal(t, 5, h.NewCount)

	kinds := make([]DiffLineKind, 0, len(h.Lines))
	for _, l := range h.Lines {
		kinds = append(kinds, l.Kind)
	}
	assert.Equal(t, []DiffLineKind{DiffContext, DiffDeletion, DiffAddition, DiffAddition, DiffAddition, DiffContext}, kinds)

	assert.Equal(t, DiffLine{Kind: DiffDeletion, Content: `import "fmt"`, OldLine: 2}, h.Lines[1])
	assert.Equal(t, 2, h.Lines[2].NewLine)
	last := h.Lines[len(h.Lines)-1]
	assert.Equal(t, 3, last.OldLine)
	assert.Equal(t, 5, last.NewLine)
	assert.True(t, last.NoNewline)

	assert.True(t, files[1].Binary)
	assert.Empty(t, files[1].Hunks)
	assert.Equal(t, DiffHunkHeader, f.Lines()[4].Kind)
}

func TestParseDiffStructuralErrors(t *testing.T) {
	header := "diff --git a/x b/x\n--- a/x\n+++ b/x\n"
	tests := map[string]string{
		"bad hunk line":    header + "@@ -1,2 +1,2 @@\n x\n*y\n",
		"truncated hunk":   header + "@@ -1,3 +1,3 @@\n x\n",
		"hunk before file": "@@ -1 +1 @@\n-x\n+y\n",
		"stray text":       header + "garbage\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDiff(in)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.NotEmpty(t, pe.Fragment)
		})
	}
}

func TestParseDiffEmpty(t *testing.T) {
	files, err := ParseDiff("")
	require.NoError(t, err)
	assert.NotNil(t, files)
	assert.Empty(t, files)
}

func TestParseStatusOutput(t *testing.T) {
	out := "M  staged.go\x00 M dirty.go\x00?? new.txt\x00UU both.go\x00R  new.go\x00old.go\x00!! ignored\x00"
	st, errs := ParseStatusOutput(out)
	assert.Empty(t, errs)
	require.Len(t, st.Staged, 2)
	assert.Equal(t, "old.go", st.Staged[1].OrigPath)
	require.Len(t, st.Unstaged, 1)
	require.Len(t, st.Untracked, 1)
	require.Len(t, st.Conflicts, 1)
	assert.Equal(t, "both.go", st.Conflicts[0].Path)
	assert.Equal(t, 5, st.TotalCount())
}

func TestParseStatusOutputReportsBadEntry(t *testing.T) {
	st, errs := ParseStatusOutput("M  ok.go\x00ZZ what\x00 M fine.go\x00")
	require.Len(t, errs, 1)
	assert.Equal(t, "ZZ what", errs[0].Fragment)
	assert.Equal(t, 2, st.TotalCount())
}

func TestParseLogOutput(t *testing.T) {
	rec := func(h string, refs string) string {
		return strings.Join([]string{h, h[:7], "Ada", "ada@example.com", "1700000000", "subject", sha('f'), refs}, "\x00") + "\x01\n"
	}
	out := rec(sha('a'), "HEAD -> main, origin/main, tag: v1") + "broken\x00entry\x01\n" + rec(sha('b'), "")
	commits, errs := ParseLogOutput(out)
	require.Len(t, errs, 1)
	require.Len(t, commits, 2)
	assert.Equal(t, []Ref{
		{Name: "main", Type: RefHead},
		{Name: "main", Type: RefRemoteBranch, Remote: "origin"},
		{Name: "v1", Type: RefTag},
	}, commits[0].Refs)
	assert.Equal(t, []CommitID{sha('f')}, commits[1].Parents)
}

func TestParseStashList(t *testing.T) {
	out := "stash@{0}: On main: wip: half done\nstash@{1}: WIP on dev: 1a2b3c4 subject\nnot a stash\n"
	entries, errs := ParseStashList(out)
	require.Len(t, errs, 1)
	require.Len(t, entries, 2)
	assert.Equal(t, StashEntry{Index: 0, Branch: "main", Message: "wip: half done"}, entries[0])
	assert.Equal(t, StashEntry{Index: 1, Branch: "dev", Message: "1a2b3c4 subject"}, entries[1])
}

func TestParseRemoteOutput(t *testing.T) {
	out := "origin\tgit@example.com:a/b.git (fetch)\norigin\tgit@example.com:a/b.git (push)\nup\thttps://x/y (fetch)\nbad line\n"
	remotes, errs := ParseRemoteOutput(out)
	require.Len(t, errs, 1)
	require.Len(t, remotes, 2)
	assert.Equal(t, "origin", remotes[0].Name)
	assert.Equal(t, "git@example.com:a/b.git", remotes[0].PushURL)
	assert.Empty(t, remotes[1].PushURL)
}

func TestParseBisectLog(t *testing.T) {
	out := strings.Join([]string{
		"git bisect start '" + sha('9') + "' '" + sha('0') + "' '--'",
		"# status: waiting for both good and bad commits",
		"# bad: [" + sha('9') + "] broken",
		"# status: waiting for good commit(s), bad commit known",
		"# good: [" + sha('0') + "] fine",
		"# skip: [" + sha('5') + "] flaky",
		"git bisect skip " + sha('5'),
		"# bad: [" + sha('7') + "] the culprit",
		"git bisect bad " + sha('7'),
		"# first bad commit: [" + sha('7') + "] the culprit",
	}, "\n")
	log, err := ParseBisectLog(out, DefaultBisectTerms)
	require.Nil(t, err)
	assert.Equal(t, []CommitID{sha('9'), sha('7')}, log.Bad)
	assert.Equal(t, []CommitID{sha('0')}, log.Good)
	assert.Equal(t, []CommitID{sha('5')}, log.Skipped)
	assert.Equal(t, sha('7'), log.FirstBad)
}

func TestParseBisectLogStartRevisionsOnlyInComments(t *testing.T) {
	out := strings.Join([]string{
		"# bad: [" + sha('9') + "] head",
		"# good: [" + sha('0') + "] first",
		"git bisect start 'HEAD' '" + sha('0') + "' '--'",
	}, "\n")
	log, err := ParseBisectLog(out, DefaultBisectTerms)
	require.Nil(t, err)
	assert.Equal(t, []CommitID{sha('9')}, log.Bad)
	assert.Equal(t, []CommitID{sha('0')}, log.Good)
}

func TestParseBisectLogCustomTerms(t *testing.T) {
	terms, err := ParseBisectTerms("broken\nfixed\n")
	require.Nil(t, err)
	log, err := ParseBisectLog(strings.Join([]string{
		"# broken: [" + sha('9') + "] head",
		"# fixed: [" + sha('0') + "] first",
		"git bisect start '--term-new=broken' '--term-old=fixed' 'HEAD' '" + sha('0') + "' '--'",
		"# fixed: [" + sha('4') + "] middle",
		"git bisect fixed " + sha('4'),
	}, "\n"), terms)
	require.Nil(t, err)
	assert.Equal(t, []CommitID{sha('9')}, log.Bad)
	assert.Equal(t, []CommitID{sha('0'), sha('4')}, log.Good)

	_, err = ParseBisectLog("git bisect bad "+sha('9')+"\n", terms)
	require.NotNil(t, err, "default terms are unknown once custom ones are set")
}

func TestParseBisectLogRejectsUnknownLines(t *testing.T) {
	_, err := ParseBisectLog("# good: ["+sha('0')+"] a\nsomething odd\n", DefaultBisectTerms)
	require.NotNil(t, err)
	assert.Equal(t, 2, err.Line)
	assert.Equal(t, "something odd", err.Fragment)

	_, err = ParseBisectLog("# good: [zzzz] a\n", DefaultBisectTerms)
	require.NotNil(t, err)
}

func TestBisectSteps(t *testing.T) {
	for n, want := range map[int]int{0: 0, 1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 8: 3, 9: 4, 1024: 10} {
		assert.Equal(t, want, bisectSteps(n), "n=%d", n)
	}
}
