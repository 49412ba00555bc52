package git

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DiffLineKind classifies a line of unified diff output.
type DiffLineKind int

// Diff line kinds.
const (
	DiffFileHeader DiffLineKind = iota
	DiffHunkHeader
	DiffContext
	DiffAddition
	DiffDeletion
)

// DiffLine is one classified diff line. OldLine / NewLine are the 1-based
// line numbers on each side, zero where the line does not exist.
type DiffLine struct {
	Kind    DiffLineKind
	Content string
	OldLine int
	NewLine int
	// NoNewline is set when git reported "\ No newline at end of file"
	// for this line.
	NoNewline bool
}

// Hunk is one @@ block.
type Hunk struct {
	OldStart, OldCount int
	NewStart, NewCount int
	Header             string
	Lines              []DiffLine
}

// FileDiff is the diff of one file.
type FileDiff struct {
	OldPath string
	NewPath string
	Binary  bool
	Headers []DiffLine
	Hunks   []Hunk
}

// Lines flattens the file diff into display order.
func (f FileDiff) Lines() []DiffLine {
	out := make([]DiffLine, 0, len(f.Headers)+len(f.Hunks)*8)
	out = append(out, f.Headers...)
	for _, h := range f.Hunks {
		out = append(out, DiffLine{Kind: DiffHunkHeader, Content: h.Header})
		out = append(out, h.Lines...)
	}
	return out
}

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// fileHeaderPrefixes are the extended header lines git may emit between
// "diff --git" and the first hunk.
var fileHeaderPrefixes = []string{
	"index ", "--- ", "+++ ", "new file mode ", "deleted file mode ",
	"old mode ", "new mode ", "similarity index ", "dissimilarity index ",
	"rename from ", "rename to ", "copy from ", "copy to ", "Binary files ",
	"GIT binary patch",
}

// ParseDiff parses `git diff --no-color` output. A diff is one document,
// so the first structural violation aborts parsing.
func ParseDiff(out string) ([]FileDiff, error) {
	var (
		files  []FileDiff
		cur    *FileDiff
		hunk   *Hunk
		remOld int
		remNew int
		oldNo  int
		newNo  int
	)
	closeHunk := func() {
		if hunk != nil {
			cur.Hunks = append(cur.Hunks, *hunk)
			hunk = nil
		}
	}
	closeFile := func() {
		closeHunk()
		if cur != nil {
			files = append(files, *cur)
			cur = nil
		}
	}
	lastLine := func() *DiffLine {
		if hunk == nil || len(hunk.Lines) == 0 {
			return nil
		}
		return &hunk.Lines[len(hunk.Lines)-1]
	}

	for i, line := range splitLines(out) {
		lineNo := i + 1

		if remOld > 0 || remNew > 0 {
			if line == "" {
				return nil, newParseError("diff", lineNo, line, "empty line inside hunk")
			}
			dl := DiffLine{Content: line[1:]}
			switch line[0] {
			case ' ':
				dl.Kind, dl.OldLine, dl.NewLine = DiffContext, oldNo, newNo
				oldNo++
				newNo++
				remOld--
				remNew--
			case '-':
				dl.Kind, dl.OldLine = DiffDeletion, oldNo
				oldNo++
				remOld--
			case '+':
				dl.Kind, dl.NewLine = DiffAddition, newNo
				newNo++
				remNew--
			case '\\':
				if last := lastLine(); last != nil {
					last.NoNewline = true
					continue
				}
				return nil, newParseError("diff", lineNo, line, "no-newline marker without a preceding line")
			default:
				return nil, newParseError("diff", lineNo, line, "hunk line must start with ' ', '+' or '-'")
			}
			if remOld < 0 || remNew < 0 {
				return nil, newParseError("diff", lineNo, line, "hunk longer than its header declares")
			}
			hunk.Lines = append(hunk.Lines, dl)
			continue
		}

		switch {
		case strings.HasPrefix(line, `\`):
			last := lastLine()
			if last == nil {
				return nil, newParseError("diff", lineNo, line, "no-newline marker without a preceding line")
			}
			last.NoNewline = true

		case strings.HasPrefix(line, "diff --git "):
			closeFile()
			oldPath, newPath := splitDiffGitPaths(strings.TrimPrefix(line, "diff --git "))
			cur = &FileDiff{OldPath: oldPath, NewPath: newPath}
			cur.Headers = append(cur.Headers, DiffLine{Kind: DiffFileHeader, Content: line})

		case strings.HasPrefix(line, "diff --cc ") || strings.HasPrefix(line, "diff --combined "):
			return nil, newParseError("diff", lineNo, line, "combined diffs are not supported")

		case strings.HasPrefix(line, "@@"):
			if cur == nil {
				return nil, newParseError("diff", lineNo, line, "hunk before any file header")
			}
			m := hunkHeaderRe.FindStringSubmatch(line)
			if m == nil {
				return nil, newParseError("diff", lineNo, line, "malformed hunk header")
			}
			closeHunk()
			h := Hunk{
				OldStart: atoiDefault(m[1], 0),
				OldCount: atoiDefault(m[2], 1),
				NewStart: atoiDefault(m[3], 0),
				NewCount: atoiDefault(m[4], 1),
				Header:   line,
			}
			hunk = &h
			remOld, remNew = h.OldCount, h.NewCount
			oldNo, newNo = h.OldStart, h.NewStart

		case cur != nil && hasFileHeaderPrefix(line):
			closeHunk()
			cur.Headers = append(cur.Headers, DiffLine{Kind: DiffFileHeader, Content: line})
			switch {
			case strings.HasPrefix(line, "--- "):
				cur.OldPath = stripDiffPrefix(strings.TrimPrefix(line, "--- "), "a/")
			case strings.HasPrefix(line, "+++ "):
				cur.NewPath = stripDiffPrefix(strings.TrimPrefix(line, "+++ "), "b/")
			case strings.HasPrefix(line, "Binary files "), strings.HasPrefix(line, "GIT binary patch"):
				cur.Binary = true
			case strings.HasPrefix(line, "rename from "):
				cur.OldPath = strings.TrimPrefix(line, "rename from ")
			case strings.HasPrefix(line, "rename to "):
				cur.NewPath = strings.TrimPrefix(line, "rename to ")
			}

		case line == "":
			// Blank separators between files (e.g. from git show).

		default:
			return nil, newParseError("diff", lineNo, line, "unexpected line outside hunk")
		}
	}
	if remOld > 0 || remNew > 0 {
		return nil, newParseError("diff", 0, hunk.Header,
			fmt.Sprintf("truncated hunk: %d old / %d new lines missing", remOld, remNew))
	}
	closeFile()
	if files == nil {
		files = []FileDiff{}
	}
	return files, nil
}

func hasFileHeaderPrefix(line string) bool {
	for _, p := range fileHeaderPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// splitDiffGitPaths splits "a/old b/new". Paths with spaces are ambiguous
// here; the ---/+++ headers refine them when present.
func splitDiffGitPaths(s string) (string, string) {
	if i := strings.Index(s, " b/"); i >= 0 {
		return strings.TrimPrefix(s[:i], "a/"), s[i+3:]
	}
	return s, s
}

func stripDiffPrefix(path, prefix string) string {
	path = strings.TrimSuffix(path, "\t")
	if path == "/dev/null" {
		return ""
	}
	return strings.TrimPrefix(path, prefix)
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
