package git

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ── git branch -vv ──────────────────────────────────────────────────────────

// upstreamRe matches the bracketed tracking block of `git branch -vv`:
// [origin/main], [origin/main: ahead 1], [origin/main: ahead 1, behind 2],
// [origin/main: gone].
var upstreamRe = regexp.MustCompile(`^\[([^\s\]:]+)(?:: (gone|ahead (\d+)(?:, behind (\d+))?|behind (\d+)))?\]`)

// ParseBranchVV parses `git branch -vv --no-color` output. Malformed lines
// are reported individually and do not stop the remaining lines from being
// parsed. The "(HEAD detached at …)" pseudo-entry is not a branch and is
// dropped.
func ParseBranchVV(out string) ([]Branch, []*ParseError) {
	lines := splitLines(out)
	branches := make([]Branch, 0, len(lines))
	var errs []*ParseError
	for i, line := range lines {
		b, err := ParseBranchVVLine(line)
		if err != nil {
			err.Line = i + 1
			errs = append(errs, err)
			continue
		}
		if strings.HasPrefix(b.Name, "(") {
			continue
		}
		branches = append(branches, b)
	}
	return branches, errs
}

// ParseBranchVVLine parses a single line of `git branch -vv`.
func ParseBranchVVLine(line string) (Branch, *ParseError) {
	const parser = "branch -vv"
	if len(line) < 3 || line[1] != ' ' {
		return Branch{}, newParseError(parser, 0, line, "line too short or missing marker column")
	}
	var b Branch
	switch line[0] {
	case '*':
		b.IsCurrent = true
	case '+':
		b.IsWorktree = true
	case ' ':
	default:
		return Branch{}, newParseError(parser, 0, line, fmt.Sprintf("unknown marker %q", line[0]))
	}

	rest := line[2:]
	if strings.HasPrefix(rest, "(") {
		end := strings.IndexByte(rest, ')')
		if end < 0 {
			return Branch{}, newParseError(parser, 0, line, "unterminated detached HEAD name")
		}
		b.Name = rest[:end+1]
		rest = rest[end+1:]
	} else {
		name, after, ok := strings.Cut(rest, " ")
		if !ok || name == "" {
			return Branch{}, newParseError(parser, 0, line, "missing branch name")
		}
		b.Name = name
		rest = after
	}

	rest = strings.TrimLeft(rest, " ")
	hash, after, _ := strings.Cut(rest, " ")
	if !isHash(hash) {
		return Branch{}, newParseError(parser, 0, line, fmt.Sprintf("invalid commit hash %q", hash))
	}
	b.Hash = hash
	rest = after

	// Branches checked out in another worktree show the worktree path.
	if b.IsWorktree && strings.HasPrefix(rest, "(") {
		if end := strings.IndexByte(rest, ')'); end >= 0 {
			rest = strings.TrimLeft(rest[end+1:], " ")
		}
	}

	if m := upstreamRe.FindStringSubmatch(rest); m != nil {
		b.Upstream = m[1]
		switch {
		case m[2] == "gone":
			b.UpstreamGone = true
		case m[3] != "":
			b.Ahead, _ = strconv.Atoi(m[3])
			if m[4] != "" {
				b.Behind, _ = strconv.Atoi(m[4])
			}
		case m[5] != "":
			b.Behind, _ = strconv.Atoi(m[5])
		}
		rest = strings.TrimLeft(rest[len(m[0]):], " ")
	}
	b.Subject = rest
	return b, nil
}

// ── git branch --format ─────────────────────────────────────────────────────

const branchFormat = "%(HEAD)%00%(refname:short)%00%(objectname:short)%00%(upstream:short)%00%(upstream:track)%00%(symref)%00%(subject)"

// ParseBranchOutput parses `git branch --format=<branchFormat>`. Symbolic
// refs such as origin/HEAD are skipped.
func ParseBranchOutput(out string, remote bool) ([]Branch, []*ParseError) {
	lines := splitLines(out)
	branches := make([]Branch, 0, len(lines))
	var errs []*ParseError
	for i, line := range lines {
		parts := strings.SplitN(line, "\x00", 7)
		if len(parts) < 7 {
			errs = append(errs, newParseError("branch --format", i+1, line,
				fmt.Sprintf("expected 7 fields, got %d", len(parts))))
			continue
		}
		if strings.TrimSpace(parts[5]) != "" {
			continue
		}
		b := Branch{
			IsCurrent: strings.TrimSpace(parts[0]) == "*",
			Name:      strings.TrimSpace(parts[1]),
			Hash:      strings.TrimSpace(parts[2]),
			Upstream:  strings.TrimSpace(parts[3]),
			Subject:   strings.TrimSpace(parts[6]),
			IsRemote:  remote,
		}
		if b.Name == "" || !isHash(b.Hash) {
			errs = append(errs, newParseError("branch --format", i+1, line, "missing name or invalid hash"))
			continue
		}
		parseTrack(strings.TrimSpace(parts[4]), &b)
		branches = append(branches, b)
	}
	return branches, errs
}

// parseTrack fills ahead/behind from %(upstream:track), e.g.
// "[ahead 1, behind 2]" or "[gone]".
func parseTrack(track string, b *Branch) {
	if track == "" {
		return
	}
	if track == "[gone]" {
		b.UpstreamGone = true
		return
	}
	for _, part := range strings.Split(strings.Trim(track, "[]"), ", ") {
		var n int
		if _, err := fmt.Sscanf(part, "ahead %d", &n); err == nil {
			b.Ahead = n
		} else if _, err := fmt.Sscanf(part, "behind %d", &n); err == nil {
			b.Behind = n
		}
	}
}
