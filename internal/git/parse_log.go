package git

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ── Log / commit parsing ────────────────────────────────────────────────────

const (
	logFormat    = "%H%x00%h%x00%an%x00%ae%x00%at%x00%s%x00%P%x00%D"
	logSeparator = "%x01"
)

// LogFormatFlag returns the --format flag for git log.
func LogFormatFlag() string {
	return fmt.Sprintf("--format=%s%s", logFormat, logSeparator)
}

// ParseLogOutput parses the raw output of git log using our custom format.
// Uses IndexByte scanning instead of Split to avoid allocating a large
// []string for repos with thousands of commits.
func ParseLogOutput(out string) ([]Commit, []*ParseError) {
	commits := make([]Commit, 0, 16)
	var errs []*ParseError
	n := 0
	for len(out) > 0 {
		idx := strings.IndexByte(out, '\x01')
		var entry string
		if idx < 0 {
			entry, out = out, ""
		} else {
			entry, out = out[:idx], out[idx+1:]
		}
		entry = strings.Trim(entry, "\n")
		if entry == "" {
			continue
		}
		n++
		c, err := ParseCommitEntry(entry)
		if err != nil {
			err.Line = n
			errs = append(errs, err)
			continue
		}
		commits = append(commits, c)
	}
	return commits, errs
}

// ParseCommitEntry parses one NUL-separated log record.
func ParseCommitEntry(entry string) (Commit, *ParseError) {
	parts := strings.SplitN(entry, "\x00", 8)
	if len(parts) < 8 {
		return Commit{}, newParseError("log", 0, entry, fmt.Sprintf("expected 8 fields, got %d", len(parts)))
	}
	hash := strings.TrimSpace(parts[0])
	if !isHash(hash) {
		return Commit{}, newParseError("log", 0, entry, fmt.Sprintf("invalid commit hash %q", hash))
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(parts[4]), 10, 64)
	if err != nil {
		return Commit{}, newParseError("log", 0, entry, fmt.Sprintf("invalid author timestamp %q", parts[4]))
	}
	c := Commit{
		Hash:        hash,
		ShortHash:   strings.TrimSpace(parts[1]),
		Author:      strings.TrimSpace(parts[2]),
		AuthorEmail: strings.TrimSpace(parts[3]),
		Date:        time.Unix(ts, 0),
		Subject:     strings.TrimSpace(parts[5]),
	}
	if p := strings.TrimSpace(parts[6]); p != "" {
		c.Parents = strings.Fields(p)
	}
	if r := strings.TrimSpace(parts[7]); r != "" {
		c.Refs = ParseRefs(r)
	}
	return c, nil
}

// ParseRefs parses the %D decoration string into typed Ref values.
func ParseRefs(raw string) []Ref {
	refs := make([]Ref, 0, 4)
	for _, r := range strings.Split(raw, ", ") {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		ref := Ref{Name: r}
		switch {
		case r == "HEAD":
			ref.Type = RefHead
		case strings.HasPrefix(r, "HEAD -> "):
			ref.Name = strings.TrimPrefix(r, "HEAD -> ")
			ref.Type = RefHead
		case strings.HasPrefix(r, "tag: "):
			ref.Name = strings.TrimPrefix(r, "tag: ")
			ref.Type = RefTag
		case strings.Contains(r, "/"):
			ref.Type = RefRemoteBranch
			parts := strings.SplitN(r, "/", 2)
			ref.Remote = parts[0]
			ref.Name = parts[1]
		default:
			ref.Type = RefBranch
		}
		refs = append(refs, ref)
	}
	return refs
}
