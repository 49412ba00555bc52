package git

import (
	"fmt"
	"strings"
)

// ParseStatusOutput parses `git status --porcelain=v1 -z`.
// NUL-delimited scanning avoids allocating a massive []string for repos
// with thousands of changed files. Malformed entries are reported and
// skipped; entry numbers stand in for line numbers.
func ParseStatusOutput(out string) (*StatusResult, []*ParseError) {
	result := &StatusResult{}
	if len(out) == 0 {
		return result, nil
	}

	result.Staged = make([]FileStatus, 0, 32)
	result.Unstaged = make([]FileStatus, 0, 32)
	result.Untracked = make([]FileStatus, 0, 16)

	var errs []*ParseError
	n := 0
	next := func() (string, bool) {
		if len(out) == 0 {
			return "", false
		}
		nul := strings.IndexByte(out, '\x00')
		var entry string
		if nul < 0 {
			entry, out = out, ""
		} else {
			entry, out = out[:nul], out[nul+1:]
		}
		return entry, true
	}

	for {
		entry, ok := next()
		if !ok {
			break
		}
		n++
		if entry == "" {
			continue
		}
		if len(entry) < 4 || entry[2] != ' ' {
			errs = append(errs, newParseError("status", n, entry, "expected \"XY path\""))
			continue
		}

		staging := StatusCode(entry[0])
		worktree := StatusCode(entry[1])
		if !staging.valid() || !worktree.valid() {
			errs = append(errs, newParseError("status", n, entry,
				fmt.Sprintf("unknown status code %q", entry[:2])))
			continue
		}
		fs := FileStatus{Staging: staging, Worktree: worktree, Path: entry[3:]}

		// Renames/copies carry the original path as the following entry.
		if staging == StatusRenamed || staging == StatusCopied ||
			worktree == StatusRenamed || worktree == StatusCopied {
			orig, ok := next()
			if !ok || orig == "" {
				errs = append(errs, newParseError("status", n, entry, "rename without original path"))
				continue
			}
			n++
			fs.OrigPath = orig
		}

		switch {
		case staging == StatusUntracked && worktree == StatusUntracked:
			result.Untracked = append(result.Untracked, fs)
			continue
		case staging == StatusIgnored:
			continue
		case isUnmerged(staging, worktree):
			result.Conflicts = append(result.Conflicts, fs)
			continue
		}

		if staging != StatusUnmodified {
			staged := fs
			staged.IsStaged = true
			result.Staged = append(result.Staged, staged)
		}
		if worktree != StatusUnmodified {
			result.Unstaged = append(result.Unstaged, fs)
		}
	}
	return result, errs
}

// isUnmerged reports the porcelain XY pairs git uses for unresolved paths:
// DD, AU, UD, UA, DU, AA, UU.
func isUnmerged(x, y StatusCode) bool {
	return x == StatusUnmerged || y == StatusUnmerged ||
		(x == StatusAdded && y == StatusAdded) ||
		(x == StatusDeleted && y == StatusDeleted)
}
