package git

import (
	"fmt"
	"strconv"
	"strings"
)

// ── Stash parsing ───────────────────────────────────────────────────────────

// ParseStashList parses `git stash list`:
//
//	stash@{0}: On main: wip
//	stash@{1}: WIP on feature: 1a2b3c4 subject
func ParseStashList(out string) ([]StashEntry, []*ParseError) {
	lines := splitLines(out)
	entries := make([]StashEntry, 0, len(lines))
	var errs []*ParseError
	for i, line := range lines {
		e, err := parseStashLine(line)
		if err != nil {
			err.Line = i + 1
			errs = append(errs, err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, errs
}

func parseStashLine(line string) (StashEntry, *ParseError) {
	sel, rest, ok := strings.Cut(line, ": ")
	if !ok || !strings.HasPrefix(sel, "stash@{") || !strings.HasSuffix(sel, "}") {
		return StashEntry{}, newParseError("stash", 0, line, "missing stash@{n} selector")
	}
	idx, err := strconv.Atoi(sel[len("stash@{") : len(sel)-1])
	if err != nil || idx < 0 {
		return StashEntry{}, newParseError("stash", 0, line, fmt.Sprintf("invalid stash index in %q", sel))
	}
	e := StashEntry{Index: idx, Message: rest}
	where, msg, ok := strings.Cut(rest, ": ")
	if !ok {
		return e, nil
	}
	for _, prefix := range []string{"WIP on ", "On "} {
		if strings.HasPrefix(where, prefix) {
			e.Branch = strings.TrimPrefix(where, prefix)
			e.Message = msg
			break
		}
	}
	return e, nil
}

// ── Remote parsing ──────────────────────────────────────────────────────────

// ParseRemoteOutput parses `git remote -v`. Remotes keep first-seen order.
func ParseRemoteOutput(out string) ([]Remote, []*ParseError) {
	seen := map[string]*Remote{}
	var (
		order []string
		errs  []*ParseError
	)
	for i, line := range splitLines(out) {
		fields := strings.Fields(line)
		if len(fields) != 3 {
			errs = append(errs, newParseError("remote", i+1, line, "expected \"name url (fetch|push)\""))
			continue
		}
		name, url, kind := fields[0], fields[1], fields[2]
		if kind != "(fetch)" && kind != "(push)" {
			errs = append(errs, newParseError("remote", i+1, line, fmt.Sprintf("unknown direction %s", kind)))
			continue
		}
		r, ok := seen[name]
		if !ok {
			r = &Remote{Name: name}
			seen[name] = r
			order = append(order, name)
		}
		if kind == "(fetch)" {
			r.FetchURL = url
		} else {
			r.PushURL = url
		}
	}
	remotes := make([]Remote, 0, len(order))
	for _, name := range order {
		remotes = append(remotes, *seen[name])
	}
	return remotes, errs
}
