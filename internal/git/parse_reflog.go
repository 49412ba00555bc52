package git

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// reflogFormat is used together with --date=unix so %gD carries the entry
// timestamp ("HEAD@{1700000000}") instead of the index.
const reflogFormat = "--format=%H%x00%gD%x00%gs"

// ParseReflogOutput parses `git reflog show --date=unix <reflogFormat> <ref>`.
// Selectors are renumbered by position (ref@{0} is the newest entry).
func ParseReflogOutput(out string) ([]ReflogEntry, []*ParseError) {
	lines := splitLines(out)
	entries := make([]ReflogEntry, 0, len(lines))
	var errs []*ParseError
	for i, line := range lines {
		e, err := ParseReflogEntry(line)
		if err != nil {
			err.Line = i + 1
			errs = append(errs, err)
			continue
		}
		ref, _, _ := strings.Cut(e.Selector, "@{")
		e.Selector = fmt.Sprintf("%s@{%d}", ref, i)
		entries = append(entries, e)
	}
	return entries, errs
}

// ParseReflogEntry parses a single reflog record. Any missing field,
// invalid hash or unparseable date is an error; there are no partial
// entries.
func ParseReflogEntry(line string) (ReflogEntry, *ParseError) {
	parts := strings.SplitN(line, "\x00", 3)
	if len(parts) < 3 {
		return ReflogEntry{}, newParseError("reflog", 0, line, fmt.Sprintf("expected 3 fields, got %d", len(parts)))
	}
	hash, selector, subject := parts[0], parts[1], parts[2]
	if !isHash(hash) {
		return ReflogEntry{}, newParseError("reflog", 0, line, fmt.Sprintf("invalid hash %q", hash))
	}

	open := strings.Index(selector, "@{")
	if open <= 0 || !strings.HasSuffix(selector, "}") {
		return ReflogEntry{}, newParseError("reflog", 0, line, fmt.Sprintf("invalid selector %q", selector))
	}
	sec, err := strconv.ParseInt(selector[open+2:len(selector)-1], 10, 64)
	if err != nil {
		return ReflogEntry{}, newParseError("reflog", 0, line, fmt.Sprintf("invalid date in selector %q", selector))
	}

	e := ReflogEntry{
		Hash:     hash,
		Selector: selector,
		Date:     time.Unix(sec, 0),
	}
	if action, msg, ok := strings.Cut(subject, ": "); ok {
		e.Action, e.Message = action, msg
	} else {
		e.Action = subject
	}
	if e.Action == "" {
		return ReflogEntry{}, newParseError("reflog", 0, line, "empty reflog action")
	}
	return e, nil
}
