package git

import (
	"fmt"
	"regexp"
	"strings"
)

// BisectTerms names the two bisect verdicts. Git defaults to bad/good;
// `git bisect start --term-new/--term-old` stores custom ones in
// BISECT_TERMS (bad term first).
type BisectTerms struct {
	Bad  string
	Good string
}

// DefaultBisectTerms are git's built-in terms.
var DefaultBisectTerms = BisectTerms{Bad: "bad", Good: "good"}

// BisectLog is the structured content of `git bisect log`.
type BisectLog struct {
	Good    []CommitID
	Bad     []CommitID // in the order they were marked; the last is current
	Skipped []CommitID
	// FirstBad is set once git has isolated the culprit.
	FirstBad CommitID
}

// ParseBisectTerms parses the BISECT_TERMS file. Empty content yields the
// defaults.
func ParseBisectTerms(content string) (BisectTerms, *ParseError) {
	lines := splitLines(strings.TrimSpace(content))
	switch len(lines) {
	case 0:
		return DefaultBisectTerms, nil
	case 2:
		bad, good := strings.TrimSpace(lines[0]), strings.TrimSpace(lines[1])
		if bad == "" || good == "" || bad == good {
			break
		}
		return BisectTerms{Bad: bad, Good: good}, nil
	}
	return BisectTerms{}, newParseError("bisect-terms", 0, content, "expected two distinct terms")
}

// bisectMarkRe matches the comment git writes for every recorded mark,
// including the revisions given to `git bisect start`:
//
//	# bad: [<sha>] subject
var bisectMarkRe = regexp.MustCompile(`^# (\S+): \[([^\]]*)\]`)

// ParseBisectLog parses `git bisect log` using the given terms. Marks are
// taken from the `# <term>: [<sha>]` comments since git writes one for
// every verdict, while the start revisions appear only there. Command
// lines are validated but not recorded again. Any unrecognised line is an
// error because an unreadable log means the session phase cannot be trusted.
func ParseBisectLog(out string, terms BisectTerms) (BisectLog, *ParseError) {
	var log BisectLog
	for i, line := range splitLines(out) {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "# first bad commit:"):
			f := strings.Fields(strings.TrimPrefix(line, "# first bad commit:"))
			if len(f) == 0 {
				return BisectLog{}, newParseError("bisect-log", i+1, line, "first bad commit without hash")
			}
			h := strings.Trim(f[0], "[]")
			if !isHash(h) {
				return BisectLog{}, newParseError("bisect-log", i+1, line, fmt.Sprintf("invalid hash %q", h))
			}
			log.FirstBad = h
		case strings.HasPrefix(line, "#"):
			m := bisectMarkRe.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			verdict, h := m[1], m[2]
			if !isHash(h) {
				return BisectLog{}, newParseError("bisect-log", i+1, line, fmt.Sprintf("invalid hash %q", h))
			}
			switch verdict {
			case terms.Bad:
				log.Bad = append(log.Bad, h)
			case terms.Good:
				log.Good = append(log.Good, h)
			case "skip":
				log.Skipped = append(log.Skipped, h)
			}
		case strings.HasPrefix(line, "git bisect start"):
			continue
		case strings.HasPrefix(line, "git bisect "):
			f := strings.Fields(strings.TrimPrefix(line, "git bisect "))
			if len(f) < 2 {
				return BisectLog{}, newParseError("bisect-log", i+1, line, "verdict without commit")
			}
			if v := f[0]; v != terms.Bad && v != terms.Good && v != "skip" {
				return BisectLog{}, newParseError("bisect-log", i+1, line, fmt.Sprintf("unknown verdict %q", v))
			}
			for _, h := range f[1:] {
				if !isHash(h) {
					return BisectLog{}, newParseError("bisect-log", i+1, line, fmt.Sprintf("invalid hash %q", h))
				}
			}
		default:
			return BisectLog{}, newParseError("bisect-log", i+1, line, "unrecognised bisect log line")
		}
	}
	return log, nil
}
