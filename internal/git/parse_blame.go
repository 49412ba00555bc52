package git

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// blameRe matches one line of `git blame -l -t`:
//
//	^1a2b… path (Author Name 1700000000 +0100 12) content
//
// The leading caret marks boundary commits and the path column only
// appears when git followed a rename. Paths may contain spaces, so the
// column ends at the " (" that opens the author field.
var blameRe = regexp.MustCompile(`^(\^?)([0-9a-fA-F]{4,64})(?: ([^(\s].*?))? +\((.*?) +(-?\d+) ([+-]\d{4}) +(\d+)\) ?(.*)$`)

// ParseBlameOutput parses `git blame -l -t` output line by line.
func ParseBlameOutput(out string) ([]BlameLine, []*ParseError) {
	lines := splitLines(out)
	blamed := make([]BlameLine, 0, len(lines))
	var errs []*ParseError
	for i, line := range lines {
		bl, err := ParseBlameLine(line)
		if err != nil {
			err.Line = i + 1
			errs = append(errs, err)
			continue
		}
		blamed = append(blamed, bl)
	}
	return blamed, errs
}

// ParseBlameLine parses a single blame line.
func ParseBlameLine(line string) (BlameLine, *ParseError) {
	m := blameRe.FindStringSubmatch(line)
	if m == nil {
		return BlameLine{}, newParseError("blame", 0, line, "line does not match blame format")
	}
	ts, err := strconv.ParseInt(m[5], 10, 64)
	if err != nil {
		return BlameLine{}, newParseError("blame", 0, line, fmt.Sprintf("invalid timestamp %q", m[5]))
	}
	tz, err := parseZone(m[6])
	if err != nil {
		return BlameLine{}, newParseError("blame", 0, line, err.Error())
	}
	lineNo, err := strconv.Atoi(m[7])
	if err != nil || lineNo <= 0 {
		return BlameLine{}, newParseError("blame", 0, line, fmt.Sprintf("invalid line number %q", m[7]))
	}
	return BlameLine{
		Hash:     m[2],
		Boundary: m[1] == "^",
		Author:   m[4],
		Date:     time.Unix(ts, 0).In(tz),
		LineNo:   lineNo,
		Content:  m[8],
	}, nil
}

// parseZone converts a git "+hhmm" offset into a fixed zone.
func parseZone(s string) (*time.Location, error) {
	if len(s) != 5 {
		return nil, fmt.Errorf("invalid timezone %q", s)
	}
	h, err1 := strconv.Atoi(s[1:3])
	m, err2 := strconv.Atoi(s[3:5])
	if err1 != nil || err2 != nil || m >= 60 {
		return nil, fmt.Errorf("invalid timezone %q", s)
	}
	offset := h*3600 + m*60
	if s[0] == '-' {
		offset = -offset
	}
	return time.FixedZone(s, offset), nil
}

// GroupBlame coalesces consecutive lines that share a commit hash. Only
// the hash decides membership; author and date are redundant with it.
func GroupBlame(lines []BlameLine) []BlameGroup {
	groups := make([]BlameGroup, 0, len(lines)/4+1)
	for _, l := range lines {
		if n := len(groups); n > 0 && groups[n-1].Hash == l.Hash {
			groups[n-1].Lines = append(groups[n-1].Lines, l)
			continue
		}
		groups = append(groups, BlameGroup{
			Hash:      l.Hash,
			Author:    l.Author,
			Date:      l.Date,
			StartLine: l.LineNo,
			Lines:     []BlameLine{l},
		})
	}
	return groups
}
