package git

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// tagFormat peels annotated tags so Hash is always the tagged commit.
const tagFormat = "%(refname:short)%00%(objectname:short)%00%(*objectname:short)%00%(creatordate:unix)%00%(contents:subject)"

// ParseTagOutput parses `git tag --list --format=<tagFormat>`.
func ParseTagOutput(out string) ([]Tag, []*ParseError) {
	lines := splitLines(out)
	tags := make([]Tag, 0, len(lines))
	var errs []*ParseError
	for i, line := range lines {
		t, err := ParseTagLine(line)
		if err != nil {
			err.Line = i + 1
			errs = append(errs, err)
			continue
		}
		tags = append(tags, t)
	}
	return tags, errs
}

// ParseTagLine parses one tag record.
func ParseTagLine(line string) (Tag, *ParseError) {
	parts := strings.SplitN(line, "\x00", 5)
	if len(parts) < 5 {
		return Tag{}, newParseError("tag", 0, line, fmt.Sprintf("expected 5 fields, got %d", len(parts)))
	}
	t := Tag{Name: parts[0], Hash: parts[1], Subject: parts[4]}
	if peeled := parts[2]; peeled != "" {
		t.Hash = peeled
	}
	if t.Name == "" {
		return Tag{}, newParseError("tag", 0, line, "empty tag name")
	}
	if !isHash(t.Hash) {
		return Tag{}, newParseError("tag", 0, line, fmt.Sprintf("invalid object hash %q", t.Hash))
	}
	if ts := parts[3]; ts != "" {
		sec, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return Tag{}, newParseError("tag", 0, line, fmt.Sprintf("invalid creator date %q", ts))
		}
		t.Date = time.Unix(sec, 0)
	}
	return t, nil
}
