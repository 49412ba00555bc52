package git

import "time"

// CommitID is a full or abbreviated commit hash. Identifiers compare by
// their literal string.
type CommitID = string

// BranchID is a branch name, or a hash when no branch applies.
type BranchID = string

// StatusCode represents a single-character Git status indicator.
type StatusCode byte

// Git status codes as single-byte indicators.
const (
	StatusUnmodified  StatusCode = ' '
	StatusModified    StatusCode = 'M'
	StatusTypeChanged StatusCode = 'T'
	StatusAdded       StatusCode = 'A'
	StatusDeleted     StatusCode = 'D'
	StatusRenamed     StatusCode = 'R'
	StatusCopied      StatusCode = 'C'
	StatusUnmerged    StatusCode = 'U'
	StatusUntracked   StatusCode = '?'
	StatusIgnored     StatusCode = '!'
)

// String returns the single-character representation.
func (s StatusCode) String() string { return string(s) }

// Label returns a human-readable description of the status.
func (s StatusCode) Label() string {
	switch s {
	case StatusModified:
		return "Modified"
	case StatusTypeChanged:
		return "Type Changed"
	case StatusAdded:
		return "Added"
	case StatusDeleted:
		return "Deleted"
	case StatusRenamed:
		return "Renamed"
	case StatusCopied:
		return "Copied"
	case StatusUnmerged:
		return "Unmerged"
	case StatusUntracked:
		return "Untracked"
	case StatusIgnored:
		return "Ignored"
	default:
		return ""
	}
}

func (s StatusCode) valid() bool {
	switch s {
	case StatusUnmodified, StatusModified, StatusTypeChanged, StatusAdded, StatusDeleted,
		StatusRenamed, StatusCopied, StatusUnmerged, StatusUntracked, StatusIgnored:
		return true
	}
	return false
}

// FileStatus represents the status of a single file in the working tree or index.
type FileStatus struct {
	Staging  StatusCode
	Worktree StatusCode
	Path     string
	OrigPath string // Only set for renames/copies.
	IsStaged bool
}

// StatusResult holds the categorised status of the entire repository.
type StatusResult struct {
	Staged    []FileStatus
	Unstaged  []FileStatus
	Untracked []FileStatus
	Conflicts []FileStatus
}

// TotalCount returns the total number of files across all categories.
func (sr *StatusResult) TotalCount() int {
	return len(sr.Staged) + len(sr.Unstaged) + len(sr.Untracked) + len(sr.Conflicts)
}

// RefType classifies a Git reference.
type RefType int

// Git reference types.
const (
	RefBranch RefType = iota
	RefRemoteBranch
	RefTag
	RefHead
)

// Ref is a Git reference decoration on a commit.
type Ref struct {
	Name   string
	Type   RefType
	Remote string
}

// Commit represents a single Git commit.
type Commit struct {
	Hash        CommitID
	ShortHash   string
	Author      string
	AuthorEmail string
	Date        time.Time
	Subject     string
	Parents     []CommitID
	Refs        []Ref
}

// Branch represents a local or remote branch.
type Branch struct {
	Name      BranchID
	IsCurrent bool
	IsRemote  bool
	// IsWorktree marks a branch checked out in another linked worktree.
	IsWorktree bool
	Upstream   string
	// UpstreamGone is set when the configured upstream no longer exists.
	UpstreamGone bool
	Hash         CommitID
	Subject      string
	Ahead        int
	Behind       int
}

// Tag is an annotated or lightweight tag.
type Tag struct {
	Name    string
	Hash    CommitID
	Date    time.Time
	Subject string
}

// ReflogEntry is one line of `git reflog`.
type ReflogEntry struct {
	Hash     CommitID
	Selector string // e.g. HEAD@{3}
	Action   string // e.g. "checkout", "commit (amend)"
	Message  string
	Date     time.Time
}

// BlameLine is one attributed line of a file.
type BlameLine struct {
	Hash     CommitID
	Boundary bool // line comes from the root/boundary commit
	Author   string
	Date     time.Time
	LineNo   int
	Content  string
}

// BlameGroup coalesces consecutive lines from the same commit.
type BlameGroup struct {
	Hash      CommitID
	Author    string
	Date      time.Time
	StartLine int
	Lines     []BlameLine
}

// StashEntry represents a single stash entry.
type StashEntry struct {
	Index   int
	Message string
	Branch  string
}

// Remote represents a configured Git remote.
type Remote struct {
	Name     string
	FetchURL string
	PushURL  string
}
