package models

import (
	"path"
	"strings"
	"time"
)

// NodeKind distinguishes files from directories in the remote tree
type NodeKind string

const (
	KindFile      NodeKind = "file"
	KindDirectory NodeKind = "directory"
)

// RemoteNode is an immutable snapshot of one remote entry.
// A refresh produces new values; nodes are never mutated in place.
type RemoteNode struct {
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	Kind       NodeKind  `json:"kind"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
	Handle     string    `json:"handle,omitempty"`
}

// IsDir reports whether the node is a directory
func (n RemoteNode) IsDir() bool {
	return n.Kind == KindDirectory
}

// DirectoryListing holds the children of one remote directory in the order
// the tool reported them.
type DirectoryListing struct {
	Path      string       `json:"path"`
	Nodes     []RemoteNode `json:"nodes"`
	FetchedAt time.Time    `json:"fetched_at"`
	Stale     bool         `json:"stale"`
	// Skipped counts lines the parser could not understand during the refresh
	// that produced this listing.
	Skipped int `json:"skipped,omitempty"`
}

// Lookup returns the child with the given name
func (l DirectoryListing) Lookup(name string) (RemoteNode, bool) {
	for _, n := range l.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return RemoteNode{}, false
}

// Clone returns a copy whose node slice does not alias the receiver's
func (l DirectoryListing) Clone() DirectoryListing {
	out := l
	out.Nodes = append([]RemoteNode(nil), l.Nodes...)
	return out
}

// CleanPath normalises a remote path to an absolute, slash-separated form
// without a trailing slash. The empty string maps to the root.
func CleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// ParentPath returns the listing key that owns the node at p
func ParentPath(p string) string {
	return path.Dir(CleanPath(p))
}

// BaseName returns the last segment of p
func BaseName(p string) string {
	return path.Base(CleanPath(p))
}

// JoinPath joins a remote directory and a child name
func JoinPath(dir, name string) string {
	return CleanPath(path.Join(CleanPath(dir), name))
}

// Overlaps reports whether a and b are equal or one is an ancestor of the other
func Overlaps(a, b string) bool {
	a, b = CleanPath(a), CleanPath(b)
	return a == b || IsAncestor(a, b) || IsAncestor(b, a)
}

// IsAncestor reports whether anc is a strict ancestor of p
func IsAncestor(anc, p string) bool {
	anc, p = CleanPath(anc), CleanPath(p)
	if anc == p {
		return false
	}
	if anc == "/" {
		return true
	}
	return strings.HasPrefix(p, anc+"/")
}
