package models

import "fmt"

// OperationKind tags the variant carried by an OperationRequest
type OperationKind string

const (
	OpDownload  OperationKind = "download"
	OpUpload    OperationKind = "upload"
	OpDelete    OperationKind = "delete"
	OpRename    OperationKind = "rename"
	OpMove      OperationKind = "move"
	OpMkdir     OperationKind = "mkdir"
	OpMediaInfo OperationKind = "mediainfo"
)

// ParseOperationKind converts a user supplied string into an OperationKind
func ParseOperationKind(s string) (OperationKind, error) {
	switch k := OperationKind(s); k {
	case OpDownload, OpUpload, OpDelete, OpRename, OpMove, OpMkdir, OpMediaInfo:
		return k, nil
	default:
		return "", fmt.Errorf("unknown operation kind %q", s)
	}
}

// Mutating reports whether operations of this kind change the remote tree
func (k OperationKind) Mutating() bool {
	switch k {
	case OpDownload, OpMediaInfo:
		return false
	default:
		return true
	}
}

// OperationRequest is a single user intent handed to the dispatcher.
//
// Field usage per kind:
//   - Download:  Sources (remote), LocalPath (local directory)
//   - Upload:    Sources (local files), Destination (remote directory)
//   - Delete:    Sources (remote)
//   - Rename:    Sources (exactly one remote path), NewName (leaf)
//   - Move:      Sources (remote), Destination (remote directory)
//   - Mkdir:     Sources (remote directories to create)
//   - MediaInfo: Sources (remote)
type OperationRequest struct {
	Kind        OperationKind `json:"kind" binding:"required"`
	Sources     []string      `json:"sources"`
	Destination string        `json:"destination,omitempty"`
	NewName     string        `json:"new_name,omitempty"`
	LocalPath   string        `json:"local_path,omitempty"`
	// Merge asks downloads of directories to merge into an existing local folder
	Merge bool `json:"merge,omitempty"`
}
