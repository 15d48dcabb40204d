// Package megacmd holds every assumption about the MEGAcmd command line:
// argument layout, output formats and error reporting. When an installed
// tool version drifts, this is the only package that needs to change.
package megacmd

import (
	"github.com/denysvitali/megacmd-runtime-go/internal/models"
)

// Invocation is a subcommand plus its arguments, without the executable prefix
type Invocation struct {
	Command string
	Args    []string
}

// List requests a long listing with handles and ISO timestamps
func List(path string) Invocation {
	return Invocation{"ls", []string{"-l", "--show-handles", "--time-format=ISO6081_WITH_TIME", path}}
}

// Remove deletes one node; directories need -r
func Remove(path string, dir bool) Invocation {
	args := []string{"-f"}
	if dir {
		args = append(args, "-r")
	}
	return Invocation{"rm", append(args, path)}
}

// Move relocates src into the directory dst
func Move(src, dst string) Invocation {
	return Invocation{"mv", []string{src, dst}}
}

// Rename is a move inside the same parent
func Rename(path, newName string) Invocation {
	return Invocation{"mv", []string{path, models.JoinPath(models.ParentPath(path), newName)}}
}

// Mkdir creates a directory and any missing parents
func Mkdir(path string) Invocation {
	return Invocation{"mkdir", []string{"-p", path}}
}

// Put queues local files for upload into remoteDir, creating it if needed
func Put(locals []string, remoteDir string) Invocation {
	args := append([]string{"-q", "-c"}, locals...)
	return Invocation{"put", append(args, remoteDir)}
}

// Get queues a download of remote into the local directory
func Get(remote, local string, merge bool) Invocation {
	args := []string{"-q"}
	if merge {
		args = append(args, "-m")
	}
	return Invocation{"get", append(args, remote, local)}
}

// MediaInfo queries resolution and duration of a media file
func MediaInfo(path string) Invocation {
	return Invocation{"mediainfo", []string{path}}
}

// Transfers lists queued and active transfers with unambiguous columns
func Transfers() Invocation {
	return Invocation{"transfers", []string{"--col-separator=|", "--path-display-size=10000", "--limit=1000"}}
}

// TransferAction is a control verb accepted by the transfers subcommand
type TransferAction string

const (
	TransferCancel TransferAction = "-c"
	TransferPause  TransferAction = "-p"
	TransferResume TransferAction = "-r"
)

// ControlTransfer cancels, pauses or resumes the transfer with the given tag
func ControlTransfer(action TransferAction, id string) Invocation {
	return Invocation{"transfers", []string{string(action), id}}
}

// DiskFree reports storage usage in bytes
func DiskFree() Invocation {
	return Invocation{"df", nil}
}

// WhoAmI reports the logged in account
func WhoAmI() Invocation {
	return Invocation{"whoami", nil}
}

// Batchable reports whether the tool accepts several paths of this kind in
// one invocation without losing per-path error attribution.
func Batchable(kind models.OperationKind) bool {
	return kind == models.OpUpload
}
