package megacmd

import (
	"strings"

	"github.com/denysvitali/megacmd-runtime-go/internal/models"
	"github.com/denysvitali/megacmd-runtime-go/pkg/executor"
)

// MEGAcmd error codes. Processes report them as negative numbers, which the
// OS truncates to 8 bits (e.g. -53 becomes 203).
const (
	codeArgs         = -51
	codeNotFound     = -53
	codeNotPermitted = -56
	codeNotLoggedIn  = -57
	codeExists       = -64
)

var exitKinds = map[int]models.ErrorKind{
	codeArgs:         models.ErrInvalidRequest,
	codeNotFound:     models.ErrNotFound,
	codeNotPermitted: models.ErrPermissionDenied,
	codeNotLoggedIn:  models.ErrPermissionDenied,
	codeExists:       models.ErrConflict,
	// some builds exit with the positive code
	-codeNotFound: models.ErrNotFound,
}

var errorPatterns = []struct {
	kind    models.ErrorKind
	needles []string
}{
	{models.ErrNotFound, []string{"couldn't find", "could not find", "not found", "no such file", "does not exist", "invalid path"}},
	{models.ErrConflict, []string{"already exists", "name collision", "exists in destination"}},
	{models.ErrPermissionDenied, []string{"access denied", "permission denied", "not permitted", "not allowed", "read-only", "not logged in", "needs logging in"}},
	{models.ErrNetworkUnavailable, []string{"unable to connect", "connection refused", "failed to connect", "server is not running", "cannot connect", "network is unreachable", "no connection"}},
	{models.ErrInvalidRequest, []string{"wrong arguments", "usage:", "invalid argument"}},
}

// ParseError maps diagnostic text to an ErrorKind
func ParseError(text string) models.ErrorKind {
	lower := strings.ToLower(text)
	for _, p := range errorPatterns {
		for _, needle := range p.needles {
			if strings.Contains(lower, needle) {
				return p.kind
			}
		}
	}
	return models.ErrUnknown
}

// ClassifyExit maps an exit code and diagnostics to an ErrorKind. Known
// MEGAcmd codes win over text matching.
func ClassifyExit(exitCode int, diagnostic string) models.ErrorKind {
	if kind, ok := exitKinds[exitCode]; ok {
		return kind
	}
	if exitCode > 127 {
		if kind, ok := exitKinds[exitCode-256]; ok {
			return kind
		}
	}
	return ParseError(diagnostic)
}

// ResultError converts a finished invocation into an error, or nil when the
// process exited zero.
func ResultError(inv Invocation, res *executor.Result, paths ...string) *models.OpError {
	if res == nil || res.ExitCode == 0 {
		return nil
	}
	diag := strings.TrimSpace(res.Stderr)
	if diag == "" {
		diag = strings.TrimSpace(res.Stdout)
	}
	return &models.OpError{
		Kind:       ClassifyExit(res.ExitCode, diag),
		Op:         inv.Command,
		Paths:      paths,
		Diagnostic: diag,
		ExitCode:   res.ExitCode,
	}
}

// IsAlreadyExists reports whether a failed mkdir only hit an existing directory
func IsAlreadyExists(err *models.OpError) bool {
	return err != nil && err.Kind == models.ErrConflict
}
