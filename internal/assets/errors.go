package assets

import (
	"errors"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/wolfeidau/themepack/internal/stages"
)

var (
	// ErrResolution means a referenced file or module could not be located.
	ErrResolution = errors.New("resolution error")
	// ErrTransform means a stage could not process its input.
	ErrTransform = errors.New("transform error")
	// ErrWrite means an output could not be written.
	ErrWrite = errors.New("write error")

	// ErrNoEntries indicates the descriptor declares no entry points.
	ErrNoEntries = errors.New("no entry points configured")
	// ErrEntryNotFound indicates an entry file does not exist.
	ErrEntryNotFound = errors.New("entry point not found")
	// ErrDuplicateEntry indicates two entries share a name.
	ErrDuplicateEntry = errors.New("duplicate entry name")
	// ErrInvalidOutput indicates the output spec cannot produce one file per bundle.
	ErrInvalidOutput = errors.New("invalid output spec")
	// ErrConflictingAssetNames indicates asset rules disagree on the name template.
	ErrConflictingAssetNames = errors.New("conflicting asset name templates")
	// ErrNotBuilt is returned when build output is requested before a build.
	ErrNotBuilt = errors.New("assets not built yet, call Build() first")
)

// BuildError aborts a build. Kind is one of ErrResolution, ErrTransform or
// ErrWrite so callers can match it with errors.Is.
type BuildError struct {
	Kind     error
	Messages []string
	Err      error
}

func (e *BuildError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	for _, m := range e.Messages {
		b.WriteString("\n  ")
		b.WriteString(m)
	}
	return b.String()
}

func (e *BuildError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func writeError(err error) *BuildError {
	return &BuildError{Kind: ErrWrite, Err: err}
}

// newBuildError classifies bundler diagnostics. Resolution failures win over
// transform failures when both are present.
func newBuildError(msgs []api.Message) *BuildError {
	e := &BuildError{Kind: ErrTransform}
	for _, msg := range msgs {
		if isResolution(msg) {
			e.Kind = ErrResolution
		}
		e.Messages = append(e.Messages, stages.FormatMessage(msg))
	}
	return e
}

func isResolution(msg api.Message) bool {
	return strings.HasPrefix(msg.Text, "Could not resolve") ||
		strings.HasPrefix(msg.Text, "Could not read from file")
}
