// Package stages defines the transform stages a stylesheet, script or asset
// passes through before it is handed to the bundler.
//
// Stages are composed left to right: the first stage in a chain runs first and
// its output feeds the next one. Every stage declares the formats it accepts and
// the format it produces, so a chain that cannot work is rejected when it is
// built rather than halfway through a build.
package stages

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies the representation an artifact is in between stages.
type Format string

const (
	// FormatSource is the raw file as read from disk.
	FormatSource Format = "source"
	// FormatScript is JavaScript ready for bundling.
	FormatScript Format = "script"
	// FormatStylesheet is plain CSS ready for bundling.
	FormatStylesheet Format = "stylesheet"
	// FormatAsset is a binary file emitted under a hashed name.
	FormatAsset Format = "asset"
)

// Terminal reports whether the bundler can consume the format directly.
func (f Format) Terminal() bool {
	switch f {
	case FormatScript, FormatStylesheet, FormatAsset:
		return true
	}
	return false
}

// Artifact is the unit of work passed between stages.
type Artifact struct {
	// Path is the absolute path of the original source file.
	Path string
	// Contents holds the current representation.
	Contents []byte
	Format   Format
	// SourceMap is a v3 source map for Contents, if a stage produced one.
	SourceMap []byte
	// ResolveDir is the directory relative imports and url() references
	// in Contents are resolved against.
	ResolveDir string
	// Dependencies lists every file read to produce Contents, Path included.
	Dependencies []string
}

// NewArtifact wraps raw file contents read from path.
func NewArtifact(path string, contents []byte) *Artifact {
	return &Artifact{
		Path:         path,
		Contents:     contents,
		Format:       FormatSource,
		ResolveDir:   filepath.Dir(path),
		Dependencies: []string{path},
	}
}

// With returns a copy of the artifact carrying new contents in format f.
// The source map is dropped; stages that keep one set it on the copy.
func (a *Artifact) With(f Format, contents []byte) *Artifact {
	next := *a
	next.Format = f
	next.Contents = contents
	next.SourceMap = nil
	next.Dependencies = append([]string(nil), a.Dependencies...)
	return &next
}

// Ext returns the lower-cased file extension of the artifact path.
func (a *Artifact) Ext() string {
	return strings.ToLower(filepath.Ext(a.Path))
}

// Stage is a single transform step.
type Stage interface {
	Name() string
	Accepts(f Format) bool
	Produces() Format
	Transform(ctx context.Context, a *Artifact) (*Artifact, error)
}

// Error records which stage failed on which file.
type Error struct {
	Stage string
	Path  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
