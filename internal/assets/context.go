package assets

import (
	"context"
	"fmt"
	"path"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// OutputKind classifies an emitted file.
type OutputKind string

const (
	KindScript     OutputKind = "script"
	KindStylesheet OutputKind = "stylesheet"
	KindSourceMap  OutputKind = "sourcemap"
	KindAsset      OutputKind = "asset"
)

func kindOf(p string) OutputKind {
	switch path.Ext(p) {
	case ".map":
		return KindSourceMap
	case ".js":
		return KindScript
	case ".css":
		return KindStylesheet
	default:
		return KindAsset
	}
}

// OutputFile is a pending or written output.
type OutputFile struct {
	// Path is slash separated and relative to the output directory.
	Path     string
	Contents []byte
	Kind     OutputKind
	// Bundle names the entry this output belongs to, empty for shared assets.
	Bundle string
}

// BuildContext carries the state of one build through the lifecycle hooks.
type BuildContext struct {
	ID      string
	Started time.Time
	// Root and OutputDir are absolute.
	Root       string
	OutputDir  string
	PublicPath string
	// Entries are ordered by name and carry absolute paths.
	Entries []Entry
	// Outputs is empty during BeforeBuild hooks.
	Outputs  []*OutputFile
	Metadata *BuildMetadata

	mu     sync.Mutex
	inputs map[string]struct{}
	// unresolved lists files whose stages failed on a missing import.
	unresolved []string
}

func newBuildContext(root, outDir string, cfg Config) *BuildContext {
	entries := slices.Clone(cfg.Entries)
	for i := range entries {
		entries[i].Path = cfg.resolve(root, entries[i].Path)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	return &BuildContext{
		ID:         uuid.NewString(),
		Started:    time.Now(),
		Root:       root,
		OutputDir:  outDir,
		PublicPath: cfg.Output.PublicPath,
		Entries:    entries,
		inputs:     make(map[string]struct{}),
	}
}

// Output returns the output at the given relative path.
func (bc *BuildContext) Output(p string) (*OutputFile, bool) {
	for _, o := range bc.Outputs {
		if o.Path == p {
			return o, true
		}
	}
	return nil, false
}

// AddOutput appends a new output, refusing to shadow an existing one.
func (bc *BuildContext) AddOutput(o *OutputFile) error {
	if _, ok := bc.Output(o.Path); ok {
		return fmt.Errorf("%w: duplicate output %s", ErrWrite, o.Path)
	}
	bc.Outputs = append(bc.Outputs, o)
	return nil
}

// Rename moves an output to a new relative path.
func (bc *BuildContext) Rename(from, to string) error {
	o, ok := bc.Output(from)
	if !ok {
		return fmt.Errorf("no output %s", from)
	}
	if _, exists := bc.Output(to); exists && from != to {
		return fmt.Errorf("%w: duplicate output %s", ErrWrite, to)
	}
	o.Path = to
	return nil
}

// BundleOutputs returns the outputs of a bundle of the given kind, ordered by path.
func (bc *BuildContext) BundleOutputs(bundle string, kind OutputKind) []*OutputFile {
	var out []*OutputFile
	for _, o := range bc.Outputs {
		if o.Bundle == bundle && o.Kind == kind {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// PublicURL returns the URL an output is served from.
func (bc *BuildContext) PublicURL(p string) string {
	prefix := bc.PublicPath
	if prefix == "" {
		prefix = "/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + p
}

func (bc *BuildContext) addInputs(paths ...string) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	for _, p := range paths {
		bc.inputs[p] = struct{}{}
	}
}

func (bc *BuildContext) addUnresolved(path string) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.unresolved = append(bc.unresolved, path)
}

func (bc *BuildContext) hasUnresolved() bool {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return len(bc.unresolved) > 0
}

// Inputs returns every file read by a stage rule during the build, sorted.
func (bc *BuildContext) Inputs() []string {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	out := make([]string, 0, len(bc.inputs))
	for p := range bc.inputs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// HookFunc may mutate or replace the build context. Returning a nil context
// keeps the current one.
type HookFunc func(ctx context.Context, bc *BuildContext) (*BuildContext, error)

// Hook is a named lifecycle extension point.
type Hook struct {
	Name string
	Run  HookFunc
}

func runHooks(ctx context.Context, phase string, hooks []Hook, bc *BuildContext) (*BuildContext, error) {
	for _, h := range hooks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := h.Run(ctx, bc)
		if err != nil {
			return nil, fmt.Errorf("%s hook %s: %w", phase, h.Name, err)
		}
		if next != nil {
			bc = next
		}
	}
	return bc, nil
}
