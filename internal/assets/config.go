package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// Devtool selects how source maps are produced.
type Devtool string

const (
	// DevtoolSourceMap writes a .map next to each bundle and links it.
	DevtoolSourceMap Devtool = "source-map"
	// DevtoolInline embeds the map in the bundle.
	DevtoolInline Devtool = "inline-source-map"
	// DevtoolHidden writes the .map without linking it.
	DevtoolHidden Devtool = "hidden-source-map"
	// DevtoolNone disables source maps.
	DevtoolNone Devtool = "none"
)

func (d Devtool) sourceMap() (api.SourceMap, error) {
	switch d {
	case DevtoolSourceMap, "":
		return api.SourceMapLinked, nil
	case DevtoolInline:
		return api.SourceMapInline, nil
	case DevtoolHidden:
		return api.SourceMapExternal, nil
	case DevtoolNone:
		return api.SourceMapNone, nil
	default:
		return api.SourceMapNone, fmt.Errorf("unsupported devtool %q", d)
	}
}

// Entry is a named build root.
type Entry struct {
	Name string
	// Path is the entry source file, relative to Config.Root or absolute.
	Path string
}

// OutputSpec controls where and under which names bundles are written.
type OutputSpec struct {
	// Dir is the output directory, relative to Config.Root or absolute.
	Dir string
	// PublicPath prefixes asset URLs referenced from bundles.
	PublicPath string
	// Filename is the bundle name template, e.g. "[name].bundle.js" or
	// "[name].[contenthash].js".
	Filename string
}

type Config struct {
	// Root is the project directory entries and the output dir are relative to.
	Root    string
	Entries []Entry
	Output  OutputSpec
	Devtool Devtool
	// Target is the syntax level bundles are lowered to.
	Target api.Target
	// Whether to minify output
	Minify bool
	// Rules are evaluated in order, first match wins.
	Rules       []Rule
	BeforeBuild []Hook
	AfterBuild  []Hook
	// MetafilePath, relative to the output dir, receives the bundler metafile
	// when set.
	MetafilePath string
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		Root: ".",
		Output: OutputSpec{
			Dir:      "dist",
			Filename: "[name].bundle.js",
		},
		Devtool: DevtoolSourceMap,
		Target:  api.ES2015,
	}
}

// RootDir returns the absolute project root.
func (c Config) RootDir() (string, error) {
	return filepath.Abs(c.Root)
}

// OutputDir returns the absolute output directory.
func (c Config) OutputDir() (string, error) {
	root, err := c.RootDir()
	if err != nil {
		return "", err
	}
	return c.resolve(root, c.Output.Dir), nil
}

func (c Config) resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

// Validate checks everything that can be checked before a build starts.
func (c Config) Validate() error {
	root, err := c.RootDir()
	if err != nil {
		return err
	}

	var errs []error

	if len(c.Entries) == 0 {
		errs = append(errs, ErrNoEntries)
	}

	seen := make(map[string]bool, len(c.Entries))
	for _, e := range c.Entries {
		switch {
		case e.Name == "" || strings.ContainsAny(e.Name, `/\`):
			errs = append(errs, fmt.Errorf("invalid entry name %q", e.Name))
		case seen[e.Name]:
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateEntry, e.Name))
		}
		seen[e.Name] = true

		info, err := os.Stat(c.resolve(root, e.Path))
		if err != nil || info.IsDir() {
			errs = append(errs, fmt.Errorf("%w: %s (%s)", ErrEntryNotFound, e.Name, e.Path))
		}
	}

	if c.Output.Dir == "" {
		errs = append(errs, fmt.Errorf("%w: output dir is required", ErrInvalidOutput))
	}
	if _, _, err := entryNames(c.Output.Filename); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Devtool.sourceMap(); err != nil {
		errs = append(errs, err)
	}
	if _, err := assetNames(c.Rules); err != nil {
		errs = append(errs, err)
	}
	for i, r := range c.Rules {
		if r.Test == nil || r.Stage == nil {
			errs = append(errs, fmt.Errorf("rule %d (%s) needs a test and a stage", i, r.Name))
		}
	}

	return errors.Join(errs...)
}

// entryNames converts the filename template into the bundler's entry name
// template. When the template has no hash the bundle name is substituted up
// front and returned as static so the output path is fixed.
func entryNames(filename string) (template string, static bool, err error) {
	if filename == "" {
		filename = "[name].bundle.js"
	}
	if !strings.Contains(filename, "[name]") {
		return "", false, fmt.Errorf("%w: filename %q must contain [name]", ErrInvalidOutput, filename)
	}
	if !strings.HasSuffix(filename, ".js") {
		return "", false, fmt.Errorf("%w: filename %q must end in .js", ErrInvalidOutput, filename)
	}

	template = strings.TrimSuffix(filename, ".js")
	template = strings.ReplaceAll(template, "[contenthash]", "[hash]")
	template = strings.ReplaceAll(template, "[chunkhash]", "[hash]")

	return template, !strings.Contains(template, "[hash]"), nil
}
