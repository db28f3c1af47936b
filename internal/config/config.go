// Package config loads the themepack.yaml build descriptor.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"github.com/wolfeidau/themepack/internal/stages"
	"gopkg.in/yaml.v3"
)

// DefaultFilename is the descriptor looked up in the project root.
const DefaultFilename = "themepack.yaml"

var (
	ErrInvalidConfig = errors.New("invalid config")
)

// Config is the on-disk build descriptor.
type Config struct {
	// Root is the directory containing the descriptor. It is not read from YAML.
	Root string `yaml:"-"`

	Entry    map[string]string `yaml:"entry"`
	Output   Output            `yaml:"output"`
	Devtool  string            `yaml:"devtool"`
	Target   string            `yaml:"target"`
	Minify   bool              `yaml:"minify"`
	Metafile string            `yaml:"metafile,omitempty"`
	Rules    []Rule            `yaml:"rules"`
	Plugins  Plugins           `yaml:"plugins"`
	Sass     Sass              `yaml:"sass"`
}

type Output struct {
	Path       string `yaml:"path"`
	PublicPath string `yaml:"publicPath"`
	Filename   string `yaml:"filename"`
}

// Rule routes files matching Test, and not Exclude, through the stages in Use
// applied in the order listed.
type Rule struct {
	Name    string     `yaml:"name"`
	Test    string     `yaml:"test"`
	Exclude string     `yaml:"exclude,omitempty"`
	Use     []StageRef `yaml:"use"`
}

// StageRef names a stage and carries its raw options. A bare string is
// accepted as shorthand for a stage without options.
type StageRef struct {
	Stage   string    `yaml:"stage"`
	Options yaml.Node `yaml:"options,omitempty"`
}

func (s *StageRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		s.Stage = value.Value
		return nil
	}

	type plain StageRef
	return value.Decode((*plain)(s))
}

type Plugins struct {
	Clean       bool        `yaml:"clean"`
	ExtractCSS  *ExtractCSS `yaml:"extractCss,omitempty"`
	Precompress []string    `yaml:"precompress,omitempty"`
	Manifest    string      `yaml:"manifest,omitempty"`
}

type ExtractCSS struct {
	Filename string `yaml:"filename"`
}

// Sass configures the Dart Sass process shared by every sass stage.
type Sass struct {
	Binary  string        `yaml:"binary,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Load reads the descriptor at path. Fields left out of the file take the
// values of Default.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(b, filepath.Dir(abs))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, falling back to Default for the directory of path
// when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		abs, err := filepath.Abs(filepath.Dir(path))
		if err != nil {
			return nil, err
		}
		return Default(abs), nil
	}
	return cfg, err
}

// Parse decodes a descriptor whose paths are relative to root.
func Parse(b []byte, root string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cfg.Root = root
	cfg.applyDefaults(Default(root))

	return &cfg, nil
}

func (c *Config) applyDefaults(d *Config) {
	if len(c.Entry) == 0 {
		c.Entry = d.Entry
	}
	if c.Output.Path == "" {
		c.Output.Path = d.Output.Path
	}
	if c.Output.Filename == "" {
		c.Output.Filename = d.Output.Filename
	}
	if c.Devtool == "" {
		c.Devtool = d.Devtool
	}
	if c.Target == "" {
		c.Target = d.Target
	}
	if len(c.Rules) == 0 {
		c.Rules = d.Rules
	}
}

// EntryNames returns the entry names in order.
func (c *Config) EntryNames() []string {
	names := make([]string, 0, len(c.Entry))
	for name := range c.Entry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

var (
	devtools  = []string{"source-map", "inline-source-map", "hidden-source-map", "none"}
	encodings = []string{"gzip", "zstd"}
)

// Validate reports every problem found in the descriptor.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Entry) == 0 {
		errs = append(errs, errors.New("at least one entry is required"))
	}
	for _, name := range c.EntryNames() {
		if c.Entry[name] == "" {
			errs = append(errs, fmt.Errorf("entry %s: path is required", name))
		}
	}

	if c.Output.Path == "" {
		errs = append(errs, errors.New("output.path is required"))
	}
	if !slices.Contains(devtools, c.Devtool) {
		errs = append(errs, fmt.Errorf("devtool %q must be one of %v", c.Devtool, devtools))
	}
	if _, err := stages.ParseTarget(c.Target); err != nil {
		errs = append(errs, err)
	}

	known := stages.Names()
	for i, r := range c.Rules {
		label := r.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}
		if _, err := regexp.Compile(r.Test); err != nil || r.Test == "" {
			errs = append(errs, fmt.Errorf("rule %s: invalid test %q", label, r.Test))
		}
		if _, err := regexp.Compile(r.Exclude); err != nil {
			errs = append(errs, fmt.Errorf("rule %s: invalid exclude %q", label, r.Exclude))
		}
		if len(r.Use) == 0 {
			errs = append(errs, fmt.Errorf("rule %s: use needs at least one stage", label))
		}
		for _, s := range r.Use {
			if !slices.Contains(known, s.Stage) {
				errs = append(errs, fmt.Errorf("rule %s: unknown stage %q", label, s.Stage))
			}
		}
	}

	for _, enc := range c.Plugins.Precompress {
		if !slices.Contains(encodings, enc) {
			errs = append(errs, fmt.Errorf("precompress: unsupported encoding %q", enc))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
