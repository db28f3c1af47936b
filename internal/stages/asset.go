package stages

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DefaultAssetNames is the name template used when the asset stage has none.
const DefaultAssetNames = "assets/[name]_[hash].[ext]"

var (
	// ErrInvalidTemplate is returned for name templates the bundler cannot honour.
	ErrInvalidTemplate = errors.New("invalid name template")

	placeholderRE = regexp.MustCompile(`\[[a-z]+\]`)
)

// AssetOptions configures the asset stage.
type AssetOptions struct {
	// Name controls the emitted file name, e.g. "assets/[name]_[hash].[ext]".
	Name string `yaml:"name"`
}

// Asset emits a file verbatim under a content-hashed name and replaces the
// reference to it with the public URL.
type Asset struct {
	names string
}

// NewAsset validates template and converts it to the bundler's naming syntax.
func NewAsset(template string) (*Asset, error) {
	names, err := AssetNames(template)
	if err != nil {
		return nil, err
	}
	return &Asset{names: names}, nil
}

// Names returns the bundler asset name template.
func (s *Asset) Names() string { return s.names }

func (s *Asset) Name() string { return "asset" }

func (s *Asset) Accepts(f Format) bool { return f == FormatSource }

func (s *Asset) Produces() Format { return FormatAsset }

func (s *Asset) Transform(ctx context.Context, a *Artifact) (*Artifact, error) {
	return a.With(FormatAsset, a.Contents), nil
}

// AssetNames converts a "[name]_[hash].[ext]" style template to the bundler's
// form. The extension is always appended by the bundler so a trailing
// ".[ext]" is dropped; [contenthash] is accepted as an alias of [hash].
func AssetNames(template string) (string, error) {
	if template == "" {
		template = DefaultAssetNames
	}

	names := strings.ReplaceAll(template, "[contenthash]", "[hash]")
	names = strings.TrimSuffix(names, ".[ext]")

	for _, p := range placeholderRE.FindAllString(names, -1) {
		switch p {
		case "[name]", "[hash]", "[dir]", "[ext]":
		default:
			return "", fmt.Errorf("%w: unknown placeholder %s in %q", ErrInvalidTemplate, p, template)
		}
	}

	if !strings.Contains(names, "[name]") && !strings.Contains(names, "[hash]") {
		return "", fmt.Errorf("%w: %q needs [name] or [hash]", ErrInvalidTemplate, template)
	}

	return names, nil
}
