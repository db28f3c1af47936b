// Package plugins provides the lifecycle hooks a descriptor can enable.
package plugins

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/themepack/internal/assets"
)

// ErrUnsafeClean is returned when the output directory is the project root or
// lies outside it.
var ErrUnsafeClean = errors.New("refusing to clean output directory")

// Clean empties the output directory before a build. The directory itself is
// kept so servers watching it keep their handle.
func Clean() assets.Hook {
	return assets.Hook{
		Name: "clean",
		Run: func(ctx context.Context, bc *assets.BuildContext) (*assets.BuildContext, error) {
			return bc, CleanDir(bc.Root, bc.OutputDir)
		},
	}
}

// CleanDir removes every entry inside outDir. A missing directory is not an error.
func CleanDir(root, outDir string) error {
	rel, err := filepath.Rel(root, outDir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s is not inside %s", ErrUnsafeClean, outDir, root)
	}

	entries, err := os.ReadDir(outDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read output dir: %w", err)
	}

	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(outDir, e.Name())); err != nil {
			return fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}
	}

	log.Debug().Str("dir", outDir).Int("removed", len(entries)).Msg("Cleaned output directory")

	return nil
}
