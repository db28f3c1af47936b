package assets

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/minio/crc64nvme"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/themepack/internal/telemetry"
)

// emit writes every output below the output directory and returns the paths
// that changed. Outputs whose bytes already match the file on disk are left
// untouched so repeated builds do not churn modification times.
func emit(ctx context.Context, bc *BuildContext) ([]string, error) {
	outputs := bc.Outputs
	sort.Slice(outputs, func(i, j int) bool { return outputs[i].Path < outputs[j].Path })

	for i := 1; i < len(outputs); i++ {
		if outputs[i].Path == outputs[i-1].Path {
			return nil, writeError(&os.PathError{Op: "emit", Path: outputs[i].Path, Err: os.ErrExist})
		}
	}

	m := telemetry.GetMetrics()

	var written []string
	for _, o := range outputs {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		target := filepath.Join(bc.OutputDir, filepath.FromSlash(o.Path))

		if unchanged(target, o.Contents) {
			m.FilesSkippedTotal.Add(ctx, 1)
			log.Debug().Str("file", o.Path).Msg("Unchanged file")
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return written, writeError(err)
		}

		// #nosec G306 - build outputs are public web assets
		if err := os.WriteFile(target, o.Contents, 0o644); err != nil {
			return written, writeError(err)
		}

		m.FilesWrittenTotal.Add(ctx, 1)
		m.BytesWrittenTotal.Add(ctx, int64(len(o.Contents)))
		log.Info().Str("file", o.Path).Int("bytes", len(o.Contents)).Msg("Built file")

		written = append(written, o.Path)
	}

	return written, nil
}

func unchanged(target string, contents []byte) bool {
	info, err := os.Stat(target)
	if err != nil || !info.Mode().IsRegular() || info.Size() != int64(len(contents)) {
		return false
	}

	existing, err := os.ReadFile(target)
	if err != nil {
		return false
	}

	return crc64nvme.Checksum(existing) == crc64nvme.Checksum(contents)
}
