package plugins

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"runtime"
	"slices"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/themepack/internal/assets"
	"golang.org/x/sync/errgroup"
)

const (
	Gzip = "gzip"
	Zstd = "zstd"
)

// MinCompressSize is the smallest output worth precompressing.
const MinCompressSize = 1024

var compressible = []string{".js", ".css", ".map", ".svg", ".json", ".html", ".txt"}

var suffixes = map[string]string{
	Gzip: ".gz",
	Zstd: ".zst",
}

type compressed struct {
	path     string
	contents []byte
}

// Precompress adds a sibling per encoding for every text output of at least
// MinCompressSize bytes, e.g. main.bundle.js.gz. Compression is deterministic
// so unchanged outputs produce unchanged siblings.
func Precompress(encodings ...string) assets.Hook {
	return assets.Hook{
		Name: "precompress",
		Run: func(ctx context.Context, bc *assets.BuildContext) (*assets.BuildContext, error) {
			for _, enc := range encodings {
				if _, ok := suffixes[enc]; !ok {
					return nil, fmt.Errorf("unsupported encoding %q", enc)
				}
			}

			var sources []*assets.OutputFile
			for _, o := range bc.Outputs {
				if len(o.Contents) >= MinCompressSize && slices.Contains(compressible, path.Ext(o.Path)) {
					sources = append(sources, o)
				}
			}

			zenc, err := zstd.NewWriter(nil,
				zstd.WithEncoderLevel(zstd.SpeedBestCompression),
				zstd.WithEncoderConcurrency(1),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to create encoder: %w", err)
			}
			defer zenc.Close()

			results := make([]*compressed, len(sources)*len(encodings))

			g, ctx := errgroup.WithContext(ctx)
			g.SetLimit(runtime.GOMAXPROCS(0))

			for i, src := range sources {
				for j, enc := range encodings {
					g.Go(func() error {
						if err := ctx.Err(); err != nil {
							return err
						}

						var out []byte
						switch enc {
						case Gzip:
							b, err := gzipBytes(src.Contents)
							if err != nil {
								return fmt.Errorf("failed to gzip %s: %w", src.Path, err)
							}
							out = b
						case Zstd:
							out = zenc.EncodeAll(src.Contents, make([]byte, 0, len(src.Contents)/2))
						}

						if len(out) >= len(src.Contents) {
							return nil
						}
						results[i*len(encodings)+j] = &compressed{path: src.Path + suffixes[enc], contents: out}
						return nil
					})
				}
			}

			if err := g.Wait(); err != nil {
				return nil, err
			}

			added := 0
			for _, r := range results {
				if r == nil {
					continue
				}
				if err := bc.AddOutput(&assets.OutputFile{Path: r.path, Contents: r.contents, Kind: assets.KindAsset}); err != nil {
					return nil, err
				}
				added++
			}

			log.Debug().Int("sources", len(sources)).Int("added", added).Strs("encodings", encodings).Msg("Precompressed outputs")

			return bc, nil
		},
	}
}

func gzipBytes(src []byte) ([]byte, error) {
	buf := new(bytes.Buffer)

	gz, err := gzip.NewWriterLevel(buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := gz.Write(src); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
