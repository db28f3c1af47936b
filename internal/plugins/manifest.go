package plugins

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"path"
	"sort"

	"github.com/minio/crc64nvme"
	"github.com/mr-tron/base58"
	"github.com/wolfeidau/themepack/internal/assets"
)

// DefaultManifestName is used when Manifest is given an empty name.
const DefaultManifestName = "manifest.json"

// ManifestDoc maps entries to the URLs a page needs and lists every output.
type ManifestDoc struct {
	Entries map[string]ManifestEntry `json:"entries"`
	Files   []ManifestFile           `json:"files"`
}

type ManifestEntry struct {
	Scripts []string `json:"scripts"`
	Styles  []string `json:"styles,omitempty"`
}

type ManifestFile struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	Bundle   string `json:"bundle,omitempty"`
	Size     int    `json:"size"`
	Checksum string `json:"checksum"`
}

// Manifest adds a JSON manifest of the build outputs. It only reflects hooks
// that ran before it.
func Manifest(name string) assets.Hook {
	if name == "" {
		name = DefaultManifestName
	}

	return assets.Hook{
		Name: "manifest",
		Run: func(ctx context.Context, bc *assets.BuildContext) (*assets.BuildContext, error) {
			b, err := json.MarshalIndent(BuildManifest(bc), "", "  ")
			if err != nil {
				return nil, err
			}
			err = bc.AddOutput(&assets.OutputFile{Path: path.Clean(name), Contents: append(b, '\n'), Kind: assets.KindAsset})
			if err != nil {
				return nil, err
			}
			return bc, nil
		},
	}
}

// BuildManifest describes the outputs currently held by bc.
func BuildManifest(bc *assets.BuildContext) ManifestDoc {
	doc := ManifestDoc{
		Entries: make(map[string]ManifestEntry, len(bc.Entries)),
		Files:   make([]ManifestFile, 0, len(bc.Outputs)),
	}

	for _, e := range bc.Entries {
		entry := ManifestEntry{Scripts: []string{}}
		for _, o := range bc.BundleOutputs(e.Name, assets.KindScript) {
			entry.Scripts = append(entry.Scripts, bc.PublicURL(o.Path))
		}
		for _, o := range bc.BundleOutputs(e.Name, assets.KindStylesheet) {
			entry.Styles = append(entry.Styles, bc.PublicURL(o.Path))
		}
		doc.Entries[e.Name] = entry
	}

	for _, o := range bc.Outputs {
		doc.Files = append(doc.Files, ManifestFile{
			Path:     o.Path,
			Kind:     string(o.Kind),
			Bundle:   o.Bundle,
			Size:     len(o.Contents),
			Checksum: Checksum(o.Contents),
		})
	}
	sort.Slice(doc.Files, func(i, j int) bool { return doc.Files[i].Path < doc.Files[j].Path })

	return doc
}

// Checksum returns the base58 encoded CRC64-NVME of b.
func Checksum(b []byte) string {
	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], crc64nvme.Checksum(b))
	return base58.Encode(sum[:])
}
