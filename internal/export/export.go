// Package export writes the full knowledge base to a compressed
// archive and reads it back. Archives are zstd-compressed JSON so they
// stay diffable after decompression and cheap to ship around.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"

	"finsight/internal/errors"
	"finsight/internal/kb"
	"finsight/internal/logging"
)

// ArchiveVersion is bumped on any incompatible archive layout change.
const ArchiveVersion = 1

// Archive is the on-disk payload: every registry plus the load report
// that produced it.
type Archive struct {
	Version       int              `json:"version"`
	ExportedAt    time.Time        `json:"exportedAt"`
	Archetypes    []kb.Archetype   `json:"archetypes"`
	Keywords      []kb.KeywordEntry `json:"keywords"`
	StrongSignals []kb.StrongSignal `json:"strongSignals,omitempty"`
	Deviations    []kb.Deviation   `json:"deviations"`
	Problems      []kb.Problem     `json:"problems"`
	LoadReport    kb.LoadReport    `json:"loadReport"`
}

// WriteArchive exports the knowledge base to path.
func WriteArchive(path string, k *kb.KnowledgeBase, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.Discard()
	}

	archive := Archive{
		Version:       ArchiveVersion,
		ExportedAt:    time.Now().UTC(),
		Archetypes:    k.Archetypes,
		Keywords:      k.Keywords,
		StrongSignals: k.StrongSignals,
		Deviations:    k.Deviations,
		Problems:      k.Problems,
		LoadReport:    k.Report,
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.New(errors.ExportFailed, fmt.Sprintf("cannot create %s", path), err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return errors.New(errors.ExportFailed, "cannot initialize compressor", err)
	}

	enc := json.NewEncoder(zw)
	if err := enc.Encode(archive); err != nil {
		zw.Close()
		return errors.New(errors.ExportFailed, "cannot encode archive", err)
	}
	if err := zw.Close(); err != nil {
		return errors.New(errors.ExportFailed, "cannot finalize archive", err)
	}

	logger.Info("Knowledge base exported", map[string]interface{}{
		"path":       path,
		"archetypes": len(archive.Archetypes),
		"deviations": len(archive.Deviations),
		"problems":   len(archive.Problems),
	})

	return nil
}

// ReadArchive loads an exported archive from path.
func ReadArchive(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(errors.ExportFailed, fmt.Sprintf("cannot open %s", path), err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, errors.New(errors.ExportFailed, "cannot initialize decompressor", err)
	}
	defer zr.Close()

	var archive Archive
	if err := json.NewDecoder(zr).Decode(&archive); err != nil {
		return nil, errors.New(errors.ExportFailed, "cannot decode archive", err)
	}
	if archive.Version != ArchiveVersion {
		return nil, errors.New(errors.ExportFailed,
			fmt.Sprintf("unsupported archive version %d", archive.Version), nil)
	}

	return &archive, nil
}
