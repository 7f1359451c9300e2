package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Kind identifies which loader a CSV belongs to.
type Kind string

const (
	KindUnknown   Kind = ""
	KindManifests Kind = "manifests"
	KindEvents    Kind = "events"
)

var ErrUnknownFormat = errors.New("unrecognized csv layout")

// DetectKind reads the header line of a CSV. Manifest exports carry a
// shipper_id column; weighing exports carry pickup or dropoff weights.
func DetectKind(header string) Kind {
	cols := map[string]struct{}{}
	for _, c := range strings.Split(header, ",") {
		cols[normalizeHeader(strings.Trim(c, "\" \r\n"))] = struct{}{}
	}
	has := func(name string) bool { _, ok := cols[name]; return ok }
	switch {
	case !has("manifest_id"):
		return KindUnknown
	case has("shipper_id"):
		return KindManifests
	case has("pickup_weight") || has("dropoff_weight"):
		return KindEvents
	default:
		return KindUnknown
	}
}

// Importer routes CSV files to the matching loader.
type Importer struct {
	Manifests *ManifestLoader
	Events    *EventLoader
	logger    *slog.Logger
}

func NewImporter(manifests *ManifestLoader, events *EventLoader, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{Manifests: manifests, Events: events, logger: logger}
}

// ImportFile loads path with the loader its header selects.
func (i *Importer) ImportFile(ctx context.Context, path string) (Kind, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return KindUnknown, LoadStats{}, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	header, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return KindUnknown, LoadStats{}, fmt.Errorf("read %s: %w", path, err)
	}
	kind := DetectKind(header)
	src := io.MultiReader(strings.NewReader(header), br)

	log := i.logger.With("path", path, "kind", kind)
	log.Info("ingest.file.start")

	var stats LoadStats
	switch {
	case kind == KindManifests && i.Manifests != nil:
		stats, err = i.Manifests.Load(ctx, src)
	case kind == KindEvents && i.Events != nil:
		photoDir := i.Events.PhotoDir
		if photoDir == "" {
			photoDir = filepath.Dir(path)
		}
		stats, err = i.Events.load(ctx, src, photoDir)
	default:
		err = fmt.Errorf("%s: %w", filepath.Base(path), ErrUnknownFormat)
	}
	if err != nil {
		log.Error("ingest.file.failed", "error", err)
		return kind, stats, err
	}
	log.Info("ingest.file.ok", "created", stats.Created, "failed", stats.Failed)
	return kind, stats, nil
}
