package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/cryotrace/constants"
	"github.com/joseph-ayodele/cryotrace/internal/entity"
	"github.com/joseph-ayodele/cryotrace/internal/services/events"
)

// EventRecorder is satisfied by *events.Service.
type EventRecorder interface {
	Record(ctx context.Context, req events.Request) (*entity.WeightEvent, error)
}

// EventLoader replays weighings from a CSV with one row per manifest carrying
// both the pickup and the dropoff measurement. Either half may be blank.
type EventLoader struct {
	recorder EventRecorder
	// PhotoDir resolves relative paths in the photo column. Empty disables photos.
	PhotoDir string
	logger   *slog.Logger
}

func NewEventLoader(recorder EventRecorder, photoDir string, logger *slog.Logger) *EventLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventLoader{recorder: recorder, PhotoDir: photoDir, logger: logger}
}

// Load records every pickup and dropoff found. Created counts events, not rows.
func (l *EventLoader) Load(ctx context.Context, src io.Reader) (LoadStats, error) {
	return l.load(ctx, src, l.PhotoDir)
}

func (l *EventLoader) load(ctx context.Context, src io.Reader, photoDir string) (LoadStats, error) {
	var stats LoadStats
	t, err := newTable(src)
	if err != nil {
		return stats, err
	}
	if !t.has("manifest_id") || !(t.has("pickup_weight", "pickup_time") || t.has("dropoff_weight", "dropoff_time")) {
		return stats, errors.New("event csv must have manifest_id and pickup_weight/pickup_time or dropoff_weight/dropoff_time columns")
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		r, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read event csv: %w", err)
		}
		stats.Rows++

		reqs, err := parseEventRow(r)
		if err != nil {
			l.logger.Warn("ingest.events.invalid_row", "line", r.line, "error", err)
			stats.fail(r.line, err)
			continue
		}
		if len(reqs) == 0 {
			stats.Skipped++
			continue
		}
		for i := range reqs {
			if err := l.record(ctx, reqs[i], photoDir, r.get("photo")); err != nil {
				stats.fail(r.line, err)
				continue
			}
			stats.Created++
		}
	}

	l.logger.Info("ingest.events.ok",
		"rows", stats.Rows,
		"events", stats.Created,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	return stats, nil
}

func (l *EventLoader) record(ctx context.Context, req events.Request, photoDir, photo string) error {
	// the photo column belongs to the pickup weighing
	if photo != "" && photoDir != "" && req.Type == constants.EventPickup {
		path := photo
		if !filepath.IsAbs(path) {
			path = filepath.Join(photoDir, path)
		}
		f, err := os.Open(path)
		if err != nil {
			l.logger.Warn("ingest.events.photo_missing", "manifest_id", req.ManifestID, "path", path, "error", err)
		} else {
			defer f.Close()
			req.Photo = &events.Photo{Filename: filepath.Base(path), Content: f}
		}
	}
	_, err := l.recorder.Record(ctx, req)
	return err
}

func parseEventRow(r row) ([]events.Request, error) {
	manifestID := r.get("manifest_id")
	if manifestID == "" {
		return nil, errors.New("missing required fields: manifest_id")
	}

	var out []events.Request
	pickup, err := parseHalf(r, manifestID, constants.EventPickup, "pickup_weight", "pickup_time", "pickup_user_id")
	if err != nil {
		return nil, err
	}
	if pickup != nil {
		out = append(out, *pickup)
	}
	dropoff, err := parseHalf(r, manifestID, constants.EventDropoff, "dropoff_weight", "dropoff_time", "dropoff_user_id")
	if err != nil {
		return nil, err
	}
	if dropoff != nil {
		if name := r.get("destination_contact_name"); name != "" {
			dropoff.Notes = "received by " + name
		}
		out = append(out, *dropoff)
	}
	return out, nil
}

// parseHalf returns nil when both weight and time are blank.
func parseHalf(r row, manifestID string, kind constants.EventType, weightCol, timeCol, userCol string) (*events.Request, error) {
	if r.get(weightCol) == "" && r.get(timeCol) == "" {
		return nil, nil
	}
	if missing := r.missing(weightCol, timeCol); len(missing) > 0 {
		return nil, fmt.Errorf("%s is incomplete, missing %v", kind, missing)
	}
	weight, err := r.float(weightCol)
	if err != nil {
		return nil, err
	}
	at, err := r.time(timeCol)
	if err != nil {
		return nil, err
	}
	user, err := r.int64(userCol)
	if err != nil {
		return nil, err
	}
	return &events.Request{
		Type:       kind,
		ManifestID: manifestID,
		Weight:     *weight,
		WeightUnit: r.get("weight_unit"),
		EventTime:  *at,
		MeasuredAt: *at,
		UserID:     user,
	}, nil
}
