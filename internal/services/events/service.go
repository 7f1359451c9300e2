// Package events records pickup and dropoff weighings.
package events

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/cryotrace/constants"
	"github.com/joseph-ayodele/cryotrace/internal/async"
	"github.com/joseph-ayodele/cryotrace/internal/common"
	"github.com/joseph-ayodele/cryotrace/internal/entity"
)

type Recorder interface {
	Record(ctx context.Context, ev *entity.WeightEvent) error
}

type Publisher interface {
	PublishEventRecorded(ctx context.Context, ev *entity.WeightEvent, correlationID string) error
}

// Photo is an optional upload attached to a request.
type Photo struct {
	Filename string
	Content  io.Reader
}

type Request struct {
	Type       constants.EventType
	ManifestID string
	Weight     float64
	WeightUnit string
	// EventTime defaults to now; MeasuredAt defaults to EventTime.
	EventTime  time.Time
	MeasuredAt time.Time
	UserID     *int64
	Notes      string
	Photo      *Photo
}

type Service struct {
	repo      Recorder
	photos    *PhotoStore
	queue     async.Queue
	publisher Publisher
	now       func() time.Time
	logger    *slog.Logger
}

// NewService wires the recorder. photos, queue and publisher are optional.
func NewService(repo Recorder, photos *PhotoStore, queue async.Queue, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		photos:    photos,
		queue:     queue,
		publisher: publisher,
		now:       time.Now,
		logger:    logger,
	}
}

// Record validates and stores an event, then schedules the manifest for
// reindexing and announces it. Follow-up failures are logged, not returned.
func (s *Service) Record(ctx context.Context, req Request) (*entity.WeightEvent, error) {
	req.ManifestID = strings.TrimSpace(req.ManifestID)

	v := common.NewValidator()
	v.Field("manifest_id", req.ManifestID, common.Required, common.Identifier, common.MaxLength(64))
	v.Field("weight", req.Weight, common.PositiveWeight)
	v.Field("notes", req.Notes, common.MaxLength(2000))
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	if req.Type != constants.EventPickup && req.Type != constants.EventDropoff {
		return nil, common.InvalidInputErrorf("unknown event type %q", req.Type)
	}
	unit, ok := constants.ParseWeightUnit(req.WeightUnit)
	if !ok {
		return nil, common.InvalidInputErrorf("weight_type must be kg or lbs (got %q)", req.WeightUnit)
	}

	eventTime := req.EventTime
	if eventTime.IsZero() {
		eventTime = s.now()
	}
	measuredAt := req.MeasuredAt
	if measuredAt.IsZero() {
		measuredAt = eventTime
	}

	ev := &entity.WeightEvent{
		Type:       req.Type,
		ManifestID: req.ManifestID,
		WeightKg:   unit.ToKg(req.Weight),
		MeasuredAt: measuredAt.UTC(),
		EventTime:  eventTime.UTC(),
		UserID:     req.UserID,
	}
	if n := strings.TrimSpace(req.Notes); n != "" {
		ev.Notes = &n
	}

	if req.Photo != nil && req.Photo.Content != nil {
		if s.photos == nil {
			return nil, common.InvalidInputError("photo uploads are disabled")
		}
		path, err := s.photos.Save(req.Type, req.ManifestID, req.Photo.Filename, req.Photo.Content)
		if err != nil {
			s.logger.Error("events.photo.save_failed", "manifest_id", req.ManifestID, "error", err)
			return nil, err
		}
		ev.ImagePath = &path
	}

	if err := s.repo.Record(ctx, ev); err != nil {
		return nil, err
	}
	s.logger.Info("events.record.ok",
		"type", ev.Type,
		"manifest_id", ev.ManifestID,
		"weight_kg", ev.WeightKg,
		"unit", unit,
	)

	s.afterRecord(ctx, ev)
	return ev, nil
}

func (s *Service) afterRecord(ctx context.Context, ev *entity.WeightEvent) {
	rid := common.RequestIDFromContext(ctx)
	if s.queue != nil {
		err := s.queue.Enqueue(ctx, async.Job{
			ManifestID:  ev.ManifestID,
			Reason:      "event:" + strings.ToLower(string(ev.Type)),
			SubmittedAt: s.now(),
			TraceID:     rid,
		})
		if err != nil {
			s.logger.Warn("events.reindex.enqueue_failed", "manifest_id", ev.ManifestID, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishEventRecorded(ctx, ev, rid); err != nil {
			s.logger.Warn("events.publish_failed", "manifest_id", ev.ManifestID, "error", err)
		}
	}
}
