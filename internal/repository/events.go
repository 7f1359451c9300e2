package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/joseph-ayodele/cryotrace/constants"
	"github.com/joseph-ayodele/cryotrace/internal/common"
	"github.com/joseph-ayodele/cryotrace/internal/entity"
)

const pgForeignKeyViolation = "23503"

type EventRepository interface {
	// Record upserts the pickup or dropoff measurement of a manifest and fills
	// in the stored id and creation time.
	Record(ctx context.Context, ev *entity.WeightEvent) error
}

type eventRepository struct {
	pool   DBPool
	logger *slog.Logger
}

func NewEventRepository(pool DBPool, logger *slog.Logger) EventRepository {
	return &eventRepository{
		pool:   pool,
		logger: logger,
	}
}

const upsertPickupSQL = `
INSERT INTO pickup_event (
	manifest_id, measured_weight_kg, weight_measured_at, actual_departure_at,
	driver_user_id, image_path, notes
) VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (manifest_id) DO UPDATE SET
	measured_weight_kg = EXCLUDED.measured_weight_kg,
	weight_measured_at = EXCLUDED.weight_measured_at,
	actual_departure_at = EXCLUDED.actual_departure_at,
	driver_user_id = EXCLUDED.driver_user_id,
	image_path = COALESCE(EXCLUDED.image_path, pickup_event.image_path),
	notes = EXCLUDED.notes
RETURNING id, created_at`

const upsertDropoffSQL = `
INSERT INTO dropoff_event (
	manifest_id, received_weight_kg, weight_measured_at, actual_receive_time,
	received_by_user_id, image_path, notes
) VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (manifest_id) DO UPDATE SET
	received_weight_kg = EXCLUDED.received_weight_kg,
	weight_measured_at = EXCLUDED.weight_measured_at,
	actual_receive_time = EXCLUDED.actual_receive_time,
	received_by_user_id = EXCLUDED.received_by_user_id,
	image_path = COALESCE(EXCLUDED.image_path, dropoff_event.image_path),
	notes = EXCLUDED.notes
RETURNING id, created_at`

func (r *eventRepository) Record(ctx context.Context, ev *entity.WeightEvent) error {
	var q string
	switch ev.Type {
	case constants.EventPickup:
		q = upsertPickupSQL
	case constants.EventDropoff:
		q = upsertDropoffSQL
	default:
		return common.InvalidInputErrorf("unknown event type %q", ev.Type)
	}

	err := r.pool.QueryRow(ctx, q,
		ev.ManifestID, ev.WeightKg, ev.MeasuredAt, ev.EventTime,
		ev.UserID, ev.ImagePath, ev.Notes,
	).Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			if pgErr.ConstraintName == "" || isManifestConstraint(pgErr.ConstraintName) {
				return common.NotFoundError(fmt.Sprintf("manifest %s not found", ev.ManifestID))
			}
			return common.NotFoundError(fmt.Sprintf("user referenced by %s event not found", ev.Type))
		}
		r.logger.Error("failed to record event", "type", ev.Type, "manifest_id", ev.ManifestID, "error", err)
		return dbError("record event", err)
	}
	r.logger.Info("event recorded", "type", ev.Type, "manifest_id", ev.ManifestID, "id", ev.ID)
	return nil
}

func isManifestConstraint(name string) bool {
	return name == "pickup_event_manifest_id_fkey" || name == "dropoff_event_manifest_id_fkey"
}
