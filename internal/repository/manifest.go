package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/joseph-ayodele/cryotrace/constants"
	"github.com/joseph-ayodele/cryotrace/internal/common"
	"github.com/joseph-ayodele/cryotrace/internal/entity"
)

// ManifestListFilter narrows and orders a manifest listing. An empty ShipperID lists every shipper.
type ManifestListFilter struct {
	ShipperID string
	OrderBy   constants.ManifestOrder
}

type ManifestRepository interface {
	List(ctx context.Context, filter ManifestListFilter) ([]*entity.Manifest, error)
	ListIDs(ctx context.Context) ([]string, error)
	Get(ctx context.Context, manifestID string) (*entity.Manifest, error)
	// Create inserts a manifest. It returns false without error when the id already exists.
	Create(ctx context.Context, m *entity.Manifest) (bool, error)
}

type manifestRepository struct {
	pool   DBPool
	logger *slog.Logger
}

func NewManifestRepository(pool DBPool, logger *slog.Logger) ManifestRepository {
	return &manifestRepository{
		pool:   pool,
		logger: logger,
	}
}

const manifestSelect = `
SELECT sm.manifest_id, sm.shipper_id,
       sm.origin_location_id, concat_ws(', ', NULLIF(lo.city, ''), NULLIF(lo.state, '')) AS origin,
       sm.origin_contact_name,
       sm.destination_location_id, concat_ws(', ', NULLIF(ld.city, ''), NULLIF(ld.state, '')) AS destination,
       sm.destination_contact_name,
       sm.scheduled_ship_time, sm.expected_receive_time,
       sm.projected_weight_kg, sm.temperature_c, sm.notes, sm.created_by_user_id,
       (pe.id IS NOT NULL) AS has_pickup, (de.id IS NOT NULL) AS has_dropoff,
       sm.created_at
FROM shipping_manifest sm
LEFT JOIN locations lo ON lo.id = sm.origin_location_id
LEFT JOIN locations ld ON ld.id = sm.destination_location_id
LEFT JOIN pickup_event pe ON pe.manifest_id = sm.manifest_id
LEFT JOIN dropoff_event de ON de.manifest_id = sm.manifest_id`

var manifestOrderClause = map[constants.ManifestOrder]string{
	constants.OrderByDate:       " ORDER BY sm.scheduled_ship_time DESC NULLS LAST, sm.manifest_id DESC",
	constants.OrderByManifestID: " ORDER BY sm.manifest_id DESC",
	constants.OrderByLocation:   " ORDER BY origin ASC, sm.manifest_id DESC",
	constants.OrderByNone:       " ORDER BY sm.manifest_id DESC",
}

func (r *manifestRepository) List(ctx context.Context, filter ManifestListFilter) ([]*entity.Manifest, error) {
	order, ok := manifestOrderClause[filter.OrderBy]
	if !ok {
		order = manifestOrderClause[constants.OrderByNone]
	}
	q := manifestSelect + ` WHERE ($1 = '' OR sm.shipper_id = $1)` + order

	rows, err := r.pool.Query(ctx, q, filter.ShipperID)
	if err != nil {
		r.logger.Error("failed to list manifests", "shipper_id", filter.ShipperID, "error", err)
		return nil, dbError("list manifests", err)
	}
	defer rows.Close()

	out := make([]*entity.Manifest, 0)
	for rows.Next() {
		m, err := scanManifest(rows)
		if err != nil {
			return nil, dbError("scan manifest", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("list manifests", err)
	}
	return out, nil
}

func (r *manifestRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT manifest_id FROM shipping_manifest ORDER BY manifest_id DESC`)
	if err != nil {
		return nil, dbError("list manifest ids", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dbError("scan manifest id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *manifestRepository) Get(ctx context.Context, manifestID string) (*entity.Manifest, error) {
	row := r.pool.QueryRow(ctx, manifestSelect+` WHERE sm.manifest_id = $1`, manifestID)
	m, err := scanManifest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NotFoundError(fmt.Sprintf("manifest %s not found", manifestID))
		}
		r.logger.Error("failed to get manifest", "manifest_id", manifestID, "error", err)
		return nil, dbError("get manifest", err)
	}
	return m, nil
}

func (r *manifestRepository) Create(ctx context.Context, m *entity.Manifest) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO shipping_manifest (
			manifest_id, shipper_id, origin_location_id, origin_contact_name,
			destination_location_id, destination_contact_name, scheduled_ship_time,
			expected_receive_time, projected_weight_kg, temperature_c, notes,
			created_by_user_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, COALESCE($13, now()))
		ON CONFLICT (manifest_id) DO NOTHING`,
		m.ManifestID, m.ShipperID, m.OriginLocationID, m.OriginContactName,
		m.DestinationLocationID, m.DestinationContactName, m.ScheduledShipTime,
		m.ExpectedReceiveTime, m.ProjectedWeightKg, m.TemperatureC, m.Notes,
		m.CreatedByUserID, nullTime(m.CreatedAt),
	)
	if err != nil {
		r.logger.Error("failed to create manifest", "manifest_id", m.ManifestID, "error", err)
		return false, dbError("create manifest", err)
	}
	created := tag.RowsAffected() == 1
	if !created {
		r.logger.Info("skipping duplicate manifest", "manifest_id", m.ManifestID)
	}
	return created, nil
}

func scanManifest(row pgx.Row) (*entity.Manifest, error) {
	var (
		m                     entity.Manifest
		hasPickup, hasDropoff bool
	)
	err := row.Scan(
		&m.ManifestID, &m.ShipperID,
		&m.OriginLocationID, &m.OriginLocation, &m.OriginContactName,
		&m.DestinationLocationID, &m.DestinationLocation, &m.DestinationContactName,
		&m.ScheduledShipTime, &m.ExpectedReceiveTime,
		&m.ProjectedWeightKg, &m.TemperatureC, &m.Notes, &m.CreatedByUserID,
		&hasPickup, &hasDropoff,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Status = string(constants.StatusFor(hasPickup, hasDropoff))
	return &m, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
