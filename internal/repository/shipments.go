package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/cryotrace/internal/analytics"
)

// ShipmentRecordFilter selects picked-up shipments. Empty fields match everything;
// Limit <= 0 means no limit.
type ShipmentRecordFilter struct {
	ShipperID  string
	ManifestID string
	Limit      int
}

type ShipmentRepository interface {
	ListShipmentRecords(ctx context.Context, filter ShipmentRecordFilter) ([]analytics.RawShipmentRecord, error)
}

type shipmentRepository struct {
	pool   DBPool
	logger *slog.Logger
}

func NewShipmentRepository(pool DBPool, logger *slog.Logger) ShipmentRepository {
	return &shipmentRepository{
		pool:   pool,
		logger: logger,
	}
}

const shipmentRecordsSQL = `
SELECT sm.manifest_id, sm.shipper_id,
       sm.origin_contact_name, sm.destination_contact_name,
       concat_ws(', ', NULLIF(lo.city, ''), NULLIF(lo.state, ''), NULLIF(concat_ws(' ', NULLIF(lo.company_name, ''), NULLIF(lo.company_address, '')), '')) AS origin,
       concat_ws(', ', NULLIF(ld.city, ''), NULLIF(ld.state, ''), NULLIF(concat_ws(' ', NULLIF(ld.company_name, ''), NULLIF(ld.company_address, '')), '')) AS destination,
       pe.actual_departure_at, de.actual_receive_time,
       pe.measured_weight_kg, de.received_weight_kg
FROM shipping_manifest sm
JOIN pickup_event pe ON pe.manifest_id = sm.manifest_id
LEFT JOIN dropoff_event de ON de.manifest_id = sm.manifest_id
LEFT JOIN locations lo ON lo.id = sm.origin_location_id
LEFT JOIN locations ld ON ld.id = sm.destination_location_id
WHERE ($1 = '' OR sm.shipper_id = $1)
  AND ($2 = '' OR sm.manifest_id = $2)
ORDER BY pe.actual_departure_at ASC, sm.manifest_id ASC
LIMIT NULLIF($3, 0)`

// ListShipmentRecords returns one record per picked-up manifest. Timestamps
// are rendered with analytics.FormatTimestamp so records from this path and
// the vector index compare equal when they describe the same pickup.
func (r *shipmentRepository) ListShipmentRecords(ctx context.Context, filter ShipmentRecordFilter) ([]analytics.RawShipmentRecord, error) {
	start := time.Now()
	rows, err := r.pool.Query(ctx, shipmentRecordsSQL, filter.ShipperID, filter.ManifestID, filter.Limit)
	if err != nil {
		r.logger.Error("failed to list shipment records", "shipper_id", filter.ShipperID, "error", err)
		return nil, dbError("list shipment records", err)
	}
	defer rows.Close()

	out := make([]analytics.RawShipmentRecord, 0)
	for rows.Next() {
		var (
			rec     analytics.RawShipmentRecord
			pickup  time.Time
			dropoff *time.Time
		)
		if err := rows.Scan(
			&rec.ManifestID, &rec.ShipperID,
			&rec.OriginContact, &rec.DestinationContact,
			&rec.Origin, &rec.Destination,
			&pickup, &dropoff,
			&rec.PickupWeightKg, &rec.DropoffWeightKg,
		); err != nil {
			return nil, dbError("scan shipment record", err)
		}
		rec.PickupTime = analytics.FormatTimestamp(pickup)
		if dropoff != nil {
			rec.DropoffTime = analytics.FormatTimestamp(*dropoff)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("list shipment records", err)
	}

	r.logger.Debug("shipment records listed",
		"shipper_id", filter.ShipperID,
		"count", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
