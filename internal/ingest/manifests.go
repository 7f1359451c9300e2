package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/joseph-ayodele/cryotrace/internal/entity"
)

var manifestColumns = []string{
	"manifest_id", "shipper_id", "origin_location_id", "origin_contact_name",
	"destination_location_id", "destination_contact_name", "scheduled_ship_time",
	"expected_receive_time", "projected_weight_kg", "temperature_c", "notes",
	"created_by_user_id", "created_at",
}

var requiredManifestColumns = lo.Without(manifestColumns, "notes")

type ManifestWriter interface {
	Create(ctx context.Context, m *entity.Manifest) (bool, error)
}

type ShipperWriter interface {
	UpsertShipper(ctx context.Context, shipperID, name string) error
}

// ManifestLoader inserts manifests from a CSV export. Rows whose manifest id
// already exists are skipped.
type ManifestLoader struct {
	manifests ManifestWriter
	shippers  ShipperWriter
	logger    *slog.Logger
}

func NewManifestLoader(manifests ManifestWriter, shippers ShipperWriter, logger *slog.Logger) *ManifestLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &ManifestLoader{manifests: manifests, shippers: shippers, logger: logger}
}

func (l *ManifestLoader) Load(ctx context.Context, src io.Reader) (LoadStats, error) {
	var stats LoadStats
	t, err := newTable(src)
	if err != nil {
		return stats, err
	}
	if !t.has(requiredManifestColumns...) {
		return stats, fmt.Errorf("manifest csv must have columns %s", strings.Join(requiredManifestColumns, ", "))
	}

	seenShippers := map[string]struct{}{}
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		r, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read manifest csv: %w", err)
		}
		stats.Rows++

		m, err := parseManifest(r)
		if err != nil {
			l.logger.Warn("ingest.manifest.invalid_row", "line", r.line, "error", err)
			stats.fail(r.line, err)
			continue
		}
		if _, ok := seenShippers[m.ShipperID]; !ok {
			if err := l.shippers.UpsertShipper(ctx, m.ShipperID, ""); err != nil {
				stats.fail(r.line, err)
				continue
			}
			seenShippers[m.ShipperID] = struct{}{}
		}
		created, err := l.manifests.Create(ctx, m)
		switch {
		case err != nil:
			l.logger.Error("ingest.manifest.create_failed", "manifest_id", m.ManifestID, "error", err)
			stats.fail(r.line, err)
		case created:
			stats.Created++
		default:
			stats.Skipped++
		}
	}

	l.logger.Info("ingest.manifests.ok",
		"rows", stats.Rows,
		"created", stats.Created,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	return stats, nil
}

func parseManifest(r row) (*entity.Manifest, error) {
	if missing := r.missing(requiredManifestColumns...); len(missing) > 0 {
		return nil, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	m := &entity.Manifest{
		ManifestID:             r.get("manifest_id"),
		ShipperID:              NormalizeShipperID(r.get("shipper_id")),
		OriginContactName:      r.get("origin_contact_name"),
		DestinationContactName: r.get("destination_contact_name"),
	}
	if n := r.get("notes"); n != "" {
		m.Notes = &n
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	var err error
	m.OriginLocationID, err = r.int64("origin_location_id")
	collect(err)
	m.DestinationLocationID, err = r.int64("destination_location_id")
	collect(err)
	m.CreatedByUserID, err = r.int64("created_by_user_id")
	collect(err)
	m.ScheduledShipTime, err = r.time("scheduled_ship_time")
	collect(err)
	m.ExpectedReceiveTime, err = r.time("expected_receive_time")
	collect(err)
	m.ProjectedWeightKg, err = r.float("projected_weight_kg")
	collect(err)
	m.TemperatureC, err = r.float("temperature_c")
	collect(err)
	createdAt, err := r.time("created_at")
	collect(err)
	if createdAt != nil {
		m.CreatedAt = *createdAt
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return m, nil
}

// NormalizeShipperID zero-pads numeric shipper ids to four digits ("7" -> "0007").
func NormalizeShipperID(id string) string {
	id = strings.TrimSpace(id)
	n, err := strconv.Atoi(strings.TrimSuffix(id, ".0"))
	if err != nil || n < 0 {
		return id
	}
	return fmt.Sprintf("%04d", n)
}
