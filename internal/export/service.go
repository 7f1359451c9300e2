// Package export renders normalized shipments as spreadsheets.
package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/cryotrace/internal/analytics"
	"github.com/joseph-ayodele/cryotrace/internal/entity"
	"github.com/joseph-ayodele/cryotrace/internal/repository"
)

const sheet = "Shipments"

type RecordSource interface {
	ListShipmentRecords(ctx context.Context, filter repository.ShipmentRecordFilter) ([]analytics.RawShipmentRecord, error)
}

// Filter narrows an export. A zero Filter exports every shipment.
type Filter struct {
	ShipperID string
	// From and To bound the pickup date, both inclusive.
	From *time.Time
	To   *time.Time
}

type Service struct {
	records  RecordSource
	analyzer *analytics.Analyzer
	logger   *slog.Logger
}

func NewService(records RecordSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{records: records, analyzer: analytics.NewAnalyzer(logger), logger: logger}
}

// ExportShipmentsXLSX returns a workbook with one row per shipment, ordered
// as the repository returns them.
func (s *Service) ExportShipmentsXLSX(ctx context.Context, filter Filter) ([]byte, error) {
	start := time.Now()

	raw, err := s.records.ListShipmentRecords(ctx, repository.ShipmentRecordFilter{ShipperID: filter.ShipperID})
	if err != nil {
		return nil, fmt.Errorf("query shipments: %w", err)
	}
	shipments, dropped := s.analyzer.Normalize(raw)
	shipments = inWindow(shipments, filter.From, filter.To)

	buf, err := WriteShipments(shipments)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.xlsx.ok",
		"shipper_id", filter.ShipperID,
		"rows", len(shipments),
		"dropped", dropped,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

var headers = []string{
	"Manifest",
	"Shipper",
	"Pickup Time",
	"Origin",
	"Pickup Contact",
	"Delivery Time",
	"Destination",
	"Receiver",
	"Pickup Weight (kg)",
	"Dropoff Weight (kg)",
	"Transit (h:mm)",
	"Evaporation (kg/h)",
	"Evaporated (L)",
}

// WriteShipments renders shipments into a single-sheet workbook.
func WriteShipments(shipments []entity.Shipment) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	// rename the default sheet rather than leaving an empty Sheet1 behind
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, err
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(sheet, "A1", last, style)
	}

	for i, sh := range shipments {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, sh.ShipmentID)
		write(2, sh.ShipperID)
		write(3, sh.PickupTime.UTC().Format("2006-01-02 15:04"))
		write(4, sh.Origin)
		write(5, sh.PickupContact)
		if sh.DeliveryTime != nil {
			write(6, sh.DeliveryTime.UTC().Format("2006-01-02 15:04"))
		}
		write(7, sh.Destination)
		write(8, sh.Receiver)
		if sh.PickupWeightKg != nil {
			write(9, *sh.PickupWeightKg)
		}
		if sh.DropoffWeightKg != nil {
			write(10, *sh.DropoffWeightKg)
		}
		if sh.TransitTimeHours != nil {
			write(11, *sh.TransitTimeHours)
		}
		if sh.EvaporationRateKgPerHour != nil {
			write(12, *sh.EvaporationRateKgPerHour)
		}
		if liters, ok := analytics.ShipmentVolumeLiters(sh); ok {
			write(13, liters)
		}
	}

	_ = f.SetColWidth(sheet, "A", "B", 14)
	_ = f.SetColWidth(sheet, "C", "C", 18)
	_ = f.SetColWidth(sheet, "D", "E", 22)
	_ = f.SetColWidth(sheet, "F", "F", 18)
	_ = f.SetColWidth(sheet, "G", "H", 22)
	_ = f.SetColWidth(sheet, "I", "M", 16)
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf, nil
}

// inWindow keeps shipments picked up on or between the dates of from and to.
func inWindow(shipments []entity.Shipment, from, to *time.Time) []entity.Shipment {
	if from == nil && to == nil {
		return shipments
	}
	out := shipments[:0:0]
	for _, s := range shipments {
		day := dateOf(s.PickupTime)
		if from != nil && day.Before(dateOf(*from)) {
			continue
		}
		if to != nil && day.After(dateOf(*to)) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
