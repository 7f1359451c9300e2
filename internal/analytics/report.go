package analytics

import (
	"log/slog"
	"time"

	"github.com/joseph-ayodele/cryotrace/internal/entity"
)

// Report is the outcome of one pass over retrieved records.
type Report struct {
	Shipments []entity.Shipment
	Text      string
	// Retrieved counts records before deduplication; Dropped counts records
	// rejected by normalization.
	Retrieved int
	Unique    int
	Dropped   int
}

// Analyzer runs dedupe, normalize, filter and format in that order.
type Analyzer struct {
	normalizer *Normalizer
	logger     *slog.Logger
}

func NewAnalyzer(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{normalizer: NewNormalizer(logger), logger: logger}
}

// Normalize dedupes records and normalizes the survivors without filtering.
func (a *Analyzer) Normalize(records []RawShipmentRecord) ([]entity.Shipment, int) {
	unique := Dedupe(records)
	out := make([]entity.Shipment, 0, len(unique))
	for _, r := range unique {
		if s, ok := a.normalizer.Normalize(r); ok {
			out = append(out, s)
		}
	}
	return out, len(unique) - len(out)
}

// Analyze builds the prompt-ready report for shipperID. It fails only on a
// blank shipper id; an empty Report is a valid outcome.
func (a *Analyzer) Analyze(records []RawShipmentRecord, shipperID string, cutoff *time.Time, dir Direction) (Report, error) {
	if err := ValidateShipperID(shipperID); err != nil {
		return Report{}, err
	}
	shipments, dropped := a.Normalize(records)
	filtered, err := Filter(shipments, shipperID, cutoff, dir)
	if err != nil {
		return Report{}, err
	}

	rep := Report{
		Shipments: filtered,
		Text:      FormatForPrompt(filtered),
		Retrieved: len(records),
		Unique:    len(shipments) + dropped,
		Dropped:   dropped,
	}
	a.logger.Debug("analytics.analyze.ok",
		"shipper_id", shipperID,
		"direction", dir.String(),
		"retrieved", rep.Retrieved,
		"unique", rep.Unique,
		"dropped", rep.Dropped,
		"kept", len(filtered),
	)
	return rep, nil
}
