// Package indexer keeps the vector index in step with the relational store.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/cryotrace/internal/analytics"
	"github.com/joseph-ayodele/cryotrace/internal/async"
	"github.com/joseph-ayodele/cryotrace/internal/entity"
	"github.com/joseph-ayodele/cryotrace/internal/llm"
	"github.com/joseph-ayodele/cryotrace/internal/repository"
	"github.com/joseph-ayodele/cryotrace/internal/vector"
)

const defaultBatchSize = 64

type RecordSource interface {
	ListShipmentRecords(ctx context.Context, filter repository.ShipmentRecordFilter) ([]analytics.RawShipmentRecord, error)
}

type Store interface {
	Upsert(ctx context.Context, docs []vector.Document) error
	Reset(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// Service builds one vector document per picked-up manifest. Without an
// embedder documents are stored text-only and served by keyword search.
type Service struct {
	records    RecordSource
	store      Store
	embedder   llm.Embedder
	normalizer *analytics.Normalizer
	batchSize  int
	logger     *slog.Logger
}

func NewService(records RecordSource, store Store, embedder llm.Embedder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		records:    records,
		store:      store,
		embedder:   embedder,
		normalizer: analytics.NewNormalizer(logger),
		batchSize:  defaultBatchSize,
		logger:     logger,
	}
}

// BuildSummary renders the embedded text of a shipment.
func BuildSummary(s entity.Shipment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Manifest %s. Shipper %s was picked up on %s", s.ShipmentID, s.ShipperID, summaryTime(s.PickupTime))
	if s.Origin != "" {
		fmt.Fprintf(&b, " from %s", s.Origin)
	}
	if s.PickupContact != "" {
		fmt.Fprintf(&b, " by %s", s.PickupContact)
	}

	if s.DeliveryTime == nil {
		b.WriteString(" and has not been dropped off yet.")
		return b.String()
	}

	fmt.Fprintf(&b, " and dropped off on %s", summaryTime(*s.DeliveryTime))
	if s.Destination != "" {
		fmt.Fprintf(&b, " at %s", s.Destination)
	}
	if s.Receiver != "" {
		fmt.Fprintf(&b, " received by %s", s.Receiver)
	}
	if s.TransitSeconds != nil {
		fmt.Fprintf(&b, ", in transit for %.2f hours", float64(*s.TransitSeconds)/3600)
	}
	b.WriteString(".")
	if s.EvaporationRateKgPerHour != nil {
		fmt.Fprintf(&b, " Evaporation rate was %.4f kg/hour.", *s.EvaporationRateKgPerHour)
	}
	return b.String()
}

func summaryTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04")
}

// IndexAll upserts documents for every picked-up manifest and returns how many
// were written.
func (s *Service) IndexAll(ctx context.Context) (int, error) {
	start := time.Now()
	records, err := s.records.ListShipmentRecords(ctx, repository.ShipmentRecordFilter{})
	if err != nil {
		return 0, fmt.Errorf("load shipment records: %w", err)
	}
	n, err := s.index(ctx, records)
	if err != nil {
		return n, err
	}
	s.logger.Info("indexer.index_all.ok",
		"records", len(records),
		"indexed", n,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return n, nil
}

// IndexManifest refreshes the document of one manifest. A manifest without a
// pickup has nothing to index and is not an error.
func (s *Service) IndexManifest(ctx context.Context, manifestID string) error {
	records, err := s.records.ListShipmentRecords(ctx, repository.ShipmentRecordFilter{ManifestID: manifestID})
	if err != nil {
		return fmt.Errorf("load manifest %s: %w", manifestID, err)
	}
	n, err := s.index(ctx, records)
	if err != nil {
		return err
	}
	s.logger.Info("indexer.index_manifest.ok", "manifest_id", manifestID, "indexed", n)
	return nil
}

// Reindex clears the index and reloads it from the relational store.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	start := time.Now()
	before, _ := s.store.Count(ctx)
	if err := s.store.Reset(ctx); err != nil {
		return 0, fmt.Errorf("reset index: %w", err)
	}
	n, err := s.IndexAll(ctx)
	if err != nil {
		s.logger.Error("indexer.reindex.failed", "error", err)
		return n, err
	}
	s.logger.Info("indexer.reindex.ok",
		"deleted", before,
		"indexed", n,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return n, nil
}

// Handle lets the service serve as the async queue's job handler.
func (s *Service) Handle(ctx context.Context, job async.Job) error {
	if job.ManifestID == "" {
		_, err := s.IndexAll(ctx)
		return err
	}
	return s.IndexManifest(ctx, job.ManifestID)
}

func (s *Service) index(ctx context.Context, records []analytics.RawShipmentRecord) (int, error) {
	docs := make([]vector.Document, 0, len(records))
	for _, raw := range records {
		sh, ok := s.normalizer.Normalize(raw)
		if !ok {
			continue
		}
		summary := BuildSummary(sh)
		raw.SummaryText = summary
		meta := raw.Metadata()
		meta["summary_text"] = summary
		docs = append(docs, vector.Document{
			ID:         sh.ShipmentID,
			ManifestID: sh.ShipmentID,
			ShipperID:  sh.ShipperID,
			PickupTime: sh.PickupTime,
			Text:       summary,
			Metadata:   meta,
		})
	}

	written := 0
	for from := 0; from < len(docs); from += s.batchSize {
		to := min(from+s.batchSize, len(docs))
		batch := docs[from:to]
		if err := s.embed(ctx, batch); err != nil {
			return written, err
		}
		if err := s.store.Upsert(ctx, batch); err != nil {
			return written, fmt.Errorf("upsert documents: %w", err)
		}
		written += len(batch)
	}
	return written, nil
}

func (s *Service) embed(ctx context.Context, batch []vector.Document) error {
	if s.embedder == nil {
		return nil
	}
	texts := make([]string, len(batch))
	for i, d := range batch {
		texts[i] = d.Text
	}
	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed summaries: %w", err)
	}
	if len(vecs) != len(batch) {
		return fmt.Errorf("embed summaries: got %d vectors for %d documents", len(vecs), len(batch))
	}
	for i := range batch {
		batch[i].Embedding = vecs[i]
	}
	return nil
}
