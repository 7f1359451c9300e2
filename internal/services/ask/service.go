// Package ask answers natural-language questions about shipments from SQL
// and vector retrieval combined.
package ask

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/cryotrace/internal/analytics"
	"github.com/joseph-ayodele/cryotrace/internal/common"
	"github.com/joseph-ayodele/cryotrace/internal/entity"
	"github.com/joseph-ayodele/cryotrace/internal/llm"
	"github.com/joseph-ayodele/cryotrace/internal/repository"
	"github.com/joseph-ayodele/cryotrace/internal/vector"
)

// NoRecordsAnswer is returned without calling the LLM when nothing matches.
const NoRecordsAnswer = "No relevant shipment records were found."

const (
	defaultTopK     = 5
	defaultSQLLimit = 500
	maxQuestionLen  = 2000
)

type RecordSource interface {
	ListShipmentRecords(ctx context.Context, filter repository.ShipmentRecordFilter) ([]analytics.RawShipmentRecord, error)
}

type VectorSearcher interface {
	Hybrid(ctx context.Context, query string, embedding []float32, w vector.Where, limit int) ([]vector.Hit, error)
}

type Request struct {
	ShipperID string
	Question  string
}

// Answer is the outcome of Ask. Shipments are the records the answer was
// grounded on, in input order.
type Answer struct {
	Answer     string
	Shipments  []entity.Shipment
	Cutoff     *time.Time
	Direction  analytics.Direction
	SQLHits    int
	VectorHits int
	Dropped    int
}

type Service struct {
	records   RecordSource
	vectors   VectorSearcher
	embedder  llm.Embedder
	completer llm.Completer
	analyzer  *analytics.Analyzer
	parser    *analytics.CutoffParser
	topK      int
	sqlLimit  int
	logger    *slog.Logger
}

type Option func(*Service)

func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

func WithSQLLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sqlLimit = n
		}
	}
}

// WithCutoffParser replaces the wall-clock parser, mostly for tests.
func WithCutoffParser(p *analytics.CutoffParser) Option {
	return func(s *Service) {
		if p != nil {
			s.parser = p
		}
	}
}

// NewService wires the collaborators. vectors, embedder and completer may be
// nil: retrieval then runs SQL-only and Ask fails with an upstream error.
func NewService(records RecordSource, vectors VectorSearcher, embedder llm.Embedder, completer llm.Completer, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		records:   records,
		vectors:   vectors,
		embedder:  embedder,
		completer: completer,
		analyzer:  analytics.NewAnalyzer(logger),
		parser:    analytics.NewCutoffParser(),
		topK:      defaultTopK,
		sqlLimit:  defaultSQLLimit,
		logger:    logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Retrieval is the analysed, pre-LLM view of a question.
type Retrieval struct {
	Report     analytics.Report
	Cutoff     *time.Time
	Direction  analytics.Direction
	SQLHits    int
	VectorHits int
}

// Shipments runs retrieval and analysis without the LLM.
func (s *Service) Shipments(ctx context.Context, req Request) (*Retrieval, error) {
	if err := validate(req, false); err != nil {
		return nil, err
	}
	return s.retrieve(ctx, req)
}

func (s *Service) Ask(ctx context.Context, req Request) (*Answer, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
	}
	logger := s.logger.With("req_id", rid)
	start := time.Now()

	if err := validate(req, true); err != nil {
		return nil, err
	}
	logger.Info("ask.start", "shipper_id", req.ShipperID, "question_len", len(req.Question))

	ret, err := s.retrieve(ctx, req)
	if err != nil {
		return nil, err
	}
	ans := &Answer{
		Shipments:  ret.Report.Shipments,
		Cutoff:     ret.Cutoff,
		Direction:  ret.Direction,
		SQLHits:    ret.SQLHits,
		VectorHits: ret.VectorHits,
		Dropped:    ret.Report.Dropped,
	}

	if len(ret.Report.Shipments) == 0 {
		ans.Answer = NoRecordsAnswer
		logger.Info("ask.no_records", "elapsed_ms", time.Since(start).Milliseconds())
		return ans, nil
	}
	if s.completer == nil {
		return nil, common.UpstreamError("no language model is configured", nil)
	}

	out, err := s.completer.Complete(ctx, llm.ChatRequest{
		Messages: llm.BuildAskMessages(ret.Report.Text, req.Question),
	})
	if err != nil {
		logger.Error("ask.complete.failed", "error", err)
		return nil, common.UpstreamError("language model request failed", err)
	}
	ans.Answer = out

	logger.Info("ask.ok",
		"shipments", len(ans.Shipments),
		"sql_hits", ans.SQLHits,
		"vector_hits", ans.VectorHits,
		"dropped", ans.Dropped,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return ans, nil
}

func validate(req Request, needQuestion bool) error {
	v := common.NewValidator()
	v.Field("shipper_id", req.ShipperID, common.Required, common.Identifier)
	if needQuestion {
		v.Field("question", req.Question, common.Required, common.MaxLength(maxQuestionLen))
	} else {
		v.Field("question", req.Question, common.MaxLength(maxQuestionLen))
	}
	return common.ValidateAndReturnError(v)
}

// retrieve queries SQL and the vector index concurrently. One failing path is
// tolerated; both failing is an error.
func (s *Service) retrieve(ctx context.Context, req Request) (*Retrieval, error) {
	req.ShipperID = strings.TrimSpace(req.ShipperID)
	cutoff, dir := s.parser.Parse(req.Question)

	var (
		sqlRecs, vecRecs []analytics.RawShipmentRecord
		sqlErr, vecErr   error
		g                errgroup.Group
	)
	g.Go(func() error {
		sqlRecs, sqlErr = s.records.ListShipmentRecords(ctx, repository.ShipmentRecordFilter{
			ShipperID: req.ShipperID,
			Limit:     s.sqlLimit,
		})
		return nil
	})
	if s.vectors != nil {
		g.Go(func() error {
			vecRecs, vecErr = s.searchVectors(ctx, req, cutoff, dir)
			return nil
		})
	}
	_ = g.Wait()

	if sqlErr != nil {
		s.logger.Warn("ask.retrieve.sql_failed", "error", sqlErr)
	}
	if vecErr != nil {
		s.logger.Warn("ask.retrieve.vector_failed", "error", vecErr)
	}
	if sqlErr != nil && (vecErr != nil || s.vectors == nil) {
		return nil, common.WrapError(fmt.Errorf("%w; vector: %v", sqlErr, vecErr), "retrieve shipments")
	}

	// SQL first so its records win deduplication.
	records := make([]analytics.RawShipmentRecord, 0, len(sqlRecs)+len(vecRecs))
	records = append(records, sqlRecs...)
	records = append(records, vecRecs...)

	report, err := s.analyzer.Analyze(records, req.ShipperID, cutoff, dir)
	if err != nil {
		return nil, err
	}
	return &Retrieval{
		Report:     report,
		Cutoff:     cutoff,
		Direction:  dir,
		SQLHits:    len(sqlRecs),
		VectorHits: len(vecRecs),
	}, nil
}

func (s *Service) searchVectors(ctx context.Context, req Request, cutoff *time.Time, dir analytics.Direction) ([]analytics.RawShipmentRecord, error) {
	where := vector.Where{ShipperID: req.ShipperID}
	if cutoff != nil {
		switch dir {
		case analytics.DirectionAfter:
			where.After = cutoff
		case analytics.DirectionBefore:
			where.Before = cutoff
		}
	}

	var emb []float32
	if s.embedder != nil && strings.TrimSpace(req.Question) != "" {
		e, err := s.embedder.Embed(ctx, req.Question)
		if err != nil {
			s.logger.Warn("ask.embed.failed", "error", err)
		} else {
			emb = e
		}
	}

	hits, err := s.vectors.Hybrid(ctx, req.Question, emb, where, s.topK)
	if err != nil {
		return nil, err
	}
	out := make([]analytics.RawShipmentRecord, 0, len(hits))
	for _, h := range hits {
		rec := analytics.RecordFromMap(h.Metadata)
		if rec.ManifestID == "" {
			rec.ManifestID = h.ManifestID
		}
		if rec.ShipperID == "" {
			rec.ShipperID = h.ShipperID
		}
		out = append(out, rec)
	}
	return out, nil
}
