package vector

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

// Document is one indexed shipment summary.
type Document struct {
	ID         string
	ManifestID string
	ShipperID  string
	PickupTime time.Time
	Text       string
	Metadata   map[string]any
	Embedding  []float32
}

// Hit is a search result. Score is 1 for pure filter matches.
type Hit struct {
	Document
	Score float64
}

// DefaultAlpha weights vector similarity against keyword overlap in Hybrid.
const DefaultAlpha = 0.75

const schema = `
CREATE TABLE IF NOT EXISTS shipment_vectors (
	id          TEXT PRIMARY KEY,
	manifest_id TEXT NOT NULL,
	shipper_id  TEXT NOT NULL,
	pickup_ns   INTEGER,
	document    TEXT NOT NULL,
	metadata    TEXT NOT NULL DEFAULT '{}',
	embedding   TEXT,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_shipment_vectors_shipper ON shipment_vectors (shipper_id, pickup_ns);
`

// Index is a local SQLite-backed vector collection with brute-force cosine ranking.
type Index struct {
	db     *sql.DB
	alpha  float64
	logger *slog.Logger
}

type Option func(*Index)

// WithAlpha sets the vector weight used by Hybrid (0..1).
func WithAlpha(alpha float64) Option {
	return func(ix *Index) {
		if alpha >= 0 && alpha <= 1 {
			ix.alpha = alpha
		}
	}
}

// Open opens or creates the index at path. ":memory:" keeps it in memory.
func Open(path string, logger *slog.Logger, opts ...Option) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open vector index: %w", err)
	}
	// single connection: SQLite has one writer and :memory: is per-connection
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create vector schema: %w", err)
	}

	ix := &Index{db: db, alpha: DefaultAlpha, logger: logger}
	for _, opt := range opts {
		opt(ix)
	}
	logger.Info("vector index opened", "path", path)
	return ix, nil
}

func (ix *Index) Close() error {
	return ix.db.Close()
}

// Upsert inserts or replaces docs in one transaction.
func (ix *Index) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO shipment_vectors (id, manifest_id, shipper_id, pickup_ns, document, metadata, embedding, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			manifest_id = excluded.manifest_id,
			shipper_id = excluded.shipper_id,
			pickup_ns = excluded.pickup_ns,
			document = excluded.document,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixNano()
	for _, d := range docs {
		if d.ID == "" {
			d.ID = d.ManifestID
		}
		if d.ID == "" {
			return fmt.Errorf("document without id or manifest id")
		}
		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", d.ID, err)
		}
		var emb any
		if len(d.Embedding) > 0 {
			b, err := json.Marshal(d.Embedding)
			if err != nil {
				return fmt.Errorf("marshal embedding for %s: %w", d.ID, err)
			}
			emb = string(b)
		}
		var pickup any
		if !d.PickupTime.IsZero() {
			pickup = d.PickupTime.UnixNano()
		}
		if _, err := stmt.ExecContext(ctx, d.ID, d.ManifestID, d.ShipperID, pickup, d.Text, string(meta), emb, now); err != nil {
			return fmt.Errorf("upsert %s: %w", d.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	ix.logger.Debug("vector.upsert.ok", "count", len(docs))
	return nil
}

func (ix *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM shipment_vectors`).Scan(&n)
	return n, err
}

// Reset deletes every document.
func (ix *Index) Reset(ctx context.Context) error {
	_, err := ix.db.ExecContext(ctx, `DELETE FROM shipment_vectors`)
	if err == nil {
		ix.logger.Info("vector index reset")
	}
	return err
}

func (ix *Index) Delete(ctx context.Context, id string) error {
	_, err := ix.db.ExecContext(ctx, `DELETE FROM shipment_vectors WHERE id = ?`, id)
	return err
}

// Filter returns documents matching w ordered by pickup time. limit <= 0 returns all.
func (ix *Index) Filter(ctx context.Context, w Where, limit int) ([]Hit, error) {
	docs, err := ix.load(ctx, w)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(docs))
	for _, d := range docs {
		hits = append(hits, Hit{Document: d, Score: 1})
	}
	return truncate(hits, limit), nil
}

// Similar ranks every document by cosine similarity to embedding.
func (ix *Index) Similar(ctx context.Context, embedding []float32, limit int) ([]Hit, error) {
	return ix.Hybrid(ctx, "", embedding, Where{}, limit)
}

// Hybrid ranks documents matching w by a blend of cosine similarity to
// embedding and keyword overlap with query. Without an embedding the ranking
// is keyword-only; documents with mismatched dimensions are skipped.
func (ix *Index) Hybrid(ctx context.Context, query string, embedding []float32, w Where, limit int) ([]Hit, error) {
	start := time.Now()
	docs, err := ix.load(ctx, w)
	if err != nil {
		return nil, err
	}

	terms := tokenize(query)
	hits := make([]Hit, 0, len(docs))
	for _, d := range docs {
		kw := keywordScore(terms, d.Text)
		score := kw
		if len(embedding) > 0 {
			if len(d.Embedding) == 0 {
				continue
			}
			sim, err := CosineSimilarity(embedding, d.Embedding)
			if err != nil {
				ix.logger.Warn("vector.search.dimension_mismatch", "id", d.ID, "error", err)
				continue
			}
			score = sim
			if len(terms) > 0 {
				score = ix.alpha*sim + (1-ix.alpha)*kw
			}
		}
		hits = append(hits, Hit{Document: d, Score: score})
	}

	slices.SortStableFunc(hits, func(a, b Hit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	hits = truncate(hits, limit)
	ix.logger.Debug("vector.search.ok",
		"candidates", len(docs),
		"returned", len(hits),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return hits, nil
}

func (ix *Index) load(ctx context.Context, w Where) ([]Document, error) {
	clause, args := w.clause()
	rows, err := ix.db.QueryContext(ctx, `
		SELECT id, manifest_id, shipper_id, pickup_ns, document, metadata, embedding
		FROM shipment_vectors WHERE `+clause+`
		ORDER BY pickup_ns ASC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query vector index: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			d        Document
			pickupNs sql.NullInt64
			meta     string
			emb      sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.ManifestID, &d.ShipperID, &pickupNs, &d.Text, &meta, &emb); err != nil {
			return nil, fmt.Errorf("scan vector row: %w", err)
		}
		if pickupNs.Valid {
			d.PickupTime = time.Unix(0, pickupNs.Int64).UTC()
		}
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &d.Metadata); err != nil {
				ix.logger.Warn("vector.metadata.invalid", "id", d.ID, "error", err)
			}
		}
		if emb.Valid && emb.String != "" {
			if err := json.Unmarshal([]byte(emb.String), &d.Embedding); err != nil {
				ix.logger.Warn("vector.embedding.invalid", "id", d.ID, "error", err)
			}
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func truncate(hits []Hit, limit int) []Hit {
	if limit > 0 && len(hits) > limit {
		return hits[:limit]
	}
	return hits
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// keywordScore is the fraction of query terms present in text.
func keywordScore(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	have := make(map[string]struct{})
	for _, t := range tokenize(text) {
		have[t] = struct{}{}
	}
	hit := 0
	for _, t := range terms {
		if _, ok := have[t]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(terms))
}
