package vector

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(filepath.Join(t.TempDir(), "vectors.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })
	return ix
}

var base = time.Date(2025, 5, 4, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, ix *Index) {
	t.Helper()
	docs := []Document{
		{ManifestID: "MAN-1", ShipperID: "S1", PickupTime: base.Add(-24 * time.Hour), Text: "Shipper S1 picked up in Austin", Embedding: []float32{1, 0, 0},
			Metadata: map[string]any{"manifest_id": "MAN-1", "pickup_weight": 10.0}},
		{ManifestID: "MAN-2", ShipperID: "S1", PickupTime: base.Add(24 * time.Hour), Text: "Shipper S1 picked up in Denver", Embedding: []float32{0.9, 0.1, 0}},
		{ManifestID: "MAN-3", ShipperID: "S2", PickupTime: base.Add(48 * time.Hour), Text: "Shipper S2 picked up in Austin", Embedding: []float32{0, 0, 1}},
		{ManifestID: "MAN-4", ShipperID: "S1", PickupTime: base, Text: "exactly at the cutoff", Embedding: []float32{0, 1, 0}},
	}
	require.NoError(t, seedDocs(t, ix, docs))
}

func seedDocs(t *testing.T, ix *Index, docs []Document) error {
	t.Helper()
	return ix.Upsert(context.Background(), docs)
}

func hitIDs(hits []Hit) []string {
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.ID)
	}
	return out
}

func TestIndex_UpsertCountReset(t *testing.T) {
	ix := newTestIndex(t)
	ctx := context.Background()
	seed(t, ix)

	n, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// same id replaces
	require.NoError(t, ix.Upsert(ctx, []Document{{ManifestID: "MAN-1", ShipperID: "S1", Text: "updated"}}))
	n, _ = ix.Count(ctx)
	assert.Equal(t, 4, n)

	hits, err := ix.Filter(ctx, Where{ShipperID: "S1"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "MAN-1", hits[0].ID)
	assert.Equal(t, "updated", hits[0].Text)
	assert.True(t, hits[0].PickupTime.IsZero())

	require.NoError(t, ix.Reset(ctx))
	n, _ = ix.Count(ctx)
	assert.Zero(t, n)
}

func TestIndex_FilterByShipperAndCutoff(t *testing.T) {
	ix := newTestIndex(t)
	seed(t, ix)
	ctx := context.Background()

	hits, err := ix.Filter(ctx, Where{ShipperID: "S1", After: &base}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"MAN-2"}, hitIDs(hits))

	hits, err = ix.Filter(ctx, Where{ShipperID: "S1", Before: &base}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"MAN-1"}, hitIDs(hits))

	hits, err = ix.Filter(ctx, Where{ShipperID: "S1"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"MAN-1", "MAN-4"}, hitIDs(hits))

	assert.Equal(t, 10.0, hits[0].Metadata["pickup_weight"])
	assert.True(t, base.Add(-24*time.Hour).Equal(hits[0].PickupTime))
}

func TestIndex_SimilarAndHybrid(t *testing.T) {
	ix := newTestIndex(t)
	seed(t, ix)
	ctx := context.Background()

	hits, err := ix.Similar(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"MAN-1", "MAN-2"}, hitIDs(hits))
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)

	hits, err = ix.Hybrid(ctx, "austin", []float32{0, 0, 1}, Where{ShipperID: "S1"}, 5)
	require.NoError(t, err)
	// the S2 Austin document is filtered out; keyword overlap lifts MAN-1
	assert.Equal(t, "MAN-1", hits[0].ID)
	assert.NotContains(t, hitIDs(hits), "MAN-3")

	hits, err = ix.Hybrid(ctx, "denver", nil, Where{}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"MAN-2"}, hitIDs(hits))
}

func TestIndex_SkipsMismatchedDimensions(t *testing.T) {
	ix := newTestIndex(t)
	seed(t, ix)

	hits, err := ix.Similar(context.Background(), []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestCosineSimilarity(t *testing.T) {
	s, err := CosineSimilarity([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s, 1e-9)

	s, err = CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, s, 1e-9)

	s, err = CosineSimilarity([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Zero(t, s)

	_, err = CosineSimilarity([]float32{1}, []float32{1, 2})
	assert.Error(t, err)
}

func TestWhereMatches(t *testing.T) {
	doc := Document{ShipperID: "S1", PickupTime: base}
	assert.True(t, Where{}.Matches(doc))
	assert.True(t, Where{ShipperID: "S1"}.Matches(doc))
	assert.False(t, Where{ShipperID: "S2"}.Matches(doc))
	assert.False(t, Where{After: &base}.Matches(doc))
	assert.False(t, Where{Before: &base}.Matches(doc))
	later := base.Add(time.Nanosecond)
	assert.True(t, Where{Before: &later}.Matches(doc))
}
