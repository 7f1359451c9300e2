package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cryotrace/constants"
	"github.com/joseph-ayodele/cryotrace/internal/entity"
	"github.com/joseph-ayodele/cryotrace/internal/services/events"
)

type fakeManifests struct {
	mu   sync.Mutex
	byID map[string]*entity.Manifest
}

func (f *fakeManifests) Create(_ context.Context, m *entity.Manifest) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byID == nil {
		f.byID = map[string]*entity.Manifest{}
	}
	if _, ok := f.byID[m.ManifestID]; ok {
		return false, nil
	}
	f.byID[m.ManifestID] = m
	return true, nil
}

type fakeShippers struct{ ids []string }

func (f *fakeShippers) UpsertShipper(_ context.Context, id, _ string) error {
	f.ids = append(f.ids, id)
	return nil
}

type fakeEventRecorder struct {
	mu     sync.Mutex
	reqs   []events.Request
	photos []string
	fail   map[string]error
}

func (f *fakeEventRecorder) Record(_ context.Context, req events.Request) (*entity.WeightEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[req.ManifestID]; err != nil {
		return nil, err
	}
	if req.Photo != nil {
		b, _ := io.ReadAll(req.Photo.Content)
		f.photos = append(f.photos, string(b))
	}
	f.reqs = append(f.reqs, req)
	return &entity.WeightEvent{ManifestID: req.ManifestID, Type: req.Type}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const manifestCSV = `manifest_id,shipper_id,origin_location_id,origin_contact_name,destination_location_id,destination_contact_name,scheduled_ship_time,expected_receive_time,projected_weight_kg,temperature_c,notes,created_by_user_id,created_at
M-100,7,1,Ana,2,Ben,2025-05-01 08:00:00,2025-05-02 08:00:00,120.5,-196,fragile,3,2025-04-30 10:00:00
M-101,0012,1,Ana,2,Ben,2025-05-03 08:00:00,2025-05-04 08:00:00,99,-196,,3,2025-04-30 11:00:00
M-100,7,1,Ana,2,Ben,2025-05-01 08:00:00,2025-05-02 08:00:00,120.5,-196,dup,3,2025-04-30 10:00:00
M-102,7,,Ana,2,Ben,2025-05-03 08:00:00,2025-05-04 08:00:00,99,-196,,3,2025-04-30 11:00:00

M-103,7,1,Ana,2,Ben,2025-05-03 08:00:00,soon,99,-196,,3,2025-04-30 11:00:00
`

func TestManifestLoader_Load(t *testing.T) {
	manifests := &fakeManifests{}
	shippers := &fakeShippers{}
	l := NewManifestLoader(manifests, shippers, quietLogger())

	stats, err := l.Load(context.Background(), strings.NewReader(manifestCSV))
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Rows)
	assert.Equal(t, 2, stats.Created)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 2, stats.Failed)
	require.Error(t, stats.Err())
	assert.Contains(t, stats.Err().Error(), "origin_location_id")
	assert.Contains(t, stats.Err().Error(), "expected_receive_time")

	m := manifests.byID["M-100"]
	require.NotNil(t, m)
	assert.Equal(t, "0007", m.ShipperID)
	require.NotNil(t, m.Notes)
	assert.Equal(t, "fragile", *m.Notes)
	require.NotNil(t, m.ProjectedWeightKg)
	assert.InDelta(t, 120.5, *m.ProjectedWeightKg, 1e-9)
	assert.Equal(t, time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC), *m.ScheduledShipTime)
	assert.Nil(t, manifests.byID["M-101"].Notes)
	assert.Equal(t, []string{"0007", "0012"}, shippers.ids)
}

func TestManifestLoader_RejectsMissingColumns(t *testing.T) {
	l := NewManifestLoader(&fakeManifests{}, &fakeShippers{}, quietLogger())
	_, err := l.Load(context.Background(), strings.NewReader("manifest_id,shipper_id\nM-1,1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must have columns")
}

func TestNormalizeShipperID(t *testing.T) {
	cases := map[string]string{
		"7":      "0007",
		"12.0":   "0012",
		"0042":   "0042",
		"12345":  "12345",
		"ACME-1": "ACME-1",
		" 3 ":    "0003",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeShipperID(in), in)
	}
}

const eventsCSV = `manifest_id,pickup_weight,pickup_time,pickup_user_id,dropoff_weight,dropoff_time,dropoff_location_id,photo,manifest_created_at,destination_contact_name
M-100,120.5,2025-05-01 08:15:00,3,118.25,2025-05-02 09:45:00,2,m100.jpg,2025-04-30 10:00:00,Ben
M-101,99,2025-05-03 08:00:00,3,,,,,2025-04-30 11:00:00,
M-102,,,,,,,,2025-04-30 11:00:00,
M-103,99,,3,,,,,2025-04-30 11:00:00,
M-104,88,2025-05-03 08:00:00,,80,2025-05-03 20:00:00,2,,2025-04-30 11:00:00,
`

func TestEventLoader_Load(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "m100.jpg"), []byte("jpeg"), 0o644))

	rec := &fakeEventRecorder{fail: map[string]error{"M-104": errors.New("manifest not found")}}
	l := NewEventLoader(rec, dir, quietLogger())

	stats, err := l.Load(context.Background(), strings.NewReader(eventsCSV))
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Rows)
	assert.Equal(t, 3, stats.Created)
	assert.Equal(t, 1, stats.Skipped)
	// M-103 is incomplete; both M-104 events fail in the recorder
	assert.Equal(t, 3, stats.Failed)

	require.Len(t, rec.reqs, 3)
	pickup, dropoff := rec.reqs[0], rec.reqs[1]
	assert.Equal(t, constants.EventPickup, pickup.Type)
	assert.Equal(t, "M-100", pickup.ManifestID)
	assert.InDelta(t, 120.5, pickup.Weight, 1e-9)
	assert.Equal(t, time.Date(2025, 5, 1, 8, 15, 0, 0, time.UTC), pickup.EventTime)
	require.NotNil(t, pickup.UserID)
	assert.Equal(t, int64(3), *pickup.UserID)

	assert.Equal(t, constants.EventDropoff, dropoff.Type)
	assert.InDelta(t, 118.25, dropoff.Weight, 1e-9)
	assert.Equal(t, "received by Ben", dropoff.Notes)
	assert.Nil(t, dropoff.Photo)

	assert.Equal(t, []string{"jpeg"}, rec.photos)
	assert.Equal(t, "M-101", rec.reqs[2].ManifestID)
}

func TestDetectKind(t *testing.T) {
	assert.Equal(t, KindManifests, DetectKind(strings.SplitN(manifestCSV, "\n", 2)[0]))
	assert.Equal(t, KindEvents, DetectKind(strings.SplitN(eventsCSV, "\n", 2)[0]+"\r\n"))
	assert.Equal(t, KindEvents, DetectKind(`"manifest_id","dropoff_weight","dropoff_time"`))
	assert.Equal(t, KindUnknown, DetectKind("id,name"))
	assert.Equal(t, KindUnknown, DetectKind("manifest_id,weight"))
}

func TestImporter_ImportFile(t *testing.T) {
	dir := t.TempDir()
	mpath := filepath.Join(dir, "manifests.csv")
	epath := filepath.Join(dir, "events.csv")
	other := filepath.Join(dir, "other.csv")
	require.NoError(t, os.WriteFile(mpath, []byte(manifestCSV), 0o644))
	require.NoError(t, os.WriteFile(epath, []byte(eventsCSV), 0o644))
	require.NoError(t, os.WriteFile(other, []byte("a,b\n1,2\n"), 0o644))

	rec := &fakeEventRecorder{}
	imp := NewImporter(
		NewManifestLoader(&fakeManifests{}, &fakeShippers{}, quietLogger()),
		NewEventLoader(rec, "", quietLogger()),
		quietLogger(),
	)

	kind, stats, err := imp.ImportFile(context.Background(), mpath)
	require.NoError(t, err)
	assert.Equal(t, KindManifests, kind)
	assert.Equal(t, 2, stats.Created)

	kind, stats, err = imp.ImportFile(context.Background(), epath)
	require.NoError(t, err)
	assert.Equal(t, KindEvents, kind)
	assert.Equal(t, 5, stats.Created)
	// m100.jpg is looked up next to the csv and is absent there
	assert.Empty(t, rec.photos)

	_, _, err = imp.ImportFile(context.Background(), other)
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestStartWatcher_InitialScanAndDebounce(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "existing.csv")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	paths, _, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{dir},
		InitialScan: true,
		Debounce:    50 * time.Millisecond,
	}, quietLogger())
	require.NoError(t, err)

	select {
	case p := <-paths:
		assert.Equal(t, existing, p)
	case <-time.After(2 * time.Second):
		t.Fatal("initial scan did not emit existing file")
	}

	fresh := filepath.Join(dir, "fresh.csv")
	f, err := os.Create(fresh)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := f.WriteString("row\n")
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())

	select {
	case p := <-paths:
		assert.Equal(t, fresh, p)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not emit new file")
	}

	// the burst of writes was coalesced into one path
	select {
	case p := <-paths:
		t.Fatalf("unexpected extra event for %s", p)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	for range paths {
	}
}

func TestStartWatcher_RequiresRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{}, quietLogger())
	require.Error(t, err)
}
