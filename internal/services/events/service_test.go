package events

import (
	"bytes"
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
	"github.com/joseph-ayodele/cryotrace/internal/async"
	"github.com/joseph-ayodele/cryotrace/internal/common"
	"github.com/joseph-ayodele/cryotrace/internal/entity"
)

type fakeRecorder struct {
	got []*entity.WeightEvent
	err error
}

func (f *fakeRecorder) Record(_ context.Context, ev *entity.WeightEvent) error {
	if f.err != nil {
		return f.err
	}
	ev.ID = int64(len(f.got) + 1)
	f.got = append(f.got, ev)
	return nil
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []async.Job
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job async.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return q.err
}

func (q *fakeQueue) Shutdown(context.Context) {}

type fakePublisher struct {
	events []*entity.WeightEvent
	err    error
}

func (p *fakePublisher) PublishEventRecorded(_ context.Context, ev *entity.WeightEvent, _ string) error {
	p.events = append(p.events, ev)
	return p.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var fixedNow = time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, rec Recorder, q async.Queue, pub Publisher) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	photos := NewPhotoStore(dir, 1024)
	photos.now = func() time.Time { return fixedNow }
	svc := NewService(rec, photos, q, pub, quietLogger())
	svc.now = func() time.Time { return fixedNow }
	return svc, dir
}

func TestRecord_PickupWithPhoto(t *testing.T) {
	rec, q, pub := &fakeRecorder{}, &fakeQueue{}, &fakePublisher{}
	svc, dir := newTestService(t, rec, q, pub)

	ev, err := svc.Record(context.Background(), Request{
		Type:       constants.EventPickup,
		ManifestID: " MAN-1 ",
		Weight:     100,
		WeightUnit: "lbs",
		Notes:      "  sealed  ",
		Photo:      &Photo{Filename: "dock.JPG", Content: strings.NewReader("jpeg-bytes")},
	})
	require.NoError(t, err)

	assert.Equal(t, "MAN-1", ev.ManifestID)
	assert.InDelta(t, 45.359237, ev.WeightKg, 1e-9)
	assert.True(t, ev.EventTime.Equal(fixedNow))
	assert.True(t, ev.MeasuredAt.Equal(fixedNow))
	require.NotNil(t, ev.Notes)
	assert.Equal(t, "sealed", *ev.Notes)

	require.NotNil(t, ev.ImagePath)
	assert.True(t, strings.HasPrefix(*ev.ImagePath, "pickup_photos/MAN-1_"))
	assert.True(t, strings.HasSuffix(*ev.ImagePath, ".jpg"))
	b, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(*ev.ImagePath)))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(b))

	require.Len(t, q.jobs, 1)
	assert.Equal(t, "MAN-1", q.jobs[0].ManifestID)
	assert.Equal(t, "event:pickup", q.jobs[0].Reason)
	require.Len(t, pub.events, 1)
}

func TestRecord_Validation(t *testing.T) {
	svc, _ := newTestService(t, &fakeRecorder{}, nil, nil)

	cases := map[string]Request{
		"missing manifest": {Type: constants.EventPickup, Weight: 1},
		"zero weight":      {Type: constants.EventPickup, ManifestID: "MAN-1"},
		"bad unit":         {Type: constants.EventPickup, ManifestID: "MAN-1", Weight: 1, WeightUnit: "stone"},
		"bad type":         {Type: "WEIGH", ManifestID: "MAN-1", Weight: 1},
		"bad manifest id":  {Type: constants.EventDropoff, ManifestID: "MAN 1/../x", Weight: 1},
		"bad photo ext": {Type: constants.EventDropoff, ManifestID: "MAN-1", Weight: 1,
			Photo: &Photo{Filename: "x.exe", Content: strings.NewReader("x")}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Record(context.Background(), req)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidInput)
		})
	}
}

func TestRecord_PhotoTooLarge(t *testing.T) {
	svc, dir := newTestService(t, &fakeRecorder{}, nil, nil)

	_, err := svc.Record(context.Background(), Request{
		Type: constants.EventDropoff, ManifestID: "MAN-1", Weight: 5,
		Photo: &Photo{Filename: "big.png", Content: bytes.NewReader(make([]byte, 2048))},
	})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	entries, _ := os.ReadDir(filepath.Join(dir, "dropoff_photos"))
	assert.Empty(t, entries)
}

func TestRecord_RepositoryErrorSkipsFollowUps(t *testing.T) {
	q, pub := &fakeQueue{}, &fakePublisher{}
	svc, _ := newTestService(t, &fakeRecorder{err: common.NotFoundError("manifest MAN-404 not found")}, q, pub)

	_, err := svc.Record(context.Background(), Request{Type: constants.EventDropoff, ManifestID: "MAN-404", Weight: 5})
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Empty(t, q.jobs)
	assert.Empty(t, pub.events)
}

func TestRecord_FollowUpFailuresAreNotFatal(t *testing.T) {
	q := &fakeQueue{err: async.ErrQueueClosed}
	pub := &fakePublisher{err: errors.New("broker down")}
	svc, _ := newTestService(t, &fakeRecorder{}, q, pub)

	ev, err := svc.Record(context.Background(), Request{
		Type: constants.EventDropoff, ManifestID: "MAN-1", Weight: 5,
		EventTime: fixedNow.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, ev.EventTime.Equal(fixedNow.Add(3*time.Hour)))
	assert.Len(t, q.jobs, 1)
	assert.Len(t, pub.events, 1)
}
