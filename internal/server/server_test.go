package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cryotrace/constants"
	"github.com/joseph-ayodele/cryotrace/internal/analytics"
	"github.com/joseph-ayodele/cryotrace/internal/common"
	"github.com/joseph-ayodele/cryotrace/internal/entity"
	"github.com/joseph-ayodele/cryotrace/internal/export"
	"github.com/joseph-ayodele/cryotrace/internal/repository"
	"github.com/joseph-ayodele/cryotrace/internal/services/ask"
	"github.com/joseph-ayodele/cryotrace/internal/services/events"
)

type fakeAsker struct {
	got    ask.Request
	answer *ask.Answer
	ret    *ask.Retrieval
	err    error
}

func (f *fakeAsker) Ask(_ context.Context, req ask.Request) (*ask.Answer, error) {
	f.got = req
	return f.answer, f.err
}

func (f *fakeAsker) Shipments(_ context.Context, req ask.Request) (*ask.Retrieval, error) {
	f.got = req
	return f.ret, f.err
}

type fakeReindexer struct{ n int }

func (f *fakeReindexer) Reindex(context.Context) (int, error) { return f.n, nil }

type fakeManifests struct {
	list   []*entity.Manifest
	filter repository.ManifestListFilter
}

func (f *fakeManifests) List(_ context.Context, filter repository.ManifestListFilter) ([]*entity.Manifest, error) {
	f.filter = filter
	return f.list, nil
}

func (f *fakeManifests) Get(_ context.Context, id string) (*entity.Manifest, error) {
	for _, m := range f.list {
		if m.ManifestID == id {
			return m, nil
		}
	}
	return nil, common.NotFoundError("manifest " + id + " not found")
}

type fakeDirectory struct{}

func (fakeDirectory) ListShippers(context.Context) ([]*entity.Shipper, error) {
	return []*entity.Shipper{{ShipperID: "0001", Name: "Acme"}}, nil
}

func (fakeDirectory) ListUsers(context.Context) ([]*entity.User, error) { return nil, nil }

type fakeEvents struct {
	got   events.Request
	photo string
}

func (f *fakeEvents) Record(_ context.Context, req events.Request) (*entity.WeightEvent, error) {
	f.got = req
	if req.Photo != nil {
		b, _ := io.ReadAll(req.Photo.Content)
		f.photo = string(b)
	}
	if req.ManifestID == "missing" {
		return nil, common.NotFoundError("manifest missing not found")
	}
	return &entity.WeightEvent{ID: 1, Type: req.Type, ManifestID: req.ManifestID, WeightKg: req.Weight}, nil
}

type fakeExporter struct{ got export.Filter }

func (f *fakeExporter) ExportShipmentsXLSX(_ context.Context, filter export.Filter) ([]byte, error) {
	f.got = filter
	return []byte("PK"), nil
}

type fixture struct {
	asker     *fakeAsker
	manifests *fakeManifests
	events    *fakeEvents
	exporter  *fakeExporter
	router    http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		asker:     &fakeAsker{},
		manifests: &fakeManifests{list: []*entity.Manifest{{ManifestID: "M-1", ShipperID: "0001"}}},
		events:    &fakeEvents{},
		exporter:  &fakeExporter{},
	}
	h := NewHandler(Deps{
		Asker:          f.asker,
		Reindexer:      &fakeReindexer{n: 3},
		Manifests:      f.manifests,
		Directory:      fakeDirectory{},
		Events:         f.events,
		Exporter:       f.exporter,
		MaxUploadBytes: 1 << 20,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.router = NewRouter(h)
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHealth_Unavailable(t *testing.T) {
	h := NewHandler(Deps{Health: func(context.Context) error { return errors.New("db down") }}, nil)
	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAsk(t *testing.T) {
	f := newFixture(t)
	cutoff := time.Date(2025, 5, 4, 0, 0, 0, 0, time.UTC)
	f.asker.answer = &ask.Answer{Answer: "Two shipments.", Cutoff: &cutoff, Direction: analytics.DirectionAfter}

	body := `{"query":"shipments after May 4","shipper_id":"0001"}`
	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "Two shipments.", out["answer"])
	assert.Equal(t, "after", out["direction"])
	assert.Equal(t, []any{}, out["shipments"])
	assert.Equal(t, ask.Request{ShipperID: "0001", Question: "shipments after May 4"}, f.asker.got)
}

func TestAsk_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"invalid", common.InvalidInputError("question is required"), http.StatusBadRequest, "question is required"},
		{"upstream", common.UpstreamError("llm unavailable", errors.New("boom")), http.StatusBadGateway, "Bad Gateway"},
		{"internal", errors.New("secret detail"), http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.asker.err = tc.err
			rec := f.do(httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"x"}`)))
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.msg, decode(t, rec)["error"])
		})
	}
}

func TestAsk_MalformedBody(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decode(t, rec)["code"])
}

func TestShipments(t *testing.T) {
	f := newFixture(t)
	f.asker.ret = &ask.Retrieval{Report: analytics.Report{
		Shipments: []entity.Shipment{{ShipmentID: "M-1", ShipperID: "0001"}},
		Text:      "Shipment ID: M-1",
		Retrieved: 2,
	}}
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/shipments?shipperId=0001&q=all", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Len(t, out["shipments"], 1)
	assert.Equal(t, float64(2), out["retrieved"])
	assert.Equal(t, "all", out["direction"])
	assert.Equal(t, ask.Request{ShipperID: "0001", Question: "all"}, f.asker.got)
}

func TestReindex(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodPost, "/api/reindex", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), decode(t, rec)["indexed"])
}

func TestRecords(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/records?filter=location&shipperId=0001", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, repository.ManifestListFilter{ShipperID: "0001", OrderBy: constants.OrderByLocation}, f.manifests.filter)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/records?filter=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManifests(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/manifests?manifestId=M-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"manifest_id":"M-1"`)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/manifests?manifestId=M-9", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/containers", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Acme")

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/users", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func multipartRequest(t *testing.T, path string, fields map[string]string, photo string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if photo != "" {
		fw, err := mw.CreateFormFile("photo", "dewar.jpg")
		require.NoError(t, err)
		_, err = fw.Write([]byte(photo))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestPickupEvent(t *testing.T) {
	f := newFixture(t)
	req := multipartRequest(t, "/api/pickup-events", map[string]string{
		"manifest_id": "M-1",
		"weight":      "250",
		"weight_type": "lbs",
		"notes":       "sealed",
		"user_id":     "4",
	}, "jpeg-bytes")

	rec := f.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Pickup event created.", decode(t, rec)["status"])

	got := f.events.got
	assert.Equal(t, constants.EventPickup, got.Type)
	assert.Equal(t, "M-1", got.ManifestID)
	assert.InDelta(t, 250, got.Weight, 1e-9)
	assert.Equal(t, "lbs", got.WeightUnit)
	require.NotNil(t, got.UserID)
	assert.Equal(t, int64(4), *got.UserID)
	assert.Equal(t, "jpeg-bytes", f.events.photo)
}

func TestDropoffEvent_WithoutPhoto(t *testing.T) {
	f := newFixture(t)
	rec := f.do(multipartRequest(t, "/api/dropoff-events", map[string]string{
		"manifest_id": "M-1",
		"weight":      "118.5",
	}, ""))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, constants.EventDropoff, f.events.got.Type)
	assert.Nil(t, f.events.got.Photo)
}

func TestEvent_Errors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(multipartRequest(t, "/api/pickup-events", map[string]string{"manifest_id": "M-1", "weight": "heavy"}, ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(multipartRequest(t, "/api/pickup-events", map[string]string{"manifest_id": "missing", "weight": "1"}, ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodPost, "/api/pickup-events", strings.NewReader("not a form")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	big := multipartRequest(t, "/api/pickup-events", map[string]string{"manifest_id": "M-1", "weight": "1"}, strings.Repeat("x", 2<<20))
	rec = f.do(big)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportXLSX(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/export.xlsx?shipperId=0001&q=before+2025-05-04", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PK", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "shipments.xlsx")

	assert.Equal(t, "0001", f.exporter.got.ShipperID)
	assert.Nil(t, f.exporter.got.From)
	require.NotNil(t, f.exporter.got.To)
	assert.Equal(t, time.Date(2025, 5, 3, 0, 0, 0, 0, time.UTC), *f.exporter.got.To)
}
