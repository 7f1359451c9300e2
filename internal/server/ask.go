package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/cryotrace/internal/analytics"
	"github.com/joseph-ayodele/cryotrace/internal/entity"
	"github.com/joseph-ayodele/cryotrace/internal/export"
	"github.com/joseph-ayodele/cryotrace/internal/services/ask"
)

// askRequest accepts the historical "query" key as well as "question".
type askRequest struct {
	Query     string `json:"query"`
	Question  string `json:"question"`
	ShipperID string `json:"shipper_id"`
}

type askResponse struct {
	Answer    string            `json:"answer"`
	Shipments []entity.Shipment `json:"shipments"`
	Cutoff    *time.Time        `json:"cutoff,omitempty"`
	Direction string            `json:"direction"`
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	question := req.Question
	if strings.TrimSpace(question) == "" {
		question = req.Query
	}
	shipperID := req.ShipperID
	if shipperID == "" {
		shipperID = r.URL.Query().Get("shipperId")
	}

	ans, err := h.deps.Asker.Ask(r.Context(), ask.Request{ShipperID: shipperID, Question: question})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, askResponse{
		Answer:    ans.Answer,
		Shipments: nonNil(ans.Shipments),
		Cutoff:    ans.Cutoff,
		Direction: ans.Direction.String(),
	})
}

type shipmentsResponse struct {
	Shipments []entity.Shipment `json:"shipments"`
	Context   string            `json:"context"`
	Cutoff    *time.Time        `json:"cutoff,omitempty"`
	Direction string            `json:"direction"`
	Retrieved int               `json:"retrieved"`
	Dropped   int               `json:"dropped"`
}

// Shipments answers GET /api/shipments?shipperId=&q= from retrieval alone.
func (h *Handler) Shipments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.deps.Asker.Shipments(r.Context(), ask.Request{
		ShipperID: q.Get("shipperId"),
		Question:  q.Get("q"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shipmentsResponse{
		Shipments: nonNil(res.Report.Shipments),
		Context:   res.Report.Text,
		Cutoff:    res.Cutoff,
		Direction: res.Direction.String(),
		Retrieved: res.Report.Retrieved,
		Dropped:   res.Report.Dropped,
	})
}

func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.Reindexer.Reindex(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "Reindexing complete.", "indexed": n})
}

// ExportXLSX streams the shipments workbook. With q set, the cutoff parsed
// from it bounds the window the same way a question would.
func (h *Handler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := export.Filter{ShipperID: q.Get("shipperId")}
	if text := q.Get("q"); text != "" {
		cutoff, dir := analytics.ParseCutoff(text)
		switch {
		case cutoff == nil:
		case dir == analytics.DirectionBefore:
			to := cutoff.AddDate(0, 0, -1)
			filter.To = &to
		default:
			filter.From = cutoff
		}
	}

	b, err := h.deps.Exporter.ExportShipmentsXLSX(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="shipments.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
