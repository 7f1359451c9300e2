package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/cryotrace/constants"
	"github.com/joseph-ayodele/cryotrace/internal/common"
	"github.com/joseph-ayodele/cryotrace/internal/services/events"
)

func (h *Handler) PickupEvent(w http.ResponseWriter, r *http.Request) {
	h.recordEvent(w, r, constants.EventPickup)
}

func (h *Handler) DropoffEvent(w http.ResponseWriter, r *http.Request) {
	h.recordEvent(w, r, constants.EventDropoff)
}

// recordEvent reads the multipart form fields manifest_id, weight,
// weight_type, notes, user_id and an optional photo file.
func (h *Handler) recordEvent(w http.ResponseWriter, r *http.Request, kind constants.EventType) {
	r.Body = http.MaxBytesReader(w, r.Body, h.deps.MaxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, common.InvalidInputErrorf("upload exceeds %d bytes", h.deps.MaxUploadBytes))
			return
		}
		h.writeError(w, r, common.InvalidInputError("expected a multipart form"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	weight, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue("weight")), 64)
	if err != nil {
		h.writeError(w, r, common.InvalidInputError("weight must be a number"))
		return
	}
	req := events.Request{
		Type:       kind,
		ManifestID: r.FormValue("manifest_id"),
		Weight:     weight,
		WeightUnit: r.FormValue("weight_type"),
		Notes:      r.FormValue("notes"),
	}
	if s := strings.TrimSpace(r.FormValue("user_id")); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			h.writeError(w, r, common.InvalidInputError("user_id must be an integer"))
			return
		}
		req.UserID = &id
	}

	file, header, err := r.FormFile("photo")
	switch {
	case err == nil:
		defer file.Close()
		req.Photo = &events.Photo{Filename: header.Filename, Content: file}
	case errors.Is(err, http.ErrMissingFile):
	default:
		h.writeError(w, r, common.InvalidInputError("unreadable photo upload"))
		return
	}

	ev, err := h.deps.Events.Record(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	label := "Pickup"
	if kind == constants.EventDropoff {
		label = "Dropoff"
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"status": label + " event created.",
		"event":  ev,
	})
}
