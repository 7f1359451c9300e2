package server

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/joseph-ayodele/cryotrace/internal/common"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err through the AppError status mapping. 5xx details are
// logged and replaced by the status text.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := common.HTTPStatus(err)
	body := errorBody{Error: common.PublicMessage(err)}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		body.Code = appErr.Code
	}
	log := common.LoggerFromContext(r.Context(), h.logger)
	if status >= http.StatusInternalServerError {
		log.Error("http.request.failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		log.Info("http.request.rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return common.InvalidInputErrorf("malformed JSON body: %v", err)
	}
	return nil
}
