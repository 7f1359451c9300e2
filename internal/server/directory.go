package server

import (
	"net/http"
	"strings"

	"github.com/joseph-ayodele/cryotrace/constants"
	"github.com/joseph-ayodele/cryotrace/internal/common"
	"github.com/joseph-ayodele/cryotrace/internal/entity"
	"github.com/joseph-ayodele/cryotrace/internal/repository"
)

// Records lists manifests ordered by ?filter=date|manifestid|location|all,
// optionally for one shipper.
func (h *Handler) Records(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	order, ok := constants.ParseManifestOrder(strings.ToLower(q.Get("filter")))
	if !ok {
		h.writeError(w, r, common.InvalidInputErrorf("unknown filter %q", q.Get("filter")))
		return
	}
	list, err := h.deps.Manifests.List(r.Context(), repository.ManifestListFilter{
		ShipperID: strings.TrimSpace(q.Get("shipperId")),
		OrderBy:   order,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// ListManifests returns every manifest, or the one named by ?manifestId=.
func (h *Handler) ListManifests(w http.ResponseWriter, r *http.Request) {
	if id := strings.TrimSpace(r.URL.Query().Get("manifestId")); id != "" {
		m, err := h.deps.Manifests.Get(r.Context(), id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, []*entity.Manifest{m})
		return
	}
	list, err := h.deps.Manifests.List(r.Context(), repository.ManifestListFilter{OrderBy: constants.OrderByManifestID})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *Handler) ListShippers(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Directory.ListShippers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Directory.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}
