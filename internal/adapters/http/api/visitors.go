package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/footfall/internal/adapters/repository"
	"github.com/okian/footfall/internal/domain/types"
)

// visitorEventsLimit caps the events embedded in a visitor response.
const visitorEventsLimit = 100

// VisitorsHandler serves registered identities.
type VisitorsHandler struct {
	deps Dependencies
}

// NewVisitorsHandler creates a new visitors handler.
func NewVisitorsHandler(deps Dependencies) *VisitorsHandler {
	return &VisitorsHandler{deps: deps}
}

// HandleList handles GET /visitors?offset=&limit= requests.
func (h *VisitorsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	ids, err := h.deps.Identities(r.Context(), offset, limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	items := make([]types.Visitor, len(ids))
	for i, id := range ids {
		items[i] = types.VisitorFrom(id)
	}
	writeJSON(w, http.StatusOK, types.Page[types.Visitor]{Items: items, Offset: offset, Limit: limit})
}

// HandleGet handles GET /visitors/{id} requests.
func (h *VisitorsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/visitors/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", wrapBadRequest("visitor id must be a positive integer"))
		return
	}

	identity, err := h.deps.Identity(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	events, err := h.deps.Events(r.Context(), repository.EventQuery{IdentityID: id, Limit: visitorEventsLimit})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.VisitorDetail{
		Visitor: types.VisitorFrom(identity),
		Events:  types.EventsFrom(events),
	})
}
