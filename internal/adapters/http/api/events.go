package api

import (
	"net/http"
	"strconv"

	"github.com/okian/footfall/internal/adapters/repository"
	"github.com/okian/footfall/internal/domain/model"
	"github.com/okian/footfall/internal/domain/types"
)

// EventsHandler serves the entry/exit log, newest first.
type EventsHandler struct {
	deps Dependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Dependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandleList handles GET /events?limit=&kind=&stream=&visitor_id= requests.
func (h *EventsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	q := repository.EventQuery{
		Kind:   model.EventKind(r.URL.Query().Get("kind")),
		Stream: r.URL.Query().Get("stream"),
		Limit:  limit,
	}
	if q.Kind != "" && !q.Kind.Valid() {
		writeError(w, http.StatusBadRequest, "bad_request", wrapBadRequest("kind must be entry or exit"))
		return
	}
	if raw := r.URL.Query().Get("visitor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", wrapBadRequest("visitor_id must be a positive integer"))
			return
		}
		q.IdentityID = id
	}

	events, err := h.deps.Events(r.Context(), q)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.Page[types.Event]{Items: types.EventsFrom(events), Limit: limit})
}
