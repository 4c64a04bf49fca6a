package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/biocompute/bcodb/pkg/auth"
	"github.com/biocompute/bcodb/pkg/bulk"
	"github.com/biocompute/bcodb/pkg/httputil"
	"github.com/biocompute/bcodb/pkg/objects"
	"github.com/biocompute/bcodb/pkg/observability"
)

// maxBatchBody bounds bulk request bodies
const maxBatchBody = 16 << 20

// bulkHandler adapts one lifecycle operation to HTTP. The batch result's
// aggregate status becomes the response status; the body is the per-item
// result array in input order.
func (s *Server) bulkHandler(op bulk.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBatchBody))
		if err != nil {
			httputil.WriteBadRequest(w, "failed to read request body")
			return
		}

		items, err := bulk.ParseBatch(op, body)
		if err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		if len(items) == 0 {
			httputil.WriteBadRequest(w, "batch is empty")
			return
		}

		identity := auth.IdentityFromContext(r.Context())
		result, err := s.Processor.Process(r.Context(), identity, op, items)
		if err != nil {
			observability.FromContext(r.Context()).WithError(err).Error("batch processing faulted")
			httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		httputil.WriteJSON(w, result.Status, result.Results)
	}
}

// getObject returns a single draft or published object. Published versions
// are public; drafts are visible only to their owning group.
func (s *Server) getObject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	obj, err := s.Objects.Get(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, objects.ErrInvalidID):
			httputil.WriteBadRequest(w, "malformed object_id: "+id)
		case errors.Is(err, objects.ErrNotFound):
			httputil.WriteNotFoundError(w, "object not found: "+id)
		default:
			observability.FromContext(r.Context()).WithError(err).Error("object lookup faulted")
			httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	if obj.State == objects.StateDraft {
		identity := auth.IdentityFromContext(r.Context())
		if !identity.IsSuperuser() && !identity.IsMember(obj.OwnerGroup) {
			httputil.WriteForbidden(w, "drafts are visible to their owning group only")
			return
		}
	}

	httputil.WriteSuccess(w, obj)
}
