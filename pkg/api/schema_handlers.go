package api

import (
	"net/http"

	"github.com/biocompute/bcodb/pkg/httputil"
)

// schemaDiscovery is the schema tree response shape
type schemaDiscovery struct {
	RequestStatus string                 `json:"request_status"`
	Contents      map[string]interface{} `json:"contents"`
}

// listSchemas returns the loaded schema tree as a nested folder mapping
func (s *Server) listSchemas(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, schemaDiscovery{
		RequestStatus: "success",
		Contents:      s.Schemas.Tree(),
	})
}
