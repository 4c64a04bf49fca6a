package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/biocompute/bcodb/pkg/auth"
	"github.com/biocompute/bcodb/pkg/bulk"
	"github.com/biocompute/bcodb/pkg/groups"
	"github.com/biocompute/bcodb/pkg/httputil"
	"github.com/biocompute/bcodb/pkg/objects"
	"github.com/biocompute/bcodb/pkg/observability"
	"github.com/biocompute/bcodb/pkg/permissions"
	"github.com/biocompute/bcodb/pkg/prefixes"
	"github.com/biocompute/bcodb/pkg/schema"
)

// Deps bundles everything the API server serves
type Deps struct {
	Processor *bulk.Processor
	Objects   *objects.Store
	Schemas   *schema.Store
	Prefixes  *prefixes.Service
	Groups    *groups.Service
	Grants    *permissions.GrantStore
	Gate      permissions.Gate
	Tokens    *auth.TokenService
	Logger    *observability.Logger
	Metrics   *observability.Metrics
}

// Server represents our API server
type Server struct {
	Deps
	router *mux.Router
}

// NewServer creates a new API server
func NewServer(deps Deps) *Server {
	s := &Server{
		Deps:   deps,
		router: mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(httputil.RequestID)
	s.router.Use(httputil.AccessLog(s.Logger))
	s.router.Use(httputil.MetricsMiddleware(s.Metrics))
	s.router.Use(auth.Middleware(s.Tokens, s.Groups))

	// Bulk lifecycle routes
	s.router.HandleFunc("/api/objects/drafts/create", s.bulkHandler(bulk.OpDraftCreate)).Methods("POST")
	s.router.HandleFunc("/api/objects/drafts/modify", s.bulkHandler(bulk.OpDraftModify)).Methods("POST")
	s.router.HandleFunc("/api/objects/drafts/publish", s.bulkHandler(bulk.OpPublish)).Methods("POST")
	s.router.HandleFunc("/api/objects/drafts/delete", s.bulkHandler(bulk.OpDraftDelete)).Methods("POST")

	// Object retrieval
	s.router.HandleFunc("/api/objects/{id:.+}", s.getObject).Methods("GET")

	// Prefix administration
	s.router.HandleFunc("/api/prefixes", s.listPrefixes).Methods("GET")
	s.router.HandleFunc("/api/prefixes", s.createPrefix).Methods("POST")
	s.router.HandleFunc("/api/prefixes/{name}", s.getPrefix).Methods("GET")
	s.router.HandleFunc("/api/prefixes/{name}", s.updatePrefix).Methods("PUT")
	s.router.HandleFunc("/api/prefixes/{name}", s.deletePrefix).Methods("DELETE")
	s.router.HandleFunc("/api/prefixes/{name}/grants", s.grantCapability).Methods("POST")
	s.router.HandleFunc("/api/prefixes/{name}/grants", s.revokeCapability).Methods("DELETE")

	// Group administration
	s.router.HandleFunc("/api/groups", s.listGroups).Methods("GET")
	s.router.HandleFunc("/api/groups", s.createGroup).Methods("POST")
	s.router.HandleFunc("/api/groups/{name}", s.getGroup).Methods("GET")
	s.router.HandleFunc("/api/groups/{name}", s.deleteGroup).Methods("DELETE")
	s.router.HandleFunc("/api/groups/{name}/members", s.addMember).Methods("POST")
	s.router.HandleFunc("/api/groups/{name}/members/{username}", s.removeMember).Methods("DELETE")

	// Token management
	s.router.HandleFunc("/api/auth/tokens", s.createToken).Methods("POST")
	s.router.HandleFunc("/api/auth/tokens", s.listTokens).Methods("GET")
	s.router.HandleFunc("/api/auth/tokens/{name}", s.revokeToken).Methods("DELETE")

	// Schema discovery
	s.router.HandleFunc("/api/schemas", s.listSchemas).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
