package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/biocompute/bcodb/pkg/auth"
	"github.com/biocompute/bcodb/pkg/httputil"
	"github.com/biocompute/bcodb/pkg/observability"
)

type tokenRequest struct {
	Name       string `json:"name"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
}

type tokenResponse struct {
	Token    string      `json:"token"`
	Metadata *auth.Token `json:"metadata"`
}

func (s *Server) createToken(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity.IsAnonymous() {
		httputil.WriteForbidden(w, "authentication required")
		return
	}

	var req tokenRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	plaintext, token, err := s.Tokens.Create(r.Context(), identity.Username, req.Name,
		time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("token creation faulted")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	httputil.WriteCreated(w, tokenResponse{Token: plaintext, Metadata: token})
}

func (s *Server) listTokens(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity.IsAnonymous() {
		httputil.WriteForbidden(w, "authentication required")
		return
	}

	tokens, err := s.Tokens.List(r.Context(), identity.Username)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("token listing faulted")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	httputil.WriteSuccess(w, tokens)
}

func (s *Server) revokeToken(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity.IsAnonymous() {
		httputil.WriteForbidden(w, "authentication required")
		return
	}

	name := mux.Vars(r)["name"]
	if err := s.Tokens.Revoke(r.Context(), identity.Username, name); err != nil {
		if errors.Is(err, auth.ErrTokenNotFound) {
			httputil.WriteNotFoundError(w, "token not found: "+name)
			return
		}
		observability.FromContext(r.Context()).WithError(err).Error("token revocation faulted")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	httputil.WriteNoContent(w)
}
