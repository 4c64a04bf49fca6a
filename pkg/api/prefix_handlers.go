package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/biocompute/bcodb/pkg/auth"
	"github.com/biocompute/bcodb/pkg/httputil"
	"github.com/biocompute/bcodb/pkg/observability"
	"github.com/biocompute/bcodb/pkg/permissions"
	"github.com/biocompute/bcodb/pkg/prefixes"
)

type prefixRequest struct {
	Name        string     `json:"prefix"`
	OwnerUser   string     `json:"owner_user,omitempty"`
	OwnerGroup  string     `json:"owner_group"`
	Description string     `json:"description,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type grantRequest struct {
	GroupName  string `json:"group_name"`
	TableClass string `json:"table_class"`
	Capability string `json:"capability"`
}

// authorizePrefixAction gates a prefix administration request. It writes
// the denial response itself and reports whether the handler may proceed.
func (s *Server) authorizePrefixAction(w http.ResponseWriter, r *http.Request, action permissions.Action, name string) bool {
	identity := auth.IdentityFromContext(r.Context())
	dec, err := s.Gate.Authorize(r.Context(), identity, action, permissions.Target{Prefix: name})
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("prefix authorization faulted")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return false
	}
	if !dec.Allowed {
		switch dec.Reason {
		case permissions.ReasonUnknownPrefix:
			httputil.WriteNotFoundError(w, "prefix not found: "+name)
		default:
			httputil.WriteForbidden(w, dec.Detail)
		}
		return false
	}
	return true
}

func (s *Server) listPrefixes(w http.ResponseWriter, r *http.Request) {
	list, err := s.Prefixes.List(r.Context())
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("prefix listing faulted")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	httputil.WriteSuccess(w, list)
}

func (s *Server) getPrefix(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	p, err := s.Prefixes.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, prefixes.ErrNotFound) {
			httputil.WriteNotFoundError(w, "prefix not found: "+name)
			return
		}
		observability.FromContext(r.Context()).WithError(err).Error("prefix lookup faulted")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	httputil.WriteSuccess(w, p)
}

func (s *Server) createPrefix(w http.ResponseWriter, r *http.Request) {
	var req prefixRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !s.authorizePrefixAction(w, r, permissions.ActionPrefixCreate, req.Name) {
		return
	}

	identity := auth.IdentityFromContext(r.Context())
	if req.OwnerUser == "" {
		req.OwnerUser = identity.Username
	}

	p := &prefixes.Prefix{
		Name:        req.Name,
		OwnerUser:   req.OwnerUser,
		OwnerGroup:  req.OwnerGroup,
		Description: req.Description,
		ExpiresAt:   req.ExpiresAt,
	}
	if err := s.Prefixes.Create(r.Context(), p); err != nil {
		switch {
		case errors.Is(err, prefixes.ErrDuplicate):
			httputil.WriteConflict(w, "prefix already exists: "+req.Name)
		default:
			httputil.WriteBadRequest(w, err.Error())
		}
		return
	}
	httputil.WriteCreated(w, p)
}

func (s *Server) updatePrefix(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !s.authorizePrefixAction(w, r, permissions.ActionPrefixModify, name) {
		return
	}

	var req prefixRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	p, err := s.Prefixes.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, prefixes.ErrNotFound) {
			httputil.WriteNotFoundError(w, "prefix not found: "+name)
			return
		}
		observability.FromContext(r.Context()).WithError(err).Error("prefix lookup faulted")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if req.OwnerUser != "" {
		p.OwnerUser = req.OwnerUser
	}
	if req.OwnerGroup != "" {
		p.OwnerGroup = req.OwnerGroup
	}
	if req.Description != "" {
		p.Description = req.Description
	}
	if req.ExpiresAt != nil {
		p.ExpiresAt = req.ExpiresAt
	}

	if err := s.Prefixes.Update(r.Context(), p); err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("prefix update faulted")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	httputil.WriteSuccess(w, p)
}

func (s *Server) deletePrefix(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !s.authorizePrefixAction(w, r, permissions.ActionPrefixDelete, name) {
		return
	}

	// Grants go first so a half-completed delete fails closed.
	if err := s.Grants.RevokeAllForPrefix(r.Context(), name); err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("grant revocation faulted")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err := s.Prefixes.Delete(r.Context(), name); err != nil {
		if errors.Is(err, prefixes.ErrNotFound) {
			httputil.WriteNotFoundError(w, "prefix not found: "+name)
			return
		}
		observability.FromContext(r.Context()).WithError(err).Error("prefix delete faulted")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) grantCapability(w http.ResponseWriter, r *http.Request) {
	s.changeGrant(w, r, true)
}

func (s *Server) revokeCapability(w http.ResponseWriter, r *http.Request) {
	s.changeGrant(w, r, false)
}

func (s *Server) changeGrant(w http.ResponseWriter, r *http.Request, grant bool) {
	name := mux.Vars(r)["name"]
	if !s.authorizePrefixAction(w, r, permissions.ActionPrefixModify, name) {
		return
	}

	var req grantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.GroupName == "" || req.TableClass == "" || req.Capability == "" {
		httputil.WriteBadRequest(w, "group_name, table_class, and capability are required")
		return
	}

	g := permissions.Grant{
		GroupName:  req.GroupName,
		Prefix:     name,
		Class:      permissions.TableClass(req.TableClass),
		Capability: permissions.Capability(req.Capability),
	}
	var err error
	if grant {
		err = s.Grants.GrantCapability(r.Context(), g)
	} else {
		err = s.Grants.RevokeCapability(r.Context(), g)
	}
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("grant change faulted")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	httputil.WriteSuccess(w, g)
}
