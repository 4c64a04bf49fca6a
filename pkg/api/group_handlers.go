package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/biocompute/bcodb/pkg/auth"
	"github.com/biocompute/bcodb/pkg/groups"
	"github.com/biocompute/bcodb/pkg/httputil"
	"github.com/biocompute/bcodb/pkg/observability"
	"github.com/biocompute/bcodb/pkg/permissions"
)

type groupRequest struct {
	Name        string `json:"group_name"`
	Description string `json:"description,omitempty"`
}

type memberRequest struct {
	Username string `json:"username"`
	IsOwner  bool   `json:"is_owner,omitempty"`
}

// canAdministerGroup reports whether the caller may change a group's
// membership or existence: superusers and group owners only.
func (s *Server) canAdministerGroup(r *http.Request, name string) (bool, error) {
	identity := auth.IdentityFromContext(r.Context())
	if identity.IsSuperuser() {
		return true, nil
	}
	if identity.IsAnonymous() {
		return false, nil
	}
	return s.Groups.IsOwner(r.Context(), name, identity.Username)
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	list, err := s.Groups.ListGroups(r.Context())
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("group listing faulted")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	httputil.WriteSuccess(w, list)
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	group, err := s.Groups.GetGroup(r.Context(), name)
	if err != nil {
		if errors.Is(err, groups.ErrNotFound) {
			httputil.WriteNotFoundError(w, "group not found: "+name)
			return
		}
		observability.FromContext(r.Context()).WithError(err).Error("group lookup faulted")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}

	members, err := s.Groups.ListMembers(r.Context(), name)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("member listing faulted")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"group":   group,
		"members": members,
	})
}

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity.IsAnonymous() {
		httputil.WriteForbidden(w, "authentication required")
		return
	}

	var req groupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "group_name") {
		return
	}

	group := &groups.Group{Name: req.Name, Description: req.Description}
	if err := s.Groups.CreateGroup(r.Context(), group); err != nil {
		if errors.Is(err, groups.ErrDuplicate) {
			httputil.WriteConflict(w, "group already exists: "+req.Name)
			return
		}
		observability.FromContext(r.Context()).WithError(err).Error("group creation faulted")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// The creator owns the group they made.
	if err := s.Groups.AddMember(r.Context(), req.Name, identity.Username, true); err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("owner membership faulted")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	httputil.WriteCreated(w, group)
}

func (s *Server) deleteGroup(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name == permissions.WheelGroup || name == permissions.PrefixAdminsGroup {
		httputil.WriteForbidden(w, "built-in groups cannot be deleted")
		return
	}

	allowed, err := s.canAdministerGroup(r, name)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("group authorization faulted")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !allowed {
		httputil.WriteForbidden(w, "group owners only")
		return
	}

	if err := s.Groups.DeleteGroup(r.Context(), name); err != nil {
		if errors.Is(err, groups.ErrNotFound) {
			httputil.WriteNotFoundError(w, "group not found: "+name)
			return
		}
		observability.FromContext(r.Context()).WithError(err).Error("group delete faulted")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	allowed, err := s.canAdministerGroup(r, name)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("group authorization faulted")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !allowed {
		httputil.WriteForbidden(w, "group owners only")
		return
	}

	var req memberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Username, "username") {
		return
	}

	// Members may be named before they ever authenticate.
	if err := s.Tokens.EnsureUser(r.Context(), req.Username); err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("user provisioning faulted")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := s.Groups.AddMember(r.Context(), name, req.Username, req.IsOwner); err != nil {
		if errors.Is(err, groups.ErrNotFound) {
			httputil.WriteNotFoundError(w, "group not found: "+name)
			return
		}
		observability.FromContext(r.Context()).WithError(err).Error("member addition faulted")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	httputil.WriteCreated(w, groups.Member{GroupName: name, Username: req.Username, IsOwner: req.IsOwner})
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name, username := vars["name"], vars["username"]

	allowed, err := s.canAdministerGroup(r, name)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("group authorization faulted")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if !allowed {
		httputil.WriteForbidden(w, "group owners only")
		return
	}

	if err := s.Groups.RemoveMember(r.Context(), name, username); err != nil {
		if errors.Is(err, groups.ErrNotFound) {
			httputil.WriteNotFoundError(w, "membership not found")
			return
		}
		observability.FromContext(r.Context()).WithError(err).Error("member removal faulted")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}
	httputil.WriteNoContent(w)
}
