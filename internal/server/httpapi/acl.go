package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/api"
	"github.com/passman-project/passman/internal/common"
	"github.com/passman-project/passman/internal/server/models"
)

func aclRowsFromWire(object uuid.UUID, rows []api.AclRow) []models.AclRow {
	out := make([]models.AclRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.AclRow{
			Object:  object,
			Subject: row.Subject,
			Action:  row.Action,
			Mode:    row.Mode,
		})
	}
	return out
}

func aclRowsToWire(rows []models.AclRow) []api.AclRow {
	out := make([]api.AclRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, api.AclRow{Subject: row.Subject, Action: row.Action, Mode: row.Mode})
	}
	return out
}

// subjectFilter parses the optional ?subject= query parameter.
func subjectFilter(r *http.Request) (*uuid.UUID, error) {
	raw := r.URL.Query().Get("subject")
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, common.ErrValidation.WithMessage("invalid subject filter: %v", err)
	}
	return &id, nil
}

func (s *Server) getAcl(w http.ResponseWriter, r *http.Request, actor, object uuid.UUID) {
	subject, err := subjectFilter(r)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	rows, err := s.acl.ObjectRows(r.Context(), actor, object, subject)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, aclRowsToWire(rows))
}

func (s *Server) postAcl(w http.ResponseWriter, r *http.Request, actor, object uuid.UUID) {
	var rows []api.AclRow
	if err := readJSON(r, &rows); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if err := s.acl.WriteRows(r.Context(), actor, object, aclRowsFromWire(object, rows)); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) putAcl(w http.ResponseWriter, r *http.Request, actor, object uuid.UUID) {
	var rows []api.AclRow
	if err := readJSON(r, &rows); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if err := s.acl.ReplaceAll(r.Context(), actor, object, aclRowsFromWire(object, rows)); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetAcl(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	object, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.getAcl(w, r, actor, object)
}

func (s *Server) handlePostAcl(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	object, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.postAcl(w, r, actor, object)
}

func (s *Server) handlePutAcl(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	object, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.putAcl(w, r, actor, object)
}

func (s *Server) handleGetGlobalAcl(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	s.getAcl(w, r, actor, models.GlobalScope)
}

func (s *Server) handlePostGlobalAcl(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	s.postAcl(w, r, actor, models.GlobalScope)
}

func (s *Server) handlePutGlobalAcl(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	s.putAcl(w, r, actor, models.GlobalScope)
}
