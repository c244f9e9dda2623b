package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/api"
	"github.com/passman-project/passman/internal/data"
	"github.com/passman-project/passman/internal/server/models"
	"github.com/passman-project/passman/internal/server/services"
)

func authMaterialFromWire(a api.UserAuth) *models.AuthMaterial {
	return &models.AuthMaterial{
		KDFBaseDigestAlg:  a.KDFBaseDigestAlg,
		AuthKeyAlg:        a.AuthKeyAlg,
		PubKey:            a.PubKey,
		PrivKeyIV:         a.PrivKeyIV,
		SecuredPrivateKey: a.SecuredPrivateKey,
	}
}

func authMaterialToWire(m *models.AuthMaterial) api.UserAuth {
	return api.UserAuth{
		KDFBaseDigestAlg:  m.KDFBaseDigestAlg,
		AuthKeyAlg:        m.AuthKeyAlg,
		PubKey:            data.Bytes(m.PubKey),
		PrivKeyIV:         data.Bytes(m.PrivKeyIV),
		SecuredPrivateKey: data.Bytes(m.SecuredPrivateKey),
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.NewUserRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	userID, err := s.users.Register(r.Context(), req.UserAddress, authMaterialFromWire(req.InitialAuth))
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.NewUserResponse{UserID: userID})
}

func (s *Server) handleGetAuth(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	userID, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	material, err := s.users.GetAuth(r.Context(), actor, userID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, authMaterialToWire(material))
}

func (s *Server) handlePutAuth(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	userID, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	var req api.UserAuth
	if err := readJSON(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if err := s.users.UpdateAuth(r.Context(), actor, userID, authMaterialFromWire(req)); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetRootInfo(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	userID, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	info, err := s.users.GetRootInfo(r.Context(), actor, userID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.UserRootInfo{RootObject: info.RootObject, RootKey: info.RootKey})
}

func (s *Server) handlePutRootInfo(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	userID, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	var req api.UserRootInfo
	if err := readJSON(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	info := &services.RootInfo{RootObject: req.RootObject, RootKey: req.RootKey}
	if err := s.users.UpdateRootInfo(r.Context(), actor, userID, info); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPublicKey(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	userID, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	alg, pubKey, err := s.users.GetPublicKey(r.Context(), userID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.UserPublicKey{PubKey: data.Bytes(pubKey), PubKeyAlg: alg})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request, actor uuid.UUID) {
	userID, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if err := s.users.DeleteAccount(r.Context(), actor, userID); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
