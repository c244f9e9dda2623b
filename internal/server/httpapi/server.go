// Package httpapi exposes the server over HTTP with JSON payloads. Handlers
// translate the wire shapes into service calls; all policy lives in the
// services.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/api"
	"github.com/passman-project/passman/internal/common"
	"github.com/passman-project/passman/internal/data"
	"github.com/passman-project/passman/internal/logging"
	"github.com/passman-project/passman/internal/server/services"
)

type Server struct {
	mux      *http.ServeMux
	logger   logging.Logger
	serverID uuid.UUID

	authn *services.AuthService
	users *services.UserService
	items *services.ItemService
	acl   *services.AclService

	now func() time.Time
}

func New(serverID uuid.UUID, authn *services.AuthService, users *services.UserService, items *services.ItemService, acl *services.AclService, logger logging.Logger) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		logger:   logger.With("module", "httpapi"),
		serverID: serverID,
		authn:    authn,
		users:    users,
		items:    items,
		acl:      acl,
		now:      time.Now,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /hello", s.handleHello)

	s.mux.HandleFunc("POST /users/new", s.handleRegister)
	s.mux.HandleFunc("POST /auth/challenge", s.handleChallenge)
	s.mux.HandleFunc("POST /auth/response", s.handleChallengeResponse)

	s.mux.HandleFunc("POST /auth/logout", s.handleLogout)
	s.mux.HandleFunc("GET /users/{id}/auth", s.authed(s.handleGetAuth))
	s.mux.HandleFunc("PUT /users/{id}/auth", s.authed(s.handlePutAuth))
	s.mux.HandleFunc("GET /users/{id}/root", s.authed(s.handleGetRootInfo))
	s.mux.HandleFunc("PUT /users/{id}/root", s.authed(s.handlePutRootInfo))
	s.mux.HandleFunc("GET /users/{id}/public-key", s.authed(s.handleGetPublicKey))
	s.mux.HandleFunc("DELETE /users/{id}", s.authed(s.handleDeleteUser))

	s.mux.HandleFunc("GET /users/{id}/acl", s.authed(s.handleGetAcl))
	s.mux.HandleFunc("POST /users/{id}/acl", s.authed(s.handlePostAcl))
	s.mux.HandleFunc("PUT /users/{id}/acl", s.authed(s.handlePutAcl))
	s.mux.HandleFunc("GET /items/{id}/acl", s.authed(s.handleGetAcl))
	s.mux.HandleFunc("POST /items/{id}/acl", s.authed(s.handlePostAcl))
	s.mux.HandleFunc("PUT /items/{id}/acl", s.authed(s.handlePutAcl))
	s.mux.HandleFunc("GET /server/permissions", s.authed(s.handleGetGlobalAcl))
	s.mux.HandleFunc("POST /server/permissions", s.authed(s.handlePostGlobalAcl))
	s.mux.HandleFunc("PUT /server/permissions", s.authed(s.handlePutGlobalAcl))

	s.mux.HandleFunc("GET /items/{id}", s.authed(s.handleGetItem))
	s.mux.HandleFunc("PUT /items/{id}", s.authed(s.handlePutItem))
	s.mux.HandleFunc("DELETE /items/{id}", s.authed(s.handleDeleteItem))
	s.mux.HandleFunc("GET /items/{id}/metadata", s.authed(s.handleGetItemMetadata))

	s.mux.HandleFunc("GET /items/{id}/keys", s.authed(s.handleGetItemKeys))
	s.mux.HandleFunc("PUT /items/{id}/keys", s.authed(s.handlePutItemKeys))
	s.mux.HandleFunc("DELETE /items/{id}/keys", s.authed(s.handleDeleteItemKeys))
	s.mux.HandleFunc("GET /items/{id}/keys/{keyID}", s.authed(s.handleGetItemKeyInfo))
	s.mux.HandleFunc("PUT /items/{id}/keys/{keyID}", s.authed(s.handlePutItemKeyInfo))
	s.mux.HandleFunc("DELETE /items/{id}/keys/{keyID}", s.authed(s.handleDeleteItemKeyInfo))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// authedHandler is a handler that runs with a resolved actor.
type authedHandler func(w http.ResponseWriter, r *http.Request, actor uuid.UUID)

// authed resolves the bearer session token and passes the authenticated user
// id into the handler.
func (s *Server) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			s.writeError(r.Context(), w, err)
			return
		}
		actor, err := s.authn.ResolveSession(r.Context(), token)
		if err != nil {
			s.writeError(r.Context(), w, err)
			return
		}
		h(w, r, actor)
	}
}

// bearerToken extracts the credential from the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get(common.AuthorizationHeaderName)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", common.ErrNotAuthenticated.WithMessage("missing bearer credential")
	}
	return token, nil
}

// pathUUID parses the named path segment as a uuid.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, common.ErrValidation.WithMessage("invalid %s: %v", name, err)
	}
	return id, nil
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return common.ErrValidation.WithMessage("malformed request body: %v", err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(context.Background(), "failed to encode response", "error", err)
	}
}

var statusByCode = map[common.Code]int{
	common.CodeNotAuthenticated: http.StatusUnauthorized,
	common.CodeNotFound:         http.StatusNotFound,
	common.CodeDenied:           http.StatusForbidden,
	common.CodeUnsupported:      http.StatusBadRequest,
	common.CodeValidation:       http.StatusBadRequest,
	common.CodeConflict:         http.StatusConflict,
	common.CodeInternal:         http.StatusInternalServerError,
}

// writeError maps the machine-readable code to an HTTP status. Internal
// errors keep their details in the log, never on the wire.
func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := common.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	body := api.ErrorBody{Code: code, Message: err.Error()}
	if code == common.CodeInternal {
		s.logger.Error(ctx, "internal error", "error", err)
		body.Message = "internal error"
	}
	s.writeJSON(w, status, body)
}

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.Hello{
		ServerID:        s.serverID,
		ProtocolID:      common.ProtocolID,
		ProtocolVersion: data.ProtocolVersion,
		HelloTime:       s.now().UTC(),
	})
}
