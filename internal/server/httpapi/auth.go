package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/api"
	"github.com/passman-project/passman/internal/common"
	"github.com/passman-project/passman/internal/data"
)

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	var req api.AuthChallengeRequest
	if err := readJSON(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	challenge, err := s.authn.BeginChallenge(r.Context(), req.UserID, req.ChallengeSessionID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.AuthChallengeResponse{
		ChallengeDigest: challenge.DigestAlg,
		ChallengeBytes:  data.Bytes(challenge.Challenge),
	})
}

// handleChallengeResponse fulfills a challenge. The bearer credential here is
// the challenge session id, not a session token.
func (s *Server) handleChallengeResponse(w http.ResponseWriter, r *http.Request) {
	token, err := bearerToken(r)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	sessionID, err := uuid.Parse(token)
	if err != nil {
		s.writeError(r.Context(), w, common.ErrNotAuthenticated.WithMessage("malformed challenge session id"))
		return
	}
	var req api.AuthResponse
	if err := readJSON(r, &req); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	signed, session, err := s.authn.FulfillChallenge(r.Context(), sessionID, req.ChallengeSignature)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.AuthSession{
		SessionToken: signed,
		UserID:       session.UserID,
		ExpiresAt:    session.ExpiresAt.UTC(),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, err := bearerToken(r)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if err := s.authn.Logout(r.Context(), token); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
