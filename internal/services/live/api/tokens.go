package api

import (
	"encoding/json"
	"net/http"
	"strings"

	apperrors "github.com/siu-labs/livegate/internal/platform/errors"
	"github.com/siu-labs/livegate/internal/platform/httpx"
	"github.com/siu-labs/livegate/internal/platform/requestctx"
	"github.com/siu-labs/livegate/internal/services/live/token"
)

const msgTokenRequired = "token is required"

type tokenRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	Valid   bool   `json:"valid"`
	Sub     string `json:"sub"`
	Lock    string `json:"lock"`
	Scope   string `json:"scope"`
	Manager bool   `json:"manager"`
	Exp     int64  `json:"exp"`
}

type revokeResponse struct {
	Revoked bool `json:"revoked"`
}

// verifyFromBody decodes {token} and verifies it, writing the error response
// itself when it returns false.
func (s *Server) verifyFromBody(w http.ResponseWriter, r *http.Request) (token.Claims, bool) {
	var req tokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		_ = httpx.WriteJSONError(w, http.StatusBadRequest, msgTokenRequired)
		return token.Claims{}, false
	}
	claims, err := s.deps.Verifier.Verify(r.Context(), req.Token)
	if err != nil {
		if apperrors.HTTPStatus(err) >= http.StatusInternalServerError {
			s.logf("verify token failed request_id=%s err=%v", requestctx.RequestIDFromContext(r.Context()), err)
		}
		_ = httpx.WriteError(w, err)
		return token.Claims{}, false
	}
	return claims, true
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	claims, ok := s.verifyFromBody(w, r)
	if !ok {
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, verifyResponse{
		Valid:   true,
		Sub:     claims.Subject,
		Lock:    claims.Lock,
		Scope:   claims.Scope,
		Manager: claims.Manager,
		Exp:     claims.ExpiresAt.Unix(),
	})
}

// handleRevoke lets the holder of a still-valid token revoke it. The
// revocation lives only as long as the token would have.
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if s.deps.Revocations == nil {
		_ = httpx.WriteJSONError(w, http.StatusInternalServerError, "revocation is not configured")
		return
	}
	claims, ok := s.verifyFromBody(w, r)
	if !ok {
		return
	}
	if err := s.deps.Revocations.Revoke(r.Context(), claims.ID, claims.ExpiresAt); err != nil {
		s.logf("revoke token failed request_id=%s jti=%s err=%v", requestctx.RequestIDFromContext(r.Context()), claims.ID, err)
		_ = httpx.WriteError(w, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, revokeResponse{Revoked: true})
}
