package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	apperrors "github.com/siu-labs/livegate/internal/platform/errors"
	"github.com/siu-labs/livegate/internal/platform/httpx"
	"github.com/siu-labs/livegate/internal/platform/requestctx"
	"github.com/siu-labs/livegate/internal/services/live/chain"
	"github.com/siu-labs/livegate/internal/services/live/storage"
	"github.com/siu-labs/livegate/internal/services/live/token"
)

const (
	msgMissingAddresses = "ownerAddress and lockAddress are required"
	msgAccessDenied     = "Access denied: no valid key"
	msgRateLimited      = "rate limit exceeded"
)

type authorizeRequest struct {
	OwnerAddress string `json:"ownerAddress"`
	LockAddress  string `json:"lockAddress"`
	Debug        bool   `json:"debug"`
}

type authorizeResponse struct {
	Token   string `json:"token"`
	Exp     int64  `json:"exp"`
	Chain   string `json:"chain"`
	Manager bool   `json:"manager"`
}

type deniedDebug struct {
	OwnerAddress string `json:"ownerAddress"`
	LockAddress  string `json:"lockAddress"`
	Chain        string `json:"chain"`
	EthRPCURL    string `json:"ethRpcUrl"`
}

type deniedResponse struct {
	Error string       `json:"error"`
	Debug *deniedDebug `json:"debug,omitempty"`
}

// handleAuthorize runs one request through validation, the chain decision
// and, on a grant, token issuance. Any failure to decide is a 500, never a
// grant.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	ctx := r.Context()

	var req authorizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		_ = httpx.WriteJSONError(w, http.StatusBadRequest, msgMissingAddresses)
		return
	}
	req.OwnerAddress = strings.TrimSpace(req.OwnerAddress)
	req.LockAddress = strings.TrimSpace(req.LockAddress)
	if req.OwnerAddress == "" || req.LockAddress == "" {
		_ = httpx.WriteJSONError(w, http.StatusBadRequest, msgMissingAddresses)
		return
	}

	chainName := s.deps.Checker.ChainName()
	event := storage.AuthorizationEvent{
		OwnerAddress: req.OwnerAddress,
		LockAddress:  req.LockAddress,
		Chain:        chainName,
	}

	owner, err := chain.ParseAddress("ownerAddress", req.OwnerAddress)
	if err == nil {
		_, err = chain.ParseAddress("lockAddress", req.LockAddress)
	}
	if err != nil {
		_ = httpx.WriteError(w, err)
		return
	}

	if s.deps.Limiter != nil {
		allowed, err := s.deps.Limiter.Allow(ctx, owner.Hex())
		if err != nil {
			s.fail(ctx, w, event, apperrors.Wrap(apperrors.CodeUnknown, "rate limiter unavailable", err))
			return
		}
		if !allowed {
			event.Outcome = storage.OutcomeDenied
			event.Detail = msgRateLimited
			s.appendEvent(ctx, event)
			_ = httpx.WriteJSONError(w, apperrors.CodeRateLimited.HTTPStatus(), msgRateLimited)
			return
		}
	}

	decision, err := s.deps.Checker.Check(ctx, req.LockAddress, req.OwnerAddress)
	if err != nil {
		s.fail(ctx, w, event, err)
		return
	}
	event.Manager = decision.IsManager

	if !decision.Grants(s.deps.Checker.AllowManagers()) {
		event.Outcome = storage.OutcomeDenied
		event.Detail = msgAccessDenied
		s.appendEvent(ctx, event)
		resp := deniedResponse{Error: msgAccessDenied}
		if req.Debug {
			rpc := "unset"
			if s.deps.Checker.RPCConfigured() {
				rpc = "set"
			}
			resp.Debug = &deniedDebug{
				OwnerAddress: req.OwnerAddress,
				LockAddress:  req.LockAddress,
				Chain:        chainName,
				EthRPCURL:    rpc,
			}
		}
		_ = httpx.WriteJSON(w, http.StatusForbidden, resp)
		return
	}

	issued, err := s.deps.Issuer.Issue(ctx, token.Grant{
		Owner:   req.OwnerAddress,
		Lock:    req.LockAddress,
		Manager: decision.IsManager,
	})
	if err != nil {
		s.fail(ctx, w, event, err)
		return
	}
	event.Outcome = storage.OutcomeIssued
	event.Detail = issued.ID
	s.appendEvent(ctx, event)
	_ = httpx.WriteJSON(w, http.StatusOK, authorizeResponse{
		Token:   issued.Token,
		Exp:     issued.ExpiresAt,
		Chain:   chainName,
		Manager: decision.IsManager,
	})
}

// fail logs err with request context, audits it and writes the error
// response.
func (s *Server) fail(ctx context.Context, w http.ResponseWriter, event storage.AuthorizationEvent, err error) {
	s.logf("authorize failed request_id=%s owner=%s lock=%s chain=%s code=%s err=%v",
		requestctx.RequestIDFromContext(ctx),
		event.OwnerAddress,
		event.LockAddress,
		event.Chain,
		apperrors.CodeOf(err),
		err,
	)
	event.Outcome = storage.OutcomeError
	event.Detail = err.Error()
	s.appendEvent(ctx, event)
	_ = httpx.WriteError(w, err)
}

// appendEvent records event best effort; failures are logged only.
func (s *Server) appendEvent(ctx context.Context, event storage.AuthorizationEvent) {
	if s.deps.Audit == nil {
		return
	}
	eventID, err := s.newID()
	if err != nil {
		s.logf("audit id failed request_id=%s err=%v", requestctx.RequestIDFromContext(ctx), err)
		return
	}
	event.ID = eventID
	event.CreatedAt = s.clock().UTC()
	if err := s.deps.Audit.AppendAuthorizationEvent(context.WithoutCancel(ctx), event); err != nil {
		s.logf("audit append failed request_id=%s outcome=%s err=%v", requestctx.RequestIDFromContext(ctx), event.Outcome, err)
	}
}
