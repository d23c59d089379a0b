package token

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/siu-labs/livegate/internal/platform/errors"
)

// RevocationChecker reports whether a token id was revoked by its holder.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Verifier validates tokens minted by Issuer.
type Verifier struct {
	cfg         Config
	revocations RevocationChecker
}

// NewVerifier builds a Verifier. revocations may be nil.
func NewVerifier(cfg Config, revocations RevocationChecker) *Verifier {
	return &Verifier{cfg: cfg.withDefaults(), revocations: revocations}
}

// Verify checks signature, algorithm, scope, expiry and revocation.
func (v *Verifier) Verify(ctx context.Context, raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, apperrors.New(apperrors.CodeInvalidInput, "token is required")
	}
	if len(v.cfg.Secret) == 0 {
		return Claims{}, apperrors.New(apperrors.CodeMissingSecret, "LIVE_JWT_SECRET is not configured")
	}

	var parsed joinClaims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(*jwt.Token) (any, error) {
		return v.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{SigningMethod}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Scope != ScopeLiveJoin {
		return Claims{}, apperrors.WithMetadata(apperrors.CodeTokenInvalid, "token scope is invalid", map[string]string{"Field": "scope"})
	}
	if parsed.Subject == "" || parsed.Lock == "" || parsed.ID == "" {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "token claims are incomplete")
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "token exp is required")
	}
	now := v.cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, apperrors.New(apperrors.CodeTokenExpired, "token is expired")
	}

	if v.revocations != nil {
		revoked, err := v.revocations.IsRevoked(ctx, parsed.ID)
		if err != nil {
			return Claims{}, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return Claims{}, apperrors.New(apperrors.CodeTokenRevoked, "token is revoked")
		}
	}

	claims := Claims{
		Subject:   parsed.Subject,
		Lock:      parsed.Lock,
		Scope:     parsed.Scope,
		Manager:   parsed.Manager,
		ID:        parsed.ID,
		ExpiresAt: exp,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return apperrors.New(apperrors.CodeTokenInvalid, "token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeTokenInvalid, "token alg is invalid")
	}
	return apperrors.New(apperrors.CodeTokenInvalid, "token is invalid")
}
