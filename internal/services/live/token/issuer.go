package token

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/siu-labs/livegate/internal/platform/errors"
	"github.com/siu-labs/livegate/internal/platform/id"
)

var tracer = otel.Tracer("github.com/siu-labs/livegate/internal/services/live/token")

// Config carries the signing secret and injectable clock and id source.
type Config struct {
	Secret []byte
	Now    func() time.Time
	NewID  func() (string, error)
}

func (c Config) withDefaults() Config {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewID == nil {
		c.NewID = id.NewID
	}
	return c
}

// Issued is a freshly minted token and its expiry in unix seconds.
type Issued struct {
	Token     string
	ExpiresAt int64
	ID        string
}

// Issuer mints live:join tokens.
type Issuer struct {
	cfg Config
}

// NewIssuer builds an Issuer. A missing secret is reported on Issue, so a
// misconfigured server still answers every request with MISSING_SECRET.
func NewIssuer(cfg Config) *Issuer {
	return &Issuer{cfg: cfg.withDefaults()}
}

// Issue signs a token for grant that expires Lifetime after now.
func (i *Issuer) Issue(ctx context.Context, grant Grant) (Issued, error) {
	_, span := tracer.Start(ctx, "token.Issue")
	defer span.End()
	span.SetAttributes(attribute.Bool("manager", grant.Manager))

	if len(i.cfg.Secret) == 0 {
		return Issued{}, apperrors.New(apperrors.CodeMissingSecret, "LIVE_JWT_SECRET is not configured")
	}
	jti, err := i.cfg.NewID()
	if err != nil {
		return Issued{}, fmt.Errorf("generate token id: %w", err)
	}
	issuedAt := i.cfg.Now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(Lifetime)

	claims := joinClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   grant.Owner,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
		Lock:    grant.Lock,
		Scope:   ScopeLiveJoin,
		Manager: grant.Manager,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.Secret)
	if err != nil {
		return Issued{}, fmt.Errorf("sign token: %w", err)
	}
	return Issued{Token: signed, ExpiresAt: expiresAt.Unix(), ID: jti}, nil
}
