package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-inventory/pkg/config"
	"github.com/angelmondragon/packfinderz-inventory/pkg/enums"
)

const clockSkew = 30 * time.Second

var (
	signingMethod = jwt.SigningMethodHS256

	ErrMisconfigured = errors.New("operator tokens misconfigured")
	ErrInvalidRole   = errors.New("invalid operator role")
)

// Tokens mints and verifies HS256 operator tokens for one issuer.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(cfg config.JWTConfig) (*Tokens, error) {
	var problems []string
	if cfg.Secret == "" {
		problems = append(problems, "secret is empty")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		problems = append(problems, "issuer is empty")
	}
	if cfg.ExpirationMinutes <= 0 {
		problems = append(problems, "expiration must be positive")
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMisconfigured, strings.Join(problems, ", "))
	}
	return &Tokens{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    time.Duration(cfg.ExpirationMinutes) * time.Minute,
		now:    time.Now,
	}, nil
}

func (t *Tokens) Mint(subject string, role enums.OperatorRole) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("subject is required")
	}
	if !role.IsValid() {
		return "", fmt.Errorf("%w %q", ErrInvalidRole, role)
	}

	issued := t.now()
	claims := OperatorClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign operator token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry, then the role claim.
func (t *Tokens) Verify(raw string) (*OperatorClaims, error) {
	claims := &OperatorClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, err
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("%w %q", ErrInvalidRole, claims.Role)
	}
	return claims, nil
}
