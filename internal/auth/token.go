package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretBytes is the shortest HMAC secret accepted.
const MinSecretBytes = 32

// DefaultTokenTTL is the access token lifetime when none is configured.
const DefaultTokenTTL = 7 * 24 * time.Hour

// ErrInvalidToken is returned for every token that does not validate. The
// underlying reason is wrapped for logging but never shown to clients.
var ErrInvalidToken = errors.New("invalid token")

// Claims carried by access tokens.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// Token is a signed access token and its expiry instant.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// TokenService issues and validates HS256 access tokens.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) < MinSecretBytes {
		return nil, fmt.Errorf("token secret must be at least %d bytes", MinSecretBytes)
	}
	if cfg.Issuer == "" {
		return nil, errors.New("token issuer is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	return &TokenService{secret: secret, issuer: cfg.Issuer, ttl: ttl}, nil
}

// TTL returns the configured default lifetime.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a token for subject expiring after the configured TTL.
func (s *TokenService) Issue(subject string, role Role, now time.Time) (Token, error) {
	return s.IssueWithTTL(subject, role, now, s.ttl)
}

// IssueWithTTL signs a token with an explicit lifetime.
func (s *TokenService) IssueWithTTL(subject string, role Role, now time.Time, ttl time.Duration) (Token, error) {
	if subject == "" {
		return Token{}, errors.New("token subject is required")
	}
	if !role.Valid() {
		return Token{}, fmt.Errorf("unknown role %q", role)
	}
	if ttl <= 0 {
		return Token{}, errors.New("token ttl must be positive")
	}
	iat := now.UTC().Truncate(time.Second)
	exp := iat.Add(ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

// Validate checks signature, algorithm, issuer and expiry against now and
// returns the identity the token was issued for.
func (s *TokenService) Validate(raw string, now time.Time) (Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if !claims.Role.Valid() {
		return Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return Identity{AccountID: claims.Subject, Role: claims.Role}, nil
}
